package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kartoza/labcalc/internal/config"
	"github.com/kartoza/labcalc/internal/fitting"
	"github.com/kartoza/labcalc/internal/models"
)

// NewFitCmd fits a model to a JSON data file shaped like the /api/fit body.
func NewFitCmd(cfg *config.Config) *cobra.Command {
	var (
		file         string
		model        string
		errorScaling string
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Weighted curve fit with uncertainties on both axes",
		Long: `Fit a linear, quadratic or exponential model to the points in a JSON file
with the same shape as the /api/fit request body:

  {"x": [...], "y": [...], "dx": [...], "dy": [...], "model": "linear"}

Examples:
  labcalc fit --file spring.json
  labcalc fit --file decay.json --model exponential --error-scaling chi2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}

			var data []byte
			var err error
			if file == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(file)
			}
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}

			var req models.FitRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("failed to parse %s: %w", file, err)
			}
			if model != "" {
				req.Model = model
			}
			if errorScaling != "" {
				req.ErrorScaling = errorScaling
			}

			m, err := fitting.ParseModel(req.Model)
			if err != nil {
				return err
			}
			opts, err := cfg.FitOptions()
			if err != nil {
				return err
			}
			if req.ErrorScaling != "" {
				scaling, err := fitting.ParseErrorScaling(req.ErrorScaling)
				if err != nil {
					return err
				}
				opts = append(opts, fitting.WithErrorScaling(scaling))
			}

			res, err := fitting.Fit(req.Series(), m, opts...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, models.NewFitResponse(res, req.Meta(m)))
			}
			printFit(out, res)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "JSON data file (- for stdin)")
	f.StringVarP(&model, "model", "m", "", "linear, quadratic or exponential (overrides the file)")
	f.StringVar(&errorScaling, "error-scaling", "", "absolute or chi2 (overrides the file and config)")
	f.BoolVar(&asJSON, "json", false, "print the API response body")
	return cmd
}

func printFit(w io.Writer, res *fitting.Result) {
	fmt.Fprintf(w, "%s\n\n", res.Formula())

	rows := make([][]string, 0, len(res.Params))
	for _, p := range res.Params {
		rows = append(rows, []string{p.Name, formatMeasurement(p.Value, p.Error)})
	}
	printTable(w, []string{"PARAM", "VALUE"}, rows)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "chi2/ndof = %.4g / %d = %.4g\n", res.Chi2, res.NDOF, res.Chi2NDOF)
	fmt.Fprintf(w, "weighting = %s, error scaling = %s\n", res.Weighting, res.ErrorScaling)
	if !res.Converged {
		fmt.Fprintf(w, "warning: no convergence after %d iterations\n", res.Iterations)
	}
}
