// Package cli holds the labcalc subcommands that run the engines locally,
// without the HTTP server.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kartoza/labcalc/internal/config"
	"github.com/kartoza/labcalc/internal/models"
	"github.com/kartoza/labcalc/internal/propagation"
)

// formatMeasurement prints v ± s with the value rounded to the first
// significant digit of the uncertainty.
func formatMeasurement(v, s float64) string {
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return fmt.Sprintf("%g ± 0", v)
	}
	decimals := max(0, 1-int(math.Floor(math.Log10(s))))
	return fmt.Sprintf("%.*f ± %.*f", decimals, v, decimals, s)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// NewCalcCmd propagates uncertainties through one operation.
func NewCalcCmd(cfg *config.Config) *cobra.Command {
	var (
		in       propagation.Inputs
		asJSON   bool
		gradient bool
	)

	cmd := &cobra.Command{
		Use:   "calc <operation>",
		Short: "Propagate uncertainties through an operation",
		Long: `Evaluate a catalogue operation and its first-order uncertainty.

Examples:
  labcalc calc suma --x 10 --dx 0.3 --y 5 --dy 0.4
  labcalc calc potencia --x 2 --dx 0.1 --n 3
  labcalc calc error_porcentual --x 9.81 --y 9.6 --dy 0.1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := propagation.Lookup(args[0])
			if err != nil {
				return err
			}

			var res *propagation.Result
			if cfg.StrictParams {
				supplied := make(map[string]bool)
				for _, p := range op.Params() {
					supplied[p] = cmd.Flags().Changed(p)
				}
				res, err = propagation.Strict(op, in, supplied)
			} else {
				res, err = propagation.Propagate(op, in)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, models.NewCalculationResponse(res, gradient))
			}
			fmt.Fprintf(out, "%s = %s\n", op.Label(), formatMeasurement(res.Value, res.Uncertainty))
			if gradient {
				for _, p := range res.Gradient {
					fmt.Fprintf(out, "  ∂f/∂%s = %-12.6g σ = %-10.4g contribution = %.4g\n",
						p.Param, p.Derivative, p.Sigma, math.Abs(p.Derivative*p.Sigma))
				}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64Var(&in.X, propagation.ParamX, 0, "first value (the theoretical value for error_porcentual)")
	f.Float64Var(&in.DX, propagation.ParamDX, 0, "uncertainty of x")
	f.Float64Var(&in.Y, propagation.ParamY, 0, "second value (the experimental value for error_porcentual)")
	f.Float64Var(&in.DY, propagation.ParamDY, 0, "uncertainty of y")
	f.Float64Var(&in.N, propagation.ParamN, 0, "exponent for potencia")
	f.Float64Var(&in.A, propagation.ParamA, 0, "constant for constante")
	f.BoolVar(&asJSON, "json", false, "print the API response body")
	f.BoolVar(&gradient, "gradient", false, "show the contribution of each input")

	return cmd
}

// paramList renders parameter names for help text and tables.
func paramList(params []string) string {
	return strings.Join(params, ", ")
}
