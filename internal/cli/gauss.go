package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kartoza/labcalc/internal/models"
	"github.com/kartoza/labcalc/internal/stats"
)

const histogramWidth = 40

// readValues splits r on whitespace, commas and semicolons.
func readValues(r io.Reader) ([]any, error) {
	var out []any
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.FieldsFunc(sc.Text(), func(c rune) bool {
			return c == ',' || c == ';' || c == ' ' || c == '\t'
		})
		for _, f := range fields {
			out = append(out, f)
		}
	}
	return out, sc.Err()
}

// NewGaussCmd summarises repeated measurements given as arguments or in a file.
func NewGaussCmd() *cobra.Command {
	var (
		file   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "gauss [values...]",
		Short: "Mean, standard deviation and histogram of repeated measurements",
		Long: `Summarise a sample of repeated measurements. Values are read from the
arguments, or from --file (use - for stdin) separated by whitespace, commas or
semicolons. Non-numeric entries are ignored.

Examples:
  labcalc gauss 9.78 9.81 9.83 9.80 9.79
  labcalc gauss --file pendulum.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := make([]any, 0, len(args))
			for _, a := range args {
				raw = append(raw, a)
			}
			if file != "" {
				r := cmd.InOrStdin()
				if file != "-" {
					f, err := os.Open(file)
					if err != nil {
						return fmt.Errorf("failed to open %s: %w", file, err)
					}
					defer f.Close()
					r = f
				}
				vals, err := readValues(r)
				if err != nil {
					return fmt.Errorf("failed to read values: %w", err)
				}
				raw = append(raw, vals...)
			}

			res, err := stats.Describe(stats.CleanAny(raw))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, models.NewGaussResponse(res))
			}
			printGauss(out, res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read values from a file (- for stdin)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the API response body")
	return cmd
}

func printGauss(w io.Writer, res *stats.GaussResult) {
	fmt.Fprintf(w, "n      = %d\n", res.N)
	fmt.Fprintf(w, "mean   = %s\n", formatMeasurement(res.Mean, res.Error))
	fmt.Fprintf(w, "stdev  = %.6g\n", res.StdDev)
	fmt.Fprintf(w, "range  = [%g, %g]\n", res.Min, res.Max)
	fmt.Fprintln(w)

	h := res.Histogram
	peak := 0
	for _, c := range h.Counts {
		peak = max(peak, c)
	}
	for i, c := range h.Counts {
		bar := 0
		if peak > 0 {
			bar = c * histogramWidth / peak
		}
		fmt.Fprintf(w, "[%10.4g, %10.4g) %4d %s\n", h.Edges[i], h.Edges[i+1], c, strings.Repeat("#", bar))
	}
}
