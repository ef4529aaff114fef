package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/kartoza/labcalc/internal/fitting"
	"github.com/kartoza/labcalc/internal/propagation"
)

// printTable writes rows as space-padded columns. Widths are measured in
// terminal cells so accented labels line up.
func printTable(w io.Writer, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	line := func(cells []string) {
		parts := make([]string, len(cells))
		for i, c := range cells {
			if i == len(cells)-1 {
				parts[i] = c
				continue
			}
			parts[i] = runewidth.FillRight(c, widths[i])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	line(header)
	rule := make([]string, len(header))
	for i := range header {
		rule[i] = strings.Repeat("-", widths[i])
	}
	line(rule)
	for _, row := range rows {
		line(row)
	}
}

// NewOpsCmd lists the propagation operations and fit models.
func NewOpsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List operations and fit models",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()

			var rows [][]string
			for _, op := range propagation.Catalogue() {
				rows = append(rows, []string{op.ID, op.Name, paramList(op.Params)})
			}
			printTable(out, []string{"ID", "OPERATION", "PARAMS"}, rows)

			fmt.Fprintln(out)
			rows = rows[:0]
			for _, m := range fitting.Models() {
				rows = append(rows, []string{m.Name, paramList(m.Params), fmt.Sprint(m.MinPoints)})
			}
			printTable(out, []string{"MODEL", "PARAMS", "MIN POINTS"}, rows)
		},
	}
}
