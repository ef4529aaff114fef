package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/kartoza/labcalc/internal/propagation"
)

// prompter is the part of *liner.State the loop needs.
type prompter interface {
	Prompt(prompt string) (string, error)
}

var errQuit = errors.New("quit")

var paramPrompts = map[string]string{
	propagation.ParamX:  "x",
	propagation.ParamDX: "δx",
	propagation.ParamY:  "y",
	propagation.ParamDY: "δy",
	propagation.ParamN:  "n",
	propagation.ParamA:  "a",
}

// NewReplCmd starts an interactive propagation loop.
func NewReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive error propagation",
		Long: `Prompt for an operation and its inputs, print the propagated result and
repeat. Enter "ops" to list the operations and "q" or Ctrl-D to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)

			ids := make([]string, 0)
			for _, op := range propagation.Catalogue() {
				ids = append(ids, op.ID)
			}
			line.SetCompleter(func(prefix string) []string {
				var out []string
				for _, id := range ids {
					if strings.HasPrefix(id, strings.ToLower(prefix)) {
						out = append(out, id)
					}
				}
				return out
			})

			return runRepl(line, cmd.OutOrStdout(), line.AppendHistory)
		},
	}
}

// runRepl drives the prompt loop until the user quits or input ends.
// remember, when non-nil, records each accepted operation id.
func runRepl(p prompter, w io.Writer, remember func(string)) error {
	for {
		input, err := p.Prompt("operation> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(w)
				return nil
			}
			return err
		}

		id := strings.TrimSpace(input)
		switch strings.ToLower(id) {
		case "":
			continue
		case "q", "quit", "exit":
			return nil
		case "ops", "?", "help":
			var rows [][]string
			for _, op := range propagation.Catalogue() {
				rows = append(rows, []string{op.ID, op.Name, paramList(op.Params)})
			}
			printTable(w, []string{"ID", "OPERATION", "PARAMS"}, rows)
			continue
		}

		op, err := propagation.Lookup(id)
		if err != nil {
			fmt.Fprintf(w, "error: %v (enter ops to list them)\n", err)
			continue
		}
		if remember != nil {
			remember(op.String())
		}

		in, err := readInputs(p, w, op)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			return err
		}

		res, err := propagation.Propagate(op, in)
		if err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
			continue
		}
		fmt.Fprintf(w, "%s = %s\n", op.Label(), formatMeasurement(res.Value, res.Uncertainty))
	}
}

// readInputs prompts for every parameter op reads, re-asking until the entry
// parses as a number.
func readInputs(p prompter, w io.Writer, op propagation.Operation) (propagation.Inputs, error) {
	var in propagation.Inputs
	fields := map[string]*float64{
		propagation.ParamX:  &in.X,
		propagation.ParamDX: &in.DX,
		propagation.ParamY:  &in.Y,
		propagation.ParamDY: &in.DY,
		propagation.ParamN:  &in.N,
		propagation.ParamA:  &in.A,
	}

	for _, name := range op.Params() {
		for {
			s, err := p.Prompt(fmt.Sprintf("  %s = ", paramPrompts[name]))
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
					return in, errQuit
				}
				return in, err
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				fmt.Fprintf(w, "  not a number: %q\n", s)
				continue
			}
			*fields[name] = v
			break
		}
	}
	return in, nil
}
