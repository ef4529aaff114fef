package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartoza/labcalc/internal/calcerr"
	"github.com/kartoza/labcalc/internal/config"
)

func run(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestFormatMeasurement(t *testing.T) {
	tests := []struct {
		v, s float64
		want string
	}{
		{15, 0.5, "15.00 ± 0.50"},
		{9.8123, 0.0312, "9.812 ± 0.031"},
		{1234.4, 12, "1234 ± 12"},
		{2, 0, "2 ± 0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatMeasurement(tt.v, tt.s))
	}
}

func TestCalcCmd(t *testing.T) {
	cfg := config.Default()
	out, err := run(t, NewCalcCmd(&cfg), "", "suma", "--x", "10", "--dx", "0.3", "--y", "5", "--dy", "0.4")
	require.NoError(t, err)
	assert.Contains(t, out, "15.00 ± 0.50")
}

func TestCalcCmdJSON(t *testing.T) {
	cfg := config.Default()
	out, err := run(t, NewCalcCmd(&cfg), "", "POTENCIA", "--x", "2", "--dx", "0.1", "--n", "3", "--json")
	require.NoError(t, err)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "potencia", resp["operation"])
	assert.InDelta(t, 8.0, resp["value"].(float64), 1e-12)
	assert.InDelta(t, 1.2, resp["uncertainty"].(float64), 1e-12)
}

func TestCalcCmdErrors(t *testing.T) {
	cfg := config.Default()
	_, err := run(t, NewCalcCmd(&cfg), "", "tan", "--x", "1")
	assert.ErrorIs(t, err, calcerr.ErrUnknownOperation)

	_, err = run(t, NewCalcCmd(&cfg), "", "division", "--x", "1", "--dx", "0.1")
	assert.ErrorIs(t, err, calcerr.ErrDivisionByZero)

	cfg.StrictParams = true
	_, err = run(t, NewCalcCmd(&cfg), "", "division", "--x", "1", "--dx", "0.1")
	assert.ErrorIs(t, err, calcerr.ErrMissingParameter)
}

func TestGaussCmd(t *testing.T) {
	out, err := run(t, NewGaussCmd(), "", "1", "2", "3", "4", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "n      = 5")
	assert.Contains(t, out, "mean   = 3.00 ± 0.71")
	assert.Contains(t, out, "stdev  = 1.58114")
}

func TestGaussCmdStdin(t *testing.T) {
	out, err := run(t, NewGaussCmd(), "9.8, 9.9; 10.0\n10.1 abc\n", "--file", "-", "--json")
	require.NoError(t, err)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.EqualValues(t, 4, resp["n"])
	assert.InDelta(t, 9.95, resp["mean"].(float64), 1e-12)
}

func TestGaussCmdInsufficientData(t *testing.T) {
	_, err := run(t, NewGaussCmd(), "", "42")
	assert.ErrorIs(t, err, calcerr.ErrInsufficientData)
}

func TestFitCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spring.json")
	data := `{"x":[1,2,3,4,5],"y":[2.1,3.9,6.2,7.8,10.1],"dy":[0.2,0.2,0.2,0.2,0.2]}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg := config.Default()
	out, err := run(t, NewFitCmd(&cfg), "", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "y = ")
	assert.Contains(t, out, "weighting = y_only, error scaling = absolute")
	assert.NotContains(t, out, "warning")

	out, err = run(t, NewFitCmd(&cfg), "", "--file", path, "--error-scaling", "chi2", "--json")
	require.NoError(t, err)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	st := resp["stats"].(map[string]interface{})
	assert.Equal(t, "chi2", st["error_scaling"])
	assert.InDelta(t, 1.99, st["p1"].(float64), 1e-9)
}

func TestFitCmdErrors(t *testing.T) {
	cfg := config.Default()

	_, err := run(t, NewFitCmd(&cfg), "")
	assert.EqualError(t, err, "--file is required")

	_, err = run(t, NewFitCmd(&cfg), `{"x":[1,2,3],"y":[1,2]}`, "--file", "-")
	assert.ErrorIs(t, err, calcerr.ErrInvalidInput)

	_, err = run(t, NewFitCmd(&cfg), `{"x":[1,2,3],"y":[1,2,3]}`, "--file", "-", "--model", "cubic")
	assert.ErrorIs(t, err, calcerr.ErrInvalidInput)
}

func TestOpsCmd(t *testing.T) {
	out, err := run(t, NewOpsCmd(), "")
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, out, "error_porcentual")
	assert.Contains(t, out, "exponential")

	// Accented labels must not shift the parameter column.
	var sumaCol, divCol int
	for _, l := range lines {
		switch {
		case strings.HasPrefix(l, "suma "):
			sumaCol = strings.Index(l, "x, dx")
		case strings.HasPrefix(l, "division "):
			divCol = strings.Index(l, "x, dx")
		}
	}
	require.Positive(t, sumaCol)
	// "División" has one two-byte rune, so its byte index is one larger.
	assert.Equal(t, sumaCol+1, divCol)
}

type scriptedPrompter struct {
	lines []string
}

func (p *scriptedPrompter) Prompt(string) (string, error) {
	if len(p.lines) == 0 {
		return "", io.EOF
	}
	l := p.lines[0]
	p.lines = p.lines[1:]
	return l, nil
}

func TestRepl(t *testing.T) {
	p := &scriptedPrompter{lines: []string{
		"",
		"tan",
		"Suma", "10", "0.3", "five", "5", "0.4",
		"division", "1", "0.1", "0", "0",
		"q",
		"never read",
	}}
	var out bytes.Buffer
	var history []string

	require.NoError(t, runRepl(p, &out, func(s string) { history = append(history, s) }))

	assert.Contains(t, out.String(), "unknown operation")
	assert.Contains(t, out.String(), `not a number: "five"`)
	assert.Contains(t, out.String(), "15.00 ± 0.50")
	assert.Contains(t, out.String(), "división por cero")
	assert.Equal(t, []string{"suma", "division"}, history)
	assert.Equal(t, []string{"never read"}, p.lines)
}

func TestReplEOFDuringInputs(t *testing.T) {
	p := &scriptedPrompter{lines: []string{"cos", "1"}}
	var out bytes.Buffer
	assert.NoError(t, runRepl(p, &out, nil))
	assert.NotContains(t, out.String(), "=")
}
