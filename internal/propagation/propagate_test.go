package propagation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"

	"github.com/kartoza/labcalc/internal/calcerr"
)

func TestSuma(t *testing.T) {
	res, err := Propagate(OpSuma, Inputs{X: 3, DX: 0.1, Y: 2, DY: 0.2})
	require.NoError(t, err)

	assert.InDelta(t, 5.0, res.Value, 1e-12)
	assert.InDelta(t, math.Sqrt(0.1*0.1+0.2*0.2), res.Uncertainty, 1e-12)
	assert.InDelta(t, 0.2236, res.Uncertainty, 1e-4)
}

func TestClosedForms(t *testing.T) {
	tests := []struct {
		name      string
		op        Operation
		in        Inputs
		wantValue float64
		wantSigma float64
	}{
		{"resta", OpResta, Inputs{X: 3, DX: 0.3, Y: 5, DY: 0.4}, -2, 0.5},
		{"producto", OpProducto, Inputs{X: 2, DX: 0.1, Y: 4, DY: 0.2}, 8, math.Hypot(4*0.1, 2*0.2)},
		{"producto with zero factor", OpProducto, Inputs{X: 0, DX: 0.1, Y: 4, DY: 0.2}, 0, 0.4},
		{"division", OpDivision, Inputs{X: 10, DX: 1, Y: 2, DY: 0.1}, 5, math.Hypot(1.0/2, 10*0.1/4)},
		{"potencia", OpPotencia, Inputs{X: 2, DX: 0.1, N: 3}, 8, 3 * 4 * 0.1},
		{"potencia n=0", OpPotencia, Inputs{X: 0, DX: 0.1, N: 0}, 1, 0},
		{"constante", OpConstante, Inputs{X: 2, DX: 0.1, A: -3}, -6, 0.3},
		{"exponente", OpExponente, Inputs{X: 1, DX: 0.1}, math.E, math.E * 0.1},
		{"cos", OpCos, Inputs{X: math.Pi / 2, DX: 0.01}, 0, 0.01},
		{"sin", OpSin, Inputs{X: 0, DX: 0.01}, 0, 0.01},
		{"ln", OpLn, Inputs{X: math.E, DX: 0.1}, 1, 0.1 / math.E},
		{"error_porcentual", OpErrorPorcentual, Inputs{X: 10, DX: 0, Y: 9, DY: 0.1}, 10, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Propagate(tt.op, tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantValue, res.Value, 1e-12)
			assert.InDelta(t, tt.wantSigma, res.Uncertainty, 1e-12)
		})
	}
}

func TestFailures(t *testing.T) {
	tests := []struct {
		name string
		op   Operation
		in   Inputs
		want error
	}{
		{"division by zero", OpDivision, Inputs{X: 10, DX: 1, Y: 0, DY: 0}, calcerr.ErrDivisionByZero},
		{"ln of negative", OpLn, Inputs{X: -1, DX: 0.1}, calcerr.ErrDomain},
		{"ln of zero", OpLn, Inputs{X: 0, DX: 0.1}, calcerr.ErrDomain},
		{"percent error with zero theory", OpErrorPorcentual, Inputs{X: 0, Y: 1}, calcerr.ErrDomain},
		{"fractional power of negative", OpPotencia, Inputs{X: -2, DX: 0.1, N: 0.5}, calcerr.ErrDomain},
		{"exponent overflow", OpExponente, Inputs{X: 1000, DX: 0.1}, calcerr.ErrDomain},
		{"negative uncertainty", OpSuma, Inputs{X: 1, DX: -0.1}, calcerr.ErrInvalidInput},
		{"non-finite input", OpSuma, Inputs{X: math.NaN()}, calcerr.ErrInvalidInput},
		{"out of range operation", Operation(99), Inputs{}, calcerr.ErrUnknownOperation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Propagate(tt.op, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// Every closed-form partial must agree with a central difference.
func TestGradientMatchesCentralDifference(t *testing.T) {
	points := []Inputs{
		{X: 1.7, DX: 0.1, Y: 2.3, DY: 0.2, N: 2.5, A: -1.5},
		{X: 0.4, DX: 0.05, Y: -3.1, DY: 0.3, N: 3, A: 4},
		{X: 12, DX: 1, Y: 7, DY: 0.5, N: -1.5, A: 0.25},
	}

	settings := &fd.Settings{Formula: fd.Central}
	for op := Operation(0); op < numOperations; op++ {
		for _, in := range points {
			res, err := Propagate(op, in)
			require.NoError(t, err, "%s at %+v", op, in)

			for _, p := range res.Gradient {
				f := func(v float64) float64 {
					shifted := in
					switch p.Param {
					case ParamX:
						shifted.X = v
					case ParamY:
						shifted.Y = v
					}
					r, err := Propagate(op, shifted)
					require.NoError(t, err)
					return r.Value
				}
				at := in.X
				if p.Param == ParamY {
					at = in.Y
				}
				numeric := fd.Derivative(f, at, settings)
				tol := 1e-6 * math.Max(1, math.Abs(numeric))
				assert.InDelta(t, numeric, p.Derivative, tol, "%s d/d%s at %+v", op, p.Param, in)
			}
		}
	}
}

func TestLookup(t *testing.T) {
	op, err := Lookup("  Division ")
	require.NoError(t, err)
	assert.Equal(t, OpDivision, op)

	_, err = Lookup("tangente")
	assert.ErrorIs(t, err, calcerr.ErrUnknownOperation)

	res, err := PropagateID("ln", Inputs{X: -1, DX: 0.1})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, calcerr.ErrDomain)
}

func TestCatalogue(t *testing.T) {
	cat := Catalogue()
	require.Len(t, cat, int(numOperations))

	seen := make(map[string]bool)
	for _, info := range cat {
		assert.False(t, seen[info.ID], "duplicate id %s", info.ID)
		seen[info.ID] = true
		assert.NotEmpty(t, info.Name)
		assert.Contains(t, info.Params, ParamX)
		assert.Contains(t, info.Params, ParamDX)
	}
	assert.Equal(t, []string{ParamN, ParamX, ParamDX}, OpPotencia.Params())
}

func TestCheckParams(t *testing.T) {
	err := CheckParams(OpSuma, map[string]bool{ParamX: true, ParamDX: true})
	assert.ErrorIs(t, err, calcerr.ErrMissingParameter)
	assert.Contains(t, err.Error(), "y, dy")

	assert.NoError(t, CheckParams(OpCos, map[string]bool{ParamX: true, ParamDX: true}))
}

func TestStrict(t *testing.T) {
	_, err := Strict(OpDivision, Inputs{X: 1, DX: 0.1}, map[string]bool{ParamX: true, ParamDX: true})
	assert.ErrorIs(t, err, calcerr.ErrMissingParameter)

	supplied := map[string]bool{ParamX: true, ParamDX: true, ParamY: true, ParamDY: true}
	res, err := Strict(OpDivision, Inputs{X: 1, DX: 0.1, Y: 2, DY: 0}, supplied)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.Value, 1e-12)
	assert.InDelta(t, 0.05, res.Uncertainty, 1e-12)
}
