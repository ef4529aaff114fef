// Package propagation evaluates catalogue operations on measured values and
// propagates their uncertainties to first order.
//
// For an operation f of uncorrelated inputs x_i with uncertainties σ_i the
// propagated uncertainty is
//
//	σ_f = sqrt(Σ (∂f/∂x_i · σ_i)²)
//
// Every partial derivative is written in closed form next to the value
// function; nothing is differenced numerically.
package propagation

import (
	"math"

	"github.com/kartoza/labcalc/internal/calcerr"
)

// Inputs holds every field an operation may read. Unused fields are ignored;
// the request layer fills absent ones with 0.
type Inputs struct {
	X  float64
	DX float64
	Y  float64
	DY float64
	N  float64
	A  float64
}

// Partial is one term of the propagation sum
type Partial struct {
	Param      string  `json:"param"`
	Derivative float64 `json:"derivative"`
	Sigma      float64 `json:"sigma"`
}

// Result is a propagated measurement
type Result struct {
	Operation   Operation
	Value       float64
	Uncertainty float64
	Gradient    []Partial
}

// Propagate evaluates op on in and propagates the input uncertainties.
func Propagate(op Operation, in Inputs) (*Result, error) {
	if !op.valid() {
		return nil, calcerr.New(calcerr.UnknownOperation, "unknown operation %d", int(op))
	}
	if err := validate(in); err != nil {
		return nil, err
	}

	value, grad, err := evaluate(op, in)
	if err != nil {
		return nil, err
	}

	sigma := 0.0
	for _, p := range grad {
		// Exact inputs contribute nothing, even where the derivative diverges.
		if p.Sigma == 0 {
			continue
		}
		sigma = math.Hypot(sigma, p.Derivative*p.Sigma)
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, calcerr.New(calcerr.DomainError, "%s is undefined for the given inputs", op)
	}
	if math.IsNaN(sigma) || math.IsInf(sigma, 0) {
		return nil, calcerr.New(calcerr.DomainError, "uncertainty of %s is undefined for the given inputs", op)
	}

	return &Result{
		Operation:   op,
		Value:       value,
		Uncertainty: sigma,
		Gradient:    grad,
	}, nil
}

// PropagateID looks up id and propagates in through it.
func PropagateID(id string, in Inputs) (*Result, error) {
	op, err := Lookup(id)
	if err != nil {
		return nil, err
	}
	return Propagate(op, in)
}

func validate(in Inputs) error {
	fields := []struct {
		name string
		v    float64
	}{
		{ParamX, in.X}, {ParamDX, in.DX}, {ParamY, in.Y}, {ParamDY, in.DY}, {ParamN, in.N}, {ParamA, in.A},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return calcerr.New(calcerr.InvalidInput, "%s must be a finite number", f.name)
		}
	}
	if in.DX < 0 || in.DY < 0 {
		return calcerr.New(calcerr.InvalidInput, "uncertainties must be non-negative")
	}
	return nil
}

// evaluate returns the value of op and its gradient with respect to the
// uncertain inputs. The switch is exhaustive over the catalogue.
func evaluate(op Operation, in Inputs) (float64, []Partial, error) {
	x, dx, y, dy := in.X, in.DX, in.Y, in.DY

	switch op {
	case OpSuma:
		return x + y, []Partial{
			{ParamX, 1, dx},
			{ParamY, 1, dy},
		}, nil

	case OpResta:
		return x - y, []Partial{
			{ParamX, 1, dx},
			{ParamY, -1, dy},
		}, nil

	case OpProducto:
		return x * y, []Partial{
			{ParamX, y, dx},
			{ParamY, x, dy},
		}, nil

	case OpDivision:
		if y == 0 {
			return 0, nil, calcerr.New(calcerr.DivisionByZero, "división por cero: y must be non-zero")
		}
		return x / y, []Partial{
			{ParamX, 1 / y, dx},
			{ParamY, -x / (y * y), dy},
		}, nil

	case OpPotencia:
		n := in.N
		d := 0.0
		if n != 0 {
			d = n * math.Pow(x, n-1)
		}
		return math.Pow(x, n), []Partial{{ParamX, d, dx}}, nil

	case OpConstante:
		return in.A * x, []Partial{{ParamX, in.A, dx}}, nil

	case OpExponente:
		ex := math.Exp(x)
		return ex, []Partial{{ParamX, ex, dx}}, nil

	case OpCos:
		return math.Cos(x), []Partial{{ParamX, -math.Sin(x), dx}}, nil

	case OpSin:
		return math.Sin(x), []Partial{{ParamX, math.Cos(x), dx}}, nil

	case OpLn:
		if x <= 0 {
			return 0, nil, calcerr.New(calcerr.DomainError, "ln requires x > 0, got %g", x)
		}
		return math.Log(x), []Partial{{ParamX, 1 / x, dx}}, nil

	case OpErrorPorcentual:
		theo, exp := x, y
		if theo == 0 {
			return 0, nil, calcerr.New(calcerr.DomainError, "the theoretical value must be non-zero")
		}
		absT := math.Abs(theo)
		// |T-E| has a kink at T = E; either one-sided slope gives the same magnitude.
		s := 1.0
		if theo < exp {
			s = -1
		}
		value := math.Abs(theo-exp) / absT * 100
		return value, []Partial{
			{ParamX, 100 * s * exp / (theo * absT), dx},
			{ParamY, -100 * s / absT, dy},
		}, nil
	}

	return 0, nil, calcerr.New(calcerr.UnknownOperation, "unknown operation %d", int(op))
}

// Strict is Propagate for callers that track which fields they were given.
// Any parameter op reads that is absent from supplied yields MissingParameter
// instead of being treated as 0.
func Strict(op Operation, in Inputs, supplied map[string]bool) (*Result, error) {
	if !op.valid() {
		return nil, calcerr.New(calcerr.UnknownOperation, "unknown operation %d", int(op))
	}
	if err := CheckParams(op, supplied); err != nil {
		return nil, err
	}
	return Propagate(op, in)
}
