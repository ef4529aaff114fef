package fitting

import (
	"gonum.org/v1/gonum/floats"
)

// Curve is a sampled model curve for plotting.
type Curve struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// curveMargin is the fraction of the data range added on each side.
const curveMargin = 0.1

// SampleCurve evaluates m at n evenly spaced points spanning the range of xs
// widened by 10% on each side (by 1 when every x is equal).
func SampleCurve(m Model, theta, xs []float64, n int) Curve {
	if len(xs) == 0 || n < 2 {
		return Curve{}
	}
	lo, hi := floats.Min(xs), floats.Max(xs)
	margin := curveMargin * (hi - lo)
	if hi == lo {
		margin = 1
	}

	c := Curve{
		X: floats.Span(make([]float64, n), lo-margin, hi+margin),
		Y: make([]float64, n),
	}
	for i, x := range c.X {
		c.Y[i] = m.Eval(x, theta)
	}
	return c
}
