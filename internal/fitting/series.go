package fitting

import (
	"math"
	"sort"

	"github.com/kartoza/labcalc/internal/calcerr"
)

// Series is a set of paired samples (X[i] ± DX[i], Y[i] ± DY[i]).
type Series struct {
	X  []float64
	Y  []float64
	DX []float64
	DY []float64
}

// Len returns the number of sample points.
func (s Series) Len() int {
	return len(s.X)
}

// Validate checks the structural invariants: equal non-zero lengths, finite
// values and non-negative uncertainties.
func (s Series) Validate() error {
	n := len(s.X)
	if n == 0 {
		return calcerr.New(calcerr.InvalidInput, "no data points")
	}
	if len(s.Y) != n || len(s.DX) != n || len(s.DY) != n {
		return calcerr.New(calcerr.InvalidInput,
			"input lists must have same length (x=%d, y=%d, dx=%d, dy=%d)", n, len(s.Y), len(s.DX), len(s.DY))
	}
	for i := 0; i < n; i++ {
		for _, v := range [...]float64{s.X[i], s.Y[i], s.DX[i], s.DY[i]} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return calcerr.New(calcerr.InvalidInput, "point %d contains a non-finite value", i)
			}
		}
		if s.DX[i] < 0 || s.DY[i] < 0 {
			return calcerr.New(calcerr.InvalidInput, "point %d has a negative uncertainty", i)
		}
	}

	return nil
}

// Weighting describes how point weights were derived.
type Weighting int

const (
	// WeightingUnweighted is used when every uncertainty is zero.
	WeightingUnweighted Weighting = iota
	// WeightingYOnly is used when only y carries uncertainty.
	WeightingYOnly
	// WeightingEffectiveVariance projects x uncertainty through the model slope.
	WeightingEffectiveVariance
)

// String returns the wire name of the weighting.
func (w Weighting) String() string {
	switch w {
	case WeightingYOnly:
		return "y_only"
	case WeightingEffectiveVariance:
		return "effective_variance"
	}

	return "unweighted"
}

func (s Series) weighting() Weighting {
	anyDX, anyDY := false, false
	for i := range s.X {
		anyDX = anyDX || s.DX[i] > 0
		anyDY = anyDY || s.DY[i] > 0
	}
	switch {
	case anyDX:
		return WeightingEffectiveVariance
	case anyDY:
		return WeightingYOnly
	}

	return WeightingUnweighted
}

func distinctCount(v []float64) int {
	sorted := append([]float64(nil), v...)
	sort.Float64s(sorted)
	n := 0
	for i, x := range sorted {
		if i == 0 || x != sorted[i-1] {
			n++
		}
	}

	return n
}

// weights fills w with the inverse effective variances at theta. Points whose
// effective variance is zero get the largest finite weight in the series. If
// no point has a positive variance every weight is 1.
func (s Series) weights(w []float64, m Model, theta []float64, mode Weighting) {
	if mode == WeightingUnweighted {
		for i := range w {
			w[i] = 1
		}
		return
	}

	minVar := math.Inf(1)
	for i := range w {
		v := s.DY[i] * s.DY[i]
		if mode == WeightingEffectiveVariance && s.DX[i] > 0 {
			p := m.DerivX(s.X[i], theta) * s.DX[i]
			v += p * p
		}
		w[i] = v
		if v > 0 && v < minVar {
			minVar = v
		}
	}

	if math.IsInf(minVar, 1) {
		for i := range w {
			w[i] = 1
		}
		return
	}
	for i, v := range w {
		if v <= 0 || math.IsNaN(v) {
			v = minVar
		}
		w[i] = 1 / v
	}
}
