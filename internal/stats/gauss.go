// Package stats describes a single sample of repeated measurements: mean,
// sample standard deviation, standard error of the mean, plus histogram and
// normal-curve data for charting.
package stats

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kartoza/labcalc/internal/calcerr"
)

const (
	maxBins     = 10
	curvePoints = 51
)

// Histogram holds uniform bins over [min, max]. Edges has one more entry than
// Counts; the last bin includes the maximum.
type Histogram struct {
	Edges  []float64 `json:"edges"`
	Counts []int     `json:"counts"`
}

// OverlayCurve is the normal density N(mean, stdev) sampled over
// [min-stdev, max+stdev] and multiplied by Scale so its peak matches the
// tallest bin. It is a display aid, not a statistical quantity.
type OverlayCurve struct {
	X     []float64 `json:"x"`
	Y     []float64 `json:"y"`
	Scale float64   `json:"scale"`
}

// GaussResult summarises a sample.
type GaussResult struct {
	Mean      float64      `json:"mean"`
	StdDev    float64      `json:"stdev"`
	Error     float64      `json:"error"`
	N         int          `json:"n"`
	Min       float64      `json:"min"`
	Max       float64      `json:"max"`
	Histogram Histogram    `json:"histogram"`
	Curve     OverlayCurve `json:"curve"`
}

// Clean drops NaN and infinite entries.
func Clean(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// CleanAny keeps the numeric entries of a decoded JSON array: numbers and
// strings that parse as finite numbers. Everything else is discarded.
func CleanAny(values []any) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		switch t := v.(type) {
		case float64:
			out = append(out, t)
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
			if err == nil {
				out = append(out, f)
			}
		}
	}
	return Clean(out)
}

// Describe computes the summary of values after discarding non-finite entries.
func Describe(values []float64) (*GaussResult, error) {
	data := Clean(values)
	if len(data) < 2 {
		return nil, calcerr.New(calcerr.InsufficientData,
			"at least 2 numeric values are needed, got %d", len(data))
	}
	sort.Float64s(data)

	n := len(data)
	if math.IsInf(data[n-1]-data[0], 0) {
		return nil, calcerr.New(calcerr.DomainError,
			"the range %g to %g is too wide to summarise", data[0], data[n-1])
	}
	mean, sd := stat.MeanStdDev(data, nil)
	if math.IsInf(mean, 0) || math.IsInf(sd, 0) || math.IsNaN(mean) || math.IsNaN(sd) {
		return nil, calcerr.New(calcerr.DomainError,
			"the sample overflows when summed; rescale the values")
	}
	res := &GaussResult{
		Mean:   mean,
		StdDev: sd,
		Error:  sd / math.Sqrt(float64(n)),
		N:      n,
		Min:    data[0],
		Max:    data[n-1],
	}
	res.Histogram = NewHistogram(data)
	res.Curve = overlay(res)
	return res, nil
}

// BinCount is min(ceil(sqrt(n)), 10).
func BinCount(n int) int {
	if n < 1 {
		return 0
	}
	return min(int(math.Ceil(math.Sqrt(float64(n)))), maxBins)
}

// NewHistogram bins sorted data uniformly between its extremes. A zero range
// is widened to 1, or to one ulp where 1 is lost to rounding, so that the
// bins have width. When the range spans too few representable values for
// distinct edges, fewer bins are used.
func NewHistogram(sorted []float64) Histogram {
	n := len(sorted)
	if n == 0 {
		return Histogram{}
	}
	lo, hi := sorted[0], sorted[n-1]
	if hi == lo {
		hi = lo + 1
		if hi == lo {
			hi = math.Nextafter(lo, math.Inf(1))
		}
	}

	bins := BinCount(n)
	edges := floats.Span(make([]float64, bins+1), lo, hi)
	for bins > 1 && !increasing(edges) {
		bins--
		edges = floats.Span(make([]float64, bins+1), lo, hi)
	}

	// stat.Histogram bins are half-open; nudge the top divider so the
	// maximum lands in the last bin.
	dividers := append([]float64(nil), edges...)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	weighted := stat.Histogram(nil, dividers, sorted, nil)
	counts := make([]int, bins)
	for i, c := range weighted {
		counts[i] = int(c)
	}
	return Histogram{Edges: edges, Counts: counts}
}

func increasing(edges []float64) bool {
	for i := 1; i < len(edges); i++ {
		if !(edges[i] > edges[i-1]) {
			return false
		}
	}
	return true
}

func overlay(res *GaussResult) OverlayCurve {
	lo, hi := res.Min-res.StdDev, res.Max+res.StdDev
	if !(res.StdDev > 0) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return OverlayCurve{}
	}
	dist := distuv.Normal{Mu: res.Mean, Sigma: res.StdDev}

	maxCount := 0
	for _, c := range res.Histogram.Counts {
		maxCount = max(maxCount, c)
	}
	scale := float64(maxCount) / dist.Prob(res.Mean)

	xs := floats.Span(make([]float64, curvePoints), lo, hi)
	ys := make([]float64, curvePoints)
	for i, x := range xs {
		ys[i] = dist.Prob(x) * scale
	}
	return OverlayCurve{X: xs, Y: ys, Scale: scale}
}
