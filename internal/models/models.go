package models

import (
	"math"
	"strings"

	"github.com/kartoza/labcalc/internal/fitting"
	"github.com/kartoza/labcalc/internal/propagation"
	"github.com/kartoza/labcalc/internal/stats"
)

// CalculationRequest represents a propagation request. Fields the operation
// does not read may be omitted; absent numbers are taken as 0.
type CalculationRequest struct {
	Operation string   `json:"operation"`
	X         *float64 `json:"x"`
	DX        *float64 `json:"dx"`
	Y         *float64 `json:"y"`
	DY        *float64 `json:"dy"`
	N         *float64 `json:"n"`
	A         *float64 `json:"a"`
	// Gradient asks for the per-input breakdown of the uncertainty.
	Gradient bool `json:"gradient"`
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Inputs fills every absent field with 0.
func (r CalculationRequest) Inputs() propagation.Inputs {
	return propagation.Inputs{
		X:  orZero(r.X),
		DX: orZero(r.DX),
		Y:  orZero(r.Y),
		DY: orZero(r.DY),
		N:  orZero(r.N),
		A:  orZero(r.A),
	}
}

// Supplied reports which fields were present in the request.
func (r CalculationRequest) Supplied() map[string]bool {
	return map[string]bool{
		propagation.ParamX:  r.X != nil,
		propagation.ParamDX: r.DX != nil,
		propagation.ParamY:  r.Y != nil,
		propagation.ParamDY: r.DY != nil,
		propagation.ParamN:  r.N != nil,
		propagation.ParamA:  r.A != nil,
	}
}

// CalculationResponse contains a propagated measurement
type CalculationResponse struct {
	Operation   string                `json:"operation"`
	Value       float64               `json:"value"`
	Uncertainty float64               `json:"uncertainty"`
	Gradient    []propagation.Partial `json:"gradient,omitempty"`
}

// NewCalculationResponse converts an engine result. The gradient breakdown is
// only included when withGradient is set.
func NewCalculationResponse(res *propagation.Result, withGradient bool) CalculationResponse {
	out := CalculationResponse{
		Operation:   res.Operation.String(),
		Value:       Finite(res.Value),
		Uncertainty: Finite(res.Uncertainty),
	}
	if withGradient {
		out.Gradient = make([]propagation.Partial, len(res.Gradient))
		for i, p := range res.Gradient {
			out.Gradient[i] = propagation.Partial{Param: p.Param, Derivative: Finite(p.Derivative), Sigma: Finite(p.Sigma)}
		}
	}
	return out
}

// FitRequest represents a curve fit request
type FitRequest struct {
	X            []float64 `json:"x"`
	Y            []float64 `json:"y"`
	DX           []float64 `json:"dx"`
	DY           []float64 `json:"dy"`
	Model        string    `json:"model"`
	Title        string    `json:"title"`
	XLabel       string    `json:"xlabel"`
	YLabel       string    `json:"ylabel"`
	ErrorScaling string    `json:"error_scaling"`
}

// Series builds the fit input. Omitted uncertainty lists are taken as exact
// values; lists that are present must match x in length.
func (r FitRequest) Series() fitting.Series {
	s := fitting.Series{X: r.X, Y: r.Y, DX: r.DX, DY: r.DY}
	if s.DX == nil {
		s.DX = make([]float64, len(r.X))
	}
	if s.DY == nil {
		s.DY = make([]float64, len(r.X))
	}
	return s
}

// Meta returns the chart labels with defaults applied.
func (r FitRequest) Meta(m fitting.Model) FitMeta {
	meta := FitMeta{Title: r.Title, XLabel: r.XLabel, YLabel: r.YLabel}
	if meta.Title == "" {
		name := m.String()
		meta.Title = strings.ToUpper(name[:1]) + name[1:] + " Fit"
	}
	if meta.XLabel == "" {
		meta.XLabel = "X Axis"
	}
	if meta.YLabel == "" {
		meta.YLabel = "Y Axis"
	}
	return meta
}

// ParamValue is a fitted parameter keyed by name in FitStats.Params
type ParamValue struct {
	Value float64 `json:"value"`
	Error float64 `json:"error"`
}

// FitStats carries the fit quality and parameters. P0/P1 repeat the linear
// intercept and slope under their historical names and are omitted for other
// models.
type FitStats struct {
	Chi2         float64               `json:"chi2"`
	NDOF         int                   `json:"ndof"`
	Chi2NDOF     float64               `json:"chi2_ndof"`
	ModelType    string                `json:"model_type"`
	Converged    bool                  `json:"converged"`
	Iterations   int                   `json:"iterations"`
	Weighting    string                `json:"weighting"`
	ErrorScaling string                `json:"error_scaling"`
	Params       map[string]ParamValue `json:"params"`
	Covariance   [][]float64           `json:"covariance"`
	P0           *float64              `json:"p0,omitempty"`
	P1           *float64              `json:"p1,omitempty"`
	P0Error      *float64              `json:"p0_error,omitempty"`
	P1Error      *float64              `json:"p1_error,omitempty"`
}

// FitMeta echoes the chart labels
type FitMeta struct {
	Title  string `json:"title"`
	XLabel string `json:"xlabel"`
	YLabel string `json:"ylabel"`
}

// FitResponse contains everything a client needs to draw the fit
type FitResponse struct {
	Stats   FitStats      `json:"stats"`
	Curve   fitting.Curve `json:"curve"`
	Meta    FitMeta       `json:"meta"`
	Formula string        `json:"formula"`
}

// NewFitResponse converts an engine result.
func NewFitResponse(res *fitting.Result, meta FitMeta) FitResponse {
	st := FitStats{
		Chi2:         Finite(res.Chi2),
		NDOF:         res.NDOF,
		Chi2NDOF:     Finite(res.Chi2NDOF),
		ModelType:    res.Model.String(),
		Converged:    res.Converged,
		Iterations:   res.Iterations,
		Weighting:    res.Weighting.String(),
		ErrorScaling: res.ErrorScaling.String(),
		Params:       make(map[string]ParamValue, len(res.Params)),
		Covariance:   make([][]float64, len(res.Covariance)),
	}
	for _, p := range res.Params {
		st.Params[p.Name] = ParamValue{Value: Finite(p.Value), Error: Finite(p.Error)}
	}
	for i, row := range res.Covariance {
		st.Covariance[i] = FiniteSlice(row)
	}
	if res.Model == fitting.ModelLinear {
		slope, intercept := st.Params["a"], st.Params["b"]
		st.P0, st.P0Error = &intercept.Value, &intercept.Error
		st.P1, st.P1Error = &slope.Value, &slope.Error
	}

	return FitResponse{
		Stats: st,
		Curve: fitting.Curve{
			X: FiniteSlice(res.Curve.X),
			Y: FiniteSlice(res.Curve.Y),
		},
		Meta:    meta,
		Formula: res.Formula(),
	}
}

// GaussRequest holds a raw sample. Entries that are not numbers or numeric
// strings are ignored.
type GaussRequest struct {
	Values []any `json:"values"`
}

// Sample returns the numeric entries of the request.
func (r GaussRequest) Sample() []float64 {
	return stats.CleanAny(r.Values)
}

// GaussResponse is the sample summary with histogram and overlay data
type GaussResponse = stats.GaussResult

// NewGaussResponse sanitises an engine result for encoding.
func NewGaussResponse(res *stats.GaussResult) GaussResponse {
	out := *res
	out.Mean = Finite(res.Mean)
	out.StdDev = Finite(res.StdDev)
	out.Error = Finite(res.Error)
	out.Histogram.Edges = FiniteSlice(res.Histogram.Edges)
	out.Curve.X = FiniteSlice(res.Curve.X)
	out.Curve.Y = FiniteSlice(res.Curve.Y)
	out.Curve.Scale = Finite(res.Curve.Scale)
	return out
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Finite maps NaN and ±Inf to 0, since JSON cannot represent them.
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// FiniteSlice applies Finite to a copy of v.
func FiniteSlice(v []float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = Finite(x)
	}
	return out
}
