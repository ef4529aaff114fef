package fitting

import (
	"strings"

	"github.com/kartoza/labcalc/internal/calcerr"
)

// ErrorScaling selects how parameter uncertainties relate to fit quality.
type ErrorScaling int

const (
	// ErrorScalingAbsolute takes input uncertainties as absolute: parameter
	// errors come straight from the inverse normal matrix.
	ErrorScalingAbsolute ErrorScaling = iota
	// ErrorScalingChi2 additionally multiplies the covariance by chi2/ndof.
	ErrorScalingChi2
)

// String returns the wire name of the policy.
func (e ErrorScaling) String() string {
	if e == ErrorScalingChi2 {
		return "chi2"
	}

	return "absolute"
}

// ParseErrorScaling maps a policy name to an ErrorScaling. Empty selects
// ErrorScalingAbsolute.
func ParseErrorScaling(name string) (ErrorScaling, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "absolute":
		return ErrorScalingAbsolute, nil
	case "chi2", "scaled":
		return ErrorScalingChi2, nil
	}

	return 0, calcerr.New(calcerr.InvalidInput, "unknown error scaling %q (expected absolute or chi2)", name)
}

// Options controls the solver.
type Options struct {
	// MaxIterations bounds the weight/parameter refinement loop.
	MaxIterations int
	// Tolerance is the relative parameter change below which the fit has converged.
	Tolerance float64
	// ErrorScaling is the parameter uncertainty convention.
	ErrorScaling ErrorScaling
	// CurvePoints is the number of samples in the display curve.
	CurvePoints int
}

// DefaultOptions returns the solver defaults.
func DefaultOptions() Options {
	return Options{
		MaxIterations: 200,
		Tolerance:     1e-8,
		ErrorScaling:  ErrorScalingAbsolute,
		CurvePoints:   200,
	}
}

// Option configures a single fit.
type Option func(*Options)

// WithMaxIterations sets the iteration bound.
func WithMaxIterations(n int) Option {
	return func(o *Options) { o.MaxIterations = n }
}

// WithTolerance sets the relative convergence tolerance.
func WithTolerance(tol float64) Option {
	return func(o *Options) { o.Tolerance = tol }
}

// WithErrorScaling sets the parameter uncertainty convention.
func WithErrorScaling(s ErrorScaling) Option {
	return func(o *Options) { o.ErrorScaling = s }
}

// WithCurvePoints sets the number of samples in the display curve.
func WithCurvePoints(n int) Option {
	return func(o *Options) { o.CurvePoints = n }
}

func (o Options) validate() error {
	if o.MaxIterations < 1 {
		return calcerr.New(calcerr.InvalidInput, "max iterations must be at least 1")
	}
	if !(o.Tolerance > 0) {
		return calcerr.New(calcerr.InvalidInput, "tolerance must be positive")
	}
	if o.CurvePoints < 2 {
		return calcerr.New(calcerr.InvalidInput, "curve needs at least 2 points")
	}

	return nil
}

func applyOptions(opts []Option) (Options, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o, o.validate()
}

// CheckOptions reports whether opts, applied over the defaults, are usable.
func CheckOptions(opts ...Option) error {
	_, err := applyOptions(opts)
	return err
}
