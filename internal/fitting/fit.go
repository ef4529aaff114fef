// Package fitting estimates model parameters from samples with uncertainties on
// both axes by minimising
//
//	χ² = Σ w_i (y_i − f(x_i; θ))²,   w_i = 1 / (dy_i² + (f'(x_i; θ)·dx_i)²)
//
// (the effective variance method). The linear model is solved in closed form
// and re-solved as the slope-dependent weights change; the quadratic and
// exponential models use a bounded Levenberg–Marquardt iteration that
// re-evaluates the weights every step.
package fitting

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/kartoza/labcalc/internal/calcerr"
)

// Param is a fitted parameter with its standard error.
type Param struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Error float64 `json:"error"`
}

// Result is the outcome of a fit.
type Result struct {
	Model  Model
	Params []Param
	// Covariance is the parameter covariance matrix in coefficient order, after
	// the error scaling policy has been applied.
	Covariance [][]float64
	Chi2       float64
	NDOF       int
	// Chi2NDOF is Chi2/NDOF, or 0 when NDOF <= 0.
	Chi2NDOF     float64
	Converged    bool
	Iterations   int
	Weighting    Weighting
	ErrorScaling ErrorScaling
	N            int
	Curve        Curve
}

// Values returns the parameter values in coefficient order.
func (r *Result) Values() []float64 {
	out := make([]float64, len(r.Params))
	for i, p := range r.Params {
		out[i] = p.Value
	}
	return out
}

// Param returns the named parameter.
func (r *Result) Param(name string) (Param, bool) {
	for _, p := range r.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Formula renders the fitted model.
func (r *Result) Formula() string {
	return r.Model.Formula(r.Values())
}

// Fit estimates the parameters of m from s.
func Fit(s Series, m Model, opts ...Option) (*Result, error) {
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	if m < 0 || m >= numModels {
		return nil, calcerr.New(calcerr.InvalidInput, "unknown model %d", int(m))
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	n := s.Len()
	if n < m.MinPoints() {
		return nil, calcerr.New(calcerr.UnderdeterminedFit,
			"%s fit needs at least %d points, got %d", m, m.MinPoints(), n)
	}
	if distinctCount(s.X) < m.minDistinctX() {
		return nil, calcerr.New(calcerr.SingularFit,
			"%s fit needs at least %d distinct x values", m, m.minDistinctX())
	}

	mode := s.weighting()
	f := &fitter{s: s, m: m, mode: mode, opts: o, w: make([]float64, n)}

	var (
		theta []float64
		iters int
		conv  bool
	)
	if m == ModelLinear {
		theta, iters, conv, err = f.linear()
	} else {
		theta, err = f.seed()
		if err != nil {
			return nil, err
		}
		theta, iters, conv = f.levenbergMarquardt(theta)
	}
	if err != nil {
		return nil, err
	}

	return f.finish(theta, iters, conv)
}

type fitter struct {
	s    Series
	m    Model
	mode Weighting
	opts Options
	w    []float64
}

// chi2 evaluates the objective at theta with weights taken at theta.
func (f *fitter) chi2(theta []float64) float64 {
	f.s.weights(f.w, f.m, theta, f.mode)
	sum := 0.0
	for i, x := range f.s.X {
		r := f.s.Y[i] - f.m.Eval(x, theta)
		sum += f.w[i] * r * r
	}
	return sum
}

// linear solves the weighted straight line in closed form, refreshing the
// effective-variance weights with the new slope until the parameters settle.
func (f *fitter) linear() ([]float64, int, bool, error) {
	ones := make([]float64, len(f.w))
	for i := range ones {
		ones[i] = 1
	}
	a, b, err := weightedLine(f.s.X, f.s.Y, ones)
	if err != nil {
		return nil, 0, false, err
	}
	theta := []float64{a, b}

	for it := 1; it <= f.opts.MaxIterations; it++ {
		f.s.weights(f.w, f.m, theta, f.mode)
		a, b, err := weightedLine(f.s.X, f.s.Y, f.w)
		if err != nil {
			return nil, it, false, err
		}
		next := []float64{a, b}
		// Weights that do not depend on the slope give the optimum in one pass.
		if f.mode != WeightingEffectiveVariance || f.settled(theta, next) {
			return next, it, true, nil
		}
		theta = next
	}

	return theta, f.opts.MaxIterations, false, nil
}

// weightedLine fits y = a*x + b with weights w using centred sums.
func weightedLine(x, y, w []float64) (a, b float64, err error) {
	sw, xm, sxx, err := lineMoments(x, w)
	if err != nil {
		return 0, 0, err
	}
	var swy float64
	for i := range y {
		swy += w[i] * y[i]
	}
	ym := swy / sw

	var sxy float64
	for i := range x {
		sxy += w[i] * (x[i] - xm) * (y[i] - ym)
	}

	a = sxy / sxx
	b = ym - a*xm
	return a, b, nil
}

// lineMoments returns Σw, the weighted mean of x and the centred Σw·(x-x̄)².
// The spread must exceed what rounding alone leaves behind for x values
// that are all equal.
func lineMoments(x, w []float64) (sw, xm, sxx float64, err error) {
	var swx float64
	for i := range x {
		sw += w[i]
		swx += w[i] * x[i]
	}
	if !(sw > 0) {
		return 0, 0, 0, calcerr.New(calcerr.SingularFit, "all points have zero weight")
	}
	xm = swx / sw

	for i := range x {
		dx := x[i] - xm
		sxx += w[i] * dx * dx
	}
	ulp := math.Nextafter(math.Abs(xm), math.Inf(1)) - math.Abs(xm)
	eps := float64(len(x)) * ulp
	if !(sxx > sw*eps*eps) {
		return 0, 0, 0, calcerr.New(calcerr.SingularFit, "x values have no spread; the slope is undetermined")
	}
	return sw, xm, sxx, nil
}

// lineCovariance is the inverse of the straight-line normal matrix written
// in centred sums, which stays accurate when |x̄| dwarfs the spread of x.
func lineCovariance(x, w []float64) (*mat.SymDense, bool) {
	sw, xm, sxx, err := lineMoments(x, w)
	if err != nil {
		return nil, false
	}
	return mat.NewSymDense(2, []float64{
		1 / sxx, -xm / sxx,
		-xm / sxx, 1/sw + xm*xm/sxx,
	}), true
}

// seed returns the starting point of the iterative solve.
func (f *fitter) seed() ([]float64, error) {
	switch f.m {
	case ModelQuadratic:
		return polySeed(f.s.X, f.s.Y)
	case ModelExponential:
		return expSeed(f.s.X, f.s.Y)
	}
	return nil, calcerr.New(calcerr.InvalidInput, "model %s has no iterative seed", f.m)
}

// polySeed is the unweighted least-squares parabola.
func polySeed(x, y []float64) ([]float64, error) {
	a := mat.NewSymDense(3, nil)
	g := mat.NewVecDense(3, nil)
	row := make([]float64, 3)
	for i := range x {
		ModelQuadratic.Gradient(row, x[i], nil)
		for j := 0; j < 3; j++ {
			g.SetVec(j, g.AtVec(j)+row[j]*y[i])
			for k := j; k < 3; k++ {
				a.SetSym(j, k, a.At(j, k)+row[j]*row[k])
			}
		}
	}
	theta, ok := solveSym(a, g)
	if !ok {
		return nil, calcerr.New(calcerr.SingularFit, "quadratic design matrix is singular")
	}
	return theta, nil
}

// expSeed fits ln(y) = ln(a) + b*x on the points with y > 0.
func expSeed(x, y []float64) ([]float64, error) {
	var px, py, ones []float64
	for i := range x {
		if y[i] > 0 {
			px = append(px, x[i])
			py = append(py, math.Log(y[i]))
			ones = append(ones, 1)
		}
	}
	if len(px) < 2 {
		return nil, calcerr.New(calcerr.InvalidDomain,
			"exponential fit needs at least 2 points with y > 0, got %d", len(px))
	}

	b, lnA, err := weightedLine(px, py, ones)
	if err != nil {
		// Positive points share one x; start flat through their mean.
		sum := 0.0
		for _, v := range py {
			sum += math.Exp(v)
		}
		return []float64{sum / float64(len(py)), 0}, nil
	}
	return []float64{math.Exp(lnA), b}, nil
}

// normal builds JᵀWJ and JᵀWr at theta using the weights already in f.w.
func (f *fitter) normal(theta []float64) (*mat.SymDense, *mat.VecDense) {
	p := f.m.NumParams()
	a := mat.NewSymDense(p, nil)
	g := mat.NewVecDense(p, nil)
	row := make([]float64, p)
	for i, x := range f.s.X {
		f.m.Gradient(row, x, theta)
		r := f.s.Y[i] - f.m.Eval(x, theta)
		wi := f.w[i]
		for j := 0; j < p; j++ {
			g.SetVec(j, g.AtVec(j)+wi*row[j]*r)
			for k := j; k < p; k++ {
				a.SetSym(j, k, a.At(j, k)+wi*row[j]*row[k])
			}
		}
	}
	return a, g
}

// levenbergMarquardt refines theta for at most MaxIterations steps. It
// returns the best iterate, the number of steps taken and whether the step
// size dropped below the tolerance.
func (f *fitter) levenbergMarquardt(theta []float64) ([]float64, int, bool) {
	const maxTries = 24

	p := len(theta)
	best := f.chi2(theta)
	lambda := 1e-3

	for it := 1; it <= f.opts.MaxIterations; it++ {
		f.s.weights(f.w, f.m, theta, f.mode)
		a, g := f.normal(theta)

		accepted := false
		for try := 0; try < maxTries; try++ {
			damped := mat.NewSymDense(p, nil)
			damped.CopySym(a)
			for j := 0; j < p; j++ {
				damped.SetSym(j, j, a.At(j, j)*(1+lambda))
			}

			step, ok := solveSym(damped, g)
			if !ok {
				lambda *= 10
				continue
			}

			trial := make([]float64, p)
			for j := range trial {
				trial[j] = theta[j] + step[j]
			}
			c := f.chi2(trial)
			if math.IsNaN(c) || math.IsInf(c, 0) || c > best {
				lambda *= 10
				continue
			}

			done := f.settled(theta, trial)
			theta, best = trial, c
			lambda = math.Max(lambda/10, 1e-12)
			accepted = true
			if done {
				return theta, it, true
			}
			break
		}

		// No damping level lowers χ²: theta is a minimum to working precision.
		if !accepted {
			return theta, it, true
		}
	}

	return theta, f.opts.MaxIterations, false
}

// settled reports whether every parameter moved by less than the relative
// tolerance between prev and next.
func (f *fitter) settled(prev, next []float64) bool {
	tol := f.opts.Tolerance
	for j := range prev {
		if math.Abs(next[j]-prev[j]) > tol*(math.Abs(next[j])+tol) {
			return false
		}
	}
	return true
}

// finish computes χ², the covariance at theta and the display curve.
func (f *fitter) finish(theta []float64, iters int, converged bool) (*Result, error) {
	n := f.s.Len()
	p := f.m.NumParams()

	chi2 := f.chi2(theta) // leaves the weights at theta in f.w
	var cov *mat.SymDense
	var ok bool
	if f.m == ModelLinear {
		cov, ok = lineCovariance(f.s.X, f.w)
	} else {
		a, _ := f.normal(theta)
		cov, ok = invertSym(a)
	}
	if !ok {
		return nil, calcerr.New(calcerr.SingularFit, "%s normal matrix is singular at the optimum", f.m)
	}

	ndof := n - p
	chi2ndof := 0.0
	if ndof > 0 {
		chi2ndof = chi2 / float64(ndof)
	}

	// Without any input uncertainty the residual scatter is the only error estimate.
	scaling := f.opts.ErrorScaling
	if f.mode == WeightingUnweighted {
		scaling = ErrorScalingChi2
	}
	factor := 1.0
	if scaling == ErrorScalingChi2 && ndof > 0 {
		factor = chi2ndof
	}

	names := f.m.ParamNames()
	res := &Result{
		Model:        f.m,
		Params:       make([]Param, p),
		Covariance:   make([][]float64, p),
		Chi2:         chi2,
		NDOF:         ndof,
		Chi2NDOF:     chi2ndof,
		Converged:    converged,
		Iterations:   iters,
		Weighting:    f.mode,
		ErrorScaling: scaling,
		N:            n,
	}
	for j := 0; j < p; j++ {
		res.Covariance[j] = make([]float64, p)
		for k := 0; k < p; k++ {
			res.Covariance[j][k] = cov.At(j, k) * factor
		}
		res.Params[j] = Param{
			Name:  names[j],
			Value: theta[j],
			Error: math.Sqrt(math.Max(res.Covariance[j][j], 0)),
		}
	}
	res.Curve = SampleCurve(f.m, theta, f.s.X, f.opts.CurvePoints)

	return res, nil
}

// maxCond bounds the condition number of the diagonally scaled normal matrix.
const maxCond = 1e14

// scaled returns D·a·D with D = diag(1/sqrt(a_ii)), and the diagonal of D.
func scaled(a *mat.SymDense) (*mat.SymDense, []float64, bool) {
	n := a.SymmetricDim()
	d := make([]float64, n)
	for i := range d {
		aii := a.At(i, i)
		if !(aii > 0) || math.IsInf(aii, 0) {
			return nil, nil, false
		}
		d[i] = 1 / math.Sqrt(aii)
	}
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, a.At(i, j)*d[i]*d[j])
		}
	}
	return s, d, true
}

// solveSym solves a·x = b for symmetric positive definite a.
func solveSym(a *mat.SymDense, b *mat.VecDense) ([]float64, bool) {
	s, d, ok := scaled(a)
	if !ok {
		return nil, false
	}
	var chol mat.Cholesky
	if !chol.Factorize(s) || chol.Cond() > maxCond {
		return nil, false
	}
	n := len(d)
	rhs := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		rhs.SetVec(i, b.AtVec(i)*d[i])
	}
	var sol mat.VecDense
	if err := chol.SolveVecTo(&sol, rhs); err != nil {
		return nil, false
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = sol.AtVec(i) * d[i]
	}
	return out, true
}

// invertSym inverts a symmetric positive definite matrix.
func invertSym(a *mat.SymDense) (*mat.SymDense, bool) {
	s, d, ok := scaled(a)
	if !ok {
		return nil, false
	}
	var chol mat.Cholesky
	if !chol.Factorize(s) || chol.Cond() > maxCond {
		return nil, false
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, false
	}
	n := len(d)
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, inv.At(i, j)*d[i]*d[j])
		}
	}
	return out, true
}
