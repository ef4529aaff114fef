package fitting

import (
	"fmt"
	"math"
	"strings"

	"github.com/kartoza/labcalc/internal/calcerr"
)

// Model represents one of the supported fit model families.
type Model int

const (
	// ModelLinear represents y = a*x + b
	ModelLinear Model = iota
	// ModelQuadratic represents y = a*x² + b*x + c
	ModelQuadratic
	// ModelExponential represents y = a*e^(b*x)
	ModelExponential

	numModels
)

// modelNames maps Model to the name used on the wire.
var modelNames = map[Model]string{
	ModelLinear:      "linear",
	ModelQuadratic:   "quadratic",
	ModelExponential: "exponential",
}

var modelParams = map[Model][]string{
	ModelLinear:      {"a", "b"},
	ModelQuadratic:   {"a", "b", "c"},
	ModelExponential: {"a", "b"},
}

// String returns the wire name of the model.
func (m Model) String() string {
	if name, ok := modelNames[m]; ok {
		return name
	}

	return "unknown"
}

// ParseModel maps a model name to a Model. An empty name selects the linear
// model, matching the API default.
func ParseModel(name string) (Model, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ModelLinear, nil
	}
	for m, n := range modelNames {
		if n == name {
			return m, nil
		}
	}

	return 0, calcerr.New(calcerr.InvalidInput, "unknown model %q (expected linear, quadratic or exponential)", name)
}

// ParamNames returns the parameter names in coefficient order.
func (m Model) ParamNames() []string {
	names := modelParams[m]
	out := make([]string, len(names))
	copy(out, names)

	return out
}

// NumParams returns the number of free parameters p.
func (m Model) NumParams() int {
	return len(modelParams[m])
}

// MinPoints returns the smallest series length the model accepts.
func (m Model) MinPoints() int {
	if m == ModelLinear {
		return 2
	}

	return 3
}

// minDistinctX is the number of distinct abscissae needed for a non-singular
// design matrix.
func (m Model) minDistinctX() int {
	if m == ModelQuadratic {
		return 3
	}

	return 2
}

// Eval computes f(x; theta).
func (m Model) Eval(x float64, theta []float64) float64 {
	switch m {
	case ModelLinear:
		return theta[0]*x + theta[1]
	case ModelQuadratic:
		return (theta[0]*x+theta[1])*x + theta[2]
	case ModelExponential:
		return theta[0] * math.Exp(theta[1]*x)
	}

	return math.NaN()
}

// DerivX computes ∂f/∂x at x, the local slope used to project x uncertainty.
func (m Model) DerivX(x float64, theta []float64) float64 {
	switch m {
	case ModelLinear:
		return theta[0]
	case ModelQuadratic:
		return 2*theta[0]*x + theta[1]
	case ModelExponential:
		return theta[0] * theta[1] * math.Exp(theta[1]*x)
	}

	return math.NaN()
}

// Gradient writes ∂f/∂theta_j at x into dst, which must have NumParams entries.
func (m Model) Gradient(dst []float64, x float64, theta []float64) {
	switch m {
	case ModelLinear:
		dst[0] = x
		dst[1] = 1
	case ModelQuadratic:
		dst[0] = x * x
		dst[1] = x
		dst[2] = 1
	case ModelExponential:
		e := math.Exp(theta[1] * x)
		dst[0] = e
		dst[1] = theta[0] * x * e
	}
}

// Formula renders the fitted model for display.
func (m Model) Formula(theta []float64) string {
	switch m {
	case ModelLinear:
		return fmt.Sprintf("y = %.3e·x + %.3e", theta[0], theta[1])
	case ModelQuadratic:
		return fmt.Sprintf("y = %.3e·x² + %.3e·x + %.3e", theta[0], theta[1], theta[2])
	case ModelExponential:
		return fmt.Sprintf("y = %.3e·e^(%.3e·x)", theta[0], theta[1])
	}

	return ""
}

// ModelInfo describes a model for listing.
type ModelInfo struct {
	Name      string   `json:"name"`
	Params    []string `json:"params"`
	MinPoints int      `json:"min_points"`
}

// Models lists every supported model.
func Models() []ModelInfo {
	out := make([]ModelInfo, 0, numModels)
	for m := Model(0); m < numModels; m++ {
		out = append(out, ModelInfo{Name: m.String(), Params: m.ParamNames(), MinPoints: m.MinPoints()})
	}

	return out
}
