package propagation

import (
	"strings"

	"github.com/kartoza/labcalc/internal/calcerr"
)

// Operation identifies one entry of the fixed operation catalogue.
type Operation int

const (
	// OpSuma is x + y
	OpSuma Operation = iota
	// OpResta is x - y
	OpResta
	// OpProducto is x * y
	OpProducto
	// OpDivision is x / y
	OpDivision
	// OpPotencia is x^n with n exact
	OpPotencia
	// OpConstante is a * x with a exact
	OpConstante
	// OpExponente is e^x
	OpExponente
	// OpCos is cos(x), x in radians
	OpCos
	// OpSin is sin(x), x in radians
	OpSin
	// OpLn is the natural logarithm of x
	OpLn
	// OpErrorPorcentual is |T - E| / |T| * 100 with T = x (theoretical) and E = y (experimental)
	OpErrorPorcentual

	numOperations
)

// Parameter names accepted by the catalogue
const (
	ParamX  = "x"
	ParamDX = "dx"
	ParamY  = "y"
	ParamDY = "dy"
	ParamN  = "n"
	ParamA  = "a"
)

type operationInfo struct {
	id     string
	label  string
	params []string
}

var operations = [numOperations]operationInfo{
	OpSuma:            {"suma", "Suma (x + y)", []string{ParamX, ParamDX, ParamY, ParamDY}},
	OpResta:           {"resta", "Resta (x − y)", []string{ParamX, ParamDX, ParamY, ParamDY}},
	OpProducto:        {"producto", "Producto (x · y)", []string{ParamX, ParamDX, ParamY, ParamDY}},
	OpDivision:        {"division", "División (x / y)", []string{ParamX, ParamDX, ParamY, ParamDY}},
	OpPotencia:        {"potencia", "Potencia (xⁿ)", []string{ParamN, ParamX, ParamDX}},
	OpConstante:       {"constante", "Constante (a · x)", []string{ParamA, ParamX, ParamDX}},
	OpExponente:       {"exponente", "Exponente (eˣ)", []string{ParamX, ParamDX}},
	OpCos:             {"cos", "Coseno cos(x)", []string{ParamX, ParamDX}},
	OpSin:             {"sin", "Seno sin(x)", []string{ParamX, ParamDX}},
	OpLn:              {"ln", "Log Natural ln(x)", []string{ParamX, ParamDX}},
	OpErrorPorcentual: {"error_porcentual", "Error porcentual |T − E| / |T| · 100", []string{ParamX, ParamDX, ParamY, ParamDY}},
}

var operationByID = func() map[string]Operation {
	m := make(map[string]Operation, numOperations)
	for op := Operation(0); op < numOperations; op++ {
		m[operations[op].id] = op
	}
	return m
}()

// String returns the stable id of the operation
func (op Operation) String() string {
	if !op.valid() {
		return "unknown"
	}
	return operations[op].id
}

// Label returns the display name of the operation
func (op Operation) Label() string {
	if !op.valid() {
		return ""
	}
	return operations[op].label
}

// Params returns the parameter names the operation reads, in display order.
func (op Operation) Params() []string {
	if !op.valid() {
		return nil
	}
	out := make([]string, len(operations[op].params))
	copy(out, operations[op].params)
	return out
}

func (op Operation) valid() bool {
	return op >= 0 && op < numOperations
}

// Lookup resolves an operation id. Ids are matched case-insensitively and
// with surrounding whitespace ignored.
func Lookup(id string) (Operation, error) {
	op, ok := operationByID[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return 0, calcerr.New(calcerr.UnknownOperation, "unknown operation %q", id)
	}
	return op, nil
}

// OperationInfo describes a catalogue entry for listing
type OperationInfo struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Params []string `json:"params"`
}

// Catalogue lists every operation in display order
func Catalogue() []OperationInfo {
	out := make([]OperationInfo, 0, numOperations)
	for op := Operation(0); op < numOperations; op++ {
		out = append(out, OperationInfo{ID: op.String(), Name: op.Label(), Params: op.Params()})
	}
	return out
}

// CheckParams returns a MissingParameter error when supplied lacks any of the
// parameters op reads. Callers that apply the zero-default policy never need it.
func CheckParams(op Operation, supplied map[string]bool) error {
	var missing []string
	for _, p := range op.Params() {
		if !supplied[p] {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return calcerr.New(calcerr.MissingParameter, "operation %s requires %s", op, strings.Join(missing, ", "))
	}
	return nil
}
