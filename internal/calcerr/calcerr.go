// Package calcerr defines the error taxonomy shared by the computation engines.
//
// Every engine failure is a *Error carrying a Kind. Callers compare with
// errors.Is against the sentinel values (ErrDomain, ErrSingularFit, ...), and the
// HTTP layer maps a Kind to a status code with HTTPStatus.
package calcerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a computation failure
type Kind int

const (
	InvalidInput Kind = iota
	UnknownOperation
	MissingParameter
	DomainError
	DivisionByZero
	UnderdeterminedFit
	SingularFit
	InvalidDomain
	InsufficientData
)

var kindNames = map[Kind]string{
	InvalidInput:       "InvalidInput",
	UnknownOperation:   "UnknownOperation",
	MissingParameter:   "MissingParameter",
	DomainError:        "DomainError",
	DivisionByZero:     "DivisionByZero",
	UnderdeterminedFit: "UnderdeterminedFit",
	SingularFit:        "SingularFit",
	InvalidDomain:      "InvalidDomain",
	InsufficientData:   "InsufficientData",
}

// String returns the taxonomy name of the kind
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Error is a classified computation failure with a human-readable message
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

// Is reports whether target is an *Error of the same Kind, so that sentinel
// comparisons work regardless of the message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an error of the given kind
func New(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is
var (
	ErrInvalidInput       = &Error{Kind: InvalidInput, Msg: "invalid input"}
	ErrUnknownOperation   = &Error{Kind: UnknownOperation, Msg: "unknown operation"}
	ErrMissingParameter   = &Error{Kind: MissingParameter, Msg: "missing parameter"}
	ErrDomain             = &Error{Kind: DomainError, Msg: "domain error"}
	ErrDivisionByZero     = &Error{Kind: DivisionByZero, Msg: "division by zero"}
	ErrUnderdeterminedFit = &Error{Kind: UnderdeterminedFit, Msg: "underdetermined fit"}
	ErrSingularFit        = &Error{Kind: SingularFit, Msg: "singular fit"}
	ErrInvalidDomain      = &Error{Kind: InvalidDomain, Msg: "invalid domain"}
	ErrInsufficientData   = &Error{Kind: InsufficientData, Msg: "insufficient data"}
)

// KindOf extracts the Kind from err. The second return is false when err is not
// a classified computation error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// HTTPStatus maps an error to the status code returned by the API. Malformed
// requests are 400, well-formed requests that cannot be computed are 422, and
// anything unclassified is a 500.
func HTTPStatus(err error) int {
	kind, ok := KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case InvalidInput, UnknownOperation, MissingParameter:
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}
