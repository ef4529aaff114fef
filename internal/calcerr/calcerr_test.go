package calcerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := New(DomainError, "ln of non-positive value %g", -1.0)

	require.Error(t, err)
	assert.Equal(t, "ln of non-positive value -1", err.Error())
	assert.ErrorIs(t, err, ErrDomain)
	assert.NotErrorIs(t, err, ErrDivisionByZero)
}

func TestErrorIsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("fit failed: %w", New(SingularFit, "all x values identical"))

	assert.True(t, errors.Is(err, ErrSingularFit))

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, SingularFit, kind)
	assert.Equal(t, "SingularFit", kind.String())
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", New(InvalidInput, "bad"), http.StatusBadRequest},
		{"unknown operation", New(UnknownOperation, "bad"), http.StatusBadRequest},
		{"domain", New(DomainError, "bad"), http.StatusUnprocessableEntity},
		{"division", New(DivisionByZero, "bad"), http.StatusUnprocessableEntity},
		{"singular", New(SingularFit, "bad"), http.StatusUnprocessableEntity},
		{"insufficient", New(InsufficientData, "bad"), http.StatusUnprocessableEntity},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
