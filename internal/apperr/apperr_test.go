package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("boom"), CodeInternal},
		{"typed", NotFound("missing"), CodeNotFound},
		{"wrapped typed", fmt.Errorf("load: %w", Validation("bad")), CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(CodeUnauthorized))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(CodeForbidden))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(CodeTenantIsolation))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(CodeValidation))
	assert.Equal(t, http.StatusConflict, HTTPStatus(CodeInsufficientStock))
	assert.Equal(t, http.StatusConflict, HTTPStatus(CodeAlreadyConsumed))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(CodeRateLimited))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(CodeTransient))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(CodeContextMissing))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus("SOMETHING_ELSE"))
}

func TestForbiddenDetails(t *testing.T) {
	err := Forbidden("orders.create", "viewer")
	assert.Equal(t, "orders.create", err.Details["required"])
	assert.Equal(t, "viewer", err.Details["actual_role"])
}

func TestWithCopiesDetails(t *testing.T) {
	base := NotFound("missing")
	withID := base.With("id", 7)

	assert.Nil(t, base.Details)
	assert.Equal(t, 7, withID.Details["id"])
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Transient("provider unavailable", cause)

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "TRANSIENT")
}
