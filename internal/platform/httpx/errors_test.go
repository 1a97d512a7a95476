package httpx

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRespondErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{ErrMissingFields, http.StatusBadRequest},
		{ErrValidation, http.StatusBadRequest},
		{ErrUserAlreadyExists, http.StatusBadRequest},
		{ErrPasswordMismatch, http.StatusBadRequest},
		{ErrOAuthPasswordChange, http.StatusBadRequest},
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrAccountNotActive, http.StatusForbidden},
		{ErrForbidden, http.StatusForbidden},
		{ErrNotFound, http.StatusNotFound},
		{ErrBackendUnavailable, http.StatusBadGateway},
		{ErrStoreUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("unexpected"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		RespondError(rec, tt.err)
		assert.Equal(t, tt.status, rec.Code, "error %v", tt.err)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	}
}

func TestRespondErrorWrappedSentinel(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, fmt.Errorf("%w: pool closed", ErrStoreUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	// A store failure must never read as a not-found.
	assert.NotContains(t, rec.Body.String(), "Not Found")
}
