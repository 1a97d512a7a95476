// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors shared across the gateway's domain layer.
var (
	// ErrMissingFields indicates an incomplete client request body.
	ErrMissingFields = errors.New("missing required fields")
	// ErrUserAlreadyExists indicates a registration or email-change collision.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// callers cannot distinguish the two.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrAccountNotActive indicates a suspended or terminated account.
	ErrAccountNotActive = errors.New("account is suspended or terminated")
	// ErrPasswordMismatch indicates the supplied current password is wrong.
	ErrPasswordMismatch = errors.New("current password is incorrect")
	// ErrOAuthPasswordChange indicates a password change attempt on an
	// account that has no local password.
	ErrOAuthPasswordChange = errors.New("cannot change password for OAuth users")
	// ErrStoreUnavailable indicates the user store could not be reached.
	ErrStoreUnavailable = errors.New("user store unavailable")
	// ErrBackendUnavailable indicates the sentiment backend could not be reached.
	ErrBackendUnavailable = errors.New("sentiment backend unavailable")

	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("resource not found")
	// ErrUnauthorized indicates a missing or invalid session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the session lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation indicates request validation failed.
	ErrValidation = errors.New("validation failed")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrMissingFields):
		Problem(w, http.StatusBadRequest, "Missing Fields", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrUserAlreadyExists):
		Problem(w, http.StatusBadRequest, "User Already Exists", err.Error())
	case errors.Is(err, ErrPasswordMismatch):
		Problem(w, http.StatusBadRequest, "Password Mismatch", err.Error())
	case errors.Is(err, ErrOAuthPasswordChange):
		Problem(w, http.StatusBadRequest, "Password Change Not Allowed", err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Invalid Credentials", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, ErrAccountNotActive):
		Problem(w, http.StatusForbidden, "Account Not Active", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrBackendUnavailable):
		Problem(w, http.StatusBadGateway, "Backend Unavailable", err.Error())
	case errors.Is(err, ErrStoreUnavailable):
		Problem(w, http.StatusServiceUnavailable, "Store Unavailable", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
