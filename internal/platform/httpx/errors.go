package httpx

import (
	"errors"
	"net/http"

	"github.com/cloven/rbac-admin/internal/shared"
)

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrAlreadyExists), errors.Is(err, shared.ErrRoleInUse):
		return http.StatusConflict
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrInvalidCredentials), errors.Is(err, shared.ErrUnauthorized), shared.IsTokenError(err):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes err as a {success:false, message} body. Server-side
// failures get a generic message so internal details never reach the client.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	message := err.Error()
	switch {
	case status == http.StatusInternalServerError:
		message = "internal server error"
	case errors.Is(err, shared.ErrInvalidCredentials):
		message = shared.ErrInvalidCredentials.Error()
	}
	Fail(w, status, message)
}
