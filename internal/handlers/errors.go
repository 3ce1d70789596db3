package handlers

import (
	"errors"
	"net/http"

	"github.com/BradenHooton/roster/internal/models"
	pkghttp "github.com/BradenHooton/roster/pkg/http"
)

// writeError translates errors from operations that never look up an
// account by id, so ErrNotFound gets a generic message.
func writeError(w http.ResponseWriter, err error) {
	writeServiceError(w, err, "Resource not found")
}

// writeServiceError translates a service error into the JSON error envelope.
// notFound is the message used for ErrNotFound.
func writeServiceError(w http.ResponseWriter, err error, notFound string) {
	switch {
	case errors.Is(err, models.ErrValidation):
		pkghttp.WriteValidationError(w, models.ClientMessage(err, "Invalid request"))
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, models.ClientMessage(err, "Resource already exists"))
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_credentials", "Invalid email or password")
	case errors.Is(err, models.ErrInvalidOrExpiredToken):
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_token", "Password reset token is invalid or has expired")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Not authorized")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "You cannot access this resource")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, notFound)
	case errors.Is(err, models.ErrRateLimitExceeded):
		pkghttp.WriteTooManyRequests(w, "Too many failed login attempts. Please try again later.")
	case errors.Is(err, models.ErrDeliveryFailed):
		pkghttp.WriteError(w, http.StatusInternalServerError, "email_delivery_failed", "Email could not be sent")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
