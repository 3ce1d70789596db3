package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrValidation     = errors.New("validation failed")
	ErrInternalServer = errors.New("internal server error")

	// Authentication flow errors
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrInvalidOrExpiredToken = errors.New("reset token is invalid or has expired")
	ErrDeliveryFailed        = errors.New("email could not be sent")
	ErrRateLimitExceeded     = errors.New("too many attempts, try again later")
)

// DetailedError pairs a sentinel kind with a message that is safe to show clients.
type DetailedError struct {
	Kind    error
	Message string
}

func (e *DetailedError) Error() string {
	return e.Message
}

func (e *DetailedError) Unwrap() error {
	return e.Kind
}

// NewValidationError returns an error matching ErrValidation.
func NewValidationError(format string, args ...any) error {
	return &DetailedError{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

// NewConflictError returns an error matching ErrConflict.
func NewConflictError(message string) error {
	return &DetailedError{Kind: ErrConflict, Message: message}
}

// ClientMessage returns the client-facing text of err, falling back to fallback
// when err carries no detail of its own.
func ClientMessage(err error, fallback string) string {
	var detailed *DetailedError
	if errors.As(err, &detailed) {
		return detailed.Message
	}
	return fallback
}
