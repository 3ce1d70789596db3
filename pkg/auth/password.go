package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 10
	MinPasswordLen = 6
	MaxPasswordLen = 72 // bcrypt ignores input past 72 bytes
)

// PasswordValidationError describes why a candidate password was rejected.
type PasswordValidationError struct {
	Reason string
}

func (e *PasswordValidationError) Error() string {
	return "password " + e.Reason
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// VerifyPassword reports whether password matches hashedPassword.
// An empty hash never matches.
func VerifyPassword(hashedPassword, password string) bool {
	if hashedPassword == "" {
		return false
	}
	return ComparePassword(hashedPassword, password) == nil
}

// ValidatePassword enforces the length bounds accepted for new passwords.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLen {
		return &PasswordValidationError{Reason: fmt.Sprintf("must be at least %d characters", MinPasswordLen)}
	}
	if len(password) > MaxPasswordLen {
		return &PasswordValidationError{Reason: fmt.Sprintf("must be at most %d characters", MaxPasswordLen)}
	}
	return nil
}
