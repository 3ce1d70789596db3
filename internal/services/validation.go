package services

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/BradenHooton/roster/internal/models"
	pkgauth "github.com/BradenHooton/roster/pkg/auth"
)

var validate = validator.New()

const (
	maxPhoneLen   = 30
	maxAddressLen = 200
)

func validateName(name string) error {
	if err := validate.Var(name, "required,min=2,max=50"); err != nil {
		return models.NewValidationError("Name must be between 2 and 50 characters")
	}
	return nil
}

func validateEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return models.NewValidationError("Please enter a valid email")
	}
	return nil
}

func validateNewPassword(password string) error {
	if err := pkgauth.ValidatePassword(password); err != nil {
		var pwErr *pkgauth.PasswordValidationError
		if errors.As(err, &pwErr) {
			return models.NewValidationError("Password %s", pwErr.Reason)
		}
		return models.NewValidationError("Invalid password")
	}
	return nil
}

func validateRole(role string) error {
	if !models.ValidRole(role) {
		return models.NewValidationError("Role must be one of: %s, %s", models.RoleUser, models.RoleAdmin)
	}
	return nil
}

func validateContact(phone, address string) error {
	if err := validate.Var(phone, "max=30"); err != nil {
		return models.NewValidationError("Phone must be at most %d characters", maxPhoneLen)
	}
	if err := validate.Var(address, "max=200"); err != nil {
		return models.NewValidationError("Address must be at most %d characters", maxAddressLen)
	}
	return nil
}

// ProfileUpdate carries optional profile changes; nil fields are left alone.
type ProfileUpdate struct {
	Name    *string
	Email   *string
	Phone   *string
	Address *string
}

// applyProfileUpdate validates the changes in update and applies them to user.
// An email already owned by another account is a conflict.
func applyProfileUpdate(user *models.User, update ProfileUpdate, lookup func(email string) (*models.User, error)) error {
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if err := validateName(name); err != nil {
			return err
		}
		user.Name = name
	}

	if update.Email != nil {
		email := models.NormalizeEmail(*update.Email)
		if err := validateEmail(email); err != nil {
			return err
		}
		if email != user.Email {
			existing, err := lookup(email)
			switch {
			case err == nil && existing.ID != user.ID:
				return models.NewConflictError("Email is already in use")
			case err != nil && !errors.Is(err, models.ErrNotFound):
				return err
			}
			user.Email = email
		}
	}

	if update.Phone != nil {
		user.Phone = strings.TrimSpace(*update.Phone)
	}
	if update.Address != nil {
		user.Address = strings.TrimSpace(*update.Address)
	}

	return validateContact(user.Phone, user.Address)
}
