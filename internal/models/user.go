package models

import (
	"strings"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	// DefaultAvatarURL is assigned to accounts that never uploaded an image.
	DefaultAvatarURL = "https://via.placeholder.com/150"
)

type User struct {
	ID                  string
	Name                string
	Email               string
	PasswordHash        string // empty for administratively created accounts
	Role                string // "user" or "admin"
	Phone               string
	Address             string
	AvatarURL           string
	AvatarKey           string // identifier of the image at the avatar host
	ResetTokenHash      *string
	ResetTokenExpiresAt *time.Time
	PasswordChangedAt   *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// HasPassword reports whether the account can log in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// IsAdmin reports whether the account carries the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ResetPending reports whether a reset token was issued and has not yet expired.
func (u *User) ResetPending(now time.Time) bool {
	return u.ResetTokenHash != nil && u.ResetTokenExpiresAt != nil && u.ResetTokenExpiresAt.After(now)
}

// NormalizeEmail trims and lowercases an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}

// UserFilter narrows an administrative user listing.
type UserFilter struct {
	Search string // matched case-insensitively against name and email
	Role   string
	Limit  int
	Offset int
}
