package models

import "time"

// PublicUser is the only representation of an account that leaves the service.
// It never carries the password hash or reset-token fields.
type PublicUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	AvatarURL string    `json:"avatarUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewPublicUser(u *User) *PublicUser {
	if u == nil {
		return nil
	}

	avatar := u.AvatarURL
	if avatar == "" {
		avatar = DefaultAvatarURL
	}

	return &PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Phone:     u.Phone,
		Address:   u.Address,
		AvatarURL: avatar,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// NewPublicUsers projects a slice of accounts.
func NewPublicUsers(users []*User) []*PublicUser {
	out := make([]*PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, NewPublicUser(u))
	}
	return out
}
