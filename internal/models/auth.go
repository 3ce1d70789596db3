package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the payload of a session token. The subject is the account id.
type TokenClaims struct {
	jwt.RegisteredClaims
}

// UserID returns the account id the token was issued for.
func (c *TokenClaims) UserID() string {
	return c.Subject
}

// AuthResult is returned by every operation that signs a caller in.
type AuthResult struct {
	Token     string
	ExpiresIn int64 // seconds
	User      *PublicUser
}
