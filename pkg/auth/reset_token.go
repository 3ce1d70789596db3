package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	ResetTokenBytes  = 32
	ResetTokenExpiry = 10 * time.Minute
)

// ResetToken is a freshly issued recovery token. Only Hash and ExpiresAt are persisted;
// Plaintext is delivered to the account owner and then forgotten.
type ResetToken struct {
	Plaintext string
	Hash      string
	ExpiresAt time.Time
}

// GenerateResetToken creates a random token that expires ResetTokenExpiry after now.
func GenerateResetToken(now time.Time) (*ResetToken, error) {
	tokenBytes := make([]byte, ResetTokenBytes)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("failed to generate reset token: %w", err)
	}

	plaintext := hex.EncodeToString(tokenBytes)
	return &ResetToken{
		Plaintext: plaintext,
		Hash:      HashResetToken(plaintext),
		ExpiresAt: now.Add(ResetTokenExpiry),
	}, nil
}

// HashResetToken returns the hex SHA-256 digest stored in place of the token.
func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// VerifyResetToken compares a candidate against a stored hash in constant time.
func VerifyResetToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashResetToken(token)), []byte(hash)) == 1
}
