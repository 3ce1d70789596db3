package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name          string
		password      string
		shouldFail    bool
		errorContains string
	}{
		{
			name:       "minimum length",
			password:   "secret",
			shouldFail: false,
		},
		{
			name:          "too short",
			password:      "abc12",
			shouldFail:    true,
			errorContains: "at least 6 characters",
		},
		{
			name:          "empty",
			password:      "",
			shouldFail:    true,
			errorContains: "at least 6 characters",
		},
		{
			name:          "too long",
			password:      strings.Repeat("a", 73),
			shouldFail:    true,
			errorContains: "at most 72 characters",
		},
		{
			name:       "exactly max",
			password:   strings.Repeat("a", 72),
			shouldFail: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.shouldFail {
				require.Error(t, err)
				var pve *PasswordValidationError
				assert.ErrorAs(t, err, &pve)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)

	assert.NotEqual(t, "secret1", hash)
	assert.True(t, strings.HasPrefix(hash, "$2a$10$"), "expected bcrypt cost 10, got %s", hash)
	assert.True(t, VerifyPassword(hash, "secret1"))
	assert.False(t, VerifyPassword(hash, "secret2"))
}

func TestHashPassword_Salted(t *testing.T) {
	first, err := HashPassword("secret1")
	require.NoError(t, err)
	second, err := HashPassword("secret1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)
}

func TestVerifyPassword_EmptyHash(t *testing.T) {
	assert.False(t, VerifyPassword("", "anything"))
}
