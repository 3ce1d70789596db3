package logger

import (
	"strings"
)

// SanitizedEmail masks an email address for logging (e.g., "u***@e***.com")
func SanitizedEmail(email string) string {
	username, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "[invalid-email]"
	}

	if len(username) > 1 {
		username = username[:1] + strings.Repeat("*", len(username)-1)
	}

	// keep the TLD only
	domainParts := strings.Split(domain, ".")
	for i := 0; i < len(domainParts)-1; i++ {
		domainParts[i] = strings.Repeat("*", len(domainParts[i]))
	}

	return username + "@" + strings.Join(domainParts, ".")
}

var sensitiveQueryParams = []string{
	"password", "token", "secret", "email", "auth", "key",
}

// ShouldRedactQuery reports whether a raw query string mentions a sensitive parameter.
func ShouldRedactQuery(rawQuery string) bool {
	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveQueryParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}

// ShouldRedactPath reports whether a request path embeds a secret, such as the
// reset token segment of /api/auth/reset-password/{token}.
func ShouldRedactPath(path string) bool {
	return strings.Contains(path, "/reset-password/")
}
