package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/BradenHooton/roster/internal/auth"
	pkghttp "github.com/BradenHooton/roster/pkg/http"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	IPs               *pkghttp.IPResolver
}

// DefaultAuthRateLimit returns default rate limit config for public auth endpoints
func DefaultAuthRateLimit(ips *pkghttp.IPResolver) RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 20,
		IPs:               ips,
	}
}

func limitExceeded(w http.ResponseWriter, _ *http.Request) {
	pkghttp.WriteTooManyRequests(w, "Too many requests. Please try again later.")
}

// RateLimitByIP creates a middleware that rate limits requests by client IP.
// The IP comes from the resolver so forwarded headers are only trusted from
// configured proxies.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return config.IPs.ClientIP(r), nil
		}),
		httprate.WithLimitHandler(limitExceeded),
	)
}

// RateLimitByUser limits authenticated callers per account, falling back to
// the client IP when no account is in context. Mount after the route guard.
func RateLimitByUser(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if user := auth.GetUserFromContext(r); user != nil {
				return "user:" + user.ID, nil
			}
			return "ip:" + config.IPs.ClientIP(r), nil
		}),
		httprate.WithLimitHandler(limitExceeded),
	)
}
