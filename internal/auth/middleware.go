package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/BradenHooton/roster/internal/models"
	pkghttp "github.com/BradenHooton/roster/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for storing the authenticated account in context
	UserContextKey contextKey = "user"
)

// UserLoader resolves the account a token was issued for.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Guard authenticates requests and attaches the caller's account to the context.
type Guard struct {
	tokens *TokenManager
	users  UserLoader
	logger *slog.Logger
}

func NewGuard(tokens *TokenManager, users UserLoader, logger *slog.Logger) *Guard {
	return &Guard{tokens: tokens, users: users, logger: logger}
}

// ExtractToken reads the bearer token from the Authorization header, falling
// back to the token cookie when no header is sent. ok is false for a
// malformed header or when neither transport carries a token.
func ExtractToken(r *http.Request) (token string, ok bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		scheme, value, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			return "", false
		}
		value = strings.TrimSpace(value)
		return value, value != ""
	}

	if cookie := GetTokenCookie(r); cookie != "" {
		return cookie, true
	}
	return "", false
}

// Authenticate rejects the request with 401 unless it carries a valid token
// for an existing account.
func (g *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := ExtractToken(r)
		if !ok {
			pkghttp.WriteUnauthorized(w, "Not authorized, no token")
			return
		}

		claims, err := g.tokens.Validate(tokenString)
		if err != nil {
			pkghttp.WriteUnauthorized(w, "Not authorized, token failed")
			return
		}

		user, err := g.users.GetByID(r.Context(), claims.UserID())
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				pkghttp.WriteUnauthorized(w, "User no longer exists")
				return
			}
			g.logger.ErrorContext(r.Context(), "failed to load authenticated user",
				slog.String("user_id", claims.UserID()),
				slog.Any("error", err),
			)
			pkghttp.WriteInternalError(w, "Internal server error")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireRole rejects callers whose role is not in roles. It must be mounted
// after Authenticate.
func RequireRole(roles ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUserFromContext(r)
			if user == nil {
				pkghttp.WriteUnauthorized(w, "Not authorized")
				return
			}

			if !slices.Contains(roles, user.Role) {
				pkghttp.WriteForbidden(w, "User role "+user.Role+" is not authorized to access this resource")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WithUser returns a context carrying user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// GetUserFromContext returns the authenticated account, or nil outside Authenticate.
func GetUserFromContext(r *http.Request) *models.User {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
