package routes

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BradenHooton/roster/internal/auth"
	"github.com/BradenHooton/roster/internal/handlers"
	"github.com/BradenHooton/roster/internal/middleware"
	"github.com/BradenHooton/roster/internal/observability"
	pkghttp "github.com/BradenHooton/roster/pkg/http"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies collects everything the router mounts.
type Dependencies struct {
	AuthHandler *handlers.AuthHandler
	UserHandler *handlers.UserHandler
	Guard       *auth.Guard
	IPs         *pkghttp.IPResolver
	Logger      *slog.Logger

	// Metrics and Gatherer are optional; /metrics is only mounted with a Gatherer.
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer
	Database HealthChecker

	Env            string
	AllowedOrigins []string
	RequestTimeout time.Duration

	// PublicRequestsPerMinute limits the unauthenticated auth routes per client IP.
	PublicRequestsPerMinute int
	// UserRequestsPerMinute limits the signed-in auth routes per account.
	UserRequestsPerMinute int
}

// NewRouter builds the API router with the shared middleware chain.
func NewRouter(deps Dependencies) chi.Router {
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 30 * time.Second
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: deps.Env}))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(deps.AllowedOrigins)))
	router.Use(middleware.SecureLogger(deps.Logger, deps.IPs))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware)
	}
	router.Use(chimw.Recoverer)
	router.Use(chimw.Timeout(deps.RequestTimeout))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteNotFound(w, "Route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	router.Get("/health", healthHandler(deps.Database))
	if deps.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	router.Route("/api", func(r chi.Router) {
		RegisterRoutes(r, deps)
	})

	return router
}

// RegisterRoutes registers the /auth and /users routes on router.
func RegisterRoutes(router chi.Router, deps Dependencies) {
	publicLimit := middleware.DefaultAuthRateLimit(deps.IPs)
	if deps.PublicRequestsPerMinute > 0 {
		publicLimit.RequestsPerMinute = deps.PublicRequestsPerMinute
	}
	userLimit := middleware.RateLimitConfig{RequestsPerMinute: 60, IPs: deps.IPs}
	if deps.UserRequestsPerMinute > 0 {
		userLimit.RequestsPerMinute = deps.UserRequestsPerMinute
	}

	router.Route("/auth", func(r chi.Router) {
		// Public routes - no authentication required
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(publicLimit))
			r.Post("/signup", deps.AuthHandler.Signup)
			r.Post("/login", deps.AuthHandler.Login)
			r.Post("/forgot-password", deps.AuthHandler.ForgotPassword)
			r.Put("/reset-password/{token}", deps.AuthHandler.ResetPassword)
		})

		// Protected routes - authentication required
		r.Group(func(r chi.Router) {
			r.Use(deps.Guard.Authenticate)
			r.Use(middleware.RateLimitByUser(userLimit))
			r.Post("/logout", deps.AuthHandler.Logout)
			r.Get("/me", deps.AuthHandler.Me)
			r.Put("/updateprofile", deps.AuthHandler.UpdateProfile)
			r.Put("/updatepassword", deps.AuthHandler.UpdatePassword)
			r.Post("/upload-avatar", deps.AuthHandler.UploadAvatar)
		})
	})

	deps.UserHandler.RegisterRoutes(router, deps.Guard.Authenticate)
}

func healthHandler(db HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "unhealthy",
				"database": "down",
			})
			return
		}

		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
			"status":   "healthy",
			"database": "up",
		})
	}
}
