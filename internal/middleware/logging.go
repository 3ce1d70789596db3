package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	pkghttp "github.com/BradenHooton/roster/pkg/http"
	pkglogger "github.com/BradenHooton/roster/pkg/logger"
)

// SecureLogger returns a middleware for logging HTTP requests with sensitive data redaction
func SecureLogger(logger *slog.Logger, ips *pkghttp.IPResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status and size
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(wrapped, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", redactedPath(r)),
				slog.Int("status", wrapped.Status()),
				slog.Int64("bytes", int64(wrapped.BytesWritten())),
				slog.String("duration", time.Since(start).String()),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("client_ip", ips.ClientIP(r)),
			}

			level := slog.LevelInfo
			if wrapped.Status() >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}

			logger.LogAttrs(r.Context(), level, "http_request", attrs...)
		})
	}
}

// redactedPath strips reset tokens from the path and hides sensitive queries.
func redactedPath(r *http.Request) string {
	path := r.URL.Path
	if pkglogger.ShouldRedactPath(path) {
		if i := strings.Index(path, "/reset-password/"); i >= 0 {
			path = path[:i] + "/reset-password/[REDACTED]"
		}
	}

	switch {
	case r.URL.RawQuery == "":
		return path
	case pkglogger.ShouldRedactQuery(r.URL.RawQuery):
		return path + "?[REDACTED]"
	default:
		return path + "?" + r.URL.RawQuery
	}
}
