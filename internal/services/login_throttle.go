package services

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/roster/internal/cache"
	"github.com/BradenHooton/roster/internal/models"
	"github.com/BradenHooton/roster/pkg/logger"
)

// LoginThrottleConfig holds configuration for login lockout behavior
type LoginThrottleConfig struct {
	MaxFailuresPerEmail int
	MaxFailuresPerIP    int
	Window              time.Duration
}

// LoginThrottle counts failed logins per account and per client IP and
// refuses further attempts once either count reaches its limit.
type LoginThrottle struct {
	counter cache.Counter
	config  LoginThrottleConfig
	logger  *slog.Logger
}

// NewLoginThrottle creates a new LoginThrottle
func NewLoginThrottle(counter cache.Counter, config LoginThrottleConfig, logger *slog.Logger) *LoginThrottle {
	return &LoginThrottle{
		counter: counter,
		config:  config,
		logger:  logger,
	}
}

// Allow returns ErrRateLimitExceeded when email or ipAddress is locked out.
// Counter failures let the attempt through.
func (t *LoginThrottle) Allow(ctx context.Context, email, ipAddress string) error {
	if t == nil {
		return nil
	}

	failures, err := t.counter.Get(ctx, emailKey(email))
	if err != nil {
		t.logger.Error("failed to check email login throttle", slog.Any("error", err))
		return nil
	}
	if t.config.MaxFailuresPerEmail > 0 && failures >= int64(t.config.MaxFailuresPerEmail) {
		t.logger.Warn("account login throttled",
			slog.String("email", logger.SanitizedEmail(email)),
			slog.Int64("failed_attempts", failures))
		return models.ErrRateLimitExceeded
	}

	if ipAddress == "" {
		return nil
	}

	failures, err = t.counter.Get(ctx, ipKey(ipAddress))
	if err != nil {
		t.logger.Error("failed to check IP login throttle", slog.Any("error", err))
		return nil
	}
	if t.config.MaxFailuresPerIP > 0 && failures >= int64(t.config.MaxFailuresPerIP) {
		t.logger.Warn("IP login throttled",
			slog.String("ip_address", ipAddress),
			slog.Int64("failed_attempts", failures))
		return models.ErrRateLimitExceeded
	}

	return nil
}

// RecordFailure counts a failed attempt against both keys.
func (t *LoginThrottle) RecordFailure(ctx context.Context, email, ipAddress string) {
	if t == nil {
		return
	}
	if _, err := t.counter.Incr(ctx, emailKey(email), t.config.Window); err != nil {
		t.logger.Error("failed to record login failure", slog.Any("error", err))
	}
	if ipAddress == "" {
		return
	}
	if _, err := t.counter.Incr(ctx, ipKey(ipAddress), t.config.Window); err != nil {
		t.logger.Error("failed to record login failure", slog.Any("error", err))
	}
}

// RecordSuccess clears the account's failure count. The IP count is kept so a
// valid login cannot mask spraying from the same address.
func (t *LoginThrottle) RecordSuccess(ctx context.Context, email string) {
	if t == nil {
		return
	}
	if err := t.counter.Reset(ctx, emailKey(email)); err != nil {
		t.logger.Error("failed to reset login throttle", slog.Any("error", err))
	}
}

// emailKey hashes the address so raw emails never reach the counter store.
func emailKey(email string) string {
	hash := sha256.Sum256([]byte(models.NormalizeEmail(email)))
	return fmt.Sprintf("login:email:%x", hash)[:44]
}

func ipKey(ipAddress string) string {
	return "login:ip:" + ipAddress
}
