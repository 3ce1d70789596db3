package logger

import (
	"context"
	"log/slog"
	"sort"
)

// Audit event types
const (
	EventSignup             = "signup"
	EventLogin              = "login"
	EventLogout             = "logout"
	EventProfileUpdate      = "profile_update"
	EventPasswordChange     = "password_change"
	EventPasswordResetIssue = "password_reset_requested"
	EventPasswordReset      = "password_reset_completed"
	EventAvatarChange       = "avatar_change"
	EventUserCreate         = "admin_user_create"
	EventUserUpdate         = "admin_user_update"
	EventUserDelete         = "admin_user_delete"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserID        string
	ActorID       string // who performed the action, when different from UserID
	Email         string // logged masked
	IPAddress     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// EventCounter receives one observation per audit event.
type EventCounter interface {
	CountAuthEvent(eventType string, success bool)
}

// AuditLogger writes audit records to the structured log.
type AuditLogger struct {
	logger  *slog.Logger
	counter EventCounter
}

func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// WithCounter returns a copy of the logger that also reports to counter.
func (al *AuditLogger) WithCounter(counter EventCounter) *AuditLogger {
	return &AuditLogger{logger: al.logger, counter: counter}
}

// Log records event. Failures are logged at warn level.
func (al *AuditLogger) Log(ctx context.Context, event AuditEvent) {
	if al == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.ActorID != "" && event.ActorID != event.UserID {
		attrs = append(attrs, slog.String("actor_id", event.ActorID))
	}
	if event.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(event.Email)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}

	keys := make([]string, 0, len(event.Metadata))
	for key := range event.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		attrs = append(attrs, slog.String(key, event.Metadata[key]))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)

	if al.counter != nil {
		al.counter.CountAuthEvent(event.EventType, event.Success)
	}
}
