package logger

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// Audit event types
const (
	EventLoginSuccess       = "login_success"
	EventLoginFailed        = "login_failed"
	EventLockoutTriggered   = "lockout_triggered"
	EventTwoFactorRequired  = "two_factor_required"
	EventBackupCodeConsumed = "backup_code_consumed"
	EventTwoFactorEnabled   = "two_factor_enabled"
	EventTwoFactorDisabled  = "two_factor_disabled"
	EventBackupCodesRenewed = "backup_codes_regenerated"
	EventPasswordChanged    = "password_change"
	EventAccountCreated     = "account_created"
	EventRateLimitExceeded  = "rate_limit_exceeded"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	AccountID     string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger writes security events as structured slog records
type AuditLogger struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		now:    time.Now,
	}
}

// LogAuthAttempt logs authentication attempts
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	al.log("auth", event)
}

// LogAccountAction logs security-relevant changes to an account
func (al *AuditLogger) LogAccountAction(event AuditEvent) {
	al.log("account", event)
}

// LogRateLimitExceeded logs a request rejected by a rate-limit tier
func (al *AuditLogger) LogRateLimitExceeded(identifier, tier, ipAddress string, retryAfterSeconds int) {
	if al == nil {
		return
	}

	attrs := al.baseAttrs("rate_limit", EventRateLimitExceeded, false)
	attrs = append(attrs,
		slog.String("identifier", identifier),
		slog.String("tier", tier),
		slog.Int("retry_after", retryAfterSeconds),
	)
	if ipAddress != "" {
		attrs = append(attrs, slog.String("ip_address", ipAddress))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
}

func (al *AuditLogger) log(auditType string, event AuditEvent) {
	if al == nil {
		return
	}

	attrs := al.baseAttrs(auditType, event.EventType, event.Success)

	if event.AccountID != "" {
		attrs = append(attrs, slog.String("account_id", event.AccountID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}

	// stable attribute order
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
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}

func (al *AuditLogger) baseAttrs(auditType, eventType string, success bool) []slog.Attr {
	return []slog.Attr{
		slog.String("audit_type", auditType),
		slog.String("event_type", eventType),
		slog.Bool("success", success),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}
}
