package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/resera/internal/models"
	pkgauth "github.com/BradenHooton/resera/pkg/auth"
	pkglogger "github.com/BradenHooton/resera/pkg/logger"
)

// PasswordService changes passwords under the history and strength policy
type PasswordService struct {
	repo         AccountRepository
	rules        pkgauth.PasswordRules
	historyCount int
	notifier     Notifier
	logger       *slog.Logger
	auditLogger  *pkglogger.AuditLogger
	now          func() time.Time
}

// NewPasswordService creates a new PasswordService
func NewPasswordService(repo AccountRepository, rules pkgauth.PasswordRules, historyCount int, notifier Notifier, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *PasswordService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &PasswordService{
		repo:         repo,
		rules:        rules,
		historyCount: historyCount,
		notifier:     notifier,
		logger:       logger,
		auditLogger:  auditLogger,
		now:          time.Now,
	}
}

// CheckStrength validates a candidate without storing anything
func (s *PasswordService) CheckStrength(candidate string) pkgauth.PasswordValidation {
	return s.rules.Validate(candidate)
}

// ChangePassword replaces the password after verifying the current one.
// The outgoing hash is pushed onto the history, which is capped at historyCount.
func (s *PasswordService) ChangePassword(ctx context.Context, accountID, current, next string, meta models.RequestMeta) error {
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUnauthorized
		}
		s.logger.Error("failed to get account", slog.String("account_id", accountID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, current); err != nil {
		s.audit(account.ID, meta, false, "invalid_current_password")
		return models.ErrInvalidCredentials
	}

	if validation := s.rules.Validate(next); !validation.Valid {
		s.audit(account.ID, meta, false, "weak_password")
		return fmt.Errorf("%w: %w", models.ErrWeakPassword, validation.Err())
	}

	if s.isReused(account, next) {
		s.audit(account.ID, meta, false, "password_reused")
		return models.ErrPasswordReused
	}

	newHash, err := pkgauth.HashPassword(next)
	if err != nil {
		s.logger.Error("failed to hash password", slog.String("account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	history := pkgauth.AddPasswordToHistory(account.PasswordHash, account.PasswordHistory, s.historyCount)
	changedAt := s.now()

	if err := s.repo.ReplacePassword(ctx, account.ID, account.PasswordHash, newHash, history, changedAt); err != nil {
		if errors.Is(err, models.ErrConflict) {
			s.logger.Warn("concurrent password change detected", slog.String("account_id", account.ID))
			return models.ErrConflict
		}
		s.logger.Error("failed to replace password", slog.String("account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("password changed", slog.String("account_id", account.ID))
	s.audit(account.ID, meta, true, "")

	if err := s.notifier.NotifyPasswordChanged(ctx, account.Email, changedAt); err != nil {
		s.logger.Warn("failed to send password change notice", slog.String("account_id", account.ID), slog.Any("error", err))
	}

	return nil
}

// isReused checks the current hash and the remembered history
func (s *PasswordService) isReused(account *models.Account, candidate string) bool {
	if pkgauth.ComparePassword(account.PasswordHash, candidate) == nil {
		return true
	}

	history := account.PasswordHistory
	if len(history) > s.historyCount {
		history = history[:max(s.historyCount, 0)]
	}
	return pkgauth.IsPasswordInHistory(candidate, history)
}

func (s *PasswordService) audit(accountID string, meta models.RequestMeta, success bool, reason string) {
	s.auditLogger.LogAccountAction(pkglogger.AuditEvent{
		EventType:     pkglogger.EventPasswordChanged,
		AccountID:     accountID,
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
		Success:       success,
		FailureReason: reason,
	})
}
