package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/resera/internal/models"
	pkgauth "github.com/BradenHooton/resera/pkg/auth"
	pkglogger "github.com/BradenHooton/resera/pkg/logger"
)

// AccountService creates accounts under the password policy
type AccountService struct {
	repo        AccountRepository
	rules       pkgauth.PasswordRules
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

// NewAccountService creates a new AccountService
func NewAccountService(repo AccountRepository, rules pkgauth.PasswordRules, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AccountService {
	return &AccountService{
		repo:        repo,
		rules:       rules,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// Register creates an active account with a policy-compliant password
func (s *AccountService) Register(ctx context.Context, email, password string) (*models.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", models.ErrBadRequest)
	}

	if validation := s.rules.Validate(password); !validation.Valid {
		return nil, fmt.Errorf("%w: %w", models.ErrWeakPassword, validation.Err())
	}

	_, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		return nil, models.ErrConflict
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check existing account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	account, err := s.repo.Create(ctx, &models.Account{
		Email:             email,
		PasswordHash:      hash,
		IsActive:          true,
		PasswordChangedAt: s.now(),
		PasswordHistory:   []string{},
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("account created", slog.String("account_id", account.ID))
	s.auditLogger.LogAccountAction(pkglogger.AuditEvent{
		EventType: pkglogger.EventAccountCreated,
		AccountID: account.ID,
		Success:   true,
	})

	return account, nil
}

// EnsureAccount registers email unless it already exists
func (s *AccountService) EnsureAccount(ctx context.Context, email, password string) (bool, error) {
	_, err := s.Register(ctx, email, password)
	if errors.Is(err, models.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
