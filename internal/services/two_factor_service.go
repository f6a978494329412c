package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BradenHooton/resera/internal/auth"
	"github.com/BradenHooton/resera/internal/models"
	pkgauth "github.com/BradenHooton/resera/pkg/auth"
	pkglogger "github.com/BradenHooton/resera/pkg/logger"
)

// TOTPProvider generates enrollment keys and seals secrets at rest
type TOTPProvider interface {
	GenerateEnrollment(accountName string) (*auth.Enrollment, error)
	SealSecret(secret string) (string, error)
	OpenSecret(sealed string) (string, error)
}

// TwoFactorStatus describes an account's second-factor configuration
type TwoFactorStatus struct {
	Enabled              bool `json:"enabled"`
	Pending              bool `json:"pending"`
	BackupCodesRemaining int  `json:"backup_codes_remaining"`
}

// TwoFactorService manages TOTP enrollment and backup codes
type TwoFactorService struct {
	repo            AccountRepository
	totp            TOTPProvider
	backupCodeCount int
	notifier        Notifier
	logger          *slog.Logger
	auditLogger     *pkglogger.AuditLogger
	now             func() time.Time
}

// NewTwoFactorService creates a new TwoFactorService
func NewTwoFactorService(repo AccountRepository, totp TOTPProvider, backupCodeCount int, notifier Notifier, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *TwoFactorService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &TwoFactorService{
		repo:            repo,
		totp:            totp,
		backupCodeCount: backupCodeCount,
		notifier:        notifier,
		logger:          logger,
		auditLogger:     auditLogger,
		now:             time.Now,
	}
}

// Status reports whether 2FA is enabled or pending confirmation
func (s *TwoFactorService) Status(ctx context.Context, accountID string) (*TwoFactorStatus, error) {
	account, err := s.load(ctx, accountID)
	if err != nil {
		return nil, err
	}

	enabled := auth.IsTwoFactorEnabled(account.TwoFactorEnabled, account.SealedSecret())
	status := &TwoFactorStatus{
		Enabled: enabled,
		Pending: !enabled && account.SealedSecret() != "",
	}
	if enabled {
		status.BackupCodesRemaining = len(account.TwoFactorBackupCodes)
	}
	return status, nil
}

// BeginEnrollment stores a new sealed secret with 2FA still disabled and
// returns what the authenticator app needs. Calling it again replaces the
// pending secret.
func (s *TwoFactorService) BeginEnrollment(ctx context.Context, accountID string) (*auth.Enrollment, error) {
	account, err := s.load(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if auth.IsTwoFactorEnabled(account.TwoFactorEnabled, account.SealedSecret()) {
		return nil, models.ErrTwoFactorAlreadySet
	}

	enrollment, err := s.totp.GenerateEnrollment(account.Email)
	if err != nil {
		s.logger.Error("failed to generate TOTP enrollment", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	sealed, err := s.totp.SealSecret(enrollment.Secret)
	if err != nil {
		s.logger.Error("failed to seal TOTP secret", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	disabled := false
	if err := s.repo.Update(ctx, account.ID, models.AccountUpdate{
		TwoFactorEnabled: &disabled,
		TwoFactorSecret:  &sealed,
	}); err != nil {
		s.logger.Error("failed to store pending secret", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("two-factor enrollment started", slog.String("account_id", account.ID))
	return enrollment, nil
}

// ConfirmEnrollment enables 2FA once the account proves it holds the
// pending secret. The plaintext backup codes are returned exactly once.
func (s *TwoFactorService) ConfirmEnrollment(ctx context.Context, accountID, code string) ([]string, error) {
	account, err := s.load(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if account.TwoFactorEnabled && account.SealedSecret() != "" {
		return nil, models.ErrTwoFactorAlreadySet
	}
	if account.SealedSecret() == "" {
		return nil, models.ErrTwoFactorNotPending
	}

	secret, err := s.totp.OpenSecret(account.SealedSecret())
	if err != nil {
		s.logger.Error("failed to open pending secret", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !auth.VerifyTwoFactorToken(code, secret, s.now()) {
		return nil, models.ErrInvalidTwoFactorCode
	}

	codes, hashes, err := s.newBackupCodes()
	if err != nil {
		s.logger.Error("failed to generate backup codes", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	enabled := true
	if err := s.repo.Update(ctx, account.ID, models.AccountUpdate{
		TwoFactorEnabled:     &enabled,
		TwoFactorBackupCodes: hashes,
	}); err != nil {
		s.logger.Error("failed to enable two-factor", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.changed(ctx, account, pkglogger.EventTwoFactorEnabled, true)
	return codes, nil
}

// Disable turns 2FA off and discards the secret and backup codes
func (s *TwoFactorService) Disable(ctx context.Context, accountID, password string) error {
	account, err := s.load(ctx, accountID)
	if err != nil {
		return err
	}

	if !auth.IsTwoFactorEnabled(account.TwoFactorEnabled, account.SealedSecret()) {
		return models.ErrTwoFactorNotEnabled
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, password); err != nil {
		return models.ErrInvalidCredentials
	}

	disabled := false
	if err := s.repo.Update(ctx, account.ID, models.AccountUpdate{
		TwoFactorEnabled:     &disabled,
		ClearTwoFactorSecret: true,
		TwoFactorBackupCodes: models.BackupCodes{},
	}); err != nil {
		s.logger.Error("failed to disable two-factor", slog.String("account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.changed(ctx, account, pkglogger.EventTwoFactorDisabled, false)
	return nil
}

// RegenerateBackupCodes replaces every backup code with a fresh set
func (s *TwoFactorService) RegenerateBackupCodes(ctx context.Context, accountID, password string) ([]string, error) {
	account, err := s.load(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if !auth.IsTwoFactorEnabled(account.TwoFactorEnabled, account.SealedSecret()) {
		return nil, models.ErrTwoFactorNotEnabled
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, models.ErrInvalidCredentials
	}

	codes, hashes, err := s.newBackupCodes()
	if err != nil {
		s.logger.Error("failed to generate backup codes", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.repo.Update(ctx, account.ID, models.AccountUpdate{TwoFactorBackupCodes: hashes}); err != nil {
		s.logger.Error("failed to store backup codes", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction(pkglogger.AuditEvent{
		EventType: pkglogger.EventBackupCodesRenewed,
		AccountID: account.ID,
		Success:   true,
	})
	return codes, nil
}

func (s *TwoFactorService) load(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get account", slog.String("account_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return account, nil
}

func (s *TwoFactorService) newBackupCodes() ([]string, models.BackupCodes, error) {
	codes, err := auth.GenerateBackupCodes(s.backupCodeCount)
	if err != nil {
		return nil, nil, err
	}
	return codes, auth.HashBackupCodes(codes), nil
}

func (s *TwoFactorService) changed(ctx context.Context, account *models.Account, event string, enabled bool) {
	s.logger.Info("two-factor setting changed", slog.String("account_id", account.ID), slog.Bool("enabled", enabled))
	s.auditLogger.LogAccountAction(pkglogger.AuditEvent{
		EventType: event,
		AccountID: account.ID,
		Success:   true,
	})

	if err := s.notifier.NotifyTwoFactorChanged(ctx, account.Email, enabled); err != nil {
		s.logger.Warn("failed to send two-factor notice", slog.String("account_id", account.ID), slog.Any("error", err))
	}
}
