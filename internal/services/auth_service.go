package services

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/resera/internal/auth"
	"github.com/BradenHooton/resera/internal/models"
	pkgauth "github.com/BradenHooton/resera/pkg/auth"
	pkglogger "github.com/BradenHooton/resera/pkg/logger"
)

// AuthPolicy holds the lockout and expiration settings the authenticator enforces
type AuthPolicy struct {
	LockoutAttempts        int
	LockoutDurationMinutes int
	PasswordMaxAgeDays     int // 0 disables expiration
}

// Authenticator verifies credentials and drives the lockout state machine.
// Every attempt that reaches a terminal outcome writes exactly one login log row.
type Authenticator struct {
	repo        AccountRepository
	loginLogs   LoginLogRepository
	tokens      TokenIssuer
	secrets     SecretOpener
	notifier    Notifier
	timing      *auth.TimingDelay
	policy      AuthPolicy
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time

	dummyHashOnce sync.Once
	dummyHash     string
}

// NewAuthenticator creates a new Authenticator
func NewAuthenticator(
	repo AccountRepository,
	loginLogs LoginLogRepository,
	tokens TokenIssuer,
	secrets SecretOpener,
	notifier Notifier,
	timing *auth.TimingDelay,
	policy AuthPolicy,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *Authenticator {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Authenticator{
		repo:        repo,
		loginLogs:   loginLogs,
		tokens:      tokens,
		secrets:     secrets,
		notifier:    notifier,
		timing:      timing,
		policy:      policy,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// Authenticate runs one login attempt. A nil error means either full success
// or AuthStatusTwoFactorRequired. Terminal failures are *models.AuthError.
func (a *Authenticator) Authenticate(ctx context.Context, req models.LoginRequest, meta models.RequestMeta) (*models.AuthResult, error) {
	start := time.Now()
	result, err := a.authenticate(ctx, req, meta)
	a.timing.WaitFrom(ctx, start, err == nil)
	return result, err
}

func (a *Authenticator) authenticate(ctx context.Context, req models.LoginRequest, meta models.RequestMeta) (*models.AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		a.burnPasswordCheck(req.Password)
		a.recordFailure(ctx, nil, models.LoginFailureUnknownAccount, meta)
		return nil, &models.AuthError{Err: models.ErrInvalidCredentials}
	}

	account, err := a.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			a.burnPasswordCheck(req.Password)
			a.logger.Info("login failed: unknown account", pkglogger.EmailAttr(email))
			a.recordFailure(ctx, nil, models.LoginFailureUnknownAccount, meta)
			return nil, &models.AuthError{Err: models.ErrInvalidCredentials}
		}
		a.logger.Error("failed to get account by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !account.IsActive {
		a.burnPasswordCheck(req.Password)
		a.logger.Info("login blocked: account inactive", slog.String("account_id", account.ID))
		a.recordFailure(ctx, &account.ID, models.LoginFailureInactive, meta)
		return nil, &models.AuthError{Err: models.ErrAccountInactive}
	}

	now := a.now()
	if auth.IsLocked(account.AccountLockedUntil, now) {
		a.logger.Info("login blocked: account locked", slog.String("account_id", account.ID))
		a.recordFailure(ctx, &account.ID, models.LoginFailureLocked, meta)
		return nil, &models.AuthError{
			Err:        models.ErrAccountLocked,
			RetryAfter: auth.LockoutRemaining(account.AccountLockedUntil, now),
		}
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, req.Password); err != nil {
		return nil, a.handleBadPassword(ctx, account, meta)
	}

	if auth.IsTwoFactorEnabled(account.TwoFactorEnabled, account.SealedSecret()) {
		if req.Factor.Kind == models.FactorNone {
			return a.requireSecondFactor(account, meta)
		}
		if err := a.verifySecondFactor(ctx, account, req.Factor, meta); err != nil {
			return nil, err
		}
	}

	return a.succeed(ctx, account, meta)
}

// CompleteTwoFactor finishes a login whose password was already verified and
// which was answered with AuthStatusTwoFactorRequired. The caller has
// validated the challenge token that carries accountID.
func (a *Authenticator) CompleteTwoFactor(ctx context.Context, accountID string, factor models.Factor, meta models.RequestMeta) (*models.AuthResult, error) {
	start := time.Now()
	result, err := a.completeTwoFactor(ctx, accountID, factor, meta)
	a.timing.WaitFrom(ctx, start, err == nil)
	return result, err
}

func (a *Authenticator) completeTwoFactor(ctx context.Context, accountID string, factor models.Factor, meta models.RequestMeta) (*models.AuthResult, error) {
	account, err := a.repo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidChallenge
		}
		a.logger.Error("failed to get account by id", slog.String("account_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !account.IsActive {
		a.recordFailure(ctx, &account.ID, models.LoginFailureInactive, meta)
		return nil, &models.AuthError{Err: models.ErrAccountInactive}
	}

	now := a.now()
	if auth.IsLocked(account.AccountLockedUntil, now) {
		a.recordFailure(ctx, &account.ID, models.LoginFailureLocked, meta)
		return nil, &models.AuthError{
			Err:        models.ErrAccountLocked,
			RetryAfter: auth.LockoutRemaining(account.AccountLockedUntil, now),
		}
	}

	// 2FA was switched off after the challenge was issued
	if !auth.IsTwoFactorEnabled(account.TwoFactorEnabled, account.SealedSecret()) {
		return nil, models.ErrInvalidChallenge
	}

	if err := a.verifySecondFactor(ctx, account, factor, meta); err != nil {
		return nil, err
	}

	return a.succeed(ctx, account, meta)
}

// handleBadPassword increments the failure counter atomically and locks the
// account once it reaches the policy threshold
func (a *Authenticator) handleBadPassword(ctx context.Context, account *models.Account, meta models.RequestMeta) error {
	count, err := a.repo.IncrementFailedAttempts(ctx, account.ID)
	if err != nil {
		a.logger.Error("failed to increment failed attempts", slog.String("account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if count >= a.policy.LockoutAttempts {
		until := auth.ComputeLockoutExpiry(a.policy.LockoutDurationMinutes, a.now())
		if err := a.repo.Update(ctx, account.ID, models.AccountUpdate{AccountLockedUntil: &until}); err != nil {
			a.logger.Error("failed to lock account", slog.String("account_id", account.ID), slog.Any("error", err))
			return models.ErrInternalServer
		}

		a.logger.Warn("account locked after failed attempts",
			slog.String("account_id", account.ID),
			slog.Int("failed_attempts", count),
			slog.Time("locked_until", until))
		a.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     pkglogger.EventLockoutTriggered,
			AccountID:     account.ID,
			IPAddress:     meta.IPAddress,
			UserAgent:     meta.UserAgent,
			FailureReason: models.LoginFailureLockoutTrigger,
			Metadata:      map[string]string{"failed_attempts": strconv.Itoa(count)},
		})
		a.recordFailure(ctx, &account.ID, models.LoginFailureLockoutTrigger, meta)

		if err := a.notifier.NotifyLockout(ctx, account.Email, until); err != nil {
			a.logger.Warn("failed to send lockout notice", slog.String("account_id", account.ID), slog.Any("error", err))
		}

		return &models.AuthError{
			Err:        models.ErrAccountLocked,
			RetryAfter: time.Duration(a.policy.LockoutDurationMinutes) * time.Minute,
		}
	}

	a.logger.Info("login failed: invalid password",
		slog.String("account_id", account.ID),
		slog.Int("failed_attempts", count))
	a.recordFailure(ctx, &account.ID, models.LoginFailureBadPassword, meta)

	return &models.AuthError{
		Err:               models.ErrInvalidCredentials,
		AttemptsRemaining: a.policy.LockoutAttempts - count,
	}
}

// requireSecondFactor is a continuation, not a terminal outcome: no login
// log row is written and the failure counter is left untouched
func (a *Authenticator) requireSecondFactor(account *models.Account, meta models.RequestMeta) (*models.AuthResult, error) {
	challenge, err := a.tokens.GenerateChallengeToken(account.ID)
	if err != nil {
		a.logger.Error("failed to generate challenge token", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	a.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: pkglogger.EventTwoFactorRequired,
		AccountID: account.ID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})

	return &models.AuthResult{
		Status:         models.AuthStatusTwoFactorRequired,
		Identity:       account.Identity(),
		ChallengeToken: challenge,
	}, nil
}

// verifySecondFactor checks a TOTP code or consumes a backup code
func (a *Authenticator) verifySecondFactor(ctx context.Context, account *models.Account, factor models.Factor, meta models.RequestMeta) error {
	var (
		ok  bool
		err error
	)

	switch factor.Kind {
	case models.FactorTOTP:
		ok, err = a.verifyTOTP(ctx, account, factor.Value)
	case models.FactorBackupCode:
		ok, err = a.consumeBackupCode(ctx, account, factor.Value, meta)
	}
	if err != nil {
		return err
	}

	if !ok {
		a.logger.Info("login failed: invalid two-factor code",
			slog.String("account_id", account.ID),
			slog.String("factor", factor.Kind.String()))
		a.recordFailure(ctx, &account.ID, models.LoginFailureBadTwoFactor, meta)
		return &models.AuthError{Err: models.ErrInvalidTwoFactorCode}
	}

	return nil
}

// verifyTOTP accepts each time step at most once per account, so a code
// seen in transit cannot be replayed while it is still inside the window
func (a *Authenticator) verifyTOTP(ctx context.Context, account *models.Account, code string) (bool, error) {
	secret, err := a.secrets.OpenSecret(account.SealedSecret())
	if err != nil {
		a.logger.Error("failed to open two-factor secret", slog.String("account_id", account.ID), slog.Any("error", err))
		return false, models.ErrInternalServer
	}

	step, ok := auth.MatchTwoFactorStep(code, secret, a.now())
	if !ok {
		return false, nil
	}

	claimed, err := a.repo.ClaimTwoFactorStep(ctx, account.ID, step)
	if err != nil {
		a.logger.Error("failed to claim two-factor step", slog.String("account_id", account.ID), slog.Any("error", err))
		return false, models.ErrInternalServer
	}
	if !claimed {
		a.logger.Warn("two-factor code replayed", slog.String("account_id", account.ID))
	}
	return claimed, nil
}

// consumeBackupCode removes the matching code in the same statement that
// checks it is still present, so a replayed code fails
func (a *Authenticator) consumeBackupCode(ctx context.Context, account *models.Account, code string, meta models.RequestMeta) (bool, error) {
	if !auth.VerifyBackupCode(code, account.TwoFactorBackupCodes) {
		return false, nil
	}

	consumed, err := a.repo.ConsumeBackupCode(ctx, account.ID, auth.HashBackupCode(code))
	if err != nil {
		a.logger.Error("failed to consume backup code", slog.String("account_id", account.ID), slog.Any("error", err))
		return false, models.ErrInternalServer
	}
	if !consumed {
		return false, nil
	}

	remaining := len(auth.RemoveBackupCode(code, account.TwoFactorBackupCodes))
	a.auditLogger.LogAccountAction(pkglogger.AuditEvent{
		EventType: pkglogger.EventBackupCodeConsumed,
		AccountID: account.ID,
		IPAddress: meta.IPAddress,
		Success:   true,
		Metadata:  map[string]string{"backup_codes_remaining": strconv.Itoa(remaining)},
	})

	return true, nil
}

// succeed resets lockout state, logs the success and issues an access token
func (a *Authenticator) succeed(ctx context.Context, account *models.Account, meta models.RequestMeta) (*models.AuthResult, error) {
	if account.FailedLoginAttempts != 0 || account.AccountLockedUntil != nil {
		zero := 0
		err := a.repo.Update(ctx, account.ID, models.AccountUpdate{
			FailedLoginAttempts: &zero,
			ClearLockedUntil:    true,
		})
		if err != nil {
			a.logger.Error("failed to reset lockout state", slog.String("account_id", account.ID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
	}

	now := a.now()
	expired := pkgauth.IsPasswordExpired(account.PasswordChangedAt, a.policy.PasswordMaxAgeDays, now)

	token, expiresAt, err := a.tokens.GenerateAccessToken(account.Identity(), expired)
	if err != nil {
		a.logger.Error("failed to generate access token", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	a.appendLog(ctx, &models.LoginLogEntry{
		AccountID: &account.ID,
		Success:   true,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	})
	a.logger.Info("account logged in", slog.String("account_id", account.ID))
	a.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: pkglogger.EventLoginSuccess,
		AccountID: account.ID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})

	result := &models.AuthResult{
		Status:          models.AuthStatusAuthenticated,
		Identity:        account.Identity(),
		PasswordExpired: expired,
		AccessToken:     token,
		ExpiresAt:       expiresAt,
	}
	if a.policy.PasswordMaxAgeDays > 0 {
		days := pkgauth.DaysUntilPasswordExpires(account.PasswordChangedAt, a.policy.PasswordMaxAgeDays, now)
		result.DaysUntilExpiration = &days
	}

	return result, nil
}

func (a *Authenticator) recordFailure(ctx context.Context, accountID *string, reason string, meta models.RequestMeta) {
	a.appendLog(ctx, &models.LoginLogEntry{
		AccountID:     accountID,
		Success:       false,
		FailureReason: &reason,
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
	})

	event := pkglogger.AuditEvent{
		EventType:     pkglogger.EventLoginFailed,
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
		FailureReason: reason,
	}
	if accountID != nil {
		event.AccountID = *accountID
	}
	a.auditLogger.LogAuthAttempt(event)
}

// appendLog never changes the auth outcome; a failed write is only logged
func (a *Authenticator) appendLog(ctx context.Context, entry *models.LoginLogEntry) {
	if err := a.loginLogs.Append(ctx, entry); err != nil {
		a.logger.Error("failed to append login log", slog.Bool("success", entry.Success), slog.Any("error", err))
	}
}

// burnPasswordCheck spends a bcrypt comparison so unknown and inactive
// accounts cost the same as a wrong password
func (a *Authenticator) burnPasswordCheck(password string) {
	a.dummyHashOnce.Do(func() {
		hash, err := pkgauth.HashPassword("resera-timing-equaliser")
		if err != nil {
			a.logger.Error("failed to build timing hash", slog.Any("error", err))
			return
		}
		a.dummyHash = hash
	})
	if a.dummyHash != "" {
		_ = pkgauth.ComparePassword(a.dummyHash, password)
	}
}
