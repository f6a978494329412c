package services

import (
	"context"
	"time"

	"github.com/BradenHooton/resera/internal/models"
)

// AccountRepository is the persistence contract the authentication core consumes
type AccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	IncrementFailedAttempts(ctx context.Context, id string) (int, error)
	Update(ctx context.Context, id string, upd models.AccountUpdate) error
	ConsumeBackupCode(ctx context.Context, id, codeHash string) (bool, error)
	ClaimTwoFactorStep(ctx context.Context, id string, step int64) (bool, error)
	ReplacePassword(ctx context.Context, id, expectedHash, newHash string, history []string, changedAt time.Time) error
}

// LoginLogRepository is the append-only login audit trail
type LoginLogRepository interface {
	Append(ctx context.Context, entry *models.LoginLogEntry) error
}

// TokenIssuer signs access and two-factor challenge tokens
type TokenIssuer interface {
	GenerateAccessToken(identity models.Identity, passwordExpired bool) (string, time.Time, error)
	GenerateChallengeToken(accountID string) (string, error)
}

// SecretOpener decrypts a sealed TOTP secret
type SecretOpener interface {
	OpenSecret(sealed string) (string, error)
}
