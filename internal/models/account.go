package models

import (
	"time"
)

// Account is the security-relevant slice of a user record.
type Account struct {
	ID                   string
	Email                string
	PasswordHash         string
	IsActive             bool
	FailedLoginAttempts  int
	AccountLockedUntil   *time.Time
	PasswordChangedAt    time.Time
	PasswordHistory      []string // prior bcrypt hashes, most recent first
	TwoFactorEnabled     bool
	TwoFactorSecret      *string // sealed TOTP secret
	TwoFactorBackupCodes BackupCodes
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Identity is the public view of an authenticated account.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Identity returns the public identity of the account
func (a *Account) Identity() Identity {
	return Identity{ID: a.ID, Email: a.Email}
}

// SealedSecret returns the stored two-factor secret or an empty string
func (a *Account) SealedSecret() string {
	if a.TwoFactorSecret == nil {
		return ""
	}
	return *a.TwoFactorSecret
}

// AccountUpdate is a partial update. Nil fields are left untouched; the
// Clear* flags set the matching nullable column to NULL.
type AccountUpdate struct {
	FailedLoginAttempts  *int
	AccountLockedUntil   *time.Time
	ClearLockedUntil     bool
	IsActive             *bool
	TwoFactorEnabled     *bool
	TwoFactorSecret      *string
	ClearTwoFactorSecret bool
	TwoFactorBackupCodes BackupCodes
}

// IsEmpty reports whether the update would change nothing
func (u AccountUpdate) IsEmpty() bool {
	return u.FailedLoginAttempts == nil &&
		u.AccountLockedUntil == nil &&
		!u.ClearLockedUntil &&
		u.IsActive == nil &&
		u.TwoFactorEnabled == nil &&
		u.TwoFactorSecret == nil &&
		!u.ClearTwoFactorSecret &&
		u.TwoFactorBackupCodes == nil
}
