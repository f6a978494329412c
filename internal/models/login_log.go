package models

import "time"

// Failure reasons recorded on login log rows. They stay internal: the HTTP
// boundary collapses them into generic messages.
const (
	LoginFailureUnknownAccount = "unknown_account"
	LoginFailureInactive       = "account_inactive"
	LoginFailureLocked         = "account_locked"
	LoginFailureBadPassword    = "invalid_password"
	LoginFailureLockoutTrigger = "lockout_triggered"
	LoginFailureBadTwoFactor   = "invalid_two_factor"
)

// LoginLogEntry is one append-only row per completed authentication attempt.
type LoginLogEntry struct {
	ID            int64
	AccountID     *string // nil when the email matched no account
	Success       bool
	FailureReason *string
	IPAddress     string
	UserAgent     string
	CreatedAt     time.Time
}
