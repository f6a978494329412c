package models

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// FactorKind tags the second factor supplied with a login request.
type FactorKind int

const (
	FactorNone FactorKind = iota
	FactorTOTP
	FactorBackupCode
)

func (k FactorKind) String() string {
	switch k {
	case FactorTOTP:
		return "totp"
	case FactorBackupCode:
		return "backup_code"
	default:
		return "none"
	}
}

// Factor is a tagged second-factor value: either nothing, a TOTP code,
// or a backup code. Build it with NoFactor, TOTPFactor or BackupFactor.
type Factor struct {
	Kind  FactorKind
	Value string
}

func NoFactor() Factor { return Factor{Kind: FactorNone} }
func TOTPFactor(code string) Factor { return Factor{Kind: FactorTOTP, Value: code} }
func BackupFactor(code string) Factor { return Factor{Kind: FactorBackupCode, Value: code} }

// LoginRequest is the decoded credential payload handed to the authenticator.
type LoginRequest struct {
	Email    string
	Password string
	Factor   Factor
}

// RequestMeta describes where an attempt came from. It only feeds the audit trail.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// AuthStatus is the non-error outcome of an authentication attempt.
type AuthStatus int

const (
	AuthStatusAuthenticated AuthStatus = iota
	AuthStatusTwoFactorRequired
)

// AuthResult is returned when an attempt did not fail. When Status is
// AuthStatusTwoFactorRequired only Identity and ChallengeToken are populated.
type AuthResult struct {
	Status              AuthStatus
	Identity            Identity
	PasswordExpired     bool
	DaysUntilExpiration *int // nil when password expiration is disabled
	AccessToken         string
	ExpiresAt           time.Time
	ChallengeToken      string
}

// AuthError is a terminal authentication failure. Err is one of the
// authentication sentinels; errors.Is matches through Unwrap.
type AuthError struct {
	Err               error
	AttemptsRemaining int           // set only for a wrong password that did not lock
	RetryAfter        time.Duration // set only for ErrAccountLocked
}

func (e *AuthError) Error() string {
	switch {
	case e.AttemptsRemaining > 0:
		return fmt.Sprintf("%s: %d attempts remaining", e.Err, e.AttemptsRemaining)
	case e.RetryAfter > 0:
		return fmt.Sprintf("%s: retry after %s", e.Err, e.RetryAfter.Round(time.Second))
	default:
		return e.Err.Error()
	}
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Token types
const (
	TokenTypeAccess             = "access"
	TokenTypeTwoFactorChallenge = "2fa_challenge"
)

// TokenClaims are the JWT claims issued by the token manager
type TokenClaims struct {
	Type            string `json:"type"`
	AccountID       string `json:"account_id"`
	Email           string `json:"email,omitempty"`
	PasswordExpired bool   `json:"password_expired,omitempty"`
	jwt.RegisteredClaims
}
