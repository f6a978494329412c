package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Authentication outcomes
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrAccountLocked        = errors.New("account is temporarily locked")
	ErrAccountInactive      = errors.New("account is inactive")
	ErrInvalidTwoFactorCode = errors.New("invalid two-factor code")
	ErrRateLimitExceeded    = errors.New("rate limit exceeded")

	// Password and two-factor management
	ErrWeakPassword        = errors.New("password does not meet policy")
	ErrPasswordReused      = errors.New("password was used recently")
	ErrTwoFactorNotPending = errors.New("no two-factor enrollment in progress")
	ErrTwoFactorAlreadySet = errors.New("two-factor authentication already enabled")
	ErrTwoFactorNotEnabled = errors.New("two-factor authentication not enabled")
	ErrInvalidChallenge    = errors.New("invalid or expired two-factor challenge")
)
