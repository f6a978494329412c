package handlers

import (
	"time"

	"github.com/BradenHooton/resera/internal/models"
)

// Login DTOs

// LoginRequest is the login body. At most one of TwoFactorCode and
// BackupCode may be set; neither means no second factor was offered.
type LoginRequest struct {
	Email         string `json:"email" validate:"required,email,max=254"`
	Password      string `json:"password" validate:"required,max=1024"`
	TwoFactorCode string `json:"two_factor_code" validate:"omitempty,numeric,len=6,excluded_with=BackupCode"`
	BackupCode    string `json:"backup_code" validate:"omitempty,max=32"`
}

// TwoFactorLoginRequest completes a login that answered two_factor_required
type TwoFactorLoginRequest struct {
	ChallengeToken string `json:"challenge_token" validate:"required"`
	TwoFactorCode  string `json:"two_factor_code" validate:"omitempty,numeric,len=6,excluded_with=BackupCode"`
	BackupCode     string `json:"backup_code" validate:"omitempty,max=32"`
}

// LoginResponse is returned on full authentication
type LoginResponse struct {
	AccessToken         string          `json:"access_token"`
	TokenType           string          `json:"token_type"`
	ExpiresAt           time.Time       `json:"expires_at"`
	Account             models.Identity `json:"account"`
	PasswordExpired     bool            `json:"password_expired"`
	DaysUntilExpiration *int            `json:"days_until_expiration,omitempty"`
}

// TwoFactorChallengeResponse asks the client for a second factor
type TwoFactorChallengeResponse struct {
	TwoFactorRequired bool   `json:"two_factor_required"`
	ChallengeToken    string `json:"challenge_token"`
}

// InvalidCredentialsResponse is the generic 401 body. AttemptsRemaining is
// only set after a wrong password that did not lock the account.
type InvalidCredentialsResponse struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	AttemptsRemaining int    `json:"attempts_remaining,omitempty"`
}

// Password DTOs

// ChangePasswordRequest is the body of POST /auth/password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required,max=1024"`
	NewPassword     string `json:"new_password" validate:"required,max=1024"`
}

// PasswordStrengthRequest is the body of POST /auth/password/strength
type PasswordStrengthRequest struct {
	Password string `json:"password" validate:"required,max=1024"`
}

// PasswordPolicyErrorResponse lists every rule the new password broke
type PasswordPolicyErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

// Two-factor DTOs

// TwoFactorSetupResponse carries the pending secret for the authenticator app
type TwoFactorSetupResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
	QRCode     string `json:"qr_code"` // PNG data URL
}

// ConfirmTwoFactorRequest proves possession of the pending secret
type ConfirmTwoFactorRequest struct {
	Code string `json:"code" validate:"required,numeric,len=6"`
}

// PasswordConfirmationRequest re-authenticates a sensitive two-factor change
type PasswordConfirmationRequest struct {
	Password string `json:"password" validate:"required,max=1024"`
}

// BackupCodesResponse shows freshly generated backup codes, once
type BackupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

// MessageResponse is a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

func factorFrom(totpCode, backupCode string) models.Factor {
	switch {
	case totpCode != "":
		return models.TOTPFactor(totpCode)
	case backupCode != "":
		return models.BackupFactor(backupCode)
	default:
		return models.NoFactor()
	}
}
