package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/resera/internal/models"
	pkghttp "github.com/BradenHooton/resera/pkg/http"
)

// Authenticator runs login attempts
type Authenticator interface {
	Authenticate(ctx context.Context, req models.LoginRequest, meta models.RequestMeta) (*models.AuthResult, error)
	CompleteTwoFactor(ctx context.Context, accountID string, factor models.Factor, meta models.RequestMeta) (*models.AuthResult, error)
}

// ChallengeValidator verifies two-factor challenge tokens
type ChallengeValidator interface {
	ValidateToken(tokenString, expectedType string) (*models.TokenClaims, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authenticator Authenticator
	challenges    ChallengeValidator
	ipConfig      *pkghttp.IPConfig
	logger        *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authenticator Authenticator, challenges ChallengeValidator, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authenticator: authenticator,
		challenges:    challenges,
		ipConfig:      ipConfig,
		logger:        logger,
	}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.authenticator.Authenticate(r.Context(), models.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
		Factor:   factorFrom(req.TwoFactorCode, req.BackupCode),
	}, requestMeta(r, h.ipConfig))
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	writeAuthResult(w, result)
}

// LoginTwoFactor handles POST /auth/login/2fa
func (h *AuthHandler) LoginTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req TwoFactorLoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.TwoFactorCode == "" && req.BackupCode == "" {
		pkghttp.WriteBadRequest(w, "validation failed: two_factor_code or backup_code is required")
		return
	}

	claims, err := h.challenges.ValidateToken(req.ChallengeToken, models.TokenTypeTwoFactorChallenge)
	if err != nil {
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_challenge", "Two-factor challenge is invalid or expired")
		return
	}

	result, err := h.authenticator.CompleteTwoFactor(r.Context(), claims.AccountID,
		factorFrom(req.TwoFactorCode, req.BackupCode), requestMeta(r, h.ipConfig))
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	writeAuthResult(w, result)
}

func writeAuthResult(w http.ResponseWriter, result *models.AuthResult) {
	if result.Status == models.AuthStatusTwoFactorRequired {
		pkghttp.WriteJSON(w, http.StatusAccepted, TwoFactorChallengeResponse{
			TwoFactorRequired: true,
			ChallengeToken:    result.ChallengeToken,
		})
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
		AccessToken:         result.AccessToken,
		TokenType:           "Bearer",
		ExpiresAt:           result.ExpiresAt,
		Account:             result.Identity,
		PasswordExpired:     result.PasswordExpired,
		DaysUntilExpiration: result.DaysUntilExpiration,
	})
}

// writeAuthError collapses unknown-account, inactive and wrong-password
// failures into the same message. Only a lock discloses a wait time.
func (h *AuthHandler) writeAuthError(w http.ResponseWriter, err error) {
	var authErr *models.AuthError
	errors.As(err, &authErr)

	switch {
	case errors.Is(err, models.ErrAccountLocked):
		retryAfter := lockoutFallback
		if authErr != nil && authErr.RetryAfter > 0 {
			retryAfter = authErr.RetryAfter
		}
		pkghttp.WriteLocked(w, retryAfter)
	case errors.Is(err, models.ErrInvalidCredentials), errors.Is(err, models.ErrAccountInactive):
		resp := InvalidCredentialsResponse{
			Error:   "invalid_credentials",
			Message: "Invalid email or password",
		}
		if authErr != nil && errors.Is(err, models.ErrInvalidCredentials) {
			resp.AttemptsRemaining = authErr.AttemptsRemaining
		}
		pkghttp.WriteJSON(w, http.StatusUnauthorized, resp)
	case errors.Is(err, models.ErrInvalidTwoFactorCode):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_two_factor_code", "Invalid two-factor code")
	case errors.Is(err, models.ErrInvalidChallenge):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_challenge", "Two-factor challenge is invalid or expired")
	default:
		h.logger.Error("login failed with internal error", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
