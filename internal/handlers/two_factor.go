package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/resera/internal/auth"
	"github.com/BradenHooton/resera/internal/models"
	"github.com/BradenHooton/resera/internal/services"
	pkghttp "github.com/BradenHooton/resera/pkg/http"
)

// TwoFactorManager manages TOTP enrollment and backup codes
type TwoFactorManager interface {
	Status(ctx context.Context, accountID string) (*services.TwoFactorStatus, error)
	BeginEnrollment(ctx context.Context, accountID string) (*auth.Enrollment, error)
	ConfirmEnrollment(ctx context.Context, accountID, code string) ([]string, error)
	Disable(ctx context.Context, accountID, password string) error
	RegenerateBackupCodes(ctx context.Context, accountID, password string) ([]string, error)
}

// TwoFactorHandler handles two-factor HTTP requests. Every route requires a
// bearer token.
type TwoFactorHandler struct {
	service TwoFactorManager
	logger  *slog.Logger
}

// NewTwoFactorHandler creates a new TwoFactorHandler
func NewTwoFactorHandler(service TwoFactorManager, logger *slog.Logger) *TwoFactorHandler {
	return &TwoFactorHandler{
		service: service,
		logger:  logger,
	}
}

// Status handles GET /auth/2fa
func (h *TwoFactorHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	status, err := h.service.Status(r.Context(), id)
	if err != nil {
		h.writeError(w, id, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, status)
}

// Setup handles POST /auth/2fa/setup
func (h *TwoFactorHandler) Setup(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	enrollment, err := h.service.BeginEnrollment(r.Context(), id)
	if err != nil {
		h.writeError(w, id, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, TwoFactorSetupResponse{
		Secret:     enrollment.Secret,
		OTPAuthURL: enrollment.URL,
		QRCode:     enrollment.QRCode,
	})
}

// Confirm handles POST /auth/2fa/confirm
func (h *TwoFactorHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var req ConfirmTwoFactorRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	codes, err := h.service.ConfirmEnrollment(r.Context(), id, req.Code)
	if err != nil {
		h.writeError(w, id, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, BackupCodesResponse{BackupCodes: codes})
}

// Disable handles POST /auth/2fa/disable
func (h *TwoFactorHandler) Disable(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var req PasswordConfirmationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.Disable(r.Context(), id, req.Password); err != nil {
		h.writeError(w, id, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Two-factor authentication disabled"})
}

// RegenerateBackupCodes handles POST /auth/2fa/backup-codes
func (h *TwoFactorHandler) RegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var req PasswordConfirmationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	codes, err := h.service.RegenerateBackupCodes(r.Context(), id, req.Password)
	if err != nil {
		h.writeError(w, id, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, BackupCodesResponse{BackupCodes: codes})
}

func (h *TwoFactorHandler) writeError(w http.ResponseWriter, accountID string, err error) {
	switch {
	case errors.Is(err, models.ErrTwoFactorAlreadySet):
		pkghttp.WriteConflict(w, "Two-factor authentication is already enabled")
	case errors.Is(err, models.ErrTwoFactorNotPending):
		pkghttp.WriteError(w, http.StatusBadRequest, "two_factor_not_pending", "No two-factor setup is in progress")
	case errors.Is(err, models.ErrTwoFactorNotEnabled):
		pkghttp.WriteError(w, http.StatusBadRequest, "two_factor_not_enabled", "Two-factor authentication is not enabled")
	case errors.Is(err, models.ErrInvalidTwoFactorCode):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_two_factor_code", "Invalid two-factor code")
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteUnauthorized(w, "Password is incorrect")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Unauthorized")
	default:
		h.logger.Error("two-factor request failed", slog.String("account_id", accountID), slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
