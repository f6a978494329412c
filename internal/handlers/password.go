package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/resera/internal/models"
	pkgauth "github.com/BradenHooton/resera/pkg/auth"
	pkghttp "github.com/BradenHooton/resera/pkg/http"
)

// PasswordManager changes and grades passwords
type PasswordManager interface {
	ChangePassword(ctx context.Context, accountID, current, next string, meta models.RequestMeta) error
	CheckStrength(candidate string) pkgauth.PasswordValidation
}

// PasswordHandler handles password HTTP requests
type PasswordHandler struct {
	service  PasswordManager
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewPasswordHandler creates a new PasswordHandler
func NewPasswordHandler(service PasswordManager, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *PasswordHandler {
	return &PasswordHandler{
		service:  service,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// ChangePassword handles POST /auth/password
func (h *PasswordHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	err := h.service.ChangePassword(r.Context(), id, req.CurrentPassword, req.NewPassword, requestMeta(r, h.ipConfig))
	if err != nil {
		var validationErr *pkgauth.PasswordValidationError
		switch {
		case errors.As(err, &validationErr):
			pkghttp.WriteJSON(w, http.StatusBadRequest, PasswordPolicyErrorResponse{
				Error:   "weak_password",
				Message: "Password does not meet the password policy",
				Errors:  validationErr.Errors,
			})
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, "Current password is incorrect")
		case errors.Is(err, models.ErrPasswordReused):
			pkghttp.WriteError(w, http.StatusBadRequest, "password_reused", "Password was used recently")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Password was changed by another request")
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Unauthorized")
		default:
			h.logger.Error("failed to change password", slog.String("account_id", id), slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Password changed"})
}

// CheckStrength handles POST /auth/password/strength
func (h *PasswordHandler) CheckStrength(w http.ResponseWriter, r *http.Request) {
	var req PasswordStrengthRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, h.service.CheckStrength(req.Password))
}
