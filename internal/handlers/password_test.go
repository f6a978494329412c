package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/resera/internal/models"
	pkgauth "github.com/BradenHooton/resera/pkg/auth"
	"github.com/stretchr/testify/assert"
)

func TestChangePassword_Success(t *testing.T) {
	var gotID, gotCurrent, gotNext string
	h := NewPasswordHandler(&MockPasswordManager{
		ChangePasswordFunc: func(ctx context.Context, accountID, current, next string, meta models.RequestMeta) error {
			gotID, gotCurrent, gotNext = accountID, current, next
			return nil
		},
	}, nil, testLogger())

	req := NewTestRequest(t, http.MethodPost, "/auth/password", ChangePasswordRequest{
		CurrentPassword: "old-Password-1",
		NewPassword:     "new-Password-2",
	})
	req = WithAuthContext(req, "acc-1", "a@example.com")
	w := httptest.NewRecorder()
	h.ChangePassword(w, req)

	var resp MessageResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "acc-1", gotID)
	assert.Equal(t, "old-Password-1", gotCurrent)
	assert.Equal(t, "new-Password-2", gotNext)
}

func TestChangePassword_RequiresAuth(t *testing.T) {
	called := false
	h := NewPasswordHandler(&MockPasswordManager{
		ChangePasswordFunc: func(ctx context.Context, accountID, current, next string, meta models.RequestMeta) error {
			called = true
			return nil
		},
	}, nil, testLogger())

	w := httptest.NewRecorder()
	h.ChangePassword(w, NewTestRequest(t, http.MethodPost, "/auth/password", ChangePasswordRequest{
		CurrentPassword: "a", NewPassword: "b",
	}))

	AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
	assert.False(t, called)
}

func TestChangePassword_Errors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		errorCode string
	}{
		{"wrong current password", models.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized"},
		{"reused", models.ErrPasswordReused, http.StatusBadRequest, "password_reused"},
		{"concurrent change", fmt.Errorf("replace: %w", models.ErrConflict), http.StatusConflict, "conflict"},
		{"account gone", models.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"storage failure", fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewPasswordHandler(&MockPasswordManager{
				ChangePasswordFunc: func(ctx context.Context, accountID, current, next string, meta models.RequestMeta) error {
					return tt.err
				},
			}, nil, testLogger())

			req := NewTestRequest(t, http.MethodPost, "/auth/password", ChangePasswordRequest{
				CurrentPassword: "old", NewPassword: "new",
			})
			w := httptest.NewRecorder()
			h.ChangePassword(w, WithAuthContext(req, "acc-1", "a@example.com"))

			AssertErrorResponse(t, w, tt.status, tt.errorCode)
		})
	}
}

func TestChangePassword_WeakPasswordListsRules(t *testing.T) {
	h := NewPasswordHandler(&MockPasswordManager{
		ChangePasswordFunc: func(ctx context.Context, accountID, current, next string, meta models.RequestMeta) error {
			return fmt.Errorf("%w: %w", models.ErrWeakPassword, pkgauth.ValidatePassword("short").Err())
		},
	}, nil, testLogger())

	req := NewTestRequest(t, http.MethodPost, "/auth/password", ChangePasswordRequest{
		CurrentPassword: "old", NewPassword: "short",
	})
	w := httptest.NewRecorder()
	h.ChangePassword(w, WithAuthContext(req, "acc-1", "a@example.com"))

	var resp PasswordPolicyErrorResponse
	AssertJSONResponse(t, w, http.StatusBadRequest, &resp)
	assert.Equal(t, "weak_password", resp.Error)
	assert.NotEmpty(t, resp.Errors)
}

func TestCheckStrength(t *testing.T) {
	h := NewPasswordHandler(&MockPasswordManager{}, nil, testLogger())

	tests := []struct {
		name     string
		password string
		valid    bool
	}{
		{"weak", "abc", false},
		{"strong", "Correct-Horse-Battery-9", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.CheckStrength(w, NewTestRequest(t, http.MethodPost, "/auth/password/strength", PasswordStrengthRequest{
				Password: tt.password,
			}))

			var resp pkgauth.PasswordValidation
			AssertJSONResponse(t, w, http.StatusOK, &resp)
			assert.Equal(t, tt.valid, resp.Valid)
			assert.Equal(t, tt.valid, len(resp.Errors) == 0)
		})
	}
}

func TestCheckStrength_MissingPassword(t *testing.T) {
	h := NewPasswordHandler(&MockPasswordManager{}, nil, testLogger())

	w := httptest.NewRecorder()
	h.CheckStrength(w, NewTestRequest(t, http.MethodPost, "/auth/password/strength", map[string]string{}))

	AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}
