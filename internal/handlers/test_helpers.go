package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/resera/internal/auth"
	"github.com/BradenHooton/resera/internal/models"
	"github.com/BradenHooton/resera/internal/services"
	pkgauth "github.com/BradenHooton/resera/pkg/auth"
	pkghttp "github.com/BradenHooton/resera/pkg/http"
	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds access token claims to the request context
func WithAuthContext(req *http.Request, accountID, email string) *http.Request {
	claims := &models.TokenClaims{
		Type:      models.TokenTypeAccess,
		AccountID: accountID,
		Email:     email,
	}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthenticator implements Authenticator for testing
type MockAuthenticator struct {
	AuthenticateFunc      func(ctx context.Context, req models.LoginRequest, meta models.RequestMeta) (*models.AuthResult, error)
	CompleteTwoFactorFunc func(ctx context.Context, accountID string, factor models.Factor, meta models.RequestMeta) (*models.AuthResult, error)
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, req models.LoginRequest, meta models.RequestMeta) (*models.AuthResult, error) {
	if m.AuthenticateFunc == nil {
		return nil, &models.AuthError{Err: models.ErrInvalidCredentials}
	}
	return m.AuthenticateFunc(ctx, req, meta)
}

func (m *MockAuthenticator) CompleteTwoFactor(ctx context.Context, accountID string, factor models.Factor, meta models.RequestMeta) (*models.AuthResult, error) {
	if m.CompleteTwoFactorFunc == nil {
		return nil, models.ErrInvalidChallenge
	}
	return m.CompleteTwoFactorFunc(ctx, accountID, factor, meta)
}

// MockPasswordManager implements PasswordManager for testing
type MockPasswordManager struct {
	ChangePasswordFunc func(ctx context.Context, accountID, current, next string, meta models.RequestMeta) error
}

func (m *MockPasswordManager) ChangePassword(ctx context.Context, accountID, current, next string, meta models.RequestMeta) error {
	if m.ChangePasswordFunc == nil {
		return nil
	}
	return m.ChangePasswordFunc(ctx, accountID, current, next, meta)
}

func (m *MockPasswordManager) CheckStrength(candidate string) pkgauth.PasswordValidation {
	return pkgauth.ValidatePassword(candidate)
}

// MockTwoFactorManager implements TwoFactorManager for testing
type MockTwoFactorManager struct {
	StatusFunc                func(ctx context.Context, accountID string) (*services.TwoFactorStatus, error)
	BeginEnrollmentFunc       func(ctx context.Context, accountID string) (*auth.Enrollment, error)
	ConfirmEnrollmentFunc     func(ctx context.Context, accountID, code string) ([]string, error)
	DisableFunc               func(ctx context.Context, accountID, password string) error
	RegenerateBackupCodesFunc func(ctx context.Context, accountID, password string) ([]string, error)
}

func (m *MockTwoFactorManager) Status(ctx context.Context, accountID string) (*services.TwoFactorStatus, error) {
	if m.StatusFunc == nil {
		return &services.TwoFactorStatus{}, nil
	}
	return m.StatusFunc(ctx, accountID)
}

func (m *MockTwoFactorManager) BeginEnrollment(ctx context.Context, accountID string) (*auth.Enrollment, error) {
	if m.BeginEnrollmentFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.BeginEnrollmentFunc(ctx, accountID)
}

func (m *MockTwoFactorManager) ConfirmEnrollment(ctx context.Context, accountID, code string) ([]string, error) {
	if m.ConfirmEnrollmentFunc == nil {
		return nil, models.ErrTwoFactorNotPending
	}
	return m.ConfirmEnrollmentFunc(ctx, accountID, code)
}

func (m *MockTwoFactorManager) Disable(ctx context.Context, accountID, password string) error {
	if m.DisableFunc == nil {
		return nil
	}
	return m.DisableFunc(ctx, accountID, password)
}

func (m *MockTwoFactorManager) RegenerateBackupCodes(ctx context.Context, accountID, password string) ([]string, error) {
	if m.RegenerateBackupCodesFunc == nil {
		return nil, models.ErrTwoFactorNotEnabled
	}
	return m.RegenerateBackupCodesFunc(ctx, accountID, password)
}
