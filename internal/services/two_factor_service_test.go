package services

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/resera/internal/auth"
	"github.com/BradenHooton/resera/internal/models"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTwoFactorFixture(t *testing.T) (*TwoFactorService, *MockAccountRepository, *MockNotifier, *models.Account) {
	t.Helper()
	account := newTestAccount("tess@example.com")
	repo := NewMockAccountRepository(account)
	notifier := &MockNotifier{}
	svc := NewTwoFactorService(repo, newTestTOTPManager(), 10, notifier, testLogger(), testAuditLogger())
	return svc, repo, notifier, account
}

func enroll(t *testing.T, svc *TwoFactorService, accountID string) (string, []string) {
	t.Helper()
	enrollment, err := svc.BeginEnrollment(context.Background(), accountID)
	require.NoError(t, err)

	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)

	codes, err := svc.ConfirmEnrollment(context.Background(), accountID, code)
	require.NoError(t, err)
	return enrollment.Secret, codes
}

func TestTwoFactor_EnrollmentLifecycle(t *testing.T) {
	svc, repo, notifier, account := newTwoFactorFixture(t)
	ctx := context.Background()

	status, err := svc.Status(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, &TwoFactorStatus{}, status)

	enrollment, err := svc.BeginEnrollment(ctx, account.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.Secret)
	assert.Contains(t, enrollment.URL, "otpauth://totp/")
	assert.Contains(t, enrollment.QRCode, "data:image/png;base64,")

	stored := repo.Get(account.ID)
	assert.False(t, stored.TwoFactorEnabled)
	assert.NotEqual(t, enrollment.Secret, stored.SealedSecret())

	status, err = svc.Status(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, status.Pending)
	assert.False(t, status.Enabled)

	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)
	codes, err := svc.ConfirmEnrollment(ctx, account.ID, code)
	require.NoError(t, err)
	assert.Len(t, codes, 10)

	stored = repo.Get(account.ID)
	assert.True(t, stored.TwoFactorEnabled)
	assert.Len(t, stored.TwoFactorBackupCodes, 10)
	assert.True(t, auth.VerifyBackupCode(codes[0], stored.TwoFactorBackupCodes))

	status, err = svc.Status(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, &TwoFactorStatus{Enabled: true, BackupCodesRemaining: 10}, status)
	assert.Equal(t, []bool{true}, notifier.TwoFactor)
}

func TestTwoFactor_BeginWhenEnabled(t *testing.T) {
	svc, _, _, account := newTwoFactorFixture(t)
	enroll(t, svc, account.ID)

	_, err := svc.BeginEnrollment(context.Background(), account.ID)
	assert.ErrorIs(t, err, models.ErrTwoFactorAlreadySet)
}

func TestTwoFactor_ConfirmWithoutPending(t *testing.T) {
	svc, _, _, account := newTwoFactorFixture(t)

	_, err := svc.ConfirmEnrollment(context.Background(), account.ID, "123456")
	assert.ErrorIs(t, err, models.ErrTwoFactorNotPending)
}

func TestTwoFactor_ConfirmWrongCode(t *testing.T) {
	svc, repo, _, account := newTwoFactorFixture(t)
	enrollment, err := svc.BeginEnrollment(context.Background(), account.ID)
	require.NoError(t, err)

	code, err := totp.GenerateCode(enrollment.Secret, time.Now().Add(-10*time.Minute))
	require.NoError(t, err)
	current, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)
	if code == current {
		t.Skip("stale code collided with current code")
	}

	_, err = svc.ConfirmEnrollment(context.Background(), account.ID, code)
	assert.ErrorIs(t, err, models.ErrInvalidTwoFactorCode)
	assert.False(t, repo.Get(account.ID).TwoFactorEnabled)
}

func TestTwoFactor_Disable(t *testing.T) {
	svc, repo, notifier, account := newTwoFactorFixture(t)
	ctx := context.Background()

	err := svc.Disable(ctx, account.ID, testPassword)
	assert.ErrorIs(t, err, models.ErrTwoFactorNotEnabled)

	enroll(t, svc, account.ID)

	err = svc.Disable(ctx, account.ID, "wrong")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	require.NoError(t, svc.Disable(ctx, account.ID, testPassword))

	stored := repo.Get(account.ID)
	assert.False(t, stored.TwoFactorEnabled)
	assert.Nil(t, stored.TwoFactorSecret)
	assert.Empty(t, stored.TwoFactorBackupCodes)
	assert.Equal(t, []bool{true, false}, notifier.TwoFactor)
}

func TestTwoFactor_RegenerateBackupCodes(t *testing.T) {
	svc, repo, _, account := newTwoFactorFixture(t)
	ctx := context.Background()
	_, original := enroll(t, svc, account.ID)

	_, err := svc.RegenerateBackupCodes(ctx, account.ID, "wrong")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	fresh, err := svc.RegenerateBackupCodes(ctx, account.ID, testPassword)
	require.NoError(t, err)
	assert.Len(t, fresh, 10)

	stored := repo.Get(account.ID)
	assert.True(t, auth.VerifyBackupCode(fresh[0], stored.TwoFactorBackupCodes))
	assert.NotEqual(t, auth.HashBackupCodes(original), stored.TwoFactorBackupCodes)
}

func TestTwoFactor_UnknownAccount(t *testing.T) {
	svc, _, _, _ := newTwoFactorFixture(t)

	_, err := svc.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}
