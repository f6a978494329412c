package services

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/resera/internal/auth"
	"github.com/BradenHooton/resera/internal/models"
	pkgauth "github.com/BradenHooton/resera/pkg/auth"
	pkglogger "github.com/BradenHooton/resera/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	pkgauth.HashCost = bcrypt.MinCost
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(testLogger())
}

// MockAccountRepository is an in-memory AccountRepository. The ...Err fields
// force a method to fail.
type MockAccountRepository struct {
	mu        sync.Mutex
	accounts  map[string]*models.Account
	lastSteps map[string]int64

	FindErr      error
	IncrementErr error
	UpdateErr    error
	ReplaceErr   error

	Updates int
}

func NewMockAccountRepository(accounts ...*models.Account) *MockAccountRepository {
	m := &MockAccountRepository{
		accounts:  make(map[string]*models.Account),
		lastSteps: make(map[string]int64),
	}
	for _, a := range accounts {
		m.accounts[a.ID] = a
	}
	return m
}

// Get returns a copy of the stored account
func (m *MockAccountRepository) Get(id string) *models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[id]; ok {
		return cloneAccount(a)
	}
	return nil
}

func (m *MockAccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, email) {
			return cloneAccount(a), nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	if a, ok := m.accounts[id]; ok {
		return cloneAccount(a), nil
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, account.Email) {
			return nil, models.ErrConflict
		}
	}
	created := cloneAccount(account)
	created.ID = uuid.NewString()
	created.Email = strings.ToLower(created.Email)
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	m.accounts[created.ID] = created
	return cloneAccount(created), nil
}

func (m *MockAccountRepository) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.IncrementErr != nil {
		return 0, m.IncrementErr
	}
	a, ok := m.accounts[id]
	if !ok {
		return 0, models.ErrNotFound
	}
	a.FailedLoginAttempts++
	return a.FailedLoginAttempts, nil
}

func (m *MockAccountRepository) Update(ctx context.Context, id string, upd models.AccountUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	a, ok := m.accounts[id]
	if !ok {
		return models.ErrNotFound
	}
	m.Updates++

	if upd.FailedLoginAttempts != nil {
		a.FailedLoginAttempts = *upd.FailedLoginAttempts
	}
	if upd.AccountLockedUntil != nil {
		until := *upd.AccountLockedUntil
		a.AccountLockedUntil = &until
	}
	if upd.ClearLockedUntil {
		a.AccountLockedUntil = nil
	}
	if upd.IsActive != nil {
		a.IsActive = *upd.IsActive
	}
	if upd.TwoFactorEnabled != nil {
		a.TwoFactorEnabled = *upd.TwoFactorEnabled
	}
	if upd.TwoFactorSecret != nil {
		secret := *upd.TwoFactorSecret
		a.TwoFactorSecret = &secret
	}
	if upd.ClearTwoFactorSecret {
		a.TwoFactorSecret = nil
	}
	if upd.TwoFactorBackupCodes != nil {
		a.TwoFactorBackupCodes = append(models.BackupCodes{}, upd.TwoFactorBackupCodes...)
	}
	return nil
}

func (m *MockAccountRepository) ConsumeBackupCode(ctx context.Context, id, codeHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return false, models.ErrNotFound
	}
	for i, h := range a.TwoFactorBackupCodes {
		if h == codeHash {
			codes := append(models.BackupCodes{}, a.TwoFactorBackupCodes[:i]...)
			a.TwoFactorBackupCodes = append(codes, a.TwoFactorBackupCodes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *MockAccountRepository) ClaimTwoFactorStep(ctx context.Context, id string, step int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return false, models.ErrNotFound
	}
	if last, ok := m.lastSteps[id]; ok && last >= step {
		return false, nil
	}
	m.lastSteps[id] = step
	return true, nil
}

func (m *MockAccountRepository) ReplacePassword(ctx context.Context, id, expectedHash, newHash string, history []string, changedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReplaceErr != nil {
		return m.ReplaceErr
	}
	a, ok := m.accounts[id]
	if !ok {
		return models.ErrNotFound
	}
	if a.PasswordHash != expectedHash {
		return models.ErrConflict
	}
	a.PasswordHash = newHash
	a.PasswordHistory = append([]string{}, history...)
	a.PasswordChangedAt = changedAt
	return nil
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	if a.AccountLockedUntil != nil {
		until := *a.AccountLockedUntil
		c.AccountLockedUntil = &until
	}
	if a.TwoFactorSecret != nil {
		secret := *a.TwoFactorSecret
		c.TwoFactorSecret = &secret
	}
	c.PasswordHistory = append([]string{}, a.PasswordHistory...)
	c.TwoFactorBackupCodes = append(models.BackupCodes{}, a.TwoFactorBackupCodes...)
	return &c
}

// MockLoginLogRepository records appended entries
type MockLoginLogRepository struct {
	mu        sync.Mutex
	Entries   []models.LoginLogEntry
	AppendErr error
}

func (m *MockLoginLogRepository) Append(ctx context.Context, entry *models.LoginLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.Entries = append(m.Entries, *entry)
	return nil
}

func (m *MockLoginLogRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Entries)
}

func (m *MockLoginLogRepository) Last() models.LoginLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Entries[len(m.Entries)-1]
}

// MockNotifier records every notice it is asked to send
type MockNotifier struct {
	mu              sync.Mutex
	Lockouts        []string
	PasswordChanges []string
	TwoFactor       []bool
	Err             error
}

func (m *MockNotifier) NotifyLockout(ctx context.Context, email string, lockedUntil time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lockouts = append(m.Lockouts, email)
	return m.Err
}

func (m *MockNotifier) NotifyPasswordChanged(ctx context.Context, email string, changedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PasswordChanges = append(m.PasswordChanges, email)
	return m.Err
}

func (m *MockNotifier) NotifyTwoFactorChanged(ctx context.Context, email string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TwoFactor = append(m.TwoFactor, enabled)
	return m.Err
}

const (
	testJWTSecret = "test-secret-that-is-at-least-32-bytes-long!!"
	testPassword  = "Correct-Horse-9"
)

var testEncryptionKey = []byte("0123456789abcdef0123456789abcdef")

func newTestTokenManager() *auth.TokenManager {
	return auth.NewTokenManager(testJWTSecret, 15*time.Minute, 5*time.Minute)
}

func newTestTOTPManager() *auth.TOTPManager {
	tm, err := auth.NewTOTPManager(testEncryptionKey, "Resera")
	if err != nil {
		panic(err)
	}
	return tm
}

// newTestAccount builds an active account whose password is testPassword
func newTestAccount(email string) *models.Account {
	hash, err := pkgauth.HashPassword(testPassword)
	if err != nil {
		panic(err)
	}
	return &models.Account{
		ID:                   uuid.NewString(),
		Email:                email,
		PasswordHash:         hash,
		IsActive:             true,
		PasswordChangedAt:    time.Now(),
		PasswordHistory:      []string{},
		TwoFactorBackupCodes: models.BackupCodes{},
	}
}
