package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/resera/internal/database"
	"github.com/BradenHooton/resera/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

const accountColumns = `id, email, password_hash, is_active, failed_login_attempts,
	account_locked_until, password_changed_at, password_history,
	two_factor_enabled, two_factor_secret, two_factor_backup_codes,
	created_at, updated_at`

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{pool: db.Pool}
}

// rowScanner interface for scanning account rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	var history []string

	err := scanner.Scan(
		&account.ID, &account.Email, &account.PasswordHash, &account.IsActive,
		&account.FailedLoginAttempts, &account.AccountLockedUntil, &account.PasswordChangedAt,
		pq.Array(&history), &account.TwoFactorEnabled, &account.TwoFactorSecret,
		&account.TwoFactorBackupCodes, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if history == nil {
		history = []string{}
	}
	account.PasswordHistory = history
	if account.TwoFactorBackupCodes == nil {
		account.TwoFactorBackupCodes = models.BackupCodes{}
	}

	return &account, nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email) = lower($1)`
	return scanAccountRow(r.pool.QueryRow(ctx, query, strings.TrimSpace(email)))
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccountRow(r.pool.QueryRow(ctx, query, id))
}

// Create inserts a new account. ID and timestamps are assigned here.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	account.ID = uuid.New().String()

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	if account.PasswordChangedAt.IsZero() {
		account.PasswordChangedAt = now
	}
	if account.PasswordHistory == nil {
		account.PasswordHistory = []string{}
	}

	query := `
		INSERT INTO accounts (id, email, password_hash, is_active, password_changed_at,
			password_history, two_factor_enabled, two_factor_backup_codes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query,
		account.ID, strings.ToLower(strings.TrimSpace(account.Email)), account.PasswordHash,
		account.IsActive, account.PasswordChangedAt, pq.Array(account.PasswordHistory),
		account.TwoFactorEnabled, jsonCodes(account.TwoFactorBackupCodes),
		account.CreatedAt, account.UpdatedAt,
	))
}

// IncrementFailedAttempts bumps the failure counter in one statement and
// returns the new value, so concurrent failures are never undercounted.
func (r *AccountRepository) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE accounts
		SET failed_login_attempts = failed_login_attempts + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING failed_login_attempts
	`

	var count int
	if err := r.pool.QueryRow(ctx, query, id).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// Update applies the non-nil fields of upd
func (r *AccountRepository) Update(ctx context.Context, id string, upd models.AccountUpdate) error {
	if upd.IsEmpty() {
		return nil
	}

	sets := make([]string, 0, 8)
	args := make([]interface{}, 0, 9)
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.FailedLoginAttempts != nil {
		add("failed_login_attempts", *upd.FailedLoginAttempts)
	}
	if upd.ClearLockedUntil {
		sets = append(sets, "account_locked_until = NULL")
	} else if upd.AccountLockedUntil != nil {
		add("account_locked_until", *upd.AccountLockedUntil)
	}
	if upd.IsActive != nil {
		add("is_active", *upd.IsActive)
	}
	if upd.TwoFactorEnabled != nil {
		add("two_factor_enabled", *upd.TwoFactorEnabled)
	}
	if upd.ClearTwoFactorSecret {
		sets = append(sets, "two_factor_secret = NULL")
	} else if upd.TwoFactorSecret != nil {
		add("two_factor_secret", *upd.TwoFactorSecret)
	}
	if upd.TwoFactorBackupCodes != nil {
		add("two_factor_backup_codes", jsonCodes(upd.TwoFactorBackupCodes))
	}
	sets = append(sets, "updated_at = NOW()")

	args = append(args, id)
	query := fmt.Sprintf("UPDATE accounts SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", database.MapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ConsumeBackupCode removes codeHash from the stored set only if it is still
// present. It returns false when the code was already used.
func (r *AccountRepository) ConsumeBackupCode(ctx context.Context, id, codeHash string) (bool, error) {
	query := `
		UPDATE accounts
		SET two_factor_backup_codes = two_factor_backup_codes - $2::text, updated_at = NOW()
		WHERE id = $1 AND two_factor_backup_codes ? $2::text
	`

	tag, err := r.pool.Exec(ctx, query, id, codeHash)
	if err != nil {
		return false, fmt.Errorf("failed to consume backup code: %w", database.MapPostgresError(err))
	}
	return tag.RowsAffected() == 1, nil
}

// ClaimTwoFactorStep records step as the last accepted TOTP step. It returns
// false when that step or a later one was already claimed.
func (r *AccountRepository) ClaimTwoFactorStep(ctx context.Context, id string, step int64) (bool, error) {
	query := `
		UPDATE accounts
		SET two_factor_last_step = $2, updated_at = NOW()
		WHERE id = $1 AND (two_factor_last_step IS NULL OR two_factor_last_step < $2)
	`

	tag, err := r.pool.Exec(ctx, query, id, step)
	if err != nil {
		return false, fmt.Errorf("failed to claim two-factor step: %w", database.MapPostgresError(err))
	}
	return tag.RowsAffected() == 1, nil
}

// ReplacePassword swaps the password hash only if it still equals
// expectedHash. Returns ErrConflict when a concurrent change won.
func (r *AccountRepository) ReplacePassword(ctx context.Context, id, expectedHash, newHash string, history []string, changedAt time.Time) error {
	if history == nil {
		history = []string{}
	}

	query := `
		UPDATE accounts
		SET password_hash = $3, password_history = $4, password_changed_at = $5, updated_at = NOW()
		WHERE id = $1 AND password_hash = $2
	`

	tag, err := r.pool.Exec(ctx, query, id, expectedHash, newHash, pq.Array(history), changedAt)
	if err != nil {
		return fmt.Errorf("failed to replace password: %w", database.MapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return models.ErrConflict
	}
	return nil
}

// jsonCodes never returns nil so the column never receives JSON null
func jsonCodes(codes models.BackupCodes) []string {
	if codes == nil {
		return []string{}
	}
	return []string(codes)
}
