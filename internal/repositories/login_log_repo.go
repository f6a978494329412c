package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/resera/internal/database"
	"github.com/BradenHooton/resera/internal/models"
)

// LoginLogRepository appends and prunes the login audit trail
type LoginLogRepository struct {
	db *database.DB
}

// NewLoginLogRepository creates a new LoginLogRepository
func NewLoginLogRepository(db *database.DB) *LoginLogRepository {
	return &LoginLogRepository{db: db}
}

// Append inserts one login log row. The entry's ID and CreatedAt are filled in.
func (r *LoginLogRepository) Append(ctx context.Context, entry *models.LoginLogEntry) error {
	query := `
		INSERT INTO login_logs (account_id, success, failure_reason, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		entry.AccountID,
		entry.Success,
		entry.FailureReason,
		entry.IPAddress,
		entry.UserAgent,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append login log: %w", database.MapPostgresError(err))
	}

	return nil
}

// ListByAccount returns the most recent entries for an account, newest first
func (r *LoginLogRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.LoginLogEntry, error) {
	query := `
		SELECT id, account_id, success, failure_reason, ip_address, user_agent, created_at
		FROM login_logs
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query login logs: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.LoginLogEntry, 0)
	for rows.Next() {
		var e models.LoginLogEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Success, &e.FailureReason, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan login log: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return entries, nil
}

// DeleteOlderThan removes rows created before cutoff and returns how many were deleted
func (r *LoginLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM login_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old login logs: %w", err)
	}
	return tag.RowsAffected(), nil
}
