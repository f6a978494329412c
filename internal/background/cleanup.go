package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LoginLogPurger deletes login log rows recorded before cutoff
type LoginLogPurger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupManager periodically removes login log entries older than the
// retention period
type CleanupManager struct {
	loginLogs LoginLogPurger
	logger    *slog.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewCleanupManager creates a new cleanup manager. A non-positive retention
// keeps login logs forever and makes Start return immediately.
func NewCleanupManager(
	loginLogs LoginLogPurger,
	logger *slog.Logger,
	interval time.Duration,
	retention time.Duration,
) *CleanupManager {
	return &CleanupManager{
		loginLogs: loginLogs,
		logger:    logger,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	if cm.retention <= 0 || cm.interval <= 0 {
		cm.logger.Info("login log cleanup disabled")
		return
	}

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce purges login log entries older than the retention period
func (cm *CleanupManager) RunOnce(ctx context.Context) int64 {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := cm.now().Add(-cm.retention)
	rowsDeleted, err := cm.loginLogs.DeleteOlderThan(cleanupCtx, cutoff)
	if err != nil {
		cm.logger.Error("failed to purge login logs", slog.Any("error", err))
		return 0
	}

	if rowsDeleted > 0 {
		cm.logger.Info("login log cleanup completed",
			slog.Int64("rows_deleted", rowsDeleted),
			slog.Time("cutoff", cutoff),
		)
	}
	return rowsDeleted
}

// Stop signals the cleanup manager to stop. It is safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
