package background

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	mu      sync.Mutex
	cutoffs []time.Time
	deleted int64
	err     error
}

func (f *fakePurger) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.deleted, f.err
}

func (f *fakePurger) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnce_UsesRetentionCutoff(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	purger := &fakePurger{deleted: 42}
	cm := NewCleanupManager(purger, discardLogger(), time.Hour, 30*24*time.Hour)
	cm.now = func() time.Time { return now }

	deleted := cm.RunOnce(context.Background())

	assert.Equal(t, int64(42), deleted)
	require.Len(t, purger.cutoffs, 1)
	assert.Equal(t, now.Add(-30*24*time.Hour), purger.cutoffs[0])
}

func TestRunOnce_Error(t *testing.T) {
	purger := &fakePurger{err: errors.New("connection reset")}
	cm := NewCleanupManager(purger, discardLogger(), time.Hour, time.Hour)

	assert.Equal(t, int64(0), cm.RunOnce(context.Background()))
}

func TestStart_DisabledRetention(t *testing.T) {
	purger := &fakePurger{}
	cm := NewCleanupManager(purger, discardLogger(), time.Hour, 0)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return with retention disabled")
	}
	assert.Equal(t, 0, purger.calls())
}

func TestStart_RunsImmediatelyAndStops(t *testing.T) {
	purger := &fakePurger{}
	cm := NewCleanupManager(purger, discardLogger(), time.Hour, time.Hour)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return purger.calls() == 1 }, time.Second, 10*time.Millisecond)

	cm.Stop()
	cm.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestStart_ContextCancel(t *testing.T) {
	purger := &fakePurger{}
	cm := NewCleanupManager(purger, discardLogger(), time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return purger.calls() == 1 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after context cancel")
	}
}
