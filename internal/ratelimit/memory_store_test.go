package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/resera/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Sweep(t *testing.T) {
	store := ratelimit.NewMemoryStore(0)
	defer store.Shutdown()

	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	_, _, err := store.Increment(ctx, "short", time.Minute, now)
	require.NoError(t, err)
	_, _, err = store.Increment(ctx, "long", time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())

	assert.Equal(t, 0, store.Sweep(now.Add(30*time.Second)))
	assert.Equal(t, 1, store.Sweep(now.Add(time.Minute)))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_LazyExpiryWithoutSweep(t *testing.T) {
	store := ratelimit.NewMemoryStore(0)
	defer store.Shutdown()

	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	count, _, _ := store.Increment(ctx, "k", time.Minute, now)
	assert.Equal(t, 1, count)
	count, _, _ = store.Increment(ctx, "k", time.Minute, now.Add(time.Second))
	assert.Equal(t, 2, count)

	count, resetAt, _ := store.Increment(ctx, "k", time.Minute, now.Add(2*time.Minute))
	assert.Equal(t, 1, count)
	assert.Equal(t, now.Add(3*time.Minute), resetAt)
}

func TestMemoryStore_BackgroundSweep(t *testing.T) {
	store := ratelimit.NewMemoryStore(10 * time.Millisecond)
	defer store.Shutdown()

	_, _, err := store.Increment(context.Background(), "old", time.Millisecond, time.Now().Add(-time.Second))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestMemoryStore_ShutdownIdempotent(t *testing.T) {
	store := ratelimit.NewMemoryStore(time.Minute)

	assert.NotPanics(t, func() {
		store.Shutdown()
		store.Shutdown()
	})
}
