package auth_test

import (
	"testing"
	"time"

	"github.com/BradenHooton/resera/internal/auth"
	"github.com/stretchr/testify/assert"
)

func TestIsLocked(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Minute)
	past := now.Add(-time.Second)

	assert.False(t, auth.IsLocked(nil, now))
	assert.True(t, auth.IsLocked(&future, now))
	assert.False(t, auth.IsLocked(&past, now), "expired lock must read as unlocked")
	assert.False(t, auth.IsLocked(&now, now), "lock ending exactly now is released")
}

func TestComputeLockoutExpiry(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(15*time.Minute), auth.ComputeLockoutExpiry(15, now))
	assert.Equal(t, now, auth.ComputeLockoutExpiry(0, now))
}

func TestLockoutRemaining(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	until := now.Add(90 * time.Second)
	past := now.Add(-time.Hour)

	assert.Equal(t, 90*time.Second, auth.LockoutRemaining(&until, now))
	assert.Zero(t, auth.LockoutRemaining(&past, now))
	assert.Zero(t, auth.LockoutRemaining(nil, now))
}
