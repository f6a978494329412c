package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrUnknownTier is returned by Check for a tier with no policy
var ErrUnknownTier = errors.New("unknown rate limit tier")

// Store atomically increments the counter for key within a fixed window.
// It returns the post-increment count and the window's reset time.
// Implementations must serialize increment-and-read per key.
type Store interface {
	Increment(ctx context.Context, key string, window time.Duration, now time.Time) (count int, resetAt time.Time, err error)
}

// Result describes the outcome of one consumed request
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds; 0 when allowed
}

// Limiter applies fixed-window limits over a Store
type Limiter struct {
	store Store
	now   func() time.Time
}

// NewLimiter creates a Limiter over store
func NewLimiter(store Store) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// WithClock replaces the limiter's time source
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Key builds the counter key for identifier under a limit and window
func Key(identifier string, limit int, window time.Duration) string {
	return fmt.Sprintf("%s:%d:%d", identifier, limit, int64(window/time.Second))
}

// CheckAndConsume counts one request for identifier and reports whether it
// fits within limit requests per window
func (l *Limiter) CheckAndConsume(ctx context.Context, identifier string, limit int, window time.Duration) (Result, error) {
	if limit <= 0 || window <= 0 {
		return Result{}, fmt.Errorf("invalid rate limit %d per %s", limit, window)
	}

	now := l.now()
	count, resetAt, err := l.store.Increment(ctx, Key(identifier, limit, window), window, now)
	if err != nil {
		return Result{}, fmt.Errorf("rate limit store: %w", err)
	}

	res := Result{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: limit - count,
		ResetAt:   resetAt,
	}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		res.RetryAfter = retryAfterSeconds(resetAt, now)
	}

	return res, nil
}

// Check consumes one request for identifier under a predefined tier
func (l *Limiter) Check(ctx context.Context, identifier string, tier Tier) (Result, error) {
	policy, ok := PolicyFor(tier)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
	return l.CheckAndConsume(ctx, identifier, policy.Limit, policy.Window)
}

// retryAfterSeconds rounds up so a client never retries before the reset
func retryAfterSeconds(resetAt, now time.Time) int {
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
