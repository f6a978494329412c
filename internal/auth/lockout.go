package auth

import "time"

// IsLocked reports whether an account is locked at now. A lock whose expiry
// has passed counts as unlocked even if the stored timestamp was never cleared.
func IsLocked(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(now)
}

// ComputeLockoutExpiry returns the lock expiry for a lockout starting at now
func ComputeLockoutExpiry(durationMinutes int, now time.Time) time.Time {
	return now.Add(time.Duration(durationMinutes) * time.Minute)
}

// LockoutRemaining returns how long the lock still holds, or 0 when unlocked
func LockoutRemaining(lockedUntil *time.Time, now time.Time) time.Duration {
	if !IsLocked(lockedUntil, now) {
		return 0
	}
	return lockedUntil.Sub(now)
}
