package auth

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// IsPasswordExpired reports whether a password changed at changedAt is older
// than maxAgeDays. A maxAgeDays of zero or less disables expiration.
func IsPasswordExpired(changedAt time.Time, maxAgeDays int, now time.Time) bool {
	if maxAgeDays <= 0 {
		return false
	}
	return !now.Before(changedAt.Add(time.Duration(maxAgeDays) * day))
}

// DaysUntilPasswordExpires returns the whole days left before expiration,
// rounded up, and 0 once expired or when expiration is disabled.
func DaysUntilPasswordExpires(changedAt time.Time, maxAgeDays int, now time.Time) int {
	if maxAgeDays <= 0 {
		return 0
	}
	remaining := changedAt.Add(time.Duration(maxAgeDays) * day).Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Hours() / 24))
}
