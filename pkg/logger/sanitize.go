package logger

import (
	"log/slog"
	"strings"
)

// SanitizedEmail masks an email address for logging (e.g., "u***@*******.com")
func SanitizedEmail(email string) string {
	username, domain, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok || username == "" || domain == "" {
		return "[invalid-email]"
	}

	if len(username) > 1 {
		username = username[:1] + strings.Repeat("*", len(username)-1)
	}

	// Keep only the TLD
	labels := strings.Split(domain, ".")
	if len(labels) > 1 {
		for i := 0; i < len(labels)-1; i++ {
			labels[i] = strings.Repeat("*", len(labels[i]))
		}
		domain = strings.Join(labels, ".")
	}

	return username + "@" + domain
}

// EmailAttr returns a masked email attribute
func EmailAttr(email string) slog.Attr {
	return slog.String("email", SanitizedEmail(email))
}

var sensitiveParams = []string{
	"password", "token", "secret", "code", "backup", "challenge",
	"email", "auth", "otp",
}

// SanitizeQueryString reports whether a raw query string mentions a
// sensitive parameter and should be redacted as a whole
func SanitizeQueryString(rawQuery string) bool {
	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
