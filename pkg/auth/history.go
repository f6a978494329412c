package auth

// IsPasswordInHistory reports whether candidate matches any stored hash.
// Each entry is a bcrypt hash, so every entry is checked with a full compare.
func IsPasswordInHistory(candidate string, history []string) bool {
	for _, hash := range history {
		if hash == "" {
			continue
		}
		if ComparePassword(hash, candidate) == nil {
			return true
		}
	}
	return false
}

// AddPasswordToHistory prepends newHash and keeps at most historyCount
// entries, dropping the oldest. The input slice is not modified.
func AddPasswordToHistory(newHash string, history []string, historyCount int) []string {
	if historyCount <= 0 {
		return []string{}
	}

	next := make([]string, 0, historyCount)
	next = append(next, newHash)
	for _, hash := range history {
		if len(next) == historyCount {
			break
		}
		next = append(next, hash)
	}
	return next
}
