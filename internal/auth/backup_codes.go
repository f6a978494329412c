package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/BradenHooton/resera/internal/models"
)

// Charset: A-Z 2-9 without the ambiguous 0/O/1/I/L
const backupCodeCharset = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const backupCodeLength = 8

// GenerateBackupCodes returns count random plaintext backup codes
func GenerateBackupCodes(count int) ([]string, error) {
	// Largest multiple of the charset size that fits in a byte, for unbiased sampling
	limit := byte(256 - 256%len(backupCodeCharset))

	codes := make([]string, count)
	buf := make([]byte, 1)
	for i := 0; i < count; i++ {
		code := make([]byte, 0, backupCodeLength)
		for len(code) < backupCodeLength {
			if _, err := rand.Read(buf); err != nil {
				return nil, fmt.Errorf("failed to generate random byte: %w", err)
			}
			if buf[0] >= limit {
				continue
			}
			code = append(code, backupCodeCharset[int(buf[0])%len(backupCodeCharset)])
		}
		codes[i] = string(code)
	}

	return codes, nil
}

// NormalizeBackupCode upper-cases a code and strips spaces and dashes
func NormalizeBackupCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return strings.NewReplacer("-", "", " ", "").Replace(code)
}

// HashBackupCode returns the hex SHA-256 digest of the normalized code
func HashBackupCode(code string) string {
	sum := sha256.Sum256([]byte(NormalizeBackupCode(code)))
	return hex.EncodeToString(sum[:])
}

// HashBackupCodes hashes every code for storage
func HashBackupCodes(codes []string) models.BackupCodes {
	hashes := make(models.BackupCodes, len(codes))
	for i, code := range codes {
		hashes[i] = HashBackupCode(code)
	}
	return hashes
}

// VerifyBackupCode reports whether code matches one of the stored hashes.
// Every entry is compared so timing does not depend on the match position.
func VerifyBackupCode(code string, hashes []string) bool {
	if NormalizeBackupCode(code) == "" {
		return false
	}

	candidate := []byte(HashBackupCode(code))
	found := 0
	for _, h := range hashes {
		found |= subtle.ConstantTimeCompare(candidate, []byte(h))
	}
	return found == 1
}

// RemoveBackupCode returns hashes without the entry matching code.
// The input slice is not modified.
func RemoveBackupCode(code string, hashes []string) []string {
	target := HashBackupCode(code)
	remaining := make([]string, 0, len(hashes))
	removed := false
	for _, h := range hashes {
		if !removed && h == target {
			removed = true
			continue
		}
		remaining = append(remaining, h)
	}
	return remaining
}
