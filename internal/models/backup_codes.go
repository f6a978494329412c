package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// BackupCodes is the set of hashed single-use two-factor backup codes,
// stored as a JSONB array of hex digests.
type BackupCodes []string

// ParseBackupCodes decodes the serialized form of a backup-code set.
// An empty or null payload yields an empty set.
func ParseBackupCodes(raw []byte) (BackupCodes, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return BackupCodes{}, nil
	}

	var codes []string
	if err := json.Unmarshal(raw, &codes); err != nil {
		return nil, fmt.Errorf("failed to parse backup codes: %w", err)
	}
	if codes == nil {
		codes = []string{}
	}
	return BackupCodes(codes), nil
}

// Scan implements sql.Scanner for JSONB
func (bc *BackupCodes) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*bc = BackupCodes{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported backup codes type %T", value)
	}

	codes, err := ParseBackupCodes(raw)
	if err != nil {
		return err
	}
	*bc = codes
	return nil
}

// Value implements driver.Valuer for JSONB
func (bc BackupCodes) Value() (driver.Value, error) {
	if bc == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(bc))
}
