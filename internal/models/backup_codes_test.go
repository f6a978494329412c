package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBackupCodes(t *testing.T) {
	tests := []struct {
		name    string
		raw     []byte
		want    BackupCodes
		wantErr bool
	}{
		{name: "nil payload", raw: nil, want: BackupCodes{}},
		{name: "empty payload", raw: []byte(""), want: BackupCodes{}},
		{name: "json null", raw: []byte("null"), want: BackupCodes{}},
		{name: "empty array", raw: []byte("[]"), want: BackupCodes{}},
		{name: "codes", raw: []byte(`["aa","bb"]`), want: BackupCodes{"aa", "bb"}},
		{name: "truncated json", raw: []byte(`["aa",`), wantErr: true},
		{name: "object instead of array", raw: []byte(`{"code":"aa"}`), wantErr: true},
		{name: "non-string element", raw: []byte(`[1,2]`), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBackupCodes(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBackupCodes_Scan(t *testing.T) {
	var codes BackupCodes

	require.NoError(t, codes.Scan(nil))
	assert.Equal(t, BackupCodes{}, codes)

	require.NoError(t, codes.Scan(`["aa"]`))
	assert.Equal(t, BackupCodes{"aa"}, codes)

	require.NoError(t, codes.Scan([]byte(`["bb","cc"]`)))
	assert.Equal(t, BackupCodes{"bb", "cc"}, codes)

	assert.Error(t, codes.Scan(42))
	assert.Error(t, codes.Scan([]byte("not json")))
}

func TestBackupCodes_Value(t *testing.T) {
	v, err := BackupCodes(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), v)

	v, err = BackupCodes{"aa"}.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte(`["aa"]`), v)
}
