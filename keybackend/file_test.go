package keybackend_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sagarc03/ephemera/keybackend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeKeysFile creates a temporary keys file with the given content.
func writeKeysFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "keys.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadKeysFromFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    map[string]string
	}{
		{
			name: "two keys",
			content: `[
				{"kid": "2026-01", "secret": "first-secret"},
				{"kid": "2026-04", "secret": "second-secret"}
			]`,
			want: map[string]string{"2026-01": "first-secret", "2026-04": "second-secret"},
		},
		{
			name:    "empty array",
			content: `[]`,
			want:    map[string]string{},
		},
		{
			name: "incomplete entries skipped",
			content: `[
				{"kid": "", "secret": "orphan"},
				{"kid": "no-secret", "secret": ""},
				{"kid": "ok", "secret": "s"}
			]`,
			want: map[string]string{"ok": "s"},
		},
		{
			name: "last duplicate wins",
			content: `[
				{"kid": "dup", "secret": "old"},
				{"kid": "dup", "secret": "new"}
			]`,
			want: map[string]string{"dup": "new"},
		},
		{
			name:    "unknown fields ignored",
			content: `[{"kid": "k", "secret": "s/with+special=chars", "note": 1}]`,
			want:    map[string]string{"k": "s/with+special=chars"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			keys, err := keybackend.LoadKeysFromFile(writeKeysFile(t, tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.want, keys)
		})
	}
}

func TestLoadKeysFromFile_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := keybackend.LoadKeysFromFile(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read keys file")
	})

	for _, content := range []string{
		"this is not json",
		`{"kid": "k", "secret": "s"}`,
		`[{"kid": "k", "secret": "s"`,
		`["k1", "k2"]`,
	} {
		t.Run("parse "+content, func(t *testing.T) {
			t.Parallel()
			_, err := keybackend.LoadKeysFromFile(writeKeysFile(t, content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "parse keys file")
		})
	}
}
