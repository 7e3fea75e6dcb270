package ephemera_test

import (
	"encoding/base64"
	"regexp"
	"testing"

	"github.com/sagarc03/ephemera"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToken(t *testing.T) {
	token, err := ephemera.NewToken()
	require.NoError(t, err)

	assert.True(t, ephemera.IsValidToken(token), token)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)
	assert.Len(t, raw, ephemera.TokenBytes)
}

func TestNewToken_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for range 1000 {
		token, err := ephemera.NewToken()
		require.NoError(t, err)
		_, dup := seen[token]
		require.False(t, dup, "duplicate token %s", token)
		seen[token] = struct{}{}
	}
}

func TestNewStoredRef(t *testing.T) {
	hexName := regexp.MustCompile(`^[0-9a-f]{32}`)

	tests := []struct {
		name      string
		suggested string
		wantExt   string
	}{
		{"keeps lower-cased extension", "Report.PDF", ".pdf"},
		{"no extension", "README", ""},
		{"dot only", "weird.", ""},
		{"overlong extension dropped", "x.abcdefghijklmnopq", ""},
		{"unsafe extension dropped", "x.a b", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ephemera.NewStoredRef(tt.suggested)
			require.NoError(t, err)

			assert.Regexp(t, hexName, ref)
			assert.Equal(t, 32+len(tt.wantExt), len(ref))
			assert.True(t, ephemera.IsValidStoredRef(ref))
			if tt.wantExt != "" {
				assert.Equal(t, tt.wantExt, ref[32:])
			}
		})
	}
}
