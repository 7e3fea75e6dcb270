package keybackend_test

import (
	"testing"

	"github.com/sagarc03/ephemera/keybackend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapSecretStore_Lookup(t *testing.T) {
	store := keybackend.NewMapSecretStore(map[string]string{"k1": "s1", "k2": "s2"})

	secret, err := store.Lookup("k2")
	require.NoError(t, err)
	assert.Equal(t, "s2", secret)

	_, err = store.Lookup("k3")
	assert.ErrorIs(t, err, keybackend.ErrKeyNotFound)

	_, err = keybackend.NewMapSecretStore(nil).Lookup("k1")
	assert.ErrorIs(t, err, keybackend.ErrKeyNotFound)

	assert.Equal(t, []string{"k1", "k2"}, store.KeyIDs())
	assert.Equal(t, 2, store.Len())
}

func TestNewSecretStore(t *testing.T) {
	t.Parallel()

	t.Run("inline and file merged, file wins", func(t *testing.T) {
		t.Parallel()

		path := writeKeysFile(t, `[
			{"kid": "shared", "secret": "from-file"},
			{"kid": "file-only", "secret": "f"}
		]`)

		store, err := keybackend.NewSecretStore(keybackend.KeysConfig{
			Inline: []keybackend.KeyPair{
				{KeyID: "shared", Secret: "from-config"},
				{KeyID: "inline-only", Secret: "i"},
				{KeyID: "", Secret: "skipped"},
			},
			File: path,
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"file-only", "inline-only", "shared"}, store.KeyIDs())

		secret, err := store.Lookup("shared")
		require.NoError(t, err)
		assert.Equal(t, "from-file", secret)
	})

	t.Run("empty config", func(t *testing.T) {
		t.Parallel()

		store, err := keybackend.NewSecretStore(keybackend.KeysConfig{})
		require.NoError(t, err)
		assert.Zero(t, store.Len())
	})

	t.Run("bad file", func(t *testing.T) {
		t.Parallel()

		_, err := keybackend.NewSecretStore(keybackend.KeysConfig{File: writeKeysFile(t, "nope")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse keys file")
	})
}

func TestSigningKey(t *testing.T) {
	single := keybackend.NewMapSecretStore(map[string]string{"only": "s"})
	multi := keybackend.NewMapSecretStore(map[string]string{"old": "s1", "new": "s2"})

	tests := []struct {
		name    string
		store   *keybackend.MapSecretStore
		active  string
		want    keybackend.KeyPair
		wantErr string
	}{
		{name: "single key needs no active id", store: single, want: keybackend.KeyPair{KeyID: "only", Secret: "s"}},
		{name: "active id selects key", store: multi, active: "new", want: keybackend.KeyPair{KeyID: "new", Secret: "s2"}},
		{name: "ambiguous without active id", store: multi, wantErr: "set the active key id"},
		{name: "unknown active id", store: multi, active: "gone", wantErr: "signing key not found"},
		{name: "no keys", store: keybackend.NewMapSecretStore(nil), wantErr: "no keys configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := keybackend.SigningKey(tt.store, tt.active)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
