package clientcli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sagarc03/ephemera/clientcli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		wantErr  bool
	}{
		{"http", "http://localhost:3000", false},
		{"https", "https://share.example.com", false},
		{"empty", "", true},
		{"no scheme", "localhost:3000", true},
		{"ftp", "ftp://example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &clientcli.Config{Endpoint: tt.endpoint}
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateWithAuth(t *testing.T) {
	cfg := &clientcli.Config{Endpoint: "http://localhost:3000"}
	assert.ErrorIs(t, cfg.ValidateWithAuth(), clientcli.ErrTokenRequired)

	cfg.Token = "tok"
	assert.NoError(t, cfg.ValidateWithAuth())
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := (&clientcli.Config{}).WithDefaults()
	assert.Equal(t, clientcli.DefaultEndpoint, cfg.Endpoint)

	cfg = (&clientcli.Config{Endpoint: "http://example.com/"}).WithDefaults()
	assert.Equal(t, "http://example.com", cfg.Endpoint)
}

func TestMergeConfig(t *testing.T) {
	file := &clientcli.Config{Endpoint: "http://file:3000", Token: "file-token"}
	env := &clientcli.Config{Token: "env-token"}
	flags := &clientcli.Config{Endpoint: "http://flag:3000"}

	merged := clientcli.MergeConfig(file, nil, env, flags)
	assert.Equal(t, "http://flag:3000", merged.Endpoint)
	assert.Equal(t, "env-token", merged.Token)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("EPHEMERA_ENDPOINT", "http://env:3000")
	t.Setenv("EPHEMERA_TOKEN", "env-token")
	t.Setenv("EPHEMERA_PROFILE", "staging")
	t.Setenv("EPHEMERA_CLIENT_CONFIG", "/tmp/client.yaml")

	cfg := clientcli.ConfigFromEnv()
	assert.Equal(t, "http://env:3000", cfg.Endpoint)
	assert.Equal(t, "env-token", cfg.Token)
	assert.Equal(t, "staging", clientcli.ProfileFromEnv())
	assert.Equal(t, "/tmp/client.yaml", clientcli.ConfigPathFromEnv())
}

func TestConfigFromProfile(t *testing.T) {
	cfg := clientcli.ConfigFromProfile(&clientcli.Profile{Name: "p", Endpoint: "http://p:3000", Token: "t"})
	assert.Equal(t, "http://p:3000", cfg.Endpoint)
	assert.Equal(t, "t", cfg.Token)

	assert.Equal(t, &clientcli.Config{}, clientcli.ConfigFromProfile(nil))
}

func TestConfigFile_Profiles(t *testing.T) {
	cf := &clientcli.ConfigFile{}

	_, err := cf.Lookup("")
	assert.ErrorIs(t, err, clientcli.ErrNoProfiles)
	assert.Empty(t, cf.DefaultName())

	created, err := cf.Upsert(clientcli.Profile{Name: "local", Endpoint: "http://localhost:3000/"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "local", cf.DefaultName(), "first profile becomes the default")

	created, err = cf.Upsert(clientcli.Profile{Name: "prod", Endpoint: "https://share.example.com", Token: "tok"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "local", cf.DefaultName())

	p, err := cf.Lookup("")
	require.NoError(t, err)
	assert.Equal(t, "local", p.Name)
	assert.Equal(t, "http://localhost:3000", p.Endpoint, "trailing slash is dropped")

	require.NoError(t, cf.SetDefault("prod"))
	assert.Equal(t, "prod", cf.DefaultName())
	assert.ErrorIs(t, cf.SetDefault("missing"), clientcli.ErrProfileNotFound)

	created, err = cf.Upsert(clientcli.Profile{Name: "local", Endpoint: "http://127.0.0.1:3000", Default: true})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "local", cf.DefaultName(), "an update may claim the default")
	p, err = cf.Lookup("local")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:3000", p.Endpoint)

	require.NoError(t, cf.Remove("local"))
	assert.Equal(t, []string{"prod"}, profileNames(cf))
	assert.ErrorIs(t, cf.Remove("local"), clientcli.ErrProfileNotFound)

	_, err = cf.Lookup("local")
	assert.ErrorIs(t, err, clientcli.ErrProfileNotFound)
}

func TestConfigFile_Upsert_Validation(t *testing.T) {
	tests := []struct {
		name    string
		profile clientcli.Profile
	}{
		{"missing name", clientcli.Profile{Endpoint: "http://localhost:3000"}},
		{"name with a slash", clientcli.Profile{Name: "a/b", Endpoint: "http://localhost:3000"}},
		{"name with a space", clientcli.Profile{Name: "my prod", Endpoint: "http://localhost:3000"}},
		{"missing endpoint", clientcli.Profile{Name: "local"}},
		{"not a url", clientcli.Profile{Name: "local", Endpoint: "localhost:3000"}},
		{"wrong scheme", clientcli.Profile{Name: "local", Endpoint: "ftp://files.example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cf := &clientcli.ConfigFile{}
			_, err := cf.Upsert(tt.profile)
			assert.Error(t, err)
			assert.Empty(t, cf.Profiles)
		})
	}
}

func TestValidateEndpoint(t *testing.T) {
	assert.NoError(t, clientcli.ValidateEndpoint("http://localhost:3000"))
	assert.NoError(t, clientcli.ValidateEndpoint("https://share.example.com/api"))
	assert.Error(t, clientcli.ValidateEndpoint(""))
	assert.Error(t, clientcli.ValidateEndpoint("share.example.com"))
}

func TestConfigFile_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "client.yaml")

	cf := &clientcli.ConfigFile{Profiles: []clientcli.Profile{
		{Name: "prod", Endpoint: "https://share.example.com", Token: "tok", Default: true},
	}}
	require.NoError(t, cf.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := clientcli.LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, cf, loaded)

	_, err = clientcli.LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	empty, err := clientcli.LoadOrEmpty(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, empty.Profiles)
}

func profileNames(cf *clientcli.ConfigFile) []string {
	names := make([]string, 0, len(cf.Profiles))
	for _, p := range cf.Profiles {
		names = append(names, p.Name)
	}
	return names
}
