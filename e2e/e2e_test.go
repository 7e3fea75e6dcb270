package e2e_test

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/ephemera"
)

var e2eKeys = []SigningKey{{KeyID: "e2e-key", Secret: "e2e-signing-secret-0123456789"}}

// TestE2E_Lifecycle_SQLite tests the full share lifecycle using SQLite.
func TestE2E_Lifecycle_SQLite(t *testing.T) {
	baseURL, configPath, cleanup := startServer(t, ServerConfig{
		Port:        getOpenPort(t),
		DBType:      "sqlite",
		DBDSN:       filepath.Join(t.TempDir(), "test.db"),
		StoragePath: t.TempDir(),
		Keys:        e2eKeys,
		Metrics:     true,
	})
	defer cleanup()

	runLifecycleTests(t, baseURL, configPath)
}

// TestE2E_Lifecycle_Postgres tests the full share lifecycle using PostgreSQL.
func TestE2E_Lifecycle_Postgres(t *testing.T) {
	dsn := sharedPostgresDSN(t)

	baseURL, configPath, cleanup := startServer(t, ServerConfig{
		Port:        getOpenPort(t),
		DBType:      "postgres",
		DBDSN:       dsn,
		StoragePath: t.TempDir(),
		Tables:      "lifecycle",
		Keys:        e2eKeys,
		Metrics:     true,
	})
	defer cleanup()

	runLifecycleTests(t, baseURL, configPath)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// runLifecycleTests contains the shared lifecycle test logic.
func runLifecycleTests(t *testing.T, baseURL, configPath string) {
	t.Helper()

	var anon ephemera.ObjectSummary

	t.Run("anonymous upload with password", func(t *testing.T) {
		resp := doUpload(t, baseURL, upload{
			FileName:    "notes.txt",
			ContentType: "text/plain",
			Content:     []byte("Hello, World!"),
			ExpiresIn:   "3",
			Password:    "secret123",
			Tags:        "Work, urgent,work",
		})
		defer resp.Body.Close()

		require.Equal(t, http.StatusCreated, resp.StatusCode)

		anon = decode[ephemera.ObjectSummary](t, resp)
		assert.True(t, ephemera.IsValidToken(anon.Token))
		assert.Equal(t, "notes.txt", anon.OriginalName)
		assert.Equal(t, int64(13), anon.Size)
		assert.True(t, anon.HasPassword)
		assert.Equal(t, []ephemera.TagView{{Name: "urgent"}, {Name: "work"}}, anon.Tags)
		assert.InDelta(t, 72, anon.ExpiresAt.Sub(anon.CreatedAt).Hours(), 0.01)
	})

	t.Run("metadata is public", func(t *testing.T) {
		resp := doRequest(t, http.MethodGet, baseURL+"/files/"+anon.Token, "", nil)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		meta := decode[map[string]any](t, resp)
		assert.Equal(t, "notes.txt", meta["originalName"])
		assert.Equal(t, true, meta["hasPassword"])
		assert.Equal(t, float64(0), meta["downloadCount"])
		assert.NotContains(t, meta, "token")
	})

	t.Run("download without password is rejected", func(t *testing.T) {
		resp := doRequest(t, http.MethodGet, baseURL+"/files/"+anon.Token+"/download", "", nil)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("verify password", func(t *testing.T) {
		resp := doRequest(t, http.MethodPost, baseURL+"/files/"+anon.Token+"/verify-password", "",
			strings.NewReader(`{"password":"secret123"}`))
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		wrong := doRequest(t, http.MethodPost, baseURL+"/files/"+anon.Token+"/verify-password", "",
			strings.NewReader(`{"password":"nope"}`))
		defer wrong.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, wrong.StatusCode)
	})

	t.Run("download with password", func(t *testing.T) {
		resp := doRequest(t, http.MethodGet, baseURL+"/files/"+anon.Token+"/download?password=secret123", "", nil)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
		assert.Equal(t, "13", resp.Header.Get("Content-Length"))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename*=UTF-8''notes.txt`)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "Hello, World!", string(body))
	})

	t.Run("download is counted", func(t *testing.T) {
		resp := doRequest(t, http.MethodGet, baseURL+"/files/"+anon.Token, "", nil)
		defer resp.Body.Close()

		meta := decode[ephemera.ObjectMetadata](t, resp)
		assert.Equal(t, int64(1), meta.DownloadCount)
	})

	t.Run("forbidden extension", func(t *testing.T) {
		resp := doUpload(t, baseURL, upload{FileName: "setup.EXE", ContentType: "application/octet-stream", Content: []byte("MZ")})
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("unknown token", func(t *testing.T) {
		resp := doRequest(t, http.MethodGet, baseURL+"/files/AAAAAAAAAAAAAAAAAAAAAA", "", nil)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	alice := strings.TrimSpace(runCommand(t, configPath, "token", "alice"))
	bob := strings.TrimSpace(runCommand(t, configPath, "token", "bob"))

	var owned ephemera.ObjectSummary

	t.Run("authenticated upload is owned", func(t *testing.T) {
		resp := doUpload(t, baseURL, upload{
			FileName:    "résumé.pdf",
			ContentType: "application/pdf",
			Content:     []byte("%PDF-1.7"),
			Tags:        "cv",
			BearerToken: alice,
		})
		defer resp.Body.Close()

		require.Equal(t, http.StatusCreated, resp.StatusCode)
		owned = decode[ephemera.ObjectSummary](t, resp)
		assert.False(t, owned.HasPassword)
	})

	t.Run("owner lists own files only", func(t *testing.T) {
		resp := doRequest(t, http.MethodGet, baseURL+"/files/my", alice, nil)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		list := decode[[]ephemera.ObjectSummary](t, resp)
		require.Len(t, list, 1)
		assert.Equal(t, owned.ID, list[0].ID)

		filtered := doRequest(t, http.MethodGet, baseURL+"/files/my?tag=other", alice, nil)
		defer filtered.Body.Close()
		assert.Empty(t, decode[[]ephemera.ObjectSummary](t, filtered))

		anonymous := doRequest(t, http.MethodGet, baseURL+"/files/my", "", nil)
		defer anonymous.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, anonymous.StatusCode)
	})

	t.Run("only the owner deletes", func(t *testing.T) {
		other := doRequest(t, http.MethodDelete, baseURL+"/files/"+owned.ID.String(), bob, nil)
		defer other.Body.Close()
		assert.Equal(t, http.StatusForbidden, other.StatusCode)

		anonObj := doRequest(t, http.MethodDelete, baseURL+"/files/"+anon.ID.String(), alice, nil)
		defer anonObj.Body.Close()
		assert.Equal(t, http.StatusForbidden, anonObj.StatusCode)

		resp := doRequest(t, http.MethodDelete, baseURL+"/files/"+owned.ID.String(), alice, nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		gone := doRequest(t, http.MethodGet, baseURL+"/files/"+owned.Token, "", nil)
		defer gone.Body.Close()
		assert.Equal(t, http.StatusNotFound, gone.StatusCode)
	})

	t.Run("metrics", func(t *testing.T) {
		resp := doRequest(t, http.MethodGet, baseURL+"/metrics", "", nil)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "ephemera_")
	})
}

// TestE2E_UploadTooLarge checks the configured upload limit.
func TestE2E_UploadTooLarge(t *testing.T) {
	baseURL, _, cleanup := startServer(t, ServerConfig{
		Port:         getOpenPort(t),
		DBType:       "sqlite",
		DBDSN:        filepath.Join(t.TempDir(), "test.db"),
		StoragePath:  t.TempDir(),
		MaxSizeBytes: 1024,
	})
	defer cleanup()

	resp := doUpload(t, baseURL, upload{
		FileName:    "big.bin",
		ContentType: "application/octet-stream",
		Content:     make([]byte, 4096),
	})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	small := doUpload(t, baseURL, upload{
		FileName:    "small.bin",
		ContentType: "application/octet-stream",
		Content:     make([]byte, 1024),
	})
	defer small.Body.Close()

	assert.Equal(t, http.StatusCreated, small.StatusCode)
}

// TestE2E_NoKeysConfigured checks that without signing keys uploads stay
// anonymous and owner routes are closed.
func TestE2E_NoKeysConfigured(t *testing.T) {
	baseURL, _, cleanup := startServer(t, ServerConfig{
		Port:        getOpenPort(t),
		DBType:      "sqlite",
		DBDSN:       filepath.Join(t.TempDir(), "test.db"),
		StoragePath: t.TempDir(),
	})
	defer cleanup()

	resp := doUpload(t, baseURL, upload{
		FileName:    "a.txt",
		ContentType: "text/plain",
		Content:     []byte("a"),
		BearerToken: "not-a-jwt",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	my := doRequest(t, http.MethodGet, baseURL+"/files/my", "not-a-jwt", nil)
	defer my.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, my.StatusCode)
}

// TestE2E_AddCommand shares a local file through the CLI and downloads it
// over HTTP.
func TestE2E_AddCommand(t *testing.T) {
	baseURL, configPath, cleanup := startServer(t, ServerConfig{
		Port:        getOpenPort(t),
		DBType:      "sqlite",
		DBDSN:       filepath.Join(t.TempDir(), "test.db"),
		StoragePath: t.TempDir(),
		Keys:        e2eKeys,
	})
	defer cleanup()

	src := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, os.WriteFile(src, []byte("a,b\n1,2\n"), 0o600))

	out := runCommand(t, configPath, "add", "--quiet", "--owner", "carol", "--tags", "q3", "--expires-in", "2", src)
	token := strings.TrimSpace(out)
	require.True(t, ephemera.IsValidToken(token), "token: %q", token)

	resp := doRequest(t, http.MethodGet, baseURL+"/files/"+token+"/download", "", nil)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(body))

	carol := strings.TrimSpace(runCommand(t, configPath, "token", "carol"))
	list := doRequest(t, http.MethodGet, baseURL+"/files/my?tag=q3", carol, nil)
	defer list.Body.Close()
	owned := decode[[]ephemera.ObjectSummary](t, list)
	require.Len(t, owned, 1)

	// operator takedown bypasses ownership
	runCommand(t, configPath, "remove", "--quiet", owned[0].ID.String())

	gone := doRequest(t, http.MethodGet, baseURL+"/files/"+token, "", nil)
	defer gone.Body.Close()
	assert.Equal(t, http.StatusNotFound, gone.StatusCode)
}

// TestE2E_PurgeAndConfig runs the maintenance commands against a live database.
func TestE2E_PurgeAndConfig(t *testing.T) {
	configPath := createConfigFile(t, ServerConfig{
		Port:        getOpenPort(t),
		DBType:      "sqlite",
		DBDSN:       filepath.Join(t.TempDir(), "test.db"),
		StoragePath: t.TempDir(),
		Keys:        e2eKeys,
	})

	runCommand(t, configPath, "migrate")
	// migrate is idempotent
	runCommand(t, configPath, "migrate")

	// nothing has expired in a fresh database
	runCommand(t, configPath, "purge", "--yes")
	assert.Empty(t, runCommand(t, configPath, "purge", "--dry-run"))

	dump := runCommand(t, configPath, "config")
	assert.Contains(t, dump, "kid: e2e-key")
	assert.Contains(t, dump, "********")
	assert.NotContains(t, dump, e2eKeys[0].Secret)
}
