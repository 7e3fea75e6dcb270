package clientcli_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/ephemera"
	"github.com/sagarc03/ephemera/clientcli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, endpoint, token string) *clientcli.Client {
	t.Helper()

	client, err := clientcli.New(&clientcli.Config{Endpoint: endpoint, Token: token})
	require.NoError(t, err)
	return client
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func summary(name string, size int64) ephemera.ObjectSummary {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return ephemera.ObjectSummary{
		ID:    uuid.New(),
		Token: "AAAAAAAAAAAAAAAAAAAAAA",
		ObjectMetadata: ephemera.ObjectMetadata{
			OriginalName: name,
			Size:         size,
			MimeType:     "text/plain",
			CreatedAt:    now,
			ExpiresAt:    now.Add(72 * time.Hour),
			Tags:         []ephemera.TagView{},
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		client, err := clientcli.New(&clientcli.Config{Endpoint: "http://localhost:3000", Token: "t"})
		require.NoError(t, err)
		assert.NotNil(t, client)
	})

	t.Run("empty endpoint uses default", func(t *testing.T) {
		client, err := clientcli.New(&clientcli.Config{})
		require.NoError(t, err)
		assert.NotNil(t, client)
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := clientcli.New(nil)
		assert.ErrorIs(t, err, clientcli.ErrConfigRequired)
	})

	t.Run("non-http endpoint rejected", func(t *testing.T) {
		_, err := clientcli.New(&clientcli.Config{Endpoint: "ftp://example.com"})
		assert.Error(t, err)
	})
}

func TestClient_Upload(t *testing.T) {
	t.Run("streams fields and file", func(t *testing.T) {
		expected := summary("notes.txt", 12)

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/files/upload", r.URL.Path)
			assert.Equal(t, "Bearer alice-token", r.Header.Get("Authorization"))

			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "3", r.FormValue("expiresIn"))
			assert.Equal(t, "s3cret", r.FormValue("password"))
			assert.Equal(t, "work,q1", r.FormValue("tags"))

			file, header, err := r.FormFile("file")
			require.NoError(t, err)
			defer func() { _ = file.Close() }()
			assert.Equal(t, "notes.txt", header.Filename)
			assert.Equal(t, "text/plain; charset=utf-8", header.Header.Get("Content-Type"))

			body, err := io.ReadAll(file)
			require.NoError(t, err)
			assert.Equal(t, "test content", string(body))

			writeJSON(w, http.StatusCreated, expected)
		}))
		defer server.Close()

		localPath := writeTemp(t, "notes.txt", "test content")
		client := newClient(t, server.URL, "alice-token")

		results, err := client.Upload(context.Background(), clientcli.UploadOptions{
			LocalPath: localPath,
			ExpiresIn: 3,
			Password:  "s3cret",
			Tags:      []string{"work", "q1"},
		})
		require.NoError(t, err)
		require.Len(t, results, 1)

		assert.Equal(t, localPath, results[0].LocalPath)
		assert.Equal(t, expected.ID, results[0].ID)
		assert.Equal(t, expected.Token, results[0].Token)
		assert.Equal(t, int64(12), results[0].Size)
		assert.NoError(t, results[0].Err)
	})

	t.Run("anonymous omits optional fields", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.Header.Get("Authorization"))

			require.NoError(t, r.ParseMultipartForm(1<<20))
			_, hasExpiry := r.MultipartForm.Value["expiresIn"]
			_, hasPassword := r.MultipartForm.Value["password"]
			assert.False(t, hasExpiry)
			assert.False(t, hasPassword)

			writeJSON(w, http.StatusCreated, summary("a.bin", 3))
		}))
		defer server.Close()

		client := newClient(t, server.URL, "")
		results, err := client.Upload(context.Background(), clientcli.UploadOptions{
			LocalPath: writeTemp(t, "a.bin", "abc"),
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
	})

	t.Run("policy refusal", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.Copy(io.Discard, r.Body)
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error":   "policy_violation",
				"message": "File type not allowed",
			})
		}))
		defer server.Close()

		client := newClient(t, server.URL, "")
		_, err := client.Upload(context.Background(), clientcli.UploadOptions{
			LocalPath: writeTemp(t, "run.exe", "MZ"),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, clientcli.ErrPolicyRefused)

		var apiErr *clientcli.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "policy_violation", apiErr.Code)
		assert.Equal(t, "File type not allowed", apiErr.Message)
	})

	t.Run("empty path", func(t *testing.T) {
		client := newClient(t, "http://localhost:3000", "")
		_, err := client.Upload(context.Background(), clientcli.UploadOptions{})
		assert.ErrorIs(t, err, clientcli.ErrEmptyPath)
	})

	t.Run("missing local file", func(t *testing.T) {
		client := newClient(t, "http://localhost:3000", "")
		_, err := client.Upload(context.Background(), clientcli.UploadOptions{
			LocalPath: filepath.Join(t.TempDir(), "missing.txt"),
		})
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("recursive directory", func(t *testing.T) {
		var (
			mu       sync.Mutex
			uploaded []string
		)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseMultipartForm(1<<20))
			_, header, err := r.FormFile("file")
			require.NoError(t, err)
			mu.Lock()
			uploaded = append(uploaded, header.Filename)
			mu.Unlock()
			writeJSON(w, http.StatusCreated, summary(header.Filename, header.Size))
		}))
		defer server.Close()

		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o600))
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o750))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("b"), 0o600))

		client := newClient(t, server.URL, "")
		results, err := client.Upload(context.Background(), clientcli.UploadOptions{
			LocalPath: dir,
			Recursive: true,
		})
		require.NoError(t, err)
		require.Len(t, results, 2)

		mu.Lock()
		defer mu.Unlock()
		assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, uploaded)
	})
}

func TestClient_Metadata(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		expected := summary("report.pdf", 2048).ObjectMetadata
		expected.HasPassword = true

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/files/AAAAAAAAAAAAAAAAAAAAAA", r.URL.Path)
			writeJSON(w, http.StatusOK, expected)
		}))
		defer server.Close()

		info, err := newClient(t, server.URL, "").Metadata(context.Background(), "AAAAAAAAAAAAAAAAAAAAAA")
		require.NoError(t, err)
		assert.Equal(t, "report.pdf", info.OriginalName)
		assert.True(t, info.HasPassword)
		assert.Equal(t, int64(2048), info.Size)
	})

	t.Run("not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "File not found"})
		}))
		defer server.Close()

		_, err := newClient(t, server.URL, "").Metadata(context.Background(), "missing")
		assert.ErrorIs(t, err, clientcli.ErrNotFound)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := newClient(t, "http://localhost:3000", "").Metadata(context.Background(), "")
		assert.ErrorIs(t, err, clientcli.ErrEmptyToken)
	})
}

func TestClient_VerifyPassword(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/tok/verify-password", r.URL.Path)

		var body struct {
			Password string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		if body.Password == "right" {
			writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized", "message": "Invalid password"})
	}))
	defer server.Close()

	client := newClient(t, server.URL, "")

	ok, err := client.VerifyPassword(context.Background(), "tok", "right")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.VerifyPassword(context.Background(), "tok", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_Download(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/tok/download", r.URL.Path)
		if r.URL.Query().Get("password") != "pw" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized", "message": "Password required"})
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="r_sum_.pdf"; filename*=UTF-8''r%C3%A9sum%C3%A9.pdf`)
		_, _ = w.Write([]byte("pdf-bytes"))
	})

	t.Run("to file named by server", func(t *testing.T) {
		server := httptest.NewServer(handler)
		defer server.Close()

		t.Chdir(t.TempDir())

		result, reader, err := newClient(t, server.URL, "").Download(context.Background(), clientcli.DownloadOptions{
			Token:    "tok",
			Password: "pw",
		})
		require.NoError(t, err)
		assert.Nil(t, reader)
		assert.Equal(t, "résumé.pdf", result.Name)
		assert.Equal(t, "résumé.pdf", result.LocalPath)
		assert.Equal(t, "application/pdf", result.MimeType)
		assert.Equal(t, int64(9), result.Size)

		content, err := os.ReadFile("résumé.pdf")
		require.NoError(t, err)
		assert.Equal(t, "pdf-bytes", string(content))
	})

	t.Run("to explicit path", func(t *testing.T) {
		server := httptest.NewServer(handler)
		defer server.Close()

		target := filepath.Join(t.TempDir(), "nested", "out.pdf")
		result, _, err := newClient(t, server.URL, "").Download(context.Background(), clientcli.DownloadOptions{
			Token:     "tok",
			Password:  "pw",
			LocalPath: target,
		})
		require.NoError(t, err)
		assert.Equal(t, target, result.LocalPath)

		content, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Equal(t, "pdf-bytes", string(content))
	})

	t.Run("to stdout", func(t *testing.T) {
		server := httptest.NewServer(handler)
		defer server.Close()

		result, reader, err := newClient(t, server.URL, "").Download(context.Background(), clientcli.DownloadOptions{
			Token:     "tok",
			Password:  "pw",
			LocalPath: "-",
		})
		require.NoError(t, err)
		require.NotNil(t, reader)
		defer func() { _ = reader.Close() }()

		body, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "pdf-bytes", string(body))
		assert.Equal(t, "-", result.LocalPath)
	})

	t.Run("wrong password", func(t *testing.T) {
		server := httptest.NewServer(handler)
		defer server.Close()

		_, _, err := newClient(t, server.URL, "").Download(context.Background(), clientcli.DownloadOptions{
			Token:     "tok",
			LocalPath: filepath.Join(t.TempDir(), "x"),
		})
		assert.ErrorIs(t, err, clientcli.ErrUnauthorized)
	})
}

func TestClient_List(t *testing.T) {
	t.Run("passes tag and token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/files/my", r.URL.Path)
			assert.Equal(t, "work", r.URL.Query().Get("tag"))
			assert.Equal(t, "Bearer alice-token", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, []ephemera.ObjectSummary{summary("a.txt", 1), summary("b.txt", 2)})
		}))
		defer server.Close()

		items, err := newClient(t, server.URL, "alice-token").List(context.Background(), "work")
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "a.txt", items[0].OriginalName)
	})

	t.Run("requires token", func(t *testing.T) {
		_, err := newClient(t, "http://localhost:3000", "").List(context.Background(), "")
		assert.ErrorIs(t, err, clientcli.ErrTokenRequired)
	})
}

func TestClient_Delete(t *testing.T) {
	owned := uuid.New()
	foreign := uuid.New()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		switch r.URL.Path {
		case "/files/" + owned.String():
			writeJSON(w, http.StatusOK, map[string]string{"message": "File deleted"})
		case "/files/" + foreign.String():
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden", "message": "Not the owner"})
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "File not found"})
		}
	}))
	defer server.Close()

	client := newClient(t, server.URL, "alice-token")

	results, err := client.Delete(context.Background(), []string{owned.String(), foreign.String(), "not-a-uuid"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Deleted)
	assert.NoError(t, results[0].Err)

	assert.False(t, results[1].Deleted)
	assert.ErrorIs(t, results[1].Err, clientcli.ErrForbidden)

	assert.False(t, results[2].Deleted)
	assert.Error(t, results[2].Err)

	assert.True(t, clientcli.HasDeleteErrors(results))
	assert.False(t, clientcli.HasDeleteErrors(results[:1]))

	_, err = client.Delete(context.Background(), nil)
	assert.ErrorIs(t, err, clientcli.ErrNoIDs)
}

func TestClient_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthz", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))
	defer server.Close()

	assert.NoError(t, newClient(t, server.URL, "").Ping(context.Background()))
}

func TestAPIError(t *testing.T) {
	err := &clientcli.APIError{StatusCode: http.StatusNotFound, Code: "not_found", Message: "File not found"}

	assert.Equal(t, "server error: 404 not_found - File not found", err.Error())
	assert.ErrorIs(t, err, clientcli.ErrNotFound)
	assert.NotErrorIs(t, err, clientcli.ErrForbidden)
}
