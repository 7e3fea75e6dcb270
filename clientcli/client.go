package clientcli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds requests that do not carry file content.
const DefaultTimeout = 30 * time.Second

// Client talks to one ephemera server.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout. Zero disables it, which large
// transfers usually need.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// New creates a Client for cfg.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Upload sends one file, or every regular file under a directory when
// opts.Recursive is set. Per-file failures of a recursive upload are reported
// in the results rather than aborting the walk.
func (c *Client) Upload(ctx context.Context, opts UploadOptions) ([]UploadResult, error) {
	if opts.LocalPath == "" {
		return nil, fmt.Errorf("upload: %w", ErrEmptyPath)
	}
	if opts.Recursive {
		return c.uploadRecursive(ctx, opts)
	}
	result, err := c.uploadSingle(ctx, opts.LocalPath, opts)
	if err != nil {
		return nil, err
	}
	return []UploadResult{result}, nil
}

func (c *Client) uploadRecursive(ctx context.Context, opts UploadOptions) ([]UploadResult, error) {
	info, err := os.Stat(opts.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("stat local path: %w", err)
	}

	if !info.IsDir() {
		result, uploadErr := c.uploadSingle(ctx, opts.LocalPath, opts)
		if uploadErr != nil {
			return nil, uploadErr
		}
		return []UploadResult{result}, nil
	}

	var results []UploadResult

	walkErr := filepath.WalkDir(opts.LocalPath, func(path string, d fs.DirEntry, fileErr error) error {
		if fileErr != nil {
			return fileErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.Type().IsRegular() {
			return nil
		}

		fileOpts := opts
		fileOpts.ContentType = ""

		result, uploadErr := c.uploadSingle(ctx, path, fileOpts)
		if uploadErr != nil {
			result = UploadResult{LocalPath: path, Err: uploadErr}
		}
		results = append(results, result)
		return nil
	})

	if walkErr != nil {
		return results, fmt.Errorf("walk directory: %w", walkErr)
	}

	return results, nil
}

// uploadSingle streams the file as multipart/form-data. The text fields are
// written before the file part because the server stops reading at the file.
func (c *Client) uploadSingle(ctx context.Context, localPath string, opts UploadOptions) (UploadResult, error) {
	file, err := os.Open(localPath) //#nosec G304 -- localPath is user-provided input
	if err != nil {
		return UploadResult{}, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	contentType := opts.ContentType
	if contentType == "" {
		contentType = detectContentType(localPath)
	}

	pr, pw := io.Pipe()
	defer func() { _ = pr.Close() }()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeUploadBody(mw, file, filepath.Base(localPath), contentType, opts))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/files/upload", nil), pr)
	if err != nil {
		return UploadResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	var summary ObjectInfo
	if err := c.doJSON(req, http.StatusCreated, &summary); err != nil {
		return UploadResult{}, err
	}

	return UploadResult{LocalPath: localPath, ObjectSummary: summary}, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeUploadBody(mw *multipart.Writer, content io.Reader, name, contentType string, opts UploadOptions) error {
	if opts.ExpiresIn > 0 {
		if err := mw.WriteField("expiresIn", strconv.Itoa(opts.ExpiresIn)); err != nil {
			return err
		}
	}
	if opts.Password != "" {
		if err := mw.WriteField("password", opts.Password); err != nil {
			return err
		}
	}
	if len(opts.Tags) > 0 {
		if err := mw.WriteField("tags", strings.Join(opts.Tags, ",")); err != nil {
			return err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(name)))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	return mw.Close()
}

// Metadata returns the public metadata for a share token.
func (c *Client) Metadata(ctx context.Context, token string) (*FileInfo, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/files/"+url.PathEscape(token), nil), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var info FileInfo
	if err := c.doJSON(req, http.StatusOK, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// VerifyPassword reports whether password unlocks the file. A wrong password
// is (false, nil); any other failure is an error.
func (c *Client) VerifyPassword(ctx context.Context, token, password string) (bool, error) {
	if token == "" {
		return false, ErrEmptyToken
	}

	body, err := json.Marshal(map[string]string{"password": password})
	if err != nil {
		return false, fmt.Errorf("encode body: %w", err)
	}

	endpoint := c.url("/files/"+url.PathEscape(token)+"/verify-password", nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	err = c.doJSON(req, http.StatusOK, nil)
	if errors.Is(err, ErrUnauthorized) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Download fetches a file's content. When opts.LocalPath is "-" the body is
// returned for the caller to read and close; otherwise it is written to disk
// and the returned reader is nil. An empty LocalPath uses the name the server
// sends, stripped to its base name.
func (c *Client) Download(ctx context.Context, opts DownloadOptions) (*DownloadResult, io.ReadCloser, error) {
	if opts.Token == "" {
		return nil, nil, fmt.Errorf("download: %w", ErrEmptyToken)
	}

	var query url.Values
	if opts.Password != "" {
		query = url.Values{"password": {opts.Password}}
	}

	endpoint := c.url("/files/"+url.PathEscape(opts.Token)+"/download", query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, nil, parseServerError(resp.StatusCode, body)
	}

	result := &DownloadResult{
		Token:    opts.Token,
		Name:     attachmentName(resp.Header.Get("Content-Disposition")),
		MimeType: resp.Header.Get("Content-Type"),
		Size:     resp.ContentLength,
	}

	if opts.LocalPath == "-" {
		result.LocalPath = "-"
		return result, resp.Body, nil
	}
	defer func() { _ = resp.Body.Close() }()

	localPath := opts.LocalPath
	if localPath == "" {
		localPath = localName(result.Name, opts.Token)
	}
	result.LocalPath = localPath

	if dir := filepath.Dir(localPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("create directory: %w", err)
		}
	}

	file, err := os.Create(localPath) //#nosec G304 -- localPath is user-provided input
	if err != nil {
		return nil, nil, fmt.Errorf("create file: %w", err)
	}

	written, copyErr := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		return nil, nil, fmt.Errorf("write file: %w", copyErr)
	}
	if closeErr != nil {
		return nil, nil, fmt.Errorf("close file: %w", closeErr)
	}

	result.Size = written
	return result, nil, nil
}

// List returns the caller's live objects, optionally filtered by tag.
func (c *Client) List(ctx context.Context, tag string) ([]ObjectInfo, error) {
	if c.config.Token == "" {
		return nil, fmt.Errorf("list: %w", ErrTokenRequired)
	}

	var query url.Values
	if tag != "" {
		query = url.Values{"tag": {tag}}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/files/my", query), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.authorize(req)

	items := make([]ObjectInfo, 0)
	if err := c.doJSON(req, http.StatusOK, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Delete removes each id in turn, continuing past failures.
func (c *Client) Delete(ctx context.Context, ids []string) ([]DeleteResult, error) {
	if len(ids) == 0 {
		return nil, ErrNoIDs
	}
	if c.config.Token == "" {
		return nil, fmt.Errorf("delete: %w", ErrTokenRequired)
	}

	results := make([]DeleteResult, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, c.deleteSingle(ctx, id))
	}

	return results, nil
}

func (c *Client) deleteSingle(ctx context.Context, id string) DeleteResult {
	parsed, err := parseID(id)
	if err != nil {
		return DeleteResult{ID: id, Err: fmt.Errorf("invalid id: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.url("/files/"+parsed.String(), nil), http.NoBody)
	if err != nil {
		return DeleteResult{ID: id, Err: fmt.Errorf("create request: %w", err)}
	}
	c.authorize(req)

	if err := c.doJSON(req, http.StatusOK, nil); err != nil {
		return DeleteResult{ID: id, Err: err}
	}

	return DeleteResult{ID: id, Deleted: true}
}

// HasDeleteErrors reports whether any delete failed.
func HasDeleteErrors(results []DeleteResult) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// Ping checks the server's liveness endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/healthz", nil), http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.doJSON(req, http.StatusOK, nil)
}

func (c *Client) url(path string, query url.Values) string {
	u := c.config.Endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) authorize(req *http.Request) {
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
}

// doJSON runs req and decodes the body into out when the status matches.
func (c *Client) doJSON(req *http.Request, want int, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != want {
		return parseServerError(resp.StatusCode, body)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// attachmentName extracts the file name from a Content-Disposition header.
// ParseMediaType decodes the RFC 5987 filename* form into "filename".
func attachmentName(header string) string {
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

// localName turns a server-provided name into a safe local file name.
func localName(name, token string) string {
	base := filepath.Base(filepath.FromSlash(name))
	if base == "." || base == ".." || base == string(filepath.Separator) || base == "" {
		return token
	}
	return base
}

func detectContentType(path string) string {
	if mimeType := mime.TypeByExtension(filepath.Ext(path)); mimeType != "" {
		return mimeType
	}
	return "application/octet-stream"
}

func parseServerError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode}

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		apiErr.Code = payload.Error
		apiErr.Message = payload.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}

	return apiErr
}

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	msg := "server error: " + strconv.Itoa(e.StatusCode)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Message != "" {
		msg += " - " + e.Message
	}
	return msg
}

// Is matches any *APIError with the same status code.
func (e *APIError) Is(target error) bool {
	var t *APIError
	if !errors.As(target, &t) {
		return false
	}
	return t.StatusCode == e.StatusCode
}

// Sentinel errors for common status codes, for use with errors.Is.
var (
	ErrNotFound      = &APIError{StatusCode: http.StatusNotFound}
	ErrUnauthorized  = &APIError{StatusCode: http.StatusUnauthorized}
	ErrForbidden     = &APIError{StatusCode: http.StatusForbidden}
	ErrTooLarge      = &APIError{StatusCode: http.StatusRequestEntityTooLarge}
	ErrPolicyRefused = &APIError{StatusCode: http.StatusUnprocessableEntity}
)
