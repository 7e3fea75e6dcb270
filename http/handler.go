package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/sagarc03/ephemera"
)

// multipartOverhead is the slack allowed on top of the upload size limit
// for multipart boundaries, part headers and form fields.
const multipartOverhead = 1 << 20

// maxFieldBytes bounds a single non-file form field.
const maxFieldBytes = 4 << 10

type Service interface {
	Ingest(ctx context.Context, req ephemera.IngestRequest, content io.Reader) (ephemera.StoredObject, error)
	Metadata(ctx context.Context, token string) (ephemera.ObjectMetadata, error)
	Download(ctx context.Context, token, password string) (ephemera.StoredObject, io.ReadSeekCloser, error)
	VerifyPassword(ctx context.Context, token, password string) error
	ListOwned(ctx context.Context, ownerID, tag string) ([]ephemera.StoredObject, error)
	Delete(ctx context.Context, id uuid.UUID, requesterID string) error
	Remove(ctx context.Context, id uuid.UUID) error
}

// Metrics instruments the router. Both methods are optional at the call site:
// a nil Metrics disables instrumentation and the /metrics route.
type Metrics interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled" yaml:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers" yaml:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age" validate:"gte=0"`
}

type HandlerConfig struct {
	Verifier       TokenVerifier // nil rejects every authenticated route
	CORS           CORSConfig
	MaxUploadBytes int64 // 0 means no request body limit
	Metrics        Metrics
	MetricsPath    string // default: /metrics
}

// Handler provides HTTP handlers for the file-sharing API.
type Handler struct {
	config  HandlerConfig
	service Service
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	return &Handler{
		config:  *config,
		service: service,
	}
}

// Router returns an http.Handler with all routes mounted.
//
//	POST   /files/upload                   optional bearer token
//	GET    /files/my                       bearer token required
//	GET    /files/{token}
//	GET    /files/{token}/download
//	POST   /files/{token}/verify-password
//	DELETE /files/{id}                     bearer token required
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)

	if h.config.Metrics != nil {
		r.Use(h.config.Metrics.Middleware)
	}

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusNotFound, "not_found", "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if h.config.Metrics != nil {
		path := h.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, h.config.Metrics.Handler())
	}

	r.Route("/files", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(IdentityMiddleware(h.config.Verifier, false))
			r.Post("/upload", h.handleUpload)
		})

		r.Group(func(r chi.Router) {
			r.Use(IdentityMiddleware(h.config.Verifier, true))
			r.Get("/my", h.handleListOwned)
			r.Delete("/{id}", h.handleDelete)
		})

		r.Get("/{token}", h.handleMetadata)
		r.Get("/{token}/download", h.handleDownload)
		r.Post("/{token}/verify-password", h.handleVerifyPassword)
	})

	return r
}

// handleUpload streams a multipart upload into the service. Text fields
// must precede the "file" part: an upload followed by further parts is
// rolled back and refused.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if h.config.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes+multipartOverhead)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_input", "Expected a multipart/form-data body")
		return
	}

	req := ephemera.IngestRequest{Owner: ownerFromContext(r.Context())}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			WriteError(w, http.StatusBadRequest, "invalid_input", "No file uploaded")
			return
		}
		if err != nil {
			HandleError(w, fmt.Errorf("upload: %w: %w", ephemera.ErrInvalidInput, err))
			return
		}

		if part.FormName() == "file" {
			req.OriginalName = part.FileName()
			req.MimeType = partContentType(part.Header.Get("Content-Type"))

			obj, err := h.service.Ingest(r.Context(), req, part)
			_ = part.Close()
			if err != nil {
				HandleError(w, err)
				return
			}

			if err := h.expectEndOfForm(r.Context(), mr, obj); err != nil {
				HandleError(w, err)
				return
			}

			_ = WriteJSON(w, http.StatusCreated, obj.Summary())
			return
		}

		value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
		_ = part.Close()
		if err != nil {
			HandleError(w, fmt.Errorf("upload: %w: %w", ephemera.ErrInvalidInput, err))
			return
		}

		switch part.FormName() {
		case "expiresIn":
			req.ExpiresInDays = string(value)
		case "password":
			req.Password = string(value)
		case "tags":
			req.Tags = string(value)
		}
	}
}

// expectEndOfForm checks that nothing follows the file part. A stored
// object whose settings arrived too late is removed again so it never
// becomes reachable without them.
func (h *Handler) expectEndOfForm(ctx context.Context, mr *multipart.Reader, obj ephemera.StoredObject) error {
	part, err := mr.NextPart()
	if errors.Is(err, io.EOF) {
		return nil
	}

	cause := fmt.Errorf("upload: %w: form fields must precede the file part", ephemera.ErrInvalidInput)
	if err != nil {
		cause = fmt.Errorf("upload: %w: %w", ephemera.ErrInvalidInput, err)
	} else {
		_ = part.Close()
	}

	if rmErr := h.service.Remove(context.WithoutCancel(ctx), obj.ID); rmErr != nil {
		slog.Error("failed to roll back upload", "id", obj.ID, "error", rmErr)
	}

	return cause
}

// partContentType keeps the client's media type unless it is missing or the
// generic binary type, in which case the service detects one from the name.
func partContentType(header string) string {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil || mediaType == "application/octet-stream" {
		return ""
	}
	return mediaType
}

func (h *Handler) handleListOwned(w http.ResponseWriter, r *http.Request) {
	requester, _ := RequesterFromContext(r.Context())

	objs, err := h.service.ListOwned(r.Context(), requester, r.URL.Query().Get("tag"))
	if err != nil {
		HandleError(w, err)
		return
	}

	summaries := make([]ephemera.ObjectSummary, 0, len(objs))
	for _, obj := range objs {
		summaries = append(summaries, obj.Summary())
	}

	_ = WriteJSON(w, http.StatusOK, summaries)
}

func (h *Handler) handleMetadata(w http.ResponseWriter, r *http.Request) {
	meta, err := h.service.Metadata(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, meta)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	password := r.URL.Query().Get("password")

	obj, content, err := h.service.Download(r.Context(), chi.URLParam(r, "token"), password)
	if err != nil {
		HandleError(w, err)
		return
	}
	defer func() { _ = content.Close() }()

	w.Header().Set("Content-Type", obj.MimeType)
	w.Header().Set("Content-Disposition", ContentDisposition(obj.OriginalName))
	w.Header().Set("Cache-Control", "no-store")

	// ServeContent sets Content-Length and answers range requests. A zero
	// modtime keeps it from answering 304 to a read that was already counted.
	http.ServeContent(w, r, "", time.Time{}, content)
}

type verifyPasswordRequest struct {
	Password string `json:"password"`
}

type verifyPasswordResponse struct {
	Valid bool `json:"valid"`
}

func (h *Handler) handleVerifyPassword(w http.ResponseWriter, r *http.Request) {
	var body verifyPasswordRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxFieldBytes)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, http.StatusBadRequest, "invalid_input", "Invalid JSON body")
		return
	}

	if err := h.service.VerifyPassword(r.Context(), chi.URLParam(r, "token"), body.Password); err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, verifyPasswordResponse{Valid: true})
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		HandleError(w, ephemera.ErrNotFound)
		return
	}

	requester, _ := RequesterFromContext(r.Context())

	if err := h.service.Delete(r.Context(), id, requester); err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, messageResponse{Message: "File deleted"})
}

// ContentDisposition returns an attachment header carrying the file name as
// an RFC 5987 UTF-8 extended value, with an ASCII fallback for old clients.
func ContentDisposition(name string) string {
	var fallback strings.Builder
	for _, r := range name {
		if r == '"' || r == '\\' || r < 0x20 || r > 0x7e {
			fallback.WriteByte('_')
			continue
		}
		fallback.WriteRune(r)
	}

	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, fallback.String(), encodeRFC5987(name))
}

func encodeRFC5987(s string) string {
	const hexDigits = "0123456789ABCDEF"

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAttrChar(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0f])
	}
	return b.String()
}

func isAttrChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", c) >= 0
}
