package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sagarc03/ephemera"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// HandleError writes the response for err. Client errors are logged at
// debug level; anything unrecognised is a 500 and logged as an error.
// ErrTooLarge is checked before ErrPolicyViolation, which it wraps.
func HandleError(w http.ResponseWriter, err error) {
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.Is(err, ephemera.ErrTooLarge), errors.As(err, &maxBytesErr):
		slog.Debug("request rejected", "error", err)
		WriteError(w, http.StatusRequestEntityTooLarge, "too_large", "File exceeds the maximum upload size")
	case errors.Is(err, ephemera.ErrPolicyViolation):
		slog.Debug("request rejected", "error", err)
		WriteError(w, http.StatusUnprocessableEntity, "policy_violation", "File type not allowed")
	case errors.Is(err, ephemera.ErrNotFound):
		slog.Debug("request rejected", "error", err)
		WriteError(w, http.StatusNotFound, "not_found", "File not found or expired")
	case errors.Is(err, ephemera.ErrUnauthorized):
		slog.Debug("request rejected", "error", err)
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Invalid or missing credentials")
	case errors.Is(err, ephemera.ErrForbidden):
		slog.Debug("request rejected", "error", err)
		WriteError(w, http.StatusForbidden, "forbidden", "You do not own this file")
	case errors.Is(err, ephemera.ErrInvalidInput):
		slog.Debug("request rejected", "error", err)
		WriteError(w, http.StatusBadRequest, "invalid_input", "Invalid request")
	default:
		slog.Error("request error", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
