package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sagarc03/ephemera"
)

// TokenVerifier validates a bearer token and returns the user id it carries.
type TokenVerifier interface {
	Verify(raw string) (string, error)
}

type requesterKey struct{}

// RequesterFromContext returns the authenticated user id, if any.
func RequesterFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requesterKey{}).(string)
	return id, ok && id != ""
}

// WithRequester returns a context carrying the authenticated user id.
func WithRequester(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, requesterKey{}, userID)
}

func ownerFromContext(ctx context.Context) ephemera.Owner {
	id, _ := RequesterFromContext(ctx)
	return ephemera.OwnedBy(id)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// IdentityMiddleware resolves the bearer token into a requester id.
//
// When required is set, a missing or invalid token is rejected with 401.
// Otherwise the request continues anonymously: an invalid token on an
// optional route is logged and ignored rather than failing the upload.
// A nil verifier accepts no token at all.
func IdentityMiddleware(verifier TokenVerifier, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)

			if raw == "" || verifier == nil {
				if required {
					HandleError(w, fmt.Errorf("%w: bearer token required", ephemera.ErrUnauthorized))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			userID, err := verifier.Verify(raw)
			if err != nil {
				if required {
					HandleError(w, err)
					return
				}
				slog.Debug("ignoring invalid bearer token", "path", r.URL.Path, "err", err)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithRequester(r.Context(), userID)))
		})
	}
}
