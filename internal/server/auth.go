package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/docsage/docsage/internal/logging"
)

// devUser is the identity every request runs under when no API keys are
// configured. Single-user development mode only.
const devUser = "local"

// callerKey is the unexported context key for the authenticated user id.
type callerKey struct{}

// CallerID returns the authenticated user id stored in ctx by the auth
// middleware. Returns devUser if none is present (direct handler tests).
func CallerID(ctx context.Context) string {
	if id, ok := ctx.Value(callerKey{}).(string); ok && id != "" {
		return id
	}
	return devUser
}

// withCaller returns a copy of ctx carrying the authenticated user id.
func withCaller(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callerKey{}, id)
}

// authMiddleware returns an HTTP middleware that resolves the caller's
// identity from a Bearer token. apiKeys maps tokens to user ids; if it is
// empty, authentication is disabled and every request runs as devUser
// (a warning is logged at server startup, not per-request).
//
// Protected routes must supply:
//
//	Authorization: Bearer <token>
//
// Requests missing or presenting an unknown token receive 401 Unauthorized
// with a WWW-Authenticate: Bearer challenge. The invalid token value is never
// logged — only its presence/absence is recorded.
func authMiddleware(apiKeys map[string]string, next http.Handler) http.Handler {
	if len(apiKeys) == 0 {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), devUser)))
		})
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logging.FromContext(r.Context())

		token := bearerToken(r)
		if token == "" {
			log.Warn("auth: missing Authorization header",
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="docsage"`)
			writeError(w, http.StatusUnauthorized, "authorization required")
			return
		}

		userID, ok := apiKeys[token]
		if !ok {
			log.Warn("auth: invalid token",
				slog.String("path", r.URL.Path),
				slog.Bool("token_present", true),
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="docsage" error="invalid_token"`)
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), userID)))
	})
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Returns an empty string if the header is absent or malformed.
func bearerToken(r *http.Request) string {
	hdr := r.Header.Get("Authorization")
	if hdr == "" {
		return ""
	}
	parts := strings.SplitN(hdr, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
