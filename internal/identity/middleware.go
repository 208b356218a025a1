package identity

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Authenticate attaches the bearer token's identity to the request context.
// Requests without an Authorization header pass through anonymously so the
// service layer can report the missing identity itself; a present but
// invalid token is rejected with 401.
func Authenticate(v *Verifier, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			id, err := v.Verify(strings.TrimSpace(auth[len("bearer "):]))
			if err != nil {
				logger.Debugw("bearer token rejected", "err", err, "path", r.URL.Path)
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole rejects anonymous callers with 401 and callers without role with 403.
// An empty role only requires a signed-in caller.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "you must be signed in")
				return
			}
			if role != "" && id.Role != role {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": msg})
}
