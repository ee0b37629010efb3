package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/heartmarshall/labsim/internal/auth"
	"github.com/heartmarshall/labsim/pkg/ctxutil"
)

type tokenValidator interface {
	ValidateToken(token string) (auth.Identity, error)
}

// Auth resolves the bearer identity token. Requests without a token pass
// through anonymously; an invalid token is rejected with 401. Websocket
// handshakes may carry the token in the access_token query parameter
// because browsers cannot set headers on them.
func Auth(validator tokenValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" && isWebsocketHandshake(r) {
				token = r.URL.Query().Get("access_token")
			}
			if token == "" {
				next.ServeHTTP(w, r) // Anonymous
				return
			}
			id, err := validator.ValidateToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			ctx := auth.WithIdentity(r.Context(), id)
			ctx = ctxutil.WithUserID(ctx, id.UID)
			noteUser(w, id.UID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireIdentity rejects anonymous requests with 401.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.IdentityFromCtx(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func isWebsocketHandshake(r *http.Request) bool {
	return r.Method == http.MethodGet && strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message}) //nolint:errcheck
}
