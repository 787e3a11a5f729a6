package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// RequireAdminToken rejects requests that do not carry "Authorization: Bearer <token>".
// An empty token disables the protected routes entirely.
func RequireAdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			given, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" || !ok || subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
				WriteJSON(w, http.StatusUnauthorized, ErrorResponseBody{Code: "UNAUTHORIZED", Message: "admin token required"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
