// Package callback answers the Strava webhook subscription challenge.
package callback

import (
	"net/http"

	"github.com/lildude/stravastats/internal/middleware"
)

// Handler echoes hub.challenge back to Strava when hub.verify_token matches verifyToken.
func Handler(verifyToken string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		challenge, ok := q["hub.challenge"]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("missing query param: hub.challenge")) //nolint:gosec // We don't care if this fails
			return
		}
		verify, ok := q["hub.verify_token"]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("missing query param: hub.verify_token")) //nolint:gosec // We don't care if this fails
			return
		}
		if verifyToken == "" || verify[0] != verifyToken {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte("verify token mismatch")) //nolint:gosec // We don't care if this fails
			return
		}

		middleware.WriteJSON(w, http.StatusOK, map[string]string{"hub.challenge": challenge[0]})
	}
}
