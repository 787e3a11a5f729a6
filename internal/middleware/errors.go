package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lildude/stravastats/internal/errs"
	"github.com/sirupsen/logrus"
)

// ErrorResponseBody is the JSON shape of every error response.
type ErrorResponseBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
}

// WriteJSON encodes v as the response body.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck,gosec // the client has gone if this fails
}

// WriteError maps err onto a status code and error body. Server-side failures are
// logged; their details are not sent to the client.
func WriteError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	var (
		mp *errs.MalformedPayloadError
		ua *errs.UpstreamAuthError
		ue *errs.UpstreamError
		se *errs.StorageError
		nf *errs.NotFoundError
	)

	switch {
	case errors.As(err, &mp):
		WriteJSON(w, http.StatusBadRequest, ErrorResponseBody{Code: "MALFORMED", Message: mp.Error()})
	case errors.As(err, &nf) && nf.Resource == "authorized athlete":
		WriteJSON(w, http.StatusNotFound, ErrorResponseBody{
			Code:    "NOT_AUTHORIZED",
			Message: "no authorized user yet",
			Action:  "complete the Strava authorization first",
		})
	case errors.Is(err, errs.ErrNotFound):
		WriteJSON(w, http.StatusNotFound, ErrorResponseBody{Code: "NOT_FOUND", Message: err.Error()})
	case errors.As(err, &ua):
		log.WithError(err).Warn("upstream rejected credentials")
		WriteJSON(w, http.StatusBadGateway, ErrorResponseBody{
			Code:    "UPSTREAM_AUTH",
			Message: "Strava rejected the stored credentials",
			Action:  "re-authorize the application with Strava",
		})
	case errors.As(err, &ue):
		log.WithError(err).Error("upstream call failed")
		WriteJSON(w, http.StatusBadGateway, ErrorResponseBody{Code: "UPSTREAM", Message: "Strava request failed", Action: "retry later"})
	case errors.As(err, &se):
		log.WithError(err).Error("storage failure")
		WriteJSON(w, http.StatusServiceUnavailable, ErrorResponseBody{Code: "STORAGE", Message: "storage unavailable", Action: "retry later"})
	default:
		log.WithError(err).Error("internal error")
		WriteJSON(w, http.StatusInternalServerError, ErrorResponseBody{Code: "INTERNAL", Message: "internal error"})
	}
}
