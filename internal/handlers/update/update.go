// Package update receives Strava webhook events and ingests the referenced activity.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/lildude/stravastats/internal/errs"
	"github.com/lildude/stravastats/internal/ingest"
	"github.com/lildude/stravastats/internal/middleware"
	"github.com/lildude/stravastats/internal/strava"
	"github.com/sirupsen/logrus"
)

const maxBody = 1 << 16

type EventHandler interface {
	HandleEvent(ctx context.Context, ev strava.WebhookPayload) (ingest.Outcome, error)
}

type response struct {
	Outcome ingest.Outcome `json:"outcome"`
}

// Handler decodes a webhook event and processes it before answering. Events for
// athletes that never authorized are acknowledged so Strava stops redelivering them.
func Handler(h EventHandler, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
		if err != nil || len(body) == 0 {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		var webhook strava.WebhookPayload
		if err := json.Unmarshal(body, &webhook); err != nil {
			log.WithError(err).Warn("unable to unmarshal webhook payload")
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		outcome, err := h.HandleEvent(r.Context(), webhook)
		if errors.Is(err, errs.ErrNotFound) {
			log.WithField("owner_id", webhook.OwnerID).Warn("webhook for unknown athlete")
			middleware.WriteJSON(w, http.StatusOK, response{Outcome: ingest.OutcomeIgnored})
			return
		}
		if err != nil {
			middleware.WriteError(w, log, err)
			return
		}

		middleware.WriteJSON(w, http.StatusOK, response{Outcome: outcome})
	}
}
