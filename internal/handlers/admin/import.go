// Package admin exposes operator endpoints for historical imports.
package admin

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/lildude/stravastats/internal/errs"
	"github.com/lildude/stravastats/internal/ingest"
	"github.com/lildude/stravastats/internal/middleware"
	"github.com/sirupsen/logrus"
)

type Importer interface {
	Import(ctx context.Context, athleteID int64, after time.Time) (*ingest.ImportReport, error)
	LastReport(ctx context.Context, athleteID int64) (*ingest.ImportReport, error)
}

// Handler runs at most one import per athlete at a time, in the background.
type Handler struct {
	base        context.Context
	importer    Importer
	defaultDays int
	log         logrus.FieldLogger

	mu      sync.Mutex
	running map[int64]bool
	wg      sync.WaitGroup

	Now func() time.Time
}

// NewHandler returns a Handler whose imports are cancelled when base is.
func NewHandler(base context.Context, importer Importer, defaultDays int, log logrus.FieldLogger) *Handler {
	return &Handler{
		base:        base,
		importer:    importer,
		defaultDays: defaultDays,
		log:         log,
		running:     map[int64]bool{},
		Now:         time.Now,
	}
}

type started struct {
	Status    string    `json:"status"`
	AthleteID int64     `json:"athlete_id"`
	After     time.Time `json:"after"`
}

// StartImport begins importing the last ?days=N days (the configured default when
// absent) and answers 202 straight away. GET /admin/import reports the outcome.
func (h *Handler) StartImport(w http.ResponseWriter, r *http.Request) {
	athleteID, ok := middleware.AthleteID(r.Context())
	if !ok {
		middleware.WriteError(w, h.log, &errs.NotFoundError{Resource: "authorized athlete"})
		return
	}

	days := h.defaultDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			middleware.WriteError(w, h.log, &errs.MalformedPayloadError{Field: "days", Reason: "want a positive integer"})
			return
		}
		days = n
	}

	h.mu.Lock()
	if h.running[athleteID] {
		h.mu.Unlock()
		middleware.WriteJSON(w, http.StatusConflict, middleware.ErrorResponseBody{Code: "IMPORT_RUNNING", Message: "an import is already running"})
		return
	}
	h.running[athleteID] = true
	h.mu.Unlock()

	after := h.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour).Truncate(time.Second)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() {
			h.mu.Lock()
			delete(h.running, athleteID)
			h.mu.Unlock()
		}()
		// The report is cached by the importer, failures included.
		h.importer.Import(h.base, athleteID, after) //nolint:errcheck
	}()

	middleware.WriteJSON(w, http.StatusAccepted, started{Status: "started", AthleteID: athleteID, After: after})
}

// LastImport returns the report of the athlete's most recent import.
func (h *Handler) LastImport(w http.ResponseWriter, r *http.Request) {
	athleteID, ok := middleware.AthleteID(r.Context())
	if !ok {
		middleware.WriteError(w, h.log, &errs.NotFoundError{Resource: "authorized athlete"})
		return
	}
	report, err := h.importer.LastReport(r.Context(), athleteID)
	if err != nil {
		middleware.WriteError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, report)
}

// Wait blocks until background imports have returned.
func (h *Handler) Wait() {
	h.wg.Wait()
}
