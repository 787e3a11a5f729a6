// Package activities serves the activity feed and the aggregated running statistics.
package activities

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/lildude/stravastats/internal/errs"
	"github.com/lildude/stravastats/internal/middleware"
	"github.com/lildude/stravastats/internal/model"
	"github.com/lildude/stravastats/internal/stats"
	"github.com/sirupsen/logrus"
)

type RunQuerier interface {
	QueryRuns(ctx context.Context, athleteID int64, start, end time.Time) ([]model.Activity, error)
}

type Handler struct {
	runs RunQuerier
	log  logrus.FieldLogger
}

func NewHandler(runs RunQuerier, log logrus.FieldLogger) *Handler {
	return &Handler{runs: runs, log: log}
}

type compareResponse struct {
	stats.Comparison
	CurrentRange  stats.Window `json:"current_range"`
	PreviousRange stats.Window `json:"previous_range"`
}

// Activities lists the runs in [start, end], oldest first.
func (h *Handler) Activities(w http.ResponseWriter, r *http.Request) {
	runs, _, ok := h.query(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, stats.Feed(runs))
}

// Summary aggregates the runs in [start, end].
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	runs, _, ok := h.query(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, stats.Summarize(runs))
}

// Compare compares [start, end] with the period just before it: prev_weeks weeks
// long when given, otherwise the same number of days.
func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	prevWeeks := 0
	if v := r.URL.Query().Get("prev_weeks"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			middleware.WriteError(w, h.log, &errs.MalformedPayloadError{Field: "prev_weeks", Reason: "want a non-negative integer"})
			return
		}
		prevWeeks = n
	}

	current, window, ok := h.query(w, r)
	if !ok {
		return
	}
	prevWindow := stats.PreviousWindow(window, prevWeeks)
	athleteID, _ := middleware.AthleteID(r.Context())
	previous, err := h.runs.QueryRuns(r.Context(), athleteID, prevWindow.Start, prevWindow.End)
	if err != nil {
		middleware.WriteError(w, h.log, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, compareResponse{
		Comparison:    stats.Compare(current, previous),
		CurrentRange:  window,
		PreviousRange: prevWindow,
	})
}

func (h *Handler) query(w http.ResponseWriter, r *http.Request) ([]model.Activity, stats.Window, bool) {
	athleteID, ok := middleware.AthleteID(r.Context())
	if !ok {
		middleware.WriteError(w, h.log, &errs.NotFoundError{Resource: "authorized athlete"})
		return nil, stats.Window{}, false
	}
	q := r.URL.Query()
	window, err := stats.ParseWindow(q.Get("start"), q.Get("end"))
	if err != nil {
		middleware.WriteError(w, h.log, err)
		return nil, stats.Window{}, false
	}
	runs, err := h.runs.QueryRuns(r.Context(), athleteID, window.Start, window.End)
	if err != nil {
		middleware.WriteError(w, h.log, err)
		return nil, stats.Window{}, false
	}
	return runs, window, true
}
