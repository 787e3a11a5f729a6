package stats

import (
	"math"
	"strings"
	"time"

	"github.com/lildude/stravastats/internal/errs"
)

const day = 24 * time.Hour

// Window is an inclusive time range.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ParseWindow parses query bounds given as YYYY-MM-DD or RFC 3339. A date-only end
// covers that whole day, so start=end=2025-06-01 selects all of June 1st (UTC).
func ParseWindow(start, end string) (Window, error) {
	s, _, err := parseBound("start", start)
	if err != nil {
		return Window{}, err
	}
	e, dateOnly, err := parseBound("end", end)
	if err != nil {
		return Window{}, err
	}
	if dateOnly {
		e = e.Add(day - time.Second)
	}
	if e.Before(s) {
		return Window{}, &errs.MalformedPayloadError{Field: "end", Reason: "before start"}
	}
	return Window{Start: s, End: e}, nil
}

func parseBound(field, v string) (time.Time, bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false, &errs.MalformedPayloadError{Field: field, Reason: "missing"}
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, &errs.MalformedPayloadError{Field: field, Reason: "want YYYY-MM-DD or RFC 3339"}
	}
	return t.UTC(), false, nil
}

// PreviousWindow returns the period compared against w. It ends one second before
// w starts and spans prevWeeks weeks, or when prevWeeks is not positive, the same
// number of whole days as w (at least one).
func PreviousWindow(w Window, prevWeeks int) Window {
	span := time.Duration(prevWeeks) * 7 * day
	if prevWeeks <= 0 {
		days := math.Ceil(w.End.Sub(w.Start).Seconds() / day.Seconds())
		span = time.Duration(math.Max(days, 1)) * day
	}
	return Window{
		Start: w.Start.Add(-span),
		End:   w.Start.Add(-time.Second),
	}
}
