// Package stats aggregates stored running activities into summaries and
// period-over-period comparisons.
package stats

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/lildude/stravastats/internal/model"
	"golang.org/x/text/cases"
)

// Best-effort keys reported in every Summary.
const (
	Best5K   = "5k"
	Best10K  = "10k"
	BestHalf = "21k"
)

var bestEffortLabels = map[string][]string{
	Best5K:   {"5k"},
	Best10K:  {"10k"},
	BestHalf: {"half marathon", "21k", "21.1k", "21.1 km"},
}

// Summary is the aggregate of a set of runs.
type Summary struct {
	Sessions    int                `json:"sessions"`
	DistanceKm  float64            `json:"distance_km"`
	MovingTimeH float64            `json:"moving_time_h"`
	ElevGainM   int64              `json:"elev_gain_m"`
	AvgPace     *string            `json:"avg_pace"`
	AvgHR       *float64           `json:"avg_hr"`
	BestEfforts map[string]*string `json:"best_efforts"`
}

type totals struct {
	sessions   int
	distanceM  int64
	movingS    int64
	elevationM int64
	hrSum      float64
	hrCount    int
}

func sum(runs []model.Activity) totals {
	var t totals
	for _, r := range runs {
		t.sessions++
		t.distanceM += r.DistanceM
		t.movingS += r.MovingTimeS
		if r.TotalElevationGain != nil {
			t.elevationM += *r.TotalElevationGain
		}
		if r.AverageHeartrate != nil {
			t.hrSum += *r.AverageHeartrate
			t.hrCount++
		}
	}
	return t
}

// avgHR is the mean over runs that recorded a heart rate, or nil when none did.
func (t totals) avgHR() *float64 {
	if t.hrCount == 0 {
		return nil
	}
	hr := round(t.hrSum/float64(t.hrCount), 1)
	return &hr
}

// paceSeconds is the distance-weighted pace in seconds per km.
func (t totals) paceSeconds() (float64, bool) {
	return secondsPerKm(float64(t.movingS), float64(t.distanceM))
}

// Summarize aggregates runs. No runs is a zero Summary with every optional field nil.
func Summarize(runs []model.Activity) Summary {
	t := sum(runs)
	return Summary{
		Sessions:    t.sessions,
		DistanceKm:  round(float64(t.distanceM)/1000, 2),
		MovingTimeH: round(float64(t.movingS)/3600, 2),
		ElevGainM:   t.elevationM,
		AvgPace:     FormatPace(float64(t.movingS), float64(t.distanceM)),
		AvgHR:       t.avgHR(),
		BestEfforts: bestEfforts(runs),
	}
}

type effort struct {
	Name        string          `json:"name"`
	ElapsedTime json.RawMessage `json:"elapsed_time"`
}

// bestEfforts keeps the fastest elapsed time per standard distance found in the
// best_efforts list of each run's raw payload.
func bestEfforts(runs []model.Activity) map[string]*string {
	best := map[string]float64{}
	fold := cases.Fold()

	for _, r := range runs {
		if len(r.Raw.Bytes) == 0 {
			continue
		}
		var payload struct {
			BestEfforts []effort `json:"best_efforts"`
		}
		if err := json.Unmarshal(r.Raw.Bytes, &payload); err != nil {
			continue
		}
		for _, e := range payload.BestEfforts {
			elapsed, err := parseSeconds(e.ElapsedTime)
			if err != nil || elapsed < 0 {
				continue
			}
			name := strings.ReplaceAll(fold.String(e.Name), "-", " ")
			for key, labels := range bestEffortLabels {
				if !matchesAny(name, labels) {
					continue
				}
				if cur, ok := best[key]; !ok || elapsed < cur {
					best[key] = elapsed
				}
			}
		}
	}

	out := map[string]*string{Best5K: nil, Best10K: nil, BestHalf: nil}
	for key, sec := range best {
		s := formatClock(sec)
		out[key] = &s
	}
	return out
}

// matchesAny reports whether name contains one of labels at a token start, so
// "15k" does not count as a 5k.
func matchesAny(name string, labels []string) bool {
	for _, label := range labels {
		for i := 0; i+len(label) <= len(name); {
			j := strings.Index(name[i:], label)
			if j < 0 {
				break
			}
			at := i + j
			if at == 0 || !isNumeric(name[at-1]) {
				return true
			}
			i = at + 1
		}
	}
	return false
}

func isNumeric(c byte) bool {
	return c == '.' || (c >= '0' && c <= '9')
}

func parseSeconds(raw json.RawMessage) (float64, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("parsing elapsed_time %q: %w", n, err)
	}
	return f, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	r := math.Round(v*p) / p
	if r == 0 {
		return 0 // no negative zero
	}
	return r
}
