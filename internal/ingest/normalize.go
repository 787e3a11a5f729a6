// Package ingest turns raw Strava activity payloads into stored activities, both
// from webhook events and from historical imports.
package ingest

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgtype"
	"github.com/lildude/stravastats/internal/errs"
	"github.com/lildude/stravastats/internal/model"
)

// DefaultKind is recorded when a payload carries neither sport_type nor type.
const DefaultKind = "Workout"

var startLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// Normalize maps a raw payload onto an Activity. Only a missing id or start time is
// fatal; every other absent field degrades to zero or NULL. fallbackAthleteID is used
// when the payload has no owner; 0 records the owner as unknown.
func Normalize(raw []byte, fallbackAthleteID int64) (*model.Activity, error) {
	p, err := decode(raw)
	if err != nil {
		return nil, err
	}

	id, ok := intValue(p["id"])
	if !ok {
		return nil, &errs.MalformedPayloadError{Field: "id", Reason: "missing or not an integer"}
	}

	start, err := startDate(p)
	if err != nil {
		return nil, err
	}

	a := &model.Activity{
		ID:                 id,
		AthleteID:          owner(p, fallbackAthleteID),
		Type:               kind(p),
		Name:               strings.TrimSpace(stringValue(p["name"])),
		StartDate:          start,
		DistanceM:          nonNegative(p["distance"]),
		MovingTimeS:        nonNegative(p["moving_time"]),
		ElapsedTimeS:       nonNegative(p["elapsed_time"]),
		TotalElevationGain: optionalInt(p["total_elevation_gain"]),
		AverageHeartrate:   optionalFloat(p["average_heartrate"]),
		MaxHeartrate:       optionalFloat(p["max_heartrate"]),
		Raw:                pgtype.JSONB{Bytes: raw, Status: pgtype.Present},
	}
	if a.ElapsedTimeS < a.MovingTimeS {
		a.ElapsedTimeS = a.MovingTimeS
	}
	return a, nil
}

// Kind returns the normalized kind of a payload without the rest of normalization.
// Undecodable payloads report DefaultKind.
func Kind(raw []byte) string {
	p, err := decode(raw)
	if err != nil {
		return DefaultKind
	}
	return kind(p)
}

// ID returns the activity id of a payload.
func ID(raw []byte) (int64, error) {
	p, err := decode(raw)
	if err != nil {
		return 0, err
	}
	id, ok := intValue(p["id"])
	if !ok {
		return 0, &errs.MalformedPayloadError{Field: "id", Reason: "missing or not an integer"}
	}
	return id, nil
}

func decode(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var p map[string]any
	if err := dec.Decode(&p); err != nil {
		return nil, &errs.MalformedPayloadError{Field: "payload", Reason: err.Error()}
	}
	if p == nil {
		return nil, &errs.MalformedPayloadError{Field: "payload", Reason: "not a JSON object"}
	}
	return p, nil
}

// kind prefers the newer sport_type over the legacy type.
func kind(p map[string]any) string {
	for _, key := range []string{"sport_type", "type"} {
		if s := strings.TrimSpace(stringValue(p[key])); s != "" {
			return s
		}
	}
	return DefaultKind
}

func owner(p map[string]any, fallback int64) int64 {
	if athlete, ok := p["athlete"].(map[string]any); ok {
		if id, ok := intValue(athlete["id"]); ok && id != 0 {
			return id
		}
	}
	if id, ok := intValue(p["athlete_id"]); ok && id != 0 {
		return id
	}
	return fallback
}

func startDate(p map[string]any) (time.Time, error) {
	for _, key := range []string{"start_date", "start_date_local"} {
		s := strings.TrimSpace(stringValue(p[key]))
		if s == "" {
			continue
		}
		for _, layout := range startLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC().Truncate(time.Second), nil
			}
		}
		return time.Time{}, &errs.MalformedPayloadError{Field: key, Reason: "unparseable timestamp " + strconv.Quote(s)}
	}
	return time.Time{}, &errs.MalformedPayloadError{Field: "start_date", Reason: "missing"}
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	default:
		return ""
	}
}

func floatValue(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func intValue(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return i, true
		}
	}
	f, ok := floatValue(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return toInt64(f)
}

// toInt64 rounds f, refusing NaN, infinities and anything int64 cannot hold.
func toInt64(f float64) (int64, bool) {
	f = math.Round(f)
	// float64(math.MaxInt64) is 2^63, one past the largest int64.
	if math.IsNaN(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// nonNegative treats absent, negative and out of range values as zero.
func nonNegative(v any) int64 {
	f, ok := floatValue(v)
	if !ok || f < 0 {
		return 0
	}
	i, ok := toInt64(f)
	if !ok {
		return 0
	}
	return i
}

func optionalInt(v any) *int64 {
	f, ok := floatValue(v)
	if !ok {
		return nil
	}
	i, ok := toInt64(f)
	if !ok {
		return nil
	}
	return &i
}

func optionalFloat(v any) *float64 {
	f, ok := floatValue(v)
	if !ok || math.IsNaN(f) {
		return nil
	}
	return &f
}
