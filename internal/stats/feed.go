package stats

import (
	"time"

	"github.com/lildude/stravastats/internal/model"
)

// FeedRow is one run as listed by the activity feed.
type FeedRow struct {
	ID            int64     `json:"id"`
	Date          time.Time `json:"date"`
	Name          string    `json:"name"`
	Kind          string    `json:"kind"`
	DistanceKm    float64   `json:"distance_km"`
	MovingTimeMin float64   `json:"moving_time_min"`
	AvgHR         *float64  `json:"avg_hr"`
	ElevGainM     *int64    `json:"elev_gain_m"`
	AvgPace       *string   `json:"avg_pace"`
}

func Feed(runs []model.Activity) []FeedRow {
	rows := make([]FeedRow, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, FeedRow{
			ID:            r.ID,
			Date:          r.StartDate.UTC(),
			Name:          r.Name,
			Kind:          r.Type,
			DistanceKm:    round(float64(r.DistanceM)/1000, 2),
			MovingTimeMin: round(float64(r.MovingTimeS)/60, 1),
			AvgHR:         r.AverageHeartrate,
			ElevGainM:     r.TotalElevationGain,
			AvgPace:       FormatPace(float64(r.MovingTimeS), float64(r.DistanceM)),
		})
	}
	return rows
}
