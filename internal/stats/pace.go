package stats

import (
	"fmt"
	"math"
)

// FormatPace renders the pace of covering distanceM meters in durationS seconds as
// "m:ss min/km". It returns nil when the distance is not positive.
func FormatPace(durationS, distanceM float64) *string {
	sec, ok := secondsPerKm(durationS, distanceM)
	if !ok {
		return nil
	}
	s := formatClock(sec) + " min/km"
	return &s
}

func secondsPerKm(durationS, distanceM float64) (float64, bool) {
	if distanceM <= 0 || durationS < 0 {
		return 0, false
	}
	return durationS / (distanceM / 1000), true
}

// formatClock renders seconds as m:ss. Rounding happens on the whole value first,
// so 359.6s is "6:00" and never "5:60".
func formatClock(seconds float64) string {
	total := int64(math.Round(math.Abs(seconds)))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
