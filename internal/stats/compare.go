package stats

import (
	"math"
	"strings"

	"github.com/lildude/stravastats/internal/model"
)

// Advisory messages, at most one volume message followed by at most one pace message.
const (
	AdviceOverload   = "Volume is up more than 25%: keep weekly increases to around 10-15% to avoid overload."
	AdviceRebuild    = "Volume dropped significantly: rebuild gradually."
	AdviceResume     = "Resuming training: ramp up load conservatively, around 5-10% per week."
	AdviceEfficient  = "Efficient improvement: faster pace with controlled heart rate."
	AdviceFatigue    = "Slower pace with higher heart rate: possible fatigue, consider a recovery week."
	AdviceSteady     = "Maintain steady progression and review technique and training zones."
	paceUnchangedMsg = "same pace"
)

// Diff holds current minus previous for each Summary figure.
type Diff struct {
	Sessions    int      `json:"sessions"`
	DistanceKm  float64  `json:"distance_km"`
	MovingTimeH float64  `json:"moving_time_h"`
	ElevGainM   int64    `json:"elev_gain_m"`
	PaceChange  *string  `json:"avg_pace_change_text"`
	AvgHRChange *float64 `json:"avg_hr_change"`
}

type Comparison struct {
	Current  Summary `json:"current"`
	Previous Summary `json:"previous"`
	Diff     Diff    `json:"diff"`
	Advice   string  `json:"advice"`
}

// Compare summarizes both periods and derives the deltas and an advisory hint.
func Compare(current, previous []model.Activity) Comparison {
	cur, prev := sum(current), sum(previous)
	c := Comparison{
		Current:  Summarize(current),
		Previous: Summarize(previous),
	}
	c.Diff = Diff{
		Sessions:    c.Current.Sessions - c.Previous.Sessions,
		DistanceKm:  round(c.Current.DistanceKm-c.Previous.DistanceKm, 2),
		MovingTimeH: round(c.Current.MovingTimeH-c.Previous.MovingTimeH, 2),
		ElevGainM:   c.Current.ElevGainM - c.Previous.ElevGainM,
	}

	// Positive means the current period is faster.
	var paceGain float64
	curPace, curOK := cur.paceSeconds()
	prevPace, prevOK := prev.paceSeconds()
	if curOK && prevOK {
		paceGain = math.Round(prevPace - curPace)
		text := paceUnchangedMsg
		switch {
		case paceGain > 0:
			text = "faster " + formatClock(paceGain) + " /km"
		case paceGain < 0:
			text = "slower " + formatClock(paceGain) + " /km"
		}
		c.Diff.PaceChange = &text
	}

	if c.Current.AvgHR != nil && c.Previous.AvgHR != nil {
		d := round(*c.Current.AvgHR-*c.Previous.AvgHR, 1)
		c.Diff.AvgHRChange = &d
	}

	c.Advice = advise(cur.distanceM, prev.distanceM, paceGain, c.Diff.PaceChange != nil, c.Diff.AvgHRChange)
	return c
}

func advise(curDist, prevDist int64, paceGain float64, havePace bool, hrChange *float64) string {
	var advice []string

	switch {
	case prevDist > 0:
		pct := float64(curDist-prevDist) / float64(prevDist) * 100
		if pct > 25 {
			advice = append(advice, AdviceOverload)
		} else if pct < -20 {
			advice = append(advice, AdviceRebuild)
		}
	case curDist > 0:
		advice = append(advice, AdviceResume)
	}

	if havePace {
		switch {
		case paceGain > 0 && (hrChange == nil || *hrChange <= 2):
			advice = append(advice, AdviceEfficient)
		case paceGain < 0 && hrChange != nil && *hrChange >= 3:
			advice = append(advice, AdviceFatigue)
		}
	}

	if len(advice) == 0 {
		return AdviceSteady
	}
	return strings.Join(advice, " ")
}
