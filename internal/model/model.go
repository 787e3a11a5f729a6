package model

import (
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgtype"
)

// Credential is the Strava token pair stored for an athlete.
type Credential struct {
	AthleteID    int64     `gorm:"primaryKey;autoIncrement:false"`
	AccessToken  string    `gorm:"not null"`
	RefreshToken string    `gorm:"not null"`
	ExpiresAt    time.Time `gorm:"not null;index"`
	Scope        string    `gorm:"not null;default:''"`
	UpdatedAt    time.Time
}

// Activity is the canonical stored form of one Strava workout. ID is the Strava activity ID.
type Activity struct {
	ID                 int64        `gorm:"primaryKey;autoIncrement:false"`
	AthleteID          int64        `gorm:"not null;index"`
	Type               string       `gorm:"not null;index"`
	Name               string       `gorm:"not null"`
	StartDate          time.Time    `gorm:"not null;index"`
	DistanceM          int64        `gorm:"not null"`
	MovingTimeS        int64        `gorm:"not null"`
	ElapsedTimeS       int64        `gorm:"not null"`
	TotalElevationGain *int64       `gorm:"column:total_elevation_gain_m"`
	AverageHeartrate   *float64     `gorm:"column:average_heartrate"`
	MaxHeartrate       *float64     `gorm:"column:max_heartrate"`
	Raw                pgtype.JSONB `gorm:"type:jsonb;not null"`
}

// KindSet is the allow-list of activity kinds counted as running.
type KindSet map[string]struct{}

// DefaultRunKinds are the Strava kinds treated as running when nothing is configured.
var DefaultRunKinds = []string{"Run", "TrailRun", "VirtualRun"}

// NewKindSet builds a KindSet, ignoring blank entries.
func NewKindSet(kinds ...string) KindSet {
	ks := make(KindSet, len(kinds))
	for _, k := range kinds {
		if k = strings.TrimSpace(k); k != "" {
			ks[k] = struct{}{}
		}
	}
	return ks
}

// Contains reports whether kind is in the set. Matching is exact.
func (ks KindSet) Contains(kind string) bool {
	_, ok := ks[kind]
	return ok
}

// List returns the kinds in a stable order for use in queries.
func (ks KindSet) List() []string {
	out := make([]string, 0, len(ks))
	for k := range ks {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
