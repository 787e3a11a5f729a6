package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/lildude/stravastats/internal/errs"
	"github.com/lildude/stravastats/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Activities is the de-duplicated activity repository keyed by Strava activity ID.
type Activities struct {
	db       *gorm.DB
	runKinds model.KindSet
}

// NewActivities returns a repository whose run queries match runKinds.
func NewActivities(db *gorm.DB, runKinds model.KindSet) *Activities {
	if len(runKinds) == 0 {
		runKinds = model.NewKindSet(model.DefaultRunKinds...)
	}
	return &Activities{db: db, runKinds: runKinds}
}

// RunKinds returns the configured running kinds.
func (s *Activities) RunKinds() model.KindSet {
	return s.runKinds
}

// Upsert inserts a or overwrites every mutable column of the existing row with the
// same ID. The write is a single INSERT ... ON CONFLICT statement so concurrent
// upserts of one ID never interleave field by field. StartDate is stored in UTC.
func (s *Activities) Upsert(ctx context.Context, a *model.Activity) error {
	a.StartDate = a.StartDate.UTC()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(a).Error
	return errs.Storage("upsert activity", err)
}

// Get returns the activity with the given Strava ID.
func (s *Activities) Get(ctx context.Context, id int64) (*model.Activity, error) {
	var a model.Activity
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &errs.NotFoundError{Resource: "activity", Key: strconv.FormatInt(id, 10)}
	}
	if err != nil {
		return nil, errs.Storage("get activity", err)
	}
	return &a, nil
}

// QueryRuns returns the athlete's running activities whose start falls within
// [start, end], both inclusive, oldest first. No match is an empty slice.
func (s *Activities) QueryRuns(ctx context.Context, athleteID int64, start, end time.Time) ([]model.Activity, error) {
	runs := []model.Activity{}
	err := s.db.WithContext(ctx).
		Where("athlete_id = ? AND type IN ? AND start_date >= ? AND start_date <= ?",
			athleteID, s.runKinds.List(), start.UTC(), end.UTC()).
		Order("start_date ASC, id ASC").
		Find(&runs).Error
	if err != nil {
		return nil, errs.Storage("query runs", err)
	}
	return runs, nil
}
