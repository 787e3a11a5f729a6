// Package store persists Strava credentials and activities through gorm.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lildude/stravastats/internal/errs"
	"github.com/lildude/stravastats/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Credentials holds one token pair per athlete.
type Credentials struct {
	db *gorm.DB
}

// NewCredentials returns a credential store backed by db.
func NewCredentials(db *gorm.DB) *Credentials {
	return &Credentials{db: db}
}

// Get returns the credential for athleteID, or a NotFoundError.
func (s *Credentials) Get(ctx context.Context, athleteID int64) (*model.Credential, error) {
	var c model.Credential
	err := s.db.WithContext(ctx).Where("athlete_id = ?", athleteID).Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &errs.NotFoundError{Resource: "credential", Key: strconv.FormatInt(athleteID, 10)}
	}
	if err != nil {
		return nil, errs.Storage("get credential", err)
	}
	return &c, nil
}

// Upsert creates or replaces the credential for athleteID in a single statement.
// expiry may be a time.Time or epoch seconds (any integer, float, json.Number or
// numeric string); it is stored as a UTC instant truncated to the second.
func (s *Credentials) Upsert(ctx context.Context, athleteID int64, accessToken, refreshToken string, expiry any, scope string) (*model.Credential, error) {
	expiresAt, err := NormalizeExpiry(expiry)
	if err != nil {
		return nil, &errs.MalformedPayloadError{Field: "expires_at", Reason: err.Error()}
	}

	c := &model.Credential{
		AthleteID:    athleteID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		Scope:        scope,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "athlete_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "expires_at", "scope", "updated_at"}),
	}).Create(c).Error
	if err != nil {
		return nil, errs.Storage("upsert credential", err)
	}
	return c, nil
}

// AnyAthleteID returns the lowest stored athlete ID. Single-tenant deployments use it
// to recover the authorised athlete after a restart.
func (s *Credentials) AnyAthleteID(ctx context.Context) (int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&model.Credential{}).
		Order("athlete_id ASC").Limit(1).Pluck("athlete_id", &ids).Error
	if err != nil {
		return 0, errs.Storage("any athlete", err)
	}
	if len(ids) == 0 {
		return 0, &errs.NotFoundError{Resource: "authorized athlete"}
	}
	return ids[0], nil
}

// NormalizeExpiry converts an absolute instant or epoch seconds into a UTC time.
func NormalizeExpiry(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, fmt.Errorf("expiry is zero")
		}
		return t.UTC().Truncate(time.Second), nil
	case *time.Time:
		if t == nil {
			return time.Time{}, fmt.Errorf("expiry is nil")
		}
		return NormalizeExpiry(*t)
	case int:
		return epoch(int64(t)), nil
	case int32:
		return epoch(int64(t)), nil
	case int64:
		return epoch(t), nil
	case float64:
		return floatEpoch(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return epoch(i), nil
		}
		n, err := t.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing expiry %q: %w", t, err)
		}
		return floatEpoch(n)
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return epoch(n), nil
		}
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing expiry %q: %w", t, err)
		}
		return ts.UTC().Truncate(time.Second), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported expiry type %T", v)
	}
}

// floatEpoch truncates fractional epoch seconds, refusing values int64 cannot hold.
func floatEpoch(sec float64) (time.Time, error) {
	if math.IsNaN(sec) || sec >= math.MaxInt64 || sec < math.MinInt64 {
		return time.Time{}, fmt.Errorf("expiry %v out of range", sec)
	}
	return epoch(int64(sec)), nil
}

func epoch(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
