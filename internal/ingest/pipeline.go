package ingest

import (
	"context"
	"encoding/json"

	"github.com/lildude/stravastats/internal/metrics"
	"github.com/lildude/stravastats/internal/model"
	"github.com/lildude/stravastats/internal/strava"
	"github.com/sirupsen/logrus"
)

// Repository is where normalized activities are written.
type Repository interface {
	Upsert(ctx context.Context, a *model.Activity) error
}

// CredentialStore looks up stored tokens.
type CredentialStore interface {
	Get(ctx context.Context, athleteID int64) (*model.Credential, error)
}

// TokenRefresher returns a credential that is valid for at least the refresh margin.
type TokenRefresher interface {
	EnsureFresh(ctx context.Context, cred *model.Credential) (*model.Credential, error)
}

// Upstream is the subset of the Strava API used for ingestion.
type Upstream interface {
	GetActivity(ctx context.Context, accessToken string, id int64) (json.RawMessage, error)
	ListActivities(ctx context.Context, accessToken string, opts strava.ListOptions) ([]json.RawMessage, error)
}

// Pipeline normalizes raw payloads and writes them to the repository.
type Pipeline struct {
	repo     Repository
	runKinds model.KindSet
	log      logrus.FieldLogger
	metrics  *metrics.Collector
}

// NewPipeline returns a Pipeline that stores only activities whose kind is in runKinds
// when ingesting through IngestRun.
func NewPipeline(repo Repository, runKinds model.KindSet, log logrus.FieldLogger, m *metrics.Collector) *Pipeline {
	if len(runKinds) == 0 {
		runKinds = model.NewKindSet(model.DefaultRunKinds...)
	}
	return &Pipeline{repo: repo, runKinds: runKinds, log: log, metrics: m}
}

// NormalizeAndUpsert normalizes raw and upserts it whatever its kind. Re-ingesting the
// same payload leaves the repository unchanged.
func (p *Pipeline) NormalizeAndUpsert(ctx context.Context, raw []byte, fallbackAthleteID int64) (*model.Activity, error) {
	a, err := Normalize(raw, fallbackAthleteID)
	if err != nil {
		p.metrics.RecordSkipped("malformed")
		return nil, err
	}
	if err := p.repo.Upsert(ctx, a); err != nil {
		return nil, err
	}
	p.log.WithFields(logrus.Fields{
		"activity_id": a.ID,
		"athlete_id":  a.AthleteID,
		"type":        a.Type,
	}).Debug("upserted activity")
	return a, nil
}

// IngestRun is NormalizeAndUpsert restricted to running kinds. A payload of any other
// kind is not stored and reports stored=false with a nil error.
func (p *Pipeline) IngestRun(ctx context.Context, raw []byte, fallbackAthleteID int64, source string) (stored bool, err error) {
	if k := Kind(raw); !p.runKinds.Contains(k) {
		p.metrics.RecordSkipped("kind")
		p.log.WithField("type", k).Debug("skipping non-running activity")
		return false, nil
	}
	if _, err := p.NormalizeAndUpsert(ctx, raw, fallbackAthleteID); err != nil {
		return false, err
	}
	p.metrics.RecordIngested(source)
	return true, nil
}

// RunKinds returns the kinds IngestRun accepts.
func (p *Pipeline) RunKinds() model.KindSet {
	return p.runKinds
}
