package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lildude/stravastats/internal/cache"
	"github.com/lildude/stravastats/internal/errs"
	"github.com/lildude/stravastats/internal/metrics"
	"github.com/lildude/stravastats/internal/model"
	"github.com/lildude/stravastats/internal/strava"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DefaultPageSize is the largest page Strava serves.
const DefaultPageSize = 200

// ImportReport summarises one historical import run.
type ImportReport struct {
	RunID      string    `json:"run_id"`
	AthleteID  int64     `json:"athlete_id"`
	After      time.Time `json:"after"`
	Pages      int       `json:"pages"`
	Seen       int       `json:"seen"`
	Imported   int       `json:"imported"`
	Skipped    int       `json:"skipped"`
	Malformed  int       `json:"malformed"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// ImporterOptions tunes an Importer. Zero values pick defaults.
type ImporterOptions struct {
	PageSize int
	// Limiter paces upstream calls. Nil means unlimited.
	Limiter *rate.Limiter
}

// Importer backfills an athlete's running history from the activity listing.
type Importer struct {
	creds    CredentialStore
	tokens   TokenRefresher
	upstream Upstream
	pipeline *Pipeline
	cache    cache.Cache
	limiter  *rate.Limiter
	pageSize int
	log      logrus.FieldLogger
	metrics  *metrics.Collector

	mu   sync.Mutex
	last map[int64]ImportReport

	Now func() time.Time
}

func NewImporter(creds CredentialStore, tokens TokenRefresher, upstream Upstream, pipeline *Pipeline, c cache.Cache, opts ImporterOptions, log logrus.FieldLogger, m *metrics.Collector) *Importer {
	if c == nil {
		c = cache.Noop{}
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Importer{
		creds:    creds,
		tokens:   tokens,
		upstream: upstream,
		pipeline: pipeline,
		cache:    c,
		limiter:  opts.Limiter,
		pageSize: opts.PageSize,
		log:      log,
		metrics:  m,
		last:     map[int64]ImportReport{},
		Now:      time.Now,
	}
}

// Import pages through the athlete's activities started after after, oldest page
// first, and stores every running activity using its detailed payload. Pages are
// fetched one at a time and the token is checked before every upstream call, so a
// long import survives token expiry. Malformed payloads are counted and skipped.
// An upstream auth or storage failure stops the run; the partial report is still
// returned and cached.
func (im *Importer) Import(ctx context.Context, athleteID int64, after time.Time) (*ImportReport, error) {
	report := &ImportReport{
		RunID:     uuid.NewString(),
		AthleteID: athleteID,
		After:     after.UTC(),
		StartedAt: im.Now().UTC(),
	}
	log := im.log.WithFields(logrus.Fields{"run_id": report.RunID, "athlete_id": athleteID})
	log.WithField("after", report.After).Info("starting import")

	err := im.run(ctx, log, report)

	report.FinishedAt = im.Now().UTC()
	if err != nil {
		report.Error = err.Error()
		log.WithError(err).WithField("kind", errs.Kind(err)).Error("import failed")
	} else {
		log.WithFields(logrus.Fields{
			"pages":     report.Pages,
			"imported":  report.Imported,
			"skipped":   report.Skipped,
			"malformed": report.Malformed,
		}).Info("import finished")
	}
	im.mu.Lock()
	im.last[athleteID] = *report
	im.mu.Unlock()
	if cerr := im.cache.SetJSON(ctx, reportKey(athleteID), report, 0); cerr != nil {
		log.WithError(cerr).Warn("caching import report failed")
	}
	return report, err
}

func (im *Importer) run(ctx context.Context, log logrus.FieldLogger, report *ImportReport) error {
	cred, err := im.creds.Get(ctx, report.AthleteID)
	if err != nil {
		return err
	}

	for page := 1; ; page++ {
		if cred, err = im.ready(ctx, cred); err != nil {
			return err
		}
		summaries, err := im.upstream.ListActivities(ctx, cred.AccessToken, strava.ListOptions{
			After:   report.After,
			Page:    page,
			PerPage: im.pageSize,
		})
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			return nil
		}
		report.Pages++
		im.metrics.RecordImportPage()
		log.WithFields(logrus.Fields{"page": page, "count": len(summaries)}).Debug("fetched page")

		for _, summary := range summaries {
			report.Seen++
			if !im.pipeline.RunKinds().Contains(Kind(summary)) {
				report.Skipped++
				im.metrics.RecordSkipped("kind")
				continue
			}

			id, err := ID(summary)
			if err != nil {
				report.Malformed++
				im.metrics.RecordSkipped("malformed")
				log.WithError(err).Warn("skipping malformed summary")
				continue
			}

			if cred, err = im.ready(ctx, cred); err != nil {
				return err
			}
			detail, err := im.upstream.GetActivity(ctx, cred.AccessToken, id)
			if err != nil {
				return fmt.Errorf("fetching activity %d: %w", id, err)
			}

			stored, err := im.pipeline.IngestRun(ctx, detail, report.AthleteID, "import")
			var mp *errs.MalformedPayloadError
			switch {
			case errors.As(err, &mp):
				report.Malformed++
				log.WithError(err).WithField("activity_id", id).Warn("skipping malformed activity")
			case err != nil:
				return err
			case stored:
				report.Imported++
			default:
				report.Skipped++
			}
		}

		if len(summaries) < im.pageSize {
			return nil
		}
	}
}

// ready waits for the rate limiter and returns a credential fresh enough for the
// next upstream call.
func (im *Importer) ready(ctx context.Context, cred *model.Credential) (*model.Credential, error) {
	if err := im.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return im.tokens.EnsureFresh(ctx, cred)
}

// LastReport returns the report of the athlete's most recent import. The cache
// keeps reports across restarts; without one, only imports run by this process
// are known.
func (im *Importer) LastReport(ctx context.Context, athleteID int64) (*ImportReport, error) {
	var r ImportReport
	err := im.cache.GetJSON(ctx, reportKey(athleteID), &r)
	if err == nil {
		return &r, nil
	}

	im.mu.Lock()
	local, ok := im.last[athleteID]
	im.mu.Unlock()
	switch {
	case ok:
		if !errors.Is(err, cache.ErrMiss) {
			im.log.WithError(err).WithField("athlete_id", athleteID).Warn("reading cached import report failed")
		}
		return &local, nil
	case errors.Is(err, cache.ErrMiss):
		return nil, &errs.NotFoundError{Resource: "import report"}
	default:
		return nil, errs.Storage("read import report", err)
	}
}

func reportKey(athleteID int64) string {
	return fmt.Sprintf("import:last:%d", athleteID)
}
