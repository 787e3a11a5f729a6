package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/lildude/stravastats/internal/cache"
	"github.com/lildude/stravastats/internal/strava"
	"github.com/sirupsen/logrus"
)

// Outcome describes what HandleEvent did with an event.
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeStored    Outcome = "stored"
)

// DedupTTL is how long a processed event is remembered. Strava retries a
// delivery for a much shorter period.
const DedupTTL = 24 * time.Hour

// Processor ingests the activity named by a webhook event.
type Processor struct {
	creds    CredentialStore
	tokens   TokenRefresher
	upstream Upstream
	pipeline *Pipeline
	cache    cache.Cache
	log      logrus.FieldLogger
}

func NewProcessor(creds CredentialStore, tokens TokenRefresher, upstream Upstream, pipeline *Pipeline, c cache.Cache, log logrus.FieldLogger) *Processor {
	if c == nil {
		c = cache.Noop{}
	}
	return &Processor{creds: creds, tokens: tokens, upstream: upstream, pipeline: pipeline, cache: c, log: log}
}

// HandleEvent fetches and stores the activity referenced by ev. Only activity create
// and update events are processed. A redelivered event is recognised through the
// cache and not fetched again; cache failures never block ingestion.
func (p *Processor) HandleEvent(ctx context.Context, ev strava.WebhookPayload) (Outcome, error) {
	log := p.log.WithFields(logrus.Fields{
		"object_id":   ev.ObjectID,
		"owner_id":    ev.OwnerID,
		"aspect_type": ev.AspectType,
	})

	if ev.ObjectType != "activity" || (ev.AspectType != "create" && ev.AspectType != "update") {
		log.Debug("ignoring webhook event")
		return OutcomeIgnored, nil
	}

	key := fmt.Sprintf("webhook:%d:%s:%d", ev.ObjectID, ev.AspectType, ev.EventTime)
	if seen, err := p.cache.Get(ctx, key); err != nil {
		log.WithError(err).Warn("webhook dedup lookup failed")
	} else if seen != "" {
		log.Info("ignoring repeat event")
		return OutcomeDuplicate, nil
	}

	cred, err := p.creds.Get(ctx, ev.OwnerID)
	if err != nil {
		return "", err
	}
	cred, err = p.tokens.EnsureFresh(ctx, cred)
	if err != nil {
		return "", err
	}

	raw, err := p.upstream.GetActivity(ctx, cred.AccessToken, ev.ObjectID)
	if err != nil {
		return "", err
	}

	stored, err := p.pipeline.IngestRun(ctx, raw, ev.OwnerID, "webhook")
	if err != nil {
		return "", err
	}

	if err := p.cache.Set(ctx, key, "1", DedupTTL); err != nil {
		log.WithError(err).Warn("webhook dedup write failed")
	}

	if !stored {
		return OutcomeSkipped, nil
	}
	log.Info("stored activity from webhook")
	return OutcomeStored, nil
}
