package main

import (
	"context"
	"time"

	"github.com/lildude/stravastats/internal/cache"
	"github.com/lildude/stravastats/internal/config"
	"github.com/lildude/stravastats/internal/database"
	"github.com/lildude/stravastats/internal/ingest"
	"github.com/lildude/stravastats/internal/logger"
	"github.com/lildude/stravastats/internal/metrics"
	"github.com/lildude/stravastats/internal/model"
	"github.com/lildude/stravastats/internal/store"
	"github.com/lildude/stravastats/internal/strava"
	"github.com/lildude/stravastats/internal/tokens"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// app holds the wired components shared by every command.
type app struct {
	cfg      config.Config
	log      *logrus.Logger
	registry *prometheus.Registry
	oauth    *oauth2.Config

	creds     *store.Credentials
	runs      *store.Activities
	processor *ingest.Processor
	importer  *ingest.Importer

	closers []func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Error("invalid configuration")
		return nil, err
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Error("unable to open database")
		return nil, err
	}
	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}

	var c cache.Cache = cache.Noop{}
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			// Deduplication and import reports degrade, ingestion does not.
			log.WithError(err).Warn("redis unavailable, continuing without cache")
		} else {
			c = rc
			a.closers = append(a.closers, rc.Close)
		}
	}

	m := metrics.NewCollector(a.registry)
	a.oauth = strava.NewOAuthConfig(cfg.StravaClientID, cfg.StravaClientSecret, cfg.StravaRedirectURI)
	a.creds = store.NewCredentials(db)
	a.runs = store.NewActivities(db, model.NewKindSet(cfg.RunKinds...))

	refresher := tokens.NewRefresher(a.creds, a.oauth, cfg.UpstreamTimeout, cfg.TokenRefreshMargin, log, m)
	api := &strava.API{Timeout: cfg.UpstreamTimeout, Metrics: m}
	pipeline := ingest.NewPipeline(a.runs, a.runs.RunKinds(), log, m)

	a.processor = ingest.NewProcessor(a.creds, refresher, api, pipeline, c, log)
	a.importer = ingest.NewImporter(a.creds, refresher, api, pipeline, c, ingest.ImporterOptions{
		PageSize: cfg.ImportPageSize,
		Limiter:  importLimiter(cfg.ImportRatePerMinute),
	}, log, m)

	return a, nil
}

// importLimiter spreads perMinute upstream calls evenly. Zero or less means unlimited.
func importLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("error closing resource")
		}
	}
}
