// Package tokens keeps Strava access tokens fresh before upstream calls.
package tokens

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/lildude/stravastats/internal/errs"
	"github.com/lildude/stravastats/internal/metrics"
	"github.com/lildude/stravastats/internal/model"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// DefaultMargin is how long before expiry a token is already treated as stale,
// so it cannot lapse while the dependent upstream call is in flight.
const DefaultMargin = 60 * time.Second

// CredentialWriter persists a refreshed token triple.
type CredentialWriter interface {
	Upsert(ctx context.Context, athleteID int64, accessToken, refreshToken string, expiry any, scope string) (*model.Credential, error)
}

// Refresher implements the refresh-before-use protocol.
type Refresher struct {
	store      CredentialWriter
	oauth      *oauth2.Config
	httpClient *http.Client
	margin     time.Duration
	log        logrus.FieldLogger
	metrics    *metrics.Collector

	// Now is the clock; tests replace it.
	Now func() time.Time
}

// NewRefresher returns a Refresher. timeout bounds each token call.
func NewRefresher(store CredentialWriter, oauth *oauth2.Config, timeout, margin time.Duration, log logrus.FieldLogger, m *metrics.Collector) *Refresher {
	if margin <= 0 {
		margin = DefaultMargin
	}
	return &Refresher{
		store:      store,
		oauth:      oauth,
		httpClient: &http.Client{Timeout: timeout},
		margin:     margin,
		log:        log,
		metrics:    m,
		Now:        time.Now,
	}
}

// EnsureFresh returns cred unchanged when it expires after now+margin. Otherwise it
// exchanges the refresh token, persists the new access token, refresh token and
// expiry, and returns the updated credential. Nothing is written when the refresh fails.
func (r *Refresher) EnsureFresh(ctx context.Context, cred *model.Credential) (*model.Credential, error) {
	if cred.ExpiresAt.After(r.Now().Add(r.margin)) {
		return cred, nil
	}
	log := r.log.WithField("athlete_id", cred.AthleteID)

	if cred.RefreshToken == "" {
		r.metrics.RecordTokenRefresh("error")
		return nil, &errs.UpstreamAuthError{Body: "no refresh token stored"}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	tok, err := r.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		r.metrics.RecordTokenRefresh("error")
		log.WithError(err).Error("token refresh failed")
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return nil, &errs.UpstreamAuthError{Status: re.Response.StatusCode, Body: string(re.Body)}
		}
		return nil, &errs.UpstreamError{Op: "refresh token", Err: err}
	}

	// Strava returns an absolute expires_at; fall back to the expiry oauth2 derives from expires_in.
	var expiry any = tok.Expiry
	if v := tok.Extra("expires_at"); v != nil {
		expiry = v
	}
	scope := cred.Scope
	if s, ok := tok.Extra("scope").(string); ok && s != "" {
		scope = s
	}

	updated, err := r.store.Upsert(ctx, cred.AthleteID, tok.AccessToken, tok.RefreshToken, expiry, scope)
	if err != nil {
		r.metrics.RecordTokenRefresh("error")
		return nil, err
	}

	r.metrics.RecordTokenRefresh("ok")
	log.WithField("expires_at", updated.ExpiresAt).Info("refreshed access token")
	return updated, nil
}
