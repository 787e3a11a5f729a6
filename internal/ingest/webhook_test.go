package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/lildude/stravastats/internal/cache"
	"github.com/lildude/stravastats/internal/errs"
	"github.com/lildude/stravastats/internal/strava"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(id int64, aspect string) strava.WebhookPayload {
	return strava.WebhookPayload{
		AspectType: aspect,
		EventTime:  1748761200,
		ObjectID:   id,
		ObjectType: "activity",
		OwnerID:    7,
	}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, cache.Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCache(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return mr, c
}

func TestHandleEventStoresRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.authorize(t, 7)
	up := &fakeUpstream{details: map[int64]string{42: `{"id":42,"sport_type":"TrailRun","start_date":"2025-06-01T07:00:00Z","distance":8000}`}}
	p := NewProcessor(f.creds, &fakeRefresher{}, up, f.pipeline, nil, discardLogger())

	out, err := p.HandleEvent(ctx, event(42, "create"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeStored, out)

	a, err := f.activities.Get(ctx, 42)
	require.NoError(t, err)
	assert.EqualValues(t, 7, a.AthleteID)
	assert.Equal(t, "TrailRun", a.Type)
	assert.Equal(t, []string{"token-1"}, up.tokens)
}

func TestHandleEventSkipsNonRunning(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.authorize(t, 7)
	up := &fakeUpstream{details: map[int64]string{1: runPayload(1, "Ride")}}
	p := NewProcessor(f.creds, &fakeRefresher{}, up, f.pipeline, nil, discardLogger())

	out, err := p.HandleEvent(ctx, event(1, "create"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, out)
	_, err = f.activities.Get(ctx, 1)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestHandleEventIgnored(t *testing.T) {
	f := newFixture(t)
	up := &fakeUpstream{}
	refresher := &fakeRefresher{}
	p := NewProcessor(f.creds, refresher, up, f.pipeline, nil, discardLogger())

	athlete := event(7, "update")
	athlete.ObjectType = "athlete"

	for _, ev := range []strava.WebhookPayload{event(1, "delete"), athlete} {
		out, err := p.HandleEvent(context.Background(), ev)
		require.NoError(t, err)
		assert.Equal(t, OutcomeIgnored, out)
	}
	assert.Zero(t, refresher.calls)
	assert.Empty(t, up.tokens)
}

func TestHandleEventUnknownAthlete(t *testing.T) {
	f := newFixture(t)
	p := NewProcessor(f.creds, &fakeRefresher{}, &fakeUpstream{}, f.pipeline, nil, discardLogger())

	_, err := p.HandleEvent(context.Background(), event(42, "create"))
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestHandleEventRefreshRejected(t *testing.T) {
	f := newFixture(t)
	f.authorize(t, 7)
	up := &fakeUpstream{}
	p := NewProcessor(f.creds, &fakeRefresher{err: &errs.UpstreamAuthError{Status: 401, Body: "invalid"}}, up, f.pipeline, nil, discardLogger())

	_, err := p.HandleEvent(context.Background(), event(42, "create"))
	var authErr *errs.UpstreamAuthError
	require.True(t, errors.As(err, &authErr))
	assert.Empty(t, up.tokens)
}

func TestHandleEventDeduplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.authorize(t, 7)
	_, c := newRedis(t)
	up := &fakeUpstream{details: map[int64]string{42: runPayload(42, "Run")}}
	p := NewProcessor(f.creds, &fakeRefresher{}, up, f.pipeline, c, discardLogger())

	out, err := p.HandleEvent(ctx, event(42, "create"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeStored, out)

	out, err = p.HandleEvent(ctx, event(42, "create"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, out)
	assert.Len(t, up.tokens, 1)

	// A later update of the same activity is a new event.
	update := event(42, "update")
	update.EventTime++
	out, err = p.HandleEvent(ctx, update)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStored, out)
	assert.Len(t, up.tokens, 2)
}

func TestHandleEventFailureIsNotRemembered(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.authorize(t, 7)
	_, c := newRedis(t)
	up := &fakeUpstream{detailErr: &errs.UpstreamError{Op: "get activity", Status: 503}}
	p := NewProcessor(f.creds, &fakeRefresher{}, up, f.pipeline, c, discardLogger())

	_, err := p.HandleEvent(ctx, event(42, "create"))
	require.Error(t, err)

	up.detailErr = nil
	up.details = map[int64]string{42: runPayload(42, "Run")}
	out, err := p.HandleEvent(ctx, event(42, "create"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeStored, out)
}

func TestHandleEventCacheDown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.authorize(t, 7)
	mr, c := newRedis(t)
	mr.Close()
	up := &fakeUpstream{details: map[int64]string{42: runPayload(42, "Run")}}
	p := NewProcessor(f.creds, &fakeRefresher{}, up, f.pipeline, c, discardLogger())

	out, err := p.HandleEvent(ctx, event(42, "create"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeStored, out)
}
