package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/lildude/stravastats/internal/database/dbtest"
	"github.com/lildude/stravastats/internal/model"
	"github.com/lildude/stravastats/internal/store"
	"github.com/lildude/stravastats/internal/strava"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fakeUpstream serves payloads from memory and records every call.
type fakeUpstream struct {
	mu        sync.Mutex
	details   map[int64]string
	pages     map[int][]string
	detailErr error
	listErr   error
	tokens    []string
	listCalls []strava.ListOptions
}

func (f *fakeUpstream) GetActivity(_ context.Context, accessToken string, id int64) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, accessToken)
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	d, ok := f.details[id]
	if !ok {
		return nil, fmt.Errorf("no detail for %d", id)
	}
	return json.RawMessage(d), nil
}

func (f *fakeUpstream) ListActivities(_ context.Context, accessToken string, opts strava.ListOptions) ([]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, accessToken)
	f.listCalls = append(f.listCalls, opts)
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []json.RawMessage{}
	for _, p := range f.pages[opts.Page] {
		out = append(out, json.RawMessage(p))
	}
	return out, nil
}

// fakeRefresher hands out a new access token on every call and can fail on demand.
type fakeRefresher struct {
	calls int
	err   error
}

func (f *fakeRefresher) EnsureFresh(_ context.Context, cred *model.Credential) (*model.Credential, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	c := *cred
	c.AccessToken = fmt.Sprintf("token-%d", f.calls)
	return &c, nil
}

type fixture struct {
	creds      *store.Credentials
	activities *store.Activities
	pipeline   *Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	acts := store.NewActivities(db, nil)
	return &fixture{
		creds:      store.NewCredentials(db),
		activities: acts,
		pipeline:   NewPipeline(acts, acts.RunKinds(), discardLogger(), nil),
	}
}

func (f *fixture) authorize(t *testing.T, athleteID int64) {
	t.Helper()
	if _, err := f.creds.Upsert(context.Background(), athleteID, "access", "refresh", int64(4102444800), ""); err != nil {
		t.Fatal(err)
	}
}

func runPayload(id int64, kind string) string {
	return fmt.Sprintf(`{"id":%d,"type":%q,"start_date":"2025-06-01T07:00:00Z","distance":5000,"moving_time":1500,"elapsed_time":1500}`, id, kind)
}

func limiterEvery(d time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Every(d), 1)
}
