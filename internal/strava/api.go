package strava

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lildude/stravastats/internal/metrics"
)

// API makes token-scoped Strava calls, building a client per access token.
type API struct {
	Timeout time.Duration
	Metrics *metrics.Collector
}

func (a *API) GetActivity(ctx context.Context, accessToken string, id int64) (json.RawMessage, error) {
	c, err := NewClient(ctx, accessToken, a.Timeout)
	if err != nil {
		return nil, err
	}
	raw, err := GetActivity(ctx, c, id)
	a.Metrics.RecordUpstreamCall("get_activity", err)
	return raw, err
}

func (a *API) ListActivities(ctx context.Context, accessToken string, opts ListOptions) ([]json.RawMessage, error) {
	c, err := NewClient(ctx, accessToken, a.Timeout)
	if err != nil {
		return nil, err
	}
	page, err := ListActivities(ctx, c, opts)
	a.Metrics.RecordUpstreamCall("list_activities", err)
	return page, err
}
