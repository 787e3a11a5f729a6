// Package strava implements the Strava API calls used to ingest running activities.
package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/lildude/stravastats/internal/client"
	"github.com/lildude/stravastats/internal/errs"
	"golang.org/x/oauth2"
)

var (
	BaseURL  = "https://www.strava.com/api/v3/"
	Endpoint = oauth2.Endpoint{
		AuthURL:   "https://www.strava.com/oauth/authorize",
		TokenURL:  "https://www.strava.com/oauth/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
)

// NewOAuthConfig returns the OAuth configuration for the Strava application.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       []string{"read,activity:read_all"},
	}
}

type WebhookPayload struct {
	AspectType     string            `json:"aspect_type"`
	EventTime      int64             `json:"event_time"`
	ObjectID       int64             `json:"object_id"`
	ObjectType     string            `json:"object_type"`
	OwnerID        int64             `json:"owner_id"`
	SubscriptionID int64             `json:"subscription_id"`
	Updates        map[string]string `json:"updates"`
}

// ListOptions selects a page of the athlete's activities.
type ListOptions struct {
	After   time.Time
	Before  time.Time
	Page    int
	PerPage int
}

// NewClient returns a REST client that authenticates with accessToken. Every call
// made through it is bounded by timeout.
func NewClient(ctx context.Context, accessToken string, timeout time.Duration) (*client.Client, error) {
	u, err := url.Parse(BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing strava base URL: %w", err)
	}
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	hc.Timeout = timeout
	return client.NewClient(u, hc), nil
}

// GetActivity returns the detailed payload of one activity verbatim.
func GetActivity(ctx context.Context, c *client.Client, id int64) (json.RawMessage, error) {
	var a json.RawMessage
	req, err := c.NewRequest(ctx, http.MethodGet, fmt.Sprintf("activities/%d", id))
	if err != nil {
		return nil, fmt.Errorf("creating get activity request: %w", err)
	}

	if _, err := c.Do(req, &a); err != nil { //nolint:bodyclose // Do closes the body
		return nil, classify(fmt.Sprintf("get activity %d", id), err)
	}

	return a, nil
}

// ListActivities returns one page of the authenticated athlete's activity summaries.
// An exhausted listing is an empty slice.
func ListActivities(ctx context.Context, c *client.Client, opts ListOptions) ([]json.RawMessage, error) {
	q := url.Values{}
	if !opts.After.IsZero() {
		q.Set("after", strconv.FormatInt(opts.After.Unix(), 10))
	}
	if !opts.Before.IsZero() {
		q.Set("before", strconv.FormatInt(opts.Before.Unix(), 10))
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(opts.PerPage))
	}

	req, err := c.NewRequest(ctx, http.MethodGet, "athlete/activities?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("creating list activities request: %w", err)
	}

	acts := []json.RawMessage{}
	if _, err := c.Do(req, &acts); err != nil { //nolint:bodyclose // Do closes the body
		return nil, classify(fmt.Sprintf("list activities page %d", opts.Page), err)
	}

	return acts, nil
}

// classify maps a REST client error onto the upstream error kinds.
func classify(op string, err error) error {
	var er *client.ErrorResponse
	if errors.As(err, &er) {
		status := er.Response.StatusCode
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return &errs.UpstreamAuthError{Status: status, Body: string(er.Body)}
		}
		return &errs.UpstreamError{Op: op, Status: status, Body: string(er.Body)}
	}
	return &errs.UpstreamError{Op: op, Err: err}
}
