package tokens

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/lildude/stravastats/internal/database/dbtest"
	"github.com/lildude/stravastats/internal/errs"
	"github.com/lildude/stravastats/internal/store"
	"github.com/lildude/stravastats/internal/strava"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tokenURL = "https://www.strava.com/oauth/token"

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Refresher, *store.Credentials) {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)

	log := logrus.New()
	log.SetOutput(io.Discard)

	creds := store.NewCredentials(dbtest.New(t))
	r := NewRefresher(creds, strava.NewOAuthConfig("id", "secret", ""), time.Second, DefaultMargin, log, nil)
	r.Now = func() time.Time { return now }
	return r, creds
}

func TestEnsureFreshRefreshesNearExpiry(t *testing.T) {
	r, creds := setup(t)
	ctx := context.Background()

	cred, err := creds.Upsert(ctx, 7, "old-access", "old-refresh", now.Add(30*time.Second), "read")
	require.NoError(t, err)

	newExpiry := now.Add(6 * time.Hour)
	httpmock.RegisterResponder(http.MethodPost, tokenURL, func(req *http.Request) (*http.Response, error) {
		require.NoError(t, req.ParseForm())
		assert.Equal(t, "old-refresh", req.PostForm.Get("refresh_token"))
		assert.Equal(t, "refresh_token", req.PostForm.Get("grant_type"))
		return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
			"token_type":    "Bearer",
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"expires_at":    newExpiry.Unix(),
			"expires_in":    21600,
		})
	})

	got, err := r.EnsureFresh(ctx, cred)
	require.NoError(t, err)
	assert.Equal(t, "new-access", got.AccessToken)
	assert.Equal(t, "new-refresh", got.RefreshToken)
	assert.True(t, got.ExpiresAt.Equal(newExpiry), "expected expiry %v, got %v", newExpiry, got.ExpiresAt)

	stored, err := creds.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "new-access", stored.AccessToken, "rotated tokens are persisted")
	assert.Equal(t, "new-refresh", stored.RefreshToken, "rotated tokens are persisted")
	assert.Equal(t, "read", stored.Scope)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestEnsureFreshSkipsValidToken(t *testing.T) {
	r, creds := setup(t)
	ctx := context.Background()

	cred, err := creds.Upsert(ctx, 7, "access", "refresh", now.Add(time.Hour), "")
	require.NoError(t, err)

	got, err := r.EnsureFresh(ctx, cred)
	require.NoError(t, err)
	assert.Same(t, cred, got)
	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestEnsureFreshRefreshesAtMarginBoundary(t *testing.T) {
	r, creds := setup(t)
	ctx := context.Background()

	cred, err := creds.Upsert(ctx, 7, "access", "refresh", now.Add(DefaultMargin), "")
	require.NoError(t, err)
	httpmock.RegisterResponder(http.MethodPost, tokenURL, httpmock.NewStringResponder(http.StatusOK,
		`{"token_type":"Bearer","access_token":"a2","refresh_token":"r2","expires_in":21600}`))

	got, err := r.EnsureFresh(ctx, cred)
	require.NoError(t, err)
	assert.Equal(t, "a2", got.AccessToken)
	assert.False(t, got.ExpiresAt.Before(time.Now().Add(5*time.Hour)), "expiry is derived from expires_in, got %v", got.ExpiresAt)
}

func TestEnsureFreshRejected(t *testing.T) {
	r, creds := setup(t)
	ctx := context.Background()

	cred, err := creds.Upsert(ctx, 7, "old-access", "old-refresh", now.Add(-time.Minute), "")
	require.NoError(t, err)
	httpmock.RegisterResponder(http.MethodPost, tokenURL,
		httpmock.NewStringResponder(http.StatusUnauthorized, `{"message":"Bad Request","errors":[{"field":"refresh_token","code":"invalid"}]}`))

	_, err = r.EnsureFresh(ctx, cred)
	var authErr *errs.UpstreamAuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)
	assert.NotEmpty(t, authErr.Body, "upstream body is kept")

	stored, err := creds.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "old-access", stored.AccessToken, "credential is untouched")
	assert.Equal(t, "old-refresh", stored.RefreshToken, "credential is untouched")
}

func TestEnsureFreshTransportFailure(t *testing.T) {
	r, creds := setup(t)
	ctx := context.Background()

	cred, err := creds.Upsert(ctx, 7, "a", "r", now, "")
	require.NoError(t, err)
	httpmock.RegisterResponder(http.MethodPost, tokenURL, httpmock.NewErrorResponder(errors.New("connection reset")))

	_, err = r.EnsureFresh(ctx, cred)
	var upErr *errs.UpstreamError
	assert.ErrorAs(t, err, &upErr)
}

func TestEnsureFreshWithoutRefreshToken(t *testing.T) {
	r, creds := setup(t)
	ctx := context.Background()

	cred, err := creds.Upsert(ctx, 7, "a", "", now, "")
	require.NoError(t, err)

	_, err = r.EnsureFresh(ctx, cred)
	var authErr *errs.UpstreamAuthError
	assert.ErrorAs(t, err, &authErr)
	assert.Zero(t, httpmock.GetTotalCallCount())
}
