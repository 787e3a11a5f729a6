package callback

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	tests := []struct {
		name        string
		verifyToken string
		queryParams string
		wantStatus  int
		wantBody    string
	}{
		{
			name:        "Successful callback",
			verifyToken: "mytoken",
			queryParams: "hub.mode=subscribe&hub.challenge=mychallenge&hub.verify_token=mytoken",
			wantStatus:  http.StatusOK,
			wantBody:    "{\"hub.challenge\":\"mychallenge\"}\n",
		},
		{
			name:        "missing query param: hub.challenge",
			verifyToken: "mytoken",
			queryParams: "hub.mode=subscribe&hub.verify_token=mytoken",
			wantStatus:  http.StatusBadRequest,
			wantBody:    "missing query param: hub.challenge",
		},
		{
			name:        "missing query param: hub.verify_token",
			verifyToken: "mytoken",
			queryParams: "hub.mode=subscribe&hub.challenge=mychallenge",
			wantStatus:  http.StatusBadRequest,
			wantBody:    "missing query param: hub.verify_token",
		},
		{
			name:        "verify token mismatch",
			verifyToken: "mytoken",
			queryParams: "hub.mode=subscribe&hub.challenge=mychallenge&hub.verify_token=wrong",
			wantStatus:  http.StatusForbidden,
			wantBody:    "verify token mismatch",
		},
		{
			name:        "unconfigured verify token",
			verifyToken: "",
			queryParams: "hub.mode=subscribe&hub.challenge=mychallenge&hub.verify_token=",
			wantStatus:  http.StatusForbidden,
			wantBody:    "verify token mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/strava/webhook?"+tt.queryParams, http.NoBody)
			w := httptest.NewRecorder()
			Handler(tt.verifyToken)(w, req)
			res := w.Result()
			defer res.Body.Close()
			data, err := io.ReadAll(res.Body)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, res.StatusCode)
			assert.Equal(t, tt.wantBody, string(data))
		})
	}
}
