// Package client is a small JSON REST client for read-only API calls.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const userAgent = "Stravastats/0.1"

// Client resolves request paths against BaseURL and sends them with its http.Client.
// Authentication is left to the http.Client, e.g. one from oauth2.NewClient.
type Client struct {
	BaseURL *url.URL

	userAgent string
	client    *http.Client
}

// ErrorResponse is returned by Do for any response outside 2xx. Body holds the
// response body so callers can surface the upstream message.
type ErrorResponse struct {
	Response *http.Response
	Body     []byte
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("%s %s: %d %s",
		e.Response.Request.Method, e.Response.Request.URL.Path,
		e.Response.StatusCode, http.StatusText(e.Response.StatusCode))
}

// NewClient returns a Client. A nil cc means http.DefaultClient.
func NewClient(baseURL *url.URL, cc *http.Client) *Client {
	if cc == nil {
		cc = http.DefaultClient
	}
	return &Client{BaseURL: baseURL, userAgent: userAgent, client: cc}
}

// NewRequest builds a bodiless request for path, which may carry a query string.
func (c *Client) NewRequest(ctx context.Context, method, path string) (*http.Request, error) {
	u, err := c.BaseURL.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

// Do sends req and decodes a 2xx JSON body into v, which may be a *json.RawMessage
// to keep the body verbatim. An empty body leaves v untouched.
func (c *Client) Do(req *http.Request, v any) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return resp, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, &ErrorResponse{Response: resp, Body: data}
	}

	if v == nil || len(data) == 0 {
		return resp, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return resp, fmt.Errorf("decoding response body: %w", err)
	}
	return resp, nil
}
