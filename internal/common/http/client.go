// Package http is the shared transport for the identity-provider and
// coordination-backend clients: a standard client with a hard per-request
// timeout, so a stalled endpoint can never hang a poll tick or a sign-in.
package http

import (
	"context"
	"net/http"
	"time"
)

// Client wraps http.Client with the timeout the callers configured.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a client whose requests time out after the given
// duration, independent of any context deadline.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	return c.httpClient.Do(req)
}
