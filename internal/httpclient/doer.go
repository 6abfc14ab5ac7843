package httpclient

import (
	"context"
	"net/http"
)

// Doer is what the broker clients need from an HTTP client. *Client
// satisfies it; tests substitute their own.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

var (
	_ Doer              = (*Client)(nil)
	_ http.RoundTripper = (*Client)(nil)
)

// RoundTrip lets a Client sit underneath an *http.Client owned by another
// SDK, so its calls share the same limits and retries.
func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	return c.Do(req.Context(), req)
}
