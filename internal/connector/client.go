package connector

import (
	"context"
	"net/http"
	"time"
)

const userAgent = "jobmatch-engine/1.0 (+local)"

// Client is a small HTTP helper shared by the API-backed connectors: one
// http.Client, the engine's user agent, per-host rate limiting, and response
// statuses mapped into the connector error taxonomy.
type Client struct {
	hc      *http.Client
	limiter *HostLimiter
}

func NewClient(limiter *HostLimiter) *Client {
	return &Client{
		hc:      &http.Client{Timeout: 20 * time.Second},
		limiter: limiter,
	}
}

// Get performs a rate-limited GET. A transport-level failure surfaces as
// Unreachable; HTTP errors are mapped by ErrorFromStatus. The caller owns the
// response body on success.
func (c *Client) Get(ctx context.Context, sourceID, url string, header http.Header) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.WaitURL(ctx, url); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: Unreachable, SourceID: sourceID, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, &Error{Kind: Unreachable, SourceID: sourceID, Err: err}
	}
	if err := ErrorFromStatus(sourceID, res); err != nil {
		res.Body.Close()
		return nil, err
	}
	return res, nil
}
