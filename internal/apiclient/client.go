// Package apiclient is the thin REST client shared by the reconciler and
// the push registrar.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/quanluon/gitgafit-web-sub000/errors"
)

const defaultTimeout = 15 * time.Second

// TokenFunc supplies the current bearer token, or "" when the user is not
// authenticated yet.
type TokenFunc func() string

// Client wraps http.Client with base URL handling, bearer auth, and JSON
// encoding.
type Client struct {
	http    *http.Client
	baseURL string
	token   TokenFunc

	mu      sync.Mutex
	limiter *rate.Limiter
}

// New creates an API client. token may be nil for unauthenticated use.
func New(baseURL string, token TokenFunc) *Client {
	return &Client{
		http:    &http.Client{Timeout: defaultTimeout},
		baseURL: baseURL,
		token:   token,
	}
}

// WithHTTPClient swaps the underlying http.Client, mainly for tests.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// WithRateLimit throttles outgoing requests to rps requests per second.
// Zero or negative rps disables throttling. Safe to call while requests
// are in flight, so a config reload can adjust the limit live.
func (c *Client) WithRateLimit(rps float64) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rps <= 0 {
		c.limiter = nil
		return c
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	return c
}

// GetJSON performs a GET and decodes the response body into out.
func (c *Client) GetJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	return c.do(req, out)
}

// PostJSON performs a POST with a JSON body and decodes the response into
// out when out is non-nil.
func (c *Client) PostJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	c.mu.Lock()
	limiter := c.limiter
	c.mu.Unlock()
	if limiter != nil {
		if err := limiter.Wait(req.Context()); err != nil {
			return errors.Wrap(err, "rate limit wait")
		}
	}

	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errors.Wrapf(errors.ErrUnauthorized, "%s %s", req.Method, req.URL.Path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := errors.Newf("unexpected status %d", resp.StatusCode)
		err = errors.WithDetailf(err, "%s %s", req.Method, req.URL.Path)
		if len(body) > 0 {
			err = errors.WithDetail(err, string(body))
		}
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
