package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/habedi/tokenflow/auth"
	"github.com/rs/zerolog/log"
)

// TokenSource supplies access tokens and recovers from rejected ones. *auth.Manager
// implements it.
type TokenSource interface {
	GetValidAccessToken(ctx context.Context) (string, error)
	RetryUnauthorized(ctx context.Context, usedToken string, replay auth.Replay) (*http.Response, error)
}

// Client sends authenticated HTTP requests.
type Client struct {
	tokens     TokenSource
	httpClient *http.Client
	limiter    *RateLimiter
	retryDelay time.Duration
}

// New creates a Client. A nil httpClient gets a 30 second timeout.
func New(tokens TokenSource, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{tokens: tokens, httpClient: httpClient, retryDelay: time.Second}
}

// SetRateLimit caps the number of HTTP attempts per second, retries and replays included.
// Zero or a negative value removes the cap.
func (c *Client) SetRateLimit(perSecond float64) {
	c.limiter = NewRateLimiter(perSecond)
}

// Get sends an authenticated GET request to rawURL.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		log.Error().Err(err).Str("url", rawURL).Msg("Failed to create HTTP request object")
		return nil, err
	}
	return c.Do(ctx, req)
}

// Do sends req with a valid access token. A 401 response triggers a token refresh and a
// single replay of the request; the replay waits behind any refresh already in flight.
// Requests with a body must be replayable, which http.NewRequest arranges for common body types.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	token, err := c.tokens.GetValidAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain access token: %w", err)
	}

	resp, err := c.send(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	drain(resp)
	log.Info().Str("url", req.URL.String()).Msg("Request unauthorized, refreshing token")
	return c.tokens.RetryUnauthorized(ctx, token, func(ctx context.Context, fresh string) (*http.Response, error) {
		return c.send(ctx, req, fresh)
	})
}

// send issues one attempt of req with token, retrying once on a 5xx status after a back-off.
func (c *Client) send(ctx context.Context, req *http.Request, token string) (*http.Response, error) {
	resp, err := c.attempt(ctx, req, token)
	if err != nil || resp.StatusCode < 500 {
		return resp, err
	}

	log.Warn().Int("status", resp.StatusCode).Str("url", req.URL.String()).Msg("Server error, retrying once")
	drain(resp)
	select {
	case <-time.After(c.retryDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return c.attempt(ctx, req, token)
}

func (c *Client) attempt(ctx context.Context, req *http.Request, token string) (*http.Response, error) {
	out := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		out.Body = body
	}
	if token != "" {
		out.Header.Set("Authorization", auth.NormalizeBearer(token))
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	log.Debug().Str("method", out.Method).Str("url", out.URL.String()).Msg("Sending HTTP request")
	resp, err := c.httpClient.Do(out)
	if err != nil {
		log.Error().Err(err).Str("method", out.Method).Str("url", out.URL.String()).Msg("HTTP request failed")
		return nil, err
	}
	log.Debug().Str("method", out.Method).Str("url", out.URL.String()).Int("status", resp.StatusCode).Msg("HTTP request done")
	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
