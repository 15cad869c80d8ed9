// Package ghclient implements the repository client used to find forked pull
// requests and their commit statuses on GitHub.
package ghclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v57/github"
	"github.com/gregjones/httpcache"
	"golang.org/x/oauth2"

	"github.com/spiffcs/forkaudit/internal/log"
	"github.com/spiffcs/forkaudit/internal/retry"
)

// Client wraps the GitHub API client
type Client struct {
	client *gh.Client
	retry  retry.Policy
}

type clientOptions struct {
	baseURL    string
	httpClient *http.Client
	retry      retry.Policy
}

// Option configures a Client.
type Option func(*clientOptions)

// WithBaseURL points the client at a different API root, such as a GitHub
// Enterprise server or an httptest server.
func WithBaseURL(baseURL string) Option {
	return func(o *clientOptions) {
		o.baseURL = baseURL
	}
}

// WithHTTPClient replaces the default transport stack.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = hc
	}
}

// WithRetry sets the policy used to retry transient request failures.
func WithRetry(p retry.Policy) Option {
	return func(o *clientOptions) {
		o.retry = p
	}
}

// NewClient creates a new GitHub client. The token is optional; without it
// requests are unauthenticated and only public repositories are visible.
//
// The default transport stack, outermost first:
//  1. oauth2 token source (when a token is set)
//  2. primary rate limit tracking
//  3. go-github-ratelimit (sleeps on secondary rate limits)
//  4. httpcache (ETag-based conditional requests)
func NewClient(ctx context.Context, token string, opts ...Option) (*Client, error) {
	o := clientOptions{retry: retry.NewBackoff()}
	for _, opt := range opts {
		opt(&o)
	}

	hc := o.httpClient
	if hc == nil {
		hc = newHTTPClient(ctx, token)
	}

	client := gh.NewClient(hc)
	if o.baseURL != "" {
		u, err := url.Parse(o.baseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing base URL: %w", err)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		client.BaseURL = u
	}

	return &Client{
		client: client,
		retry:  o.retry,
	}, nil
}

func newHTTPClient(ctx context.Context, token string) *http.Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	secondary := github_ratelimit.NewClient(cacheTransport)

	hc := &http.Client{
		Transport: &rateLimitTransport{base: secondary.Transport, tracker: processRateLimit},
	}
	if token == "" {
		return hc
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	return oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, hc), ts)
}

// RateLimits fetches the current GitHub API rate limit status.
func (c *Client) RateLimits(ctx context.Context) (*gh.RateLimits, error) {
	limits, _, err := c.client.RateLimit.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get rate limits: %w", err)
	}
	return limits, nil
}

// logRateLimit reports per-call rate limit headroom at debug level.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	log.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)
}
