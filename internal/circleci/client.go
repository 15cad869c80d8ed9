// Package circleci implements the build client: it fetches build documents
// from the CircleCI v1.1 API and downloads step output from log storage.
package circleci

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spiffcs/forkaudit/internal/analyzer"
	"github.com/spiffcs/forkaudit/internal/constants"
	"github.com/spiffcs/forkaudit/internal/log"
	"github.com/spiffcs/forkaudit/internal/model"
	"github.com/spiffcs/forkaudit/internal/retry"
)

// Client is an HTTP client for the CircleCI API.
//
// The token is sent as a query parameter and must never appear in logs or
// errors; every URL that leaves this package goes through redact.
type Client struct {
	baseURL   string
	token     string
	userAgent string
	client    *http.Client
	retry     retry.Policy
}

var _ analyzer.BuildClient = (*Client)(nil)

// ClientOption is a function that modifies a Client
type ClientOption func(*Client)

// WithBaseURL sets the base URL for API requests
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithUserAgent sets the User-Agent header for requests
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithRetry sets the policy used to retry transient request failures.
func WithRetry(p retry.Policy) ClientOption {
	return func(c *Client) {
		c.retry = p
	}
}

// NewClient creates a new CircleCI client. The token is optional and only
// needed for projects whose builds are not publicly readable.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   constants.DefaultCircleCIURL,
		token:     token,
		userAgent: "forkaudit",
		client:    http.DefaultClient,
		retry:     retry.NewBackoff(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Build fetches the build document for a project's build number.
func (c *Client) Build(ctx context.Context, org, repo string, buildNumber int) (*model.BuildDetail, error) {
	endpoint, err := c.projectURL(org, repo, strconv.Itoa(buildNumber))
	if err != nil {
		return nil, err
	}

	body, err := c.get(ctx, endpoint, true)
	if err != nil {
		return nil, fmt.Errorf("fetching build %d for %s/%s: %w", buildNumber, org, repo, err)
	}

	var resp buildResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding build %d for %s/%s: %w", buildNumber, org, repo, err)
	}

	detail, err := resp.toModel(buildNumber)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// FetchRaw downloads the raw content at rawURL. Step output URLs point at
// log storage rather than the API, so no token is attached.
func (c *Client) FetchRaw(ctx context.Context, rawURL string) ([]byte, error) {
	body, err := c.get(ctx, rawURL, false)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", redact(rawURL), err)
	}
	return body, nil
}

// HasProject reports whether org/repo is a CircleCI project with at least one
// build visible to the caller.
func (c *Client) HasProject(ctx context.Context, org, repo string) (bool, error) {
	endpoint, err := c.projectURL(org, repo)
	if err != nil {
		return false, err
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return false, fmt.Errorf("failed to create request URL: %w", err)
	}
	q := u.Query()
	q.Set("limit", "1")
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String(), true)
	if err != nil {
		if se, ok := asStatusError(err); ok && se.IsNotFound() {
			return false, nil
		}
		return false, fmt.Errorf("probing %s/%s: %w", org, repo, err)
	}

	var builds []projectBuild
	if err := json.Unmarshal(body, &builds); err != nil {
		return false, fmt.Errorf("decoding builds for %s/%s: %w", org, repo, err)
	}
	return len(builds) > 0, nil
}

func (c *Client) projectURL(org, repo string, extra ...string) (string, error) {
	elems := append([]string{"project", "github", org, repo}, extra...)
	endpoint, err := url.JoinPath(c.baseURL, elems...)
	if err != nil {
		return "", fmt.Errorf("failed to create request URL: %w", err)
	}
	return endpoint, nil
}

// get performs a GET request with retries and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, rawURL string, withToken bool) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create request URL: %w", err)
	}
	if withToken && c.token != "" {
		q := u.Query()
		q.Set(constants.CircleCITokenParam, c.token)
		u.RawQuery = q.Encode()
	}

	var body []byte
	err = c.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &StatusError{
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				URL:        redact(rawURL),
				Body:       respBody,
			}
		}

		body = respBody
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug("circleci request", "url", redact(rawURL), "bytes", len(body))
	return body, nil
}

// redact strips the query string, which may carry a token or a signature.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	return u.String()
}
