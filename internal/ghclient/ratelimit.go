package ghclient

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/spiffcs/forkaudit/internal/constants"
	"github.com/spiffcs/forkaudit/internal/log"
)

// ErrRateLimited is returned when the GitHub API rate limit has been exceeded.
var ErrRateLimited = errors.New("rate limited")

// RateLimit is the primary rate limit as last reported by GitHub.
type RateLimit struct {
	Remaining int
	Limit     int
	ResetAt   time.Time
	Limited   bool
}

// rateLimitTracker remembers the rate limit headers of the latest response
// so that requests are refused locally until the window resets.
type rateLimitTracker struct {
	mu      sync.Mutex
	current RateLimit
	now     func() time.Time
}

func newRateLimitTracker() *rateLimitTracker {
	return &rateLimitTracker{
		current: RateLimit{Remaining: -1, Limit: -1},
		now:     time.Now,
	}
}

// processRateLimit is shared by every client NewClient builds.
var processRateLimit = newRateLimitTracker()

// RateLimitStatus returns the rate limit observed by this process so far.
func RateLimitStatus() RateLimit {
	return processRateLimit.snapshot()
}

func (t *rateLimitTracker) snapshot() RateLimit {
	t.mu.Lock()
	defer t.mu.Unlock()
	rl := t.current
	rl.Limited = rl.Limited && t.now().Before(rl.ResetAt)
	return rl
}

func (t *rateLimitTracker) blocked() bool {
	return t.snapshot().Limited
}

// observe records a response's headers and reports whether the response
// was a rate limit rejection.
func (t *rateLimitTracker) observe(resp *http.Response) bool {
	remaining, limit, resetAt := parseRateLimitHeaders(resp)
	rejected := resp.StatusCode == http.StatusTooManyRequests ||
		(resp.StatusCode == http.StatusForbidden && remaining == 0)

	t.mu.Lock()
	defer t.mu.Unlock()
	if remaining >= 0 && limit > 0 {
		t.current = RateLimit{Remaining: remaining, Limit: limit, ResetAt: resetAt, Limited: remaining == 0}
	}
	if rejected {
		t.current.Limited = true
		if !resetAt.IsZero() {
			t.current.ResetAt = resetAt
		}
	}
	return rejected
}

// rateLimitTransport refuses requests while the primary rate limit is
// exhausted and turns rejections into ErrRateLimited.
type rateLimitTransport struct {
	base    http.RoundTripper
	tracker *rateLimitTracker
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.tracker.blocked() {
		return nil, ErrRateLimited
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	if t.tracker.observe(resp) {
		_ = resp.Body.Close()
		return nil, ErrRateLimited
	}
	if rl := t.tracker.snapshot(); rl.Remaining > 0 && rl.Remaining <= constants.RateLimitLowWatermark {
		log.Debug("rate limit low", "remaining", rl.Remaining, "resets_at", rl.ResetAt.Format(time.RFC3339))
	}
	return resp, nil
}

// parseRateLimitHeaders extracts the X-RateLimit-* headers. Missing or
// malformed counts are -1 and a missing reset time is zero.
func parseRateLimitHeaders(resp *http.Response) (remaining, limit int, resetAt time.Time) {
	remaining, limit = -1, -1
	if v, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining")); err == nil {
		remaining = v
	}
	if v, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit")); err == nil {
		limit = v
	}
	if v, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		resetAt = time.Unix(v, 0)
	}
	return remaining, limit, resetAt
}
