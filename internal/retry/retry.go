// Package retry provides the retry strategy shared by the API clients.
package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/spiffcs/forkaudit/internal/log"
)

// Policy runs an operation, retrying it while it fails transiently.
type Policy interface {
	Do(ctx context.Context, op func() error) error
}

// Defaults for the backoff policy.
const (
	DefaultMaxRetries      = 5
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultMaxInterval     = 10 * time.Second
)

// Backoff retries connection-level failures with exponential backoff, up to
// MaxRetries additional attempts. Any other error is returned immediately.
type Backoff struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// NewBackoff returns a Backoff with the default bounds.
func NewBackoff() Backoff {
	return Backoff{
		MaxRetries:      DefaultMaxRetries,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
	}
}

// Do implements Policy.
func (b Backoff) Do(ctx context.Context, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	if b.InitialInterval > 0 {
		eb.InitialInterval = b.InitialInterval
	}
	if b.MaxInterval > 0 {
		eb.MaxInterval = b.MaxInterval
	}
	// the retry count is the only bound; callers own the overall deadline
	eb.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(eb, b.MaxRetries), ctx)

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		log.Debug("transient request failure, retrying", "attempt", attempt, "wait", wait, "error", err)
	})
}

// None runs the operation exactly once.
type None struct{}

// Do implements Policy.
func (None) Do(_ context.Context, op func() error) error {
	return op()
}

// IsTransient reports whether err is a connection-level failure worth
// re-issuing the same request for. HTTP status failures are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return false
	}

	inner := urlErr.Err
	if errors.Is(inner, io.EOF) || errors.Is(inner, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(inner, syscall.ECONNRESET) || errors.Is(inner, syscall.ECONNREFUSED) {
		return true
	}

	var netErr net.Error
	return errors.As(inner, &netErr)
}

var (
	_ Policy = Backoff{}
	_ Policy = None{}
)
