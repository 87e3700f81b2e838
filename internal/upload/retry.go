package upload

import (
	"context"
	"errors"
	"time"

	"github.com/pickoala/pickoala-cli/internal/api"
)

// Retry defaults.
const (
	DefaultMaxRetries = 3
	DefaultBackoff    = time.Second

	// maxSaneRetries caps MaxRetries so a typo in config cannot stall an
	// upload for hours.
	maxSaneRetries = 20
)

// RetryPolicy bounds per-chunk retries. A chunk is attempted at most
// 1+MaxRetries times; the delay before retry n (1-based) is n*Backoff, or
// the server's Retry-After when that is longer.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// DefaultRetryPolicy returns 3 retries with 1s linear backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: DefaultMaxRetries, Backoff: DefaultBackoff}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}

	if p.MaxRetries > maxSaneRetries {
		p.MaxRetries = maxSaneRetries
	}

	if p.Backoff <= 0 {
		p.Backoff = DefaultBackoff
	}

	return p
}

// Delay returns the wait before retry n after err.
func (p RetryPolicy) Delay(n int, err error) time.Duration {
	d := time.Duration(n) * p.Backoff

	var httpErr *api.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > d {
		return httpErr.RetryAfter
	}

	return d
}

// retryable reports whether a failed chunk request is worth repeating.
// Cancellation and lost authentication never are.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	if errors.Is(err, api.ErrReauthRequired) || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	return api.IsRetryable(err)
}

// timeSleep waits for d or until ctx is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
