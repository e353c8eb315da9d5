package reseller

import (
	"context"
	"errors"
	"io"
	"net"
	"time"
)

// Backoff is an exponential retry schedule.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

// DefaultBackoff starts at 200ms, doubles, and never waits more than 2s.
func DefaultBackoff(attempts int) Backoff {
	return Backoff{Attempts: attempts, Base: 200 * time.Millisecond, Max: 2 * time.Second}
}

// Delay returns the pause before retry number attempt (0 based).
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// Retry calls fn until it succeeds, returns a permanent error, the attempts
// are used up, or ctx is done. retryable decides which errors are worth
// another attempt.
func Retry(ctx context.Context, b Backoff, retryable func(error) bool, fn func(context.Context) error) error {
	attempts := b.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil || !retryable(err) || i == attempts-1 {
			return err
		}

		t := time.NewTimer(b.Delay(i))
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
	return err
}

// retryableRead covers idempotent requests: transport failures and
// temporary API errors.
func retryableRead(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, context.DeadlineExceeded)
}

// retryableWrite only repeats requests that never reached the vendor.
func retryableWrite(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
