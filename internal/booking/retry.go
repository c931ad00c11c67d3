package booking

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMalformed marks a message that can never be processed (bad JSON,
	// missing required fields). It is dropped or dead-lettered, never retried.
	ErrMalformed = errors.New("booking: malformed message")
	// ErrGaveUp marks a failure after a side effect already happened, where
	// re-running the handler in-process would be wrong.
	ErrGaveUp = errors.New("booking: gave up after retries")
)

const maxRetryDelay = 30 * time.Second

// Backoff retries transient failures with exponential delay.
type Backoff struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultBackoff matches CONSUMER_MAX_ATTEMPTS / CONSUMER_RETRY_BASE_DELAY defaults.
var DefaultBackoff = Backoff{MaxAttempts: 5, BaseDelay: 500 * time.Millisecond}

// Do calls fn until it succeeds, returns a non-retryable error, ctx ends, or
// attempts run out. The last error is returned.
func (b Backoff) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := b.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil || !retryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}
		if sleepErr := sleepContext(ctx, b.nextDelay(attempt)); sleepErr != nil {
			return err
		}
	}
	return err
}

func (b Backoff) nextDelay(attempt int) time.Duration {
	if b.BaseDelay <= 0 {
		return 0
	}
	if attempt > 16 {
		return maxRetryDelay
	}
	delay := b.BaseDelay * time.Duration(1<<attempt)
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, ErrMalformed), errors.Is(err, ErrGaveUp):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
