package booking

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffRetriesTransient(t *testing.T) {
	calls := 0
	err := fastRetry.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestBackoffExhausts(t *testing.T) {
	calls := 0
	err := fastRetry.Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, fastRetry.MaxAttempts, calls)
}

func TestBackoffStopsOnPermanentErrors(t *testing.T) {
	for _, permanent := range []error{ErrMalformed, ErrGaveUp, context.Canceled} {
		calls := 0
		err := fastRetry.Do(context.Background(), func(context.Context) error {
			calls++
			return fmt.Errorf("wrapped: %w", permanent)
		})
		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, calls, "error %v", permanent)
	}
}

func TestBackoffStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Backoff{MaxAttempts: 10, BaseDelay: time.Hour}.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errTransient
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestBackoffNextDelay(t *testing.T) {
	b := Backoff{BaseDelay: 500 * time.Millisecond}
	assert.Equal(t, 500*time.Millisecond, b.nextDelay(0))
	assert.Equal(t, time.Second, b.nextDelay(1))
	assert.Equal(t, 4*time.Second, b.nextDelay(3))
	assert.Equal(t, maxRetryDelay, b.nextDelay(10))
	assert.Equal(t, maxRetryDelay, b.nextDelay(40))
	assert.Zero(t, Backoff{}.nextDelay(3))
}
