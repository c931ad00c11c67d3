package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/wolfman30/clinic-scheduler/internal/events"
	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduler/internal/reservation"
)

var bookingTracer = otel.Tracer("clinic.internal.booking")

// Publisher emits pipeline events.
type Publisher interface {
	Publish(ctx context.Context, topic events.Topic, payload any) error
}

type handlerConfig struct {
	ttl          time.Duration
	now          func() time.Time
	location     *time.Location
	publishRetry Backoff
	recheck      bool
	metrics      *metrics.PipelineMetrics
}

func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		ttl:          reservation.DefaultTTL,
		now:          time.Now,
		location:     time.UTC,
		publishRetry: DefaultBackoff,
	}
}

// HandlerOption customizes the match and confirmation handlers.
type HandlerOption func(*handlerConfig)

// WithReservationTTL sets how long a matched slot is held.
func WithReservationTTL(ttl time.Duration) HandlerOption {
	return func(cfg *handlerConfig) {
		if ttl > 0 {
			cfg.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) HandlerOption {
	return func(cfg *handlerConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// WithLocation sets the clinic timezone used to decide "today".
func WithLocation(loc *time.Location) HandlerOption {
	return func(cfg *handlerConfig) {
		if loc != nil {
			cfg.location = loc
		}
	}
}

// WithPublishRetry sets the retry policy for the publish step alone.
func WithPublishRetry(b Backoff) HandlerOption {
	return func(cfg *handlerConfig) {
		cfg.publishRetry = b
	}
}

// WithSlotRecheck makes confirmation verify the slot is still free before booking.
func WithSlotRecheck(enabled bool) HandlerOption {
	return func(cfg *handlerConfig) {
		cfg.recheck = enabled
	}
}

// WithHandlerMetrics records reservation actions on m.
func WithHandlerMetrics(m *metrics.PipelineMetrics) HandlerOption {
	return func(cfg *handlerConfig) {
		cfg.metrics = m
	}
}

// publishAttemptTimeout bounds a single publish so a full or stuck transport
// cannot hold a consumer forever.
var publishAttemptTimeout = 10 * time.Second

func publishWithRetry(ctx context.Context, p Publisher, b Backoff, topic events.Topic, payload any) error {
	err := b.Do(ctx, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, publishAttemptTimeout)
		defer cancel()
		err := p.Publish(attemptCtx, topic, payload)
		if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			// Only this attempt expired; keep it retryable.
			return fmt.Errorf("publish attempt timed out after %s: %v", publishAttemptTimeout, err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: publish %s: %w", ErrGaveUp, topic, err)
	}
	return nil
}
