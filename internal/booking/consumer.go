// Package booking runs the request and confirmation consumers that turn
// match requests into held slots and held slots into appointments.
package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduler/internal/queue"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// Handler processes one message body.
type Handler interface {
	Handle(ctx context.Context, body string) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, body string) error

func (f HandlerFunc) Handle(ctx context.Context, body string) error { return f(ctx, body) }

const (
	defaultWorkerCount   = 1
	defaultWaitSeconds   = 20
	maxWaitSeconds       = 20
	receiveBatchSize     = 1
	deleteTimeoutSeconds = 5
)

// Message outcomes reported to metrics.
const (
	OutcomeHandled   = "handled"
	OutcomeMalformed = "malformed"
	OutcomeFailed    = "failed"
)

type consumerConfig struct {
	workers         int
	receiveWaitSecs int
	retry           Backoff
	metrics         *metrics.PipelineMetrics
}

// ConsumerOption customizes consumer behavior.
type ConsumerOption func(*consumerConfig)

// WithWorkerCount sets how many receive loops run. One loop keeps messages
// strictly sequential.
func WithWorkerCount(n int) ConsumerOption {
	return func(cfg *consumerConfig) {
		if n > 0 {
			cfg.workers = n
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait (0..20).
func WithReceiveWaitSeconds(seconds int) ConsumerOption {
	return func(cfg *consumerConfig) {
		if seconds < 0 {
			seconds = 0
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithRetry sets the in-process retry policy for transient failures.
func WithRetry(b Backoff) ConsumerOption {
	return func(cfg *consumerConfig) {
		cfg.retry = b
	}
}

// WithMetrics records message outcomes and handle latency on m.
func WithMetrics(m *metrics.PipelineMetrics) ConsumerOption {
	return func(cfg *consumerConfig) {
		cfg.metrics = m
	}
}

// Consumer drains one queue and dispatches every message to a Handler.
type Consumer struct {
	name    string
	queue   queue.Client
	handler Handler
	logger  *logging.Logger
	cfg     consumerConfig
	wg      sync.WaitGroup
}

// NewConsumer creates a consumer named name (used in logs and metrics).
func NewConsumer(name string, q queue.Client, handler Handler, logger *logging.Logger, opts ...ConsumerOption) *Consumer {
	if q == nil {
		panic("booking: queue cannot be nil")
	}
	if handler == nil {
		panic("booking: handler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := consumerConfig{
		workers:         defaultWorkerCount,
		receiveWaitSecs: defaultWaitSeconds,
		retry:           DefaultBackoff,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Consumer{
		name:    name,
		queue:   q,
		handler: handler,
		logger:  logger.With("consumer", name),
		cfg:     cfg,
	}
}

// Start launches the receive loops until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	for i := 0; i < c.cfg.workers; i++ {
		c.wg.Add(1)
		go c.run(ctx, i+1)
	}
}

// Wait blocks until all receive loops exit.
func (c *Consumer) Wait() {
	c.wg.Wait()
}

func (c *Consumer) run(ctx context.Context, workerID int) {
	defer c.wg.Done()
	c.logger.Debug("consumer started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("consumer stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := c.queue.Receive(ctx, receiveBatchSize, c.cfg.receiveWaitSecs)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Error("failed to receive messages", "error", err, "worker_id", workerID)
			if sleepContext(ctx, backoff) != nil {
				return
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			c.handleMessage(ctx, msg)
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg queue.Message) {
	start := time.Now()
	err := c.cfg.retry.Do(ctx, func(ctx context.Context) error {
		return c.handler.Handle(ctx, msg.Body)
	})
	c.cfg.metrics.ObserveLatency(c.name, time.Since(start).Seconds())

	switch {
	case err == nil:
		c.cfg.metrics.ObserveMessage(c.name, OutcomeHandled)
		c.deleteMessage(msg.ReceiptHandle)
	case errors.Is(err, ErrMalformed):
		c.cfg.metrics.ObserveMessage(c.name, OutcomeMalformed)
		c.logger.Warn("dropping malformed message", "error", err, "msg_id", msg.ID)
		c.discard(msg.ReceiptHandle)
	case ctx.Err() != nil:
		// Shutdown mid-handle: leave the message for redelivery.
		c.logger.Info("message left for redelivery on shutdown", "msg_id", msg.ID)
	default:
		c.cfg.metrics.ObserveMessage(c.name, OutcomeFailed)
		c.logger.Error("message handling failed", "error", err, "msg_id", msg.ID)
		if rejecter, ok := c.queue.(queue.Rejecter); ok {
			c.reject(rejecter, msg.ReceiptHandle)
		}
	}
}

// discard dead-letters when the transport supports it, otherwise deletes.
func (c *Consumer) discard(receiptHandle string) {
	if rejecter, ok := c.queue.(queue.Rejecter); ok {
		c.reject(rejecter, receiptHandle)
		return
	}
	c.deleteMessage(receiptHandle)
}

func (c *Consumer) reject(rejecter queue.Rejecter, receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := rejecter.Reject(ctx, receiptHandle); err != nil {
		c.logger.Error("failed to reject message", "error", err)
	}
}

func (c *Consumer) deleteMessage(receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := c.queue.Delete(ctx, receiptHandle); err != nil {
		c.logger.Error("failed to delete message", "error", err)
	}
}
