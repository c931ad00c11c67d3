package bootstrap

import (
	"context"
	"fmt"

	"github.com/wolfman30/clinic-scheduler/internal/booking"
	appconfig "github.com/wolfman30/clinic-scheduler/internal/config"
	"github.com/wolfman30/clinic-scheduler/internal/events"
	"github.com/wolfman30/clinic-scheduler/internal/matching"
	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduler/internal/reservation"
	"github.com/wolfman30/clinic-scheduler/internal/schedule"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// Pipeline is the pair of consumers that drive matching and confirmation.
// On the memory queue backend it also drains the result and error topics,
// which no other process can read.
type Pipeline struct {
	Match        *booking.Consumer
	Confirmation *booking.Consumer
	Outcomes     []*booking.Consumer
}

// Start launches every consumer in the pipeline.
func (p *Pipeline) Start(ctx context.Context) {
	p.Match.Start(ctx)
	p.Confirmation.Start(ctx)
	for _, c := range p.Outcomes {
		c.Start(ctx)
	}
}

// Wait blocks until every consumer has stopped.
func (p *Pipeline) Wait() {
	p.Match.Wait()
	p.Confirmation.Wait()
	for _, c := range p.Outcomes {
		c.Wait()
	}
}

// BuildPipeline wires finder, handlers, publisher, and consumers from config.
func BuildPipeline(cfg *appconfig.Config, store schedule.Store, cache reservation.Cache, queues *Queues, m *metrics.PipelineMetrics, logger *logging.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if store == nil || cache == nil || queues == nil {
		return nil, fmt.Errorf("bootstrap: store, cache, and queues are required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	finder := matching.NewFinder(store, logger,
		matching.WithHorizonDays(cfg.SearchHorizonDays),
		matching.WithSlotInterval(cfg.SlotInterval),
	)
	publisher := events.NewPublisher(queues.Senders(), logger)
	retry := booking.Backoff{MaxAttempts: cfg.ConsumerMaxAttempts, BaseDelay: cfg.ConsumerRetryBaseDelay}

	handlerOpts := []booking.HandlerOption{
		booking.WithReservationTTL(cfg.ReservationTTL),
		booking.WithLocation(cfg.Location()),
		booking.WithPublishRetry(retry),
		booking.WithSlotRecheck(cfg.RecheckSlotOnConfirm),
		booking.WithHandlerMetrics(m),
	}
	consumerOpts := []booking.ConsumerOption{
		booking.WithWorkerCount(cfg.ConsumerWorkerCount),
		booking.WithReceiveWaitSeconds(cfg.ReceiveWaitSeconds),
		booking.WithRetry(retry),
		booking.WithMetrics(m),
	}

	match := booking.NewConsumer("match",
		queues.Client(events.TopicMatchRequests),
		booking.NewMatchHandler(finder, cache, publisher, logger, handlerOpts...),
		logger, consumerOpts...)
	confirmation := booking.NewConsumer("confirmation",
		queues.Client(events.TopicConfirmations),
		booking.NewConfirmationHandler(cache, store, publisher, logger, handlerOpts...),
		logger, consumerOpts...)

	pipeline := &Pipeline{Match: match, Confirmation: confirmation}
	if cfg.QueueBackend == appconfig.QueueBackendMemory {
		for _, topic := range []events.Topic{events.TopicResults, events.TopicErrors} {
			pipeline.Outcomes = append(pipeline.Outcomes, booking.NewConsumer("outcome:"+string(topic),
				queues.Client(topic),
				booking.NewOutcomeLogger(topic, logger),
				logger, booking.WithReceiveWaitSeconds(cfg.ReceiveWaitSeconds), booking.WithMetrics(m)))
		}
	}
	return pipeline, nil
}
