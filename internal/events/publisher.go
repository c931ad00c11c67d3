package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// Sender delivers a raw message body to one topic's queue.
type Sender interface {
	Send(ctx context.Context, body string) error
}

// Publisher JSON-encodes events and hands them to the sender bound to a topic.
// Delivery is fire-and-forget; callers own retries.
type Publisher struct {
	senders map[Topic]Sender
	logger  *logging.Logger
}

// NewPublisher creates a publisher over per-topic senders.
func NewPublisher(senders map[Topic]Sender, logger *logging.Logger) *Publisher {
	if len(senders) == 0 {
		panic("events: at least one topic sender required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	bound := make(map[Topic]Sender, len(senders))
	for topic, sender := range senders {
		if sender != nil {
			bound[topic] = sender
		}
	}
	return &Publisher{senders: bound, logger: logger}
}

// Publish sends payload on topic.
func (p *Publisher) Publish(ctx context.Context, topic Topic, payload any) error {
	sender, ok := p.senders[topic]
	if !ok {
		return fmt.Errorf("events: no sender bound for topic %s", topic)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("events: encode %s payload: %w", topic, err)
	}
	if err := sender.Send(ctx, string(body)); err != nil {
		return fmt.Errorf("events: publish to %s: %w", topic, err)
	}
	p.logger.Debug("event published", "topic", string(topic))
	return nil
}
