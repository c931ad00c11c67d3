package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/clinic-scheduler/cmd/mainconfig"
	appconfig "github.com/wolfman30/clinic-scheduler/internal/config"
	"github.com/wolfman30/clinic-scheduler/internal/events"
	"github.com/wolfman30/clinic-scheduler/internal/queue"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

const memoryQueueBuffer = 256

// Queues holds one transport client per pipeline topic.
type Queues struct {
	clients map[events.Topic]queue.Client
	close   func() error
}

// NewQueues wraps already-built clients; every topic must be present.
func NewQueues(clients map[events.Topic]queue.Client) (*Queues, error) {
	for _, topic := range events.AllTopics {
		if clients[topic] == nil {
			return nil, fmt.Errorf("bootstrap: no queue for topic %s", topic)
		}
	}
	return &Queues{clients: clients}, nil
}

// Client returns the transport bound to topic.
func (q *Queues) Client(topic events.Topic) queue.Client {
	return q.clients[topic]
}

// Senders exposes the clients as publisher senders.
func (q *Queues) Senders() map[events.Topic]events.Sender {
	out := make(map[events.Topic]events.Sender, len(q.clients))
	for topic, client := range q.clients {
		out[topic] = client
	}
	return out
}

// Close releases broker connections.
func (q *Queues) Close() error {
	if q == nil || q.close == nil {
		return nil
	}
	return q.close()
}

// BuildQueues wires the transport selected by QUEUE_BACKEND.
func BuildQueues(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*Queues, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.QueueBackend {
	case appconfig.QueueBackendMemory:
		clients := make(map[events.Topic]queue.Client, len(events.AllTopics))
		for _, topic := range events.AllTopics {
			clients[topic] = queue.NewMemoryQueue(memoryQueueBuffer)
		}
		logger.Info("using in-memory queues")
		return NewQueues(clients)

	case appconfig.QueueBackendAMQP:
		broker, err := queue.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPDeadLetterExchange)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		clients := make(map[events.Topic]queue.Client, len(events.AllTopics))
		for _, topic := range events.AllTopics {
			q, err := broker.Queue(string(topic))
			if err != nil {
				_ = broker.Close()
				return nil, fmt.Errorf("bootstrap: %w", err)
			}
			clients[topic] = q
		}
		queues, err := NewQueues(clients)
		if err != nil {
			_ = broker.Close()
			return nil, err
		}
		queues.close = broker.Close
		logger.Info("using rabbitmq queues", "exchange", cfg.AMQPExchange, "dead_letter_exchange", cfg.AMQPDeadLetterExchange)
		return queues, nil

	case appconfig.QueueBackendSQS, "":
		urls := sqsQueueURLs(cfg)
		var missing []string
		for _, topic := range events.AllTopics {
			if strings.TrimSpace(urls[topic]) == "" {
				missing = append(missing, string(topic))
			}
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("bootstrap: missing SQS queue URLs for %s", strings.Join(missing, ", "))
		}
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		client := mainconfig.NewSQSClient(awsCfg, cfg)
		clients := make(map[events.Topic]queue.Client, len(events.AllTopics))
		for _, topic := range events.AllTopics {
			clients[topic] = queue.NewSQSQueue(client, urls[topic])
		}
		logger.Info("using sqs queues", "region", cfg.AWSRegion, "endpoint_override", cfg.AWSEndpointOverride)
		return NewQueues(clients)

	default:
		return nil, fmt.Errorf("bootstrap: unknown queue backend %q", cfg.QueueBackend)
	}
}

func sqsQueueURLs(cfg *appconfig.Config) map[events.Topic]string {
	return map[events.Topic]string{
		events.TopicMatchRequests: cfg.MatchRequestQueueURL,
		events.TopicResults:       cfg.MatchResultQueueURL,
		events.TopicErrors:        cfg.MatchErrorQueueURL,
		events.TopicConfirmations: cfg.ConfirmationQueueURL,
	}
}
