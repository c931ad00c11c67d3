package queue

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPBroker owns the RabbitMQ connection shared by every topic queue.
type AMQPBroker struct {
	conn       *amqp.Connection
	exchange   string
	deadLetter string
}

// DialAMQP connects to RabbitMQ and declares the durable topic exchange (and
// the dead-letter exchange when deadLetter is set).
func DialAMQP(url, exchange, deadLetter string) (*AMQPBroker, error) {
	if exchange == "" {
		return nil, fmt.Errorf("queue: amqp exchange required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("queue: dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("queue: open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("queue: declare exchange %s: %w", exchange, err)
	}
	if deadLetter != "" {
		if err := ch.ExchangeDeclare(deadLetter, "topic", true, false, false, false, nil); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("queue: declare dead-letter exchange %s: %w", deadLetter, err)
		}
	}
	return &AMQPBroker{conn: conn, exchange: exchange, deadLetter: deadLetter}, nil
}

// Queue declares a durable queue named after the routing key, binds it to
// the exchange, and returns a Client for it.
func (b *AMQPBroker) Queue(routingKey string) (*AMQPQueue, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("queue: open channel for %s: %w", routingKey, err)
	}

	args := amqp.Table{}
	if b.deadLetter != "" {
		args["x-dead-letter-exchange"] = b.deadLetter
		if err := declareDeadLetterQueue(ch, b.deadLetter, routingKey); err != nil {
			_ = ch.Close()
			return nil, err
		}
	}
	q, err := ch.QueueDeclare(routingKey, true, false, false, false, args)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("queue: declare queue %s: %w", routingKey, err)
	}
	if err := ch.QueueBind(q.Name, routingKey, b.exchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("queue: bind %s: %w", routingKey, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("queue: set qos for %s: %w", routingKey, err)
	}
	return &AMQPQueue{ch: ch, exchange: b.exchange, routingKey: routingKey, queue: q.Name}, nil
}

// Close closes the shared connection and every channel opened on it.
func (b *AMQPBroker) Close() error {
	if b == nil || b.conn == nil {
		return nil
	}
	return b.conn.Close()
}

func declareDeadLetterQueue(ch *amqp.Channel, exchange, routingKey string) error {
	name := routingKey + ".dead"
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue: declare dead-letter queue %s: %w", name, err)
	}
	if err := ch.QueueBind(name, routingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("queue: bind dead-letter queue %s: %w", name, err)
	}
	return nil
}

// AMQPQueue implements Client and Rejecter on one RabbitMQ queue. The consumer
// is attached on the first Receive so publish-only topics are never drained.
type AMQPQueue struct {
	ch         *amqp.Channel
	exchange   string
	routingKey string
	queue      string

	publishMu  sync.Mutex
	consumeErr error
	once       sync.Once
	deliveries <-chan amqp.Delivery
}

func (q *AMQPQueue) Send(ctx context.Context, body string) error {
	q.publishMu.Lock()
	defer q.publishMu.Unlock()
	err := q.ch.PublishWithContext(ctx, q.exchange, q.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         []byte(body),
	})
	if err != nil {
		return fmt.Errorf("queue: publish %s: %w", q.routingKey, err)
	}
	return nil
}

func (q *AMQPQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error) {
	q.once.Do(func() {
		q.deliveries, q.consumeErr = q.ch.Consume(q.queue, "", false, false, false, false, nil)
	})
	if q.consumeErr != nil {
		return nil, fmt.Errorf("queue: consume %s: %w", q.queue, q.consumeErr)
	}
	if maxMessages <= 0 {
		maxMessages = 1
	}

	var timeout <-chan time.Time
	if waitSeconds > 0 {
		timer := time.NewTimer(time.Duration(waitSeconds) * time.Second)
		defer timer.Stop()
		timeout = timer.C
	}

	messages := make([]Message, 0, maxMessages)
	for len(messages) < maxMessages {
		select {
		case <-ctx.Done():
			if len(messages) > 0 {
				return messages, nil
			}
			return nil, ctx.Err()
		case <-timeout:
			return messages, nil
		case d, ok := <-q.deliveries:
			if !ok {
				return messages, fmt.Errorf("queue: %s delivery channel closed", q.queue)
			}
			messages = append(messages, fromDelivery(d))
			// Only block for the first one; drain what is already buffered.
			timeout = closedTimer
		}
	}
	return messages, nil
}

// Delete acks the delivery identified by receiptHandle.
func (q *AMQPQueue) Delete(_ context.Context, receiptHandle string) error {
	tag, err := parseDeliveryTag(receiptHandle)
	if err != nil {
		return err
	}
	if err := q.ch.Ack(tag, false); err != nil {
		return fmt.Errorf("queue: ack %s: %w", q.queue, err)
	}
	return nil
}

// Reject nacks without requeue, routing the delivery to the dead-letter exchange if one is configured.
func (q *AMQPQueue) Reject(_ context.Context, receiptHandle string) error {
	tag, err := parseDeliveryTag(receiptHandle)
	if err != nil {
		return err
	}
	if err := q.ch.Nack(tag, false, false); err != nil {
		return fmt.Errorf("queue: nack %s: %w", q.queue, err)
	}
	return nil
}

var closedTimer = func() <-chan time.Time {
	ch := make(chan time.Time)
	close(ch)
	return ch
}()

func fromDelivery(d amqp.Delivery) Message {
	id := d.MessageId
	if id == "" {
		id = strconv.FormatUint(d.DeliveryTag, 10)
	}
	return Message{
		ID:            id,
		Body:          string(d.Body),
		ReceiptHandle: strconv.FormatUint(d.DeliveryTag, 10),
	}
}

func parseDeliveryTag(receiptHandle string) (uint64, error) {
	tag, err := strconv.ParseUint(receiptHandle, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("queue: invalid amqp receipt handle %q: %w", receiptHandle, err)
	}
	return tag, nil
}
