// Package queue provides the message transports the booking pipeline runs on.
package queue

import "context"

// Message is one delivery pulled from a queue.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// Client sends, receives, and acknowledges messages on a single topic.
type Client interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Rejecter is implemented by transports that can dead-letter a delivery
// instead of acknowledging it.
type Rejecter interface {
	Reject(ctx context.Context, receiptHandle string) error
}
