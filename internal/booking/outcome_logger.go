package booking

import (
	"context"
	"encoding/json"

	"github.com/wolfman30/clinic-scheduler/internal/events"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

type outcomeEnvelope struct {
	ComplaintID string `json:"complaint_id"`
	Message     string `json:"message,omitempty"`
	Doctor      string `json:"doctor,omitempty"`
	Date        string `json:"date,omitempty"`
	Time        string `json:"time,omitempty"`
}

// OutcomeLogger consumes result and error events when no downstream service
// reads them, acknowledging each one after logging it.
type OutcomeLogger struct {
	topic  events.Topic
	logger *logging.Logger
}

// NewOutcomeLogger returns a Handler that logs every event published on topic.
func NewOutcomeLogger(topic events.Topic, logger *logging.Logger) *OutcomeLogger {
	if logger == nil {
		logger = logging.Default()
	}
	return &OutcomeLogger{topic: topic, logger: logger}
}

// Handle logs body. Undecodable events are logged raw and still acknowledged.
func (l *OutcomeLogger) Handle(_ context.Context, body string) error {
	var env outcomeEnvelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		l.logger.Warn("undecodable outcome event", "topic", l.topic, "body", body, "error", err)
		return nil
	}
	log := l.logger.WithComplaint(env.ComplaintID)
	if l.topic == events.TopicErrors {
		log.Warn("match outcome", "topic", l.topic, "message", env.Message)
		return nil
	}
	log.Info("match outcome",
		"topic", l.topic,
		"message", env.Message,
		"doctor", env.Doctor,
		"date", env.Date,
		"time", env.Time,
	)
	return nil
}
