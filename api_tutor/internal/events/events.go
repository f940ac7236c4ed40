// Package events publishes answered-query events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/logging"
	"github.com/google/uuid"
)

const DefaultTopic = "tutor.query_events"

// QueryEvent describes one answered query.
type QueryEvent struct {
	EventID     string    `json:"event_id"`
	SessionID   string    `json:"session_id,omitempty"`
	Query       string    `json:"query"`
	Tools       []string  `json:"tools"`
	Sources     []string  `json:"sources"`
	Rounds      int       `json:"rounds"`
	Termination string    `json:"termination"`
	LatencyMS   int64     `json:"latency_ms"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Producer is the subset of pkg/kafka.Producer used here.
type Producer interface {
	ProduceMessage(ctx context.Context, topic string, key []byte, value []byte, headers map[string]string) error
}

type Publisher struct {
	producer Producer
	topic    string
	logger   logging.Logger
}

func NewPublisher(producer Producer, topic string, logger logging.Logger) (*Publisher, error) {
	if producer == nil {
		return nil, errors.New("producer is required")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &Publisher{producer: producer, topic: topic, logger: logger}, nil
}

// Publish fills missing ids and timestamps and writes the event keyed by
// session id, so one session's events stay ordered within a partition.
func (p *Publisher) Publish(ctx context.Context, event QueryEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if event.Tools == nil {
		event.Tools = []string{}
	}
	if event.Sources == nil {
		event.Sources = []string{}
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode query event: %w", err)
	}
	key := event.SessionID
	if key == "" {
		key = event.EventID
	}
	headers := map[string]string{
		"event_type":   "query_answered",
		"content_type": "application/json",
	}
	if err := p.producer.ProduceMessage(ctx, p.topic, []byte(key), value, headers); err != nil {
		publishTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("publish query event: %w", err)
	}
	publishTotal.WithLabelValues("success").Inc()
	p.logger.WithFields(logging.Fields{
		"event_id": event.EventID,
		"topic":    p.topic,
	}).Debug("Published query event")
	return nil
}
