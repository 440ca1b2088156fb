// Package events publishes blood request lifecycle events to Kafka for
// downstream alerting and dashboard consumers. The core service never
// depends on this package; the serving layer hands it committed records
// after each successful transaction.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hemocore/pkg/domain"

	kafka "github.com/segmentio/kafka-go"
)

// DefaultTopic is where lifecycle events are published unless configured
// otherwise.
const DefaultTopic = "blood-request-events"

// Event types emitted on the lifecycle topic.
const (
	EventRequestCreated   = "request.created"
	EventRequestFulfilled = "request.fulfilled"
	EventRequestCancelled = "request.cancelled"
	EventRequestExpired   = "request.expired"
)

// RequestEvent is the canonical schema for messages on the lifecycle topic.
// Consumers key on the request ID, so per-request ordering is preserved
// within a partition.
type RequestEvent struct {
	// Type is one of the EventRequest* constants.
	Type string `json:"type"`
	// Request is the committed record after the transition.
	Request domain.BloodRequest `json:"request"`
	// OccurredAt is the publish timestamp, not the transition timestamp;
	// the record itself carries the authoritative times.
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher writes RequestEvents to a Kafka topic. A nil Publisher is valid
// and drops every event, so callers need no branching when eventing is
// disabled.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a Publisher connected to the given Kafka brokers.
func NewPublisher(brokers []string, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Publish emits one lifecycle event. Failures are returned to the caller to
// log; delivery is best-effort and never blocks the committed transaction.
func (p *Publisher) Publish(ctx context.Context, eventType string, request domain.BloodRequest) error {
	if p == nil {
		return nil
	}
	payload, err := json.Marshal(RequestEvent{
		Type:       eventType,
		Request:    request,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(request.ID),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Close releases the underlying Kafka writer.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
