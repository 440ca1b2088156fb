package events

import (
	"context"
	"testing"

	kafka "github.com/segmentio/kafka-go"

	"hemocore/pkg/domain"
)

func TestNilPublisherDropsEvents(t *testing.T) {
	var p *Publisher
	if err := p.Publish(context.Background(), EventRequestCreated, domain.BloodRequest{}); err != nil {
		t.Fatalf("nil publisher must drop events, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("nil publisher close: %v", err)
	}
}

func TestNewPublisherDefaultsTopic(t *testing.T) {
	p := NewPublisher([]string{"localhost:9092"}, "")
	defer func() { _ = p.Close() }()
	if p.writer.Topic != DefaultTopic {
		t.Fatalf("expected default topic %q, got %q", DefaultTopic, p.writer.Topic)
	}

	named := NewPublisher([]string{"localhost:9092"}, "custom-events")
	defer func() { _ = named.Close() }()
	if named.writer.Topic != "custom-events" {
		t.Fatalf("expected custom topic, got %q", named.writer.Topic)
	}
}

func TestPublisherPartitionsByKey(t *testing.T) {
	p := NewPublisher([]string{"localhost:9092"}, "")
	defer func() { _ = p.Close() }()

	// Events for one request must land on one partition so consumers see
	// lifecycle transitions in order. A key-hashing balancer guarantees that;
	// load-based balancers scatter same-key messages.
	balancer, ok := p.writer.Balancer.(*kafka.Hash)
	if !ok {
		t.Fatalf("expected key-hashing balancer, got %T", p.writer.Balancer)
	}

	partitions := []int{0, 1, 2, 3}
	key := []byte("request-123")
	first := balancer.Balance(kafka.Message{Key: key}, partitions...)
	for i := 0; i < 10; i++ {
		if got := balancer.Balance(kafka.Message{Key: key}, partitions...); got != first {
			t.Fatalf("same key routed to partitions %d and %d", first, got)
		}
	}
}
