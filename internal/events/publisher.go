package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/acme/task-confirm-caller/internal/config"
	"github.com/acme/task-confirm-caller/internal/domain"
)

// OutcomeEvent records one completed call attempt for downstream consumers.
type OutcomeEvent struct {
	EventID    uuid.UUID      `json:"event_id"`
	TaskID     string         `json:"task_id"`
	CallSID    string         `json:"call_sid"`
	Outcome    domain.Outcome `json:"outcome"`
	RetryCount int            `json:"retry_count"`
	Terminal   bool           `json:"terminal"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// OutcomePublisher emits outcome events. Implementations must tolerate being
// called concurrently from the webhook surface.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, event OutcomeEvent) error
	Close() error
}

// KafkaPublisher writes outcome events to a Kafka topic.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher constructs a publisher for the configured outcome topic.
func NewKafkaPublisher(cfg config.KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("events: no brokers configured")
	}
	if cfg.OutcomeTopic == "" {
		return nil, fmt.Errorf("events: no outcome topic configured")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.OutcomeTopic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		},
	}, nil
}

// PublishOutcome writes the event, keyed by task so per-task ordering holds.
func (p *KafkaPublisher) PublishOutcome(ctx context.Context, event OutcomeEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal outcome: %w", err)
	}

	record := kafka.Message{
		Key:   []byte(event.TaskID),
		Value: value,
		Time:  time.Now().UTC(),
	}

	if err := p.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("events: write outcome: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops events; used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishOutcome(context.Context, OutcomeEvent) error { return nil }
func (NopPublisher) Close() error                                       { return nil }
