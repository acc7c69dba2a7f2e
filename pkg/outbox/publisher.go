package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer is the subset of *kafka.Writer the publisher needs, kept narrow
// so tests can substitute a fake.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Outcome is the result C2.publish returns to the drainer.
type Outcome int

const (
	Success Outcome = iota
	TransientFailure
	PermanentFailure
)

// DeadLetterEnvelope is the JSON body written to the dead-letter topic once
// a row's retry count has reached the configured maximum.
type DeadLetterEnvelope struct {
	ID         int64           `json:"id"`
	EventType  string          `json:"eventType"`
	Payload    json.RawMessage `json:"payload"`
	RetryCount int             `json:"retryCount"`
	OccurredAt time.Time       `json:"occurredAt"`
	Reason     string          `json:"reason"`
}

// Publisher is the C2 event bus publisher: the row's event type is the
// destination topic name (§4.2); on retry-cap exhaustion it reroutes to the
// dead-letter topic instead.
type Publisher struct {
	log             *slog.Logger
	producer        Producer
	deadLetterTopic string
	maxRetries      int
}

// NewPublisher builds a Publisher. producer is typically a single
// process-wide *kafka.Writer shared by every caller, per spec.md §5 ("the
// bus producer is a process-wide singleton").
func NewPublisher(log *slog.Logger, producer Producer, deadLetterTopic string, maxRetries int) *Publisher {
	return &Publisher{log: log, producer: producer, deadLetterTopic: deadLetterTopic, maxRetries: maxRetries}
}

// Publish delivers row to its destination topic, or to the dead-letter
// topic if row has already exhausted its retry budget.
func (p *Publisher) Publish(ctx context.Context, row Row) Outcome {
	if row.RetryCount >= p.maxRetries {
		return p.publishDeadLetter(ctx, row)
	}

	headers := []kafka.Header{{Key: "event_type", Value: []byte(row.EventType)}}
	if row.Traceparent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(row.Traceparent)})
	}

	msg := kafka.Message{
		Topic:   row.EventType,
		Key:     []byte(row.AggregateID),
		Value:   row.Payload,
		Headers: headers,
	}

	if err := p.producer.WriteMessages(ctx, msg); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			p.log.Info("outbox publish cancelled", "row_id", row.ID)
			return TransientFailure
		}
		p.log.Warn("outbox publish failed", "row_id", row.ID, "event_type", row.EventType, "err", err)
		return TransientFailure
	}

	p.log.Info("outbox published", "row_id", row.ID, "event_type", row.EventType)
	return Success
}

func (p *Publisher) publishDeadLetter(ctx context.Context, row Row) Outcome {
	envelope := DeadLetterEnvelope{
		ID:         row.ID,
		EventType:  row.EventType,
		Payload:    row.Payload,
		RetryCount: row.RetryCount,
		OccurredAt: time.Now().UTC(),
		Reason:     "MaxRetriesExceeded",
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		p.log.Error("outbox dead-letter marshal failed", "row_id", row.ID, "err", err)
		return PermanentFailure
	}

	msg := kafka.Message{
		Topic: p.deadLetterTopic,
		Key:   []byte(row.AggregateID),
		Value: body,
	}
	if err := p.producer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("outbox dead-letter publish failed", "row_id", row.ID, "err", err)
		return PermanentFailure
	}
	p.log.Warn("outbox dead-lettered", "row_id", row.ID, "event_type", row.EventType, "retry_count", row.RetryCount)
	return PermanentFailure
}
