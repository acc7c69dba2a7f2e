package relay

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// Fanout subscribes to one topic and forwards every record, raw, to the Hub.
// One Fanout per topic; cmd/fanout-relay runs one per core topic plus the
// dead-letter topic, grounded on the teacher's per-topic Consumer shape
// (internal/inventory/infrastructure/kafka.Consumer) but stripped of
// decode/dispatch since C8 does no business logic (spec.md §4.8).
type Fanout struct {
	log    *slog.Logger
	reader *kafka.Reader
	hub    *Hub
	topic  string
}

// NewFanout builds a Fanout reading topic with consumer group
// "fanout-relay" — a dedicated group so relay progress never interferes
// with order-service's own consumer group on the same topics.
func NewFanout(log *slog.Logger, brokers []string, topic string, hub *Hub) *Fanout {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: "fanout-relay",
	})
	return &Fanout{log: log, reader: r, hub: hub, topic: topic}
}

// Run fetches records until ctx is cancelled, broadcasting each one and
// committing its offset immediately — a dropped browser push is not worth
// retrying, so delivery here is best-effort, unlike C5's at-least-once
// consumer.
func (f *Fanout) Run(ctx context.Context) error {
	defer f.reader.Close()
	for {
		msg, err := f.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		f.hub.Broadcast(Message{Topic: f.topic, Payload: msg.Value})

		if err := f.reader.CommitMessages(ctx, msg); err != nil {
			f.log.Error("fanout commit failed", "topic", f.topic, "err", err)
		}
	}
}
