// Package kafka implements the Orders service's C5 cross-service consumer:
// it subscribes to users.status-changed and dispatches to the C6 reaction
// handler, generalizing the teacher's payment consumer (FetchMessage →
// idempotency check → decode → handle → CommitMessages) with spec.md
// §4.5's poison-message and startup-topic-probing rules, neither of which
// the teacher implements.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ordersync/platform/internal/order/application"
	"github.com/ordersync/platform/pkg/idempotency"
	"github.com/ordersync/platform/pkg/metrics"
	"github.com/ordersync/platform/pkg/tracing"
)

// Reader is the subset of *kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer is the C5 cross-service consumer.
type Consumer struct {
	log     *slog.Logger
	reader  Reader
	reaction *application.ReactionHandler
	idem    *idempotency.Store
	metrics *metrics.Registry
	tracer  trace.Tracer
	topic   string
}

// NewConsumer builds a Consumer subscribed to topic under group, with idem
// as an optional fast-path duplicate-skip cache (nil disables it — the
// handler's own idempotent re-check in C6 is still the correctness
// guarantee; idem is purely an optimization to avoid redundant transactions
// on replay).
func NewConsumer(log *slog.Logger, brokers []string, topic, group string, reaction *application.ReactionHandler, idem *idempotency.Store, reg *metrics.Registry) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:      log,
		reader:   r,
		reaction: reaction,
		idem:     idem,
		metrics:  reg,
		tracer:   otel.Tracer("order-consumer"),
		topic:    topic,
	}
}

// ProbeTopics waits until the first broker in brokers (and, through it, the
// cluster controller) is reachable and attempts
// best-effort creation (1 partition, RF 1) of any topic in topics that does
// not yet exist, per spec.md §4.5's startup hardening. It gives up after
// maxWait and lets the reader subscribe anyway, relying on the client to
// recover once the topic appears.
func ProbeTopics(ctx context.Context, log *slog.Logger, brokers []string, topics []string, maxWait time.Duration) {
	if len(brokers) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	err := backoff.Retry(func() error {
		conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
		if err != nil {
			return err
		}
		defer conn.Close()

		controller, err := conn.Controller()
		if err != nil {
			return err
		}
		controllerConn, err := kafka.DialContext(ctx, "tcp", controller.Host+":"+strconv.Itoa(controller.Port))
		if err != nil {
			return err
		}
		defer controllerConn.Close()

		configs := make([]kafka.TopicConfig, 0, len(topics))
		for _, t := range topics {
			configs = append(configs, kafka.TopicConfig{Topic: t, NumPartitions: 1, ReplicationFactor: 1})
		}
		return controllerConn.CreateTopics(configs...)
	}, bo)
	if err != nil {
		log.Warn("topic probe gave up, subscribing anyway", "topics", topics, "err", err)
	}
}

// Run fetches messages until ctx is cancelled. Per record: empty/undecodable
// payloads are poison messages — logged, committed, and skipped so they
// never block the partition. A handler failure does not commit: the same
// record is handled again after a one-second pause until it succeeds or ctx
// is cancelled, so a failing record blocks the partition (deliberate
// head-of-line blocking, spec.md §4.5 point 5).
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		if len(msg.Value) == 0 {
			c.log.Warn("poison message: empty payload", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
			c.commitAndCount(ctx, msg, "poison")
			continue
		}

		if c.idem != nil {
			key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
			seen, err := c.idem.Seen(ctx, key)
			if err != nil {
				c.log.Error("idempotency check failed", "err", err)
			} else if seen {
				c.log.Info("duplicate message skipped", "key", key)
				c.commitAndCount(ctx, msg, "duplicate_skipped")
				continue
			}
		}

		msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
		msgCtx, span := c.tracer.Start(msgCtx, "HandleUserStatusChanged")

		var event application.UserStatusChanged
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.log.Warn("poison message: undecodable payload", "topic", msg.Topic, "err", err)
			span.End()
			c.commitAndCount(ctx, msg, "poison")
			continue
		}

		for {
			err := c.reaction.HandleUserStatusChanged(msgCtx, event)
			if err == nil {
				break
			}
			c.log.Error("reaction handler failed, retrying the same record", "user_id", event.UserID, "err", err)
			if c.metrics != nil {
				c.metrics.ConsumerProcessed.WithLabelValues(c.topic, "failed").Inc()
			}
			select {
			case <-ctx.Done():
				span.End()
				return nil
			case <-time.After(time.Second):
			}
		}
		span.End()
		c.commitAndCount(ctx, msg, "processed")
	}
}

func (c *Consumer) commitAndCount(ctx context.Context, msg kafka.Message, outcome string) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.log.Error("commit offset failed", "err", err)
	}
	if c.metrics != nil {
		c.metrics.ConsumerProcessed.WithLabelValues(c.topic, outcome).Inc()
	}
}
