package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	messages []kafka.Message
	failOn   string
}

func (f *fakeProducer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		if f.failOn != "" && m.Topic == f.failOn {
			return errors.New("broker unavailable")
		}
		f.messages = append(f.messages, m)
	}
	return nil
}

func TestPublisherPublishesToEventTypeTopic(t *testing.T) {
	prod := &fakeProducer{}
	pub := NewPublisher(newTestLogger(), prod, "dead-letter", 5)

	outcome := pub.Publish(context.Background(), Row{ID: 1, EventType: "users.created", AggregateID: "u-1", Payload: []byte(`{"id":"u-1"}`)})

	assert.Equal(t, Success, outcome)
	require.Len(t, prod.messages, 1)
	assert.Equal(t, "users.created", prod.messages[0].Topic)
	assert.Equal(t, []byte("u-1"), prod.messages[0].Key)
}

func TestPublisherTransientOnProduceError(t *testing.T) {
	prod := &fakeProducer{failOn: "orders.created"}
	pub := NewPublisher(newTestLogger(), prod, "dead-letter", 5)

	outcome := pub.Publish(context.Background(), Row{ID: 1, EventType: "orders.created", AggregateID: "o-1"})

	assert.Equal(t, TransientFailure, outcome)
}

func TestPublisherDeadLettersAtRetryCap(t *testing.T) {
	prod := &fakeProducer{}
	pub := NewPublisher(newTestLogger(), prod, "dead-letter", 2)

	outcome := pub.Publish(context.Background(), Row{ID: 7, EventType: "orders.created", AggregateID: "o-7", Payload: []byte(`{"x":1}`), RetryCount: 2})

	assert.Equal(t, PermanentFailure, outcome)
	require.Len(t, prod.messages, 1)
	assert.Equal(t, "dead-letter", prod.messages[0].Topic)

	var envelope DeadLetterEnvelope
	require.NoError(t, json.Unmarshal(prod.messages[0].Value, &envelope))
	assert.Equal(t, int64(7), envelope.ID)
	assert.Equal(t, "MaxRetriesExceeded", envelope.Reason)
	assert.Equal(t, 2, envelope.RetryCount)
}

func TestPublisherDeadLetterPublishFailureStillPermanent(t *testing.T) {
	prod := &fakeProducer{failOn: "dead-letter"}
	pub := NewPublisher(newTestLogger(), prod, "dead-letter", 1)

	outcome := pub.Publish(context.Background(), Row{ID: 9, EventType: "orders.created", RetryCount: 1})

	assert.Equal(t, PermanentFailure, outcome)
}
