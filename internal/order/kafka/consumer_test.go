package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/ordersync/platform/internal/order/application"
	"github.com/ordersync/platform/internal/order/domain"
	"github.com/ordersync/platform/pkg/outbox"
)

type fakeAppender struct {
	appended []outbox.NewEvent
}

func (f *fakeAppender) Append(ctx context.Context, q outbox.Querier, ev outbox.NewEvent) error {
	f.appended = append(f.appended, ev)
	return nil
}

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	pos       int
	committed []kafka.Message
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pos >= len(f.messages) {
		return kafka.Message{}, context.Canceled
	}
	m := f.messages[f.pos]
	f.pos++
	return m, nil
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error { return nil }

type fakeRepo struct {
	pending map[string][]domain.Order
	updated []domain.Order
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}
func (f *fakeRepo) Insert(ctx context.Context, tx pgx.Tx, o domain.Order) error { return nil }
func (f *fakeRepo) Get(ctx context.Context, id string) (domain.Order, error)   { return domain.Order{}, nil }
func (f *fakeRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (domain.Order, error) {
	return domain.Order{}, nil
}
func (f *fakeRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, o domain.Order) error {
	f.updated = append(f.updated, o)
	return nil
}
func (f *fakeRepo) PendingForUser(ctx context.Context, tx pgx.Tx, userID string) ([]domain.Order, error) {
	return f.pending[userID], nil
}
func (f *fakeRepo) ExpirableBatch(ctx context.Context, tx pgx.Tx, limit int) ([]domain.Order, error) {
	return nil, nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConsumerSkipsEmptyPayloadWithoutHandling(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{{Topic: "users.status-changed", Value: nil}}}
	repo := &fakeRepo{}

	c := &Consumer{log: newTestLogger(), reader: reader, reaction: application.NewReactionHandler(newTestLogger(), repo, &fakeAppender{}), tracer: otel.Tracer("test"), topic: "users.status-changed"}
	err := c.Run(context.Background())

	require.NoError(t, err)
	assert.Len(t, reader.committed, 1)
	assert.Empty(t, repo.updated)
}

func TestConsumerCommitsOnSuccessfulHandle(t *testing.T) {
	repo := &fakeRepo{pending: map[string][]domain.Order{
		"u-1": {{ID: "o-1", UserID: "u-1", Status: domain.StatusPending}},
	}}
	payload := []byte(`{"eventId":"e-1","userId":"u-1","oldStatus":"active","newStatus":"inactive"}`)
	reader := &fakeReader{messages: []kafka.Message{{Topic: "users.status-changed", Value: payload}}}

	appender := &fakeAppender{}
	c := &Consumer{log: newTestLogger(), reader: reader, reaction: application.NewReactionHandler(newTestLogger(), repo, appender), tracer: otel.Tracer("test"), topic: "users.status-changed"}
	err := c.Run(context.Background())

	require.NoError(t, err)
	assert.Len(t, reader.committed, 1)
	require.Len(t, repo.updated, 1)
	assert.Equal(t, domain.StatusCancelled, repo.updated[0].Status)
	require.Len(t, appender.appended, 1)
	assert.Equal(t, "orders.cancelled", appender.appended[0].EventType)
}

func TestConsumerNonCancelErrorPropagates(t *testing.T) {
	reader := &erroringReader{err: errors.New("broker down")}
	c := &Consumer{log: newTestLogger(), reader: reader, tracer: otel.Tracer("test")}
	err := c.Run(context.Background())
	assert.Error(t, err)
}

type erroringReader struct{ err error }

func (r *erroringReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	return kafka.Message{}, r.err
}
func (r *erroringReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error { return nil }
func (r *erroringReader) Close() error                                                    { return nil }
