//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	orderapp "github.com/ordersync/platform/internal/order/application"
	orderdomain "github.com/ordersync/platform/internal/order/domain"
	orderkafka "github.com/ordersync/platform/internal/order/kafka"
	orderpg "github.com/ordersync/platform/internal/order/postgres"
	userapp "github.com/ordersync/platform/internal/user/application"
	userhttp "github.com/ordersync/platform/internal/user/http"
	userpg "github.com/ordersync/platform/internal/user/postgres"
	"github.com/ordersync/platform/pkg/outbox"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestScenarioS1CreateAndObserve implements spec.md §8 S1: a created user's
// outbox row reaches the users.created topic after one drain cycle.
func TestScenarioS1CreateAndObserve(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	env, err := Setup(ctx)
	require.NoError(t, err)
	defer env.Teardown(ctx)

	pool, err := pgxpool.New(ctx, env.PGURL)
	require.NoError(t, err)
	defer pool.Close()

	log := newTestLogger()
	repo := userpg.NewRepository(log, pool)
	outboxStore := outbox.NewStore(pool, "userflow")
	svc := userapp.NewService(repo, outboxStore)
	handler := userhttp.NewHandler(log, svc, outboxStore)

	srv := httptest.NewServer(handler.Routes())
	defer srv.Close()

	body, _ := json.Marshal(map[string]string{"name": "Alice", "email": "alice@example.com"})
	resp, err := http.Post(srv.URL+"/api/users", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	unsent, err := outboxStore.Unsent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unsent, 1)
	require.Equal(t, "users.created", unsent[0].EventType)

	writer := &kafka.Writer{Addr: kafka.TCP(env.KAddr...), Balancer: &kafka.Hash{}}
	defer writer.Close()
	publisher := outbox.NewPublisher(log, writer, "dead-letter", 5)

	drainer := outbox.NewDrainer(log, outboxStore, publisher, outbox.Config{
		RelayID: "test", BatchSize: 10, PollInterval: 100 * time.Millisecond, LockDuration: 5 * time.Second, MaxRetries: 5,
	})
	drainCtx, drainCancel := context.WithTimeout(ctx, 500*time.Millisecond)
	_ = drainer.Run(drainCtx)
	drainCancel()

	row, err := outboxStore.Get(ctx, unsent[0].ID)
	require.NoError(t, err)
	require.True(t, row.Sent())

	reader := kafka.NewReader(kafka.ReaderConfig{Brokers: env.KAddr, Topic: "users.created", GroupID: "test-reader"})
	defer reader.Close()
	readCtx, readCancel := context.WithTimeout(ctx, 10*time.Second)
	defer readCancel()
	msg, err := reader.FetchMessage(readCtx)
	require.NoError(t, err)

	var evt struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &evt))
	require.Equal(t, created.ID, evt.ID)
	require.Equal(t, "Alice", evt.Name)
}

// TestScenarioS2DuplicateEmailConflict implements spec.md §8 S2.
func TestScenarioS2DuplicateEmailConflict(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	env, err := Setup(ctx)
	require.NoError(t, err)
	defer env.Teardown(ctx)

	pool, err := pgxpool.New(ctx, env.PGURL)
	require.NoError(t, err)
	defer pool.Close()

	log := newTestLogger()
	repo := userpg.NewRepository(log, pool)
	outboxStore := outbox.NewStore(pool, "userflow")
	svc := userapp.NewService(repo, outboxStore)
	handler := userhttp.NewHandler(log, svc, outboxStore)

	srv := httptest.NewServer(handler.Routes())
	defer srv.Close()

	seed := map[string]string{"name": "X", "email": "dup@example.com"}
	body, _ := json.Marshal(seed)
	resp, err := http.Post(srv.URL+"/api/users", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	before, err := outboxStore.Unsent(ctx, 10)
	require.NoError(t, err)

	resp2, err := http.Post(srv.URL+"/api/users", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusConflict, resp2.StatusCode)

	after, err := outboxStore.Unsent(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, len(before), len(after))
}

// TestScenarioS4UserInactivationCascades implements spec.md §8 S4: a
// users.status-changed{newStatus=Inactive} event published on the bus
// cancels exactly the one Pending order for that user, leaving a
// completed order untouched, and delivered twice still yields one
// orders.cancelled row (S5 rolled into the same run since both need the
// same topology).
func TestScenarioS4UserInactivationCascades(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	env, err := Setup(ctx)
	require.NoError(t, err)
	defer env.Teardown(ctx)

	pool, err := pgxpool.New(ctx, env.PGURL)
	require.NoError(t, err)
	defer pool.Close()

	log := newTestLogger()
	repo := orderpg.NewRepository(log, pool)
	outboxStore := outbox.NewStore(pool, "orderflow")

	price := decimal.NewFromInt(10)
	o1ID, o2ID, userID := uuid.NewString(), uuid.NewString(), uuid.NewString()
	o1 := orderdomain.New(o1ID, userID, "widget", 1, price, time.Hour)
	o1.Status = orderdomain.StatusPending
	o2 := orderdomain.New(o2ID, userID, "widget", 1, price, time.Hour)
	o2.Status = orderdomain.StatusCompleted

	require.NoError(t, repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := repo.Insert(ctx, tx, o1); err != nil {
			return err
		}
		return repo.Insert(ctx, tx, o2)
	}))

	reaction := orderapp.NewReactionHandler(log, repo, outboxStore)
	consumer := orderkafka.NewConsumer(log, env.KAddr, "users.status-changed", "order-service-test", reaction, nil, nil)
	consumerCtx, consumerCancel := context.WithTimeout(ctx, 5*time.Second)
	defer consumerCancel()
	go func() { _ = consumer.Run(consumerCtx) }()

	writer := &kafka.Writer{Addr: kafka.TCP(env.KAddr...), Balancer: &kafka.Hash{}}
	defer writer.Close()

	evt := map[string]any{
		"userId":    userID,
		"oldStatus": "active",
		"newStatus": "inactive",
		"reason":    "admin",
	}
	payload, _ := json.Marshal(evt)
	for i := 0; i < 2; i++ {
		require.NoError(t, writer.WriteMessages(ctx, kafka.Message{Topic: "users.status-changed", Value: payload}))
	}

	require.Eventually(t, func() bool {
		got, err := repo.Get(ctx, o1ID)
		return err == nil && got.Status == orderdomain.StatusCancelled
	}, 10*time.Second, 100*time.Millisecond)

	stillCompleted, err := repo.Get(ctx, o2ID)
	require.NoError(t, err)
	require.Equal(t, orderdomain.StatusCompleted, stillCompleted.Status)

	// Once the consumer has stopped, both deliveries have been handled; the
	// replay must not have appended a second orders.cancelled row.
	<-consumerCtx.Done()
	unsent, err := outboxStore.Unsent(ctx, 10)
	require.NoError(t, err)
	var cancelledCount int
	for _, row := range unsent {
		if row.EventType == "orders.cancelled" && row.AggregateID == o1ID {
			cancelledCount++
		}
	}
	require.Equal(t, 1, cancelledCount)
}

// TestScenarioS7ExpiryScanner implements spec.md §8 S7: an order past its
// payment deadline is expired by one scanner cycle, producing exactly one
// orders.cancelled row.
func TestScenarioS7ExpiryScanner(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	env, err := Setup(ctx)
	require.NoError(t, err)
	defer env.Teardown(ctx)

	pool, err := pgxpool.New(ctx, env.PGURL)
	require.NoError(t, err)
	defer pool.Close()

	log := newTestLogger()
	repo := orderpg.NewRepository(log, pool)
	outboxStore := outbox.NewStore(pool, "orderflow")

	price := decimal.NewFromInt(20)
	expiredID := uuid.NewString()
	expired := orderdomain.New(expiredID, uuid.NewString(), "widget", 1, price, -15*time.Minute)
	expired.Status = orderdomain.StatusPendingPayment
	require.NoError(t, repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return repo.Insert(ctx, tx, expired)
	}))

	scanner := orderapp.NewExpiryScanner(log, repo, outboxStore, 200*time.Millisecond, 50)
	scanCtx, scanCancel := context.WithTimeout(ctx, 1500*time.Millisecond)
	_ = scanner.Run(scanCtx)
	scanCancel()

	got, err := repo.Get(ctx, expiredID)
	require.NoError(t, err)
	require.Equal(t, orderdomain.StatusExpired, got.Status)

	unsent, err := outboxStore.Unsent(ctx, 10)
	require.NoError(t, err)
	var cancelledCount int
	for _, row := range unsent {
		if row.EventType == "orders.cancelled" && row.AggregateID == expiredID {
			cancelledCount++
		}
	}
	require.Equal(t, 1, cancelledCount)
}
