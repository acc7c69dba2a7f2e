package application

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/ordersync/platform/internal/order/domain"
	"github.com/ordersync/platform/pkg/outbox"
	"github.com/ordersync/platform/pkg/platformerrors"
)

// fakeRepo is an in-memory Repository used across commands_test.go,
// reaction_test.go and expiry_test.go.
type fakeRepo struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

func newFakeRepo(seed ...domain.Order) *fakeRepo {
	r := &fakeRepo{orders: map[string]domain.Order{}}
	for _, o := range seed {
		r.orders[o.ID] = o
	}
	return r
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

func (f *fakeRepo) Insert(ctx context.Context, tx pgx.Tx, o domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.ID] = o
	return nil
}

func (f *fakeRepo) Get(ctx context.Context, id string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return domain.Order{}, platformerrors.ErrNotFound
	}
	return o, nil
}

func (f *fakeRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (domain.Order, error) {
	return f.Get(ctx, id)
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, o domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.ID] = o
	return nil
}

func (f *fakeRepo) PendingForUser(ctx context.Context, tx pgx.Tx, userID string) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeRepo) ExpirableBatch(ctx context.Context, tx pgx.Tx, limit int) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Order
	for _, o := range f.orders {
		if len(out) >= limit {
			break
		}
		out = append(out, o)
	}
	return out, nil
}

// fakeAppender is a minimal outbox.Appender recording every appended event.
type fakeAppender struct {
	mu       sync.Mutex
	appended []outbox.NewEvent
}

func (f *fakeAppender) Append(ctx context.Context, q outbox.Querier, ev outbox.NewEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, ev)
	return nil
}

func (f *fakeAppender) events() []outbox.NewEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]outbox.NewEvent, len(f.appended))
	copy(out, f.appended)
	return out
}

// fakeUserClient is a scripted UserClient for CreateOrder tests.
type fakeUserClient struct {
	active bool
	err    error
}

func (f *fakeUserClient) IsActiveUser(ctx context.Context, userID string) (bool, error) {
	return f.active, f.err
}
