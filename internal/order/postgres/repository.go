// Package postgres implements the Orders persistence port against
// Postgres, following the teacher's SaveWithOutbox shape generalized to a
// WithTx-wrapped command pattern.
package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ordersync/platform/internal/order/domain"
	"github.com/ordersync/platform/pkg/platformerrors"
)

// Repository implements internal/order/application.Repository.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

// NewRepository builds a Repository against orderflow.orders.
func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// WithTx runs fn inside one transaction so the domain write and its outbox
// row commit or roll back together.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return platformerrors.Wrap(platformerrors.ErrTransient, "begin tx: "+err.Error())
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return platformerrors.Wrap(platformerrors.ErrTransient, "commit tx: "+err.Error())
	}
	return nil
}

func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, o domain.Order) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO orderflow.orders (id, user_id, product, quantity, price, status, created_at, expires_at, cancelled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.UserID, o.Product, o.Quantity, o.Price, string(o.Status), o.CreatedAt, o.ExpiresAt, o.CancelledAt)
	if err != nil {
		return platformerrors.Wrap(platformerrors.ErrTransient, "insert order: "+err.Error())
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, selectOrderSQL+` WHERE id = $1`, id))
}

func (r *Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (domain.Order, error) {
	return scanOrder(tx.QueryRow(ctx, selectOrderSQL+` WHERE id = $1 FOR UPDATE`, id))
}

func (r *Repository) UpdateStatus(ctx context.Context, tx pgx.Tx, o domain.Order) error {
	_, err := tx.Exec(ctx, `
		UPDATE orderflow.orders SET status = $2, cancelled_at = $3 WHERE id = $1`,
		o.ID, string(o.Status), o.CancelledAt)
	if err != nil {
		return platformerrors.Wrap(platformerrors.ErrTransient, "update order status: "+err.Error())
	}
	return nil
}

// PendingForUser returns orders for userID in Pending or a payment-capable
// status, locked FOR UPDATE so the C6 cascade's re-check is race-free.
func (r *Repository) PendingForUser(ctx context.Context, tx pgx.Tx, userID string) ([]domain.Order, error) {
	rows, err := tx.Query(ctx, selectOrderSQL+`
		WHERE user_id = $1 AND status IN ($2, $3, $4)
		ORDER BY created_at ASC
		FOR UPDATE`,
		userID, string(domain.StatusPending), string(domain.StatusPendingPayment), string(domain.StatusReady))
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.ErrTransient, "pending for user: "+err.Error())
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ExpirableBatch returns up to limit orders in a payment-capable status
// whose deadline has passed, locked FOR UPDATE SKIP LOCKED so more than one
// scanner instance can run concurrently without double-processing a row.
func (r *Repository) ExpirableBatch(ctx context.Context, tx pgx.Tx, limit int) ([]domain.Order, error) {
	rows, err := tx.Query(ctx, selectOrderSQL+`
		WHERE status IN ($1, $2) AND expires_at < now()
		ORDER BY expires_at ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED`,
		string(domain.StatusPendingPayment), string(domain.StatusReady), limit)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.ErrTransient, "expirable batch: "+err.Error())
	}
	defer rows.Close()
	return collectOrders(rows)
}

const selectOrderSQL = `
	SELECT id, user_id, product, quantity, price, status, created_at, expires_at, cancelled_at
	FROM orderflow.orders`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var status string
	var price decimal.Decimal
	err := row.Scan(&o.ID, &o.UserID, &o.Product, &o.Quantity, &price, &status, &o.CreatedAt, &o.ExpiresAt, &o.CancelledAt)
	if err == pgx.ErrNoRows {
		return domain.Order{}, platformerrors.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, platformerrors.Wrap(platformerrors.ErrTransient, "scan order: "+err.Error())
	}
	o.Price = price
	o.Status = domain.Status(status)
	return o, nil
}

func collectOrders(rows pgx.Rows) ([]domain.Order, error) {
	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		var status string
		var price decimal.Decimal
		if err := rows.Scan(&o.ID, &o.UserID, &o.Product, &o.Quantity, &price, &status, &o.CreatedAt, &o.ExpiresAt, &o.CancelledAt); err != nil {
			return nil, platformerrors.Wrap(platformerrors.ErrInternal, "scan order row: "+err.Error())
		}
		o.Price = price
		o.Status = domain.Status(status)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, platformerrors.Wrap(platformerrors.ErrTransient, "iterate orders: "+err.Error())
	}
	return out, nil
}
