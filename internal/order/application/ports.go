// Package application holds the Orders command handlers (C4), the
// user-inactivation reaction handler (C6), and the expiry scanner (C7).
package application

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ordersync/platform/internal/order/domain"
)

// Repository is the persistence port the application layer depends on.
// Implementations live in internal/order/postgres.
type Repository interface {
	// WithTx runs fn inside one transaction, so a domain write and its
	// outbox row commit or roll back together (the atomicity rule of
	// spec.md §4.4).
	WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error

	Insert(ctx context.Context, tx pgx.Tx, o domain.Order) error
	Get(ctx context.Context, id string) (domain.Order, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (domain.Order, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, o domain.Order) error

	// PendingForUser returns orders for userID whose status is in the
	// payment-capable set (or Pending), locked for update, for C6's
	// cascade.
	PendingForUser(ctx context.Context, tx pgx.Tx, userID string) ([]domain.Order, error)

	// ExpirableBatch returns up to limit orders in a payment-capable
	// status whose deadline has passed, for C7's scanner.
	ExpirableBatch(ctx context.Context, tx pgx.Tx, limit int) ([]domain.Order, error)
}

// UserClient is the C4 peer-service probe used by Create-Order to confirm
// the owning user exists and is Active (spec.md §4.4/§9). On a 200 the bool
// reports whether the user's status is Active. A non-nil error wraps
// platformerrors.ErrValidation (404, the user does not exist),
// platformerrors.ErrTransient (5xx, other non-200 statuses, network or
// decode failures), platformerrors.ErrCancelled (caller disconnected), or
// platformerrors.ErrInternal (the request could not be built) — C4 maps
// these straight onto the HTTP response.
type UserClient interface {
	IsActiveUser(ctx context.Context, userID string) (bool, error)
}
