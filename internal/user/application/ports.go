package application

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ordersync/platform/internal/user/domain"
)

// Repository is the C4 persistence port for the Users domain.
type Repository interface {
	// WithTx runs fn inside one transaction, committing on nil error and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error

	Insert(ctx context.Context, tx pgx.Tx, u domain.User) error
	Get(ctx context.Context, id string) (domain.User, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (domain.User, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, u domain.User) error

	// GetByEmail reports platformerrors.ErrNotFound when no row matches, so
	// CreateUser can tell "free to use" apart from a lookup failure.
	GetByEmail(ctx context.Context, tx pgx.Tx, email string) (domain.User, error)
}
