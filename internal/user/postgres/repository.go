// Package postgres is the C4 persistence adapter for the Users domain,
// schema userflow.
package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ordersync/platform/internal/user/domain"
	"github.com/ordersync/platform/pkg/platformerrors"
)

// Repository implements internal/user/application.Repository against
// userflow.users.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

// NewRepository builds a Repository.
func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// WithTx runs fn inside one transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
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

// Insert writes a new User row.
func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, u domain.User) error {
	sql := `INSERT INTO userflow.users (id, name, email, status, created_at) VALUES ($1, $2, $3, $4, now())`
	if _, err := tx.Exec(ctx, sql, u.ID, u.Name, u.Email, u.Status); err != nil {
		return platformerrors.Wrap(platformerrors.ErrTransient, "insert user: "+err.Error())
	}
	return nil
}

const selectUserSQL = `SELECT id, name, email, status FROM userflow.users`

// Get fetches a User by id outside any transaction, for GET /api/users/{id}.
func (r *Repository) Get(ctx context.Context, id string) (domain.User, error) {
	row := r.pool.QueryRow(ctx, selectUserSQL+` WHERE id = $1`, id)
	return scanUser(row)
}

// GetForUpdate fetches a User by id with a row lock, for the status-change
// command.
func (r *Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (domain.User, error) {
	row := tx.QueryRow(ctx, selectUserSQL+` WHERE id = $1 FOR UPDATE`, id)
	return scanUser(row)
}

// GetByEmail fetches a User by email under the caller's transaction, for
// CreateUser's uniqueness check.
func (r *Repository) GetByEmail(ctx context.Context, tx pgx.Tx, email string) (domain.User, error) {
	row := tx.QueryRow(ctx, selectUserSQL+` WHERE email = $1`, email)
	return scanUser(row)
}

// UpdateStatus persists a User's mutated status.
func (r *Repository) UpdateStatus(ctx context.Context, tx pgx.Tx, u domain.User) error {
	sql := `UPDATE userflow.users SET status = $2 WHERE id = $1`
	if _, err := tx.Exec(ctx, sql, u.ID, u.Status); err != nil {
		return platformerrors.Wrap(platformerrors.ErrTransient, "update user status: "+err.Error())
	}
	return nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Status); err != nil {
		if err == pgx.ErrNoRows {
			return domain.User{}, platformerrors.ErrNotFound
		}
		return domain.User{}, platformerrors.Wrap(platformerrors.ErrTransient, "scan user: "+err.Error())
	}
	return u, nil
}
