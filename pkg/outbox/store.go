package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ordersync/platform/pkg/platformerrors"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so Append can run
// either standalone or, more usually, as one statement inside a caller's
// transaction alongside the domain-row write.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Appender is the subset of Store the application layer depends on to
// write outbox rows, kept narrow so command handlers, the reaction handler
// and the expiry scanner can be unit tested against a fake instead of a
// real Postgres pool.
type Appender interface {
	Append(ctx context.Context, q Querier, ev NewEvent) error
}

// Store is the C1 Postgres-backed outbox store. One instance per service,
// scoped to that service's schema (userflow.outbox or orderflow.outbox).
type Store struct {
	pool   *pgxpool.Pool
	schema string
}

// NewStore builds a Store against the given schema (e.g. "userflow").
func NewStore(pool *pgxpool.Pool, schema string) *Store {
	return &Store{pool: pool, schema: schema}
}

func (s *Store) table() string {
	return s.schema + ".outbox"
}

// Append inserts a pending row using q, so callers run it inside the same
// transaction as the domain-state mutation. The row becomes durable if and
// only if the enclosing transaction commits.
func (s *Store) Append(ctx context.Context, q Querier, ev NewEvent) error {
	sql := `INSERT INTO ` + s.table() + `
		(event_type, aggregate_id, payload, traceparent, retry_count, created_at)
		VALUES ($1, $2, $3, $4, 0, now())`
	if _, err := q.Exec(ctx, sql, ev.EventType, ev.AggregateID, ev.Payload, ev.Traceparent); err != nil {
		return platformerrors.Wrap(platformerrors.ErrTransient, "outbox append: "+err.Error())
	}
	return nil
}

// AcquireBatch claims up to n pending rows (sent_at null, retry_count at
// most maxRetries, so a row that has reached the cap is picked up once more
// for the publisher to dead-letter) ordered by creation time, stamping them
// with relayID and a
// lease that expires after leaseDuration. FOR UPDATE SKIP LOCKED lets more
// than one drainer instance run against the same table safely.
func (s *Store) AcquireBatch(ctx context.Context, relayID string, n int, leaseDuration time.Duration, maxRetries int) ([]Row, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.ErrTransient, "outbox acquire begin: "+err.Error())
	}
	defer func() { _ = tx.Rollback(ctx) }()

	selectSQL := `SELECT id FROM ` + s.table() + `
		WHERE sent_at IS NULL
		  AND retry_count <= $1
		  AND (lease_until IS NULL OR lease_until < now())
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`

	rows, err := tx.Query(ctx, selectSQL, maxRetries, n)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.ErrTransient, "outbox acquire select: "+err.Error())
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, platformerrors.Wrap(platformerrors.ErrInternal, "outbox acquire scan: "+err.Error())
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, platformerrors.Wrap(platformerrors.ErrTransient, "outbox acquire iterate: "+err.Error())
	}
	if len(ids) == 0 {
		return nil, nil
	}

	updateSQL := `UPDATE ` + s.table() + `
		SET lease_until = now() + $1::interval, relay_id = $2
		WHERE id = ANY($3)
		RETURNING id, event_type, aggregate_id, payload, traceparent, retry_count,
		          coalesce(last_error, ''), created_at, sent_at, lease_until, relay_id`

	claimed, err := tx.Query(ctx, updateSQL, leaseDuration, relayID, ids)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.ErrTransient, "outbox acquire claim: "+err.Error())
	}

	var out []Row
	for claimed.Next() {
		var r Row
		if err := claimed.Scan(&r.ID, &r.EventType, &r.AggregateID, &r.Payload, &r.Traceparent,
			&r.RetryCount, &r.LastError, &r.CreatedAt, &r.SentAt, &r.LeaseUntil, &r.RelayID); err != nil {
			claimed.Close()
			return nil, platformerrors.Wrap(platformerrors.ErrInternal, "outbox acquire scan claimed: "+err.Error())
		}
		out = append(out, r)
	}
	claimed.Close()
	if err := claimed.Err(); err != nil {
		return nil, platformerrors.Wrap(platformerrors.ErrTransient, "outbox acquire iterate claimed: "+err.Error())
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, platformerrors.Wrap(platformerrors.ErrTransient, "outbox acquire commit: "+err.Error())
	}
	return out, nil
}

// MarkSent sets sent_at to now; idempotent, safe to call on an already-sent
// row (no-op in effect).
func (s *Store) MarkSent(ctx context.Context, id int64) error {
	sql := `UPDATE ` + s.table() + ` SET sent_at = now(), lease_until = NULL WHERE id = $1 AND sent_at IS NULL`
	if _, err := s.pool.Exec(ctx, sql, id); err != nil {
		return platformerrors.Wrap(platformerrors.ErrTransient, "outbox mark sent: "+err.Error())
	}
	return nil
}

// MarkFailed records the retry/error state of a row. When permanent is true
// sent_at is also stamped so the row never drains again, whether or not the
// publisher's dead-letter write succeeded.
func (s *Store) MarkFailed(ctx context.Context, id int64, nextRetryCount int, errText string, permanent bool) error {
	sql := `UPDATE ` + s.table() + `
		SET retry_count = $2, last_error = $3, lease_until = NULL,
		    sent_at = CASE WHEN $4 THEN now() ELSE sent_at END
		WHERE id = $1`
	if _, err := s.pool.Exec(ctx, sql, id, nextRetryCount, errText, permanent); err != nil {
		return platformerrors.Wrap(platformerrors.ErrTransient, "outbox mark failed: "+err.Error())
	}
	return nil
}

// Unsent returns up to max rows that have not yet been sent, for the
// operational /api/outbox/unsent endpoint.
func (s *Store) Unsent(ctx context.Context, max int) ([]Row, error) {
	sql := `SELECT id, event_type, aggregate_id, payload, traceparent, retry_count,
	               coalesce(last_error, ''), created_at, sent_at, lease_until, relay_id
	        FROM ` + s.table() + `
	        WHERE sent_at IS NULL
	        ORDER BY created_at ASC
	        LIMIT $1`
	rows, err := s.pool.Query(ctx, sql, max)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.ErrTransient, "outbox unsent: "+err.Error())
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.EventType, &r.AggregateID, &r.Payload, &r.Traceparent,
			&r.RetryCount, &r.LastError, &r.CreatedAt, &r.SentAt, &r.LeaseUntil, &r.RelayID); err != nil {
			return nil, platformerrors.Wrap(platformerrors.ErrInternal, "outbox unsent scan: "+err.Error())
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, platformerrors.Wrap(platformerrors.ErrTransient, "outbox unsent iterate: "+err.Error())
	}
	return out, nil
}

// Get fetches a single row by id, for the operational mark-sent/increment-
// retry endpoints to confirm existence before acting.
func (s *Store) Get(ctx context.Context, id int64) (Row, error) {
	sql := `SELECT id, event_type, aggregate_id, payload, traceparent, retry_count,
	               coalesce(last_error, ''), created_at, sent_at, lease_until, relay_id
	        FROM ` + s.table() + ` WHERE id = $1`
	var r Row
	err := s.pool.QueryRow(ctx, sql, id).Scan(&r.ID, &r.EventType, &r.AggregateID, &r.Payload, &r.Traceparent,
		&r.RetryCount, &r.LastError, &r.CreatedAt, &r.SentAt, &r.LeaseUntil, &r.RelayID)
	if err == pgx.ErrNoRows {
		return Row{}, platformerrors.ErrNotFound
	}
	if err != nil {
		return Row{}, platformerrors.Wrap(platformerrors.ErrTransient, "outbox get: "+err.Error())
	}
	return r, nil
}

// Backlog reports the count of undelivered rows. Nothing in this repository
// calls it; the metrics.Registry backlog gauge is not fed from it.
func (s *Store) Backlog(ctx context.Context) (int64, error) {
	sql := `SELECT count(*) FROM ` + s.table() + ` WHERE sent_at IS NULL`
	var n int64
	if err := s.pool.QueryRow(ctx, sql).Scan(&n); err != nil {
		return 0, platformerrors.Wrap(platformerrors.ErrTransient, "outbox backlog: "+err.Error())
	}
	return n, nil
}
