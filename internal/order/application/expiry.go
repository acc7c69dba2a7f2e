package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ordersync/platform/internal/order/domain"
	"github.com/ordersync/platform/pkg/outbox"
	"github.com/ordersync/platform/pkg/platformerrors"
)

// ExpiryScanner is the C7 periodic worker: find orders past their deadline
// and transition them to Expired, appending an orders.cancelled outbox row
// with reason="timeout" for each (spec.md §4.7). There is no teacher
// counterpart for this component; it follows the same Service-wrapping-
// Repository idiom as commands.go and reaction.go.
type ExpiryScanner struct {
	log   *slog.Logger
	repo  Repository
	outboxStore outbox.Appender

	pollInterval time.Duration
	batchSize    int
}

// NewExpiryScanner builds an ExpiryScanner. Defaults match spec.md §4.7:
// poll 5s, batch 50.
func NewExpiryScanner(log *slog.Logger, repo Repository, outboxStore outbox.Appender, pollInterval time.Duration, batchSize int) *ExpiryScanner {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &ExpiryScanner{log: log, repo: repo, outboxStore: outboxStore, pollInterval: pollInterval, batchSize: batchSize}
}

// Run loops until ctx is cancelled. A cycle-level error sleeps one full
// poll interval before retrying, to avoid a tight error loop (§4.7).
func (e *ExpiryScanner) Run(ctx context.Context) error {
	t := time.NewTicker(e.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("expiry scanner stopping")
			return nil
		case <-t.C:
			if err := e.runCycle(ctx); err != nil {
				e.log.Error("expiry scanner cycle failed", "err", err)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(e.pollInterval):
				}
			}
		}
	}
}

func (e *ExpiryScanner) runCycle(ctx context.Context) error {
	return e.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		now := time.Now().UTC()
		candidates, err := e.repo.ExpirableBatch(ctx, tx, e.batchSize)
		if err != nil {
			return err
		}

		for _, o := range candidates {
			if !o.IsExpirable(now) {
				continue
			}

			o.Expire()
			if err := e.repo.UpdateStatus(ctx, tx, o); err != nil {
				return err
			}

			payload, err := json.Marshal(domain.Cancelled{
				EventID:    uuid.NewString(),
				OccurredAt: now,
				OrderID:    o.ID,
				UserID:     o.UserID,
				Reason:     domain.ReasonTimeout,
			})
			if err != nil {
				return platformerrors.Wrap(platformerrors.ErrInternal, "marshal orders.cancelled: "+err.Error())
			}

			if err := e.outboxStore.Append(ctx, tx, outbox.NewEvent{
				EventType:   "orders.cancelled",
				AggregateID: o.ID,
				Payload:     payload,
			}); err != nil {
				return err
			}
		}

		if len(candidates) > 0 {
			e.log.Info("expiry scan cycle", "candidates", len(candidates))
		}
		return nil
	})
}
