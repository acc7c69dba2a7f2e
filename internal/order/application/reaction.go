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

// UserStatusChanged mirrors the users.status-changed wire payload this
// service consumes (see internal/order/kafka.Consumer).
type UserStatusChanged struct {
	EventID    string `json:"eventId"`
	OccurredAt time.Time `json:"occurredAt"`
	UserID     string `json:"userId"`
	OldStatus  string `json:"oldStatus"`
	NewStatus  string `json:"newStatus"`
	Reason     string `json:"reason,omitempty"`
}

// ReactionHandler applies an incoming users.status-changed event to local
// Orders state. It is the C6 component: idempotent under replay, re-reads
// state inside its own transaction before mutating.
type ReactionHandler struct {
	log  *slog.Logger
	repo Repository
	outboxStore outbox.Appender
}

// NewReactionHandler builds a ReactionHandler.
func NewReactionHandler(log *slog.Logger, repo Repository, outboxStore outbox.Appender) *ReactionHandler {
	return &ReactionHandler{log: log, repo: repo, outboxStore: outboxStore}
}

// HandleUserStatusChanged implements spec.md §4.6's canonical reaction: on
// newStatus=Inactive, cancel every still-eligible order for the user inside
// one transaction, emitting exactly one orders.cancelled row per order.
// Any other newStatus is ignored. Replaying the same event is safe: each
// order is re-checked against its current status under the transaction, so
// an already-Cancelled order is simply skipped and no duplicate outbox row
// is written.
func (h *ReactionHandler) HandleUserStatusChanged(ctx context.Context, ev UserStatusChanged) error {
	if ev.NewStatus != "inactive" {
		return nil
	}

	return h.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		orders, err := h.repo.PendingForUser(ctx, tx, ev.UserID)
		if err != nil {
			return err
		}

		cancelled := 0
		for _, o := range orders {
			if !domain.PaymentCapable[o.Status] && o.Status != domain.StatusPending {
				continue
			}

			o.Cancel()
			if err := h.repo.UpdateStatus(ctx, tx, o); err != nil {
				return err
			}

			payload, err := json.Marshal(domain.Cancelled{
				EventID:    uuid.NewString(),
				OccurredAt: time.Now().UTC(),
				OrderID:    o.ID,
				UserID:     ev.UserID,
				Reason:     domain.ReasonUserInactivated,
			})
			if err != nil {
				return platformerrors.Wrap(platformerrors.ErrInternal, "marshal orders.cancelled: "+err.Error())
			}

			if err := h.outboxStore.Append(ctx, tx, outbox.NewEvent{
				EventType:   "orders.cancelled",
				AggregateID: o.ID,
				Payload:     payload,
			}); err != nil {
				return err
			}
			cancelled++
		}

		h.log.Info("user inactivation cascade applied",
			"user_id", ev.UserID, "event_id", ev.EventID, "orders_cancelled", cancelled)
		return nil
	})
}
