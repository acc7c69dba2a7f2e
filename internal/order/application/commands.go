package application

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ordersync/platform/internal/order/domain"
	"github.com/ordersync/platform/pkg/outbox"
	"github.com/ordersync/platform/pkg/platformerrors"
	"github.com/ordersync/platform/pkg/txwatchdog"
)

// Service is the C4 command handler for the Orders domain. The C6 reaction
// handler and C7 scanner live in this package as their own types
// (ReactionHandler in reaction.go, ExpiryScanner in expiry.go) and depend on
// the same Repository/outbox.Appender ports.
type Service struct {
	repo       Repository
	outboxStore outbox.Appender
	userClient UserClient
	expiresIn  time.Duration
}

// NewService builds a Service. expiresIn is the default order expiry
// window (spec.md §3: creation + 15 minutes) taken from
// ORDER_EXPIRY_DEFAULT_MINUTES.
func NewService(repo Repository, outboxStore outbox.Appender, userClient UserClient, expiresIn time.Duration) *Service {
	return &Service{repo: repo, outboxStore: outboxStore, userClient: userClient, expiresIn: expiresIn}
}

// CreateOrderInput is the validated shape of a POST /api/orders command.
type CreateOrderInput struct {
	UserID   string
	Product  string
	Quantity int
	Price    decimal.Decimal
}

// CreateOrder implements spec.md §4.4: probe the peer user-service, then
// insert the order and append its outbox row in one local transaction.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	if in.Quantity < 1 {
		return domain.Order{}, platformerrors.Wrap(platformerrors.ErrValidation, "quantity must be at least 1")
	}
	if in.Price.LessThanOrEqual(decimal.Zero) {
		return domain.Order{}, platformerrors.Wrap(platformerrors.ErrValidation, "price must be positive")
	}
	if in.Product == "" {
		return domain.Order{}, platformerrors.Wrap(platformerrors.ErrValidation, "product is required")
	}

	active, err := s.userClient.IsActiveUser(ctx, in.UserID)
	if err != nil {
		return domain.Order{}, err
	}
	if !active {
		return domain.Order{}, platformerrors.Wrap(platformerrors.ErrValidation, "user is not active")
	}

	o := domain.New(uuid.NewString(), in.UserID, in.Product, in.Quantity, in.Price, s.expiresIn)

	err = txwatchdog.Run(ctx, txwatchdog.DefaultTimeout, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
			if err := s.repo.Insert(ctx, tx, o); err != nil {
				return err
			}

			payload, err := json.Marshal(domain.Created{
				ID:       o.ID,
				UserID:   o.UserID,
				Product:  o.Product,
				Quantity: o.Quantity,
				Price:    o.Price.String(),
				Status:   o.Status,
			})
			if err != nil {
				return platformerrors.Wrap(platformerrors.ErrInternal, "marshal orders.created: "+err.Error())
			}

			return s.outboxStore.Append(ctx, tx, outbox.NewEvent{
				EventType:   "orders.created",
				AggregateID: o.ID,
				Payload:     payload,
			})
		})
	})
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

// GetOrder fetches a single order by id for GET /api/orders/{id}.
func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return s.repo.Get(ctx, id)
}

// UpdateOrderStatusInput is the validated shape of a PATCH
// /api/orders/{id}/status command.
type UpdateOrderStatusInput struct {
	OrderID string
	Target  domain.Status
	Reason  string
}

// UpdateOrderStatus implements spec.md §4.4: look up, validate, no-op on an
// unchanged status, otherwise mutate and append an orders.status-changed
// outbox row, all in one transaction.
func (s *Service) UpdateOrderStatus(ctx context.Context, in UpdateOrderStatusInput) error {
	if !domain.ValidStatuses[in.Target] {
		return platformerrors.Wrap(platformerrors.ErrValidation, "unknown order status: "+string(in.Target))
	}

	return txwatchdog.Run(ctx, txwatchdog.DefaultTimeout, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
			o, err := s.repo.GetForUpdate(ctx, tx, in.OrderID)
			if err != nil {
				return err
			}

			if o.Status == in.Target {
				return nil
			}

			old := o.Status
			if in.Target == domain.StatusCancelled {
				o.Cancel()
			} else {
				o.Status = in.Target
				o.CancelledAt = nil
			}

			if err := s.repo.UpdateStatus(ctx, tx, o); err != nil {
				return err
			}

			payload, err := json.Marshal(domain.StatusChanged{
				EventID:    uuid.NewString(),
				OccurredAt: time.Now().UTC(),
				OrderID:    o.ID,
				OldStatus:  old,
				NewStatus:  o.Status,
				Reason:     in.Reason,
			})
			if err != nil {
				return platformerrors.Wrap(platformerrors.ErrInternal, "marshal orders.status-changed: "+err.Error())
			}

			return s.outboxStore.Append(ctx, tx, outbox.NewEvent{
				EventType:   "orders.status-changed",
				AggregateID: o.ID,
				Payload:     payload,
			})
		})
	})
}
