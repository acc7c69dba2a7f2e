package application

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ordersync/platform/internal/user/domain"
	"github.com/ordersync/platform/pkg/outbox"
	"github.com/ordersync/platform/pkg/platformerrors"
	"github.com/ordersync/platform/pkg/txwatchdog"
)

// Service is the C4 command handler for the Users domain.
type Service struct {
	repo        Repository
	outboxStore outbox.Appender
}

// NewService builds a Service.
func NewService(repo Repository, outboxStore outbox.Appender) *Service {
	return &Service{repo: repo, outboxStore: outboxStore}
}

// CreateUserInput is the validated shape of a POST /api/users command.
// Shape validation (non-empty name, syntactically valid email) happens at
// the HTTP DTO layer via jellydator/validation; Service only enforces the
// domain invariant (unique email) that requires a database round trip.
type CreateUserInput struct {
	Name  string
	Email string
}

// CreateUser implements spec.md §4.4: inside one transaction, reject a
// duplicate email with Conflict, else insert the User Active and append its
// outbox row.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (domain.User, error) {
	u := domain.New(uuid.NewString(), in.Name, in.Email)

	err := txwatchdog.Run(ctx, txwatchdog.DefaultTimeout, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
			_, err := s.repo.GetByEmail(ctx, tx, in.Email)
			if err == nil {
				return platformerrors.Wrap(platformerrors.ErrConflict, "email already registered")
			}
			if !errors.Is(err, platformerrors.ErrNotFound) {
				return err
			}

			if err := s.repo.Insert(ctx, tx, u); err != nil {
				return err
			}

			payload, err := json.Marshal(domain.Created{ID: u.ID, Name: u.Name, Email: u.Email})
			if err != nil {
				return platformerrors.Wrap(platformerrors.ErrInternal, "marshal users.created: "+err.Error())
			}

			return s.outboxStore.Append(ctx, tx, outbox.NewEvent{
				EventType:   "users.created",
				AggregateID: u.ID,
				Payload:     payload,
			})
		})
	})
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// GetUser fetches a single user by id for GET /api/users/{id}.
func (s *Service) GetUser(ctx context.Context, id string) (domain.User, error) {
	return s.repo.Get(ctx, id)
}

// ChangeUserStatusInput is the validated shape of a PATCH
// /api/users/{id}/status command.
type ChangeUserStatusInput struct {
	UserID string
	Target domain.Status
	Reason string
}

// ChangeUserStatus implements spec.md §4.4: look up, validate, no-op on an
// unchanged status, otherwise mutate and append a users.status-changed
// outbox row, all in one transaction.
func (s *Service) ChangeUserStatus(ctx context.Context, in ChangeUserStatusInput) error {
	if !domain.ValidStatuses[in.Target] {
		return platformerrors.Wrap(platformerrors.ErrValidation, "unknown user status: "+string(in.Target))
	}

	return txwatchdog.Run(ctx, txwatchdog.DefaultTimeout, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
			u, err := s.repo.GetForUpdate(ctx, tx, in.UserID)
			if err != nil {
				return err
			}

			if u.Status == in.Target {
				return nil
			}

			old := u.Status
			u.Status = in.Target

			if err := s.repo.UpdateStatus(ctx, tx, u); err != nil {
				return err
			}

			payload, err := json.Marshal(domain.StatusChanged{
				EventID:    uuid.NewString(),
				OccurredAt: time.Now().UTC(),
				UserID:     u.ID,
				OldStatus:  old,
				NewStatus:  u.Status,
				Reason:     in.Reason,
			})
			if err != nil {
				return platformerrors.Wrap(platformerrors.ErrInternal, "marshal users.status-changed: "+err.Error())
			}

			return s.outboxStore.Append(ctx, tx, outbox.NewEvent{
				EventType:   "users.status-changed",
				AggregateID: u.ID,
				Payload:     payload,
			})
		})
	})
}
