// Package http wires the Users chi.Router, mirroring internal/order/http.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ordersync/platform/internal/user/application"
	"github.com/ordersync/platform/internal/user/domain"
	"github.com/ordersync/platform/pkg/httpapi"
	"github.com/ordersync/platform/pkg/outbox"
	"github.com/ordersync/platform/pkg/platformerrors"
	"github.com/ordersync/platform/pkg/txwatchdog"
)

// Handler serves the Users HTTP command surface of spec.md §6.
type Handler struct {
	log         *slog.Logger
	service     *application.Service
	outboxStore *outbox.Store
	tracer      trace.Tracer
}

// NewHandler builds a Handler.
func NewHandler(log *slog.Logger, service *application.Service, outboxStore *outbox.Store) *Handler {
	return &Handler{
		log:         log,
		service:     service,
		outboxStore: outboxStore,
		tracer:      otel.Tracer("user-http"),
	}
}

// Routes mounts every endpoint this service owns.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/api/users", h.createUser)
	r.Get("/api/users/{id}", h.getUser)
	r.Patch("/api/users/{id}/status", h.changeUserStatus)
	r.Get("/api/outbox/unsent", h.outboxUnsent)
	r.Post("/api/outbox/mark-sent/{id}", h.outboxMarkSent)
	r.Post("/api/outbox/increment-retry/{id}", h.outboxIncrementRetry)
	return r
}

type userResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Status string `json:"status"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Status: string(u.Status)}
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateUser")
	defer span.End()

	var req createUserRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	if err := req.Validate(); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	u, err := h.service.CreateUser(ctx, application.CreateUserInput{Name: req.Name, Email: req.Email})
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusCreated, toUserResponse(u))
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetUser")
	defer span.End()

	u, err := h.service.GetUser(ctx, chi.URLParam(r, "id"))
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toUserResponse(u))
}

func (h *Handler) changeUserStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ChangeUserStatus")
	defer span.End()

	var req changeUserStatusRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	if err := req.Validate(); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	err := h.service.ChangeUserStatus(ctx, application.ChangeUserStatusInput{
		UserID: chi.URLParam(r, "id"),
		Target: domain.Status(req.Status),
		Reason: req.Reason,
	})
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// outboxUnsent, outboxMarkSent and outboxIncrementRetry are the operational
// endpoints of spec.md §6, identical in shape to internal/order/http's: each
// service's outbox is local to its own schema.

func (h *Handler) outboxUnsent(w http.ResponseWriter, r *http.Request) {
	max := 100
	if v := r.URL.Query().Get("max"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			max = n
		}
	}
	var rows []outbox.Row
	err := txwatchdog.Run(r.Context(), txwatchdog.DefaultTimeout, func(ctx context.Context) error {
		var err error
		rows, err = h.outboxStore.Unsent(ctx, max)
		return err
	})
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, rows)
}

func (h *Handler) outboxMarkSent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpapi.WriteError(w, h.log, platformerrors.Wrap(platformerrors.ErrValidation, "invalid outbox id"))
		return
	}
	err = txwatchdog.Run(r.Context(), txwatchdog.DefaultTimeout, func(ctx context.Context) error {
		if _, err := h.outboxStore.Get(ctx, id); err != nil {
			return err
		}
		return h.outboxStore.MarkSent(ctx, id)
	})
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) outboxIncrementRetry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpapi.WriteError(w, h.log, platformerrors.Wrap(platformerrors.ErrValidation, "invalid outbox id"))
		return
	}
	err = txwatchdog.Run(r.Context(), txwatchdog.DefaultTimeout, func(ctx context.Context) error {
		row, err := h.outboxStore.Get(ctx, id)
		if err != nil {
			return err
		}
		return h.outboxStore.MarkFailed(ctx, id, row.RetryCount+1, "manual retry increment", false)
	})
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
