// Package http wires the Orders chi.Router: DTO decode/validate, span per
// request (grounded on the teacher's handler.go), and platformerrors-based
// status mapping in place of the teacher's bare http.Error.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ordersync/platform/internal/order/application"
	"github.com/ordersync/platform/internal/order/domain"
	"github.com/ordersync/platform/pkg/httpapi"
	"github.com/ordersync/platform/pkg/outbox"
	"github.com/ordersync/platform/pkg/platformerrors"
	"github.com/ordersync/platform/pkg/txwatchdog"
)

// Handler serves the Orders HTTP command surface of spec.md §6.
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
		tracer:      otel.Tracer("order-http"),
	}
}

// Routes mounts every endpoint this service owns.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/api/orders", h.createOrder)
	r.Get("/api/orders/{id}", h.getOrder)
	r.Patch("/api/orders/{id}/status", h.updateOrderStatus)
	r.Get("/api/outbox/unsent", h.outboxUnsent)
	r.Post("/api/outbox/mark-sent/{id}", h.outboxMarkSent)
	r.Post("/api/outbox/increment-retry/{id}", h.outboxIncrementRetry)
	return r
}

type createOrderRequest struct {
	UserID   string `json:"userId"`
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

type orderResponse struct {
	ID          string  `json:"id"`
	UserID      string  `json:"userId"`
	Product     string  `json:"product"`
	Quantity    int     `json:"quantity"`
	Price       string  `json:"price"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"createdAt"`
	ExpiresAt   string  `json:"expiresAt"`
	CancelledAt *string `json:"cancelledAt,omitempty"`
}

func toOrderResponse(o domain.Order) orderResponse {
	resp := orderResponse{
		ID:        o.ID,
		UserID:    o.UserID,
		Product:   o.Product,
		Quantity:  o.Quantity,
		Price:     o.Price.String(),
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt.Format("2006-01-02T15:04:05.999999999Z07:00"),
		ExpiresAt: o.ExpiresAt.Format("2006-01-02T15:04:05.999999999Z07:00"),
	}
	if o.CancelledAt != nil {
		s := o.CancelledAt.Format("2006-01-02T15:04:05.999999999Z07:00")
		resp.CancelledAt = &s
	}
	return resp
}

func parseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req createOrderRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	if err := req.Validate(); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	price, err := parseDecimal(req.Price)
	if err != nil {
		httpapi.WriteError(w, h.log, platformerrors.Wrap(platformerrors.ErrValidation, "invalid price: "+err.Error()))
		return
	}

	o, err := h.service.CreateOrder(ctx, application.CreateOrderInput{
		UserID:   req.UserID,
		Product:  req.Product,
		Quantity: req.Quantity,
		Price:    price,
	})
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	o, err := h.service.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toOrderResponse(o))
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateOrderStatus")
	defer span.End()

	var req updateOrderStatusRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	if err := req.Validate(); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	err := h.service.UpdateOrderStatus(ctx, application.UpdateOrderStatusInput{
		OrderID: chi.URLParam(r, "id"),
		Target:  domain.Status(req.Status),
		Reason:  req.Reason,
	})
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// outboxUnsent, outboxMarkSent and outboxIncrementRetry are the operational
// endpoints of spec.md §6, generalizing the teacher's MarkSent/MarkFailed
// onto an HTTP surface so a pull-based dispatcher variant remains possible.

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
