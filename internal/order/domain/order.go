// Package domain holds the Order aggregate: its shape, status lifecycle,
// and the constructor/mutators that keep its invariants.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the Order lifecycle, the union listed in spec.md §3.
type Status string

const (
	StatusPending        Status = "pending"
	StatusPendingPayment Status = "pending_payment"
	StatusReady          Status = "ready"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusExpired        Status = "expired"
)

// ValidStatuses is used by the application layer's UpdateOrderStatus to
// reject unknown target statuses on PATCH /api/orders/{id}/status.
var ValidStatuses = map[Status]bool{
	StatusPending:        true,
	StatusPendingPayment: true,
	StatusReady:          true,
	StatusCompleted:      true,
	StatusCancelled:      true,
	StatusExpired:        true,
}

// PaymentCapable is the set of statuses eligible for both the C6 user-
// inactivation cascade and the C7 expiry scan (spec.md §4.6/§4.7).
var PaymentCapable = map[Status]bool{
	StatusPendingPayment: true,
	StatusReady:          true,
}

// Order is the Orders-domain aggregate root.
type Order struct {
	ID          string
	UserID      string
	Product     string
	Quantity    int
	Price       decimal.Decimal
	Status      Status
	CreatedAt   time.Time
	ExpiresAt   time.Time
	CancelledAt *time.Time
}

// New constructs a Pending order with its expiry deadline set to
// now+expiresIn (default 15 minutes, spec.md §3).
func New(id, userID, product string, quantity int, price decimal.Decimal, expiresIn time.Duration) Order {
	now := time.Now().UTC()
	return Order{
		ID:        id,
		UserID:    userID,
		Product:   product,
		Quantity:  quantity,
		Price:     price,
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(expiresIn),
	}
}

// Cancel transitions the order to Cancelled and stamps CancelledAt, the
// mutation shared by the C6 reaction handler and C4's update-status command.
func (o *Order) Cancel() {
	now := time.Now().UTC()
	o.Status = StatusCancelled
	o.CancelledAt = &now
}

// Expire transitions the order to Expired. Unlike Cancel, spec.md §3 does
// not require a cancellation timestamp here — only a Cancelled order must
// carry one — though the expiry event still reports reason="timeout".
func (o *Order) Expire() {
	o.Status = StatusExpired
}

// IsExpirable reports whether o is a candidate for the C7 scanner: in a
// payment-capable status with a deadline already passed.
func (o *Order) IsExpirable(now time.Time) bool {
	return PaymentCapable[o.Status] && now.After(o.ExpiresAt)
}
