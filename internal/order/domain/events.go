package domain

import "time"

// Created is the wire payload for the orders.created event (spec.md §3).
type Created struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
	Status   Status `json:"status"`
}

// Cancelled is the wire payload for the orders.cancelled event, emitted by
// the C6 reaction handler (reason="user_inactivated") and the C7 expiry
// scanner (reason="timeout"). C4's update-order-status command does not
// emit it, even for a transition to Cancelled.
type Cancelled struct {
	EventID    string    `json:"eventId"`
	OccurredAt time.Time `json:"occurredAt"`
	OrderID    string    `json:"orderId"`
	UserID     string    `json:"userId"`
	Reason     string    `json:"reason"`
}

// StatusChanged is the wire payload for orders.status-changed, emitted by
// C4's generic update-order-status command for every non-no-op
// transition, including a transition to Cancelled.
type StatusChanged struct {
	EventID    string    `json:"eventId"`
	OccurredAt time.Time `json:"occurredAt"`
	OrderID    string    `json:"orderId"`
	OldStatus  Status    `json:"oldStatus"`
	NewStatus  Status    `json:"newStatus"`
	Reason     string    `json:"reason,omitempty"`
}

// ReasonUserInactivated and friends are the canonical Reason values (§3).
// Free-form reasons are also accepted where C4 is driven by an operator.
const (
	ReasonUserInactivated = "user_inactivated"
	ReasonTimeout         = "timeout"
)
