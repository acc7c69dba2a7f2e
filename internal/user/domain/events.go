package domain

import "time"

// Created is the users.created wire payload (spec §3).
type Created struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// StatusChanged is the users.status-changed wire payload (spec §3). It is
// the event internal/order/kafka.Consumer subscribes to.
type StatusChanged struct {
	EventID    string    `json:"eventId"`
	OccurredAt time.Time `json:"occurredAt"`
	UserID     string    `json:"userId"`
	OldStatus  Status    `json:"oldStatus"`
	NewStatus  Status    `json:"newStatus"`
	Reason     string    `json:"reason,omitempty"`
}
