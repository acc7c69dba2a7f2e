// Package outbox implements the transactional outbox protocol shared by the
// user and order services: Store persists rows atomically with domain
// state, Publisher delivers a row to the bus, and Drainer ties the two
// together as a periodic worker.
package outbox

import "time"

// Row is a durable record of an intended domain event, colocated with the
// domain change that produced it. SentAt is nil while the row is still
// eligible for delivery; once set the row is effectively immutable.
// RelayID/LeaseUntil implement the row-level lock of design note §9 option
// (a): a drainer claims a batch by stamping its own id and an expiry, which
// excludes other drainers until the lease lapses.
type Row struct {
	ID          int64
	EventType   string
	AggregateID string
	Payload     []byte
	Traceparent string
	RetryCount  int
	LastError   string
	CreatedAt   time.Time
	SentAt      *time.Time
	LeaseUntil  *time.Time
	RelayID     string
}

// Sent reports whether the row has left the delivery pool, either because
// it was published or because it was permanently given up on.
func (r Row) Sent() bool {
	return r.SentAt != nil
}

// NewEvent is the event-payload envelope passed to Store.Append. The caller
// builds the wire payload (e.g. users.created{id,name,email}); Append only
// knows about the outbox row shape.
type NewEvent struct {
	EventType   string
	AggregateID string
	Payload     []byte
	Traceparent string
}
