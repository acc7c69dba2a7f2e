// Package relay implements C8, the fan-out relay: an external collaborator
// (cmd/fanout-relay) that subscribes to every core topic plus the
// dead-letter topic and pushes each record to connected browser clients.
// It carries no business logic, only a client registry and broadcast.
package relay

import (
	"log/slog"
	"sync"
)

// Message is the wire shape pushed to every connected client (spec.md §4.8).
type Message struct {
	Topic   string `json:"topic"`
	Payload []byte `json:"rawPayload"`
}

// clientBufferSize bounds how far a client can lag before the hub gives up
// on it rather than blocking the broadcaster — the same "never let one bad
// row stop the cycle" philosophy as C3's drainer (SPEC_FULL §4.8).
const clientBufferSize = 64

// client is one connected WebSocket session, identified by its send channel.
type client struct {
	send chan Message
}

// Hub is the client registry and broadcaster. One Hub per fanout-relay
// process.
type Hub struct {
	log *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub builds an empty Hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{log: log, clients: make(map[*client]struct{})}
}

// register adds a client and returns it.
func (h *Hub) register() *client {
	c := &client{send: make(chan Message, clientBufferSize)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.log.Info("relay client connected", "clients", count)
	return c
}

// unregister removes a client and closes its send channel.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	h.log.Info("relay client disconnected", "clients", count)
}

// Broadcast pushes msg to every connected client. A client whose buffer is
// full is disconnected rather than allowed to block the broadcaster.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warn("relay client buffer full, disconnecting")
			go h.unregister(c)
		}
	}
}
