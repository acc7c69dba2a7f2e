package relay

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBroadcastDeliversToAllRegisteredClients(t *testing.T) {
	h := NewHub(newTestLogger())
	a := h.register()
	b := h.register()

	h.Broadcast(Message{Topic: "orders.created", Payload: []byte(`{"id":"o-1"}`)})

	for _, c := range []*client{a, b} {
		select {
		case msg := <-c.send:
			if msg.Topic != "orders.created" {
				t.Fatalf("topic = %q, want orders.created", msg.Topic)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for broadcast delivery")
		}
	}
}

func TestUnregisterStopsDelivery(t *testing.T) {
	h := NewHub(newTestLogger())
	c := h.register()
	h.unregister(c)

	h.Broadcast(Message{Topic: "orders.created", Payload: []byte("x")})

	if _, ok := <-c.send; ok {
		t.Fatal("expected closed channel after unregister, got a value")
	}
}

func TestBroadcastDisconnectsClientWithFullBuffer(t *testing.T) {
	h := NewHub(newTestLogger())
	c := h.register()

	for i := 0; i < clientBufferSize; i++ {
		h.Broadcast(Message{Topic: "t", Payload: []byte("x")})
	}
	// One more delivery should find the buffer full and disconnect c.
	h.Broadcast(Message{Topic: "t", Payload: []byte("x")})

	deadline := time.After(time.Second)
	for {
		h.mu.RLock()
		_, stillRegistered := h.clients[c]
		h.mu.RUnlock()
		if !stillRegistered {
			return
		}
		select {
		case <-deadline:
			t.Fatal("client was not disconnected after its buffer filled")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
