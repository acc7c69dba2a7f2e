package relay

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser dashboards are expected from any origin during development;
	// the relay carries no credentials, only already-public event payloads.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const writeWait = 5 * time.Second

// Handler upgrades GET /ws to a WebSocket, registers the connection with the
// Hub, and streams every broadcast Message to it until the connection drops.
func Handler(log *slog.Logger, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("websocket upgrade failed", "err", err)
			return
		}
		defer conn.Close()

		c := hub.register()
		defer hub.unregister(c)

		// Drain and discard anything the client sends; this is a push-only
		// channel. Reading is what detects the client going away.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for msg := range c.send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}
