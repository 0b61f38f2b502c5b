package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second
const wsPingInterval = 30 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsOrder streams every event published on order:{handle} to the
// caller over a WebSocket connection.
func (h *Handler) wsOrder(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	if _, err := h.orders.Get(r.Context(), handle); err != nil {
		writeAppError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	msgs, closeSub := h.bus.SubscribeOrder(r.Context(), handle)
	defer closeSub()

	h.streamMessages(conn, msgs)
}

// wsRates streams every rate update published on the global rates
// channel over a WebSocket connection.
func (h *Handler) wsRates(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	msgs, closeSub := h.bus.SubscribeRates(r.Context())
	defer closeSub()

	h.streamMessages(conn, msgs)
}

// streamMessages relays Redis pub/sub payloads onto the WebSocket
// connection verbatim until the subscription channel closes or a write
// fails, sending a ping on wsPingInterval idle ticks to detect a dead
// peer per gorilla/websocket's documented keepalive pattern.
func (h *Handler) streamMessages(conn *websocket.Conn, msgs <-chan *redis.Message) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
