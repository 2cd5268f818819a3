package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/deriv-labs/fraud-triage/pushbus"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// subscribeFrame is the one message a client is expected to send
// after connecting, naming the topics it wants.
type subscribeFrame struct {
	Topics []string `json:"topics"`
}

// WebSocket is the Push Bus's live transport, mounted at /ws-fraud.
// Each connection gets a dedicated writer goroutine pumping Bus
// frames out, with ping/pong keepalive and a write deadline per the
// gorilla/websocket hub pattern.
type WebSocket struct {
	Bus *pushbus.Bus
	Log zerolog.Logger
}

// Serve upgrades the request and pumps Push Bus frames to the client
// until it disconnects.
func (h *WebSocket) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	topics := h.awaitSubscription(conn)
	sub := h.Bus.Subscribe(topics...)
	defer h.Bus.Unsubscribe(sub)

	h.pump(conn, sub)
}

func (h *WebSocket) awaitSubscription(conn *websocket.Conn) []string {
	var frame subscribeFrame
	if err := conn.ReadJSON(&frame); err != nil {
		return nil // subscribe to everything if the client sends nothing useful
	}
	return frame.Topics
}

func (h *WebSocket) pump(conn *websocket.Conn, sub *pushbus.Subscriber) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		select {
		case frame, ok := <-sub.C():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
