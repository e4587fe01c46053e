package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamPushInterval = 2 * time.Second
	streamWriteWait    = 5 * time.Second
	streamPongWait     = 30 * time.Second
	streamPingInterval = (streamPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Dashboards are served from the same origin as this API in every
	// deployment this surface targets; cross-origin embedding isn't a
	// supported use case.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStatusStream upgrades to a WebSocket connection and pushes a
// fresh status snapshot every streamPushInterval until the client
// disconnects or a write fails.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("status stream upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(streamPongWait))
		return nil
	})
	go s.drainStreamReads(conn)

	ticker := time.NewTicker(streamPushInterval)
	defer ticker.Stop()
	pinger := time.NewTicker(streamPingInterval)
	defer pinger.Stop()

	for {
		select {
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(s.status.Status()); err != nil {
				return
			}
		case <-pinger.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drainStreamReads discards inbound frames so the read deadline above
// keeps advancing on pong replies; this endpoint is push-only and
// accepts no client commands.
func (s *Server) drainStreamReads(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
