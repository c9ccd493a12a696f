package broadcast

import (
	"context"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
	pongTimeout  = 60 * time.Second
)

// Server exposes the hub over a WebSocket endpoint. Each connection is
// one observer; its lifetime is bounded by the request context.
type Server struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// NewServer creates the WebSocket broadcast server.
func NewServer(hub *Hub, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Observers are read-only dashboards; any origin may attach.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeHTTP upgrades the connection and streams hub messages as JSON.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("[BROADCAST] upgrade failed: %v", err)
		return
	}

	id, ch := s.hub.Register()
	defer s.hub.Unregister(id)
	defer conn.Close()

	// Reader goroutine: observers send nothing, but reading surfaces
	// close frames and pong deadlines.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongTimeout))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pinger := time.NewTicker(pingInterval)
	defer pinger.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			return
		case <-pinger.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				s.logger.Printf("[BROADCAST] write to %s failed: %v", id, err)
				return
			}
		}
	}
}

// RunHeartbeat publishes a synthetic market-index tick on every
// interval where active() reports no live trade, so dashboards keep
// moving between positions. Blocks until ctx is cancelled.
func (h *Hub) RunHeartbeat(ctx context.Context, interval time.Duration, active func() bool) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	phase := 0.0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if active() {
				continue
			}
			phase += 0.1
			h.Tick(TickPayload{
				Mint:  "MARKET_INDEX",
				Price: 100 + 5*math.Sin(phase),
			})
		}
	}
}
