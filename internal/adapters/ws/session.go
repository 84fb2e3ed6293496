// Package ws is the websocket session adapter: per-connection lifecycle from
// upgrade to deregistration.
//
// Each connection runs two goroutines. The read pump decodes inbound frames
// and hands them to the engine; the write pump drains the client's bounded
// queue so a slow peer never blocks anyone else's mutation path.
package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aretw0/stepsync/internal/hub"
	"github.com/aretw0/stepsync/internal/logging"
	"github.com/aretw0/stepsync/internal/runtime"
)

const (
	// writeWait bounds a single frame write to a peer.
	writeWait = 10 * time.Second
	// pongWait is how long a peer may stay silent before it is considered dead.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize bounds inbound frames. Commands are tiny; anything larger
	// is not this protocol.
	maxMessageSize = 4096
)

// Handler upgrades HTTP requests into sequencer sessions.
type Handler struct {
	engine    *runtime.Engine
	logger    *slog.Logger
	queueSize int
	upgrader  websocket.Upgrader
}

// Option configures the Handler.
type Option func(*Handler)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithQueueSize sets the per-client outbound queue bound.
func WithQueueSize(n int) Option {
	return func(h *Handler) {
		h.queueSize = n
	}
}

// NewHandler creates the websocket handler for an engine.
func NewHandler(engine *runtime.Engine, opts ...Option) *Handler {
	h := &Handler{
		engine:    engine,
		logger:    logging.NewNop(),
		queueSize: hub.DefaultQueueSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// No authentication in this protocol; any origin may join.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and runs the session until the peer goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := hub.NewClient(h.queueSize)
	h.engine.Connect(client)
	h.logger.Info("client connected", "remote", r.RemoteAddr)

	go h.writePump(conn, client)
	h.readPump(conn, client, r.RemoteAddr)
}

func (h *Handler) readPump(conn *websocket.Conn, client *hub.Client, remote string) {
	defer func() {
		h.engine.Disconnect(client)
		conn.Close()
		h.logger.Info("client disconnected", "remote", remote)
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("read error", "remote", remote, "error", err)
			}
			return
		}
		h.engine.HandleFrame(frame)
	}
}

func (h *Handler) writePump(conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame := <-client.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.engine.Disconnect(client)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.engine.Disconnect(client)
				return
			}
		case <-client.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
