// Package hub tracks live client connections and fans broadcast frames out to
// them.
//
// The hub is transport-agnostic: a Client is a bounded outbound queue plus a
// done signal. The websocket layer drains the queue; the hub never blocks on a
// slow recipient, it drops the client instead and lets the next snapshot
// resynchronize it after reconnect.
package hub

import (
	"log/slog"
	"sync"

	"github.com/aretw0/stepsync/internal/logging"
	"github.com/aretw0/stepsync/internal/metrics"
)

// DefaultQueueSize bounds a client's outbound queue when no size is configured.
const DefaultQueueSize = 64

// Client is one registered connection's send side.
type Client struct {
	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewClient creates an unregistered client with a bounded outbound queue.
func NewClient(queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Client{
		send: make(chan []byte, queueSize),
		done: make(chan struct{}),
	}
}

// Outbound is the queue the transport write loop drains.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// Done is closed when the client is deregistered.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Send enqueues one frame without blocking. It reports false when the client
// is closed or its queue is full; the caller decides whether that is fatal.
func (c *Client) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub is the connection registry plus broadcast fan-out.
type Hub struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// Option configures the Hub.
type Option func(*Hub)

// WithLogger sets the hub's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithMetrics attaches instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

// New creates an empty hub.
func New(opts ...Option) *Hub {
	h := &Hub{
		logger:  logging.NewNop(),
		metrics: metrics.New(),
		clients: make(map[*Client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds a client to the registry.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.ConnectedClients.Set(float64(n))
	h.logger.Debug("client registered", "clients", n)
}

// Deregister removes a client and releases its write loop. Removing a client
// that is already gone is a no-op, so duplicate close events are harmless.
func (h *Hub) Deregister(c *Client) {
	h.mu.Lock()
	_, present := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.close()
	if present {
		h.metrics.ConnectedClients.Set(float64(n))
		h.logger.Debug("client deregistered", "clients", n)
	}
}

// Len reports the number of registered clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast delivers one frame to every client registered at call time.
// A client whose queue is full or closed is dropped from the registry; the
// failure never reaches the other recipients or the originator.
func (h *Hub) Broadcast(frame []byte) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.Send(frame) {
			h.metrics.DroppedSends.Inc()
			h.logger.Warn("dropping unresponsive client")
			h.Deregister(c)
		}
	}
	h.metrics.BroadcastsTotal.Inc()
}

// Shutdown deregisters every client, releasing their write loops.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()

	for _, c := range targets {
		c.close()
	}
	h.metrics.ConnectedClients.Set(0)
}
