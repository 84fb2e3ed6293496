// Package runtime wires the state store to the broadcast hub.
//
// The Engine is the single mutation path: every inbound command, whatever
// surface it arrives on (websocket, MCP), is applied to the store and fanned
// out under one mutex, so broadcast order always equals mutation order and a
// connecting client's snapshot can never interleave with a broadcast.
package runtime

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/stepsync/internal/hub"
	"github.com/aretw0/stepsync/internal/logging"
	"github.com/aretw0/stepsync/internal/metrics"
	"github.com/aretw0/stepsync/internal/protocol"
	"github.com/aretw0/stepsync/internal/state"
	"github.com/aretw0/stepsync/pkg/domain"
)

// Engine dispatches decoded commands to the store and broadcasts the results.
type Engine struct {
	mu      sync.Mutex
	store   *state.Store
	hub     *hub.Hub
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics attaches instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates an engine over a store and a hub.
func NewEngine(store *state.Store, h *hub.Hub, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		hub:     h,
		logger:  logging.NewNop(),
		metrics: metrics.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Connect delivers the full-state snapshot to one client, then registers it
// for broadcasts. Running under the engine mutex guarantees the snapshot is
// the first frame the client sees and matches the last applied mutation.
func (e *Engine) Connect(c *hub.Client) {
	e.mu.Lock()
	defer e.mu.Unlock()
	frame, err := protocol.Encode(protocol.StateUpdate(e.store.Snapshot()))
	if err != nil {
		e.logger.Error("encoding snapshot", "error", err)
		return
	}
	c.Send(frame)
	e.hub.Register(c)
}

// Disconnect deregisters a client. Safe to call more than once.
func (e *Engine) Disconnect(c *hub.Client) {
	e.hub.Deregister(c)
}

// Snapshot returns a point-in-time copy of the document for read-only surfaces.
func (e *Engine) Snapshot() *domain.SequencerState {
	return e.store.Snapshot()
}

// HandleFrame processes one inbound text frame: decode, mutate, broadcast.
// Errors never close the session. Malformed frames and unknown command types
// are logged and dropped; invalid toggle targets are dropped silently, which
// tolerates client/server track-set mismatches without surfacing errors the
// clients do not handle.
func (e *Engine) HandleFrame(frame []byte) {
	cmd, err := protocol.DecodeCommand(frame)
	if err != nil {
		switch {
		case errors.Is(err, protocol.ErrUnknownType):
			e.logger.Debug("ignoring unknown command", "error", err)
		case errors.Is(err, protocol.ErrMissingField):
			e.logger.Debug("dropping incomplete command", "error", err)
		default:
			e.logger.Warn("dropping malformed frame", "error", err)
		}
		return
	}
	if _, err := e.Apply(cmd); err != nil {
		e.logger.Debug("command dropped", "error", err)
	}
}

// Apply runs one typed command through the store and, on success, broadcasts
// the resulting message to all clients, the originator included. The
// originator converges to the authoritative result over the same path as
// everyone else instead of trusting a local echo. The broadcast message is
// returned so non-websocket surfaces can report the outcome.
func (e *Engine) Apply(cmd any) (protocol.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch c := cmd.(type) {
	case protocol.ToggleStep:
		e.metrics.FramesReceived.WithLabelValues(protocol.CmdToggleStep).Inc()
		active, err := e.store.ToggleStep(domain.TrackID(c.Track), c.Step)
		if err != nil {
			return protocol.Message{}, err
		}
		return e.broadcast(protocol.PatternUpdate(domain.TrackID(c.Track), c.Step, active))

	case protocol.UpdateParams:
		e.metrics.FramesReceived.WithLabelValues(protocol.CmdUpdateParams).Inc()
		params, err := e.store.MergeParams(domain.TrackID(c.Track), domain.Params(c.Params))
		if err != nil {
			return protocol.Message{}, err
		}
		return e.broadcast(protocol.ParamsUpdate(domain.TrackID(c.Track), params))

	case protocol.TransportControl:
		e.metrics.FramesReceived.WithLabelValues(protocol.CmdTransportControl).Inc()
		bpm := 0
		if c.BPM != nil {
			bpm = int(*c.BPM)
		}
		tr, err := e.store.SetTransport(state.TransportAction(c.Action), bpm)
		if err != nil {
			return protocol.Message{}, err
		}
		return e.broadcast(protocol.TransportUpdate(tr.Playing, tr.CurrentStep, tr.TempoBPM))

	case protocol.StepUpdate:
		e.metrics.FramesReceived.WithLabelValues(protocol.CmdStepUpdate).Inc()
		step := e.store.SetCurrentStep(c.Step)
		return e.broadcast(protocol.StepPosition(step))

	case protocol.ClearPattern:
		e.metrics.FramesReceived.WithLabelValues(protocol.CmdClearPattern).Inc()
		snap := e.store.ClearAllPatterns()
		return e.broadcast(protocol.StateUpdate(snap))

	default:
		return protocol.Message{}, fmt.Errorf("unhandled command %T", cmd)
	}
}

func (e *Engine) broadcast(m protocol.Message) (protocol.Message, error) {
	frame, err := protocol.Encode(m)
	if err != nil {
		e.logger.Error("encoding broadcast", "type", m.Type, "error", err)
		return protocol.Message{}, err
	}
	e.hub.Broadcast(frame)
	return m, nil
}
