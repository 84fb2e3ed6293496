// Package mcp exposes the sequencer state over the Model Context Protocol,
// letting agent clients read and mutate the shared document as tools.
//
// Mutations flow through the same engine as websocket commands, so every
// connected sequencer client sees an agent's edits broadcast in real time.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/stepsync/internal/protocol"
	"github.com/aretw0/stepsync/internal/runtime"
	"github.com/aretw0/stepsync/pkg/domain"
)

// StateResponse wraps the full document for structured tool output.
type StateResponse struct {
	State *domain.SequencerState `json:"state" jsonschema_description:"The full shared sequencer document"`
}

// ToggleResponse reports the authoritative result of a step toggle.
type ToggleResponse struct {
	Track  string `json:"track"`
	Step   int    `json:"step"`
	Active bool   `json:"active"`
}

// TransportResponse reports the transport after a control action.
type TransportResponse struct {
	Playing     bool `json:"playing"`
	CurrentStep int  `json:"current_step"`
	BPM         int  `json:"bpm"`
}

// ParamsResponse reports a track's full params after a merge.
type ParamsResponse struct {
	Track  string        `json:"track"`
	Params domain.Params `json:"params"`
}

// Server wraps the stepsync engine and exposes it as an MCP server.
type Server struct {
	engine    *runtime.Engine
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance over an engine.
func NewServer(engine *runtime.Engine, version string) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("stepsync-mcp", strings.TrimSpace(version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	// TOOL: get_state
	s.mcpServer.AddTool(mcp.NewTool("get_state",
		mcp.WithDescription("Get the full shared sequencer state: tempo, transport, per-track patterns and params."),
		mcp.WithOutputSchema[StateResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetState))

	// TOOL: toggle_step
	s.mcpServer.AddTool(mcp.NewTool("toggle_step",
		mcp.WithDescription("Flip one step of one track's 16-step pattern. The change is broadcast to every connected client."),
		mcp.WithString("track", mcp.Required(), mcp.Description("Track id: kick, snare, hihat, openhat, arp or bass")),
		mcp.WithNumber("step", mcp.Required(), mcp.Description("Step index in [0,15]")),
		mcp.WithOutputSchema[ToggleResponse](),
	), mcp.NewStructuredToolHandler(s.handleToggleStep))

	// TOOL: transport_control
	s.mcpServer.AddTool(mcp.NewTool("transport_control",
		mcp.WithDescription("Drive the shared transport: play, stop, or set_bpm."),
		mcp.WithString("action", mcp.Required(), mcp.Description("One of play, stop, set_bpm")),
		mcp.WithNumber("bpm", mcp.Description("Tempo in BPM, required for set_bpm; clamped to [60,180]")),
		mcp.WithOutputSchema[TransportResponse](),
	), mcp.NewStructuredToolHandler(s.handleTransportControl))

	// TOOL: update_params
	s.mcpServer.AddTool(mcp.NewTool("update_params",
		mcp.WithDescription("Shallow-merge parameter values into a track. Fields not given are untouched."),
		mcp.WithString("track", mcp.Required(), mcp.Description("Track id")),
		mcp.WithString("params", mcp.Required(), mcp.Description("JSON object of parameter values, e.g. {\"volume\":0.5}")),
		mcp.WithOutputSchema[ParamsResponse](),
	), mcp.NewStructuredToolHandler(s.handleUpdateParams))
}

func (s *Server) handleGetState(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (StateResponse, error) {
	return StateResponse{State: s.engine.Snapshot()}, nil
}

func (s *Server) handleToggleStep(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ToggleResponse, error) {
	track, _ := args["track"].(string)
	step, ok := args["step"].(float64)
	if !ok {
		return ToggleResponse{}, fmt.Errorf("step must be a number")
	}

	msg, err := s.engine.Apply(protocol.ToggleStep{Track: track, Step: int(step)})
	if err != nil {
		return ToggleResponse{}, fmt.Errorf("toggle failed: %w", err)
	}
	data := msg.Data.(protocol.PatternUpdateData)
	return ToggleResponse{Track: data.Track, Step: data.Step, Active: data.Active}, nil
}

func (s *Server) handleTransportControl(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (TransportResponse, error) {
	action, _ := args["action"].(string)
	cmd := protocol.TransportControl{Action: action}
	if bpm, ok := args["bpm"].(float64); ok {
		cmd.BPM = &bpm
	}
	if action == "set_bpm" && cmd.BPM == nil {
		return TransportResponse{}, fmt.Errorf("set_bpm requires bpm")
	}

	msg, err := s.engine.Apply(cmd)
	if err != nil {
		return TransportResponse{}, fmt.Errorf("transport failed: %w", err)
	}
	data := msg.Data.(protocol.TransportUpdateData)
	return TransportResponse{Playing: data.Playing, CurrentStep: data.CurrentStep, BPM: data.BPM}, nil
}

func (s *Server) handleUpdateParams(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ParamsResponse, error) {
	track, _ := args["track"].(string)
	raw, _ := args["params"].(string)

	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return ParamsResponse{}, fmt.Errorf("params must be a JSON object: %w", err)
	}

	msg, err := s.engine.Apply(protocol.UpdateParams{Track: track, Params: params})
	if err != nil {
		return ParamsResponse{}, fmt.Errorf("params update failed: %w", err)
	}
	data := msg.Data.(protocol.ParamsUpdateData)
	return ParamsResponse{Track: data.Track, Params: data.Params}, nil
}

func (s *Server) registerResources() {
	// EXPOSE: stepsync://state
	s.mcpServer.AddResource(mcp.NewResource("stepsync://state", "Current Sequencer State",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.engine.Snapshot())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal state: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "stepsync://state",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
