// Package protocol defines the wire envelopes exchanged with clients and the
// translation between text frames and typed commands.
//
// Inbound frames are `{"type": ..., ...fields}`. Outbound frames are
// `{"type": ..., "data": ...}`. The protocol is tolerant by design: unknown
// command types and malformed frames are reported to the caller as sentinel
// errors so the session can log and move on without closing the connection.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/stepsync/pkg/domain"
)

// Inbound command types.
const (
	CmdToggleStep       = "toggle_step"
	CmdUpdateParams     = "update_params"
	CmdTransportControl = "transport_control"
	CmdStepUpdate       = "step_update"
	CmdClearPattern     = "clear_pattern"
)

// Outbound message types.
const (
	MsgStateUpdate     = "state_update"
	MsgPatternUpdate   = "pattern_update"
	MsgParamsUpdate    = "params_update"
	MsgTransportUpdate = "transport_update"
	MsgStepPosition    = "step_position"
)

var (
	// ErrMalformed marks a frame that could not be parsed as JSON.
	ErrMalformed = errors.New("malformed frame")
	// ErrUnknownType marks a syntactically valid frame with an unrecognized type.
	ErrUnknownType = errors.New("unknown command type")
	// ErrMissingField marks a command missing one of its required fields.
	ErrMissingField = errors.New("missing required field")
)

// ToggleStep flips one step of one track.
type ToggleStep struct {
	Track string `mapstructure:"track"`
	Step  int    `mapstructure:"step"`
}

// UpdateParams shallow-merges parameter fields into one track.
type UpdateParams struct {
	Track  string         `mapstructure:"track"`
	Params map[string]any `mapstructure:"params"`
}

// TransportControl drives play/stop/tempo. BPM is only present for set_bpm.
type TransportControl struct {
	Action string   `mapstructure:"action"`
	BPM    *float64 `mapstructure:"bpm"`
}

// StepUpdate moves the shared playhead; sent by the client acting as timing
// authority while playing.
type StepUpdate struct {
	Step int `mapstructure:"step"`
}

// ClearPattern wipes every track's pattern.
type ClearPattern struct{}

// DecodeCommand parses one inbound text frame into a typed command. The
// returned value is one of the command structs above.
func DecodeCommand(frame []byte) (any, error) {
	var raw map[string]any
	if err := json.Unmarshal(frame, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	kind, _ := raw["type"].(string)
	switch kind {
	case CmdToggleStep:
		if err := requireFields(raw, "track", "step"); err != nil {
			return nil, err
		}
		var cmd ToggleStep
		if err := decodeFields(raw, &cmd); err != nil {
			return nil, err
		}
		return cmd, nil

	case CmdUpdateParams:
		if err := requireFields(raw, "track", "params"); err != nil {
			return nil, err
		}
		var cmd UpdateParams
		if err := decodeFields(raw, &cmd); err != nil {
			return nil, err
		}
		return cmd, nil

	case CmdTransportControl:
		if err := requireFields(raw, "action"); err != nil {
			return nil, err
		}
		var cmd TransportControl
		if err := decodeFields(raw, &cmd); err != nil {
			return nil, err
		}
		if cmd.Action == "set_bpm" && cmd.BPM == nil {
			return nil, fmt.Errorf("%w: bpm", ErrMissingField)
		}
		return cmd, nil

	case CmdStepUpdate:
		if err := requireFields(raw, "step"); err != nil {
			return nil, err
		}
		var cmd StepUpdate
		if err := decodeFields(raw, &cmd); err != nil {
			return nil, err
		}
		return cmd, nil

	case CmdClearPattern:
		return ClearPattern{}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, kind)
	}
}

func requireFields(raw map[string]any, fields ...string) error {
	for _, f := range fields {
		if _, ok := raw[f]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingField, f)
		}
	}
	return nil
}

func decodeFields(raw map[string]any, out any) error {
	if err := mapstructure.Decode(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// Message is the outbound envelope.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// PatternUpdateData is the delta broadcast after a successful toggle.
type PatternUpdateData struct {
	Track  string `json:"track"`
	Step   int    `json:"step"`
	Active bool   `json:"active"`
}

// ParamsUpdateData carries a track's full resulting params after a merge.
type ParamsUpdateData struct {
	Track  string        `json:"track"`
	Params domain.Params `json:"params"`
}

// TransportUpdateData carries the transport snapshot after a transport change.
type TransportUpdateData struct {
	Playing     bool `json:"playing"`
	CurrentStep int  `json:"current_step"`
	BPM         int  `json:"bpm"`
}

// StepPositionData carries only the playhead position.
type StepPositionData struct {
	CurrentStep int `json:"current_step"`
}

// StateUpdate wraps a full document snapshot.
func StateUpdate(s *domain.SequencerState) Message {
	return Message{Type: MsgStateUpdate, Data: s}
}

// PatternUpdate wraps a single-step delta.
func PatternUpdate(track domain.TrackID, step int, active bool) Message {
	return Message{Type: MsgPatternUpdate, Data: PatternUpdateData{Track: string(track), Step: step, Active: active}}
}

// ParamsUpdate wraps a track's post-merge params.
func ParamsUpdate(track domain.TrackID, params domain.Params) Message {
	return Message{Type: MsgParamsUpdate, Data: ParamsUpdateData{Track: string(track), Params: params}}
}

// TransportUpdate wraps the transport snapshot.
func TransportUpdate(playing bool, currentStep, bpm int) Message {
	return Message{Type: MsgTransportUpdate, Data: TransportUpdateData{Playing: playing, CurrentStep: currentStep, BPM: bpm}}
}

// StepPosition wraps a playhead move.
func StepPosition(currentStep int) Message {
	return Message{Type: MsgStepPosition, Data: StepPositionData{CurrentStep: currentStep}}
}

// Encode serializes an outbound message to one text frame.
func Encode(m Message) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Type, err)
	}
	return b, nil
}
