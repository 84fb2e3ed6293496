// Package state owns the authoritative sequencer document.
//
// Every mutation is a single indivisible step under one mutex, and snapshots
// are taken under the same mutex so a reader never observes a torn document.
package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/stepsync/pkg/domain"
)

var (
	// ErrUnknownTrack is returned when a command names a track the document does not have.
	ErrUnknownTrack = errors.New("unknown track")
	// ErrStepOutOfRange is returned when a step index falls outside the pattern.
	ErrStepOutOfRange = errors.New("step out of range")
	// ErrUnknownAction is returned for a transport action outside play/stop/set_bpm.
	ErrUnknownAction = errors.New("unknown transport action")
)

// TransportAction names one transport control operation.
type TransportAction string

const (
	ActionPlay   TransportAction = "play"
	ActionStop   TransportAction = "stop"
	ActionSetBPM TransportAction = "set_bpm"
)

// Transport is the transport portion of the document, returned by transport mutations.
type Transport struct {
	Playing     bool `json:"playing"`
	CurrentStep int  `json:"current_step"`
	TempoBPM    int  `json:"bpm"`
}

// Store holds the process-wide SequencerState behind a mutation lock.
type Store struct {
	mu    sync.Mutex
	state *domain.SequencerState
}

// New creates a store initialized with the default document for the variant.
func New(v domain.Variant, tempo int) *Store {
	return &Store{state: domain.NewSequencerState(v, tempo)}
}

// ToggleStep flips one step of a track's pattern and returns the new value.
func (s *Store) ToggleStep(track domain.TrackID, step int) (bool, error) {
	if step < 0 || step >= domain.PatternLength {
		return false, fmt.Errorf("%w: %d", ErrStepOutOfRange, step)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.state.Tracks[track]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownTrack, track)
	}
	t.Pattern[step] = !t.Pattern[step]
	return t.Pattern[step], nil
}

// MergeParams shallow-merges a partial update into a track's params after
// sanitizing it against the track's schema. Fields absent from the input are
// untouched. Returns a copy of the resulting full params map.
func (s *Store) MergeParams(track domain.TrackID, partial domain.Params) (domain.Params, error) {
	clean := domain.SanitizeParams(track, partial)
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.state.Tracks[track]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTrack, track)
	}
	for k, v := range clean {
		t.Params[k] = v
	}
	return t.Clone().Params, nil
}

// SetTransport applies a transport action. Play raises the playing flag, stop
// lowers it and rewinds the playhead, set_bpm stores a clamped tempo. Returns
// the resulting transport snapshot.
func (s *Store) SetTransport(action TransportAction, bpm int) (Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch action {
	case ActionPlay:
		s.state.Playing = true
	case ActionStop:
		s.state.Playing = false
		s.state.CurrentStep = 0
	case ActionSetBPM:
		s.state.TempoBPM = domain.ClampTempo(bpm)
	default:
		return Transport{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	return s.transportLocked(), nil
}

// SetCurrentStep moves the playhead. The input wraps modulo the pattern
// length; timing is client-driven, the server never advances the playhead
// on its own.
func (s *Store) SetCurrentStep(step int) int {
	step = ((step % domain.PatternLength) + domain.PatternLength) % domain.PatternLength
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentStep = step
	return step
}

// ClearAllPatterns resets every track's pattern to all-off, leaving params
// untouched, and returns the full document snapshot.
func (s *Store) ClearAllPatterns() *domain.SequencerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.state.Tracks {
		t.Pattern = domain.Pattern{}
	}
	return s.state.Clone()
}

// Snapshot returns a deep point-in-time copy of the document.
func (s *Store) Snapshot() *domain.SequencerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Transport returns the current transport snapshot.
func (s *Store) Transport() Transport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transportLocked()
}

func (s *Store) transportLocked() Transport {
	return Transport{
		Playing:     s.state.Playing,
		CurrentStep: s.state.CurrentStep,
		TempoBPM:    s.state.TempoBPM,
	}
}
