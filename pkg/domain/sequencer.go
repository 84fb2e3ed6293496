package domain

// TrackID identifies one independently sequenced sound source.
type TrackID string

const (
	TrackKick    TrackID = "kick"
	TrackSnare   TrackID = "snare"
	TrackHihat   TrackID = "hihat"
	TrackOpenhat TrackID = "openhat"
	TrackArp     TrackID = "arp"
	TrackBass    TrackID = "bass"
)

// Variant selects which track set a sequencer is built with.
type Variant string

const (
	VariantBasic    Variant = "basic"
	VariantExtended Variant = "extended"
)

// PatternLength is the fixed number of steps per track.
const PatternLength = 16

// Tempo bounds in BPM. Writes outside the range are clamped.
const (
	MinTempo     = 60
	MaxTempo     = 180
	DefaultTempo = 120
)

// Pattern is a fixed 16-step on/off sequence. Marshals as a JSON array of booleans.
type Pattern [PatternLength]bool

// Params is the per-track parameter map. Values are numbers or strings;
// the schema is track-specific (see params.go).
type Params map[string]any

// Track is one sound source: its step pattern plus its parameter set.
type Track struct {
	Pattern Pattern `json:"pattern"`
	Params  Params  `json:"params"`
}

// Clone returns a deep copy of the track.
func (t *Track) Clone() *Track {
	c := &Track{
		Pattern: t.Pattern,
		Params:  make(Params, len(t.Params)),
	}
	for k, v := range t.Params {
		c.Params[k] = v
	}
	return c
}

// SequencerState is the shared document every connected client observes.
// There is exactly one per process; all mutation goes through the state store.
type SequencerState struct {
	TempoBPM    int                `json:"bpm"`
	Playing     bool               `json:"playing"`
	CurrentStep int                `json:"current_step"`
	Tracks      map[TrackID]*Track `json:"tracks"`
}

// TrackOrder returns the track set for a variant in display order.
func TrackOrder(v Variant) []TrackID {
	base := []TrackID{TrackKick, TrackSnare, TrackHihat, TrackOpenhat}
	if v == VariantExtended {
		return append(base, TrackArp, TrackBass)
	}
	return base
}

// NewSequencerState builds the default document for a variant: stopped transport,
// playhead at zero, empty patterns, per-track default parameters.
func NewSequencerState(v Variant, tempo int) *SequencerState {
	s := &SequencerState{
		TempoBPM: ClampTempo(tempo),
		Tracks:   make(map[TrackID]*Track),
	}
	for _, id := range TrackOrder(v) {
		s.Tracks[id] = &Track{Params: DefaultParams(id)}
	}
	return s
}

// Clone returns a deep copy suitable for handing to other goroutines.
func (s *SequencerState) Clone() *SequencerState {
	c := &SequencerState{
		TempoBPM:    s.TempoBPM,
		Playing:     s.Playing,
		CurrentStep: s.CurrentStep,
		Tracks:      make(map[TrackID]*Track, len(s.Tracks)),
	}
	for id, t := range s.Tracks {
		c.Tracks[id] = t.Clone()
	}
	return c
}

// ClampTempo forces a BPM value into the valid range.
func ClampTempo(bpm int) int {
	if bpm < MinTempo {
		return MinTempo
	}
	if bpm > MaxTempo {
		return MaxTempo
	}
	return bpm
}
