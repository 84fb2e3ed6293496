package domain

// ParamSpec constrains one known parameter key.
// Numeric specs clamp into [Min, Max]; enum specs restrict to the listed values.
type ParamSpec struct {
	Min  float64
	Max  float64
	Enum []string
}

// Waveforms accepted for melodic tracks.
var Waveforms = []string{"sine", "square", "sawtooth", "triangle"}

var drumSchema = map[string]ParamSpec{
	"pitch":      {Min: 20, Max: 12000},
	"decay":      {Min: 0.01, Max: 2},
	"volume":     {Min: 0, Max: 1},
	"distortion": {Min: 0, Max: 1},
	"delay":      {Min: 0, Max: 1},
	"chorus":     {Min: 0, Max: 1},
}

var melodicSchema = map[string]ParamSpec{
	"volume":   {Min: 0, Max: 1},
	"delay":    {Min: 0, Max: 1},
	"chorus":   {Min: 0, Max: 1},
	"waveform": {Enum: Waveforms},
}

// ParamSchema returns the known-key constraints for a track.
// Keys outside the schema are passed through untouched; the wire protocol
// deliberately keeps the parameter map open-ended.
func ParamSchema(id TrackID) map[string]ParamSpec {
	switch id {
	case TrackArp, TrackBass:
		return melodicSchema
	default:
		return drumSchema
	}
}

// DefaultParams returns the initial parameter set for a track.
func DefaultParams(id TrackID) Params {
	switch id {
	case TrackKick:
		return Params{"pitch": 50.0, "decay": 0.5, "volume": 0.8, "distortion": 0.0, "delay": 0.0, "chorus": 0.0}
	case TrackSnare:
		return Params{"pitch": 180.0, "decay": 0.3, "volume": 0.7, "distortion": 0.0, "delay": 0.0, "chorus": 0.0}
	case TrackHihat:
		return Params{"pitch": 8000.0, "decay": 0.1, "volume": 0.6, "distortion": 0.0, "delay": 0.0, "chorus": 0.0}
	case TrackOpenhat:
		return Params{"pitch": 8000.0, "decay": 0.4, "volume": 0.6, "distortion": 0.0, "delay": 0.0, "chorus": 0.0}
	case TrackArp:
		return Params{"waveform": "sawtooth", "volume": 0.5, "delay": 0.0, "chorus": 0.0}
	case TrackBass:
		return Params{"waveform": "square", "volume": 0.7}
	default:
		return Params{}
	}
}

// SanitizeParams validates a partial parameter update against a track's schema.
// Known numeric keys are clamped into range, known enum keys are dropped when
// the value is not in the enum, and unknown keys pass through unchanged.
func SanitizeParams(id TrackID, partial Params) Params {
	schema := ParamSchema(id)
	out := make(Params, len(partial))
	for k, v := range partial {
		spec, known := schema[k]
		if !known {
			out[k] = v
			continue
		}
		if len(spec.Enum) > 0 {
			s, ok := v.(string)
			if ok && contains(spec.Enum, s) {
				out[k] = s
			}
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			continue
		}
		if f < spec.Min {
			f = spec.Min
		}
		if f > spec.Max {
			f = spec.Max
		}
		out[k] = f
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
