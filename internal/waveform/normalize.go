package waveform

import (
	"fmt"
	"math"
)

const (
	// DefaultNoiseFloorDB is the quietest level a bucket can report.
	DefaultNoiseFloorDB = -80.0

	// fullScale is the 16-bit reference level for 0 dB.
	fullScale = 32768.0
)

// Rescale selects how clipped decibel values map onto [0, 1].
type Rescale int

const (
	// RescaleLinear maps the loudest bucket to 1 and the quietest to 0.
	RescaleLinear Rescale = iota
	// RescaleLegacy is the reciprocal mapping used by earlier renderers,
	// guarded so its output stays in [0, 1].
	RescaleLegacy
)

func (r Rescale) String() string {
	switch r {
	case RescaleLinear:
		return "linear"
	case RescaleLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("Rescale(%d)", int(r))
	}
}

// ParseRescale parses a rescale mode name.
func ParseRescale(s string) (Rescale, error) {
	switch s {
	case "", "linear":
		return RescaleLinear, nil
	case "legacy":
		return RescaleLegacy, nil
	default:
		return RescaleLinear, fmt.Errorf("unknown rescale mode %q (want linear or legacy)", s)
	}
}

// Normalizer converts bucket magnitudes into display amplitudes.
type Normalizer struct {
	NoiseFloorDB float64
	Rescale      Rescale
}

// DefaultNormalizer returns a linear normalizer with a -80 dB floor.
func DefaultNormalizer() Normalizer {
	return Normalizer{NoiseFloorDB: DefaultNoiseFloorDB, Rescale: RescaleLinear}
}

// Normalize maps magnitudes to [0, 1]. It never returns NaN or Inf.
func (n Normalizer) Normalize(mags []float64) []float64 {
	if len(mags) == 0 {
		return []float64{}
	}
	floor := n.NoiseFloorDB
	if floor >= 0 || math.IsNaN(floor) || math.IsInf(floor, 0) {
		floor = DefaultNoiseFloorDB
	}

	out := make([]float64, len(mags))
	for i, v := range mags {
		out[i] = math.Abs(ClipDecibels(ToDecibels(v), floor))
	}

	lo, hi := out[0], out[0]
	for _, v := range out[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	delta := hi - lo
	if delta == 0 {
		clear(out)
		return out
	}

	for i, v := range out {
		var u float64
		switch n.Rescale {
		case RescaleLegacy:
			u = legacyUnit(v, lo, delta)
		default:
			u = 1 - (v-lo)/delta
		}
		out[i] = clampUnit(u)
	}
	return out
}

// ToDecibels converts a 16-bit magnitude to dBFS. Zero or negative input
// yields -Inf.
func ToDecibels(v float64) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(v/fullScale)
}

// ClipDecibels limits db to [floor, 0]. NaN clips to floor.
func ClipDecibels(db, floor float64) float64 {
	if math.IsNaN(db) || db < floor {
		return floor
	}
	if db > 0 {
		return 0
	}
	return db
}

// legacyUnit is |1 - delta/(x-min)|. The minimum itself would divide by
// zero, so it maps to the loudest value.
func legacyUnit(x, lo, delta float64) float64 {
	d := x - lo
	if d == 0 {
		return 1
	}
	return math.Abs(1 - delta/d)
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
