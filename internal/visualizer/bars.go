// Package visualizer draws amplitude sequences as terminal block-glyph bars.
package visualizer

import (
	"image/color"
	"math"
	"strings"
)

// FPS is the animation rate Step is tuned for.
const FPS = 30

// eighths holds the partial block glyphs, indexed by filled eighths.
var eighths = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Columns sizes a terminal waveform at one bucket per cell, leaving Margin
// cells free.
type Columns struct {
	Margin int
}

// BucketCount returns the number of bars that fit in width cells.
func (c Columns) BucketCount(width int) int {
	return max(width-c.Margin, 0)
}

// Bars renders one column per amplitude. Heights ease toward their targets
// with damped springs.
type Bars struct {
	springs springField
	targets []float64
	rows    int
	played  colorRGB
	pending colorRGB
	profile colorProfile
}

// NewBars returns bars rows cells tall, colored played up to the playhead and
// pending after it.
func NewBars(rows int, played, pending color.Color) *Bars {
	return &Bars{
		springs: newSpringField(FPS, 6.0, 0.75),
		rows:    max(rows, 1),
		played:  rgbOf(played),
		pending: rgbOf(pending),
		profile: currentColorProfile(),
	}
}

// SetTargets replaces the amplitudes the bars move toward. Values outside
// [0, 1] are clamped. A sequence of a different length restarts the
// animation from the baseline.
func (b *Bars) SetTargets(amps []float64) {
	b.springs.resize(len(amps))
	b.targets = make([]float64, len(amps))
	for i, a := range amps {
		b.targets[i] = clamp01(a)
	}
}

// Len returns the number of bars.
func (b *Bars) Len() int { return len(b.targets) }

// Step advances the animation one frame and reports whether it should be
// stepped again.
func (b *Bars) Step() bool {
	return b.springs.stepAll(b.targets)
}

// Settle jumps every bar to its target.
func (b *Bars) Settle() {
	b.springs.snap(b.targets)
}

// Heights returns the current displayed heights.
func (b *Bars) Heights() []float64 {
	return append([]float64(nil), b.springs.pos...)
}

// View draws the bars. Bars at or before progress use the played color.
func (b *Bars) View(progress int) string {
	n := len(b.targets)
	if n == 0 {
		return ""
	}
	progress = min(max(progress, 0), n-1)

	var out strings.Builder
	ansi := newANSIState(b.profile)
	for r := range b.rows {
		if r > 0 {
			out.WriteByte('\n')
		}
		floor := (b.rows - 1 - r) * 8
		for i, h := range b.springs.pos {
			fill := int(clamp01(h)*float64(b.rows*8)+0.5) - floor
			if fill <= 0 {
				ansi.reset(&out)
				out.WriteByte(' ')
				continue
			}
			if i <= progress {
				ansi.set(&out, b.played)
			} else {
				ansi.set(&out, b.pending)
			}
			out.WriteRune(eighths[min(fill, 8)])
		}
		ansi.reset(&out)
	}
	return out.String()
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
