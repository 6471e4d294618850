// Package render draws amplitude sequences as rows of rounded bars.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Layout describes bar geometry in pixels and the bar colors.
type Layout struct {
	BarWidth     float64
	BarGap       float64
	CornerRadius float64
	MinBarHeight float64

	Played     color.NRGBA
	Pending    color.NRGBA
	Background color.NRGBA
}

var (
	// DefaultPlayed is the color of bars at or before the playhead.
	DefaultPlayed = color.NRGBA{R: 0x5a, G: 0xc8, B: 0xfa, A: 0xff}
	// DefaultPending is the color of bars after the playhead.
	DefaultPending = color.NRGBA{R: 0xff, G: 0x3b, B: 0x30, A: 0xff}
)

// DefaultLayout returns 5px bars on a 7.5px pitch with fully rounded ends.
func DefaultLayout() Layout {
	return Layout{
		BarWidth:     5,
		BarGap:       2.5,
		CornerRadius: 2.5,
		MinBarHeight: 0.2,
		Played:       DefaultPlayed,
		Pending:      DefaultPending,
	}
}

// Pitch is the horizontal distance between the left edges of two bars.
func (l Layout) Pitch() float64 { return l.BarWidth + l.BarGap }

// BucketCount returns how many bars fit in width pixels.
func (l Layout) BucketCount(width int) int {
	pitch := l.Pitch()
	if width <= 0 || pitch <= 0 {
		return 0
	}
	return int(math.Floor(float64(width) / pitch))
}

// Validate reports every invalid field.
func (l Layout) Validate() error {
	var errs []error
	if l.BarWidth <= 0 {
		errs = append(errs, fmt.Errorf("bar width must be positive, got %v", l.BarWidth))
	}
	if l.BarGap < 0 {
		errs = append(errs, fmt.Errorf("bar gap must not be negative, got %v", l.BarGap))
	}
	if l.CornerRadius < 0 {
		errs = append(errs, fmt.Errorf("corner radius must not be negative, got %v", l.CornerRadius))
	}
	if l.MinBarHeight < 0 {
		errs = append(errs, fmt.Errorf("minimum bar height must not be negative, got %v", l.MinBarHeight))
	}
	return errors.Join(errs...)
}

// BarHeight returns the drawn height of a bar for amp on a canvas of the
// given height. Non-finite amplitudes draw at minH.
func BarHeight(amp, canvas, minH float64) float64 {
	if canvas <= 0 {
		return 0
	}
	if minH > canvas {
		minH = canvas
	}
	if math.IsNaN(amp) || math.IsInf(amp, 0) {
		return minH
	}
	h := amp * canvas * 2
	if h < minH {
		return minH
	}
	if h > canvas {
		return canvas
	}
	return h
}

// ClampIndex limits a progress index to [0, n-1]. It returns 0 when n is 0.
func ClampIndex(i, n int) int {
	if n <= 0 || i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}

// Played reports whether bar i of n is at or before the playhead.
func Played(i, progress, n int) bool {
	return n > 0 && i <= ClampIndex(progress, n)
}

// ParseColor parses "#RRGGBB", "#RRGGBBAA" or "transparent".
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "transparent") || s == "" {
		return color.NRGBA{}, nil
	}

	alpha := uint8(0xff)
	if len(s) == 9 && s[0] == '#' {
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid alpha in color %q: %w", s, err)
		}
		alpha = uint8(a)
		s = s[:7]
	}

	c, err := colorful.Hex(s)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}

// Hex formats c as "#rrggbb", or "#rrggbbaa" when it is not opaque.
func Hex(c color.NRGBA) string {
	if c.A == 0xff {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}
