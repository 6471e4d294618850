package render

import (
	"context"
	"image"
	"image/draw"
	"math"
	"time"

	"golang.org/x/image/vector"

	"github.com/olivier-w/soundwave/internal/observe"
)

// Compositor rasterizes amplitude sequences with a fixed Layout. A
// Compositor is safe for concurrent use; every Render call allocates its own
// rasterizers.
type Compositor struct {
	layout  Layout
	metrics *observe.Metrics
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithMetrics records render latency on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Compositor) { c.metrics = m }
}

// NewCompositor returns a Compositor for layout.
func NewCompositor(layout Layout, opts ...Option) *Compositor {
	c := &Compositor{layout: layout}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Layout returns the layout the compositor draws with.
func (c *Compositor) Layout() Layout { return c.layout }

// Render draws one bar per amplitude onto a new size.X by size.Y image. Bars
// up to and including progress use the played color. An empty sequence or a
// zero-area size yields an image holding only the background.
func (c *Compositor) Render(amps []float64, progress int, size image.Point) *image.RGBA {
	start := time.Now()
	if size.X < 0 {
		size.X = 0
	}
	if size.Y < 0 {
		size.Y = 0
	}

	img := image.NewRGBA(image.Rectangle{Max: size})
	l := c.layout
	if l.Background.A != 0 {
		draw.Draw(img, img.Bounds(), image.NewUniform(l.Background), image.Point{}, draw.Src)
	}

	n := len(amps)
	if n == 0 || size.X == 0 || size.Y == 0 || l.BarWidth <= 0 {
		return img
	}

	played := vector.NewRasterizer(size.X, size.Y)
	pending := vector.NewRasterizer(size.X, size.Y)
	var drewPlayed, drewPending bool

	canvasW := float64(size.X)
	canvasH := float64(size.Y)
	pitch := l.Pitch()
	idx := ClampIndex(progress, n)

	for i, amp := range amps {
		x := float64(i) * pitch
		if x >= canvasW {
			break
		}
		w := math.Min(l.BarWidth, canvasW-x)
		h := BarHeight(amp, canvasH, l.MinBarHeight)
		if h <= 0 {
			continue
		}
		y := (canvasH - h) / 2

		if i <= idx {
			roundedRect(played, x, y, w, h, l.CornerRadius)
			drewPlayed = true
		} else {
			roundedRect(pending, x, y, w, h, l.CornerRadius)
			drewPending = true
		}
	}

	if drewPlayed {
		played.Draw(img, img.Bounds(), image.NewUniform(l.Played), image.Point{})
	}
	if drewPending {
		pending.Draw(img, img.Bounds(), image.NewUniform(l.Pending), image.Point{})
	}

	if c.metrics != nil {
		c.metrics.RenderDuration.Record(context.Background(), time.Since(start).Seconds())
	}
	return img
}

// roundedRect adds a closed rounded rectangle path to z. Corners are
// quadratic approximations of circular arcs.
func roundedRect(z *vector.Rasterizer, x, y, w, h, r float64) {
	r = math.Max(0, math.Min(r, math.Min(w/2, h/2)))
	x0, y0 := float32(x), float32(y)
	x1, y1 := float32(x+w), float32(y+h)
	rr := float32(r)

	z.MoveTo(x0+rr, y0)
	z.LineTo(x1-rr, y0)
	z.QuadTo(x1, y0, x1, y0+rr)
	z.LineTo(x1, y1-rr)
	z.QuadTo(x1, y1, x1-rr, y1)
	z.LineTo(x0+rr, y1)
	z.QuadTo(x0, y1, x0, y1-rr)
	z.LineTo(x0, y0+rr)
	z.QuadTo(x0, y0, x0+rr, y0)
	z.ClosePath()
}
