package visualizer

import (
	"math"

	"github.com/charmbracelet/harmonica"
)

// settleEpsilon is how close a bar must be to its target, with how little
// velocity, before the field stops animating it.
const settleEpsilon = 1e-3

// springField eases a row of values toward their targets, one damped spring
// per value.
type springField struct {
	spring harmonica.Spring
	pos    []float64
	vel    []float64
}

func newSpringField(fps int, frequency, damping float64) springField {
	return springField{spring: harmonica.NewSpring(harmonica.FPS(fps), frequency, damping)}
}

// resize discards all motion when the length changes so a new sequence grows
// from the baseline.
func (s *springField) resize(n int) {
	if len(s.pos) == n {
		return
	}
	s.pos = make([]float64, n)
	s.vel = make([]float64, n)
}

// stepAll advances every spring one frame and reports whether any is still
// moving. Springs that have come to rest snap onto their target.
func (s *springField) stepAll(targets []float64) bool {
	moving := false
	for i := range s.pos {
		p, v := s.spring.Update(s.pos[i], s.vel[i], targets[i])
		if math.Abs(p-targets[i]) < settleEpsilon && math.Abs(v) < settleEpsilon {
			p, v = targets[i], 0
		} else {
			moving = true
		}
		s.pos[i] = p
		s.vel[i] = v
	}
	return moving
}

func (s *springField) snap(targets []float64) {
	copy(s.pos, targets)
	clear(s.vel)
}
