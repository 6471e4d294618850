package waveform

import (
	"math"
	"time"
)

// ProgressIndex returns the index of the last played bucket in a sequence of
// n buckets. A non-positive duration counts as position zero. The result is
// never below 1 unless n is 1 or less.
func ProgressIndex(n int, current, duration time.Duration) int {
	if n <= 0 {
		return 0
	}
	var idx int
	if duration > 0 && current > 0 {
		idx = int(math.Floor(float64(n) * float64(current) / float64(duration)))
	}
	if idx < 1 {
		idx = 1
	}
	if idx > n-1 {
		idx = n - 1
	}
	return idx
}

// ProgressIndexFraction is ProgressIndex for a played fraction in [0, 1].
func ProgressIndexFraction(n int, fraction float64) int {
	if math.IsNaN(fraction) || fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	const scale = time.Hour
	return ProgressIndex(n, time.Duration(fraction*float64(scale)), scale)
}
