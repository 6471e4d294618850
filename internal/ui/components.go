package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/olivier-w/soundwave/internal/util"
)

func renderVolumePercent(vol float64) string {
	return fmt.Sprintf("vol %d%%", int(vol*100+0.5))
}

func renderClock(elapsed, total time.Duration) string {
	return fmt.Sprintf("%s / %s", util.FormatDuration(elapsed), util.FormatDuration(total))
}

// indent prefixes every line of block with the left margin.
func indent(block string) string {
	if block == "" {
		return ""
	}
	lines := strings.Split(block, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n") + "\n"
}

func spaces(n int) string {
	if n < 0 {
		n = 0
	}
	return strings.Repeat(" ", n)
}

func windowTitle(title string, paused bool) string {
	if paused {
		return "⏸ " + title + " · soundwave"
	}
	return "▶ " + title + " · soundwave"
}
