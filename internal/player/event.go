package player

import (
	"fmt"
	"time"
)

// Snapshot is the transport position at one instant.
type Snapshot struct {
	Duration time.Duration
	Current  time.Duration
}

// Fraction returns Current/Duration in [0, 1], or 0 for an empty track.
func (s Snapshot) Fraction() float64 {
	if s.Duration <= 0 {
		return 0
	}
	f := float64(s.Current) / float64(s.Duration)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// EventKind identifies a transport event.
type EventKind int

const (
	EventPlay EventKind = iota
	EventPause
	EventForward
	EventBackward
	EventProgress
	EventFinished
)

func (k EventKind) String() string {
	switch k {
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventForward:
		return "forward"
	case EventBackward:
		return "backward"
	case EventProgress:
		return "progress"
	case EventFinished:
		return "finished"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is delivered to the registered listener.
type Event struct {
	Kind     EventKind
	Snapshot Snapshot
}
