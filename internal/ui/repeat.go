package ui

// RepeatMode selects what happens when a track ends.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatOne
)

func repeatFromLoop(loop bool) RepeatMode {
	if loop {
		return RepeatOne
	}
	return RepeatOff
}

// Next cycles to the next repeat mode.
func (r RepeatMode) Next() RepeatMode {
	switch r {
	case RepeatOff:
		return RepeatOne
	default:
		return RepeatOff
	}
}

// Loop reports whether the player should restart the track at its end.
func (r RepeatMode) Loop() bool { return r == RepeatOne }

// String returns the name of the repeat mode.
func (r RepeatMode) String() string {
	switch r {
	case RepeatOne:
		return "one"
	default:
		return "off"
	}
}

// Icon returns a visual indicator for the repeat mode.
func (r RepeatMode) Icon() string {
	switch r {
	case RepeatOne:
		return "[repeat]"
	default:
		return ""
	}
}
