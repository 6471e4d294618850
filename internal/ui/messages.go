package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/olivier-w/soundwave/internal/audio"
	"github.com/olivier-w/soundwave/internal/player"
	"github.com/olivier-w/soundwave/internal/visualizer"
	"github.com/olivier-w/soundwave/internal/waveform"
)

// playerEventMsg carries a transport event for the track opened as gen.
type playerEventMsg struct {
	gen   uint64
	event player.Event
}

// waveformMsg carries a finished extraction.
type waveformMsg waveform.Result

type trackOpenedMsg struct {
	gen       uint64
	transport Transport
	meta      audio.Metadata
	err       error
}

type animateMsg time.Time

type snapshotSavedMsg struct {
	path string
	err  error
}

func animateCmd() tea.Cmd {
	return tea.Tick(time.Second/visualizer.FPS, func(t time.Time) tea.Msg {
		return animateMsg(t)
	})
}

func waitForEvent(ch <-chan playerEventMsg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

func waitForWaveform(ch <-chan waveform.Result) tea.Cmd {
	return func() tea.Msg {
		return waveformMsg(<-ch)
	}
}
