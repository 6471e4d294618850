package ui

import (
	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Toggle   key.Binding
	Back     key.Binding
	Forward  key.Binding
	Seek     key.Binding
	VolUp    key.Binding
	VolDown  key.Binding
	Next     key.Binding
	Prev     key.Binding
	Repeat   key.Binding
	Shuffle  key.Binding
	Snapshot key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Toggle:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pause")),
		Back:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "back")),
		Forward:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "forward")),
		Seek:     key.NewBinding(key.WithKeys("0", "1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("0-9", "seek")),
		VolUp:    key.NewBinding(key.WithKeys("up", "+", "="), key.WithHelp("+", "volume up")),
		VolDown:  key.NewBinding(key.WithKeys("down", "-"), key.WithHelp("-", "volume down")),
		Next:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
		Prev:     key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "previous")),
		Repeat:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "repeat")),
		Shuffle:  key.NewBinding(key.WithKeys("z"), key.WithHelp("z", "shuffle")),
		Snapshot: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save png")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		Quit:     key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// withQueue enables the track keys only when there is more than one track.
func (k keyMap) withQueue(hasQueue bool) keyMap {
	k.Next.SetEnabled(hasQueue)
	k.Prev.SetEnabled(hasQueue)
	k.Shuffle.SetEnabled(hasQueue)
	return k
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Back, k.Forward, k.Seek, k.Snapshot, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Back, k.Forward, k.Seek},
		{k.VolUp, k.VolDown, k.Repeat, k.Snapshot},
		{k.Next, k.Prev, k.Shuffle},
		{k.Help, k.Quit},
	}
}
