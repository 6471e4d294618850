package ui

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/olivier-w/soundwave/internal/audio"
	"github.com/olivier-w/soundwave/internal/player"
	"github.com/olivier-w/soundwave/internal/queue"
	"github.com/olivier-w/soundwave/internal/render"
	"github.com/olivier-w/soundwave/internal/util"
	"github.com/olivier-w/soundwave/internal/visualizer"
	"github.com/olivier-w/soundwave/internal/waveform"
)

const (
	statusTTL   = 5 * time.Second
	volumeStep  = 0.05
	defaultRows = 4
	columnSlack = 4
)

// Transport is the playback surface the model drives.
type Transport interface {
	TogglePause()
	Paused() bool
	Forward() error
	Backward() error
	SeekPercent(pct float64) error
	Snapshot() player.Snapshot
	Volume() float64
	SetVolume(v float64)
	SetLoop(loop bool)
	Close()
}

// OpenFunc starts playback of path. The model fills in opts.OnEvent.
type OpenFunc func(path string, opts player.Options) (Transport, error)

func openPlayer(path string, opts player.Options) (Transport, error) {
	p, err := player.New(path, opts)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Config holds what New needs to build a Model.
type Config struct {
	Queue      *queue.Queue
	Player     player.Options
	Open       OpenFunc
	Extractor  *waveform.Extractor
	Compositor *render.Compositor

	// Rows is the height of the waveform in terminal cells.
	Rows int
	// SnapshotDir receives PNGs written with the snapshot key.
	SnapshotDir    string
	SnapshotHeight int

	Logger *slog.Logger
}

// Model is the Bubbletea model for the soundwave TUI.
type Model struct {
	queue      *queue.Queue
	playerOpts player.Options
	open       OpenFunc
	extractor  *waveform.Extractor
	compositor *render.Compositor
	columns    visualizer.Columns
	bars       *visualizer.Bars
	ctx        context.Context
	log        *slog.Logger

	trackGen  uint64
	transport Transport
	meta      audio.Metadata
	snap      player.Snapshot
	paused    bool
	volume    float64
	repeat    RepeatMode

	amps      waveform.Sequence
	waveGen   uint64
	buckets   int
	loading   bool
	waveErr   error
	animating bool

	events chan playerEventMsg
	waves  chan waveform.Result

	spinner spinner.Model
	help    help.Model
	keys    keyMap

	snapshotDir    string
	snapshotHeight int

	width      int
	status     string
	statusTime time.Time
	quitting   bool
}

// New creates a Model that plays the current track of cfg.Queue.
func New(cfg Config) Model {
	if cfg.Open == nil {
		cfg.Open = openPlayer
	}
	if cfg.Extractor == nil {
		cfg.Extractor = waveform.NewExtractor(waveform.WithLogger(cfg.Logger))
	}
	if cfg.Compositor == nil {
		cfg.Compositor = render.NewCompositor(render.DefaultLayout())
	}
	if cfg.Rows <= 0 {
		cfg.Rows = defaultRows
	}
	if cfg.SnapshotDir == "" {
		cfg.SnapshotDir = "."
	}
	if cfg.SnapshotHeight <= 0 {
		cfg.SnapshotHeight = 50
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Queue == nil {
		cfg.Queue = queue.New(nil)
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#AAAAAA"})

	layout := cfg.Compositor.Layout()
	m := Model{
		queue:          cfg.Queue,
		playerOpts:     cfg.Player,
		open:           cfg.Open,
		extractor:      cfg.Extractor,
		compositor:     cfg.Compositor,
		columns:        visualizer.Columns{Margin: columnSlack},
		bars:           visualizer.NewBars(cfg.Rows, layout.Played, layout.Pending),
		ctx:            context.Background(),
		log:            cfg.Logger,
		trackGen:       1,
		volume:         cfg.Player.Volume,
		repeat:         repeatFromLoop(cfg.Player.Loop),
		loading:        true,
		events:         make(chan playerEventMsg, 64),
		waves:          make(chan waveform.Result, 16),
		spinner:        s,
		help:           help.New(),
		keys:           defaultKeyMap().withQueue(cfg.Queue.Len() > 1),
		snapshotDir:    cfg.SnapshotDir,
		snapshotHeight: cfg.SnapshotHeight,
	}
	if t := m.queue.Current(); t != nil {
		m.meta = audio.Metadata{Title: t.Title}
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.openCmd(),
		waitForEvent(m.events),
		waitForWaveform(m.waves),
		m.spinner.Tick,
		tea.SetWindowTitle(windowTitle(m.meta.Title, false)),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.handleMsg(msg)
	return next, cmd
}

func (m Model) handleMsg(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width - 4
		if m.columns.BucketCount(m.width) != m.buckets {
			cmd := m.extract()
			return m, cmd
		}
		return m, nil

	case trackOpenedMsg:
		if msg.gen != m.trackGen {
			if msg.transport != nil {
				msg.transport.Close()
			}
			return m, nil
		}
		if msg.err != nil {
			m.queue.SetTrackState(m.queue.CurrentIndex(), queue.Failed)
			m.log.Warn("opening track failed", "err", msg.err)
			m.setStatus(fmt.Sprintf("Cannot play: %v", msg.err))
			return m, nil
		}
		m.transport = msg.transport
		m.meta = msg.meta
		m.queue.SetTrackTitle(m.queue.CurrentIndex(), msg.meta.Title)
		m.transport.SetLoop(m.repeat.Loop())
		m.snap = m.transport.Snapshot()
		m.volume = m.transport.Volume()
		m.paused = m.transport.Paused()
		return m, tea.SetWindowTitle(windowTitle(m.meta.Title, m.paused))

	case playerEventMsg:
		wait := waitForEvent(m.events)
		if msg.gen != m.trackGen {
			return m, wait
		}
		m.snap = msg.event.Snapshot
		m.expireStatus()
		switch msg.event.Kind {
		case player.EventPlay:
			m.paused = false
		case player.EventPause:
			m.paused = true
		case player.EventFinished:
			if !m.repeat.Loop() {
				if m.queue.Advance() {
					cmd := m.startTrack()
					return m, tea.Batch(wait, cmd)
				}
				m.paused = true
			}
		}
		return m, wait

	case waveformMsg:
		wait := waitForWaveform(m.waves)
		if msg.Generation != m.waveGen {
			m.log.Debug("ignoring stale waveform", "generation", msg.Generation, "current", m.waveGen)
			return m, wait
		}
		m.loading = false
		if msg.Err != nil {
			m.waveErr = msg.Err
			m.log.Warn("waveform extraction failed", "path", msg.Path, "err", msg.Err)
			return m, wait
		}
		m.waveErr = nil
		m.amps = msg.Amplitudes
		m.bars.SetTargets(m.amps)
		if m.animating {
			return m, wait
		}
		m.animating = true
		return m, tea.Batch(wait, animateCmd())

	case animateMsg:
		if m.bars.Step() {
			return m, animateCmd()
		}
		m.animating = false
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case snapshotSavedMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("Save failed: %v", msg.err))
		} else {
			m.setStatus(fmt.Sprintf("Saved %s", msg.path))
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.shutdown()
		return m, tea.Sequence(tea.SetWindowTitle(""), tea.Quit)

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Next):
		if m.queue.Advance() {
			cmd := m.startTrack()
			return m, cmd
		}
		return m, nil

	case key.Matches(msg, m.keys.Prev):
		if m.queue.Previous() {
			cmd := m.startTrack()
			return m, cmd
		}
		return m, nil

	case key.Matches(msg, m.keys.Shuffle):
		if m.queue.IsShuffled() {
			m.queue.DisableShuffle()
		} else {
			m.queue.EnableShuffle()
		}
		return m, nil

	case key.Matches(msg, m.keys.Repeat):
		m.repeat = m.repeat.Next()
		if m.transport != nil {
			m.transport.SetLoop(m.repeat.Loop())
		}
		return m, nil

	case key.Matches(msg, m.keys.Snapshot):
		return m, m.saveSnapshot()
	}

	if m.transport == nil {
		return m, nil
	}

	var err error
	switch {
	case key.Matches(msg, m.keys.Toggle):
		m.transport.TogglePause()
		m.paused = m.transport.Paused()
		return m, tea.SetWindowTitle(windowTitle(m.meta.Title, m.paused))
	case key.Matches(msg, m.keys.Back):
		err = m.transport.Backward()
	case key.Matches(msg, m.keys.Forward):
		err = m.transport.Forward()
	case key.Matches(msg, m.keys.Seek):
		digit := msg.String()[0] - '0'
		err = m.transport.SeekPercent(float64(digit) * 10)
	case key.Matches(msg, m.keys.VolUp):
		m.transport.SetVolume(m.transport.Volume() + volumeStep)
		m.volume = m.transport.Volume()
		return m, nil
	case key.Matches(msg, m.keys.VolDown):
		m.transport.SetVolume(m.transport.Volume() - volumeStep)
		m.volume = m.transport.Volume()
		return m, nil
	default:
		return m, nil
	}

	if err != nil {
		m.setStatus(fmt.Sprintf("Seek failed: %v", err))
	}
	m.snap = m.transport.Snapshot()
	return m, nil
}

// startTrack replaces the transport and waveform with the queue's current
// track. Results for the previous track are dropped by generation.
func (m *Model) startTrack() tea.Cmd {
	if m.transport != nil {
		m.transport.Close()
		m.transport = nil
	}
	m.trackGen++
	m.snap = player.Snapshot{}
	m.paused = false
	m.amps = nil
	m.waveErr = nil
	m.bars.SetTargets(nil)
	m.buckets = 0
	m.loading = true
	if t := m.queue.Current(); t != nil {
		m.meta = audio.Metadata{Title: t.Title}
	}
	return tea.Batch(m.openCmd(), m.extract())
}

func (m Model) openCmd() tea.Cmd {
	t := m.queue.Current()
	if t == nil {
		return nil
	}
	gen, path, open, events := m.trackGen, t.Path, m.open, m.events
	opts := m.playerOpts
	opts.Loop = m.repeat.Loop()
	opts.Logger = m.log
	opts.OnEvent = func(e player.Event) {
		select {
		case events <- playerEventMsg{gen: gen, event: e}:
		default:
		}
	}
	return func() tea.Msg {
		tr, err := open(path, opts)
		return trackOpenedMsg{gen: gen, transport: tr, meta: audio.ReadMetadata(path), err: err}
	}
}

// extract starts a waveform extraction sized to the window. It waits for the
// first window size.
func (m *Model) extract() tea.Cmd {
	t := m.queue.Current()
	if t == nil || m.width <= 0 {
		return nil
	}
	m.buckets = m.columns.BucketCount(m.width)
	waves := m.waves
	m.waveGen = m.extractor.Extract(m.ctx, t.Path, m.width, m.columns, func(r waveform.Result) {
		if errors.Is(r.Err, waveform.ErrSuperseded) {
			return
		}
		waves <- r
	})
	m.loading = true
	return m.spinner.Tick
}

func (m Model) progressIndex() int {
	return waveform.ProgressIndex(len(m.amps), m.snap.Current, m.snap.Duration)
}

func (m Model) saveSnapshot() tea.Cmd {
	if len(m.amps) == 0 {
		return nil
	}
	amps := append(waveform.Sequence(nil), m.amps...)
	progress := m.progressIndex()
	c, dir, height := m.compositor, m.snapshotDir, m.snapshotHeight
	name := util.SanitizeFilename(m.meta.Title, "waveform")

	return func() tea.Msg {
		width := int(math.Ceil(float64(len(amps)) * c.Layout().Pitch()))
		img := c.Render(amps, progress, image.Pt(width, height))
		path := uniquePath(filepath.Join(dir, name+".png"))
		return snapshotSavedMsg{path: path, err: render.SavePNG(path, img)}
	}
}

// uniquePath appends -1, -2, ... before the extension until path is unused.
func uniquePath(path string) string {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return path
	}
	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	for i := 1; ; i++ {
		p := fmt.Sprintf("%s-%d%s", base, i, ext)
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			return p
		}
	}
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusTime = time.Now()
}

func (m *Model) expireStatus() {
	if m.status != "" && time.Since(m.statusTime) > statusTTL {
		m.status = ""
	}
}

func (m *Model) shutdown() {
	m.extractor.Cancel()
	if m.transport != nil {
		m.transport.Close()
		m.transport = nil
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	w := m.width
	if w < 30 {
		w = 50
	}

	lines := "\n"
	lines += "  " + headerStyle.Render("soundwave") + "\n"
	lines += "\n"
	lines += "  " + titleStyle.Render(m.meta.Title) + "\n"
	if sub := subtitle(m.meta); sub != "" {
		lines += "  " + artistStyle.Render(sub) + "\n"
	}
	lines += "\n"

	switch {
	case m.waveErr != nil:
		lines += "  " + errorStyle.Render(fmt.Sprintf("Waveform unavailable: %v", m.waveErr)) + "\n"
	case m.loading && len(m.amps) == 0:
		lines += "  " + m.spinner.View() + " " + statusStyle.Render("Reading waveform...") + "\n"
	default:
		lines += indent(m.bars.View(m.progressIndex()))
	}
	lines += "\n"

	clock := renderClock(m.snap.Current, m.snap.Duration)
	state := "▶  playing"
	if m.paused {
		state = "❚❚ paused"
	}
	if icon := m.repeat.Icon(); icon != "" {
		state += "  " + icon
	}
	if m.queue.IsShuffled() {
		state += "  [shuffle]"
	}
	left := clock + "   " + state
	vol := renderVolumePercent(m.volume)
	gap := w - lipgloss.Width(left) - len(vol) - 4
	lines += "  " + timeStyle.Render(clock) + statusStyle.Render("   "+state) + spaces(max(gap, 2)) + statusStyle.Render(vol) + "\n"

	if n := m.queue.Len(); n > 1 {
		lines += "  " + helpStyle.Render(fmt.Sprintf("track %d/%d", m.queue.CurrentIndex()+1, n)) + "\n"
	}
	if m.status != "" {
		lines += "  " + helpStyle.Render(m.status) + "\n"
	}
	lines += "\n"
	lines += "  " + m.help.View(m.keys) + "\n"

	return lines
}

func subtitle(meta audio.Metadata) string {
	switch {
	case meta.Artist != "" && meta.Album != "":
		return meta.Artist + " - " + meta.Album
	case meta.Artist != "":
		return meta.Artist
	default:
		return meta.Album
	}
}
