package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/olivier-w/soundwave/internal/audio"
	"github.com/olivier-w/soundwave/internal/observe"
)

const finishPollInterval = 200 * time.Millisecond

// ErrNotSeekable is returned by seeks on a player whose source cannot seek.
var ErrNotSeekable = errors.New("source is not seekable")

// Options configures a Player.
type Options struct {
	// Skip is the distance moved by Forward and Backward.
	Skip time.Duration
	// ProgressInterval is the cadence of EventProgress while playing.
	ProgressInterval time.Duration
	// Loop restarts the track when it ends.
	Loop   bool
	Volume float64

	// OnEvent is registered before playback starts so the initial
	// EventPlay is observed.
	OnEvent func(Event)

	Logger  *slog.Logger
	Metrics *observe.Metrics
}

// DefaultOptions returns a 15s skip, a 1s progress cadence and looping
// playback at 80% volume.
func DefaultOptions() Options {
	return Options{
		Skip:             15 * time.Second,
		ProgressInterval: time.Second,
		Loop:             true,
		Volume:           0.8,
	}
}

// output is the subset of *oto.Player the transport drives.
type output interface {
	Play()
	Pause()
	IsPlaying() bool
	SetVolume(float64)
}

// countingReader wraps an io.Reader and tracks bytes read.
type countingReader struct {
	reader io.Reader
	pos    int64
	mu     sync.Mutex
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.reader.Read(p)
	cr.mu.Lock()
	cr.pos += int64(n)
	cr.mu.Unlock()
	return n, err
}

func (cr *countingReader) Pos() int64 {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return cr.pos
}

func (cr *countingReader) SetPos(pos int64) {
	cr.mu.Lock()
	cr.pos = pos
	cr.mu.Unlock()
}

// Player plays one audio file and reports transport events to a single
// listener.
type Player struct {
	decoder     audio.Decoder
	counter     *countingReader
	newOutput   func(io.Reader) output
	out         output
	bytesPerSec int64
	canSeek     bool
	duration    time.Duration

	volume   float64
	paused   bool
	loop     bool
	skip     time.Duration
	interval time.Duration

	listener func(Event)
	log      *slog.Logger
	metrics  *observe.Metrics

	stopMon chan struct{}
	cleanup func()
	closed  bool
	mu      sync.Mutex
}

var (
	globalOtoCtx *oto.Context
	otoOnce      sync.Once
	otoInitErr   error
)

func initOto() (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   outputRate,
			ChannelCount: outputChannels,
			Format:       oto.FormatSignedInt16LE,
		}
		var ready chan struct{}
		globalOtoCtx, ready, otoInitErr = oto.NewContext(op)
		if otoInitErr == nil {
			<-ready
		}
	})
	return globalOtoCtx, otoInitErr
}

// New opens path and starts playing it.
func New(path string, opts Options) (*Player, error) {
	s, err := audio.OpenStream(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	res, err := newResampler(s)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("preparing %s for playback: %w", path, err)
	}
	ctx, err := initOto()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("initializing audio output: %w", err)
	}

	newOut := func(r io.Reader) output { return ctx.NewPlayer(r) }
	cleanup := func() {
		if err := s.Close(); err != nil && opts.Logger != nil {
			opts.Logger.Warn("closing playback stream", "path", path, "err", err)
		}
	}
	return start(res, opts, newOut, cleanup), nil
}

// start wires a player around dec and begins playback.
func start(dec audio.Decoder, opts Options, newOut func(io.Reader) output, cleanup func()) *Player {
	def := DefaultOptions()
	if opts.Skip <= 0 {
		opts.Skip = def.Skip
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = def.ProgressInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	bps := int64(dec.SampleRate() * dec.ChannelCount() * 2)
	p := &Player{
		decoder:     dec,
		counter:     &countingReader{reader: dec},
		newOutput:   newOut,
		bytesPerSec: bps,
		canSeek:     true,
		duration:    bytesToDuration(dec.Length(), bps),
		volume:      clampVolume(opts.Volume),
		loop:        opts.Loop,
		skip:        opts.Skip,
		interval:    opts.ProgressInterval,
		listener:    opts.OnEvent,
		log:         opts.Logger,
		metrics:     opts.Metrics,
		stopMon:     make(chan struct{}),
		cleanup:     cleanup,
	}

	p.mu.Lock()
	p.restartOutputLocked(true)
	p.mu.Unlock()

	go p.monitor(p.stopMon)
	p.emit(EventPlay)
	return p
}

// OnEvent registers fn as the only listener. A later call replaces it and
// nil removes it.
func (p *Player) OnEvent(fn func(Event)) {
	p.mu.Lock()
	p.listener = fn
	p.mu.Unlock()
}

func (p *Player) emit(kind EventKind) {
	p.mu.Lock()
	fn := p.listener
	snap := p.snapshotLocked()
	m := p.metrics
	p.mu.Unlock()

	if m != nil {
		m.RecordPlaybackEvent(context.Background(), kind.String())
	}
	if fn != nil {
		fn(Event{Kind: kind, Snapshot: snap})
	}
}

func (p *Player) monitor(stop <-chan struct{}) {
	progress := time.NewTicker(p.interval)
	defer progress.Stop()
	poll := time.NewTicker(min(p.interval, finishPollInterval))
	defer poll.Stop()

	for {
		select {
		case <-stop:
			return
		case <-progress.C:
			p.mu.Lock()
			playing := !p.paused && !p.closed
			p.mu.Unlock()
			if playing {
				p.emit(EventProgress)
			}
		case <-poll.C:
			p.checkFinished()
		}
	}
}

// checkFinished detects the end of the track and either loops or parks
// playback at the end.
func (p *Player) checkFinished() {
	p.mu.Lock()
	if p.paused || p.closed || p.counter.Pos() < p.decoder.Length() {
		p.mu.Unlock()
		return
	}

	looped := false
	if p.loop && p.decoder.Length() > 0 && p.canSeek {
		if err := p.seekLocked(0, true); err != nil {
			p.log.Warn("restarting track failed", "err", err)
			p.pauseLocked()
		} else {
			looped = true
		}
	} else {
		p.pauseLocked()
	}
	p.mu.Unlock()

	p.emit(EventFinished)
	if looped {
		p.emit(EventPlay)
	}
}

// Snapshot returns the current position and track duration.
func (p *Player) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Player) snapshotLocked() Snapshot {
	var pos int64
	if p.counter != nil {
		pos = p.counter.Pos()
	}
	cur := bytesToDuration(pos, p.bytesPerSec)
	if p.duration > 0 && cur > p.duration {
		cur = p.duration
	}
	return Snapshot{Duration: p.duration, Current: cur}
}

// Duration returns the total duration of the track.
func (p *Player) Duration() time.Duration { return p.duration }

// Play resumes playback. At the end of a finished track it starts over.
func (p *Player) Play() {
	p.mu.Lock()
	if p.closed || !p.paused {
		p.mu.Unlock()
		return
	}
	if p.decoder != nil && p.counter.Pos() >= p.decoder.Length() && p.canSeek {
		if err := p.seekLocked(0, true); err != nil {
			p.log.Warn("rewinding finished track failed", "err", err)
		}
	} else {
		if p.out != nil {
			p.out.Play()
		}
		p.paused = false
	}
	p.mu.Unlock()
	p.emit(EventPlay)
}

// Pause pauses playback.
func (p *Player) Pause() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.pauseLocked()
	p.mu.Unlock()
	p.emit(EventPause)
}

func (p *Player) pauseLocked() {
	if p.out != nil {
		p.out.Pause()
	}
	p.paused = true
}

// TogglePause toggles between play and pause.
func (p *Player) TogglePause() {
	if p.Paused() {
		p.Play()
	} else {
		p.Pause()
	}
}

// Paused returns whether playback is paused.
func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// IsPlaying reports whether audio is being produced.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.paused && !p.closed
}

// Forward skips ahead by the configured skip distance.
func (p *Player) Forward() error { return p.skipBy(p.skip, EventForward) }

// Backward skips back by the configured skip distance.
func (p *Player) Backward() error { return p.skipBy(-p.skip, EventBackward) }

func (p *Player) skipBy(delta time.Duration, kind EventKind) error {
	p.mu.Lock()
	target := p.snapshotLocked().Current + delta
	err := p.seekLocked(target, !p.paused)
	p.mu.Unlock()
	if err != nil {
		return err
	}
	p.emit(kind)
	p.emit(EventProgress)
	return nil
}

// SeekPercent moves to pct percent of the track. pct is clamped to [0, 100].
func (p *Player) SeekPercent(pct float64) error {
	if math.IsNaN(pct) || pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	p.mu.Lock()
	target := time.Duration(float64(p.duration) * pct / 100)
	err := p.seekLocked(target, !p.paused)
	p.mu.Unlock()
	if err != nil {
		return err
	}
	p.emit(EventProgress)
	return nil
}

// SeekTo moves playback to target. With resume false the player is left
// paused at the new position.
func (p *Player) SeekTo(target time.Duration, resume bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seekLocked(target, resume)
}

func (p *Player) seekLocked(target time.Duration, resume bool) error {
	if !p.canSeek {
		return ErrNotSeekable
	}
	pos := clampSeekByteOffset(target, p.bytesPerSec, p.decoder.Length(), outputFrameSize)
	if _, err := p.decoder.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("seeking to %v: %w", target, err)
	}
	p.counter.SetPos(pos)
	p.restartOutputLocked(resume)
	return nil
}

// restartOutputLocked replaces the output so buffered audio from the old
// position is discarded.
func (p *Player) restartOutputLocked(resume bool) {
	if p.out != nil {
		p.out.Pause()
	}
	if p.newOutput != nil {
		p.out = p.newOutput(p.counter)
		p.out.SetVolume(p.volume)
	}
	p.paused = !resume
	if resume && p.out != nil {
		p.out.Play()
	}
}

// clampSeekByteOffset converts target to a byte offset within [0, total]
// aligned down to frameSize.
func clampSeekByteOffset(target time.Duration, bytesPerSec, total int64, frameSize int64) int64 {
	pos := int64(target.Seconds() * float64(bytesPerSec))
	return clampSeekBytes(pos, total, frameSize)
}

func clampSeekBytes(pos, total, frameSize int64) int64 {
	if pos < 0 {
		pos = 0
	}
	if pos > total {
		pos = total
	}
	if frameSize > 0 {
		pos -= pos % frameSize
	}
	return pos
}

func bytesToDuration(n, bytesPerSec int64) time.Duration {
	if bytesPerSec <= 0 || n <= 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(bytesPerSec) * float64(time.Second))
}

// SetLoop sets whether the track restarts when it ends.
func (p *Player) SetLoop(loop bool) {
	p.mu.Lock()
	p.loop = loop
	p.mu.Unlock()
}

// Loop reports whether the track restarts when it ends.
func (p *Player) Loop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loop
}

// Volume returns current volume (0.0 to 1.0).
func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// SetVolume sets volume (clamped to 0.0 - 1.0).
func (p *Player) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = clampVolume(v)
	if p.out != nil {
		p.out.SetVolume(p.volume)
	}
}

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Close stops playback and releases the file. It is safe to call more than
// once.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	if p.out != nil {
		p.out.Pause()
	}
	if p.stopMon != nil {
		close(p.stopMon)
	}
	if p.cleanup != nil {
		p.cleanup()
	}
}
