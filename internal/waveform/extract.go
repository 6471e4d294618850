package waveform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/olivier-w/soundwave/internal/audio"
	"github.com/olivier-w/soundwave/internal/observe"
)

// DefaultChunkSamples is the number of interleaved samples decoded per read.
const DefaultChunkSamples = 8192

// chunksInFlight bounds how many decoded chunks wait for the downsampler.
const chunksInFlight = 3

// ErrSuperseded is delivered to a completion callback whose request was
// replaced by a newer one before it finished.
var ErrSuperseded = errors.New("waveform request superseded")

// Sequence holds display amplitudes in [0, 1], one per bar.
type Sequence []float64

// Stage names the pipeline step an extraction failed in.
type Stage string

const (
	StageOpen   Stage = "open"
	StageDecode Stage = "decode"
	StageReduce Stage = "reduce"
)

// ExtractionError reports a failed extraction.
type ExtractionError struct {
	Path  string
	Stage Stage
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting waveform from %s: %s: %v", e.Path, e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Result is handed to an Extract completion callback.
type Result struct {
	Path       string
	Generation uint64
	Amplitudes Sequence
	Err        error
}

// BucketCounter converts a display width into a bar count.
type BucketCounter interface {
	BucketCount(width int) int
}

// Opener loads the static properties of an asset.
type Opener func(path string) (*audio.Context, error)

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics sets the metric instruments. The default is observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Extractor) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithNormalizer replaces the default normalizer.
func WithNormalizer(n Normalizer) Option {
	return func(e *Extractor) { e.norm = n }
}

// WithRangeDivisor sets which fraction of a track is decoded (1/divisor).
func WithRangeDivisor(d int) Option {
	return func(e *Extractor) {
		if d >= 1 {
			e.divisor = d
		}
	}
}

// WithChunkSamples sets the decode chunk size in samples.
func WithChunkSamples(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.chunk = n
		}
	}
}

// WithOpener replaces audio.Open.
func WithOpener(o Opener) Option {
	return func(e *Extractor) {
		if o != nil {
			e.open = o
		}
	}
}

// Extractor turns audio files into amplitude sequences. Extract calls are
// last-writer-wins: starting a request cancels the one before it.
type Extractor struct {
	log     *slog.Logger
	metrics *observe.Metrics
	norm    Normalizer
	divisor int
	chunk   int
	open    Opener

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// NewExtractor returns an Extractor with the given options applied.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		log:     slog.Default(),
		norm:    DefaultNormalizer(),
		divisor: audio.DefaultRangeDivisor,
		chunk:   DefaultChunkSamples,
		open:    audio.Open,
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e
}

// Run extracts buckets amplitudes from path and blocks until done.
func (e *Extractor) Run(ctx context.Context, path string, buckets int) (Sequence, error) {
	start := time.Now()
	seq, err := e.run(ctx, path, buckets)
	status := observe.StatusOK
	if err != nil {
		status = observe.StatusError
	}
	e.metrics.RecordExtraction(ctx, status, time.Since(start).Seconds())
	return seq, err
}

// Extract starts an extraction sized for width using layout and returns
// immediately with the request's generation. onComplete is called exactly
// once from another goroutine. If a later Extract or Cancel call was made
// before this one finished, the result carries ErrSuperseded and no
// amplitudes. A later call can still land while a successful result is being
// delivered, so callers that must not act on stale data compare
// Result.Generation with [Extractor.IsCurrent] or their own saved token.
func (e *Extractor) Extract(ctx context.Context, path string, width int, layout BucketCounter, onComplete func(Result)) uint64 {
	buckets := layout.BucketCount(width)

	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.gen++
	gen := e.gen
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.mu.Unlock()

	go func() {
		defer cancel()
		start := time.Now()
		seq, err := e.run(ctx, path, buckets)

		if !e.IsCurrent(gen) {
			e.log.Debug("discarding superseded waveform", "path", path, "generation", gen)
			e.metrics.RecordExtraction(context.Background(), observe.StatusSuperseded, 0)
			onComplete(Result{Path: path, Generation: gen, Err: ErrSuperseded})
			return
		}

		status := observe.StatusOK
		if err != nil {
			status = observe.StatusError
			seq = nil
		}
		e.metrics.RecordExtraction(context.Background(), status, time.Since(start).Seconds())
		onComplete(Result{Path: path, Generation: gen, Amplitudes: seq, Err: err})
	}()
	return gen
}

// Generation returns the number of Extract calls made so far.
func (e *Extractor) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen
}

// Cancel abandons the in-flight Extract request, if any. Its callback still
// fires with ErrSuperseded.
func (e *Extractor) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.gen++
}

// IsCurrent reports whether gen is still the latest request.
func (e *Extractor) IsCurrent(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen == gen
}

func (e *Extractor) run(ctx context.Context, path string, buckets int) (Sequence, error) {
	if buckets < 0 {
		return nil, &ExtractionError{Path: path, Stage: StageReduce, Err: ErrInvalidBucketCount}
	}
	if buckets == 0 {
		return Sequence{}, nil
	}

	start := time.Now()
	ac, err := e.open(path)
	if err != nil {
		e.log.Warn("waveform open failed", "path", path, "err", err)
		return nil, &ExtractionError{Path: path, Stage: StageOpen, Err: err}
	}

	rng := ac.DefaultRange(e.divisor)
	r, err := ac.ReadRaw(rng)
	if err != nil {
		e.log.Warn("waveform reader failed", "path", path, "err", err)
		return nil, &ExtractionError{Path: path, Stage: StageDecode, Err: err}
	}
	defer r.Close()

	mags, decoded, err := e.reduce(ctx, r, ac.Channels, rng.Length, buckets)
	e.metrics.ExtractSamples.Add(ctx, decoded)
	if err != nil {
		e.log.Warn("waveform decode failed", "path", path, "err", err)
		return nil, &ExtractionError{Path: path, Stage: StageDecode, Err: err}
	}

	seq := Sequence(e.norm.Normalize(mags))
	e.log.Debug("waveform extracted",
		"path", path,
		"buckets", len(seq),
		"samples", decoded,
		"elapsed", time.Since(start),
	)
	return seq, nil
}

// reduce decodes on one goroutine and downsamples on another. Chunk buffers
// circulate between them so at most chunksInFlight are allocated.
func (e *Extractor) reduce(ctx context.Context, r SampleReader, channels int, rangeLength int64, buckets int) ([]float64, int64, error) {
	d, err := NewDownsampler(channels, rangeLength, buckets)
	if err != nil {
		return nil, 0, err
	}

	free := make(chan []int16, chunksInFlight)
	for range chunksInFlight {
		free <- make([]int16, e.chunk)
	}
	full := make(chan []int16, chunksInFlight)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(full)
		for {
			if err := gctx.Err(); err != nil {
				return err
			}
			var buf []int16
			select {
			case buf = <-free:
			case <-gctx.Done():
				return gctx.Err()
			}

			n, err := r.ReadSamples(buf)
			if n > 0 {
				select {
				case full <- buf[:n]:
				case <-gctx.Done():
					return gctx.Err()
				}
			} else {
				free <- buf
			}

			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
		}
	})

	var decoded int64
	g.Go(func() error {
		for chunk := range full {
			d.Write(chunk)
			decoded += int64(len(chunk))
			free <- chunk[:cap(chunk)]
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, decoded, err
	}
	return d.Flush(), decoded, nil
}
