package waveform

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/olivier-w/soundwave/internal/audio"
	"github.com/olivier-w/soundwave/internal/observe"
)

type fixedBuckets int

func (f fixedBuckets) BucketCount(int) int { return int(f) }

func writeWAV(t *testing.T, name string, rate, channels int, samples []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create(%q) error = %v", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encoder Write() error = %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("encoder Close() error = %v", err)
	}
	return path
}

// swell returns a mono tone whose amplitude grows across the clip.
func swell(n int) []int {
	out := make([]int, n)
	for i := range out {
		amp := 200 + 30000*float64(i)/float64(n)
		out[i] = int(amp * math.Sin(float64(i)*0.3))
	}
	return out
}

func newTestExtractor(t *testing.T, opts ...Option) (*Extractor, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	base := []Option{
		WithMetrics(m),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return NewExtractor(append(base, opts...)...), reader
}

func sumCounter(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != name {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %q is not an int64 sum", name)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestRunDecodesFirstThird(t *testing.T) {
	const rate = 44100
	path := writeWAV(t, "thirty.wav", rate, 1, swell(30*rate))

	e, reader := newTestExtractor(t)
	seq, err := e.Run(context.Background(), path, 50)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(seq) < 50 || len(seq) > 51 {
		t.Fatalf("len = %d, want 50 or 51", len(seq))
	}
	for i, v := range seq {
		if math.IsNaN(v) || v < 0 || v > 1 {
			t.Fatalf("seq[%d] = %v, want within [0, 1]", i, v)
		}
	}
	if got := sumCounter(t, reader, "soundwave.extract.samples"); got != 10*rate {
		t.Fatalf("decoded samples = %d, want %d (first 10s)", got, 10*rate)
	}
	if seq[len(seq)-1] <= seq[0] {
		t.Fatalf("last bar %v should be louder than first %v", seq[len(seq)-1], seq[0])
	}
}

func TestRunWholeTrackWithDivisorOne(t *testing.T) {
	path := writeWAV(t, "short.wav", 8000, 2, swell(16000))

	e, reader := newTestExtractor(t, WithRangeDivisor(1), WithChunkSamples(100))
	seq, err := e.Run(context.Background(), path, 40)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(seq) != 40 {
		t.Fatalf("len = %d, want 40", len(seq))
	}
	if got := sumCounter(t, reader, "soundwave.extract.samples"); got != 16000 {
		t.Fatalf("decoded samples = %d, want 16000", got)
	}
}

func TestRunSilentTrack(t *testing.T) {
	path := writeWAV(t, "silent.wav", 8000, 1, make([]int, 9000))

	e, _ := newTestExtractor(t)
	seq, err := e.Run(context.Background(), path, 30)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for i, v := range seq {
		if v != 0 {
			t.Fatalf("seq[%d] = %v, want 0", i, v)
		}
	}
}

func TestRunZeroBuckets(t *testing.T) {
	e, _ := newTestExtractor(t, WithOpener(func(string) (*audio.Context, error) {
		t.Fatal("opener called for zero buckets")
		return nil, nil
	}))
	seq, err := e.Run(context.Background(), "unused.wav", 0)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(seq) != 0 {
		t.Fatalf("len = %d, want 0", len(seq))
	}
}

func TestRunOpenFailure(t *testing.T) {
	e, _ := newTestExtractor(t)
	_, err := e.Run(context.Background(), filepath.Join(t.TempDir(), "missing.wav"), 10)

	var xerr *ExtractionError
	if !errors.As(err, &xerr) {
		t.Fatalf("Run() error = %v, want *ExtractionError", err)
	}
	if xerr.Stage != StageOpen {
		t.Fatalf("Stage = %q, want %q", xerr.Stage, StageOpen)
	}
	var lerr *audio.AssetLoadError
	if !errors.As(err, &lerr) {
		t.Fatalf("Run() error = %v, want wrapped *audio.AssetLoadError", err)
	}
}

func TestRunCanceledContext(t *testing.T) {
	path := writeWAV(t, "tone.wav", 8000, 1, swell(24000))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, _ := newTestExtractor(t, WithRangeDivisor(1))
	_, err := e.Run(ctx, path, 10)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
}

func TestExtractSupersedesEarlierRequest(t *testing.T) {
	pathA := writeWAV(t, "a.wav", 8000, 1, swell(8000))
	pathB := writeWAV(t, "b.wav", 8000, 1, swell(8000))

	gate := make(chan struct{})
	opener := func(path string) (*audio.Context, error) {
		if path == pathA {
			<-gate
		}
		return audio.Open(path)
	}
	e, reader := newTestExtractor(t, WithOpener(opener))

	results := make(chan Result, 2)
	genA := e.Extract(context.Background(), pathA, 600, fixedBuckets(20), func(r Result) { results <- r })
	genB := e.Extract(context.Background(), pathB, 600, fixedBuckets(20), func(r Result) { results <- r })

	var b Result
	select {
	case b = <-results:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for B")
	}
	if b.Path != pathB || b.Generation != genB {
		t.Fatalf("first result = %+v, want B", b)
	}
	if b.Err != nil || len(b.Amplitudes) != 20 {
		t.Fatalf("B = err %v len %d, want 20 amplitudes", b.Err, len(b.Amplitudes))
	}

	close(gate)
	var a Result
	select {
	case a = <-results:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for A")
	}
	if a.Generation != genA || !errors.Is(a.Err, ErrSuperseded) {
		t.Fatalf("A = %+v, want ErrSuperseded", a)
	}
	if a.Amplitudes != nil {
		t.Fatalf("A amplitudes = %v, want nil", a.Amplitudes)
	}

	if got := sumCounter(t, reader, "soundwave.extract.requests"); got != 2 {
		t.Fatalf("requests = %d, want 2", got)
	}
}

func TestExtractUsesBucketCounter(t *testing.T) {
	path := writeWAV(t, "c.wav", 8000, 1, swell(8000))
	e, _ := newTestExtractor(t)

	done := make(chan Result, 1)
	e.Extract(context.Background(), path, 123, fixedBuckets(7), func(r Result) { done <- r })
	select {
	case r := <-done:
		if r.Err != nil {
			t.Fatalf("Err = %v", r.Err)
		}
		if len(r.Amplitudes) != 7 {
			t.Fatalf("len = %d, want 7", len(r.Amplitudes))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
}

func TestCancelSupersedesInFlight(t *testing.T) {
	path := writeWAV(t, "d.wav", 8000, 1, swell(8000))
	gate := make(chan struct{})
	e, _ := newTestExtractor(t, WithOpener(func(p string) (*audio.Context, error) {
		<-gate
		return audio.Open(p)
	}))

	done := make(chan Result, 1)
	e.Extract(context.Background(), path, 0, fixedBuckets(5), func(r Result) { done <- r })
	e.Cancel()
	close(gate)

	select {
	case r := <-done:
		if !errors.Is(r.Err, ErrSuperseded) {
			t.Fatalf("Err = %v, want ErrSuperseded", r.Err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
}

func TestIsCurrentDetectsResultStaledDuringDelivery(t *testing.T) {
	path := writeWAV(t, "e.wav", 8000, 1, swell(8000))
	e, _ := newTestExtractor(t)

	delivered := make(chan Result, 1)
	var genB uint64
	genA := e.Extract(context.Background(), path, 0, fixedBuckets(5), func(r Result) {
		// A newer request arrives while A's successful result is in hand.
		genB = e.Extract(context.Background(), path, 0, fixedBuckets(5), func(Result) {})
		delivered <- r
	})

	var a Result
	select {
	case a = <-delivered:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
	if a.Err != nil || a.Generation != genA || len(a.Amplitudes) != 5 {
		t.Fatalf("A = %+v, want a successful result for generation %d", a, genA)
	}
	if e.IsCurrent(a.Generation) {
		t.Fatal("IsCurrent(A) = true after a newer request")
	}
	if !e.IsCurrent(genB) || genB != genA+1 {
		t.Fatalf("IsCurrent(%d) = false, want the newer request current", genB)
	}
}
