package waveform

import (
	"errors"
	"io"
	"math"
	"testing"
)

type sliceReader struct {
	samples []int16
	step    int
	err     error
}

func (r *sliceReader) ReadSamples(dst []int16) (int, error) {
	if len(r.samples) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := len(dst)
	if r.step > 0 && n > r.step {
		n = r.step
	}
	n = copy(dst[:n], r.samples)
	r.samples = r.samples[n:]
	return n, nil
}

func constSamples(n int, v int16) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestSamplesPerBucket(t *testing.T) {
	tests := []struct {
		channels int
		length   int64
		target   int
		want     int
	}{
		{1, 441000, 50, 8820},
		{2, 1000, 10, 200},
		{1, 10, 100, 1},
		{2, 0, 5, 1},
		{1, 100, 0, 1},
	}
	for _, tt := range tests {
		if got := SamplesPerBucket(tt.channels, tt.length, tt.target); got != tt.want {
			t.Errorf("SamplesPerBucket(%d, %d, %d) = %d, want %d", tt.channels, tt.length, tt.target, got, tt.want)
		}
	}
}

func TestNewDownsamplerRejectsZeroTarget(t *testing.T) {
	if _, err := NewDownsampler(1, 100, 0); !errors.Is(err, ErrInvalidBucketCount) {
		t.Fatalf("NewDownsampler(target=0) error = %v, want ErrInvalidBucketCount", err)
	}
	if _, err := Reduce(&sliceReader{}, 1, 100, -1); !errors.Is(err, ErrInvalidBucketCount) {
		t.Fatalf("Reduce(target=-1) error = %v, want ErrInvalidBucketCount", err)
	}
}

func TestReduceOutputLength(t *testing.T) {
	tests := []struct {
		name     string
		channels int
		length   int64
		target   int
		samples  int
	}{
		{"exact", 1, 1000, 10, 1000},
		{"tail", 1, 1000, 10, 1050},
		{"stereo", 2, 500, 7, 1000},
		{"short read", 1, 1000, 10, 437},
		{"more buckets than samples", 1, 5, 20, 5},
		{"empty", 1, 0, 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spb := SamplesPerBucket(tt.channels, tt.length, tt.target)
			got, err := Reduce(&sliceReader{samples: constSamples(tt.samples, 100), step: 333}, tt.channels, tt.length, tt.target)
			if err != nil {
				t.Fatalf("Reduce() error = %v", err)
			}
			want := (tt.samples + spb - 1) / spb
			if len(got) != want {
				t.Fatalf("len = %d, want ceil(%d/%d) = %d", len(got), tt.samples, spb, want)
			}
		})
	}
}

func TestReduceAveragesMagnitudes(t *testing.T) {
	samples := []int16{100, -100, 300, -300, math.MinInt16, math.MinInt16, 10}
	got, err := Reduce(&sliceReader{samples: samples, step: 3}, 1, 6, 3)
	if err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}
	want := []float64{100, 300, 32768, 10}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("bucket %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDownsamplerTailBucketUsesOwnLength(t *testing.T) {
	d, err := NewDownsampler(1, 8, 2)
	if err != nil {
		t.Fatalf("NewDownsampler() error = %v", err)
	}
	d.Write([]int16{4, 4, 4, 4, 6, 6})
	out := d.Flush()
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[1] != 6 {
		t.Fatalf("tail bucket = %v, want 6", out[1])
	}
}

func TestDownsamplerBuffersLessThanOneBucket(t *testing.T) {
	d, err := NewDownsampler(1, 1000, 10)
	if err != nil {
		t.Fatalf("NewDownsampler() error = %v", err)
	}
	spb := d.SamplesPerBucket()
	for _, size := range []int{1, 57, 99, 100, 250, 1} {
		d.Write(constSamples(size, 1))
		if d.Buffered() >= spb {
			t.Fatalf("Buffered() = %d after chunk of %d, want < %d", d.Buffered(), size, spb)
		}
	}
}

func TestReducePropagatesReadError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Reduce(&sliceReader{samples: constSamples(10, 1), err: boom}, 1, 100, 5)
	if !errors.Is(err, boom) {
		t.Fatalf("Reduce() error = %v, want %v", err, boom)
	}
}
