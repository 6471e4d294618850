package waveform

import (
	"errors"
	"io"
)

// ErrInvalidBucketCount is returned when fewer than one output bucket is requested.
var ErrInvalidBucketCount = errors.New("bucket count must be at least 1")

// SampleReader yields interleaved 16-bit PCM samples.
type SampleReader interface {
	ReadSamples(dst []int16) (int, error)
}

// SamplesPerBucket returns the box filter width for reducing rangeLength
// frames of channels-interleaved audio to target buckets.
func SamplesPerBucket(channels int, rangeLength int64, target int) int {
	if target < 1 {
		return 1
	}
	spb := int64(channels) * rangeLength / int64(target)
	if spb < 1 {
		return 1
	}
	return int(spb)
}

// Downsampler reduces a stream of PCM chunks to bucket magnitudes. It holds
// at most one partial bucket between writes.
type Downsampler struct {
	samplesPerBucket int
	weight           float64
	buf              []float64
	out              []float64
}

// NewDownsampler returns a Downsampler for rangeLength frames of
// channels-interleaved audio reduced to roughly target buckets.
func NewDownsampler(channels int, rangeLength int64, target int) (*Downsampler, error) {
	if target < 1 {
		return nil, ErrInvalidBucketCount
	}
	spb := SamplesPerBucket(channels, rangeLength, target)
	return &Downsampler{
		samplesPerBucket: spb,
		weight:           1 / float64(spb),
		out:              make([]float64, 0, target+1),
	}, nil
}

// SamplesPerBucket reports the filter width in samples.
func (d *Downsampler) SamplesPerBucket() int { return d.samplesPerBucket }

// Write appends a chunk and emits one bucket for every whole filter width
// buffered.
func (d *Downsampler) Write(chunk []int16) {
	for _, s := range chunk {
		v := float64(s)
		if v < 0 {
			v = -v
		}
		d.buf = append(d.buf, v)
	}

	whole := len(d.buf) / d.samplesPerBucket
	if whole == 0 {
		return
	}
	consumed := whole * d.samplesPerBucket
	for i := 0; i < consumed; i += d.samplesPerBucket {
		d.out = append(d.out, boxFilter(d.buf[i:i+d.samplesPerBucket], d.weight))
	}
	d.compact(consumed)
}

// compact drops the consumed prefix and keeps the remainder at the front of
// the buffer so its capacity is reused.
func (d *Downsampler) compact(consumed int) {
	remaining := len(d.buf) - consumed
	copy(d.buf, d.buf[consumed:])
	d.buf = d.buf[:remaining]
}

// Buffered returns the number of samples waiting for a full bucket.
func (d *Downsampler) Buffered() int { return len(d.buf) }

// Flush turns any partial bucket into a final bucket averaged over its own
// length and returns all buckets emitted so far.
func (d *Downsampler) Flush() []float64 {
	if n := len(d.buf); n > 0 {
		d.out = append(d.out, boxFilter(d.buf, 1/float64(n)))
		d.buf = d.buf[:0]
	}
	return d.out
}

func boxFilter(taps []float64, weight float64) float64 {
	var sum float64
	for _, v := range taps {
		sum += v * weight
	}
	return sum
}

// Reduce drains r through a Downsampler and returns the bucket magnitudes.
func Reduce(r SampleReader, channels int, rangeLength int64, target int) ([]float64, error) {
	d, err := NewDownsampler(channels, rangeLength, target)
	if err != nil {
		return nil, err
	}

	chunk := make([]int16, 4096)
	for {
		n, err := r.ReadSamples(chunk)
		d.Write(chunk[:n])
		if err == io.EOF {
			return d.Flush(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}
