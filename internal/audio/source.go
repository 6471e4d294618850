package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/olivier-w/soundwave/internal/media"
)

// DefaultRangeDivisor limits waveform decoding to the first third of a track.
// A divisor of 1 decodes the whole track.
const DefaultRangeDivisor = 3

const bytesPerSample = 2 // 16-bit PCM

// Context holds the static properties of a loaded audio asset. It is
// immutable once returned by Open.
type Context struct {
	Path         string
	TotalSamples int64 // sample frames per channel
	Channels     int
	SampleRate   int
	Duration     time.Duration
	Metadata     Metadata
}

// SampleRange is a span of sample frames.
type SampleRange struct {
	Start  int64
	Length int64
}

// Stream is an open decode session over a file.
type Stream struct {
	Decoder
	file *os.File
}

// OpenStream opens path and returns a decoder positioned at the first sample.
// The caller must Close the stream.
func OpenStream(path string) (*Stream, error) {
	ext := filepath.Ext(path)
	if !media.IsSupportedExt(ext) {
		return nil, fmt.Errorf("%w: %s (supported: %s)", ErrUnsupportedFormat, ext, media.SupportedExtsList())
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec, err := newDecoder(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Stream{Decoder: dec, file: f}, nil
}

// Close releases the decoder and the underlying file.
func (s *Stream) Close() error {
	var errs []error
	if c, ok := s.Decoder.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, s.file.Close())
	return errors.Join(errs...)
}

// Open reads the static properties of the asset at path.
func Open(path string) (*Context, error) {
	s, err := OpenStream(path)
	if err != nil {
		return nil, &AssetLoadError{Path: path, Err: err}
	}
	defer s.Close()

	channels := s.ChannelCount()
	rate := s.SampleRate()
	if channels < 1 || rate <= 0 {
		return nil, &AssetLoadError{Path: path, Err: ErrNoAudio}
	}
	length := s.Length()
	if length < 0 {
		return nil, &AssetLoadError{Path: path, Err: fmt.Errorf("%w: unknown length", ErrNoAudio)}
	}

	total := length / int64(channels*bytesPerSample)
	return &Context{
		Path:         path,
		TotalSamples: total,
		Channels:     channels,
		SampleRate:   rate,
		Duration:     framesToDuration(total, rate),
		Metadata:     ReadMetadata(path),
	}, nil
}

// framesToDuration converts a frame count at rate to a duration without
// overflowing for long tracks.
func framesToDuration(frames int64, rate int) time.Duration {
	if rate <= 0 || frames <= 0 {
		return 0
	}
	r := int64(rate)
	return time.Duration(frames/r)*time.Second + time.Duration(frames%r)*time.Second/time.Duration(r)
}

// Load opens path on a new goroutine and calls done exactly once with the
// result.
func Load(path string, done func(*Context, error)) {
	go func() {
		done(Open(path))
	}()
}

// DefaultRange returns the range from the first sample to TotalSamples/divisor.
// Divisors below 1 are treated as 1.
func (c *Context) DefaultRange(divisor int) SampleRange {
	if divisor < 1 {
		divisor = 1
	}
	return SampleRange{Start: 0, Length: c.TotalSamples / int64(divisor)}
}

// clamp restricts r to the samples the asset actually holds.
func (c *Context) clamp(r SampleRange) SampleRange {
	if r.Start < 0 {
		r.Start = 0
	}
	if r.Start > c.TotalSamples {
		r.Start = c.TotalSamples
	}
	if r.Length < 0 {
		r.Length = 0
	}
	if r.Start+r.Length > c.TotalSamples {
		r.Length = c.TotalSamples - r.Start
	}
	return r
}

// ReadRaw opens a new read-only decode session limited to r. The caller owns
// the returned reader and must Close it.
func (c *Context) ReadRaw(r SampleRange) (*PCMReader, error) {
	r = c.clamp(r)

	s, err := OpenStream(c.Path)
	if err != nil {
		return nil, &DecodeError{Path: c.Path, Op: "start reader", Err: err}
	}
	if s.ChannelCount() != c.Channels {
		s.Close()
		return nil, &DecodeError{
			Path: c.Path,
			Op:   "format description",
			Err:  fmt.Errorf("channel count changed from %d to %d", c.Channels, s.ChannelCount()),
		}
	}

	frameSize := int64(c.Channels * bytesPerSample)
	if r.Start > 0 {
		if _, err := s.Seek(r.Start*frameSize, io.SeekStart); err != nil {
			s.Close()
			return nil, &DecodeError{Path: c.Path, Op: "seek", Err: err}
		}
	}

	return &PCMReader{
		stream:    s,
		path:      c.Path,
		remaining: r.Length * frameSize,
		samples:   r.Length * int64(c.Channels),
	}, nil
}

// PCMReader reads interleaved 16-bit samples from a bounded decode session.
type PCMReader struct {
	stream    *Stream
	path      string
	remaining int64 // bytes
	samples   int64
	scratch   []byte
	carry     []byte
	closed    bool
}

// Samples returns the number of interleaved samples the reader will yield.
func (r *PCMReader) Samples() int64 { return r.samples }

// Read implements io.Reader over the raw little-endian PCM bytes.
func (r *PCMReader) Read(p []byte) (int, error) {
	if r.closed || r.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := r.stream.Read(p)
	r.remaining -= int64(n)
	if err != nil && err != io.EOF {
		return n, &DecodeError{Path: r.path, Op: "read", Err: err}
	}
	return n, err
}

// ReadSamples decodes up to len(dst) samples. It returns io.EOF once the
// range is exhausted.
func (r *PCMReader) ReadSamples(dst []int16) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	need := len(dst) * bytesPerSample
	if cap(r.scratch) < need {
		r.scratch = make([]byte, need)
	}
	buf := r.scratch[:need]

	n := copy(buf, r.carry)
	r.carry = r.carry[:0]
	m, err := r.Read(buf[n:])
	n += m

	if n%2 == 1 {
		// Keep a split sample for the next call; drop it at end of stream.
		if err == nil {
			r.carry = append(r.carry, buf[n-1])
		}
		n--
	}

	count := n / bytesPerSample
	for i := 0; i < count; i++ {
		dst[i] = int16(binary.LittleEndian.Uint16(buf[i*bytesPerSample:]))
	}
	return count, err
}

// Close releases the decode session. It is safe to call more than once.
func (r *PCMReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.stream.Close()
}
