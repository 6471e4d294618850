package player

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/olivier-w/soundwave/internal/audio"
)

const (
	outputRate      = 48000
	outputChannels  = 2
	outputFrameSize = outputChannels * 2
)

// resampler presents any decoder as 48 kHz stereo s16le. Mono is duplicated
// to both sides; more than two channels fold even channels left and odd
// channels right. Rate conversion interpolates linearly between the two
// neighbouring source frames.
type resampler struct {
	src          audio.Decoder
	passthrough  bool
	srcRate      int
	srcChannels  int
	srcFrameSize int

	totalSrc int64 // source frames
	totalOut int64 // output frames
	outFrame int64
	// srcPhase is the source position scaled by outputRate.
	srcPhase int64
	pos      int64
	length   int64

	// window holds mixed stereo frames starting at windowBase.
	window     []int16
	windowBase int64
	last       [outputChannels]int16
	haveLast   bool

	pending []byte
	outBuf  []byte
	readBuf []byte
}

func newResampler(src audio.Decoder) (*resampler, error) {
	rate := src.SampleRate()
	if rate <= 0 {
		return nil, fmt.Errorf("unsupported sample rate: %d", rate)
	}
	channels := src.ChannelCount()
	if channels < 1 {
		return nil, fmt.Errorf("unsupported channel count: %d", channels)
	}

	frameSize := channels * 2
	totalSrc := src.Length() / int64(frameSize)
	r := &resampler{
		src:          src,
		passthrough:  rate == outputRate && channels == outputChannels,
		srcRate:      rate,
		srcChannels:  channels,
		srcFrameSize: frameSize,
		totalSrc:     totalSrc,
	}
	if r.passthrough {
		r.length = src.Length() - src.Length()%outputFrameSize
		r.totalOut = r.length / outputFrameSize
		return r, nil
	}

	r.totalOut = totalSrc * outputRate / int64(rate)
	if totalSrc > 0 && r.totalOut == 0 {
		r.totalOut = 1
	}
	r.length = r.totalOut * outputFrameSize
	return r, nil
}

func (r *resampler) Length() int64     { return r.length }
func (r *resampler) SampleRate() int   { return outputRate }
func (r *resampler) ChannelCount() int { return outputChannels }

func (r *resampler) Read(p []byte) (int, error) {
	if r.passthrough {
		n, err := r.src.Read(p)
		r.pos += int64(n)
		return n, err
	}

	if len(r.pending) > 0 {
		n := copy(p, r.pending)
		r.pending = r.pending[n:]
		r.pos += int64(n)
		return n, nil
	}
	if r.outFrame >= r.totalOut {
		return 0, io.EOF
	}

	frames := (len(p) + outputFrameSize - 1) / outputFrameSize
	if frames == 0 {
		frames = 1
	}
	if left := r.totalOut - r.outFrame; int64(frames) > left {
		frames = int(left)
	}

	raw, err := r.render(frames)
	if len(raw) == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}
	n := copy(p, raw)
	if n < len(raw) {
		r.pending = append(r.pending[:0], raw[n:]...)
	}
	r.pos += int64(n)
	return n, nil
}

func (r *resampler) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = r.pos + offset
	case io.SeekEnd:
		target = r.length + offset
	default:
		return r.pos, fmt.Errorf("invalid seek whence: %d", whence)
	}
	target = clampSeekBytes(target, r.length, outputFrameSize)

	if r.passthrough {
		pos, err := r.src.Seek(target, io.SeekStart)
		if err != nil {
			return r.pos, err
		}
		r.pending = nil
		r.pos = pos
		return pos, nil
	}

	out := target / outputFrameSize
	srcFrame := out * int64(r.srcRate) / outputRate
	if _, err := r.src.Seek(srcFrame*int64(r.srcFrameSize), io.SeekStart); err != nil {
		return r.pos, err
	}

	r.pending = nil
	r.pos = target
	r.outFrame = out
	r.srcPhase = out * int64(r.srcRate)
	r.window = r.window[:0]
	r.windowBase = srcFrame
	r.haveLast = false
	return target, nil
}

// render produces up to frames output frames into a reused buffer.
func (r *resampler) render(frames int) ([]byte, error) {
	size := frames * outputFrameSize
	if cap(r.outBuf) < size {
		r.outBuf = make([]byte, size)
	}
	raw := r.outBuf[:size]

	written := 0
	for written < frames && r.outFrame < r.totalOut {
		at := r.srcPhase / outputRate
		if at >= r.totalSrc {
			break
		}
		a, err := r.frame(at)
		if err != nil {
			return raw[:written*outputFrameSize], err
		}
		b := a
		if at+1 < r.totalSrc {
			if b, err = r.frame(at + 1); err != nil {
				return raw[:written*outputFrameSize], err
			}
		}

		frac := r.srcPhase % outputRate
		off := written * outputFrameSize
		binary.LittleEndian.PutUint16(raw[off:], uint16(lerp16(a[0], b[0], frac)))
		binary.LittleEndian.PutUint16(raw[off+2:], uint16(lerp16(a[1], b[1], frac)))

		written++
		r.outFrame++
		r.srcPhase += int64(r.srcRate)
	}

	if written == 0 {
		return nil, io.EOF
	}
	return raw[:written*outputFrameSize], nil
}

// frame returns mixed source frame abs, decoding more input as needed. Frames
// before abs-1 are dropped from the window.
func (r *resampler) frame(abs int64) ([outputChannels]int16, error) {
	if abs >= r.totalSrc {
		if r.haveLast {
			return r.last, nil
		}
		return [outputChannels]int16{}, io.EOF
	}
	r.dropBefore(abs - 1)
	for abs >= r.windowBase+int64(len(r.window)/outputChannels) {
		if err := r.fill(); err != nil {
			return [outputChannels]int16{}, err
		}
	}
	if abs < r.windowBase {
		return [outputChannels]int16{}, fmt.Errorf("frame %d fell behind buffered source data", abs)
	}
	i := int(abs-r.windowBase) * outputChannels
	return [outputChannels]int16{r.window[i], r.window[i+1]}, nil
}

func (r *resampler) dropBefore(keep int64) {
	drop := keep - r.windowBase
	if drop <= 0 {
		return
	}
	have := int64(len(r.window) / outputChannels)
	if drop >= have {
		r.window = r.window[:0]
		r.windowBase += have
		return
	}
	n := int(drop) * outputChannels
	remaining := len(r.window) - n
	copy(r.window, r.window[n:])
	r.window = r.window[:remaining]
	r.windowBase += drop
}

// fill decodes one chunk of source frames into the window.
func (r *resampler) fill() error {
	const chunkFrames = 2048

	size := chunkFrames * r.srcFrameSize
	if cap(r.readBuf) < size {
		r.readBuf = make([]byte, size)
	}
	buf := r.readBuf[:size]

	n, err := io.ReadFull(r.src, buf)
	if n == 0 {
		if err == nil || err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return err
	}
	frames := n / r.srcFrameSize
	if frames == 0 {
		return fmt.Errorf("decoder returned partial PCM frame")
	}

	for i := 0; i < frames; i++ {
		f := mixFrame(buf[i*r.srcFrameSize:(i+1)*r.srcFrameSize], r.srcChannels)
		r.window = append(r.window, f[0], f[1])
		r.last = f
	}
	r.haveLast = true
	return nil
}

// mixFrame folds one interleaved source frame into stereo.
func mixFrame(frame []byte, channels int) [outputChannels]int16 {
	sample := func(c int) int16 { return int16(binary.LittleEndian.Uint16(frame[c*2:])) }
	switch channels {
	case 1:
		s := sample(0)
		return [outputChannels]int16{s, s}
	case 2:
		return [outputChannels]int16{sample(0), sample(1)}
	}

	var sum [outputChannels]int
	var count [outputChannels]int
	for c := 0; c < channels; c++ {
		sum[c%2] += int(sample(c))
		count[c%2]++
	}
	return [outputChannels]int16{int16(sum[0] / count[0]), int16(sum[1] / count[1])}
}

func lerp16(a, b int16, frac int64) int16 {
	if frac == 0 || a == b {
		return a
	}
	diff := int64(b) - int64(a)
	return int16(int64(a) + (diff*frac+outputRate/2)/outputRate)
}
