package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
	"github.com/olivier-w/soundwave/internal/media"
)

// Decoder is implemented by all format-specific decoders. Read yields
// interleaved signed 16-bit little-endian PCM at the source sample rate and
// channel count; Length is the total PCM size in bytes.
type Decoder interface {
	io.ReadSeeker
	Length() int64
	SampleRate() int
	ChannelCount() int
}

// newDecoder detects format by file extension and returns the appropriate decoder.
func newDecoder(f *os.File) (Decoder, error) {
	ext := strings.ToLower(filepath.Ext(f.Name()))
	switch ext {
	case ".mp3":
		return newMP3Decoder(f)
	case ".wav":
		return newWAVDecoder(f)
	case ".flac":
		return newFLACDecoder(f)
	case ".ogg":
		return newOGGDecoder(f)
	}
	if media.NeedsFFmpeg(ext) {
		return newFFmpegDecoder(f.Name())
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}

func clampInt16(sample int) int16 {
	if sample > 32767 {
		return 32767
	}
	if sample < -32768 {
		return -32768
	}
	return int16(sample)
}

func clampSeek(offset int64, whence int, pos, total int64) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = pos + offset
	case io.SeekEnd:
		newPos = total + offset
	default:
		return pos, fmt.Errorf("invalid seek whence: %d", whence)
	}
	if newPos < 0 {
		newPos = 0
	}
	if newPos > total {
		newPos = total
	}
	return newPos, nil
}

// --- MP3 decoder ---

// mp3Decoder hides the encoder delay and padding so position 0 is the first
// real sample.
type mp3Decoder struct {
	dec    *mp3.Decoder
	start  int64 // bytes trimmed from the front
	length int64
	pos    int64
}

const mp3FrameSize = 4 // go-mp3 emits stereo s16le

func newMP3Decoder(f *os.File) (*mp3Decoder, error) {
	trim, err := readMP3Trim(f)
	if err != nil {
		return nil, fmt.Errorf("reading MP3 header: %w", err)
	}
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("decoding MP3: %w", err)
	}

	d := &mp3Decoder{dec: dec, length: dec.Length()}
	if trimmed := (trim.lead + trim.tail) * mp3FrameSize; trim.lead > 0 && trimmed < d.length {
		d.start = trim.lead * mp3FrameSize
		d.length -= trimmed
		if _, err := dec.Seek(d.start, io.SeekStart); err != nil {
			return nil, fmt.Errorf("skipping MP3 encoder delay: %w", err)
		}
	}
	return d, nil
}

func (d *mp3Decoder) Read(p []byte) (int, error) {
	left := d.length - d.pos
	if left <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > left {
		p = p[:left]
	}
	n, err := d.dec.Read(p)
	d.pos += int64(n)
	return n, err
}

func (d *mp3Decoder) Seek(offset int64, whence int) (int64, error) {
	pos, err := clampSeek(offset, whence, d.pos, d.length)
	if err != nil {
		return d.pos, err
	}
	pos -= pos % mp3FrameSize
	if _, err := d.dec.Seek(d.start+pos, io.SeekStart); err != nil {
		return d.pos, err
	}
	d.pos = pos
	return pos, nil
}

func (d *mp3Decoder) Length() int64   { return d.length }
func (d *mp3Decoder) SampleRate() int { return d.dec.SampleRate() }

// go-mp3 always produces stereo output.
func (d *mp3Decoder) ChannelCount() int { return 2 }

// --- WAV decoder ---

type wavDecoder struct {
	file         *os.File
	buf          []byte
	pos          int64
	totalBytes   int64
	srcRemaining int64 // source PCM bytes left in the data chunk
	srcTotal     int64
	pcmStart     int64 // byte offset in file where PCM data begins
	sampleRate   int
	channels     int
	srcBitDepth  int
	srcFrameSize int64 // bytes per sample frame in source format
}

func newWAVDecoder(f *os.File) (*wavDecoder, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}

	// FwdToPCM positions the reader at the start of PCM data
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("reading WAV PCM data: %w", err)
	}

	format := dec.Format()
	if format == nil || format.NumChannels < 1 || format.SampleRate <= 0 {
		return nil, ErrNoAudio
	}
	bitDepth := int(dec.BitDepth)
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported WAV bit depth: %d", bitDepth)
	}
	channels := format.NumChannels
	srcFrameSize := int64(channels) * int64(bitDepth) / 8

	pcmSize := dec.PCMLen()
	totalSourceFrames := pcmSize / srcFrameSize
	totalBytes := totalSourceFrames * int64(channels) * 2 // 16-bit output

	pcmStart, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("getting PCM start position: %w", err)
	}

	return &wavDecoder{
		file:         f,
		sampleRate:   format.SampleRate,
		channels:     channels,
		srcBitDepth:  bitDepth,
		srcFrameSize: srcFrameSize,
		totalBytes:   totalBytes,
		srcTotal:     totalSourceFrames * srcFrameSize,
		srcRemaining: totalSourceFrames * srcFrameSize,
		pcmStart:     pcmStart,
	}, nil
}

func (d *wavDecoder) Read(p []byte) (int, error) {
	if len(d.buf) > 0 {
		n := copy(p, d.buf)
		d.buf = d.buf[n:]
		d.pos += int64(n)
		return n, nil
	}
	if d.srcRemaining <= 0 {
		return 0, io.EOF
	}

	srcBytesPerSample := d.srcBitDepth / 8
	numOutputSamples := len(p) / 2
	if numOutputSamples == 0 {
		numOutputSamples = 1
	}
	want := int64(numOutputSamples * srcBytesPerSample)
	if want > d.srcRemaining {
		want = d.srcRemaining
	}
	srcBytes := make([]byte, want)
	n, err := io.ReadFull(d.file, srcBytes)
	d.srcRemaining -= int64(n)
	if n == 0 {
		if err != nil {
			return 0, err
		}
		return 0, io.EOF
	}

	samplesRead := n / srcBytesPerSample
	if samplesRead == 0 {
		return 0, io.EOF
	}

	raw := make([]byte, samplesRead*2)
	for i := 0; i < samplesRead; i++ {
		var sample int
		off := i * srcBytesPerSample
		switch d.srcBitDepth {
		case 8:
			// 8-bit WAV is unsigned
			sample = (int(srcBytes[off]) - 128) << 8
		case 16:
			sample = int(int16(binary.LittleEndian.Uint16(srcBytes[off:])))
		case 24:
			s := int32(srcBytes[off]) | int32(srcBytes[off+1])<<8 | int32(srcBytes[off+2])<<16
			if s&0x800000 != 0 {
				s |= ^0xFFFFFF
			}
			sample = int(s >> 8)
		case 32:
			sample = int(int32(binary.LittleEndian.Uint32(srcBytes[off:])) >> 16)
		}
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(clampInt16(sample)))
	}

	written := copy(p, raw)
	if written < len(raw) {
		d.buf = raw[written:]
	}
	d.pos += int64(written)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return written, err
}

func (d *wavDecoder) Seek(offset int64, whence int) (int64, error) {
	newPos, err := clampSeek(offset, whence, d.pos, d.totalBytes)
	if err != nil {
		return d.pos, err
	}

	outputFrameSize := int64(d.channels) * 2
	sampleFrame := newPos / outputFrameSize
	srcBytePos := sampleFrame * d.srcFrameSize

	if _, err := d.file.Seek(d.pcmStart+srcBytePos, io.SeekStart); err != nil {
		return d.pos, err
	}

	d.buf = nil
	d.pos = sampleFrame * outputFrameSize
	d.srcRemaining = d.srcTotal - srcBytePos
	return d.pos, nil
}

func (d *wavDecoder) Length() int64     { return d.totalBytes }
func (d *wavDecoder) SampleRate() int   { return d.sampleRate }
func (d *wavDecoder) ChannelCount() int { return d.channels }

// --- FLAC decoder ---

type flacDecoder struct {
	stream     *flac.Stream
	buf        []byte
	pos        int64
	totalBytes int64
	sampleRate int
	channels   int
	bps        int
}

func newFLACDecoder(f *os.File) (*flacDecoder, error) {
	stream, err := flac.NewSeek(f)
	if err != nil {
		return nil, fmt.Errorf("decoding FLAC: %w", err)
	}

	info := stream.Info
	totalSamples := int64(info.NSamples)
	channels := int(info.NChannels)
	if channels < 1 || info.SampleRate == 0 {
		return nil, ErrNoAudio
	}
	totalBytes := totalSamples * int64(channels) * 2

	return &flacDecoder{
		stream:     stream,
		sampleRate: int(info.SampleRate),
		channels:   channels,
		bps:        int(info.BitsPerSample),
		totalBytes: totalBytes,
	}, nil
}

func (d *flacDecoder) Read(p []byte) (int, error) {
	if len(d.buf) > 0 {
		n := copy(p, d.buf)
		d.buf = d.buf[n:]
		d.pos += int64(n)
		return n, nil
	}

	frame, err := d.stream.ParseNext()
	if err != nil {
		return 0, err
	}

	nSamples := int(frame.Subframes[0].NSamples)
	raw := make([]byte, nSamples*d.channels*2)

	for i := 0; i < nSamples; i++ {
		for ch := 0; ch < d.channels; ch++ {
			sample := int(frame.Subframes[ch].Samples[i])
			switch {
			case d.bps > 16:
				sample >>= (d.bps - 16)
			case d.bps < 16:
				sample <<= (16 - d.bps)
			}
			offset := (i*d.channels + ch) * 2
			binary.LittleEndian.PutUint16(raw[offset:], uint16(clampInt16(sample)))
		}
	}

	written := copy(p, raw)
	if written < len(raw) {
		d.buf = raw[written:]
	}
	d.pos += int64(written)
	return written, nil
}

func (d *flacDecoder) Seek(offset int64, whence int) (int64, error) {
	newPos, err := clampSeek(offset, whence, d.pos, d.totalBytes)
	if err != nil {
		return d.pos, err
	}

	bytesPerFrame := int64(d.channels) * 2
	sampleNum := uint64(newPos / bytesPerFrame)

	if _, err := d.stream.Seek(sampleNum); err != nil {
		return d.pos, err
	}

	d.buf = nil
	d.pos = int64(sampleNum) * bytesPerFrame
	return d.pos, nil
}

func (d *flacDecoder) Length() int64     { return d.totalBytes }
func (d *flacDecoder) SampleRate() int   { return d.sampleRate }
func (d *flacDecoder) ChannelCount() int { return d.channels }

// --- OGG Vorbis decoder ---

type oggDecoder struct {
	reader     *oggvorbis.Reader
	buf        []byte
	pos        int64
	totalBytes int64
	sampleRate int
	channels   int
}

func newOGGDecoder(f *os.File) (*oggDecoder, error) {
	reader, err := oggvorbis.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decoding OGG: %w", err)
	}

	channels := reader.Channels()
	if channels < 1 || reader.SampleRate() <= 0 {
		return nil, ErrNoAudio
	}
	totalSamples := reader.Length() // samples per channel
	totalBytes := totalSamples * int64(channels) * 2

	return &oggDecoder{
		reader:     reader,
		sampleRate: reader.SampleRate(),
		channels:   channels,
		totalBytes: totalBytes,
	}, nil
}

func (d *oggDecoder) Read(p []byte) (int, error) {
	if len(d.buf) > 0 {
		n := copy(p, d.buf)
		d.buf = d.buf[n:]
		d.pos += int64(n)
		return n, nil
	}

	samples := make([]float32, len(p)/2)
	n, err := d.reader.Read(samples)
	if n == 0 {
		if err != nil {
			return 0, err
		}
		return 0, io.EOF
	}

	raw := make([]byte, n*2)
	for i := 0; i < n; i++ {
		s := samples[i]
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(int16(s*32767)))
	}

	written := copy(p, raw)
	if written < len(raw) {
		d.buf = raw[written:]
	}
	d.pos += int64(written)
	return written, err
}

func (d *oggDecoder) Seek(offset int64, whence int) (int64, error) {
	newPos, err := clampSeek(offset, whence, d.pos, d.totalBytes)
	if err != nil {
		return d.pos, err
	}

	bytesPerFrame := int64(d.channels) * 2
	samplePos := newPos / bytesPerFrame

	if err := d.reader.SetPosition(samplePos); err != nil {
		return d.pos, err
	}
	d.buf = nil
	d.pos = samplePos * bytesPerFrame
	return d.pos, nil
}

func (d *oggDecoder) Length() int64     { return d.totalBytes }
func (d *oggDecoder) SampleRate() int   { return d.sampleRate }
func (d *oggDecoder) ChannelCount() int { return d.channels }
