package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

var (
	ffmpegLookPath = exec.LookPath
	probeTimeout   = 10 * time.Second
)

// ffmpegDecoder decodes containers without a native Go decoder (AIFF, M4A, ...)
// through an ffmpeg subprocess. It outputs signed 16-bit LE PCM at the source
// sample rate and channel count. Seek restarts the process with -ss.
type ffmpegDecoder struct {
	path       string
	sampleRate int
	channels   int
	totalBytes int64

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
	cancel context.CancelFunc
	pos    int64
	closed bool
}

type ffprobeResult struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

type audioProbe struct {
	sampleRate int
	channels   int
	duration   time.Duration
}

func newFFmpegDecoder(path string) (*ffmpegDecoder, error) {
	probe, err := probeAudio(path)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", path, err)
	}

	bytesPerSec := probe.sampleRate * probe.channels * 2
	return &ffmpegDecoder{
		path:       path,
		sampleRate: probe.sampleRate,
		channels:   probe.channels,
		totalBytes: alignDown(int64(probe.duration.Seconds()*float64(bytesPerSec)), int64(probe.channels*2)),
	}, nil
}

func probeAudio(path string) (*audioProbe, error) {
	ffprobe, err := ffmpegLookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found (required for this container format)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, ffprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		"-select_streams", "a:0",
		path,
	)
	cmd.Stdin = nil

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbe(output)
}

func parseProbe(output []byte) (*audioProbe, error) {
	var result ffprobeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output: %w", err)
	}
	if len(result.Streams) == 0 {
		return nil, ErrNoAudio
	}

	stream := result.Streams[0]
	sr, err := strconv.Atoi(stream.SampleRate)
	if err != nil || sr <= 0 {
		return nil, fmt.Errorf("%w: missing sample rate", ErrNoAudio)
	}
	if stream.Channels <= 0 {
		return nil, fmt.Errorf("%w: missing channel count", ErrNoAudio)
	}

	durSec, err := strconv.ParseFloat(result.Format.Duration, 64)
	if err != nil || durSec < 0 {
		durSec = 0
	}

	return &audioProbe{
		sampleRate: sr,
		channels:   stream.Channels,
		duration:   time.Duration(durSec * float64(time.Second)),
	}, nil
}

// startProcess launches ffmpeg decoding from the given byte offset.
// Callers must hold d.mu.
func (d *ffmpegDecoder) startProcess(fromPos int64) error {
	ffmpeg, err := ffmpegLookPath("ffmpeg")
	if err != nil {
		return fmt.Errorf("ffmpeg not found (required for this container format)")
	}

	d.stopProcess()

	ctx, cancel := context.WithCancel(context.Background())

	args := []string{"-v", "quiet"}
	if fromPos > 0 {
		bytesPerSec := float64(d.sampleRate * d.channels * 2)
		args = append(args, "-ss", formatSeekTime(float64(fromPos)/bytesPerSec))
	}
	args = append(args,
		"-i", d.path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(d.sampleRate),
		"-ac", strconv.Itoa(d.channels),
		"pipe:1",
	)

	cmd := exec.CommandContext(ctx, ffmpeg, args...)
	cmd.Stdin = nil

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("setting up ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("starting ffmpeg: %w", err)
	}

	d.cmd = cmd
	d.stdout = stdout
	d.cancel = cancel
	d.pos = fromPos
	return nil
}

func (d *ffmpegDecoder) stopProcess() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.cmd != nil {
		_ = d.cmd.Wait()
		d.cmd = nil
	}
	d.stdout = nil
}

func (d *ffmpegDecoder) Read(p []byte) (int, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return 0, io.EOF
	}
	if d.stdout == nil {
		// The process starts lazily so opening a context only runs ffprobe.
		if err := d.startProcess(d.pos); err != nil {
			d.mu.Unlock()
			return 0, err
		}
	}
	stdout := d.stdout
	d.mu.Unlock()

	n, err := stdout.Read(p)

	d.mu.Lock()
	d.pos += int64(n)
	d.mu.Unlock()
	return n, err
}

func (d *ffmpegDecoder) Seek(offset int64, whence int) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	newPos, err := clampSeek(offset, whence, d.pos, d.totalBytes)
	if err != nil {
		return d.pos, err
	}
	newPos = alignDown(newPos, int64(d.channels)*2)
	if newPos == d.pos {
		return newPos, nil
	}

	// Restart on the next Read.
	d.stopProcess()
	d.pos = newPos
	return newPos, nil
}

func (d *ffmpegDecoder) Length() int64     { return d.totalBytes }
func (d *ffmpegDecoder) SampleRate() int   { return d.sampleRate }
func (d *ffmpegDecoder) ChannelCount() int { return d.channels }

// Close stops the subprocess.
func (d *ffmpegDecoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.stopProcess()
	return nil
}

// formatSeekTime formats seconds into HH:MM:SS.mmm for ffmpeg -ss.
func formatSeekTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := int(seconds) / 3600
	m := (int(seconds) % 3600) / 60
	s := seconds - float64(h*3600+m*60)
	return fmt.Sprintf("%02d:%02d:%06.3f", h, m, s)
}

func alignDown(n, frame int64) int64 {
	if frame <= 0 {
		return n
	}
	return n - n%frame
}
