package audio

import (
	"errors"
	"testing"
	"time"
)

func TestParseProbeReadsFirstAudioStream(t *testing.T) {
	out := []byte(`{"streams":[{"codec_type":"audio","sample_rate":"44100","channels":2}],"format":{"duration":"12.5"}}`)

	probe, err := parseProbe(out)
	if err != nil {
		t.Fatalf("parseProbe() error = %v", err)
	}
	if probe.sampleRate != 44100 || probe.channels != 2 {
		t.Fatalf("unexpected probe: %+v", probe)
	}
	if probe.duration != 12500*time.Millisecond {
		t.Fatalf("duration = %v, want 12.5s", probe.duration)
	}
}

func TestParseProbeWithoutStreamsIsNoAudio(t *testing.T) {
	_, err := parseProbe([]byte(`{"streams":[],"format":{"duration":"3"}}`))
	if !errors.Is(err, ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio, got %v", err)
	}
}

func TestParseProbeRequiresSampleRate(t *testing.T) {
	_, err := parseProbe([]byte(`{"streams":[{"codec_type":"audio","sample_rate":"","channels":1}]}`))
	if !errors.Is(err, ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio, got %v", err)
	}
}

func TestFormatSeekTime(t *testing.T) {
	cases := map[float64]string{
		0:      "00:00:00.000",
		-3:     "00:00:00.000",
		75.25:  "00:01:15.250",
		3661.5: "01:01:01.500",
	}
	for in, want := range cases {
		if got := formatSeekTime(in); got != want {
			t.Errorf("formatSeekTime(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestFFmpegSeekAlignsToFrameWithoutStarting(t *testing.T) {
	d := &ffmpegDecoder{sampleRate: 8000, channels: 2, totalBytes: 4000}

	pos, err := d.Seek(1003, 0)
	if err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	if pos != 1000 {
		t.Fatalf("Seek() = %d, want 1000", pos)
	}
	if d.cmd != nil {
		t.Fatal("expected seek to defer process start")
	}
}
