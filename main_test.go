package main

import (
	"bytes"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/olivier-w/soundwave/internal/config"
)

func writeTone(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create(%q) error = %v", path, err)
	}
	defer f.Close()

	const rate = 8000
	samples := make([]int, 10*rate)
	for i := range samples {
		samples[i] = int(12000 * math.Sin(float64(i)*0.2) * float64(i) / float64(len(samples)))
	}
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	if err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatalf("encoder Write() error = %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("encoder Close() error = %v", err)
	}
	return path
}

func TestParseFlags(t *testing.T) {
	o, err := parseFlags([]string{"-png", "out.png", "-width", "300", "-progress", "0.25", "song.wav"}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if o.pngPath != "out.png" || o.width != 300 || o.progress != 0.25 || o.height != 0 {
		t.Fatalf("options = %+v", o)
	}
	if len(o.args) != 1 || o.args[0] != "song.wav" {
		t.Fatalf("args = %v", o.args)
	}
}

func TestParseFlagsRejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no input", nil},
		{"png with two inputs", []string{"-png", "x.png", "a.wav", "b.wav"}},
		{"zero width", []string{"-width", "0", "a.wav"}},
		{"negative height", []string{"-height", "-1", "a.wav"}},
		{"progress above one", []string{"-progress", "1.5", "a.wav"}},
		{"unknown flag", []string{"-bogus", "a.wav"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseFlags(tt.args, io.Discard); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestResolveInputsChecksFiles(t *testing.T) {
	dir := t.TempDir()
	good := writeTone(t, dir, "a.wav")
	text := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(text, []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	paths, cleanup, err := resolveInputs([]string{good}, nil, "")
	if err != nil {
		t.Fatalf("resolveInputs() error = %v", err)
	}
	cleanup()
	if len(paths) != 1 || paths[0] != good {
		t.Fatalf("paths = %v", paths)
	}

	for _, bad := range []string{text, dir, filepath.Join(dir, "missing.mp3")} {
		if _, cleanup, err := resolveInputs([]string{bad}, nil, ""); err == nil {
			t.Fatalf("expected error for %s", bad)
		} else {
			cleanup()
		}
	}
}

func TestResolveInputsStdin(t *testing.T) {
	data := []byte("RIFF fake")

	if _, cleanup, err := resolveInputs([]string{"-"}, bytes.NewReader(data), ""); err == nil {
		t.Fatal("expected error without -format")
	} else {
		cleanup()
	}
	if _, cleanup, err := resolveInputs([]string{"-"}, bytes.NewReader(data), "xyz"); err == nil {
		t.Fatal("expected error for unknown format")
	} else {
		cleanup()
	}
	if _, cleanup, err := resolveInputs([]string{"-", "-"}, bytes.NewReader(data), "wav"); err == nil {
		t.Fatal("expected error for reading stdin twice")
	} else {
		cleanup()
	}

	paths, cleanup, err := resolveInputs([]string{"-"}, bytes.NewReader(data), ".WAV")
	if err != nil {
		t.Fatalf("resolveInputs() error = %v", err)
	}
	got, err := os.ReadFile(paths[0])
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("temp file = %q, %v", got, err)
	}
	if filepath.Ext(paths[0]) != ".wav" {
		t.Fatalf("temp file %s lost its extension", paths[0])
	}
	cleanup()
	if _, err := os.Stat(paths[0]); !os.IsNotExist(err) {
		t.Fatalf("temp file not removed: %v", err)
	}
}

func TestBuildQueueUsesSiblings(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.wav", "A.wav", "c.mp3", "skip.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	q := buildQueue([]string{filepath.Join(dir, "b.wav")})
	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 audio siblings", q.Len())
	}
	if q.CurrentIndex() != 1 || q.Current().Title != "b" {
		t.Fatalf("current = %d (%s), want b at 1", q.CurrentIndex(), q.Current().Title)
	}

	q = buildQueue([]string{"x.wav", "y.wav"})
	if q.Len() != 2 || q.CurrentIndex() != 0 {
		t.Fatalf("explicit list: Len=%d current=%d", q.Len(), q.CurrentIndex())
	}
}

func TestRunRendersPNGFile(t *testing.T) {
	t.Setenv(config.EnvPath, "")
	dir := t.TempDir()
	in := writeTone(t, dir, "tone.wav")
	out := filepath.Join(dir, "wave.png")

	if err := run([]string{"-png", out, "-progress", "0.5", in}, nil, io.Discard, io.Discard); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 600 || b.Dy() != 50 {
		t.Fatalf("image size = %v, want 600x50", b.Size())
	}
}

func TestRunRendersStdinToStdout(t *testing.T) {
	t.Setenv(config.EnvPath, "")
	data, err := os.ReadFile(writeTone(t, t.TempDir(), "tone.wav"))
	if err != nil {
		t.Fatal(err)
	}

	var stdout bytes.Buffer
	args := []string{"-png", "-", "-format", "wav", "-width", "120", "-height", "20", "-"}
	if err := run(args, bytes.NewReader(data), &stdout, io.Discard); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	img, err := png.Decode(&stdout)
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 120 || b.Dy() != 20 {
		t.Fatalf("image size = %v, want 120x20", b.Size())
	}
}

func TestRunReportsMissingFile(t *testing.T) {
	t.Setenv(config.EnvPath, "")
	err := run([]string{"-png", "x.png", "/does/not/exist.wav"}, nil, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "exist.wav") {
		t.Fatalf("run() error = %v", err)
	}
}

func TestRunWritesMetrics(t *testing.T) {
	t.Setenv(config.EnvPath, "")
	dir := t.TempDir()
	in := writeTone(t, dir, "tone.wav")
	metricsPath := filepath.Join(dir, "metrics.txt")

	args := []string{"-png", filepath.Join(dir, "wave.png"), "-metrics", metricsPath, in}
	if err := run(args, nil, io.Discard, io.Discard); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	data, err := os.ReadFile(metricsPath)
	if err != nil {
		t.Fatalf("metrics file missing: %v", err)
	}
	for _, pattern := range []string{
		`soundwave[._]extract[._]requests\w*\{[^}]*status="ok"[^}]*\} 1`,
		`soundwave[._]render[._]duration`,
		`soundwave[._]extract[._]samples`,
	} {
		if !regexp.MustCompile(pattern).Match(data) {
			t.Errorf("metrics missing %s:\n%s", pattern, data)
		}
	}
}
