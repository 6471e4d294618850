// Command soundwave plays audio files in the terminal with a scrolling
// waveform, or renders a waveform PNG without playing anything.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/olivier-w/soundwave/internal/config"
	"github.com/olivier-w/soundwave/internal/observe"
	"github.com/olivier-w/soundwave/internal/player"
	"github.com/olivier-w/soundwave/internal/render"
	"github.com/olivier-w/soundwave/internal/ui"
	"github.com/olivier-w/soundwave/internal/waveform"
)

// envLogFile names a file that receives logs while the TUI owns the terminal.
const envLogFile = "SOUNDWAVE_LOG"

type cliOptions struct {
	configPath string
	pngPath    string
	width      int
	height     int
	progress   float64
	format     string
	metrics    string
	args       []string
}

func parseFlags(args []string, stderr io.Writer) (cliOptions, error) {
	var o cliOptions
	fs := flag.NewFlagSet("soundwave", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "path to a YAML config file (default $"+config.EnvPath+")")
	fs.StringVar(&o.pngPath, "png", "", "render the waveform to this PNG file instead of playing (- for stdout)")
	fs.IntVar(&o.width, "width", 600, "PNG width in pixels")
	fs.IntVar(&o.height, "height", 0, "PNG height in pixels (default layout.height)")
	fs.Float64Var(&o.progress, "progress", 0, "playhead position for the PNG, 0..1")
	fs.StringVar(&o.format, "format", "", "audio format of stdin when the file is - (wav, mp3, flac, ogg, ...)")
	fs.StringVar(&o.metrics, "metrics", "", "write Prometheus text metrics to this file on exit (- for stderr)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: soundwave [flags] file...\n       soundwave -png out.png [flags] file\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	o.args = fs.Args()

	if len(o.args) == 0 {
		fs.Usage()
		return o, errors.New("no input file")
	}
	if o.pngPath != "" && len(o.args) != 1 {
		return o, errors.New("-png takes exactly one input file")
	}
	if o.width <= 0 {
		return o, fmt.Errorf("-width must be positive, got %d", o.width)
	}
	if o.height < 0 {
		return o, fmt.Errorf("-height must not be negative, got %d", o.height)
	}
	if o.progress < 0 || o.progress > 1 {
		return o, fmt.Errorf("-progress must be within [0, 1], got %v", o.progress)
	}
	return o, nil
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) (err error) {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	if opts.metrics != "" {
		provider, perr := observe.InitProvider(context.Background(), observe.ProviderConfig{})
		if perr != nil {
			return fmt.Errorf("initialising metrics: %w", perr)
		}
		defer func() {
			err = errors.Join(err, dumpMetrics(provider, opts.metrics, stderr))
		}()
	}

	cfg, err := config.Resolve(opts.configPath)
	if err != nil {
		return err
	}
	if opts.height == 0 {
		opts.height = cfg.Layout.Height
	}

	paths, cleanup, err := resolveInputs(opts.args, stdin, opts.format)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.pngPath != "" {
		logger := newLogger(cfg.LogLevel, stderr)
		slog.SetDefault(logger)
		return renderPNG(ctx, cfg, opts, paths[0], stdout, logger)
	}

	logOut, closeLog, err := tuiLogOutput()
	if err != nil {
		return err
	}
	defer closeLog()
	logger := newLogger(cfg.LogLevel, logOut)
	slog.SetDefault(logger)

	return playTUI(cfg, paths, logger)
}

// dumpMetrics writes the collected metrics to path and stops the provider.
func dumpMetrics(p *observe.Provider, path string, stderr io.Writer) error {
	ctx := context.Background()
	var w io.Writer = stderr
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return errors.Join(fmt.Errorf("writing metrics: %w", err), p.Shutdown(ctx))
		}
		defer f.Close()
		w = f
	}
	return errors.Join(p.WriteText(w), p.Shutdown(ctx))
}

func newLogger(level config.LogLevel, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level.SlogLevel()}))
}

// tuiLogOutput keeps logs off the alt screen: they go to $SOUNDWAVE_LOG or
// nowhere.
func tuiLogOutput() (io.Writer, func(), error) {
	path := os.Getenv(envLogFile)
	if path == "" {
		return io.Discard, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func newExtractor(cfg *config.Config, logger *slog.Logger, metrics *observe.Metrics) (*waveform.Extractor, error) {
	norm, err := cfg.Normalizer()
	if err != nil {
		return nil, err
	}
	return waveform.NewExtractor(
		waveform.WithLogger(logger),
		waveform.WithMetrics(metrics),
		waveform.WithNormalizer(norm),
		waveform.WithRangeDivisor(cfg.Waveform.RangeDivisor),
		waveform.WithChunkSamples(cfg.Waveform.ChunkSamples),
	), nil
}

func playTUI(cfg *config.Config, paths []string, logger *slog.Logger) error {
	layout, err := cfg.RenderLayout()
	if err != nil {
		return err
	}
	metrics := observe.DefaultMetrics()
	extractor, err := newExtractor(cfg, logger, metrics)
	if err != nil {
		return err
	}

	model := ui.New(ui.Config{
		Queue: buildQueue(paths),
		Player: player.Options{
			Skip:             cfg.Playback.Skip,
			ProgressInterval: cfg.Playback.ProgressInterval,
			Loop:             cfg.Playback.Loop,
			Volume:           cfg.Playback.Volume,
			Logger:           logger,
			Metrics:          metrics,
		},
		Extractor:      extractor,
		Compositor:     render.NewCompositor(layout, render.WithMetrics(metrics)),
		SnapshotHeight: cfg.Layout.Height,
		Logger:         logger,
	})

	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err = program.Run()
	return err
}
