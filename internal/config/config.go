// Package config defines the soundwave configuration file and its defaults.
package config

import (
	"log/slog"
	"time"

	"github.com/olivier-w/soundwave/internal/audio"
	"github.com/olivier-w/soundwave/internal/render"
	"github.com/olivier-w/soundwave/internal/waveform"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l onto a slog level. Unknown values map to Info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the top-level configuration.
type Config struct {
	LogLevel LogLevel       `yaml:"log_level"`
	Layout   LayoutConfig   `yaml:"layout"`
	Waveform WaveformConfig `yaml:"waveform"`
	Playback PlaybackConfig `yaml:"playback"`
}

// LayoutConfig holds bar geometry and colors. Colors are "#RRGGBB",
// "#RRGGBBAA" or "transparent".
type LayoutConfig struct {
	BarWidth        float64 `yaml:"bar_width"`
	BarGap          float64 `yaml:"bar_gap"`
	CornerRadius    float64 `yaml:"corner_radius"`
	MinBarHeight    float64 `yaml:"min_bar_height"`
	Height          int     `yaml:"height"`
	PlayedColor     string  `yaml:"played_color"`
	PendingColor    string  `yaml:"pending_color"`
	BackgroundColor string  `yaml:"background_color"`
}

// WaveformConfig tunes extraction.
type WaveformConfig struct {
	// NoiseFloorDB is the quietest level shown; must be negative.
	NoiseFloorDB float64 `yaml:"noise_floor_db"`

	// RangeDivisor decodes the first 1/RangeDivisor of each track.
	RangeDivisor int `yaml:"range_divisor"`

	// Rescale is "linear" or "legacy".
	Rescale string `yaml:"rescale"`

	ChunkSamples int `yaml:"chunk_samples"`
}

// PlaybackConfig tunes the transport.
type PlaybackConfig struct {
	Skip             time.Duration `yaml:"skip"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
	Loop             bool          `yaml:"loop"`
	Volume           float64       `yaml:"volume"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	l := render.DefaultLayout()
	return &Config{
		LogLevel: LogInfo,
		Layout: LayoutConfig{
			BarWidth:        l.BarWidth,
			BarGap:          l.BarGap,
			CornerRadius:    l.CornerRadius,
			MinBarHeight:    l.MinBarHeight,
			Height:          50,
			PlayedColor:     render.Hex(l.Played),
			PendingColor:    render.Hex(l.Pending),
			BackgroundColor: "transparent",
		},
		Waveform: WaveformConfig{
			NoiseFloorDB: waveform.DefaultNoiseFloorDB,
			RangeDivisor: audio.DefaultRangeDivisor,
			Rescale:      "linear",
			ChunkSamples: waveform.DefaultChunkSamples,
		},
		Playback: PlaybackConfig{
			Skip:             15 * time.Second,
			ProgressInterval: time.Second,
			Loop:             true,
			Volume:           0.8,
		},
	}
}

// RenderLayout converts the layout section into a render.Layout. The config
// must have passed Validate.
func (c *Config) RenderLayout() (render.Layout, error) {
	played, err := render.ParseColor(c.Layout.PlayedColor)
	if err != nil {
		return render.Layout{}, err
	}
	pending, err := render.ParseColor(c.Layout.PendingColor)
	if err != nil {
		return render.Layout{}, err
	}
	bg, err := render.ParseColor(c.Layout.BackgroundColor)
	if err != nil {
		return render.Layout{}, err
	}
	return render.Layout{
		BarWidth:     c.Layout.BarWidth,
		BarGap:       c.Layout.BarGap,
		CornerRadius: c.Layout.CornerRadius,
		MinBarHeight: c.Layout.MinBarHeight,
		Played:       played,
		Pending:      pending,
		Background:   bg,
	}, nil
}

// Normalizer builds the waveform normalizer from the waveform section.
func (c *Config) Normalizer() (waveform.Normalizer, error) {
	mode, err := waveform.ParseRescale(c.Waveform.Rescale)
	if err != nil {
		return waveform.Normalizer{}, err
	}
	return waveform.Normalizer{NoiseFloorDB: c.Waveform.NoiseFloorDB, Rescale: mode}, nil
}
