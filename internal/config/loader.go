package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/olivier-w/soundwave/internal/render"
	"github.com/olivier-w/soundwave/internal/waveform"
)

// EnvPath names the environment variable that points at a config file.
const EnvPath = "SOUNDWAVE_CONFIG"

// envLogLevel overrides log_level from the file.
const envLogLevel = "SOUNDWAVE_LOG_LEVEL"

// Resolve loads the config at path, or at $SOUNDWAVE_CONFIG when path is
// empty. With neither set it returns the defaults.
func Resolve(path string) (*Config, error) {
	if path == "" {
		path = envStr(EnvPath, "")
	}
	var (
		cfg *Config
		err error
	)
	if path == "" {
		cfg = Default()
	} else if cfg, err = Load(path); err != nil {
		return nil, err
	}

	if lvl := LogLevel(strings.ToLower(envStr(envLogLevel, ""))); lvl != "" {
		if !lvl.IsValid() {
			return nil, fmt.Errorf("config: %s %q is invalid; valid values: debug, info, warn, error", envLogLevel, lvl)
		}
		cfg.LogLevel = lvl
	}
	return cfg, nil
}

// Load reads the YAML configuration file at path and returns a validated Config.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults and validates the
// result. Keys missing from r keep their default values.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	// Layout
	l := cfg.Layout
	if l.BarWidth <= 0 {
		errs = append(errs, fmt.Errorf("layout.bar_width %v must be positive", l.BarWidth))
	}
	if l.BarGap < 0 {
		errs = append(errs, fmt.Errorf("layout.bar_gap %v must not be negative", l.BarGap))
	}
	if l.CornerRadius < 0 {
		errs = append(errs, fmt.Errorf("layout.corner_radius %v must not be negative", l.CornerRadius))
	}
	if l.MinBarHeight < 0 {
		errs = append(errs, fmt.Errorf("layout.min_bar_height %v must not be negative", l.MinBarHeight))
	}
	if l.Height <= 0 {
		errs = append(errs, fmt.Errorf("layout.height %d must be positive", l.Height))
	}
	for _, c := range []struct{ key, val string }{
		{"layout.played_color", l.PlayedColor},
		{"layout.pending_color", l.PendingColor},
		{"layout.background_color", l.BackgroundColor},
	} {
		if _, err := render.ParseColor(c.val); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.key, err))
		}
	}

	// Waveform
	w := cfg.Waveform
	if w.NoiseFloorDB >= 0 {
		errs = append(errs, fmt.Errorf("waveform.noise_floor_db %v must be negative", w.NoiseFloorDB))
	}
	if w.RangeDivisor < 1 {
		errs = append(errs, fmt.Errorf("waveform.range_divisor %d must be at least 1", w.RangeDivisor))
	}
	if _, err := waveform.ParseRescale(w.Rescale); err != nil {
		errs = append(errs, fmt.Errorf("waveform.rescale: %w", err))
	}
	if w.ChunkSamples <= 0 {
		errs = append(errs, fmt.Errorf("waveform.chunk_samples %d must be positive", w.ChunkSamples))
	}

	// Playback
	p := cfg.Playback
	if p.Skip <= 0 {
		errs = append(errs, fmt.Errorf("playback.skip %v must be positive", p.Skip))
	}
	if p.ProgressInterval <= 0 {
		errs = append(errs, fmt.Errorf("playback.progress_interval %v must be positive", p.ProgressInterval))
	}
	if p.Volume < 0 || p.Volume > 1 {
		errs = append(errs, fmt.Errorf("playback.volume %.2f is out of range [0, 1]", p.Volume))
	}

	return errors.Join(errs...)
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
