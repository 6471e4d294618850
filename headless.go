package main

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/olivier-w/soundwave/internal/config"
	"github.com/olivier-w/soundwave/internal/observe"
	"github.com/olivier-w/soundwave/internal/render"
	"github.com/olivier-w/soundwave/internal/waveform"
)

// renderPNG extracts path sized for opts.width and writes one frame with the
// playhead at opts.progress.
func renderPNG(ctx context.Context, cfg *config.Config, opts cliOptions, path string, stdout io.Writer, logger *slog.Logger) error {
	layout, err := cfg.RenderLayout()
	if err != nil {
		return err
	}
	metrics := observe.DefaultMetrics()
	extractor, err := newExtractor(cfg, logger, metrics)
	if err != nil {
		return err
	}

	start := time.Now()
	buckets := layout.BucketCount(opts.width)
	seq, err := extractor.Run(ctx, path, buckets)
	if err != nil {
		return err
	}
	progress := waveform.ProgressIndexFraction(len(seq), opts.progress)
	logger.Debug("waveform extracted", "path", path, "buckets", len(seq), "progress", progress, "elapsed", time.Since(start))

	c := render.NewCompositor(layout, render.WithMetrics(metrics))
	img := c.Render(seq, progress, image.Pt(opts.width, opts.height))

	if opts.pngPath == "-" {
		return render.WritePNG(stdout, img)
	}
	if err := render.SavePNG(opts.pngPath, img); err != nil {
		return fmt.Errorf("saving %s: %w", opts.pngPath, err)
	}
	logger.Info("wrote waveform", "path", opts.pngPath, "width", opts.width, "height", opts.height)
	return nil
}
