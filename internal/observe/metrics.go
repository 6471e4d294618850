// Package observe holds the OpenTelemetry metric instruments used across
// soundwave. Tests should build their own [Metrics] with [NewMetrics] and a
// private meter provider; production code uses [DefaultMetrics], which
// records into the provider installed by [InitProvider].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/olivier-w/soundwave"

// Request status attribute values.
const (
	StatusOK         = "ok"
	StatusError      = "error"
	StatusSuperseded = "superseded"
)

// Metrics holds the metric instruments. All fields are safe for concurrent use.
type Metrics struct {
	// ExtractDuration tracks wall time of a full waveform extraction.
	ExtractDuration metric.Float64Histogram

	// ExtractRequests counts extraction requests. Use with attribute:
	//   attribute.String("status", ...)
	ExtractRequests metric.Int64Counter

	// ExtractSamples counts decoded PCM samples fed to the downsampler.
	ExtractSamples metric.Int64Counter

	// RenderDuration tracks bitmap composition time.
	RenderDuration metric.Float64Histogram

	// PlaybackEvents counts transport events. Use with attribute:
	//   attribute.String("kind", ...)
	PlaybackEvents metric.Int64Counter
}

var extractBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

var renderBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ExtractDuration, err = m.Float64Histogram("soundwave.extract.duration",
		metric.WithDescription("Latency of waveform extraction from open to normalized output."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(extractBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ExtractRequests, err = m.Int64Counter("soundwave.extract.requests",
		metric.WithDescription("Total extraction requests by status."),
	); err != nil {
		return nil, err
	}
	if met.ExtractSamples, err = m.Int64Counter("soundwave.extract.samples",
		metric.WithDescription("Total PCM samples decoded for waveforms."),
	); err != nil {
		return nil, err
	}
	if met.RenderDuration, err = m.Float64Histogram("soundwave.render.duration",
		metric.WithDescription("Latency of waveform bitmap composition."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(renderBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PlaybackEvents, err = m.Int64Counter("soundwave.playback.events",
		metric.WithDescription("Total transport events by kind."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance built on
// [otel.GetMeterProvider].
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordExtraction records one finished extraction request.
func (m *Metrics) RecordExtraction(ctx context.Context, status string, seconds float64) {
	m.ExtractRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	if status != StatusSuperseded {
		m.ExtractDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("status", status)))
	}
}

// RecordPlaybackEvent counts one transport event.
func (m *Metrics) RecordPlaybackEvent(ctx context.Context, kind string) {
	m.PlaybackEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
