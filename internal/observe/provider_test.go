package observe

import (
	"bytes"
	"context"
	"regexp"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitProviderExportsRecordedMetrics(t *testing.T) {
	prev := otel.GetMeterProvider()
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	ctx := context.Background()
	p, err := InitProvider(ctx, ProviderConfig{ServiceVersion: "test"})
	if err != nil {
		t.Fatalf("InitProvider() error = %v", err)
	}
	defer p.Shutdown(ctx)

	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	m.RecordExtraction(ctx, StatusOK, 0.2)
	m.RecordExtraction(ctx, StatusOK, 0.3)
	m.RecordPlaybackEvent(ctx, "play")

	var buf bytes.Buffer
	if err := p.WriteText(&buf); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	out := buf.String()
	for _, pattern := range []string{
		`soundwave[._]extract[._]requests\w*\{[^}]*status="ok"[^}]*\} 2`,
		`soundwave[._]playback[._]events\w*\{[^}]*kind="play"[^}]*\} 1`,
		`soundwave[._]extract[._]duration`,
	} {
		if !regexp.MustCompile(pattern).MatchString(out) {
			t.Errorf("export missing %s:\n%s", pattern, out)
		}
	}
}

func TestWriteTextWithoutRecordings(t *testing.T) {
	prev := otel.GetMeterProvider()
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	ctx := context.Background()
	p, err := InitProvider(ctx, ProviderConfig{})
	if err != nil {
		t.Fatalf("InitProvider() error = %v", err)
	}
	defer p.Shutdown(ctx)

	var buf bytes.Buffer
	if err := p.WriteText(&buf); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	if bytes.Contains(buf.Bytes(), []byte("soundwave_extract_requests")) {
		t.Fatalf("unexpected extraction metrics before any recording:\n%s", buf.String())
	}
}
