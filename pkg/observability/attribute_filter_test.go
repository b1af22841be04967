package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/cutfang/pkg/observability"
)

func filteredProvider(t *testing.T, logger *slog.Logger) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(observability.NewAttributeFilter(sdktrace.NewSimpleSpanProcessor(exporter), logger)),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	return tp, exporter
}

func TestAttributeFilter_KeepsKnownNamespaces(t *testing.T) {
	t.Parallel()

	tp, exporter := filteredProvider(t, nil)

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.SetAttributes(
		attribute.Int("layout.events", 12),
		attribute.Int("rectify.repairs", 2),
		attribute.String("error.type", "truncated"),
		attribute.String("clip.handle", "/home/me/holiday.mov"),
		attribute.String("hostname", "box"),
	)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	attrs := spanAttrMap(spans[0])
	assert.Equal(t, int64(12), attrs["layout.events"])
	assert.Equal(t, int64(2), attrs["rectify.repairs"])
	assert.Equal(t, "truncated", attrs["error.type"])
	assert.NotContains(t, attrs, "clip.handle")
	assert.NotContains(t, attrs, "hostname")
}

func TestAttributeFilter_WarnsWithLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	tp, _ := filteredProvider(t, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.SetAttributes(attribute.String("clip.name", "holiday"))
	span.End()

	assert.Contains(t, buf.String(), "clip.name")
	assert.Contains(t, buf.String(), "blocked")
}

func TestFilteringTracerProvider_DropsTickSpans(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	tracer := observability.NewFilteringTracerProvider(tp).Tracer("cutfang/checkpoint")

	_, tick := tracer.Start(context.Background(), observability.SpanBackupTick)
	tick.End()

	_, write := tracer.Start(context.Background(), "cutfang.backup")
	write.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "cutfang.backup", spans[0].Name)
}

func spanAttrMap(s tracetest.SpanStub) map[string]any {
	m := make(map[string]any, len(s.Attributes))
	for _, a := range s.Attributes {
		m[string(a.Key)] = a.Value.AsInterface()
	}

	return m
}
