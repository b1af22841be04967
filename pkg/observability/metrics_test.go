package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/cutfang/pkg/observability"
)

func testReader(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()

	reader := sdkmetric.NewManualReader()

	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func sumOf(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", m.Name)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}

	return total
}

func gaugeOf(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	require.NotNil(t, m)

	g, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok, "%s is not an int64 gauge", m.Name)
	require.Len(t, g.DataPoints, 1)

	return g.DataPoints[0].Value
}

func TestREDMetrics_RecordRequest(t *testing.T) {
	t.Parallel()

	reader, mp := testReader(t)

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	red.RecordRequest(ctx, "check", observability.StatusOK, 100*time.Millisecond)
	red.RecordRequest(ctx, "recover", observability.StatusError, time.Second)

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(2), sumOf(t, findMetric(rm, "cutfang.requests.total")))
	assert.Equal(t, int64(1), sumOf(t, findMetric(rm, "cutfang.errors.total")))
	assert.NotNil(t, findMetric(rm, "cutfang.request.duration.seconds"))
}

func TestREDMetrics_TrackInflight(t *testing.T) {
	t.Parallel()

	reader, mp := testReader(t)

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	done := red.TrackInflight(context.Background(), "dump")
	assert.Equal(t, int64(1), sumOf(t, findMetric(collectMetrics(t, reader), "cutfang.inflight.requests")))

	done()
	assert.Equal(t, int64(0), sumOf(t, findMetric(collectMetrics(t, reader), "cutfang.inflight.requests")))
}

func TestNilMetricsRecordNothing(t *testing.T) {
	t.Parallel()

	var (
		red *observability.REDMetrics
		em  *observability.EngineMetrics
	)

	ctx := context.Background()

	assert.NotPanics(t, func() {
		red.RecordRequest(ctx, "check", observability.StatusOK, time.Millisecond)
		red.TrackInflight(ctx, "check")()
		em.RecordEdit(ctx, "split", 10)
		em.RecordLoad(ctx, observability.LoadStats{Events: 3})
		em.RecordBackup(ctx, observability.BackupStats{Bytes: 3})
		em.RecordRecovery(ctx, "restored")
	})
}

func TestEngineMetrics(t *testing.T) {
	t.Parallel()

	reader, mp := testReader(t)

	em, err := observability.NewEngineMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	em.RecordEdit(ctx, "insert block", 100)
	em.RecordEdit(ctx, "split", 250)
	em.RecordLoad(ctx, observability.LoadStats{Events: 40, Repairs: 3, Duration: 5 * time.Millisecond})
	em.RecordLoad(ctx, observability.LoadStats{Failed: true})
	em.RecordBackup(ctx, observability.BackupStats{Bytes: 4096})
	em.RecordRecovery(ctx, "quarantined")

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(2), sumOf(t, findMetric(rm, "cutfang.edits.total")))
	assert.Equal(t, int64(250), gaugeOf(t, findMetric(rm, "cutfang.undo.bytes")))
	assert.Equal(t, int64(2), sumOf(t, findMetric(rm, "cutfang.layout.loads.total")))
	assert.Equal(t, int64(40), gaugeOf(t, findMetric(rm, "cutfang.layout.events")))
	assert.Equal(t, int64(3), sumOf(t, findMetric(rm, "cutfang.rectify.repairs.total")))
	assert.Equal(t, int64(1), sumOf(t, findMetric(rm, "cutfang.backup.writes.total")))
	assert.Equal(t, int64(4096), gaugeOf(t, findMetric(rm, "cutfang.backup.bytes")))
	assert.Equal(t, int64(1), sumOf(t, findMetric(rm, "cutfang.backup.recoveries.total")))
}
