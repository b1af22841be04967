package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricEditsTotal      = "cutfang.edits.total"
	metricUndoBytes       = "cutfang.undo.bytes"
	metricLoadsTotal      = "cutfang.layout.loads.total"
	metricLoadDuration    = "cutfang.layout.load.duration.seconds"
	metricLoadEvents      = "cutfang.layout.events"
	metricRepairsTotal    = "cutfang.rectify.repairs.total"
	metricBackupsTotal    = "cutfang.backup.writes.total"
	metricBackupBytes     = "cutfang.backup.bytes"
	metricRecoveriesTotal = "cutfang.backup.recoveries.total"

	attrAction = "action"
	attrResult = "result"
)

// EngineMetrics holds the instruments of the timeline engine. A nil
// *EngineMetrics records nothing, so callers need no checks.
type EngineMetrics struct {
	edits        metric.Int64Counter
	undoBytes    metric.Int64Gauge
	loads        metric.Int64Counter
	loadDuration metric.Float64Histogram
	loadEvents   metric.Int64Gauge
	repairs      metric.Int64Counter
	backups      metric.Int64Counter
	backupBytes  metric.Int64Gauge
	recoveries   metric.Int64Counter
}

// LoadStats describes one layout load.
type LoadStats struct {
	Events   int64
	Repairs  int64
	Duration time.Duration
	Failed   bool
}

// BackupStats describes one crash-recovery write.
type BackupStats struct {
	Bytes  int64
	Failed bool
}

// NewEngineMetrics creates the engine instruments from mt.
func NewEngineMetrics(mt metric.Meter) (*EngineMetrics, error) {
	b := newMetricBuilder(mt)

	em := &EngineMetrics{
		edits:        b.counter(metricEditsTotal, "Timeline edits by action", "{edit}"),
		undoBytes:    b.gauge(metricUndoBytes, "Bytes held by the undo history", "By"),
		loads:        b.counter(metricLoadsTotal, "Layout loads by result", "{load}"),
		loadDuration: b.histogram(metricLoadDuration, "Layout load and rectification time", "s", durationBucketBoundaries...),
		loadEvents:   b.gauge(metricLoadEvents, "Events in the last loaded layout", "{event}"),
		repairs:      b.counter(metricRepairsTotal, "Repairs made while rectifying layouts", "{repair}"),
		backups:      b.counter(metricBackupsTotal, "Crash-recovery writes by result", "{write}"),
		backupBytes:  b.gauge(metricBackupBytes, "Size of the last crash-recovery layout", "By"),
		recoveries:   b.counter(metricRecoveriesTotal, "Crash-recovery sets restored or quarantined", "{recovery}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return em, nil
}

// RecordEdit counts an edit and samples the undo history size.
func (em *EngineMetrics) RecordEdit(ctx context.Context, action string, undoBytes int64) {
	if em == nil {
		return
	}

	em.edits.Add(ctx, 1, metric.WithAttributes(attribute.String(attrAction, action)))
	em.undoBytes.Record(ctx, undoBytes)
}

// RecordLoad records a layout load.
func (em *EngineMetrics) RecordLoad(ctx context.Context, stats LoadStats) {
	if em == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrResult, result(stats.Failed)))

	em.loads.Add(ctx, 1, attrs)
	em.loadDuration.Record(ctx, stats.Duration.Seconds(), attrs)
	em.repairs.Add(ctx, stats.Repairs)

	if !stats.Failed {
		em.loadEvents.Record(ctx, stats.Events)
	}
}

// RecordBackup records a crash-recovery write.
func (em *EngineMetrics) RecordBackup(ctx context.Context, stats BackupStats) {
	if em == nil {
		return
	}

	em.backups.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result(stats.Failed))))

	if !stats.Failed {
		em.backupBytes.Record(ctx, stats.Bytes)
	}
}

// RecordRecovery records the outcome of a crash-recovery attempt:
// "restored", "discarded" or "quarantined".
func (em *EngineMetrics) RecordRecovery(ctx context.Context, outcome string) {
	if em == nil {
		return
	}

	em.recoveries.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, outcome)))
}

func result(failed bool) string {
	if failed {
		return StatusError
	}

	return StatusOK
}
