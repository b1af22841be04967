package checkpoint

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/cutfang/pkg/observability"
	"github.com/Sumatoshi-tech/cutfang/pkg/safeconv"
)

// Watched is an editor whose changes the scheduler backs up.
type Watched interface {
	Source
	Dirty() bool
	Generation() uint64
}

// Scheduler decides when to write a backup. It is driven by Tick from the
// editor's own loop and never runs in the background.
type Scheduler struct {
	mgr      *Manager
	ed       Watched
	interval time.Duration

	pendingSince time.Time
	saved        uint64
	hasSaved     bool
	held         int
}

// NewScheduler creates a scheduler. An interval of zero backs up on every
// tick that sees a change; a negative interval disables backups.
func NewScheduler(mgr *Manager, ed Watched, interval time.Duration) *Scheduler {
	return &Scheduler{mgr: mgr, ed: ed, interval: interval}
}

// Tick writes a backup when the editor holds unsaved changes that are not
// yet backed up and the interval has passed since they were first seen.
// It reports whether a backup was written.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (bool, error) {
	if s.interval < 0 || s.held > 0 {
		return false, nil
	}

	if !s.ed.Dirty() || (s.hasSaved && s.ed.Generation() == s.saved) {
		s.pendingSince = time.Time{}

		return false, nil
	}

	if s.pendingSince.IsZero() {
		s.pendingSince = now
	}

	if now.Sub(s.pendingSince) < s.interval {
		return false, nil
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, observability.SpanBackupTick,
		trace.WithAttributes(attribute.Int64("backup.generation", safeconv.MustUint64ToInt64(s.ed.Generation()))))
	defer span.End()

	gen := s.ed.Generation()

	_, err := s.mgr.Save(ctx, s.ed)
	if err != nil {
		span.RecordError(err)

		return false, err
	}

	s.saved = gen
	s.hasSaved = true
	s.pendingSince = time.Time{}

	return true, nil
}

// Suspend holds backups off until the matching Resume.
func (s *Scheduler) Suspend() { s.held++ }

// Resume undoes one Suspend.
func (s *Scheduler) Resume() {
	if s.held > 0 {
		s.held--
	}
}

// Suspended reports whether backups are held off.
func (s *Scheduler) Suspended() bool { return s.held > 0 }
