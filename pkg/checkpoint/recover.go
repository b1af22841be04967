package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/cutfang/pkg/clip"
	"github.com/Sumatoshi-tech/cutfang/pkg/persist"
	"github.com/Sumatoshi-tech/cutfang/pkg/rectify"
)

const tracerName = "cutfang/checkpoint"

// Candidate is a backup pair left behind by another process.
type Candidate struct {
	PID     int
	Layout  string
	ModTime time.Time
	Size    int64
}

// Recovery is the result of a successful Recover.
type Recovery struct {
	Candidate

	// Numbered is false when the numbering file was missing or unreadable
	// and clips kept the numbers stored in the layout.
	Numbered bool
	Result   *rectify.Result
}

// Candidates lists the backups of dead processes of the same user and
// group, newest first.
func (m *Manager) Candidates() ([]Candidate, error) {
	pattern := fmt.Sprintf("%s.%d.%d.*", layoutPrefix, m.UID, m.GID)

	names, err := doublestar.Glob(os.DirFS(m.Dir), pattern, doublestar.WithFilesOnly())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", m.Dir, err)
	}

	var out []Candidate

	for _, name := range names {
		pid, ok := pidOf(name)
		if !ok || pid == m.PID || m.alive(pid) {
			continue
		}

		info, statErr := os.Stat(filepath.Join(m.Dir, name))
		if statErr != nil {
			continue
		}

		out = append(out, Candidate{PID: pid, Layout: filepath.Join(m.Dir, name), ModTime: info.ModTime(), Size: info.Size()})
	}

	slices.SortFunc(out, func(a, b Candidate) int {
		if c := b.ModTime.Compare(a.ModTime); c != 0 {
			return c
		}

		return b.PID - a.PID
	})

	return out, nil
}

// Recover loads the newest usable backup into dst and takes its files over
// under this process's pid. Backups that fail to load are quarantined and
// the next one is tried. ErrNoBackup is returned when nothing is left.
func (m *Manager) Recover(ctx context.Context, dst Target) (*Recovery, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "cutfang.backup.recover",
		trace.WithAttributes(attribute.String("backup.dir", m.Dir)))
	defer span.End()

	candidates, err := m.Candidates()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")

		return nil, err
	}

	for _, c := range candidates {
		rec, loadErr := m.restore(ctx, dst, c)
		if loadErr == nil {
			span.SetAttributes(attribute.Int("backup.pid", c.PID), attribute.Int("rectify.repairs", len(rec.Result.Log)))

			return rec, nil
		}

		m.logger().WarnContext(ctx, "backup unrecoverable", "backup.path", c.Layout, "error", loadErr)

		qErr := m.Quarantine(ctx, c)
		if qErr != nil {
			return nil, errors.Join(fmt.Errorf("%w: %w", ErrUnrecoverable, loadErr), qErr)
		}
	}

	return nil, ErrNoBackup
}

func (m *Manager) restore(ctx context.Context, dst Target, c Candidate) (*Recovery, error) {
	rec := &Recovery{Candidate: c}

	var numbering []clip.Numbering

	saved, err := m.numbering(c.PID).Load(m.Dir)

	switch {
	case err == nil:
		numbering = saved.Clips
		rec.Numbered = true
	case errors.Is(err, persist.ErrNotFound):
		m.logger().WarnContext(ctx, "backup has no numbering file", "backup.pid", c.PID)
	default:
		m.logger().WarnContext(ctx, "backup numbering unreadable", "backup.pid", c.PID, "error", err)
	}

	f, err := os.Open(c.Layout)
	if err != nil {
		return nil, fmt.Errorf("open backup: %w", err)
	}

	res, err := dst.Load(ctx, f, numbering)
	f.Close()

	if err != nil {
		return nil, err
	}

	rec.Result = res

	err = m.adopt(c)
	if err != nil {
		return nil, err
	}

	m.Metrics.RecordRecovery(ctx, OutcomeRestored)
	m.logger().InfoContext(ctx, "backup restored", "backup.pid", c.PID, "rectify.repairs", len(res.Log))

	return rec, nil
}

// adopt renames c's files to this process's names, so that the restored
// timeline stays protected until the next backup.
func (m *Manager) adopt(c Candidate) error {
	err := os.Rename(c.Layout, m.LayoutPath())
	if err != nil {
		return fmt.Errorf("adopt backup: %w", err)
	}

	return m.numbering(c.PID).MoveTo(m.Dir, m.numbering(m.PID), m.Dir)
}

// Quarantine moves c's files into unrecoverable_layouts/.
func (m *Manager) Quarantine(ctx context.Context, c Candidate) error {
	dir := filepath.Join(m.Dir, QuarantineDir)

	err := os.MkdirAll(dir, dirPerm)
	if err != nil {
		return fmt.Errorf("create quarantine dir: %w", err)
	}

	err = os.Rename(c.Layout, filepath.Join(dir, filepath.Base(c.Layout)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("quarantine backup: %w", err)
	}

	numbering := m.numbering(c.PID)

	err = numbering.MoveTo(m.Dir, numbering, dir)
	if err != nil {
		return err
	}

	m.Metrics.RecordRecovery(ctx, OutcomeQuarantined)

	return nil
}

// Discard deletes c's files.
func (m *Manager) Discard(ctx context.Context, c Candidate) error {
	err := os.Remove(c.Layout)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("discard backup: %w", err)
	}

	err = m.numbering(c.PID).Remove(m.Dir)
	if err != nil {
		return err
	}

	m.Metrics.RecordRecovery(ctx, OutcomeDiscarded)
	m.logger().InfoContext(ctx, "backup discarded", "backup.pid", c.PID)

	return nil
}

func (m *Manager) alive(pid int) bool {
	if m.Alive == nil {
		return processAlive(pid)
	}

	return m.Alive(pid)
}

// pidOf extracts the pid from "layout.<uid>.<gid>.<pid>".
func pidOf(name string) (int, bool) {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 {
		return 0, false
	}

	pid, err := strconv.Atoi(name[idx+1:])
	if err != nil || pid <= 0 {
		return 0, false
	}

	return pid, true
}

func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	return p.Signal(syscall.Signal(0)) == nil
}
