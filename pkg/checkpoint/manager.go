// Package checkpoint keeps crash-recovery copies of the timeline being
// edited and restores them after a crash.
//
// Each running editor owns two files in the backup directory, named after
// the user, group and process that wrote them:
//
//	layout.<uid>.<gid>.<pid>                 the timeline as a layout stream
//	layout_numbering.<uid>.<gid>.<pid>.json  the clip numbering at that time
//
// A later process finds the files left by a dead one, loads them and takes
// them over under its own pid. Files that cannot be loaded are moved to
// unrecoverable_layouts/.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Sumatoshi-tech/cutfang/pkg/clip"
	"github.com/Sumatoshi-tech/cutfang/pkg/observability"
	"github.com/Sumatoshi-tech/cutfang/pkg/persist"
	"github.com/Sumatoshi-tech/cutfang/pkg/rectify"
)

// NumberingVersion is the current numbering file format version.
const NumberingVersion = 1

const (
	layoutPrefix    = "layout"
	numberingPrefix = "layout_numbering"

	// QuarantineDir receives backups that failed to load.
	QuarantineDir = "unrecoverable_layouts"

	dirPerm  = 0o750
	filePerm = 0o600
)

// Recovery outcomes reported to metrics.
const (
	OutcomeRestored    = "restored"
	OutcomeDiscarded   = "discarded"
	OutcomeQuarantined = "quarantined"
)

// Sentinel errors.
var (
	ErrNoBackup      = errors.New("no crash-recovery backup found")
	ErrUnrecoverable = errors.New("crash-recovery backup cannot be loaded")
)

// Source is what a backup is written from.
type Source interface {
	WriteBackup(w io.Writer) error
	Numbering() []clip.Numbering
}

// Target is what a backup is restored into.
type Target interface {
	Load(ctx context.Context, r io.Reader, numbering []clip.Numbering) (*rectify.Result, error)
}

// NumberingFile is the clip numbering stored next to a backup.
type NumberingFile struct {
	Version int              `json:"version"`
	SavedAt time.Time        `json:"saved_at"`
	Clips   []clip.Numbering `json:"clips"`
}

// DefaultDir returns the default backup directory.
func DefaultDir() string {
	return filepath.Join(os.TempDir(), "cutfang")
}

// Manager owns the backup files of one process.
type Manager struct {
	Dir string
	UID int
	GID int
	PID int

	// Alive reports whether a process still runs; backups of live
	// processes are never touched. Defaults to a signal-0 probe.
	Alive func(pid int) bool

	Logger  *slog.Logger
	Metrics *observability.EngineMetrics

	codec persist.Codec
}

// NewManager creates a manager for the current process.
func NewManager(dir string) *Manager {
	return &Manager{
		Dir:    dir,
		UID:    os.Getuid(),
		GID:    os.Getgid(),
		PID:    os.Getpid(),
		Alive:  processAlive,
		Logger: slog.Default(),
		codec:  persist.NewJSONCodec(),
	}
}

// LayoutName returns the layout file name for pid.
func (m *Manager) LayoutName(pid int) string {
	return fmt.Sprintf("%s.%d.%d.%d", layoutPrefix, m.UID, m.GID, pid)
}

// LayoutPath returns the path of this process's layout backup.
func (m *Manager) LayoutPath() string {
	return filepath.Join(m.Dir, m.LayoutName(m.PID))
}

func (m *Manager) numbering(pid int) *persist.Persister[NumberingFile] {
	codec := m.codec
	if codec == nil {
		codec = persist.NewJSONCodec()
	}

	return persist.NewPersister[NumberingFile](fmt.Sprintf("%s.%d.%d.%d", numberingPrefix, m.UID, m.GID, pid), codec)
}

// Save writes the backup pair for src and returns the layout size.
func (m *Manager) Save(ctx context.Context, src Source) (int64, error) {
	size, err := m.save(src)

	m.Metrics.RecordBackup(ctx, observability.BackupStats{Bytes: size, Failed: err != nil})

	if err != nil {
		m.logger().WarnContext(ctx, "backup failed", "backup.path", m.LayoutPath(), "error", err)

		return 0, err
	}

	m.logger().DebugContext(ctx, "backup written", "backup.path", m.LayoutPath(), "backup.bytes", size)

	return size, nil
}

func (m *Manager) save(src Source) (int64, error) {
	err := os.MkdirAll(m.Dir, dirPerm)
	if err != nil {
		return 0, fmt.Errorf("create backup dir: %w", err)
	}

	size, err := writeAtomic(m.LayoutPath(), src.WriteBackup)
	if err != nil {
		return 0, err
	}

	err = m.numbering(m.PID).Save(m.Dir, &NumberingFile{
		Version: NumberingVersion,
		SavedAt: time.Now().UTC(),
		Clips:   src.Numbering(),
	})
	if err != nil {
		return 0, fmt.Errorf("write numbering: %w", err)
	}

	return size, nil
}

// Clear removes this process's backup pair, as on a clean exit.
func (m *Manager) Clear() error {
	err := os.Remove(m.LayoutPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove backup: %w", err)
	}

	return m.numbering(m.PID).Remove(m.Dir)
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}

	return m.Logger
}

// writeAtomic writes path through a temporary file in the same directory.
func writeAtomic(path string, write func(io.Writer) error) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return 0, fmt.Errorf("create backup: %w", err)
	}

	defer os.Remove(tmp.Name())

	counter := &countingWriter{w: tmp}

	err = write(counter)
	if err != nil {
		tmp.Close()

		return 0, fmt.Errorf("write backup: %w", err)
	}

	err = tmp.Close()
	if err != nil {
		return 0, fmt.Errorf("close backup: %w", err)
	}

	err = os.Chmod(tmp.Name(), filePerm)
	if err != nil {
		return 0, fmt.Errorf("chmod backup: %w", err)
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		return 0, fmt.Errorf("rename backup: %w", err)
	}

	return counter.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)

	return n, err //nolint:wrapcheck // passes the underlying writer's error through.
}
