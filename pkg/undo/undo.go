// Package undo keeps a linear undo/redo history of event-list snapshots
// inside a fixed byte budget. Snapshots are stored LZ4-compressed; the
// oldest are evicted first when the budget runs out.
package undo

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/cutfang/pkg/safeconv"
)

// Sentinel errors.
var (
	ErrNoSpace     = errors.New("undo buffer too small for snapshot")
	ErrNothingUndo = errors.New("nothing to undo")
	ErrNothingRedo = errors.New("nothing to redo")
	ErrCorrupt     = errors.New("undo snapshot corrupt")
	ErrBadBudget   = errors.New("invalid undo buffer size")
)

// DefaultBudget is the buffer size used when none is configured.
const DefaultBudget = 32 << 20

// Action names the edit a snapshot was taken before.
type Action int

// Edit actions. Values below 512 insert, 512..1023 change effects and 1024
// onwards remove or move material.
const (
	ActionNone             Action = 0
	ActionInsertBlock      Action = 1
	ActionInsertAudioBlock Action = 2
	ActionApplyFilter      Action = 512
	ActionDeleteFilter     Action = 513
	ActionSplit            Action = 514
	ActionSplitMulti       Action = 515
	ActionFilterMapChange  Action = 516
	ActionDeleteBlock      Action = 1024
	ActionMoveBlock        Action = 1025
	ActionRemoveGaps       Action = 1026
	ActionDeleteAudioBlock Action = 1027
	ActionMoveAudioBlock   Action = 1028
	ActionInsertGap        Action = 1029
)

var actionNames = map[Action]string{
	ActionNone:             "none",
	ActionInsertBlock:      "insert block",
	ActionInsertAudioBlock: "insert audio block",
	ActionApplyFilter:      "apply effect",
	ActionDeleteFilter:     "delete effect",
	ActionSplit:            "split block",
	ActionSplitMulti:       "split tracks",
	ActionFilterMapChange:  "change effect order",
	ActionDeleteBlock:      "delete block",
	ActionMoveBlock:        "move block",
	ActionRemoveGaps:       "remove gaps",
	ActionDeleteAudioBlock: "delete audio block",
	ActionMoveAudioBlock:   "move audio block",
	ActionInsertGap:        "insert gap",
}

// String returns the label shown in undo/redo menus.
func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}

	return fmt.Sprintf("action(%d)", int(a))
}

// Record is one stored snapshot.
type Record struct {
	Action Action
	// Extra is an opaque payload kept with the snapshot, e.g. overlay
	// state that the snapshot bytes do not carry.
	Extra any
	// DataLen is the uncompressed snapshot size.
	DataLen int

	data       []byte
	compressed bool
}

// Size returns the bytes the record occupies in the budget.
func (r *Record) Size() int64 { return int64(len(r.data)) }

// Snapshot returns the uncompressed snapshot.
func (r *Record) Snapshot() ([]byte, error) {
	if !r.compressed {
		return r.data, nil
	}

	out := make([]byte, r.DataLen)

	n, err := lz4.UncompressBlock(r.data, out)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	if n != r.DataLen {
		return nil, fmt.Errorf("%w: %d of %d bytes", ErrCorrupt, n, r.DataLen)
	}

	return out, nil
}

// Stack is the history. records[i] holds the state before edit i; while
// an undo is in progress the last record holds the state the undo started
// from, so it can be redone.
type Stack struct {
	budget   int64
	compress bool

	records []*Record
	cursor  int
	used    int64
}

// New creates a history holding at most budget bytes of snapshots.
func New(budget int64, compress bool) *Stack {
	if budget <= 0 {
		budget = DefaultBudget
	}

	return &Stack{budget: budget, compress: compress}
}

// ParseBudget parses a buffer size such as "32MiB".
func ParseBudget(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil || n == 0 || n > 1<<40 {
		return 0, fmt.Errorf("%w: %q", ErrBadBudget, s)
	}

	return int64(n), nil
}

// Budget returns the configured byte budget.
func (s *Stack) Budget() int64 { return s.budget }

// Used returns the bytes currently held.
func (s *Stack) Used() int64 { return s.used }

// Len returns the number of stored records.
func (s *Stack) Len() int { return len(s.records) }

// CanUndo reports whether Undo has a state to return to.
func (s *Stack) CanUndo() bool { return s.cursor > 0 }

// CanRedo reports whether Redo has a state to return to.
func (s *Stack) CanRedo() bool { return s.cursor < len(s.records)-1 }

// UndoAction returns the action Undo would revert.
func (s *Stack) UndoAction() Action {
	if !s.CanUndo() {
		return ActionNone
	}

	return s.records[s.cursor-1].Action
}

// RedoAction returns the action Redo would repeat.
func (s *Stack) RedoAction() Action {
	if !s.CanRedo() {
		return ActionNone
	}

	return s.records[s.cursor].Action
}

// Push stores the state before an edit. Any redo history is discarded
// and the oldest records are evicted until the snapshot fits. When it
// cannot fit at all the whole history is dropped and ErrNoSpace returned;
// the edit itself may still go ahead.
func (s *Stack) Push(action Action, extra any, snapshot []byte) error {
	s.truncate(s.cursor)

	rec := s.encode(action, extra, snapshot)

	if !s.makeSpace(rec.Size()) {
		s.truncate(0)

		return fmt.Errorf("%w: %s needs %s of %s", ErrNoSpace, action,
			humanize.IBytes(safeconv.MustInt64ToUint64(rec.Size())), humanize.IBytes(safeconv.MustInt64ToUint64(s.budget)))
	}

	s.records = append(s.records, rec)
	s.used += rec.Size()
	s.cursor = len(s.records)

	return nil
}

// Undo steps back one edit. current is the live state and extra its
// payload, kept so the undo can be redone. It returns the record holding
// the state to restore; its Action is the edit undone.
func (s *Stack) Undo(current []byte, extra any) (*Record, error) {
	if !s.CanUndo() {
		return nil, ErrNothingUndo
	}

	if s.cursor == len(s.records) {
		tip := s.encode(ActionNone, extra, current)

		if !s.makeSpace(tip.Size()) || !s.CanUndo() {
			return nil, fmt.Errorf("undo: %w", ErrNoSpace)
		}

		s.records = append(s.records, tip)
		s.used += tip.Size()
	}

	s.cursor--

	return s.records[s.cursor], nil
}

// Redo repeats the last undone edit. It returns the record holding the
// state to restore.
func (s *Stack) Redo() (*Record, error) {
	if !s.CanRedo() {
		return nil, ErrNothingRedo
	}

	s.cursor++

	return s.records[s.cursor], nil
}

// Reset drops the whole history.
func (s *Stack) Reset() { s.truncate(0) }

func (s *Stack) encode(action Action, extra any, snapshot []byte) *Record {
	rec := &Record{Action: action, Extra: extra, DataLen: len(snapshot)}

	if s.compress && len(snapshot) > 0 {
		buf := make([]byte, lz4.CompressBlockBound(len(snapshot)))

		n, err := lz4.CompressBlock(snapshot, buf, nil)
		if err == nil && n > 0 && n < len(snapshot) {
			rec.data = buf[:n:n]
			rec.compressed = true

			return rec
		}
	}

	rec.data = append([]byte(nil), snapshot...)

	return rec
}

// makeSpace evicts the oldest records until size more bytes fit.
func (s *Stack) makeSpace(size int64) bool {
	if size > s.budget {
		return false
	}

	for len(s.records) > 0 && s.used+size > s.budget {
		s.used -= s.records[0].Size()
		s.records[0] = nil
		s.records = s.records[1:]

		if s.cursor > 0 {
			s.cursor--
		}
	}

	return true
}

func (s *Stack) truncate(n int) {
	for _, r := range s.records[n:] {
		s.used -= r.Size()
	}

	clear(s.records[n:])
	s.records = s.records[:n]

	if s.cursor > n {
		s.cursor = n
	}
}
