package undo_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/cutfang/pkg/undo"
)

func state(b byte, n int) []byte { return bytes.Repeat([]byte{b}, n) }

func snapshot(t *testing.T, r *undo.Record) []byte {
	t.Helper()

	data, err := r.Snapshot()
	require.NoError(t, err)

	return data
}

func TestStack_UndoRedo(t *testing.T) {
	t.Parallel()

	for _, compress := range []bool{false, true} {
		s := undo.New(1<<20, compress)

		require.NoError(t, s.Push(undo.ActionInsertBlock, nil, state('a', 64)))
		require.NoError(t, s.Push(undo.ActionMoveBlock, 7, state('b', 64)))

		assert.True(t, s.CanUndo())
		assert.False(t, s.CanRedo())
		assert.Equal(t, undo.ActionMoveBlock, s.UndoAction())

		rec, err := s.Undo(state('c', 64), "tip")
		require.NoError(t, err)
		assert.Equal(t, undo.ActionMoveBlock, rec.Action)
		assert.Equal(t, 7, rec.Extra)
		assert.Equal(t, state('b', 64), snapshot(t, rec))

		rec, err = s.Undo(nil, nil)
		require.NoError(t, err)
		assert.Equal(t, undo.ActionInsertBlock, rec.Action)
		assert.Equal(t, state('a', 64), snapshot(t, rec))
		assert.False(t, s.CanUndo())

		_, err = s.Undo(nil, nil)
		require.ErrorIs(t, err, undo.ErrNothingUndo)

		assert.Equal(t, undo.ActionInsertBlock, s.RedoAction())

		rec, err = s.Redo()
		require.NoError(t, err)
		assert.Equal(t, state('b', 64), snapshot(t, rec))
		assert.Equal(t, undo.ActionMoveBlock, s.RedoAction())

		rec, err = s.Redo()
		require.NoError(t, err)
		assert.Equal(t, state('c', 64), snapshot(t, rec))
		assert.Equal(t, "tip", rec.Extra)

		_, err = s.Redo()
		require.ErrorIs(t, err, undo.ErrNothingRedo)
	}
}

func TestStack_PushTruncatesRedo(t *testing.T) {
	t.Parallel()

	s := undo.New(1<<20, false)

	require.NoError(t, s.Push(undo.ActionInsertBlock, nil, state('a', 10)))
	require.NoError(t, s.Push(undo.ActionInsertBlock, nil, state('b', 10)))

	_, err := s.Undo(state('c', 10), nil)
	require.NoError(t, err)
	require.True(t, s.CanRedo())

	require.NoError(t, s.Push(undo.ActionDeleteBlock, nil, state('b', 10)))
	assert.False(t, s.CanRedo())
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, int64(20), s.Used())
}

func TestStack_EvictsOldest(t *testing.T) {
	t.Parallel()

	s := undo.New(100, false)

	for i := range 5 {
		require.NoError(t, s.Push(undo.ActionInsertBlock, i, state(byte('a'+i), 30)))
	}

	assert.Equal(t, 3, s.Len())
	assert.LessOrEqual(t, s.Used(), s.Budget())

	rec, err := s.Undo(state('z', 10), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, rec.Extra)
	assert.Equal(t, state('e', 30), snapshot(t, rec))
}

func TestStack_NoSpace(t *testing.T) {
	t.Parallel()

	s := undo.New(50, false)

	require.NoError(t, s.Push(undo.ActionInsertBlock, nil, state('a', 40)))

	err := s.Push(undo.ActionInsertBlock, nil, state('b', 60))
	require.ErrorIs(t, err, undo.ErrNoSpace)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, int64(0), s.Used())
	assert.False(t, s.CanUndo())
}

func TestStack_CompressionSavesSpace(t *testing.T) {
	t.Parallel()

	s := undo.New(1<<20, true)

	require.NoError(t, s.Push(undo.ActionSplit, nil, state('x', 4096)))
	assert.Less(t, s.Used(), int64(4096))
}

func TestParseBudget(t *testing.T) {
	t.Parallel()

	n, err := undo.ParseBudget("32MiB")
	require.NoError(t, err)
	assert.Equal(t, int64(32<<20), n)

	_, err = undo.ParseBudget("lots")
	require.ErrorIs(t, err, undo.ErrBadBudget)

	assert.Equal(t, "move block", undo.ActionMoveBlock.String())
	assert.Equal(t, "action(9)", undo.Action(9).String())
}
