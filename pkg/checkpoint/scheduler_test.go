package checkpoint_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/cutfang/pkg/checkpoint"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func tick(t *testing.T, s *checkpoint.Scheduler, at time.Duration) bool {
	t.Helper()

	wrote, err := s.Tick(context.Background(), epoch.Add(at))
	require.NoError(t, err)

	return wrote
}

func TestScheduler_EveryChange(t *testing.T) {
	t.Parallel()

	ed := newEditor(t)
	m := manager(t.TempDir(), 1)
	s := checkpoint.NewScheduler(m, ed, 0)

	assert.False(t, tick(t, s, 0), "clean editor")

	_, err := ed.InsertBlock(0, 1, 1, 10, 0)
	require.NoError(t, err)

	assert.True(t, tick(t, s, 0))
	assert.False(t, tick(t, s, time.Second), "nothing new since the last backup")

	_, err = ed.InsertBlock(1, 2, 1, 5, 0)
	require.NoError(t, err)

	assert.True(t, tick(t, s, 2*time.Second))
	assert.FileExists(t, m.LayoutPath())
}

func TestScheduler_Interval(t *testing.T) {
	t.Parallel()

	ed := newEditor(t)
	s := checkpoint.NewScheduler(manager(t.TempDir(), 1), ed, 10*time.Second)

	_, err := ed.InsertBlock(0, 1, 1, 10, 0)
	require.NoError(t, err)

	assert.False(t, tick(t, s, 0))
	assert.False(t, tick(t, s, 5*time.Second))
	assert.True(t, tick(t, s, 10*time.Second))
}

func TestScheduler_Disabled(t *testing.T) {
	t.Parallel()

	ed := newEditor(t)
	m := manager(t.TempDir(), 1)
	s := checkpoint.NewScheduler(m, ed, -1)

	_, err := ed.InsertBlock(0, 1, 1, 10, 0)
	require.NoError(t, err)

	assert.False(t, tick(t, s, time.Hour))
	assert.NoFileExists(t, m.LayoutPath())
}

func TestScheduler_Suspend(t *testing.T) {
	t.Parallel()

	ed := newEditor(t)
	s := checkpoint.NewScheduler(manager(t.TempDir(), 1), ed, 0)

	_, err := ed.InsertBlock(0, 1, 1, 10, 0)
	require.NoError(t, err)

	s.Suspend()
	s.Suspend()
	assert.True(t, s.Suspended())
	assert.False(t, tick(t, s, 0))

	s.Resume()
	assert.False(t, tick(t, s, 0))

	s.Resume()
	s.Resume()
	assert.False(t, s.Suspended())
	assert.True(t, tick(t, s, 0))
}

func TestScheduler_SkipsSavedLayout(t *testing.T) {
	t.Parallel()

	ed := newEditor(t)
	s := checkpoint.NewScheduler(manager(t.TempDir(), 1), ed, 0)
	ed.SetSuspender(s)

	_, err := ed.InsertBlock(0, 1, 1, 10, 0)
	require.NoError(t, err)

	require.NoError(t, ed.SaveFile(context.Background(), t.TempDir()+"/cut.lay", false))
	assert.False(t, s.Suspended())
	assert.False(t, tick(t, s, 0))
}
