package checkpoint_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/cutfang/pkg/checkpoint"
	"github.com/Sumatoshi-tech/cutfang/pkg/clip"
	"github.com/Sumatoshi-tech/cutfang/pkg/filter"
	"github.com/Sumatoshi-tech/cutfang/pkg/multitrack"
)

const frame = int64(40000)

func newEditor(t *testing.T) *multitrack.Editor {
	t.Helper()

	reg, err := clip.NewRegistry(
		&clip.Clip{Number: 1, Handle: "intro", UniqueID: 11, FPS: 25, Frames: 100, Width: 720, Height: 576},
		&clip.Clip{Number: 2, Handle: "outro", UniqueID: 22, FPS: 25, Frames: 100, Width: 720, Height: 576},
	)
	require.NoError(t, err)

	opts := multitrack.DefaultOptions()
	opts.Logger = slog.New(slog.DiscardHandler)

	ed, err := multitrack.New(opts, filter.BuiltinRegistry(), reg)
	require.NoError(t, err)

	return ed
}

// edited returns an editor holding one block of clip 1 and one of clip 2.
func edited(t *testing.T) *multitrack.Editor {
	t.Helper()

	ed := newEditor(t)

	_, err := ed.InsertBlock(0, 1, 1, 10, 0)
	require.NoError(t, err)

	_, err = ed.InsertBlock(1, 2, 20, 24, 3*frame)
	require.NoError(t, err)

	return ed
}

func layoutOf(t *testing.T, ed *multitrack.Editor) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, ed.WriteBackup(&buf))

	return buf.Bytes()
}

// manager returns a manager for pid in dir that treats every other process
// as dead.
func manager(dir string, pid int) *checkpoint.Manager {
	m := checkpoint.NewManager(dir)
	m.UID = 1000
	m.GID = 100
	m.PID = pid
	m.Alive = func(int) bool { return false }
	m.Logger = slog.New(slog.DiscardHandler)

	return m
}
