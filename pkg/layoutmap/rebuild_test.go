package layoutmap_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/cutfang/pkg/clip"
	"github.com/Sumatoshi-tech/cutfang/pkg/filter"
	"github.com/Sumatoshi-tech/cutfang/pkg/layoutmap"
	"github.com/Sumatoshi-tech/cutfang/pkg/multitrack"
)

const frame = int64(40000)

func registry(t *testing.T) *clip.Registry {
	t.Helper()

	reg, err := clip.NewRegistry(
		&clip.Clip{Number: 1, Handle: "intro", UniqueID: 11, Name: "Intro", FPS: 25, Frames: 100, Width: 720, Height: 576},
		&clip.Clip{Number: 2, Handle: "outro", UniqueID: 22, Name: "Outro", FPS: 25, Frames: 100,
			AudioSeconds: 4, AudioRate: 48000, Channels: 2},
	)
	require.NoError(t, err)

	return reg
}

func editor(t *testing.T, reg *clip.Registry) *multitrack.Editor {
	t.Helper()

	opts := multitrack.DefaultOptions()
	opts.Logger = slog.New(slog.DiscardHandler)
	opts.PerTrackAudio = true

	ed, err := multitrack.New(opts, filter.BuiltinRegistry(), reg)
	require.NoError(t, err)

	return ed
}

func TestScan(t *testing.T) {
	t.Parallel()

	ed := editor(t, registry(t))

	_, err := ed.InsertBlock(0, 1, 5, 20, 0)
	require.NoError(t, err)

	_, err = ed.InsertBlock(1, 2, 1, 50, 0)
	require.NoError(t, err)

	require.NotNil(t, ed.VideoTracks()[1].PairedAudio)

	usage := layoutmap.Scan(ed.List())

	assert.Equal(t, int64(20), usage[1].MaxFrame)
	assert.Zero(t, usage[1].MaxAudio)
	assert.Equal(t, int64(50), usage[2].MaxFrame)
	assert.InDelta(t, 2.0, usage[2].MaxAudio, 0.05)
}

func TestRebuild(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	reg := registry(t)
	ctx := context.Background()

	first := editor(t, reg)
	_, err := first.InsertBlock(0, 1, 1, 30, 0)
	require.NoError(t, err)
	require.NoError(t, first.SaveFile(ctx, filepath.Join(dir, "layouts", "first.lay"), false))

	second := editor(t, reg)
	_, err = second.InsertBlock(0, 1, 1, 10, 0)
	require.NoError(t, err)
	_, err = second.InsertBlock(1, 2, 1, 25, 3*frame)
	require.NoError(t, err)
	require.NoError(t, second.SaveFile(ctx, filepath.Join(dir, "layouts", "old", "second.lay"), true))

	broken := filepath.Join(dir, "layouts", "broken.lay")
	require.NoError(t, os.WriteFile(broken, []byte("nope"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	res, err := layoutmap.Rebuild(ctx, dir, reg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Layouts)
	assert.Contains(t, res.Skipped, broken)

	introEntry := res.Map.Entry("intro", 11)
	require.NotNil(t, introEntry)
	assert.Equal(t, "Intro", introEntry.Name)
	assert.Equal(t, []layoutmap.Use{
		{Path: filepath.Join(dir, "layouts", "first.lay"), MaxFrame: 30},
		{Path: filepath.Join(dir, "layouts", "old", "second.lay"), MaxFrame: 10},
	}, introEntry.Layouts)

	outroEntry := res.Map.Entry("outro", 22)
	require.NotNil(t, outroEntry)
	require.Len(t, outroEntry.Layouts, 1)
	assert.Equal(t, int64(25), outroEntry.Layouts[0].MaxFrame)
	assert.InDelta(t, 1.0, outroEntry.Layouts[0].MaxAudio, 0.05)

	require.NoError(t, layoutmap.Save(dir, res.Map))

	loaded, err := layoutmap.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, res.Map, loaded)
}

func TestMap_Update(t *testing.T) {
	t.Parallel()

	reg := registry(t)
	ed := editor(t, reg)

	_, err := ed.InsertBlock(0, 1, 5, 20, 0)
	require.NoError(t, err)

	m := &layoutmap.Map{}
	m.Record(&clip.Clip{Handle: "outro", UniqueID: 22}, layoutmap.Use{Path: "/set/a.lay", MaxFrame: 9})

	m.Update("/set/a.lay", ed.List(), reg)

	assert.Nil(t, m.Entry("outro", 22))

	intro := m.Entry("intro", 11)
	require.NotNil(t, intro)
	require.Len(t, intro.Layouts, 1)
	assert.Equal(t, layoutmap.Use{Path: "/set/a.lay", MaxFrame: 20}, intro.Layouts[0])
}
