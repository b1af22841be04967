package layout_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/cutfang/pkg/event"
	"github.com/Sumatoshi-tech/cutfang/pkg/filter"
	"github.com/Sumatoshi-tech/cutfang/pkg/fx"
	"github.com/Sumatoshi-tech/cutfang/pkg/layout"
	"github.com/Sumatoshi-tech/cutfang/pkg/plant"
)

const frame = int64(40000)

func sample(t *testing.T) *event.List {
	t.Helper()

	l := event.NewList(25)
	l.Width, l.Height = 640, 360
	l.Audio = event.AudioFormat{Channels: 2, Rate: 48000, SampleSize: 16, Signed: true}

	var hint event.ID

	for i := range 6 {
		_, err := l.InsertFrameAt(int64(i)*frame, []int{1}, []int64{int64(i + 1)}, &hint)
		require.NoError(t, err)
	}

	first := l.FirstFrame()
	event.InsertAudioAt(first, -1, 2, 0.5, 1)
	l.InsertMarkerAt(first, event.MarkerBlockStart, 0)

	reg := filter.BuiltinRegistry()
	caption, err := reg.ByName(filter.NameCaption)
	require.NoError(t, err)

	fi, err := fx.AddEffect(l, reg, caption, first, l.LastFrame(), []int{0}, []int{0})
	require.NoError(t, err)

	_, err = fx.SetParam(l, reg, fi, l.NextFrame(first), 1, plant.Strings("hello"))
	require.NoError(t, err)

	fi.Init().HostTag = "3|1"

	return l
}

func encode(t *testing.T, l *event.List) []byte {
	t.Helper()

	var buf bytes.Buffer

	require.NoError(t, layout.Save(&buf, l, layout.SaveOptions{}))

	return buf.Bytes()
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	l := sample(t)
	data := encode(t, l)

	assert.Equal(t, int64(len(data)), layout.ByteSize(l))

	loaded, err := layout.Load(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Empty(t, loaded.Rejected)

	got := loaded.List
	assert.InDelta(t, 25.0, got.FPS, 0)
	assert.Equal(t, 640, got.Width)
	assert.Equal(t, l.Audio, got.Audio)
	assert.Equal(t, l.Len(), got.Len())

	// Identifiers survive, so references resolve unchanged.
	a, b := l.First(), got.First()
	for a != nil {
		require.NotNil(t, b)
		assert.Equal(t, a.ID(), b.ID())
		assert.Equal(t, a.TC(), b.TC())
		assert.Equal(t, a.Kind(), b.Kind())

		a, b = l.Next(a), got.Next(b)
	}

	assert.Nil(t, b)

	// Saving the reloaded list reproduces the bytes exactly.
	assert.Equal(t, data, encode(t, got))
}

func TestLoad_Truncated(t *testing.T) {
	t.Parallel()

	l := sample(t)
	data := encode(t, l)

	// Cut inside the third event, just after its leaf count.
	cut := plant.EncodedSize(layout.HeaderPlant(l))

	e := l.First()
	for range 2 {
		cut += plant.EncodedSize(layout.EventPlant(e))
		e = l.Next(e)
	}

	cut += 4

	loaded, err := layout.Load(bytes.NewReader(data[:cut]))
	require.ErrorIs(t, err, layout.ErrTruncated)
	require.NotNil(t, loaded)
	assert.Equal(t, 2, loaded.List.Len())
	assert.Equal(t, l.First().ID(), loaded.List.First().ID())
}

func TestLoad_NotALayout(t *testing.T) {
	t.Parallel()

	_, err := layout.Load(bytes.NewReader(nil))
	require.ErrorIs(t, err, layout.ErrNotLayout)

	var buf bytes.Buffer

	require.NoError(t, plant.Encode(&buf, plant.New(plant.TypeEvent)))

	_, err = layout.Load(&buf)
	require.ErrorIs(t, err, layout.ErrNotLayout)
}

func TestLoad_RejectsBadEvents(t *testing.T) {
	t.Parallel()

	l := event.NewList(25)

	var buf bytes.Buffer

	require.NoError(t, plant.Encode(&buf, layout.HeaderPlant(l)))

	unknown := plant.New(plant.TypeEvent)
	unknown.Set(layout.KeyHint, plant.Ints(99))
	unknown.Set(layout.KeyTimecode, plant.Int64s(0))
	require.NoError(t, plant.Encode(&buf, unknown))

	good := event.NewList(25)
	f := good.Append(0, &event.Frame{Clips: []int{1}, Frames: []int64{1}})
	require.NoError(t, plant.Encode(&buf, layout.EventPlant(f)))
	require.NoError(t, plant.Encode(&buf, layout.EventPlant(f)))

	noClips := plant.New(plant.TypeEvent)
	noClips.Set(layout.KeyHint, plant.Ints(int(event.KindFrame)))
	noClips.Set(layout.KeyTimecode, plant.Int64s(frame))
	require.NoError(t, plant.Encode(&buf, noClips))

	loaded, err := layout.Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.List.Len())

	require.Len(t, loaded.Rejected, 3)
	require.ErrorIs(t, loaded.Rejected[0].Err, layout.ErrUnknownHint)
	require.ErrorIs(t, loaded.Rejected[1].Err, layout.ErrDuplicateID)
	require.ErrorIs(t, loaded.Rejected[2].Err, layout.ErrBadEvent)
	assert.Equal(t, frame, loaded.Rejected[2].TC)
}

func TestSave_Progress(t *testing.T) {
	t.Parallel()

	l := event.NewList(25)
	_, err := l.AddBlankFramesUpTo(249 * frame)
	require.NoError(t, err)
	require.Equal(t, 250, l.Len())

	var calls []int

	err = layout.Save(&bytes.Buffer{}, l, layout.SaveOptions{
		Progress: func(done, total int) {
			assert.Equal(t, 250, total)

			calls = append(calls, done)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{100, 200, 250}, calls)
}

func TestFile_CompressedRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l := sample(t)

	plain := filepath.Join(dir, "plain"+layout.Extension)
	packed := filepath.Join(dir, "sub", "packed"+layout.Extension)

	require.NoError(t, layout.SaveFile(plain, l, layout.FileOptions{}))
	require.NoError(t, layout.SaveFile(packed, l, layout.FileOptions{Compress: true}))

	raw, err := os.ReadFile(packed)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x28, 0xB5, 0x2F, 0xFD}, raw[:4])

	for _, path := range []string{plain, packed} {
		loaded, loadErr := layout.LoadFile(path)
		require.NoError(t, loadErr)
		assert.Equal(t, encode(t, l), encode(t, loaded.List))
	}

	_, err = os.Stat(packed + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestOpen_ReturnsRawStream(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l := sample(t)
	packed := filepath.Join(dir, "packed"+layout.Extension)

	require.NoError(t, layout.SaveFile(packed, l, layout.FileOptions{Compress: true}))

	rc, err := layout.Open(packed)
	require.NoError(t, err)

	raw, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	assert.Equal(t, encode(t, l), raw)

	_, err = layout.Open(filepath.Join(dir, "missing"+layout.Extension))
	require.ErrorIs(t, err, os.ErrNotExist)
}
