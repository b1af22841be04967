package layoutmap_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/cutfang/pkg/clip"
	"github.com/Sumatoshi-tech/cutfang/pkg/layoutmap"
)

var (
	intro = &clip.Clip{Number: 1, Handle: "intro", UniqueID: 11, Name: "Intro", FPS: 25, Frames: 100}
	outro = &clip.Clip{Number: 2, Handle: "outro", UniqueID: 22, Name: "Outro", FPS: 25, Frames: 100, AudioSeconds: 4}
)

func TestEncode_Format(t *testing.T) {
	t.Parallel()

	m := &layoutmap.Map{}
	m.Record(intro, layoutmap.Use{Path: "/set/layouts/a.lay", MaxFrame: 7, MaxAudio: 0})

	var buf bytes.Buffer
	require.NoError(t, layoutmap.Encode(&buf, m, "/set"))

	want := []byte{
		1, 0, 0, 0, // entries
		5, 0, 0, 0, 'i', 'n', 't', 'r', 'o',
		11, 0, 0, 0, 0, 0, 0, 0,
		5, 0, 0, 0, 'I', 'n', 't', 'r', 'o',
		1, 0, 0, 0, // layouts
		13, 0, 0, 0, 'l', 'a', 'y', 'o', 'u', 't', 's', '/', 'a', '.', 'l', 'a', 'y',
		7, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0,
	}
	assert.Equal(t, want, buf.Bytes())
}

func TestDecode_RoundTrip(t *testing.T) {
	t.Parallel()

	m := &layoutmap.Map{}
	m.Record(outro, layoutmap.Use{Path: "/set/b.lay", MaxFrame: 40, MaxAudio: 1.5})
	m.Record(intro, layoutmap.Use{Path: "/set/a.lay", MaxFrame: 10})
	m.Record(intro, layoutmap.Use{Path: "/elsewhere/c.lay", MaxFrame: 90})

	var buf bytes.Buffer
	require.NoError(t, layoutmap.Encode(&buf, m, "/set"))

	got, err := layoutmap.Decode(&buf, "/set")
	require.NoError(t, err)
	assert.Equal(t, m, got)

	// Entries are sorted by handle.
	assert.Equal(t, "intro", got.Entries[0].Handle)
}

func TestDecode_Truncated(t *testing.T) {
	t.Parallel()

	m := &layoutmap.Map{}
	m.Record(intro, layoutmap.Use{Path: "/set/a.lay", MaxFrame: 10})

	var buf bytes.Buffer
	require.NoError(t, layoutmap.Encode(&buf, m, "/set"))

	data := buf.Bytes()

	for _, cut := range []int{2, 10, len(data) - 1} {
		_, err := layoutmap.Decode(bytes.NewReader(data[:cut]), "/set")
		require.ErrorIs(t, err, layoutmap.ErrCorrupt, "cut at %d", cut)
	}

	_, err := layoutmap.Decode(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0x7f}), "/set")
	require.ErrorIs(t, err, layoutmap.ErrCorrupt)
}

func TestMap_RecordReplacesSameLayout(t *testing.T) {
	t.Parallel()

	m := &layoutmap.Map{}
	m.Record(intro, layoutmap.Use{Path: "/a.lay", MaxFrame: 10})
	m.Record(intro, layoutmap.Use{Path: "/a.lay", MaxFrame: 20})

	e := m.Entry("intro", 11)
	require.NotNil(t, e)
	assert.Equal(t, []layoutmap.Use{{Path: "/a.lay", MaxFrame: 20}}, e.Layouts)
	assert.Nil(t, m.Entry("intro", 12))
}

func TestMap_Affected(t *testing.T) {
	t.Parallel()

	m := &layoutmap.Map{}
	m.Record(outro, layoutmap.Use{Path: "/short.lay", MaxFrame: 10, MaxAudio: 0.4})
	m.Record(outro, layoutmap.Use{Path: "/long.lay", MaxFrame: 80, MaxAudio: 3.2})

	paths := func(uses []layoutmap.Use) []string {
		var out []string
		for _, u := range uses {
			out = append(out, u.Path)
		}

		return out
	}

	assert.Equal(t, []string{"/long.lay"}, paths(m.Affected(outro, 50, -1)))
	assert.Equal(t, []string{"/short.lay", "/long.lay"}, paths(m.Affected(outro, 0, -1)))
	assert.Equal(t, []string{"/long.lay"}, paths(m.Affected(outro, -1, 2)))
	assert.Empty(t, m.Affected(outro, 100, 4))
	assert.Empty(t, m.Affected(intro, 0, 0))
}

func TestMap_ForgetAndPrune(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	kept := filepath.Join(dir, "kept.lay")
	require.NoError(t, os.WriteFile(kept, nil, 0o600))

	m := &layoutmap.Map{}
	m.Record(intro, layoutmap.Use{Path: kept, MaxFrame: 1})
	m.Record(intro, layoutmap.Use{Path: filepath.Join(dir, "gone.lay"), MaxFrame: 1})
	m.Record(outro, layoutmap.Use{Path: filepath.Join(dir, "gone.lay"), MaxFrame: 1})

	assert.Equal(t, []string{filepath.Join(dir, "gone.lay")}, m.Prune())
	assert.Equal(t, []string{kept}, m.Layouts())
	assert.Nil(t, m.Entry("outro", 22))

	m.Forget(kept)
	assert.Empty(t, m.Entries)
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	empty, err := layoutmap.Load(dir)
	require.NoError(t, err)
	assert.Empty(t, empty.Entries)

	m := &layoutmap.Map{}
	m.Record(intro, layoutmap.Use{Path: filepath.Join(dir, "layouts", "a.lay"), MaxFrame: 5})

	require.NoError(t, layoutmap.Save(dir, m))

	got, err := layoutmap.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	require.NoError(t, layoutmap.Save(dir, &layoutmap.Map{}))
	assert.NoFileExists(t, filepath.Join(dir, layoutmap.FileName))
}
