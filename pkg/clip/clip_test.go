package clip_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/cutfang/pkg/clip"
)

func TestRegistry_AddAndLookup(t *testing.T) {
	t.Parallel()

	reg, err := clip.NewRegistry(
		&clip.Clip{Number: 2, Handle: "b", FPS: 25, Frames: 100},
		&clip.Clip{Number: 1, Handle: "a", FPS: 30, Frames: 50, AudioSeconds: 2},
	)
	require.NoError(t, err)

	c, ok := reg.Clip(1)
	require.True(t, ok)
	assert.True(t, c.HasAudio())

	_, ok = reg.ByHandle("b")
	assert.True(t, ok)

	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].Number)

	require.ErrorIs(t, reg.Add(&clip.Clip{Number: 1, FPS: 25}), clip.ErrDuplicateClip)
	require.ErrorIs(t, reg.Add(&clip.Clip{Number: 0, FPS: 25}), clip.ErrInvalidClip)

	reg.Remove(2)
	_, ok = reg.Clip(2)
	assert.False(t, ok)
}

func TestRegistry_Renumber(t *testing.T) {
	t.Parallel()

	reg, err := clip.NewRegistry(
		&clip.Clip{Number: 1, Handle: "b", UniqueID: 22, FPS: 25},
		&clip.Clip{Number: 2, Handle: "renamed", UniqueID: 11, FPS: 25},
	)
	require.NoError(t, err)

	m := reg.Renumber([]clip.Numbering{
		{Number: 1, Handle: "a", UniqueID: 11, FPS: 30},
		{Number: 2, Handle: "b", UniqueID: 22, FPS: 25},
		{Number: 3, Handle: "gone", UniqueID: 33, FPS: 25},
	})

	assert.Equal(t, 2, m.Translate(1))
	assert.Equal(t, 1, m.Translate(2))
	assert.Equal(t, -1, m.Translate(3))
	assert.Equal(t, 9, m.Translate(9))

	fps, ok := m.SavedFPS(1)
	require.True(t, ok)
	assert.InDelta(t, 30.0, fps, 1e-9)

	var identity *clip.Mapping
	assert.Equal(t, 4, identity.Translate(4))

	_, ok = identity.SavedFPS(4)
	assert.False(t, ok)
	assert.Equal(t, []clip.Numbering{
		{Number: 1, Handle: "b", UniqueID: 22, FPS: 25},
		{Number: 2, Handle: "renamed", UniqueID: 11, FPS: 25},
	}, reg.Numbering())
}
