package multitrack_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/cutfang/pkg/event"
	"github.com/Sumatoshi-tech/cutfang/pkg/filter"
	"github.com/Sumatoshi-tech/cutfang/pkg/fx"
	"github.com/Sumatoshi-tech/cutfang/pkg/multitrack"
	"github.com/Sumatoshi-tech/cutfang/pkg/plant"
	"github.com/Sumatoshi-tech/cutfang/pkg/undo"
)

func TestEffects_ApplySetDelete(t *testing.T) {
	t.Parallel()

	ed := newEditor(t, nil)
	insert(t, ed, 0, 1, 8, 0)

	id, err := ed.ApplyEffect(filter.NameBlur, []int{0}, 1*frame, 6*frame)
	require.NoError(t, err)
	assert.Equal(t, []event.ID{id}, ed.Effects())
	require.NoError(t, ed.List().Verify())

	require.NoError(t, ed.SetEffectParam(id, 3*frame, 0, plant.Ints(9)))
	assert.Equal(t, undo.ActionApplyFilter, ed.UndoAction())

	chain := fx.ParamChain(ed.List(), ed.List().Get(id), 0)
	require.Len(t, chain, 2)
	assert.Equal(t, 3*frame, chain[1].TC())

	depth := ed.History().Len()
	require.ErrorIs(t, ed.SetEffectParam(id, 3*frame, 0, plant.Floats(1)), fx.ErrSeedMismatch)
	require.ErrorIs(t, ed.SetEffectParam(id, 7*frame, 0, plant.Ints(1)), fx.ErrBadRange)
	assert.Equal(t, depth, ed.History().Len())

	require.NoError(t, ed.DeleteEffect(id))
	assert.Empty(t, ed.Effects())
	require.NoError(t, ed.List().Verify())

	_, err = ed.Undo()
	require.NoError(t, err)
	assert.Equal(t, []event.ID{id}, ed.Effects())

	require.ErrorIs(t, ed.DeleteEffect(9999), multitrack.ErrNoEffect)

	_, err = ed.ApplyEffect("sharpen", []int{0}, 0, frame)
	require.ErrorIs(t, err, filter.ErrUnknownFilter)

	_, err = ed.ApplyEffect(filter.NameBlur, []int{0}, 0, 40*frame)
	require.ErrorIs(t, err, multitrack.ErrNoFrame)
}

func TestEffects_MixerIsManaged(t *testing.T) {
	t.Parallel()

	ed := newEditor(t, nil)

	_, err := ed.InsertAudioBlock(-1, soundClip, 0, 5*frame, 0)
	require.NoError(t, err)

	mixer := ed.AudioMixer()
	require.NotZero(t, mixer)
	require.ErrorIs(t, ed.DeleteEffect(mixer), multitrack.ErrManagedEffect)
}

func TestEffects_MapOrder(t *testing.T) {
	t.Parallel()

	ed := newEditor(t, nil)
	insert(t, ed, 0, 1, 8, 0)

	blur, err := ed.ApplyEffect(filter.NameBlur, []int{0}, 0, 7*frame)
	require.NoError(t, err)

	caption, err := ed.ApplyEffect(filter.NameCaption, []int{0}, 0, 7*frame)
	require.NoError(t, err)

	letterbox, err := ed.ApplyEffect(filter.NameLetterbox, []int{0}, 0, 7*frame)
	require.NoError(t, err)

	require.NoError(t, ed.MoveEffectInMap(caption, blur, true))
	assert.Equal(t, undo.ActionFilterMapChange, ed.UndoAction())

	depth := ed.History().Len()
	before := save(t, ed)

	require.ErrorIs(t, ed.MoveEffectInMap(letterbox, blur, true), multitrack.ErrMapOrder)
	assert.Equal(t, depth, ed.History().Len())
	assert.Equal(t, before, save(t, ed))
}
