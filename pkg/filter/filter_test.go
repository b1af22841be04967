package filter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/cutfang/pkg/filter"
	"github.com/Sumatoshi-tech/cutfang/pkg/plant"
)

func TestRegistry_LookupAndOrder(t *testing.T) {
	t.Parallel()

	reg := filter.BuiltinRegistry()
	all := reg.All()

	require.Len(t, all, 5)
	assert.Equal(t, filter.NameAudioVolume, all[0].Name)

	for _, f := range all {
		got, ok := reg.Lookup(f.Hash())
		require.True(t, ok)
		assert.Same(t, f, got)
	}

	blur, err := reg.ByName(filter.NameBlur)
	require.NoError(t, err)
	assert.Len(t, blur.Hash(), 32)

	_, err = reg.ByName("nope")
	require.ErrorIs(t, err, filter.ErrUnknownFilter)
}

func TestRegistry_Duplicate(t *testing.T) {
	t.Parallel()

	_, err := filter.NewRegistry(
		&filter.Filter{Name: "a", Version: 1},
		&filter.Filter{Name: "a", Version: 1},
	)
	require.ErrorIs(t, err, filter.ErrDuplicateFilter)

	_, err = filter.NewRegistry(&filter.Filter{})
	require.ErrorIs(t, err, filter.ErrInvalidFilter)

	// Different versions are different filters.
	reg, err := filter.NewRegistry(
		&filter.Filter{Name: "a", Version: 1},
		&filter.Filter{Name: "a", Version: 2},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())
}

func TestFilter_Counts(t *testing.T) {
	t.Parallel()

	reg := filter.BuiltinRegistry()

	avol, err := reg.ByName(filter.NameAudioVolume)
	require.NoError(t, err)
	assert.True(t, avol.ProcessLast())
	assert.True(t, avol.IsAudio())
	assert.True(t, avol.CountsValid([]int{4}))
	assert.False(t, avol.CountsValid([]int{65}))
	assert.False(t, avol.CountsValid([]int{0}))

	dissolve, err := reg.ByName(filter.NameDissolve)
	require.NoError(t, err)
	assert.True(t, dissolve.IsTransition())
	assert.Equal(t, []int{1, 1}, dissolve.DefaultCounts())
	assert.False(t, dissolve.CountsValid([]int{1}))
	assert.True(t, dissolve.CountsValid(nil))
	assert.False(t, dissolve.CountsValid([]int{2, 1}))

	opt := filter.Channel{Optional: true}
	assert.True(t, opt.AcceptsRepeats(0))
	assert.True(t, opt.AcceptsRepeats(1))
}

func TestParam_SeedMatches(t *testing.T) {
	t.Parallel()

	p := filter.Param{Seed: plant.SeedDouble}
	assert.True(t, p.SeedMatches(plant.Floats(1)))
	assert.True(t, p.SeedMatches(plant.Ints(1)))
	assert.False(t, p.SeedMatches(plant.Strings("x")))

	b := filter.Param{Seed: plant.SeedBoolean}
	assert.True(t, b.SeedMatches(plant.Ints(0)))

	caption, err := filter.BuiltinRegistry().ByName(filter.NameCaption)
	require.NoError(t, err)

	font, ok := caption.Param(0)
	require.True(t, ok)
	assert.True(t, font.Reinit)

	_, ok = caption.Param(3)
	assert.False(t, ok)
}
