package event_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/cutfang/pkg/event"
)

func kinds(l *event.List) []event.Kind {
	var out []event.Kind

	for e := range l.All() {
		out = append(out, e.Kind())
	}

	return out
}

func TestList_DeleteFixesEnds(t *testing.T) {
	t.Parallel()

	l := event.NewList(fps)
	a := l.Append(0, event.BlankFrameBody())
	b := l.Append(frame, event.BlankFrameBody())
	c := l.Append(2*frame, event.BlankFrameBody())

	l.Delete(a)
	assert.Same(t, b, l.First())

	l.Delete(c)
	assert.Same(t, b, l.Last())
	assert.Nil(t, l.Get(c.ID()))

	l.Delete(b)
	assert.True(t, l.Empty())
	assert.Nil(t, l.First())
	assert.Nil(t, l.Last())
	require.NoError(t, l.Verify())
}

func TestList_DetachAndRelink(t *testing.T) {
	t.Parallel()

	l := event.NewList(fps)
	a := l.Append(0, event.BlankFrameBody())
	b := l.Append(frame, event.BlankFrameBody())

	l.Detach(a)
	assert.False(t, a.Linked())
	assert.Same(t, a, l.Get(a.ID()))
	require.NoError(t, l.SetTC(a, 2*frame))
	require.NoError(t, l.LinkAfter(a, b))
	require.ErrorIs(t, l.LinkAfter(a, b), event.ErrLinked)

	assert.Same(t, a, l.Last())
	require.NoError(t, l.Verify())
}

func TestList_StructuralOrderWithinTimecode(t *testing.T) {
	t.Parallel()

	l := event.NewList(fps)

	f0, err := l.InsertFrameAt(0, []int{1}, []int64{1}, nil)
	require.NoError(t, err)

	deinit := l.InsertDeinitAt(f0, &event.FilterDeinit{})
	fi := l.InsertInitAt(f0, &event.FilterInit{Filter: "x"})
	fmap := l.InsertMapAt(f0, []event.ID{fi.ID()}, true)
	pc := l.InsertParamChangeAt(f0, &event.ParamChange{Init: fi.ID()})
	marker := l.InsertMarkerAt(f0, event.MarkerBlockStart, 0)
	closing := l.InsertMapAt(f0, nil, false)

	assert.Equal(t, []event.Kind{
		event.KindMarker, event.KindFilterInit, event.KindParamChange,
		event.KindFilterMap, event.KindFrame, event.KindFilterDeinit, event.KindFilterMap,
	}, kinds(l))

	assert.Same(t, marker, l.First())
	assert.Same(t, pc, l.Next(fi))
	assert.Same(t, fmap, l.Prev(f0))
	assert.Same(t, deinit, l.Next(f0))
	assert.Same(t, closing, l.Last())

	// A second map before the frame reuses the slot.
	again := l.InsertMapAt(f0, nil, true)
	assert.Same(t, fmap, again)
	assert.Empty(t, again.Map().Inits)

	// Block markers merge tracks.
	assert.Same(t, marker, l.InsertMarkerAt(f0, event.MarkerBlockStart, 2))
	assert.Equal(t, []int{0, 2}, marker.Marker().Tracks)
	assert.True(t, l.MarkerNames(f0, event.MarkerBlockStart, 2))

	assert.True(t, l.IsInitParamChange(fi, pc))
	require.NoError(t, l.Verify())

	assert.Equal(t, 1, l.StripMarkers())
}

func TestList_Clone(t *testing.T) {
	t.Parallel()

	l := event.NewList(fps)
	f, err := l.InsertFrameAt(0, []int{1}, []int64{1}, nil)
	require.NoError(t, err)

	c := l.Clone()
	c.First().Frame().Clips[0] = 9

	assert.Equal(t, 1, f.Frame().Clips[0])
	assert.Equal(t, f.ID(), c.First().ID())
	require.NoError(t, c.Verify())
}

func TestList_ReleaseIDs(t *testing.T) {
	t.Parallel()

	l := event.NewList(fps)
	f, err := l.InsertFrameAt(0, []int{1}, []int64{1}, nil)
	require.NoError(t, err)

	mark := l.NextID()
	l.InsertMarkerAt(f, event.MarkerBlockStart, 0)
	assert.False(t, l.ReleaseIDs(mark))

	l.StripMarkers()
	assert.True(t, l.ReleaseIDs(mark))
	assert.Equal(t, mark, l.NextID())
}

func TestAudioHelpers(t *testing.T) {
	t.Parallel()

	l := event.NewList(fps)

	a, err := l.InsertFrameAt(0, []int{1}, []int64{1}, nil)
	require.NoError(t, err)

	b, err := l.InsertFrameAt(frame, []int{1}, []int64{2}, nil)
	require.NoError(t, err)

	assert.Equal(t, -2, event.AudioClip(a, -1))

	event.InsertAudioAt(a, -1, 4, 0.5, 1.000049)
	event.InsertAudioAt(a, 0, 4, 0, 1)

	assert.Equal(t, 4, event.AudioClip(a, -1))
	assert.InDelta(t, 1.0, event.AudioVelocity(a, -1), 1e-9)
	assert.InDelta(t, 0.5, event.AudioSeekTime(a, -1), 1e-9)
	assert.Equal(t, -1, event.AudioClip(a, 3))

	// Clip below 1 removes the entry when others remain.
	event.InsertAudioAt(a, 0, 0, 0, 0)
	assert.Len(t, a.Frame().Audio, 1)

	assert.Same(t, a, l.AudioBlockStart(-1, frame, true))
	assert.Nil(t, l.AudioBlockStart(-1, frame, false))

	event.InsertAudioAt(b, -1, 4, 0, 0)
	assert.Same(t, b, l.AudioBlockEnd(-1, a))

	event.RemoveAudioForTrack(a, -1)
	assert.False(t, a.Frame().HasAudio())
	assert.True(t, l.HasAudio())
}

func TestAddTrack(t *testing.T) {
	t.Parallel()

	l := event.NewList(fps)

	f, err := l.InsertFrameAt(0, []int{1, 2}, []int64{1, 1}, nil)
	require.NoError(t, err)

	blank, err := l.InsertBlankFrameAt(frame, nil)
	require.NoError(t, err)

	fi := l.InsertInitAt(f, &event.FilterInit{InTracks: []int{0, 1}, OutTracks: []int{1}})

	l.AddTrack(1)

	assert.Equal(t, []int{1, -1, 2}, f.Frame().Clips)
	assert.Equal(t, []int{-1}, blank.Frame().Clips)
	assert.Equal(t, []int{0, 2}, fi.Init().InTracks)
	assert.Equal(t, []int{2}, fi.Init().OutTracks)
}

func TestCloseGapsAndResampledCount(t *testing.T) {
	t.Parallel()

	l := event.NewList(fps)

	l.Append(1_000_000, event.BlankFrameBody())
	l.Append(1_040_000, event.BlankFrameBody())
	l.Append(1_080_000, &event.Marker{Type: event.MarkerRecordEnd})
	l.Append(3_000_000, &event.Marker{Type: event.MarkerRecordStart})
	l.Append(3_000_000, event.BlankFrameBody())

	assert.Equal(t, int64(3), l.CountResampledEvents(25))

	l.CloseGaps()

	assert.Equal(t, []int64{0, 40000, 80000}, allTCs(l))
}

func allTCs(l *event.List) []int64 {
	var out []int64
	for e := range l.All() {
		out = append(out, e.TC())
	}

	return out
}

func TestHostTags(t *testing.T) {
	t.Parallel()

	l := event.NewList(fps)
	fi := l.Append(0, &event.FilterInit{HostTag: "3"})

	l.BackupHostTags(0)
	fi.Init().HostTag = "7"
	l.RestoreHostTags(0)

	assert.Equal(t, "3", fi.Init().HostTag)
}
