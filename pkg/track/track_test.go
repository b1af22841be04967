package track_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/cutfang/pkg/event"
	"github.com/Sumatoshi-tech/cutfang/pkg/track"
)

const frame = int64(40000)

// run lays clip frames first.. on track 0 starting at frame index at.
func run(t *testing.T, l *event.List, at, n int, clip int, first int64) {
	t.Helper()

	var hint event.ID

	for i := range n {
		_, err := l.SetTrack(int64(at+i)*frame, 0, clip, first+int64(i), &hint)
		require.NoError(t, err)
	}
}

func spans(tr *track.Track) [][2]int64 {
	var out [][2]int64

	for _, b := range tr.Blocks() {
		out = append(out, [2]int64{b.StartTC() / frame, b.Limit() / frame})
	}

	return out
}

func TestScan_Blocks(t *testing.T) {
	t.Parallel()

	l := event.NewList(25)
	run(t, l, 0, 3, 1, 1)
	run(t, l, 3, 2, 2, 1)
	_, err := l.InsertBlankFrameAt(5*frame, nil)
	require.NoError(t, err)
	run(t, l, 6, 2, 1, 10)

	v := track.New(l, 0, track.KindVideo)
	track.Scan(l, []*track.Track{v}, func(int) float64 { return 25 })

	require.NoError(t, v.Check())
	assert.Equal(t, [][2]int64{{0, 3}, {3, 5}, {6, 8}}, spans(v))

	third := v.Last()
	assert.Equal(t, 9*frame, third.OffsetStart)
	assert.True(t, third.Ordered)

	assert.Equal(t, v.First(), v.BlockAt(2*frame))
	assert.Nil(t, v.BlockAt(5*frame))
	assert.Equal(t, third, v.BlockAt(7*frame))

	second := v.First().Next()
	assert.Equal(t, second, v.BlockBefore(5*frame, true))
	assert.Equal(t, second, v.BlockBefore(6*frame, false))
	assert.Equal(t, third, v.BlockAfter(5*frame, false))
	assert.Equal(t, third, v.BlockAfter(4*frame, false))
	assert.Equal(t, second, v.BlockAfter(4*frame, true))
	assert.Nil(t, v.BlockAfter(7*frame, false))
	assert.Equal(t, v.First(), second.Prev())
}

func TestScan_Audio(t *testing.T) {
	t.Parallel()

	l := event.NewList(25)
	run(t, l, 0, 6, 1, 1)

	f0 := l.FrameAt(0, nil, true)
	f2 := l.FrameAt(2*frame, nil, true)
	f4 := l.FrameAt(4*frame, nil, true)

	event.InsertAudioAt(f0, -1, 3, 0, 1)
	event.InsertAudioAt(f2, -1, 3, 0, 0)
	event.InsertAudioAt(f4, -1, 5, 1.5, 1)

	a := track.New(l, -1, track.KindAudio)
	assert.Equal(t, "backing audio 1", a.Name)

	track.Scan(l, []*track.Track{a}, nil)

	assert.Equal(t, [][2]int64{{0, 2}, {4, 5}}, spans(a))
	assert.Equal(t, int64(1_500_000), a.Last().OffsetStart)
}

func TestTrack_SplitKeepsIdentity(t *testing.T) {
	t.Parallel()

	l := event.NewList(25)
	run(t, l, 0, 10, 1, 1)

	v := track.New(l, 0, track.KindVideo)

	// Without a marker the run is one block.
	track.Scan(l, []*track.Track{v}, nil)
	require.Equal(t, 1, v.Len())

	l.InsertMarkerAt(l.FrameAt(5*frame, nil, true), event.MarkerBlockStart, 0)
	track.Scan(l, []*track.Track{v}, nil)
	require.Equal(t, [][2]int64{{0, 5}, {5, 10}}, spans(v))

	second := v.Last()
	uid := second.UID

	tail, err := v.Split(second, l.FrameAt(7*frame, nil, true))
	require.NoError(t, err)
	assert.Equal(t, uid, second.UID)
	assert.NotEqual(t, uid, tail.UID)
	assert.Equal(t, [][2]int64{{0, 5}, {5, 7}, {7, 10}}, spans(v))
	assert.Equal(t, 2*frame+second.OffsetStart, tail.OffsetStart)

	other := track.New(l, 0, track.KindVideo)
	first := other.AddBlockStartPoint(l.FrameAt(0, nil, true), 0, true)
	other.AddBlockEndPoint(l.FrameAt(4*frame, nil, true))

	// The marker keeps [0,5) and [5,..) apart.
	assert.NotSame(t, first, other.AddBlockStartPoint(l.FrameAt(5*frame, nil, true), 0, true))

	// A fresh start at frame 7 does not fold back into [0,5).
	again := track.New(l, 0, track.KindVideo)
	first = again.AddBlockStartPoint(l.FrameAt(0, nil, true), 0, true)
	again.AddBlockEndPoint(l.FrameAt(4*frame, nil, true))
	assert.NotSame(t, first, again.AddBlockStartPoint(l.FrameAt(7*frame, nil, true), 0, true))

	// Marking and rescanning reproduces the split.
	l.StripMarkers()
	assert.Equal(t, 2, track.Mark([]*track.Track{v}))
	track.Scan(l, []*track.Track{v}, nil)
	assert.Equal(t, [][2]int64{{0, 5}, {5, 7}, {7, 10}}, spans(v))
}

func TestTrack_ContinuesContiguousRun(t *testing.T) {
	t.Parallel()

	l := event.NewList(25)
	run(t, l, 0, 4, 1, 1)

	v := track.New(l, 0, track.KindVideo)
	b := v.AddBlockStartPoint(l.FrameAt(0, nil, true), 0, true)
	v.AddBlockEndPoint(l.FrameAt(frame, nil, true))

	assert.Same(t, b, v.AddBlockStartPoint(l.FrameAt(2*frame, nil, true), 0, true))
	assert.Equal(t, 1, v.Len())

	// An unordered start never continues.
	v.AddBlockEndPoint(l.FrameAt(2*frame, nil, true))
	assert.NotSame(t, b, v.AddBlockStartPoint(l.FrameAt(3*frame, nil, true), 0, false))
}

func TestTrack_SplitErrors(t *testing.T) {
	t.Parallel()

	l := event.NewList(25)
	run(t, l, 0, 4, 1, 1)

	v := track.New(l, 0, track.KindVideo)
	track.Scan(l, []*track.Track{v}, nil)

	b := v.First()

	_, err := v.Split(b, l.FrameAt(0, nil, true))
	require.ErrorIs(t, err, track.ErrBadSplit)

	_, err = track.New(l, 1, track.KindVideo).Split(b, l.FrameAt(frame, nil, true))
	require.ErrorIs(t, err, track.ErrNotOnTrack)

	require.NoError(t, v.Remove(b))
	require.ErrorIs(t, v.Remove(b), track.ErrNotOnTrack)
	assert.Nil(t, b.Track())
}

func TestBlock_Toggle(t *testing.T) {
	t.Parallel()

	b := &track.Block{}
	b.Toggle()
	assert.True(t, b.Selected())
	b.Toggle()
	assert.False(t, b.Selected())
}

func TestPair(t *testing.T) {
	t.Parallel()

	l := event.NewList(25)
	v := track.New(l, 0, track.KindVideo)
	a := track.New(l, 0, track.KindAudio)

	track.Pair(v, a)
	assert.Same(t, a, v.PairedAudio)
	assert.Same(t, v, a.PairedVideo)
	assert.Same(t, l, v.List())
}
