package multitrack_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/cutfang/pkg/event"
	"github.com/Sumatoshi-tech/cutfang/pkg/multitrack"
	"github.com/Sumatoshi-tech/cutfang/pkg/track"
	"github.com/Sumatoshi-tech/cutfang/pkg/undo"
)

func TestInsertBlock_FramesAndSync(t *testing.T) {
	t.Parallel()

	ed := newEditor(t, nil)
	b := insert(t, ed, 0, 1, 5, 2)

	assert.Equal(t, 2*frame, b.StartTC())
	assert.Equal(t, 7*frame, b.Limit())
	assert.True(t, b.Ordered)
	require.NoError(t, ed.List().Verify())

	// Leading frames are blank, the block frames carry clip frames 1..5.
	f := ed.List().FirstFrame()
	require.NotNil(t, f)
	assert.Equal(t, int64(0), f.TC())
	assert.Equal(t, event.BlankClip, f.Frame().Clip(0))
	assert.True(t, event.IsBlankFrame(f, false))

	at := ed.List().FrameAt(4*frame, nil, true)
	require.NotNil(t, at)
	assert.Equal(t, silentClip, at.Frame().Clip(0))
	assert.Equal(t, int64(3), at.Frame().FrameNum(0))

	assert.Equal(t, undo.ActionInsertBlock, ed.UndoAction())
	assert.Equal(t, uint64(1), ed.Generation())
}

func TestInsertBlock_Rejects(t *testing.T) {
	t.Parallel()

	ed := newEditor(t, nil)
	insert(t, ed, 0, 1, 5, 0)

	_, err := ed.InsertBlock(0, 99, 1, 2, 0)
	require.ErrorIs(t, err, multitrack.ErrUnknownClip)

	_, err = ed.InsertBlock(0, silentClip, 5, 2, 10*frame)
	require.ErrorIs(t, err, multitrack.ErrBadRange)

	_, err = ed.InsertBlock(0, silentClip, 1, 200, 10*frame)
	require.ErrorIs(t, err, multitrack.ErrBadRange)

	_, err = ed.InsertBlock(4, silentClip, 1, 2, 0)
	require.ErrorIs(t, err, multitrack.ErrNoTrack)

	_, err = ed.InsertBlock(0, silentClip, 1, 3, 3*frame)
	require.ErrorIs(t, err, multitrack.ErrOverlap)

	assert.Equal(t, 1, ed.History().Len())
	assert.Equal(t, [][2]int64{{0, 5}}, spans(video(t, ed, 0)))
}

func TestInsertBlock_Overwrite(t *testing.T) {
	t.Parallel()

	ed := newEditor(t, func(o *multitrack.Options) { o.InsertMode = multitrack.InsertOverwrite })
	insert(t, ed, 0, 1, 10, 0)
	insert(t, ed, 0, 50, 52, 3)

	assert.Equal(t, [][2]int64{{0, 3}, {3, 6}, {6, 10}}, spans(video(t, ed, 0)))
	require.NoError(t, ed.List().Verify())

	at := ed.List().FrameAt(4*frame, nil, true)
	require.NotNil(t, at)
	assert.Equal(t, int64(51), at.Frame().FrameNum(0))

	// The tail keeps the frames it had before.
	at = ed.List().FrameAt(6*frame, nil, true)
	require.NotNil(t, at)
	assert.Equal(t, int64(7), at.Frame().FrameNum(0))
}

func TestSplitBlock_SurvivesReload(t *testing.T) {
	t.Parallel()

	ed := newEditor(t, nil)
	b := insert(t, ed, 0, 1, 10, 0)
	uid := b.UID

	tail, err := ed.SplitBlock(b, 4*frame, false)
	require.NoError(t, err)
	assert.NotEqual(t, uid, tail.UID)
	assert.Equal(t, uid, video(t, ed, 0).First().UID)
	assert.Equal(t, [][2]int64{{0, 4}, {4, 10}}, spans(video(t, ed, 0)))

	// A contiguous second block on the same clip.
	_, err = ed.SplitBlock(tail, 7*frame, false)
	require.NoError(t, err)

	again := reload(t, ed, save(t, ed))
	assert.Equal(t, [][2]int64{{0, 4}, {4, 7}, {7, 10}}, spans(video(t, again, 0)))

	_, err = ed.SplitBlock(video(t, ed, 0).First(), 20*frame, false)
	require.ErrorIs(t, err, track.ErrBadSplit)
}

func TestMoveBlock_OverlapLeavesTimelineUntouched(t *testing.T) {
	t.Parallel()

	ed := newEditor(t, nil)
	first := insert(t, ed, 0, 1, 5, 0)
	insert(t, ed, 0, 6, 10, 5)

	before := save(t, ed)
	depth := ed.History().Len()

	_, err := ed.MoveBlock(first, 3*frame, 0)
	require.ErrorIs(t, err, multitrack.ErrOverlap)

	assert.Equal(t, before, save(t, ed))
	assert.Equal(t, depth, ed.History().Len())
	assert.Equal(t, [][2]int64{{0, 5}, {5, 10}}, spans(video(t, ed, 0)))
}

func TestMoveBlock_AcrossTracksKeepsIdentity(t *testing.T) {
	t.Parallel()

	ed := newEditor(t, nil)
	b := insert(t, ed, 0, 1, 5, 0)
	uid := b.UID

	moved, err := ed.MoveBlock(b, 8*frame, 1)
	require.NoError(t, err)
	assert.Equal(t, uid, moved.UID)
	assert.Equal(t, 1, moved.Track().Index)
	assert.Empty(t, spans(video(t, ed, 0)))
	assert.Equal(t, [][2]int64{{8, 13}}, spans(video(t, ed, 1)))
	require.NoError(t, ed.List().Verify())

	at := ed.List().FrameAt(8*frame, nil, true)
	require.NotNil(t, at)
	assert.Equal(t, int64(1), at.Frame().FrameNum(1))
	assert.Equal(t, undo.ActionMoveBlock, ed.UndoAction())
}

func TestMoveBlock_CarriesEffects(t *testing.T) {
	t.Parallel()

	ed := newEditor(t, nil)
	b := insert(t, ed, 0, 1, 5, 0)

	id, err := ed.ApplyEffect("blur", []int{0}, 0, 4*frame)
	require.NoError(t, err)

	_, err = ed.MoveBlock(b, 10*frame, 1)
	require.NoError(t, err)

	fi := ed.List().Get(id)
	require.NotNil(t, fi)
	assert.Equal(t, 10*frame, fi.TC())
	assert.Equal(t, []int{1}, fi.Init().InTracks)
	require.NoError(t, ed.List().Verify())
}

func TestMoveBlock_LeftGravity(t *testing.T) {
	t.Parallel()

	ed := newEditor(t, func(o *multitrack.Options) { o.Gravity = multitrack.GravityLeft })
	insert(t, ed, 0, 1, 3, 0)
	b := insert(t, ed, 0, 20, 22, 5)

	moved, err := ed.MoveBlock(b, 9*frame, 0)
	require.NoError(t, err)
	assert.Equal(t, 3*frame, moved.StartTC())
	assert.Equal(t, [][2]int64{{0, 3}, {3, 6}}, spans(video(t, ed, 0)))
	require.NoError(t, ed.List().Verify())
}

func TestDeleteBlock_TrimsTail(t *testing.T) {
	t.Parallel()

	ed := newEditor(t, nil)
	insert(t, ed, 0, 1, 3, 0)
	b := insert(t, ed, 0, 10, 14, 6)

	require.NoError(t, ed.DeleteBlock(b))
	assert.Equal(t, [][2]int64{{0, 3}}, spans(video(t, ed, 0)))
	assert.Equal(t, 2*frame, ed.List().LastFrame().TC())
	require.NoError(t, ed.List().Verify())

	require.ErrorIs(t, ed.DeleteBlock(&track.Block{}), multitrack.ErrNoBlock)
}

func TestSelectBlock(t *testing.T) {
	t.Parallel()

	ed := newEditor(t, nil)
	b := insert(t, ed, 0, 1, 3, 0)
	depth := ed.History().Len()

	require.NoError(t, ed.SelectBlock(b))
	assert.True(t, b.Selected())
	require.NoError(t, ed.SelectBlock(b))
	assert.False(t, b.Selected())
	assert.Equal(t, depth, ed.History().Len())
}

func TestPerTrackAudio_FollowsVideo(t *testing.T) {
	t.Parallel()

	ed := newEditor(t, func(o *multitrack.Options) {
		o.PerTrackAudio = true
		o.BackingAudioTracks = 0
	})

	b, err := ed.InsertBlock(0, soundClip, 1, 5, 0)
	require.NoError(t, err)

	paired := video(t, ed, 0).PairedAudio
	require.NotNil(t, paired)
	assert.Equal(t, [][2]int64{{0, 5}}, spans(paired))
	assert.NotZero(t, ed.AudioMixer())
	require.NoError(t, ed.List().Verify())

	tail, err := ed.SplitBlock(b, 2*frame, false)
	require.NoError(t, err)
	assert.Equal(t, [][2]int64{{0, 2}, {2, 5}}, spans(paired))

	seek, ok := paired.Last().StartEvent().Frame().AudioFor(0)
	require.True(t, ok)
	assert.InDelta(t, 0.08, seek.Seek, 1e-6)

	require.NoError(t, ed.DeleteBlock(tail))
	assert.Equal(t, [][2]int64{{0, 2}}, spans(video(t, ed, 0)))
	assert.Equal(t, [][2]int64{{0, 2}}, spans(paired))
	require.NoError(t, ed.List().Verify())

	require.NoError(t, ed.DeleteBlock(video(t, ed, 0).First()))
	assert.Empty(t, spans(paired))
	assert.Zero(t, ed.AudioMixer())
	assert.Nil(t, ed.List().LastFrame())
}

func TestInsertAudioBlock_Backing(t *testing.T) {
	t.Parallel()

	ed := newEditor(t, nil)

	b, err := ed.InsertAudioBlock(-1, soundClip, 0.5, 10*frame, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(500000), b.OffsetStart)

	backing, err := ed.AudioTrack(-1)
	require.NoError(t, err)
	assert.Equal(t, [][2]int64{{0, 10}}, spans(backing))

	mixer := ed.List().Get(ed.AudioMixer())
	require.NotNil(t, mixer)
	assert.True(t, mixer.Is(event.KindFilterInit))
	assert.Equal(t, []int{-1}, mixer.Init().InTracks)

	_, err = ed.InsertAudioBlock(-1, soundClip, 0, 2*frame, 5*frame)
	require.ErrorIs(t, err, multitrack.ErrOverlap)

	_, err = ed.InsertAudioBlock(-1, silentClip, 0, 2*frame, 20*frame)
	require.ErrorIs(t, err, multitrack.ErrNoAudio)

	require.NoError(t, ed.DeleteBlock(b))
	assert.Empty(t, spans(backing))
	assert.Zero(t, ed.AudioMixer())
	assert.Nil(t, ed.List().LastFrame())
	assert.Equal(t, undo.ActionDeleteAudioBlock, ed.UndoAction())
}
