package multitrack

import (
	"fmt"
	"slices"

	"github.com/Sumatoshi-tech/cutfang/pkg/clip"
	"github.com/Sumatoshi-tech/cutfang/pkg/event"
	"github.com/Sumatoshi-tech/cutfang/pkg/fx"
	"github.com/Sumatoshi-tech/cutfang/pkg/track"
	"github.com/Sumatoshi-tech/cutfang/pkg/undo"
)

// cell is what one video frame of a block shows.
type cell struct {
	clip  int
	frame int64
}

// sound is the audio a block plays from its start.
type sound struct {
	clip     int
	seek     float64
	velocity float64
}

// overlaps reports whether [start,limit) meets a block of t other than skip.
func overlaps(t *track.Track, start, limit int64, skip *track.Block) bool {
	for _, b := range t.Blocks() {
		if b != skip && b.StartTC() < limit && start < b.Limit() {
			return true
		}
	}

	return false
}

// clipCells lists the timeline frames showing source frames first..last of
// c, resampled to the timeline rate. ordered is false when the source does
// not advance one frame per frame.
func (e *Editor) clipCells(c *clip.Clip, first, last int64) (cells []cell, ordered bool) {
	fps := c.FPS
	if fps <= 0 {
		fps = e.list.FPS
	}

	n := event.CountResampledFrames(last-first+1, fps, e.list.FPS)
	cells = make([]cell, n)
	ordered = true

	for k := range n {
		f := min(first+int64(float64(k)*fps/e.list.FPS), last)
		cells[k] = cell{clip: c.Number, frame: f}

		if k > 0 && f != cells[k-1].frame+1 {
			ordered = false
		}
	}

	return cells, ordered
}

// blockFrames returns the frames of a video block.
func (e *Editor) blockFrames(b *track.Block) []*event.Event {
	var out []*event.Event

	for ev := b.StartEvent(); ev != nil; ev = e.list.NextFrame(ev) {
		out = append(out, ev)

		if ev.ID() == b.End {
			break
		}
	}

	return out
}

func (e *Editor) cellsOf(b *track.Block) []cell {
	idx := b.Track().Index
	frames := e.blockFrames(b)
	out := make([]cell, len(frames))

	for i, ev := range frames {
		f := ev.Frame()
		out[i] = cell{clip: f.Clip(idx), frame: f.FrameNum(idx)}
	}

	return out
}

func (e *Editor) soundOf(b *track.Block) sound {
	idx := b.Track().Index
	start := b.StartEvent()

	return sound{
		clip:     event.AudioClip(start, idx),
		seek:     event.AudioSeekTime(start, idx),
		velocity: event.AudioVelocity(start, idx),
	}
}

// attachedAudio returns the per-track audio block starting with v.
func (e *Editor) attachedAudio(v *track.Block) *track.Block {
	t := v.Track()
	if t.Kind != track.KindVideo || t.PairedAudio == nil {
		return nil
	}

	if ab := t.PairedAudio.BlockAt(v.StartTC()); ab != nil && ab.StartTC() == v.StartTC() {
		return ab
	}

	return nil
}

// pairedBlockAt returns the block covering tc on the track paired with b's.
func pairedBlockAt(b *track.Block, tc int64) *track.Block {
	t := b.Track()

	other := t.PairedAudio
	if t.Kind == track.KindAudio {
		other = t.PairedVideo
	}

	if other == nil {
		return nil
	}

	return other.BlockAt(tc)
}

// placeVideo writes cells on t from tc and puts b on t over them.
func (e *Editor) placeVideo(t *track.Track, b *track.Block, tc int64, cells []cell) error {
	if len(cells) == 0 {
		return fmt.Errorf("%w: empty block", ErrBadRange)
	}

	if tc > 0 {
		_, err := e.list.AddBlankFramesUpTo(e.frameTC(tc, -1))
		if err != nil {
			return fmt.Errorf("pad to %d: %w", tc, err)
		}
	}

	var (
		hint        event.ID
		first, last *event.Event
	)

	for k, c := range cells {
		ev, err := e.list.SetTrack(e.frameTC(tc, k), t.Index, c.clip, c.frame, &hint)
		if err != nil {
			return fmt.Errorf("place frame %d: %w", k, err)
		}

		if first == nil {
			first = ev
		}

		last = ev
	}

	b.Start, b.End = first.ID(), last.ID()
	t.Insert(b)

	return nil
}

// placeAudio switches s on for t at tc and off at limit, and puts b on t.
func (e *Editor) placeAudio(t *track.Track, b *track.Block, s sound, tc, limit int64) error {
	_, err := e.list.AddBlankFramesUpTo(limit)
	if err != nil {
		return fmt.Errorf("pad to %d: %w", limit, err)
	}

	start := e.list.FrameAt(tc, nil, true)
	end := e.list.FrameAt(limit, nil, true)

	if start == nil || end == nil {
		return fmt.Errorf("%w: audio %d..%d", ErrNoFrame, tc, limit)
	}

	event.InsertAudioAt(start, t.Index, s.clip, s.seek, s.velocity)

	if _, ok := end.Frame().AudioFor(t.Index); !ok {
		event.InsertAudioAt(end, t.Index, s.clip, 0, 0)
	}

	b.Start, b.End = start.ID(), end.ID()
	t.Insert(b)

	return nil
}

func (e *Editor) deleteVideo(b *track.Block) {
	t := b.Track()
	frames := e.blockFrames(b)

	_ = t.Remove(b)

	for _, ev := range frames {
		e.list.RemoveFrameFromEvent(ev, t.Index)
	}
}

// deleteAudio removes the state changes of b, keeping the switch-off of a
// block ending where b starts and the start of a block beginning where b
// ends.
func (e *Editor) deleteAudio(b *track.Block) {
	t := b.Track()
	start, end := b.StartEvent(), b.EndEvent()
	prev, next := b.Prev(), b.Next()

	_ = t.Remove(b)

	if prev != nil && prev.End == b.Start {
		event.InsertAudioAt(start, t.Index, event.AudioClip(prev.StartEvent(), t.Index), 0, 0)
	} else {
		event.RemoveAudioForTrack(start, t.Index)
	}

	if end != nil && end != start && (next == nil || next.Start != b.End) {
		event.RemoveAudioForTrack(end, t.Index)
	}
}

// deleteBlock removes b, the audio attached to it, and repairs the effects
// it fed.
func (e *Editor) deleteBlock(b *track.Block) {
	t := b.Track()
	region := fx.Region{Tracks: []int{t.Index}, Start: b.StartTC(), End: b.EndTC()}

	if t.Kind == track.KindVideo {
		ab := e.attachedAudio(b)

		e.deleteVideo(b)

		if ab != nil {
			e.deleteAudio(ab)
		}
	} else {
		e.deleteAudio(b)
	}

	fx.UpdateFilterEvents(e.list, e.filters, region, nil)
}

// clearRegion empties [start,limit) on t, splitting blocks that straddle
// its edges.
func (e *Editor) clearRegion(t *track.Track, start, limit int64) error {
	for _, b := range t.Blocks() {
		if b.Limit() <= start || b.StartTC() >= limit {
			continue
		}

		victim := b

		if victim.StartTC() < start {
			tail, err := e.split(victim, e.list.FrameAt(start, nil, true), false)
			if err != nil {
				return err
			}

			victim = tail
		}

		if victim.Limit() > limit {
			_, err := e.split(victim, e.list.FrameAt(limit, nil, true), false)
			if err != nil {
				return err
			}
		}

		if t.Kind == track.KindVideo {
			e.deleteVideo(victim)
		} else {
			e.deleteAudio(victim)
		}

		fx.UpdateFilterEvents(e.list, e.filters, fx.Region{Tracks: []int{t.Index}, Start: start, End: limit}, nil)
	}

	return nil
}

// InsertBlock lays source frames first..last of a clip on a video track
// from tc. With per-track audio the clip's audio goes on the paired track.
func (e *Editor) InsertBlock(trackIndex, clipNumber int, first, last, tc int64) (*track.Block, error) {
	t, err := e.VideoTrack(trackIndex)
	if err != nil {
		return nil, err
	}

	c, ok := e.clips.Clip(clipNumber)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownClip, clipNumber)
	}

	if first < 1 || last < first || (c.Frames > 0 && last > c.Frames) {
		return nil, fmt.Errorf("%w: frames %d..%d of clip %d", ErrBadRange, first, last, clipNumber)
	}

	tc = event.Quantise(tc, e.list.FPS)
	if tc < 0 {
		return nil, fmt.Errorf("%w: timecode %d", ErrBadRange, tc)
	}

	cells, ordered := e.clipCells(c, first, last)
	limit := e.frameTC(tc, len(cells))
	withAudio := c.HasAudio() && t.PairedAudio != nil

	if e.opts.InsertMode != InsertOverwrite {
		if overlaps(t, tc, limit, nil) || (withAudio && overlaps(t.PairedAudio, tc, limit, nil)) {
			return nil, fmt.Errorf("%w: %s at %d", ErrOverlap, t.Name, tc)
		}
	}

	b := &track.Block{Ordered: ordered, OffsetStart: sourceTime(first, c.FPS)}

	err = e.edit(undo.ActionInsertBlock, func() error {
		if e.opts.InsertMode == InsertOverwrite {
			if err := e.clearRegion(t, tc, limit); err != nil {
				return err
			}
		}

		if err := e.placeVideo(t, b, tc, cells); err != nil {
			return err
		}

		if withAudio {
			if e.opts.InsertMode == InsertOverwrite {
				if err := e.clearRegion(t.PairedAudio, tc, limit); err != nil {
					return err
				}
			}

			s := sound{clip: c.Number, seek: float64(b.OffsetStart) / event.TicksPerSecond, velocity: 1}
			if err := e.placeAudio(t.PairedAudio, &track.Block{Ordered: true, OffsetStart: b.OffsetStart}, s, tc, limit); err != nil {
				return err
			}
		}

		return e.settle()
	})
	if err != nil {
		return nil, err
	}

	return b, nil
}

// sourceTime converts a 1-based source frame to clip time in ticks.
func sourceTime(frame int64, fps float64) int64 {
	if fps <= 0 || frame < 1 {
		return 0
	}

	return int64(float64(frame-1) * event.TicksPerSecond / fps)
}

// InsertAudioBlock plays a clip's audio from seek seconds on an audio track
// for dur ticks starting at tc.
func (e *Editor) InsertAudioBlock(trackIndex, clipNumber int, seek float64, dur, tc int64) (*track.Block, error) {
	t, err := e.AudioTrack(trackIndex)
	if err != nil {
		return nil, err
	}

	c, ok := e.clips.Clip(clipNumber)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownClip, clipNumber)
	}

	if !c.HasAudio() {
		return nil, fmt.Errorf("%w: %d", ErrNoAudio, clipNumber)
	}

	tc = event.Quantise(tc, e.list.FPS)
	limit := event.Quantise(tc+dur, e.list.FPS)

	if tc < 0 || limit <= tc || seek < 0 || seek >= c.AudioSeconds {
		return nil, fmt.Errorf("%w: audio %d+%d from %.3fs", ErrBadRange, tc, dur, seek)
	}

	if e.opts.InsertMode != InsertOverwrite && overlaps(t, tc, limit, nil) {
		return nil, fmt.Errorf("%w: %s at %d", ErrOverlap, t.Name, tc)
	}

	b := &track.Block{Ordered: true, OffsetStart: int64(seek * event.TicksPerSecond)}

	err = e.edit(undo.ActionInsertAudioBlock, func() error {
		if e.opts.InsertMode == InsertOverwrite {
			if err := e.clearRegion(t, tc, limit); err != nil {
				return err
			}
		}

		if err := e.placeAudio(t, b, sound{clip: c.Number, seek: seek, velocity: 1}, tc, limit); err != nil {
			return err
		}

		return e.settle()
	})
	if err != nil {
		return nil, err
	}

	return b, nil
}

// DeleteBlock removes a block. Deleting a video block also removes the
// audio attached to it.
func (e *Editor) DeleteBlock(b *track.Block) error {
	err := e.owns(b)
	if err != nil {
		return err
	}

	action := undo.ActionDeleteBlock
	if b.Track().Kind == track.KindAudio {
		action = undo.ActionDeleteAudioBlock
	}

	return e.edit(action, func() error {
		e.deleteBlock(b)

		return e.settle()
	})
}

// SplitBlock cuts b at tc and returns the block holding the rest. The block
// on the paired track is cut too unless noRecurse is set.
func (e *Editor) SplitBlock(b *track.Block, tc int64, noRecurse bool) (*track.Block, error) {
	err := e.owns(b)
	if err != nil {
		return nil, err
	}

	tc = event.Quantise(tc, e.list.FPS)

	at := e.list.FrameAt(tc, nil, true)
	if at == nil || tc <= b.StartTC() || tc >= b.Limit() {
		return nil, fmt.Errorf("%w: %s at %d", track.ErrBadSplit, b, tc)
	}

	var tail *track.Block

	err = e.edit(undo.ActionSplit, func() error {
		var splitErr error

		tail, splitErr = e.split(b, at, !noRecurse)

		return splitErr
	})
	if err != nil {
		return nil, err
	}

	return tail, nil
}

func (e *Editor) split(b *track.Block, at *event.Event, recurse bool) (*track.Block, error) {
	t := b.Track()

	var pair *track.Block
	if recurse {
		pair = pairedBlockAt(b, at.TC())
	}

	var s sound
	if t.Kind == track.KindAudio {
		s = e.soundOf(b)
	}

	startTC := b.StartTC()

	tail, err := t.Split(b, at)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", t.Name, err)
	}

	if t.Kind == track.KindAudio {
		elapsed := float64(at.TC()-startTC) / event.TicksPerSecond
		event.InsertAudioAt(at, t.Index, s.clip, s.seek+elapsed*s.velocity, s.velocity)
	}

	if pair != nil && pair.StartTC() < at.TC() && pair.Contains(at.TC()) {
		_, err = e.split(pair, at, false)
		if err != nil {
			return nil, err
		}
	}

	return tail, nil
}

// SelectBlock flips the selection state of b.
func (e *Editor) SelectBlock(b *track.Block) error {
	err := e.owns(b)
	if err != nil {
		return err
	}

	b.Toggle()

	return nil
}

// MoveBlock moves b to start at tc on track number to; audio blocks take an
// audio track number. In normal insert mode an occupied destination is
// refused and nothing changes. After the move gravity may slide the block
// further.
func (e *Editor) MoveBlock(b *track.Block, tc int64, to int) (*track.Block, error) {
	err := e.owns(b)
	if err != nil {
		return nil, err
	}

	src := b.Track()

	var dst *track.Track
	if src.Kind == track.KindVideo {
		dst, err = e.VideoTrack(to)
	} else {
		dst, err = e.AudioTrack(to)
	}

	if err != nil {
		return nil, err
	}

	tc = event.Quantise(tc, e.list.FPS)
	if tc < 0 {
		return nil, fmt.Errorf("%w: timecode %d", ErrBadRange, tc)
	}

	limit := tc + b.Duration()

	if e.opts.InsertMode != InsertOverwrite {
		if overlaps(dst, tc, limit, b) {
			return nil, fmt.Errorf("%w: %s at %d", ErrOverlap, dst.Name, tc)
		}

		if ab := e.attachedAudio(b); ab != nil && dst.PairedAudio != nil &&
			overlaps(dst.PairedAudio, tc, tc+ab.Duration(), ab) {
			return nil, fmt.Errorf("%w: %s at %d", ErrOverlap, dst.PairedAudio.Name, tc)
		}
	}

	action := undo.ActionMoveBlock
	if src.Kind == track.KindAudio {
		action = undo.ActionMoveAudioBlock
	}

	err = e.edit(action, func() error {
		if err := e.relocate(b, tc, dst); err != nil {
			return err
		}

		if err := e.applyGravity(b); err != nil {
			return err
		}

		return e.settle()
	})
	if err != nil {
		return nil, err
	}

	return b, nil
}

// relocate moves b to tc on dst with everything attached to it. It keeps
// b's identity and takes no snapshot.
func (e *Editor) relocate(b *track.Block, tc int64, dst *track.Track) error {
	src := b.Track()
	oldStart, oldEnd := b.StartTC(), b.EndTC()

	if src.Kind == track.KindAudio {
		s, dur := e.soundOf(b), b.Duration()

		e.deleteAudio(b)

		if e.opts.InsertMode == InsertOverwrite {
			if err := e.clearRegion(dst, tc, tc+dur); err != nil {
				return err
			}
		}

		if err := e.placeAudio(dst, b, s, tc, tc+dur); err != nil {
			return err
		}

		e.followEffects(src.Index, dst.Index, oldStart, oldEnd, tc)

		return nil
	}

	cells := e.cellsOf(b)

	ab := e.attachedAudio(b)

	var (
		s     sound
		abDur int64
	)

	if ab != nil {
		s, abDur = e.soundOf(ab), ab.Duration()
		e.deleteAudio(ab)
	}

	e.deleteVideo(b)

	limit := e.frameTC(tc, len(cells))

	if e.opts.InsertMode == InsertOverwrite {
		if err := e.clearRegion(dst, tc, limit); err != nil {
			return err
		}
	}

	if err := e.placeVideo(dst, b, tc, cells); err != nil {
		return err
	}

	if ab != nil && dst.PairedAudio != nil {
		if e.opts.InsertMode == InsertOverwrite {
			if err := e.clearRegion(dst.PairedAudio, tc, tc+abDur); err != nil {
				return err
			}
		}

		if err := e.placeAudio(dst.PairedAudio, ab, s, tc, tc+abDur); err != nil {
			return err
		}
	}

	e.followEffects(src.Index, dst.Index, oldStart, oldEnd, tc)

	return nil
}

// followEffects repairs the effects of a moved region; with MoveEffects the
// ones fed only by the moved track go along.
func (e *Editor) followEffects(from, to int, oldStart, oldEnd, tc int64) {
	region := fx.Region{Tracks: []int{from}, Start: oldStart, End: oldEnd}

	var moveTo *fx.Relocation
	if e.opts.MoveEffects {
		moveTo = &fx.Relocation{Offset: tc - oldStart, From: from, To: to}
	}

	upd := fx.UpdateFilterEvents(e.list, e.filters, region, moveTo)
	if upd.Relocated+upd.Moved+upd.Removed > 0 {
		e.logger.Debug("effects followed block",
			"relocated", upd.Relocated, "moved", upd.Moved, "removed", upd.Removed)
	}
}

// applyGravity slides b against its neighbour in the gravity direction.
func (e *Editor) applyGravity(b *track.Block) error {
	t := b.Track()

	switch e.opts.Gravity {
	case GravityLeft:
		target := int64(0)
		if p := t.BlockBefore(b.StartTC(), false); p != nil {
			target = p.Limit()
		}

		if target < b.StartTC() {
			return e.relocate(b, target, t)
		}
	case GravityRight:
		if n := t.BlockAfter(b.StartTC(), false); n != nil {
			if target := n.StartTC() - b.Duration(); target > b.StartTC() {
				return e.relocate(b, target, t)
			}
		}
	case GravityNormal:
	}

	return nil
}

// blocksOf returns the blocks of t in time order, or reversed.
func blocksOf(t *track.Track, reverse bool) []*track.Block {
	blocks := t.Blocks()
	if reverse {
		slices.Reverse(blocks)
	}

	return blocks
}
