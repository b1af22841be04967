package multitrack

import (
	"fmt"
	"math"

	"github.com/Sumatoshi-tech/cutfang/pkg/event"
	"github.com/Sumatoshi-tech/cutfang/pkg/track"
	"github.com/Sumatoshi-tech/cutfang/pkg/undo"
)

func (e *Editor) resolveTracks(indices []int) ([]*track.Track, error) {
	out := make([]*track.Track, 0, len(indices))

	for _, i := range indices {
		t, err := e.trackFor(i)
		if err != nil {
			return nil, err
		}

		out = append(out, t)
	}

	return out, nil
}

// RemoveGaps closes every gap between start and end on the given tracks.
// Blocks slide left, or right under right gravity, until they touch. A
// non-positive end means the end of the timeline.
func (e *Editor) RemoveGaps(tracks []int, start, end int64) error {
	ts, err := e.resolveTracks(tracks)
	if err != nil {
		return err
	}

	if end <= 0 {
		end = math.MaxInt64
	}

	if start < 0 || end <= start {
		return fmt.Errorf("%w: gaps %d..%d", ErrBadRange, start, end)
	}

	return e.edit(undo.ActionRemoveGaps, func() error {
		for _, t := range ts {
			var closeErr error
			if e.opts.Gravity == GravityRight {
				closeErr = e.closeGapsRight(t, start, end)
			} else {
				closeErr = e.closeGapsLeft(t, start, end)
			}

			if closeErr != nil {
				return closeErr
			}
		}

		return e.settle()
	})
}

// closeGapsLeft slides one block at a time onto its predecessor, or onto
// start, until no block moves. Every move goes strictly left, so it ends.
func (e *Editor) closeGapsLeft(t *track.Track, start, end int64) error {
	for {
		moved := false

		for _, b := range blocksOf(t, false) {
			s := b.StartTC()
			if s < start || s >= end {
				continue
			}

			target := start
			if p := b.Prev(); p != nil && p.Limit() > target {
				target = p.Limit()
			}

			if target < s {
				if err := e.relocate(b, target, t); err != nil {
					return err
				}

				moved = true

				break
			}
		}

		if !moved {
			return nil
		}
	}
}

// closeGapsRight is the mirror of closeGapsLeft. Without a finite end the
// last block stays where it is.
func (e *Editor) closeGapsRight(t *track.Track, start, end int64) error {
	for {
		moved := false

		for _, b := range blocksOf(t, true) {
			if b.StartTC() < start || b.Limit() > end {
				continue
			}

			bound := end
			if n := b.Next(); n != nil && n.StartTC() < bound {
				bound = n.StartTC()
			}

			if bound == math.MaxInt64 {
				continue
			}

			if target := bound - b.Duration(); target > b.StartTC() {
				if err := e.relocate(b, target, t); err != nil {
					return err
				}

				moved = true

				break
			}
		}

		if !moved {
			return nil
		}
	}
}

// RemoveFirstGaps closes the gap before the first block of each track,
// moving the whole track left by the same amount.
func (e *Editor) RemoveFirstGaps(tracks []int) error {
	ts, err := e.resolveTracks(tracks)
	if err != nil {
		return err
	}

	return e.edit(undo.ActionRemoveGaps, func() error {
		for _, t := range ts {
			first := t.First()
			if first == nil || first.StartTC() == 0 {
				continue
			}

			shift := first.StartTC()

			for _, b := range blocksOf(t, false) {
				if err := e.relocate(b, b.StartTC()-shift, t); err != nil {
					return err
				}
			}
		}

		return e.settle()
	})
}

// InsertGap opens dur ticks of empty time at tc on the given tracks. A
// block straddling tc is split; later blocks move right.
func (e *Editor) InsertGap(tracks []int, tc, dur int64) error {
	ts, err := e.resolveTracks(tracks)
	if err != nil {
		return err
	}

	tc = event.Quantise(tc, e.list.FPS)
	dur = event.Quantise(dur, e.list.FPS)

	if tc < 0 || dur <= 0 {
		return fmt.Errorf("%w: gap of %d at %d", ErrBadRange, dur, tc)
	}

	return e.edit(undo.ActionInsertGap, func() error {
		for _, t := range ts {
			if b := t.BlockAt(tc); b != nil && b.StartTC() < tc {
				if _, err := e.split(b, e.list.FrameAt(tc, nil, true), true); err != nil {
					return err
				}
			}

			for _, b := range blocksOf(t, true) {
				if b.StartTC() < tc {
					break
				}

				if err := e.relocate(b, b.StartTC()+dur, t); err != nil {
					return err
				}
			}
		}

		return e.settle()
	})
}
