package track

import (
	"github.com/Sumatoshi-tech/cutfang/pkg/event"
)

// RateFunc returns the frame rate of a clip, or 0 when unknown.
type RateFunc func(clip int) float64

type run struct {
	open  bool
	clip  int
	frame int64
}

// Scan rebuilds the blocks of tracks from the frames of l. Markers left in
// l by Mark decide where contiguous material still starts a new block.
func Scan(l *event.List, tracks []*Track, rate RateFunc) {
	for _, t := range tracks {
		t.Clear()
	}

	state := make([]run, len(tracks))

	var last *event.Event

	for e := range l.All() {
		f := e.Frame()
		if f == nil {
			continue
		}

		for i, t := range tracks {
			if t.Kind == KindAudio {
				t.scanAudio(e, f, &state[i])
			} else {
				t.scanVideo(e, f, &state[i], rate)
			}
		}

		last = e
	}

	if last == nil {
		return
	}

	for i, t := range tracks {
		if t.Kind == KindAudio && state[i].open {
			if b := t.Last(); b != nil && b.Start != last.ID() {
				t.AddBlockEndPoint(last)
			}
		}
	}
}

func (t *Track) scanVideo(e *event.Event, f *event.Frame, s *run, rate RateFunc) {
	if !f.HasTrack(t.Index) {
		s.open = false

		return
	}

	clip, n := f.Clip(t.Index), f.FrameNum(t.Index)
	breaks := t.list.MarkerNames(e, event.MarkerBlockStart, t.Index) ||
		t.list.MarkerNames(e, event.MarkerBlockUnordered, t.Index)

	if s.open && clip == s.clip && !breaks {
		if b := t.Last(); !b.Ordered || n == s.frame+1 {
			t.AddBlockEndPoint(e)

			s.frame = n

			return
		}
	}

	ordered := !t.list.MarkerNames(e, event.MarkerBlockUnordered, t.Index)

	t.AddBlockStartPoint(e, sourceOffset(clip, n, rate, t.list.FPS), ordered)
	t.AddBlockEndPoint(e)

	*s = run{open: true, clip: clip, frame: n}
}

func (t *Track) scanAudio(e *event.Event, f *event.Frame, s *run) {
	a, ok := f.AudioFor(t.Index)
	if !ok {
		return
	}

	if s.open {
		t.AddBlockEndPoint(e)

		s.open = false
	}

	if a.Clip > 0 && a.Velocity != 0 {
		t.AddBlockStartPoint(e, int64(a.Seek*event.TicksPerSecond), true)

		*s = run{open: true, clip: a.Clip}
	}
}

// sourceOffset converts a 1-based source frame to clip time.
func sourceOffset(clip int, frame int64, rate RateFunc, fallback float64) int64 {
	fps := fallback
	if rate != nil {
		if r := rate(clip); r > 0 {
			fps = r
		}
	}

	if fps <= 0 || frame < 1 {
		return 0
	}

	return int64(float64(frame-1) * event.TicksPerSecond / fps)
}

// Mark inserts the markers Scan needs to rebuild the blocks of tracks
// exactly: BLOCK_START where a video block abuts its predecessor and
// BLOCK_UNORDERED where an unordered block starts. It returns the number of
// markers placed. Audio blocks carry their own seek and need none.
func Mark(tracks []*Track) int {
	n := 0

	for _, t := range tracks {
		if t.Kind != KindVideo {
			continue
		}

		for _, b := range t.blocks {
			start := b.StartEvent()
			if start == nil {
				continue
			}

			if !b.Ordered {
				t.list.InsertMarkerAt(start, event.MarkerBlockUnordered, t.Index)

				n++

				continue
			}

			if p := b.Prev(); p != nil && p.Limit() == b.StartTC() {
				t.list.InsertMarkerAt(start, event.MarkerBlockStart, t.Index)

				n++
			}
		}
	}

	return n
}
