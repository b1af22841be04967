package event

import (
	"fmt"
	"slices"
)

// Empty slot values.
const (
	BlankClip  = -1
	BlankFrame = 0
)

// BlankFrameBody returns the body of an all-empty frame.
func BlankFrameBody() *Frame {
	return &Frame{Clips: []int{BlankClip}, Frames: []int64{BlankFrame}}
}

// start returns a scan origin at or before tc: the hinted event when it is
// still linked, otherwise the head, rewound to the first event at its
// timecode so that a forward scan sees every event at tc.
func (l *List) start(tc int64, hint *ID) *Event {
	var e *Event

	if hint != nil {
		if h := l.Get(*hint); h != nil && h.linked {
			e = h
		}
	}

	if e == nil {
		return l.First()
	}

	for e != nil && e.tc > tc {
		e = l.Prev(e)
	}

	if e == nil {
		return l.First()
	}

	for p := l.Prev(e); p != nil && p.tc >= e.tc; p = l.Prev(e) {
		e = p
	}

	return e
}

func normaliseTracks(clips []int, frames []int64) ([]int, []int64, error) {
	if len(clips) != len(frames) {
		return nil, nil, fmt.Errorf("%w: %d clips for %d frames", ErrMalformed, len(clips), len(frames))
	}

	if len(clips) == 0 {
		return []int{BlankClip}, []int64{BlankFrame}, nil
	}

	return slices.Clone(clips), slices.Clone(frames), nil
}

// InsertFrameAt places a FRAME at the quantised tc. An existing FRAME at
// that timecode has its track arrays replaced; otherwise the new frame goes
// after every event at tc except FILTER_DEINITs. hint, when non-nil, is the
// resume point of the scan and is updated to the returned frame.
func (l *List) InsertFrameAt(tc int64, clips []int, frames []int64, hint *ID) (*Event, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: nil list", ErrMalformed)
	}

	clips, frames, err := normaliseTracks(clips, frames)
	if err != nil {
		return nil, err
	}

	tc = Quantise(tc, l.FPS)

	e := l.start(tc, hint)
	for e != nil && (e.tc < tc || (e.tc == tc && !e.Is(KindFilterDeinit))) {
		if e.tc == tc {
			if f := e.Frame(); f != nil {
				f.Clips = clips
				f.Frames = frames

				setHint(hint, e)

				return e, nil
			}
		}

		e = l.Next(e)
	}

	ne := l.InsertBefore(e, tc, &Frame{Clips: clips, Frames: frames})
	setHint(hint, ne)

	return ne, nil
}

func setHint(hint *ID, e *Event) {
	if hint != nil && e != nil {
		*hint = e.id
	}
}

// SetTrack places clip/frame on one track of the frame at tc, creating the
// frame if needed and keeping the other tracks.
func (l *List) SetTrack(tc int64, track, clip int, frame int64, hint *ID) (*Event, error) {
	if track < 0 {
		return nil, fmt.Errorf("%w: track %d", ErrMalformed, track)
	}

	tc = Quantise(tc, l.FPS)

	var (
		clips  []int
		frames []int64
	)

	if e := l.FrameAt(tc, hint, true); e != nil {
		f := e.Frame()
		clips, frames = slices.Clone(f.Clips), slices.Clone(f.Frames)
	}

	for len(clips) <= track {
		clips = append(clips, BlankClip)
		frames = append(frames, BlankFrame)
	}

	clips[track] = clip
	frames[track] = frame
	clips, frames = trimTracks(clips, frames)

	return l.InsertFrameAt(tc, clips, frames, hint)
}

// trimTracks drops trailing empty slots, keeping at least one.
func trimTracks(clips []int, frames []int64) ([]int, []int64) {
	n := len(clips)
	for n > 1 && (clips[n-1] < 1 || frames[n-1] < 1) {
		n--
	}

	return clips[:n], frames[:n]
}

// RemoveFrameFromEvent empties one track of a FRAME. When no track is left
// the event becomes a blank frame, or is deleted if it is the last event and
// carries no audio; the surviving event (or nil) is returned. Out-of-range
// tracks are ignored.
func (l *List) RemoveFrameFromEvent(e *Event, track int) *Event {
	f := e.Frame()
	if f == nil {
		return e
	}

	if track < 0 || track >= len(f.Clips) {
		return e
	}

	f.Clips[track] = BlankClip
	f.Frames[track] = BlankFrame

	if !f.AllEmpty() {
		f.Clips, f.Frames = trimTracks(f.Clips, f.Frames)

		return e
	}

	if e == l.Last() && !f.HasAudio() {
		l.Delete(e)

		return nil
	}

	f.Clips, f.Frames = []int{BlankClip}, []int64{BlankFrame}

	return e
}

// AllEmpty reports whether no track holds a frame.
func (f *Frame) AllEmpty() bool {
	for i := range f.Clips {
		if f.HasTrack(i) {
			return false
		}
	}

	return true
}

// InsertBlankFrameAt places a blank FRAME at tc.
func (l *List) InsertBlankFrameAt(tc int64, hint *ID) (*Event, error) {
	return l.InsertFrameAt(tc, []int{BlankClip}, []int64{BlankFrame}, hint)
}

// AddBlankFramesUpTo fills every frame slot after the last FRAME up to and
// including the quantised tc with blank frames. It returns the number added.
func (l *List) AddBlankFramesUpTo(tc int64) (int, error) {
	if l == nil || l.FPS <= 0 {
		return 0, fmt.Errorf("%w: list without frame rate", ErrMalformed)
	}

	tc = Quantise(tc, l.FPS)

	next := int64(0)
	if last := l.LastFrame(); last != nil {
		next = FrameIndex(last.tc, l.FPS) + 1
	}

	var hint ID

	added := 0

	for n := next; FrameTC(n, l.FPS) <= tc; n++ {
		at := FrameTC(n, l.FPS)
		if l.HasFrameAt(at, &hint) {
			continue
		}

		_, err := l.InsertBlankFrameAt(at, &hint)
		if err != nil {
			return added, err
		}

		added++
	}

	return added, nil
}

// FillBlankFrames inserts a blank FRAME at every frame slot between the
// first and last FRAME that has none. It returns the timecodes filled.
func (l *List) FillBlankFrames() []int64 {
	first, last := l.FirstFrame(), l.LastFrame()
	if first == nil || l.FPS <= 0 {
		return nil
	}

	var (
		filled []int64
		hint   ID
	)

	end := FrameIndex(last.tc, l.FPS)
	for n := FrameIndex(first.tc, l.FPS); n <= end; n++ {
		at := FrameTC(n, l.FPS)
		if l.HasFrameAt(at, &hint) {
			continue
		}

		_, err := l.InsertBlankFrameAt(at, &hint)
		if err == nil {
			filled = append(filled, at)
		}
	}

	return filled
}

// IsBlankFrame reports whether e is a FRAME with no real track content.
// With countAudio, a frame that switches audio on is not blank.
func IsBlankFrame(e *Event, countAudio bool) bool {
	f := e.Frame()
	if f == nil {
		return false
	}

	if countAudio {
		for _, a := range f.Audio {
			if a.Clip > 0 {
				return false
			}
		}
	}

	return f.AllEmpty()
}

// RemoveEndBlankFrames deletes trailing blank frames. Non-frame events are
// skipped, except FILTER_INITs: when removeInit is non-nil it is called to
// remove the instance, otherwise trimming stops at the init.
func (l *List) RemoveEndBlankFrames(removeInit func(*Event)) int {
	removed := 0

	for e := l.Last(); e != nil; {
		prev := l.Prev(e)

		switch {
		case e.Is(KindFilterInit):
			if removeInit == nil {
				return removed
			}

			removeInit(e)

			if e.linked {
				return removed
			}

			// The callback may delete neighbours; rescan from the tail.
			prev = l.Last()
		case e.Is(KindFrame):
			if !IsBlankFrame(e, true) {
				return removed
			}

			l.Delete(e)

			removed++
		}

		e = prev
	}

	return removed
}

// FrameAt returns the FRAME at the quantised tc. When exact is false the
// first frame after tc is returned if none sits at tc, or the last frame
// when tc is past the end.
func (l *List) FrameAt(tc int64, hint *ID, exact bool) *Event {
	var lastFrame *Event

	for e := l.start(tc, hint); e != nil; e = l.Next(e) {
		if !e.Is(KindFrame) {
			continue
		}

		if e.tc == tc || (!exact && e.tc > tc) {
			setHint(hint, e)

			return e
		}

		if e.tc > tc {
			return nil
		}

		lastFrame = e
	}

	if exact {
		return nil
	}

	return lastFrame
}

// FrameAtOrBefore returns the last FRAME with timecode <= tc.
func (l *List) FrameAtOrBefore(tc int64, hint *ID) *Event {
	var found *Event

	for e := l.start(tc, hint); e != nil && e.tc <= tc; e = l.Next(e) {
		if e.Is(KindFrame) {
			found = e
		}
	}

	if found == nil {
		// The scan origin may already be past an earlier frame.
		s := l.start(tc, hint)
		if s != nil && s.tc <= tc {
			found = l.PrevFrame(s)
		}
	}

	setHint(hint, found)

	return found
}

// HasFrameAt reports whether a FRAME exists at exactly tc.
func (l *List) HasFrameAt(tc int64, hint *ID) bool {
	for e := l.start(tc, hint); e != nil && e.tc <= tc; e = l.Next(e) {
		if e.tc == tc && e.Is(KindFrame) {
			setHint(hint, e)

			return true
		}
	}

	return false
}

// HasFrameForTrack reports whether e is a FRAME with content on track.
func HasFrameForTrack(e *Event, track int) bool {
	f := e.Frame()

	return f != nil && f.HasTrack(track)
}

// MaxTracks returns the widest frame of the list.
func (l *List) MaxTracks() int {
	n := 0

	for e := range l.All() {
		if f := e.Frame(); f != nil && len(f.Clips) > n {
			n = len(f.Clips)
		}
	}

	return n
}
