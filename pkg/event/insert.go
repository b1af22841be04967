package event

import "slices"

// Within one timecode events are kept in this order: MARKERs, FILTER_INITs
// and their PARAM_CHANGEs, the governing FILTER_MAP, the FRAME, then
// FILTER_DEINITs and a closing FILTER_MAP when no frame follows.

// firstAt returns the first event sharing at's timecode.
func (l *List) firstAt(at *Event) *Event {
	e := at
	for p := l.Prev(e); p != nil && p.tc == at.tc; p = l.Prev(e) {
		e = p
	}

	return e
}

// InsertInitAt links a FILTER_INIT at the timecode of the frame at, ahead of
// every other event there except markers.
func (l *List) InsertInitAt(at *Event, body *FilterInit) *Event {
	e := l.New(at.tc, body)
	l.placeInit(e, at)

	return e
}

func (l *List) placeInit(e, at *Event) {
	first := l.firstAt(at)
	for first != nil && first.tc == at.tc && first.Is(KindMarker) {
		first = l.Next(first)
	}

	l.linkBefore(e, first)
}

// MoveInit relinks a detached FILTER_INIT at the timecode of the frame at.
func (l *List) MoveInit(e, at *Event) {
	l.Detach(e)
	e.tc = at.tc
	l.placeInit(e, at)
}

// InsertDeinitAt links a FILTER_DEINIT directly after the frame at, or
// before the first later event when at is not a frame.
func (l *List) InsertDeinitAt(at *Event, body *FilterDeinit) *Event {
	e := l.New(at.tc, body)
	l.placeDeinit(e, at)

	return e
}

func (l *List) placeDeinit(e, at *Event) {
	for x := at; x != nil; x = l.Next(x) {
		if x.Is(KindFrame) && x.tc == e.tc {
			l.linkAfter(e, x)

			return
		}

		if x.tc > e.tc {
			l.linkBefore(e, x)

			return
		}
	}

	l.linkAfter(e, l.Last())
}

// MoveDeinit relinks a detached FILTER_DEINIT after the frame at.
func (l *List) MoveDeinit(e, at *Event) {
	l.Detach(e)
	e.tc = at.tc
	l.placeDeinit(e, at)
}

// InsertMapAt places a FILTER_MAP at the timecode of frame at. With before
// set it goes directly before the frame, otherwise after the frame and any
// deinits at that timecode. An existing map in that slot is reused and its
// init list replaced; the resulting map event is returned.
func (l *List) InsertMapAt(at *Event, inits []ID, before bool) *Event {
	body := &FilterMap{Inits: slices.Clone(inits)}

	if before {
		for x := l.Prev(at); x != nil && x.tc == at.tc && !x.Is(KindFrame); x = l.Prev(x) {
			if x.Is(KindFilterMap) {
				x.Body = body
				if l.Next(x) != at {
					l.Detach(x)
					l.linkBefore(x, at)
				}

				return x
			}
		}

		return l.InsertBefore(at, at.tc, body)
	}

	x := l.Next(at)
	for x != nil && x.tc == at.tc && !x.Is(KindFrame) {
		if x.Is(KindFilterMap) {
			x.Body = body

			return x
		}

		x = l.Next(x)
	}

	return l.InsertBefore(x, at.tc, body)
}

// InsertParamChangeAt links a PARAM_CHANGE at the timecode of frame at,
// after the inits there and before the governing map and the frame.
func (l *List) InsertParamChangeAt(at *Event, body *ParamChange) *Event {
	e := l.New(at.tc, body)
	l.placeParam(e, at)

	return e
}

func (l *List) placeParam(e, at *Event) {
	anchor := at
	if !anchor.Is(KindFrame) {
		// Place before the next frame or the first later event.
		for anchor != nil && !anchor.Is(KindFrame) && anchor.tc <= e.tc {
			anchor = l.Next(anchor)
		}
	}

	for p := l.Prev(anchor); anchor != nil && p != nil && p.tc == e.tc && p.Is(KindFilterMap); p = l.Prev(anchor) {
		anchor = p
	}

	if anchor == nil {
		l.linkAfter(e, l.Last())

		return
	}

	l.linkBefore(e, anchor)
}

// MoveParamChange relinks a detached PARAM_CHANGE at the timecode of at.
func (l *List) MoveParamChange(e, at *Event) {
	l.Detach(e)
	e.tc = at.tc
	l.placeParam(e, at)
}

// MoveAfter relinks e directly after anchor at anchor's timecode.
func (l *List) MoveAfter(e, anchor *Event) {
	l.Detach(e)
	e.tc = anchor.tc
	l.linkAfter(e, anchor)
}

// InsertMarkerAt adds a marker at the timecode of at. Block markers merge
// the track into an existing marker of the same type at that timecode.
func (l *List) InsertMarkerAt(at *Event, kind MarkerKind, track int) *Event {
	first := l.firstAt(at)

	if kind == MarkerBlockStart || kind == MarkerBlockUnordered {
		for x := first; x != nil && x.tc == at.tc && x.Is(KindMarker); x = l.Next(x) {
			if m := x.Marker(); m.Type == kind {
				if !slices.Contains(m.Tracks, track) {
					m.Tracks = append(m.Tracks, track)
				}

				return x
			}
		}

		return l.InsertBefore(first, at.tc, &Marker{Type: kind, Tracks: []int{track}})
	}

	return l.InsertBefore(first, at.tc, &Marker{Type: kind})
}

// StripMarkers deletes every MARKER event and returns how many were removed.
func (l *List) StripMarkers() int {
	n := 0

	for e := range l.All() {
		if e.Is(KindMarker) {
			l.Delete(e)

			n++
		}
	}

	return n
}

// MarkerNames reports whether a BLOCK_START marker at tc names track.
func (l *List) MarkerNames(at *Event, kind MarkerKind, track int) bool {
	for x := l.firstAt(at); x != nil && x.tc == at.tc; x = l.Next(x) {
		if m := x.Marker(); m != nil && m.Type == kind && slices.Contains(m.Tracks, track) {
			return true
		}
	}

	return false
}

// IsInitParamChange reports whether pc is a seed change of init: both share
// a timecode and no FRAME lies between them.
func (l *List) IsInitParamChange(fi, pc *Event) bool {
	if fi == nil || pc == nil || fi.tc != pc.tc {
		return false
	}

	for e := fi; e != nil && e != pc; e = l.Next(e) {
		if e.Is(KindFrame) {
			return false
		}
	}

	return true
}
