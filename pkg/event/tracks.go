package event

import "slices"

// AddTrack inserts an empty video track at index layer, shifting the tracks
// at and above it. Blank frames are left alone.
func (l *List) AddTrack(layer int) {
	if layer < 0 {
		return
	}

	for e := range l.All() {
		switch b := e.Body.(type) {
		case *Frame:
			if b.AllEmpty() && len(b.Clips) <= 1 {
				continue
			}

			if layer <= len(b.Clips) {
				b.Clips = slices.Insert(b.Clips, layer, BlankClip)
				b.Frames = slices.Insert(b.Frames, layer, BlankFrame)
			}

			for i := range b.Audio {
				if b.Audio[i].Track >= layer {
					b.Audio[i].Track++
				}
			}
		case *FilterInit:
			shiftTracks(b.InTracks, layer)
			shiftTracks(b.OutTracks, layer)
		case *Marker:
			shiftTracks(b.Tracks, layer)
		}
	}
}

func shiftTracks(tracks []int, layer int) {
	for i, t := range tracks {
		if t >= layer {
			tracks[i]++
		}
	}
}

// CloseGaps shifts the list to start at 0 and removes the idle time between
// each RECORD_END and the following RECORD_START marker. The markers are
// consumed.
func (l *List) CloseGaps() {
	first := l.First()
	if first == nil {
		return
	}

	offset := first.tc

	var recEnd int64

	for e := range l.All() {
		tc := e.tc - offset
		e.tc = tc

		m := e.Marker()
		if m == nil {
			continue
		}

		switch m.Type {
		case MarkerRecordEnd:
			recEnd = tc

			l.Delete(e)
		case MarkerRecordStart:
			offset += tc - recEnd

			l.Delete(e)
		}
	}
}

// CountResampledEvents returns the number of frames the list would produce
// at fps, summed over the recording stretches delimited by RECORD_END
// markers.
func (l *List) CountResampledEvents(fps float64) int64 {
	var (
		total           int64
		segStart, segTo int64
		open            bool
	)

	flush := func() {
		if open {
			total += 1 + int64(float64(segTo-segStart)/TicksPerSecond*fps)
		}

		open = false
	}

	for e := range l.All() {
		switch {
		case e.Is(KindFrame):
			if !open {
				segStart = e.tc
				open = true
			}

			segTo = e.tc
		case e.Is(KindMarker) && e.Marker().Type == MarkerRecordEnd:
			flush()
		}
	}

	flush()

	return total
}
