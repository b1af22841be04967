package event

import "slices"

// AudioFor returns the audio state change for track, if the frame has one.
func (f *Frame) AudioFor(track int) (AudioSeek, bool) {
	for _, a := range f.Audio {
		if a.Track == track {
			return a, true
		}
	}

	return AudioSeek{}, false
}

// AudioClip returns the audio clip switched on track at e, -1 when the frame
// has no entry for track, or -2 when e carries no audio at all.
func AudioClip(e *Event, track int) int {
	f := e.Frame()
	if f == nil || !f.HasAudio() {
		return -2
	}

	a, ok := f.AudioFor(track)
	if !ok {
		return -1
	}

	return a.Clip
}

// AudioVelocity returns the playback velocity set on track at e. A velocity
// of 0 switches the track off; frames without an entry report 1.
func AudioVelocity(e *Event, track int) float64 {
	f := e.Frame()
	if f == nil {
		return 1
	}

	a, ok := f.AudioFor(track)
	if !ok {
		return 1
	}

	return a.Velocity
}

// AudioSeekTime returns the seek time in seconds set on track at e.
func AudioSeekTime(e *Event, track int) float64 {
	f := e.Frame()
	if f == nil {
		return 0
	}

	a, _ := f.AudioFor(track)

	return a.Seek
}

// InsertAudioAt sets the audio state of track on the FRAME e. Velocity is
// rounded to four decimal places. A clip below 1 removes the track entry.
func InsertAudioAt(e *Event, track, clip int, seek, vel float64) {
	f := e.Frame()
	if f == nil {
		return
	}

	vel = roundVelocity(vel)

	for i, a := range f.Audio {
		if a.Track != track {
			continue
		}

		if clip <= 0 && len(f.Audio) > 1 {
			f.Audio = slices.Delete(f.Audio, i, i+1)

			return
		}

		f.Audio[i] = AudioSeek{Track: track, Clip: clip, Seek: seek, Velocity: vel}

		return
	}

	if clip <= 0 && f.HasAudio() {
		return
	}

	f.Audio = append(f.Audio, AudioSeek{Track: track, Clip: clip, Seek: seek, Velocity: vel})
}

// RemoveAudioForTrack drops the audio entry of track from e.
func RemoveAudioForTrack(e *Event, track int) {
	f := e.Frame()
	if f == nil {
		return
	}

	f.Audio = slices.DeleteFunc(f.Audio, func(a AudioSeek) bool { return a.Track == track })
	if len(f.Audio) == 0 {
		f.Audio = nil
	}
}

// AudioBlockStart returns the frame at or before tc that switches audio on
// for track. With seekBack the search continues into earlier frames.
func (l *List) AudioBlockStart(track int, tc int64, seekBack bool) *Event {
	e := l.FrameAtOrBefore(tc, nil)

	for e != nil {
		if AudioClip(e, track) > 0 && AudioVelocity(e, track) != 0 {
			return e
		}

		if !seekBack {
			return nil
		}

		e = l.PrevFrame(e)
	}

	return nil
}

// AudioBlockEnd returns the first frame after start that switches track off.
func (l *List) AudioBlockEnd(track int, start *Event) *Event {
	for e := l.NextFrame(start); e != nil; e = l.NextFrame(e) {
		if f := e.Frame(); f != nil {
			if a, ok := f.AudioFor(track); ok && (a.Clip <= 0 || a.Velocity == 0) {
				return e
			}
		}
	}

	return nil
}
