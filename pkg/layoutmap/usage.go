package layoutmap

import (
	"math"

	"github.com/Sumatoshi-tech/cutfang/pkg/clip"
	"github.com/Sumatoshi-tech/cutfang/pkg/event"
)

// Usage is how far a layout reaches into one clip.
type Usage struct {
	MaxFrame int64
	MaxAudio float64
}

type audioRun struct {
	clip  int
	seek  float64
	vel   float64
	start int64
}

// Scan walks the frames of l and returns the usage of every clip number it
// references. Audio runs still playing at the last frame end there.
func Scan(l *event.List) map[int]Usage {
	out := map[int]Usage{}
	open := map[int]audioRun{}

	closeRun := func(track int, tc int64) {
		run, ok := open[track]
		if !ok {
			return
		}

		delete(open, track)

		end := run.seek + float64(tc-run.start)/event.TicksPerSecond*math.Abs(run.vel)

		u := out[run.clip]
		u.MaxAudio = max(u.MaxAudio, run.seek, end)
		out[run.clip] = u
	}

	var last int64

	for e := l.FirstFrame(); e != nil; e = l.NextFrame(e) {
		f := e.Frame()
		last = e.TC()

		for i, c := range f.Clips {
			if c <= 0 || i >= len(f.Frames) {
				continue
			}

			u := out[c]
			u.MaxFrame = max(u.MaxFrame, f.Frames[i])
			out[c] = u
		}

		for _, a := range f.Audio {
			closeRun(a.Track, e.TC())

			if a.Clip > 0 && a.Velocity != 0 {
				open[a.Track] = audioRun{clip: a.Clip, seek: a.Seek, vel: a.Velocity, start: e.TC()}
			}
		}
	}

	for track := range open {
		closeRun(track, last)
	}

	return out
}

// Update replaces the records of the layout at path with the usage of l.
// Clip numbers clips does not know are ignored.
func (m *Map) Update(path string, l *event.List, clips clip.Source) {
	m.Forget(path)

	for number, u := range Scan(l) {
		c, ok := clips.Clip(number)
		if !ok {
			continue
		}

		m.Record(c, Use{Path: path, MaxFrame: u.MaxFrame, MaxAudio: u.MaxAudio})
	}
}
