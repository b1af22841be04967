package rectify

import (
	"fmt"
	"slices"

	"github.com/Sumatoshi-tech/cutfang/pkg/event"
	"github.com/Sumatoshi-tech/cutfang/pkg/filter"
)

// forward copies every acceptable event of src into r.out in one pass.
func (r *run) forward(src *event.List) error {
	r.table = newTable(r.ctx.maxInstances())

	for e := range src.All() {
		if e.TC() < r.lastTC {
			r.log(KindOutOfOrder, int64(e.ID()), e.TC())

			continue
		}

		var (
			tc  = e.TC()
			ok  bool
			err error
		)

		switch b := e.Body.(type) {
		case *event.Frame:
			tc, ok = r.frame(e, b)
		case *event.FilterInit:
			ok, err = r.filterInit(e, b)
		case *event.FilterDeinit:
			ok = r.filterDeinit(e, b)
		case *event.FilterMap:
			ok = r.filterMap(e, b)
		case *event.ParamChange:
			ok = r.paramChange(e, b)
		case *event.Marker:
			ok = r.marker(e, b)
		}

		if err != nil {
			return err
		}

		if ok {
			r.lastTC = tc
		}
	}

	return nil
}

// adopt links body at the tail of the output under the saved identifier.
func (r *run) adopt(e *event.Event, tc int64, body event.Body) *event.Event {
	ne, err := r.out.NewWithID(e.ID(), tc, body)
	if err != nil {
		return r.out.Append(tc, body)
	}

	_ = r.out.LinkBefore(ne, nil)

	return ne
}

func (r *run) frame(e *event.Event, b *event.Frame) (int64, bool) {
	tc := e.TC()

	if q := event.Quantise(tc, r.out.FPS); q != tc {
		if q < r.lastTC || (r.hasFrame && q == r.lastFrame) {
			r.log(KindMalformedFrame, int64(e.ID()), tc)

			return tc, false
		}

		r.log(KindMalformedFrame, int64(e.ID()), tc)
		tc = q
	}

	if r.hasFrame && tc == r.lastFrame {
		r.log(KindDuplicateFrame, int64(e.ID()), tc)

		return tc, false
	}

	clips, frames := slices.Clone(b.Clips), slices.Clone(b.Frames)

	if len(clips) == 0 || len(clips) != len(frames) {
		r.log(KindMalformedFrame, int64(len(clips)), tc)

		if len(clips) == 0 {
			clips, frames = []int{event.BlankClip}, []int64{event.BlankFrame}
		}

		for len(frames) < len(clips) {
			frames = append(frames, event.BlankFrame)
		}

		frames = frames[:len(clips)]
	}

	for i := range clips {
		clips[i], frames[i] = r.track(clips[i], frames[i], tc)
	}

	r.adopt(e, tc, &event.Frame{Clips: clips, Frames: frames, Audio: r.audio(b.Audio, tc)})

	r.lastFrame = tc
	r.hasFrame = true

	return tc, true
}

// track renumbers one track entry and checks it against the clip registry.
func (r *run) track(saved int, frame int64, tc int64) (int, int64) {
	if saved < 1 || (r.ctx.Clips == nil && r.ctx.Renumber == nil) {
		return saved, frame
	}

	current := r.ctx.Renumber.Translate(saved)
	if current < 1 {
		r.log(KindMissingClip, int64(saved), tc)
		r.missingClip(saved)

		return event.BlankClip, event.BlankFrame
	}

	if r.ctx.Clips == nil {
		return current, frame
	}

	c, ok := r.ctx.Clips.Clip(current)
	if !ok {
		r.log(KindMissingClip, int64(saved), tc)
		r.missingClip(saved)

		return event.BlankClip, event.BlankFrame
	}

	if fps, known := r.ctx.Renumber.SavedFPS(saved); known && fps != c.FPS {
		if n := event.CountResampledFrames(frame, fps, c.FPS); n != frame {
			r.log(KindResampled, frame, tc)
			frame = n
		}
	}

	if frame < 1 || (c.Frames > 0 && frame > c.Frames) {
		r.log(KindMissingFrame, frame, tc)
		r.res.MissingFrames = true

		return event.BlankClip, event.BlankFrame
	}

	return current, frame
}

// audio renumbers the audio entries of a frame, dropping those whose clip
// is gone, and notes which audio configuration they need.
func (r *run) audio(in []event.AudioSeek, tc int64) []event.AudioSeek {
	var out []event.AudioSeek

	for _, a := range in {
		r.needsAudioTrack(a.Track)

		if a.Clip > 0 && (r.ctx.Clips != nil || r.ctx.Renumber != nil) {
			current := r.ctx.Renumber.Translate(a.Clip)

			missing := current < 1
			if !missing && r.ctx.Clips != nil {
				c, ok := r.ctx.Clips.Clip(current)
				missing = !ok || !c.HasAudio()
			}

			if missing {
				r.log(KindMissingAudio, int64(a.Clip), tc)
				r.missingClip(a.Clip)

				continue
			}

			a.Clip = current
		}

		out = append(out, a)
	}

	return out
}

func (r *run) needsAudioTrack(track int) {
	switch {
	case track < 0 && -track > r.ctx.BackingAudioTracks:
		r.res.NeedsBackingAudio = true
	case track >= 0 && !r.ctx.PerTrackAudio:
		r.res.NeedsPerTrackAudio = true
	}
}

func (r *run) filterInit(e *event.Event, b *event.FilterInit) (bool, error) {
	f, ok := r.ctx.Filters.Lookup(b.Filter)
	if !ok {
		r.log(KindUnknownFilter, int64(e.ID()), e.TC())

		if !slices.Contains(r.res.UnknownFilters, b.Filter) {
			r.res.UnknownFilters = append(r.res.UnknownFilters, b.Filter)
		}

		return false, nil
	}

	if !f.CountsValid(b.InCounts) {
		r.log(KindBadCounts, int64(e.ID()), e.TC())

		return false, nil
	}

	for _, t := range b.InTracks {
		if t < 0 || f.IsAudio() {
			r.needsAudioTrack(t)
		}
	}

	body := &event.FilterInit{
		Filter:    b.Filter,
		InTracks:  slices.Clone(b.InTracks),
		OutTracks: slices.Clone(b.OutTracks),
		InCounts:  slices.Clone(b.InCounts),
		InParams:  make([]event.ID, len(f.Params)),
		HostTag:   b.HostTag,
	}

	s := &slot{saved: e.ID(), filter: f, seen: make([]bool, len(f.Params))}

	err := r.table.alloc(s)
	if err != nil {
		return false, fmt.Errorf("rectify init at %d: %w", e.TC(), err)
	}

	s.init = r.adopt(e, e.TC(), body)

	return true, nil
}

func (r *run) filterDeinit(e *event.Event, b *event.FilterDeinit) bool {
	s, ok := r.table.lookup(b.Init)
	if !ok {
		r.log(KindOrphanDeinit, int64(b.Init), e.TC())

		return false
	}

	d := r.adopt(e, e.TC(), &event.FilterDeinit{Init: s.init.ID()})
	s.init.Init().Deinit = d.ID()
	r.table.release(b.Init)

	return true
}

func (r *run) filterMap(e *event.Event, b *event.FilterMap) bool {
	inits := make([]event.ID, 0, len(b.Inits))

	for _, id := range b.Inits {
		s, ok := r.table.lookup(id)
		if !ok || slices.Contains(inits, s.init.ID()) {
			r.log(KindMapEntry, int64(id), e.TC())

			continue
		}

		inits = append(inits, s.init.ID())
	}

	r.adopt(e, e.TC(), &event.FilterMap{Inits: inits})

	return true
}

func (r *run) paramChange(e *event.Event, b *event.ParamChange) bool {
	s, ok := r.table.lookup(b.Init)
	if !ok {
		r.log(KindOrphanParam, int64(b.Init), e.TC())

		return false
	}

	tmpl, ok := s.filter.Param(b.Index)
	if !ok {
		r.log(KindParamIndex, int64(b.Index), e.TC())

		return false
	}

	if !tmpl.SeedMatches(b.Value) {
		r.log(KindParamSeed, int64(b.Index), e.TC())

		return false
	}

	pc := r.adopt(e, e.TC(), &event.ParamChange{
		Init:   s.init.ID(),
		Index:  b.Index,
		Value:  b.Value.Clone(),
		Ignore: slices.Clone(b.Ignore),
	})

	if !r.reinitAllowed(s, tmpl, b.Index, pc) {
		r.out.Delete(pc)
		r.log(KindParamReinit, int64(b.Index), e.TC())

		return false
	}

	s.seen[b.Index] = true

	return true
}

// reinitAllowed reports whether pc may change a reinit parameter: only the
// first change, sitting with the init, may.
func (r *run) reinitAllowed(s *slot, tmpl filter.Param, index int, pc *event.Event) bool {
	if !tmpl.Reinit {
		return true
	}

	return !s.seen[index] && r.out.IsInitParamChange(s.init, pc)
}

func (r *run) marker(e *event.Event, b *event.Marker) bool {
	if !b.Type.Valid() || (b.Type == event.MarkerBlockStart && b.Tracks == nil) {
		r.log(KindBadMarker, int64(b.Type), e.TC())

		return false
	}

	r.adopt(e, e.TC(), &event.Marker{Type: b.Type, Tracks: slices.Clone(b.Tracks)})

	return true
}
