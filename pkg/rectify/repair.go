package rectify

import (
	"slices"

	"github.com/Sumatoshi-tech/cutfang/pkg/event"
	"github.com/Sumatoshi-tech/cutfang/pkg/fx"
)

// repair runs the passes that need the final frame skeleton.
func (r *run) repair() {
	l := r.out

	for _, tc := range l.FillBlankFrames() {
		r.log(KindBlankFilled, 0, tc)
	}

	r.closeInstances()

	for _, fi := range fx.Instances(l) {
		if r.placeInit(fi) {
			r.placeParams(fi)
			r.placeDeinit(fi)
		}
	}

	for _, fi := range fx.Instances(l) {
		if n := fx.RebuildParamChains(l, fi); n > 0 {
			r.log(KindParamDuplicate, int64(n), fi.TC())
		}
	}

	r.closeAudio()

	if n := fx.NormaliseFilterMaps(l, r.ctx.Filters); n > 0 {
		r.log(KindMapsRebuilt, int64(n), l.EndTC())
	}

	if n := fx.RemoveEndBlankFrames(l, r.ctx.Filters, true); n > 0 {
		r.log(KindTrimmed, int64(n), l.EndTC())
	}
}

// closeInstances gives every instance still open at the end a deinit after
// the last frame. Instances starting after the last frame are deleted.
func (r *run) closeInstances() {
	l := r.out
	last := l.LastFrame()

	for _, fi := range fx.Instances(l) {
		if l.Get(fi.Init().Deinit).Is(event.KindFilterDeinit) {
			continue
		}

		if last == nil || last.TC() < fi.TC() {
			r.log(KindInstanceDeleted, int64(fi.ID()), fi.TC())
			fx.RemoveFilter(l, r.ctx.Filters, fi)

			continue
		}

		d := l.InsertDeinitAt(last, &event.FilterDeinit{Init: fi.ID()})
		fi.Init().Deinit = d.ID()
		r.log(KindInstanceClosed, int64(fi.ID()), last.TC())
	}
}

// placeInit moves fi in front of the first frame it applies to. It reports
// false when the instance had to be deleted.
func (r *run) placeInit(fi *event.Event) bool {
	l := r.out
	deinit := l.Get(fi.Init().Deinit)

	target := l.NextFrame(fi)
	if target != nil && target.TC() == fi.TC() {
		return true
	}

	if target == nil || target.TC() > deinit.TC() || l.Before(deinit, target) {
		r.log(KindInstanceDeleted, int64(fi.ID()), fi.TC())
		fx.RemoveFilter(l, r.ctx.Filters, fi)

		return false
	}

	r.log(KindInitMoved, int64(fi.ID()), fi.TC())

	err := fx.MoveFilterInit(l, r.ctx.Filters, fi, target, false)
	if err != nil {
		r.log(KindInstanceDeleted, int64(fi.ID()), fi.TC())
		fx.RemoveFilter(l, r.ctx.Filters, fi)

		return false
	}

	return true
}

// placeParams moves each change of fi in front of the frame it applies to,
// deleting changes that fall outside the instance.
func (r *run) placeParams(fi *event.Event) {
	l := r.out
	deinit := l.Get(fi.Init().Deinit)

	var changes []*event.Event

	for e := range l.All() {
		if p := e.Param(); p != nil && p.Init == fi.ID() {
			changes = append(changes, e)
		}
	}

	for _, pc := range changes {
		if l.IsInitParamChange(fi, pc) {
			continue
		}

		target := l.NextFrame(pc)

		switch {
		case l.Before(pc, fi) || l.Before(deinit, pc) || target == nil || target.TC() > deinit.TC():
			r.log(KindParamDeleted, int64(pc.ID()), pc.TC())
			fx.DeleteParamChange(l, fi, pc)
		case target.TC() != pc.TC():
			r.log(KindParamMoved, int64(pc.ID()), pc.TC())
			l.MoveParamChange(pc, target)
		}
	}
}

// placeDeinit moves the deinit of fi behind the last frame it applies to.
func (r *run) placeDeinit(fi *event.Event) {
	l := r.out
	deinit := l.Get(fi.Init().Deinit)

	target := l.PrevFrame(deinit)
	if target != nil && target.TC() == deinit.TC() {
		return
	}

	if target == nil || target.TC() < fi.TC() || l.Before(target, fi) {
		r.log(KindInstanceDeleted, int64(fi.ID()), fi.TC())
		fx.RemoveFilter(l, r.ctx.Filters, fi)

		return
	}

	r.log(KindDeinitMoved, int64(fi.ID()), deinit.TC())

	err := fx.MoveFilterDeinit(l, r.ctx.Filters, fi, target, false)
	if err != nil {
		r.log(KindInstanceDeleted, int64(fi.ID()), fi.TC())
		fx.RemoveFilter(l, r.ctx.Filters, fi)
	}
}

// closeAudio switches off every audio track still playing after the last
// frame.
func (r *run) closeAudio() {
	l := r.out

	type opened struct {
		clip  int
		frame *event.Event
	}

	open := make(map[int]opened)

	for e := range l.All() {
		f := e.Frame()
		if f == nil {
			continue
		}

		for _, a := range f.Audio {
			if a.Clip > 0 && a.Velocity != 0 {
				open[a.Track] = opened{clip: a.Clip, frame: e}
			} else {
				delete(open, a.Track)
			}
		}
	}

	if len(open) == 0 {
		return
	}

	tracks := make([]int, 0, len(open))
	for t := range open {
		tracks = append(tracks, t)
	}

	slices.Sort(tracks)

	last := l.LastFrame()

	for _, t := range tracks {
		o := open[t]

		target := last
		if o.frame == last {
			var err error

			target, err = l.InsertBlankFrameAt(last.TC()+event.FrameDuration(l.FPS), nil)
			if err != nil {
				continue
			}

			last = target
		}

		event.InsertAudioAt(target, t, o.clip, 0, 0)
		r.log(KindAudioClosed, int64(t), target.TC())
	}
}
