package fx

import (
	"fmt"
	"slices"

	"github.com/Sumatoshi-tech/cutfang/pkg/event"
	"github.com/Sumatoshi-tech/cutfang/pkg/filter"
)

// countsFor returns the input repeat counts of a new instance of f reading
// ntracks tracks.
func countsFor(f *filter.Filter, ntracks int) []int {
	if len(f.InChannels) == 1 {
		if _, high := f.InChannels[0].RepeatBounds(); high > 1 {
			return []int{ntracks}
		}
	}

	return f.DefaultCounts()
}

func sum(vals []int) int {
	n := 0
	for _, v := range vals {
		n += v
	}

	return n
}

// AddEffect switches on a new instance of f for the frames start..end. The
// init goes before start with its seed changes, the deinit after end, and
// every map in between lists the instance. It returns the init event.
func AddEffect(l *event.List, reg filter.Source, f *filter.Filter, start, end *event.Event, inTracks, outTracks []int) (*event.Event, error) {
	if !start.Is(event.KindFrame) || !end.Is(event.KindFrame) {
		return nil, fmt.Errorf("add %s: %w", f.Name, ErrNotFrame)
	}

	if end.TC() < start.TC() {
		return nil, fmt.Errorf("add %s %d..%d: %w", f.Name, start.TC(), end.TC(), ErrBadRange)
	}

	counts := countsFor(f, len(inTracks))
	if !f.CountsValid(counts) || sum(counts) != len(inTracks) {
		return nil, fmt.Errorf("add %s with %d inputs: %w", f.Name, len(inTracks), ErrBadTracks)
	}

	body := &event.FilterInit{
		Filter:    f.Hash(),
		InTracks:  slices.Clone(inTracks),
		OutTracks: slices.Clone(outTracks),
		InCounts:  counts,
	}

	fi := l.InsertInitAt(start, body)
	deinit := l.InsertDeinitAt(end, &event.FilterDeinit{Init: fi.ID()})
	body.Deinit = deinit.ID()

	FilterInitAddPChanges(l, f, fi)

	var base []event.ID
	if m := FilterMapBefore(l, reg, l.Prev(start), AnyTrack, nil); m != nil {
		base = m.Map().Inits
	}

	l.InsertMapAt(start, InsertInit(l, reg, base, fi.ID()), true)
	UpdateFilterMaps(l, reg, start, end, fi)
	NormaliseFilterMaps(l, reg)

	return fi, nil
}

// RemoveFilter deletes an instance: its changes, its deinit, the init
// itself and every map mention.
func RemoveFilter(l *event.List, reg filter.Source, fi *event.Event) {
	if !fi.Is(event.KindFilterInit) {
		return
	}

	for _, pc := range paramChanges(l, fi) {
		l.Delete(pc)
	}

	for e := range l.All() {
		if e.Is(event.KindFilterMap) {
			RemoveFromFilterMap(e, fi.ID())
		}
	}

	l.Delete(deinitOf(l, fi))
	l.Delete(fi)
	NormaliseFilterMaps(l, reg)
}

// MoveFilterInit moves the init of an instance to frame at, taking its seed
// changes along. With rescale the other changes are stretched over the new
// span; otherwise changes left before the init are deleted.
func MoveFilterInit(l *event.List, reg filter.Source, fi, at *event.Event, rescale bool) error {
	if !fi.Is(event.KindFilterInit) {
		return fmt.Errorf("move init: %w", ErrNotInit)
	}

	deinit := deinitOf(l, fi)
	if deinit != nil && at.TC() > deinit.TC() {
		return fmt.Errorf("move init to %d past deinit %d: %w", at.TC(), deinit.TC(), ErrBadRange)
	}

	if rescale && deinit != nil {
		RescaleParamChanges(l, fi, at.TC(), deinit.TC())
	}

	seeds := seedChanges(l, fi)

	l.MoveInit(fi, at)

	anchor := fi
	for _, pc := range seeds {
		l.MoveAfter(pc, anchor)
		anchor = pc
	}

	for _, pc := range paramChanges(l, fi) {
		if l.Before(pc, fi) {
			DeleteParamChange(l, fi, pc)
		}
	}

	NormaliseFilterMaps(l, reg)

	return nil
}

// MoveFilterDeinit moves the deinit of an instance after frame at. With
// rescale the changes are stretched over the new span; otherwise changes
// left after the deinit are deleted.
func MoveFilterDeinit(l *event.List, reg filter.Source, fi, at *event.Event, rescale bool) error {
	deinit := deinitOf(l, fi)
	if deinit == nil {
		return fmt.Errorf("move deinit: %w", ErrNoDeinit)
	}

	if at.TC() < fi.TC() {
		return fmt.Errorf("move deinit to %d before init %d: %w", at.TC(), fi.TC(), ErrBadRange)
	}

	if rescale {
		RescaleParamChanges(l, fi, fi.TC(), at.TC())
	}

	l.MoveDeinit(deinit, at)
	DeleteParamChangesAfterDeinit(l, fi)
	NormaliseFilterMaps(l, reg)

	return nil
}

// MoveEventRight moves a FILTER_INIT forward to the first frame where all
// its video inputs have content, or a PARAM_CHANGE to the next frame. With
// canStay an event already in a valid place stays. An init pushed past its
// deinit removes the instance; a change pushed past the deinit is deleted.
func MoveEventRight(l *event.List, reg filter.Source, e *event.Event, canStay bool) Outcome {
	var owners []int

	switch {
	case e.Is(event.KindFilterInit):
		owners = e.Init().InTracks
	case e.Is(event.KindParamChange):
	default:
		return Stayed
	}

	var (
		target *event.Event
		allOK  bool
	)

	if len(owners) > 0 {
		for x := e; x != nil; x = l.Next(x) {
			if !x.Is(event.KindFrame) || x.TC() < e.TC() || (x.TC() == e.TC() && !canStay) {
				continue
			}

			if ownersPresent(x, owners) {
				target, allOK = x, true

				break
			}
		}
	} else {
		if canStay {
			return Stayed
		}

		target = l.NextFrame(e)
	}

	if canStay && allOK && target.TC() == e.TC() {
		return Stayed
	}

	if e.Is(event.KindFilterInit) {
		deinit := deinitOf(l, e)
		if target == nil || (deinit != nil && deinit.TC() < target.TC()) {
			RemoveFilter(l, reg, e)

			return Removed
		}

		if err := MoveFilterInit(l, reg, e, target, true); err != nil {
			RemoveFilter(l, reg, e)

			return Removed
		}

		return Moved
	}

	fi := l.Get(e.Param().Init)
	deinit := deinitOf(l, fi)

	if target == nil || deinit == nil || deinit.TC() < target.TC() {
		if fi.Is(event.KindFilterInit) {
			DeleteParamChange(l, fi, e)
		} else {
			l.Delete(e)
		}

		return Removed
	}

	unlinkParamChange(l, fi, e)
	l.MoveParamChange(e, target)
	InsertParamChange(l, fi, e)

	return Moved
}

// MoveEventLeft moves a FILTER_DEINIT back to the last frame where all the
// instance's video inputs have content. With canStay a deinit already in a
// valid place stays. A deinit pushed before its init removes the instance.
func MoveEventLeft(l *event.List, reg filter.Source, e *event.Event, canStay bool) Outcome {
	if !e.Is(event.KindFilterDeinit) {
		return Stayed
	}

	fi := l.Get(e.Deinit().Init)
	if !fi.Is(event.KindFilterInit) {
		return Stayed
	}

	owners := fi.Init().InTracks

	var (
		target *event.Event
		allOK  bool
	)

	if len(owners) > 0 {
		for x := e; x != nil; x = l.Prev(x) {
			if !x.Is(event.KindFrame) || x.TC() > e.TC() || (x.TC() == e.TC() && !canStay) {
				continue
			}

			if ownersPresent(x, owners) {
				target, allOK = x, true

				break
			}
		}
	} else {
		if canStay {
			return Stayed
		}

		target = l.PrevFrame(e)
		for target != nil && target.TC() >= e.TC() {
			target = l.PrevFrame(target)
		}
	}

	if canStay && allOK && target.TC() == e.TC() {
		return Stayed
	}

	if target == nil || fi.TC() > target.TC() {
		RemoveFilter(l, reg, fi)

		return Removed
	}

	if err := MoveFilterDeinit(l, reg, fi, target, false); err != nil {
		RemoveFilter(l, reg, fi)

		return Removed
	}

	return Moved
}

// RelocateEffect shifts a whole instance by offset ticks, rewriting track
// from to track to. Every event of the instance keeps its relative place.
func RelocateEffect(l *event.List, reg filter.Source, fi *event.Event, offset int64, from, to int) error {
	deinit := deinitOf(l, fi)
	if deinit == nil {
		return fmt.Errorf("relocate: %w", ErrNoDeinit)
	}

	start := l.FrameAt(event.Quantise(fi.TC()+offset, l.FPS), nil, false)
	end := l.FrameAtOrBefore(event.Quantise(deinit.TC()+offset, l.FPS), nil)

	if start == nil || end == nil || end.TC() < start.TC() {
		return fmt.Errorf("relocate by %d: %w", offset, ErrNoFrame)
	}

	body := fi.Init()
	remap(body.InTracks, from, to)
	remap(body.OutTracks, from, to)

	seeds := seedChanges(l, fi)

	var others []*event.Event

	for _, pc := range paramChanges(l, fi) {
		if !slices.Contains(seeds, pc) {
			others = append(others, pc)
		}
	}

	l.MoveInit(fi, start)

	anchor := fi
	for _, pc := range seeds {
		l.MoveAfter(pc, anchor)
		anchor = pc
	}

	l.MoveDeinit(deinit, end)

	for _, pc := range others {
		tc := min(max(event.Quantise(pc.TC()+offset, l.FPS), start.TC()), end.TC())
		if target := l.FrameAt(tc, nil, false); target != nil {
			l.MoveParamChange(pc, target)
		}
	}

	NormaliseFilterMaps(l, reg)

	return nil
}

func remap(tracks []int, from, to int) {
	for i, t := range tracks {
		if t == from {
			tracks[i] = to
		}
	}
}

// Region is the span of an edit on a set of tracks.
type Region struct {
	Tracks []int
	Start  int64
	End    int64
}

func (r Region) contains(tc int64) bool { return tc >= r.Start && tc <= r.End }

// Relocation describes where the content of a Region went.
type Relocation struct {
	Offset int64
	From   int
	To     int
}

// Update tallies what UpdateFilterEvents did.
type Update struct {
	Relocated int
	Moved     int
	Removed   int
}

func (u *Update) add(o Outcome) {
	switch o {
	case Moved:
		u.Moved++
	case Removed:
		u.Removed++
	case Stayed:
	}
}

// UpdateFilterEvents repairs the instances touched by an edit of region.
// Instances with more than MaxUnmatchedTracks inputs outside the region's
// tracks are left alone. With moveTo set, an instance fed only by the moved
// track and lying wholly inside the region follows the content; others
// have their init walked right and their deinit walked left until their
// inputs have frames, or are removed when the two would cross.
func UpdateFilterEvents(l *event.List, reg filter.Source, region Region, moveTo *Relocation) Update {
	var (
		upd        Update
		candidates []event.ID
	)

	for e := range l.All() {
		body := e.Init()
		if body == nil || !touches(body, region.Tracks) || Unmatched(body, region.Tracks) > MaxUnmatchedTracks {
			continue
		}

		deinit := deinitOf(l, e)
		if region.contains(e.TC()) || (deinit != nil && region.contains(deinit.TC())) {
			candidates = append(candidates, e.ID())
		}
	}

	for _, id := range candidates {
		fi := l.Get(id)
		if !fi.Is(event.KindFilterInit) {
			continue
		}

		body := fi.Init()
		deinit := deinitOf(l, fi)

		if moveTo != nil && deinit != nil && videoOwners(body) == 1 && body.HasInTrack(moveTo.From) &&
			region.contains(fi.TC()) && region.contains(deinit.TC()) {
			if RelocateEffect(l, reg, fi, moveTo.Offset, moveTo.From, moveTo.To) == nil {
				upd.Relocated++

				continue
			}
		}

		if region.contains(fi.TC()) {
			o := MoveEventRight(l, reg, fi, true)
			upd.add(o)

			if o == Removed {
				continue
			}
		}

		if d := deinitOf(l, fi); d != nil && region.contains(d.TC()) {
			upd.add(MoveEventLeft(l, reg, d, true))
		}
	}

	NormaliseFilterMaps(l, reg)

	return upd
}

// ApplyAvolFilter makes one instance of the audio volume filter avol span
// every frame of the list, reading tracks. current is the existing
// instance, or nil. The instance is removed when the list has no frames.
func ApplyAvolFilter(l *event.List, reg filter.Source, avol *filter.Filter, current *event.Event, tracks []int) (*event.Event, error) {
	start, end := l.FirstFrame(), l.LastFrame()

	if !current.Is(event.KindFilterInit) {
		current = nil
	}

	if start == nil {
		if current != nil {
			RemoveFilter(l, reg, current)
		}

		return nil, nil
	}

	if current == nil {
		return AddEffect(l, reg, avol, start, end, tracks, tracks[:min(1, len(tracks))])
	}

	body := current.Init()
	if !slices.Equal(body.InTracks, tracks) {
		body.InTracks = slices.Clone(tracks)
		body.InCounts = countsFor(avol, len(tracks))
	}

	if deinit := deinitOf(l, current); deinit == nil || deinit.TC() != end.TC() {
		if deinit == nil {
			d := l.InsertDeinitAt(end, &event.FilterDeinit{Init: current.ID()})
			body.Deinit = d.ID()
			syncDeinitParams(l, current)
		} else if err := MoveFilterDeinit(l, reg, current, end, false); err != nil {
			return nil, err
		}
	}

	if current.TC() != start.TC() {
		if err := MoveFilterInit(l, reg, current, start, false); err != nil {
			return nil, err
		}
	}

	NormaliseFilterMaps(l, reg)

	return current, nil
}

// RemoveEndBlankFrames trims trailing blank frames; with removeFilterInits
// instances starting in the trimmed tail are removed instead of stopping
// the trim.
func RemoveEndBlankFrames(l *event.List, reg filter.Source, removeFilterInits bool) int {
	var onInit func(*event.Event)

	if removeFilterInits {
		onInit = func(fi *event.Event) { RemoveFilter(l, reg, fi) }
	}

	n := l.RemoveEndBlankFrames(onInit)
	if n == 0 {
		return 0
	}

	if last := l.LastFrame(); last != nil {
		for _, fi := range Instances(l) {
			if d := deinitOf(l, fi); d != nil && d.TC() > last.TC() {
				l.MoveDeinit(d, last)
				DeleteParamChangesAfterDeinit(l, fi)
			}
		}
	}

	NormaliseFilterMaps(l, reg)

	return n
}
