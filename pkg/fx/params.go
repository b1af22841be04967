package fx

import (
	"fmt"
	"slices"

	"github.com/Sumatoshi-tech/cutfang/pkg/event"
	"github.com/Sumatoshi-tech/cutfang/pkg/filter"
	"github.com/Sumatoshi-tech/cutfang/pkg/plant"
)

// FilterInitAddPChanges seeds one PARAM_CHANGE per parameter of f with its
// default value, linked directly after fi, and makes them the chain heads.
func FilterInitAddPChanges(l *event.List, f *filter.Filter, fi *event.Event) []*event.Event {
	body := fi.Init()
	body.InParams = make([]event.ID, len(f.Params))

	seeds := make([]*event.Event, 0, len(f.Params))
	anchor := fi

	for i, p := range f.Params {
		pc := l.InsertAfter(anchor, fi.TC(), &event.ParamChange{
			Init:  fi.ID(),
			Index: i,
			Value: p.Default.Clone(),
		})

		body.InParams[i] = pc.ID()
		seeds = append(seeds, pc)
		anchor = pc
	}

	syncDeinitParams(l, fi)

	return seeds
}

// syncDeinitParams copies the chain heads of fi into its deinit.
func syncDeinitParams(l *event.List, fi *event.Event) {
	if d := deinitOf(l, fi); d != nil {
		d.Deinit().InParams = slices.Clone(fi.Init().InParams)
	}
}

// ParamChain returns the change chain of one parameter from its head.
func ParamChain(l *event.List, fi *event.Event, index int) []*event.Event {
	body := fi.Init()
	if body == nil || index < 0 || index >= len(body.InParams) {
		return nil
	}

	var out []*event.Event

	for pc := l.Get(body.InParams[index]); pc.Is(event.KindParamChange); pc = l.Get(pc.Param().Next) {
		if slices.Contains(out, pc) {
			break
		}

		out = append(out, pc)
	}

	return out
}

// paramChanges returns every PARAM_CHANGE of fi in list order.
func paramChanges(l *event.List, fi *event.Event) []*event.Event {
	var out []*event.Event

	for e := range l.All() {
		if p := e.Param(); p != nil && p.Init == fi.ID() {
			out = append(out, e)
		}
	}

	return out
}

// seedChanges returns the seed changes of fi: its changes at the same
// timecode with no frame in between.
func seedChanges(l *event.List, fi *event.Event) []*event.Event {
	var out []*event.Event

	for e := l.Next(fi); e != nil && e.TC() == fi.TC() && !e.Is(event.KindFrame); e = l.Next(e) {
		if p := e.Param(); p != nil && p.Init == fi.ID() {
			out = append(out, e)
		}
	}

	return out
}

// InsertParamChange splices the linked change pc into the chain of its
// parameter by list position, touching only its neighbours.
func InsertParamChange(l *event.List, fi, pc *event.Event) {
	body := fi.Init()
	p := pc.Param()

	for len(body.InParams) <= p.Index {
		body.InParams = append(body.InParams, 0)
	}

	head := l.Get(body.InParams[p.Index])
	if !head.Is(event.KindParamChange) || l.Before(pc, head) {
		p.Prev = 0
		p.Next = 0

		if head.Is(event.KindParamChange) {
			p.Next = head.ID()
			head.Param().Prev = pc.ID()
		}

		body.InParams[p.Index] = pc.ID()
		syncDeinitParams(l, fi)

		return
	}

	prev := head

	for {
		next := l.Get(prev.Param().Next)
		if !next.Is(event.KindParamChange) || l.Before(pc, next) {
			p.Prev = prev.ID()
			p.Next = 0

			if next.Is(event.KindParamChange) {
				p.Next = next.ID()
				next.Param().Prev = pc.ID()
			}

			prev.Param().Next = pc.ID()

			return
		}

		prev = next
	}
}

// unlinkParamChange removes pc from its chain without deleting it.
func unlinkParamChange(l *event.List, fi, pc *event.Event) {
	p := pc.Param()
	prev, next := l.Get(p.Prev), l.Get(p.Next)

	if prev.Is(event.KindParamChange) {
		prev.Param().Next = p.Next
	}

	if next.Is(event.KindParamChange) {
		next.Param().Prev = p.Prev
	}

	if body := fi.Init(); body != nil && p.Index < len(body.InParams) && body.InParams[p.Index] == pc.ID() {
		body.InParams[p.Index] = 0
		if next.Is(event.KindParamChange) {
			body.InParams[p.Index] = next.ID()
		}

		syncDeinitParams(l, fi)
	}

	p.Prev, p.Next = 0, 0
}

// DeleteParamChange unlinks pc from its chain and deletes it.
func DeleteParamChange(l *event.List, fi, pc *event.Event) {
	unlinkParamChange(l, fi, pc)
	l.Delete(pc)
}

// SetParam records value for parameter index of fi at frame at. Setting a
// value at the instance start updates the seed change; reinit parameters
// may only be set there. An existing change at the same timecode is
// overwritten.
func SetParam(l *event.List, reg filter.Source, fi, at *event.Event, index int, value plant.Value) (*event.Event, error) {
	f, ok := FilterOf(reg, fi)
	if !ok {
		return nil, fmt.Errorf("set param: %w", ErrNotInit)
	}

	tmpl, ok := f.Param(index)
	if !ok {
		return nil, fmt.Errorf("set param %d of %s: %w", index, f.Name, ErrUnknownParam)
	}

	if !tmpl.SeedMatches(value) {
		return nil, fmt.Errorf("set param %s: %w", tmpl.Name, ErrSeedMismatch)
	}

	if !at.Is(event.KindFrame) {
		return nil, fmt.Errorf("set param %s: %w", tmpl.Name, ErrNotFrame)
	}

	deinit := deinitOf(l, fi)
	if at.TC() < fi.TC() || (deinit != nil && at.TC() > deinit.TC()) {
		return nil, fmt.Errorf("set param %s at %d: %w", tmpl.Name, at.TC(), ErrBadRange)
	}

	for _, pc := range ParamChain(l, fi, index) {
		if pc.TC() == at.TC() {
			pc.Param().Value = value.Clone()

			return pc, nil
		}
	}

	if tmpl.Reinit {
		return nil, fmt.Errorf("set param %s: %w", tmpl.Name, ErrReinitParam)
	}

	pc := l.InsertParamChangeAt(at, &event.ParamChange{Init: fi.ID(), Index: index, Value: value.Clone()})
	InsertParamChange(l, fi, pc)

	return pc, nil
}

// DeleteParamChangesAfterDeinit deletes changes of fi later than its deinit.
func DeleteParamChangesAfterDeinit(l *event.List, fi *event.Event) int {
	deinit := deinitOf(l, fi)
	if deinit == nil {
		return 0
	}

	n := 0

	for _, pc := range paramChanges(l, fi) {
		if pc.TC() > deinit.TC() {
			DeleteParamChange(l, fi, pc)

			n++
		}
	}

	return n
}

// RescaleParamChanges stretches the non-seed changes of fi from its current
// init..deinit span onto newInit..newDeinit, snapping each to a frame.
func RescaleParamChanges(l *event.List, fi *event.Event, newInit, newDeinit int64) {
	deinit := deinitOf(l, fi)
	if deinit == nil {
		return
	}

	oldInit, oldDeinit := fi.TC(), deinit.TC()
	seeds := seedChanges(l, fi)

	for _, pc := range paramChanges(l, fi) {
		if slices.Contains(seeds, pc) {
			continue
		}

		tc := newInit
		if oldDeinit > oldInit {
			ratio := float64(pc.TC()-oldInit) / float64(oldDeinit-oldInit)
			tc = newInit + int64(ratio*float64(newDeinit-newInit))
		}

		tc = min(max(event.Quantise(tc, l.FPS), newInit), newDeinit)

		if target := l.FrameAt(tc, nil, false); target != nil {
			l.MoveParamChange(pc, target)
		}
	}
}

// RebuildParamChains relinks every change chain of fi from list order and
// refreshes the heads held by fi and its deinit. Of two changes to one
// parameter at the same timecode the later one is kept. It returns the
// number of changes deleted.
func RebuildParamChains(l *event.List, fi *event.Event) int {
	body := fi.Init()
	if body == nil {
		return 0
	}

	heads := make([]event.ID, len(body.InParams))
	last := make(map[int]*event.Event)
	dropped := 0

	for _, pc := range paramChanges(l, fi) {
		p := pc.Param()
		if p.Index < 0 {
			continue
		}

		for len(heads) <= p.Index {
			heads = append(heads, 0)
		}

		prev := last[p.Index]
		if prev != nil && prev.TC() == pc.TC() {
			l.Delete(prev)

			dropped++

			prev = l.Get(prev.Param().Prev)
		}

		p.Prev, p.Next = 0, 0

		if prev != nil {
			p.Prev = prev.ID()
			prev.Param().Next = pc.ID()
		} else {
			heads[p.Index] = pc.ID()
		}

		last[p.Index] = pc
	}

	body.InParams = heads
	syncDeinitParams(l, fi)

	return dropped
}
