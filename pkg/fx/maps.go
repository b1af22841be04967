package fx

import (
	"slices"

	"github.com/Sumatoshi-tech/cutfang/pkg/event"
	"github.com/Sumatoshi-tech/cutfang/pkg/filter"
)

// ActiveInitsAt returns the instances switched on at position at: inits
// linked before it whose deinit is not, in init order.
func ActiveInitsAt(l *event.List, at *event.Event) []event.ID {
	var active []event.ID

	for e := range l.All() {
		if e == at {
			break
		}

		switch {
		case e.Is(event.KindFilterInit):
			active = append(active, e.ID())
		case e.Is(event.KindFilterDeinit):
			active = removeID(active, e.Deinit().Init)
		}
	}

	return active
}

func removeID(ids []event.ID, id event.ID) []event.ID {
	return slices.DeleteFunc(ids, func(x event.ID) bool { return x == id })
}

// FilterMapBefore returns the last FILTER_MAP at or before at, stopping at
// stop. With a track other than AnyTrack, maps without an instance relevant
// to that track are skipped.
func FilterMapBefore(l *event.List, reg filter.Source, at *event.Event, track int, stop *event.Event) *event.Event {
	for e := at; e != nil && e != stop; e = l.Prev(e) {
		if e.Is(event.KindFilterMap) && mapMatches(l, reg, e, track) {
			return e
		}
	}

	return nil
}

// FilterMapAfter returns the first FILTER_MAP at or after at, with the same
// track filtering as FilterMapBefore.
func FilterMapAfter(l *event.List, reg filter.Source, at *event.Event, track int) *event.Event {
	for e := at; e != nil; e = l.Next(e) {
		if e.Is(event.KindFilterMap) && mapMatches(l, reg, e, track) {
			return e
		}
	}

	return nil
}

func mapMatches(l *event.List, reg filter.Source, m *event.Event, track int) bool {
	if track == AnyTrack {
		return true
	}

	for _, id := range m.Map().Inits {
		if InitIsRelevant(l, reg, l.Get(id), track) {
			return true
		}
	}

	return false
}

// mapInits returns the init list of m, treating nil as empty.
func mapInits(m *event.Event) []event.ID {
	if b := m.Map(); b != nil {
		return b.Inits
	}

	return nil
}

// CompareFilterMaps reports whether two maps describe the same processing.
// Entries that no longer resolve are ignored and a nil map equals an empty
// one. Regular instances must appear in the same order; process-last
// instances only need to be the same set. With a track other than AnyTrack
// only instances relevant to that track are compared.
func CompareFilterMaps(l *event.List, reg filter.Source, a, b *event.Event, track int) bool {
	return sameInits(l, reg, mapInits(a), mapInits(b), track)
}

func sameInits(l *event.List, reg filter.Source, a, b []event.ID, track int) bool {
	ra, la := splitInits(l, reg, a, track)
	rb, lb := splitInits(l, reg, b, track)

	if !slices.Equal(ra, rb) {
		return false
	}

	slices.Sort(la)
	slices.Sort(lb)

	return slices.Equal(la, lb)
}

func splitInits(l *event.List, reg filter.Source, ids []event.ID, track int) (regular, last []event.ID) {
	for _, id := range ids {
		e := l.Get(id)
		if !e.Is(event.KindFilterInit) {
			continue
		}

		if processLast(l, reg, id) {
			if track == AnyTrack {
				last = append(last, id)
			}

			continue
		}

		if track != AnyTrack && !InitIsRelevant(l, reg, e, track) {
			continue
		}

		regular = append(regular, id)
	}

	return regular, last
}

// InsertInit returns inits with id added: process-last instances go to the
// end, others before the trailing run of process-last instances. An id that
// is already present is not added twice.
func InsertInit(l *event.List, reg filter.Source, inits []event.ID, id event.ID) []event.ID {
	out := slices.Clone(inits)
	if slices.Contains(out, id) {
		return out
	}

	if processLast(l, reg, id) {
		return append(out, id)
	}

	k := len(out)
	for k > 0 && processLast(l, reg, out[k-1]) {
		k--
	}

	return slices.Insert(out, k, id)
}

// AddInitToFilterMap adds fi to the map event m.
func AddInitToFilterMap(l *event.List, reg filter.Source, m, fi *event.Event) {
	if b := m.Map(); b != nil {
		b.Inits = InsertInit(l, reg, b.Inits, fi.ID())
	}
}

// RemoveFromFilterMap drops id from the map event m and reports whether the
// map still lists anything.
func RemoveFromFilterMap(m *event.Event, id event.ID) bool {
	b := m.Map()
	if b == nil {
		return false
	}

	b.Inits = removeID(b.Inits, id)

	return len(b.Inits) > 0
}

// UpdateFilterMaps adds fi to every FILTER_MAP after start up to and
// including end.
func UpdateFilterMaps(l *event.List, reg filter.Source, start, end, fi *event.Event) int {
	n := 0

	for e := l.Next(start); e != nil; e = l.Next(e) {
		if e.Is(event.KindFilterMap) && !e.Map().Contains(fi.ID()) {
			AddInitToFilterMap(l, reg, e, fi)

			n++
		}

		if e == end {
			break
		}
	}

	return n
}

// MoveInitInFilterMap moves fi next to neighbour in every map between fi
// and its deinit that lists both. It does nothing and returns false when no
// map lists both, when the move would mix regular and process-last
// instances, or when the maps would disagree about which instances fi now
// precedes.
func MoveInitInFilterMap(l *event.List, reg filter.Source, fi, neighbour *event.Event, before bool) bool {
	if fi == nil || neighbour == nil || fi == neighbour || !fi.Is(event.KindFilterInit) {
		return false
	}

	if processLast(l, reg, fi.ID()) != processLast(l, reg, neighbour.ID()) {
		return false
	}

	deinit := deinitOf(l, fi)

	var (
		maps      []*event.Event
		reordered [][]event.ID
		relation  = make(map[event.ID]bool)
	)

	for e := fi; e != nil; e = l.Next(e) {
		if b := e.Map(); b != nil && b.Contains(fi.ID()) && b.Contains(neighbour.ID()) {
			next := moveNextTo(b.Inits, fi.ID(), neighbour.ID(), before)
			if !partitioned(l, reg, next) || !consistent(next, fi.ID(), relation) {
				return false
			}

			maps = append(maps, e)
			reordered = append(reordered, next)
		}

		if e == deinit {
			break
		}
	}

	if len(maps) == 0 {
		return false
	}

	for i, m := range maps {
		m.Map().Inits = reordered[i]
	}

	NormaliseFilterMaps(l, reg)

	return true
}

func moveNextTo(inits []event.ID, id, neighbour event.ID, before bool) []event.ID {
	out := removeID(slices.Clone(inits), id)

	at := slices.Index(out, neighbour)
	if !before {
		at++
	}

	return slices.Insert(out, at, id)
}

// partitioned reports whether no regular instance follows a process-last one.
func partitioned(l *event.List, reg filter.Source, inits []event.ID) bool {
	seenLast := false

	for _, id := range inits {
		if processLast(l, reg, id) {
			seenLast = true
		} else if seenLast {
			return false
		}
	}

	return true
}

// consistent records, for each other instance, whether id precedes it, and
// reports a conflict with what earlier maps recorded.
func consistent(inits []event.ID, id event.ID, relation map[event.ID]bool) bool {
	pos := slices.Index(inits, id)

	for i, other := range inits {
		if other == id {
			continue
		}

		precedes := pos < i
		if prev, seen := relation[other]; seen && prev != precedes {
			return false
		}

		relation[other] = precedes
	}

	return true
}

// canonicalInits orders the active set: entries of base that are active
// keep their order, newly active instances follow the InsertInit rule.
func canonicalInits(l *event.List, reg filter.Source, base, active []event.ID) []event.ID {
	out := make([]event.ID, 0, len(active))

	for _, id := range base {
		if slices.Contains(active, id) && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}

	for _, id := range active {
		if !slices.Contains(out, id) {
			out = InsertInit(l, reg, out, id)
		}
	}

	return out
}

// NormaliseFilterMaps rewrites the FILTER_MAP events so that each frame is
// governed by exactly the instances active at it. A map is kept directly
// before a frame only where the active set or its order changes, and a
// closing map follows the final event when the last governing map is not
// empty. Existing maps provide the order; duplicates and stale entries are
// removed. It returns the number of maps created, changed or deleted.
func NormaliseFilterMaps(l *event.List, reg filter.Source) int {
	var (
		changes   int
		active    []event.ID
		governing []event.ID
		hint      []event.ID
		hinted    bool
		pending   []*event.Event
	)

	for e := range l.All() {
		switch {
		case e.Is(event.KindFilterInit):
			active = append(active, e.ID())
		case e.Is(event.KindFilterDeinit):
			active = removeID(active, e.Deinit().Init)
		case e.Is(event.KindFilterMap):
			pending = append(pending, e)
			hint = e.Map().Inits
			hinted = true
		case e.Is(event.KindFrame):
			base := governing
			if hinted {
				base = hint
			}

			want := canonicalInits(l, reg, base, active)
			changed := !sameInits(l, reg, want, governing, AnyTrack)

			changes += settleBefore(l, e, pending, want, changed)

			if changed {
				governing = want
			}

			pending = pending[:0]
			hinted = false
		}
	}

	base := governing
	if hinted {
		base = hint
	}

	want := canonicalInits(l, reg, base, active)
	changed := !sameInits(l, reg, want, governing, AnyTrack)

	return changes + settleTail(l, pending, want, changed)
}

// settleBefore leaves at most one map directly before frame.
func settleBefore(l *event.List, frame *event.Event, pending []*event.Event, want []event.ID, changed bool) int {
	var keep *event.Event

	if changed {
		if p := l.Prev(frame); p.Is(event.KindFilterMap) && p.TC() == frame.TC() {
			keep = p
		}
	}

	n := 0

	for _, m := range pending {
		if m != keep {
			l.Delete(m)

			n++
		}
	}

	if !changed {
		return n
	}

	if keep == nil {
		l.InsertMapAt(frame, want, true)

		return n + 1
	}

	if !slices.Equal(keep.Map().Inits, want) {
		keep.Map().Inits = slices.Clone(want)

		n++
	}

	return n
}

// settleTail leaves at most one map, the last event, after the final frame.
func settleTail(l *event.List, pending []*event.Event, want []event.ID, changed bool) int {
	var keep *event.Event

	if changed {
		last := l.Last()
		if prev := l.Prev(last); last.Is(event.KindFilterMap) && slices.Contains(pending, last) &&
			(prev == nil || prev.TC() == last.TC()) {
			keep = last
		}
	}

	n := 0

	for _, m := range pending {
		if m != keep {
			l.Delete(m)

			n++
		}
	}

	if !changed {
		return n
	}

	if keep == nil {
		l.Append(l.EndTC(), &event.FilterMap{Inits: slices.Clone(want)})

		return n + 1
	}

	if !slices.Equal(keep.Map().Inits, want) {
		keep.Map().Inits = slices.Clone(want)

		n++
	}

	return n
}
