package event

import (
	"fmt"
	"iter"
)

// APIVersion is the event list API version written into layout headers.
const APIVersion = 120

// AudioFormat describes the audio stream of a composition.
type AudioFormat struct {
	Channels   int
	Rate       int
	SampleSize int
	Signed     bool
	BigEndian  bool
}

// List owns every event of one composition. Events reference each other by
// ID, so a reference to a deleted event resolves to nil instead of dangling.
type List struct {
	FPS        float64
	Width      int
	Height     int
	Audio      AudioFormat
	APIVersion int

	events map[ID]*Event
	first  ID
	last   ID
	nextID ID
	count  int
}

// NewList creates an empty list at the given frame rate.
func NewList(fps float64) *List {
	return &List{
		FPS:        fps,
		APIVersion: APIVersion,
		events:     make(map[ID]*Event),
		nextID:     1,
	}
}

// Len returns the number of linked events.
func (l *List) Len() int {
	if l == nil {
		return 0
	}

	return l.count
}

// Empty reports whether the chain holds no events.
func (l *List) Empty() bool { return l.Len() == 0 }

// Get resolves id, returning nil for unknown or deleted events.
func (l *List) Get(id ID) *Event {
	if l == nil || id == 0 {
		return nil
	}

	return l.events[id]
}

// First returns the head of the chain.
func (l *List) First() *Event {
	if l == nil {
		return nil
	}

	return l.events[l.first]
}

// Last returns the tail of the chain.
func (l *List) Last() *Event {
	if l == nil {
		return nil
	}

	return l.events[l.last]
}

// Next returns the event after e, or nil at the end.
func (l *List) Next(e *Event) *Event {
	if e == nil {
		return nil
	}

	return l.events[e.next]
}

// Prev returns the event before e, or nil at the start.
func (l *List) Prev(e *Event) *Event {
	if e == nil {
		return nil
	}

	return l.events[e.prev]
}

// All iterates the chain from first to last. Deleting the yielded event
// during iteration is allowed.
func (l *List) All() iter.Seq[*Event] {
	return func(yield func(*Event) bool) {
		for e := l.First(); e != nil; {
			next := l.Next(e)
			if !yield(e) {
				return
			}

			e = next
		}
	}
}

// Backward iterates the chain from last to first.
func (l *List) Backward() iter.Seq[*Event] {
	return func(yield func(*Event) bool) {
		for e := l.Last(); e != nil; {
			prev := l.Prev(e)
			if !yield(e) {
				return
			}

			e = prev
		}
	}
}

// New allocates an unlinked event in the arena.
func (l *List) New(tc int64, body Body) *Event {
	e := &Event{id: l.nextID, tc: tc, Body: body}
	l.nextID++
	l.events[e.id] = e

	return e
}

// NewWithID allocates an unlinked event under a caller-chosen identifier.
// It fails when id is zero or already taken.
func (l *List) NewWithID(id ID, tc int64, body Body) (*Event, error) {
	if id == 0 {
		return nil, fmt.Errorf("%w: zero id", ErrMalformed)
	}

	if _, taken := l.events[id]; taken {
		return nil, fmt.Errorf("%w: id %d already in use", ErrMalformed, id)
	}

	e := &Event{id: id, tc: tc, Body: body}
	l.events[id] = e

	if id >= l.nextID {
		l.nextID = id + 1
	}

	return e, nil
}

// NextID returns the identifier the next allocated event will get.
func (l *List) NextID() ID { return l.nextID }

// ReleaseIDs hands identifiers from mark onwards back to the allocator when
// none of them is still in the arena. Temporary events, such as the markers
// written around a save, then leave no trace in later identifiers.
func (l *List) ReleaseIDs(mark ID) bool {
	if mark == 0 || mark > l.nextID {
		return false
	}

	for id := mark; id < l.nextID; id++ {
		if _, ok := l.events[id]; ok {
			return false
		}
	}

	l.nextID = mark

	return true
}

// Append allocates a new event and links it at the tail.
func (l *List) Append(tc int64, body Body) *Event {
	e := l.New(tc, body)
	l.linkAfter(e, l.Last())

	return e
}

// InsertAfter allocates a new event and links it after anchor. A nil anchor
// links at the head.
func (l *List) InsertAfter(anchor *Event, tc int64, body Body) *Event {
	e := l.New(tc, body)
	l.linkAfter(e, anchor)

	return e
}

// InsertBefore allocates a new event and links it before anchor. A nil anchor
// links at the tail.
func (l *List) InsertBefore(anchor *Event, tc int64, body Body) *Event {
	e := l.New(tc, body)
	l.linkBefore(e, anchor)

	return e
}

// LinkAfter links a detached event after anchor (head when anchor is nil).
func (l *List) LinkAfter(e, anchor *Event) error {
	if e.linked {
		return ErrLinked
	}

	l.linkAfter(e, anchor)

	return nil
}

// LinkBefore links a detached event before anchor (tail when anchor is nil).
func (l *List) LinkBefore(e, anchor *Event) error {
	if e.linked {
		return ErrLinked
	}

	l.linkBefore(e, anchor)

	return nil
}

func (l *List) linkAfter(e, anchor *Event) {
	e.prev, e.next = 0, 0

	if anchor == nil {
		head := l.First()
		if head != nil {
			e.next = head.id
			head.prev = e.id
		} else {
			l.last = e.id
		}

		l.first = e.id
	} else {
		next := l.Next(anchor)
		e.prev = anchor.id

		if next != nil {
			e.next = next.id
			next.prev = e.id
		} else {
			l.last = e.id
		}

		anchor.next = e.id
	}

	e.linked = true
	l.count++
}

func (l *List) linkBefore(e, anchor *Event) {
	if anchor == nil {
		l.linkAfter(e, l.Last())

		return
	}

	l.linkAfter(e, l.Prev(anchor))
}

// Detach unlinks e from the chain but keeps it in the arena, so references
// to it stay valid while it is being repositioned.
func (l *List) Detach(e *Event) {
	if e == nil || !e.linked {
		return
	}

	prev := l.Prev(e)
	next := l.Next(e)

	if prev != nil {
		prev.next = e.next
	} else {
		l.first = e.next
	}

	if next != nil {
		next.prev = e.prev
	} else {
		l.last = e.prev
	}

	e.prev, e.next = 0, 0
	e.linked = false
	l.count--
}

// Delete unlinks e and frees it from the arena.
func (l *List) Delete(e *Event) {
	if e == nil {
		return
	}

	l.Detach(e)
	delete(l.events, e.id)
}

// SetTC changes the timecode of a detached event.
func (l *List) SetTC(e *Event, tc int64) error {
	if e.linked {
		return fmt.Errorf("retime event %d: %w", e.id, ErrLinked)
	}

	e.tc = tc

	return nil
}

// Retime changes the timecode of a linked event in place. The caller must
// keep the chain ordered.
func (l *List) Retime(e *Event, tc int64) {
	e.tc = tc
}

// Replace substitutes the body of at with body, keeping its position and id.
func (l *List) Replace(at *Event, body Body) {
	at.Body = body
}

// Free deletes every event.
func (l *List) Free() {
	l.events = make(map[ID]*Event)
	l.first, l.last = 0, 0
	l.count = 0
}

// ReplaceEvents moves the chain of src into l, discarding l's own events and
// leaving src empty. Header fields of l are kept.
func (l *List) ReplaceEvents(src *List) {
	l.events = src.events
	l.first, l.last = src.first, src.last
	l.count = src.count

	if src.nextID > l.nextID {
		l.nextID = src.nextID
	}

	src.events = make(map[ID]*Event)
	src.first, src.last = 0, 0
	src.count = 0
}

// Clone returns a deep copy of l with the same identifiers.
func (l *List) Clone() *List {
	out := &List{
		FPS:        l.FPS,
		Width:      l.Width,
		Height:     l.Height,
		Audio:      l.Audio,
		APIVersion: l.APIVersion,
		events:     make(map[ID]*Event, len(l.events)),
		first:      l.first,
		last:       l.last,
		nextID:     l.nextID,
		count:      l.count,
	}

	for id, e := range l.events {
		c := *e
		if e.Body != nil {
			c.Body = e.Body.clone()
		}

		out.events[id] = &c
	}

	return out
}

// NextOfKind returns the first event of kind k strictly after e.
func (l *List) NextOfKind(e *Event, k Kind) *Event {
	for e = l.Next(e); e != nil; e = l.Next(e) {
		if e.Is(k) {
			return e
		}
	}

	return nil
}

// PrevOfKind returns the last event of kind k strictly before e.
func (l *List) PrevOfKind(e *Event, k Kind) *Event {
	for e = l.Prev(e); e != nil; e = l.Prev(e) {
		if e.Is(k) {
			return e
		}
	}

	return nil
}

// NextFrame returns the next FRAME after e.
func (l *List) NextFrame(e *Event) *Event { return l.NextOfKind(e, KindFrame) }

// PrevFrame returns the previous FRAME before e.
func (l *List) PrevFrame(e *Event) *Event { return l.PrevOfKind(e, KindFrame) }

// FirstFrame returns the first FRAME of the list.
func (l *List) FirstFrame() *Event {
	e := l.First()
	if e.Is(KindFrame) {
		return e
	}

	return l.NextFrame(e)
}

// LastFrame returns the last FRAME of the list.
func (l *List) LastFrame() *Event {
	e := l.Last()
	if e.Is(KindFrame) {
		return e
	}

	return l.PrevFrame(e)
}

// Before reports whether a is linked strictly before b. Both must be linked.
func (l *List) Before(a, b *Event) bool {
	if a == nil || b == nil || a == b {
		return false
	}

	if a.tc != b.tc {
		return a.tc < b.tc
	}

	for e := l.Next(a); e != nil && e.tc == a.tc; e = l.Next(e) {
		if e == b {
			return true
		}
	}

	return false
}

// StartTC returns the timecode of the first event, or 0 for an empty list.
func (l *List) StartTC() int64 {
	if e := l.First(); e != nil {
		return e.tc
	}

	return 0
}

// EndTC returns the timecode of the last event, or 0 for an empty list.
func (l *List) EndTC() int64 {
	if e := l.Last(); e != nil {
		return e.tc
	}

	return 0
}

// EndSeconds returns the end timecode in seconds.
func (l *List) EndSeconds() float64 {
	return float64(l.EndTC()) / TicksPerSecond
}

// CountEvents counts events with start <= tc <= end; when frames is true
// only FRAME events are counted. A non-positive end means "to the end".
func (l *List) CountEvents(frames bool, start, end int64) int {
	n := 0

	for e := range l.All() {
		if e.tc < start {
			continue
		}

		if end > 0 && e.tc > end {
			break
		}

		if frames && !e.Is(KindFrame) {
			continue
		}

		n++
	}

	return n
}

// HasAudio reports whether any frame carries audio state changes.
func (l *List) HasAudio() bool {
	for e := range l.All() {
		if f := e.Frame(); f != nil && f.HasAudio() {
			return true
		}
	}

	return false
}

// BackupHostTags copies the host tag of every init up to tc into a side slot.
func (l *List) BackupHostTags(tc int64) {
	for e := range l.All() {
		if e.tc > tc {
			break
		}

		if b := e.Init(); b != nil {
			b.hostTagCopy = b.HostTag
			b.hasTagCopy = true
		}
	}
}

// RestoreHostTags restores host tags saved by BackupHostTags.
func (l *List) RestoreHostTags(tc int64) {
	for e := range l.All() {
		if e.tc > tc {
			break
		}

		if b := e.Init(); b != nil && b.hasTagCopy {
			b.HostTag = b.hostTagCopy
			b.hostTagCopy = ""
			b.hasTagCopy = false
		}
	}
}
