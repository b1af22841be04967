package rectify

import (
	"fmt"

	"github.com/Sumatoshi-tech/cutfang/pkg/event"
	"github.com/Sumatoshi-tech/cutfang/pkg/filter"
)

// slot tracks one active instance during the forward pass.
type slot struct {
	saved  event.ID
	init   *event.Event
	filter *filter.Filter
	// seen marks parameters that already accepted a change.
	seen []bool
}

// table maps saved init identifiers to the live instances they became. Its
// capacity is fixed for the whole run.
type table struct {
	slots  []*slot
	index  map[event.ID]int
	cursor int
	used   int
}

func newTable(capacity int) *table {
	return &table{
		slots: make([]*slot, capacity),
		index: make(map[event.ID]int, capacity),
	}
}

// alloc stores s in the next free slot.
func (t *table) alloc(s *slot) error {
	if t.used == len(t.slots) {
		return fmt.Errorf("%w: more than %d instances", ErrTooManyEffects, len(t.slots))
	}

	for t.slots[t.cursor] != nil {
		t.cursor = (t.cursor + 1) % len(t.slots)
	}

	t.slots[t.cursor] = s
	t.index[s.saved] = t.cursor
	t.used++

	return nil
}

func (t *table) lookup(saved event.ID) (*slot, bool) {
	i, ok := t.index[saved]
	if !ok {
		return nil, false
	}

	return t.slots[i], true
}

func (t *table) release(saved event.ID) {
	i, ok := t.index[saved]
	if !ok {
		return
	}

	t.slots[i] = nil
	delete(t.index, saved)
	t.used--
}
