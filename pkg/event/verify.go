package event

import (
	"errors"
	"fmt"
)

// Invariant violations reported by Verify.
var (
	ErrOrder          = errors.New("events out of timecode order")
	ErrDuplicateFrame = errors.New("two frames share a timecode")
	ErrBrokenLink     = errors.New("broken chain link")
)

// Verify checks chain integrity, timecode order and frame uniqueness.
func (l *List) Verify() error {
	var (
		prev      *Event
		lastFrame *Event
		n         int
	)

	for e := l.First(); e != nil; e = l.Next(e) {
		n++
		if n > len(l.events) {
			return fmt.Errorf("%w: cycle", ErrBrokenLink)
		}

		if l.Prev(e) != prev {
			return fmt.Errorf("%w: event %d", ErrBrokenLink, e.id)
		}

		if prev != nil && prev.tc > e.tc {
			return fmt.Errorf("%w: %d at %d after %d at %d", ErrOrder, e.id, e.tc, prev.id, prev.tc)
		}

		if e.Is(KindFrame) {
			if lastFrame != nil && lastFrame.tc == e.tc {
				return fmt.Errorf("%w: %d", ErrDuplicateFrame, e.tc)
			}

			lastFrame = e
		}

		prev = e
	}

	if prev != l.Last() {
		return fmt.Errorf("%w: last", ErrBrokenLink)
	}

	if n != l.count {
		return fmt.Errorf("%w: counted %d, expected %d", ErrBrokenLink, n, l.count)
	}

	return nil
}
