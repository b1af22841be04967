// Package fx places effect instances on an event list and keeps the
// FILTER_MAP events and parameter change chains consistent with them.
package fx

import (
	"errors"
	"math"
	"slices"

	"github.com/Sumatoshi-tech/cutfang/pkg/event"
	"github.com/Sumatoshi-tech/cutfang/pkg/filter"
)

// AnyTrack disables track filtering in map lookups and comparisons.
const AnyTrack = math.MinInt

// MaxUnmatchedTracks is how many input tracks of an instance may lie
// outside an edited track set before the edit leaves the instance alone.
const MaxUnmatchedTracks = 1

// Sentinel errors.
var (
	ErrNotFrame     = errors.New("event is not a frame")
	ErrNotInit      = errors.New("event is not a filter init")
	ErrBadRange     = errors.New("invalid effect range")
	ErrBadTracks    = errors.New("track list does not fit the filter channels")
	ErrUnknownParam = errors.New("unknown parameter")
	ErrSeedMismatch = errors.New("value type does not match parameter")
	ErrReinitParam  = errors.New("parameter can only be set at instance start")
	ErrNoDeinit     = errors.New("instance has no deinit")
	ErrNoFrame      = errors.New("no frame at destination")
)

// Outcome reports what a repositioning step did to an event.
type Outcome int

// Outcomes.
const (
	Stayed Outcome = iota
	Moved
	Removed
)

// FilterOf resolves the filter of an init event.
func FilterOf(reg filter.Source, fi *event.Event) (*filter.Filter, bool) {
	body := fi.Init()
	if body == nil || reg == nil {
		return nil, false
	}

	return reg.Lookup(body.Filter)
}

func processLast(l *event.List, reg filter.Source, id event.ID) bool {
	f, ok := FilterOf(reg, l.Get(id))

	return ok && f.ProcessLast()
}

// InitIsRelevant reports whether fi reads from or writes to track.
// Process-last instances are never relevant to a single track.
func InitIsRelevant(l *event.List, reg filter.Source, fi *event.Event, track int) bool {
	body := fi.Init()
	if body == nil || processLast(l, reg, fi.ID()) {
		return false
	}

	return slices.Contains(body.InTracks, track) || slices.Contains(body.OutTracks, track)
}

// FilterInitHasOwner reports whether track is one of the instance's inputs.
func FilterInitHasOwner(fi *event.Event, track int) bool {
	body := fi.Init()

	return body != nil && body.HasInTrack(track)
}

// Unmatched counts the video input tracks of fi that are not in tracks.
func Unmatched(fi *event.FilterInit, tracks []int) int {
	n := 0

	for _, t := range fi.InTracks {
		if t >= 0 && !slices.Contains(tracks, t) {
			n++
		}
	}

	return n
}

// touches reports whether any input track of fi is in tracks.
func touches(fi *event.FilterInit, tracks []int) bool {
	for _, t := range fi.InTracks {
		if slices.Contains(tracks, t) {
			return true
		}
	}

	return false
}

// videoOwners counts the non-audio input tracks of fi.
func videoOwners(fi *event.FilterInit) int {
	n := 0

	for _, t := range fi.InTracks {
		if t >= 0 {
			n++
		}
	}

	return n
}

// ownersPresent reports whether frame e has content on every video input
// track. Audio owners are ignored.
func ownersPresent(e *event.Event, owners []int) bool {
	f := e.Frame()
	if f == nil {
		return false
	}

	for _, t := range owners {
		if t < 0 {
			continue
		}

		if !f.HasTrack(t) {
			return false
		}
	}

	return true
}

// deinitOf returns the deinit event of fi, or nil.
func deinitOf(l *event.List, fi *event.Event) *event.Event {
	body := fi.Init()
	if body == nil {
		return nil
	}

	d := l.Get(body.Deinit)
	if !d.Is(event.KindFilterDeinit) {
		return nil
	}

	return d
}

// Instances returns every FILTER_INIT of the list in order.
func Instances(l *event.List) []*event.Event {
	var out []*event.Event

	for e := range l.All() {
		if e.Is(event.KindFilterInit) {
			out = append(out, e)
		}
	}

	return out
}

// FindInstance returns the first instance of f, or nil.
func FindInstance(l *event.List, f *filter.Filter) *event.Event {
	hash := f.Hash()

	for e := range l.All() {
		if b := e.Init(); b != nil && b.Filter == hash {
			return e
		}
	}

	return nil
}
