// Package event implements the timeline event graph: typed events kept in a
// time-ordered doubly linked chain whose nodes live in an arena keyed by a
// stable, monotonically increasing identifier.
package event

import (
	"errors"
	"slices"

	"github.com/Sumatoshi-tech/cutfang/pkg/plant"
)

// ID identifies an event inside one list. The zero ID means "no event".
type ID uint64

// Kind is the event hint.
type Kind int

// Event kinds. The numbering is the on-disk hint value.
const (
	KindFrame        Kind = 1
	KindFilterInit   Kind = 2
	KindFilterDeinit Kind = 3
	KindFilterMap    Kind = 4
	KindParamChange  Kind = 5
	KindMarker       Kind = 6
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindFrame:
		return "FRAME"
	case KindFilterInit:
		return "FILTER_INIT"
	case KindFilterDeinit:
		return "FILTER_DEINIT"
	case KindFilterMap:
		return "FILTER_MAP"
	case KindParamChange:
		return "PARAM_CHANGE"
	case KindMarker:
		return "MARKER"
	default:
		return "UNKNOWN"
	}
}

// MarkerKind is the subtype of a marker event.
type MarkerKind int

// Marker subtypes.
const (
	MarkerBlockStart     MarkerKind = 1
	MarkerBlockUnordered MarkerKind = 512
	MarkerRecordStart    MarkerKind = 1024
	MarkerRecordEnd      MarkerKind = 1025
)

// Valid reports whether m is a known marker subtype.
func (m MarkerKind) Valid() bool {
	switch m {
	case MarkerBlockStart, MarkerBlockUnordered, MarkerRecordStart, MarkerRecordEnd:
		return true
	default:
		return false
	}
}

// String returns the marker subtype name.
func (m MarkerKind) String() string {
	switch m {
	case MarkerBlockStart:
		return "BLOCK_START"
	case MarkerBlockUnordered:
		return "BLOCK_UNORDERED"
	case MarkerRecordStart:
		return "RECORD_START"
	case MarkerRecordEnd:
		return "RECORD_END"
	default:
		return "UNKNOWN"
	}
}

// Sentinel errors.
var (
	ErrMalformed  = errors.New("malformed event input")
	ErrNotLinked  = errors.New("event is not linked into the list")
	ErrLinked     = errors.New("event is already linked")
	ErrWrongKind  = errors.New("wrong event kind")
	ErrNoSuchItem = errors.New("no such event")
)

// Body is the kind-specific payload of an event.
type Body interface {
	Kind() Kind
	clone() Body
}

// Event is one node of the chain.
type Event struct {
	id   ID
	tc   int64
	prev ID
	next ID

	linked bool

	Body Body
}

// ID returns the arena identifier.
func (e *Event) ID() ID { return e.id }

// TC returns the timecode in ticks.
func (e *Event) TC() int64 { return e.tc }

// Kind returns the event hint.
func (e *Event) Kind() Kind {
	if e == nil || e.Body == nil {
		return 0
	}

	return e.Body.Kind()
}

// Is reports whether e is non-nil and of kind k.
func (e *Event) Is(k Kind) bool {
	return e != nil && e.Kind() == k
}

// Linked reports whether e is part of the chain.
func (e *Event) Linked() bool { return e.linked }

// Frame returns the frame body, or nil.
func (e *Event) Frame() *Frame {
	if e == nil {
		return nil
	}

	f, _ := e.Body.(*Frame)

	return f
}

// Init returns the filter-init body, or nil.
func (e *Event) Init() *FilterInit {
	if e == nil {
		return nil
	}

	b, _ := e.Body.(*FilterInit)

	return b
}

// Deinit returns the filter-deinit body, or nil.
func (e *Event) Deinit() *FilterDeinit {
	if e == nil {
		return nil
	}

	b, _ := e.Body.(*FilterDeinit)

	return b
}

// Map returns the filter-map body, or nil.
func (e *Event) Map() *FilterMap {
	if e == nil {
		return nil
	}

	b, _ := e.Body.(*FilterMap)

	return b
}

// Param returns the param-change body, or nil.
func (e *Event) Param() *ParamChange {
	if e == nil {
		return nil
	}

	b, _ := e.Body.(*ParamChange)

	return b
}

// Marker returns the marker body, or nil.
func (e *Event) Marker() *Marker {
	if e == nil {
		return nil
	}

	b, _ := e.Body.(*Marker)

	return b
}

// AudioSeek is one audio state change carried by a frame.
type AudioSeek struct {
	Track    int
	Clip     int
	Seek     float64
	Velocity float64
}

// Frame holds the per-track clip and source frame numbers of one instant.
// Clips and Frames are index-aligned.
type Frame struct {
	Clips  []int
	Frames []int64
	Audio  []AudioSeek
}

// Kind implements Body.
func (*Frame) Kind() Kind { return KindFrame }

func (f *Frame) clone() Body {
	return &Frame{Clips: slices.Clone(f.Clips), Frames: slices.Clone(f.Frames), Audio: slices.Clone(f.Audio)}
}

// NumTracks returns the number of video track slots.
func (f *Frame) NumTracks() int { return len(f.Clips) }

// Clip returns the clip on track, or -1 when out of range.
func (f *Frame) Clip(track int) int {
	if track < 0 || track >= len(f.Clips) {
		return -1
	}

	return f.Clips[track]
}

// FrameNum returns the source frame on track, or 0 when out of range.
func (f *Frame) FrameNum(track int) int64 {
	if track < 0 || track >= len(f.Frames) {
		return 0
	}

	return f.Frames[track]
}

// HasTrack reports whether track holds a real frame.
func (f *Frame) HasTrack(track int) bool {
	return f.Clip(track) > 0 && f.FrameNum(track) > 0
}

// HasAudio reports whether the frame carries audio state changes.
func (f *Frame) HasAudio() bool { return len(f.Audio) > 0 }

// FilterInit starts an effect instance.
type FilterInit struct {
	Filter    string
	InTracks  []int
	OutTracks []int
	InCounts  []int
	InParams  []ID
	Deinit    ID
	HostTag   string

	hostTagCopy string
	hasTagCopy  bool
}

// Kind implements Body.
func (*FilterInit) Kind() Kind { return KindFilterInit }

func (b *FilterInit) clone() Body {
	c := *b
	c.InTracks = slices.Clone(b.InTracks)
	c.OutTracks = slices.Clone(b.OutTracks)
	c.InCounts = slices.Clone(b.InCounts)
	c.InParams = slices.Clone(b.InParams)

	return &c
}

// HasInTrack reports whether track is one of the instance's inputs.
func (b *FilterInit) HasInTrack(track int) bool { return slices.Contains(b.InTracks, track) }

// FilterDeinit ends an effect instance.
type FilterDeinit struct {
	Init     ID
	InParams []ID
}

// Kind implements Body.
func (*FilterDeinit) Kind() Kind { return KindFilterDeinit }

func (b *FilterDeinit) clone() Body {
	return &FilterDeinit{Init: b.Init, InParams: slices.Clone(b.InParams)}
}

// FilterMap lists the active effect instances in processing order.
type FilterMap struct {
	Inits []ID
}

// Kind implements Body.
func (*FilterMap) Kind() Kind { return KindFilterMap }

func (b *FilterMap) clone() Body { return &FilterMap{Inits: slices.Clone(b.Inits)} }

// Contains reports whether the map lists init.
func (b *FilterMap) Contains(id ID) bool { return slices.Contains(b.Inits, id) }

// ParamChange records a new value for one parameter of an instance.
type ParamChange struct {
	Init   ID
	Index  int
	Value  plant.Value
	Next   ID
	Prev   ID
	Ignore []bool
}

// Kind implements Body.
func (*ParamChange) Kind() Kind { return KindParamChange }

func (b *ParamChange) clone() Body {
	c := *b
	c.Value = b.Value.Clone()
	c.Ignore = slices.Clone(b.Ignore)

	return &c
}

// Marker annotates block boundaries and recording stretches.
type Marker struct {
	Type   MarkerKind
	Tracks []int
}

// Kind implements Body.
func (*Marker) Kind() Kind { return KindMarker }

func (b *Marker) clone() Body { return &Marker{Type: b.Type, Tracks: slices.Clone(b.Tracks)} }
