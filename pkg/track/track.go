// Package track holds the block overlay of a multitrack timeline. Each
// track keeps a time-sorted list of blocks; a block names the first and last
// event of one contiguous run of material on that track. Blocks are never
// saved: they are rebuilt from the event list with Scan.
package track

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/google/uuid"

	"github.com/Sumatoshi-tech/cutfang/pkg/event"
)

// Sentinel errors.
var (
	ErrNotOnTrack = errors.New("block is not on this track")
	ErrBadSplit   = errors.New("split point outside block")
	ErrOverlap    = errors.New("block overlaps its neighbour")
	ErrDangling   = errors.New("block edge refers to a deleted event")
)

// Kind tells video tracks from audio tracks.
type Kind int

// Track kinds.
const (
	KindVideo Kind = iota
	KindAudio
)

// String returns the kind name.
func (k Kind) String() string {
	if k == KindAudio {
		return "audio"
	}

	return "video"
}

// State is the selection state of a block.
type State int

// Block states.
const (
	StateUnselected State = iota
	StateSelected
)

// Block is one contiguous run of material on a track. For video, End is
// the last frame of the run; for audio it is the frame that stops the
// audio.
type Block struct {
	Start event.ID
	End   event.ID
	State State
	// Ordered is false when source frames do not advance one by one.
	Ordered bool
	// UID survives edits and undo, so a block can be found again.
	UID uuid.UUID
	// OffsetStart is the source time, in ticks, shown at Start.
	OffsetStart int64

	track *Track
}

// Track returns the track holding b, or nil once removed.
func (b *Block) Track() *Track { return b.track }

// StartEvent returns the first event of b.
func (b *Block) StartEvent() *event.Event {
	if b.track == nil {
		return nil
	}

	return b.track.list.Get(b.Start)
}

// EndEvent returns the last event of b.
func (b *Block) EndEvent() *event.Event {
	if b.track == nil {
		return nil
	}

	return b.track.list.Get(b.End)
}

// StartTC returns the timecode b starts at.
func (b *Block) StartTC() int64 {
	if e := b.StartEvent(); e != nil {
		return e.TC()
	}

	return 0
}

// EndTC returns the timecode of the last event of b.
func (b *Block) EndTC() int64 {
	if e := b.EndEvent(); e != nil {
		return e.TC()
	}

	return b.StartTC()
}

// Limit returns the first timecode past b.
func (b *Block) Limit() int64 {
	if b.track == nil || b.track.Kind == KindAudio {
		return b.EndTC()
	}

	return b.EndTC() + event.FrameDuration(b.track.list.FPS)
}

// Duration returns the length of b in ticks.
func (b *Block) Duration() int64 { return b.Limit() - b.StartTC() }

// Contains reports whether tc falls inside b.
func (b *Block) Contains(tc int64) bool { return tc >= b.StartTC() && tc < b.Limit() }

// Selected reports whether b is selected.
func (b *Block) Selected() bool { return b.State == StateSelected }

// Toggle flips the selection state of b.
func (b *Block) Toggle() {
	if b.State == StateSelected {
		b.State = StateUnselected
	} else {
		b.State = StateSelected
	}
}

// Next returns the block after b on its track.
func (b *Block) Next() *Block {
	if b.track == nil {
		return nil
	}

	i := b.track.indexOf(b)
	if i < 0 || i+1 >= len(b.track.blocks) {
		return nil
	}

	return b.track.blocks[i+1]
}

// Prev returns the block before b on its track.
func (b *Block) Prev() *Block {
	if b.track == nil {
		return nil
	}

	i := b.track.indexOf(b)
	if i <= 0 {
		return nil
	}

	return b.track.blocks[i-1]
}

// String formats b for logs.
func (b *Block) String() string {
	return fmt.Sprintf("block %s [%d,%d)", b.UID.String()[:8], b.StartTC(), b.Limit())
}

// Track is one timeline track. Video tracks number from 0; backing audio
// tracks use negative numbers and per-track audio shares the number of its
// video track.
type Track struct {
	Index int
	Kind  Kind
	Name  string

	// PairedAudio is the audio track following this video track.
	PairedAudio *Track
	// PairedVideo is the video track this audio track follows.
	PairedVideo *Track

	list   *event.List
	blocks []*Block
}

// New creates an empty track over l.
func New(l *event.List, index int, kind Kind) *Track {
	name := fmt.Sprintf("%s %d", kind, index)
	if kind == KindAudio && index < 0 {
		name = fmt.Sprintf("backing audio %d", -index)
	}

	return &Track{Index: index, Kind: kind, Name: name, list: l}
}

// Pair links a video track and its audio track.
func Pair(video, audio *Track) {
	video.PairedAudio = audio
	audio.PairedVideo = video
}

// List returns the event list the track overlays.
func (t *Track) List() *event.List { return t.list }

// Len returns the number of blocks.
func (t *Track) Len() int { return len(t.blocks) }

// Blocks returns the blocks in time order.
func (t *Track) Blocks() []*Block { return slices.Clone(t.blocks) }

// First returns the earliest block.
func (t *Track) First() *Block {
	if len(t.blocks) == 0 {
		return nil
	}

	return t.blocks[0]
}

// Last returns the latest block.
func (t *Track) Last() *Block {
	if len(t.blocks) == 0 {
		return nil
	}

	return t.blocks[len(t.blocks)-1]
}

// Clear removes every block.
func (t *Track) Clear() {
	for _, b := range t.blocks {
		b.track = nil
	}

	t.blocks = nil
}

// Insert adds b in time order.
func (t *Track) Insert(b *Block) {
	b.track = t

	if b.UID == uuid.Nil {
		b.UID = uuid.New()
	}

	start := b.StartTC()
	i := sort.Search(len(t.blocks), func(i int) bool { return t.blocks[i].StartTC() > start })
	t.blocks = slices.Insert(t.blocks, i, b)
}

// Remove takes b off the track.
func (t *Track) Remove(b *Block) error {
	i := t.indexOf(b)
	if i < 0 {
		return ErrNotOnTrack
	}

	t.blocks = slices.Delete(t.blocks, i, i+1)
	b.track = nil

	return nil
}

// ByUID finds a block by its identifier.
func (t *Track) ByUID(uid uuid.UUID) *Block {
	for _, b := range t.blocks {
		if b.UID == uid {
			return b
		}
	}

	return nil
}

func (t *Track) indexOf(b *Block) int {
	if b == nil || b.track != t {
		return -1
	}

	start := b.StartTC()
	i := sort.Search(len(t.blocks), func(i int) bool { return t.blocks[i].StartTC() >= start })

	for ; i < len(t.blocks) && t.blocks[i].StartTC() == start; i++ {
		if t.blocks[i] == b {
			return i
		}
	}

	return slices.Index(t.blocks, b)
}

// BlockAt returns the block covering tc, or nil in a gap.
func (t *Track) BlockAt(tc int64) *Block {
	i := sort.Search(len(t.blocks), func(i int) bool { return t.blocks[i].Limit() > tc })
	if i < len(t.blocks) && t.blocks[i].Contains(tc) {
		return t.blocks[i]
	}

	return nil
}

// BlockBefore returns the last block ending at or before tc. With
// allowCurrent a block covering tc is returned instead.
func (t *Track) BlockBefore(tc int64, allowCurrent bool) *Block {
	if allowCurrent {
		if b := t.BlockAt(tc); b != nil {
			return b
		}
	}

	i := sort.Search(len(t.blocks), func(i int) bool { return t.blocks[i].Limit() > tc })
	if i == 0 {
		return nil
	}

	return t.blocks[i-1]
}

// BlockAfter returns the first block starting after tc. With allowCurrent a
// block covering tc is returned instead.
func (t *Track) BlockAfter(tc int64, allowCurrent bool) *Block {
	if allowCurrent {
		if b := t.BlockAt(tc); b != nil {
			return b
		}
	}

	i := sort.Search(len(t.blocks), func(i int) bool { return t.blocks[i].StartTC() > tc })
	if i == len(t.blocks) {
		return nil
	}

	return t.blocks[i]
}

// AddBlockStartPoint opens a block at start while scanning a list in time
// order. When the last block runs straight into start without a break the
// last block is continued and returned instead.
func (t *Track) AddBlockStartPoint(start *event.Event, offset int64, ordered bool) *Block {
	if last := t.Last(); last != nil && t.continues(last, start, ordered) {
		return last
	}

	b := &Block{
		Start:       start.ID(),
		End:         start.ID(),
		Ordered:     ordered,
		UID:         uuid.New(),
		OffsetStart: offset,
		track:       t,
	}

	t.blocks = append(t.blocks, b)

	return b
}

// AddBlockEndPoint closes the last block at end.
func (t *Track) AddBlockEndPoint(end *event.Event) {
	if last := t.Last(); last != nil {
		last.End = end.ID()
	}
}

// continues reports whether start extends last: same clip, contiguous
// source material, both ordered and no block-start marker naming the track.
func (t *Track) continues(last *Block, start *event.Event, ordered bool) bool {
	if !last.Ordered || !ordered || t.list.MarkerNames(start, event.MarkerBlockStart, t.Index) {
		return false
	}

	end := last.EndEvent()
	if end == nil {
		return false
	}

	if t.Kind == KindAudio {
		return t.continuesAudio(last, end, start)
	}

	prev := t.list.PrevFrame(start)
	if prev == nil || prev.ID() != end.ID() {
		return false
	}

	pf, sf := prev.Frame(), start.Frame()

	return pf.Clip(t.Index) == sf.Clip(t.Index) && pf.FrameNum(t.Index)+1 == sf.FrameNum(t.Index)
}

func (t *Track) continuesAudio(last *Block, end, start *event.Event) bool {
	if end.ID() != start.ID() {
		return false
	}

	first := last.StartEvent()
	if first == nil || event.AudioClip(first, t.Index) != event.AudioClip(start, t.Index) {
		return false
	}

	vel := event.AudioVelocity(first, t.Index)
	if vel != event.AudioVelocity(start, t.Index) {
		return false
	}

	elapsed := float64(start.TC()-first.TC()) / event.TicksPerSecond * vel
	want := event.AudioSeekTime(first, t.Index) + elapsed

	return seekClose(event.AudioSeekTime(start, t.Index), want, t.list.FPS)
}

// seekClose reports whether two seek times fall within half a frame.
func seekClose(a, b, fps float64) bool {
	tol := 0.5
	if fps > 0 {
		tol = 0.5 / fps
	}

	d := a - b

	return d < tol && d > -tol
}

// Split cuts b at the frame at: b keeps the material before it and a new
// block, returned, takes the rest. Video blocks end on the frame before at;
// audio blocks stop at at, where the new one starts.
func (t *Track) Split(b *Block, at *event.Event) (*Block, error) {
	if b.track != t {
		return nil, ErrNotOnTrack
	}

	if at == nil || !at.Is(event.KindFrame) || at.TC() <= b.StartTC() || at.TC() >= b.Limit() {
		return nil, ErrBadSplit
	}

	nb := &Block{
		Start:       at.ID(),
		End:         b.End,
		State:       b.State,
		Ordered:     b.Ordered,
		UID:         uuid.New(),
		OffsetStart: b.OffsetStart + (at.TC() - b.StartTC()),
	}

	if t.Kind == KindAudio {
		b.End = at.ID()
	} else {
		prev := t.list.PrevFrame(at)
		if prev == nil || prev.TC() < b.StartTC() {
			return nil, ErrBadSplit
		}

		b.End = prev.ID()
	}

	t.Insert(nb)

	return nb, nil
}

// Check verifies that blocks are sorted and do not overlap.
func (t *Track) Check() error {
	for i, b := range t.blocks {
		if b.StartEvent() == nil || b.EndEvent() == nil {
			return fmt.Errorf("%w: %s on %s", ErrDangling, b.UID, t.Name)
		}

		if i > 0 && t.blocks[i-1].Limit() > b.StartTC() {
			return fmt.Errorf("%w: %s and %s on %s", ErrOverlap, t.blocks[i-1], b, t.Name)
		}
	}

	return nil
}
