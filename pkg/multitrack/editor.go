// Package multitrack is the timeline editor. It keeps the event list, the
// block overlay of every track, the effect instances and the undo history
// in step through composite edit operations.
package multitrack

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Sumatoshi-tech/cutfang/pkg/clip"
	"github.com/Sumatoshi-tech/cutfang/pkg/event"
	"github.com/Sumatoshi-tech/cutfang/pkg/filter"
	"github.com/Sumatoshi-tech/cutfang/pkg/fx"
	"github.com/Sumatoshi-tech/cutfang/pkg/layout"
	"github.com/Sumatoshi-tech/cutfang/pkg/observability"
	"github.com/Sumatoshi-tech/cutfang/pkg/track"
	"github.com/Sumatoshi-tech/cutfang/pkg/undo"
)

// Sentinel errors.
var (
	ErrBadOptions     = errors.New("invalid editor options")
	ErrNoTrack        = errors.New("no such track")
	ErrNoBlock        = errors.New("block does not belong to this editor")
	ErrUnknownClip    = errors.New("unknown clip")
	ErrNoAudio        = errors.New("clip has no audio")
	ErrBadRange       = errors.New("invalid range")
	ErrOverlap        = errors.New("destination is occupied")
	ErrNoFrame        = errors.New("no frame at timecode")
	ErrNoEffect       = errors.New("no such effect instance")
	ErrManagedEffect  = errors.New("effect instance is managed by the editor")
	ErrMapOrder       = errors.New("effect order change not allowed")
	ErrRestore        = errors.New("cannot restore snapshot")
	ErrTruncatedInput = errors.New("layout is truncated")
)

// InsertMode decides what happens when an edit lands on occupied frames.
type InsertMode int

// Insert modes. Expand is accepted and behaves like Normal.
const (
	InsertNormal    InsertMode = 1
	InsertOverwrite InsertMode = 2
	InsertExpand    InsertMode = 3
)

// ParseInsertMode parses "normal", "overwrite" or "expand".
func ParseInsertMode(s string) (InsertMode, error) {
	switch strings.ToLower(s) {
	case "", "normal":
		return InsertNormal, nil
	case "overwrite":
		return InsertOverwrite, nil
	case "expand":
		return InsertExpand, nil
	default:
		return 0, fmt.Errorf("%w: insert mode %q", ErrBadOptions, s)
	}
}

// Gravity is the direction blocks slide after a move.
type Gravity int

// Gravity modes.
const (
	GravityNormal Gravity = iota
	GravityLeft
	GravityRight
)

// ParseGravity parses "normal", "left" or "right".
func ParseGravity(s string) (Gravity, error) {
	switch strings.ToLower(s) {
	case "", "normal":
		return GravityNormal, nil
	case "left":
		return GravityLeft, nil
	case "right":
		return GravityRight, nil
	default:
		return 0, fmt.Errorf("%w: gravity %q", ErrBadOptions, s)
	}
}

// Options configures an Editor.
type Options struct {
	FPS    float64
	Width  int
	Height int
	Audio  event.AudioFormat

	VideoTracks        int
	BackingAudioTracks int
	PerTrackAudio      bool

	InsertMode InsertMode
	Gravity    Gravity
	// MoveEffects makes effects fed only by a moved block follow it.
	MoveEffects bool

	// AudioVolume names the filter mixing all audio tracks; empty disables
	// the mixer.
	AudioVolume string

	UndoBudget   int64
	UndoCompress bool

	// MaxInstances bounds concurrently active effects on load.
	MaxInstances int

	Logger  *slog.Logger
	Metrics *observability.EngineMetrics
}

// Default option values.
const (
	DefaultFPS         = 25.0
	DefaultWidth       = 720
	DefaultHeight      = 576
	DefaultVideoTracks = 2
	DefaultAudioRate   = 48000
	DefaultChannels    = 2
	defaultSampleSize  = 16
)

// DefaultOptions returns the options of a fresh session.
func DefaultOptions() Options {
	return Options{
		FPS:                DefaultFPS,
		Width:              DefaultWidth,
		Height:             DefaultHeight,
		Audio:              event.AudioFormat{Channels: DefaultChannels, Rate: DefaultAudioRate, SampleSize: defaultSampleSize, Signed: true},
		VideoTracks:        DefaultVideoTracks,
		BackingAudioTracks: 1,
		InsertMode:         InsertNormal,
		Gravity:            GravityNormal,
		MoveEffects:        true,
		AudioVolume:        filter.NameAudioVolume,
		UndoBudget:         undo.DefaultBudget,
		UndoCompress:       true,
	}
}

func (o *Options) validate() error {
	if o.FPS <= 0 {
		return fmt.Errorf("%w: fps %v", ErrBadOptions, o.FPS)
	}

	if o.VideoTracks < 0 || o.BackingAudioTracks < 0 {
		return fmt.Errorf("%w: negative track count", ErrBadOptions)
	}

	switch o.InsertMode {
	case InsertNormal, InsertOverwrite, InsertExpand:
	case 0:
		o.InsertMode = InsertNormal
	default:
		return fmt.Errorf("%w: insert mode %d", ErrBadOptions, o.InsertMode)
	}

	if o.Gravity < GravityNormal || o.Gravity > GravityRight {
		return fmt.Errorf("%w: gravity %d", ErrBadOptions, o.Gravity)
	}

	return nil
}

// Suspender pauses background work around blocking saves.
type Suspender interface {
	Suspend()
	Resume()
}

// Editor owns one timeline. It is not safe for concurrent use.
type Editor struct {
	opts    Options
	list    *event.List
	filters *filter.Registry
	clips   *clip.Registry
	logger  *slog.Logger

	video []*track.Track
	audio []*track.Track

	history *undo.Stack

	avolFilter *filter.Filter
	avol       event.ID

	dirty      bool
	generation uint64
	suspender  Suspender
}

// New creates an editor with an empty timeline.
func New(opts Options, filters *filter.Registry, clips *clip.Registry) (*Editor, error) {
	err := opts.validate()
	if err != nil {
		return nil, err
	}

	if filters == nil {
		return nil, fmt.Errorf("%w: no filter registry", ErrBadOptions)
	}

	if clips == nil {
		clips, _ = clip.NewRegistry()
	}

	e := &Editor{
		opts:    opts,
		filters: filters,
		clips:   clips,
		logger:  opts.Logger,
		history: undo.New(opts.UndoBudget, opts.UndoCompress),
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}

	if opts.AudioVolume != "" {
		e.avolFilter, err = filters.ByName(opts.AudioVolume)
		if err != nil {
			return nil, fmt.Errorf("audio mixer: %w", err)
		}
	}

	e.list = event.NewList(opts.FPS)
	e.list.Width, e.list.Height = opts.Width, opts.Height
	e.list.Audio = opts.Audio

	e.buildTracks(opts.VideoTracks, opts.BackingAudioTracks)

	return e, nil
}

// List returns the event list. Callers must not edit it directly.
func (e *Editor) List() *event.List { return e.list }

// Options returns the options in effect; loading may switch audio support on.
func (e *Editor) Options() Options { return e.opts }

// Clips returns the clip registry.
func (e *Editor) Clips() *clip.Registry { return e.clips }

// Filters returns the filter registry.
func (e *Editor) Filters() *filter.Registry { return e.filters }

// VideoTracks returns the video tracks in index order.
func (e *Editor) VideoTracks() []*track.Track { return e.video }

// BackingAudioTracks returns the backing audio tracks; track -1 comes first.
func (e *Editor) BackingAudioTracks() []*track.Track { return e.audio }

// Dirty reports whether the timeline changed since it was loaded or saved.
func (e *Editor) Dirty() bool { return e.dirty }

// Generation increases with every change to the timeline.
func (e *Editor) Generation() uint64 { return e.generation }

// SetSuspender registers background work to pause during saves.
func (e *Editor) SetSuspender(s Suspender) { e.suspender = s }

// AudioMixer returns the init of the audio volume instance, or 0.
func (e *Editor) AudioMixer() event.ID { return e.avol }

// VideoTrack returns video track i.
func (e *Editor) VideoTrack(i int) (*track.Track, error) {
	if i < 0 || i >= len(e.video) {
		return nil, fmt.Errorf("%w: video %d", ErrNoTrack, i)
	}

	return e.video[i], nil
}

// AudioTrack returns an audio track: backing tracks are numbered -1, -2...
// and per-track audio shares the number of its video track.
func (e *Editor) AudioTrack(i int) (*track.Track, error) {
	if i < 0 {
		if -i > len(e.audio) {
			return nil, fmt.Errorf("%w: backing audio %d", ErrNoTrack, -i)
		}

		return e.audio[-i-1], nil
	}

	if i >= len(e.video) || e.video[i].PairedAudio == nil {
		return nil, fmt.Errorf("%w: audio %d", ErrNoTrack, i)
	}

	return e.video[i].PairedAudio, nil
}

// trackFor resolves the track an edit names: non-negative numbers are video
// tracks, negative ones backing audio.
func (e *Editor) trackFor(i int) (*track.Track, error) {
	if i < 0 {
		return e.AudioTrack(i)
	}

	return e.VideoTrack(i)
}

// Tracks returns every track: video, per-track audio, then backing audio.
func (e *Editor) Tracks() []*track.Track {
	out := make([]*track.Track, 0, 2*len(e.video)+len(e.audio))
	out = append(out, e.video...)

	for _, v := range e.video {
		if v.PairedAudio != nil {
			out = append(out, v.PairedAudio)
		}
	}

	return append(out, e.audio...)
}

// BlockByUID finds a block on any track.
func (e *Editor) BlockByUID(uid uuid.UUID) *track.Block {
	for _, t := range e.Tracks() {
		if b := t.ByUID(uid); b != nil {
			return b
		}
	}

	return nil
}

func (e *Editor) owns(b *track.Block) error {
	if b == nil || b.Track() == nil {
		return ErrNoBlock
	}

	for _, t := range e.Tracks() {
		if t == b.Track() {
			return nil
		}
	}

	return ErrNoBlock
}

func (e *Editor) buildTracks(videos, backing int) {
	e.video = make([]*track.Track, videos)

	for i := range videos {
		v := track.New(e.list, i, track.KindVideo)
		if e.opts.PerTrackAudio {
			track.Pair(v, track.New(e.list, i, track.KindAudio))
		}

		e.video[i] = v
	}

	e.audio = make([]*track.Track, backing)
	for j := range backing {
		e.audio[j] = track.New(e.list, -(j + 1), track.KindAudio)
	}
}

// rescan rebuilds the overlay from the list, growing the track set to cover
// every track the list uses, and removes the block markers.
func (e *Editor) rescan() {
	videos := max(e.opts.VideoTracks, e.list.MaxTracks())
	backing := e.opts.BackingAudioTracks

	for ev := range e.list.All() {
		if f := ev.Frame(); f != nil {
			for _, a := range f.Audio {
				if a.Track < 0 {
					backing = max(backing, -a.Track)
				} else if e.opts.PerTrackAudio {
					videos = max(videos, a.Track+1)
				}
			}
		}
	}

	e.buildTracks(videos, backing)
	track.Scan(e.list, e.Tracks(), e.rate)
	e.stripMarkers()
}

// stripMarkers removes the block markers of a loaded list. They were
// numbered after every other event when saved, so their identifiers go
// back to the allocator and the next save numbers them the same way.
func (e *Editor) stripMarkers() {
	var lowest event.ID

	for ev := range e.list.All() {
		if ev.Is(event.KindMarker) && (lowest == 0 || ev.ID() < lowest) {
			lowest = ev.ID()
		}
	}

	e.list.StripMarkers()
	e.list.ReleaseIDs(lowest)
}

func (e *Editor) rate(number int) float64 {
	if c, ok := e.clips.Clip(number); ok {
		return c.FPS
	}

	return 0
}

// frameTC returns the timecode n frames after tc.
func (e *Editor) frameTC(tc int64, n int) int64 {
	return event.FrameTC(event.FrameIndex(tc, e.list.FPS)+int64(n), e.list.FPS)
}

// withMarkers runs fn while the block markers are in the list. Marker
// identifiers are handed back afterwards, so repeated saves are identical.
func (e *Editor) withMarkers(fn func() error) error {
	mark := e.list.NextID()

	track.Mark(e.Tracks())

	err := fn()

	e.list.StripMarkers()
	e.list.ReleaseIDs(mark)

	return err
}

// blockKey names a block across a rescan: rebuilt blocks keep the event
// they start on.
type blockKey struct {
	kind  track.Kind
	index int
	start event.ID
}

type blockMeta struct {
	uid   uuid.UUID
	state track.State
}

func (e *Editor) blockMeta() map[blockKey]blockMeta {
	out := make(map[blockKey]blockMeta)

	for _, t := range e.Tracks() {
		for _, b := range t.Blocks() {
			out[blockKey{t.Kind, t.Index, b.Start}] = blockMeta{uid: b.UID, state: b.State}
		}
	}

	return out
}

func (e *Editor) applyMeta(meta map[blockKey]blockMeta) {
	for _, t := range e.Tracks() {
		for _, b := range t.Blocks() {
			if m, ok := meta[blockKey{t.Kind, t.Index, b.Start}]; ok {
				b.UID, b.State = m.uid, m.state
			}
		}
	}
}

func (e *Editor) snapshot() ([]byte, error) {
	var buf bytes.Buffer

	err := e.withMarkers(func() error { return layout.Save(&buf, e.list, layout.SaveOptions{}) })
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	return buf.Bytes(), nil
}

// restore replaces the timeline with a snapshot and rebuilds the overlay.
func (e *Editor) restore(data []byte, meta map[blockKey]blockMeta) error {
	loaded, err := layout.Load(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRestore, err)
	}

	e.list.ReplaceEvents(loaded.List)
	e.rescan()
	e.applyMeta(meta)
	e.findMixer()

	return nil
}

// edit runs fn as one undoable change. The state before fn is pushed to the
// history when fn succeeds; when it fails the timeline is put back.
func (e *Editor) edit(action undo.Action, fn func() error) error {
	before, err := e.snapshot()
	if err != nil {
		return err
	}

	meta := e.blockMeta()

	err = fn()
	if err != nil {
		e.rollback(before, meta)

		return err
	}

	pushErr := e.history.Push(action, meta, before)
	if pushErr != nil {
		e.logger.Warn("edit cannot be undone", "action", action.String(), "error", pushErr)
	}

	e.touch()
	e.opts.Metrics.RecordEdit(context.Background(), action.String(), e.history.Used())
	e.logger.Debug("edit", "action", action.String(), "events", e.list.Len())

	return nil
}

// rollback undoes a failed edit when it got as far as changing the list.
func (e *Editor) rollback(before []byte, meta map[blockKey]blockMeta) {
	after, err := e.snapshot()
	if err == nil && bytes.Equal(after, before) {
		return
	}

	restoreErr := e.restore(before, meta)
	if restoreErr != nil {
		e.logger.Error("rollback failed", "error", restoreErr)
	}
}

func (e *Editor) touch() {
	e.dirty = true
	e.generation++
}

// settle tidies the list after an edit: trailing blanks go, maps are
// normalised and the audio mixer spans the timeline again.
func (e *Editor) settle() error {
	fx.RemoveEndBlankFrames(e.list, e.filters, true)
	fx.NormaliseFilterMaps(e.list, e.filters)

	return e.updateMixer()
}

// mixerTracks lists the audio tracks the mixer reads.
func (e *Editor) mixerTracks() []int {
	var tracks []int

	for _, a := range e.audio {
		tracks = append(tracks, a.Index)
	}

	for _, v := range e.video {
		if v.PairedAudio != nil {
			tracks = append(tracks, v.Index)
		}
	}

	return tracks
}

func (e *Editor) updateMixer() error {
	if e.avolFilter == nil {
		return nil
	}

	current := e.list.Get(e.avol)

	tracks := e.mixerTracks()
	if len(tracks) == 0 || !e.list.HasAudio() {
		if current != nil {
			fx.RemoveFilter(e.list, e.filters, current)
		}

		e.avol = 0

		return nil
	}

	fi, err := fx.ApplyAvolFilter(e.list, e.filters, e.avolFilter, current, tracks)
	if err != nil {
		return fmt.Errorf("audio mixer: %w", err)
	}

	e.avol = 0
	if fi != nil {
		e.avol = fi.ID()
	}

	return nil
}

// findMixer picks up the audio volume instance of a rebuilt list.
func (e *Editor) findMixer() {
	e.avol = 0

	if e.avolFilter == nil {
		return
	}

	if fi := fx.FindInstance(e.list, e.avolFilter); fi != nil {
		e.avol = fi.ID()
	}
}
