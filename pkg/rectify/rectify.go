// Package rectify validates and repairs a freshly loaded event list. Every
// event that cannot be made consistent is dropped and logged; the pass only
// fails as a whole when the list ends up empty or holds more concurrently
// active effect instances than the translation table can track.
package rectify

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Sumatoshi-tech/cutfang/pkg/clip"
	"github.com/Sumatoshi-tech/cutfang/pkg/event"
	"github.com/Sumatoshi-tech/cutfang/pkg/filter"
	"github.com/Sumatoshi-tech/cutfang/pkg/layout"
)

// DefaultMaxInstances bounds the translation table when the context does not.
const DefaultMaxInstances = 256

// Sentinel errors.
var (
	ErrTooManyEffects = errors.New("too many active effects")
	ErrEmptyList      = errors.New("event list is empty after rectification")
	ErrNoFilters      = errors.New("rectification needs a filter registry")
)

// Kind classifies a repair.
type Kind string

// Repair kinds.
const (
	KindUndecodable     Kind = "undecodable_event"
	KindOutOfOrder      Kind = "out_of_order"
	KindUnknownFilter   Kind = "unknown_filter"
	KindBadCounts       Kind = "bad_channel_counts"
	KindOrphanDeinit    Kind = "orphan_deinit"
	KindMapEntry        Kind = "unresolved_map_entry"
	KindOrphanParam     Kind = "orphan_param_change"
	KindParamIndex      Kind = "param_index_out_of_range"
	KindParamSeed       Kind = "param_type_mismatch"
	KindParamReinit     Kind = "reinit_param_changed"
	KindParamDuplicate  Kind = "duplicate_param_change"
	KindDuplicateFrame  Kind = "duplicate_frame"
	KindMalformedFrame  Kind = "malformed_frame"
	KindMissingClip     Kind = "missing_clip"
	KindMissingFrame    Kind = "missing_frame"
	KindResampled       Kind = "resampled_frame"
	KindMissingAudio    Kind = "missing_audio_clip"
	KindBadMarker       Kind = "bad_marker"
	KindBlankFilled     Kind = "blank_frame_inserted"
	KindInstanceClosed  Kind = "instance_closed"
	KindInstanceDeleted Kind = "instance_deleted"
	KindInitMoved       Kind = "init_moved"
	KindParamMoved      Kind = "param_change_moved"
	KindParamDeleted    Kind = "param_change_deleted"
	KindDeinitMoved     Kind = "deinit_moved"
	KindMapsRebuilt     Kind = "filter_maps_rebuilt"
	KindAudioClosed     Kind = "audio_closed"
	KindTrimmed         Kind = "blank_frames_trimmed"
)

// Entry is one line of the repair log.
type Entry struct {
	Kind   Kind
	Detail int64
	TC     int64
}

// String formats the entry for logs and reports.
func (e Entry) String() string {
	return fmt.Sprintf("%s detail=%d tc=%d", e.Kind, e.Detail, e.TC)
}

// Result reports what a run repaired.
type Result struct {
	Log []Entry

	// MissingClips lists saved clip numbers that no longer resolve.
	MissingClips []int
	// MissingFrames is set when a frame number fell outside its clip.
	MissingFrames bool
	// UnknownFilters lists filter hashes with no installed filter.
	UnknownFilters []string

	NeedsBackingAudio  bool
	NeedsPerTrackAudio bool
}

// Repaired reports whether any repair was made.
func (r *Result) Repaired() bool { return len(r.Log) > 0 }

// Count returns the number of entries of kind k.
func (r *Result) Count(k Kind) int {
	n := 0

	for _, e := range r.Log {
		if e.Kind == k {
			n++
		}
	}

	return n
}

// Context carries everything one rectification needs. It is read-only
// during the run; all pass state lives in the run itself.
type Context struct {
	Filters filter.Source

	// Clips validates clip references; nil trusts every reference.
	Clips clip.Source
	// Renumber translates clip numbers saved with the layout.
	Renumber *clip.Mapping

	// MaxInstances bounds concurrently active instances; zero means
	// DefaultMaxInstances.
	MaxInstances int

	// Audio configuration of the session.
	BackingAudioTracks int
	PerTrackAudio      bool

	// Rejected are the plants the loader could not decode.
	Rejected []layout.Reject

	Logger *slog.Logger
}

func (c *Context) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}

	return slog.Default()
}

func (c *Context) maxInstances() int {
	if c.MaxInstances > 0 {
		return c.MaxInstances
	}

	return DefaultMaxInstances
}

// Run rectifies l in place. On ErrTooManyEffects l is left untouched; on
// ErrEmptyList it holds the (empty) repaired list.
func (c *Context) Run(l *event.List) (*Result, error) {
	if c.Filters == nil {
		return nil, ErrNoFilters
	}

	r := &run{ctx: c, res: &Result{}, out: event.NewList(l.FPS)}

	for _, rej := range c.Rejected {
		r.log(KindUndecodable, int64(rej.Index), rej.TC)
	}

	err := r.forward(l)
	if err != nil {
		return r.res, err
	}

	r.repair()

	l.ReplaceEvents(r.out)

	log := c.logger()
	for _, e := range r.res.Log {
		log.Debug("rectify repair", "kind", string(e.Kind), "detail", e.Detail, "tc", e.TC)
	}

	log.Info("rectified event list",
		"events", l.Len(), "repairs", len(r.res.Log),
		"missing_clips", len(r.res.MissingClips), "missing_frames", r.res.MissingFrames)

	if l.Empty() {
		return r.res, ErrEmptyList
	}

	return r.res, nil
}

// run is the state of one rectification.
type run struct {
	ctx *Context
	res *Result
	out *event.List

	lastTC    int64
	lastFrame int64
	hasFrame  bool

	table *table
}

func (r *run) log(k Kind, detail, tc int64) {
	r.res.Log = append(r.res.Log, Entry{Kind: k, Detail: detail, TC: tc})
}

func (r *run) missingClip(saved int) {
	if !slices.Contains(r.res.MissingClips, saved) {
		r.res.MissingClips = append(r.res.MissingClips, saved)
	}
}
