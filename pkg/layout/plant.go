// Package layout reads and writes event lists in the layout file format: a
// header plant describing the composition followed by one plant per event.
package layout

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/cutfang/pkg/event"
	"github.com/Sumatoshi-tech/cutfang/pkg/plant"
)

// Leaf keys of the header and event plants.
const (
	KeyFPS           = "fps"
	KeyWidth         = "width"
	KeyHeight        = "height"
	KeyAudioChannels = "audio_channels"
	KeyAudioRate     = "audio_rate"
	KeyAudioSampSize = "audio_sample_size"
	KeyAudioSigned   = "audio_signed"
	KeyAudioEndian   = "audio_endian"
	KeyAPIVersion    = "weed_event_api_version"
	KeyHint          = "hint"
	KeyTimecode      = "timecode"
	KeyEventID       = "event_id"
	KeyClips         = "clips"
	KeyFrames        = "frames"
	KeyAudioClips    = "audio_clips"
	KeyAudioSeeks    = "audio_seeks"
	KeyFilter        = "filter"
	KeyInTracks      = "in_tracks"
	KeyOutTracks     = "out_tracks"
	KeyInCount       = "in_count"
	KeyInParameters  = "in_parameters"
	KeyDeinitEvent   = "deinit_event"
	KeyInitEvent     = "init_event"
	KeyInitEvents    = "init_events"
	KeyIndex         = "index"
	KeyValue         = "value"
	KeyNextChange    = "next_change"
	KeyPrevChange    = "prev_change"
	KeyIgnore        = "ignore"
	KeyHostTag       = "host_tag"
	KeyMarkerType    = "lives_type"
	KeyMarkerTracks  = "tracks"
)

const (
	endianBig         = 1
	audioPairElements = 2
)

// Sentinel errors.
var (
	ErrNotLayout   = errors.New("not a layout stream")
	ErrTruncated   = errors.New("layout stream truncated")
	ErrBadEvent    = errors.New("undecodable event")
	ErrUnknownHint = errors.New("unknown event hint")
	ErrDuplicateID = errors.New("duplicate event id")
)

// HeaderPlant builds the header plant of l.
func HeaderPlant(l *event.List) *plant.Plant {
	p := plant.New(plant.TypeEventList)
	p.Set(KeyFPS, plant.Floats(l.FPS))
	p.Set(KeyWidth, plant.Ints(l.Width))
	p.Set(KeyHeight, plant.Ints(l.Height))
	p.Set(KeyAPIVersion, plant.Ints(l.APIVersion))

	if l.Audio.Channels > 0 {
		endian := 0
		if l.Audio.BigEndian {
			endian = endianBig
		}

		p.Set(KeyAudioChannels, plant.Ints(l.Audio.Channels))
		p.Set(KeyAudioRate, plant.Ints(l.Audio.Rate))
		p.Set(KeyAudioSampSize, plant.Ints(l.Audio.SampleSize))
		p.Set(KeyAudioSigned, plant.Bools(l.Audio.Signed))
		p.Set(KeyAudioEndian, plant.Ints(endian))
	}

	return p
}

// listFromHeader creates an empty list configured from a header plant.
func listFromHeader(p *plant.Plant) (*event.List, error) {
	if p.Type() != plant.TypeEventList {
		return nil, fmt.Errorf("%w: plant type %d", ErrNotLayout, p.Type())
	}

	fps, err := p.Float(KeyFPS)
	if err != nil || fps <= 0 {
		return nil, fmt.Errorf("%w: missing frame rate", ErrNotLayout)
	}

	l := event.NewList(fps)
	l.Width = optInt(p, KeyWidth)
	l.Height = optInt(p, KeyHeight)

	if v, verr := p.Int(KeyAPIVersion); verr == nil {
		l.APIVersion = v
	}

	if p.Has(KeyAudioChannels) {
		l.Audio = event.AudioFormat{
			Channels:   optInt(p, KeyAudioChannels),
			Rate:       optInt(p, KeyAudioRate),
			SampleSize: optInt(p, KeyAudioSampSize),
			BigEndian:  optInt(p, KeyAudioEndian) == endianBig,
		}

		if signed, serr := p.Bool(KeyAudioSigned); serr == nil {
			l.Audio.Signed = signed
		}
	}

	return l, nil
}

func optInt(p *plant.Plant, key string) int {
	v, err := p.Int(key)
	if err != nil {
		return 0
	}

	return v
}

func refs(ids []event.ID) plant.Value {
	out := make([]uint64, len(ids))
	for i, id := range ids {
		out[i] = uint64(id)
	}

	return plant.Refs(out...)
}

func ref(id event.ID) plant.Value {
	return plant.Refs(uint64(id))
}

func toIDs(raw []uint64) []event.ID {
	out := make([]event.ID, len(raw))
	for i, r := range raw {
		out[i] = event.ID(r)
	}

	return out
}

// EventPlant encodes e. References are written as the arena identifiers of
// their targets.
func EventPlant(e *event.Event) *plant.Plant {
	p := plant.New(plant.TypeEvent)
	p.Set(KeyHint, plant.Ints(int(e.Kind())))
	p.Set(KeyTimecode, plant.Int64s(e.TC()))
	p.Set(KeyEventID, ref(e.ID()))

	switch b := e.Body.(type) {
	case *event.Frame:
		p.Set(KeyClips, plant.Ints(b.Clips...))
		p.Set(KeyFrames, plant.Int64s(b.Frames...))

		if len(b.Audio) > 0 {
			clips := make([]int, 0, len(b.Audio)*audioPairElements)
			seeks := make([]float64, 0, len(b.Audio)*audioPairElements)

			for _, a := range b.Audio {
				clips = append(clips, a.Track, a.Clip)
				seeks = append(seeks, a.Seek, a.Velocity)
			}

			p.Set(KeyAudioClips, plant.Ints(clips...))
			p.Set(KeyAudioSeeks, plant.Floats(seeks...))
		}
	case *event.FilterInit:
		p.Set(KeyFilter, plant.Strings(b.Filter))
		p.Set(KeyInTracks, plant.Ints(b.InTracks...))
		p.Set(KeyOutTracks, plant.Ints(b.OutTracks...))

		if len(b.InCounts) > 0 {
			p.Set(KeyInCount, plant.Ints(b.InCounts...))
		}

		p.Set(KeyInParameters, refs(b.InParams))
		p.Set(KeyDeinitEvent, ref(b.Deinit))

		if b.HostTag != "" {
			p.Set(KeyHostTag, plant.Strings(b.HostTag))
		}
	case *event.FilterDeinit:
		p.Set(KeyInitEvent, ref(b.Init))
		p.Set(KeyInParameters, refs(b.InParams))
	case *event.FilterMap:
		p.Set(KeyInitEvents, refs(b.Inits))
	case *event.ParamChange:
		p.Set(KeyInitEvent, ref(b.Init))
		p.Set(KeyIndex, plant.Ints(b.Index))
		p.Set(KeyValue, b.Value.Clone())
		p.Set(KeyNextChange, ref(b.Next))
		p.Set(KeyPrevChange, ref(b.Prev))

		if len(b.Ignore) > 0 {
			p.Set(KeyIgnore, plant.Bools(b.Ignore...))
		}
	case *event.Marker:
		p.Set(KeyMarkerType, plant.Ints(int(b.Type)))

		if b.Tracks != nil {
			p.Set(KeyMarkerTracks, plant.Ints(b.Tracks...))
		}
	}

	return p
}

// Decoded is one event plant decoded into a body. ID is the identifier the
// event was saved under, zero when the plant carried none.
type Decoded struct {
	ID   event.ID
	TC   int64
	Body event.Body
}

// DecodeEvent turns an event plant into a body. Optional leaves that are
// missing decode as empty; leaves a body cannot exist without are errors.
func DecodeEvent(p *plant.Plant) (Decoded, error) {
	var d Decoded

	if p.Type() != plant.TypeEvent {
		return d, fmt.Errorf("%w: plant type %d", ErrBadEvent, p.Type())
	}

	hint, err := p.Int(KeyHint)
	if err != nil {
		return d, fmt.Errorf("%w: %w", ErrBadEvent, err)
	}

	d.TC, err = p.Int64(KeyTimecode)
	if err != nil {
		return d, fmt.Errorf("%w: %w", ErrBadEvent, err)
	}

	if ids, rerr := p.Refs(KeyEventID); rerr == nil && len(ids) > 0 {
		d.ID = event.ID(ids[0])
	}

	switch event.Kind(hint) {
	case event.KindFrame:
		d.Body, err = decodeFrame(p)
	case event.KindFilterInit:
		d.Body, err = decodeInit(p)
	case event.KindFilterDeinit:
		d.Body = &event.FilterDeinit{Init: firstRef(p, KeyInitEvent), InParams: optRefs(p, KeyInParameters)}
	case event.KindFilterMap:
		d.Body = &event.FilterMap{Inits: optRefs(p, KeyInitEvents)}
	case event.KindParamChange:
		d.Body, err = decodeParam(p)
	case event.KindMarker:
		d.Body, err = decodeMarker(p)
	default:
		return d, fmt.Errorf("%w: %d", ErrUnknownHint, hint)
	}

	if err != nil {
		return d, fmt.Errorf("%w: %s: %w", ErrBadEvent, event.Kind(hint), err)
	}

	return d, nil
}

func firstRef(p *plant.Plant, key string) event.ID {
	ids := optRefs(p, key)
	if len(ids) == 0 {
		return 0
	}

	return ids[0]
}

func optRefs(p *plant.Plant, key string) []event.ID {
	raw, err := p.Refs(key)
	if err != nil {
		return nil
	}

	return toIDs(raw)
}

func decodeFrame(p *plant.Plant) (event.Body, error) {
	clips, err := p.IntArray(KeyClips)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by DecodeEvent.
	}

	frames, err := p.Int64Array(KeyFrames)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by DecodeEvent.
	}

	f := &event.Frame{Clips: clips, Frames: frames}

	if p.Has(KeyAudioClips) {
		aclips, cerr := p.IntArray(KeyAudioClips)
		if cerr != nil {
			return nil, cerr //nolint:wrapcheck // wrapped by DecodeEvent.
		}

		seeks, serr := p.FloatArray(KeyAudioSeeks)
		if serr != nil {
			return nil, serr //nolint:wrapcheck // wrapped by DecodeEvent.
		}

		for i := 0; i+1 < len(aclips) && i+1 < len(seeks); i += audioPairElements {
			f.Audio = append(f.Audio, event.AudioSeek{
				Track:    aclips[i],
				Clip:     aclips[i+1],
				Seek:     seeks[i],
				Velocity: seeks[i+1],
			})
		}
	}

	return f, nil
}

func decodeInit(p *plant.Plant) (event.Body, error) {
	hash, err := p.String(KeyFilter)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by DecodeEvent.
	}

	b := &event.FilterInit{
		Filter:   hash,
		InParams: optRefs(p, KeyInParameters),
		Deinit:   firstRef(p, KeyDeinitEvent),
	}

	b.InTracks, _ = p.IntArray(KeyInTracks)
	b.OutTracks, _ = p.IntArray(KeyOutTracks)
	b.InCounts, _ = p.IntArray(KeyInCount)
	b.HostTag, _ = p.String(KeyHostTag)

	return b, nil
}

func decodeParam(p *plant.Plant) (event.Body, error) {
	index, err := p.Int(KeyIndex)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by DecodeEvent.
	}

	v, ok := p.Get(KeyValue)
	if !ok {
		return nil, fmt.Errorf("%w: %s", plant.ErrNoLeaf, KeyValue)
	}

	b := &event.ParamChange{
		Init:  firstRef(p, KeyInitEvent),
		Index: index,
		Value: v.Clone(),
		Next:  firstRef(p, KeyNextChange),
		Prev:  firstRef(p, KeyPrevChange),
	}

	b.Ignore, _ = p.BoolArray(KeyIgnore)

	return b, nil
}

func decodeMarker(p *plant.Plant) (event.Body, error) {
	kind, err := p.Int(KeyMarkerType)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by DecodeEvent.
	}

	b := &event.Marker{Type: event.MarkerKind(kind)}

	if p.Has(KeyMarkerTracks) {
		b.Tracks, _ = p.IntArray(KeyMarkerTracks)
		if b.Tracks == nil {
			b.Tracks = []int{}
		}
	}

	return b, nil
}
