package multitrack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/cutfang/pkg/clip"
	"github.com/Sumatoshi-tech/cutfang/pkg/layout"
	"github.com/Sumatoshi-tech/cutfang/pkg/observability"
	"github.com/Sumatoshi-tech/cutfang/pkg/rectify"
)

const tracerName = "cutfang/multitrack"

// Save writes the timeline as a layout stream, with the markers needed to
// rebuild the blocks exactly.
func (e *Editor) Save(w io.Writer) error {
	err := e.withMarkers(func() error { return layout.Save(w, e.list, layout.SaveOptions{}) })
	if err != nil {
		return err
	}

	e.dirty = false

	return nil
}

// SaveFile writes the timeline to path. Background backups are held off
// while the file is written.
func (e *Editor) SaveFile(ctx context.Context, path string, compress bool) error {
	_, span := otel.Tracer(tracerName).Start(ctx, "cutfang.save",
		trace.WithAttributes(attribute.String("layout.path", path), attribute.Int("layout.events", e.list.Len())))
	defer span.End()

	if e.suspender != nil {
		e.suspender.Suspend()
		defer e.suspender.Resume()
	}

	err := e.withMarkers(func() error {
		return layout.SaveFile(path, e.list, layout.FileOptions{Compress: compress})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")

		return fmt.Errorf("save %s: %w", path, err)
	}

	e.dirty = false
	e.logger.InfoContext(ctx, "layout saved", "path", path, "events", e.list.Len())

	return nil
}

// WriteBackup writes the timeline for crash recovery. Unlike Save it leaves
// the dirty flag alone.
func (e *Editor) WriteBackup(w io.Writer) error {
	return e.withMarkers(func() error { return layout.Save(w, e.list, layout.SaveOptions{}) })
}

// Numbering returns the clip numbering to store next to a backup.
func (e *Editor) Numbering() []clip.Numbering { return e.clips.Numbering() }

// Load replaces the timeline with a layout stream. The stream is rectified
// first; numbering, when given, is the clip numbering saved with it. On
// error the current timeline is kept. The rectification result is returned
// whenever rectification ran.
func (e *Editor) Load(ctx context.Context, r io.Reader, numbering []clip.Numbering) (*rectify.Result, error) {
	loaded, err := layout.Load(r)

	return e.adopt(ctx, loaded, err, numbering)
}

// LoadFile loads the layout at path, compressed or not.
func (e *Editor) LoadFile(ctx context.Context, path string, numbering []clip.Numbering) (*rectify.Result, error) {
	loaded, err := layout.LoadFile(path)

	res, err := e.adopt(ctx, loaded, err, numbering)
	if err != nil {
		return res, fmt.Errorf("load %s: %w", path, err)
	}

	return res, nil
}

func (e *Editor) adopt(ctx context.Context, loaded *layout.Loaded, loadErr error, numbering []clip.Numbering) (*rectify.Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "cutfang.load")
	defer span.End()

	started := time.Now()

	if loadErr != nil {
		span.RecordError(loadErr)
		span.SetStatus(codes.Error, "layout unreadable")

		if errors.Is(loadErr, layout.ErrTruncated) {
			return nil, fmt.Errorf("%w: %w", ErrTruncatedInput, loadErr)
		}

		return nil, loadErr
	}

	rc := &rectify.Context{
		Filters:            e.filters,
		Clips:              e.clips,
		MaxInstances:       e.opts.MaxInstances,
		BackingAudioTracks: e.opts.BackingAudioTracks,
		PerTrackAudio:      e.opts.PerTrackAudio,
		Rejected:           loaded.Rejected,
		Logger:             e.logger,
	}

	if numbering != nil {
		rc.Renumber = e.clips.Renumber(numbering)
	}

	res, err := rc.Run(loaded.List)

	e.opts.Metrics.RecordLoad(ctx, observability.LoadStats{
		Events:   int64(loaded.List.Len()),
		Repairs:  int64(repairs(res)),
		Duration: time.Since(started),
		Failed:   err != nil,
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rectification failed")

		return res, fmt.Errorf("rectify: %w", err)
	}

	span.SetAttributes(attribute.Int("layout.events", loaded.List.Len()), attribute.Int("layout.repairs", len(res.Log)))

	if res.NeedsBackingAudio && e.opts.BackingAudioTracks == 0 {
		e.opts.BackingAudioTracks = 1
		e.logger.InfoContext(ctx, "backing audio enabled by layout")
	}

	if res.NeedsPerTrackAudio && !e.opts.PerTrackAudio {
		e.opts.PerTrackAudio = true
		e.logger.InfoContext(ctx, "per-track audio enabled by layout")
	}

	e.list = loaded.List
	e.opts.FPS = e.list.FPS
	e.history.Reset()
	e.rescan()
	e.findMixer()

	e.dirty = false
	e.generation++

	return res, nil
}

func repairs(res *rectify.Result) int {
	if res == nil {
		return 0
	}

	return len(res.Log)
}
