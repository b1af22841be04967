package multitrack

import (
	"fmt"

	"github.com/Sumatoshi-tech/cutfang/pkg/event"
	"github.com/Sumatoshi-tech/cutfang/pkg/fx"
	"github.com/Sumatoshi-tech/cutfang/pkg/plant"
	"github.com/Sumatoshi-tech/cutfang/pkg/undo"
)

// frameAt returns the frame at the quantised tc.
func (e *Editor) frameAt(tc int64) (*event.Event, error) {
	f := e.list.FrameAt(event.Quantise(tc, e.list.FPS), nil, true)
	if f == nil {
		return nil, fmt.Errorf("%w: %d", ErrNoFrame, tc)
	}

	return f, nil
}

func (e *Editor) instance(id event.ID) (*event.Event, error) {
	fi := e.list.Get(id)
	if !fi.Is(event.KindFilterInit) {
		return nil, fmt.Errorf("%w: %d", ErrNoEffect, id)
	}

	return fi, nil
}

// ApplyEffect switches the named filter on for the frames start..end,
// reading tracks and writing the first of them. It returns the init.
func (e *Editor) ApplyEffect(name string, tracks []int, start, end int64) (event.ID, error) {
	f, err := e.filters.ByName(name)
	if err != nil {
		return 0, fmt.Errorf("apply effect: %w", err)
	}

	_, err = e.resolveTracks(tracks)
	if err != nil {
		return 0, err
	}

	from, err := e.frameAt(start)
	if err != nil {
		return 0, err
	}

	to, err := e.frameAt(end)
	if err != nil {
		return 0, err
	}

	var id event.ID

	err = e.edit(undo.ActionApplyFilter, func() error {
		fi, addErr := fx.AddEffect(e.list, e.filters, f, from, to, tracks, tracks[:min(1, len(tracks))])
		if addErr != nil {
			return fmt.Errorf("apply %s: %w", name, addErr)
		}

		id = fi.ID()

		return nil
	})
	if err != nil {
		return 0, err
	}

	return id, nil
}

// DeleteEffect removes an effect instance with all its changes.
func (e *Editor) DeleteEffect(id event.ID) error {
	fi, err := e.instance(id)
	if err != nil {
		return err
	}

	if id == e.avol {
		return fmt.Errorf("%w: %d", ErrManagedEffect, id)
	}

	return e.edit(undo.ActionDeleteFilter, func() error {
		fx.RemoveFilter(e.list, e.filters, fi)

		return nil
	})
}

// SetEffectParam sets parameter index of an instance from the frame at tc.
func (e *Editor) SetEffectParam(id event.ID, tc int64, index int, value plant.Value) error {
	fi, err := e.instance(id)
	if err != nil {
		return err
	}

	at, err := e.frameAt(tc)
	if err != nil {
		return err
	}

	return e.edit(undo.ActionApplyFilter, func() error {
		_, setErr := fx.SetParam(e.list, e.filters, fi, at, index, value)

		return setErr
	})
}

// MoveEffectInMap reorders an instance next to neighbour in the maps they
// share.
func (e *Editor) MoveEffectInMap(id, neighbour event.ID, before bool) error {
	fi, err := e.instance(id)
	if err != nil {
		return err
	}

	nb, err := e.instance(neighbour)
	if err != nil {
		return err
	}

	return e.edit(undo.ActionFilterMapChange, func() error {
		if !fx.MoveInitInFilterMap(e.list, e.filters, fi, nb, before) {
			return fmt.Errorf("%w: %d next to %d", ErrMapOrder, id, neighbour)
		}

		return nil
	})
}

// Effects returns the init of every effect instance in time order.
func (e *Editor) Effects() []event.ID {
	inits := fx.Instances(e.list)
	out := make([]event.ID, len(inits))

	for i, fi := range inits {
		out[i] = fi.ID()
	}

	return out
}
