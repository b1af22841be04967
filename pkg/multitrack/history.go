package multitrack

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/cutfang/pkg/undo"
)

// CanUndo reports whether an edit can be undone.
func (e *Editor) CanUndo() bool { return e.history.CanUndo() }

// CanRedo reports whether an undone edit can be redone.
func (e *Editor) CanRedo() bool { return e.history.CanRedo() }

// UndoAction names the edit Undo would revert.
func (e *Editor) UndoAction() undo.Action { return e.history.UndoAction() }

// RedoAction names the edit Redo would repeat.
func (e *Editor) RedoAction() undo.Action { return e.history.RedoAction() }

// History returns the undo history.
func (e *Editor) History() *undo.Stack { return e.history }

// Undo reverts the last edit and returns its action. The overlay is rebuilt
// from the restored list; blocks keep their identifiers, so callers holding
// a block should look it up again with BlockByUID.
func (e *Editor) Undo() (undo.Action, error) {
	current, err := e.snapshot()
	if err != nil {
		return undo.ActionNone, err
	}

	rec, err := e.history.Undo(current, e.blockMeta())
	if err != nil {
		return undo.ActionNone, fmt.Errorf("undo: %w", err)
	}

	err = e.apply(rec)
	if err != nil {
		return undo.ActionNone, err
	}

	e.logger.Debug("undo", "action", rec.Action.String())

	return rec.Action, nil
}

// Redo repeats the last undone edit and returns its action.
func (e *Editor) Redo() (undo.Action, error) {
	action := e.history.RedoAction()

	rec, err := e.history.Redo()
	if err != nil {
		return undo.ActionNone, fmt.Errorf("redo: %w", err)
	}

	err = e.apply(rec)
	if err != nil {
		return undo.ActionNone, err
	}

	e.logger.Debug("redo", "action", action.String())

	return action, nil
}

func (e *Editor) apply(rec *undo.Record) error {
	data, err := rec.Snapshot()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRestore, err)
	}

	meta, _ := rec.Extra.(map[blockKey]blockMeta)

	err = e.restore(data, meta)
	if err != nil {
		return err
	}

	e.touch()
	e.opts.Metrics.RecordEdit(context.Background(), "undo", e.history.Used())

	return nil
}
