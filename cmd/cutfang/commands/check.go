package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/cutfang/pkg/layoutmap"
	"github.com/Sumatoshi-tech/cutfang/pkg/multitrack"
	"github.com/Sumatoshi-tech/cutfang/pkg/observability"
	"github.com/Sumatoshi-tech/cutfang/pkg/rectify"
	"github.com/Sumatoshi-tech/cutfang/pkg/report"
)

// ErrRepairsFound is returned by check --strict when a layout needed
// error-level repairs.
var ErrRepairsFound = errors.New("layout needed repairs")

type checkCommand struct {
	resave bool
	strict bool
}

// NewCheckCommand creates the check command.
func NewCheckCommand(opts *Options) *cobra.Command {
	cc := &checkCommand{}

	cmd := &cobra.Command{
		Use:   "check <layout>...",
		Short: "Load and rectify layouts, printing every repair",
		Long: `Load each layout the way the editor does, repairing what it must, and
print the repair log. With --resave the repaired layout replaces the file
and the set's layout.map is updated.`,
		Args: cobra.MinimumNArgs(1),
		RunE: opts.run("check", cc.run),
	}

	cmd.Flags().BoolVar(&cc.resave, "resave", false, "Write repaired layouts back (default from rectify.resave)")
	cmd.Flags().BoolVar(&cc.strict, "strict", false, "Fail when a layout needed error-level repairs")

	return cmd
}

func (cc *checkCommand) run(ctx context.Context, s *session, cmd *cobra.Command, args []string) error {
	resave := s.cfg.Rectify.Resave
	if cmd.Flags().Changed("resave") {
		resave = cc.resave
	}

	var failed []string

	for _, path := range args {
		res, err := cc.check(observability.WithLayout(ctx, filepath.Base(path)), s, cmd, path, resave)
		if err != nil {
			return err
		}

		if cc.strict && hasErrors(res) {
			failed = append(failed, path)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("%w: %v", ErrRepairsFound, failed)
	}

	return nil
}

func (cc *checkCommand) check(ctx context.Context, s *session, cmd *cobra.Command, path string, resave bool) (*rectify.Result, error) {
	ed, err := s.editor()
	if err != nil {
		return nil, err
	}

	res, err := ed.LoadFile(ctx, path, nil)
	if err != nil {
		return res, err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d events, %d repairs\n", path, ed.List().Len(), len(res.Log))

	if len(res.Log) > 0 {
		report.RepairTable(out, res)

		if s.cfg.Rectify.LogRepairs {
			for _, e := range res.Log {
				s.logger.InfoContext(ctx, "repair", "kind", string(e.Kind), "detail", e.Detail, "tc", e.TC)
			}
		}
	}

	if !resave || len(res.Log) == 0 {
		return res, nil
	}

	err = ed.SaveFile(ctx, path, s.cfg.Layout.Compress)
	if err != nil {
		return res, err
	}

	return res, recordLayout(s, path, ed)
}

// recordLayout updates layout.map of the configured set after path was
// written. Without a set directory there is no map to keep.
func recordLayout(s *session, path string, ed *multitrack.Editor) error {
	if s.cfg.Layout.SetDir == "" {
		return nil
	}

	dir, err := filepath.Abs(s.cfg.Layout.SetDir)
	if err != nil {
		return fmt.Errorf("resolve set dir: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	m, err := layoutmap.Load(dir)
	if err != nil {
		return err
	}

	m.Update(abs, ed.List(), ed.Clips())

	return layoutmap.Save(dir, m)
}

func hasErrors(res *rectify.Result) bool {
	for _, e := range res.Log {
		if report.SeverityOf(e.Kind) == report.SeverityError {
			return true
		}
	}

	return false
}
