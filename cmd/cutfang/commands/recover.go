package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/cutfang/pkg/checkpoint"
	"github.com/Sumatoshi-tech/cutfang/pkg/report"
	"github.com/Sumatoshi-tech/cutfang/pkg/safeconv"
)

// NewRecoverCommand creates the recover command group.
func NewRecoverCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Inspect, restore or discard crash-recovery backups",
		Long: `Crash-recovery backups are the layout.<uid>.<gid>.<pid> files an editing
session leaves in the backup directory when it dies. Only backups of
processes that are no longer running are considered.`,
	}

	cmd.AddCommand(newRecoverListCommand(opts), newRecoverRestoreCommand(opts), newRecoverDiscardCommand(opts))

	return cmd
}

func backupManager(s *session) *checkpoint.Manager {
	dir := s.cfg.Backup.Dir
	if dir == "" {
		dir = checkpoint.DefaultDir()
	}

	m := checkpoint.NewManager(dir)
	m.Logger = s.logger
	m.Metrics = s.engine

	return m
}

func newRecoverListCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recoverable backups, newest first",
		Args:  cobra.NoArgs,
		RunE: opts.run("recover.list", func(_ context.Context, s *session, cmd *cobra.Command, _ []string) error {
			m := backupManager(s)

			candidates, err := m.Candidates()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if len(candidates) == 0 {
				fmt.Fprintf(out, "no backups in %s\n", m.Dir)

				return nil
			}

			report.BackupTable(out, candidates, time.Now())

			return nil
		}),
	}
}

type recoverRestoreCommand struct {
	output string
	keep   bool
}

func newRecoverRestoreCommand(opts *Options) *cobra.Command {
	rc := &recoverRestoreCommand{}

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore the newest usable backup into a layout file",
		Long: `Load the newest backup, repairing it as needed, and save it to --output.
Backups that cannot be loaded are moved to unrecoverable_layouts/ and the
next one is tried.`,
		Args: cobra.NoArgs,
		RunE: opts.run("recover.restore", rc.run),
	}

	cmd.Flags().StringVarP(&rc.output, "output", "o", "", "Layout file to write")
	cmd.Flags().BoolVar(&rc.keep, "keep", false, "Keep the backup after restoring it")

	return cmd
}

func (rc *recoverRestoreCommand) run(ctx context.Context, s *session, cmd *cobra.Command, _ []string) error {
	if rc.output == "" {
		return ErrNoOutput
	}

	ed, err := s.editor()
	if err != nil {
		return err
	}

	m := backupManager(s)

	rec, err := m.Recover(ctx, ed)
	if errors.Is(err, checkpoint.ErrNoBackup) {
		fmt.Fprintf(cmd.OutOrStdout(), "no backups in %s\n", m.Dir)

		return nil
	}

	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "restored backup of pid %d (%s, written %s)\n",
		rec.PID, humanize.IBytes(safeconv.MustInt64ToUint64(rec.Size)), humanize.Time(rec.ModTime))

	if !rec.Numbered {
		fmt.Fprintln(out, "clip numbering was not saved with the backup; clip numbers were kept as stored")
	}

	if len(rec.Result.Log) > 0 {
		report.RepairTable(out, rec.Result)
	}

	err = ed.SaveFile(ctx, rc.output, s.cfg.Layout.Compress)
	if err != nil {
		return err
	}

	err = recordLayout(s, rc.output, ed)
	if err != nil {
		return err
	}

	if rc.keep {
		return nil
	}

	return m.Clear()
}

type recoverDiscardCommand struct {
	pid int
}

func newRecoverDiscardCommand(opts *Options) *cobra.Command {
	dc := &recoverDiscardCommand{}

	cmd := &cobra.Command{
		Use:   "discard",
		Short: "Delete recoverable backups",
		Args:  cobra.NoArgs,
		RunE:  opts.run("recover.discard", dc.run),
	}

	cmd.Flags().IntVar(&dc.pid, "pid", 0, "Only discard the backup of this process")

	return cmd
}

func (dc *recoverDiscardCommand) run(ctx context.Context, s *session, cmd *cobra.Command, _ []string) error {
	m := backupManager(s)

	candidates, err := m.Candidates()
	if err != nil {
		return err
	}

	discarded := 0

	for _, c := range candidates {
		if dc.pid != 0 && c.PID != dc.pid {
			continue
		}

		err = m.Discard(ctx, c)
		if err != nil {
			return err
		}

		discarded++
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d backups discarded\n", discarded)

	return nil
}
