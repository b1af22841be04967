package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/cutfang/pkg/report"
)

// ErrLayoutsDiffer is returned by diff --exit-code when the layouts differ.
var ErrLayoutsDiffer = errors.New("layouts differ")

type diffCommand struct {
	exitCode bool
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(opts *Options) *cobra.Command {
	dc := &diffCommand{}

	cmd := &cobra.Command{
		Use:   "diff <old> <new>",
		Short: "Show the events added and removed between two layouts",
		Args:  cobra.ExactArgs(2),
		RunE:  opts.run("diff", dc.run),
	}

	cmd.Flags().BoolVar(&dc.exitCode, "exit-code", false, "Fail when the layouts differ")

	return cmd
}

func (dc *diffCommand) run(_ context.Context, _ *session, cmd *cobra.Command, args []string) error {
	from, err := readDocument(args[0])
	if err != nil {
		return err
	}

	to, err := readDocument(args[1])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	stats, err := report.WriteDiff(out, report.Diff(from, to))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%d events added, %d removed\n", stats.Added, stats.Removed)

	if dc.exitCode && stats.Changed() {
		return ErrLayoutsDiffer
	}

	return nil
}
