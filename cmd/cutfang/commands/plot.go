package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/cutfang/pkg/layout"
	"github.com/Sumatoshi-tech/cutfang/pkg/report"
)

type plotCommand struct {
	output string
}

// NewPlotCommand creates the plot command.
func NewPlotCommand(opts *Options) *cobra.Command {
	pc := &plotCommand{}

	cmd := &cobra.Command{
		Use:   "plot <layout>",
		Short: "Chart occupied tracks and active effects over time as HTML",
		Args:  cobra.ExactArgs(1),
		RunE:  opts.run("plot", pc.run),
	}

	cmd.Flags().StringVarP(&pc.output, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func (pc *plotCommand) run(ctx context.Context, s *session, cmd *cobra.Command, args []string) error {
	loaded, err := layout.LoadFile(args[0])
	if err != nil {
		return err
	}

	if n := len(loaded.Rejected); n > 0 {
		s.logger.WarnContext(ctx, "undecodable events left out of the plot", "layout.path", args[0], "count", n)
	}

	title := filepath.Base(args[0])

	if pc.output == "" {
		return report.Plot(cmd.OutOrStdout(), title, loaded.List)
	}

	f, err := os.Create(pc.output)
	if err != nil {
		return fmt.Errorf("create plot: %w", err)
	}

	err = report.Plot(f, title, loaded.List)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close plot: %w", closeErr)
	}

	return err
}
