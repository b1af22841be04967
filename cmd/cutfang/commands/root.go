package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/cutfang/pkg/version"
)

// NewRootCommand creates the cutfang command tree.
func NewRootCommand() *cobra.Command {
	opts := &Options{}

	root := &cobra.Command{
		Use:   "cutfang",
		Short: "Cutfang - multitrack timeline layout tool",
		Long: `Cutfang inspects, repairs and converts multitrack timeline layouts.

Commands:
  check     Load and rectify layouts, printing every repair
  dump      Print the events of a layout as stored
  diff      Compare the events of two layouts
  plot      Chart track and effect occupancy as HTML
  import    Build a layout from a JSON document
  recover   Restore or discard crash-recovery backups
  map       Maintain the layout.map of a set`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts.Register(root)

	root.AddCommand(
		NewCheckCommand(opts),
		NewDumpCommand(opts),
		NewDiffCommand(opts),
		NewPlotCommand(opts),
		NewImportCommand(opts),
		NewRecoverCommand(opts),
		NewMapCommand(opts),
		newVersionCommand(),
	)

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
