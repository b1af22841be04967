package commands

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/cutfang/pkg/layoutmap"
	"github.com/Sumatoshi-tech/cutfang/pkg/report"
)

// Sentinel errors of the map commands.
var (
	ErrNoSetDir    = errors.New("no set directory: pass one or set layout.set_dir")
	ErrUnknownClip = errors.New("clip not in manifest")
)

// NewMapCommand creates the map command group.
func NewMapCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Maintain the layout.map of a set",
		Long: `layout.map records, per clip, the layouts of a set that use it and how far
into the clip they reach. It tells which layouts a clip change would break.`,
	}

	cmd.AddCommand(newMapRebuildCommand(opts), newMapShowCommand(opts), newMapAffectedCommand(opts))

	return cmd
}

func setDir(s *session, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}

	if s.cfg.Layout.SetDir == "" {
		return "", ErrNoSetDir
	}

	return s.cfg.Layout.SetDir, nil
}

func newMapRebuildCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild [set-dir]",
		Short: "Rebuild layout.map from the layouts in the set",
		Args:  cobra.MaximumNArgs(1),
		RunE: opts.run("map.rebuild", func(ctx context.Context, s *session, cmd *cobra.Command, args []string) error {
			dir, err := setDir(s, args)
			if err != nil {
				return err
			}

			clips, err := s.clipSet()
			if err != nil {
				return err
			}

			res, err := layoutmap.Rebuild(ctx, dir, clips, s.logger)
			if err != nil {
				return err
			}

			err = layoutmap.Save(dir, res.Map)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d layouts read, %d skipped, %d clips recorded\n", res.Layouts, len(res.Skipped), len(res.Map.Entries))

			skipped := make([]string, 0, len(res.Skipped))
			for path := range res.Skipped {
				skipped = append(skipped, path)
			}

			slices.Sort(skipped)

			for _, path := range skipped {
				fmt.Fprintf(out, "skipped %s: %v\n", path, res.Skipped[path])
			}

			return nil
		}),
	}
}

type mapShowCommand struct {
	prune bool
}

func newMapShowCommand(opts *Options) *cobra.Command {
	sc := &mapShowCommand{}

	cmd := &cobra.Command{
		Use:   "show [set-dir]",
		Short: "Print layout.map",
		Args:  cobra.MaximumNArgs(1),
		RunE:  opts.run("map.show", sc.run),
	}

	cmd.Flags().BoolVar(&sc.prune, "prune", false, "Drop layouts that no longer exist and save the map")

	return cmd
}

func (sc *mapShowCommand) run(_ context.Context, s *session, cmd *cobra.Command, args []string) error {
	dir, err := setDir(s, args)
	if err != nil {
		return err
	}

	m, err := layoutmap.Load(dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if sc.prune {
		gone := m.Prune()
		for _, path := range gone {
			fmt.Fprintf(out, "pruned %s\n", path)
		}

		if len(gone) > 0 {
			err = layoutmap.Save(dir, m)
			if err != nil {
				return err
			}
		}
	}

	report.MapTable(out, m)

	return nil
}

type mapAffectedCommand struct {
	frames int64
	audio  float64
}

func newMapAffectedCommand(opts *Options) *cobra.Command {
	ac := &mapAffectedCommand{}

	cmd := &cobra.Command{
		Use:   "affected <clip-handle> [set-dir]",
		Short: "List the layouts a shortened clip would break",
		Long: `List the layouts that use frames past --frames or audio past --audio
seconds of the clip. Omit a limit to leave it unchecked.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: opts.run("map.affected", ac.run),
	}

	cmd.Flags().Int64Var(&ac.frames, "frames", -1, "Frames the clip keeps")
	cmd.Flags().Float64Var(&ac.audio, "audio", -1, "Audio seconds the clip keeps")

	return cmd
}

func (ac *mapAffectedCommand) run(_ context.Context, s *session, cmd *cobra.Command, args []string) error {
	dir, err := setDir(s, args[1:])
	if err != nil {
		return err
	}

	clips, err := s.clipSet()
	if err != nil {
		return err
	}

	c, ok := clips.ByHandle(args[0])
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownClip, args[0])
	}

	m, err := layoutmap.Load(dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	for _, u := range m.Affected(c, ac.frames, ac.audio) {
		fmt.Fprintf(out, "%s\tframe %d\taudio %.2fs\n", u.Path, u.MaxFrame, u.MaxAudio)
	}

	return nil
}
