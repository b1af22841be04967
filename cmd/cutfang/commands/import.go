package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/cutfang/pkg/report"
)

// ErrNoOutput is returned when a command that writes a layout has no
// --output.
var ErrNoOutput = errors.New("--output is required")

type importCommand struct {
	output string
}

// NewImportCommand creates the import command.
func NewImportCommand(opts *Options) *cobra.Command {
	ic := &importCommand{}

	cmd := &cobra.Command{
		Use:   "import <document.json|->",
		Short: "Build a layout from a JSON document",
		Long: `Validate a JSON document of the form written by dump --format json,
rectify it like any loaded layout and save the result.`,
		Args: cobra.ExactArgs(1),
		RunE: opts.run("import", ic.run),
	}

	cmd.Flags().StringVarP(&ic.output, "output", "o", "", "Layout file to write")

	return cmd
}

func (ic *importCommand) run(ctx context.Context, s *session, cmd *cobra.Command, args []string) error {
	if ic.output == "" {
		return ErrNoOutput
	}

	data, err := readInput(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	doc, err := report.ParseJSON(data)
	if err != nil {
		var ie *report.ImportError
		if errors.As(err, &ie) {
			red := color.New(color.FgRed)
			for _, se := range ie.Errors {
				red.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", se.Field, se.Description)
			}
		}

		return err
	}

	var stream bytes.Buffer

	err = doc.WriteLayout(&stream)
	if err != nil {
		return err
	}

	ed, err := s.editor()
	if err != nil {
		return err
	}

	res, err := ed.Load(ctx, &stream, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(res.Log) > 0 {
		report.RepairTable(out, res)
	}

	err = ed.SaveFile(ctx, ic.output, s.cfg.Layout.Compress)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s: %d events written\n", ic.output, ed.List().Len())

	return recordLayout(s, ic.output, ed)
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}

		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return data, nil
}
