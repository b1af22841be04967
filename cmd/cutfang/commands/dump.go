package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/cutfang/pkg/layout"
	"github.com/Sumatoshi-tech/cutfang/pkg/report"
)

// Dump formats.
const (
	FormatTable = "table"
	FormatText  = "text"
	FormatYAML  = "yaml"
	FormatJSON  = "json"
)

// ErrUnknownFormat is returned for an unsupported --format.
var ErrUnknownFormat = errors.New("unknown format")

type dumpCommand struct {
	format string
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(opts *Options) *cobra.Command {
	dc := &dumpCommand{}

	cmd := &cobra.Command{
		Use:   "dump <layout>",
		Short: "Print the events of a layout as stored",
		Long: `Print every plant of a layout without repairing anything, so damaged
layouts can be inspected. The json format is the input of import.`,
		Args: cobra.ExactArgs(1),
		RunE: opts.run("dump", dc.run),
	}

	cmd.Flags().StringVarP(&dc.format, "format", "f", FormatTable, "Output format: table, text, yaml or json")

	return cmd
}

func (dc *dumpCommand) run(ctx context.Context, s *session, cmd *cobra.Command, args []string) error {
	doc, readErr := readDocument(args[0])
	if doc == nil {
		return readErr
	}

	if readErr != nil {
		s.logger.WarnContext(ctx, "layout is damaged, dumping what was read", "layout.path", args[0], "error", readErr)
	}

	err := writeDocument(cmd.OutOrStdout(), doc, dc.format)
	if err != nil {
		return err
	}

	return readErr
}

func writeDocument(w io.Writer, doc *report.Document, format string) error {
	switch format {
	case FormatTable:
		report.EventTable(w, doc)

		return nil
	case FormatText:
		_, err := fmt.Fprintln(w, strings.Join(doc.Lines(), "\n"))
		if err != nil {
			return fmt.Errorf("write dump: %w", err)
		}

		return nil
	case FormatYAML:
		return doc.WriteYAML(w)
	case FormatJSON:
		return doc.WriteJSON(w)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// readDocument reads the raw plants of the layout at path. A damaged
// layout yields the document read so far along with the error.
func readDocument(path string) (*report.Document, error) {
	rc, err := layout.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	doc, err := report.ReadDocument(rc)
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", path, err)
	}

	return doc, nil
}
