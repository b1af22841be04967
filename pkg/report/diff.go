package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffStats counts the event lines a diff adds and removes.
type DiffStats struct {
	Added   int
	Removed int
}

// Changed reports whether the diff has any changes.
func (s DiffStats) Changed() bool { return s.Added > 0 || s.Removed > 0 }

// Diff compares the event lines of two documents. Each returned diff holds
// whole lines, newline terminated.
func Diff(a, b *Document) []diffmatchpatch.Diff {
	from, to := joinLines(a.Lines()), joinLines(b.Lines())

	dmp := diffmatchpatch.New()
	src, dst, lines := dmp.DiffLinesToChars(from, to)
	diffs := dmp.DiffMain(src, dst, false)

	return dmp.DiffCharsToLines(diffs, lines)
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}

	return strings.Join(lines, "\n") + "\n"
}

// WriteDiff prints diffs as a unified listing: "+" for added lines, "-"
// for removed ones and two spaces for unchanged ones.
func WriteDiff(w io.Writer, diffs []diffmatchpatch.Diff) (DiffStats, error) {
	var stats DiffStats

	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)

	for _, d := range diffs {
		for line := range strings.SplitSeq(strings.TrimSuffix(d.Text, "\n"), "\n") {
			var err error

			switch d.Type {
			case diffmatchpatch.DiffInsert:
				stats.Added++
				_, err = added.Fprintln(w, "+ "+line)
			case diffmatchpatch.DiffDelete:
				stats.Removed++
				_, err = removed.Fprintln(w, "- "+line)
			case diffmatchpatch.DiffEqual:
				_, err = fmt.Fprintln(w, "  "+line)
			}

			if err != nil {
				return stats, fmt.Errorf("write diff: %w", err)
			}
		}
	}

	return stats, nil
}
