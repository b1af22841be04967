package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/cutfang/pkg/checkpoint"
	"github.com/Sumatoshi-tech/cutfang/pkg/event"
	"github.com/Sumatoshi-tech/cutfang/pkg/layout"
	"github.com/Sumatoshi-tech/cutfang/pkg/layoutmap"
	"github.com/Sumatoshi-tech/cutfang/pkg/rectify"
	"github.com/Sumatoshi-tech/cutfang/pkg/safeconv"
)

// Severity ranks a repair for display.
type Severity int

// Severities.
const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// SeverityOf classifies a repair kind: lost content is an error, moved or
// rewritten content a warning, housekeeping info.
func SeverityOf(k rectify.Kind) Severity {
	switch k {
	case rectify.KindUndecodable, rectify.KindMissingClip, rectify.KindMissingFrame, rectify.KindMissingAudio,
		rectify.KindUnknownFilter, rectify.KindInstanceDeleted, rectify.KindDuplicateFrame:
		return SeverityError
	case rectify.KindTrimmed, rectify.KindMapsRebuilt, rectify.KindBlankFilled, rectify.KindResampled:
		return SeverityInfo
	default:
		return SeverityWarning
	}
}

var severityColors = map[Severity]*color.Color{
	SeverityError:   color.New(color.FgRed),
	SeverityWarning: color.New(color.FgYellow),
	SeverityInfo:    color.New(color.FgCyan),
}

// Paint colours s for sev unless color output is off.
func Paint(sev Severity, s string) string {
	return severityColors[sev].Sprint(s)
}

func newTable(w io.Writer) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Format.Footer = text.FormatDefault

	return tbl
}

// seconds formats a timecode in seconds.
func seconds(tc int64) string {
	return strconv.FormatFloat(float64(tc)/event.TicksPerSecond, 'f', 3, 64)
}

// RepairTable writes the repair log of res, one row per repair, with a
// footer counting repairs per severity.
func RepairTable(w io.Writer, res *rectify.Result) {
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"#", "Time (s)", "Severity", "Repair", "Detail"})

	counts := map[Severity]int{}

	for i, e := range res.Log {
		sev := SeverityOf(e.Kind)
		counts[sev]++

		tbl.AppendRow(table.Row{i + 1, seconds(e.TC), Paint(sev, sev.String()), string(e.Kind), e.Detail})
	}

	tbl.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d errors, %d warnings, %d info",
		counts[SeverityError], counts[SeverityWarning], counts[SeverityInfo]), ""})
	tbl.Render()
}

// EventTable writes one row per event of doc.
func EventTable(w io.Writer, doc *Document) {
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"#", "Time (s)", "Kind", "ID", "Leaves"})

	for i, ev := range doc.Events {
		tc, _ := ev.int64Leaf(layout.KeyTimecode)
		id, _ := ev.int64Leaf(layout.KeyEventID)

		leaves := strings.Join(ev.details(layout.KeyEventID), "\n")

		tbl.AppendRow(table.Row{i + 1, seconds(tc), ev.kind().String(), id, leaves})
	}

	tbl.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("Total: %d events", len(doc.Events))})
	tbl.Render()
}

// MapTable writes the layouts each clip of m appears in.
func MapTable(w io.Writer, m *layoutmap.Map) {
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Clip", "Unique ID", "Name", "Layout", "Max frame", "Max audio (s)"})

	for _, e := range m.Entries {
		for _, u := range e.Layouts {
			tbl.AppendRow(table.Row{e.Handle, e.UniqueID, e.Name, u.Path, u.MaxFrame,
				strconv.FormatFloat(u.MaxAudio, 'f', 2, 64)})
		}
	}

	tbl.AppendFooter(table.Row{"", "", "", fmt.Sprintf("Total: %d layouts", len(m.Layouts())), "", ""})
	tbl.Render()
}

// BackupTable lists crash-recovery candidates with their age relative to now.
func BackupTable(w io.Writer, candidates []checkpoint.Candidate, now time.Time) {
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"PID", "Layout", "Size", "Written"})

	for _, c := range candidates {
		tbl.AppendRow(table.Row{c.PID, c.Layout, humanize.IBytes(safeconv.MustInt64ToUint64(c.Size)), humanize.RelTime(c.ModTime, now, "ago", "from now")})
	}

	tbl.Render()
}
