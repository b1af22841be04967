package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/cutfang/pkg/event"
)

const (
	plotWidth     = "100%"
	plotHeight    = "500px"
	plotLineWidth = 2
	zoomEnd       = 100
)

// Occupancy is the timeline state at one frame event.
type Occupancy struct {
	TC      int64
	Tracks  int
	Audio   int
	Effects int
}

// Occupancies walks l and samples every frame event: the video tracks
// holding a frame, the audio tracks playing and the effect instances alive.
func Occupancies(l *event.List) []Occupancy {
	var (
		out     []Occupancy
		effects int
	)

	playing := make(map[int]bool)

	for e := range l.All() {
		switch e.Kind() {
		case event.KindFilterInit:
			effects++
		case event.KindFilterDeinit:
			effects--
		case event.KindFrame:
			f := e.Frame()

			for _, a := range f.Audio {
				playing[a.Track] = a.Clip > 0 && a.Velocity != 0
			}

			occ := Occupancy{TC: e.TC(), Effects: effects}

			for track := range f.NumTracks() {
				if f.HasTrack(track) {
					occ.Tracks++
				}
			}

			for _, on := range playing {
				if on {
					occ.Audio++
				}
			}

			out = append(out, occ)
		default:
		}
	}

	return out
}

// Plot renders the occupancy of l over time as an HTML line chart.
func Plot(w io.Writer, title string, l *event.List) error {
	samples := Occupancies(l)

	labels := make([]string, len(samples))
	tracks := make([]opts.LineData, len(samples))
	audio := make([]opts.LineData, len(samples))
	effects := make([]opts.LineData, len(samples))

	for i, s := range samples {
		labels[i] = strconv.FormatFloat(float64(s.TC)/event.TicksPerSecond, 'f', 3, 64)
		tracks[i] = opts.LineData{Value: s.Tracks}
		audio[i] = opts.LineData{Value: s.Audio}
		effects[i] = opts.LineData{Value: s.Effects}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: plotWidth, Height: plotHeight, PageTitle: title}),
		charts.WithTitleOpts(opts.Title{Title: title, Left: "center"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "8%", Left: "center"}),
		charts.WithDataZoomOpts(
			opts.DataZoom{Type: "slider", Start: 0, End: zoomEnd},
			opts.DataZoom{Type: "inside"},
		),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Count"}),
	)
	line.SetXAxis(labels)

	step := charts.WithLineChartOpts(opts.LineChart{Step: "end"})
	width := charts.WithLineStyleOpts(opts.LineStyle{Width: plotLineWidth})

	line.AddSeries("Video tracks", tracks, step, width)
	line.AddSeries("Audio tracks", audio, step, width)
	line.AddSeries("Effects", effects, step, width)

	err := line.Render(w)
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}

	return nil
}
