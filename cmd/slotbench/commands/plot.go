package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/slotarray/internal/stress"
)

const (
	chartHeight = "500px"
	lineWidth   = 2
)

// writePlot renders capacity, high-water mark and live count over the run as
// a standalone HTML page.
func writePlot(path string, samples []stress.Sample) error {
	line := buildChart(samples)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot: %w", err)
	}

	renderErr := line.Render(f)

	closeErr := f.Close()

	if renderErr != nil {
		return fmt.Errorf("render plot: %w", renderErr)
	}

	if closeErr != nil {
		return fmt.Errorf("close plot: %w", closeErr)
	}

	return nil
}

func buildChart(samples []stress.Sample) *charts.Line {
	labels := make([]string, len(samples))
	capacity := make([]opts.LineData, len(samples))
	highWater := make([]opts.LineData, len(samples))
	live := make([]opts.LineData, len(samples))

	for i, s := range samples {
		labels[i] = strconv.FormatInt(s.Elapsed.Milliseconds(), 10)
		capacity[i] = opts.LineData{Value: s.Capacity}
		highWater[i] = opts.LineData{Value: s.HighWater}
		live[i] = opts.LineData{Value: s.Live}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "slotbench", Width: "100%", Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Slot array during stress run",
			Subtitle: "Capacity, high-water mark and live subscribers per checker sample.",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "elapsed (ms)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "slots"}),
		charts.WithDataZoomOpts(
			opts.DataZoom{Type: "slider"},
			opts.DataZoom{Type: "inside"},
		),
	)

	style := charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth})

	line.SetXAxis(labels).
		AddSeries("Capacity", capacity, style, charts.WithLineChartOpts(opts.LineChart{Step: "end"})).
		AddSeries("High-water mark", highWater, style).
		AddSeries("Live", live, style)

	return line
}
