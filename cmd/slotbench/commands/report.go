package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/slotarray/internal/stress"
	"github.com/Sumatoshi-tech/slotarray/pkg/config"
	"github.com/Sumatoshi-tech/slotarray/pkg/safeconv"
	"github.com/Sumatoshi-tech/slotarray/pkg/slotarray"
)

// slotBytes is the table cost of one slot.
const slotBytes = 8

// writeReport prints the run summary table followed by the verdict.
func writeReport(out io.Writer, cfg *config.StressConfig, res *stress.Result, stats slotarray.Stats, noColor bool) {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle("slotbench stress")
	tbl.AppendHeader(table.Row{"Metric", "Value"})

	tbl.AppendRows([]table.Row{
		{"Workers", cfg.Workers},
		{"Operations", humanize.Comma(res.Ops())},
		{"Throughput", throughput(res.Ops(), res.Duration)},
		{"Subscribes", humanize.Comma(res.Subscribes)},
		{"Unsubscribes", humanize.Comma(res.Unsubscribes)},
		{"Drained at end", humanize.Comma(res.Drained)},
		{"Publishes", humanize.Comma(res.Publishes)},
		{"Deliveries", humanize.Comma(res.Deliveries)},
		{"Skipped (slot budget)", humanize.Comma(res.Skipped)},
	})
	tbl.AppendSeparator()
	tbl.AppendRows([]table.Row{
		{"Peak live", humanize.Comma(int64(res.PeakLive))},
		{"Capacity", humanize.Comma(int64(stats.Capacity))},
		{"Slot table", humanize.IBytes(safeconv.MustIntToUint64(stats.Capacity) * slotBytes)},
		{"Grows", humanize.Comma(stats.Grows)},
		{"Samples", len(res.Samples)},
	})
	tbl.AppendFooter(table.Row{"Duration", res.Duration.Round(time.Millisecond)})

	fmt.Fprintln(out, tbl.Render())

	if res.Passed() {
		paint(noColor, color.FgGreen, color.Bold).Fprintln(out, "PASS: no invariant violations")

		return
	}

	paint(noColor, color.FgRed, color.Bold).Fprintf(out, "FAIL: %d invariant violations\n", len(res.Violations))

	for _, v := range res.Violations {
		paint(noColor, color.FgRed).Fprintf(out, "  - %s\n", v)
	}
}

func paint(noColor bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if noColor {
		c.DisableColor()
	}

	return c
}

func throughput(ops int64, d time.Duration) string {
	if d <= 0 {
		return "n/a"
	}

	return humanize.CommafWithDigits(float64(ops)/d.Seconds(), 0) + " ops/s"
}
