// Package report renders normalization statistics for human inspection: an
// interactive HTML page (go-echarts) and a static PNG chart (gonum/plot).
package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/qwop.data/internal/qwop"
	"github.com/banshee-data/qwop.data/internal/stats"
)

// HTMLOptions labels the rendered page.
type HTMLOptions struct {
	Title    string
	Subtitle string
}

// columnLabels names each stats column, falling back to colN past the
// pose layout.
func columnLabels(width int) []string {
	labels := make([]string, width)
	for i := range labels {
		labels[i] = qwop.FeatureLabel(i)
	}
	return labels
}

func lineData(v []float64) []opts.LineData {
	out := make([]opts.LineData, len(v))
	for i, x := range v {
		out[i] = opts.LineData{Value: x}
	}
	return out
}

func barData(v []float64) []opts.BarData {
	out := make([]opts.BarData, len(v))
	for i, x := range v {
		out[i] = opts.BarData{Value: x}
	}
	return out
}

// WriteHTML renders s as a two-chart page: per-column min, mean and max
// lines, and per-column range and standard deviation bars.
func WriteHTML(w io.Writer, s *stats.NormalizationStats, o HTMLOptions) error {
	if s == nil || s.Width() == 0 {
		return errors.New("no statistics to render")
	}
	if o.Title == "" {
		o.Title = "Feature statistics"
	}
	if o.Subtitle == "" {
		o.Subtitle = fmt.Sprintf("timesteps=%d columns=%d", s.Count, s.Width())
	}
	labels := columnLabels(s.Width())

	xAxis := opts.XAxis{
		Name:      "feature",
		AxisLabel: &opts.AxisLabel{Rotate: 60, Interval: "0"},
	}
	zoom := opts.DataZoom{Type: "slider", Start: 0, End: 100}

	span := charts.NewLine()
	span.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: o.Title, Width: "100%", Height: "520px"}),
		charts.WithTitleOpts(opts.Title{Title: o.Title, Subtitle: o.Subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(xAxis),
		charts.WithDataZoomOpts(zoom),
	)
	span.SetXAxis(labels).
		AddSeries("min", lineData(s.Min)).
		AddSeries("mean", lineData(s.Mean)).
		AddSeries("max", lineData(s.Max))

	spread := charts.NewBar()
	spread.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "520px"}),
		charts.WithTitleOpts(opts.Title{Title: "Spread", Subtitle: "range and sample standard deviation"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(xAxis),
		charts.WithDataZoomOpts(zoom),
	)
	spread.SetXAxis(labels).
		AddSeries("range", barData(s.Range)).
		AddSeries("stdev", barData(s.Stdev))

	page := components.NewPage()
	page.PageTitle = o.Title
	page.AddCharts(span, spread)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}
