// Package render draws a report payload as an HTML page of charts and as
// PNG error plots. It reads nothing but the payload.
package render

import (
	"errors"
	"fmt"
	"io"

	"github.com/auvmap/analyzer/internal/geo"
	"github.com/auvmap/analyzer/pkg/core"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// MaxSeriesPoints caps the points drawn per series; longer series are
// decimated with a fixed stride.
const MaxSeriesPoints = 5000

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("no data to render")

func stride(n int) int {
	if n <= MaxSeriesPoints {
		return 1
	}
	return (n + MaxSeriesPoints - 1) / MaxSeriesPoints
}

func chartInit(title string) charts.GlobalOpts {
	return charts.WithInitializationOpts(opts.Initialization{
		PageTitle: title,
		Width:     "1200px",
		Height:    "600px",
	})
}

func valueAxes(xName, yName string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: xName, NameLocation: "middle", NameGap: 25, Min: "dataMin", Max: "dataMax"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: yName, NameLocation: "middle", NameGap: 45, Min: "dataMin", Max: "dataMax"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	}
}

// pathChart overlays every session path, and any planned route, in Web
// Mercator meters.
func pathChart(p *core.ReportPayload) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(append(valueAxes("Easting (m)", "Northing (m)"),
		chartInit("Paths"),
		charts.WithTitleOpts(opts.Title{Title: "Vehicle paths", Subtitle: "EPSG:3857"}),
	)...)

	for _, id := range p.SessionIDs {
		tr, ok := p.Sessions[id]
		if !ok || len(tr.Samples) == 0 {
			continue
		}
		step := stride(len(tr.Samples))
		data := make([]opts.LineData, 0, len(tr.Samples)/step+1)
		for i := 0; i < len(tr.Samples); i += step {
			x, y := geo.WebMercator(tr.Samples[i].Position())
			data = append(data, opts.LineData{Value: []interface{}{x, y}})
		}
		line.AddSeries(id, data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

		if tr.Plan == nil || len(tr.Plan.Waypoints) == 0 {
			continue
		}
		planned := make([]opts.LineData, 0, len(tr.Plan.Waypoints))
		for _, wp := range tr.Plan.Waypoints {
			x, y := geo.WebMercator(core.Position{Latitude: wp.Latitude, Longitude: wp.Longitude})
			planned = append(planned, opts.LineData{Value: []interface{}{x, y}})
		}
		line.AddSeries(id+" plan", planned,
			charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}),
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}),
		)
	}
	return line
}

// depthChart plots depth against elapsed seconds. Samples without depth
// are skipped.
func depthChart(p *core.ReportPayload) (*charts.Line, bool) {
	line := charts.NewLine()
	line.SetGlobalOptions(append(valueAxes("Elapsed (s)", "Depth (m)"),
		chartInit("Depth"),
		charts.WithTitleOpts(opts.Title{Title: "Depth profile"}),
	)...)

	var drawn bool
	for _, id := range p.SessionIDs {
		tr, ok := p.Sessions[id]
		if !ok {
			continue
		}
		step := stride(len(tr.Samples))
		var data []opts.LineData
		for i := 0; i < len(tr.Samples); i += step {
			s := tr.Samples[i]
			if s.Depth == nil {
				continue
			}
			data = append(data, opts.LineData{Value: []interface{}{s.Timestamp.Seconds(), *s.Depth}})
		}
		if len(data) == 0 {
			continue
		}
		drawn = true
		line.AddSeries(id, data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}
	return line, drawn
}

// errorChart plots the per-pair error of every comparison.
func errorChart(p *core.ReportPayload) (*charts.Line, bool) {
	line := charts.NewLine()
	line.SetGlobalOptions(append(valueAxes("Pair", "Error (m)"),
		chartInit("Errors"),
		charts.WithTitleOpts(opts.Title{Title: "Position error", Subtitle: "candidate vs reference"}),
	)...)

	var drawn bool
	for _, key := range p.ComparisonKeys() {
		c := p.Comparisons[key]
		if len(c.Errors) == 0 {
			continue
		}
		drawn = true
		step := stride(len(c.Errors))
		data := make([]opts.LineData, 0, len(c.Errors)/step+1)
		for i := 0; i < len(c.Errors); i += step {
			data = append(data, opts.LineData{Value: []interface{}{i, c.Errors[i]}})
		}
		line.AddSeries(key, data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}
	return line, drawn
}

func statValue(v *float64) opts.BarData {
	if v == nil {
		return opts.BarData{Value: "-"}
	}
	return opts.BarData{Value: *v}
}

// summaryChart compares the headline statistics of every comparison.
func summaryChart(p *core.ReportPayload) (*charts.Bar, bool) {
	keys := p.ComparisonKeys()
	if len(keys) == 0 {
		return nil, false
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		chartInit("Summary"),
		charts.WithTitleOpts(opts.Title{Title: "Error statistics", Subtitle: fmt.Sprintf("reference %s", p.Reference)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "m"}),
	)

	series := map[string][]opts.BarData{}
	names := []string{"mean", "median", "p95", "max", "rms"}
	for _, key := range keys {
		s := p.Comparisons[key].Statistics
		series["mean"] = append(series["mean"], statValue(s.Mean))
		series["median"] = append(series["median"], statValue(s.Median))
		series["p95"] = append(series["p95"], statValue(s.P95))
		series["max"] = append(series["max"], statValue(s.Max))
		series["rms"] = append(series["rms"], statValue(s.RMS))
	}
	bar.SetXAxis(keys)
	for _, name := range names {
		bar.AddSeries(name, series[name])
	}
	return bar, true
}

// HTML writes a chart page for p. The page loads echarts from its CDN.
func HTML(w io.Writer, p *core.ReportPayload) error {
	if p == nil || len(p.Sessions) == 0 {
		return ErrNoData
	}

	page := components.NewPage()
	page.PageTitle = "AUV mission report"
	page.AddCharts(pathChart(p))
	if chart, ok := depthChart(p); ok {
		page.AddCharts(chart)
	}
	if chart, ok := errorChart(p); ok {
		page.AddCharts(chart)
	}
	if chart, ok := summaryChart(p); ok {
		page.AddCharts(chart)
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}
