package render

import (
	"fmt"
	"image/color"

	"github.com/auvmap/analyzer/pkg/core"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrorPlotPNG saves the per-pair error series of c as a line plot. The
// image format follows the extension of path.
func ErrorPlotPNG(path string, c core.ComparisonResult) error {
	if len(c.Errors) == 0 {
		return ErrNoData
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s vs %s - position error (%s)", c.Candidate, c.Reference, c.Basis)
	p.X.Label.Text = "Pair"
	p.Y.Label.Text = "Error (m)"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(c.Errors))
	for i, e := range c.Errors {
		pts[i] = plotter.XY{X: float64(i), Y: e}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("error", line)

	if c.Statistics.Mean != nil {
		mean := *c.Statistics.Mean
		meanLine := plotter.NewFunction(func(float64) float64 { return mean })
		meanLine.Color = color.RGBA{R: 200, A: 255}
		meanLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(meanLine)
		p.Legend.Add(fmt.Sprintf("mean %.2f m", mean), meanLine)
	}
	if c.Statistics.P95 != nil {
		p95 := *c.Statistics.P95
		p95Line := plotter.NewFunction(func(float64) float64 { return p95 })
		p95Line.Color = color.RGBA{B: 200, A: 255}
		p95Line.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
		p.Add(p95Line)
		p.Legend.Add(fmt.Sprintf("p95 %.2f m", p95), p95Line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
