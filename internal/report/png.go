package report

import (
	"errors"
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/qwop.data/internal/fsutil"
	"github.com/banshee-data/qwop.data/internal/stats"
)

// PNG dimensions.
const (
	pngWidth  = 14 * vg.Inch
	pngHeight = 6 * vg.Inch
)

func indexed(v []float64) plotter.XYs {
	pts := make(plotter.XYs, len(v))
	for i, y := range v {
		pts[i] = plotter.XY{X: float64(i), Y: y}
	}
	return pts
}

// newSpreadPlot charts range and stdev against column index.
func newSpreadPlot(s *stats.NormalizationStats) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Feature spread (timesteps=%d)", s.Count)
	p.X.Label.Text = "feature column"
	p.Y.Label.Text = "value"
	p.Add(plotter.NewGrid())

	for i, series := range []struct {
		name string
		v    []float64
	}{
		{"range", s.Range},
		{"stdev", s.Stdev},
	} {
		line, points, err := plotter.NewLinePoints(indexed(series.v))
		if err != nil {
			return nil, fmt.Errorf("%s line: %w", series.name, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		points.Shape = plotutil.Shape(i)
		points.Color = plotutil.Color(i)
		p.Add(line, points)
		p.Legend.Add(series.name, line, points)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// RenderPNG writes a PNG chart of s to w.
func RenderPNG(w io.Writer, s *stats.NormalizationStats) error {
	if s == nil || s.Width() == 0 {
		return errors.New("no statistics to render")
	}
	p, err := newSpreadPlot(s)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(pngWidth, pngHeight, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// WritePNG renders s to a PNG file at path.
func WritePNG(fsys fsutil.FileSystem, path string, s *stats.NormalizationStats) error {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := RenderPNG(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
