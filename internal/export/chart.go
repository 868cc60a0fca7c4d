package export

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var ErrNoData = errors.New("export: no data to chart")

const (
	chartWidth  = 8 * vg.Inch
	chartHeight = 4 * vg.Inch
)

var formats = map[string]bool{
	"png": true, "svg": true, "pdf": true, "eps": true, "jpg": true, "jpeg": true, "tif": true, "tiff": true,
}

// WriteChart renders ys against xs as a line chart. The image format is
// taken from the file extension.
func WriteChart(path, title, ylabel string, xs, ys []float64) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if !formats[format] {
		return fmt.Errorf("export: unsupported chart format %q", format)
	}

	p, err := newChart(title, ylabel, xs, ys)
	if err != nil {
		return err
	}
	return p.Save(chartWidth, chartHeight, path)
}

// WriteChartTo is WriteChart for an arbitrary writer.
func WriteChartTo(w io.Writer, format, title, ylabel string, xs, ys []float64) error {
	p, err := newChart(title, ylabel, xs, ys)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(chartWidth, chartHeight, format)
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

func newChart(title, ylabel string, xs, ys []float64) (*plot.Plot, error) {
	if len(xs) == 0 {
		return nil, ErrNoData
	}
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("export: %d x values for %d y values", len(xs), len(ys))
	}

	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	p.Add(line)
	return p, nil
}
