// Package figure renders labeled curves to an image file.
package figure

import (
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

const (
	width  = 8 * vg.Inch
	height = 5 * vg.Inch
)

// Figure is a line plot with a grid and a legend.
type Figure struct {
	p     *plot.Plot
	lines int
}

func New(title, xLabel, yLabel string) *Figure {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	return &Figure{p: p}
}

// AddLine adds the curve (xs[i], ys[i]) under label.
func (f *Figure) AddLine(label string, xs, ys []float64) error {
	if len(xs) != len(ys) {
		return errors.Errorf("%d xs, %d ys", len(xs), len(ys))
	}
	xys := make(plotter.XYs, len(xs))
	for i := range xys {
		xys[i].X = xs[i]
		xys[i].Y = ys[i]
	}

	l, err := plotter.NewLine(xys)
	if err != nil {
		return errors.Wrap(err, label)
	}
	l.Color = plotutil.Color(f.lines)
	l.Width = vg.Points(1.5)
	f.p.Add(l)
	f.p.Legend.Add(label, l)
	f.lines++
	return nil
}

func (f *Figure) Lines() int { return f.lines }

// Save renders the figure to path. The format follows the file extension.
func (f *Figure) Save(path string) error {
	if err := f.p.Save(width, height, path); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}
