package main

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var phaseColors = [3]color.RGBA{
	{R: 200, G: 40, B: 40, A: 255},
	{R: 40, G: 140, B: 40, A: 255},
	{R: 40, G: 70, B: 200, A: 255},
}

// PlotDuties renders the three duty waveforms against electrical angle.
func PlotDuties(path, title string, points []SweepPoint) error {
	if len(points) == 0 {
		return fmt.Errorf("no points to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "electrical angle (deg)"
	p.Y.Label.Text = "compare value"
	p.Add(plotter.NewGrid())

	series := [3]plotter.XYs{
		make(plotter.XYs, len(points)),
		make(plotter.XYs, len(points)),
		make(plotter.XYs, len(points)),
	}
	for i, pt := range points {
		x := pt.AngleRad * 180 / math.Pi
		series[0][i] = plotter.XY{X: x, Y: pt.DutyA}
		series[1][i] = plotter.XY{X: x, Y: pt.DutyB}
		series[2][i] = plotter.XY{X: x, Y: pt.DutyC}
	}

	for i, name := range []string{"A", "B", "C"} {
		l, err := plotter.NewLine(series[i])
		if err != nil {
			return fmt.Errorf("phase %s: %w", name, err)
		}
		l.Color = phaseColors[i]
		l.Width = vg.Points(1.5)
		p.Add(l)
		p.Legend.Add("duty "+name, l)
	}

	return p.Save(9*vg.Inch, 4.5*vg.Inch, path)
}
