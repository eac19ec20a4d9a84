/*
Copyright © 2026 the TDAC authors.
This file is part of TDAC.

TDAC is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

TDAC is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with TDAC.  If not, see <http://www.gnu.org/licenses/>.
*/


package tdacutil

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// history holds the total heat release at the end of each step of a
// simulation.
type history struct {
	xy plotter.XYs
}

func (h *history) add(t, heatRelease float64) {
	h.xy = append(h.xy, plotter.XYs{{X: t, Y: heatRelease}}...)
}

// savePlot saves a plot of the total heat release against simulation
// time to filename. The image format is determined by the file
// extension.
func (h *history) savePlot(filename, mechanism string) error {
	if len(h.xy) == 0 {
		return fmt.Errorf("tdac: there are no steps to plot")
	}
	p, err := plot.New()
	if err != nil {
		return fmt.Errorf("tdac: creating plot: %v", err)
	}
	p.Title.Text = "Heat release: " + mechanism
	p.X.Label.Text = "Time [s]"
	p.Y.Label.Text = "Heat release [W]"
	l, pts, err := plotter.NewLinePoints(h.xy)
	if err != nil {
		return fmt.Errorf("tdac: creating plot: %v", err)
	}
	p.Add(l, pts, plotter.NewGrid())
	if err := p.Save(6*vg.Inch, 4*vg.Inch, filename); err != nil {
		return fmt.Errorf("tdac: saving plot: %v", err)
	}
	return nil
}
