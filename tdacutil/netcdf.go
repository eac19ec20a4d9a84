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
	"os"

	"github.com/ctessum/cdf"
	"github.com/spatialmodel/tdac"
)

// netcdfWriter writes the output variables of a ChemistryModel to a
// NetCDF file with one record per time step.
type netcdfWriter struct {
	ff     *os.File
	f      *cdf.File
	names  []string
	nCells int
	step   int
}

// newNetCDFWriter creates a NetCDF file at path for the output variables
// of o in the nCells cells of cm.
func newNetCDFWriter(path string, o *tdac.Outputter, cm *tdac.ChemistryModel) (*netcdfWriter, error) {
	w := &netcdfWriter{names: o.Names(), nCells: len(cm.Cells)}

	names, descriptions, units := cm.OutputOptions()
	desc := make(map[string]string, len(names))
	unit := make(map[string]string, len(names))
	for i, n := range names {
		desc[n] = descriptions[i]
		unit[n] = units[i]
	}

	h := cdf.NewHeader([]string{"step", "cell"}, []int{0, w.nCells})
	h.AddVariable("time", []string{"step"}, []float64{0})
	h.AddAttribute("time", "description", "Simulation time at the end of the step")
	h.AddAttribute("time", "units", "s")
	for _, v := range w.names {
		h.AddVariable(v, []string{"step", "cell"}, []float64{0})
		expr := o.Expression(v)
		if d, ok := desc[expr]; ok {
			h.AddAttribute(v, "description", d)
			h.AddAttribute(v, "units", unit[expr])
		} else {
			h.AddAttribute(v, "description", expr)
		}
	}
	h.AddAttribute("", "mechanism", cm.Mechanism().Name)
	h.AddAttribute("", "version", tdac.Version)
	h.Define()

	for _, err := range h.Check() {
		return nil, fmt.Errorf("tdac: creating output file: %v", err)
	}
	var err error
	if w.ff, err = os.Create(path); err != nil {
		return nil, fmt.Errorf("tdac: creating output file: %v", err)
	}
	if w.f, err = cdf.Create(w.ff, h); err != nil {
		w.ff.Close()
		return nil, fmt.Errorf("tdac: creating output file: %v", err)
	}
	return w, nil
}

// write adds a record for simulation time t.
func (w *netcdfWriter) write(t float64, data map[string][]float64) error {
	tw := w.f.Writer("time", []int{w.step}, []int{w.step + 1})
	if _, err := tw.Write([]float64{t}); err != nil {
		return fmt.Errorf("tdac: writing time to output file: %v", err)
	}
	for _, v := range w.names {
		d, ok := data[v]
		if !ok || len(d) != w.nCells {
			return fmt.Errorf("tdac: output variable %s has %d values but there are %d cells", v, len(d), w.nCells)
		}
		vw := w.f.Writer(v, []int{w.step, 0}, []int{w.step + 1, w.nCells})
		if _, err := vw.Write(d); err != nil {
			return fmt.Errorf("tdac: writing %s to output file: %v", v, err)
		}
	}
	w.step++
	return nil
}

// Close finalizes the record count and closes the file.
func (w *netcdfWriter) Close() error {
	if err := cdf.UpdateNumRecs(w.ff); err != nil {
		w.ff.Close()
		return fmt.Errorf("tdac: finalizing output file: %v", err)
	}
	return w.ff.Close()
}
