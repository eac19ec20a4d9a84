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
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/tdac"
)

// Run runs a batch reactor simulation of cells using mechanism m and
// configuration c, advancing nSteps time steps of length Δt. Log
// messages are written to out and to logFile, and the output variables
// are written to outputFile after every step. If plotFile is not empty,
// a plot of the total heat release over time is saved to it. At the end,
// a profile of the time spent in each phase of the calculation is
// written to out.
func Run(ctx context.Context, out io.Writer, logFile, outputFile, plotFile string, outputVariables map[string]string,
	m *tdac.Mechanism, c *tdac.Config, cells []*tdac.Cell, Δt float64, nSteps int, normalizeProfile bool) error {

	startTime := time.Now()

	if !(Δt > 0) {
		return fmt.Errorf("tdac: TimeStep=%g but should be >0", Δt)
	}
	if nSteps < 0 {
		return fmt.Errorf("tdac: NumSteps=%d but should be >=0", nSteps)
	}

	logfile, err := os.Create(logFile)
	if err != nil {
		return fmt.Errorf("tdac: problem creating log file: %v", err)
	}
	defer logfile.Close()
	log := logrus.New()
	log.Out = io.MultiWriter(out, logfile)

	timers := tdac.NewTimers()
	cm, err := tdac.NewChemistryModel(m, c, cells, timers, log)
	if err != nil {
		return err
	}
	defer cm.Close()
	comb, err := tdac.NewCombustionModel(cm)
	if err != nil {
		return err
	}

	log.Println("Parsing output variable expressions...")
	o, err := tdac.NewOutputter(outputVariables, nil)
	if err != nil {
		return err
	}
	if err = cm.CheckOutputVars(o); err != nil {
		return err
	}
	w, err := newNetCDFWriter(outputFile, o, cm)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"mechanism":  m.Name,
		"species":    m.Len(),
		"reactions":  len(m.Reactions),
		"cells":      len(cells),
		"combustion": c.Combustion,
	}).Info("starting simulation")

	var h history
	t := 0.
	for step := 1; step <= nSteps; step++ {
		if err = comb.Correct(ctx, Δt); err != nil {
			w.Close()
			return err
		}
		t += Δt
		data, err := cm.Results(o)
		if err != nil {
			w.Close()
			return err
		}
		if err = w.write(t, data); err != nil {
			w.Close()
			return err
		}
		stats := cm.Stats()
		q := cm.HeatRelease().Value()
		h.add(t, q)
		log.WithFields(logrus.Fields{
			"step":         step,
			"time":         t,
			"heat release": q,
			"table size":   stats.Size,
			"hit ratio":    stats.HitRatio(),
			"fallbacks":    cm.Fallbacks(),
		}).Info("step complete")
	}
	if err = w.Close(); err != nil {
		return err
	}
	if plotFile != "" {
		if err = h.savePlot(plotFile, m.Name); err != nil {
			return err
		}
	}

	log.Infof("simulation complete in %v", time.Since(startTime))
	return PrintProfile(out, timers, time.Since(startTime), normalizeProfile)
}
