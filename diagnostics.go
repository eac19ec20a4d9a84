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

package tdac

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/sirupsen/logrus"
)

// DiagnosticsDir is the subdirectory of Config.LogDir that diagnostic
// files are written to.
const DiagnosticsDir = "TDAC"

// diagnostics writes per-step reduction and tabulation statistics as
// JSON lines. A nil *diagnostics writes nothing.
type diagnostics struct {
	reduction, tabulation *logrus.Logger
	files                 []*os.File
}

func newDiagnostics(logDir string) (*diagnostics, error) {
	if logDir == "" {
		return nil, nil
	}
	dir := filepath.Join(logDir, DiagnosticsDir)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("tdac: creating diagnostics directory: %v", err)
	}
	d := new(diagnostics)
	for _, l := range []struct {
		name string
		log  **logrus.Logger
	}{{"reduction.log", &d.reduction}, {"tabulation.log", &d.tabulation}} {
		f, err := os.Create(filepath.Join(dir, l.name))
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("tdac: creating diagnostics file: %v", err)
		}
		d.files = append(d.files, f)
		lg := logrus.New()
		lg.Out = f
		lg.Formatter = &logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano}
		*l.log = lg
	}
	return d, nil
}

// stepSummary holds the statistics of one call to Solve.
type stepSummary struct {
	step      int
	dt        float64
	nActive   []float64
	nSpecies  int
	tab       TabulationStats
	tabDelta  TabulationStats
	fallbacks int
}

func (d *diagnostics) record(s stepSummary) {
	if d == nil {
		return
	}
	fields := logrus.Fields{
		"step":      s.step,
		"dt":        s.dt,
		"species":   s.nSpecies,
		"cells":     len(s.nActive),
		"fallbacks": s.fallbacks,
	}
	if len(s.nActive) > 0 {
		fields["activeMean"] = stats.StatsMean(s.nActive)
		fields["activeMin"] = stats.StatsMin(s.nActive)
		fields["activeMax"] = stats.StatsMax(s.nActive)
	}
	d.reduction.WithFields(fields).Info("reduction")

	lookups := s.tabDelta.Hits + s.tabDelta.Misses
	ratio := 0.
	if lookups > 0 {
		ratio = float64(s.tabDelta.Hits) / float64(lookups)
	}
	d.tabulation.WithFields(logrus.Fields{
		"step":      s.step,
		"size":      s.tab.Size,
		"hits":      s.tabDelta.Hits,
		"misses":    s.tabDelta.Misses,
		"hitRatio":  ratio,
		"inserts":   s.tabDelta.Inserts,
		"evictions": s.tabDelta.Evictions,
		"removals":  s.tabDelta.Removals,
	}).Info("tabulation")
}

// Close closes the diagnostic files.
func (d *diagnostics) Close() error {
	if d == nil {
		return nil
	}
	var err error
	for _, f := range d.files {
		if e := f.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

func (s TabulationStats) sub(o TabulationStats) TabulationStats {
	return TabulationStats{
		Size:      s.Size,
		Hits:      s.Hits - o.Hits,
		Misses:    s.Misses - o.Misses,
		Inserts:   s.Inserts - o.Inserts,
		Evictions: s.Evictions - o.Evictions,
		Removals:  s.Removals - o.Removals,
		Clears:    s.Clears - o.Clears,
	}
}
