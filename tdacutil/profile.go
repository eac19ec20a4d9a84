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
	"io"
	"text/tabwriter"
	"time"

	"github.com/spatialmodel/tdac"
)

// PrintProfile writes the time spent in each phase of the chemistry
// calculation to w. If normalize is true, times are shown as fractions
// of total instead of in seconds.
func PrintProfile(w io.Writer, t *tdac.Timers, total time.Duration, normalize bool) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', tabwriter.AlignRight)
	if normalize {
		fmt.Fprintln(tw, "Phase\tFraction\tCalls\t")
	} else {
		fmt.Fprintln(tw, "Phase\tTime [s]\tCalls\t")
	}
	for _, p := range tdac.Phases() {
		e := t.Elapsed(p)
		if normalize {
			f := 0.
			if total > 0 {
				f = float64(e) / float64(total)
			}
			fmt.Fprintf(tw, "%s\t%.4f\t%d\t\n", p, f, t.Calls(p))
		} else {
			fmt.Fprintf(tw, "%s\t%.4g\t%d\t\n", p, e.Seconds(), t.Calls(p))
		}
	}
	if normalize {
		fmt.Fprintf(tw, "Total\t%.4f\t\t\n", 1.)
	} else {
		fmt.Fprintf(tw, "Total\t%.4g\t\t\n", total.Seconds())
	}
	return tw.Flush()
}

// PrintMechanism writes a summary of the species and reactions of m
// to w.
func PrintMechanism(w io.Writer, m *tdac.Mechanism) error {
	fmt.Fprintf(w, "Mechanism %s: %d species, %d reactions, inert species %s\n\n",
		m.Name, m.Len(), len(m.Reactions), m.Inert)
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "Species\tW [kg/mol]\tHf [J/kg]")
	for _, s := range m.Species {
		fmt.Fprintf(tw, "%s\t%g\t%g\n", s.Name, s.W, s.Hf)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "Reaction\tA\tβ\tTa [K]\tReversible\tThird body")
	for _, r := range m.Reactions {
		fmt.Fprintf(tw, "%s\t%g\t%g\t%g\t%v\t%v\n", r.Name, r.Forward.A, r.Forward.Beta, r.Forward.Ta,
			r.Reverse != nil, r.ThirdBody != nil)
	}
	return tw.Flush()
}
