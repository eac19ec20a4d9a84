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
	"sync"
	"testing"
	"time"
)

func TestTimersNil(t *testing.T) {
	var tm *Timers
	tm.Start(PhaseIntegration).Stop()
	tm.Reset()
	if tm.Elapsed(PhaseIntegration) != 0 || tm.Calls(PhaseIntegration) != 0 {
		t.Error("nil timers should record nothing")
	}
}

func TestTimers(t *testing.T) {
	tm := NewTimers()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := tm.Start(PhaseRateEval)
			time.Sleep(time.Millisecond)
			s.Stop()
		}()
	}
	wg.Wait()
	if c := tm.Calls(PhaseRateEval); c != 10 {
		t.Errorf("calls = %d; want 10", c)
	}
	if e := tm.Elapsed(PhaseRateEval); e < 10*time.Millisecond {
		t.Errorf("elapsed = %v; want at least 10ms", e)
	}
	if tm.Calls(PhaseReduction) != 0 {
		t.Error("phases should be timed independently")
	}
	tm.Reset()
	if tm.Calls(PhaseRateEval) != 0 || tm.Elapsed(PhaseRateEval) != 0 {
		t.Error("timers were not reset")
	}
}

func TestPhases(t *testing.T) {
	p := Phases()
	if len(p) != 11 {
		t.Fatalf("there are %d phases; want 11", len(p))
	}
	if p[0] != PhaseReduction || p[9] != PhaseEDCCorrection || p[10] != PhaseFuelConsumption {
		t.Errorf("phases = %v", p)
	}
	if s := PhaseTabulation.String(); s != "Tabulation lookup" {
		t.Errorf("name = %q", s)
	}
	if s := PhaseSpeciesRateEval.String(); s != "Species rate evaluation" {
		t.Errorf("name = %q", s)
	}
	if s := Phase(100).String(); s != "unknown phase" {
		t.Errorf("name = %q", s)
	}
}
