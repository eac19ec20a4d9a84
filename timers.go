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
	"sync/atomic"
	"time"
)

// Phase identifies a timed phase of the chemistry calculation.
type Phase int

// These are the phases that are timed.
const (
	PhaseReduction Phase = iota
	PhaseTabulation
	PhaseIntegration
	PhaseJacobianEval
	PhaseRateEval
	PhaseSpeciesRateEval
	PhaseDerivativeEval
	PhaseHeatReleaseEval
	PhaseTimeScaleEval
	PhaseEDCCorrection
	PhaseFuelConsumption
	numPhases
)

var phaseNames = [numPhases]string{
	"Mechanism reduction",
	"Tabulation lookup",
	"Integration",
	"Jacobian evaluation",
	"Rate evaluation",
	"Species rate evaluation",
	"Derivative evaluation",
	"Heat release evaluation",
	"Time scale evaluation",
	"EDC correction",
	"Fuel consumption",
}

func (p Phase) String() string {
	if p < 0 || p >= numPhases {
		return "unknown phase"
	}
	return phaseNames[p]
}

// Phases returns all of the timed phases in order.
func Phases() []Phase {
	o := make([]Phase, numPhases)
	for i := range o {
		o[i] = Phase(i)
	}
	return o
}

// Timers accumulates the wall-clock time spent in each phase. It is
// safe for concurrent use. A nil *Timers is valid and records nothing,
// so callers that are not interested in timing can pass nil.
type Timers struct {
	elapsed [numPhases]int64 // nanoseconds
	calls   [numPhases]int64
}

// NewTimers returns a new set of timers.
func NewTimers() *Timers { return new(Timers) }

// Span is a running timer for one phase.
type Span struct {
	t     *Timers
	p     Phase
	start time.Time
}

// Start starts timing phase p.
func (t *Timers) Start(p Phase) Span {
	if t == nil {
		return Span{}
	}
	return Span{t: t, p: p, start: time.Now()}
}

// Stop stops the span and adds its duration to the timers.
func (s Span) Stop() {
	if s.t == nil {
		return
	}
	atomic.AddInt64(&s.t.elapsed[s.p], int64(time.Since(s.start)))
	atomic.AddInt64(&s.t.calls[s.p], 1)
}

// Elapsed returns the total time spent in phase p.
func (t *Timers) Elapsed(p Phase) time.Duration {
	if t == nil {
		return 0
	}
	return time.Duration(atomic.LoadInt64(&t.elapsed[p]))
}

// Calls returns the number of completed spans for phase p.
func (t *Timers) Calls(p Phase) int {
	if t == nil {
		return 0
	}
	return int(atomic.LoadInt64(&t.calls[p]))
}

// Reset sets all timers to zero.
func (t *Timers) Reset() {
	if t == nil {
		return
	}
	for p := range t.elapsed {
		atomic.StoreInt64(&t.elapsed[p], 0)
		atomic.StoreInt64(&t.calls[p], 0)
	}
}
