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
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/ctessum/unit"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// inputMassTolerance is the allowed deviation of input mass fractions
// from the valid range before they are normalized.
const inputMassTolerance = 1e-4

// TimeStepState holds the adaptive time step history of a cell.
type TimeStepState struct {
	// Enabled specifies whether integration starts from the last
	// successful sub-step instead of the full time step.
	Enabled bool

	// Steps is the number of accepted sub-steps since the last reset.
	Steps int

	// DeltaTChem is the recommended sub-step from the last integration [s].
	DeltaTChem float64
}

// TabulationResult records how the result of the last chemistry
// calculation of a cell was obtained.
type TabulationResult int

// These are the possible tabulation results.
const (
	Unset      TabulationResult = iota // not calculated since the last reset
	Integrated                         // integrated and, if enabled, added to the table
	Retrieved                          // retrieved from the table
)

func (r TabulationResult) String() string {
	switch r {
	case Integrated:
		return "integrated"
	case Retrieved:
		return "retrieved"
	default:
		return "unset"
	}
}

// Cell holds the chemical state of one control volume and the results
// of the last chemistry calculation for it.
type Cell struct {
	sync.Mutex

	Index  int
	Y      []float64 // species mass fractions
	T      float64   // temperature [K]
	P      float64   // pressure [Pa]
	Volume float64   // [m³]

	// Kappa is the reacting fraction of the cell used by the eddy
	// dissipation concept combustion model.
	Kappa float64

	// MaxSubStep is the largest allowed initial sub-step [s], or zero
	// for no limit.
	MaxSubStep float64

	TimeStep TimeStepState

	RR   []float64 // species reaction rates [kg/m³/s]
	Qdot float64   // heat release rate [W/m³]
	Tc   float64   // chemical time scale [s]

	TabulationResult TabulationResult

	active *IndexMap
}

// NewCell returns a cell with the given state and a reacting fraction
// of one.
func NewCell(index int, y []float64, T, P, volume float64) *Cell {
	return &Cell{
		Index:  index,
		Y:      append([]float64(nil), y...),
		T:      T,
		P:      P,
		Volume: volume,
		Kappa:  1,
		RR:     make([]float64, len(y)),
	}
}

// ChemistryModel calculates the chemical reactions in a set of cells,
// using mechanism reduction and tabulation to reduce the cost of
// integrating the chemistry.
type ChemistryModel struct {
	Cells []*Cell

	// Log receives warnings about cells that fall back to their last
	// good state.
	Log logrus.FieldLogger

	cfg    *Config
	timers *Timers

	mech       *Mechanism
	kinetics   *Kinetics
	integrator *Integrator
	reducer    *Reducer
	full       *IndexMap
	tab        *Tabulation
	diag       *diagnostics

	step      int
	fallbacks int64
}

// NewChemistryModel returns a chemistry model for the given cells.
// cfg is validated. timers and log may be nil.
func NewChemistryModel(m *Mechanism, cfg *Config, cells []*Cell, timers *Timers, log logrus.FieldLogger) (*ChemistryModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	cm := &ChemistryModel{
		Cells:  cells,
		Log:    log,
		cfg:    cfg,
		timers: timers,
	}
	if err := cm.SetMechanism(m); err != nil {
		return nil, err
	}
	for _, c := range cells {
		c.TimeStep.Enabled = cfg.VariableTimeStep
	}
	var err error
	if cm.diag, err = newDiagnostics(cfg.LogDir); err != nil {
		return nil, err
	}
	return cm, nil
}

// SetMechanism replaces the chemical mechanism. Tabulated results for a
// different mechanism are discarded.
func (cm *ChemistryModel) SetMechanism(m *Mechanism) error {
	k := NewKinetics(m, cm.timers)
	r, err := NewReducer(k, cm.cfg.Reduction.SearchInitThreshold, cm.cfg.Reduction.InitialSet, cm.cfg.Reduction.IncludeOnTie)
	if err != nil {
		return err
	}
	cm.mech = m
	cm.kinetics = k
	cm.reducer = r
	cm.integrator = NewIntegrator(k, cm.cfg.Integrator.RelTol, cm.cfg.Integrator.AbsTol, cm.cfg.Integrator.MaxSubSteps)
	cm.full = FullIndexMap(m)
	if cm.tab == nil || cm.tab.n != m.Len() {
		cm.tab = NewTabulation(m, cm.cfg.Tabulation, cm.timers)
	} else {
		cm.tab.SetFingerprint(m.Fingerprint())
	}
	return nil
}

// Mechanism returns the chemical mechanism.
func (cm *ChemistryModel) Mechanism() *Mechanism { return cm.mech }

// Kinetics returns the kinetics evaluator.
func (cm *ChemistryModel) Kinetics() *Kinetics { return cm.kinetics }

// Tabulation returns the tabulation cache.
func (cm *ChemistryModel) Tabulation() *Tabulation { return cm.tab }

// Solve advances the chemistry in every cell over the time step Δt.
// The cells are processed concurrently. It returns the smallest
// recommended sub-step of any cell. If a cell fails, the calculation
// stops and the returned error is a *CellError identifying the cell.
func (cm *ChemistryModel) Solve(ctx context.Context, Δt float64) (float64, error) {
	if !(Δt > 0) || math.IsInf(Δt, 0) {
		return 0, fmt.Errorf("tdac: invalid time step %g", Δt)
	}
	cm.tab.SetFingerprint(cm.mech.Fingerprint())
	tabBefore := cm.tab.Stats()
	fallbacksBefore := atomic.LoadInt64(&cm.fallbacks)

	nprocs := cm.cfg.Workers
	minStep := make([]float64, nprocs)
	g, ctx := errgroup.WithContext(ctx)
	for pp := 0; pp < nprocs; pp++ {
		pp := pp
		minStep[pp] = math.Inf(1)
		g.Go(func() error {
			for ii := pp; ii < len(cm.Cells); ii += nprocs {
				if err := ctx.Err(); err != nil {
					return err
				}
				c := cm.Cells[ii]
				c.Lock() // Each cell is only modified by one worker at a time.
				err := cm.solveCell(c, Δt)
				if c.TimeStep.DeltaTChem > 0 {
					minStep[pp] = math.Min(minStep[pp], c.TimeStep.DeltaTChem)
				}
				c.Unlock()
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	ΔtMin := Δt
	for _, v := range minStep {
		ΔtMin = math.Min(ΔtMin, v)
	}
	cm.step++
	if cm.diag != nil {
		s := stepSummary{
			step:      cm.step,
			dt:        Δt,
			nSpecies:  cm.mech.Len(),
			nActive:   make([]float64, len(cm.Cells)),
			tab:       cm.tab.Stats(),
			fallbacks: int(atomic.LoadInt64(&cm.fallbacks) - fallbacksBefore),
		}
		s.tabDelta = s.tab.sub(tabBefore)
		for i, c := range cm.Cells {
			if c.active != nil {
				s.nActive[i] = float64(c.active.NumActive())
			}
		}
		cm.diag.record(s)
	}
	return ΔtMin, nil
}

// solveCell runs the chemistry for one cell. The cell must be locked.
func (cm *ChemistryModel) solveCell(c *Cell, Δt float64) error {
	if len(c.Y) != cm.mech.Len() {
		return cm.cellError(c, "input", fmt.Errorf("cell has %d species but the mechanism has %d", len(c.Y), cm.mech.Len()))
	}
	in := &ChemicalState{Y: c.Y, T: c.T, P: c.P}
	if err := in.Check(inputMassTolerance); err != nil {
		return cm.fail(c, "input", err)
	}
	s := in.Clone()
	s.Normalize()
	ρ := s.Density(cm.mech)
	y0 := append([]float64(nil), s.Y...)

	a := cm.full
	if cm.cfg.Reduction.Enabled {
		var err error
		if a, err = cm.reducer.Reduce(s, ρ, cm.cfg.Reduction.Tolerance); err != nil {
			return cm.fail(c, "reduction", err)
		}
	}
	c.active = a

	tc, err := cm.kinetics.TimeScale(s, ρ, a)
	if err != nil {
		return cm.fail(c, "time scale", err)
	}

	var phi []float64
	hit := false
	if cm.cfg.TabulationEnabled {
		phi = cm.tab.Descriptor(s, Δt)
		var r []float64
		if r, hit = cm.tab.Lookup(phi); hit {
			copy(s.Y, r)
		}
	}
	if !hit {
		h0 := Δt
		if c.TimeStep.Enabled && c.TimeStep.DeltaTChem > 0 {
			h0 = c.TimeStep.DeltaTChem
		}
		if c.MaxSubStep > 0 {
			h0 = math.Min(h0, c.MaxSubStep)
		}
		res, err := cm.integrator.Integrate(s, ρ, a, Δt, h0)
		if err != nil {
			return cm.fail(c, "integration", err)
		}
		c.TimeStep.Steps += res.Steps
		c.TimeStep.DeltaTChem = res.NextStep
		if cm.cfg.TabulationEnabled {
			cm.tab.Audit(phi, s.Y)
			A, err := cm.kinetics.Sensitivity(s, ρ, a, Δt, cm.cfg.Tabulation)
			if err != nil {
				cm.Log.WithFields(logrus.Fields{"cell": c.Index, "error": err}).Debug("tdac: result not tabulated")
			} else if err := cm.tab.Insert(phi, s.Y, A, a.NumActive()); err != nil {
				return cm.cellError(c, "tabulation", err)
			}
		}
	}

	if len(c.RR) != len(s.Y) {
		c.RR = make([]float64, len(s.Y))
	}
	for i, y := range s.Y {
		c.RR[i] = ρ * (y - y0[i]) / Δt
	}
	c.Qdot = cm.kinetics.HeatRelease(c.RR)
	c.Tc = tc
	c.TabulationResult = Integrated
	if hit {
		c.TabulationResult = Retrieved
	}
	copy(c.Y, s.Y)
	return nil
}

// fail handles an error in cell c. Domain errors are substituted by
// the last good state if FallbackToLastGood is set.
func (cm *ChemistryModel) fail(c *Cell, phase string, err error) error {
	var de *NumericalDomainError
	if cm.cfg.FallbackToLastGood && errors.As(err, &de) {
		for i := range c.RR {
			c.RR[i] = 0
		}
		c.Qdot = 0
		c.TabulationResult = Unset
		atomic.AddInt64(&cm.fallbacks, 1)
		cm.Log.WithFields(logrus.Fields{
			"cell":  c.Index,
			"T":     c.T,
			"P":     c.P,
			"phase": phase,
		}).Warnf("tdac: keeping last good state: %v", err)
		return nil
	}
	return cm.cellError(c, phase, err)
}

func (cm *ChemistryModel) cellError(c *Cell, phase string, err error) error {
	return &CellError{
		Cell:  c.Index,
		T:     c.T,
		P:     c.P,
		Y:     append([]float64(nil), c.Y...),
		Phase: phase,
		Err:   err,
	}
}

// Fallbacks returns the number of times a cell has kept its last good
// state instead of failing.
func (cm *ChemistryModel) Fallbacks() int { return int(atomic.LoadInt64(&cm.fallbacks)) }

// ReactionRate returns the net reaction rate [kg/m³/s] of the named
// species in every cell.
func (cm *ChemistryModel) ReactionRate(species string) ([]float64, error) {
	i, err := cm.mech.SpeciesIndex(species)
	if err != nil {
		return nil, err
	}
	o := make([]float64, len(cm.Cells))
	for j, c := range cm.Cells {
		c.Lock()
		if i < len(c.RR) {
			o[j] = c.RR[i]
		}
		c.Unlock()
	}
	return o, nil
}

// HeatReleaseRate returns the heat release rate [W/m³] in every cell.
func (cm *ChemistryModel) HeatReleaseRate() []float64 {
	o := make([]float64, len(cm.Cells))
	for j, c := range cm.Cells {
		c.Lock()
		o[j] = c.Qdot
		c.Unlock()
	}
	return o
}

// TimeScale returns the chemical time scale [s] in every cell.
func (cm *ChemistryModel) TimeScale() []float64 {
	o := make([]float64, len(cm.Cells))
	for j, c := range cm.Cells {
		c.Lock()
		o[j] = c.Tc
		c.Unlock()
	}
	return o
}

// HeatRelease returns the total heat release rate of all cells.
func (cm *ChemistryModel) HeatRelease() *unit.Unit {
	v := 0.
	for _, c := range cm.Cells {
		c.Lock()
		v += c.Qdot * c.Volume
		c.Unlock()
	}
	return unit.New(v, unit.Watt)
}

// IndexMap returns the active species and reactions that the last
// reduction selected for cell i. It returns nil if cell i has not been
// solved.
func (cm *ChemistryModel) IndexMap(i int) *IndexMap {
	c := cm.Cells[i]
	c.Lock()
	defer c.Unlock()
	return c.active
}

// Active returns whether the named species was active in cell i in the
// last calculation.
func (cm *ChemistryModel) Active(i int, species string) (bool, error) {
	idx, err := cm.mech.SpeciesIndex(species)
	if err != nil {
		return false, err
	}
	a := cm.IndexMap(i)
	if a == nil {
		return false, fmt.Errorf("tdac: cell %d has not been solved", i)
	}
	return a.Active(idx), nil
}

// Reset clears the time step history of every cell.
func (cm *ChemistryModel) Reset() {
	for _, c := range cm.Cells {
		c.Lock()
		c.TimeStep = TimeStepState{Enabled: cm.cfg.VariableTimeStep}
		c.Unlock()
	}
}

// ResetTabulation removes all tabulated results and sets the
// tabulation result of every cell to Unset.
func (cm *ChemistryModel) ResetTabulation() {
	cm.tab.Clear()
	cm.ResetTabulationResults()
}

// ResetTabulationResults sets the tabulation result of every cell to
// Unset.
func (cm *ChemistryModel) ResetTabulationResults() {
	for _, c := range cm.Cells {
		c.Lock()
		c.TabulationResult = Unset
		c.Unlock()
	}
}

// TabulationResults returns the tabulation result of the last
// calculation in every cell.
func (cm *ChemistryModel) TabulationResults() []TabulationResult {
	o := make([]TabulationResult, len(cm.Cells))
	for j, c := range cm.Cells {
		c.Lock()
		o[j] = c.TabulationResult
		c.Unlock()
	}
	return o
}

// Stats returns the tabulation statistics.
func (cm *ChemistryModel) Stats() TabulationStats { return cm.tab.Stats() }

// Close closes the diagnostic files.
func (cm *ChemistryModel) Close() error { return cm.diag.Close() }
