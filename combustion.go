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
	"fmt"
)

// CombustionModel provides the chemical source terms for the species
// and energy equations.
type CombustionModel interface {
	// Correct advances the chemistry over the time step Δt.
	Correct(ctx context.Context, Δt float64) error

	// R returns the reaction rate [kg/m³/s] of the named species in
	// each cell.
	R(species string) ([]float64, error)

	// Qdot returns the heat release rate [W/m³] in each cell.
	Qdot() []float64

	// FuelConsumption returns the consumption rate [kg/m³/s] of the
	// named fuel in each cell.
	FuelConsumption(fuel string) ([]float64, error)
}

// NewCombustionModel returns the combustion model selected by the
// Combustion configuration variable of cm.
func NewCombustionModel(cm *ChemistryModel) (CombustionModel, error) {
	switch cm.cfg.Combustion {
	case "laminar":
		return &Laminar{ChemistryModel: cm}, nil
	case "EDC":
		return &EDC{ChemistryModel: cm}, nil
	default:
		return nil, fmt.Errorf("tdac: invalid combustion model %q", cm.cfg.Combustion)
	}
}

// Laminar is a combustion model that uses the chemical source terms
// directly.
type Laminar struct {
	*ChemistryModel
}

// Correct implements CombustionModel.
func (l *Laminar) Correct(ctx context.Context, Δt float64) error {
	_, err := l.Solve(ctx, Δt)
	return err
}

// R implements CombustionModel.
func (l *Laminar) R(species string) ([]float64, error) {
	return l.ReactionRate(species)
}

// Qdot implements CombustionModel.
func (l *Laminar) Qdot() []float64 { return l.HeatReleaseRate() }

// FuelConsumption implements CombustionModel.
func (l *Laminar) FuelConsumption(fuel string) ([]float64, error) {
	defer l.timers.Start(PhaseFuelConsumption).Stop()
	r, err := l.ReactionRate(fuel)
	if err != nil {
		return nil, err
	}
	for i, v := range r {
		r[i] = -v
	}
	return r, nil
}

// EDC is an eddy dissipation concept combustion model, in which
// reactions only occur in the reacting fraction Kappa of each cell.
type EDC struct {
	*ChemistryModel
}

// Correct implements CombustionModel. Only the reacting fraction of
// each cell is advanced: the cell composition moves from its initial
// value by Kappa times the change calculated for the whole cell, which
// keeps it consistent with the scaled rates returned by R and Qdot.
func (e *EDC) Correct(ctx context.Context, Δt float64) error {
	sp := e.timers.Start(PhaseEDCCorrection)
	y0 := make([][]float64, len(e.Cells))
	for i, c := range e.Cells {
		if c.Kappa < 0 || c.Kappa > 1 {
			sp.Stop()
			return &CellError{Cell: c.Index, T: c.T, P: c.P, Y: append([]float64(nil), c.Y...),
				Phase: "EDC correction", Err: fmt.Errorf("reacting fraction %g is outside of [0, 1]", c.Kappa)}
		}
		y0[i] = append([]float64(nil), c.Y...)
	}
	sp.Stop()

	if _, err := e.Solve(ctx, Δt); err != nil {
		return err
	}

	defer e.timers.Start(PhaseEDCCorrection).Stop()
	for i, c := range e.Cells {
		c.Lock()
		for j, y := range c.Y {
			c.Y[j] = y0[i][j] + c.Kappa*(y-y0[i][j])
		}
		c.Unlock()
	}
	return nil
}

// scale multiplies each value by the reacting fraction of its cell.
func (e *EDC) scale(v []float64) []float64 {
	for i, c := range e.Cells {
		c.Lock()
		v[i] *= c.Kappa
		c.Unlock()
	}
	return v
}

// R implements CombustionModel.
func (e *EDC) R(species string) ([]float64, error) {
	r, err := e.ReactionRate(species)
	if err != nil {
		return nil, err
	}
	return e.scale(r), nil
}

// Qdot implements CombustionModel.
func (e *EDC) Qdot() []float64 {
	defer e.timers.Start(PhaseHeatReleaseEval).Stop()
	return e.scale(e.HeatReleaseRate())
}

// FuelConsumption implements CombustionModel.
func (e *EDC) FuelConsumption(fuel string) ([]float64, error) {
	defer e.timers.Start(PhaseFuelConsumption).Stop()
	r, err := e.R(fuel)
	if err != nil {
		return nil, err
	}
	for i, v := range r {
		r[i] = -v
	}
	return r, nil
}
