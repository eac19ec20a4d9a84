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
	"math"

	"gonum.org/v1/gonum/mat"
)

// maxTimeScale is returned by TimeScale when nothing is reacting.
const maxTimeScale = 1e300

// cMin is the concentration used in place of zero when differentiating
// rate laws with fractional orders.
const cMin = 1e-20

// Kinetics evaluates reaction rates and their derivatives for a
// mechanism. Temperature and pressure are held constant over a
// chemistry step, and the mixture density ρ is passed explicitly so
// that the mass fraction equations conserve mass.
// All methods are free of side effects and may be called concurrently.
type Kinetics struct {
	m      *Mechanism
	full   *IndexMap
	timers *Timers
}

// NewKinetics returns a kinetics evaluator for m. t may be nil.
func NewKinetics(m *Mechanism, t *Timers) *Kinetics {
	return &Kinetics{m: m, full: FullIndexMap(m), timers: t}
}

// active returns a, or the map of the complete mechanism if a is nil.
func (k *Kinetics) active(a *IndexMap) *IndexMap {
	if a == nil {
		return k.full
	}
	return a
}

// Mechanism returns the mechanism that k evaluates.
func (k *Kinetics) Mechanism() *Mechanism { return k.m }

// checkInputs returns an error if the temperature, density or any mass
// fraction cannot be used to evaluate rates.
func checkInputs(y []float64, T, ρ float64) error {
	s := &ChemicalState{Y: y, T: T}
	if math.IsNaN(T) || math.IsInf(T, 0) || !(T > 0) {
		return domainError(s, "invalid temperature %g", T)
	}
	if math.IsNaN(ρ) || math.IsInf(ρ, 0) || !(ρ > 0) {
		return domainError(s, "invalid density %g", ρ)
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return domainError(s, "mass fraction %d is not finite", i)
		}
	}
	return nil
}

func (k *Kinetics) concentrations(y []float64, ρ float64, c []float64) {
	for i, v := range y {
		c[i] = ρ * math.Max(v, 0) / k.m.Species[i].W
	}
}

// rateConstants returns the forward and reverse rate constants of r at T.
func rateConstants(r *Reaction, T float64) (kf, kr float64, err error) {
	kf = r.Forward.Rate(T)
	if r.Reverse != nil {
		kr = r.Reverse.Rate(T)
	}
	if math.IsNaN(kf) || math.IsInf(kf, 0) || math.IsNaN(kr) || math.IsInf(kr, 0) {
		return 0, 0, domainError(&ChemicalState{T: T}, "reaction %q has a non-finite rate constant at T=%g K", r.Name, T)
	}
	return kf, kr, nil
}

func massAction(ps []Participant, c []float64) float64 {
	v := 1.
	for _, p := range ps {
		v *= math.Pow(c[p.index], p.order())
	}
	return v
}

// massActionDeriv adds scale·∂(Π c^order)/∂c_k to dq[k] for every
// species k in ps.
func massActionDeriv(ps []Participant, c []float64, scale float64, dq []float64) {
	for a, p := range ps {
		o := p.order()
		if o == 0 {
			continue
		}
		ck := c[p.index]
		var d float64
		switch {
		case o == 1:
			d = 1
		case ck <= 0 && o > 1:
			d = 0
		default:
			d = o * math.Pow(math.Max(ck, cMin), o-1)
		}
		for b, p2 := range ps {
			if b != a {
				d *= math.Pow(c[p2.index], p2.order())
			}
		}
		dq[p.index] += scale * d
	}
}

func thirdBody(r *Reaction, c []float64) float64 {
	if r.ThirdBody == nil {
		return 1
	}
	M := 0.
	for i, e := range r.efficiency {
		M += e * c[i]
	}
	return M
}

// rates calculates the net rate of progress of each reaction
// [mol/m³/s] into q. c is set to the species concentrations.
func (k *Kinetics) rates(y []float64, T, ρ float64, a *IndexMap, c, q []float64) error {
	if err := checkInputs(y, T, ρ); err != nil {
		return err
	}
	k.concentrations(y, ρ, c)
	for j, r := range k.m.Reactions {
		q[j] = 0
		if a != nil && a.ReactionDisabled(j) {
			continue
		}
		kf, kr, err := rateConstants(r, T)
		if err != nil {
			return err
		}
		v := kf * massAction(r.Reactants, c)
		if r.Reverse != nil {
			v -= kr * massAction(r.Products, c)
		}
		q[j] = thirdBody(r, c) * v
	}
	return nil
}

// Rates returns the net rate of progress of each reaction [mol/m³/s]
// at state s and density ρ. Reactions that a disables have zero rate.
// a may be nil, in which case all reactions are enabled.
func (k *Kinetics) Rates(s *ChemicalState, ρ float64, a *IndexMap) ([]float64, error) {
	defer k.timers.Start(PhaseRateEval).Stop()
	q := make([]float64, len(k.m.Reactions))
	c := make([]float64, k.m.Len())
	if err := k.rates(s.Y, s.T, ρ, a, c, q); err != nil {
		return nil, err
	}
	return q, nil
}

// derivative calculates dY/dt for the active species of a into dydt,
// given the full-space mass fractions y.
func (k *Kinetics) derivative(y []float64, T, ρ float64, a *IndexMap, c, q, dydt []float64) error {
	if err := k.rates(y, T, ρ, a, c, q); err != nil {
		return err
	}
	for i := range dydt {
		dydt[i] = 0
	}
	for j, r := range k.m.Reactions {
		if q[j] == 0 {
			continue
		}
		for _, st := range r.nu {
			if si, ok := a.Simplified(st.i); ok {
				dydt[si] += k.m.Species[st.i].W / ρ * st.nu * q[j]
			}
		}
	}
	return nil
}

// Derivative returns dY/dt [1/s] of the active species of a, in
// simplified-space order, at state s and density ρ. A nil a selects
// every species.
func (k *Kinetics) Derivative(s *ChemicalState, ρ float64, a *IndexMap) ([]float64, error) {
	defer k.timers.Start(PhaseDerivativeEval).Stop()
	a = k.active(a)
	dydt := make([]float64, a.NumActive())
	err := k.derivative(s.Y, s.T, ρ, a, make([]float64, k.m.Len()),
		make([]float64, len(k.m.Reactions)), dydt)
	if err != nil {
		return nil, err
	}
	return dydt, nil
}

// jacobian returns ∂(dY_i/dt)/∂Y_k for the active species of a.
func (k *Kinetics) jacobian(y []float64, T, ρ float64, a *IndexMap) (*mat.Dense, error) {
	if err := checkInputs(y, T, ρ); err != nil {
		return nil, err
	}
	n := a.NumActive()
	jac := mat.NewDense(n, n, nil)
	c := make([]float64, k.m.Len())
	k.concentrations(y, ρ, c)
	dq := make([]float64, k.m.Len())
	for j, r := range k.m.Reactions {
		if a.ReactionDisabled(j) {
			continue
		}
		kf, kr, err := rateConstants(r, T)
		if err != nil {
			return nil, err
		}
		for i := range dq {
			dq[i] = 0
		}
		M := thirdBody(r, c)
		massActionDeriv(r.Reactants, c, M*kf, dq)
		net := kf * massAction(r.Reactants, c)
		if r.Reverse != nil {
			massActionDeriv(r.Products, c, -M*kr, dq)
			net -= kr * massAction(r.Products, c)
		}
		if r.ThirdBody != nil {
			for i, e := range r.efficiency {
				dq[i] += e * net
			}
		}
		for _, st := range r.nu {
			si, ok := a.Simplified(st.i)
			if !ok {
				continue
			}
			wi := k.m.Species[st.i].W
			for sk := 0; sk < n; sk++ {
				ck := a.Complete(sk)
				if dq[ck] == 0 {
					continue
				}
				jac.Set(si, sk, jac.At(si, sk)+wi/k.m.Species[ck].W*st.nu*dq[ck])
			}
		}
	}
	return jac, nil
}

// Jacobian returns the analytic Jacobian ∂(dY_i/dt)/∂Y_k of the active
// species of a, with dimensions a.NumActive()×a.NumActive(). A nil a
// selects every species.
func (k *Kinetics) Jacobian(s *ChemicalState, ρ float64, a *IndexMap) (*mat.Dense, error) {
	defer k.timers.Start(PhaseJacobianEval).Stop()
	return k.jacobian(s.Y, s.T, ρ, k.active(a))
}

// SpeciesRates returns the net production rate ω_i [kg/m³/s] of every
// species in the full species space. a may be nil.
func (k *Kinetics) SpeciesRates(s *ChemicalState, ρ float64, a *IndexMap) ([]float64, error) {
	defer k.timers.Start(PhaseSpeciesRateEval).Stop()
	q, err := k.Rates(s, ρ, a)
	if err != nil {
		return nil, err
	}
	ω := make([]float64, k.m.Len())
	for j, r := range k.m.Reactions {
		for _, st := range r.nu {
			ω[st.i] += k.m.Species[st.i].W * st.nu * q[j]
		}
	}
	return ω, nil
}

// HeatRelease returns the heat release rate [W/m³] corresponding to the
// species production rates ω.
func (k *Kinetics) HeatRelease(ω []float64) float64 {
	defer k.timers.Start(PhaseHeatReleaseEval).Stop()
	Q := 0.
	for i, w := range ω {
		Q -= k.m.Species[i].Hf * w
	}
	return Q
}

// TimeScale returns the characteristic chemical time scale [s] of
// state s, or 1e300 if nothing is reacting.
func (k *Kinetics) TimeScale(s *ChemicalState, ρ float64, a *IndexMap) (float64, error) {
	defer k.timers.Start(PhaseTimeScaleEval).Stop()
	c := make([]float64, k.m.Len())
	q := make([]float64, len(k.m.Reactions))
	if err := k.rates(s.Y, s.T, ρ, a, c, q); err != nil {
		return 0, err
	}
	cSum := 0.
	for _, v := range c {
		cSum += v
	}
	denom := 0.
	for j, r := range k.m.Reactions {
		prod := 0.
		for _, p := range r.Products {
			prod += p.Coeff
		}
		denom += math.Abs(q[j]) * prod
	}
	if denom <= 0 {
		return maxTimeScale, nil
	}
	return math.Min(float64(len(k.m.Reactions))*cSum/denom, maxTimeScale), nil
}
