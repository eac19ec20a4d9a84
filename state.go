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

	"gonum.org/v1/gonum/floats"
)

// RGas is the universal gas constant [J/mol/K].
const RGas = 8.314462618

// massTolerance is the allowed deviation of the sum of the mass fractions
// from one after the state has been modified by this package.
const massTolerance = 1e-10

// ChemicalState is the local thermochemical state of one control volume.
type ChemicalState struct {
	Y []float64 // species mass fractions
	T float64   // temperature [K]
	P float64   // pressure [Pa]
}

// NewChemicalState returns a state with a copy of the mass fractions y.
func NewChemicalState(y []float64, T, P float64) *ChemicalState {
	return &ChemicalState{Y: append([]float64(nil), y...), T: T, P: P}
}

// Clone returns a deep copy of s.
func (s *ChemicalState) Clone() *ChemicalState {
	return NewChemicalState(s.Y, s.T, s.P)
}

// Check returns a *NumericalDomainError if s is outside of the
// physically valid range. tol is the allowed deviation of individual mass
// fractions below zero and of their sum from one. s is not modified.
func (s *ChemicalState) Check(tol float64) error {
	switch {
	case math.IsNaN(s.T) || math.IsInf(s.T, 0):
		return domainError(s, "temperature is not finite")
	case !(s.T > 0):
		return domainError(s, "non-positive temperature %g", s.T)
	case math.IsNaN(s.P) || math.IsInf(s.P, 0):
		return domainError(s, "pressure is not finite")
	case !(s.P > 0):
		return domainError(s, "non-positive pressure %g", s.P)
	}
	sum := 0.
	for i, y := range s.Y {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return domainError(s, "mass fraction %d is not finite", i)
		}
		if y < -tol {
			return domainError(s, "mass fraction %d is negative (%g)", i, y)
		}
		sum += y
	}
	if math.Abs(sum-1) > tol {
		return domainError(s, "mass fractions sum to %g", sum)
	}
	return nil
}

// Normalize clamps negative mass fractions to zero and rescales the rest
// so that they sum to one.
func (s *ChemicalState) Normalize() {
	normalize(s.Y)
}

func normalize(y []float64) {
	for i, v := range y {
		if v < 0 {
			y[i] = 0
		}
	}
	sum := floats.Sum(y)
	if sum > 0 && math.Abs(sum-1) > massTolerance/10 {
		floats.Scale(1/sum, y)
	}
}

// balance sets y[inert] to one minus the sum of the other species,
// clamped to be non-negative, and then normalizes y.
func balance(y []float64, inert int) {
	for i, v := range y {
		if v < 0 {
			y[i] = 0
		}
	}
	y[inert] = 0
	y[inert] = math.Max(0, 1-floats.Sum(y))
	normalize(y)
}

// MeanMolarMass returns the mixture molar mass [kg/mol].
func (s *ChemicalState) MeanMolarMass(m *Mechanism) float64 {
	sum := 0.
	for i, y := range s.Y {
		sum += y / m.Species[i].W
	}
	return 1 / sum
}

// Density returns the ideal-gas mixture density [kg/m³].
func (s *ChemicalState) Density(m *Mechanism) float64 {
	return s.P * s.MeanMolarMass(m) / (RGas * s.T)
}

// Concentrations returns the molar concentrations [mol/m³] of every
// species in the full species space at mixture density ρ.
func (s *ChemicalState) Concentrations(m *Mechanism, ρ float64) []float64 {
	c := make([]float64, len(s.Y))
	for i, y := range s.Y {
		c[i] = ρ * math.Max(y, 0) / m.Species[i].W
	}
	return c
}
