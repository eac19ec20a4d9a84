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

// Package onestep contains single-reaction chemical mechanisms.
package onestep

import "github.com/spatialmodel/tdac"

// Molar masses [kg/mol]
const (
	wCH4 = 16.04246e-3
	wO2  = 31.9988e-3
	wCO2 = 44.0095e-3
	wH2O = 18.01528e-3
	wN2  = 28.0134e-3

	wFuel = wN2
)

// StoichiometricFuel is the fuel mass fraction of a stoichiometric
// methane/air mixture.
const StoichiometricFuel = 0.0551

// FuelInert returns a mechanism with a fuel that decomposes into an
// inert product of the same molar mass in a single first-order
// reaction: FUEL → INERT.
func FuelInert() (*tdac.Mechanism, error) {
	return tdac.NewMechanism(&tdac.Mechanism{
		Name:  "fuel-inert",
		Inert: "INERT",
		Species: []tdac.Species{
			{Name: "FUEL", W: wFuel, Hf: 5.0e7},
			{Name: "INERT", W: wFuel, Hf: 0},
		},
		Reactions: []*tdac.Reaction{
			{
				Name:      "FUEL => INERT",
				Reactants: []tdac.Participant{{Species: "FUEL", Coeff: 1}},
				Products:  []tdac.Participant{{Species: "INERT", Coeff: 1}},
				Forward:   tdac.Arrhenius{A: 1e8, Ta: 1e4},
			},
		},
	})
}

// Methane returns a global one-step methane/air mechanism:
// CH4 + 2 O2 → CO2 + 2 H2O, with nitrogen as the inert species.
func Methane() (*tdac.Mechanism, error) {
	return tdac.NewMechanism(&tdac.Mechanism{
		Name:  "methane-1step",
		Inert: "N2",
		Species: []tdac.Species{
			{Name: "CH4", W: wCH4, Hf: -4.6670e6},
			{Name: "O2", W: wO2, Hf: 0},
			{Name: "CO2", W: wCO2, Hf: -8.9413e6},
			{Name: "H2O", W: wH2O, Hf: -1.34233e7},
			{Name: "N2", W: wN2, Hf: 0},
		},
		Reactions: []*tdac.Reaction{
			{
				Name: "CH4 + 2O2 => CO2 + 2H2O",
				Reactants: []tdac.Participant{
					{Species: "CH4", Coeff: 1, Order: 0.2},
					{Species: "O2", Coeff: 2, Order: 1.3},
				},
				Products: []tdac.Participant{
					{Species: "CO2", Coeff: 1},
					{Species: "H2O", Coeff: 2},
				},
				Forward: tdac.Arrhenius{A: 1.3e5, Ta: 24358},
			},
		},
	})
}

// AirComposition returns the mass fractions of a methane/air mixture
// with the given fuel mass fraction, in the species order of Methane.
func AirComposition(fuel float64) []float64 {
	air := 1 - fuel
	return []float64{fuel, 0.233 * air, 0, 0, 0.767 * air}
}
