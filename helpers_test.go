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
	"testing"
)

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

const wN2 = 28.0134e-3

// fuelInert returns a mechanism where FUEL decomposes to INERT in a
// single first-order reaction.
func fuelInert(t testing.TB) *Mechanism {
	m, err := NewMechanism(&Mechanism{
		Name:  "fuel-inert",
		Inert: "INERT",
		Species: []Species{
			{Name: "FUEL", W: wN2, Hf: 5.0e7},
			{Name: "INERT", W: wN2},
		},
		Reactions: []*Reaction{
			{
				Name:      "FUEL => INERT",
				Reactants: []Participant{{Species: "FUEL", Coeff: 1}},
				Products:  []Participant{{Species: "INERT", Coeff: 1}},
				Forward:   Arrhenius{A: 1e8, Ta: 1e4},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// fuelInertRate returns the rate constant of the fuelInert reaction.
func fuelInertRate(T float64) float64 { return 1e8 * math.Exp(-1e4/T) }

// chain returns a mechanism A → B → C with a slow side reaction
// A → D and inert species N. Rate constants do not depend on
// temperature.
func chain(t testing.TB) *Mechanism {
	r := func(name, from, to string, A float64) *Reaction {
		return &Reaction{
			Name:      name,
			Reactants: []Participant{{Species: from, Coeff: 1}},
			Products:  []Participant{{Species: to, Coeff: 1}},
			Forward:   Arrhenius{A: A},
		}
	}
	m, err := NewMechanism(&Mechanism{
		Name:  "chain",
		Inert: "N",
		Species: []Species{
			{Name: "A", W: wN2, Hf: 2e6},
			{Name: "B", W: wN2, Hf: 1e6},
			{Name: "C", W: wN2},
			{Name: "D", W: wN2, Hf: 5e5},
			{Name: "N", W: wN2},
		},
		Reactions: []*Reaction{
			r("A => B", "A", "B", 1e3),
			r("B => C", "B", "C", 1e2),
			r("A => D", "A", "D", 1),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// chainState returns a state for the chain mechanism.
func chainState() *ChemicalState {
	return NewChemicalState([]float64{0.2, 0.01, 0, 0, 0.79}, 1000, 101325)
}

// association returns a mechanism with a reversible three-body
// reaction with fractional orders and a third-order reaction.
func association(t testing.TB) *Mechanism {
	m, err := NewMechanism(&Mechanism{
		Name:  "association",
		Inert: "N",
		Species: []Species{
			{Name: "A", W: 0.016, Hf: 1e6},
			{Name: "B", W: 0.032},
			{Name: "C", W: 0.048, Hf: -2e6},
			{Name: "N", W: wN2},
		},
		Reactions: []*Reaction{
			{
				Name: "A + B <=> C",
				Reactants: []Participant{
					{Species: "A", Coeff: 1, Order: 0.2},
					{Species: "B", Coeff: 1, Order: 1.3},
				},
				Products:  []Participant{{Species: "C", Coeff: 1}},
				Forward:   Arrhenius{A: 5e4, Beta: 0.5, Ta: 3000},
				Reverse:   &Arrhenius{A: 1e5, Ta: 8000},
				ThirdBody: &ThirdBody{Default: 1, Efficiencies: map[string]float64{"N": 0.5}},
			},
			{
				Name:      "3A => C",
				Reactants: []Participant{{Species: "A", Coeff: 3}},
				Products:  []Participant{{Species: "C", Coeff: 1}},
				Forward:   Arrhenius{A: 1e2},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func sum(v []float64) float64 {
	s := 0.
	for _, x := range v {
		s += x
	}
	return s
}
