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

// Package h2air contains a reduced hydrogen/air combustion mechanism
// with eight species and twelve reactions. Rate parameters are in SI
// units (m³, mol, s, K).
package h2air

import "github.com/spatialmodel/tdac"

// Atomic masses [kg/mol]
const (
	wH = 1.00794e-3
	wO = 15.9994e-3
	wN = 14.0067e-3
)

// Species names.
const (
	H2  = "H2"
	O2  = "O2"
	H   = "H"
	O   = "O"
	OH  = "OH"
	HO2 = "HO2"
	H2O = "H2O"
	N2  = "N2"
)

func p(species string, coeff float64) tdac.Participant {
	return tdac.Participant{Species: species, Coeff: coeff}
}

func r(name string, reactants, products []tdac.Participant, A, beta, Ta float64) *tdac.Reaction {
	return &tdac.Reaction{
		Name:      name,
		Reactants: reactants,
		Products:  products,
		Forward:   tdac.Arrhenius{A: A, Beta: beta, Ta: Ta},
	}
}

func m(eff map[string]float64) *tdac.ThirdBody {
	return &tdac.ThirdBody{Default: 1, Efficiencies: eff}
}

// Mechanism returns the hydrogen/air mechanism.
func Mechanism() (*tdac.Mechanism, error) {
	type pl = []tdac.Participant

	chain := r("H + O2 <=> O + OH", pl{p(H, 1), p(O2, 1)}, pl{p(O, 1), p(OH, 1)}, 3.547e9, -0.406, 8353)
	chain.Reverse = &tdac.Arrhenius{A: 1.027e7, Beta: -0.015, Ta: -67}

	dissoc := r("H2 + M => 2H + M", pl{p(H2, 1)}, pl{p(H, 2)}, 4.577e13, -1.4, 52526)
	dissoc.ThirdBody = m(map[string]float64{H2: 2.5, H2O: 12})
	recombH := r("2H + M => H2 + M", pl{p(H, 2)}, pl{p(H2, 1)}, 1e6, -1, 0)
	recombH.ThirdBody = m(map[string]float64{H2: 2.5, H2O: 12})
	recombO := r("2O + M => O2 + M", pl{p(O, 2)}, pl{p(O2, 1)}, 6.165e3, -0.5, 0)
	recombO.ThirdBody = m(map[string]float64{H2: 2.5, H2O: 12})
	water := r("H + OH + M => H2O + M", pl{p(H, 1), p(OH, 1)}, pl{p(H2O, 1)}, 3.8e10, -2, 0)
	water.ThirdBody = m(map[string]float64{H2: 2.5, H2O: 12})
	hydroperoxy := r("H + O2 + M => HO2 + M", pl{p(H, 1), p(O2, 1)}, pl{p(HO2, 1)}, 6.366e8, -1.72, 264)
	hydroperoxy.ThirdBody = m(map[string]float64{H2: 2, H2O: 11, O2: 0.78})

	return tdac.NewMechanism(&tdac.Mechanism{
		Name:  "h2-air",
		Inert: N2,
		Species: []tdac.Species{
			{Name: H2, W: 2 * wH, Hf: 0},
			{Name: O2, W: 2 * wO, Hf: 0},
			{Name: H, W: wH, Hf: 2.16281e8},
			{Name: O, W: wO, Hf: 1.55740e7},
			{Name: OH, W: wO + wH, Hf: 2.19669e6},
			{Name: HO2, W: 2*wO + wH, Hf: 3.64167e5},
			{Name: H2O, W: wO + 2*wH, Hf: -1.34233e7},
			{Name: N2, W: 2 * wN, Hf: 0},
		},
		Reactions: []*tdac.Reaction{
			chain,
			r("O + H2 => H + OH", pl{p(O, 1), p(H2, 1)}, pl{p(H, 1), p(OH, 1)}, 5.08e-2, 2.67, 3165),
			r("H2 + OH => H2O + H", pl{p(H2, 1), p(OH, 1)}, pl{p(H2O, 1), p(H, 1)}, 216, 1.51, 1726),
			r("O + H2O => 2OH", pl{p(O, 1), p(H2O, 1)}, pl{p(OH, 2)}, 2.97, 2.02, 6743),
			dissoc,
			recombH,
			recombO,
			water,
			hydroperoxy,
			r("HO2 + H => 2OH", pl{p(HO2, 1), p(H, 1)}, pl{p(OH, 2)}, 7.079e7, 0, 148),
			r("HO2 + H => H2 + O2", pl{p(HO2, 1), p(H, 1)}, pl{p(H2, 1), p(O2, 1)}, 1.66e7, 0, 414),
			r("HO2 + OH => H2O + O2", pl{p(HO2, 1), p(OH, 1)}, pl{p(H2O, 1), p(O2, 1)}, 2.89e7, 0, -250),
		},
	})
}

// Stoichiometric returns the mass fractions of a stoichiometric
// hydrogen/air mixture, in the species order of Mechanism.
func Stoichiometric() []float64 {
	const yH2 = 0.0283
	air := 1 - yH2
	return []float64{yH2, 0.233 * air, 0, 0, 0, 0, 0, 0.767 * air}
}
