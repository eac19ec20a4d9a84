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
	"container/heap"
	"fmt"
	"math"
)

// Reducer selects the species and reactions that are important for a
// given chemical state using the directed relation graph with error
// propagation (DRGEP) method.
type Reducer struct {
	k *Kinetics

	// SearchInitThreshold is the mass fraction above which a species
	// starts the importance search.
	SearchInitThreshold float64

	// IncludeOnTie specifies whether species whose importance is exactly
	// equal to the tolerance are kept.
	IncludeOnTie bool

	initialSet []int
}

// NewReducer returns a reducer for the mechanism of k. The species in
// initialSet always start the importance search, in addition to the
// inert species and any species with a mass fraction of at least
// searchInitThreshold.
func NewReducer(k *Kinetics, searchInitThreshold float64, initialSet []string, includeOnTie bool) (*Reducer, error) {
	r := &Reducer{
		k:                   k,
		SearchInitThreshold: searchInitThreshold,
		IncludeOnTie:        includeOnTie,
	}
	for _, name := range initialSet {
		i, err := k.m.SpeciesIndex(name)
		if err != nil {
			return nil, fmt.Errorf("tdac: reduction initial set: %v", err)
		}
		r.initialSet = append(r.initialSet, i)
	}
	return r, nil
}

// Interactions returns the direct interaction coefficients r_AB between
// every pair of species at state s: the magnitude of the net production
// of A by reactions involving B, relative to the larger of the total
// production and consumption of A. Every coefficient is in [0, 1].
func (r *Reducer) Interactions(s *ChemicalState, ρ float64) ([][]float64, error) {
	m := r.k.m
	n := m.Len()
	c := make([]float64, n)
	q := make([]float64, len(m.Reactions))
	if err := r.k.rates(s.Y, s.T, ρ, nil, c, q); err != nil {
		return nil, err
	}
	prod := make([]float64, n)
	cons := make([]float64, n)
	num := make([][]float64, n)
	for i := range num {
		num[i] = make([]float64, n)
	}
	involved := make([]bool, n)
	for j, rxn := range m.Reactions {
		if q[j] == 0 {
			continue
		}
		for i := range involved {
			involved[i] = false
		}
		for _, p := range rxn.Reactants {
			involved[p.index] = true
		}
		for _, p := range rxn.Products {
			involved[p.index] = true
		}
		for _, st := range rxn.nu {
			v := st.nu * q[j]
			if v > 0 {
				prod[st.i] += v
			} else {
				cons[st.i] -= v
			}
			for b, inv := range involved {
				if inv && b != st.i {
					num[st.i][b] += v
				}
			}
		}
	}
	for a := range num {
		d := math.Max(prod[a], cons[a])
		for b := range num[a] {
			if d > 0 {
				num[a][b] = math.Min(math.Abs(num[a][b])/d, 1)
			} else {
				num[a][b] = 0
			}
		}
	}
	return num, nil
}

// Reduce returns the species and reactions that are important at state
// s for the importance tolerance tol. A species is active if the
// largest product of interaction coefficients along any path from a
// search-initiating species is at least tol (greater than tol if
// IncludeOnTie is false). The inert species is always active.
// A smaller tolerance never results in fewer active species.
func (r *Reducer) Reduce(s *ChemicalState, ρ float64, tol float64) (*IndexMap, error) {
	defer r.k.timers.Start(PhaseReduction).Stop()
	m := r.k.m
	rab, err := r.Interactions(s, ρ)
	if err != nil {
		return nil, err
	}
	keep := func(v float64) bool {
		if r.IncludeOnTie {
			return v >= tol
		}
		return v > tol
	}

	n := m.Len()
	R := make([]float64, n)
	for i := range R {
		R[i] = -1
	}
	pq := new(importanceQueue)
	seed := func(i int) {
		if R[i] < 1 {
			R[i] = 1
			heap.Push(pq, importance{species: i, R: 1})
		}
	}
	seed(m.InertIndex())
	for _, i := range r.initialSet {
		seed(i)
	}
	for i, y := range s.Y {
		if y >= r.SearchInitThreshold {
			seed(i)
		}
	}

	done := make([]bool, n)
	for pq.Len() > 0 {
		a := heap.Pop(pq).(importance)
		if done[a.species] || a.R < R[a.species] {
			continue
		}
		done[a.species] = true
		for b, v := range rab[a.species] {
			if v == 0 || done[b] {
				continue
			}
			cand := a.R * v
			if cand > R[b] && keep(cand) {
				R[b] = cand
				heap.Push(pq, importance{species: b, R: cand})
			}
		}
	}

	active := make([]bool, n)
	nActive := 0
	for i, v := range R {
		if keep(math.Max(v, 0)) || i == m.InertIndex() {
			active[i] = true
			nActive++
		}
	}
	if nActive == 0 {
		panic(&ReductionDegenerate{NumSpecies: n})
	}
	return newIndexMap(m, active), nil
}

// importance is the propagated importance of one species.
type importance struct {
	species int
	R       float64
}

// importanceQueue is a max-heap of species importances.
type importanceQueue []importance

func (q importanceQueue) Len() int            { return len(q) }
func (q importanceQueue) Less(i, j int) bool  { return q[i].R > q[j].R }
func (q importanceQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *importanceQueue) Push(x interface{}) { *q = append(*q, x.(importance)) }
func (q *importanceQueue) Pop() interface{} {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}
