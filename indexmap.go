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

// SimplifiedIndex is the position of a species in the reduced (active)
// species space. Valid is false for species that are not active.
type SimplifiedIndex struct {
	Index int
	Valid bool
}

// IndexMap holds the active species and reactions of one cell for one
// time step, along with the mappings between the complete species
// space and the simplified (active) species space. An IndexMap is
// never modified after it is built; a new reduction builds a new one.
type IndexMap struct {
	toComplete        []int
	toSimplified      []SimplifiedIndex
	reactionsDisabled []bool
}

// newIndexMap builds an IndexMap from the per-species active flags.
func newIndexMap(m *Mechanism, active []bool) *IndexMap {
	im := &IndexMap{
		toSimplified:      make([]SimplifiedIndex, len(active)),
		reactionsDisabled: make([]bool, len(m.Reactions)),
	}
	for i, a := range active {
		if a {
			im.toSimplified[i] = SimplifiedIndex{Index: len(im.toComplete), Valid: true}
			im.toComplete = append(im.toComplete, i)
		}
	}
	for j, r := range m.Reactions {
		for _, s := range r.nu {
			if !active[s.i] {
				im.reactionsDisabled[j] = true
				break
			}
		}
		if im.reactionsDisabled[j] {
			continue
		}
		// Reactants with zero net change (e.g. catalysts) must also be active.
		for _, p := range r.Reactants {
			if !active[p.index] {
				im.reactionsDisabled[j] = true
				break
			}
		}
	}
	return im
}

// FullIndexMap returns an IndexMap in which every species and reaction
// of m is active.
func FullIndexMap(m *Mechanism) *IndexMap {
	active := make([]bool, m.Len())
	for i := range active {
		active[i] = true
	}
	return newIndexMap(m, active)
}

// NumSpecies returns the number of species in the complete space.
func (im *IndexMap) NumSpecies() int { return len(im.toSimplified) }

// NumActive returns the number of active species.
func (im *IndexMap) NumActive() int { return len(im.toComplete) }

// Active returns whether complete-space species i is active.
func (im *IndexMap) Active(i int) bool { return im.toSimplified[i].Valid }

// Complete returns the complete-space index of simplified-space species s.
func (im *IndexMap) Complete(s int) int { return im.toComplete[s] }

// Simplified returns the simplified-space index of complete-space
// species i, or false if species i is not active.
func (im *IndexMap) Simplified(i int) (int, bool) {
	si := im.toSimplified[i]
	return si.Index, si.Valid
}

// SimplifiedToComplete returns a copy of the simplified → complete mapping.
func (im *IndexMap) SimplifiedToComplete() []int {
	return append([]int(nil), im.toComplete...)
}

// CompleteToSimplified returns a copy of the complete → simplified mapping.
func (im *IndexMap) CompleteToSimplified() []SimplifiedIndex {
	return append([]SimplifiedIndex(nil), im.toSimplified...)
}

// ReactionDisabled returns whether reaction j is excluded from the
// reduced mechanism.
func (im *IndexMap) ReactionDisabled(j int) bool { return im.reactionsDisabled[j] }

// NumReactionsActive returns the number of reactions that are not disabled.
func (im *IndexMap) NumReactionsActive() int {
	n := 0
	for _, d := range im.reactionsDisabled {
		if !d {
			n++
		}
	}
	return n
}

// simplify gathers the active entries of the complete-space vector y.
func (im *IndexMap) simplify(y []float64) []float64 {
	o := make([]float64, len(im.toComplete))
	for s, i := range im.toComplete {
		o[s] = y[i]
	}
	return o
}

// scatter writes the simplified-space vector ys into the active entries
// of the complete-space vector y, leaving inactive entries unchanged.
func (im *IndexMap) scatter(ys, y []float64) {
	for s, i := range im.toComplete {
		y[i] = ys[s]
	}
}
