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

import "testing"

func TestIndexMapInverse(t *testing.T) {
	m := chain(t)
	for _, active := range [][]bool{
		{true, true, true, true, true},
		{true, false, true, false, true},
		{false, false, false, false, true},
		{false, true, true, true, true},
	} {
		im := newIndexMap(m, active)
		n := 0
		for i, a := range active {
			if im.Active(i) != a {
				t.Errorf("%v: species %d active=%v", active, i, im.Active(i))
			}
			s, ok := im.Simplified(i)
			if ok != a {
				t.Errorf("%v: species %d simplified valid=%v", active, i, ok)
			}
			if !a {
				continue
			}
			n++
			if got := im.Complete(s); got != i {
				t.Errorf("%v: complete(simplified(%d)) = %d", active, i, got)
			}
		}
		if im.NumActive() != n {
			t.Errorf("%v: %d active species; want %d", active, im.NumActive(), n)
		}
		for s := 0; s < im.NumActive(); s++ {
			if got, ok := im.Simplified(im.Complete(s)); !ok || got != s {
				t.Errorf("%v: simplified(complete(%d)) = %d, %v", active, s, got, ok)
			}
		}
		if im.NumSpecies() != m.Len() {
			t.Errorf("NumSpecies = %d", im.NumSpecies())
		}
	}
}

func TestIndexMapReactionsDisabled(t *testing.T) {
	m := chain(t)
	im := newIndexMap(m, []bool{true, false, true, true, true})
	want := []bool{true, true, false} // A => B, B => C, A => D
	for j, w := range want {
		if im.ReactionDisabled(j) != w {
			t.Errorf("reaction %s disabled = %v; want %v", m.Reactions[j].Name, im.ReactionDisabled(j), w)
		}
	}
	if im.NumReactionsActive() != 1 {
		t.Errorf("%d active reactions; want 1", im.NumReactionsActive())
	}
	full := FullIndexMap(m)
	if full.NumActive() != m.Len() || full.NumReactionsActive() != len(m.Reactions) {
		t.Errorf("full map has %d species and %d reactions", full.NumActive(), full.NumReactionsActive())
	}
}

func TestIndexMapCopies(t *testing.T) {
	m := chain(t)
	im := newIndexMap(m, []bool{true, false, true, false, true})
	s2c := im.SimplifiedToComplete()
	s2c[0] = 99
	if im.Complete(0) != 0 {
		t.Error("SimplifiedToComplete exposes internal state")
	}
	c2s := im.CompleteToSimplified()
	if c2s[1].Valid || !c2s[2].Valid || c2s[2].Index != 1 {
		t.Errorf("CompleteToSimplified = %+v", c2s)
	}
	c2s[2].Valid = false
	if !im.Active(2) {
		t.Error("CompleteToSimplified exposes internal state")
	}
}

func TestIndexMapScatter(t *testing.T) {
	m := chain(t)
	im := newIndexMap(m, []bool{true, false, true, false, true})
	y := []float64{0.1, 0.2, 0.3, 0.15, 0.25}
	ys := im.simplify(y)
	if len(ys) != 3 || ys[0] != 0.1 || ys[1] != 0.3 || ys[2] != 0.25 {
		t.Fatalf("simplify = %v", ys)
	}
	ys[1] = 0.35
	im.scatter(ys, y)
	want := []float64{0.1, 0.2, 0.35, 0.15, 0.25}
	for i := range want {
		if y[i] != want[i] {
			t.Errorf("scatter: y[%d] = %g; want %g", i, y[i], want[i])
		}
	}
}
