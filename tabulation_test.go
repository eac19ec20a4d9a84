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
	"sync"
	"testing"

	"github.com/ctessum/geom"
	"gonum.org/v1/gonum/mat"
)

type tabulationTest struct {
	m   *Mechanism
	k   *Kinetics
	in  *Integrator
	a   *IndexMap
	cfg TabulationConfig
	tab *Tabulation
}

func newTabulationTest(t *testing.T) *tabulationTest {
	m := fuelInert(t)
	k := NewKinetics(m, nil)
	cfg := DefaultConfig().Tabulation
	return &tabulationTest{
		m:   m,
		k:   k,
		in:  NewIntegrator(k, 1e-6, 1e-12, 100000),
		a:   FullIndexMap(m),
		cfg: cfg,
		tab: NewTabulation(m, cfg, nil),
	}
}

// integrate integrates s over Δt and returns the query vector and the
// result.
func (tt *tabulationTest) integrate(t *testing.T, s *ChemicalState, Δt float64) (phi, r []float64) {
	t.Helper()
	phi = tt.tab.Descriptor(s, Δt)
	R := s.Clone()
	if _, err := tt.in.Integrate(R, R.Density(tt.m), tt.a, Δt, 0); err != nil {
		t.Fatal(err)
	}
	return phi, R.Y
}

// insert integrates s over Δt and stores the result.
func (tt *tabulationTest) insert(t *testing.T, s *ChemicalState, Δt float64) (phi, r []float64) {
	t.Helper()
	phi, r = tt.integrate(t, s, Δt)
	R := NewChemicalState(r, s.T, s.P)
	A, err := tt.k.Sensitivity(R, s.Density(tt.m), tt.a, Δt, tt.cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := tt.tab.Insert(phi, r, A, tt.a.NumActive()); err != nil {
		t.Fatal(err)
	}
	return phi, r
}

// Repeated lookups of a stored query return the stored result.
func TestTabulationIdempotent(t *testing.T) {
	tt := newTabulationTest(t)
	s := NewChemicalState([]float64{0.05, 0.95}, 1000, 101325)
	phi, r := tt.insert(t, s, 1e-5)
	first, ok := tt.tab.Lookup(phi)
	if !ok {
		t.Fatal("miss after insert")
	}
	for i := 0; i < 10; i++ {
		got, ok := tt.tab.Lookup(phi)
		if !ok {
			t.Fatalf("lookup %d missed", i)
		}
		for j := range got {
			if got[j] != first[j] {
				t.Errorf("lookup %d: species %d: %g != %g", i, j, got[j], first[j])
			}
			if math.Abs(got[j]-r[j]) > 1e-14 {
				t.Errorf("lookup %d: species %d: %g != stored %g", i, j, got[j], r[j])
			}
		}
	}
	st := tt.tab.Stats()
	if st.Hits != 11 || st.Misses != 0 || st.Inserts != 1 || st.Size != 1 {
		t.Errorf("stats = %+v", st)
	}
}

// Every retrieved result is within the tolerance of the directly
// integrated result.
func TestTabulationSoundness(t *testing.T) {
	tt := newTabulationTest(t)
	const Δt = 1e-5
	base := NewChemicalState([]float64{0.05, 0.95}, 1000, 101325)
	tt.insert(t, base, Δt)
	hits := 0
	for _, dy := range []float64{-1e-4, -1e-5, 0, 1e-5, 1e-4, 1e-3} {
		for _, dT := range []float64{-0.1, -0.01, 0, 0.01, 0.1, 1} {
			for _, dtFrac := range []float64{0.99, 1, 1.01} {
				s := NewChemicalState([]float64{0.05 + dy, 0.95 - dy}, 1000+dT, 101325)
				phi, r := tt.integrate(t, s, Δt*dtFrac)
				got, ok := tt.tab.Lookup(phi)
				if !ok {
					continue
				}
				hits++
				for i := range r {
					if math.Abs(got[i]-r[i]) > tt.cfg.Tolerance {
						t.Errorf("dy=%g dT=%g: species %d: retrieved %g, integrated %g", dy, dT, i, got[i], r[i])
					}
				}
			}
		}
	}
	if hits == 0 {
		t.Error("no lookups hit")
	}
}

// The tabulated sensitivity approximates the change in the integrated
// result for a small change in the initial fuel mass fraction.
func TestSensitivity(t *testing.T) {
	tt := newTabulationTest(t)
	const Δt, δ = 1e-5, 1e-6
	s := NewChemicalState([]float64{0.05, 0.95}, 1000, 101325)
	_, r0 := tt.integrate(t, s, Δt)
	R := NewChemicalState(r0, s.T, s.P)
	A, err := tt.k.Sensitivity(R, s.Density(tt.m), tt.a, Δt, tt.cfg)
	if err != nil {
		t.Fatal(err)
	}
	if rows, cols := A.Dims(); rows != 2 || cols != 5 {
		t.Fatalf("sensitivity is %dx%d", rows, cols)
	}
	s2 := NewChemicalState([]float64{0.05 + δ, 0.95}, 1000, 101325)
	R2 := s2.Clone()
	if _, err := tt.in.Integrate(R2, s.Density(tt.m), tt.a, Δt, 0); err != nil {
		t.Fatal(err)
	}
	fd := (R2.Y[0] - r0[0]) / δ
	if different(A.At(0, 0), fd, 1e-2) {
		t.Errorf("∂Y_fuel/∂Y_fuel = %g; finite difference %g", A.At(0, 0), fd)
	}
	// Fuel decreases with temperature and with the time step.
	if !(A.At(0, 2) < 0) || !(A.At(0, 4) < 0) {
		t.Errorf("temperature and time step sensitivities = %g, %g", A.At(0, 2), A.At(0, 4))
	}
}

// After the table is cleared, a previously stored query misses.
func TestTabulationClear(t *testing.T) {
	tt := newTabulationTest(t)
	s := NewChemicalState([]float64{0.05, 0.95}, 1000, 101325)
	phi, _ := tt.insert(t, s, 1e-5)
	if _, ok := tt.tab.Lookup(phi); !ok {
		t.Fatal("miss before clear")
	}
	tt.tab.Clear()
	if _, ok := tt.tab.Lookup(phi); ok {
		t.Error("hit after clear")
	}
	st := tt.tab.Stats()
	if st.Size != 0 || st.Clears != 1 || st.Hits != 1 || st.Misses != 1 {
		t.Errorf("stats = %+v", st)
	}
	tt.insert(t, s, 1e-5)
	if _, ok := tt.tab.Lookup(phi); !ok {
		t.Error("miss after re-insert")
	}
}

func TestTabulationStrictRadius(t *testing.T) {
	tt := newTabulationTest(t)
	n := tt.m.Len()
	phi := []float64{0.05, 0.95, 1, 1.01325, 0.01}
	A := mat.NewDense(n, n+3, nil)
	A.Set(0, 0, 100) // growth 100, radius 1e-5
	if err := tt.tab.Insert(phi, []float64{0.04, 0.96}, A, n); err != nil {
		t.Fatal(err)
	}
	inside := append([]float64(nil), phi...)
	inside[2] += 0.9e-5
	if _, ok := tt.tab.Lookup(inside); !ok {
		t.Error("miss inside radius")
	}
	outside := append([]float64(nil), phi...)
	outside[2] += 1.1e-5
	if _, ok := tt.tab.Lookup(outside); ok {
		t.Error("hit outside radius")
	}
}

func TestTabulationBestCandidate(t *testing.T) {
	tt := newTabulationTest(t)
	n := tt.m.Len()
	zero := mat.NewDense(n, n+3, nil)
	steep := mat.NewDense(n, n+3, nil)
	steep.Set(0, 2, 0.001)
	p1 := []float64{0.05, 0.95, 1, 1, 0.01}
	p2 := []float64{0.05, 0.95, 1.001, 1, 0.01}
	if err := tt.tab.Insert(p1, []float64{0.1, 0.9}, steep, n); err != nil {
		t.Fatal(err)
	}
	if err := tt.tab.Insert(p2, []float64{0.2, 0.8}, zero, n); err != nil {
		t.Fatal(err)
	}
	// Closer to p1, but p2 has a smaller estimated error.
	q := []float64{0.05, 0.95, 1.0004, 1, 0.01}
	r, ok := tt.tab.Lookup(q)
	if !ok {
		t.Fatal("miss")
	}
	if r[0] != 0.2 {
		t.Errorf("retrieved %v; want the entry with zero growth", r)
	}
}

func TestTabulationInvalidEntry(t *testing.T) {
	tt := newTabulationTest(t)
	n := tt.m.Len()
	phi := []float64{0.05, 0.95, 1, 1, 0.01}
	A := mat.NewDense(n, n+3, nil)
	A.Set(0, 0, math.NaN())
	if err := tt.tab.Insert(phi, []float64{0.04, 0.96}, A, n); err != nil {
		t.Fatal(err)
	}
	if _, ok := tt.tab.Lookup(phi); ok {
		t.Error("entry with NaN sensitivity was retrieved")
	}
	if err := tt.tab.Insert(phi, []float64{math.Inf(1), 0.96}, mat.NewDense(n, n+3, nil), n); err != nil {
		t.Fatal(err)
	}
	if _, ok := tt.tab.Lookup(phi); ok {
		t.Error("entry with infinite result was retrieved")
	}
	if tt.tab.Len() != 2 {
		t.Errorf("table has %d entries", tt.tab.Len())
	}
	if tt.tab.Audit(phi, []float64{0.5, 0.5}) {
		t.Error("invalid entry was audited")
	}
}

func TestTabulationInsertDims(t *testing.T) {
	tt := newTabulationTest(t)
	n := tt.m.Len()
	if err := tt.tab.Insert([]float64{1, 2}, []float64{0.5, 0.5}, mat.NewDense(n, n+3, nil), n); err == nil {
		t.Error("short query should be an error")
	}
	if err := tt.tab.Insert(make([]float64, n+3), []float64{0.5, 0.5}, mat.NewDense(n, n, nil), n); err == nil {
		t.Error("square sensitivity should be an error")
	}
	if _, ok := tt.tab.Lookup([]float64{1}); ok {
		t.Error("short query should miss")
	}
}

func TestTabulationLRU(t *testing.T) {
	tt := newTabulationTest(t)
	tt.cfg.MaxEntries = 2
	tt.tab = NewTabulation(tt.m, tt.cfg, nil)
	n := tt.m.Len()
	A := mat.NewDense(n, n+3, nil)
	phis := [][]float64{
		{0.05, 0.95, 1.0, 1, 0.01},
		{0.05, 0.95, 1.5, 1, 0.01},
		{0.05, 0.95, 2.0, 1, 0.01},
	}
	for _, p := range phis[:2] {
		if err := tt.tab.Insert(p, []float64{0.04, 0.96}, A, n); err != nil {
			t.Fatal(err)
		}
	}
	if _, ok := tt.tab.Lookup(phis[0]); !ok {
		t.Fatal("miss")
	}
	if err := tt.tab.Insert(phis[2], []float64{0.04, 0.96}, A, n); err != nil {
		t.Fatal(err)
	}
	if tt.tab.Len() != 2 {
		t.Errorf("table has %d entries; want 2", tt.tab.Len())
	}
	if _, ok := tt.tab.Lookup(phis[1]); ok {
		t.Error("least recently used entry was not evicted")
	}
	for _, i := range []int{0, 2} {
		if _, ok := tt.tab.Lookup(phis[i]); !ok {
			t.Errorf("entry %d was evicted", i)
		}
	}
	if st := tt.tab.Stats(); st.Evictions != 1 {
		t.Errorf("%d evictions", st.Evictions)
	}
}

func TestTabulationAudit(t *testing.T) {
	tt := newTabulationTest(t)
	n := tt.m.Len()
	phi := []float64{0.05, 0.95, 1, 1, 0.01}
	if err := tt.tab.Insert(phi, []float64{0.04, 0.96}, mat.NewDense(n, n+3, nil), n); err != nil {
		t.Fatal(err)
	}
	near := append([]float64(nil), phi...)
	near[2] += 1.5 * tt.cfg.MaxRadius
	if tt.tab.Audit(near, []float64{0.0405, 0.9595}) {
		t.Error("accurate result failed audit")
	}
	far := append([]float64(nil), phi...)
	far[2] += 3 * tt.cfg.MaxRadius
	if tt.tab.Audit(far, []float64{0.5, 0.5}) {
		t.Error("entry audited outside of the check radius")
	}
	for i := 0; i < tt.cfg.MaxFailures; i++ {
		if !tt.tab.Audit(near, []float64{0.1, 0.9}) {
			t.Errorf("audit %d passed", i)
		}
	}
	if tt.tab.Len() != 0 {
		t.Errorf("entry was not removed after %d failures", tt.cfg.MaxFailures)
	}
	if st := tt.tab.Stats(); st.Removals != 1 {
		t.Errorf("%d removals", st.Removals)
	}
}

func TestTabulationFingerprint(t *testing.T) {
	tt := newTabulationTest(t)
	s := NewChemicalState([]float64{0.05, 0.95}, 1000, 101325)
	phi, _ := tt.insert(t, s, 1e-5)
	if tt.tab.SetFingerprint(tt.m.Fingerprint()) {
		t.Error("same mechanism cleared the table")
	}
	if _, ok := tt.tab.Lookup(phi); !ok {
		t.Error("miss after setting the same fingerprint")
	}
	if !tt.tab.SetFingerprint(chain(t).Fingerprint()) {
		t.Error("different mechanism did not clear the table")
	}
	if _, ok := tt.tab.Lookup(phi); ok {
		t.Error("hit after mechanism change")
	}
}

func TestTabulationConcurrent(t *testing.T) {
	tt := newTabulationTest(t)
	n := tt.m.Len()
	A := mat.NewDense(n, n+3, nil)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				phi := []float64{0.05, 0.95, float64(w) + float64(i)*0.01, 1, 0.01}
				if err := tt.tab.Insert(phi, []float64{0.04, 0.96}, A, n); err != nil {
					t.Error(err)
					return
				}
				if _, ok := tt.tab.Lookup(phi); !ok {
					t.Errorf("worker %d: miss after insert %d", w, i)
				}
			}
		}(w)
	}
	wg.Wait()
	if st := tt.tab.Stats(); st.Inserts != 400 || st.Hits != 400 {
		t.Errorf("stats = %+v", st)
	}
}

func TestTabulationEntryIndexed(t *testing.T) {
	tt := newTabulationTest(t)
	n := tt.m.Len()
	phi := []float64{0.05, 0.95, 1, 1, 0.01}
	if err := tt.tab.Insert(phi, []float64{0.04, 0.96}, mat.NewDense(n, n+3, nil), n); err != nil {
		t.Fatal(err)
	}
	var g geom.Geom = tt.tab.entries[0]
	b := g.Bounds()
	r := tt.cfg.MaxRadius
	if b.Min.X != 1-r || b.Max.X != 1+r || b.Min.Y != 0.01-r || b.Max.Y != 0.01+r {
		t.Errorf("bounds = %+v", b)
	}
	found := tt.tab.index.SearchIntersect(tt.tab.point(phi))
	if len(found) != 1 || found[0].(*tabEntry) != tt.tab.entries[0] {
		t.Errorf("index search found %v", found)
	}
	tt.tab.Clear()
	if found := tt.tab.index.SearchIntersect(tt.tab.point(phi)); len(found) != 0 {
		t.Errorf("index search after clear found %d entries", len(found))
	}
}

func TestTabulationLRUOrder(t *testing.T) {
	tt := newTabulationTest(t)
	tt.cfg.MaxEntries = 3
	tt.tab = NewTabulation(tt.m, tt.cfg, nil)
	n := tt.m.Len()
	A := mat.NewDense(n, n+3, nil)
	phi := func(T float64) []float64 { return []float64{0.05, 0.95, T, 1, 0.01} }
	insert := func(T float64) {
		if err := tt.tab.Insert(phi(T), []float64{0.04, 0.96}, A, n); err != nil {
			t.Fatal(err)
		}
	}
	insert(1)
	insert(1.5)
	insert(2)
	for i := 0; i < 3; i++ {
		tt.tab.Lookup(phi(1))
		tt.tab.Lookup(phi(1.5))
	}
	insert(2.5) // evicts 2
	if _, ok := tt.tab.Lookup(phi(2)); ok {
		t.Error("entry at T=2 was not evicted")
	}
	tt.tab.Lookup(phi(1))
	insert(3) // evicts 1.5
	for T, want := range map[float64]bool{1: true, 1.5: false, 2.5: true, 3: true} {
		if _, ok := tt.tab.Lookup(phi(T)); ok != want {
			t.Errorf("T=%g: hit = %v; want %v", T, ok, want)
		}
	}
	if st := tt.tab.Stats(); st.Evictions != 2 || st.Size != 3 {
		t.Errorf("stats = %+v", st)
	}
}

func TestTabulationAuditRemovalConsistent(t *testing.T) {
	tt := newTabulationTest(t)
	tt.cfg.MaxEntries = 3
	tt.tab = NewTabulation(tt.m, tt.cfg, nil)
	n := tt.m.Len()
	A := mat.NewDense(n, n+3, nil)
	phi := func(T float64) []float64 { return []float64{0.05, 0.95, T, 1, 0.01} }
	for _, T := range []float64{1, 2, 3} {
		if err := tt.tab.Insert(phi(T), []float64{0.04, 0.96}, A, n); err != nil {
			t.Fatal(err)
		}
	}
	// Entries far from the query are not audited.
	if tt.tab.Audit(phi(10), []float64{0.5, 0.5}) {
		t.Error("distant entry was audited")
	}
	near := phi(1 + 1.5*tt.cfg.MaxRadius)
	for i := 0; i < tt.cfg.MaxFailures; i++ {
		if !tt.tab.Audit(near, []float64{0.5, 0.5}) {
			t.Fatalf("audit %d passed", i)
		}
	}
	if tt.tab.Len() != 2 {
		t.Fatalf("table has %d entries; want 2", tt.tab.Len())
	}
	for i, e := range tt.tab.entries {
		if e.pos != i {
			t.Errorf("entry %d has position %d", i, e.pos)
		}
	}
	for _, T := range []float64{4, 5} {
		if err := tt.tab.Insert(phi(T), []float64{0.04, 0.96}, A, n); err != nil {
			t.Fatal(err)
		}
	}
	for T, want := range map[float64]bool{1: false, 2: false, 3: true, 4: true, 5: true} {
		if _, ok := tt.tab.Lookup(phi(T)); ok != want {
			t.Errorf("T=%g: hit = %v; want %v", T, ok, want)
		}
	}
	if st := tt.tab.Stats(); st.Removals != 1 || st.Evictions != 1 {
		t.Errorf("stats = %+v", st)
	}
}
