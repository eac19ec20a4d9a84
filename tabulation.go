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
	"sync"
	"sync/atomic"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"gonum.org/v1/gonum/mat"
)

// TabulationConfig holds the parameters of the tabulation cache.
type TabulationConfig struct {
	// Tolerance is the largest allowed estimated retrieval error.
	Tolerance float64

	// MaxEntries is the capacity of the table. When it is full, the
	// least recently used entry is removed to make room.
	MaxEntries int

	// MaxRadius caps the validity radius of each entry in the scaled
	// query space.
	MaxRadius float64

	// MaxFailures is the number of failed audits after which an entry
	// is removed. Zero disables removal.
	MaxFailures int

	// CheckFactor is the multiple of an entry's radius within which it
	// is audited against freshly integrated results.
	CheckFactor float64

	// ScaleT, ScaleP and ScaleDt are the temperature [K], pressure [Pa]
	// and time step [s] scales of the query space.
	ScaleT, ScaleP, ScaleDt float64
}

// tabEntry is one stored result. Everything other than the counters is
// immutable after insertion.
type tabEntry struct {
	geom.Geom // (T, Δt) projection of the validity region

	id     int64
	phi0   []float64
	r0     []float64
	A      *mat.Dense
	growth float64
	radius float64
	valid  bool
	nsDAC  int

	uses     int64
	lastUsed int64
	failures int64

	pos     int   // index in Tabulation.entries, or -1 once removed
	lruIdx  int   // index in Tabulation.lru
	lruUsed int64 // lastUsed when the entry was last ordered in lru
}

// lruQueue is a min-heap of entries ordered by the use time they had
// when they were pushed. Uses under the read lock only advance
// lastUsed, so the order is corrected lazily on eviction.
type lruQueue []*tabEntry

func (q lruQueue) Len() int           { return len(q) }
func (q lruQueue) Less(i, j int) bool { return q[i].lruUsed < q[j].lruUsed }
func (q lruQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].lruIdx = i
	q[j].lruIdx = j
}
func (q *lruQueue) Push(x interface{}) {
	e := x.(*tabEntry)
	e.lruIdx = len(*q)
	*q = append(*q, e)
}
func (q *lruQueue) Pop() interface{} {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

// distance returns the scaled ∞-norm distance between phi and the
// entry's query point.
func (e *tabEntry) distance(phi []float64) float64 {
	d := 0.
	for i, v := range phi {
		d = math.Max(d, math.Abs(v-e.phi0[i]))
	}
	return d
}

// retrieve returns the linear approximation of the result at phi.
func (e *tabEntry) retrieve(phi []float64) []float64 {
	n := len(e.r0)
	dphi := make([]float64, len(phi))
	for i, v := range phi {
		dphi[i] = v - e.phi0[i]
	}
	var dr mat.VecDense
	dr.MulVec(e.A, mat.NewVecDense(len(dphi), dphi))
	r := make([]float64, n)
	for i := range r {
		r[i] = e.r0[i] + dr.AtVec(i)
	}
	normalize(r)
	return r
}

// TabulationStats summarizes the use of the table.
type TabulationStats struct {
	Size      int
	Hits      int64
	Misses    int64
	Inserts   int64
	Evictions int64
	Removals  int64 // entries removed after failed audits
	Clears    int64
}

// HitRatio returns the fraction of lookups that were hits.
func (s TabulationStats) HitRatio() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// Tabulation stores integration results together with their
// sensitivity to the inputs, so that results for nearby inputs can be
// retrieved by linear approximation instead of being integrated.
// Lookups and audits may run concurrently; inserts, removals and
// clears hold an exclusive lock.
type Tabulation struct {
	cfg    TabulationConfig
	n      int
	timers *Timers

	mu          sync.RWMutex
	entries     []*tabEntry
	lru         lruQueue
	index       *rtree.Rtree
	fingerprint string

	clock, nextID                   int64
	hits, misses, inserts           int64
	evictions, removals, clearCount int64
}

// NewTabulation returns an empty table for results of mechanism m.
func NewTabulation(m *Mechanism, cfg TabulationConfig, t *Timers) *Tabulation {
	return &Tabulation{
		cfg:         cfg,
		n:           m.Len(),
		timers:      t,
		index:       rtree.NewTree(25, 50),
		fingerprint: m.Fingerprint(),
	}
}

// Descriptor returns the scaled query vector for state s and time
// step Δt: the mass fractions followed by T/ScaleT, P/ScaleP and
// Δt/ScaleDt.
func (t *Tabulation) Descriptor(s *ChemicalState, Δt float64) []float64 {
	phi := make([]float64, t.n+3)
	copy(phi, s.Y)
	phi[t.n] = s.T / t.cfg.ScaleT
	phi[t.n+1] = s.P / t.cfg.ScaleP
	phi[t.n+2] = Δt / t.cfg.ScaleDt
	return phi
}

func (t *Tabulation) point(phi []float64) *geom.Bounds {
	p := geom.Point{X: phi[t.n], Y: phi[t.n+2]}
	return &geom.Bounds{Min: p, Max: p}
}

// Lookup searches for an entry whose validity region contains phi.
// Among the candidates, the one with the smallest estimated error
// (growth times distance) is used. On a hit, the approximated result
// is returned.
func (t *Tabulation) Lookup(phi []float64) ([]float64, bool) {
	defer t.timers.Start(PhaseTabulation).Stop()
	if len(phi) != t.n+3 {
		atomic.AddInt64(&t.misses, 1)
		return nil, false
	}
	t.mu.RLock()
	var best *tabEntry
	bestErr, bestD := math.Inf(1), math.Inf(1)
	for _, g := range t.index.SearchIntersect(t.point(phi)) {
		e := g.(*tabEntry)
		d := e.distance(phi)
		if !(d <= e.radius) {
			continue
		}
		estErr := e.growth * d
		if estErr < bestErr || (estErr == bestErr && (d < bestD || (d == bestD && e.id < best.id))) {
			best, bestErr, bestD = e, estErr, d
		}
	}
	var r []float64
	if best != nil {
		r = best.retrieve(phi)
		atomic.AddInt64(&best.uses, 1)
		atomic.StoreInt64(&best.lastUsed, atomic.AddInt64(&t.clock, 1))
	}
	t.mu.RUnlock()
	if best == nil {
		atomic.AddInt64(&t.misses, 1)
		return nil, false
	}
	atomic.AddInt64(&t.hits, 1)
	return r, true
}

// Insert adds the result r for query phi with the sensitivity matrix
// A = ∂r/∂phi to the table. nsDAC is the number of active species the
// result was computed with. Entries containing non-finite values are
// stored but never retrieved.
func (t *Tabulation) Insert(phi, r []float64, A *mat.Dense, nsDAC int) error {
	defer t.timers.Start(PhaseTabulation).Stop()
	if len(phi) != t.n+3 || len(r) != t.n {
		return fmt.Errorf("tdac: tabulation insert: got %d inputs and %d outputs; want %d and %d",
			len(phi), len(r), t.n+3, t.n)
	}
	if rows, cols := A.Dims(); rows != t.n || cols != t.n+3 {
		return fmt.Errorf("tdac: tabulation insert: sensitivity is %dx%d; want %dx%d", rows, cols, t.n, t.n+3)
	}
	e := &tabEntry{
		phi0:  append([]float64(nil), phi...),
		r0:    append([]float64(nil), r...),
		A:     mat.DenseCopyOf(A),
		nsDAC: nsDAC,
	}
	e.growth = mat.Norm(e.A, math.Inf(1))
	e.valid = finite(e.phi0) && finite(e.r0) && !math.IsNaN(e.growth) && !math.IsInf(e.growth, 0)
	e.radius = t.cfg.MaxRadius
	if e.growth > 0 {
		e.radius = math.Min(t.cfg.Tolerance/e.growth, t.cfg.MaxRadius)
	}
	if e.valid {
		e.Geom = &geom.Bounds{
			Min: geom.Point{X: phi[t.n] - e.radius, Y: phi[t.n+2] - e.radius},
			Max: geom.Point{X: phi[t.n] + e.radius, Y: phi[t.n+2] + e.radius},
		}
	} else {
		e.radius = math.NaN()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cfg.MaxEntries > 0 {
		for len(t.entries) >= t.cfg.MaxEntries {
			t.evictLRU()
		}
	}
	e.id = t.nextID
	t.nextID++
	e.lastUsed = atomic.AddInt64(&t.clock, 1)
	e.lruUsed = e.lastUsed
	e.pos = len(t.entries)
	t.entries = append(t.entries, e)
	heap.Push(&t.lru, e)
	if e.valid {
		t.index.Insert(e)
	}
	t.inserts++
	return nil
}

// evictLRU removes the least recently used entry. t.mu must be held.
func (t *Tabulation) evictLRU() {
	for {
		e := t.lru[0]
		if used := atomic.LoadInt64(&e.lastUsed); used != e.lruUsed {
			e.lruUsed = used
			heap.Fix(&t.lru, 0)
			continue
		}
		t.remove(e)
		t.evictions++
		return
	}
}

// remove deletes entry e. t.mu must be held.
func (t *Tabulation) remove(e *tabEntry) {
	if e.valid {
		t.index.Delete(e)
	}
	heap.Remove(&t.lru, e.lruIdx)
	i, last := e.pos, len(t.entries)-1
	t.entries[i] = t.entries[last]
	t.entries[i].pos = i
	t.entries[last] = nil
	t.entries = t.entries[:last]
	e.pos = -1
}

// Audit compares the freshly integrated result r for query phi, which
// missed the table, with the retrieval from the nearest entry within
// CheckFactor times its radius. If the difference is greater than the
// tolerance, the entry's failure count is incremented, and the entry
// is removed once it has failed MaxFailures times. Audit returns
// whether an entry failed.
func (t *Tabulation) Audit(phi, r []float64) bool {
	if t.cfg.CheckFactor <= 0 || len(phi) != t.n+3 {
		return false
	}
	// No entry radius exceeds MaxRadius, so every entry within its
	// check distance of phi intersects this box.
	w := t.cfg.CheckFactor * t.cfg.MaxRadius
	search := &geom.Bounds{
		Min: geom.Point{X: phi[t.n] - w, Y: phi[t.n+2] - w},
		Max: geom.Point{X: phi[t.n] + w, Y: phi[t.n+2] + w},
	}
	t.mu.RLock()
	var best *tabEntry
	bestD := math.Inf(1)
	for _, g := range t.index.SearchIntersect(search) {
		e := g.(*tabEntry)
		d := e.distance(phi)
		if d <= t.cfg.CheckFactor*e.radius && (d < bestD || (d == bestD && e.id < best.id)) {
			best, bestD = e, d
		}
	}
	if best == nil {
		t.mu.RUnlock()
		return false
	}
	approx := best.retrieve(phi)
	t.mu.RUnlock()

	errMax := 0.
	for i, v := range approx {
		errMax = math.Max(errMax, math.Abs(v-r[i]))
	}
	if !(errMax > t.cfg.Tolerance) {
		return false
	}
	f := atomic.AddInt64(&best.failures, 1)
	if t.cfg.MaxFailures > 0 && f >= int64(t.cfg.MaxFailures) {
		t.mu.Lock()
		if best.pos >= 0 {
			t.remove(best)
			t.removals++
		}
		t.mu.Unlock()
	}
	return true
}

// Clear removes all entries. Subsequent lookups miss until the table
// is repopulated.
func (t *Tabulation) Clear() {
	t.mu.Lock()
	for _, e := range t.entries {
		e.pos = -1
	}
	t.entries = nil
	t.lru = nil
	t.index = rtree.NewTree(25, 50)
	t.clearCount++
	t.mu.Unlock()
}

// SetFingerprint clears the table if fingerprint differs from that of
// the mechanism the stored results were computed with. It returns
// whether the table was cleared.
func (t *Tabulation) SetFingerprint(fingerprint string) bool {
	t.mu.Lock()
	changed := fingerprint != t.fingerprint
	t.fingerprint = fingerprint
	t.mu.Unlock()
	if changed {
		t.Clear()
	}
	return changed
}

// Len returns the number of stored entries.
func (t *Tabulation) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Stats returns usage statistics.
func (t *Tabulation) Stats() TabulationStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return TabulationStats{
		Size:      len(t.entries),
		Hits:      atomic.LoadInt64(&t.hits),
		Misses:    atomic.LoadInt64(&t.misses),
		Inserts:   t.inserts,
		Evictions: t.evictions,
		Removals:  t.removals,
		Clears:    t.clearCount,
	}
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// finiteDifference is the relative perturbation used to estimate the
// sensitivity of the result to temperature and pressure.
const finiteDifference = 1e-6

// Sensitivity returns the estimated sensitivity ∂R/∂phi of the result
// R of integrating over Δt, with respect to the scaled query vector phi
// of the tabulation with configuration cfg. The mass fraction block is
// (I - Δt J(R))⁻¹ on the active species of a and the identity on the
// inactive species. The temperature and pressure columns map
// finite-difference derivative perturbations through the same inverse,
// and the time step column is dY/dt at R.
func (k *Kinetics) Sensitivity(R *ChemicalState, ρ float64, a *IndexMap, Δt float64, cfg TabulationConfig) (*mat.Dense, error) {
	a = k.active(a)
	n := k.m.Len()
	ns := a.NumActive()
	jac, err := k.jacobian(R.Y, R.T, ρ, a)
	if err != nil {
		return nil, err
	}
	var lhs mat.Dense
	lhs.Scale(-Δt, jac)
	lhs.Add(identity(ns), &lhs)
	var inv mat.Dense
	if err := inv.Inverse(&lhs); err != nil {
		if _, illConditioned := err.(mat.Condition); !illConditioned {
			return nil, fmt.Errorf("tdac: sensitivity: %v", err)
		}
	}

	c := make([]float64, n)
	q := make([]float64, len(k.m.Reactions))
	f := make([]float64, ns)
	if err := k.derivative(R.Y, R.T, ρ, a, c, q, f); err != nil {
		return nil, err
	}
	dT := finiteDifference * R.T
	fT := make([]float64, ns)
	if err := k.derivative(R.Y, R.T+dT, ρ, a, c, q, fT); err != nil {
		return nil, err
	}
	fP := make([]float64, ns)
	if err := k.derivative(R.Y, R.T, ρ*(1+finiteDifference), a, c, q, fP); err != nil {
		return nil, err
	}
	dP := finiteDifference * R.P
	for i := range fT {
		fT[i] = Δt * (fT[i] - f[i]) / dT * cfg.ScaleT
		fP[i] = Δt * (fP[i] - f[i]) / dP * cfg.ScaleP
	}
	var colT, colP mat.VecDense
	colT.MulVec(&inv, mat.NewVecDense(ns, fT))
	colP.MulVec(&inv, mat.NewVecDense(ns, fP))

	A := mat.NewDense(n, n+3, nil)
	for i := 0; i < n; i++ {
		if !a.Active(i) {
			A.Set(i, i, 1)
		}
	}
	for si := 0; si < ns; si++ {
		ci := a.Complete(si)
		for sk := 0; sk < ns; sk++ {
			A.Set(ci, a.Complete(sk), inv.At(si, sk))
		}
		A.Set(ci, n, colT.AtVec(si))
		A.Set(ci, n+1, colP.AtVec(si))
		A.Set(ci, n+2, f[si]*cfg.ScaleDt)
	}
	return A, nil
}
