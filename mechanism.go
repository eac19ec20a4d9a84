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
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/requestcache"
	"github.com/spatialmodel/tdac/internal/hash"
)

// Species holds the properties of a chemical species.
type Species struct {
	Name string
	W    float64 // molar mass [kg/mol]
	Hf   float64 // enthalpy of formation [J/kg]
}

// Participant is a species taking part in a reaction.
type Participant struct {
	Species string
	Coeff   float64 // stoichiometric coefficient

	// Order is the exponent of the species concentration in the
	// rate law. If zero, Coeff is used.
	Order float64

	index int
}

func (p Participant) order() float64 {
	if p.Order != 0 {
		return p.Order
	}
	return p.Coeff
}

// Arrhenius holds the parameters of a modified Arrhenius rate law
// k = A T^Beta exp(-Ta/T).
type Arrhenius struct {
	A    float64 // pre-exponential factor [(m³/mol)^(order-1)/s]
	Beta float64 // temperature exponent
	Ta   float64 // activation temperature [K]
}

// Rate returns the rate constant at temperature T.
func (k Arrhenius) Rate(T float64) float64 {
	return k.A * math.Pow(T, k.Beta) * math.Exp(-k.Ta/T)
}

// ThirdBody holds third-body collision efficiencies.
type ThirdBody struct {
	Default      float64
	Efficiencies map[string]float64
}

// Reaction is an elementary or global chemical reaction.
type Reaction struct {
	Name      string
	Reactants []Participant
	Products  []Participant
	Forward   Arrhenius
	Reverse   *Arrhenius // nil for irreversible reactions
	ThirdBody *ThirdBody // nil if no third body is involved

	nu         []stoich  // net stoichiometry, sorted by species index
	efficiency []float64 // third-body efficiencies in the full species space
}

type stoich struct {
	i  int
	nu float64
}

// Nu returns the net stoichiometric coefficient of species i in r.
func (r *Reaction) Nu(i int) float64 {
	for _, s := range r.nu {
		if s.i == i {
			return s.nu
		}
	}
	return 0
}

// involves returns whether species i is a reactant or product of r.
func (r *Reaction) involves(i int) bool {
	for _, p := range r.Reactants {
		if p.index == i {
			return true
		}
	}
	for _, p := range r.Products {
		if p.index == i {
			return true
		}
	}
	return false
}

// Mechanism is an immutable description of the species and reactions
// of a chemical mechanism. It is shared between goroutines without
// synchronization and must not be changed after it is created by
// NewMechanism.
type Mechanism struct {
	Name      string
	Inert     string
	Species   []Species
	Reactions []*Reaction

	inert       int
	index       map[string]int
	fingerprint string
}

// NewMechanism validates m, resolves species references, and
// returns it ready for use.
func NewMechanism(m *Mechanism) (*Mechanism, error) {
	if len(m.Species) == 0 {
		return nil, fmt.Errorf("tdac: mechanism %q has no species", m.Name)
	}
	m.index = make(map[string]int, len(m.Species))
	for i, s := range m.Species {
		if _, ok := m.index[s.Name]; ok {
			return nil, fmt.Errorf("tdac: mechanism %q: duplicate species %q", m.Name, s.Name)
		}
		if !(s.W > 0) || math.IsInf(s.W, 0) {
			return nil, fmt.Errorf("tdac: mechanism %q: species %q has invalid molar mass %g", m.Name, s.Name, s.W)
		}
		m.index[s.Name] = i
	}
	var ok bool
	if m.inert, ok = m.index[m.Inert]; !ok {
		return nil, fmt.Errorf("tdac: mechanism %q: inert species %q is not in the species list", m.Name, m.Inert)
	}
	for j, r := range m.Reactions {
		if err := m.prepareReaction(r); err != nil {
			return nil, fmt.Errorf("tdac: mechanism %q: reaction %d (%s): %v", m.Name, j, r.Name, err)
		}
	}
	m.fingerprint = ""
	m.fingerprint = hash.Hash(m)
	return m, nil
}

func (m *Mechanism) prepareReaction(r *Reaction) error {
	if len(r.Reactants) == 0 {
		return fmt.Errorf("no reactants")
	}
	ks := []Arrhenius{r.Forward}
	if r.Reverse != nil {
		ks = append(ks, *r.Reverse)
	}
	for _, k := range ks {
		if k.A < 0 || math.IsNaN(k.A) || math.IsInf(k.A, 0) || math.IsNaN(k.Beta) || math.IsNaN(k.Ta) {
			return fmt.Errorf("invalid Arrhenius parameters %+v", k)
		}
	}
	nu := make(map[int]float64)
	for _, side := range []struct {
		ps   []Participant
		sign float64
	}{{r.Reactants, -1}, {r.Products, 1}} {
		for i, p := range side.ps {
			idx, ok := m.index[p.Species]
			if !ok {
				return fmt.Errorf("unknown species %q", p.Species)
			}
			if !(p.Coeff > 0) || p.order() < 0 {
				return fmt.Errorf("invalid coefficient for species %q", p.Species)
			}
			side.ps[i].index = idx
			nu[idx] += side.sign * p.Coeff
		}
	}
	massIn, massNet := 0., 0.
	r.nu = r.nu[:0]
	for i, v := range nu {
		massNet += v * m.Species[i].W
		if v < 0 {
			massIn -= v * m.Species[i].W
		}
		if v != 0 {
			r.nu = append(r.nu, stoich{i: i, nu: v})
		}
	}
	sort.Slice(r.nu, func(a, b int) bool { return r.nu[a].i < r.nu[b].i })
	if math.Abs(massNet) > 1e-6*massIn {
		return fmt.Errorf("reaction does not conserve mass (Δ=%g kg/mol)", massNet)
	}
	if r.ThirdBody != nil {
		r.efficiency = make([]float64, len(m.Species))
		for i := range r.efficiency {
			r.efficiency[i] = r.ThirdBody.Default
		}
		for name, e := range r.ThirdBody.Efficiencies {
			idx, ok := m.index[name]
			if !ok {
				return fmt.Errorf("unknown third-body species %q", name)
			}
			r.efficiency[idx] = e
		}
	}
	return nil
}

// Len returns the number of species in the mechanism.
func (m *Mechanism) Len() int { return len(m.Species) }

// InertIndex returns the index of the inert species.
func (m *Mechanism) InertIndex() int { return m.inert }

// SpeciesIndex returns the index of the named species.
func (m *Mechanism) SpeciesIndex(name string) (int, error) {
	i, ok := m.index[name]
	if !ok {
		return -1, fmt.Errorf("tdac: mechanism %q has no species %q", m.Name, name)
	}
	return i, nil
}

// SpeciesNames returns the names of the species in index order.
func (m *Mechanism) SpeciesNames() []string {
	o := make([]string, len(m.Species))
	for i, s := range m.Species {
		o[i] = s.Name
	}
	return o
}

// Fingerprint returns a key that changes whenever the mechanism
// definition changes.
func (m *Mechanism) Fingerprint() string { return m.fingerprint }

// MassFractions converts a map of species names to mass fractions into a
// full-space mass fraction vector. Species that are not listed are zero.
func (m *Mechanism) MassFractions(y map[string]float64) ([]float64, error) {
	o := make([]float64, len(m.Species))
	for name, v := range y {
		i, err := m.SpeciesIndex(name)
		if err != nil {
			return nil, err
		}
		o[i] = v
	}
	return o, nil
}

// ReadMechanism reads a mechanism in TOML format from r.
func ReadMechanism(r io.Reader) (*Mechanism, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("tdac: reading mechanism: %v", err)
	}
	m := new(Mechanism)
	md, err := toml.Decode(string(b), m)
	if err != nil {
		return nil, fmt.Errorf("tdac: parsing mechanism: %v", err)
	}
	if u := md.Undecoded(); len(u) > 0 {
		keys := make([]string, len(u))
		for i, k := range u {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("tdac: parsing mechanism: unknown keys %s", strings.Join(keys, ", "))
	}
	return NewMechanism(m)
}

// ReadMechanismFile reads a mechanism in TOML format from the
// given file. The path can include environment variables.
func ReadMechanismFile(filename string) (*Mechanism, error) {
	f, err := os.Open(os.ExpandEnv(filename))
	if err != nil {
		return nil, fmt.Errorf("tdac: opening mechanism file: %v", err)
	}
	defer f.Close()
	return ReadMechanism(f)
}

// MechanismLibrary loads mechanism files, keeping recently used
// mechanisms in memory so that concurrent requests for the same file
// only parse it once.
type MechanismLibrary struct {
	cache *requestcache.Cache
}

// NewMechanismLibrary creates a library that holds up to size
// mechanisms in memory.
func NewMechanismLibrary(size int) *MechanismLibrary {
	return &MechanismLibrary{
		cache: requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
			return ReadMechanismFile(request.(string))
		}, runtime.GOMAXPROCS(-1), requestcache.Deduplicate(), requestcache.Memory(size)),
	}
}

// Load returns the mechanism stored in filename.
func (l *MechanismLibrary) Load(ctx context.Context, filename string) (*Mechanism, error) {
	filename = filepath.Clean(os.ExpandEnv(filename))
	req := l.cache.NewRequest(ctx, filename, filename)
	result, err := req.Result()
	if err != nil {
		return nil, err
	}
	return result.(*Mechanism), nil
}
