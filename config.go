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
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"runtime"

	"github.com/BurntSushi/toml"
)

// ReductionConfig holds the mechanism reduction parameters.
type ReductionConfig struct {
	// Enabled specifies whether the mechanism is reduced before
	// integration.
	Enabled bool

	// Tolerance is the importance threshold below which species are
	// removed from the mechanism.
	Tolerance float64

	// SearchInitThreshold is the mass fraction above which species start
	// the importance search.
	SearchInitThreshold float64

	// InitialSet lists species that always start the importance search,
	// for example the fuel and oxidizer.
	InitialSet []string

	// IncludeOnTie specifies whether species with importance exactly
	// equal to Tolerance are kept.
	IncludeOnTie bool
}

// IntegratorConfig holds the stiff integrator parameters.
type IntegratorConfig struct {
	RelTol      float64
	AbsTol      float64
	MaxSubSteps int
}

// Config holds the configuration of a ChemistryModel.
type Config struct {
	Reduction  ReductionConfig
	Integrator IntegratorConfig

	// Tabulation holds the tabulation parameters. Results are only
	// tabulated if TabulationEnabled is true.
	Tabulation        TabulationConfig
	TabulationEnabled bool

	// VariableTimeStep specifies whether each cell starts integration
	// from the sub-step it last used instead of the full time step.
	VariableTimeStep bool

	// Workers is the number of goroutines that process cells
	// concurrently. If zero, GOMAXPROCS is used.
	Workers int

	// FallbackToLastGood specifies whether a cell whose state is outside
	// of the valid domain keeps its previous state (with zero reaction
	// rates) instead of stopping the calculation.
	FallbackToLastGood bool

	// Combustion is the combustion model: "laminar" or "EDC".
	Combustion string

	// LogDir is the directory where reduction and tabulation
	// statistics are written. If empty, they are not written.
	LogDir string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Reduction: ReductionConfig{
			Enabled:             true,
			Tolerance:           1e-4,
			SearchInitThreshold: 1e-3,
			IncludeOnTie:        true,
		},
		Integrator: IntegratorConfig{
			RelTol:      1e-4,
			AbsTol:      1e-8,
			MaxSubSteps: 10000,
		},
		Tabulation: TabulationConfig{
			Tolerance:   1e-3,
			MaxEntries:  5000,
			MaxRadius:   0.1,
			MaxFailures: 3,
			CheckFactor: 2,
			ScaleT:      1000,
			ScaleP:      1e5,
			ScaleDt:     1e-3,
		},
		TabulationEnabled: true,
		VariableTimeStep:  true,
		Combustion:        "laminar",
	}
}

// Validate checks c for invalid values and fills in defaults.
func (c *Config) Validate() error {
	if c.Reduction.Tolerance < 0 || c.Reduction.Tolerance > 1 {
		return fmt.Errorf("tdac: Reduction.Tolerance=%g but should be in [0, 1]", c.Reduction.Tolerance)
	}
	if c.Reduction.SearchInitThreshold < 0 {
		return fmt.Errorf("tdac: Reduction.SearchInitThreshold=%g but should be >=0", c.Reduction.SearchInitThreshold)
	}
	vars := []float64{c.Integrator.RelTol, c.Integrator.AbsTol}
	varNames := []string{"Integrator.RelTol", "Integrator.AbsTol"}
	if c.TabulationEnabled {
		vars = append(vars, c.Tabulation.Tolerance, c.Tabulation.ScaleT, c.Tabulation.ScaleP, c.Tabulation.ScaleDt)
		varNames = append(varNames, "Tabulation.Tolerance", "Tabulation.ScaleT", "Tabulation.ScaleP", "Tabulation.ScaleDt")
	}
	for i, v := range vars {
		if !(v > 0) {
			return fmt.Errorf("tdac: %s=%g but should be >0", varNames[i], v)
		}
	}
	if c.Integrator.MaxSubSteps <= 0 {
		return fmt.Errorf("tdac: Integrator.MaxSubSteps=%d but should be >0", c.Integrator.MaxSubSteps)
	}
	if c.TabulationEnabled {
		if c.Tabulation.MaxRadius < 0 || c.Tabulation.MaxEntries < 0 || c.Tabulation.MaxFailures < 0 || c.Tabulation.CheckFactor < 0 {
			return fmt.Errorf("tdac: Tabulation.MaxRadius, MaxEntries, MaxFailures and CheckFactor must not be negative")
		}
	}
	switch c.Combustion {
	case "":
		c.Combustion = "laminar"
	case "laminar", "EDC":
	default:
		return fmt.Errorf("tdac: Combustion=%q but should be \"laminar\" or \"EDC\"", c.Combustion)
	}
	if c.Workers < 0 {
		return fmt.Errorf("tdac: Workers=%d but should be >=0", c.Workers)
	}
	if c.Workers == 0 {
		c.Workers = runtime.GOMAXPROCS(-1)
	}
	c.LogDir = os.ExpandEnv(c.LogDir)
	return nil
}

// ReadConfig reads a configuration in TOML format from r. Values not
// set in r keep their defaults.
func ReadConfig(r io.Reader) (*Config, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("tdac: problem reading configuration: %v", err)
	}
	c := DefaultConfig()
	if _, err = toml.Decode(string(b), c); err != nil {
		return nil, fmt.Errorf("tdac: problem parsing configuration: %v", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
