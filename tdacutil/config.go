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


package tdacutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/tdac"
	"github.com/spatialmodel/tdac/science/chem/h2air"
	"github.com/spatialmodel/tdac/science/chem/onestep"
	"github.com/spf13/cast"
)

// builtin holds a mechanism that is compiled into the program, along
// with a default initial composition for it.
type builtin struct {
	mechanism   func() (*tdac.Mechanism, error)
	composition func() []float64
}

var builtins = map[string]builtin{
	"fuel-inert": {
		mechanism:   onestep.FuelInert,
		composition: func() []float64 { return []float64{0.1, 0.9} },
	},
	"methane": {
		mechanism:   onestep.Methane,
		composition: func() []float64 { return onestep.AirComposition(onestep.StoichiometricFuel) },
	},
	"h2-air": {
		mechanism:   h2air.Mechanism,
		composition: h2air.Stoichiometric,
	},
}

func builtinNames() []string {
	names := make([]string, 0, len(builtins))
	for k := range builtins {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// mechanismFiles holds mechanisms that have been read from files.
var mechanismFiles = tdac.NewMechanismLibrary(10)

// LoadMechanism returns the built-in mechanism with the given name, or
// otherwise reads the mechanism from the file with that name.
func LoadMechanism(ctx context.Context, name string) (*tdac.Mechanism, error) {
	if b, ok := builtins[name]; ok {
		return b.mechanism()
	}
	if name == "" {
		return nil, fmt.Errorf("tdac: the Mechanism configuration variable is not specified")
	}
	return mechanismFiles.Load(ctx, name)
}

// ChemistryConfig unmarshals the chemistry model configuration.
func ChemistryConfig(cfg *viper.Viper) (*tdac.Config, error) {
	c := &tdac.Config{
		Reduction: tdac.ReductionConfig{
			Enabled:             cfg.GetBool("Reduction.Enabled"),
			Tolerance:           cfg.GetFloat64("Reduction.Tolerance"),
			SearchInitThreshold: cfg.GetFloat64("Reduction.SearchInitThreshold"),
			InitialSet:          cast.ToStringSlice(cfg.Get("Reduction.InitialSet")),
			IncludeOnTie:        cfg.GetBool("Reduction.IncludeOnTie"),
		},
		Integrator: tdac.IntegratorConfig{
			RelTol:      cfg.GetFloat64("Integrator.RelTol"),
			AbsTol:      cfg.GetFloat64("Integrator.AbsTol"),
			MaxSubSteps: cfg.GetInt("Integrator.MaxSubSteps"),
		},
		Tabulation: tdac.TabulationConfig{
			Tolerance:   cfg.GetFloat64("Tabulation.Tolerance"),
			MaxEntries:  cfg.GetInt("Tabulation.MaxEntries"),
			MaxRadius:   cfg.GetFloat64("Tabulation.MaxRadius"),
			MaxFailures: cfg.GetInt("Tabulation.MaxFailures"),
			CheckFactor: cfg.GetFloat64("Tabulation.CheckFactor"),
			ScaleT:      cfg.GetFloat64("Tabulation.ScaleT"),
			ScaleP:      cfg.GetFloat64("Tabulation.ScaleP"),
			ScaleDt:     cfg.GetFloat64("Tabulation.ScaleDt"),
		},
		TabulationEnabled:  cfg.GetBool("TabulationEnabled"),
		VariableTimeStep:   cfg.GetBool("VariableTimeStep"),
		Workers:            cfg.GetInt("Workers"),
		FallbackToLastGood: cfg.GetBool("FallbackToLastGood"),
		Combustion:         cfg.GetString("Combustion"),
		LogDir:             cfg.GetString("LogDir"),
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("parsing chemistry configuration: %v", err)
	}
	return c, nil
}

// CaseCells creates the cells of a batch reactor simulation from the
// Cells configuration variables and the initial composition.
func CaseCells(cfg *viper.Viper, m *tdac.Mechanism) ([]*tdac.Cell, error) {
	y, err := initialComposition(cfg, m)
	if err != nil {
		return nil, err
	}
	n := cfg.GetInt("Cells.N")
	tMin := cfg.GetFloat64("Cells.TMin")
	tMax := cfg.GetFloat64("Cells.TMax")

	vars := []float64{float64(n), tMin, tMax, cfg.GetFloat64("Cells.P"), cfg.GetFloat64("Cells.Volume")}
	varNames := []string{"Cells.N", "Cells.TMin", "Cells.TMax", "Cells.P", "Cells.Volume"}
	for i, v := range vars {
		if !(v > 0) {
			return nil, fmt.Errorf("parsing case configuration: %s=%g but should be >0", varNames[i], v)
		}
	}
	if tMax < tMin {
		return nil, fmt.Errorf("parsing case configuration: Cells.TMax=%g is less than Cells.TMin=%g", tMax, tMin)
	}
	kappa := cfg.GetFloat64("Cells.Kappa")
	if kappa < 0 || kappa > 1 {
		return nil, fmt.Errorf("parsing case configuration: Cells.Kappa=%g but should be in [0, 1]", kappa)
	}

	cells := make([]*tdac.Cell, n)
	for i := range cells {
		T := tMin
		if n > 1 {
			T += (tMax - tMin) * float64(i) / float64(n-1)
		}
		c := tdac.NewCell(i, y, T, cfg.GetFloat64("Cells.P"), cfg.GetFloat64("Cells.Volume"))
		c.Kappa = kappa
		c.MaxSubStep = cfg.GetFloat64("Cells.MaxSubStep")
		cells[i] = c
	}
	return cells, nil
}

// initialComposition returns the initial mass fractions from the
// InitialComposition configuration variable, or the default composition
// of a built-in mechanism.
func initialComposition(cfg *viper.Viper, m *tdac.Mechanism) ([]float64, error) {
	comp, err := GetStringMapString("InitialComposition", cfg)
	if err != nil {
		return nil, err
	}
	if len(comp) == 0 {
		if b, ok := builtins[cfg.GetString("Mechanism")]; ok {
			return b.composition(), nil
		}
		return nil, fmt.Errorf("tdac: InitialComposition must be specified for mechanism %s", m.Name)
	}
	y := make(map[string]float64, len(comp))
	for k, v := range comp {
		f, err := cast.ToFloat64E(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("tdac: InitialComposition: species %s: %v", k, err)
		}
		y[k] = f
	}
	return m.MassFractions(y)
}

// checkOutputFile makes sure that the directory of the output file
// exists.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`you need to specify an output file configuration variable (for example: OutputFile="output.nc"`)
	}
	f = os.ExpandEnv(f)
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("tdac: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkLogFile returns the log file location, which is next to the
// output file if logFile is empty.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return os.ExpandEnv(logFile)
}

// GetStringMapString returns a map[string]string from the configuration
// variable varName, which can be a map or a JSON string.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case nil:
		return map[string]string{}, nil
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapStringE(v)
	case string:
		b := bytes.NewBuffer([]byte(v))
		d := json.NewDecoder(b)
		o := make(map[string]string)
		if err := d.Decode(&o); err != nil {
			return nil, fmt.Errorf("tdac: configuration variable %s is not a valid JSON object: %v", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("tdac: invalid type for configuration variable %s: %#v", varName, i)
	}
}
