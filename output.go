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
	"math"
	"sort"

	"github.com/Knetic/govaluate"
)

// Outputter calculates output variables from the state of a
// ChemistryModel.
//
// outputVariables maps the names of the variables for which data
// should be returned to expressions that define how the
// requested data should be calculated. These expressions can utilize
// variables built into the model, other output variables, and functions.
type Outputter struct {
	outputVariables map[string]string
	expressions     map[string]*govaluate.EvaluableExpression
	modelVariables  []string
	outputFunctions map[string]govaluate.ExpressionFunction
}

func oneArg(name string, f func(float64) float64) govaluate.ExpressionFunction {
	return func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("tdac: got %d arguments for function '%s', but needs 1", len(arg), name)
		}
		v, ok := arg[0].(float64)
		if !ok {
			return nil, fmt.Errorf("tdac: argument to function '%s' must be a number", name)
		}
		return f(v), nil
	}
}

// NewOutputter initializes a new Outputter and adds a set of default
// output functions: 'exp(x)', 'log(x)', 'log10(x)', 'abs(x)' and
// 'sqrt(x)'. outputFunctions can add to or replace the defaults.
func NewOutputter(outputVariables map[string]string, outputFunctions map[string]govaluate.ExpressionFunction) (*Outputter, error) {
	if len(outputVariables) == 0 {
		return nil, fmt.Errorf("tdac: there are no output variables")
	}
	funcs := map[string]govaluate.ExpressionFunction{
		"exp":   oneArg("exp", math.Exp),
		"log":   oneArg("log", math.Log),
		"log10": oneArg("log10", math.Log10),
		"abs":   oneArg("abs", math.Abs),
		"sqrt":  oneArg("sqrt", math.Sqrt),
	}
	for k, v := range outputFunctions {
		funcs[k] = v
	}
	o := &Outputter{
		outputVariables: make(map[string]string, len(outputVariables)),
		expressions:     make(map[string]*govaluate.EvaluableExpression, len(outputVariables)),
		outputFunctions: funcs,
	}
	seen := make(map[string]bool)
	for name, expr := range outputVariables {
		e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, funcs)
		if err != nil {
			return nil, fmt.Errorf("tdac: output variable %s: %v", name, err)
		}
		o.outputVariables[name] = expr
		o.expressions[name] = e
		for _, v := range e.Vars() {
			if _, ok := outputVariables[v]; (ok && v != name) || seen[v] {
				continue
			}
			seen[v] = true
			o.modelVariables = append(o.modelVariables, v)
		}
	}
	sort.Strings(o.modelVariables)
	for name := range o.outputVariables {
		if err := o.checkCycle(name, nil); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *Outputter) checkCycle(name string, path []string) error {
	for _, p := range path {
		if p == name {
			return fmt.Errorf("tdac: output variable %s is defined in terms of itself", name)
		}
	}
	path = append(path, name)
	for _, v := range o.expressions[name].Vars() {
		if _, ok := o.expressions[v]; ok && v != name {
			if err := o.checkCycle(v, path); err != nil {
				return err
			}
		}
	}
	return nil
}

// Names returns the output variable names in sorted order.
func (o *Outputter) Names() []string {
	names := make([]string, 0, len(o.outputVariables))
	for k := range o.outputVariables {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Expression returns the expression that defines output variable name.
func (o *Outputter) Expression(name string) string { return o.outputVariables[name] }

// ModelVariables returns the model variables that the output
// variables depend on.
func (o *Outputter) ModelVariables() []string { return o.modelVariables }

// OutputOptions returns the names of the model variables that can be
// used in output expressions, along with their descriptions and units.
func (cm *ChemistryModel) OutputOptions() (names, descriptions, units []string) {
	names = []string{"T", "P", "Volume", "Qdot", "Tc", "Kappa", "NumActive", "DeltaTChem", "TabulationResult"}
	descriptions = []string{
		"Temperature",
		"Pressure",
		"Cell volume",
		"Heat release rate",
		"Chemical time scale",
		"Reacting fraction",
		"Number of active species",
		"Recommended chemistry sub-step",
		"Result of the last step: 0 unset, 1 integrated, 2 retrieved from the table",
	}
	units = []string{"K", "Pa", "m3", "W m-3", "s", "-", "-", "s", "-"}
	for _, s := range cm.mech.Species {
		names = append(names, s.Name, "RR_"+s.Name)
		descriptions = append(descriptions, s.Name+" mass fraction", s.Name+" reaction rate")
		units = append(units, "kg kg-1", "kg m-3 s-1")
	}
	return
}

// CheckOutputVars returns an error if any of the model variables that o
// needs is not available in cm.
func (cm *ChemistryModel) CheckOutputVars(o *Outputter) error {
	names, _, _ := cm.OutputOptions()
	ok := make(map[string]bool, len(names))
	for _, n := range names {
		ok[n] = true
	}
	for _, v := range o.modelVariables {
		if !ok[v] {
			return fmt.Errorf("tdac: undefined variable name '%s'", v)
		}
	}
	return nil
}

// cellVariables returns the model variables of cell c.
func (cm *ChemistryModel) cellVariables(c *Cell) map[string]interface{} {
	v := map[string]interface{}{
		"T":          c.T,
		"P":          c.P,
		"Volume":     c.Volume,
		"Qdot":       c.Qdot,
		"Tc":         c.Tc,
		"Kappa":      c.Kappa,
		"NumActive":  0.,
		"DeltaTChem": c.TimeStep.DeltaTChem,

		"TabulationResult": float64(c.TabulationResult),
	}
	if c.active != nil {
		v["NumActive"] = float64(c.active.NumActive())
	}
	for i, s := range cm.mech.Species {
		v[s.Name] = c.Y[i]
		rr := 0.
		if i < len(c.RR) {
			rr = c.RR[i]
		}
		v["RR_"+s.Name] = rr
	}
	return v
}

// Results evaluates the output variables of o for every cell.
func (cm *ChemistryModel) Results(o *Outputter) (map[string][]float64, error) {
	if err := cm.CheckOutputVars(o); err != nil {
		return nil, err
	}
	out := make(map[string][]float64, len(o.expressions))
	for name := range o.expressions {
		out[name] = make([]float64, len(cm.Cells))
	}
	names := o.Names()
	for i, c := range cm.Cells {
		c.Lock()
		model := cm.cellVariables(c)
		c.Unlock()
		done := make(map[string]float64, len(names))
		for _, name := range names {
			v, err := o.evaluate(name, model, done)
			if err != nil {
				return nil, fmt.Errorf("tdac: cell %d: %v", c.Index, err)
			}
			out[name][i] = v
		}
	}
	return out, nil
}

// evaluate calculates output variable name, first evaluating any
// other output variables it refers to. Results are stored in done.
func (o *Outputter) evaluate(name string, model map[string]interface{}, done map[string]float64) (float64, error) {
	if v, ok := done[name]; ok {
		return v, nil
	}
	e := o.expressions[name]
	params := make(map[string]interface{}, len(e.Vars()))
	for _, dep := range e.Vars() {
		if _, isOutput := o.expressions[dep]; isOutput && dep != name {
			v, err := o.evaluate(dep, model, done)
			if err != nil {
				return 0, err
			}
			params[dep] = v
		} else if v, ok := model[dep]; ok {
			params[dep] = v
		}
	}
	r, err := e.Evaluate(params)
	if err != nil {
		return 0, fmt.Errorf("evaluating %s: %v", name, err)
	}
	var v float64
	switch r := r.(type) {
	case float64:
		v = r
	case bool:
		if r {
			v = 1
		}
	default:
		return 0, fmt.Errorf("evaluating %s: result %v is not a number", name, r)
	}
	done[name] = v
	return v, nil
}
