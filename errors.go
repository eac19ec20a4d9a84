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

import "fmt"

// NumericalDomainError is returned when a thermochemical state or a rate
// constant lies outside of its physically valid range, for example a
// non-positive temperature or mass fractions that do not sum to one.
type NumericalDomainError struct {
	Reason string
	T, P   float64
	Y      []float64
}

func (e *NumericalDomainError) Error() string {
	return fmt.Sprintf("tdac: state outside of valid domain: %s (T=%g K, p=%g Pa)", e.Reason, e.T, e.P)
}

func domainError(s *ChemicalState, format string, args ...interface{}) *NumericalDomainError {
	e := &NumericalDomainError{Reason: fmt.Sprintf(format, args...)}
	if s != nil {
		e.T, e.P = s.T, s.P
		e.Y = append([]float64(nil), s.Y...)
	}
	return e
}

// IntegrationDivergence is returned when the stiff integrator exhausts its
// sub-step budget before covering the requested interval.
type IntegrationDivergence struct {
	Steps    int     // sub-step attempts made
	Time     float64 // time reached within the interval [s]
	Interval float64 // requested interval [s]
	Step     float64 // last attempted sub-step size [s]
	Err      float64 // last scaled error estimate
}

func (e *IntegrationDivergence) Error() string {
	return fmt.Sprintf("tdac: integration diverged after %d sub-steps at t=%g of %g s (h=%g, err=%g)",
		e.Steps, e.Time, e.Interval, e.Step, e.Err)
}

// ReductionDegenerate indicates that mechanism reduction produced an empty
// active set. Because the inert species is always active this can only
// happen when an invariant has been violated, so it is raised as a panic
// rather than returned.
type ReductionDegenerate struct {
	NumSpecies int
}

func (e *ReductionDegenerate) Error() string {
	return fmt.Sprintf("tdac: mechanism reduction produced an empty active set (of %d species)", e.NumSpecies)
}

// CellError identifies the cell and state at which a fatal chemistry error
// occurred.
type CellError struct {
	Cell  int
	T, P  float64
	Y     []float64
	Phase string
	Err   error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("tdac: cell %d (T=%g K, p=%g Pa) failed during %s: %v", e.Cell, e.T, e.P, e.Phase, e.Err)
}

func (e *CellError) Unwrap() error { return e.Err }
