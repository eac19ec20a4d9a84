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
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestCheck(t *testing.T) {
	for _, test := range []struct {
		name string
		s    *ChemicalState
		ok   bool
	}{
		{name: "valid", s: NewChemicalState([]float64{0.2, 0.8}, 300, 1e5), ok: true},
		{name: "within tolerance", s: NewChemicalState([]float64{-1e-5, 1.00001}, 300, 1e5), ok: true},
		{name: "negative temperature", s: NewChemicalState([]float64{0.2, 0.8}, -1, 1e5)},
		{name: "NaN temperature", s: NewChemicalState([]float64{0.2, 0.8}, math.NaN(), 1e5)},
		{name: "zero pressure", s: NewChemicalState([]float64{0.2, 0.8}, 300, 0)},
		{name: "infinite pressure", s: NewChemicalState([]float64{0.2, 0.8}, 300, math.Inf(1))},
		{name: "negative mass fraction", s: NewChemicalState([]float64{-0.1, 1.1}, 300, 1e5)},
		{name: "sum too large", s: NewChemicalState([]float64{0.5, 0.6}, 300, 1e5)},
		{name: "NaN mass fraction", s: NewChemicalState([]float64{math.NaN(), 1}, 300, 1e5)},
	} {
		t.Run(test.name, func(t *testing.T) {
			y := append([]float64(nil), test.s.Y...)
			err := test.s.Check(1e-4)
			if test.ok {
				if err != nil {
					t.Error(err)
				}
				return
			}
			var de *NumericalDomainError
			if !errors.As(err, &de) {
				t.Fatalf("got %v; want NumericalDomainError", err)
			}
			for i := range y {
				if fmt.Sprint(y[i]) != fmt.Sprint(test.s.Y[i]) {
					t.Errorf("state was modified")
				}
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	s := NewChemicalState([]float64{-1e-6, 0.5, 0.5001}, 300, 1e5)
	s.Normalize()
	if s.Y[0] != 0 {
		t.Errorf("negative mass fraction was not clamped: %g", s.Y[0])
	}
	if math.Abs(sum(s.Y)-1) > 1e-12 {
		t.Errorf("sum = %g", sum(s.Y))
	}
}

func TestBalance(t *testing.T) {
	y := []float64{0.3, -0.01, 0.2, 0.4}
	balance(y, 3)
	if y[1] != 0 || math.Abs(y[3]-0.5) > 1e-15 || math.Abs(sum(y)-1) > 1e-15 {
		t.Errorf("balance = %v", y)
	}
	y = []float64{0.7, 0.6, 0}
	balance(y, 2)
	if y[2] != 0 || math.Abs(sum(y)-1) > 1e-15 {
		t.Errorf("balance without room for the inert species = %v", y)
	}
}

func TestDensity(t *testing.T) {
	m := fuelInert(t)
	s := NewChemicalState([]float64{0.5, 0.5}, 300, 101325)
	want := 101325 * wN2 / (RGas * 300)
	if different(s.Density(m), want, 1e-12) {
		t.Errorf("density = %g; want %g", s.Density(m), want)
	}
	c := s.Concentrations(m, want)
	if different(c[0]+c[1], 101325/(RGas*300), 1e-12) {
		t.Errorf("total concentration = %g", c[0]+c[1])
	}
}

func TestCellError(t *testing.T) {
	de := domainError(NewChemicalState([]float64{1}, -1, 1e5), "non-positive temperature %g", -1.)
	err := error(&CellError{Cell: 7, T: -1, P: 1e5, Phase: "input", Err: de})
	var got *NumericalDomainError
	if !errors.As(err, &got) || got != de {
		t.Errorf("CellError does not unwrap to its cause")
	}
	want := "tdac: cell 7 (T=-1 K, p=100000 Pa) failed during input: tdac: state outside of valid domain: non-positive temperature -1 (T=-1 K, p=100000 Pa)"
	if err.Error() != want {
		t.Errorf("message = %q", err.Error())
	}
}
