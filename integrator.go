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

	"gonum.org/v1/gonum/mat"
)

// minStepFraction is the smallest allowed sub-step as a fraction of
// the requested interval.
const minStepFraction = 1e-14

// Integrator advances a chemical state over a time interval with a
// linearly-implicit Euler method. The local error of each sub-step is
// estimated by step doubling: a full step is compared with two half
// steps, and the step is halved until they agree to within the
// tolerances.
type Integrator struct {
	k *Kinetics

	RelTol      float64 // relative error tolerance
	AbsTol      float64 // absolute error tolerance
	MaxSubSteps int     // maximum number of sub-step attempts per call
}

// NewIntegrator returns an integrator that uses k to evaluate the
// chemistry.
func NewIntegrator(k *Kinetics, relTol, absTol float64, maxSubSteps int) *Integrator {
	return &Integrator{k: k, RelTol: relTol, AbsTol: absTol, MaxSubSteps: maxSubSteps}
}

// IntegrationResult describes a completed integration.
type IntegrationResult struct {
	Steps    int     // accepted sub-steps
	Rejected int     // rejected sub-step attempts
	NextStep float64 // recommended size of the next sub-step [s]
}

// integration holds the work arrays for one call to Integrate.
type integration struct {
	*Integrator
	a     *IndexMap
	T, ρ  float64
	y     []float64 // full-space mass fractions
	c, q  []float64
	f     []float64
	ident *mat.Dense
}

// Integrate advances s over the interval Δt at constant temperature,
// pressure and density ρ, using only the species and reactions that
// are active in a. h0 is the initial sub-step; if it is not positive,
// Δt is used. Inactive species are held constant, and after each
// accepted sub-step the inert species is set to balance the others
// and the mass fractions are renormalized. s is only modified if the
// integration succeeds.
func (in *Integrator) Integrate(s *ChemicalState, ρ float64, a *IndexMap, Δt, h0 float64) (IntegrationResult, error) {
	defer in.k.timers.Start(PhaseIntegration).Stop()

	var res IntegrationResult
	if math.IsNaN(Δt) || math.IsInf(Δt, 0) || Δt < 0 {
		return res, domainError(s, "invalid time interval %g", Δt)
	}
	if err := checkInputs(s.Y, s.T, ρ); err != nil {
		return res, err
	}
	if Δt == 0 {
		res.NextStep = h0
		return res, nil
	}
	w := &integration{
		Integrator: in,
		a:          a,
		T:          s.T,
		ρ:          ρ,
		y:          append([]float64(nil), s.Y...),
		c:          make([]float64, in.k.m.Len()),
		q:          make([]float64, len(in.k.m.Reactions)),
		f:          make([]float64, a.NumActive()),
		ident:      identity(a.NumActive()),
	}
	inert := in.k.m.InertIndex()
	balance(w.y, inert)
	ys := a.simplify(w.y)

	h := h0
	if !(h > 0) || h > Δt {
		h = Δt
	}
	t := 0.
	attempts := 0
	lastErr := 0.
	for t < Δt {
		if attempts >= in.MaxSubSteps || h < minStepFraction*Δt {
			return res, &IntegrationDivergence{Steps: attempts, Time: t, Interval: Δt, Step: h, Err: lastErr}
		}
		attempts++
		hs := math.Min(h, Δt-t)
		y2, errEst, err := w.doubleStep(ys, hs)
		if err != nil {
			return res, err
		}
		lastErr = errEst
		if errEst > 1 {
			res.Rejected++
			h = hs / 2
			continue
		}
		t += hs
		if Δt-t <= minStepFraction*Δt {
			t = Δt
		}
		a.scatter(y2, w.y)
		balance(w.y, inert)
		ys = a.simplify(w.y)
		res.Steps++
		factor := 5.
		if errEst > 0 {
			factor = math.Max(0.2, math.Min(5, 0.9/math.Sqrt(errEst)))
		}
		h = hs * factor
	}
	res.NextStep = h
	copy(s.Y, w.y)
	return res, nil
}

// doubleStep takes one step of size h and two steps of size h/2 from
// ys and returns the two half step result and the scaled error
// estimate.
// Failed linear solves and non-finite results are reported as an
// infinite error so that the step is retried with a smaller size.
func (w *integration) doubleStep(ys []float64, h float64) (y2 []float64, errEst float64, err error) {
	y1, ok, err := w.step(ys, h)
	if err != nil || !ok {
		return nil, math.Inf(1), err
	}
	yh, ok, err := w.step(ys, h/2)
	if err != nil || !ok {
		return nil, math.Inf(1), err
	}
	y2, ok, err = w.step(yh, h/2)
	if err != nil || !ok {
		return nil, math.Inf(1), err
	}
	for i := range y2 {
		if math.IsNaN(y2[i]) || math.IsInf(y2[i], 0) {
			return nil, math.Inf(1), nil
		}
		sc := w.AbsTol + w.RelTol*math.Max(math.Abs(ys[i]), math.Abs(y2[i]))
		errEst = math.Max(errEst, math.Abs(y2[i]-y1[i])/sc)
	}
	return y2, errEst, nil
}

// step solves (I - h J) Δy = h f(ys) and returns ys + Δy. ok is false
// if the linear system is singular. Errors are only returned for
// states that the kinetics cannot evaluate.
func (w *integration) step(ys []float64, h float64) (out []float64, ok bool, err error) {
	full := append([]float64(nil), w.y...)
	w.a.scatter(ys, full)
	for i, v := range full {
		if v < 0 {
			full[i] = 0
		}
	}
	sp := w.k.timers.Start(PhaseDerivativeEval)
	err = w.k.derivative(full, w.T, w.ρ, w.a, w.c, w.q, w.f)
	sp.Stop()
	if err != nil {
		return nil, false, err
	}
	sp = w.k.timers.Start(PhaseJacobianEval)
	jac, err := w.k.jacobian(full, w.T, w.ρ, w.a)
	sp.Stop()
	if err != nil {
		return nil, false, err
	}
	n := len(ys)
	var lhs mat.Dense
	lhs.Scale(-h, jac)
	lhs.Add(w.ident, &lhs)
	rhs := mat.NewVecDense(n, nil)
	for i, v := range w.f {
		rhs.SetVec(i, h*v)
	}
	var dy mat.VecDense
	if err := dy.SolveVec(&lhs, rhs); err != nil {
		if _, illConditioned := err.(mat.Condition); !illConditioned {
			return nil, false, nil
		}
	}
	out = make([]float64, n)
	for i := range out {
		out[i] = ys[i] + dy.AtVec(i)
	}
	return out, true, nil
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

func (r IntegrationResult) String() string {
	return fmt.Sprintf("%d steps (%d rejected), next step %g s", r.Steps, r.Rejected, r.NextStep)
}
