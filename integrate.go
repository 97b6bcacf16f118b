/*
Copyright © 2025 the sproc authors.
This file is part of sproc.

sproc is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

sproc is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with sproc.  If not, see <http://www.gnu.org/licenses/>.
*/

package sproc

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// DerivFunc returns dx/dt at time t for state x and input u.
type DerivFunc func(t float64, x, u []float64) ([]float64, error)

// InputSchedule is a piecewise-constant input signal.
type InputSchedule interface {
	// At returns the input in effect at time t.
	At(t float64) []float64

	// Breakpoints returns, in ascending order, the times strictly
	// between t0 and t1 at which the input changes.
	Breakpoints(t0, t1 float64) []float64
}

// ConstantInput is an input that never changes.
type ConstantInput []float64

// At implements InputSchedule.
func (c ConstantInput) At(float64) []float64 { return c }

// Breakpoints implements InputSchedule.
func (c ConstantInput) Breakpoints(_, _ float64) []float64 { return nil }

// StepInput is an input that takes Values[i] from Times[i] until
// Times[i+1]. Before Times[0] the input is Values[0]. Times must be
// ascending.
type StepInput struct {
	Times  []float64
	Values [][]float64
}

// At implements InputSchedule.
func (s StepInput) At(t float64) []float64 {
	i := sort.Search(len(s.Times), func(i int) bool { return s.Times[i] > t }) - 1
	if i < 0 {
		i = 0
	}
	return s.Values[i]
}

// Breakpoints implements InputSchedule.
func (s StepInput) Breakpoints(t0, t1 float64) []float64 {
	var b []float64
	for _, t := range s.Times {
		if t > t0 && t < t1 {
			b = append(b, t)
		}
	}
	return b
}

// Integrator integrates ordinary differential equations with the
// Dormand-Prince 5(4) embedded Runge-Kutta method and adaptive step
// size control. Zero fields take default values.
type Integrator struct {
	RelTol, AbsTol float64

	// InitialStep, MinStep and MaxStep bound the step size. They
	// default to 1%, 1e-12 and 100% of the integration interval.
	InitialStep, MinStep, MaxStep float64

	// MaxSteps is the maximum number of accepted steps.
	MaxSteps int
}

// DefaultIntegrator returns an integrator with default tolerances.
func DefaultIntegrator() Integrator {
	return Integrator{RelTol: 1e-6, AbsTol: 1e-9, MaxSteps: 100000}
}

func (in Integrator) withDefaults(span float64) Integrator {
	d := DefaultIntegrator()
	if in.RelTol <= 0 {
		in.RelTol = d.RelTol
	}
	if in.AbsTol <= 0 {
		in.AbsTol = d.AbsTol
	}
	if in.MaxSteps <= 0 {
		in.MaxSteps = d.MaxSteps
	}
	if in.MaxStep <= 0 {
		in.MaxStep = span
	}
	if in.MinStep <= 0 {
		in.MinStep = span * 1e-12
	}
	if in.InitialStep <= 0 {
		in.InitialStep = span / 100
	}
	in.InitialStep = math.Min(math.Max(in.InitialStep, in.MinStep), in.MaxStep)
	return in
}

// Tighter returns a copy of the integrator with tolerances a factor of
// ten smaller and the initial and maximum steps halved.
func (in Integrator) Tighter() Integrator {
	in.RelTol /= 10
	in.AbsTol /= 10
	in.InitialStep /= 2
	in.MaxStep /= 2
	in.MaxSteps *= 2
	return in
}

// Trajectory is the result of an integration.
type Trajectory struct {
	// Times and States hold the initial state and the state after each
	// accepted step.
	Times  []float64
	States [][]float64

	Steps       int // accepted steps
	Rejected    int // rejected steps
	Evaluations int // derivative evaluations

	// Complete is false if integration stopped before the end time
	// because the step limit was reached or the step size fell below
	// its minimum. Reason says which.
	Complete bool
	Reason   string
}

// Final returns the last time and state of the trajectory.
func (tr *Trajectory) Final() (float64, []float64) {
	i := len(tr.Times) - 1
	return tr.Times[i], tr.States[i]
}

// Interpolate returns the state at time t by linear interpolation
// between the recorded samples. Times outside of the trajectory return
// the nearest end point.
func (tr *Trajectory) Interpolate(t float64) []float64 {
	i := sort.SearchFloat64s(tr.Times, t)
	switch {
	case i == 0:
		return append([]float64(nil), tr.States[0]...)
	case i >= len(tr.Times):
		return append([]float64(nil), tr.States[len(tr.States)-1]...)
	}
	t0, t1 := tr.Times[i-1], tr.Times[i]
	w := (t - t0) / (t1 - t0)
	o := make([]float64, len(tr.States[i]))
	for j := range o {
		o[j] = tr.States[i-1][j]*(1-w) + tr.States[i][j]*w
	}
	return o
}

// Dormand-Prince 5(4) coefficients.
var (
	dpC = [7]float64{0, 1. / 5, 3. / 10, 4. / 5, 8. / 9, 1, 1}
	dpA = [7][6]float64{
		{},
		{1. / 5},
		{3. / 40, 9. / 40},
		{44. / 45, -56. / 15, 32. / 9},
		{19372. / 6561, -25360. / 2187, 64448. / 6561, -212. / 729},
		{9017. / 3168, -355. / 33, 46732. / 5247, 49. / 176, -5103. / 18656},
		{35. / 384, 0, 500. / 1113, 125. / 192, -2187. / 6784, 11. / 84},
	}
	// dpE is the difference between the fifth and fourth order weights.
	dpE = [7]float64{71. / 57600, 0, -71. / 16695, 71. / 1920, -17253. / 339200, 22. / 525, -1. / 40}
)

// Step size control.
const (
	safety    = 0.9
	minFactor = 0.2
	maxFactor = 5.0
)

// Integrate integrates f from t0 to t1 starting at x0, with the input
// given by u. Steps never cross a breakpoint of u. A non-finite
// derivative or state results in an *IntegrationFailure. Running out of
// steps, or needing a step smaller than MinStep, is not an error: the
// partial trajectory is returned with Complete set to false.
func (in Integrator) Integrate(f DerivFunc, x0 []float64, t0, t1 float64, u InputSchedule) (*Trajectory, error) {
	if !(t1 >= t0) {
		return nil, fmt.Errorf("sproc: integration end time %g is before start time %g", t1, t0)
	}
	if !finite(x0) {
		return nil, &IntegrationFailure{Time: t0, Reason: "non-finite initial state"}
	}
	if u == nil {
		u = ConstantInput(nil)
	}
	tr := &Trajectory{
		Times:  []float64{t0},
		States: [][]float64{append([]float64(nil), x0...)},
	}
	if t1 == t0 {
		tr.Complete = true
		return tr, nil
	}
	in = in.withDefaults(t1 - t0)

	edges := append([]float64{t0}, u.Breakpoints(t0, t1)...)
	edges = append(edges, t1)
	x := append([]float64(nil), x0...)
	h := in.InitialStep
	for i := 0; i+1 < len(edges); i++ {
		a, b := edges[i], edges[i+1]
		if b <= a {
			continue
		}
		var done bool
		var err error
		x, h, done, err = in.segment(f, tr, x, a, b, u.At(a), h)
		if err != nil {
			return nil, err
		}
		if !done {
			return tr, nil
		}
	}
	tr.Complete = true
	return tr, nil
}

// segment integrates from t to tEnd with constant input u. It returns
// the final state, the next step size and whether tEnd was reached.
func (in Integrator) segment(f DerivFunc, tr *Trajectory, x []float64, t, tEnd float64, u []float64, h float64) ([]float64, float64, bool, error) {
	n := len(x)
	var k [7][]float64
	var err error
	k[0], err = in.deriv(f, tr, t, x, u)
	if err != nil {
		return nil, 0, false, err
	}
	if !finite(k[0]) {
		return nil, 0, false, &IntegrationFailure{Time: t, Step: tr.Steps,
			State: append([]float64(nil), x...), Reason: "non-finite derivative"}
	}
	xs := make([]float64, n)
	for t < tEnd {
		if tr.Steps >= in.MaxSteps {
			tr.Reason = "step limit reached"
			return x, h, false, nil
		}
		last := false
		if t+h >= tEnd {
			h = tEnd - t
			last = true
		}

		ok := true
		for s := 1; s < 7; s++ {
			copy(xs, x)
			for j := 0; j < s; j++ {
				if dpA[s][j] != 0 {
					floats.AddScaled(xs, h*dpA[s][j], k[j])
				}
			}
			k[s], err = in.deriv(f, tr, t+dpC[s]*h, xs, u)
			if err != nil {
				return nil, 0, false, err
			}
			if !finite(k[s]) {
				ok = false
				break
			}
		}
		// The last stage is evaluated at the fifth order solution.
		errNorm := math.Inf(1)
		if ok && finite(xs) {
			errNorm = in.errorNorm(x, xs, &k, h)
		}
		if math.IsNaN(errNorm) {
			errNorm = math.Inf(1)
		}

		if errNorm <= 1 {
			if last {
				t = tEnd
			} else {
				t += h
			}
			x = append([]float64(nil), xs...)
			k[0] = k[6]
			tr.Steps++
			tr.Times = append(tr.Times, t)
			tr.States = append(tr.States, x)
		} else {
			tr.Rejected++
			if h <= in.MinStep {
				if math.IsInf(errNorm, 1) {
					return nil, 0, false, &IntegrationFailure{Time: t, Step: tr.Steps,
						State: append([]float64(nil), x...), Reason: "non-finite state at minimum step size"}
				}
				tr.Reason = "step size fell below minimum"
				return x, h, false, nil
			}
		}
		h = math.Min(math.Max(h*stepFactor(errNorm), in.MinStep), in.MaxStep)
	}
	return x, h, true, nil
}

func stepFactor(errNorm float64) float64 {
	switch {
	case errNorm == 0:
		return maxFactor
	case math.IsInf(errNorm, 1):
		return minFactor
	}
	fac := safety * math.Pow(errNorm, -0.2)
	if errNorm > 1 {
		fac = math.Min(fac, 1)
	}
	return math.Min(math.Max(fac, minFactor), maxFactor)
}

func (in Integrator) errorNorm(x, xNew []float64, k *[7][]float64, h float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for i := range x {
		var e float64
		for s := 0; s < 7; s++ {
			e += dpE[s] * k[s][i]
		}
		e *= h
		sc := in.AbsTol + in.RelTol*math.Max(math.Abs(x[i]), math.Abs(xNew[i]))
		sum += (e / sc) * (e / sc)
	}
	return math.Sqrt(sum / float64(len(x)))
}

func (in Integrator) deriv(f DerivFunc, tr *Trajectory, t float64, x, u []float64) ([]float64, error) {
	tr.Evaluations++
	dx, err := f(t, x, u)
	if err != nil {
		return nil, fmt.Errorf("sproc: dynamics at t=%g: %w", t, err)
	}
	if len(dx) != len(x) {
		return nil, &ShapeMismatchError{Unit: "dynamics", Vector: "derivative", Want: len(x), Got: len(dx)}
	}
	return dx, nil
}

// Simulate integrates the dynamics of unit u from state x0 at t0 to t1,
// with inputs from schedule s.
func Simulate(u Unit, x0 []float64, t0, t1 float64, s InputSchedule, in Integrator) (*Trajectory, error) {
	shape := u.Shape()
	name := u.Describe().Type
	if err := CheckState(name, shape, x0); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("sproc: %s: no input schedule", name)
	}
	if err := CheckInput(name, shape, s.At(t0)); err != nil {
		return nil, err
	}
	for _, b := range s.Breakpoints(t0, t1) {
		if err := CheckInput(name, shape, s.At(b)); err != nil {
			return nil, err
		}
	}
	return in.Integrate(u.Dynamics, x0, t0, t1, s)
}

// SimulateWithRetry runs Simulate, retrying up to retries times with a
// tighter integrator when integration fails because of non-finite
// values. Other errors are returned immediately.
func SimulateWithRetry(log logrus.FieldLogger, u Unit, x0 []float64, t0, t1 float64, s InputSchedule, in Integrator, retries uint64) (*Trajectory, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	in = in.withDefaults(t1 - t0)
	var tr *Trajectory
	var fatal error
	attempt := 0
	err := backoff.RetryNotify(
		func() error {
			attempt++
			var err error
			tr, err = Simulate(u, x0, t0, t1, s, in)
			if err == nil {
				return nil
			}
			var fail *IntegrationFailure
			if !errors.As(err, &fail) {
				fatal = err
				return nil
			}
			in = in.Tighter()
			return err
		},
		backoff.WithMaxRetries(&backoff.ZeroBackOff{}, retries),
		func(err error, d time.Duration) {
			log.WithFields(logrus.Fields{
				"attempt": attempt,
				"rtol":    in.RelTol,
				"maxstep": in.MaxStep,
			}).Warnf("%v: retrying", err)
		},
	)
	if fatal != nil {
		return nil, fatal
	}
	if err != nil {
		return nil, err
	}
	return tr, nil
}
