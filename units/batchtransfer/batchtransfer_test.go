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

package batchtransfer

import (
	"errors"
	"math"
	"testing"

	"github.com/spatialmodel/sproc"
	"github.com/spatialmodel/sproc/internal/fluid"
)

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func TestSteadyState(t *testing.T) {
	p, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	y, err := p.SteadyState([]float64{1, 0, 1})
	if err != nil {
		t.Fatal(err)
	}
	if different(y[iFlow], 0.0085, 1e-12) {
		t.Errorf("flow: have %g, want 0.0085", y[iFlow])
	}
	if different(y[iTransferTime], 1/0.0085, 1e-12) {
		t.Errorf("transfer time: have %g, want %g", y[iTransferTime], 1/0.0085)
	}
	if different(p.EmptyingTime(), y[iTransferTime], 1e-12) {
		t.Errorf("emptying time %g", p.EmptyingTime())
	}
}

func TestHeadLimited(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxHead = 2
	p, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	y, err := p.SteadyState([]float64{0.5, 0.5, 1})
	if err != nil {
		t.Fatal(err)
	}
	friction, re := fluid.PipeHeadLoss(0.0085, cfg.PipeLength, cfg.PipeDiam, cfg.Density, cfg.Viscosity)
	if re < fluid.LaminarLimit {
		t.Fatalf("expected turbulent flow, Re = %g", re)
	}
	want := 0.0085 * 2 / friction
	if different(y[iFlow], want, 1e-12) {
		t.Errorf("flow: have %g, want %g", y[iFlow], want)
	}
}

func TestStopped(t *testing.T) {
	p, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	y, err := p.SteadyState([]float64{1, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if y[iFlow] != 0 || y[iTransferTime] != 0 {
		t.Errorf("stopped pump: %v", y)
	}
	y, err = p.SteadyState([]float64{0, 0, 1})
	if err != nil {
		t.Fatal(err)
	}
	if y[iFlow] <= 0 || y[iTransferTime] != 0 {
		t.Errorf("empty source: %v", y)
	}
}

func TestDynamics(t *testing.T) {
	p, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	u := []float64{1, 0, 1}
	dx, err := p.Dynamics(0, []float64{0, 0.5}, u)
	if err != nil {
		t.Fatal(err)
	}
	qss, _ := p.flow(0.5, 0, 1)
	if different(dx[0], qss/responseTime, 1e-12) {
		t.Errorf("flow response: have %g, want %g", dx[0], qss/responseTime)
	}
	if dx[1] != 0 {
		t.Errorf("no flow yet, level should hold: %g", dx[1])
	}

	dx, err = p.Dynamics(0, []float64{qss, 0.5}, u)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(dx[0]) > 1e-15 {
		t.Errorf("flow at steady state should not change: %g", dx[0])
	}
	if different(dx[1], -qss, 1e-12) {
		t.Errorf("level: have %g, want %g", dx[1], -qss)
	}

	dx, err = p.Dynamics(0, []float64{qss, 0}, u)
	if err != nil {
		t.Fatal(err)
	}
	if dx[1] != 0 {
		t.Errorf("empty tank should not drain further: %g", dx[1])
	}
}

func TestSimulateDrain(t *testing.T) {
	p, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	in := sproc.DefaultIntegrator()
	tr, err := sproc.Simulate(p, []float64{0, 1}, 0, 60, sproc.ConstantInput{1, 0, 1}, in)
	if err != nil {
		t.Fatal(err)
	}
	if !tr.Complete {
		t.Fatalf("incomplete: %s", tr.Reason)
	}
	_, x := tr.Final()
	if x[1] >= 1 || x[1] <= 0 {
		t.Errorf("level after 60 s: %g", x[1])
	}
}

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Efficiency = 1.5
	_, err := New(cfg)
	if !errors.Is(err, sproc.ErrParameterRange) {
		t.Errorf("expected a parameter range error, got %v", err)
	}
	p, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	md := p.Describe()
	if err := md.Validate(); err != nil {
		t.Error(err)
	}
	if md.Parameters["pump_capacity"].Units != sproc.Units(sproc.Meter3PerSecond) {
		t.Errorf("units: %s", md.Parameters["pump_capacity"].Units)
	}
	if _, err := p.SteadyState([]float64{1, 0}); !errors.Is(err, sproc.ErrShapeMismatch) {
		t.Errorf("expected shape mismatch, got %v", err)
	}
}
