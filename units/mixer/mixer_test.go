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

package mixer

import (
	"errors"
	"math"
	"testing"

	"github.com/kr/pretty"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spatialmodel/sproc"
)

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func newMixer(t *testing.T, cfg Config) *Mixer {
	m, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestHotColdBlend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PressureDrop = 5000
	m := newMixer(t, cfg)
	y, err := m.SteadyState([]float64{15, 363.15, 3e5, 10, 278.15, 3.1e5})
	if err != nil {
		t.Fatal(err)
	}
	if different(y[sproc.FlowField], 25, 1e-12) {
		t.Errorf("flow: have %g, want 25", y[sproc.FlowField])
	}
	// Weighted inlet temperature is 329.15 K.
	want := 298.15 + 0.95*(329.15-298.15)
	if different(y[sproc.TemperatureField], want, 1e-10) {
		t.Errorf("temperature: have %g, want %g", y[sproc.TemperatureField], want)
	}
	if y[sproc.TemperatureField] <= 278.15 || y[sproc.TemperatureField] >= 363.15 {
		t.Errorf("temperature %g is not between the inlet temperatures", y[sproc.TemperatureField])
	}
	if different(y[sproc.PressureField], 295000, 1e-12) {
		t.Errorf("pressure: have %g, want 295000", y[sproc.PressureField])
	}
}

func TestHeatLoss(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HeatTransferCoeff = 100
	cfg.Volume = 2
	cfg.PressureDrop = 5000
	m := newMixer(t, cfg)
	y, err := m.SteadyState([]float64{10, 353.15, 2e5, 10, 273.15, 2e5})
	if err != nil {
		t.Fatal(err)
	}
	blend := 298.15 + 0.95*(313.15-298.15)
	want := 298.15 + (blend-298.15)*20*4186/(20*4186+100)
	if different(y[sproc.TemperatureField], want, 1e-10) {
		t.Errorf("temperature: have %g, want %g", y[sproc.TemperatureField], want)
	}
	if y[sproc.TemperatureField] >= blend {
		t.Errorf("heat loss should cool the outlet: %g >= %g", y[sproc.TemperatureField], blend)
	}
	if y[sproc.PressureField] != 195000 {
		t.Errorf("pressure: have %g, want 195000", y[sproc.PressureField])
	}
}

func TestHeatLossLowFlow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HeatTransferCoeff = 1000
	m := newMixer(t, cfg)
	for _, flow := range []float64{1e-9, 1e-3, 0.01, 0.1} {
		y, err := m.SteadyState([]float64{flow, 363.15, 3e5, flow, 350, 3e5})
		if err != nil {
			t.Fatal(err)
		}
		// Both inlets are hotter than ambient, so the outlet must lie
		// between ambient and the blend temperature.
		blend := 298.15 + 0.95*((363.15+350)/2-298.15)
		if tt := y[sproc.TemperatureField]; tt < cfg.AmbientTemp || tt > blend {
			t.Errorf("flow %g: temperature %g outside [%g, %g]", flow, tt, cfg.AmbientTemp, blend)
		}
	}

	// Inlets colder than ambient warm toward ambient without passing it.
	y, err := m.SteadyState([]float64{0.01, 280, 3e5, 0.01, 275, 3e5})
	if err != nil {
		t.Fatal(err)
	}
	if tt := y[sproc.TemperatureField]; tt > cfg.AmbientTemp || tt < 275 {
		t.Errorf("cold inlets: temperature %g outside [275, %g]", tt, cfg.AmbientTemp)
	}
}

func TestZeroFlow(t *testing.T) {
	m := newMixer(t, DefaultConfig())
	y, err := m.SteadyState([]float64{0, 350, 2e5, 0, 300, 1.5e5})
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0, 298.15, 1.5e5}
	if diff := pretty.Diff(y, want); len(diff) > 0 {
		t.Errorf("zero flow: %v", diff)
	}
}

func TestOnlyFlowingInletsSetPressure(t *testing.T) {
	m := newMixer(t, DefaultConfig())
	y, err := m.SteadyState([]float64{5, 300, 2e5, 0, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if y[sproc.PressureField] != 2e5 {
		t.Errorf("pressure: have %g, want 2e5", y[sproc.PressureField])
	}
}

func TestShapeMismatch(t *testing.T) {
	m := newMixer(t, DefaultConfig())
	_, err := m.SteadyState([]float64{15, 363.15, 3e5, 10, 278.15})
	var se *sproc.ShapeMismatchError
	if !errors.As(err, &se) {
		t.Fatalf("expected a shape mismatch, got %v", err)
	}
	if se.Want != 6 || se.Got != 5 {
		t.Errorf("want 6, got 5; have %+v", se)
	}
	if _, err := m.Dynamics(0, []float64{1}, make([]float64, 6)); !errors.Is(err, sproc.ErrShapeMismatch) {
		t.Errorf("dynamics state: %v", err)
	}
}

func TestParameterRange(t *testing.T) {
	for _, c := range []struct {
		param string
		cfg   func(*Config)
	}{
		{"mixing_efficiency", func(c *Config) { c.MixingEfficiency = 1.2 }},
		{"n_inlets", func(c *Config) { c.Inlets = 1 }},
		{"volume", func(c *Config) { c.Volume = 0 }},
		{"heat_transfer_coeff", func(c *Config) { c.HeatTransferCoeff = -1 }},
	} {
		cfg := DefaultConfig()
		c.cfg(&cfg)
		_, err := New(cfg)
		var pe *sproc.ParameterRangeError
		if !errors.As(err, &pe) {
			t.Errorf("%s: expected a parameter range error, got %v", c.param, err)
			continue
		}
		if pe.Parameter != c.param {
			t.Errorf("parameter: have %s, want %s", pe.Parameter, c.param)
		}
	}
}

func TestDynamics(t *testing.T) {
	m := newMixer(t, DefaultConfig())
	u := []float64{10, 350, 2e5, 5, 320, 2e5}
	mass := 1000.
	tMix := (10*350 + 5*320) / 15.
	x := []float64{mass, mass * 4186 * tMix}
	dx, err := m.Dynamics(0, x, u)
	if err != nil {
		t.Fatal(err)
	}
	if dx[0] != 0 {
		t.Errorf("level-controlled mass should not change: %g", dx[0])
	}
	if math.Abs(dx[1]) > 1e-6*x[1] {
		t.Errorf("contents at the mixed temperature should not gain energy: %g", dx[1])
	}

	// An empty mixer fills.
	dx, err = m.Dynamics(0, []float64{0, 0}, u)
	if err != nil {
		t.Fatal(err)
	}
	if dx[0] != 15 {
		t.Errorf("fill rate: have %g, want 15", dx[0])
	}
	if different(dx[1], (10*350+5*320)*4186, 1e-12) {
		t.Errorf("energy fill rate: %g", dx[1])
	}
}

func TestDescribe(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Inlets = 3
	m := newMixer(t, cfg)
	md := m.Describe()
	if err := md.Validate(); err != nil {
		t.Fatal(err)
	}
	want := []string{"ambient_temp", "heat_transfer_coeff", "mixing_efficiency", "n_inlets", "pressure_drop", "volume"}
	if diff := pretty.Diff(md.ParameterNames(), want); len(diff) > 0 {
		t.Errorf("parameters: %v", diff)
	}
	if md.Parameters["n_inlets"].Value != 3 {
		t.Errorf("n_inlets: %g", md.Parameters["n_inlets"].Value)
	}
	if len(md.Inputs) != 9 || len(md.Outputs) != 3 {
		t.Errorf("inputs %d, outputs %d", len(md.Inputs), len(md.Outputs))
	}
	if len(md.Applications) != 8 || len(md.Limitations) != 6 {
		t.Errorf("applications %d, limitations %d", len(md.Applications), len(md.Limitations))
	}
	if md.Map()["category"] != "unit/mixer" {
		t.Errorf("category: %v", md.Map()["category"])
	}
}

func TestProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	ideal := DefaultConfig()
	ideal.MixingEfficiency = 1
	mIdeal := newMixer(t, ideal)
	mReal := newMixer(t, DefaultConfig())

	properties.Property("mass is conserved", prop.ForAll(
		func(f1, f2, t1, t2 float64) bool {
			y, err := mReal.SteadyState([]float64{f1, t1, 2e5, f2, t2, 2e5})
			if err != nil {
				return false
			}
			return !different(y[sproc.FlowField], f1+f2, 1e-12)
		},
		gen.Float64Range(0.01, 100),
		gen.Float64Range(0.01, 100),
		gen.Float64Range(273.15, 450),
		gen.Float64Range(273.15, 450),
	))

	properties.Property("ideal mixing conserves energy", prop.ForAll(
		func(f1, f2, t1, t2 float64) bool {
			y, err := mIdeal.SteadyState([]float64{f1, t1, 2e5, f2, t2, 2e5})
			if err != nil {
				return false
			}
			in := f1*t1 + f2*t2
			out := y[sproc.FlowField] * y[sproc.TemperatureField]
			return !different(in, out, 1e-10)
		},
		gen.Float64Range(0.01, 100),
		gen.Float64Range(0.01, 100),
		gen.Float64Range(273.15, 450),
		gen.Float64Range(273.15, 450),
	))

	// The ambient temperature lies between the inlet temperatures, so
	// blending toward it keeps the outlet within the inlet range.
	properties.Property("outlet temperature is bounded by the inlets", prop.ForAll(
		func(f1, f2, cold, hot float64) bool {
			y, err := mReal.SteadyState([]float64{f1, cold, 2e5, f2, hot, 2e5})
			if err != nil {
				return false
			}
			tOut := y[sproc.TemperatureField]
			return tOut >= cold-1e-9 && tOut <= hot+1e-9
		},
		gen.Float64Range(0.01, 100),
		gen.Float64Range(0.01, 100),
		gen.Float64Range(273.15, 298.15),
		gen.Float64Range(298.15, 450),
	))

	properties.Property("steady state is idempotent", prop.ForAll(
		func(f1, f2, t1, t2 float64) bool {
			u := []float64{f1, t1, 2.5e5, f2, t2, 2e5}
			a, err := mReal.SteadyState(u)
			if err != nil {
				return false
			}
			b, err := mReal.SteadyState(u)
			if err != nil {
				return false
			}
			for i := range a {
				if math.Float64bits(a[i]) != math.Float64bits(b[i]) {
					return false
				}
			}
			return true
		},
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 100),
		gen.Float64Range(273.15, 450),
		gen.Float64Range(273.15, 450),
	))

	properties.TestingRun(t)
}
