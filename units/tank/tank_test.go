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

package tank

import (
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

func TestLevel(t *testing.T) {
	tk, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range []float64{0.5, 5, 20} {
		h := tk.Level(m)
		if different(tk.Outflow(h), m, 1e-12) {
			t.Errorf("outflow at the balancing level: have %g, want %g", tk.Outflow(h), m)
		}
	}
	if tk.Outflow(-1) != 0 || tk.Level(0) != 0 {
		t.Error("empty tank")
	}
}

func TestTankSteadyState(t *testing.T) {
	tk, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	y, err := tk.SteadyState([]float64{10, 320, 3e5})
	if err != nil {
		t.Fatal(err)
	}
	h := tk.Level(10)
	want := []float64{10, 320, fluid.Atmosphere + 1000*9.81*h, h}
	for i, w := range want {
		if different(y[i], w, 1e-12) {
			t.Errorf("output %d: have %g, want %g", i, y[i], w)
		}
	}
	md := tk.Describe()
	if md.ValidRanges[LevelRange].Contains(tk.Level(100)) {
		t.Error("100 kg/s should overflow the default tank")
	}
}

func TestTankDynamics(t *testing.T) {
	tk, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	u := []float64{10, 320, fluid.Atmosphere}
	h := tk.Level(10)
	dx, err := tk.Dynamics(0, []float64{h, 320}, u)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(dx[0]) > 1e-12 || dx[1] != 0 {
		t.Errorf("at steady state: %v", dx)
	}

	dx, err = tk.Dynamics(0, []float64{0, 300}, []float64{0, 320, fluid.Atmosphere})
	if err != nil {
		t.Fatal(err)
	}
	if dx[0] != 0 || dx[1] != 0 {
		t.Errorf("empty tank without inflow: %v", dx)
	}

	tr, err := sproc.Simulate(tk, []float64{0.1, 300}, 0, 3000, sproc.ConstantInput(u), sproc.DefaultIntegrator())
	if err != nil {
		t.Fatal(err)
	}
	_, x := tr.Final()
	if different(x[0], h, 1e-3) {
		t.Errorf("final level: have %g, want %g", x[0], h)
	}
	if different(x[1], 320, 1e-4) {
		t.Errorf("final temperature: have %g, want 320", x[1])
	}
}
