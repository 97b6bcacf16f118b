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

package splitter

import (
	"math"
	"testing"

	"github.com/kr/pretty"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spatialmodel/sproc"
)

func TestFractions(t *testing.T) {
	for _, c := range []struct {
		in, want []float64
	}{
		{[]float64{0.3}, []float64{0.3, 0.7}},
		{[]float64{1.5}, []float64{1, 0}},
		{[]float64{-0.2}, []float64{0, 1}},
		{[]float64{0.75, 0.75}, []float64{0.5, 0.5, 0}},
		{[]float64{math.NaN(), 0.25}, []float64{0, 0.25, 0.75}},
	} {
		if diff := pretty.Diff(Fractions(c.in), c.want); len(diff) > 0 {
			t.Errorf("%v: %v", c.in, diff)
		}
	}
}

func TestSplit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Outlets = 3
	cfg.PressureDrop = 1000
	s, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	sh := s.Shape()
	if sh.InputLen() != 5 || sh.OutputLen() != 9 {
		t.Fatalf("shape: %d inputs, %d outputs", sh.InputLen(), sh.OutputLen())
	}
	y, err := s.SteadyState([]float64{20, 310, 2e5, 0.5, 0.25})
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{10, 310, 199000, 5, 310, 199000, 5, 310, 199000}
	if diff := pretty.Diff(y, want); len(diff) > 0 {
		t.Error(diff)
	}
	i, _ := sh.Input("fractions")
	if diff := pretty.Diff(sh.Inputs[i].Default, []float64{1. / 3, 1. / 3}); len(diff) > 0 {
		t.Errorf("default fractions: %v", diff)
	}
}

func TestMassConservation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Outlets = 3
	s, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)
	properties.Property("outlet flows sum to the inlet flow", prop.ForAll(
		func(flow, f1, f2 float64) bool {
			y, err := s.SteadyState([]float64{flow, 300, 2e5, f1, f2})
			if err != nil {
				return false
			}
			var sum float64
			for i := 0; i < 3; i++ {
				if y[i*sproc.StreamWidth] < 0 {
					return false
				}
				sum += y[i*sproc.StreamWidth]
			}
			return math.Abs(sum-flow) <= 1e-12*math.Max(flow, 1)
		},
		gen.Float64Range(0, 1000),
		gen.Float64Range(-0.5, 1.5),
		gen.Float64Range(-0.5, 1.5),
	))
	properties.TestingRun(t)
}
