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
	"testing"

	"github.com/ctessum/unit"
	"github.com/kr/pretty"
)

func TestUnits(t *testing.T) {
	if s := Units(unit.Dimless); s != "dimensionless" {
		t.Errorf("dimensionless: %q", s)
	}
	if Units(Pascal) == Units(PascalSecond) {
		t.Error("pressure and viscosity print the same")
	}
	p := Param(2e5, Pascal, "pressure")
	q, err := p.Quantity(Pascal)
	if err != nil {
		t.Fatal(err)
	}
	if q.Value() != 2e5 {
		t.Errorf("quantity %v", q)
	}
	if _, err := p.Quantity(Kelvin); err == nil {
		t.Error("units mismatch not detected")
	}
}

func TestRangeViolation(t *testing.T) {
	r := Range{Min: 0, Max: 10}
	for _, c := range []struct {
		v, want float64
	}{
		{5, 0},
		{0, 0},
		{10, 0},
		{12, 0.2},
		{-5, 0.5},
		{math.NaN(), math.Inf(1)},
	} {
		if got := r.Violation(c.v); got != c.want {
			t.Errorf("Violation(%g): have %g, want %g", c.v, got, c.want)
		}
	}
	open := Range{Min: 0, Max: math.Inf(1)}
	if got := open.Violation(-2); got != 2 {
		t.Errorf("unbounded range: have %g, want 2", got)
	}
	if !r.Contains(10) || r.Contains(10.1) {
		t.Error("Contains")
	}
}

func TestMetadata(t *testing.T) {
	u := gain(2)
	m := u.Describe()
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
	m.Algorithms = map[string]string{"steady_state": "y = k u"}
	if err := m.Validate(); err == nil {
		t.Error("missing dynamics algorithm not detected")
	}
	m = &Metadata{
		Type:        "Test",
		Description: "d",
		Category:    "c",
		Parameters: map[string]Parameter{
			"b": Param(1, Meter3, "volume"),
			"a": Param(2, unit.Dimless, "count"),
		},
		ValidRanges: map[string]Range{"a": NewRange(0, 5, unit.Dimless)},
	}
	if diff := pretty.Diff(m.ParameterNames(), []string{"a", "b"}); len(diff) > 0 {
		t.Error(diff)
	}
	mp := m.Map()
	want := map[string]interface{}{
		"value":       1.,
		"units":       Units(Meter3),
		"description": "volume",
	}
	if diff := pretty.Diff(mp["parameters"].(map[string]interface{})["b"], want); len(diff) > 0 {
		t.Error(diff)
	}
	for _, k := range []string{"type", "description", "category", "algorithms", "parameters",
		"state_variables", "inputs", "outputs", "valid_ranges", "applications", "limitations"} {
		if _, ok := mp[k]; !ok {
			t.Errorf("map is missing %s", k)
		}
	}
}

func TestDescribePorts(t *testing.T) {
	ports := []Port{StreamPort("inlet", "Inlet stream", true)}
	d := DescribePorts(ports)
	if len(d) != 3 {
		t.Fatalf("%d descriptions", len(d))
	}
	if d["inlet.T"] != fmt.Sprintf("Inlet stream [%s]", Units(Kelvin)) {
		t.Errorf("inlet.T: %q", d["inlet.T"])
	}
	s := DescribeStates([]Field{{Name: "m", Units: "kg"}, {Name: "E", Units: "J"}}, "mass")
	if s["m"] != "mass [kg]" || s["E"] != "E [J]" {
		t.Errorf("states: %v", s)
	}
}

func TestShape(t *testing.T) {
	s := Shape{
		Inputs:  append(StreamPorts("in", "inlet", 2), ScalarPort("speed", "s", unit.Dimless, "", 1, "speed")),
		Outputs: []Port{StreamPort("out", "outlet", false)},
		States:  []Field{{Name: "x"}},
	}
	if s.InputLen() != 7 || s.OutputLen() != 3 || s.StateLen() != 1 {
		t.Errorf("lengths %d %d %d", s.InputLen(), s.OutputLen(), s.StateLen())
	}
	if i, ok := s.Input("speed"); !ok || s.InputOffset(i) != 6 {
		t.Errorf("speed port %d at %d", i, s.InputOffset(i))
	}
	if _, ok := s.Input("in3"); ok {
		t.Error("found a port that does not exist")
	}
	err := CheckInput("test", s, make([]float64, 6))
	var se *ShapeMismatchError
	if !errors.As(err, &se) || se.Want != 7 || se.Got != 6 || se.Vector != "input" {
		t.Errorf("CheckInput: %v", err)
	}
	if err := CheckState("test", s, []float64{1}); err != nil {
		t.Error(err)
	}
}

type testConfig struct {
	Volume float64 `param:"volume" validate:"gt=0"`
	Count  int     `param:"n_inlets" validate:"gte=2,lte=10"`
}

func TestValidateConfig(t *testing.T) {
	if err := ValidateConfig("Test", testConfig{Volume: 1, Count: 2}); err != nil {
		t.Fatal(err)
	}
	err := ValidateConfig("Test", testConfig{Volume: 1, Count: 11})
	var pe *ParameterRangeError
	if !errors.As(err, &pe) {
		t.Fatalf("expected a parameter range error, got %v", err)
	}
	want := &ParameterRangeError{Unit: "Test", Parameter: "n_inlets", Value: 11, Constraint: "lte=10"}
	if diff := pretty.Diff(pe, want); len(diff) > 0 {
		t.Error(diff)
	}
	if !errors.Is(err, ErrParameterRange) {
		t.Error("does not unwrap to ErrParameterRange")
	}
}

func TestErrorMessages(t *testing.T) {
	for _, c := range []struct {
		err  error
		kind error
		msg  string
	}{
		{&ShapeMismatchError{Unit: "Mixer", Vector: "input", Want: 6, Got: 5}, ErrShapeMismatch,
			"sproc: Mixer: input vector has length 5; want 6"},
		{&ParameterRangeError{Unit: "Mixer", Parameter: "volume", Value: 0., Constraint: "gte=0.001"}, ErrParameterRange,
			"sproc: Mixer: parameter volume=0 violates gte=0.001"},
		{topologyErrorf("mix", "no such unit"), ErrTopology,
			`sproc: topology: unit "mix": no such unit`},
		{&TopologyError{Reason: "the plant has no units"}, ErrTopology,
			"sproc: topology: the plant has no units"},
		{&IntegrationFailure{Time: 1.5, Step: 3, Reason: "non-finite derivative"}, ErrIntegrationFailure,
			"sproc: integration failed at t=1.5 (step 3): non-finite derivative"},
	} {
		if c.err.Error() != c.msg {
			t.Errorf("have %q, want %q", c.err.Error(), c.msg)
		}
		wrapped := fmt.Errorf("context: %w", c.err)
		if !errors.Is(wrapped, c.kind) {
			t.Errorf("%v does not unwrap to %v", c.err, c.kind)
		}
	}
}
