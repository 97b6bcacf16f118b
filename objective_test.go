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
	"math"
	"testing"
	"time"

	"github.com/Knetic/govaluate"
)

func TestVariableName(t *testing.T) {
	for _, c := range []struct {
		unit, port, field, want string
	}{
		{"mix", "outlet", "flow", "mix_outlet_flow"},
		{"hot-feed", "setpoint", "flow", "hot_feed_setpoint_flow"},
		{"R1", "outlet", "T", "R1_outlet_T"},
		{"tank 2", "level", "h", "tank_2_level_h"},
	} {
		if got := VariableName(c.unit, c.port, c.field); got != c.want {
			t.Errorf("have %s, want %s", got, c.want)
		}
	}
}

func TestObjectiveOptions(t *testing.T) {
	o := DefaultObjective(30)
	for _, opt := range []ObjectiveOption{
		ProductionOf("mix", "outlet", "flow"),
		Minimizing("mix_outlet_T"),
		PenaltyWeight(10),
		Tolerance(1e-6, 5),
		Budget(10, 0, time.Second),
		WithFunctions(map[string]govaluate.ExpressionFunction{
			"double": func(arg ...interface{}) (interface{}, error) { return 2 * arg[0].(float64), nil },
		}),
	} {
		opt(&o)
	}
	if o.Production != "mix.outlet.flow" || o.Expression != "mix_outlet_T" {
		t.Errorf("production %q, expression %q", o.Production, o.Expression)
	}
	if o.PenaltyWeight != 10 || o.Tolerance != 1e-6 || o.Patience != 5 {
		t.Errorf("%+v", o)
	}
	if o.MaxIterations != 10 || o.MaxEvaluations != DefaultObjective(0).MaxEvaluations || o.MaxDuration != time.Second {
		t.Errorf("budget %d %d %v", o.MaxIterations, o.MaxEvaluations, o.MaxDuration)
	}
	if _, ok := o.Functions["double"]; !ok {
		t.Error("function not added")
	}
	d := Objective{Target: 1}.withDefaults()
	if d.PenaltyWeight != 1e3 || d.Patience == 0 || d.CacheSize == 0 {
		t.Errorf("defaults %+v", d)
	}
}

func TestDefaultFunctions(t *testing.T) {
	for _, c := range []struct {
		expr string
		want float64
	}{
		{"sqrt(16) + abs(-2)", 6},
		{"max(1, 5, 3) - min(4, 2)", 3},
		{"sum(1, 2, 3.5)", 6.5},
		{"log(exp(2))", 2},
	} {
		e, err := govaluate.NewEvaluableExpressionWithFunctions(c.expr, defaultFunctions())
		if err != nil {
			t.Fatal(err)
		}
		v, err := e.Evaluate(nil)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(v.(float64)-c.want) > 1e-12 {
			t.Errorf("%s: have %v, want %g", c.expr, v, c.want)
		}
	}
	e, err := govaluate.NewEvaluableExpressionWithFunctions("sqrt(1, 2)", defaultFunctions())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Evaluate(nil); err == nil {
		t.Error("wrong argument count not detected")
	}
}

func TestObjectiveValue(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, "src", source(12))
	c, err := newConfiguration("p", NelderMead, g, nil, nil, DefaultResolveOptions())
	if err != nil {
		t.Fatal(err)
	}
	r, err := c.Evaluate(nil)
	if err != nil {
		t.Fatal(err)
	}
	o, err := c.bind(Objective{Target: 10, Production: "src.out.v", Expression: "2 * src_out_v + production"})
	if err != nil {
		t.Fatal(err)
	}
	f, err := o.value(r, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := 0.2*0.2 + 2*12 + 12
	if math.Abs(f-want) > 1e-12 {
		t.Errorf("have %g, want %g", f, want)
	}
	if _, err := c.bind(Objective{Production: "src.out"}); err == nil {
		t.Error("malformed production accepted")
	}
	if _, err := c.bind(Objective{Production: "src.out.w"}); err == nil {
		t.Error("unknown field accepted")
	}
}
