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

package sprocutil

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spatialmodel/sproc"
	"github.com/tealeg/xlsx"
)

func quietLogger() *logrus.Logger {
	log, _ := test.NewNullLogger()
	return log
}

func TestTypes(t *testing.T) {
	want := []string{"BatchTransferPumping", "CentrifugalPump", "Feed", "Heater", "Mixer", "Splitter", "Tank"}
	if strings.Join(Types(), ",") != strings.Join(want, ",") {
		t.Errorf("have %v, want %v", Types(), want)
	}
}

func TestNewUnit(t *testing.T) {
	u, err := NewUnit("Mixer", map[string]interface{}{"n_inlets": int64(3), "mixing_efficiency": "0.9"})
	if err != nil {
		t.Fatal(err)
	}
	if n := len(u.Shape().Inputs); n != 3 {
		t.Errorf("inlets: %d", n)
	}
	if _, err := NewUnit("Reactor", nil); err == nil || !strings.Contains(err.Error(), "Mixer") {
		t.Errorf("unknown type: %v", err)
	}
	if _, err := NewUnit("Mixer", map[string]interface{}{"inlets": 3}); err == nil || !strings.Contains(err.Error(), "inlets") {
		t.Errorf("unknown parameter: %v", err)
	}
	u, err = NewUnit("Splitter", map[string]interface{}{"n_outlets": "3", "pressure_drop": 200})
	if err != nil {
		t.Fatal(err)
	}
	if n := len(u.Shape().Outputs); n != 3 {
		t.Errorf("outlets: %d", n)
	}
	if _, err := NewUnit("Mixer", map[string]interface{}{"volume": "large"}); err == nil {
		t.Error("non-numeric parameter accepted")
	}
	for _, typ := range Types() {
		u, err := NewUnit(typ, nil)
		if err != nil {
			t.Errorf("%s: %v", typ, err)
			continue
		}
		if md := u.Describe(); md.Type != typ {
			t.Errorf("%s: described as %s", typ, md.Type)
		}
	}
}

func TestDescribe(t *testing.T) {
	var b bytes.Buffer
	if err := Describe("Mixer", &b); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"type: Mixer", "n_inlets:", "mixing_efficiency:", "limitations:"} {
		if !strings.Contains(b.String(), want) {
			t.Errorf("missing %q in\n%s", want, b.String())
		}
	}
	b.Reset()
	if err := Describe("", &b); err != nil {
		t.Fatal(err)
	}
	if got := strings.Fields(b.String()); len(got) != len(Types()) {
		t.Errorf("type list %v", got)
	}
	if err := Describe("Reactor", &b); err == nil {
		t.Error("unknown type described")
	}
}

func TestResolve(t *testing.T) {
	fs, err := LoadFlowsheet("testdata/recycle.toml")
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "recycle.xlsx")
	var b bytes.Buffer
	p, err := Resolve(fs, quietLogger(), &b, out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), "Resolution: resolved") {
		t.Errorf("summary:\n%s", b.String())
	}
	var mix []float64
	for _, pt := range p.Points() {
		if pt.Unit == "mix" {
			mix = pt.Outputs
		}
	}
	if len(mix) != sproc.StreamWidth || math.Abs(mix[sproc.FlowField]-20) > 1e-4 {
		t.Errorf("mixer outlet %v", mix)
	}

	f, err := xlsx.OpenFile(out)
	if err != nil {
		t.Fatal(err)
	}
	s, ok := f.Sheet["Units"]
	if !ok {
		t.Fatal("no Units sheet")
	}
	// header + feed (1 in, 3 out) + mix (6 in, 3 out) + split (4 in, 6 out)
	if len(s.Rows) != 1+4+9+10 {
		t.Errorf("%d rows", len(s.Rows))
	}
	if v := s.Rows[0].Cells[4].Value; v != "Value" {
		t.Errorf("header %q", v)
	}
}

func TestOptimize(t *testing.T) {
	fs, err := LoadFlowsheet("testdata/feeds.yaml")
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "feeds.xlsx")
	var b bytes.Buffer
	res, err := Optimize(fs, "", math.NaN(), quietLogger(), &b, out)
	if err != nil {
		t.Fatal(err)
	}
	if x := res.Variables()["b_setpoint_flow"]; math.Abs(x-20) > 1e-2 {
		t.Errorf("b setpoint: have %g, want 20", x)
	}
	if !strings.Contains(b.String(), "b_setpoint_flow") {
		t.Errorf("summary:\n%s", b.String())
	}
	f, err := xlsx.OpenFile(out)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"Optimization", "Variables", "History", "Units"} {
		if _, ok := f.Sheet[name]; !ok {
			t.Errorf("no %s sheet", name)
		}
	}
	row := f.Sheet["Variables"].Rows[1]
	if row.Cells[0].Value != "b_setpoint_flow" {
		t.Errorf("variable %q", row.Cells[0].Value)
	}
	if v, err := row.Cells[1].Float(); err != nil || math.Abs(v-20) > 1e-2 {
		t.Errorf("value %g, %v", v, err)
	}

	// The target flag overrides the flowsheet.
	res, err = Optimize(fs, sproc.BFGS, 25, quietLogger(), &b, "")
	if err != nil {
		t.Fatal(err)
	}
	if x := res.Variables()["b_setpoint_flow"]; math.Abs(x-15) > 1e-2 || res.Method != sproc.BFGS {
		t.Errorf("%s: b setpoint: have %g, want 15", res.Method, x)
	}
}

func TestSimulate(t *testing.T) {
	fs, err := LoadFlowsheet("testdata/heater.yml")
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "heater.xlsx")
	var b bytes.Buffer
	tr, err := Simulate(fs, "heater", []float64{350}, 500, sproc.DefaultIntegrator(), quietLogger(), &b, out)
	if err != nil {
		t.Fatal(err)
	}
	if !tr.Complete {
		t.Fatalf("incomplete: %s", tr.Reason)
	}
	// Holdup time is 50 s.
	_, x := tr.Final()
	want := 298.15 + (350-298.15)*math.Exp(-10)
	if math.Abs(x[0]-want) > 1e-3 {
		t.Errorf("T: have %g, want %g", x[0], want)
	}
	if !strings.HasPrefix(b.String(), "t [s]") {
		t.Errorf("table:\n%s", b.String())
	}
	f, err := xlsx.OpenFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(f.Sheet["Trajectory"].Rows); n != len(tr.Times)+1 {
		t.Errorf("%d rows for %d times", n, len(tr.Times))
	}

	if _, err := Simulate(fs, "cooler", []float64{350}, 500, sproc.DefaultIntegrator(), quietLogger(), &b, ""); err == nil {
		t.Error("unknown unit simulated")
	}
	if _, err := Simulate(fs, "heater", []float64{350, 1}, 500, sproc.DefaultIntegrator(), quietLogger(), &b, ""); err == nil {
		t.Error("wrong state length accepted")
	}
}
