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

package fluid

import (
	"math"
	"testing"
)

func TestFrictionFactor(t *testing.T) {
	for _, test := range []struct {
		re, want float64
	}{
		{re: 0, want: 0},
		{re: -5, want: 0},
		{re: 1000, want: 0.064},
		{re: 10000, want: 0.316 / 10},
	} {
		if f := FrictionFactor(test.re); math.Abs(f-test.want) > 1e-12 {
			t.Errorf("Re=%g: have %g, want %g", test.re, f, test.want)
		}
	}
}

func TestPipeHeadLoss(t *testing.T) {
	// 0.01 m3/s through 20 m of 5 cm pipe.
	head, re := PipeHeadLoss(0.01, 20, 0.05, WaterDensity, WaterViscosity)
	v := 0.01 / (math.Pi * 0.05 * 0.05 / 4)
	wantRe := 1000 * v * 0.05 / 1e-3
	if math.Abs(re-wantRe) > 1e-6 {
		t.Errorf("Re: have %g, want %g", re, wantRe)
	}
	wantHead := 0.316 * math.Pow(wantRe, -0.25) * 20 / 0.05 * v * v / (2 * Gravity)
	if math.Abs(head-wantHead) > 1e-9 {
		t.Errorf("head: have %g, want %g", head, wantHead)
	}
	if h, _ := PipeHeadLoss(0, 20, 0.05, WaterDensity, WaterViscosity); h != 0 {
		t.Errorf("no flow should have no head loss, got %g", h)
	}
}

func TestHeadPressure(t *testing.T) {
	if p := Pressure(Head(5000, WaterDensity), WaterDensity); math.Abs(p-5000) > 1e-9 {
		t.Errorf("round trip: %g", p)
	}
	if h := Head(5000, 0); h != 0 {
		t.Errorf("zero density: %g", h)
	}
}
