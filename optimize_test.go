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

	"github.com/kr/pretty"
	"github.com/sirupsen/logrus/hooks/test"
	"gonum.org/v1/gonum/optimize"
)

func TestHistoryRecorder(t *testing.T) {
	log, _ := test.NewNullLogger()
	h := &historyRecorder{log: log}
	if err := h.Init(); err != nil {
		t.Fatal(err)
	}
	steps := []struct {
		op optimize.Operation
		f  float64
	}{
		{optimize.InitIteration, math.NaN()},
		{optimize.FuncEvaluation, 7},
		{optimize.MajorIteration, 5},
		{optimize.FuncEvaluation, 1},
		{optimize.MajorIteration, 6},
		{optimize.MajorIteration, 2},
	}
	for i, s := range steps {
		loc := &optimize.Location{F: s.f}
		if err := h.Record(loc, s.op, &optimize.Stats{MajorIterations: i}); err != nil {
			t.Fatal(err)
		}
	}
	// Values are recorded as reported, so an increase is visible.
	want := []float64{5, 6, 2}
	if diff := pretty.Diff(h.history, want); len(diff) > 0 {
		t.Errorf("history: %v", diff)
	}
}
