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
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/sproc"
	"gopkg.in/yaml.v3"
)

// Describe writes the metadata of a unit type with default parameters
// to w as YAML. If typ is empty, it lists the available types.
func Describe(typ string, w io.Writer) error {
	if typ == "" {
		for _, t := range Types() {
			fmt.Fprintln(w, t)
		}
		return nil
	}
	u, err := NewUnit(typ, nil)
	if err != nil {
		return err
	}
	e := yaml.NewEncoder(w)
	e.SetIndent(2)
	if err := e.Encode(u.Describe().Map()); err != nil {
		return fmt.Errorf("sprocutil: %v", err)
	}
	return e.Close()
}

// Resolve resolves the plant in fs and writes a summary to w. If
// outputFile is not empty, the operating points are saved to it as a
// spreadsheet.
func Resolve(fs *Flowsheet, log logrus.FieldLogger, w io.Writer, outputFile string) (*sproc.Plant, error) {
	log = log.WithField("flowsheet", fs.Fingerprint())
	p, err := fs.Build(sproc.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if _, err := p.Resolve(); err != nil {
		return nil, err
	}
	fmt.Fprint(w, p.Summary())
	if outputFile != "" {
		if err := saveXLSX(outputFile, pointsSheet(p.Points())); err != nil {
			return nil, err
		}
		log.WithField("file", outputFile).Info("saved operating points")
	}
	return p, nil
}

// Optimize optimizes the plant in fs and writes a summary to w. method
// overrides the flowsheet's method and a target that is not NaN
// overrides the flowsheet's target. If outputFile is not empty, the
// result is saved to it as a spreadsheet.
func Optimize(fs *Flowsheet, method string, target float64, log logrus.FieldLogger, w io.Writer, outputFile string) (*sproc.OptimizationResult, error) {
	fp := fs.Fingerprint()
	log = log.WithField("flowsheet", fp)
	p, err := fs.Build(sproc.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if method == "" {
		method = fs.Objective.Method
	}
	if _, err := p.Compile(method); err != nil {
		return nil, err
	}
	t, opts := fs.ObjectiveOptions()
	if !math.IsNaN(target) {
		t = target
	}
	res, err := p.Optimize(t, opts...)
	if err != nil {
		return nil, err
	}
	fmt.Fprint(w, p.Summary())
	if outputFile != "" {
		if err := saveXLSX(outputFile, optimizationSheets(res, fp)); err != nil {
			return nil, err
		}
		log.WithField("file", outputFile).Info("saved optimization result")
	}
	return res, nil
}

// Simulate integrates the dynamics of one unit of the plant in fs from
// state x0 over [0, t1], with the unit's inputs held at their resolved
// values, and writes the trajectory to w. If outputFile is not empty,
// the trajectory is saved to it as a spreadsheet.
func Simulate(fs *Flowsheet, unit string, x0 []float64, t1 float64, in sproc.Integrator,
	log logrus.FieldLogger, w io.Writer, outputFile string) (*sproc.Trajectory, error) {
	log = log.WithField("flowsheet", fs.Fingerprint())
	p, err := fs.Build(sproc.WithLogger(log))
	if err != nil {
		return nil, err
	}
	u, ok := p.Unit(unit)
	if !ok {
		return nil, fmt.Errorf("sprocutil: flowsheet %s has no unit %q", fs.Name, unit)
	}
	states := u.Shape().States
	tr, err := p.Simulate(unit, x0, t1, in)
	if err != nil {
		return nil, err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "t [s]\t")
	for _, s := range states {
		fmt.Fprintf(tw, "%s [%s]\t", s.Name, s.Units)
	}
	fmt.Fprintln(tw)
	for i, t := range tr.Times {
		fmt.Fprintf(tw, "%.6g\t", t)
		for _, x := range tr.States[i] {
			fmt.Fprintf(tw, "%.6g\t", x)
		}
		fmt.Fprintln(tw)
	}
	tw.Flush()
	if !tr.Complete {
		fmt.Fprintf(w, "Simulation stopped at t = %g s: %s\n", tr.Times[len(tr.Times)-1], tr.Reason)
	}

	if outputFile != "" {
		if err := saveXLSX(outputFile, trajectorySheet(tr, states)); err != nil {
			return nil, err
		}
		log.WithField("file", outputFile).Info("saved trajectory")
	}
	return tr, nil
}
