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
	"os"

	"github.com/spatialmodel/sproc"
	"github.com/tealeg/xlsx"
)

// sheetWriter adds one sheet to a workbook.
type sheetWriter func(*xlsx.File) error

// saveXLSX writes a workbook holding the sheets to path.
func saveXLSX(path string, sheets ...sheetWriter) error {
	f := xlsx.NewFile()
	for _, s := range sheets {
		if err := s(f); err != nil {
			return fmt.Errorf("sprocutil: writing %s: %v", path, err)
		}
	}
	if err := f.Save(os.ExpandEnv(path)); err != nil {
		return fmt.Errorf("sprocutil: writing %s: %v", path, err)
	}
	return nil
}

func addRow(s *xlsx.Sheet, values ...interface{}) {
	row := s.AddRow()
	for _, v := range values {
		cell := row.AddCell()
		switch x := v.(type) {
		case float64:
			cell.SetFloat(x)
		case int:
			cell.SetInt(x)
		case bool:
			cell.SetBool(x)
		case string:
			cell.SetString(x)
		default:
			cell.SetString(fmt.Sprint(x))
		}
	}
}

// pointsSheet lists every value of the operating points, one per row.
func pointsSheet(pts []sproc.OperatingPoint) sheetWriter {
	return func(f *xlsx.File) error {
		s, err := f.AddSheet("Units")
		if err != nil {
			return err
		}
		addRow(s, "Unit", "Type", "Vector", "Index", "Value")
		for _, p := range pts {
			for i, v := range p.Inputs {
				addRow(s, p.Unit, p.Type, "input", i, v)
			}
			for i, v := range p.Outputs {
				addRow(s, p.Unit, p.Type, "output", i, v)
			}
		}
		return nil
	}
}

// optimizationSheets summarizes an optimization result.
func optimizationSheets(res *sproc.OptimizationResult, fingerprint string) sheetWriter {
	return func(f *xlsx.File) error {
		s, err := f.AddSheet("Optimization")
		if err != nil {
			return err
		}
		addRow(s, "Run", res.RunID)
		addRow(s, "Plant", res.Plant)
		addRow(s, "Flowsheet", fingerprint)
		addRow(s, "Method", res.Method)
		addRow(s, "Status", res.Status)
		addRow(s, "Objective", res.Objective)
		addRow(s, "Penalty", res.Penalty)
		addRow(s, "Production", res.Production)
		addRow(s, "Converged", res.Converged)
		addRow(s, "Feasible", res.Feasible)
		addRow(s, "Iterations", res.Iterations)
		addRow(s, "Evaluations", res.Evaluations)
		addRow(s, "Runtime", res.Runtime.String())

		if s, err = f.AddSheet("Variables"); err != nil {
			return err
		}
		addRow(s, "Variable", "Value", "Lower", "Upper")
		for i, fv := range res.Free {
			addRow(s, fv.Name, res.X[i], fv.Lower, fv.Upper)
		}

		if s, err = f.AddSheet("History"); err != nil {
			return err
		}
		addRow(s, "Iteration", "Objective")
		for i, v := range res.History {
			addRow(s, i, v)
		}

		if len(res.Violations) > 0 {
			if s, err = f.AddSheet("Violations"); err != nil {
				return err
			}
			for _, v := range res.Violations {
				addRow(s, v.String())
			}
		}
		return pointsSheet(res.Points)(f)
	}
}

// trajectorySheet writes the states of a trajectory, one row per time.
func trajectorySheet(tr *sproc.Trajectory, states []sproc.Field) sheetWriter {
	return func(f *xlsx.File) error {
		s, err := f.AddSheet("Trajectory")
		if err != nil {
			return err
		}
		header := []interface{}{"t [s]"}
		for _, st := range states {
			header = append(header, fmt.Sprintf("%s [%s]", st.Name, st.Units))
		}
		addRow(s, header...)
		for i, t := range tr.Times {
			row := []interface{}{t}
			for _, x := range tr.States[i] {
				row = append(row, x)
			}
			addRow(s, row...)
		}
		return nil
	}
}
