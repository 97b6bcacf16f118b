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

// Unit is a process unit model. Implementations must be safe to call
// concurrently and must return the same result for the same arguments:
// a Unit carries its construction parameters and nothing else.
type Unit interface {
	// Shape returns the ports and state variables of the unit.
	Shape() Shape

	// SteadyState returns the output vector for the input vector u
	// once all transients have died out.
	SteadyState(u []float64) ([]float64, error)

	// Dynamics returns dx/dt at time t for state x and input u.
	Dynamics(t float64, x, u []float64) ([]float64, error)

	// Describe returns metadata about the unit, derived from its
	// construction parameters.
	Describe() *Metadata
}

// Field is one scalar element of a port.
type Field struct {
	Name  string
	Units string

	// Range, if not empty, is the key into Metadata.ValidRanges
	// that bounds this field.
	Range string
}

// Port is a named, ordered group of fields in a unit's input or output
// vector.
type Port struct {
	Name        string
	Fields      []Field
	Required    bool
	Default     []float64 // used for unconnected, non-required inputs
	Description string
}

// Width returns the number of fields in the port.
func (p Port) Width() int { return len(p.Fields) }

// Field returns the index of the named field.
func (p Port) Field(name string) (int, bool) {
	for i, f := range p.Fields {
		if f.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Shape declares the arity of a unit. The input vector is the
// concatenation of the input ports, and likewise for outputs.
type Shape struct {
	Inputs  []Port
	Outputs []Port
	States  []Field
}

// InputLen returns the length of the input vector.
func (s Shape) InputLen() int { return width(s.Inputs) }

// OutputLen returns the length of the output vector.
func (s Shape) OutputLen() int { return width(s.Outputs) }

// StateLen returns the length of the state vector.
func (s Shape) StateLen() int { return len(s.States) }

// InputOffset returns the position in the input vector where input
// port i starts.
func (s Shape) InputOffset(i int) int { return width(s.Inputs[:i]) }

// OutputOffset returns the position in the output vector where output
// port i starts.
func (s Shape) OutputOffset(i int) int { return width(s.Outputs[:i]) }

// Input returns the index of the named input port.
func (s Shape) Input(name string) (int, bool) { return portIndex(s.Inputs, name) }

// Output returns the index of the named output port.
func (s Shape) Output(name string) (int, bool) { return portIndex(s.Outputs, name) }

func width(ports []Port) int {
	n := 0
	for _, p := range ports {
		n += p.Width()
	}
	return n
}

func portIndex(ports []Port, name string) (int, bool) {
	for i, p := range ports {
		if p.Name == name {
			return i, true
		}
	}
	return -1, false
}

// CheckInput returns a *ShapeMismatchError if u is not the input
// length declared by s.
func CheckInput(unit string, s Shape, u []float64) error {
	return checkLen(unit, "input", s.InputLen(), u)
}

// CheckOutput returns a *ShapeMismatchError if y is not the output
// length declared by s.
func CheckOutput(unit string, s Shape, y []float64) error {
	return checkLen(unit, "output", s.OutputLen(), y)
}

// CheckState returns a *ShapeMismatchError if x is not the state
// length declared by s.
func CheckState(unit string, s Shape, x []float64) error {
	return checkLen(unit, "state", s.StateLen(), x)
}

func checkLen(unit, vector string, want int, v []float64) error {
	if len(v) != want {
		return &ShapeMismatchError{Unit: unit, Vector: vector, Want: want, Got: len(v)}
	}
	return nil
}
