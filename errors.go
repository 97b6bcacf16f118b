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
)

// These are the error kinds returned by this package. The concrete
// error types below wrap them, so callers can test for a kind with
// errors.Is and recover the details with errors.As.
var (
	ErrShapeMismatch      = errors.New("sproc: shape mismatch")
	ErrParameterRange     = errors.New("sproc: parameter out of range")
	ErrTopology           = errors.New("sproc: invalid topology")
	ErrIntegrationFailure = errors.New("sproc: integration failure")
)

// ShapeMismatchError is returned when a vector handed to a unit does not
// have the length declared by the unit's Shape.
type ShapeMismatchError struct {
	Unit   string // unit name or type
	Vector string // "input", "output" or "state"
	Want   int
	Got    int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("sproc: %s: %s vector has length %d; want %d",
		e.Unit, e.Vector, e.Got, e.Want)
}

// Unwrap returns ErrShapeMismatch.
func (e *ShapeMismatchError) Unwrap() error { return ErrShapeMismatch }

// ParameterRangeError is returned when a unit is constructed with a
// parameter outside of its valid range.
type ParameterRangeError struct {
	Unit       string
	Parameter  string
	Value      interface{}
	Constraint string
}

func (e *ParameterRangeError) Error() string {
	return fmt.Sprintf("sproc: %s: parameter %s=%v violates %s",
		e.Unit, e.Parameter, e.Value, e.Constraint)
}

// Unwrap returns ErrParameterRange.
func (e *ParameterRangeError) Unwrap() error { return ErrParameterRange }

// TopologyError is returned for a plant or graph that cannot be resolved:
// duplicate or unknown unit names, bad port references, and required input
// ports that are neither connected nor given a default.
type TopologyError struct {
	Unit   string // may be empty
	Reason string
}

func (e *TopologyError) Error() string {
	if e.Unit == "" {
		return "sproc: topology: " + e.Reason
	}
	return fmt.Sprintf("sproc: topology: unit %q: %s", e.Unit, e.Reason)
}

// Unwrap returns ErrTopology.
func (e *TopologyError) Unwrap() error { return ErrTopology }

func topologyErrorf(unit, format string, a ...interface{}) *TopologyError {
	return &TopologyError{Unit: unit, Reason: fmt.Sprintf(format, a...)}
}

// IntegrationFailure is returned when the integrator encounters a
// non-finite derivative or state. State holds the last finite state.
type IntegrationFailure struct {
	Time   float64
	Step   int
	State  []float64
	Reason string
}

func (e *IntegrationFailure) Error() string {
	return fmt.Sprintf("sproc: integration failed at t=%g (step %d): %s",
		e.Time, e.Step, e.Reason)
}

// Unwrap returns ErrIntegrationFailure.
func (e *IntegrationFailure) Unwrap() error { return ErrIntegrationFailure }
