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
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/unit"
)

// Units
var (
	Kelvin = unit.Dimensions{
		unit.TemperatureDim: 1}
	Pascal = unit.Dimensions{
		unit.MassDim:   1,
		unit.LengthDim: -1,
		unit.TimeDim:   -2}
	PascalSecond = unit.Dimensions{
		unit.MassDim:   1,
		unit.LengthDim: -1,
		unit.TimeDim:   -1}
	KilogramPerSecond = unit.Dimensions{
		unit.MassDim: 1,
		unit.TimeDim: -1}
	KilogramPerMeter3 = unit.Dimensions{
		unit.MassDim:   1,
		unit.LengthDim: -3}
	Meter3 = unit.Dimensions{
		unit.LengthDim: 3}
	Meter2 = unit.Dimensions{
		unit.LengthDim: 2}
	Meter3PerSecond = unit.Dimensions{
		unit.LengthDim: 3,
		unit.TimeDim:   -1}
	WattPerKelvin = unit.Dimensions{
		unit.MassDim:        1,
		unit.LengthDim:      2,
		unit.TimeDim:        -3,
		unit.TemperatureDim: -1}
	JoulePerKilogramKelvin = unit.Dimensions{
		unit.LengthDim:      2,
		unit.TimeDim:        -2,
		unit.TemperatureDim: -1}
)

// Units returns the printed form of dimensions d. Quantities without
// dimensions print as "dimensionless".
func Units(d unit.Dimensions) string {
	s := d.String()
	if len(d) == 0 || s == "" {
		return "dimensionless"
	}
	return s
}

// Parameter is a construction parameter of a unit.
type Parameter struct {
	Value       float64
	Units       string
	Description string
}

// Param creates a Parameter whose units are given by dimensions d.
func Param(value float64, d unit.Dimensions, description string) Parameter {
	return Parameter{Value: value, Units: Units(d), Description: description}
}

// Quantity returns the parameter as a value with dimensions d. It
// returns an error if d does not print as the parameter's units.
func (p Parameter) Quantity(d unit.Dimensions) (*unit.Unit, error) {
	if Units(d) != p.Units {
		return nil, fmt.Errorf("sproc: parameter has units %s, not %s", p.Units, Units(d))
	}
	return unit.New(p.Value, d), nil
}

// Range is a closed interval of valid values.
type Range struct {
	Min, Max float64
	Units    string
}

// NewRange returns a Range with units from d.
func NewRange(min, max float64, d unit.Dimensions) Range {
	return Range{Min: min, Max: max, Units: Units(d)}
}

// Contains reports whether v is within the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Violation returns how far v lies outside of the range, normalized by
// the width of the range (or by the magnitude of the nearest bound when
// the range is degenerate or unbounded). It returns zero for values
// inside the range and +Inf for NaN.
func (r Range) Violation(v float64) float64 {
	if math.IsNaN(v) {
		return math.Inf(1)
	}
	var d, bound float64
	switch {
	case v < r.Min:
		d, bound = r.Min-v, r.Min
	case v > r.Max:
		d, bound = v-r.Max, r.Max
	default:
		return 0
	}
	scale := r.Max - r.Min
	if scale <= 0 || math.IsInf(scale, 0) {
		scale = math.Max(math.Abs(bound), 1)
	}
	return d / scale
}

// Metadata describes a unit. Everything in it is derived from the
// unit's construction parameters.
type Metadata struct {
	Type        string
	Description string
	Category    string

	// Algorithms maps an operation ("steady_state", "dynamics") to a
	// summary of the equations it uses.
	Algorithms map[string]string

	Parameters     map[string]Parameter
	StateVariables map[string]string
	Inputs         map[string]string
	Outputs        map[string]string
	ValidRanges    map[string]Range
	Applications   []string
	Limitations    []string
}

// Validate checks that the required metadata entries are present.
func (m *Metadata) Validate() error {
	switch {
	case m.Type == "":
		return fmt.Errorf("sproc: metadata is missing type")
	case m.Description == "":
		return fmt.Errorf("sproc: %s metadata is missing description", m.Type)
	case m.Category == "":
		return fmt.Errorf("sproc: %s metadata is missing category", m.Type)
	}
	for _, op := range []string{"steady_state", "dynamics"} {
		if m.Algorithms[op] == "" {
			return fmt.Errorf("sproc: %s metadata is missing the %s algorithm", m.Type, op)
		}
	}
	return nil
}

// Map returns the metadata as a generic mapping with the snake_case
// keys used in reports and flowsheet tooling.
func (m *Metadata) Map() map[string]interface{} {
	params := make(map[string]interface{}, len(m.Parameters))
	for k, p := range m.Parameters {
		params[k] = map[string]interface{}{
			"value":       p.Value,
			"units":       p.Units,
			"description": p.Description,
		}
	}
	ranges := make(map[string]interface{}, len(m.ValidRanges))
	for k, r := range m.ValidRanges {
		ranges[k] = map[string]interface{}{
			"min":   r.Min,
			"max":   r.Max,
			"units": r.Units,
		}
	}
	return map[string]interface{}{
		"type":            m.Type,
		"description":     m.Description,
		"category":        m.Category,
		"algorithms":      copyStrings(m.Algorithms),
		"parameters":      params,
		"state_variables": copyStrings(m.StateVariables),
		"inputs":          copyStrings(m.Inputs),
		"outputs":         copyStrings(m.Outputs),
		"valid_ranges":    ranges,
		"applications":    append([]string(nil), m.Applications...),
		"limitations":     append([]string(nil), m.Limitations...),
	}
}

// ParameterNames returns the parameter names in sorted order.
func (m *Metadata) ParameterNames() []string {
	names := make([]string, 0, len(m.Parameters))
	for k := range m.Parameters {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func copyStrings(m map[string]string) map[string]interface{} {
	o := make(map[string]interface{}, len(m))
	for k, v := range m {
		o[k] = v
	}
	return o
}

// DescribePorts returns descriptions for each field of ports, keyed by
// "port.field".
func DescribePorts(ports []Port) map[string]string {
	o := make(map[string]string)
	for _, p := range ports {
		for _, f := range p.Fields {
			o[p.Name+"."+f.Name] = fmt.Sprintf("%s [%s]", p.Description, f.Units)
		}
	}
	return o
}

// DescribeStates returns descriptions for each state variable.
func DescribeStates(states []Field, descriptions ...string) map[string]string {
	o := make(map[string]string, len(states))
	for i, f := range states {
		d := f.Name
		if i < len(descriptions) {
			d = descriptions[i]
		}
		o[f.Name] = fmt.Sprintf("%s [%s]", d, f.Units)
	}
	return o
}
