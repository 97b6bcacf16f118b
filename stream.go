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
	"strconv"

	"github.com/ctessum/unit"
)

// Material stream ports carry mass flow, temperature and pressure,
// in that order.
const (
	FlowField = iota
	TemperatureField
	PressureField

	// StreamWidth is the number of fields in a material stream port.
	StreamWidth
)

// Valid range keys shared by units that carry material streams.
const (
	FlowRange        = "flow"
	TemperatureRange = "temperature"
	PressureRange    = "pressure"
)

// StreamPort returns a material stream port with flow [kg/s],
// temperature [K] and pressure [Pa] fields.
func StreamPort(name, description string, required bool) Port {
	return Port{
		Name: name,
		Fields: []Field{
			{Name: "flow", Units: Units(KilogramPerSecond), Range: FlowRange},
			{Name: "T", Units: Units(Kelvin), Range: TemperatureRange},
			{Name: "P", Units: Units(Pascal), Range: PressureRange},
		},
		Required:    required,
		Description: description,
	}
}

// ScalarPort returns a port with a single field. Scalar input ports
// are optional and fall back to def when unconnected.
func ScalarPort(name, field string, d unit.Dimensions, rangeKey string, def float64, description string) Port {
	return Port{
		Name:        name,
		Fields:      []Field{{Name: field, Units: Units(d), Range: rangeKey}},
		Default:     []float64{def},
		Description: description,
	}
}

// StreamPorts returns n required stream ports named prefix1...prefixN.
func StreamPorts(prefix, description string, n int) []Port {
	p := make([]Port, n)
	for i := range p {
		p[i] = StreamPort(prefix+strconv.Itoa(i+1), description, true)
	}
	return p
}
