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

// Package heater contains a well-mixed heater with an adjustable duty.
package heater

import (
	"math"

	"github.com/ctessum/unit"
	"github.com/spatialmodel/sproc"
	"github.com/spatialmodel/sproc/internal/fluid"
)

// Type is the unit type name.
const Type = "Heater"

// DutyRange is the valid range key of the heat duty.
const DutyRange = "duty"

// Config holds the construction parameters of a Heater.
type Config struct {
	Volume       float64 `param:"volume" validate:"gt=0"` // [m³]
	Efficiency   float64 `param:"efficiency" validate:"gt=0,lte=1"`
	MaxDuty      float64 `param:"max_duty" validate:"gt=0"`       // [W]
	PressureDrop float64 `param:"pressure_drop" validate:"gte=0"` // [Pa]
	Density      float64 `param:"fluid_density" validate:"gt=0"`  // [kg/m³]
	HeatCapacity float64 `param:"heat_capacity" validate:"gt=0"`  // [J/kg/K]
}

// DefaultConfig returns the configuration of a 1 MW water heater.
func DefaultConfig() Config {
	return Config{
		Volume:       0.5,
		Efficiency:   0.9,
		MaxDuty:      1e6,
		PressureDrop: 1e4,
		Density:      fluid.WaterDensity,
		HeatCapacity: fluid.WaterCp,
	}
}

// Heater adds heat to a liquid stream. Its inputs are the stream port
// "inlet" and the scalar port "duty" [W].
type Heater struct {
	cfg   Config
	shape sproc.Shape
}

// New returns a new heater.
func New(cfg Config) (*Heater, error) {
	if err := sproc.ValidateConfig(Type, cfg); err != nil {
		return nil, err
	}
	return &Heater{
		cfg: cfg,
		shape: sproc.Shape{
			Inputs: []sproc.Port{
				sproc.StreamPort("inlet", "Inlet stream", true),
				sproc.ScalarPort("duty", "Q", unit.Watt, DutyRange, 0, "Heat duty"),
			},
			Outputs: []sproc.Port{sproc.StreamPort("outlet", "Heated stream", false)},
			States: []sproc.Field{
				{Name: "T", Units: sproc.Units(sproc.Kelvin), Range: sproc.TemperatureRange},
			},
		},
	}, nil
}

// Config returns the construction parameters.
func (h *Heater) Config() Config { return h.cfg }

// Shape fulfils the sproc.Unit interface.
func (h *Heater) Shape() sproc.Shape { return h.shape }

// duty returns the heat duty in u. The heater cannot remove heat, so a
// negative duty is treated as no duty.
func duty(u []float64) float64 {
	return math.Max(u[sproc.StreamWidth], 0)
}

// SteadyState returns the heated stream. Without flow, the outlet
// temperature is the inlet temperature.
func (h *Heater) SteadyState(u []float64) ([]float64, error) {
	if err := sproc.CheckInput(Type, h.shape, u); err != nil {
		return nil, err
	}
	c := h.cfg
	m := math.Max(u[sproc.FlowField], 0)
	t := u[sproc.TemperatureField]
	if m > 0 {
		t += c.Efficiency * duty(u) / (m * c.HeatCapacity)
	}
	return []float64{m, t, u[sproc.PressureField] - c.PressureDrop}, nil
}

// Dynamics returns the rate of change of the temperature of the
// heater contents.
func (h *Heater) Dynamics(_ float64, x, u []float64) ([]float64, error) {
	if err := sproc.CheckState(Type, h.shape, x); err != nil {
		return nil, err
	}
	if err := sproc.CheckInput(Type, h.shape, u); err != nil {
		return nil, err
	}
	c := h.cfg
	holdup := c.Density * c.Volume
	m := math.Max(u[sproc.FlowField], 0)
	return []float64{
		m/holdup*(u[sproc.TemperatureField]-x[0]) + c.Efficiency*duty(u)/(holdup*c.HeatCapacity),
	}, nil
}

// Describe fulfils the sproc.Unit interface.
func (h *Heater) Describe() *sproc.Metadata {
	c := h.cfg
	return &sproc.Metadata{
		Type:        Type,
		Description: "Well-mixed heater adding a set heat duty to a liquid stream",
		Category:    "unit/heat_exchanger",
		Algorithms: map[string]string{
			"steady_state": "T_out = T_in + η Q / (m cp), P_out = P_in - ΔP",
			"dynamics":     "dT/dt = m / (ρ V) (T_in - T) + η Q / (ρ V cp)",
		},
		Parameters: map[string]sproc.Parameter{
			"volume":        sproc.Param(c.Volume, sproc.Meter3, "Liquid holdup volume"),
			"efficiency":    sproc.Param(c.Efficiency, unit.Dimless, "Fraction of the duty transferred to the liquid"),
			"max_duty":      sproc.Param(c.MaxDuty, unit.Watt, "Heater rating"),
			"pressure_drop": sproc.Param(c.PressureDrop, sproc.Pascal, "Pressure drop across the heater"),
			"fluid_density": sproc.Param(c.Density, sproc.KilogramPerMeter3, "Liquid density"),
			"heat_capacity": sproc.Param(c.HeatCapacity, sproc.JoulePerKilogramKelvin, "Liquid specific heat capacity"),
		},
		StateVariables: sproc.DescribeStates(h.shape.States, "Temperature of the heater contents"),
		Inputs:         sproc.DescribePorts(h.shape.Inputs),
		Outputs:        sproc.DescribePorts(h.shape.Outputs),
		ValidRanges: map[string]sproc.Range{
			DutyRange:              sproc.NewRange(0, c.MaxDuty, unit.Watt),
			sproc.FlowRange:        sproc.NewRange(0, math.Inf(1), sproc.KilogramPerSecond),
			sproc.TemperatureRange: sproc.NewRange(273.15, 473.15, sproc.Kelvin),
			sproc.PressureRange:    sproc.NewRange(1000, 10e6, sproc.Pascal),
		},
		Applications: []string{
			"Feed preheating",
			"Process water heating",
			"Temperature trim ahead of reactors",
		},
		Limitations: []string{
			"Constant specific heat capacity",
			"No phase change",
			"Perfectly mixed holdup",
			"Heating only: a negative duty is treated as zero",
		},
	}
}
