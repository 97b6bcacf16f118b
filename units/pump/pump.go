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

// Package pump contains a centrifugal pump with a quadratic head curve.
package pump

import (
	"math"

	"github.com/ctessum/unit"
	"github.com/spatialmodel/sproc"
	"github.com/spatialmodel/sproc/internal/fluid"
)

// Type is the unit type name.
const Type = "CentrifugalPump"

// Valid range keys.
const (
	SpeedRange = "speed"
	PowerRange = "power"
)

// Config holds the construction parameters of a Pump.
type Config struct {
	ShutoffHead  float64 `param:"shutoff_head" validate:"gt=0"` // [m]
	RatedFlow    float64 `param:"rated_flow" validate:"gt=0"`   // [m³/s]
	Efficiency   float64 `param:"efficiency" validate:"gt=0,lte=1"`
	Density      float64 `param:"fluid_density" validate:"gt=0"` // [kg/m³]
	HeatCapacity float64 `param:"heat_capacity" validate:"gt=0"` // [J/kg/K]
	MaxPower     float64 `param:"max_power" validate:"gt=0"`     // [W]
	ResponseTime float64 `param:"response_time" validate:"gt=0"` // [s]
}

// DefaultConfig returns the configuration of a small water pump.
func DefaultConfig() Config {
	return Config{
		ShutoffHead:  50,
		RatedFlow:    0.02,
		Efficiency:   0.75,
		Density:      fluid.WaterDensity,
		HeatCapacity: fluid.WaterCp,
		MaxPower:     50e3,
		ResponseTime: 2,
	}
}

// Pump raises the pressure of a liquid stream.
//
// At speed s (a fraction of rated speed) and volumetric flow Q the pump
// develops the head H = H0 s² - H0 (Q/Qr)², where H0 is the shutoff head
// and Qr the flow at which the head falls to zero at rated speed. The
// head never becomes negative.
type Pump struct {
	cfg   Config
	shape sproc.Shape
}

// New returns a new pump.
func New(cfg Config) (*Pump, error) {
	if err := sproc.ValidateConfig(Type, cfg); err != nil {
		return nil, err
	}
	return &Pump{
		cfg: cfg,
		shape: sproc.Shape{
			Inputs: []sproc.Port{
				sproc.StreamPort("inlet", "Suction stream", true),
				sproc.ScalarPort("speed", "speed", unit.Dimless, SpeedRange, 1, "Pump speed as a fraction of rated speed"),
			},
			Outputs: []sproc.Port{
				sproc.StreamPort("outlet", "Discharge stream", false),
				sproc.ScalarPort("power", "P", unit.Watt, PowerRange, 0, "Shaft power"),
			},
			States: []sproc.Field{
				{Name: "P", Units: sproc.Units(sproc.Pascal), Range: sproc.PressureRange},
			},
		},
	}, nil
}

// Config returns the construction parameters.
func (p *Pump) Config() Config { return p.cfg }

// Shape fulfils the sproc.Unit interface.
func (p *Pump) Shape() sproc.Shape { return p.shape }

// Head returns the head [m] developed at mass flow m [kg/s] and speed s.
func (p *Pump) Head(m, s float64) float64 {
	c := p.cfg
	q := math.Max(m, 0) / c.Density
	r := q / c.RatedFlow
	return math.Max(c.ShutoffHead*(s*s-r*r), 0)
}

// SteadyState returns the discharge stream and the shaft power for
// the suction stream and speed in u.
func (p *Pump) SteadyState(u []float64) ([]float64, error) {
	if err := sproc.CheckInput(Type, p.shape, u); err != nil {
		return nil, err
	}
	c := p.cfg
	m := math.Max(u[sproc.FlowField], 0)
	t, pIn := u[sproc.TemperatureField], u[sproc.PressureField]
	h := p.Head(m, u[sproc.StreamWidth])
	power := m * fluid.Gravity * h / c.Efficiency
	if m > 0 {
		// Losses heat the liquid.
		t += power * (1 - c.Efficiency) / (m * c.HeatCapacity)
	}
	return []float64{m, t, pIn + fluid.Pressure(h, c.Density), power}, nil
}

// Dynamics returns the rate of change of the discharge pressure, which
// approaches its steady-state value with a first-order lag.
func (p *Pump) Dynamics(_ float64, x, u []float64) ([]float64, error) {
	if err := sproc.CheckState(Type, p.shape, x); err != nil {
		return nil, err
	}
	y, err := p.SteadyState(u)
	if err != nil {
		return nil, err
	}
	return []float64{(y[sproc.PressureField] - x[0]) / p.cfg.ResponseTime}, nil
}

// Describe fulfils the sproc.Unit interface.
func (p *Pump) Describe() *sproc.Metadata {
	c := p.cfg
	return &sproc.Metadata{
		Type:        Type,
		Description: "Centrifugal pump with a quadratic head curve scaled by the affinity laws",
		Category:    "transport/pump",
		Algorithms: map[string]string{
			"steady_state": "H = H0 (s² - (Q/Qr)²), ΔP = ρ g H, W = ρ g Q H / η, ΔT = W (1 - η) / (m cp)",
			"dynamics":     "dP/dt = (P_ss - P) / τ",
		},
		Parameters: map[string]sproc.Parameter{
			"shutoff_head":  sproc.Param(c.ShutoffHead, unit.Meter, "Head at zero flow and rated speed"),
			"rated_flow":    sproc.Param(c.RatedFlow, sproc.Meter3PerSecond, "Flow at which the head falls to zero at rated speed"),
			"efficiency":    sproc.Param(c.Efficiency, unit.Dimless, "Pump efficiency"),
			"fluid_density": sproc.Param(c.Density, sproc.KilogramPerMeter3, "Liquid density"),
			"heat_capacity": sproc.Param(c.HeatCapacity, sproc.JoulePerKilogramKelvin, "Liquid specific heat capacity"),
			"max_power":     sproc.Param(c.MaxPower, unit.Watt, "Motor rating"),
			"response_time": sproc.Param(c.ResponseTime, unit.Second, "Time constant of the discharge pressure"),
		},
		StateVariables: sproc.DescribeStates(p.shape.States, "Discharge pressure"),
		Inputs:         sproc.DescribePorts(p.shape.Inputs),
		Outputs:        sproc.DescribePorts(p.shape.Outputs),
		ValidRanges: map[string]sproc.Range{
			SpeedRange:             sproc.NewRange(0, 1.2, unit.Dimless),
			PowerRange:             sproc.NewRange(0, c.MaxPower, unit.Watt),
			sproc.FlowRange:        sproc.NewRange(0, c.RatedFlow*c.Density, sproc.KilogramPerSecond),
			sproc.TemperatureRange: sproc.NewRange(273.15, 423.15, sproc.Kelvin),
			sproc.PressureRange:    sproc.NewRange(1000, 10e6, sproc.Pascal),
		},
		Applications: []string{
			"Liquid transfer between process units",
			"Boosting pressure ahead of heat exchangers",
			"Recycle loop circulation",
		},
		Limitations: []string{
			"Incompressible single-phase liquid",
			"Constant efficiency over the operating range",
			"No cavitation or NPSH check",
		},
	}
}
