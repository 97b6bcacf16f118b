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

// Package tank contains a gravity-drained holding tank.
package tank

import (
	"math"

	"github.com/ctessum/unit"
	"github.com/spatialmodel/sproc"
	"github.com/spatialmodel/sproc/internal/fluid"
)

// Type is the unit type name.
const Type = "Tank"

// LevelRange is the valid range key of the liquid level.
const LevelRange = "level"

// Config holds the construction parameters of a Tank.
type Config struct {
	Area           float64 `param:"area" validate:"gt=0"`        // [m²]
	OutletArea     float64 `param:"outlet_area" validate:"gt=0"` // [m²]
	DischargeCoeff float64 `param:"discharge_coeff" validate:"gt=0,lte=1"`
	MaxLevel       float64 `param:"max_level" validate:"gt=0"`     // [m]
	Density        float64 `param:"fluid_density" validate:"gt=0"` // [kg/m³]
	Pressure       float64 `param:"pressure" validate:"gt=0"`      // [Pa]
}

// DefaultConfig returns the configuration of an open 2 m² water tank.
func DefaultConfig() Config {
	return Config{
		Area:           2,
		OutletArea:     0.005,
		DischargeCoeff: 0.62,
		MaxLevel:       5,
		Density:        fluid.WaterDensity,
		Pressure:       fluid.Atmosphere,
	}
}

// Tank is a vertical tank drained through an orifice at its base. The
// outflow is m = ρ Cd A_o √(2 g h) for liquid level h.
type Tank struct {
	cfg   Config
	shape sproc.Shape
}

// New returns a new tank.
func New(cfg Config) (*Tank, error) {
	if err := sproc.ValidateConfig(Type, cfg); err != nil {
		return nil, err
	}
	return &Tank{
		cfg: cfg,
		shape: sproc.Shape{
			Inputs: []sproc.Port{sproc.StreamPort("inlet", "Inlet stream", true)},
			Outputs: []sproc.Port{
				sproc.StreamPort("outlet", "Drained stream", false),
				sproc.ScalarPort("level", "h", unit.Meter, LevelRange, 0, "Liquid level"),
			},
			States: []sproc.Field{
				{Name: "h", Units: sproc.Units(unit.Meter), Range: LevelRange},
				{Name: "T", Units: sproc.Units(sproc.Kelvin), Range: sproc.TemperatureRange},
			},
		},
	}, nil
}

// Config returns the construction parameters.
func (tk *Tank) Config() Config { return tk.cfg }

// Shape fulfils the sproc.Unit interface.
func (tk *Tank) Shape() sproc.Shape { return tk.shape }

// Outflow returns the drained mass flow [kg/s] at level h [m].
func (tk *Tank) Outflow(h float64) float64 {
	c := tk.cfg
	return c.Density * c.DischargeCoeff * c.OutletArea * math.Sqrt(2*fluid.Gravity*math.Max(h, 0))
}

// Level returns the level [m] at which the outflow equals m [kg/s].
func (tk *Tank) Level(m float64) float64 {
	c := tk.cfg
	v := math.Max(m, 0) / (c.Density * c.DischargeCoeff * c.OutletArea)
	return v * v / (2 * fluid.Gravity)
}

// SteadyState returns the drained stream and the level at which the
// outflow balances the inflow. The level may exceed the tank height;
// that is reported through the valid ranges rather than clamped.
func (tk *Tank) SteadyState(u []float64) ([]float64, error) {
	if err := sproc.CheckInput(Type, tk.shape, u); err != nil {
		return nil, err
	}
	m := math.Max(u[sproc.FlowField], 0)
	h := tk.Level(m)
	return []float64{
		m,
		u[sproc.TemperatureField],
		tk.cfg.Pressure + fluid.Pressure(h, tk.cfg.Density),
		h,
	}, nil
}

// Dynamics returns the rates of change of the level and the
// temperature of the tank contents. The temperature of an empty tank
// does not change.
func (tk *Tank) Dynamics(_ float64, x, u []float64) ([]float64, error) {
	if err := sproc.CheckState(Type, tk.shape, x); err != nil {
		return nil, err
	}
	if err := sproc.CheckInput(Type, tk.shape, u); err != nil {
		return nil, err
	}
	c := tk.cfg
	h, t := x[0], x[1]
	in := math.Max(u[sproc.FlowField], 0)
	dh := (in - tk.Outflow(h)) / (c.Density * c.Area)
	if h <= 0 && dh < 0 {
		dh = 0
	}
	var dt float64
	if h > 0 {
		dt = in * (u[sproc.TemperatureField] - t) / (c.Density * c.Area * h)
	}
	return []float64{dh, dt}, nil
}

// Describe fulfils the sproc.Unit interface.
func (tk *Tank) Describe() *sproc.Metadata {
	c := tk.cfg
	return &sproc.Metadata{
		Type:        Type,
		Description: "Gravity-drained holding tank with orifice outflow",
		Category:    "unit/tank",
		Algorithms: map[string]string{
			"steady_state": "h = (m / (ρ Cd A_o))² / 2g, P_out = P_top + ρ g h",
			"dynamics":     "ρ A dh/dt = m_in - ρ Cd A_o √(2 g h), dT/dt = m_in (T_in - T) / (ρ A h)",
		},
		Parameters: map[string]sproc.Parameter{
			"area":            sproc.Param(c.Area, sproc.Meter2, "Tank cross-sectional area"),
			"outlet_area":     sproc.Param(c.OutletArea, sproc.Meter2, "Outlet orifice area"),
			"discharge_coeff": sproc.Param(c.DischargeCoeff, unit.Dimless, "Orifice discharge coefficient"),
			"max_level":       sproc.Param(c.MaxLevel, unit.Meter, "Overflow level"),
			"fluid_density":   sproc.Param(c.Density, sproc.KilogramPerMeter3, "Liquid density"),
			"pressure":        sproc.Param(c.Pressure, sproc.Pascal, "Pressure above the liquid surface"),
		},
		StateVariables: sproc.DescribeStates(tk.shape.States, "Liquid level", "Liquid temperature"),
		Inputs:         sproc.DescribePorts(tk.shape.Inputs),
		Outputs:        sproc.DescribePorts(tk.shape.Outputs),
		ValidRanges: map[string]sproc.Range{
			LevelRange:             sproc.NewRange(0, c.MaxLevel, unit.Meter),
			sproc.FlowRange:        sproc.NewRange(0, math.Inf(1), sproc.KilogramPerSecond),
			sproc.TemperatureRange: sproc.NewRange(273.15, 373.15, sproc.Kelvin),
			sproc.PressureRange:    sproc.NewRange(1000, 10e6, sproc.Pascal),
		},
		Applications: []string{
			"Surge and buffer tanks",
			"Gravity-fed storage",
			"Level dynamics studies",
		},
		Limitations: []string{
			"Constant cross-section",
			"Free discharge through a single orifice",
			"Perfectly mixed contents",
		},
	}
}
