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

// Package batchtransfer contains a model of a pump that transfers a
// batch of liquid from a source tank to a destination tank.
package batchtransfer

import (
	"math"

	"github.com/ctessum/unit"
	"github.com/spatialmodel/sproc"
	"github.com/spatialmodel/sproc/internal/fluid"
)

// Type is the unit type name.
const Type = "BatchTransferPumping"

// responseTime is the time constant [s] of the pump flow response.
const responseTime = 5.0

// Input and output indices.
const (
	iSourceLevel = iota
	iDestLevel
	iSpeed
)

const (
	iFlow = iota
	iTransferTime
)

// Config holds the construction parameters of a batch transfer pump.
type Config struct {
	Capacity   float64 `param:"pump_capacity" validate:"gt=0"`   // [m³/s]
	MaxHead    float64 `param:"pump_head_max" validate:"gt=0"`   // [m]
	TankVolume float64 `param:"tank_volume" validate:"gt=0"`     // [m³]
	TankHeight float64 `param:"tank_height" validate:"gt=0"`     // [m]
	PipeLength float64 `param:"pipe_length" validate:"gte=0"`    // [m]
	PipeDiam   float64 `param:"pipe_diameter" validate:"gt=0"`   // [m]
	Density    float64 `param:"fluid_density" validate:"gt=0"`   // [kg/m³]
	Viscosity  float64 `param:"fluid_viscosity" validate:"gt=0"` // [Pa s]
	Efficiency float64 `param:"transfer_efficiency" validate:"gt=0,lte=1"`
}

// DefaultConfig returns the configuration of a small water transfer pump.
func DefaultConfig() Config {
	return Config{
		Capacity:   0.01,
		MaxHead:    50,
		TankVolume: 1,
		TankHeight: 1,
		PipeLength: 20,
		PipeDiam:   0.05,
		Density:    fluid.WaterDensity,
		Viscosity:  fluid.WaterViscosity,
		Efficiency: 0.85,
	}
}

// Pump is a batch transfer pump. Tank levels are fractions of the tank
// height; the pump delivers liquid against the static head between the
// tanks plus pipe friction.
type Pump struct {
	cfg   Config
	shape sproc.Shape
}

// New returns a new batch transfer pump.
func New(cfg Config) (*Pump, error) {
	if err := sproc.ValidateConfig(Type, cfg); err != nil {
		return nil, err
	}
	return &Pump{
		cfg: cfg,
		shape: sproc.Shape{
			Inputs: []sproc.Port{
				sproc.ScalarPort("source_level", "level", unit.Dimless, "level", 1, "Source tank level as a fraction of tank height"),
				sproc.ScalarPort("dest_level", "level", unit.Dimless, "level", 0, "Destination tank level as a fraction of tank height"),
				sproc.ScalarPort("speed", "speed", unit.Dimless, "speed", 1, "Pump speed as a fraction of rated speed"),
			},
			Outputs: []sproc.Port{
				sproc.ScalarPort("flow", "flow", sproc.Meter3PerSecond, "volumetric_flow", 0, "Transfer flow rate"),
				sproc.ScalarPort("transfer_time", "time", unit.Second, "", 0, "Time to empty the source tank"),
			},
			States: []sproc.Field{
				{Name: "flow", Units: sproc.Units(sproc.Meter3PerSecond)},
				{Name: "source_level", Units: sproc.Units(unit.Dimless), Range: "level"},
			},
		},
	}, nil
}

// Config returns the construction parameters.
func (p *Pump) Config() Config { return p.cfg }

// Shape fulfils the sproc.Unit interface.
func (p *Pump) Shape() sproc.Shape { return p.shape }

// flow returns the delivered flow [m³/s] and the remaining transfer
// time [s].
func (p *Pump) flow(source, dest, speed float64) (q, time float64) {
	c := p.cfg
	q = c.Capacity * speed * c.Efficiency
	if q <= 0 {
		return 0, 0
	}
	friction, _ := fluid.PipeHeadLoss(q, c.PipeLength, c.PipeDiam, c.Density, c.Viscosity)
	head := (dest-source)*c.TankHeight + friction
	if available := c.MaxHead * speed; head > available {
		q *= available / head
	}
	if source > 0 {
		time = source * c.TankVolume / q
	}
	return q, time
}

// SteadyState returns [flow, transfer_time] for the input
// [source_level, dest_level, speed].
func (p *Pump) SteadyState(u []float64) ([]float64, error) {
	if err := sproc.CheckInput(Type, p.shape, u); err != nil {
		return nil, err
	}
	q, t := p.flow(u[iSourceLevel], u[iDestLevel], u[iSpeed])
	return []float64{q, t}, nil
}

// Dynamics returns the rates of change of [flow, source_level]. The
// flow lags its steady-state value at the current source level, and
// the source tank drains until it is empty. The source_level input is
// not used: the level is a state.
func (p *Pump) Dynamics(_ float64, x, u []float64) ([]float64, error) {
	if err := sproc.CheckState(Type, p.shape, x); err != nil {
		return nil, err
	}
	if err := sproc.CheckInput(Type, p.shape, u); err != nil {
		return nil, err
	}
	q, level := x[iFlow], x[1]
	qss, _ := p.flow(level, u[iDestLevel], u[iSpeed])
	dx := []float64{(qss - q) / responseTime, 0}
	if level > 0 {
		dx[1] = -q / p.cfg.TankVolume
	}
	return dx, nil
}

// Describe fulfils the sproc.Unit interface.
func (p *Pump) Describe() *sproc.Metadata {
	c := p.cfg
	return &sproc.Metadata{
		Type:        Type,
		Description: "Batch liquid transfer pump moving the contents of a source tank to a destination tank through a pipe",
		Category:    "transport/batch/liquid",
		Algorithms: map[string]string{
			"steady_state": "Q = Q_max * s * η, reduced by H_max * s / H when H = (h_dest - h_src) * H_tank + f (L/D) v²/2g exceeds the pump head; t = h_src * V / Q",
			"dynamics":     "dQ/dt = (Q_ss - Q) / τ with τ = 5 s, dh/dt = -Q / V while the source tank holds liquid",
			"friction":     "Darcy friction factor: f = 64/Re (Re < 2300), f = 0.316 Re^-0.25 (turbulent)",
		},
		Parameters: map[string]sproc.Parameter{
			"pump_capacity":       sproc.Param(c.Capacity, sproc.Meter3PerSecond, "Rated pump capacity"),
			"pump_head_max":       sproc.Param(c.MaxHead, unit.Meter, "Shutoff head at rated speed"),
			"tank_volume":         sproc.Param(c.TankVolume, sproc.Meter3, "Source tank volume"),
			"tank_height":         sproc.Param(c.TankHeight, unit.Meter, "Height corresponding to a full tank"),
			"pipe_length":         sproc.Param(c.PipeLength, unit.Meter, "Transfer line length"),
			"pipe_diameter":       sproc.Param(c.PipeDiam, unit.Meter, "Transfer line diameter"),
			"fluid_density":       sproc.Param(c.Density, sproc.KilogramPerMeter3, "Liquid density"),
			"fluid_viscosity":     sproc.Param(c.Viscosity, sproc.PascalSecond, "Liquid dynamic viscosity"),
			"transfer_efficiency": sproc.Param(c.Efficiency, unit.Dimless, "Fraction of rated capacity delivered"),
		},
		StateVariables: sproc.DescribeStates(p.shape.States,
			"Transfer flow rate", "Source tank level"),
		Inputs:  sproc.DescribePorts(p.shape.Inputs),
		Outputs: sproc.DescribePorts(p.shape.Outputs),
		ValidRanges: map[string]sproc.Range{
			"level":               sproc.NewRange(0, 1, unit.Dimless),
			"speed":               sproc.NewRange(0, 1.2, unit.Dimless),
			"volumetric_flow":     sproc.NewRange(0, c.Capacity*1.2, sproc.Meter3PerSecond),
			"transfer_efficiency": sproc.NewRange(0, 1, unit.Dimless),
		},
		Applications: []string{
			"Batch transfer between process vessels",
			"Tank emptying and filling operations",
			"Chemical and pharmaceutical batch processing",
		},
		Limitations: []string{
			"Incompressible single-phase liquid",
			"Linear head reduction instead of a full pump curve",
			"Smooth-pipe friction correlations only",
			"First-order pump response",
		},
	}
}

// EmptyingTime returns the time [s] to empty a full source tank
// against an empty destination tank at rated speed. It returns +Inf if
// the pump cannot deliver any flow.
func (p *Pump) EmptyingTime() float64 {
	q, t := p.flow(1, 0, 1)
	if q <= 0 {
		return math.Inf(1)
	}
	return t
}
