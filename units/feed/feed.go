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

// Package feed contains a source unit that supplies a material stream
// to a plant.
package feed

import (
	"math"

	"github.com/spatialmodel/sproc"
)

// Type is the unit type name.
const Type = "Feed"

// Config holds the construction parameters of a Feed.
type Config struct {
	Flow        float64 `param:"flow" validate:"gte=0"`            // [kg/s]
	MaxFlow     float64 `param:"max_flow" validate:"gt=0"`         // [kg/s]
	Temperature float64 `param:"temperature" validate:"gt=0"`      // [K]
	Pressure    float64 `param:"pressure" validate:"gt=0,lte=1e8"` // [Pa]
}

// DefaultConfig returns a 10 kg/s feed of water at ambient conditions.
func DefaultConfig() Config {
	return Config{
		Flow:        10,
		MaxFlow:     100,
		Temperature: 298.15,
		Pressure:    2e5,
	}
}

// Feed supplies a stream at a set flow rate. The flow can be changed
// through the "setpoint" input, which is how optimizers adjust feeds.
type Feed struct {
	cfg   Config
	shape sproc.Shape
}

// New returns a new feed.
func New(cfg Config) (*Feed, error) {
	if err := sproc.ValidateConfig(Type, cfg); err != nil {
		return nil, err
	}
	return &Feed{
		cfg: cfg,
		shape: sproc.Shape{
			Inputs: []sproc.Port{
				sproc.ScalarPort("setpoint", "flow", sproc.KilogramPerSecond, sproc.FlowRange, cfg.Flow, "Feed flow setpoint"),
			},
			Outputs: []sproc.Port{sproc.StreamPort("outlet", "Feed stream", false)},
		},
	}, nil
}

// Config returns the construction parameters.
func (f *Feed) Config() Config { return f.cfg }

// Shape fulfils the sproc.Unit interface.
func (f *Feed) Shape() sproc.Shape { return f.shape }

// SteadyState returns the feed stream. Negative setpoints give no flow.
func (f *Feed) SteadyState(u []float64) ([]float64, error) {
	if err := sproc.CheckInput(Type, f.shape, u); err != nil {
		return nil, err
	}
	return []float64{math.Max(u[0], 0), f.cfg.Temperature, f.cfg.Pressure}, nil
}

// Dynamics fulfils the sproc.Unit interface. A feed has no state.
func (f *Feed) Dynamics(_ float64, x, u []float64) ([]float64, error) {
	if err := sproc.CheckState(Type, f.shape, x); err != nil {
		return nil, err
	}
	if err := sproc.CheckInput(Type, f.shape, u); err != nil {
		return nil, err
	}
	return []float64{}, nil
}

// Describe fulfils the sproc.Unit interface.
func (f *Feed) Describe() *sproc.Metadata {
	c := f.cfg
	return &sproc.Metadata{
		Type:        Type,
		Description: "Material feed supplying a stream at a set flow rate, temperature and pressure",
		Category:    "source/feed",
		Algorithms: map[string]string{
			"steady_state": "F_out = max(F_set, 0), T_out = T_feed, P_out = P_feed",
			"dynamics":     "No state: the feed responds instantly to its setpoint",
		},
		Parameters: map[string]sproc.Parameter{
			"flow":        sproc.Param(c.Flow, sproc.KilogramPerSecond, "Default flow setpoint"),
			"max_flow":    sproc.Param(c.MaxFlow, sproc.KilogramPerSecond, "Largest flow the supply can deliver"),
			"temperature": sproc.Param(c.Temperature, sproc.Kelvin, "Feed temperature"),
			"pressure":    sproc.Param(c.Pressure, sproc.Pascal, "Feed pressure"),
		},
		StateVariables: map[string]string{},
		Inputs:         sproc.DescribePorts(f.shape.Inputs),
		Outputs:        sproc.DescribePorts(f.shape.Outputs),
		ValidRanges: map[string]sproc.Range{
			sproc.FlowRange:        sproc.NewRange(0, c.MaxFlow, sproc.KilogramPerSecond),
			sproc.TemperatureRange: sproc.NewRange(273.15, 673.15, sproc.Kelvin),
			sproc.PressureRange:    sproc.NewRange(1000, 10e6, sproc.Pascal),
		},
		Applications: []string{
			"Raw material supply to a flowsheet",
			"Utility water and make-up streams",
		},
		Limitations: []string{
			"Fixed composition, temperature and pressure",
			"No supply dynamics",
		},
	}
}
