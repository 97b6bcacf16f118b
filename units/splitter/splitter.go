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

// Package splitter contains a stream splitter with adjustable split
// fractions.
package splitter

import (
	"math"
	"strconv"

	"github.com/ctessum/unit"
	"github.com/spatialmodel/sproc"
)

// Type is the unit type name.
const Type = "Splitter"

// FractionRange is the valid range key of the split fractions.
const FractionRange = "split_fraction"

// Config holds the construction parameters of a Splitter.
type Config struct {
	Outlets      int     `param:"n_outlets" validate:"gte=2,lte=10"`
	PressureDrop float64 `param:"pressure_drop" validate:"gte=0"` // [Pa]
}

// DefaultConfig returns the configuration of a two-way splitter.
func DefaultConfig() Config {
	return Config{Outlets: 2}
}

// Splitter divides one stream into several streams with the same
// temperature and pressure.
//
// The inputs are the stream port "inlet" and the port "fractions" with
// the fractions of the inlet flow sent to outlets 1 to n-1. The last
// outlet takes the remainder. Unless set, the flow is split equally.
type Splitter struct {
	cfg   Config
	shape sproc.Shape
}

// New returns a new splitter.
func New(cfg Config) (*Splitter, error) {
	if err := sproc.ValidateConfig(Type, cfg); err != nil {
		return nil, err
	}
	n := cfg.Outlets
	fractions := sproc.Port{
		Name:        "fractions",
		Description: "Fraction of the inlet flow sent to each outlet but the last",
	}
	for i := 1; i < n; i++ {
		fractions.Fields = append(fractions.Fields, sproc.Field{
			Name:  "frac" + strconv.Itoa(i),
			Units: sproc.Units(unit.Dimless),
			Range: FractionRange,
		})
		fractions.Default = append(fractions.Default, 1/float64(n))
	}
	return &Splitter{
		cfg: cfg,
		shape: sproc.Shape{
			Inputs: []sproc.Port{
				sproc.StreamPort("inlet", "Inlet stream", true),
				fractions,
			},
			Outputs: sproc.StreamPorts("outlet", "Outlet stream", n),
		},
	}, nil
}

// Config returns the construction parameters.
func (s *Splitter) Config() Config { return s.cfg }

// Shape fulfils the sproc.Unit interface.
func (s *Splitter) Shape() sproc.Shape { return s.shape }

// Fractions returns the fraction of the inlet flow sent to each outlet
// for the requested fractions f. Each fraction is clamped to [0, 1],
// and fractions whose sum exceeds 1 are scaled down to sum to 1.
func Fractions(f []float64) []float64 {
	o := make([]float64, len(f)+1)
	var sum float64
	for i, v := range f {
		if math.IsNaN(v) {
			v = 0
		}
		o[i] = math.Min(math.Max(v, 0), 1)
		sum += o[i]
	}
	if sum > 1 {
		for i := range f {
			o[i] /= sum
		}
		sum = 1
	}
	o[len(f)] = 1 - sum
	return o
}

// SteadyState returns the outlet streams.
func (s *Splitter) SteadyState(u []float64) ([]float64, error) {
	if err := sproc.CheckInput(Type, s.shape, u); err != nil {
		return nil, err
	}
	flow := math.Max(u[sproc.FlowField], 0)
	t, p := u[sproc.TemperatureField], u[sproc.PressureField]-s.cfg.PressureDrop
	y := make([]float64, 0, s.shape.OutputLen())
	for _, f := range Fractions(u[sproc.StreamWidth:]) {
		y = append(y, flow*f, t, p)
	}
	return y, nil
}

// Dynamics fulfils the sproc.Unit interface. A splitter has no
// holdup and therefore no state.
func (s *Splitter) Dynamics(_ float64, x, u []float64) ([]float64, error) {
	if err := sproc.CheckState(Type, s.shape, x); err != nil {
		return nil, err
	}
	if err := sproc.CheckInput(Type, s.shape, u); err != nil {
		return nil, err
	}
	return []float64{}, nil
}

// Describe fulfils the sproc.Unit interface.
func (s *Splitter) Describe() *sproc.Metadata {
	c := s.cfg
	return &sproc.Metadata{
		Type:        Type,
		Description: "Stream splitter dividing one stream into several streams of equal temperature and pressure",
		Category:    "unit/splitter",
		Algorithms: map[string]string{
			"steady_state": "F_i = F_in * f_i, f_n = 1 - Σ f_i, T_i = T_in, P_i = P_in - ΔP",
			"dynamics":     "No holdup: outlet streams follow the inlet instantly",
		},
		Parameters: map[string]sproc.Parameter{
			"n_outlets":     sproc.Param(float64(c.Outlets), unit.Dimless, "Number of outlet streams"),
			"pressure_drop": sproc.Param(c.PressureDrop, sproc.Pascal, "Pressure drop across the splitter"),
		},
		StateVariables: map[string]string{},
		Inputs:         sproc.DescribePorts(s.shape.Inputs),
		Outputs:        sproc.DescribePorts(s.shape.Outputs),
		ValidRanges: map[string]sproc.Range{
			FractionRange:          sproc.NewRange(0, 1, unit.Dimless),
			sproc.FlowRange:        sproc.NewRange(0, math.Inf(1), sproc.KilogramPerSecond),
			sproc.TemperatureRange: sproc.NewRange(273.15, 673.15, sproc.Kelvin),
			sproc.PressureRange:    sproc.NewRange(1000, 10e6, sproc.Pascal),
		},
		Applications: []string{
			"Recycle and purge streams",
			"Distribution headers",
			"Bypass around process units",
		},
		Limitations: []string{
			"All outlets have the inlet composition and temperature",
			"Fractions above the physical limits are clamped",
		},
	}
}
