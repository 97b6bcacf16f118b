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

// Package mixer contains a stream mixer with mass and energy balances.
package mixer

import (
	"math"

	"github.com/ctessum/unit"
	"github.com/spatialmodel/sproc"
	"github.com/spatialmodel/sproc/internal/fluid"
)

// Type is the unit type name.
const Type = "Mixer"

// Config holds the construction parameters of a Mixer.
type Config struct {
	// Inlets is the number of inlet streams.
	Inlets int `param:"n_inlets" validate:"gte=2,lte=10"`

	// MixingEfficiency blends the outlet temperature between the
	// ambient temperature (0) and the mass-weighted inlet temperature (1).
	MixingEfficiency float64 `param:"mixing_efficiency" validate:"gte=0.5,lte=1"`

	Volume            float64 `param:"volume" validate:"gte=0.001,lte=1000"`        // [m³]
	HeatTransferCoeff float64 `param:"heat_transfer_coeff" validate:"gte=0"`        // [W/K]
	AmbientTemp       float64 `param:"ambient_temp" validate:"gte=200,lte=400"`     // [K]
	PressureDrop      float64 `param:"pressure_drop" validate:"gte=0,lte=10000000"` // [Pa]
}

// DefaultConfig returns the configuration of a two-inlet adiabatic mixer.
func DefaultConfig() Config {
	return Config{
		Inlets:           2,
		MixingEfficiency: 0.95,
		Volume:           1.0,
		AmbientTemp:      298.15,
	}
}

// Mixer combines several inlet streams into one outlet stream.
//
// Inputs are n stream ports "inlet1"..."inletN" and the output is the
// stream port "outlet". The dynamic state is [mass, energy].
type Mixer struct {
	cfg   Config
	shape sproc.Shape
}

// New returns a new mixer, or a *sproc.ParameterRangeError if a
// parameter is out of range.
func New(cfg Config) (*Mixer, error) {
	if err := sproc.ValidateConfig(Type, cfg); err != nil {
		return nil, err
	}
	return &Mixer{
		cfg: cfg,
		shape: sproc.Shape{
			Inputs:  sproc.StreamPorts("inlet", "Inlet stream", cfg.Inlets),
			Outputs: []sproc.Port{sproc.StreamPort("outlet", "Mixed outlet stream", false)},
			States: []sproc.Field{
				{Name: "mass", Units: sproc.Units(unit.Kilogram)},
				{Name: "energy", Units: sproc.Units(unit.Joule)},
			},
		},
	}, nil
}

// Config returns the construction parameters.
func (m *Mixer) Config() Config { return m.cfg }

// Shape fulfils the sproc.Unit interface.
func (m *Mixer) Shape() sproc.Shape { return m.shape }

// inlet returns the flow, temperature and pressure of inlet i. Reverse
// flow through an inlet is treated as no flow.
func inlet(u []float64, i int) (flow, t, p float64) {
	off := i * sproc.StreamWidth
	flow = math.Max(u[off+sproc.FlowField], 0)
	return flow, u[off+sproc.TemperatureField], u[off+sproc.PressureField]
}

// SteadyState returns the outlet stream [flow, T, P] for the inlet
// streams in u.
func (m *Mixer) SteadyState(u []float64) ([]float64, error) {
	if err := sproc.CheckInput(Type, m.shape, u); err != nil {
		return nil, err
	}
	var total, heat float64
	minP, minFlowingP := math.Inf(1), math.Inf(1)
	for i := 0; i < m.cfg.Inlets; i++ {
		f, t, p := inlet(u, i)
		total += f
		heat += f * t
		minP = math.Min(minP, p)
		if f > 0 {
			minFlowingP = math.Min(minFlowingP, p)
		}
	}
	ta := m.cfg.AmbientTemp
	if total <= 0 {
		return []float64{0, ta, minP}, nil
	}
	t := ta + m.cfg.MixingEfficiency*(heat/total-ta)
	if ua := m.cfg.HeatTransferCoeff; ua > 0 {
		// Implicit in the outlet temperature, so the loss never carries
		// the stream past ambient.
		mcp := total * fluid.WaterCp
		t = ta + (t-ta)*mcp/(mcp+ua)
	}
	return []float64{total, t, minFlowingP - m.cfg.PressureDrop}, nil
}

// Dynamics returns the rates of change of the mixer contents [mass,
// energy]. The outlet is level controlled: it matches the total inlet
// flow while the mixer holds any mass.
func (m *Mixer) Dynamics(_ float64, x, u []float64) ([]float64, error) {
	if err := sproc.CheckState(Type, m.shape, x); err != nil {
		return nil, err
	}
	if err := sproc.CheckInput(Type, m.shape, u); err != nil {
		return nil, err
	}
	mass, energy := x[0], x[1]
	cp := fluid.WaterCp
	t := m.cfg.AmbientTemp
	if mass > 0 {
		t = energy / (mass * cp)
	}
	var in, heatIn float64
	for i := 0; i < m.cfg.Inlets; i++ {
		f, ti, _ := inlet(u, i)
		in += f
		heatIn += f * cp * ti
	}
	var out float64
	if mass > 0 {
		out = in
	}
	loss := m.cfg.HeatTransferCoeff * (t - m.cfg.AmbientTemp)
	return []float64{
		in - out,
		heatIn - out*cp*t - loss,
	}, nil
}

// Describe fulfils the sproc.Unit interface.
func (m *Mixer) Describe() *sproc.Metadata {
	c := m.cfg
	return &sproc.Metadata{
		Type:        Type,
		Description: "Stream mixer model for combining multiple input streams with mass and energy balances",
		Category:    "unit/mixer",
		Algorithms: map[string]string{
			"steady_state":   "Mass-weighted mixing: T_mix = Ta + η (Σ(m_i * T_i) / Σ(m_i) - Ta), T_out = Ta + (T_mix - Ta) m cp / (m cp + UA), P_out = min(P_i) - ΔP",
			"dynamics":       "Dynamic mass and energy balances: dm/dt = Σ(m_in) - m_out, dE/dt = Σ(m_in*cp*T_in) - m_out*cp*T_out - Q_loss",
			"energy_balance": "Energy conservation with heat transfer: E = m * cp * T",
		},
		Parameters: map[string]sproc.Parameter{
			"n_inlets":            sproc.Param(float64(c.Inlets), unit.Dimless, "Number of inlet streams (typically 2-6 for industrial mixers)"),
			"mixing_efficiency":   sproc.Param(c.MixingEfficiency, unit.Dimless, "Mixing efficiency (0.90-0.99 for good mixing, 0.80-0.95 for moderate mixing)"),
			"volume":              sproc.Param(c.Volume, sproc.Meter3, "Mixer volume for dynamic calculations"),
			"heat_transfer_coeff": sproc.Param(c.HeatTransferCoeff, sproc.WattPerKelvin, "Overall heat transfer coefficient to environment"),
			"ambient_temp":        sproc.Param(c.AmbientTemp, sproc.Kelvin, "Ambient temperature for heat transfer calculations"),
			"pressure_drop":       sproc.Param(c.PressureDrop, sproc.Pascal, "Pressure drop across the mixer due to mixing and fittings"),
		},
		StateVariables: sproc.DescribeStates(m.shape.States,
			"Total mass in mixer", "Total thermal energy in mixer"),
		Inputs:  sproc.DescribePorts(m.shape.Inputs),
		Outputs: sproc.DescribePorts(m.shape.Outputs),
		ValidRanges: map[string]sproc.Range{
			"mixing_efficiency":    sproc.NewRange(0.5, 1.0, unit.Dimless),
			"n_inlets":             sproc.NewRange(2, 10, unit.Dimless),
			"volume":               sproc.NewRange(0.001, 1000, sproc.Meter3),
			sproc.FlowRange:        sproc.NewRange(0, math.Inf(1), sproc.KilogramPerSecond),
			sproc.TemperatureRange: sproc.NewRange(273.15, 673.15, sproc.Kelvin),
			sproc.PressureRange:    sproc.NewRange(1000, 10e6, sproc.Pascal),
		},
		Applications: []string{
			"Chemical process mixing operations",
			"Water treatment blending",
			"Food and beverage processing",
			"Pharmaceutical manufacturing",
			"Petroleum refining stream combining",
			"Wastewater treatment chemical addition",
			"HVAC system stream mixing",
			"Polymer processing additive mixing",
		},
		Limitations: []string{
			"Assumes constant specific heat capacity",
			"No chemical reactions considered",
			"Perfect mixing assumption (no concentration gradients)",
			"Single-phase liquid mixing only",
			"No consideration of viscosity effects",
			"Simplified heat transfer model",
		},
	}
}
