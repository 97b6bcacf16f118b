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

// Package fluid holds physical constants and correlations for
// incompressible liquid flow shared by the unit models.
package fluid

import "math"

// Physical constants and the properties of water near room temperature.
const (
	Gravity        = 9.81   // m/s2
	WaterDensity   = 1000.0 // kg/m3
	WaterViscosity = 1e-3   // Pa s
	WaterCp        = 4186.0 // J/kg/K
	Atmosphere     = 101325.0

	// LaminarLimit is the Reynolds number below which pipe flow is
	// treated as laminar.
	LaminarLimit = 2300.0
)

// PipeArea returns the cross-sectional area [m2] of a pipe with diameter d [m].
func PipeArea(d float64) float64 { return math.Pi * d * d / 4 }

// Velocity returns the mean velocity [m/s] of volumetric flow q [m3/s] in a
// pipe of diameter d [m]. It returns 0 for a non-positive diameter.
func Velocity(q, d float64) float64 {
	if d <= 0 {
		return 0
	}
	return q / PipeArea(d)
}

// Reynolds returns the Reynolds number. It returns 0 when the viscosity
// is not positive.
func Reynolds(density, velocity, d, viscosity float64) float64 {
	if viscosity <= 0 {
		return 0
	}
	return density * math.Abs(velocity) * d / viscosity
}

// FrictionFactor returns the Darcy friction factor: 64/Re for laminar
// flow and the Blasius correlation 0.316 Re^-0.25 otherwise. At zero
// Reynolds number there is no flow and the factor is 0.
func FrictionFactor(re float64) float64 {
	switch {
	case re <= 0:
		return 0
	case re < LaminarLimit:
		return 64 / re
	default:
		return 0.316 * math.Pow(re, -0.25)
	}
}

// HeadLoss returns the Darcy-Weisbach head loss [m] for friction factor f
// over a pipe of length l [m] and diameter d [m] at velocity v [m/s].
func HeadLoss(f, l, d, v float64) float64 {
	if d <= 0 {
		return 0
	}
	return f * (l / d) * v * v / (2 * Gravity)
}

// PipeHeadLoss returns the friction head loss [m] and Reynolds number for
// volumetric flow q [m3/s] of a fluid with the given density and viscosity
// through a pipe.
func PipeHeadLoss(q, length, d, density, viscosity float64) (head, re float64) {
	v := Velocity(q, d)
	re = Reynolds(density, v, d, viscosity)
	return HeadLoss(FrictionFactor(re), length, d, v), re
}

// Head converts pressure difference dp [Pa] into liquid head [m].
func Head(dp, density float64) float64 {
	if density <= 0 {
		return 0
	}
	return dp / (density * Gravity)
}

// Pressure converts liquid head h [m] into pressure difference [Pa].
func Pressure(h, density float64) float64 { return density * Gravity * h }
