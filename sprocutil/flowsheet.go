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

package sprocutil

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/spatialmodel/sproc"
	"github.com/spatialmodel/sproc/internal/hash"
	"gopkg.in/yaml.v3"
)

// Flowsheet is the file representation of a plant.
type Flowsheet struct {
	Name      string        `toml:"name" yaml:"name" validate:"required"`
	Units     []UnitSpec    `toml:"unit" yaml:"units" validate:"required,dive"`
	Streams   []StreamSpec  `toml:"stream" yaml:"streams" validate:"dive"`
	Inputs    []InputSpec   `toml:"input" yaml:"inputs" validate:"dive"`
	Free      []FreeSpec    `toml:"free" yaml:"free" validate:"dive"`
	Objective ObjectiveSpec `toml:"objective" yaml:"objective"`
	Resolve   ResolveSpec   `toml:"resolve" yaml:"resolve"`
}

// UnitSpec declares one unit. Params are keyed by parameter name.
type UnitSpec struct {
	Name   string                 `toml:"name" yaml:"name" validate:"required"`
	Type   string                 `toml:"type" yaml:"type" validate:"required"`
	Params map[string]interface{} `toml:"params" yaml:"params"`
}

// StreamSpec connects two units. If the ports are omitted, the first
// unconnected compatible ports are used.
type StreamSpec struct {
	From     string `toml:"from" yaml:"from" validate:"required"`
	FromPort string `toml:"from_port" yaml:"from_port" validate:"required_with=ToPort"`
	To       string `toml:"to" yaml:"to" validate:"required"`
	ToPort   string `toml:"to_port" yaml:"to_port" validate:"required_with=FromPort"`
}

// InputSpec fixes the values of an unconnected input port.
type InputSpec struct {
	Unit   string    `toml:"unit" yaml:"unit" validate:"required"`
	Port   string    `toml:"port" yaml:"port" validate:"required"`
	Values []float64 `toml:"values" yaml:"values" validate:"required,min=1"`
}

// FreeSpec declares a free variable. If Lower and Upper are both zero,
// the bounds are taken from the valid range of the field.
type FreeSpec struct {
	Unit  string  `toml:"unit" yaml:"unit" validate:"required"`
	Port  string  `toml:"port" yaml:"port" validate:"required"`
	Field string  `toml:"field" yaml:"field" validate:"required"`
	Lower float64 `toml:"lower" yaml:"lower"`
	Upper float64 `toml:"upper" yaml:"upper" validate:"gtefield=Lower"`
}

// ObjectiveSpec holds the optimization objective. A zero Target together
// with an Expression optimizes the expression alone.
type ObjectiveSpec struct {
	Method         string  `toml:"method" yaml:"method" validate:"omitempty,oneof=neldermead bfgs"`
	Target         float64 `toml:"target" yaml:"target"`
	Production     string  `toml:"production" yaml:"production"`
	Expression     string  `toml:"expression" yaml:"expression"`
	PenaltyWeight  float64 `toml:"penalty_weight" yaml:"penalty_weight" validate:"gte=0"`
	Tolerance      float64 `toml:"tolerance" yaml:"tolerance" validate:"gte=0"`
	MaxIterations  int     `toml:"max_iterations" yaml:"max_iterations" validate:"gte=0"`
	MaxEvaluations int     `toml:"max_evaluations" yaml:"max_evaluations" validate:"gte=0"`
}

// ResolveSpec holds the recycle loop settings. Zero values keep the
// defaults.
type ResolveSpec struct {
	Tolerance     float64 `toml:"tolerance" yaml:"tolerance" validate:"gte=0"`
	MaxIterations int     `toml:"max_iterations" yaml:"max_iterations" validate:"gte=0"`
}

var validate = validator.New()

// LoadFlowsheet reads a flowsheet from a TOML (.toml) or YAML (.yaml,
// .yml) file. The path can contain environment variables.
func LoadFlowsheet(path string) (*Flowsheet, error) {
	path = os.ExpandEnv(path)
	fs := new(Flowsheet)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, fs); err != nil {
			return nil, fmt.Errorf("sprocutil: problem reading flowsheet: %v", err)
		}
	case ".yaml", ".yml":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("sprocutil: problem reading flowsheet: %v", err)
		}
		if err := yaml.Unmarshal(b, fs); err != nil {
			return nil, fmt.Errorf("sprocutil: problem reading flowsheet: %v", err)
		}
	default:
		return nil, fmt.Errorf("sprocutil: flowsheet file %s must have extension .toml, .yaml or .yml", path)
	}
	if err := fs.Validate(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Validate checks that the required flowsheet fields are present.
func (fs *Flowsheet) Validate() error {
	err := validate.Struct(fs)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msg := make([]string, len(verrs))
		for i, fe := range verrs {
			msg[i] = fmt.Sprintf("%s fails '%s'", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("sprocutil: invalid flowsheet: %s", strings.Join(msg, "; "))
	}
	return fmt.Errorf("sprocutil: invalid flowsheet: %v", err)
}

// Fingerprint returns a key that identifies the contents of the
// flowsheet, for matching results to the flowsheet that produced them.
func (fs *Flowsheet) Fingerprint() string { return hash.Hash(fs) }

// Build creates the plant described by the flowsheet.
func (fs *Flowsheet) Build(opts ...sproc.PlantOption) (*sproc.Plant, error) {
	if fs.Resolve.Tolerance > 0 || fs.Resolve.MaxIterations > 0 {
		ro := sproc.DefaultResolveOptions()
		if fs.Resolve.Tolerance > 0 {
			ro.Tolerance = fs.Resolve.Tolerance
		}
		if fs.Resolve.MaxIterations > 0 {
			ro.MaxIterations = fs.Resolve.MaxIterations
		}
		opts = append([]sproc.PlantOption{sproc.WithResolveOptions(ro)}, opts...)
	}
	p, err := sproc.NewPlant(fs.Name, opts...)
	if err != nil {
		return nil, err
	}
	for _, u := range fs.Units {
		unit, err := NewUnit(u.Type, u.Params)
		if err != nil {
			return nil, fmt.Errorf("sprocutil: unit %s: %w", u.Name, err)
		}
		if err := p.Add(unit, u.Name); err != nil {
			return nil, err
		}
	}
	for _, s := range fs.Streams {
		if s.FromPort == "" {
			err = p.Connect(s.From, s.To)
		} else {
			err = p.ConnectPorts(s.From, s.FromPort, s.To, s.ToPort)
		}
		if err != nil {
			return nil, err
		}
	}
	for _, in := range fs.Inputs {
		if err := p.SetInput(in.Unit, in.Port, in.Values); err != nil {
			return nil, err
		}
	}
	for _, f := range fs.Free {
		lower, upper := f.Lower, f.Upper
		if lower == 0 && upper == 0 {
			lower, upper = math.NaN(), math.NaN()
		}
		if err := p.Free(f.Unit, f.Port, f.Field, lower, upper); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ObjectiveOptions returns the optimization target and the options
// given in the objective section.
func (fs *Flowsheet) ObjectiveOptions() (float64, []sproc.ObjectiveOption) {
	o := fs.Objective
	target := o.Target
	if target == 0 && o.Expression != "" {
		target = math.NaN()
	}
	var opts []sproc.ObjectiveOption
	if o.Production != "" {
		parts := strings.SplitN(o.Production, ".", 3)
		if len(parts) == 3 {
			opts = append(opts, sproc.ProductionOf(parts[0], parts[1], parts[2]))
		} else {
			// Let the optimizer report the malformed name.
			opts = append(opts, func(obj *sproc.Objective) { obj.Production = o.Production })
		}
	}
	if o.Expression != "" {
		opts = append(opts, sproc.Minimizing(o.Expression))
	}
	if o.PenaltyWeight > 0 {
		opts = append(opts, sproc.PenaltyWeight(o.PenaltyWeight))
	}
	if o.Tolerance > 0 {
		opts = append(opts, sproc.Tolerance(o.Tolerance, 0))
	}
	opts = append(opts, sproc.Budget(o.MaxIterations, o.MaxEvaluations, 0))
	return target, opts
}
