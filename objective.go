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
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Knetic/govaluate"
	"gonum.org/v1/gonum/floats"
)

// ProductionVariable is the name under which the measured production
// is available to objective expressions.
const ProductionVariable = "production"

// Objective specifies what the plant optimizer minimizes and when it
// stops. Use ObjectiveOptions to change the defaults.
type Objective struct {
	// Target is the desired production. NaN disables the production
	// term.
	Target float64

	// Production names the output field "unit.port.field" whose value
	// is the production. If empty, production is the total flow of all
	// stream outputs that are not connected to another unit.
	Production string

	// Expression, if not empty, is added to the objective. It can use
	// the output variables of the plant (see VariableName), the free
	// variables, the production, and the functions in Functions.
	Expression string
	Functions  map[string]govaluate.ExpressionFunction

	// PenaltyWeight multiplies the squared constraint violations and
	// bound excursions of a trial point.
	PenaltyWeight float64

	// The optimizer has converged when the objective has not improved
	// by more than Tolerance (absolute or relative) in Patience
	// consecutive iterations.
	Tolerance float64
	Patience  int

	MaxIterations  int
	MaxEvaluations int
	MaxDuration    time.Duration

	// CacheSize is the number of trial evaluations kept per run.
	CacheSize int
}

// ObjectiveOption changes an Objective.
type ObjectiveOption func(*Objective)

// DefaultObjective returns the objective used for a target production
// when no options are given.
func DefaultObjective(target float64) Objective {
	return Objective{
		Target:         target,
		PenaltyWeight:  1e3,
		Tolerance:      1e-9,
		Patience:       20,
		MaxIterations:  500,
		MaxEvaluations: 5000,
		CacheSize:      1024,
	}
}

// withDefaults fills unset limits from DefaultObjective.
func (o Objective) withDefaults() Objective {
	d := DefaultObjective(o.Target)
	if o.PenaltyWeight <= 0 {
		o.PenaltyWeight = d.PenaltyWeight
	}
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.Patience <= 0 {
		o.Patience = d.Patience
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.MaxEvaluations <= 0 {
		o.MaxEvaluations = d.MaxEvaluations
	}
	if o.CacheSize <= 0 {
		o.CacheSize = d.CacheSize
	}
	return o
}

// ProductionOf measures production as the named output field.
func ProductionOf(unit, port, field string) ObjectiveOption {
	return func(o *Objective) { o.Production = unit + "." + port + "." + field }
}

// Minimizing adds an expression to the objective.
func Minimizing(expression string) ObjectiveOption {
	return func(o *Objective) { o.Expression = expression }
}

// WithFunctions makes functions available to the objective expression.
func WithFunctions(f map[string]govaluate.ExpressionFunction) ObjectiveOption {
	return func(o *Objective) {
		if o.Functions == nil {
			o.Functions = make(map[string]govaluate.ExpressionFunction)
		}
		for k, v := range f {
			o.Functions[k] = v
		}
	}
}

// PenaltyWeight sets the weight of constraint violations.
func PenaltyWeight(w float64) ObjectiveOption {
	return func(o *Objective) { o.PenaltyWeight = w }
}

// Tolerance sets the convergence tolerance and patience.
func Tolerance(tol float64, patience int) ObjectiveOption {
	return func(o *Objective) {
		o.Tolerance = tol
		o.Patience = patience
	}
}

// Budget sets the iteration, evaluation and wall-clock limits. Zero
// values leave the corresponding limit unchanged.
func Budget(iterations, evaluations int, d time.Duration) ObjectiveOption {
	return func(o *Objective) {
		if iterations > 0 {
			o.MaxIterations = iterations
		}
		if evaluations > 0 {
			o.MaxEvaluations = evaluations
		}
		if d > 0 {
			o.MaxDuration = d
		}
	}
}

// VariableName returns the name of an output or free variable in
// objective expressions: unit, port and field joined by underscores,
// with characters that are not letters, digits or underscores replaced
// by underscores.
func VariableName(unit, port, field string) string {
	return sanitize(unit) + "_" + sanitize(port) + "_" + sanitize(field)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, s)
}

// defaultFunctions are available in every objective expression.
func defaultFunctions() map[string]govaluate.ExpressionFunction {
	unary := func(name string, f func(float64) float64) govaluate.ExpressionFunction {
		return func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("sproc: got %d arguments for function '%s', but needs 1", len(arg), name)
			}
			v, ok := arg[0].(float64)
			if !ok {
				return nil, fmt.Errorf("sproc: argument to '%s' is not a number", name)
			}
			return f(v), nil
		}
	}
	numbers := func(name string, arg []interface{}) ([]float64, error) {
		if len(arg) == 0 {
			return nil, fmt.Errorf("sproc: function '%s' needs at least 1 argument", name)
		}
		v := make([]float64, len(arg))
		for i, a := range arg {
			f, ok := a.(float64)
			if !ok {
				return nil, fmt.Errorf("sproc: argument %d to '%s' is not a number", i, name)
			}
			v[i] = f
		}
		return v, nil
	}
	return map[string]govaluate.ExpressionFunction{
		"exp":  unary("exp", math.Exp),
		"log":  unary("log", math.Log),
		"sqrt": unary("sqrt", math.Sqrt),
		"abs":  unary("abs", math.Abs),
		"sum": func(arg ...interface{}) (interface{}, error) {
			v, err := numbers("sum", arg)
			if err != nil {
				return nil, err
			}
			return floats.Sum(v), nil
		},
		"max": func(arg ...interface{}) (interface{}, error) {
			v, err := numbers("max", arg)
			if err != nil {
				return nil, err
			}
			return floats.Max(v), nil
		},
		"min": func(arg ...interface{}) (interface{}, error) {
			v, err := numbers("min", arg)
			if err != nil {
				return nil, err
			}
			return floats.Min(v), nil
		},
	}
}

// fieldRef locates one value in a node's output vector.
type fieldRef struct {
	node   NodeID
	offset int
}

// objective is an Objective bound to a Configuration.
type objective struct {
	Objective
	production []fieldRef
	expr       *govaluate.EvaluableExpression
	vars       map[string]fieldRef // output variables used by expr
}

// bind resolves the names used by o against the configuration.
func (c *Configuration) bind(o Objective) (*objective, error) {
	b := &objective{Objective: o}
	g := c.Graph
	if o.Production != "" {
		parts := strings.Split(o.Production, ".")
		if len(parts) != 3 {
			return nil, fmt.Errorf("sproc: production %q is not of the form unit.port.field", o.Production)
		}
		ref, err := outputRef(g, parts[0], parts[1], parts[2])
		if err != nil {
			return nil, err
		}
		b.production = []fieldRef{ref}
	} else {
		for id := range g.nodes {
			s := g.nodes[id].shape
			for i, p := range s.Outputs {
				if g.nodes[id].out[i] != none || p.Width() != StreamWidth || p.Fields[FlowField].Range != FlowRange {
					continue
				}
				b.production = append(b.production, fieldRef{NodeID(id), s.OutputOffset(i) + FlowField})
			}
		}
	}

	if o.Expression == "" {
		return b, nil
	}
	funcs := defaultFunctions()
	for k, v := range o.Functions {
		funcs[k] = v
	}
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(o.Expression, funcs)
	if err != nil {
		return nil, fmt.Errorf("sproc: objective expression: %v", err)
	}
	outputs := c.outputVariables()
	free := make(map[string]bool)
	for _, f := range c.Free {
		free[f.Name] = true
	}
	b.vars = make(map[string]fieldRef)
	for _, v := range expr.Vars() {
		if ref, ok := outputs[v]; ok {
			b.vars[v] = ref
		} else if !free[v] && v != ProductionVariable {
			return nil, fmt.Errorf("sproc: objective expression: undefined variable name '%s'", v)
		}
	}
	b.expr = expr
	return b, nil
}

// outputVariables maps the names of all output fields to their location.
func (c *Configuration) outputVariables() map[string]fieldRef {
	g := c.Graph
	o := make(map[string]fieldRef)
	for id, n := range g.nodes {
		for i, p := range n.shape.Outputs {
			off := n.shape.OutputOffset(i)
			for j, f := range p.Fields {
				o[VariableName(n.name, p.Name, f.Name)] = fieldRef{NodeID(id), off + j}
			}
		}
	}
	return o
}

// OutputVariables returns the sorted names of the output variables
// available to objective expressions.
func (c *Configuration) OutputVariables() []string {
	var names []string
	for k := range c.outputVariables() {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func outputRef(g *Graph, unit, port, field string) (fieldRef, error) {
	id, ok := g.Node(unit)
	if !ok {
		return fieldRef{}, topologyErrorf(unit, "no such unit")
	}
	s := g.nodes[id].shape
	i, ok := s.Output(port)
	if !ok {
		return fieldRef{}, topologyErrorf(unit, "no output port %q", port)
	}
	j, ok := s.Outputs[i].Field(field)
	if !ok {
		return fieldRef{}, topologyErrorf(unit, "output port %q has no field %q", port, field)
	}
	return fieldRef{id, s.OutputOffset(i) + j}, nil
}

func (ref fieldRef) value(r *Resolution) float64 {
	out := r.Outputs[ref.node]
	if ref.offset >= len(out) {
		return math.NaN()
	}
	return out[ref.offset]
}

// measure returns the production of resolution r.
func (o *objective) measure(r *Resolution) float64 {
	var p float64
	for _, ref := range o.production {
		p += ref.value(r)
	}
	return p
}

// value returns the objective for resolution r at free variable values x.
func (o *objective) value(r *Resolution, free []FreeVariable, x []float64) (float64, error) {
	var f float64
	p := o.measure(r)
	if !math.IsNaN(o.Target) {
		scale := math.Abs(o.Target)
		if scale == 0 {
			scale = 1
		}
		d := (p - o.Target) / scale
		f += d * d
	}
	if o.expr == nil {
		return f, nil
	}
	params := make(map[string]interface{}, len(o.vars)+len(free)+1)
	for k, ref := range o.vars {
		params[k] = ref.value(r)
	}
	for i, fv := range free {
		params[fv.Name] = x[i]
	}
	params[ProductionVariable] = p
	v, err := o.expr.Evaluate(params)
	if err != nil {
		return math.NaN(), fmt.Errorf("sproc: objective expression: %v", err)
	}
	e, ok := v.(float64)
	if !ok {
		return math.NaN(), fmt.Errorf("sproc: objective expression returned %T, not a number", v)
	}
	return f + e, nil
}
