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
	"bytes"
	"fmt"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Plant is a flowsheet of connected units. Build it with Add, Connect,
// SetInput and Free, then Compile it before calling Optimize. A Plant is
// not safe for concurrent use; the Configuration it compiles is.
type Plant struct {
	Name string

	// Log receives status messages. It defaults to the logrus
	// standard logger.
	Log logrus.FieldLogger

	graph   *Graph
	inputs  map[portRef][]float64
	free    []FreeVariable
	resolve ResolveOptions
	metrics *Metrics

	config     *Configuration
	resolution *Resolution
	result     *OptimizationResult
}

// PlantOption configures a new Plant.
type PlantOption func(*Plant) error

// WithLogger sets the logger used by the plant.
func WithLogger(l logrus.FieldLogger) PlantOption {
	return func(p *Plant) error {
		p.Log = l
		return nil
	}
}

// WithRegisterer records plant metrics on reg.
func WithRegisterer(reg prometheus.Registerer) PlantOption {
	return func(p *Plant) error {
		p.metrics = NewMetrics(reg)
		return nil
	}
}

// WithResolveOptions sets the options for resolving recycle loops.
func WithResolveOptions(o ResolveOptions) PlantOption {
	return func(p *Plant) error {
		if o.Tolerance < 0 || o.MaxIterations < 0 || o.MaxDuration < 0 {
			return fmt.Errorf("sproc: resolve options must not be negative")
		}
		p.resolve = o
		return nil
	}
}

// NewPlant returns an empty plant.
func NewPlant(name string, opts ...PlantOption) (*Plant, error) {
	p := &Plant{
		Name:    name,
		Log:     logrus.StandardLogger(),
		graph:   NewGraph(),
		inputs:  make(map[portRef][]float64),
		resolve: DefaultResolveOptions(),
	}
	for _, o := range opts {
		if err := o(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// changed discards compiled state after an edit.
func (p *Plant) changed() {
	p.config = nil
	p.resolution = nil
	p.result = nil
}

// Add adds unit u to the plant under name.
func (p *Plant) Add(u Unit, name string) error {
	if _, err := p.graph.AddNode(name, u); err != nil {
		return err
	}
	p.changed()
	return nil
}

// Units returns the names of the units in the plant, in the order they
// were added.
func (p *Plant) Units() []string {
	names := make([]string, p.graph.Len())
	for i := range names {
		names[i] = p.graph.Name(NodeID(i))
	}
	return names
}

// Unit returns the named unit.
func (p *Plant) Unit(name string) (Unit, bool) {
	id, ok := p.graph.Node(name)
	if !ok {
		return nil, false
	}
	return p.graph.Unit(id), true
}

func (p *Plant) node(name string) (NodeID, error) {
	id, ok := p.graph.Node(name)
	if !ok {
		return -1, topologyErrorf(name, "no such unit")
	}
	return id, nil
}

// Connect connects the first unconnected output port of unit from to
// the first unconnected input port of unit to that has the same width.
func (p *Plant) Connect(from, to string) error {
	f, err := p.node(from)
	if err != nil {
		return err
	}
	t, err := p.node(to)
	if err != nil {
		return err
	}
	op := p.graph.FreeOutput(f)
	if op < 0 {
		return topologyErrorf(from, "no unconnected output port")
	}
	ip := p.graph.FreeInput(t, p.graph.Shape(f).Outputs[op].Width())
	if ip < 0 {
		return topologyErrorf(to, "no unconnected input port matching output %s.%s",
			from, p.graph.Shape(f).Outputs[op].Name)
	}
	return p.connect(f, op, t, ip)
}

// ConnectPorts connects output port fromPort of unit from to input
// port toPort of unit to.
func (p *Plant) ConnectPorts(from, fromPort, to, toPort string) error {
	f, err := p.node(from)
	if err != nil {
		return err
	}
	t, err := p.node(to)
	if err != nil {
		return err
	}
	op, ok := p.graph.Shape(f).Output(fromPort)
	if !ok {
		return topologyErrorf(from, "no output port %q", fromPort)
	}
	ip, ok := p.graph.Shape(t).Input(toPort)
	if !ok {
		return topologyErrorf(to, "no input port %q", toPort)
	}
	return p.connect(f, op, t, ip)
}

func (p *Plant) connect(f NodeID, op int, t NodeID, ip int) error {
	if _, ok := p.inputs[portRef{t, ip}]; ok {
		return topologyErrorf(p.graph.Name(t), "input port %q has a fixed value",
			p.graph.Shape(t).Inputs[ip].Name)
	}
	for _, fv := range p.free {
		if fv.node == t && fv.port == ip {
			return topologyErrorf(p.graph.Name(t), "input port %q holds free variable %s",
				fv.Port, fv.Name)
		}
	}
	if _, err := p.graph.Connect(f, op, t, ip); err != nil {
		return err
	}
	p.changed()
	return nil
}

func (p *Plant) inputPort(unit, port string) (NodeID, int, error) {
	id, err := p.node(unit)
	if err != nil {
		return -1, -1, err
	}
	i, ok := p.graph.Shape(id).Input(port)
	if !ok {
		return -1, -1, topologyErrorf(unit, "no input port %q", port)
	}
	if _, ok := p.graph.InputStream(id, i); ok {
		return -1, -1, topologyErrorf(unit, "input port %q is connected to a stream", port)
	}
	return id, i, nil
}

// SetInput fixes the values of an unconnected input port.
func (p *Plant) SetInput(unit, port string, values []float64) error {
	id, i, err := p.inputPort(unit, port)
	if err != nil {
		return err
	}
	if w := p.graph.Shape(id).Inputs[i].Width(); len(values) != w {
		return &ShapeMismatchError{Unit: unit, Vector: "input port " + port, Want: w, Got: len(values)}
	}
	p.inputs[portRef{id, i}] = append([]float64(nil), values...)
	p.changed()
	return nil
}

// Free declares a field of an unconnected input port as a variable for
// the optimizer, bounded by lower and upper. A NaN bound is taken from
// the valid range of the field in the unit's metadata.
func (p *Plant) Free(unit, port, field string, lower, upper float64) error {
	id, i, err := p.inputPort(unit, port)
	if err != nil {
		return err
	}
	pt := p.graph.Shape(id).Inputs[i]
	j, ok := pt.Field(field)
	if !ok {
		return topologyErrorf(unit, "input port %q has no field %q", port, field)
	}
	if math.IsNaN(lower) || math.IsNaN(upper) {
		rng, ok := p.graph.Unit(id).Describe().ValidRanges[pt.Fields[j].Range]
		if !ok {
			return topologyErrorf(unit, "%s.%s has no valid range; bounds must be given", port, field)
		}
		if math.IsNaN(lower) {
			lower = rng.Min
		}
		if math.IsNaN(upper) {
			upper = rng.Max
		}
	}
	if math.IsInf(lower, 0) || math.IsInf(upper, 0) || lower > upper {
		return topologyErrorf(unit, "bounds [%g, %g] of free variable %s.%s are not finite and ordered",
			lower, upper, port, field)
	}
	name := VariableName(unit, port, field)
	for _, fv := range p.free {
		if fv.Name == name {
			return topologyErrorf(unit, "free variable %s is already declared", name)
		}
	}
	p.free = append(p.free, FreeVariable{
		Name: name, Unit: unit, Port: port, Field: field,
		Lower: lower, Upper: upper,
		node: id, port: i, field: j,
	})
	p.changed()
	return nil
}

// Compile validates the plant and fixes its topology, inputs and free
// variables into a Configuration for the given optimization method.
func (p *Plant) Compile(method string) (*Configuration, error) {
	if method == "" {
		method = NelderMead
	}
	if !validMethod(method) {
		return nil, topologyErrorf("", "unknown optimization method %q; want one of %s",
			method, strings.Join(Methods, ", "))
	}
	c, err := newConfiguration(p.Name, method, p.graph, p.inputs, p.free, p.resolve)
	if err != nil {
		return nil, err
	}
	p.config = c
	p.Log.WithFields(logrus.Fields{
		"plant":       p.Name,
		"units":       p.graph.Len(),
		"streams":     len(p.graph.streams),
		"free":        len(c.Free),
		"constraints": len(c.Constraints),
		"method":      method,
	}).Info("plant compiled")
	return c, nil
}

// Configuration returns the last compiled configuration, or nil if the
// plant has changed since it was compiled.
func (p *Plant) Configuration() *Configuration { return p.config }

// Resolve resolves the plant with its current inputs and the free
// variables at their initial values.
func (p *Plant) Resolve() (*Resolution, error) {
	c := p.config
	if c == nil {
		var err error
		c, err = newConfiguration(p.Name, NelderMead, p.graph, p.inputs, p.free, p.resolve)
		if err != nil {
			return nil, err
		}
	}
	r, err := c.Evaluate(c.Initial())
	if err != nil {
		return nil, err
	}
	p.metrics.observeResolution(r)
	log := p.Log.WithFields(logrus.Fields{
		"plant":  p.Name,
		"passes": r.Passes,
		"state":  r.State(),
	})
	for _, comp := range r.Components {
		if !comp.Converged {
			log.WithFields(logrus.Fields{
				"units":  strings.Join(comp.Units, ","),
				"reason": comp.Reason,
			}).Warn("recycle loop did not converge")
		}
	}
	log.Info("plant resolved")
	p.resolution = r
	p.result = nil
	return r, nil
}

// Optimize adjusts the free variables of the compiled plant to bring
// production to target while respecting the units' valid ranges. Pass
// a NaN target to optimize only an expression given with Minimizing.
func (p *Plant) Optimize(target float64, opts ...ObjectiveOption) (*OptimizationResult, error) {
	if p.config == nil {
		return nil, fmt.Errorf("sproc: plant %q must be compiled before it is optimized", p.Name)
	}
	o := DefaultObjective(target)
	for _, opt := range opts {
		opt(&o)
	}
	if math.IsNaN(o.Target) && o.Expression == "" {
		return nil, fmt.Errorf("sproc: plant %q: the objective has neither a target nor an expression", p.Name)
	}
	res, err := p.config.Optimize(o, p.Log, p.metrics)
	if err != nil {
		return nil, err
	}
	p.result = res
	p.resolution = res.Resolution
	return res, nil
}

// Simulate integrates the dynamics of the named unit from state x0 over
// [0, t1], holding its inputs at their values in the latest resolution
// (resolving the plant first if needed). Failures from non-finite values
// are retried twice with a tighter integrator.
func (p *Plant) Simulate(unit string, x0 []float64, t1 float64, in Integrator) (*Trajectory, error) {
	id, err := p.node(unit)
	if err != nil {
		return nil, err
	}
	if p.resolution == nil {
		if _, err := p.Resolve(); err != nil {
			return nil, err
		}
	}
	u := ConstantInput(append([]float64(nil), p.resolution.Inputs[id]...))
	log := p.Log.WithFields(logrus.Fields{"plant": p.Name, "unit": unit})
	tr, err := SimulateWithRetry(log, p.graph.Unit(id), x0, 0, t1, u, in, 2)
	if err != nil {
		return nil, err
	}
	p.metrics.observeSimulation(tr.Complete)
	entry := log.WithFields(logrus.Fields{
		"steps":    tr.Steps,
		"rejected": tr.Rejected,
		"complete": tr.Complete,
	})
	if tr.Complete {
		entry.Info("simulation finished")
	} else {
		entry.WithField("reason", tr.Reason).Warn("simulation stopped early")
	}
	return tr, nil
}

// Points returns the operating point of every unit in the latest
// resolution, or nil if the plant has not been resolved.
func (p *Plant) Points() []OperatingPoint {
	if p.resolution == nil {
		return nil
	}
	return p.graph.points(p.resolution)
}

// Summary returns a human-readable report of the latest optimization
// result or resolution.
func (p *Plant) Summary() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Plant %s: %d units, %d streams\n", p.Name, p.graph.Len(), len(p.graph.streams))

	r := p.resolution
	if r == nil {
		b.WriteString("Not resolved.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Resolution: %s after %d passes\n", r.State(), r.Passes)

	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Unit\tType\tInputs\tOutputs\t")
	for id := range p.graph.nodes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", p.graph.Name(NodeID(id)),
			p.graph.Unit(NodeID(id)).Describe().Type,
			formatVector(r.Inputs[id]), formatVector(r.Outputs[id]))
	}
	w.Flush()

	res := p.result
	if res == nil {
		return b.String()
	}
	fmt.Fprintf(&b, "\nOptimization %s (%s): %s\n", res.RunID, res.Method, res.Status)
	fmt.Fprintf(&b, "Objective %.6g, penalty %.3g, production %.6g\n", res.Objective, res.Penalty, res.Production)
	fmt.Fprintf(&b, "Converged: %v, feasible: %v, %d iterations, %d evaluations\n",
		res.Converged, res.Feasible, res.Iterations, res.Evaluations)
	if len(res.Free) > 0 {
		w = tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "Variable\tValue\tLower\tUpper\t")
		for i, f := range res.Free {
			fmt.Fprintf(w, "%s\t%.6g\t%g\t%g\t\n", f.Name, res.X[i], f.Lower, f.Upper)
		}
		w.Flush()
	}
	for _, v := range res.Violations {
		fmt.Fprintf(&b, "Violated: %v\n", v)
	}
	return b.String()
}

func formatVector(v []float64) string {
	s := make([]string, len(v))
	for i, x := range v {
		s[i] = fmt.Sprintf("%.4g", x)
	}
	return "[" + strings.Join(s, " ") + "]"
}
