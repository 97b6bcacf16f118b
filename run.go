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
	"time"

	"gonum.org/v1/gonum/floats"
)

// ResolutionState is the state of a Resolution.
type ResolutionState int

// These are the possible resolution states.
const (
	Unresolved ResolutionState = iota
	Resolved
	Unconverged
)

func (s ResolutionState) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Resolved:
		return "resolved"
	case Unconverged:
		return "unconverged"
	default:
		return fmt.Sprintf("ResolutionState(%d)", int(s))
	}
}

// Reasons a component stops iterating without converging.
const (
	ReasonIterations = "iteration limit reached"
	ReasonTime       = "time limit reached"
	ReasonNonFinite  = "non-finite stream values"
)

// ResolveOptions control the iteration of recycle loops.
type ResolveOptions struct {
	// Tolerance is the maximum relative change of any stream value
	// between passes for a recycle loop to be considered converged.
	Tolerance float64

	// MaxIterations is the maximum number of passes over a recycle loop.
	MaxIterations int

	// MaxDuration, if > 0, bounds the wall-clock time spent on one
	// resolution.
	MaxDuration time.Duration

	// Floor is the magnitude below which changes are measured in
	// absolute rather than relative terms.
	Floor float64
}

// DefaultResolveOptions returns the options used when none are specified.
func DefaultResolveOptions() ResolveOptions {
	return ResolveOptions{
		Tolerance:     1e-6,
		MaxIterations: 200,
		Floor:         1e-9,
	}
}

func (o ResolveOptions) withDefaults() ResolveOptions {
	d := DefaultResolveOptions()
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.Floor <= 0 {
		o.Floor = d.Floor
	}
	return o
}

// ComponentReport describes how one strongly connected component of
// the graph was resolved.
type ComponentReport struct {
	Units     []string
	Cyclic    bool
	Passes    int
	Converged bool
	Reason    string // why iteration stopped early; empty if converged

	// Changes holds the maximum relative stream change of each pass.
	Changes []float64
}

type portRef struct {
	node NodeID
	port int
}

// Resolution holds the values of all streams and unit vectors for one
// evaluation of a Graph. It is independent of the units themselves, so a
// copy can be resolved concurrently with the original.
type Resolution struct {
	// Streams holds the values carried by each stream, indexed by StreamID.
	Streams [][]float64

	// Inputs and Outputs hold the input and output vector of each
	// node, indexed by NodeID.
	Inputs, Outputs [][]float64

	// Passes is the largest number of passes used by any component.
	Passes int

	// Converged is true if every component converged.
	Converged bool

	Components []ComponentReport
	Elapsed    time.Duration

	overrides map[portRef][]float64
	state     ResolutionState
}

// NewResolution returns an empty resolution.
func NewResolution() *Resolution {
	return &Resolution{overrides: make(map[portRef][]float64)}
}

// SetInput sets the values of an unconnected input port. It replaces the
// port's declared default.
func (r *Resolution) SetInput(id NodeID, port int, v []float64) {
	if r.overrides == nil {
		r.overrides = make(map[portRef][]float64)
	}
	r.overrides[portRef{id, port}] = append([]float64(nil), v...)
}

func (r *Resolution) override(id NodeID, port int) ([]float64, bool) {
	v, ok := r.overrides[portRef{id, port}]
	return v, ok
}

// State returns the state of the resolution.
func (r *Resolution) State() ResolutionState { return r.state }

// Changes returns the pass-by-pass change history of all recycle loops,
// in evaluation order.
func (r *Resolution) Changes() []float64 {
	var c []float64
	for _, comp := range r.Components {
		if comp.Cyclic {
			c = append(c, comp.Changes...)
		}
	}
	return c
}

// Clone returns a deep copy of r.
func (r *Resolution) Clone() *Resolution {
	o := &Resolution{
		Streams:    copy2(r.Streams),
		Inputs:     copy2(r.Inputs),
		Outputs:    copy2(r.Outputs),
		Passes:     r.Passes,
		Converged:  r.Converged,
		Components: make([]ComponentReport, len(r.Components)),
		Elapsed:    r.Elapsed,
		overrides:  make(map[portRef][]float64, len(r.overrides)),
		state:      r.state,
	}
	for i, c := range r.Components {
		c.Units = append([]string(nil), c.Units...)
		c.Changes = append([]float64(nil), c.Changes...)
		o.Components[i] = c
	}
	for k, v := range r.overrides {
		o.overrides[k] = append([]float64(nil), v...)
	}
	return o
}

func copy2(v [][]float64) [][]float64 {
	if v == nil {
		return nil
	}
	o := make([][]float64, len(v))
	for i, vv := range v {
		o[i] = append([]float64(nil), vv...)
	}
	return o
}

// reset sizes the vectors of r for g, keeping any stream values that
// already have the right size as the starting point for iteration.
func (r *Resolution) reset(g *Graph) {
	if len(r.Streams) != len(g.streams) {
		r.Streams = make([][]float64, len(g.streams))
	}
	for i, s := range g.streams {
		w := g.nodes[s.From].shape.Outputs[s.FromPort].Width()
		if len(r.Streams[i]) != w {
			r.Streams[i] = make([]float64, w)
		}
	}
	r.Inputs = make([][]float64, len(g.nodes))
	r.Outputs = make([][]float64, len(g.nodes))
	r.Components = r.Components[:0]
	r.Passes = 0
	r.Converged = true
	r.state = Unresolved
}

// Resolve computes a consistent set of stream values for the graph.
// Units that are not part of a recycle loop are evaluated once, in
// topological order. Each recycle loop is iterated, with every unit in
// the loop evaluated from the stream values of the previous pass, until
// no stream value changes by more than the tolerance or the iteration or
// time budget runs out. A loop that does not converge is reported in r
// and is not an error. Errors returned by units are.
func (g *Graph) Resolve(r *Resolution, o ResolveOptions) error {
	if err := g.Check(r); err != nil {
		return err
	}
	o = o.withDefaults()
	start := time.Now()
	r.reset(g)
	for _, c := range g.components() {
		rep := ComponentReport{Cyclic: c.cyclic}
		for _, id := range c.nodes {
			rep.Units = append(rep.Units, g.nodes[id].name)
		}
		var err error
		if c.cyclic {
			err = g.iterate(r, c.nodes, o, start, &rep)
		} else {
			err = g.evaluate(r, c.nodes[0], &rep)
		}
		if err != nil {
			r.state = Unresolved
			return err
		}
		if rep.Passes > r.Passes {
			r.Passes = rep.Passes
		}
		r.Converged = r.Converged && rep.Converged
		r.Components = append(r.Components, rep)
	}
	r.Elapsed = time.Since(start)
	if r.Converged {
		r.state = Resolved
	} else {
		r.state = Unconverged
	}
	return nil
}

// evaluate runs a unit that is not part of a cycle.
func (g *Graph) evaluate(r *Resolution, id NodeID, rep *ComponentReport) error {
	out, err := g.steadyState(r, id)
	if err != nil {
		return err
	}
	rep.Passes = 1
	if !finite(out) {
		rep.Reason = ReasonNonFinite
	} else {
		rep.Converged = true
	}
	g.scatter(r, id, out, 0)
	return nil
}

// iterate runs a recycle loop to convergence. Each pass evaluates every
// unit from the same snapshot of stream values and only then writes
// the new values.
func (g *Graph) iterate(r *Resolution, ids []NodeID, o ResolveOptions, start time.Time, rep *ComponentReport) error {
	outs := make([][]float64, len(ids))
	changes := make([]float64, len(ids))
	for {
		for i, id := range ids {
			out, err := g.steadyState(r, id)
			if err != nil {
				return err
			}
			outs[i] = out
		}
		rep.Passes++
		nonFinite := false
		for i, id := range ids {
			if !finite(outs[i]) {
				nonFinite = true
			}
			changes[i] = g.scatter(r, id, outs[i], o.Floor)
		}
		change := floats.Max(changes)
		rep.Changes = append(rep.Changes, change)

		switch {
		case nonFinite:
			rep.Reason = ReasonNonFinite
			return nil
		case checkConvergence(change, o.Tolerance):
			rep.Converged = true
			return nil
		case rep.Passes >= o.MaxIterations:
			rep.Reason = ReasonIterations
			return nil
		case o.MaxDuration > 0 && time.Since(start) > o.MaxDuration:
			rep.Reason = ReasonTime
			return nil
		}
	}
}

func checkConvergence(change, tolerance float64) bool {
	return change <= tolerance && !math.IsNaN(change)
}

// steadyState gathers the input vector of node id and evaluates its unit.
func (g *Graph) steadyState(r *Resolution, id NodeID) ([]float64, error) {
	n := &g.nodes[id]
	u := make([]float64, 0, n.shape.InputLen())
	for i, p := range n.shape.Inputs {
		if s := n.in[i]; s != none {
			u = append(u, r.Streams[s]...)
		} else if v, ok := r.override(id, i); ok {
			u = append(u, v...)
		} else if len(p.Default) == p.Width() {
			u = append(u, p.Default...)
		} else {
			u = append(u, make([]float64, p.Width())...)
		}
	}
	r.Inputs[id] = u
	out, err := n.unit.SteadyState(u)
	if err != nil {
		return nil, fmt.Errorf("sproc: unit %q: %w", n.name, err)
	}
	if err := CheckOutput(n.name, n.shape, out); err != nil {
		return nil, err
	}
	r.Outputs[id] = out
	return out, nil
}

// scatter copies the output vector of node id onto its outgoing streams
// and returns the largest relative change of any stream value.
func (g *Graph) scatter(r *Resolution, id NodeID, out []float64, floor float64) float64 {
	n := &g.nodes[id]
	var change float64
	off := 0
	for i, p := range n.shape.Outputs {
		w := p.Width()
		if s := n.out[i]; s != none {
			old := r.Streams[s]
			for j, v := range out[off : off+w] {
				change = math.Max(change, relChange(old[j], v, floor))
				old[j] = v
			}
		}
		off += w
	}
	return change
}

// relChange returns |b-a| / max(|a|, |b|, floor).
func relChange(a, b, floor float64) float64 {
	d := math.Abs(b - a)
	if d == 0 {
		return 0
	}
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return math.Inf(1)
	}
	return d / math.Max(math.Max(math.Abs(a), math.Abs(b)), floor)
}

func finite(v []float64) bool {
	if floats.HasNaN(v) {
		return false
	}
	for _, x := range v {
		if math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
