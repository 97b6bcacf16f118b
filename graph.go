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
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// NodeID identifies a unit within a Graph.
type NodeID int

// StreamID identifies a stream within a Graph.
type StreamID int

// none marks an unconnected port.
const none StreamID = -1

// Stream is a directed connection from an output port of one unit to an
// input port of another.
type Stream struct {
	ID       StreamID
	From     NodeID
	FromPort int
	To       NodeID
	ToPort   int
}

type node struct {
	name  string
	unit  Unit
	shape Shape
	in    []StreamID // one per input port
	out   []StreamID // one per output port
}

// Graph is a flow network of units connected by streams. Nodes and
// streams are held in arenas and addressed by index. The units
// themselves are never modified, so a Graph may be shared by concurrent
// resolutions once it is no longer being edited.
type Graph struct {
	nodes   []node
	streams []Stream
	byName  map[string]NodeID

	// order caches the evaluation order; it is reset by any edit.
	order []component
}

// component is a strongly connected component of the graph.
type component struct {
	nodes  []NodeID
	cyclic bool
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{byName: make(map[string]NodeID)}
}

// AddNode adds unit u to the graph under name.
func (g *Graph) AddNode(name string, u Unit) (NodeID, error) {
	if name == "" {
		return -1, topologyErrorf("", "unit name must not be empty")
	}
	if u == nil {
		return -1, topologyErrorf(name, "unit is nil")
	}
	if _, ok := g.byName[name]; ok {
		return -1, topologyErrorf(name, "a unit with this name already exists")
	}
	s := u.Shape()
	n := node{
		name:  name,
		unit:  u,
		shape: s,
		in:    make([]StreamID, len(s.Inputs)),
		out:   make([]StreamID, len(s.Outputs)),
	}
	for i := range n.in {
		n.in[i] = none
	}
	for i := range n.out {
		n.out[i] = none
	}
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, n)
	g.byName[name] = id
	g.order = nil
	return id, nil
}

// Connect adds a stream from output port fromPort of node from to input
// port toPort of node to. Each port may carry at most one stream, and
// the two ports must have the same width.
func (g *Graph) Connect(from NodeID, fromPort int, to NodeID, toPort int) (StreamID, error) {
	if !g.valid(from) || !g.valid(to) {
		return none, topologyErrorf("", "stream references unknown unit (%d -> %d)", from, to)
	}
	f, t := &g.nodes[from], &g.nodes[to]
	if fromPort < 0 || fromPort >= len(f.out) {
		return none, topologyErrorf(f.name, "no output port %d", fromPort)
	}
	if toPort < 0 || toPort >= len(t.in) {
		return none, topologyErrorf(t.name, "no input port %d", toPort)
	}
	if f.out[fromPort] != none {
		return none, topologyErrorf(f.name, "output port %q is already connected",
			f.shape.Outputs[fromPort].Name)
	}
	if t.in[toPort] != none {
		return none, topologyErrorf(t.name, "input port %q is already connected",
			t.shape.Inputs[toPort].Name)
	}
	fw, tw := f.shape.Outputs[fromPort].Width(), t.shape.Inputs[toPort].Width()
	if fw != tw {
		return none, topologyErrorf(t.name, "cannot connect %d-field port %s.%s to %d-field port %s.%s",
			fw, f.name, f.shape.Outputs[fromPort].Name, tw, t.name, t.shape.Inputs[toPort].Name)
	}
	id := StreamID(len(g.streams))
	g.streams = append(g.streams, Stream{ID: id, From: from, FromPort: fromPort, To: to, ToPort: toPort})
	f.out[fromPort] = id
	t.in[toPort] = id
	g.order = nil
	return id, nil
}

func (g *Graph) valid(id NodeID) bool { return id >= 0 && int(id) < len(g.nodes) }

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the ID of the named node.
func (g *Graph) Node(name string) (NodeID, bool) {
	id, ok := g.byName[name]
	return id, ok
}

// Name returns the name of node id.
func (g *Graph) Name(id NodeID) string { return g.nodes[id].name }

// Unit returns the unit at node id.
func (g *Graph) Unit(id NodeID) Unit { return g.nodes[id].unit }

// Shape returns the shape of the unit at node id.
func (g *Graph) Shape(id NodeID) Shape { return g.nodes[id].shape }

// Streams returns a copy of the streams in the graph.
func (g *Graph) Streams() []Stream { return append([]Stream(nil), g.streams...) }

// InputStream returns the stream feeding input port of node id, if any.
func (g *Graph) InputStream(id NodeID, port int) (StreamID, bool) {
	s := g.nodes[id].in[port]
	return s, s != none
}

// OutputStream returns the stream leaving output port of node id, if any.
func (g *Graph) OutputStream(id NodeID, port int) (StreamID, bool) {
	s := g.nodes[id].out[port]
	return s, s != none
}

// FreeOutput returns the first unconnected output port of node id, and
// FreeInput the first unconnected input port of node id whose width is
// w. They return -1 if there is no such port.
func (g *Graph) FreeOutput(id NodeID) int {
	for i, s := range g.nodes[id].out {
		if s == none {
			return i
		}
	}
	return -1
}

// FreeInput is documented with FreeOutput.
func (g *Graph) FreeInput(id NodeID, w int) int {
	n := g.nodes[id]
	for i, s := range n.in {
		if s == none && n.shape.Inputs[i].Width() == w {
			return i
		}
	}
	return -1
}

// Clone returns a copy of the graph that can be edited independently.
// The units are shared.
func (g *Graph) Clone() *Graph {
	o := &Graph{
		nodes:   make([]node, len(g.nodes)),
		streams: append([]Stream(nil), g.streams...),
		byName:  make(map[string]NodeID, len(g.byName)),
	}
	for i, n := range g.nodes {
		n.in = append([]StreamID(nil), n.in...)
		n.out = append([]StreamID(nil), n.out...)
		o.nodes[i] = n
	}
	for k, v := range g.byName {
		o.byName[k] = v
	}
	return o
}

// Check returns a *TopologyError if any required input port of the
// graph is neither connected to a stream nor given a value in r.
func (g *Graph) Check(r *Resolution) error {
	if len(g.nodes) == 0 {
		return topologyErrorf("", "the plant has no units")
	}
	for id, n := range g.nodes {
		for i, p := range n.shape.Inputs {
			if n.in[i] != none {
				continue
			}
			if v, ok := r.override(NodeID(id), i); ok {
				if len(v) != p.Width() {
					return topologyErrorf(n.name, "input %q is given %d values; want %d",
						p.Name, len(v), p.Width())
				}
				continue
			}
			if p.Required {
				return topologyErrorf(n.name, "required input port %q is not connected and has no default", p.Name)
			}
		}
	}
	return nil
}

// components returns the strongly connected components of the graph in
// an order where every stream that is not part of a cycle runs from an
// earlier component to a later one.
func (g *Graph) components() []component {
	if g.order != nil {
		return g.order
	}

	// Ports stay in the arena; ordering only needs unit adjacency.
	dg := simple.NewDirectedGraph()
	for id := range g.nodes {
		dg.AddNode(simple.Node(id))
	}
	for _, s := range g.streams {
		if s.From != s.To {
			dg.SetEdge(simple.Edge{F: simple.Node(s.From), T: simple.Node(s.To)})
		}
	}
	var sccs [][]NodeID
	for _, c := range topo.TarjanSCC(dg) {
		members := make([]NodeID, len(c))
		for i, n := range c {
			members[i] = NodeID(n.ID())
		}
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		sccs = append(sccs, members)
	}
	// Number the components by their lowest unit so the stabilized sort
	// prefers units added earlier.
	sort.Slice(sccs, func(i, j int) bool { return sccs[i][0] < sccs[j][0] })

	compOf := make([]int64, len(g.nodes))
	cg := simple.NewDirectedGraph()
	for c, members := range sccs {
		cg.AddNode(simple.Node(c))
		for _, id := range members {
			compOf[id] = int64(c)
		}
	}
	for _, s := range g.streams {
		if a, b := compOf[s.From], compOf[s.To]; a != b {
			cg.SetEdge(simple.Edge{F: simple.Node(a), T: simple.Node(b)})
		}
	}
	sorted, err := topo.SortStabilized(cg, nil)
	if err != nil {
		// The condensation of a graph is acyclic.
		panic(err)
	}
	order := make([]component, len(sorted))
	for i, n := range sorted {
		members := sccs[n.ID()]
		order[i] = component{nodes: members, cyclic: g.cyclic(members)}
	}
	g.order = order
	return order
}

// cyclic reports whether the component contains a cycle: more than
// one node, or a node that feeds itself.
func (g *Graph) cyclic(members []NodeID) bool {
	if len(members) > 1 {
		return true
	}
	for _, s := range g.nodes[members[0]].out {
		if s != none && g.streams[s].To == members[0] {
			return true
		}
	}
	return false
}
