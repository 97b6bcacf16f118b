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
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"

	"github.com/spatialmodel/sproc/internal/hash"
)

// Optimization methods.
const (
	NelderMead = "neldermead" // derivative-free simplex search
	BFGS       = "bfgs"       // quasi-Newton with finite-difference gradients
)

// Methods lists the supported optimization methods.
var Methods = []string{NelderMead, BFGS}

func validMethod(m string) bool {
	for _, v := range Methods {
		if v == m {
			return true
		}
	}
	return false
}

// Direction says whether a constraint applies to a unit input or output.
type Direction int

// Constraint directions.
const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

// FreeVariable is a field of an unconnected input port that the
// optimizer may adjust between Lower and Upper.
type FreeVariable struct {
	Name              string // see VariableName
	Unit, Port, Field string
	Lower, Upper      float64
	Initial           float64
	node              NodeID
	port, field       int
}

func (f FreeVariable) toX(z float64) float64 { return f.Lower + z*(f.Upper-f.Lower) }

func (f FreeVariable) toZ(x float64) float64 {
	if f.Upper == f.Lower {
		return 0
	}
	return (x - f.Lower) / (f.Upper - f.Lower)
}

// Constraint bounds one field of a unit's input or output vector. The
// bounds come from the unit's valid ranges.
type Constraint struct {
	Unit      string
	Direction Direction
	Port      string
	Field     string
	Key       string // key in the unit's ValidRanges
	Range     Range
	node      NodeID
	offset    int
}

func (c Constraint) String() string {
	return fmt.Sprintf("%s.%s.%s in [%g, %g] %s", c.Unit, c.Port, c.Field, c.Range.Min, c.Range.Max, c.Range.Units)
}

func (c Constraint) value(r *Resolution) float64 {
	v := r.Outputs[c.node]
	if c.Direction == Input {
		v = r.Inputs[c.node]
	}
	if c.offset >= len(v) {
		return math.NaN()
	}
	return v[c.offset]
}

// Violation records a constraint that a resolution does not satisfy.
type Violation struct {
	Constraint
	Value  float64
	Amount float64 // normalized distance outside of the range
}

func (v Violation) String() string {
	return fmt.Sprintf("%v: value %g", v.Constraint, v.Value)
}

// maxViolation caps the normalized violation so that penalties stay finite.
const maxViolation = 1e3

// Configuration is a compiled plant: a snapshot of the flow network,
// the caller's input values, the free variables and the constraints.
// A Configuration is not changed by resolving or optimizing it and may
// be used concurrently.
type Configuration struct {
	Plant       string
	Method      string
	Graph       *Graph
	Free        []FreeVariable
	Constraints []Constraint
	Resolve     ResolveOptions

	base *Resolution
}

func newConfiguration(plant, method string, g *Graph, inputs map[portRef][]float64,
	free []FreeVariable, ro ResolveOptions) (*Configuration, error) {
	c := &Configuration{
		Plant:   plant,
		Method:  method,
		Graph:   g.Clone(),
		Free:    append([]FreeVariable(nil), free...),
		Resolve: ro,
		base:    NewResolution(),
	}
	for k, v := range inputs {
		c.base.SetInput(k.node, k.port, v)
	}
	if err := c.Graph.Check(c.base); err != nil {
		return nil, err
	}
	c.Graph.components() // fix the evaluation order before concurrent use

	for id, n := range c.Graph.nodes {
		meta := n.unit.Describe()
		add := func(dir Direction, ports []Port, offset func(int) int) {
			for i, p := range ports {
				for j, f := range p.Fields {
					rng, ok := meta.ValidRanges[f.Range]
					if f.Range == "" || !ok {
						continue
					}
					c.Constraints = append(c.Constraints, Constraint{
						Unit: n.name, Direction: dir, Port: p.Name, Field: f.Name,
						Key: f.Range, Range: rng, node: NodeID(id), offset: offset(i) + j,
					})
				}
			}
		}
		add(Input, n.shape.Inputs, n.shape.InputOffset)
		add(Output, n.shape.Outputs, n.shape.OutputOffset)
	}
	for i := range c.Free {
		f := &c.Free[i]
		if _, ok := c.Graph.InputStream(f.node, f.port); ok {
			return nil, topologyErrorf(f.Unit, "free variable %s is on connected port %q", f.Name, f.Port)
		}
		v := c.portValues(c.base, f.node, f.port)[f.field]
		if v >= f.Lower && v <= f.Upper {
			f.Initial = v
		} else {
			f.Initial = (f.Lower + f.Upper) / 2
		}
	}
	return c, nil
}

// portValues returns the values of unconnected input port of node id
// in r: the caller's value, else the port default, else zeros.
func (c *Configuration) portValues(r *Resolution, id NodeID, port int) []float64 {
	if v, ok := r.override(id, port); ok {
		return append([]float64(nil), v...)
	}
	p := c.Graph.nodes[id].shape.Inputs[port]
	if len(p.Default) == p.Width() {
		return append([]float64(nil), p.Default...)
	}
	return make([]float64, p.Width())
}

// NewResolution returns a resolution holding the caller's input values
// with the free variables set to x.
func (c *Configuration) NewResolution(x []float64) (*Resolution, error) {
	if len(x) != len(c.Free) {
		return nil, &ShapeMismatchError{Unit: c.Plant, Vector: "free variable", Want: len(c.Free), Got: len(x)}
	}
	r := c.base.Clone()
	for i, f := range c.Free {
		v := c.portValues(r, f.node, f.port)
		v[f.field] = x[i]
		r.SetInput(f.node, f.port, v)
	}
	return r, nil
}

// Initial returns the starting values of the free variables.
func (c *Configuration) Initial() []float64 {
	x := make([]float64, len(c.Free))
	for i, f := range c.Free {
		x[i] = f.Initial
	}
	return x
}

// Evaluate resolves the plant with the free variables set to x.
func (c *Configuration) Evaluate(x []float64) (*Resolution, error) {
	r, err := c.NewResolution(x)
	if err != nil {
		return nil, err
	}
	if err := c.Graph.Resolve(r, c.Resolve); err != nil {
		return nil, err
	}
	return r, nil
}

// Violations returns the constraints that r does not satisfy.
func (c *Configuration) Violations(r *Resolution) []Violation {
	var vs []Violation
	for _, con := range c.Constraints {
		v := con.value(r)
		if a := con.Range.Violation(v); a > 0 {
			vs = append(vs, Violation{Constraint: con, Value: v, Amount: math.Min(a, maxViolation)})
		}
	}
	return vs
}

// trial is the evaluation of one point in normalized space.
type trial struct {
	x          []float64
	res        *Resolution
	objective  float64
	penalty    float64
	violations []Violation
}

func (t *trial) total() float64 { return t.objective + t.penalty }

// evaluate scores the normalized point z. Each free variable is clamped
// into its bounds; the excursion beyond the bounds is penalized along
// with constraint violations and failure to converge.
func (c *Configuration) evaluate(o *objective, z []float64) (*trial, error) {
	t := &trial{x: make([]float64, len(z))}
	var excursion float64
	for i, zi := range z {
		zc := math.Min(math.Max(zi, 0), 1)
		excursion += (zi - zc) * (zi - zc)
		t.x[i] = c.Free[i].toX(zc)
	}
	r, err := c.Evaluate(t.x)
	if err != nil {
		return nil, err
	}
	t.res = r
	t.violations = c.Violations(r)
	var v2 float64
	for _, v := range t.violations {
		v2 += v.Amount * v.Amount
	}
	t.penalty = o.PenaltyWeight * (v2 + excursion)
	if !r.Converged {
		t.penalty += o.PenaltyWeight
	}
	f, err := o.value(r, c.Free, t.x)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		f = o.PenaltyWeight * maxViolation
	}
	t.objective = f
	return t, nil
}

// OperatingPoint is the resolved state of one unit.
type OperatingPoint struct {
	Unit, Type      string
	Inputs, Outputs []float64
}

// points returns the operating point of every node in r.
func (g *Graph) points(r *Resolution) []OperatingPoint {
	pts := make([]OperatingPoint, len(g.nodes))
	for id, n := range g.nodes {
		pts[id] = OperatingPoint{
			Unit:    n.name,
			Type:    n.unit.Describe().Type,
			Inputs:  append([]float64(nil), r.Inputs[id]...),
			Outputs: append([]float64(nil), r.Outputs[id]...),
		}
	}
	return pts
}

// OptimizationResult is the outcome of an optimization run. It must not
// be modified.
type OptimizationResult struct {
	RunID  string
	Plant  string
	Method string

	// Free holds the free variables and X their optimized values.
	Free []FreeVariable
	X    []float64

	Objective  float64 // objective without penalties
	Penalty    float64
	Production float64

	Points     []OperatingPoint
	Violations []Violation
	Resolution *Resolution

	// Converged is true if the optimizer met its convergence criterion
	// before exhausting its budget. Feasible is true if the final point
	// violates no constraint and its resolution converged.
	Converged bool
	Feasible  bool
	Status    string

	Iterations  int
	Evaluations int
	Runtime     time.Duration

	// History holds the best objective (with penalty) after each
	// accepted iteration. It never increases.
	History []float64
}

// Variables returns the optimized free variables by name.
func (r *OptimizationResult) Variables() map[string]float64 {
	o := make(map[string]float64, len(r.X))
	for i, f := range r.Free {
		o[f.Name] = r.X[i]
	}
	return o
}

// Point returns the operating point of the named unit.
func (r *OptimizationResult) Point(unit string) (OperatingPoint, bool) {
	for _, p := range r.Points {
		if p.Unit == unit {
			return p, true
		}
	}
	return OperatingPoint{}, false
}

// historyRecorder keeps the objective value reported at the start and at
// each major iteration of the search.
type historyRecorder struct {
	log     logrus.FieldLogger
	history []float64
}

func (h *historyRecorder) Init() error { return nil }

func (h *historyRecorder) Record(loc *optimize.Location, op optimize.Operation, stats *optimize.Stats) error {
	if op&(optimize.InitIteration|optimize.MajorIteration) == 0 {
		return nil
	}
	f := loc.F
	if math.IsNaN(f) || math.IsInf(f, 1) {
		return nil // not yet evaluated
	}
	h.history = append(h.history, f)
	h.log.WithFields(logrus.Fields{
		"iteration":   stats.MajorIterations,
		"evaluations": stats.FuncEvaluations,
		"objective":   f,
	}).Debug("optimizer iteration")
	return nil
}

func converged(s optimize.Status) bool {
	switch s {
	case optimize.Success, optimize.FunctionConvergence, optimize.GradientThreshold,
		optimize.StepConvergence, optimize.MethodConverge, optimize.FunctionThreshold:
		return true
	}
	return false
}

// Optimize searches for the free variable values that minimize o. Trial
// points that are infeasible or whose recycle loops do not converge are
// penalized rather than rejected. Running out of iterations, evaluations
// or time is not an error; the result reports Converged=false.
func (c *Configuration) Optimize(o Objective, log logrus.FieldLogger, m *Metrics) (*OptimizationResult, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if !validMethod(c.Method) {
		return nil, topologyErrorf("", "unknown optimization method %q", c.Method)
	}
	o = o.withDefaults()
	obj, err := c.bind(o)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res := &OptimizationResult{
		RunID:  uuid.New().String(),
		Plant:  c.Plant,
		Method: c.Method,
		Free:   append([]FreeVariable(nil), c.Free...),
	}
	log = log.WithFields(logrus.Fields{
		"plant":  c.Plant,
		"run":    res.RunID,
		"method": c.Method,
	})

	cache := lru.New(o.CacheSize)
	var mu sync.Mutex
	var evalErr error
	var evaluations int
	eval := func(z []float64) (*trial, error) {
		key := hash.Floats(z)
		mu.Lock()
		if t, ok := cache.Get(key); ok {
			mu.Unlock()
			m.observeEvaluation(true)
			return t.(*trial), nil
		}
		mu.Unlock()
		t, err := c.evaluate(obj, z)
		if err != nil {
			return nil, err
		}
		m.observeEvaluation(false)
		m.observeResolution(t.res)
		mu.Lock()
		evaluations++
		cache.Add(key, t)
		mu.Unlock()
		return t, nil
	}

	z0 := make([]float64, len(c.Free))
	for i, f := range c.Free {
		z0[i] = f.toZ(f.Initial)
	}

	best := z0
	if len(c.Free) == 0 {
		res.Status = "no free variables"
		res.Converged = true
	} else {
		f := func(z []float64) float64 {
			t, err := eval(z)
			if err != nil {
				mu.Lock()
				if evalErr == nil {
					evalErr = err
				}
				mu.Unlock()
				return math.Inf(1)
			}
			return t.total()
		}
		p := optimize.Problem{
			Func: f,
			Status: func() (optimize.Status, error) {
				mu.Lock()
				defer mu.Unlock()
				if evalErr != nil {
					return optimize.Failure, evalErr
				}
				return optimize.NotTerminated, nil
			},
		}
		var method optimize.Method = &optimize.NelderMead{}
		if c.Method == BFGS {
			p.Grad = func(grad, z []float64) {
				fd.Gradient(grad, f, z, &fd.Settings{Formula: fd.Central})
			}
			method = &optimize.BFGS{}
		}
		rec := &historyRecorder{log: log}
		settings := &optimize.Settings{
			Converger: &optimize.FunctionConverge{
				Absolute:   o.Tolerance,
				Relative:   o.Tolerance,
				Iterations: o.Patience,
			},
			MajorIterations: o.MaxIterations,
			FuncEvaluations: o.MaxEvaluations,
			Runtime:         o.MaxDuration,
			Recorder:        rec,
		}
		result, err := optimize.Minimize(p, z0, settings, method)
		if evalErr != nil {
			return nil, evalErr
		}
		if result == nil {
			return nil, fmt.Errorf("sproc: optimizing %s: %v", c.Plant, err)
		}
		if err != nil {
			log.WithError(err).Warn("optimizer stopped early")
		}
		best = result.X
		res.Status = result.Status.String()
		res.Converged = err == nil && converged(result.Status)
		res.Iterations = result.MajorIterations
		res.History = rec.history
	}

	t, err := eval(best)
	if err != nil {
		return nil, err
	}
	res.X = t.x
	res.Objective = t.objective
	res.Penalty = t.penalty
	res.Production = obj.measure(t.res)
	res.Violations = t.violations
	res.Resolution = t.res.Clone()
	res.Feasible = len(t.violations) == 0 && t.res.Converged
	res.Evaluations = evaluations
	if n := len(res.History); n == 0 || t.total() < res.History[n-1] {
		res.History = append(res.History, t.total())
	}
	res.Points = c.Graph.points(t.res)
	res.Runtime = time.Since(start)
	m.observeOptimization(c.Method, res.Converged)

	log.WithFields(logrus.Fields{
		"objective":   res.Objective,
		"penalty":     res.Penalty,
		"converged":   res.Converged,
		"feasible":    res.Feasible,
		"iterations":  res.Iterations,
		"evaluations": res.Evaluations,
		"status":      res.Status,
	}).Info("optimization finished")
	return res, nil
}
