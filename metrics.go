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
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts the work done by plants. The zero value and a nil
// *Metrics are both usable and record nothing.
type Metrics struct {
	Resolutions       *prometheus.CounterVec
	ResolutionPasses  prometheus.Histogram
	ResolutionSeconds prometheus.Histogram
	Evaluations       *prometheus.CounterVec
	Optimizations     *prometheus.CounterVec
	Simulations       *prometheus.CounterVec
}

// NewMetrics creates plant metrics and registers them with reg. If reg
// is nil the metrics are created but not registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Resolutions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sproc_resolutions_total",
				Help: "Number of flow network resolutions",
			},
			[]string{"state"}, // resolved, unconverged
		),
		ResolutionPasses: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sproc_resolution_passes",
				Help:    "Passes over recycle loops per resolution",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 500},
			},
		),
		ResolutionSeconds: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sproc_resolution_duration_seconds",
				Help:    "Wall-clock time of a resolution",
				Buckets: prometheus.ExponentialBuckets(1e-5, 10, 7),
			},
		),
		Evaluations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sproc_optimizer_evaluations_total",
				Help: "Objective evaluations by the plant optimizer",
			},
			[]string{"cache"}, // hit, miss
		),
		Optimizations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sproc_optimizations_total",
				Help: "Completed optimization runs",
			},
			[]string{"method", "converged"},
		),
		Simulations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sproc_simulations_total",
				Help: "Dynamic simulations",
			},
			[]string{"complete"},
		),
	}
}

func (m *Metrics) observeResolution(r *Resolution) {
	if m == nil || m.Resolutions == nil {
		return
	}
	m.Resolutions.WithLabelValues(r.State().String()).Inc()
	m.ResolutionPasses.Observe(float64(r.Passes))
	m.ResolutionSeconds.Observe(r.Elapsed.Seconds())
}

func (m *Metrics) observeEvaluation(hit bool) {
	if m == nil || m.Evaluations == nil {
		return
	}
	label := "miss"
	if hit {
		label = "hit"
	}
	m.Evaluations.WithLabelValues(label).Inc()
}

func (m *Metrics) observeOptimization(method string, converged bool) {
	if m == nil || m.Optimizations == nil {
		return
	}
	m.Optimizations.WithLabelValues(method, strconv.FormatBool(converged)).Inc()
}

func (m *Metrics) observeSimulation(complete bool) {
	if m == nil || m.Simulations == nil {
		return
	}
	m.Simulations.WithLabelValues(strconv.FormatBool(complete)).Inc()
}
