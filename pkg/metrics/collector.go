// Package metrics exports graph resolution statistics to Prometheus.
package metrics

import (
	"errors"

	graphstate "github.com/goliatone/go-graphstate"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector is a graphstate.ResolutionLogger that records every resolution.
type Collector struct {
	resolutions *prometheus.CounterVec
	entities    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	visited     prometheus.Histogram
}

// New builds a Collector and registers its metrics with reg. A nil reg uses
// prometheus.DefaultRegisterer. Registering twice against the same registry
// reuses the existing collectors.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphstate_resolutions_total",
				Help: "Total number of graph resolutions by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		entities: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphstate_entities_total",
				Help: "Total number of tracked entities by operation and assigned state",
			},
			[]string{"operation", "state"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "graphstate_resolution_duration_seconds",
				Help:    "Time spent resolving a graph",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"operation"},
		),
		visited: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "graphstate_graph_visited_entities",
				Help:    "Distinct entities reached per resolution",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
	}

	var err error
	if c.resolutions, err = register(reg, c.resolutions); err != nil {
		return nil, err
	}
	if c.entities, err = register(reg, c.entities); err != nil {
		return nil, err
	}
	if c.duration, err = register(reg, c.duration); err != nil {
		return nil, err
	}
	if c.visited, err = register(reg, c.visited); err != nil {
		return nil, err
	}
	return c, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, collector T) (T, error) {
	if err := reg.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return collector, err
	}
	return collector, nil
}

// LogResolution implements graphstate.ResolutionLogger.
func (c *Collector) LogResolution(event graphstate.ResolutionLogEvent) {
	if c == nil {
		return
	}
	operation := event.Operation.String()
	outcome := "ok"
	switch {
	case errors.Is(event.Err, graphstate.ErrInvalidOperation):
		outcome = "invalid_operation"
	case event.Err != nil:
		outcome = "error"
	}
	c.resolutions.WithLabelValues(operation, outcome).Inc()
	c.duration.WithLabelValues(operation).Observe(event.Duration.Seconds())
	if event.Err != nil {
		return
	}
	c.visited.Observe(float64(event.Visited))
	for state, n := range event.States {
		c.entities.WithLabelValues(operation, state.String()).Add(float64(n))
	}
}
