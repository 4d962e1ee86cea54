// Copyright (c) 2026 Conduit Framework Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package health provides composable health metrics and a route
// adapter for exposing them over the dispatch engine.
package health

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/conduitframework/conduit/http/router"
)

// Metric represents anything that can report its health status.
type Metric interface {
	Healthy(context.Context) bool
}

// MetricFunc adapts a plain func into a [Metric].
type MetricFunc func(context.Context) bool

// Healthy implements the Metric interface.
func (f MetricFunc) Healthy(ctx context.Context) bool {
	return f(ctx)
}

// Binary is a [Metric] that is either healthy or not. The zero value
// reports healthy.
type Binary struct {
	unhealthy atomic.Bool
}

// Toggle flips the current state of the Binary.
func (m *Binary) Toggle() {
	for {
		old := m.unhealthy.Load()
		if m.unhealthy.CompareAndSwap(old, !old) {
			return
		}
	}
}

// Healthy implements the Metric interface.
func (m *Binary) Healthy(_ context.Context) bool {
	return !m.unhealthy.Load()
}

// AndMetric combines multiple [Metric]s with logical and.
type AndMetric struct {
	metrics []Metric
}

// And reports healthy only when every one of the given Metrics does.
func And(metrics ...Metric) AndMetric {
	return AndMetric{metrics: metrics}
}

// Healthy implements the Metric interface.
func (m AndMetric) Healthy(ctx context.Context) bool {
	for _, metric := range m.metrics {
		if !metric.Healthy(ctx) {
			return false
		}
	}
	return true
}

// OrMetric combines multiple [Metric]s with logical or.
type OrMetric struct {
	metrics []Metric
}

// Or reports healthy when at least one of the given Metrics does.
func Or(metrics ...Metric) OrMetric {
	return OrMetric{metrics: metrics}
}

// Healthy implements the Metric interface.
func (m OrMetric) Healthy(ctx context.Context) bool {
	for _, metric := range m.metrics {
		if metric.Healthy(ctx) {
			return true
		}
	}
	return false
}

// NotMetric negates the underlying [Metric].
type NotMetric struct {
	metric Metric
}

// Not reports healthy exactly when the given Metric does not.
func Not(metric Metric) NotMetric {
	return NotMetric{metric: metric}
}

// Healthy implements the Metric interface.
func (m NotMetric) Healthy(ctx context.Context) bool {
	return !m.metric.Healthy(ctx)
}

// ErrUnhealthy is returned by the handler from [Endpoint] while its
// metric reports unhealthy.
var ErrUnhealthy = errors.New("health: unhealthy")

// Endpoint returns a GET route exposing the given [Metric] at the
// given path. The route responds "ok" while the metric is healthy
// and fails otherwise.
func Endpoint(path string, m Metric) *router.Route {
	return router.Get(
		path,
		router.HandlerFunc(func(ctx context.Context, _ map[string]any) (any, error) {
			if !m.Healthy(ctx) {
				return nil, ErrUnhealthy
			}
			return "ok", nil
		}),
		router.Named("health "+path),
		router.Returns("string"),
	)
}
