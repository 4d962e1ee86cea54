// Copyright (c) 2026 Conduit Framework Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package health

import (
	"context"
	"testing"

	"github.com/conduitframework/conduit/http/router"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type healthyMetric bool

func (m healthyMetric) Healthy(_ context.Context) bool {
	return bool(m)
}

func TestBinary_Toggle(t *testing.T) {
	t.Run("will make it unhealthy", func(t *testing.T) {
		t.Run("if the current state is healthy", func(t *testing.T) {
			var m Binary
			m.Toggle()
			assert.False(t, m.Healthy(context.Background()))
		})
	})

	t.Run("will make it healthy", func(t *testing.T) {
		t.Run("if the current state is unhealthy", func(t *testing.T) {
			var m Binary
			m.Toggle()
			m.Toggle()
			assert.True(t, m.Healthy(context.Background()))
		})
	})
}

func TestMetricFunc_Healthy(t *testing.T) {
	t.Run("will report the func result", func(t *testing.T) {
		t.Run("if adapted from a plain func", func(t *testing.T) {
			m := MetricFunc(func(_ context.Context) bool { return true })
			assert.True(t, m.Healthy(context.Background()))
		})
	})
}

func TestAndMetric_Healthy(t *testing.T) {
	testCases := []struct {
		Name    string
		Metrics []Metric
		Healthy bool
	}{
		{
			Name:    "will report healthy if there is a single healthy metric",
			Metrics: []Metric{healthyMetric(true)},
			Healthy: true,
		},
		{
			Name:    "will report healthy if all metrics are healthy",
			Metrics: []Metric{healthyMetric(true), healthyMetric(true)},
			Healthy: true,
		},
		{
			Name:    "will report unhealthy if all metrics are unhealthy",
			Metrics: []Metric{healthyMetric(false), healthyMetric(false)},
			Healthy: false,
		},
		{
			Name:    "will report unhealthy if any metric is unhealthy",
			Metrics: []Metric{healthyMetric(true), healthyMetric(false)},
			Healthy: false,
		},
		{
			Name:    "will report unhealthy if any metric is unhealthy (symmetric)",
			Metrics: []Metric{healthyMetric(false), healthyMetric(true)},
			Healthy: false,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			m := And(testCase.Metrics...)
			assert.Equal(t, testCase.Healthy, m.Healthy(context.Background()))
		})
	}
}

func TestOrMetric_Healthy(t *testing.T) {
	testCases := []struct {
		Name    string
		Metrics []Metric
		Healthy bool
	}{
		{
			Name:    "will report healthy if there is a single healthy metric",
			Metrics: []Metric{healthyMetric(true)},
			Healthy: true,
		},
		{
			Name:    "will report healthy if any metric is healthy",
			Metrics: []Metric{healthyMetric(true), healthyMetric(false)},
			Healthy: true,
		},
		{
			Name:    "will report healthy if any metric is healthy (symmetric)",
			Metrics: []Metric{healthyMetric(false), healthyMetric(true)},
			Healthy: true,
		},
		{
			Name:    "will report unhealthy if all metrics are unhealthy",
			Metrics: []Metric{healthyMetric(false), healthyMetric(false)},
			Healthy: false,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			m := Or(testCase.Metrics...)
			assert.Equal(t, testCase.Healthy, m.Healthy(context.Background()))
		})
	}
}

func TestNotMetric_Healthy(t *testing.T) {
	t.Run("will negate the underlying metric", func(t *testing.T) {
		t.Run("if the metric is healthy", func(t *testing.T) {
			assert.False(t, Not(healthyMetric(true)).Healthy(context.Background()))
		})

		t.Run("if the metric is unhealthy", func(t *testing.T) {
			assert.True(t, Not(healthyMetric(false)).Healthy(context.Background()))
		})
	})
}

func TestEndpoint(t *testing.T) {
	t.Run("will succeed", func(t *testing.T) {
		t.Run("if the metric is healthy", func(t *testing.T) {
			rt := router.NewRouter()
			rt.Register(Endpoint("/health/liveness", healthyMetric(true)))

			matches := rt.Find("GET", "/health/liveness")
			require.Len(t, matches, 1)

			result, err := matches[0].Execute(context.Background(), nil)
			require.NoError(t, err)
			assert.Equal(t, "ok", result)
		})
	})

	t.Run("will fail", func(t *testing.T) {
		t.Run("if the metric is unhealthy", func(t *testing.T) {
			rt := router.NewRouter()
			rt.Register(Endpoint("/health/liveness", healthyMetric(false)))

			matches := rt.Find("GET", "/health/liveness")
			require.Len(t, matches, 1)

			_, err := matches[0].Execute(context.Background(), nil)
			assert.ErrorIs(t, err, ErrUnhealthy)
		})
	})
}
