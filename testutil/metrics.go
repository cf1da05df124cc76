/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MetricValue returns the value of the single metric collected from c.
// Vectors without children yet (nothing was observed) have the value of 0.
func MetricValue(c prometheus.Collector) float64 {
	if promtestutil.CollectAndCount(c) == 0 {
		return 0
	}
	return promtestutil.ToFloat64(c)
}

// AssertMetricValue asserts that the collector has a single metric with the specified value.
func AssertMetricValue(t assert.TestingT, c prometheus.Collector, want float64, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	return assert.Equal(t, want, MetricValue(c), msgAndArgs...)
}

// RequireMetricValue calls AssertMetricValue and fails the test immediately in case of mismatch.
func RequireMetricValue(t require.TestingT, c prometheus.Collector, want float64, msgAndArgs ...interface{}) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if AssertMetricValue(t, c, want, msgAndArgs...) {
		return
	}
	t.FailNow()
}
