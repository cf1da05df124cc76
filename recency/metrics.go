/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package recency

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector represents a collector of metrics for the recency tracker.
type MetricsCollector interface {
	// SetAmount sets the total number of tracked keys.
	SetAmount(int)

	// IncPromotions increments the total number of already tracked keys moved to the front.
	IncPromotions()

	// AddEvictions increments the total number of evicted keys.
	AddEvictions(int)
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels

	// CurriedLabelNames is a list of label names that will be curried with the provided labels.
	// If it's not empty, PrometheusMetrics.MustCurryWith must be called with the same labels
	// before the collector is passed to a tracker.
	CurriedLabelNames []string
}

// PrometheusMetrics represents Prometheus metrics for the recency tracker.
type PrometheusMetrics struct {
	EntriesAmount   *prometheus.GaugeVec
	PromotionsTotal *prometheus.CounterVec
	EvictionsTotal  *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	return &PrometheusMetrics{
		EntriesAmount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "recency_entries_amount",
			Help:        "Total number of keys in the recency tracker.",
			ConstLabels: opts.ConstLabels,
		}, opts.CurriedLabelNames),
		PromotionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "recency_promotions_total",
			Help:        "Number of already tracked keys moved to the most recent position.",
			ConstLabels: opts.ConstLabels,
		}, opts.CurriedLabelNames),
		EvictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "recency_evictions_total",
			Help:        "Number of least recent keys evicted from the recency tracker.",
			ConstLabels: opts.ConstLabels,
		}, opts.CurriedLabelNames),
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		EntriesAmount:   pm.EntriesAmount.MustCurryWith(labels),
		PromotionsTotal: pm.PromotionsTotal.MustCurryWith(labels),
		EvictionsTotal:  pm.EvictionsTotal.MustCurryWith(labels),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(pm.EntriesAmount, pm.PromotionsTotal, pm.EvictionsTotal)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.EntriesAmount)
	prometheus.Unregister(pm.PromotionsTotal)
	prometheus.Unregister(pm.EvictionsTotal)
}

// SetAmount sets the total number of tracked keys.
func (pm *PrometheusMetrics) SetAmount(amount int) {
	pm.EntriesAmount.With(nil).Set(float64(amount))
}

// IncPromotions increments the total number of keys moved to the front.
func (pm *PrometheusMetrics) IncPromotions() {
	pm.PromotionsTotal.With(nil).Inc()
}

// AddEvictions increments the total number of evicted keys.
func (pm *PrometheusMetrics) AddEvictions(n int) {
	pm.EvictionsTotal.With(nil).Add(float64(n))
}

type disabledMetrics struct{}

func (disabledMetrics) SetAmount(int)    {}
func (disabledMetrics) IncPromotions()   {}
func (disabledMetrics) AddEvictions(int) {}
