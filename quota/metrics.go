/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector represents a collector of metrics for admission decisions.
type MetricsCollector interface {
	// IncAdmitted increments the number of admitted events and their total weight.
	IncAdmitted(weight uint64)

	// IncRejected increments the number of rejected events.
	IncRejected(weight uint64)

	// AddPruned increments the number of expired events removed from the window.
	AddPruned(events int)
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels

	// CurriedLabelNames is a list of label names that will be curried with the provided labels.
	// If it's not empty, PrometheusMetrics.MustCurryWith must be called with the same labels.
	CurriedLabelNames []string
}

// PrometheusMetrics represents Prometheus metrics for quota trackers.
// A single instance may be shared by many trackers.
type PrometheusMetrics struct {
	AdmittedTotal       *prometheus.CounterVec
	AdmittedWeightTotal *prometheus.CounterVec
	RejectedTotal       *prometheus.CounterVec
	PrunedEventsTotal   *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	makeCounter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        name,
			Help:        help,
			ConstLabels: opts.ConstLabels,
		}, opts.CurriedLabelNames)
	}
	return &PrometheusMetrics{
		AdmittedTotal:       makeCounter("quota_admitted_total", "Number of admitted events."),
		AdmittedWeightTotal: makeCounter("quota_admitted_weight_total", "Total weight of admitted events."),
		RejectedTotal:       makeCounter("quota_rejected_total", "Number of events rejected because of exceeded quota."),
		PrunedEventsTotal:   makeCounter("quota_pruned_events_total", "Number of expired events removed from windows."),
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		AdmittedTotal:       pm.AdmittedTotal.MustCurryWith(labels),
		AdmittedWeightTotal: pm.AdmittedWeightTotal.MustCurryWith(labels),
		RejectedTotal:       pm.RejectedTotal.MustCurryWith(labels),
		PrunedEventsTotal:   pm.PrunedEventsTotal.MustCurryWith(labels),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(pm.AdmittedTotal, pm.AdmittedWeightTotal, pm.RejectedTotal, pm.PrunedEventsTotal)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.AdmittedTotal)
	prometheus.Unregister(pm.AdmittedWeightTotal)
	prometheus.Unregister(pm.RejectedTotal)
	prometheus.Unregister(pm.PrunedEventsTotal)
}

// IncAdmitted increments the number of admitted events and their total weight.
func (pm *PrometheusMetrics) IncAdmitted(weight uint64) {
	pm.AdmittedTotal.With(nil).Inc()
	pm.AdmittedWeightTotal.With(nil).Add(float64(weight))
}

// IncRejected increments the number of rejected events.
func (pm *PrometheusMetrics) IncRejected(uint64) {
	pm.RejectedTotal.With(nil).Inc()
}

// AddPruned increments the number of expired events removed from the window.
func (pm *PrometheusMetrics) AddPruned(events int) {
	pm.PrunedEventsTotal.With(nil).Add(float64(events))
}

type disabledMetrics struct{}

func (disabledMetrics) IncAdmitted(uint64) {}
func (disabledMetrics) IncRejected(uint64) {}
func (disabledMetrics) AddPruned(int)      {}
