/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

// Unit is a component of the service with its own lifecycle.
type Unit interface {
	// Start runs the unit. It may return right after initialization or block for the unit's lifetime.
	// A failure is reported by writing to fatalErr (at most once, before Start returns).
	Start(fatalErr chan<- error)

	// Stop halts the unit. It may be called even if Start failed or was never called.
	Stop(gracefully bool) error
}

// MetricsRegisterer is implemented by units which own Prometheus metrics.
type MetricsRegisterer interface {
	MustRegisterMetrics()
	UnregisterMetrics()
}
