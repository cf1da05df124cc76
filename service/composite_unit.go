/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"strings"
	"sync"
)

// CompositeUnit starts and stops a group of units together.
type CompositeUnit struct {
	Units []Unit
}

var _ Unit = (*CompositeUnit)(nil)
var _ MetricsRegisterer = (*CompositeUnit)(nil)

// NewCompositeUnit creates a new composite unit.
func NewCompositeUnit(units ...Unit) *CompositeUnit {
	return &CompositeUnit{units}
}

// Start starts all units concurrently and blocks until all their Start calls return.
// If any unit fails, the others are stopped non-gracefully,
// and a CompositeUnitError with all collected errors is sent to fatalError.
func (cu *CompositeUnit) Start(fatalError chan<- error) {
	unitErrs := make(chan error, len(cu.Units))
	failed := make(chan struct{})
	var failOnce sync.Once
	var wg sync.WaitGroup
	wg.Add(len(cu.Units))
	for _, u := range cu.Units {
		go func(u Unit) {
			defer wg.Done()
			unitFatalErr := make(chan error, 1)
			u.Start(unitFatalErr)
			select {
			case err := <-unitFatalErr:
				unitErrs <- err
				failOnce.Do(func() { close(failed) })
			default:
			}
		}(u)
	}

	allReturned := make(chan struct{})
	go func() {
		wg.Wait()
		close(allReturned)
	}()

	select {
	case <-allReturned:
	case <-failed:
	}
	select {
	case <-failed:
	default:
		return
	}

	stopErr := cu.Stop(false)
	<-allReturned
	close(unitErrs)
	var errs []error
	for err := range unitErrs {
		errs = append(errs, err)
	}
	if stopErr != nil {
		errs = append(errs, stopErr.(*CompositeUnitError).UnitErrors...)
	}
	fatalError <- &CompositeUnitError{errs}
}

// Stop stops all units concurrently. Errors are collected into a single CompositeUnitError.
func (cu *CompositeUnit) Stop(gracefully bool) error {
	var mu sync.Mutex
	var errs []error
	var wg sync.WaitGroup
	wg.Add(len(cu.Units))
	for _, u := range cu.Units {
		go func(u Unit) {
			defer wg.Done()
			if err := u.Stop(gracefully); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(u)
	}
	wg.Wait()
	if len(errs) > 0 {
		return &CompositeUnitError{errs}
	}
	return nil
}

// MustRegisterMetrics registers metrics of all units which implement MetricsRegisterer.
func (cu *CompositeUnit) MustRegisterMetrics() {
	for _, u := range cu.Units {
		if mr, ok := u.(MetricsRegisterer); ok {
			mr.MustRegisterMetrics()
		}
	}
}

// UnregisterMetrics unregisters metrics of all units which implement MetricsRegisterer.
func (cu *CompositeUnit) UnregisterMetrics() {
	for _, u := range cu.Units {
		if mr, ok := u.(MetricsRegisterer); ok {
			mr.UnregisterMetrics()
		}
	}
}

// CompositeUnitError is returned by CompositeUnit when one or more units fail.
type CompositeUnitError struct {
	UnitErrors []error
}

// Error joins messages of all unit errors.
func (cue *CompositeUnitError) Error() string {
	msgs := make([]string, 0, len(cue.UnitErrors))
	for _, err := range cue.UnitErrors {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Unwrap returns the unit errors, so errors.Is and errors.As look into them.
func (cue *CompositeUnitError) Unwrap() []error {
	return cue.UnitErrors
}
