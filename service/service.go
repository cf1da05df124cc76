/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/acronis/go-usagekit/log"
)

// Opts represents an options for Service.
type Opts struct {
	// ShutdownSignals stop the service gracefully. SIGINT and SIGTERM are used by default.
	ShutdownSignals []os.Signal
}

// Service starts the unit, and stops it gracefully when the context is done or a shutdown signal is received.
// Metrics of the unit are registered for the service's lifetime if it implements MetricsRegisterer.
type Service struct {
	Unit    Unit
	Signals chan os.Signal
	Logger  log.FieldLogger
	Opts    Opts
}

// New creates a new Service which starts and stops the passed unit.
func New(logger log.FieldLogger, unit Unit) *Service {
	return NewWithOpts(logger, unit, Opts{})
}

// NewWithOpts is a more configurable version of New.
func NewWithOpts(logger log.FieldLogger, unit Unit, opts Opts) *Service {
	if len(opts.ShutdownSignals) == 0 {
		opts.ShutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	return &Service{Unit: unit, Signals: make(chan os.Signal, 1), Logger: logger, Opts: opts}
}

// Start wraps StartContext using the background context.
func (s *Service) Start() error {
	return s.StartContext(context.Background())
}

// StartContext starts the unit in a separate goroutine and blocks until it fails,
// the context is done, or a shutdown signal is received.
func (s *Service) StartContext(ctx context.Context) error {
	if mr, ok := s.Unit.(MetricsRegisterer); ok {
		mr.MustRegisterMetrics()
		defer mr.UnregisterMetrics()
	}

	signal.Notify(s.Signals, s.Opts.ShutdownSignals...)
	defer signal.Stop(s.Signals)

	fatalError := make(chan error, 1)
	go s.Unit.Start(fatalError)

	select {
	case err := <-fatalError:
		s.Logger.Error("service fatal error", log.Error(err))
		return fmt.Errorf("fatal error: %w", err)
	case <-ctx.Done():
		s.Logger.Info("context is canceled, service will be stopped")
	case sig := <-s.Signals:
		s.Logger.Info("service got signal", log.String("signal", sig.String()))
	}

	if err := s.Unit.Stop(true); err != nil {
		return fmt.Errorf("stop service gracefully: %w", err)
	}
	s.Logger.Info("service stopped")
	return nil
}
