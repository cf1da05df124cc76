/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/atomic"

	"github.com/acronis/go-usagekit/log"
	"github.com/acronis/go-usagekit/service"
)

// Server is a service.Unit that serves HTTP requests and supports graceful shutdown.
type Server struct {
	HTTPServer      *http.Server
	ShutdownTimeout time.Duration
	Logger          log.FieldLogger

	addr    atomic.String
	started atomic.Bool
	done    chan struct{}
}

var _ service.Unit = (*Server)(nil)

// New creates a new Server with the parameters from the passed configuration.
func New(cfg *Config, handler http.Handler, logger log.FieldLogger) *Server {
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	return &Server{
		HTTPServer: &http.Server{
			Addr:              cfg.Address,
			Handler:           handler,
			WriteTimeout:      time.Duration(cfg.Timeouts.Write),
			ReadTimeout:       time.Duration(cfg.Timeouts.Read),
			ReadHeaderTimeout: time.Duration(cfg.Timeouts.ReadHeader),
			IdleTimeout:       time.Duration(cfg.Timeouts.Idle),
		},
		ShutdownTimeout: time.Duration(cfg.Timeouts.Shutdown),
		Logger:          logger,
		done:            make(chan struct{}),
	}
}

// Start listens on the configured address and serves requests until the server is stopped.
// Listening and serving errors are sent to fatalError.
func (s *Server) Start(fatalError chan<- error) {
	s.started.Store(true)
	defer close(s.done)

	logger := s.Logger.With(
		log.String("address", s.HTTPServer.Addr),
		log.Duration("write_timeout", s.HTTPServer.WriteTimeout),
		log.Duration("read_timeout", s.HTTPServer.ReadTimeout),
		log.Duration("read_header_timeout", s.HTTPServer.ReadHeaderTimeout),
		log.Duration("idle_timeout", s.HTTPServer.IdleTimeout),
		log.Duration("shutdown_timeout", s.ShutdownTimeout),
	)
	logger.Info("starting HTTP server...")

	listener, err := net.Listen("tcp", s.HTTPServer.Addr)
	if err != nil {
		logger.Error("HTTP server error", log.Error(err))
		fatalError <- err
		return
	}
	s.addr.Store(listener.Addr().String())

	if err = s.HTTPServer.Serve(listener); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("HTTP server closed")
			return
		}
		logger.Error("HTTP server error", log.Error(err))
		fatalError <- err
	}
}

// Stop stops the server. If gracefully is true, in-flight requests are awaited within the shutdown timeout.
func (s *Server) Stop(gracefully bool) error {
	if !gracefully {
		s.Logger.Info("closing HTTP server...")
		if err := s.HTTPServer.Close(); err != nil {
			s.Logger.Error("HTTP server closing error", log.Error(err))
			return err
		}
		s.waitDone()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()

	s.Logger.Info("shutting down HTTP server...", log.Duration("timeout", s.ShutdownTimeout))
	if err := s.HTTPServer.Shutdown(ctx); err != nil {
		s.Logger.Error("HTTP server shutting down error", log.Error(err))
		return err
	}
	s.Logger.Info("HTTP server shut down")
	s.waitDone()
	return nil
}

// Addr returns the address the server listens on. It's empty until the server starts listening.
func (s *Server) Addr() string {
	return s.addr.Load()
}

func (s *Server) waitDone() {
	if s.started.Load() {
		<-s.done
	}
}
