/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"fmt"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/acronis/go-usagekit/log"
)

const userAgentLogFieldKey = "user_agent"

// LoggingOpts represents an options for Logging middleware.
type LoggingOpts struct {
	// ExcludedEndpoints are URL paths for which completed requests are not logged (unless they failed).
	ExcludedEndpoints []string
}

type loggingHandler struct {
	next   http.Handler
	logger log.FieldLogger
	opts   LoggingOpts
}

// Logging is a middleware that logs info about HTTP request and response.
// Also, it puts logger (with request id in fields) into request's context,
// so the following middlewares and handlers log with it.
func Logging(logger log.FieldLogger) func(next http.Handler) http.Handler {
	return LoggingWithOpts(logger, LoggingOpts{})
}

// LoggingWithOpts is a more configurable version of Logging middleware.
func LoggingWithOpts(logger log.FieldLogger, opts LoggingOpts) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return &loggingHandler{next: next, logger: logger, opts: opts}
	}
}

func (h *loggingHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	loggerForNext := h.logger.With(log.String("request_id", GetRequestIDFromContext(r.Context())))
	logger := loggerForNext.With(
		log.String("method", r.Method),
		log.String("uri", r.RequestURI),
		log.String("remote_addr", r.RemoteAddr),
		log.String(userAgentLogFieldKey, r.UserAgent()),
	)

	wrw := chimw.NewWrapResponseWriter(rw, r.ProtoMajor)
	h.next.ServeHTTP(wrw, r.WithContext(NewContextWithLogger(r.Context(), loggerForNext)))

	status := wrw.Status()
	if status == 0 { // nothing has been written
		status = http.StatusOK
	}
	if status < http.StatusBadRequest && isLoggingDisabled(r.URL.Path, h.opts.ExcludedEndpoints) {
		return
	}
	duration := time.Since(startTime)
	logger.Info(
		fmt.Sprintf("response completed in %.3fs", duration.Seconds()),
		log.Int64("duration_ms", duration.Milliseconds()),
		log.Int("status", status),
		log.Int("bytes_sent", wrw.BytesWritten()),
	)
}

func isLoggingDisabled(urlPath string, noLogEndpoints []string) bool {
	for _, endpoint := range noLogEndpoints {
		if urlPath == endpoint {
			return true
		}
	}
	return false
}
