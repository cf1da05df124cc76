/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/acronis/go-usagekit/log"
	"github.com/acronis/go-usagekit/middleware"
	"github.com/acronis/go-usagekit/restapi"
)

// RouterOpts represents options for creating the chi.Router.
type RouterOpts struct {
	ErrorDomain string
	Log         LogConfig

	// Middlewares are applied after the request id and logging ones, in the passed order.
	Middlewares []func(http.Handler) http.Handler
}

// NewRouter creates a new chi.Router with request id and logging middlewares applied.
// Unmatched routes and methods get JSON errors.
func NewRouter(logger log.FieldLogger, opts RouterOpts) chi.Router {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID(),
		middleware.LoggingWithOpts(logger, middleware.LoggingOpts{ExcludedEndpoints: opts.Log.ExcludedEndpoints}),
	)
	router.Use(opts.Middlewares...)
	router.NotFound(func(rw http.ResponseWriter, r *http.Request) {
		apiErr := restapi.NewError(opts.ErrorDomain, restapi.ErrCodeNotFound, restapi.ErrMessageNotFound)
		restapi.RespondError(rw, http.StatusNotFound, apiErr, middleware.GetLoggerFromContext(r.Context()))
	})
	router.MethodNotAllowed(func(rw http.ResponseWriter, r *http.Request) {
		apiErr := restapi.NewError(opts.ErrorDomain, restapi.ErrCodeMethodNotAllowed, restapi.ErrMessageMethodNotAllowed)
		restapi.RespondError(rw, http.StatusMethodNotAllowed, apiErr, middleware.GetLoggerFromContext(r.Context()))
	})
	return router
}
