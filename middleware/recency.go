/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vasayxtx/go-glob"

	"github.com/acronis/go-usagekit/recency"
	"github.com/acronis/go-usagekit/restapi"
)

// RecencyGetKeyFunc is a function that is called for getting the key which is put into the recency tracker.
// Empty key means the request is not tracked.
type RecencyGetKeyFunc func(r *http.Request) string

// RecencyOpts represents an options for the Recency middleware.
type RecencyOpts struct {
	// GetKey returns the key for the request. It's called after the request is served,
	// so the chi route pattern is already known. GetRoutePattern is used by default.
	GetKey RecencyGetKeyFunc

	// ExcludedPaths are glob patterns of URL paths which are not tracked.
	ExcludedPaths []string
}

type recencyHandler struct {
	next          http.Handler
	tracker       recency.Tracker
	getKey        RecencyGetKeyFunc
	excludedPaths []func(s string) bool
}

// Recency is a middleware that puts the route of every served request into the recency tracker.
func Recency(tracker recency.Tracker) func(next http.Handler) http.Handler {
	return RecencyWithOpts(tracker, RecencyOpts{})
}

// RecencyWithOpts is a more configurable version of Recency middleware.
func RecencyWithOpts(tracker recency.Tracker, opts RecencyOpts) func(next http.Handler) http.Handler {
	getKey := opts.GetKey
	if getKey == nil {
		getKey = GetRoutePattern
	}
	excludedPaths := make([]func(s string) bool, 0, len(opts.ExcludedPaths))
	for _, p := range opts.ExcludedPaths {
		excludedPaths = append(excludedPaths, glob.Compile(p))
	}
	return func(next http.Handler) http.Handler {
		return &recencyHandler{next: next, tracker: tracker, getKey: getKey, excludedPaths: excludedPaths}
	}
}

func (h *recencyHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	h.next.ServeHTTP(rw, r)

	for _, match := range h.excludedPaths {
		if match(r.URL.Path) {
			return
		}
	}
	if key := h.getKey(r); key != "" {
		h.tracker.Insert(key)
	}
}

// GetRoutePattern returns the chi route pattern of the request (e.g., "/users/{id}").
// URL path is returned if the request was not routed by chi.
func GetRoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// TopHandler returns an HTTP handler that responds with the tracked keys
// (the most recent first, one per line) in plain text.
func TopHandler(tracker recency.Tracker) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		restapi.RespondText(rw, tracker.Get(), GetLoggerFromContext(r.Context()))
	})
}
