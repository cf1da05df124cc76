/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package httpserver provides a configurable HTTP server that runs as service.Unit,
// and a chi router with request id and logging middlewares applied.
package httpserver
