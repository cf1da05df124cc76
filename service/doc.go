/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package service provides primitives for running long-living components of an application
// (HTTP servers, periodic background workers) and stopping them gracefully on OS signals.
package service
