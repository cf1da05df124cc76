/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package middleware provides HTTP middlewares for tracking usage of a service:
// per-client quotas and a listing of the most recently used routes.
package middleware
