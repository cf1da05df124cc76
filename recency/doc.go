/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package recency provides a bounded, duplicate-free ledger of the most recently used keys.
// It can be used to produce a "top" listing of the most recently accessed keys (e.g., resources or routes).
package recency
