/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package testutil contains helpers for testing trackers, limiters and HTTP handlers.
package testutil

type tHelper interface {
	Helper()
}
