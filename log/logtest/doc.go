/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package logtest provides log.FieldLogger implementations for testing code that logs.
package logtest
