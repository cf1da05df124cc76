/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package restapi provides helpers for writing JSON responses and errors in a uniform format.
package restapi
