/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package quota provides sliding window admission control over weighted events.
//
// WindowTracker keeps every admitted event of the last duration (a sliding window log)
// and admits a new event only if the sum of weights in the window stays within the budget.
// Time is tracked with whole-second resolution on the clock's monotonic reading,
// so wall clock adjustments don't affect the window.
package quota
