/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package admission provides keyed admission control on top of different limiting algorithms.
//
// Every client key (e.g., remote address or user identity) gets its own limiter.
// The default algorithm is an exact weighted sliding window log (see the quota package),
// approximate sliding window counter, leaky bucket (GCRA) and token bucket are available as well.
//
// Key features:
//   - Weighted admission (AllowN) with retry-after estimation
//   - LRU-based key management for memory efficiency
//   - Sweeping of idle keys
//   - Optional backlog queuing and client-side waiting with backoff
package admission
