/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package recency

import (
	"container/list"
	"fmt"
	"strings"
	"sync"
)

// Tracker maintains a recency ordering of opaque keys.
type Tracker interface {
	// Insert puts the key at the most recent position.
	Insert(key string)

	// Remove deletes the key. It's a no-op if the key is absent.
	Remove(key string)

	// Clear empties the tracker.
	Clear()

	// Get renders keys (most recent first) separated by newlines.
	Get() string
}

// MRUTracker is a Tracker that keeps at most capacity distinct keys,
// evicting the least recently inserted one when it's full.
type MRUTracker struct {
	capacity int

	mu      sync.RWMutex
	ledger  *list.List               // front is the most recent key
	entries map[string]*list.Element // index of ledger elements by key

	metricsCollector MetricsCollector
}

var _ Tracker = (*MRUTracker)(nil)

// New creates a new MRUTracker that retains up to capacity distinct keys.
// Metrics collector may be nil, in this case, metrics will be disabled.
func New(capacity int, metricsCollector MetricsCollector) (*MRUTracker, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be greater than 0, got %d", capacity)
	}
	if metricsCollector == nil {
		metricsCollector = disabledMetrics{}
	}
	return &MRUTracker{
		capacity:         capacity,
		ledger:           list.New(),
		entries:          make(map[string]*list.Element, capacity),
		metricsCollector: metricsCollector,
	}, nil
}

// NewFromConfig creates a new MRUTracker using the capacity from the passed configuration.
func NewFromConfig(cfg *Config, metricsCollector MetricsCollector) (*MRUTracker, error) {
	return New(cfg.Capacity, metricsCollector)
}

// Insert moves the key to the most recent position, adding it if it's not tracked yet.
// If the tracker is full after that, the least recent key is evicted.
//
// The order matters: an already tracked key is unlinked first,
// so re-inserting a key never causes an eviction.
// The unlinking is done inline (not via Remove) since the lock is not reentrant.
func (t *MRUTracker) Insert(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if elem, ok := t.entries[key]; ok {
		t.ledger.Remove(elem)
		delete(t.entries, key)
		t.metricsCollector.IncPromotions()
	}

	if t.ledger.Len() >= t.capacity {
		if t.removeOldest() {
			t.metricsCollector.AddEvictions(1)
		}
	}

	t.entries[key] = t.ledger.PushFront(key)
	t.metricsCollector.SetAmount(len(t.entries))
}

// Remove deletes the key from the tracker. Absent keys are ignored.
func (t *MRUTracker) Remove(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	elem, ok := t.entries[key]
	if !ok {
		return
	}
	t.ledger.Remove(elem)
	delete(t.entries, key)
	t.metricsCollector.SetAmount(len(t.entries))
}

// Clear removes all keys. Removed keys are not counted as evictions.
func (t *MRUTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ledger.Init()
	t.entries = make(map[string]*list.Element, t.capacity)
	t.metricsCollector.SetAmount(0)
}

// Get returns tracked keys joined by "\n", the most recent first.
// There is no trailing newline, and an empty tracker produces an empty string.
func (t *MRUTracker) Get() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var sb strings.Builder
	for elem := t.ledger.Front(); elem != nil; elem = elem.Next() {
		if elem != t.ledger.Front() {
			sb.WriteByte('\n')
		}
		sb.WriteString(elem.Value.(string))
	}
	return sb.String()
}

// Keys returns a copy of tracked keys, the most recent first.
func (t *MRUTracker) Keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := make([]string, 0, t.ledger.Len())
	for elem := t.ledger.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(string))
	}
	return keys
}

// Contains reports whether the key is tracked. It doesn't affect the recency order.
func (t *MRUTracker) Contains(key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.entries[key]
	return ok
}

// Len returns the number of tracked keys.
func (t *MRUTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ledger.Len()
}

// Capacity returns the maximum number of tracked keys.
func (t *MRUTracker) Capacity() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.capacity
}

// Resize changes the capacity and returns the number of evicted keys.
// Non-positive capacity is ignored.
func (t *MRUTracker) Resize(capacity int) (evicted int) {
	if capacity <= 0 {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.capacity = capacity
	for t.ledger.Len() > t.capacity && t.removeOldest() {
		evicted++
	}
	if evicted > 0 {
		t.metricsCollector.SetAmount(len(t.entries))
		t.metricsCollector.AddEvictions(evicted)
	}
	return evicted
}

func (t *MRUTracker) removeOldest() bool {
	elem := t.ledger.Back()
	if elem == nil {
		return false
	}
	t.ledger.Remove(elem)
	delete(t.entries, elem.Value.(string))
	return true
}
