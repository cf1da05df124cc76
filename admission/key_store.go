/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// keyStore keeps per-key values created on demand.
// If maxKeys is 0, all keys share a single value.
// Otherwise, at most maxKeys values are stored and the least recently used one is evicted.
type keyStore[T any] struct {
	newValue func() (T, error)

	shared T

	mu    sync.Mutex // serializes get-or-add
	cache *lru.Cache
}

func newKeyStore[T any](maxKeys int, newValue func() (T, error)) (*keyStore[T], error) {
	if maxKeys < 0 {
		return nil, fmt.Errorf("max keys should not be negative, got %d", maxKeys)
	}
	if maxKeys == 0 {
		shared, err := newValue()
		if err != nil {
			return nil, err
		}
		return &keyStore[T]{newValue: newValue, shared: shared}, nil
	}
	cache, err := lru.New(maxKeys)
	if err != nil {
		return nil, fmt.Errorf("new LRU in-memory store for keys: %w", err)
	}
	return &keyStore[T]{newValue: newValue, cache: cache}, nil
}

func (s *keyStore[T]) getOrAdd(key string) (T, error) {
	if s.cache == nil {
		return s.shared, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if val, ok := s.cache.Get(key); ok {
		return val.(T), nil
	}
	val, err := s.newValue()
	if err != nil {
		return val, err
	}
	s.cache.Add(key, val)
	return val, nil
}

// sharedValue returns the value shared by all keys if maxKeys is 0.
func (s *keyStore[T]) sharedValue() (T, bool) {
	return s.shared, s.cache == nil
}

// removeIf walks through all stored values (without affecting their recency)
// and removes the ones for which fn returns true.
// fn is called under the store lock, so no value it decides to remove can be handed out
// by getOrAdd after that. The shared value is never passed to fn.
func (s *keyStore[T]) removeIf(fn func(key string, val T) bool) (removed int) {
	if s.cache == nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range s.cache.Keys() {
		val, ok := s.cache.Peek(key)
		if !ok {
			continue
		}
		if fn(key.(string), val.(T)) {
			s.cache.Remove(key)
			removed++
		}
	}
	return removed
}

func (s *keyStore[T]) len() int {
	if s.cache == nil {
		return 1
	}
	return s.cache.Len()
}
