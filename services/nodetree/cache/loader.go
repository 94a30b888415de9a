// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// LoadFunc reads a value from the backing store.
//
// found is false when the key does not exist; absent keys are not cached.
type LoadFunc[V any] func(ctx context.Context) (value V, found bool, err error)

// Observer receives cache outcomes. Both methods may be called concurrently.
type Observer interface {
	Hit()
	Miss()
}

// Loader is a read-through LRU that collapses concurrent loads of the same
// key into one backing read.
//
// Thread Safety: Safe for concurrent use.
type Loader[V any] struct {
	lru      *LRU[string, V]
	flight   singleflight.Group
	observer Observer
}

// NewLoader creates a loader caching up to capacity values. observer may be nil.
func NewLoader[V any](capacity int, observer Observer) *Loader[V] {
	return &Loader[V]{lru: NewLRU[string, V](capacity), observer: observer}
}

type loadResult[V any] struct {
	value V
	found bool
}

// Get returns the cached value for key or loads it with load.
func (l *Loader[V]) Get(ctx context.Context, key string, load LoadFunc[V]) (V, bool, error) {
	if v, ok := l.lru.Get(key); ok {
		if l.observer != nil {
			l.observer.Hit()
		}
		return v, true, nil
	}
	if l.observer != nil {
		l.observer.Miss()
	}

	res, err, _ := l.flight.Do(key, func() (interface{}, error) {
		v, found, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if found {
			l.lru.Set(key, v)
		}
		return loadResult[V]{value: v, found: found}, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	r := res.(loadResult[V])
	return r.value, r.found, nil
}

// Invalidate drops a cached key.
func (l *Loader[V]) Invalidate(key string) {
	l.lru.Delete(key)
}

// Purge drops every cached value.
func (l *Loader[V]) Purge() {
	l.lru.Purge()
}

// Stats returns the LRU counters.
func (l *Loader[V]) Stats() Stats {
	return l.lru.Stats()
}
