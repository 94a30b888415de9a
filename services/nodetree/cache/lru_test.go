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
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[string, int](2)
	c.Set("a", 1)
	c.Set("b", 2)

	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("c", 3)

	_, ok = c.Get("b")
	assert.False(t, ok, "b was least recently used")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, 2, stats.Capacity)
}

func TestLRU_UpdateDeletePurge(t *testing.T) {
	c := NewLRU[string, int](0)
	assert.Equal(t, DefaultCapacity, c.Stats().Capacity)

	c.Set("a", 1)
	c.Set("a", 2)
	v, _ := c.Get("a")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))

	c.Set("x", 1)
	c.Set("y", 2)
	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestStats_HitRate(t *testing.T) {
	assert.Equal(t, 0.0, Stats{}.HitRate())
	assert.Equal(t, 0.75, Stats{Hits: 3, Misses: 1}.HitRate())
}

type countingObserver struct {
	hits, misses atomic.Int64
}

func (o *countingObserver) Hit()  { o.hits.Add(1) }
func (o *countingObserver) Miss() { o.misses.Add(1) }

func TestLoader_CachesFoundValues(t *testing.T) {
	obs := &countingObserver{}
	l := NewLoader[string](8, obs)
	ctx := context.Background()

	var loads atomic.Int32
	load := func(context.Context) (string, bool, error) {
		loads.Add(1)
		return "value", true, nil
	}

	for i := 0; i < 3; i++ {
		v, found, err := l.Get(ctx, "k", load)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "value", v)
	}
	assert.Equal(t, int32(1), loads.Load())
	assert.Equal(t, int64(2), obs.hits.Load())
	assert.Equal(t, int64(1), obs.misses.Load())
}

func TestLoader_DoesNotCacheAbsentOrFailed(t *testing.T) {
	l := NewLoader[int](8, nil)
	ctx := context.Background()

	var loads atomic.Int32
	absent := func(context.Context) (int, bool, error) {
		loads.Add(1)
		return 0, false, nil
	}
	_, found, err := l.Get(ctx, "k", absent)
	require.NoError(t, err)
	assert.False(t, found)
	_, _, _ = l.Get(ctx, "k", absent)
	assert.Equal(t, int32(2), loads.Load())

	boom := errors.New("boom")
	_, _, err = l.Get(ctx, "e", func(context.Context) (int, bool, error) { return 0, false, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, l.Stats().Size)
}

func TestLoader_CollapsesConcurrentLoads(t *testing.T) {
	l := NewLoader[int](8, nil)
	ctx := context.Background()

	var loads atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (int, bool, error) {
		loads.Add(1)
		<-release
		return 42, true, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, found, err := l.Get(ctx, "k", load)
			assert.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, 42, v)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, loads.Load(), int32(10))
	assert.GreaterOrEqual(t, loads.Load(), int32(1))

	l.Invalidate("k")
	assert.Equal(t, 0, l.Stats().Size)
}
