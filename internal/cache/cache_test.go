// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package cache

import (
	"sort"
	"strconv"
	"sync"
	"testing"
)

func TestCacheGetSet(t *testing.T) {
	c := New[string, int](0)
	if _, ok := c.Get("Bounce"); ok {
		t.Fatal("empty cache reported a hit")
	}
	c.Set("Bounce", 1)
	c.Set("Hop", 2)
	c.Set("Bounce", 3)

	if v, ok := c.Get("Bounce"); !ok || v != 3 {
		t.Errorf("Get(Bounce) = %d, %v; want 3, true", v, ok)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestCacheClear(t *testing.T) {
	c := New[string, int](0)
	for i := range 5 {
		c.Set(strconv.Itoa(i), i)
	}
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("Len() after Clear = %d", c.Len())
	}
	if _, ok := c.Get("0"); ok {
		t.Error("entry survived Clear")
	}
}

func TestCacheDeleteAndKeys(t *testing.T) {
	c := New[string, int](0)
	c.Set("a", 1)
	c.Set("b", 2)
	if !c.Delete("a") {
		t.Error("Delete(a) = false")
	}
	if c.Delete("a") {
		t.Error("second Delete(a) = true")
	}
	keys := c.Keys()
	sort.Strings(keys)
	if len(keys) != 1 || keys[0] != "b" {
		t.Errorf("Keys() = %v, want [b]", keys)
	}
}

func TestCacheSoftLimitEvictsOldest(t *testing.T) {
	c := New[int, int](4)
	var evicted []int
	c.OnEvict(func(k, _ int) { evicted = append(evicted, k) })

	for i := range 4 {
		c.Set(i, i)
	}
	// Touch 0 so 1 becomes the oldest.
	c.Get(0)
	c.Set(4, 4)

	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}
	sort.Ints(evicted)
	if len(evicted) != 2 || evicted[0] != 1 || evicted[1] != 2 {
		t.Errorf("evicted = %v, want [1 2]", evicted)
	}
	if _, ok := c.Get(0); !ok {
		t.Error("recently used entry was evicted")
	}
}

func TestCacheGetOrCreate(t *testing.T) {
	c := New[string, int](0)
	calls := 0
	create := func() int { calls++; return 7 }

	if v := c.GetOrCreate("k", create); v != 7 {
		t.Fatalf("GetOrCreate = %d", v)
	}
	c.GetOrCreate("k", create)
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}
}

func TestShardedCacheLRU(t *testing.T) {
	// Uint64Hasher with keys that are multiples of ShardCount puts every
	// key in shard 0.
	c := NewSharded[uint64, string](2, Uint64Hasher)
	c.Set(0, "a")
	c.Set(ShardCount, "b")
	c.Get(0)
	c.Set(2*ShardCount, "c")

	if _, ok := c.Get(ShardCount); ok {
		t.Error("least recently used key was not evicted")
	}
	if v, ok := c.Get(0); !ok || v != "a" {
		t.Errorf("Get(0) = %q, %v", v, ok)
	}
	st := c.Stats()
	if st.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", st.Evictions)
	}
	if st.TotalCapacity != 2*ShardCount {
		t.Errorf("TotalCapacity = %d", st.TotalCapacity)
	}
}

func TestShardedCacheDeleteClear(t *testing.T) {
	c := NewSharded[string, int](0, StringHasher)
	c.Set("x", 1)
	c.Set("y", 2)
	if !c.Delete("x") || c.Delete("x") {
		t.Error("Delete reported wrong presence")
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d", c.Len())
	}
}

func TestShardedCacheConcurrentGetOrCreate(t *testing.T) {
	c := NewSharded[string, int](0, StringHasher)
	var mu sync.Mutex
	created := map[string]int{}

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				key := strconv.Itoa((i + g) % 10)
				c.GetOrCreate(key, func() int {
					mu.Lock()
					created[key]++
					mu.Unlock()
					return i
				})
			}
		}()
	}
	wg.Wait()

	for k, n := range created {
		if n != 1 {
			t.Errorf("key %s created %d times", k, n)
		}
	}
	if c.Len() != 10 {
		t.Errorf("Len() = %d, want 10", c.Len())
	}
}
