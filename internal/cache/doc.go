// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package cache provides the generic caches used by the renderer.
//
// # Cache[K, V]
//
// A mutex-guarded map with a soft limit and access-time eviction. The
// artifact cache sits on top of it: a handful of entries per source image,
// cleared wholesale when the image changes.
//
//	c := cache.New[string, []byte](32)
//	c.Set("Bounce", gif)
//	data, ok := c.Get("Bounce")
//
// # ShardedCache[K, V]
//
// A 16-way sharded LRU for keys hit from many goroutines at once, such as
// compiled shader modules keyed by source text.
//
//	modules := cache.NewSharded[string, *Module](0, cache.StringHasher)
//
// Neither cache may be copied after creation.
package cache
