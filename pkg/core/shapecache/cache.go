// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapecache interns shapes: it maps every distinct shapes.Shape to one shared,
// reference-counted Handle, so that identical shapes are never duplicated in memory and can
// be compared by handle identity.
//
// A Cache is meant to be created once per engine (see package engine) and shared by all
// operators, from any number of goroutines.
//
// Handles are never evicted by operator execution: Release only decrements the reference
// count, and entries with no references are only removed by an explicit Trim (or Finalize).
package shapecache

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/declops/pkg/core/shapes"
	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"
)

// Policy controls what happens to the decoded shape held by a Handle once it is no longer referenced.
type Policy int

const (
	// RetainShapeInfo keeps the decoded shapes.Shape in the Handle for reuse. This is the default.
	RetainShapeInfo Policy = iota

	// DeleteShapeInfo drops the decoded shapes.Shape of a Handle when its reference count
	// reaches zero. Only the encoded buffer is kept, and the shape is decoded again on demand.
	DeleteShapeInfo
)

// String implements fmt.Stringer.
func (p Policy) String() string {
	switch p {
	case RetainShapeInfo:
		return "RetainShapeInfo"
	case DeleteShapeInfo:
		return "DeleteShapeInfo"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// Handle is the interned, canonical representation of a shape.
//
// Two handles returned by the same Cache are the same pointer if and only if their shapes
// are structurally equal.
type Handle struct {
	encoded []int64
	refs    atomic.Int64

	// shape is the decoded shape, it may be nil under the DeleteShapeInfo policy.
	shape atomic.Pointer[shapes.Shape]
}

// Shape returns the interned shape. It implements shapes.HasShape.
//
// The returned value shares its slices with the Handle and must not be modified.
func (h *Handle) Shape() shapes.Shape {
	if s := h.shape.Load(); s != nil {
		return *s
	}
	s, err := shapes.Decode(h.encoded)
	if err != nil {
		exceptions.Panicf("shapecache: interned buffer %v failed to decode: %+v", h.encoded, err)
	}
	h.shape.Store(&s)
	return s
}

// Encoded returns the canonical encoded form of the shape (see shapes.Encode).
// It is owned by the Handle and must not be modified.
func (h *Handle) Encoded() []int64 { return h.encoded }

// RefCount returns the current number of references to the Handle.
func (h *Handle) RefCount() int64 { return h.refs.Load() }

// String implements fmt.Stringer.
func (h *Handle) String() string {
	return fmt.Sprintf("Handle(%s, refs=%d)", h.Shape(), h.RefCount())
}

// Stats are counters of a Cache.
type Stats struct {
	Entries   int
	Hits      int64
	Misses    int64
	Evictions int64

	// Bytes used by the encoded buffers of the entries.
	Bytes uint64
}

// String implements fmt.Stringer.
func (s Stats) String() string {
	return fmt.Sprintf("%d entries (%s), %s hits, %s misses, %s evictions",
		s.Entries, humanize.Bytes(s.Bytes),
		humanize.Comma(s.Hits), humanize.Comma(s.Misses), humanize.Comma(s.Evictions))
}

// Cache interns shapes. Create it with New. It is safe for concurrent use.
type Cache struct {
	policy Policy

	// mu protects entries and bytes: lookups of existing entries take the read lock,
	// insertions and evictions the write lock.
	mu      sync.RWMutex
	entries map[string]*Handle
	bytes   uint64

	hits, misses, evictions atomic.Int64
}

// New creates an empty Cache with the given policy.
func New(policy Policy) *Cache {
	return &Cache{
		policy:  policy,
		entries: make(map[string]*Handle),
	}
}

// Policy returns the policy of the cache.
func (c *Cache) Policy() Policy { return c.policy }

// Intern returns the Handle for the given shape, creating it on first occurrence.
// Every call acquires one reference to the handle, to be returned with Release.
//
// It panics (a programming error) if shape is not valid.
func (c *Cache) Intern(shape shapes.Shape) *Handle {
	if !shape.Ok() {
		exceptions.Panicf("shapecache.Intern(%s): invalid shape", shape)
	}
	key := shape.Key()

	// Fast path: the reference is acquired while holding the read lock, so a concurrent
	// Trim (which needs the write lock) cannot evict the handle before we return it.
	c.mu.RLock()
	h, found := c.entries[key]
	if found {
		h.refs.Add(1)
		c.mu.RUnlock()
		c.hits.Add(1)
		return h
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	h, found = c.entries[key]
	if found {
		// Another goroutine inserted it in between.
		h.refs.Add(1)
		c.hits.Add(1)
		return h
	}
	h = &Handle{encoded: shape.Encode()}
	owned := shape.Clone()
	h.shape.Store(&owned)
	h.refs.Store(1)
	c.entries[key] = h
	c.bytes += uint64(len(h.encoded) * 8)
	c.misses.Add(1)
	if klog.V(3).Enabled() {
		klog.Infof("shapecache: interned %s (%d entries)", owned, len(c.entries))
	}
	return h
}

// Acquire adds one reference to a handle already owned by the caller, for instance when
// it is shared with a new tensor.
//
// It panics if the handle has no references, leaving its count unchanged.
func (c *Cache) Acquire(h *Handle) *Handle {
	for {
		refs := h.refs.Load()
		if refs <= 0 {
			exceptions.Panicf("shapecache.Acquire(%s): handle was not referenced", h)
		}
		if h.refs.CompareAndSwap(refs, refs+1) {
			return h
		}
	}
}

// Release returns one reference to the handle. It never evicts the entry: see Trim.
//
// Under the DeleteShapeInfo policy, the decoded shape is dropped when the last reference
// is released.
//
// It panics if the handle is released more times than it was acquired.
func (c *Cache) Release(h *Handle) {
	refs := h.refs.Add(-1)
	if refs < 0 {
		exceptions.Panicf("shapecache.Release(): handle for %v released more times than acquired", h.encoded)
	}
	if refs == 0 && c.policy == DeleteShapeInfo {
		h.shape.Store(nil)
	}
}

// Trim evicts all entries with no references, and returns the number of entries evicted.
func (c *Cache) Trim() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := 0
	for key, h := range c.entries {
		if h.refs.Load() > 0 {
			continue
		}
		delete(c.entries, key)
		c.bytes -= uint64(len(h.encoded) * 8)
		evicted++
	}
	c.evictions.Add(int64(evicted))
	if evicted > 0 {
		klog.V(1).Infof("shapecache: trimmed %d entries, %d remaining", evicted, len(c.entries))
	}
	return evicted
}

// Len returns the number of interned shapes.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of the counters of the cache.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Entries:   len(c.entries),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Bytes:     c.bytes,
	}
}

// Finalize drops all entries, regardless of their references. Handles still held remain
// usable, but are no longer shared with new calls to Intern.
func (c *Cache) Finalize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	referenced := 0
	for _, h := range c.entries {
		if h.RefCount() > 0 {
			referenced++
		}
	}
	if referenced > 0 {
		klog.Warningf("shapecache: finalized with %d of %d entries still referenced", referenced, len(c.entries))
	}
	c.evictions.Add(int64(len(c.entries)))
	c.entries = make(map[string]*Handle)
	c.bytes = 0
}
