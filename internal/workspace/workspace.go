// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workspace provides the scratch memory used while inferring shapes.
//
// Scratch buffers are acquired through a Scope, and all buffers of a Scope are returned at
// once with Scope.Release, usually deferred right after Workspace.Begin, so they are
// released on every exit path.
package workspace

import (
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/gomlx/exceptions"
)

// numSizeClasses of the pools: buffers are rounded up to powers of 2, up to 2^(numSizeClasses-1) words.
const numSizeClasses = 16

// Workspace hands out scratch []int64 buffers, reusing released ones. It is safe for concurrent use.
type Workspace struct {
	pools [numSizeClasses]sync.Pool

	inUse atomic.Int64
	peak  atomic.Int64
}

// New creates a new Workspace.
func New() *Workspace {
	return &Workspace{}
}

// sizeClass returns the pool index for a buffer of n words, or -1 if it is too large to be pooled.
func sizeClass(n int) int {
	if n <= 1 {
		return 0
	}
	class := bits.Len(uint(n - 1))
	if class >= numSizeClasses {
		return -1
	}
	return class
}

// Begin starts a new Scope. Call Scope.Release (usually deferred) when done.
func (w *Workspace) Begin() *Scope {
	return &Scope{ws: w}
}

// InUse returns the number of words currently acquired and not released.
func (w *Workspace) InUse() int64 { return w.inUse.Load() }

// Peak returns the largest number of words simultaneously in use.
func (w *Workspace) Peak() int64 { return w.peak.Load() }

func (w *Workspace) get(n int) *[]int64 {
	class := sizeClass(n)
	var buf *[]int64
	if class >= 0 {
		if pooled, ok := w.pools[class].Get().(*[]int64); ok {
			buf = pooled
		}
	}
	if buf == nil {
		capacity := n
		if class >= 0 {
			capacity = 1 << class
		}
		newBuf := make([]int64, capacity)
		buf = &newBuf
	}
	*buf = (*buf)[:n]
	clear(*buf)
	inUse := w.inUse.Add(int64(n))
	for {
		peak := w.peak.Load()
		if inUse <= peak || w.peak.CompareAndSwap(peak, inUse) {
			break
		}
	}
	return buf
}

func (w *Workspace) put(buf *[]int64) {
	n := len(*buf)
	w.inUse.Add(-int64(n))
	class := sizeClass(cap(*buf))
	if class < 0 || cap(*buf) != 1<<class {
		return
	}
	w.pools[class].Put(buf)
}

// Scope groups scratch buffers that are released together. A Scope is not safe for
// concurrent use: it belongs to a single call.
type Scope struct {
	ws       *Workspace
	buffers  []*[]int64
	released bool
}

// Alloc returns a zeroed scratch buffer of n words, valid until Release.
//
// It panics if the scope was already released.
func (s *Scope) Alloc(n int) []int64 {
	if s.released {
		exceptions.Panicf("workspace.Scope.Alloc(%d): scope already released", n)
	}
	if n < 0 {
		exceptions.Panicf("workspace.Scope.Alloc(%d): negative size", n)
	}
	buf := s.ws.get(n)
	s.buffers = append(s.buffers, buf)
	return *buf
}

// Len returns the number of buffers allocated in the scope.
func (s *Scope) Len() int { return len(s.buffers) }

// Release returns all buffers of the scope to the workspace. It is idempotent.
// Buffers returned by Alloc must not be used after Release.
func (s *Scope) Release() {
	if s.released {
		return
	}
	s.released = true
	for _, buf := range s.buffers {
		s.ws.put(buf)
	}
	s.buffers = nil
}
