// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool runs independent tasks, like the calls of a batch, with bounded parallelism.
package workerspool

import (
	"runtime"
	"sync"
)

// Pool limits the number of tasks running in parallel. It is safe for concurrent use.
type Pool struct {
	// maxParallelism is the limit of tasks running in their own goroutine.
	// 0 disables parallelism and -1 means unlimited.
	maxParallelism int

	mu         sync.Mutex
	cond       sync.Cond // Signaled whenever numRunning is decreased.
	numRunning int
}

// New returns a new Pool with the given parallelism. If maxParallelism is 0 tasks run inline
// in the caller, and if it is negative parallelism is unlimited.
func New(maxParallelism int) *Pool {
	p := &Pool{maxParallelism: maxParallelism}
	p.cond = sync.Cond{L: &p.mu}
	return p
}

// NewDefault returns a new Pool with parallelism runtime.NumCPU().
func NewDefault() *Pool {
	return New(runtime.NumCPU())
}

// IsEnabled returns whether parallelism is enabled (maxParallelism != 0).
func (p *Pool) IsEnabled() bool { return p.maxParallelism != 0 }

// IsUnlimited returns whether parallelism is unlimited (maxParallelism < 0).
func (p *Pool) IsUnlimited() bool { return p.maxParallelism < 0 }

// MaxParallelism returns the configured limit: 0 if disabled, -1 if unlimited.
func (p *Pool) MaxParallelism() int { return p.maxParallelism }

// NumRunning returns the number of tasks currently running in their own goroutine.
func (p *Pool) NumRunning() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.numRunning
}

// lockedIsFull returns whether all workers are in use. It must be called with p.mu held.
func (p *Pool) lockedIsFull() bool {
	if p.maxParallelism == 0 {
		return true
	} else if p.maxParallelism < 0 {
		return false
	}
	return p.numRunning >= p.maxParallelism
}

// lockedRunTaskInGoroutine starts the task and keeps tabs on p.numRunning. It must be called with p.mu held.
func (p *Pool) lockedRunTaskInGoroutine(task func()) {
	p.numRunning++
	go func() {
		defer func() {
			p.mu.Lock()
			p.numRunning--
			p.cond.Signal()
			p.mu.Unlock()
		}()
		task()
	}()
}

// WaitToStart waits until a worker is available and runs the task in a new goroutine.
// If parallelism is disabled, it runs the task inline and returns when it is finished.
func (p *Pool) WaitToStart(task func()) {
	if !p.IsEnabled() {
		task()
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.lockedIsFull() {
		p.cond.Wait()
	}
	p.lockedRunTaskInGoroutine(task)
}

// StartIfAvailable runs the task in a new goroutine if a worker is available, and returns whether it did.
// It's up to the caller to synchronize the end of the task.
func (p *Pool) StartIfAvailable(task func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lockedIsFull() {
		return false
	}
	p.lockedRunTaskInGoroutine(task)
	return true
}

// Map calls task(i) for every i in [0, n) and returns when all calls returned.
//
// Calls run in parallel on the available workers; when none is available the caller's goroutine
// runs the call itself, so Map never blocks waiting for workers.
// task must not panic.
func (p *Pool) Map(n int, task func(i int)) {
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		run := func() {
			defer wg.Done()
			task(i)
		}
		if !p.StartIfAvailable(run) {
			run()
		}
	}
	wg.Wait()
}
