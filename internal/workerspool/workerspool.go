// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool implements a small worker pool with a soft cap on
// parallelism. It is used by the tensors kernels to fan work out across
// independent slices of an output (for instance one matrix product per batch
// element) without creating an unbounded number of goroutines.
package workerspool

import (
	"runtime"
	"sync"
)

// Pool caps the number of concurrently running tasks.
//
// The cap is a soft target: tasks are never rejected, callers of WaitToStart
// block until a slot frees up.
type Pool struct {
	mu         sync.Mutex
	cond       sync.Cond // Signaled whenever numRunning decreases.
	numRunning int

	// maxParallelism: 0 disables parallelism (tasks run inline),
	// negative means unlimited.
	maxParallelism int
}

// New returns a Pool with the default parallelism of runtime.NumCPU().
func New() *Pool {
	w := &Pool{maxParallelism: runtime.NumCPU()}
	w.cond = sync.Cond{L: &w.mu}
	return w
}

// IsEnabled returns whether parallelism is enabled (MaxParallelism != 0).
func (w *Pool) IsEnabled() bool {
	return w.maxParallelism != 0
}

// MaxParallelism returns the current cap. 0 means disabled, negative means
// unlimited.
func (w *Pool) MaxParallelism() int {
	return w.maxParallelism
}

// SetMaxParallelism changes the cap. Only call it while no tasks are
// running, the behavior is undefined otherwise.
func (w *Pool) SetMaxParallelism(maxParallelism int) {
	w.maxParallelism = maxParallelism
}

func (w *Pool) lockedIsFull() bool {
	if w.maxParallelism == 0 {
		return true
	}
	if w.maxParallelism < 0 {
		return false
	}
	return w.numRunning >= w.maxParallelism
}

// WaitToStart runs task in its own goroutine as soon as the pool has a free
// slot, blocking the caller until then. If parallelism is disabled it simply
// runs the task inline before returning.
//
// The caller is responsible for tracking completion (typically with a
// sync.WaitGroup around a batch of WaitToStart calls).
func (w *Pool) WaitToStart(task func()) {
	if w.maxParallelism < 0 {
		go task()
		return
	}
	if w.maxParallelism == 0 {
		task()
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for w.lockedIsFull() {
		w.cond.Wait()
	}
	w.numRunning++
	go func() {
		task()
		w.mu.Lock()
		w.numRunning--
		w.cond.Signal()
		w.mu.Unlock()
	}()
}
