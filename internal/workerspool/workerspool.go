// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool implements a soft-limited pool of goroutines, used as the concurrent work
// provider for compilations and asynchronous custom-call work.
package workerspool

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/gomlx/jitrt/pkg/support/xsync"
)

// Pool runs tasks in goroutines, with a soft limit on the number of tasks running at the same time.
//
// Pool implements jitrt.TaskRunner.
type Pool struct {
	// maxParallelism is a soft target on the limit of parallel work to do.
	maxParallelism int
	mu             sync.Mutex
	cond           sync.Cond // Signaled whenever numRunning is decreased.
	numRunning     int

	// extraParallelism is temporarily increased when a worker goes to sleep.
	extraParallelism atomic.Int32

	// pending counts tasks started and not yet finished, see Wait.
	pending *xsync.DynamicWaitGroup
}

// New return a new Pool of workers with the default parallelism (runtime.NumCPU()).
func New() *Pool {
	return NewWithParallelism(runtime.NumCPU())
}

// NewWithParallelism returns a new Pool with the given maxParallelism, see SetMaxParallelism.
func NewWithParallelism(maxParallelism int) *Pool {
	w := &Pool{
		maxParallelism: maxParallelism,
		pending:        xsync.NewDynamicWaitGroup(),
	}
	w.cond = sync.Cond{L: &w.mu}
	return w
}

// IsEnabled returns whether parallelism is enabled (maxParallelism is != 0)
func (w *Pool) IsEnabled() bool {
	return w.maxParallelism != 0
}

// IsUnlimited returns whether parallelism is unlimited (maxParallelism < 0)
func (w *Pool) IsUnlimited() bool {
	return w.maxParallelism < 0
}

// MaxParallelism is a soft-target for parallelism.
// If set to 0 parallelism is disabled, and tasks run inline.
// If set to -1 parallelism is unlimited.
func (w *Pool) MaxParallelism() int {
	return w.maxParallelism
}

// SetMaxParallelism sets the maxParallelism.
//
// You should only change the parallelism before any workers start running. If changed during the execution
// the behavior is undefined.
func (w *Pool) SetMaxParallelism(maxParallelism int) {
	w.maxParallelism = maxParallelism
}

// lockedIsFull returns whether all available workers are in use.
//
// It must be called with Pool.mu acquired.
func (w *Pool) lockedIsFull() bool {
	if w.maxParallelism == 0 {
		return true
	} else if w.maxParallelism < 0 {
		return false
	}
	return w.numRunning >= w.maxParallelism+int(w.extraParallelism.Load())
}

// Run implements jitrt.TaskRunner: it waits for a worker to be available and starts task on it.
// It's an alias to WaitToStart.
func (w *Pool) Run(task func()) {
	w.WaitToStart(task)
}

// WaitToStart waits until there is a worker available to run the task.
//
// If parallelism is disabled (maxParallelism is 0), it runs the task inline and returns when it is finished.
func (w *Pool) WaitToStart(task func()) {
	w.pending.Add(1)
	if w.IsUnlimited() {
		go w.runTask(task)
		return
	} else if w.maxParallelism == 0 {
		w.runTask(task)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for w.lockedIsFull() {
		w.cond.Wait()
	}
	w.lockedRunTaskInGoroutine(task)
}

func (w *Pool) runTask(task func()) {
	defer w.pending.Done()
	task()
}

// lockedRunTaskInGoroutine and keep tabs on w.numRunning.
//
// It must be called with Pool.mu acquired.
func (w *Pool) lockedRunTaskInGoroutine(task func()) {
	w.numRunning++
	go func() {
		w.runTask(task)
		w.mu.Lock()
		w.numRunning--
		w.cond.Signal()
		w.mu.Unlock()
	}()
}

// StartIfAvailable runs the task in a separate goroutine, if there are enough workers left.
// It returns true if it found workers to run the function, false otherwise.
func (w *Pool) StartIfAvailable(task func()) bool {
	if w.IsUnlimited() {
		w.pending.Add(1)
		go w.runTask(task)
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lockedIsFull() {
		return false
	}
	w.pending.Add(1)
	w.lockedRunTaskInGoroutine(task)
	return true
}

// WorkerIsAsleep indicates the worker (the one that called the method) is going to sleep waiting
// for other workers, and temporarily increases the available number of workers.
//
// Call WorkerRestarted when the worker is ready to run again.
func (w *Pool) WorkerIsAsleep() {
	w.extraParallelism.Add(1)
	w.mu.Lock()
	w.cond.Signal()
	w.mu.Unlock()
}

// WorkerRestarted indicates the worker (the one that called the method) is ready to run again.
// It should only be called after WorkerIsAsleep.
func (w *Pool) WorkerRestarted() {
	w.extraParallelism.Add(-1)
}

// Wait blocks until every task started so far, and any task they start, has finished.
func (w *Pool) Wait() {
	w.pending.Wait()
}

// NumRunning returns the number of tasks currently running in goroutines of the pool.
func (w *Pool) NumRunning() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.numRunning
}
