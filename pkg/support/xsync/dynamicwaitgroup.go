package xsync

import (
	"sync"

	"github.com/gomlx/exceptions"
)

// DynamicWaitGroup counts in-flight work, like sync.WaitGroup, except that work can be added while
// another goroutine is blocked in Wait. Wait returns the first time the count drops to zero.
//
// JitExecutable uses it to track compilations scheduled on a TaskRunner, which may start new
// compilations at any time.
type DynamicWaitGroup struct {
	mu      sync.Mutex
	drained *sync.Cond // Signalled when inFlight drops to zero.

	inFlight int
}

// NewDynamicWaitGroup returns a DynamicWaitGroup with nothing in flight.
func NewDynamicWaitGroup() *DynamicWaitGroup {
	wg := &DynamicWaitGroup{}
	wg.drained = sync.NewCond(&wg.mu)
	return wg
}

// Add adds delta (possibly negative) to the in-flight count.
//
// It panics if the count becomes negative: that's a Done without its Add.
func (wg *DynamicWaitGroup) Add(delta int) {
	wg.mu.Lock()
	defer wg.mu.Unlock()
	wg.inFlight += delta
	switch {
	case wg.inFlight < 0:
		exceptions.Panicf("DynamicWaitGroup: %d in flight after adding %d", wg.inFlight, delta)
	case wg.inFlight == 0:
		wg.drained.Broadcast()
	}
}

// Done marks one unit of work as finished.
func (wg *DynamicWaitGroup) Done() { wg.Add(-1) }

// Count returns the amount of work in flight.
func (wg *DynamicWaitGroup) Count() int {
	wg.mu.Lock()
	defer wg.mu.Unlock()
	return wg.inFlight
}

// Wait blocks until nothing is in flight.
func (wg *DynamicWaitGroup) Wait() {
	wg.mu.Lock()
	defer wg.mu.Unlock()
	// Re-checked after each wake up: work may have been added since the broadcast.
	for wg.inFlight > 0 {
		wg.drained.Wait()
	}
}
