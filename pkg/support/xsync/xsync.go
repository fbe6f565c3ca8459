// Package xsync implements some extra synchronization tools: latches, promises, a typed sync.Map
// and a wait group that can grow while being waited on.
package xsync

import (
	"sync"

	"github.com/pkg/errors"
)

// Latch implements a "latch" synchronization mechanism.
//
// A Latch is a signal that can be waited for until it is triggered.
// Once triggered it never changes state, it's forever triggered.
type Latch struct {
	muTrigger sync.Mutex
	wait      chan struct{}
}

// NewLatch returns an un-triggered latch.
func NewLatch() *Latch {
	return &Latch{
		wait: make(chan struct{}),
	}
}

// Trigger latch. It returns false if the latch was already triggered.
func (l *Latch) Trigger() bool {
	l.muTrigger.Lock()
	defer l.muTrigger.Unlock()
	if l.Test() {
		return false
	}
	close(l.wait)
	return true
}

// Wait waits for the latch to be triggered.
func (l *Latch) Wait() {
	<-l.wait
}

// Test checks whether the latch has been triggered.
func (l *Latch) Test() bool {
	select {
	case <-l.wait:
		return true
	default:
		return false
	}
}

// WaitChan returns the channel that one can use on a `select` to check when
// the latch triggers.
// The returned channel is closed when the latch is triggered.
func (l *Latch) WaitChan() <-chan struct{} {
	return l.wait
}

// Promise is a write-once value that is either resolved with a value or rejected with an error.
//
// Readers block on Await until the promise is settled. Settling more than once is a no-op:
// the first Resolve or Reject wins.
type Promise[T any] struct {
	latch *Latch
	value T
	err   error
}

// NewPromise returns a pending promise.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{latch: NewLatch()}
}

// Resolved returns a promise already resolved to value.
func Resolved[T any](value T) *Promise[T] {
	p := NewPromise[T]()
	p.Resolve(value)
	return p
}

// Rejected returns a promise already rejected with err.
func Rejected[T any](err error) *Promise[T] {
	p := NewPromise[T]()
	p.Reject(err)
	return p
}

// Resolve settles the promise with value. It returns false if it was already settled.
func (p *Promise[T]) Resolve(value T) bool {
	return p.settle(value, nil)
}

// Reject settles the promise with err. It returns false if it was already settled.
// A nil err is replaced by a generic error, so a rejected promise always reports an error.
func (p *Promise[T]) Reject(err error) bool {
	if err == nil {
		err = errors.New("promise rejected with a nil error")
	}
	var zero T
	return p.settle(zero, err)
}

func (p *Promise[T]) settle(value T, err error) bool {
	p.latch.muTrigger.Lock()
	defer p.latch.muTrigger.Unlock()
	if p.latch.Test() {
		return false
	}
	p.value, p.err = value, err
	close(p.latch.wait)
	return true
}

// Await blocks until the promise is settled and returns its value or error.
func (p *Promise[T]) Await() (T, error) {
	p.latch.Wait()
	return p.value, p.err
}

// IsAvailable returns whether the promise has been settled (either way).
func (p *Promise[T]) IsAvailable() bool {
	return p.latch.Test()
}

// IsError returns whether the promise has been settled with an error.
func (p *Promise[T]) IsError() bool {
	return p.latch.Test() && p.err != nil
}

// Err returns the error of a rejected promise. It doesn't block: it returns nil if the promise
// is still pending or was resolved.
func (p *Promise[T]) Err() error {
	if !p.latch.Test() {
		return nil
	}
	return p.err
}

// Done returns a channel closed when the promise is settled.
func (p *Promise[T]) Done() <-chan struct{} {
	return p.latch.WaitChan()
}

// SyncMap is a trivial wrapper to sync.Map that casts the key and value types accordingly.
//
// As sync.Map, it can be created ready to go, but should not be copied once it is used.
type SyncMap[K comparable, V any] struct {
	Map sync.Map
}

// Load returns the value stored in the map for a key, or nil if no value is present.
// The ok result indicates whether value was found in the map.
func (m *SyncMap[K, V]) Load(key K) (value V, ok bool) {
	v, ok := m.Map.Load(key)
	if !ok {
		return value, false
	}
	return v.(V), true
}

// Store sets the value for a key.
func (m *SyncMap[K, V]) Store(key K, value V) {
	m.Map.Store(key, value)
}

// LoadOrStore returns the existing value for the key if present.
// Otherwise, it stores and returns the given value.
// The loaded result is true if the value was loaded, false if stored.
func (m *SyncMap[K, V]) LoadOrStore(key K, value V) (actual V, loaded bool) {
	v, loaded := m.Map.LoadOrStore(key, value)
	return v.(V), loaded
}

// Delete deletes the value for a key.
func (m *SyncMap[K, V]) Delete(key K) {
	m.Map.Delete(key)
}

// Range calls f sequentially for each key and value present in the map.
// If f returns false, range stops the iteration.
func (m *SyncMap[K, V]) Range(f func(key K, value V) bool) {
	m.Map.Range(func(key, value any) bool {
		return f(key.(K), value.(V))
	})
}

// Len counts the entries of the map. It's O(n).
func (m *SyncMap[K, V]) Len() (n int) {
	m.Map.Range(func(_, _ any) bool {
		n++
		return true
	})
	return
}
