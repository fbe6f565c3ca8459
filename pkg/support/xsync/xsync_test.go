package xsync

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatch(t *testing.T) {
	latch := NewLatch()
	assert.False(t, latch.Test())
	go func() { latch.Trigger() }()
	latch.Wait()
	assert.True(t, latch.Test())
	assert.False(t, latch.Trigger())
	select {
	case <-latch.WaitChan():
	default:
		t.Fatal("WaitChan should be closed")
	}
}

func TestPromise(t *testing.T) {
	p := NewPromise[int]()
	assert.False(t, p.IsAvailable())
	assert.NoError(t, p.Err())

	var wg sync.WaitGroup
	results := make([]int, 8)
	for ii := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := p.Await()
			if err == nil {
				results[ii] = v
			}
		}()
	}
	assert.True(t, p.Resolve(42))
	assert.False(t, p.Resolve(7))
	assert.False(t, p.Reject(errors.New("late")))
	wg.Wait()
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
	assert.True(t, p.IsAvailable())
	assert.False(t, p.IsError())

	rejected := Rejected[string](errors.New("boom"))
	_, err := rejected.Await()
	require.ErrorContains(t, err, "boom")
	assert.True(t, rejected.IsError())

	nilErr := NewPromise[string]()
	nilErr.Reject(nil)
	assert.Error(t, nilErr.Err())

	v, err := Resolved("x").Await()
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}

func TestSyncMap(t *testing.T) {
	var m SyncMap[string, int]
	actual, loaded := m.LoadOrStore("a", 1)
	assert.False(t, loaded)
	assert.Equal(t, 1, actual)
	actual, loaded = m.LoadOrStore("a", 2)
	assert.True(t, loaded)
	assert.Equal(t, 1, actual)
	m.Store("b", 3)
	assert.Equal(t, 2, m.Len())
	m.Delete("a")
	_, ok := m.Load("a")
	assert.False(t, ok)
	sum := 0
	m.Range(func(_ string, v int) bool { sum += v; return true })
	assert.Equal(t, 3, sum)
}

func TestDynamicWaitGroup(t *testing.T) {
	wg := NewDynamicWaitGroup()
	wg.Add(1)
	done := NewLatch()
	go func() {
		wg.Wait()
		done.Trigger()
	}()
	wg.Add(1) // Grows while being waited on.
	wg.Done()
	assert.Equal(t, 1, wg.Count())
	select {
	case <-done.WaitChan():
		t.Fatal("Wait returned before the counter reached zero")
	case <-time.After(10 * time.Millisecond):
	}
	wg.Done()
	done.Wait()
	require.Panics(t, func() { wg.Done() })
}
