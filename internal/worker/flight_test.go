package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFlight_SingleFlightPerKey(t *testing.T) {
	f := NewFlight(10)

	var acquisitions int32
	var populated atomic.Bool

	const waiters = 8
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := f.LockKey("key")
			defer unlock()
			if !populated.Load() {
				// Simulates the one real acquisition.
				atomic.AddInt32(&acquisitions, 1)
				time.Sleep(10 * time.Millisecond)
				populated.Store(true)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&acquisitions); got != 1 {
		t.Errorf("expected exactly 1 acquisition for concurrent duplicate requests, got %d", got)
	}
}

func TestFlight_LockTableEvicted(t *testing.T) {
	f := NewFlight(10)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := f.LockKey("shared")
			time.Sleep(time.Millisecond)
			unlock()
		}()
	}
	wg.Wait()

	if n := f.LockedKeys(); n != 0 {
		t.Errorf("lock table should be empty after all holders release, got %d entries", n)
	}
}

func TestFlight_DifferentKeysDoNotBlock(t *testing.T) {
	f := NewFlight(10)

	unlockA := f.LockKey("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := f.LockKey("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key should not block")
	}
}

func TestFlight_GlobalCeiling(t *testing.T) {
	const limit = 2
	f := NewFlight(limit)
	ctx := context.Background()

	var running, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.Acquire(ctx); err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			defer f.Release()

			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
		}()
	}
	wg.Wait()

	if p := atomic.LoadInt32(&peak); p > limit {
		t.Errorf("concurrency ceiling exceeded: peak %d > limit %d", p, limit)
	}
}

func TestFlight_AcquireRespectsContext(t *testing.T) {
	f := NewFlight(1)
	ctx := context.Background()
	if err := f.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	defer f.Release()

	cancelled, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := f.Acquire(cancelled); err == nil {
		f.Release()
		t.Errorf("acquire beyond the ceiling should fail once the context expires")
	}
}
