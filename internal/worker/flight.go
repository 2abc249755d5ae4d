package worker

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Flight bounds acquisition work two ways: a global counting semaphore caps
// how many acquisitions run at once across all keys, and a per-key lock
// collapses duplicate concurrent requests for the same resource into one
// download. Waiters block; they never retry independently. After obtaining a
// key lock the caller must re-check the cache, because another holder may
// have just populated the entry.
type Flight struct {
	sem   *semaphore.Weighted
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewFlight creates a coordinator with the given global concurrency ceiling.
func NewFlight(limit int64) *Flight {
	if limit <= 0 {
		limit = 1
	}
	return &Flight{
		sem:   semaphore.NewWeighted(limit),
		locks: make(map[string]*keyLock),
	}
}

// Acquire waits for a slot under the global ceiling.
func (f *Flight) Acquire(ctx context.Context) error {
	return f.sem.Acquire(ctx, 1)
}

// Release returns a slot taken by Acquire.
func (f *Flight) Release() {
	f.sem.Release(1)
}

// LockKey blocks until the caller exclusively holds the lock for key, and
// returns the release function. Lock entries are reference-counted and
// evicted when the last holder releases, so the table only retains keys with
// active or queued work.
func (f *Flight) LockKey(key string) (unlock func()) {
	f.mu.Lock()
	kl, ok := f.locks[key]
	if !ok {
		kl = &keyLock{}
		f.locks[key] = kl
	}
	kl.refs++
	f.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		f.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(f.locks, key)
		}
		f.mu.Unlock()
	}
}

// LockedKeys returns the number of keys currently tracked in the lock table.
func (f *Flight) LockedKeys() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.locks)
}
