package asynx

import (
	"context"
	"sync/atomic"
)

// LockGroup is a set of ticket mutexes keyed by arbitrary comparable values.
//
// Features:
//   - Infinite Keys: No need to pre-allocate locks.
//   - Auto-Cleanup: A key's mutex is removed once no task holds or waits
//     for it.
//   - Same fairness as Mutex: tasks locking the same key are served in
//     arrival order.
//
// Usage:
//
//	var group LockGroup[string]
//	g, err := group.Lock("user-123").Await(ctx)
//	if err != nil {
//		return err
//	}
//	// Critical section for user-123
//	g.Unlock()
type LockGroup[K comparable] struct {
	_ noCopy
	m registry[K, *lockGroupEntry]
}

type lockGroupEntry struct {
	mu Mutex[struct{}]
	// ref is only touched inside a compute for the entry's key.
	ref int32
}

// Lock returns a future that completes once the caller holds key.
//
// The future holds a reference to the key until it completes and the guard
// is unlocked. A future abandoned before completion must be cancelled
// (Await does this), otherwise the key is never removed from the group and
// the tickets queued behind it are never served.
func (g *LockGroup[K]) Lock(key K) *GroupLockFuture[K] {
	var e *lockGroupEntry
	g.m.compute(key, func(s *slot[*lockGroupEntry]) bool {
		if s.Loaded() {
			e = s.Value()
			e.ref++
			return true
		}
		e = &lockGroupEntry{ref: 1}
		s.Update(e)
		return false
	})
	return &GroupLockFuture[K]{g: g, key: key, e: e, inner: e.mu.Lock()}
}

// Len returns the number of keys currently held or waited for.
func (g *LockGroup[K]) Len() int {
	return g.m.size()
}

// unref drops one reference to e and deletes it when none remain.
func (g *LockGroup[K]) unref(key K, e *lockGroupEntry) {
	g.m.compute(key, func(s *slot[*lockGroupEntry]) bool {
		if !s.Loaded() || s.Value() != e {
			return false
		}
		e.ref--
		if e.ref <= 0 {
			s.Delete()
		}
		return true
	})
}

// GroupLockFuture is the pending form of LockGroup.Lock.
type GroupLockFuture[K comparable] struct {
	g     *LockGroup[K]
	key   K
	e     *lockGroupEntry
	inner *LockFuture[struct{}]
	guard *GroupGuard[K]
	done  bool
}

// Poll implements Future.
func (f *GroupLockFuture[K]) Poll() (*GroupGuard[K], bool) {
	if f.guard != nil {
		return f.guard, true
	}
	if f.done {
		return nil, false
	}
	inner, ok := f.inner.Poll()
	if !ok {
		return nil, false
	}
	f.guard = &GroupGuard[K]{g: f.g, key: f.key, e: f.e, inner: inner}
	return f.guard, true
}

// Cancel implements Canceler. It gives up the ticket and the reference to
// the key's mutex.
func (f *GroupLockFuture[K]) Cancel() {
	if f.guard != nil || f.done {
		return
	}
	f.done = true
	f.inner.Cancel()
	f.g.unref(f.key, f.e)
}

// Await drives the future on the calling goroutine. See Await.
func (f *GroupLockFuture[K]) Await(ctx context.Context) (*GroupGuard[K], error) {
	return Await[*GroupGuard[K]](ctx, f)
}

// GroupGuard is held while a key of a LockGroup is locked.
type GroupGuard[K comparable] struct {
	g        *LockGroup[K]
	key      K
	e        *lockGroupEntry
	inner    *Guard[struct{}]
	released atomic.Bool
}

// Key returns the locked key.
func (gg *GroupGuard[K]) Key() K {
	return gg.key
}

// Unlock releases the key. Only the first call has an effect.
func (gg *GroupGuard[K]) Unlock() {
	if !gg.released.CompareAndSwap(false, true) {
		return
	}
	// Hand the mutex on before dropping the reference, otherwise a newcomer
	// could create a fresh entry for the key while we still hold the old one.
	gg.inner.Unlock()
	gg.g.unref(gg.key, gg.e)
}
