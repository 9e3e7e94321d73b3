package asynx

import (
	"context"
	"sync/atomic"

	"github.com/llxisdsh/asynx/internal/opt"
)

// Mutex is a fair, FIFO mutual-exclusion lock owning a value of type T.
//
// Implementation:
// It uses the classic "ticket" algorithm with two counters.
//   - Lock(): Takes a ticket from `next` by CAS, then waits until
//     `holder` equals the ticket.
//   - Unlock(): Advances `holder` from the ticket to the next one.
//
// Both waits are expressed as futures, so a task that has to wait returns
// control to its driver instead of blocking the thread. Tasks are served in
// ticket order; a later arrival can never overtake an earlier one.
//
// A LockFuture that is abandoned after it took a ticket must be cancelled
// (Await does this). The ticket is then recorded as abandoned and skipped
// when its turn comes, so the tasks queued behind it still get served.
//
// It is zero-value usable (protecting the zero value of T).
type Mutex[T any] struct {
	_      noCopy
	next   atomic.Uint64
	_      opt.CounterPad_
	holder atomic.Uint64
	_      opt.CounterPad_
	// abandoned holds tickets whose waiters gave up before their turn;
	// pending counts them so an unlock with none outstanding skips the
	// lookup.
	abandoned registry[uint64, struct{}]
	pending   atomic.Int64
	value     T
}

// NewMutex creates a Mutex protecting v.
func NewMutex[T any](v T) *Mutex[T] {
	return &Mutex[T]{value: v}
}

// Lock returns a future that completes with a Guard once the caller's
// ticket is served.
func (m *Mutex[T]) Lock() *LockFuture[T] {
	return &LockFuture[T]{m: m, seen: m.next.Load()}
}

// TryLock acquires the lock only if no ticket is outstanding.
func (m *Mutex[T]) TryLock() (*Guard[T], bool) {
	h := m.holder.Load()
	if !m.next.CompareAndSwap(h, h+1) {
		return nil, false
	}
	return &Guard[T]{m: m, ticket: h}, true
}

// Do locks m, calls fn with the protected value and unlocks, also when fn
// panics. It returns ctx.Err() if ctx is done before the lock is acquired.
func (m *Mutex[T]) Do(ctx context.Context, fn func(v *T)) error {
	g, err := m.Lock().Await(ctx)
	if err != nil {
		return err
	}
	defer g.Unlock()
	fn(g.Value())
	return nil
}

// abandon records ticket as given up. If the turn has already reached it,
// the caller passes the turn on itself; otherwise the predecessor will.
//
// The count is raised before holder is read, so either this call sees its
// turn has come or the predecessor's pass sees a non-zero count.
func (m *Mutex[T]) abandon(ticket uint64) {
	m.abandoned.compute(ticket, func(s *slot[struct{}]) bool {
		s.Update(struct{}{})
		return true
	})
	m.pending.Add(1)
	if m.holder.Load() == ticket && m.claim(ticket) {
		m.pass(ticket)
	}
}

// claim removes ticket from the abandoned set and reports whether this call
// was the one that removed it. Exactly one party claims each ticket.
func (m *Mutex[T]) claim(ticket uint64) bool {
	if m.pending.Load() == 0 {
		return false
	}
	ok := m.abandoned.compute(ticket, func(s *slot[struct{}]) bool {
		if !s.Loaded() {
			return false
		}
		s.Delete()
		return true
	})
	if ok {
		m.pending.Add(-1)
	}
	return ok
}

// pass moves holder from ticket to ticket+1, then keeps going while the
// newly served ticket was abandoned.
func (m *Mutex[T]) pass(ticket uint64) {
	for {
		var spins int
		// Only the owner of the current ticket moves holder, so this
		// succeeds at once unless the load it compares with is stale.
		for !m.holder.CompareAndSwap(ticket, ticket+1) {
			delay(&spins)
		}
		ticket++
		if !m.claim(ticket) {
			return
		}
	}
}

const (
	lockTicketing uint8 = iota
	lockWaiting
	lockAcquired
	lockCanceled
)

// LockFuture is the pending form of Mutex.Lock.
type LockFuture[T any] struct {
	m      *Mutex[T]
	seen   uint64
	ticket uint64
	phase  uint8
	guard  *Guard[T]
}

// Poll implements Future.
//
// While ticketing, each pending poll is one failed CAS on `next`. Once a
// ticket is held, each pending poll is one check of `holder`. A cancelled
// future stays pending forever.
func (f *LockFuture[T]) Poll() (*Guard[T], bool) {
	switch f.phase {
	case lockAcquired:
		return f.guard, true
	case lockCanceled:
		return nil, false
	case lockTicketing:
		if !f.m.next.CompareAndSwap(f.seen, f.seen+1) {
			f.seen = f.m.next.Load()
			return nil, false
		}
		f.ticket = f.seen
		f.phase = lockWaiting
		fallthrough
	default:
		// CAS of the ticket onto itself: succeeds only when it is being
		// served, and orders us after the previous holder's release.
		if !f.m.holder.CompareAndSwap(f.ticket, f.ticket) {
			return nil, false
		}
		f.guard = &Guard[T]{m: f.m, ticket: f.ticket}
		f.phase = lockAcquired
		return f.guard, true
	}
}

// Cancel implements Canceler. It gives up a ticket that was taken but not
// yet served. It has no effect once the future has completed.
func (f *LockFuture[T]) Cancel() {
	switch f.phase {
	case lockTicketing:
		f.phase = lockCanceled
	case lockWaiting:
		f.phase = lockCanceled
		f.m.abandon(f.ticket)
	}
}

// Await drives the future on the calling goroutine. See Await.
func (f *LockFuture[T]) Await(ctx context.Context) (*Guard[T], error) {
	return Await[*Guard[T]](ctx, f)
}

// Guard grants exclusive access to a Mutex's value until Unlock.
type Guard[T any] struct {
	m        *Mutex[T]
	ticket   uint64
	released atomic.Bool
}

// Value returns a pointer to the protected value. The pointer must not be
// used after Unlock.
func (g *Guard[T]) Value() *T {
	g.check()
	return &g.m.value
}

// Get returns a copy of the protected value.
func (g *Guard[T]) Get() T {
	g.check()
	return g.m.value
}

// Set replaces the protected value.
func (g *Guard[T]) Set(v T) {
	g.check()
	g.m.value = v
}

// Ticket returns the ticket this guard was served with.
func (g *Guard[T]) Ticket() uint64 {
	return g.ticket
}

// Unlock releases the lock to the next ticket. Only the first call has an
// effect, so it is safe to both defer it and call it early.
func (g *Guard[T]) Unlock() {
	if g.released.CompareAndSwap(false, true) {
		g.m.pass(g.ticket)
	}
}

func (g *Guard[T]) check() {
	if g.released.Load() {
		panic(ErrGuardReleased)
	}
}
