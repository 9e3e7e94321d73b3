package asynx

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/brickingsoft/errors"
)

// Stack is a growable LIFO array shared between concurrently scheduled
// tasks.
//
// Length, capacity and an exclusive-access bit live in a single packed word
// and change only through CAS. Push and Pop are futures: each poll makes one
// attempt to take the access bit, and the poll that wins it also mutates the
// buffer and clears the bit before returning. A pending Push or Pop
// therefore never holds the stack between polls, and dropping one is always
// safe.
//
// There is no fairness between contending operations: whichever CAS lands
// first proceeds.
//
// Violations of the locking protocol, growth past the maximum length and
// allocator failures are fatal and panic with the errors declared in this
// package. A Stack that panicked that way must not be used again.
//
// It is zero-value usable (empty, capacity 0, heap allocated).
type Stack[T any] struct {
	_ noCopy
	// state is a stackState.
	state atomic.Uint64
	// buf and freed are accessed only by the holder of the lock bit. The
	// acquire and release CAS on state order every access.
	buf   []T
	freed bool
	cfg   StackConfig[T]
}

// NewStack creates an empty Stack. No buffer is allocated until the first
// push.
func NewStack[T any](options ...func(*StackConfig[T])) *Stack[T] {
	return &Stack[T]{cfg: newStackConfig(options...)}
}

// NewStackWithCapacity creates an empty Stack with room for n elements.
//
// It panics with ErrLengthOverflow if n exceeds the configured maximum
// length, and returns an error wrapping ErrAllocation if the allocator
// fails or returns fewer than n slots.
func NewStackWithCapacity[T any](n int, options ...func(*StackConfig[T])) (*Stack[T], error) {
	s := NewStack(options...)
	if n < 0 || n > int(s.cfg.limit()) {
		fatal(ErrLengthOverflow, "capacity %d", n)
	}
	if n > 0 {
		buf, err := s.cfg.alloc().Alloc(n)
		if err != nil {
			return nil, errors.From(ErrAllocation, errors.WithWrap(err))
		}
		if len(buf) < n {
			return nil, errors.From(ErrAllocation, errors.WithWrap(errors.New(fmt.Sprintf("allocator returned %d slots, want %d", len(buf), n))))
		}
		s.buf = buf
	}
	s.state.Store(uint64(packState(false, uint32(n), 0)))
	return s, nil
}

// Len returns the number of elements. It is a single atomic load, so under
// concurrent use it is only a momentary snapshot: a push in flight is
// already counted before its element is stored.
func (s *Stack[T]) Len() int {
	return int(decodeState(s.state.Load()).length())
}

// Cap returns the number of allocated slots, with the same caveat as Len.
func (s *Stack[T]) Cap() int {
	return int(decodeState(s.state.Load()).capacity())
}

// Push returns a future that appends item to the top of the stack.
func (s *Stack[T]) Push(item T) *PushFuture[T] {
	return &PushFuture[T]{s: s, item: item, seen: decodeState(s.state.Load())}
}

// Pop returns a future that removes the top element. Popping an empty stack
// completes with an empty Option.
func (s *Stack[T]) Pop() *PopFuture[T] {
	return &PopFuture[T]{s: s, seen: decodeState(s.state.Load())}
}

// Clone returns an independent copy of the stack holding a copy of every
// element, made with the configured cloner. The copy's capacity equals the
// source length.
//
// Clone spins until it holds the source; it does not suspend. An allocator
// failure, including a short buffer, is fatal (ErrAllocation).
func (s *Stack[T]) Clone() *Stack[T] {
	held := s.lock()
	defer s.release(held, held)
	s.checkLive()

	n := held.length()
	c := &Stack[T]{cfg: s.cfg}
	if n > 0 {
		buf, err := s.cfg.alloc().Alloc(int(n))
		if err != nil {
			fatalWrap(ErrAllocation, err)
		}
		if len(buf) < int(n) {
			fatal(ErrAllocation, "allocator returned %d slots, want %d", len(buf), n)
		}
		for i := range buf[:n] {
			buf[i] = s.cfg.clone(s.buf[i])
		}
		c.buf = buf
	}
	c.state.Store(uint64(packState(false, n, n)))
	return c
}

// Free hands the buffer back to the allocator. The stack is empty
// afterwards and any further Push, Pop or Clone panics with ErrStackFreed.
// Calling Free again is a no-op.
func (s *Stack[T]) Free() {
	held := s.lock()
	if s.freed {
		s.release(held, held)
		return
	}
	buf := s.buf
	s.buf = nil
	s.freed = true
	if buf != nil {
		s.cfg.alloc().Free(buf)
	}
	s.release(held, packState(true, 0, 0))
}

// tryAcquire makes one attempt to move the word from seen (unlocked) to
// locked, advancing length by reserve. On success it returns the pre-state.
// On failure it refreshes seen with the current word.
func (s *Stack[T]) tryAcquire(seen *stackState, reserve uint32) (stackState, bool) {
	old := seen.withLocked(false)
	next := packState(true, old.capacity(), old.length()+reserve)
	if s.state.CompareAndSwap(uint64(old), uint64(next)) {
		return old, true
	}
	*seen = decodeState(s.state.Load())
	return 0, false
}

// lock spins until the word is held without reserving a slot and returns
// the locked state.
func (s *Stack[T]) lock() stackState {
	seen := decodeState(s.state.Load())
	var spins int
	for {
		if prev, ok := s.tryAcquire(&seen, 0); ok {
			return prev.withLocked(true)
		}
		delay(&spins)
	}
}

// release moves the word from held to next with the lock bit cleared.
// Only the holder may change a locked word, so a failed CAS is fatal.
func (s *Stack[T]) release(held, next stackState) {
	if !s.state.CompareAndSwap(uint64(held), uint64(next.withLocked(false))) {
		fatal(ErrLockViolated, "want %#x, found %#x", uint64(held), s.state.Load())
	}
}

// checkLive must be called with the lock held.
func (s *Stack[T]) checkLive() {
	if s.freed {
		panic(ErrStackFreed)
	}
}

// pushLocked stores item at the slot reserved by the acquire CAS, growing
// the buffer first when the slot lies past capacity.
func (s *Stack[T]) pushLocked(prev stackState, item T) {
	index := prev.length()
	held := packState(true, prev.capacity(), index+1)
	if s.freed {
		s.release(held, prev)
		panic(ErrStackFreed)
	}
	capacity := prev.capacity()
	if index >= capacity {
		capacity = s.grow(capacity)
	}
	s.buf[index] = item
	s.release(held, held.withCapacity(capacity))
}

// popLocked removes the top element, if any. The emptiness check comes
// before any index arithmetic.
func (s *Stack[T]) popLocked(prev stackState) Option[T] {
	held := prev.withLocked(true)
	if s.freed {
		s.release(held, held)
		panic(ErrStackFreed)
	}
	length := prev.length()
	if length == 0 {
		s.release(held, held)
		return Option[T]{}
	}
	index := length - 1
	v := s.buf[index]
	var zero T
	s.buf[index] = zero
	s.release(held, held.withLength(index))
	return Some(v)
}

// grow enlarges the buffer and returns the new capacity: 1 from empty,
// doubled otherwise, capped at the configured maximum length.
func (s *Stack[T]) grow(capacity uint32) uint32 {
	if capacity == 0 {
		buf, err := s.cfg.alloc().Alloc(1)
		if err != nil {
			fatalWrap(ErrAllocation, err)
		}
		if len(buf) < 1 {
			fatal(ErrAllocation, "allocator returned %d slots, want 1", len(buf))
		}
		s.buf = buf
		return 1
	}
	next := uint32(min(uint64(capacity)*2, uint64(s.cfg.limit())))
	if next <= capacity {
		fatal(ErrCapacityExceeded, "capacity %d", capacity)
	}
	buf, err := s.cfg.alloc().Realloc(s.buf, int(next))
	if err != nil {
		fatalWrap(ErrAllocation, err)
	}
	if len(buf) < int(next) {
		fatal(ErrAllocation, "allocator returned %d slots, want %d", len(buf), next)
	}
	s.buf = buf
	return next
}

// PushFuture is the pending form of Stack.Push.
type PushFuture[T any] struct {
	s    *Stack[T]
	item T
	seen stackState
	done bool
}

// Poll implements Future. Each pending poll is one failed acquire attempt.
func (f *PushFuture[T]) Poll() (struct{}, bool) {
	if f.done {
		return struct{}{}, true
	}
	prev, ok := f.s.tryAcquire(&f.seen, 1)
	if !ok {
		return struct{}{}, false
	}
	f.done = true
	item := f.item
	var zero T
	f.item = zero
	f.s.pushLocked(prev, item)
	return struct{}{}, true
}

// Await drives the future on the calling goroutine. See Await.
func (f *PushFuture[T]) Await(ctx context.Context) error {
	_, err := Await[struct{}](ctx, f)
	return err
}

// PopFuture is the pending form of Stack.Pop.
type PopFuture[T any] struct {
	s      *Stack[T]
	seen   stackState
	result Option[T]
	done   bool
}

// Poll implements Future. Each pending poll is one failed acquire attempt.
func (f *PopFuture[T]) Poll() (Option[T], bool) {
	if f.done {
		return f.result, true
	}
	prev, ok := f.s.tryAcquire(&f.seen, 0)
	if !ok {
		return Option[T]{}, false
	}
	f.done = true
	f.result = f.s.popLocked(prev)
	return f.result, true
}

// Await drives the future on the calling goroutine. See Await.
func (f *PopFuture[T]) Await(ctx context.Context) (Option[T], error) {
	return Await[Option[T]](ctx, f)
}
