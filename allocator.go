package asynx

import (
	"fmt"

	"github.com/brickingsoft/errors"
)

// Allocator provides the backing buffers of a Stack.
//
// Alloc returns a buffer of exactly n slots. Realloc returns a buffer of n
// slots whose first min(len(buf), n) slots equal those of buf; it may
// return buf itself when it is already large enough. Free hands a buffer
// back; the Stack never touches it again.
//
// The Stack calls these only while it holds its lock bit, so an Allocator
// shared by several stacks must be safe for concurrent use.
type Allocator[T any] interface {
	Alloc(n int) ([]T, error)
	Realloc(buf []T, n int) ([]T, error)
	Free(buf []T)
}

// HeapAllocator allocates on the Go heap.
type HeapAllocator[T any] struct{}

// Alloc implements Allocator.
func (HeapAllocator[T]) Alloc(n int) ([]T, error) {
	if n < 0 || n > MaxLength {
		return nil, errors.From(ErrAllocation, errors.WithWrap(errors.New(fmt.Sprintf("invalid size %d", n))))
	}
	return make([]T, n), nil
}

// Realloc implements Allocator.
func (a HeapAllocator[T]) Realloc(buf []T, n int) ([]T, error) {
	if n <= cap(buf) && n >= 0 {
		return buf[:n], nil
	}
	nb, err := a.Alloc(n)
	if err != nil {
		return nil, err
	}
	copy(nb, buf)
	return nb, nil
}

// Free implements Allocator. It clears the buffer so that the garbage
// collector does not keep the stored elements alive through stale slices.
func (HeapAllocator[T]) Free(buf []T) {
	clear(buf)
}
