package asynx

// StackConfig defines configurable options for Stack initialization.
type StackConfig[T any] struct {
	// allocator provides the backing buffer. HeapAllocator when nil.
	allocator Allocator[T]

	// cloner copies one element during Clone. When nil, elements are
	// copied by assignment, which is a deep copy only for value types.
	cloner func(T) T

	// maxLength lowers the ceiling on length and capacity. Values outside
	// (0, MaxLength] mean MaxLength.
	maxLength int
}

// WithAllocator configures the allocator used for the stack's buffer.
func WithAllocator[T any](a Allocator[T]) func(*StackConfig[T]) {
	return func(c *StackConfig[T]) {
		c.allocator = a
	}
}

// WithCloner configures the function Clone uses to copy each element.
// Use it when T holds pointers, slices or maps that must not be shared
// between a stack and its clone.
//
// Usage:
//
//	s := NewStack(WithCloner(func(b []byte) []byte {
//		return append([]byte(nil), b...)
//	}))
func WithCloner[T any](fn func(T) T) func(*StackConfig[T]) {
	return func(c *StackConfig[T]) {
		c.cloner = fn
	}
}

// WithMaxLength lowers the maximum length and capacity of the stack.
// Reaching it has the same fatal effect as reaching MaxLength.
func WithMaxLength[T any](n int) func(*StackConfig[T]) {
	return func(c *StackConfig[T]) {
		c.maxLength = n
	}
}

func newStackConfig[T any](options ...func(*StackConfig[T])) StackConfig[T] {
	var c StackConfig[T]
	for _, o := range options {
		o(&c)
	}
	return c
}

func (c *StackConfig[T]) alloc() Allocator[T] {
	if c.allocator == nil {
		return HeapAllocator[T]{}
	}
	return c.allocator
}

func (c *StackConfig[T]) clone(v T) T {
	if c.cloner == nil {
		return v
	}
	return c.cloner(v)
}

func (c *StackConfig[T]) limit() uint32 {
	if c.maxLength <= 0 || c.maxLength > MaxLength {
		return MaxLength
	}
	return uint32(c.maxLength)
}
