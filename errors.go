package asynx

import (
	"fmt"

	"github.com/brickingsoft/errors"
)

// Fatal invariant violations. They are never returned: the primitive that
// detects one panics with an error matching the sentinel via errors.Is,
// and the value it guards must be considered corrupted afterwards.
var (
	// ErrCapacityExceeded reports a growth that could not increase capacity.
	ErrCapacityExceeded = errors.Define("asynx: exceeded maximum capacity")
	// ErrLockViolated reports a lock word mutated outside of its holder.
	ErrLockViolated = errors.Define("asynx: locked resource was mutated outside of held lock")
	// ErrAllocation reports an allocator that failed to provide a buffer.
	ErrAllocation = errors.Define("asynx: buffer allocation failed")
	// ErrLengthOverflow reports a length or capacity above MaxLength.
	ErrLengthOverflow = errors.Define("asynx: length exceeds MaxLength")
	// ErrGuardReleased reports use of a Guard after Unlock.
	ErrGuardReleased = errors.Define("asynx: guard used after unlock")
	// ErrStackFreed reports use of a Stack after Free.
	ErrStackFreed = errors.Define("asynx: stack used after free")
)

// fatal panics with sentinel, wrapping a formatted cause when one is given.
func fatal(sentinel error, format string, args ...any) {
	if format == "" {
		panic(sentinel)
	}
	panic(errors.From(sentinel, errors.WithWrap(errors.New(fmt.Sprintf(format, args...)))))
}

// IsFatal reports whether err is one of the invariant violations above.
// It is meant for code that recovers a panic at a task boundary.
func IsFatal(err error) bool {
	return errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrLockViolated) ||
		errors.Is(err, ErrAllocation) ||
		errors.Is(err, ErrLengthOverflow) ||
		errors.Is(err, ErrGuardReleased) ||
		errors.Is(err, ErrStackFreed)
}

// fatalWrap panics with sentinel wrapping cause.
func fatalWrap(sentinel error, cause error) {
	panic(errors.From(sentinel, errors.WithWrap(cause)))
}
