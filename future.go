package asynx

// Future is a unit of work that completes over one or more polls.
//
// Each call to Poll is a single resumption: it attempts one step of the
// operation and returns (v, true) once the operation is complete, or
// (zero, false) when it must be polled again. Once complete, a Future keeps
// returning the same result.
//
// Futures are not safe for concurrent polling. The primitives they operate
// on are; the future itself belongs to whichever task drives it.
//
// Nothing here guarantees progress: a pending future that is never polled
// again never completes. Fairness between futures is up to the driver.
type Future[T any] interface {
	Poll() (T, bool)
}

// Canceler is implemented by futures that can hold a resource between
// polls. A driver that abandons such a future before completion must call
// Cancel so the resource is handed on.
type Canceler interface {
	Cancel()
}

// PollFunc adapts an ordinary function to a Future.
type PollFunc[T any] func() (T, bool)

// Poll calls f.
func (f PollFunc[T]) Poll() (T, bool) {
	return f()
}

// Ready returns a future that completes on its first poll with v.
func Ready[T any](v T) Future[T] {
	return PollFunc[T](func() (T, bool) { return v, true })
}

// Yield cedes control to the driver exactly once: it is pending on its
// first poll and ready on every poll after that.
type Yield struct {
	yielded bool
}

// YieldNow returns a fresh Yield.
func YieldNow() *Yield {
	return &Yield{}
}

// Poll implements Future.
func (y *Yield) Poll() (struct{}, bool) {
	if !y.yielded {
		y.yielded = true
		return struct{}{}, false
	}
	return struct{}{}, true
}

// Option is the result of an operation that may produce no value.
type Option[T any] struct {
	Value T
	Ok    bool
}

// Some wraps v as a present Option.
func Some[T any](v T) Option[T] {
	return Option[T]{Value: v, Ok: true}
}

// Get returns the value and whether it is present.
func (o Option[T]) Get() (T, bool) {
	return o.Value, o.Ok
}
