//go:build !asynx_disable_padding

package opt

// CounterPad_ fills the remainder of a cache line after a 64-bit counter.
// Placing it between two hot counters keeps them on separate lines, so the
// ticket issuer and the ticket holder do not invalidate each other.
type CounterPad_ [CacheLineSize_ - 8]byte

const Padded_ = true
