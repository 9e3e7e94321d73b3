//go:build asynx_disable_padding

package opt

// CounterPad_ is empty when padding is force-disabled.
// Use: go build -tags=asynx_disable_padding
type CounterPad_ [0]byte

const Padded_ = false
