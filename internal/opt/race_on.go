//go:build race

package opt

// Race_ reports that the race detector is enabled. Code that relies on
// plain loads ordered by other means switches to fully synchronized paths.
const Race_ = true
