package asynx

import (
	"sync"

	"github.com/llxisdsh/pb"

	"github.com/llxisdsh/asynx/internal/opt"
)

// registry is a concurrent map for keyed bookkeeping.
//
// It is backed by pb.MapOf. Under the race detector it uses a mutex-guarded
// map instead, because pb.MapOf reads its buckets with plain loads that the
// detector cannot see ordered.
//
// It is zero-value usable.
type registry[K comparable, V any] struct {
	m pb.MapOf[K, V]

	mu sync.Mutex
	rm map[K]V
}

const (
	slotKeep uint8 = iota
	slotUpdate
	slotDelete
)

// slot is the view of one key handed to a compute callback.
type slot[V any] struct {
	value  V
	loaded bool
	op     uint8
}

// Loaded reports whether the key was present.
func (s *slot[V]) Loaded() bool { return s.loaded }

// Value returns the current value, or the zero value if absent.
func (s *slot[V]) Value() V { return s.value }

// Update stores v under the key.
func (s *slot[V]) Update(v V) {
	s.value = v
	s.op = slotUpdate
}

// Delete removes the key.
func (s *slot[V]) Delete() {
	var zero V
	s.value = zero
	s.op = slotDelete
}

// compute runs fn atomically with respect to every other compute on the
// same key and returns what fn returned. Unless fn calls Update or Delete
// the entry is left as it was.
func (r *registry[K, V]) compute(key K, fn func(s *slot[V]) bool) bool {
	if opt.Race_ {
		r.mu.Lock()
		defer r.mu.Unlock()
		var s slot[V]
		s.value, s.loaded = r.rm[key]
		ret := fn(&s)
		switch s.op {
		case slotUpdate:
			if r.rm == nil {
				r.rm = make(map[K]V)
			}
			r.rm[key] = s.value
		case slotDelete:
			delete(r.rm, key)
		}
		return ret
	}

	var ret bool
	r.m.ProcessEntry(
		key,
		func(l *pb.EntryOf[K, V]) (*pb.EntryOf[K, V], V, bool) {
			var s slot[V]
			if l != nil {
				s.value, s.loaded = l.Value, true
			}
			ret = fn(&s)
			switch s.op {
			case slotUpdate:
				return &pb.EntryOf[K, V]{Value: s.value}, s.value, ret
			case slotDelete:
				return nil, s.value, ret
			}
			return l, s.value, ret
		},
	)
	return ret
}

// size returns the number of keys.
func (r *registry[K, V]) size() int {
	if opt.Race_ {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.rm)
	}
	return r.m.Size()
}
