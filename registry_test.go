package asynx

import (
	"sync"
	"testing"
)

func TestRegistry(t *testing.T) {
	var r registry[string, int]
	if r.size() != 0 {
		t.Fatalf("size() = %d, want 0", r.size())
	}
	loaded := r.compute("a", func(s *slot[int]) bool {
		s.Update(1)
		return s.Loaded()
	})
	if loaded {
		t.Fatal("compute saw a missing key as loaded")
	}
	r.compute("a", func(s *slot[int]) bool {
		if !s.Loaded() || s.Value() != 1 {
			t.Fatalf("slot = %d, %v; want 1, true", s.Value(), s.Loaded())
		}
		return false
	})
	if r.size() != 1 {
		t.Fatalf("size() = %d, want 1", r.size())
	}
	// a callback that neither updates nor deletes leaves a missing key missing
	r.compute("b", func(s *slot[int]) bool { return false })
	if r.size() != 1 {
		t.Fatalf("size() = %d, want 1", r.size())
	}
	deleted := r.compute("a", func(s *slot[int]) bool {
		s.Delete()
		return true
	})
	if !deleted || r.size() != 0 {
		t.Fatalf("delete = %v, size() = %d; want true, 0", deleted, r.size())
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	var r registry[int, int]
	const (
		workers = 16
		perG    = 200
	)
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for i := range perG {
				r.compute(i%4, func(s *slot[int]) bool {
					s.Update(s.Value() + 1)
					return true
				})
			}
		}()
	}
	wg.Wait()
	total := 0
	for k := range 4 {
		r.compute(k, func(s *slot[int]) bool {
			total += s.Value()
			return true
		})
	}
	if total != workers*perG {
		t.Fatalf("total = %d, want %d", total, workers*perG)
	}
	if r.size() != 4 {
		t.Fatalf("size() = %d, want 4", r.size())
	}
}
