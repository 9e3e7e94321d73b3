package asynx

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLockGroupBasic(t *testing.T) {
	var g LockGroup[string]
	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	counter := 0
	for range n {
		go func() {
			defer wg.Done()
			gg, err := g.Lock("k").Await(context.Background())
			if err != nil {
				t.Errorf("Await: %v", err)
				return
			}
			counter++
			gg.Unlock()
		}()
	}
	wg.Wait()
	if counter != n {
		t.Fatalf("counter = %d, want %d", counter, n)
	}
	if g.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", g.Len())
	}
}

func TestLockGroupIndependentKeys(t *testing.T) {
	var g LockGroup[int]
	a, ok := g.Lock(1).Poll()
	if !ok {
		t.Fatal("Lock(1) pending on an idle group")
	}
	b, ok := g.Lock(2).Poll()
	if !ok {
		t.Fatal("Lock(2) blocked by a different key")
	}
	if a.Key() != 1 || b.Key() != 2 {
		t.Fatalf("keys = %d, %d", a.Key(), b.Key())
	}
	if g.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", g.Len())
	}
	a.Unlock()
	a.Unlock()
	b.Unlock()
	if g.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", g.Len())
	}
}

func TestLockGroupSameKeyWaits(t *testing.T) {
	var g LockGroup[string]
	a, _ := g.Lock("k").Poll()
	f := g.Lock("k")
	if _, ok := f.Poll(); ok {
		t.Fatal("second Lock on a held key completed")
	}
	a.Unlock()
	if g.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 while a waiter remains", g.Len())
	}
	b, ok := f.Poll()
	if !ok {
		t.Fatal("waiter not served after Unlock")
	}
	b.Unlock()
	if g.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", g.Len())
	}
}

func TestLockGroupCancel(t *testing.T) {
	var g LockGroup[string]
	a, _ := g.Lock("k").Poll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := g.Lock("k").Await(ctx); err == nil {
		t.Fatal("Await succeeded on a held key")
	}
	a.Unlock()
	if g.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after the waiter gave up", g.Len())
	}
	b, ok := g.Lock("k").Poll()
	if !ok {
		t.Fatal("key still held after cancellation")
	}
	b.Unlock()
}

func TestLockGroupUncancelledFutureKeepsKey(t *testing.T) {
	var g LockGroup[string]
	a, _ := g.Lock("k").Poll()
	f := g.Lock("k")
	f.Poll()
	a.Unlock()
	// f was never cancelled, so it still owns a reference to the key
	if g.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", g.Len())
	}
	f.Cancel()
	if g.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after Cancel", g.Len())
	}
}
