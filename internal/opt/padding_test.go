package opt

import (
	"testing"
	"unsafe"
)

func TestCounterPad(t *testing.T) {
	type padded struct {
		c uint64
		_ CounterPad_
	}
	size := unsafe.Sizeof(padded{})
	if Padded_ {
		if size != CacheLineSize_ {
			t.Fatalf("padded size = %d, want %d", size, CacheLineSize_)
		}
		return
	}
	if size != 8 {
		t.Fatalf("unpadded size = %d, want 8", size)
	}
}

func TestCacheLineSize(t *testing.T) {
	if CacheLineSize_ < 32 || CacheLineSize_&(CacheLineSize_-1) != 0 {
		t.Fatalf("unexpected cache line size %d", CacheLineSize_)
	}
}
