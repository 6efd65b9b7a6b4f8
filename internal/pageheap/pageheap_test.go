package pageheap

import "testing"

func newTestHeap(t *testing.T) *Heap {
	t.Helper()
	h, err := New(1 << 20) // 1 MiB reservation, plenty for these tests
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestAllocSmallDistinctAddresses(t *testing.T) {
	h := newTestHeap(t)
	seen := map[Addr]bool{}
	for i := 0; i < 200; i++ {
		a, err := h.Alloc(24)
		if err != nil {
			t.Fatalf("Alloc: %v", err)
		}
		if seen[a] {
			t.Fatalf("address %s handed out twice", a)
		}
		seen[a] = true
	}
}

func TestMarkSweepReclaimsUnmarked(t *testing.T) {
	h := newTestHeap(t)
	keep, err := h.Alloc(32)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.Alloc(32); err != nil {
		t.Fatal(err)
	}
	before := h.BytesUsed()
	if before <= 0 {
		t.Fatalf("BytesUsed = %d, want > 0", before)
	}

	h.StartGC()
	if err := h.Mark(keep); err != nil {
		t.Fatal(err)
	}
	h.Sweep()

	marked, err := h.IsMarked(keep)
	if err != nil || !marked {
		t.Fatalf("IsMarked(keep) = %v, %v; want true, nil", marked, err)
	}
	if got, want := h.BytesUsed(), int64(blockSize(classForSize(32))); got != want {
		t.Fatalf("BytesUsed after sweep = %d, want %d", got, want)
	}

	// The reclaimed block's size class should be allocatable again.
	if _, err := h.Alloc(32); err != nil {
		t.Fatalf("Alloc after sweep: %v", err)
	}
}

func TestAllocLargeReam(t *testing.T) {
	h := newTestHeap(t)
	a, err := h.Alloc(10000)
	if err != nil {
		t.Fatalf("Alloc large: %v", err)
	}
	h.StartGC()
	if err := h.Mark(a); err != nil {
		t.Fatal(err)
	}
	h.Sweep()
	if got, want := h.BytesUsed(), int64(3*PageSize); got != want {
		t.Fatalf("BytesUsed = %d, want %d", got, want)
	}
}

func TestSweepReclaimsUnreachableReam(t *testing.T) {
	h := newTestHeap(t)
	if _, err := h.Alloc(10000); err != nil {
		t.Fatal(err)
	}
	h.StartGC() // nothing marked this round
	h.Sweep()
	if got := h.BytesUsed(); got != 0 {
		t.Fatalf("BytesUsed = %d, want 0", got)
	}
	if _, err := h.Alloc(10000); err != nil {
		t.Fatalf("Alloc after reclaim: %v", err)
	}
}
