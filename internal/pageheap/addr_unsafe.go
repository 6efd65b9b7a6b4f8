package pageheap

import "unsafe"

// uintptrOf returns the numeric address of a byte slice's backing array.
// The slice is kept alive for the life of the mapping (or the fallback
// buffer) that produced it, stored in Heap.reservation, so the returned
// number stays a valid, stable identity even though we never convert it
// back into a pointer.
func uintptrOf(b []byte) uintptr {
	if len(b) == 0 {
		return uintptr(unsafe.Pointer(&b))
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
