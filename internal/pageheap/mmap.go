//go:build unix

package pageheap

import "golang.org/x/sys/unix"

// mapping keeps the raw OS mapping alive for the lifetime of a Heap.
type mapping struct {
	data []byte
}

// reserve asks the OS for size contiguous, unbacked bytes of address
// space (PROT_NONE, like the teacher's splicedMemory treats an
// unmapped gap) and returns its base address. We never read or write
// through this mapping — object payloads live in the managed heap's
// Go-side table — it exists only to give the reservation a real,
// stable, non-relocating address identity, matching §4.A's "single
// contiguous reservation of fixed size."
func reserve(size int64) (mapping, Addr, error) {
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return mapping{}, 0, err
	}
	base := Addr(uintptrOf(data))
	return mapping{data: data}, base, nil
}

func (m mapping) release() error {
	if m.data == nil {
		return nil
	}
	return unix.Munmap(m.data)
}
