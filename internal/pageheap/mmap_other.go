//go:build !unix

package pageheap

// mapping is a plain Go-allocated buffer on non-unix targets, where
// golang.org/x/sys/unix.Mmap isn't available. It never needs to be
// munmap'd, since it was never mmap'd.
type mapping struct {
	data []byte
}

func reserve(size int64) (mapping, Addr, error) {
	data := make([]byte, size)
	return mapping{data: data}, Addr(uintptrOf(data)), nil
}

func (m mapping) release() error { return nil }
