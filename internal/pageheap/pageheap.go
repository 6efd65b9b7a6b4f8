// Package pageheap implements the region-based allocator that backs the
// managed heap (internal/heap): a single fixed-size reservation divided
// into segregated size-class pages and multi-page reams, with a
// per-block mark bitmap.
//
// The reservation's base address is obtained once, up front, from a real
// virtual-memory mapping (golang.org/x/sys/unix.Mmap where available).
// Addr values handed out by Alloc are never dereferenced through that
// mapping directly — object payloads live in the managed heap's side
// table (internal/heap), keyed by Addr — so the mapping exists purely to
// give the reservation a stable, non-relocating numeric identity, the
// same way internal/core treats the inferior's address space as a fixed
// numeric range rather than memory it can read through Go pointers.
package pageheap

import (
	"fmt"
	"math/bits"
)

const (
	// PageSize is the size in bytes of one data page.
	PageSize = 4096

	// minBlockClass/maxBlockClass are the smallest/largest size-class
	// exponents: block sizes range over [16, 4096] bytes, nine classes.
	minBlockClass = 4  // 1<<4  == 16
	maxBlockClass = 12 // 1<<12 == 4096
	numClasses    = maxBlockClass - minBlockClass + 1

	classReam = -1 // descriptor.class sentinel: this page belongs to a ream
)

// Addr is a numeric address into the reservation. It is never
// dereferenced as a Go pointer; it is an opaque, stable handle.
type Addr uint64

func (a Addr) Add(n int64) Addr { return Addr(int64(a) + n) }
func (a Addr) Sub(b Addr) int64 { return int64(a) - int64(b) }
func (a Addr) String() string   { return fmt.Sprintf("0x%x", uint64(a)) }

// pageID indexes into Heap.desc. Real pages occupy [0, numPages); list
// sentinels occupy [numPages, numPages+numSentinels). -1 means "no page".
type pageID int32

const noPage pageID = -1

// bitmap is 256 bits per page: one bit per minimum-size (16-byte) block,
// which is also exactly 4096/16. For larger block sizes only the low
// bits are meaningful; for reams only bit 0 is meaningful.
type bitmap [4]uint64

func (b *bitmap) test(i int) bool  { return b[i/64]&(1<<uint(i%64)) != 0 }
func (b *bitmap) set(i int)        { b[i/64] |= 1 << uint(i%64) }
func (b *bitmap) clear()           { b[0], b[1], b[2], b[3] = 0, 0, 0, 0 }
func (b *bitmap) full(n int) bool {
	for i := 0; i < n; i++ {
		if !b.test(i) {
			return false
		}
	}
	return true
}

type descriptor struct {
	prev, next pageID
	class      int8  // [minBlockClass, maxBlockClass] for small pages, classReam for reams
	extra      int32 // additional pages beyond the first, for reams
	head       pageID // for a ream's continuation pages, the ream's first page; else self
}

// list indices, stored as sentinel pageIDs so prev/next chase uniformly.
const (
	listFreePages = numClasses + iota
	listFreeReams
	listFullPages
	listFullReams
	numSentinels
)

// Heap is a single reservation's worth of page-allocator state.
type Heap struct {
	base      Addr
	numPages  int
	desc      []descriptor
	bitmaps   []bitmap
	freeSized [numClasses]pageID

	bytesUsed     int64
	bytesReserved int64

	reservation mapping // keeps the mmap (or fallback) alive; see mmap.go
}

// New reserves size bytes (rounded down to a whole number of pages) and
// returns a ready-to-use Heap.
func New(size int64) (*Heap, error) {
	numPages := int(size / PageSize)
	if numPages < numClasses+1 {
		numPages = numClasses + 1
	}
	m, base, err := reserve(int64(numPages) * PageSize)
	if err != nil {
		return nil, fmt.Errorf("pageheap: reserve %d bytes: %w", size, err)
	}
	h := &Heap{
		base:          base,
		numPages:      numPages,
		desc:          make([]descriptor, numPages+numSentinels),
		bitmaps:       make([]bitmap, numPages),
		bytesReserved: int64(numPages) * PageSize,
		reservation:   m,
	}
	for i := range h.desc {
		h.desc[i].prev, h.desc[i].next = noPage, noPage
	}
	for c := range h.freeSized {
		h.freeSized[c] = noPage
	}
	// The whole reservation starts out as one free ream; takeFreePage and
	// takeReam split pages off it on demand.
	for p := 0; p < numPages; p++ {
		h.desc[p].head = pageID(p)
	}
	h.desc[0].extra = int32(numPages - 1)
	h.pushFront(listFreeReams, 0)
	return h, nil
}

func classForSize(size int) int {
	if size <= 0 {
		size = 1
	}
	c := bits.Len(uint(size - 1))
	if c < minBlockClass {
		c = minBlockClass
	}
	return c
}

func blockSize(class int) int { return 1 << uint(class) }

func sentinelList(class int) int { return class - minBlockClass }

// --- intrusive doubly linked list helpers, keyed by sentinel pageID ---

func (h *Heap) sentinelID(list int) pageID { return pageID(h.numPages + list) }

func (h *Heap) pushFront(list int, p pageID) {
	s := h.sentinelID(list)
	head := h.desc[s].next
	h.desc[p].prev = s
	h.desc[p].next = head
	if head != noPage {
		h.desc[head].prev = p
	}
	h.desc[s].next = p
}

func (h *Heap) unlink(p pageID) {
	d := &h.desc[p]
	if d.prev != noPage {
		h.desc[d.prev].next = d.next
	}
	if d.next != noPage {
		h.desc[d.next].prev = d.prev
	}
	d.prev, d.next = noPage, noPage
}

func (h *Heap) popFront(list int) pageID {
	s := h.sentinelID(list)
	p := h.desc[s].next
	if p == noPage {
		return noPage
	}
	h.unlink(p)
	return p
}

// Alloc reserves size bytes and returns their address. Allocations of
// 4096 bytes or less are served from a size-class page; larger
// allocations take a ream of whole pages.
func (h *Heap) Alloc(size int) (Addr, error) {
	if size <= PageSize {
		return h.allocSmall(size)
	}
	return h.allocLarge(size)
}

func (h *Heap) allocSmall(size int) (Addr, error) {
	class := classForSize(size)
	list := sentinelList(class)
	p := h.desc[h.sentinelID(list)].next
	if p == noPage {
		var err error
		p, err = h.takeFreePage()
		if err != nil {
			return 0, err
		}
		h.desc[p].class = int8(class)
		h.desc[p].head = p
		h.bitmaps[p].clear()
		h.pushFront(list, p)
	}
	bm := &h.bitmaps[p]
	bs := blockSize(class)
	n := PageSize / bs
	idx := -1
	for i := 0; i < n; i++ {
		if !bm.test(i) {
			idx = i
			break
		}
	}
	if idx < 0 {
		// Shouldn't happen: a full page is always moved off this list.
		return 0, fmt.Errorf("pageheap: size-class page %d reported free with no free block", p)
	}
	bm.set(idx)
	if bm.full(n) {
		h.unlink(p)
		h.pushFront(listFullPages, p)
	}
	h.bytesUsed += int64(bs)
	return h.base.Add(int64(p)*PageSize + int64(idx*bs)), nil
}

func (h *Heap) allocLarge(size int) (Addr, error) {
	n := (size + PageSize - 1) / PageSize
	head, err := h.takeReam(n)
	if err != nil {
		return 0, err
	}
	h.desc[head].class = classReam
	h.desc[head].extra = int32(n - 1)
	h.desc[head].head = head
	h.bitmaps[head].clear()
	h.bitmaps[head].set(0)
	cur := head
	for i := 1; i < n; i++ {
		cur = h.nextPhysicalPage(cur)
		h.desc[cur].head = head
	}
	h.pushFront(listFullReams, head)
	h.bytesUsed += int64(n) * PageSize
	return h.base.Add(int64(head) * PageSize), nil
}

func (h *Heap) nextPhysicalPage(p pageID) pageID { return p + 1 }

// takeFreePage returns one unlinked, empty single page, splitting a free
// ream if necessary. The returned page belongs to no list.
func (h *Heap) takeFreePage() (pageID, error) {
	if p := h.popFront(listFreePages); p != noPage {
		return p, nil
	}
	head := h.popFront(listFreeReams)
	if head == noPage {
		return noPage, fmt.Errorf("pageheap: out of memory (reservation of %d pages exhausted)", h.numPages)
	}
	n := int(h.desc[head].extra) + 1
	if n == 1 {
		return head, nil
	}
	// Split off the first page; the remainder is an unlinked ream the
	// caller (allocSmall/allocLarge) decides where to place.
	rest := h.nextPhysicalPage(head)
	h.desc[rest].extra = int32(n - 2)
	h.desc[rest].head = rest
	if n-1 == 1 {
		h.pushFront(listFreePages, rest)
	} else {
		h.pushFront(listFreeReams, rest)
	}
	return head, nil
}

// takeReam returns n unlinked, contiguous free pages.
func (h *Heap) takeReam(n int) (pageID, error) {
	// First fit over free reams; fall back to coalescing free single pages
	// is not attempted (reams are always carved fresh from the free-ream
	// list or, failing that, a single free page promoted to a 1-page ream).
	best := noPage
	for p := h.desc[h.sentinelID(listFreeReams)].next; p != noPage; p = h.desc[p].next {
		if int(h.desc[p].extra)+1 >= n {
			best = p
			break
		}
	}
	if best != noPage {
		h.unlink(best)
		total := int(h.desc[best].extra) + 1
		if total > n {
			rest := pageID(int(best) + n)
			h.desc[rest].extra = int32(total - n - 1)
			h.desc[rest].head = rest
			if total-n == 1 {
				h.pushFront(listFreePages, rest)
			} else {
				h.pushFront(listFreeReams, rest)
			}
		}
		return best, nil
	}
	if n == 1 {
		return h.takeFreePage()
	}
	return noPage, fmt.Errorf("pageheap: no contiguous run of %d free pages available", n)
}

func (h *Heap) pageOf(a Addr) (pageID, error) {
	off := a.Sub(h.base)
	if off < 0 || off >= h.bytesReserved {
		return 0, fmt.Errorf("pageheap: address %s out of range", a)
	}
	return pageID(off / PageSize), nil
}

// Mark marks the block containing a as live.
func (h *Heap) Mark(a Addr) error {
	p, err := h.pageOf(a)
	if err != nil {
		return err
	}
	head := h.desc[p].head
	if h.desc[head].class == classReam {
		h.bitmaps[head].set(0)
		return nil
	}
	bs := blockSize(int(h.desc[p].class))
	off := int(a.Sub(h.base)) % PageSize
	h.bitmaps[p].set(off / bs)
	return nil
}

// IsMarked reports whether the block containing a is currently marked.
func (h *Heap) IsMarked(a Addr) (bool, error) {
	p, err := h.pageOf(a)
	if err != nil {
		return false, err
	}
	head := h.desc[p].head
	if h.desc[head].class == classReam {
		return h.bitmaps[head].test(0), nil
	}
	bs := blockSize(int(h.desc[p].class))
	off := int(a.Sub(h.base)) % PageSize
	return h.bitmaps[p].test(off / bs), nil
}

// StartGC zeroes every page's bitmap in preparation for a new mark phase.
func (h *Heap) StartGC() {
	for i := range h.bitmaps {
		h.bitmaps[i].clear()
	}
}

// Sweep reclaims every page/ream with no live blocks, and moves
// partially-live small pages back onto their size-class free list. It
// recomputes BytesUsed from scratch.
func (h *Heap) Sweep() {
	var used int64
	for p := 0; p < h.numPages; p++ {
		pp := pageID(p)
		d := &h.desc[pp]
		if d.head != pp {
			continue // continuation page of a ream; handled via its head
		}
		if d.class == classReam {
			n := int(d.extra) + 1
			if h.bitmaps[pp].test(0) {
				used += int64(n) * PageSize
				continue
			}
			h.unlinkWherever(pp)
			if n == 1 {
				h.pushFront(listFreePages, pp)
			} else {
				h.pushFront(listFreeReams, pp)
			}
			continue
		}
		if d.class == 0 {
			continue // never allocated from
		}
		bs := blockSize(int(d.class))
		n := PageSize / bs
		if h.bitmaps[pp].full(n) {
			used += int64(n) * int64(bs)
			continue
		}
		live := 0
		for i := 0; i < n; i++ {
			if h.bitmaps[pp].test(i) {
				live++
			}
		}
		used += int64(live) * int64(bs)
		if live == 0 {
			h.unlinkWherever(pp)
			d.class = 0
			h.pushFront(listFreePages, pp)
			continue
		}
		h.unlinkWherever(pp)
		h.pushFront(sentinelList(int(d.class)), pp)
	}
	h.bytesUsed = used
}

// unlinkWherever removes p from whatever list it currently sits on. Since
// every list shares one prev/next field this is just unlink, but pages
// fresh off a split (takeFreePage/takeReam) are not on any list yet;
// unlink on an already-detached page is a safe no-op.
func (h *Heap) unlinkWherever(p pageID) { h.unlink(p) }

// BytesUsed returns the live-byte total as of the last Sweep.
func (h *Heap) BytesUsed() int64 { return h.bytesUsed }

// BytesReserved returns the total size of the reservation.
func (h *Heap) BytesReserved() int64 { return h.bytesReserved }

// Close releases the underlying OS mapping. A Heap must not be used
// afterward.
func (h *Heap) Close() error { return h.reservation.release() }
