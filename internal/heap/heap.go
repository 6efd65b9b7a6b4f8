// Package heap implements the managed heap and tracing garbage collector
// of spec §4.B: a typed allocation entry point over internal/pageheap,
// with mark/sweep driven by an explicit root set and a swept finalizer
// list.
//
// Grounded on internal/gocore's markObjects (worklist marking over a
// root set, one bit of liveness per object) and its Root type. Where
// gocore *reads* an already-live process's heap to discover liveness
// after the fact, this package *is* the allocator: the side table
// (objects) plays the role of "the arena with pointer handles" spec.md's
// own Design Notes prescribe for GC implementers in a language with
// strict ownership — which Go is, here, since pageheap.Addr values are
// opaque numeric handles rather than real pointers into Go-managed
// memory.
package heap

import (
	"fmt"
	"os"

	"github.com/wisplang/wisp/internal/pageheap"
	"github.com/wisplang/wisp/internal/value"
)

// Kind is a stable per-type tag carried in every object's entry, the
// Go-side analogue of spec §3's "erased header carrying a type
// identity."
type Kind uint8

const (
	KindString Kind = iota
	KindClosure
	KindNativeFunction
	KindClass
	KindInstance
	KindBoundMethod
	KindImport
	KindList
	KindUpvalue
)

func (k Kind) String() string {
	names := [...]string{"String", "Closure", "NativeFunction", "Class", "Instance", "BoundMethod", "Import", "List", "Upvalue"}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// Object is implemented by every heap-managed value kind.
type Object interface {
	Kind() Kind
	// Trace reports every Value this object directly holds to t. Tracer
	// ignores non-object Values, so implementations may call t.Mark
	// unconditionally for every field.
	Trace(t *Tracer)
}

// Finalizer is implemented by object kinds with non-trivial teardown.
type Finalizer interface {
	Finalize()
}

// Sized is implemented by object kinds that know their own footprint.
// Objects that don't implement it are charged a minimal fixed size.
type Sized interface {
	Size() int
}

const defaultObjectSize = 16

type entry struct {
	kind Kind
	obj  Object
}

// Heap is the managed heap: a page allocator plus a typed side table
// keyed by the addresses it hands out.
type Heap struct {
	pages      *pageheap.Heap
	objects    map[pageheap.Addr]entry
	finalizers []pageheap.Addr
	threshold  int64
	debugGC    bool
}

// New creates a Heap backed by a reservation of reservationBytes with
// the given initial collection threshold (bytes_used, per §4.B).
func New(reservationBytes, initialThreshold int64) (*Heap, error) {
	p, err := pageheap.New(reservationBytes)
	if err != nil {
		return nil, fmt.Errorf("heap: %w", err)
	}
	return &Heap{
		pages:     p,
		objects:   make(map[pageheap.Addr]entry),
		threshold: initialThreshold,
	}, nil
}

// SetDebug enables stderr tracing of collections (WISP_DEBUG_GC).
func (h *Heap) SetDebug(v bool) { h.debugGC = v }

// Close releases the underlying page reservation.
func (h *Heap) Close() error { return h.pages.Close() }

// Manage allocates space for obj and registers it as the object living
// there, returning the Value that refers to it. If obj implements
// Sized, its reported size drives which size class/ream backs the
// allocation (and so, indirectly, the GC threshold heuristic) — this
// only affects collection timing, never correctness.
func (h *Heap) Manage(kind Kind, obj Object) (value.Value, error) {
	size := defaultObjectSize
	if s, ok := obj.(Sized); ok {
		if n := s.Size(); n > 0 {
			size = n
		}
	}
	a, err := h.pages.Alloc(size)
	if err != nil {
		return 0, fmt.Errorf("heap: allocate %s: %w", kind, err)
	}
	h.objects[a] = entry{kind: kind, obj: obj}
	if _, ok := obj.(Finalizer); ok {
		h.finalizers = append(h.finalizers, a)
	}
	return value.Object(a), nil
}

// Lookup returns the live object referenced by v, or (nil, false) if v
// isn't a live object reference.
func (h *Heap) Lookup(v value.Value) (Object, bool) {
	if !v.IsObject() {
		return nil, false
	}
	e, ok := h.objects[v.AsAddr()]
	if !ok {
		return nil, false
	}
	return e.obj, true
}

// KindOf returns the kind of the object v refers to, or (0, false).
func (h *Heap) KindOf(v value.Value) (Kind, bool) {
	if !v.IsObject() {
		return 0, false
	}
	e, ok := h.objects[v.AsAddr()]
	return e.kind, ok
}

// SameObjectHeader implements the object/object arm of spec §4.C's
// is_same_type: true iff both values reference live objects of the same
// Kind.
func (h *Heap) SameObjectHeader(a, b value.Value) bool {
	ka, ok1 := h.KindOf(a)
	kb, ok2 := h.KindOf(b)
	return ok1 && ok2 && ka == kb
}

// BytesUsed returns the page heap's live-byte total as of the last
// collection.
func (h *Heap) BytesUsed() int64 { return h.pages.BytesUsed() }

// Threshold returns the byte count that triggers the next Collect.
func (h *Heap) Threshold() int64 { return h.threshold }

// Root is implemented by every GC root (the active fiber, a queued next
// fiber, the imports table — per spec §5).
type Root interface {
	Trace(t *Tracer)
}

// Tracer is the capability passed to Object.Trace implementations: it
// can only mark, per spec §4.B ("the tracer exposes only mark(ptr)").
type Tracer struct {
	h *Heap
}

// Mark marks v if it is a live object reference not already marked,
// and recursively traces it.
func (t *Tracer) Mark(v value.Value) {
	if !v.IsObject() {
		return
	}
	a := v.AsAddr()
	marked, err := t.h.pages.IsMarked(a)
	if err != nil || marked {
		return
	}
	if err := t.h.pages.Mark(a); err != nil {
		return
	}
	if e, ok := t.h.objects[a]; ok {
		e.obj.Trace(t)
	}
}

// Collect runs a collection iff bytes_used exceeds the current
// threshold, and then raises the threshold per §4.B's
// max(bytes_used*2, bytes_used+100) rule.
func (h *Heap) Collect(roots []Root) {
	if h.pages.BytesUsed() <= h.threshold {
		return
	}
	h.ForceCollect(roots)
	used := h.pages.BytesUsed()
	next := used * 2
	if used+100 > next {
		next = used + 100
	}
	h.threshold = next
	if h.debugGC {
		fmt.Fprintf(os.Stderr, "-- gc: %d bytes used, next threshold %d\n", used, h.threshold)
	}
}

// ForceCollect runs an unconditional collection: mark from roots, run
// finalizers for anything left unmarked, then sweep.
func (h *Heap) ForceCollect(roots []Root) {
	h.pages.StartGC()
	t := &Tracer{h: h}
	for _, r := range roots {
		if r != nil {
			r.Trace(t)
		}
	}

	live := h.finalizers[:0]
	for _, a := range h.finalizers {
		marked, _ := h.pages.IsMarked(a)
		if marked {
			live = append(live, a)
			continue
		}
		if e, ok := h.objects[a]; ok {
			if f, ok2 := e.obj.(Finalizer); ok2 {
				f.Finalize()
			}
		}
	}
	h.finalizers = live

	h.pages.Sweep()

	for a := range h.objects {
		if marked, _ := h.pages.IsMarked(a); !marked {
			delete(h.objects, a)
		}
	}
}
