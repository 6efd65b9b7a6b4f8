// Package object defines the concrete heap-managed object kinds of
// spec §3's Data Model: String, Closure, NativeFunction, Class,
// Instance, BoundMethod, Import, List and Upvalue. Every cross-object
// reference is stored as a value.Value (an object address), never a raw
// Go pointer — a kept object's liveness is decided by the managed
// heap's own mark/sweep, which Go's garbage collector knows nothing
// about, so a raw Go pointer would let an object outlive what our
// tracer considers reachable and silently desync the two GCs. Callers
// resolve a reference with Heap.Lookup and a type assertion on Kind.
package object

import (
	"github.com/wisplang/wisp/internal/bytecode"
	"github.com/wisplang/wisp/internal/heap"
	"github.com/wisplang/wisp/internal/interner"
	"github.com/wisplang/wisp/internal/value"
)

// String is an immutable UTF-8 byte sequence.
type String struct {
	Text string
}

func (s *String) Kind() heap.Kind     { return heap.KindString }
func (s *String) Trace(t *heap.Tracer) {}
func (s *String) Size() int           { return 16 + len(s.Text) }

// Function is the non-heap-managed descriptor a Closure embeds (spec
// §3: "Descriptor, not separately heap-managed; embedded in Closure.").
type Function struct {
	Name       string
	ChunkIndex int
	Arity      int
	Import     value.Value // the owning Import
}

// Closure pairs a Function descriptor with its captured upvalue cells.
type Closure struct {
	Function Function
	Upvalues []value.Value // each an Upvalue object reference
}

func (c *Closure) Kind() heap.Kind { return heap.KindClosure }
func (c *Closure) Trace(t *heap.Tracer) {
	t.Mark(c.Function.Import)
	for _, u := range c.Upvalues {
		t.Mark(u)
	}
}
func (c *Closure) Size() int { return 32 + 8*len(c.Upvalues) }

// NativeFunctionImpl is the signature every embedder-registered native
// function implements (spec §6.3).
type NativeFunctionImpl func(receiver value.Value, args []value.Value) (value.Value, error)

// NativeFunction wraps a host function pointer.
type NativeFunction struct {
	Name string
	Impl NativeFunctionImpl
}

func (n *NativeFunction) Kind() heap.Kind      { return heap.KindNativeFunction }
func (n *NativeFunction) Trace(t *heap.Tracer) {}
func (n *NativeFunction) Size() int            { return 24 + len(n.Name) }

// Class holds a mapping from method symbol to callable Value (a Closure
// or NativeFunction reference).
type Class struct {
	Name    string
	Methods *interner.Table[value.Value]
}

func NewClass(name string) *Class {
	return &Class{Name: name, Methods: interner.NewTable[value.Value]()}
}

func (c *Class) Kind() heap.Kind { return heap.KindClass }
func (c *Class) Trace(t *heap.Tracer) {
	c.Methods.Range(func(_ interner.Symbol, v value.Value) { t.Mark(v) })
}
func (c *Class) Size() int { return 24 + 16*c.Methods.Len() }

// Instance holds a reference to its Class and a mapping from field
// symbol to Value.
type Instance struct {
	Class  value.Value
	Fields *interner.Table[value.Value]
}

func NewInstance(class value.Value) *Instance {
	return &Instance{Class: class, Fields: interner.NewTable[value.Value]()}
}

func (i *Instance) Kind() heap.Kind { return heap.KindInstance }
func (i *Instance) Trace(t *heap.Tracer) {
	t.Mark(i.Class)
	i.Fields.Range(func(_ interner.Symbol, v value.Value) { t.Mark(v) })
}
func (i *Instance) Size() int { return 16 + 16*i.Fields.Len() }

// BoundMethod pairs a receiver object with a method Value.
type BoundMethod struct {
	Receiver value.Value
	Method   value.Value
}

func (b *BoundMethod) Kind() heap.Kind { return heap.KindBoundMethod }
func (b *BoundMethod) Trace(t *heap.Tracer) {
	t.Mark(b.Receiver)
	t.Mark(b.Method)
}
func (b *BoundMethod) Size() int { return 16 }

// Import is a loaded module bound to a path, owning its globals table.
// Module is shared, immutable compiled output (not itself heap-managed
// — spec §3 doesn't list Module among the Object kinds).
type Import struct {
	Path    string
	Module  *bytecode.Module
	Globals *interner.Table[value.Value]
	// Strings holds one pre-allocated String object Value per entry of
	// Module.Strings, indexed the same way (spec §3: "pre-allocated
	// String objects for its string constants").
	Strings []value.Value
}

func (im *Import) Kind() heap.Kind { return heap.KindImport }
func (im *Import) Trace(t *heap.Tracer) {
	im.Globals.Range(func(_ interner.Symbol, v value.Value) { t.Mark(v) })
	for _, s := range im.Strings {
		t.Mark(s)
	}
}
func (im *Import) Size() int { return 32 + 8*len(im.Strings) + 16*im.Globals.Len() }

// List is a growable sequence of Values.
type List struct {
	Elements []value.Value
}

func (l *List) Kind() heap.Kind { return heap.KindList }
func (l *List) Trace(t *heap.Tracer) {
	for _, v := range l.Elements {
		t.Mark(v)
	}
}
func (l *List) Size() int { return 24 + 8*len(l.Elements) }

// Upvalue is either Open (its live value sits on some fiber's value
// stack at StackIndex) or Closed (its value has been copied off the
// stack into Closed). Closures hold an *indirection* to one cell — a
// reference, not a copy — so that multiple closures capturing the same
// variable observe each other's mutations (spec §9 Design Notes).
type Upvalue struct {
	Open       bool
	StackIndex int
	Closed     value.Value
}

func (u *Upvalue) Kind() heap.Kind { return heap.KindUpvalue }
func (u *Upvalue) Trace(t *heap.Tracer) {
	if !u.Open {
		t.Mark(u.Closed)
	}
}
