// Package fiber implements spec §4.G's Fiber: one call-frame stack, one
// value stack, and the open-upvalue bookkeeping they share.
//
// Grounded on internal/core's Thread — an OS thread's register file plus
// its stack, addressed by the debugger rather than owned by it. A Fiber
// is the same "one stack + one cursor" shape, turned from something
// read after the fact into something the runtime owns and mutates live.
package fiber

import (
	"fmt"

	"github.com/wisplang/wisp/internal/heap"
	"github.com/wisplang/wisp/internal/object"
	"github.com/wisplang/wisp/internal/value"
)

// Frame is one call frame (spec §4.G): base_counter is the stack index
// of slot 0 (the callee/receiver), Closure references the running
// Closure object, and IP is the byte offset of the next instruction in
// that closure's chunk.
type Frame struct {
	BaseCounter int
	Closure     value.Value
	IP          int
}

// Fiber is a cooperatively scheduled stack of call frames sharing one
// value stack (spec §4.G, GLOSSARY).
type Fiber struct {
	Stack        []value.Value
	Frames       []Frame
	OpenUpvalues []value.Value // Upvalue object references, pushed in stack order
	Err          error
	Parent       *Fiber
}

// New returns an empty Fiber with stack capacity reserved up front.
func New(stackCapacity int, parent *Fiber) *Fiber {
	return &Fiber{
		Stack:  make([]value.Value, 0, stackCapacity),
		Parent: parent,
	}
}

// Push appends v to the value stack.
func (f *Fiber) Push(v value.Value) { f.Stack = append(f.Stack, v) }

// Pop removes and returns the top value stack entry.
func (f *Fiber) Pop() (value.Value, error) {
	n := len(f.Stack)
	if n == 0 {
		return 0, fmt.Errorf("stack empty")
	}
	v := f.Stack[n-1]
	f.Stack = f.Stack[:n-1]
	return v, nil
}

// Peek returns the value distance slots from the top (0 = top) without
// popping it.
func (f *Fiber) Peek(distance int) (value.Value, error) {
	i := len(f.Stack) - 1 - distance
	if i < 0 || i >= len(f.Stack) {
		return 0, fmt.Errorf("stack empty")
	}
	return f.Stack[i], nil
}

// Top returns the current stack depth.
func (f *Fiber) Top() int { return len(f.Stack) }

// CurrentFrame returns a pointer to the innermost call frame.
func (f *Fiber) CurrentFrame() *Frame {
	if len(f.Frames) == 0 {
		return nil
	}
	return &f.Frames[len(f.Frames)-1]
}

// BeginFrame pushes a new call frame for a closure called with arity
// arguments: the frame's base_counter is set so that slot 0 is the
// callee/receiver value already sitting on the stack (spec §4.G).
func (f *Fiber) BeginFrame(closure value.Value, arity int) *Frame {
	f.Frames = append(f.Frames, Frame{
		BaseCounter: len(f.Stack) - arity - 1,
		Closure:     closure,
	})
	return &f.Frames[len(f.Frames)-1]
}

// EndFrame pops the innermost call frame: closes any upvalues whose
// stack index is at or beyond its base_counter, then truncates the
// stack to that base_counter (spec §4.G).
func (f *Fiber) EndFrame(h *heap.Heap) {
	fr := f.Frames[len(f.Frames)-1]
	f.CloseUpvalues(h, fr.BaseCounter)
	f.Stack = f.Stack[:fr.BaseCounter]
	f.Frames = f.Frames[:len(f.Frames)-1]
}

// PushUpvalue registers a newly materialized Upvalue cell.
func (f *Fiber) PushUpvalue(u value.Value) { f.OpenUpvalues = append(f.OpenUpvalues, u) }

// FindOpenUpvalue returns the open upvalue cell capturing stack index
// idx, if one already exists, by reverse linear scan (spec §4.G: cells
// are pushed in stack order).
func (f *Fiber) FindOpenUpvalue(h *heap.Heap, idx int) (value.Value, bool) {
	for i := len(f.OpenUpvalues) - 1; i >= 0; i-- {
		u := f.OpenUpvalues[i]
		obj, ok := h.Lookup(u)
		if !ok {
			continue
		}
		uv := obj.(*object.Upvalue)
		if uv.Open && uv.StackIndex == idx {
			return u, true
		}
	}
	return 0, false
}

// CloseUpvalues closes every open cell with StackIndex >= fromIndex,
// copying the live stack value into the cell, and swap-removes them
// from the fiber's open list (spec §4.G).
func (f *Fiber) CloseUpvalues(h *heap.Heap, fromIndex int) {
	kept := f.OpenUpvalues[:0]
	for _, u := range f.OpenUpvalues {
		obj, ok := h.Lookup(u)
		if !ok {
			continue
		}
		uv := obj.(*object.Upvalue)
		if uv.Open && uv.StackIndex >= fromIndex {
			uv.Closed = f.Stack[uv.StackIndex]
			uv.Open = false
			continue // swap-removed: not kept
		}
		kept = append(kept, u)
	}
	f.OpenUpvalues = kept
}

// Trace implements heap.Root: a live fiber's roots are every value on
// its stack, every frame's closure reference, and every open upvalue
// cell reference (spec §5).
func (f *Fiber) Trace(t *heap.Tracer) {
	for _, v := range f.Stack {
		t.Mark(v)
	}
	for _, fr := range f.Frames {
		t.Mark(fr.Closure)
	}
	for _, u := range f.OpenUpvalues {
		t.Mark(u)
	}
}
