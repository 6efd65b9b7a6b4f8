package runtime

import "github.com/wisplang/wisp/internal/heap"

// roots returns the GC root set spec §5 names: the active fiber (which
// recursively traces its frames, stack and open upvalues), every
// ancestor fiber up its Parent chain (importers suspended while an
// import runs), and the imports table (including the `_globals` Import).
func (vm *VM) roots() []heap.Root {
	rs := make([]heap.Root, 0, 4)
	if vm.fiber != nil {
		rs = append(rs, vm.fiber)
		for f := vm.fiber.Parent; f != nil; f = f.Parent {
			rs = append(rs, f)
		}
	}
	rs = append(rs, importsRoot{vm})
	return rs
}

// importsRoot traces the `_globals` Import and every cached Import
// (spec §5's third root: "the imports table").
type importsRoot struct{ vm *VM }

func (r importsRoot) Trace(t *heap.Tracer) {
	t.Mark(r.vm.globals)
	for _, v := range r.vm.imports {
		t.Mark(v)
	}
}
