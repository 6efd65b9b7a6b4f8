// Package runtime implements spec §4.H: the dispatch loop, call
// protocol, import linkage and cooperative fiber switch that execute a
// compiled bytecode.Module.
//
// Grounded on program/server/server.go's dispatch shape: a struct
// holding "the current point of control" (there: a stopped ptrace'd
// thread and a breakpoint map; here: the active Fiber and its ip)
// driven by a loop that executes one step and reports one of a small
// outcome set — directly spec §4.H's More/Done/RuntimeError/
// ContextSwitch enum. The cooperative switch of spec §5 is grounded on
// that same file's pattern of suspending one thread of control and
// resuming another (there, over a channel rendezvous between OS
// threads; here, between fibers sharing one goroutine).
package runtime

import (
	"fmt"
	"os"

	"github.com/wisplang/wisp/internal/bytecode"
	"github.com/wisplang/wisp/internal/fiber"
	"github.com/wisplang/wisp/internal/heap"
	"github.com/wisplang/wisp/internal/interner"
	"github.com/wisplang/wisp/internal/object"
	"github.com/wisplang/wisp/internal/value"
	"github.com/wisplang/wisp/internal/wisperr"
)

const globalsImportPath = "_globals"

// VM is the runtime: one managed heap, one symbol table for property
// names (shared across every loaded Import, unlike each Import's own
// globals symbol numbering — see DESIGN.md), a cache of loaded Imports,
// and the currently running Fiber.
type VM struct {
	heap    *heap.Heap
	symbols *interner.Interner

	globals value.Value // the `_globals` Import, copied into every new Import
	imports map[string]value.Value
	order   []string // not populated; importsRoot ranges over imports directly

	fiber *fiber.Fiber
	stackSlots int

	printFn  func(string)
	importFn func(path string) (*bytecode.Module, bool)

	stringClass value.Value
	listClass   value.Value
	objectClass value.Value
}

// New creates a VM with a managed heap of heapReservationBytes, the three
// builtin classes, and an empty `_globals` Import ready for
// embedder-registered natives (spec §4.H "Builtins", §6.3).
func New(heapReservationBytes, gcInitialThreshold int64, stackSlots int) (*VM, error) {
	h, err := heap.New(heapReservationBytes, gcInitialThreshold)
	if err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}
	vm := &VM{
		heap:        h,
		symbols:     interner.New(),
		imports:     make(map[string]value.Value),
		stackSlots:  stackSlots,
		printFn:     func(s string) { fmt.Fprintln(os.Stdout, s) },
	}

	strClass, err := vm.allocClass("String")
	if err != nil {
		return nil, err
	}
	listClass, err := vm.allocClass("List")
	if err != nil {
		return nil, err
	}
	objClass, err := vm.allocClass("Object")
	if err != nil {
		return nil, err
	}
	vm.stringClass, vm.listClass, vm.objectClass = strClass, listClass, objClass

	globalsVal, err := vm.newImport(globalsImportPath, bytecode.NewModule())
	if err != nil {
		return nil, err
	}
	vm.globals = globalsVal
	return vm, nil
}

// SetDebugGC enables stderr collection tracing (WISP_DEBUG_GC).
func (vm *VM) SetDebugGC(v bool) { vm.heap.SetDebug(v) }

// Close releases the VM's managed heap reservation.
func (vm *VM) Close() error { return vm.heap.Close() }

func (vm *VM) allocClass(name string) (value.Value, error) {
	return vm.alloc(heap.KindClass, object.NewClass(name))
}

// alloc wraps heap.Manage with the GC safepoint spec §5 calls for:
// "any opcode that allocates ... may trigger a collection."
func (vm *VM) alloc(kind heap.Kind, obj heap.Object) (value.Value, error) {
	v, err := vm.heap.Manage(kind, obj)
	if err != nil {
		return 0, err
	}
	vm.heap.Collect(vm.roots())
	return v, nil
}

func (vm *VM) sym(name string) interner.Symbol { return vm.symbols.Intern(name) }

// lookup resolves v to its live managed object, or a RuntimeError if v
// isn't a live object reference.
func (vm *VM) lookup(v value.Value) (heap.Object, error) {
	obj, ok := vm.heap.Lookup(v)
	if !ok {
		return nil, wisperr.NewRuntimeError(wisperr.KindUnexpectedValue, "value is not a live object reference")
	}
	return obj, nil
}

// --- Import construction (spec §3 "Imports are created lazily") ---

// newImport allocates a fresh Import over module: copies each `_globals`
// entry (if `_globals` already exists) whose name appears in module's
// identifier pool, re-keyed to that pool's numbering, pre-allocates one
// String object per module.Strings entry, and manages the Import object
// itself.
func (vm *VM) newImport(path string, module *bytecode.Module) (value.Value, error) {
	imp := &object.Import{
		Path:    path,
		Module:  module,
		Globals: interner.NewTable[value.Value](),
	}
	if vm.globals != 0 {
		if g, ok := vm.heap.Lookup(vm.globals); ok {
			gi := g.(*object.Import)
			gi.Globals.Range(func(k interner.Symbol, v value.Value) {
				if sym, ok := symbolInModule(imp, gi.Module.Identifiers[k-1]); ok {
					imp.Globals.Set(sym, v)
				}
			})
		}
	}
	strs := make([]value.Value, len(module.Strings))
	for i, s := range module.Strings {
		sv, err := vm.alloc(heap.KindString, &object.String{Text: s})
		if err != nil {
			return 0, err
		}
		strs[i] = sv
	}
	imp.Strings = strs
	return vm.alloc(heap.KindImport, imp)
}

// globalSymbol implements spec §3's invariant: "the globals table of an
// Import is keyed by the same symbol numbering used at compile time (via
// the Import's interned identifier list); symbol 0 is reserved as
// invalid/empty." Since a Module's identifier pool is already a
// deduplicated, densely-numbered list (bytecode.Module.AddIdentifier),
// the compile-time index doubles directly as that numbering with a +1
// shift to keep symbol 0 reserved — no separate per-Import interning
// pass is needed.
func globalSymbol(identIdx uint32) interner.Symbol { return interner.Symbol(identIdx + 1) }

// --- Embedding API (spec §6.3) ---

// SetPrint registers the callback PRINT invokes.
func (vm *VM) SetPrint(fn func(string)) { vm.printFn = fn }

// SetImport registers the callback a cache-miss IMPORT invokes.
func (vm *VM) SetImport(fn func(path string) (*bytecode.Module, bool)) { vm.importFn = fn }

// SetGlobalFn registers a NativeFunction in the `_globals` Import.
func (vm *VM) SetGlobalFn(name string, impl object.NativeFunctionImpl) error {
	fnVal, err := vm.alloc(heap.KindNativeFunction, &object.NativeFunction{Name: name, Impl: impl})
	if err != nil {
		return err
	}
	g, err := vm.lookup(vm.globals)
	if err != nil {
		return err
	}
	g.(*object.Import).Globals.Set(vm.identSymbolForGlobals(name), fnVal)
	return nil
}

// identSymbolForGlobals assigns a stable Symbol to name within the
// `_globals` Import's own (otherwise-empty) module identifier pool.
// newImport maps each such entry to a later module's own numbering by
// name when it copies the entry forward.
func (vm *VM) identSymbolForGlobals(name string) interner.Symbol {
	g, _ := vm.lookup(vm.globals)
	imp := g.(*object.Import)
	idx := imp.Module.AddIdentifier(name)
	return globalSymbol(idx)
}

// BuiltinClass identifies one of the VM's three builtin classes (spec
// §4.H "Builtins").
type BuiltinClass int

const (
	ClassString BuiltinClass = iota
	ClassList
	ClassObject
)

// SetMethod installs a NativeFunction as a method on a builtin class.
func (vm *VM) SetMethod(class BuiltinClass, name string, impl object.NativeFunctionImpl) error {
	var classVal value.Value
	switch class {
	case ClassString:
		classVal = vm.stringClass
	case ClassList:
		classVal = vm.listClass
	default:
		classVal = vm.objectClass
	}
	fnVal, err := vm.alloc(heap.KindNativeFunction, &object.NativeFunction{Name: name, Impl: impl})
	if err != nil {
		return err
	}
	obj, err := vm.lookup(classVal)
	if err != nil {
		return err
	}
	obj.(*object.Class).Methods.Set(vm.sym(name), fnVal)
	return nil
}

// NewList allocates a List object, for use by native functions that
// need to build one (spec §6.3 "Native functions may allocate via the
// same managed heap").
func (vm *VM) NewList(elements []value.Value) (value.Value, error) {
	return vm.alloc(heap.KindList, &object.List{Elements: elements})
}

// NewString allocates a String object.
func (vm *VM) NewString(s string) (value.Value, error) {
	return vm.alloc(heap.KindString, &object.String{Text: s})
}

// Lookup exposes heap object resolution to native functions.
func (vm *VM) Lookup(v value.Value) (heap.Object, bool) { return vm.heap.Lookup(v) }

// Interpret loads module into a fresh root Import and runs its top-level
// chunk to completion (spec §6.3 "interpret(module)").
func (vm *VM) Interpret(module *bytecode.Module) error {
	impVal, err := vm.newImport("", module)
	if err != nil {
		return err
	}
	closureVal, err := vm.topLevelClosure(impVal, module)
	if err != nil {
		return err
	}
	vm.fiber = fiber.New(vm.stackSlots, nil)
	vm.fiber.Push(closureVal)
	vm.fiber.BeginFrame(closureVal, 0)
	return vm.run()
}

// topLevelClosure wraps module's chunk 0 in a Closure with no upvalues,
// the same shape CLOSURE produces for any other function (spec §3
// "Runtime loads Module into a root Import, creates the top-level
// Closure").
func (vm *VM) topLevelClosure(importVal value.Value, module *bytecode.Module) (value.Value, error) {
	return vm.alloc(heap.KindClosure, &object.Closure{
		Function: object.Function{Name: "script", ChunkIndex: 0, Arity: 0, Import: importVal},
	})
}
