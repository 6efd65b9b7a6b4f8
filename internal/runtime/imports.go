package runtime

import (
	"github.com/wisplang/wisp/internal/fiber"
	"github.com/wisplang/wisp/internal/interner"
	"github.com/wisplang/wisp/internal/object"
	"github.com/wisplang/wisp/internal/value"
	"github.com/wisplang/wisp/internal/wisperr"
)

// importOp implements IMPORT (spec §3, §4.H, §5): resolve the path from
// the current chunk's string pool, serve a cached Import if one exists,
// otherwise compile-load it via the embedder's import callback, cache a
// freshly built Import (holding only its copied `_globals` entries)
// *before* running its body — so a
// cyclic import observes a partially-populated Import rather than
// recursing forever (Open Question decision, see DESIGN.md) — and
// context-switch to a new child fiber that runs the module's top-level
// chunk to completion.
func (vm *VM) importOp(imp *object.Import, pathIdx uint32) error {
	if int(pathIdx) >= len(imp.Module.Strings) {
		return vm.fail(wisperr.KindStringConstantExpected, "import path constant %d out of range", pathIdx)
	}
	path := imp.Module.Strings[pathIdx]

	if cached, ok := vm.imports[path]; ok {
		vm.fiber.Push(cached)
		return nil
	}
	if vm.importFn == nil {
		return vm.fail(wisperr.KindUnknownImport, "no import resolver registered for %q", path)
	}
	mod, ok := vm.importFn(path)
	if !ok {
		return vm.fail(wisperr.KindUnknownImport, "no such import %q", path)
	}

	childImpVal, err := vm.newImport(path, mod)
	if err != nil {
		return err
	}
	vm.imports[path] = childImpVal
	vm.fiber.Push(childImpVal)

	closureVal, err := vm.topLevelClosure(childImpVal, mod)
	if err != nil {
		return err
	}
	child := fiber.New(vm.stackSlots, vm.fiber)
	child.Push(closureVal)
	child.BeginFrame(closureVal, 0)
	vm.fiber = child
	return nil
}

// importGlobalOp implements IMPORT_GLOBAL: peek (not pop) the Import on
// top of the stack, resolve the current chunk's identifier to a name,
// and read that name out of the target Import's own globals table.
//
// The target's globals are keyed by a Symbol derived from *its own*
// module's identifier pool (see globalSymbol), which is a different
// numbering than the importing chunk's pool — so the name is
// re-resolved against the target's identifier list rather than reusing
// this chunk's identIdx arithmetically. See DESIGN.md.
func (vm *VM) importGlobalOp(imp *object.Import, identIdx uint32) error {
	topVal, err := vm.fiber.Peek(0)
	if err != nil {
		return vm.fail(wisperr.KindStackEmpty, "%s", err)
	}
	obj, err := vm.lookup(topVal)
	if err != nil {
		return err
	}
	target, ok := obj.(*object.Import)
	if !ok {
		return vm.fail(wisperr.KindUnexpectedValue, "IMPORT_GLOBAL: top of stack is not an Import")
	}

	name := identName(imp, identIdx)
	sym, ok := symbolInModule(target, name)
	if !ok {
		vm.fiber.Push(value.Nil)
		return nil
	}
	val, ok := target.Globals.Get(sym)
	if !ok {
		vm.fiber.Push(value.Nil)
		return nil
	}
	vm.fiber.Push(val)
	return nil
}

func symbolInModule(target *object.Import, name string) (interner.Symbol, bool) {
	for i, s := range target.Module.Identifiers {
		if s == name {
			return globalSymbol(uint32(i)), true
		}
	}
	return 0, false
}
