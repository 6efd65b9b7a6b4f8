// Package stdlib is the built-in library collaborator spec.md §1 and
// §6.3 name but deliberately leave out of core scope: a minimal set of
// native functions and builtin-class methods registered against a
// runtime.VM purely through its embedding API (SetGlobalFn, SetMethod),
// the same way any other embedder would — stdlib has no special access
// to runtime internals beyond that surface.
//
// Grounded on the teacher's own small, fixed-table native registration
// style (cmd/viewcore wires a short list of named commands into a host
// at startup) generalized from "CLI subcommands" to "language natives."
package stdlib

import (
	"time"

	"github.com/wisplang/wisp/internal/object"
	"github.com/wisplang/wisp/internal/runtime"
	"github.com/wisplang/wisp/internal/value"
	"github.com/wisplang/wisp/internal/wisperr"
)

// Install registers clock() as a global native and append/len as
// builtin-class methods on List and String (spec.md's own named
// examples, §6.3 "e.g. clock, list append").
func Install(vm *runtime.VM) error {
	if err := vm.SetGlobalFn("clock", clockFn); err != nil {
		return err
	}
	if err := vm.SetGlobalFn("List", listCtorFn(vm)); err != nil {
		return err
	}
	if err := vm.SetMethod(runtime.ClassList, "append", listAppendFn(vm)); err != nil {
		return err
	}
	if err := vm.SetMethod(runtime.ClassList, "len", listLenFn(vm)); err != nil {
		return err
	}
	if err := vm.SetMethod(runtime.ClassString, "len", stringLenFn(vm)); err != nil {
		return err
	}
	return nil
}

// clockFn returns seconds since the Unix epoch as a float, the same
// zero-argument wall-clock builtin every small scripting-language
// interpreter in this pack's ancestry exposes.
func clockFn(_ value.Value, args []value.Value) (value.Value, error) {
	if len(args) != 0 {
		return 0, wisperr.NewRuntimeError(wisperr.KindIncorrectArity, "clock: expected 0 arguments but got %d", len(args))
	}
	return value.Number(float64(time.Now().UnixNano()) / 1e9), nil
}

// listCtorFn is the only way user code can ever obtain a List: spec.md
// has no list-literal AST node or dedicated allocating opcode for one
// (the LIST entry in §5's GC-safepoint list describes an allocation
// event, not a bytecode instruction — the canonical opcode set in §6.2
// has no LIST opcode), so construction is exposed as an ordinary global
// native, the same way the host would register any other.
func listCtorFn(vm *runtime.VM) object.NativeFunctionImpl {
	return func(_ value.Value, args []value.Value) (value.Value, error) {
		elems := append([]value.Value(nil), args...)
		return vm.NewList(elems)
	}
}

// listAppendFn mutates the receiver List in place and returns nil,
// matching the "receiver is the callee slot" NativeFunction contract of
// spec §3/§6.3.
func listAppendFn(vm *runtime.VM) object.NativeFunctionImpl {
	return func(receiver value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return 0, wisperr.NewRuntimeError(wisperr.KindIncorrectArity, "append: expected 1 argument but got %d", len(args))
		}
		obj, ok := vm.Lookup(receiver)
		if !ok {
			return 0, wisperr.NewRuntimeError(wisperr.KindUnexpectedValue, "append: receiver is not a live object")
		}
		l, ok := obj.(*object.List)
		if !ok {
			return 0, wisperr.NewRuntimeError(wisperr.KindUnexpectedValue, "append: receiver is not a List")
		}
		l.Elements = append(l.Elements, args[0])
		return value.Nil, nil
	}
}

func listLenFn(vm *runtime.VM) object.NativeFunctionImpl {
	return func(receiver value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 0 {
			return 0, wisperr.NewRuntimeError(wisperr.KindIncorrectArity, "len: expected 0 arguments but got %d", len(args))
		}
		obj, ok := vm.Lookup(receiver)
		if !ok {
			return 0, wisperr.NewRuntimeError(wisperr.KindUnexpectedValue, "len: receiver is not a live object")
		}
		l, ok := obj.(*object.List)
		if !ok {
			return 0, wisperr.NewRuntimeError(wisperr.KindUnexpectedValue, "len: receiver is not a List")
		}
		return value.Number(float64(len(l.Elements))), nil
	}
}

func stringLenFn(vm *runtime.VM) object.NativeFunctionImpl {
	return func(receiver value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 0 {
			return 0, wisperr.NewRuntimeError(wisperr.KindIncorrectArity, "len: expected 0 arguments but got %d", len(args))
		}
		obj, ok := vm.Lookup(receiver)
		if !ok {
			return 0, wisperr.NewRuntimeError(wisperr.KindUnexpectedValue, "len: receiver is not a live object")
		}
		s, ok := obj.(*object.String)
		if !ok {
			return 0, wisperr.NewRuntimeError(wisperr.KindUnexpectedValue, "len: receiver is not a String")
		}
		return value.Number(float64(len(s.Text))), nil
	}
}
