package runtime

import (
	"github.com/wisplang/wisp/internal/heap"
	"github.com/wisplang/wisp/internal/object"
	"github.com/wisplang/wisp/internal/value"
	"github.com/wisplang/wisp/internal/wisperr"
)

// builtinClassFor returns the builtin class backing a non-Instance
// object (spec §4.H "Builtins": String, List and everything else fall
// back to their fixed builtin classes for method dispatch).
func (vm *VM) builtinClassFor(v value.Value) value.Value {
	if !v.IsObject() {
		return 0
	}
	kind, ok := vm.heap.KindOf(v)
	if !ok {
		return 0
	}
	switch kind {
	case heap.KindString:
		return vm.stringClass
	case heap.KindList:
		return vm.listClass
	default:
		return vm.objectClass
	}
}

// lookupProperty is the shared resolution GET_PROPERTY and INVOKE both
// start from: an Instance's own field wins over its class's methods; any
// other object kind falls back to its builtin class's methods. isField
// tells the caller whether val came from a field slot (returned as-is)
// or a method table (a raw Closure/NativeFunction, not yet bound).
func (vm *VM) lookupProperty(receiver value.Value, name string) (val value.Value, isField bool, err error) {
	if receiver.IsObject() {
		if obj, ok := vm.heap.Lookup(receiver); ok {
			if inst, ok2 := obj.(*object.Instance); ok2 {
				if fv, ok3 := inst.Fields.Get(vm.sym(name)); ok3 {
					return fv, true, nil
				}
				classObj, ok4 := vm.heap.Lookup(inst.Class)
				if ok4 {
					if cls, ok5 := classObj.(*object.Class); ok5 {
						if m, ok6 := cls.Methods.Get(vm.sym(name)); ok6 {
							return m, false, nil
						}
					}
				}
				return 0, false, wisperr.NewRuntimeError(wisperr.KindUndefinedProperty, "undefined property %q", name)
			}
		}
	}

	clsVal := vm.builtinClassFor(receiver)
	if clsVal == 0 {
		return 0, false, wisperr.NewRuntimeError(wisperr.KindUndefinedProperty, "undefined property %q", name)
	}
	clsObj, ok := vm.heap.Lookup(clsVal)
	if !ok {
		return 0, false, wisperr.NewRuntimeError(wisperr.KindUndefinedProperty, "undefined property %q", name)
	}
	if m, ok := clsObj.(*object.Class).Methods.Get(vm.sym(name)); ok {
		return m, false, nil
	}
	return 0, false, wisperr.NewRuntimeError(wisperr.KindUndefinedProperty, "undefined property %q", name)
}

// getProperty implements GET_PROPERTY: a field is returned as-is; a
// method is wrapped in a fresh BoundMethod (spec §3, §4.H).
func (vm *VM) getProperty(receiver value.Value, name string) (value.Value, error) {
	val, isField, err := vm.lookupProperty(receiver, name)
	if err != nil {
		return 0, err
	}
	if isField {
		return val, nil
	}
	return vm.alloc(heap.KindBoundMethod, &object.BoundMethod{Receiver: receiver, Method: val})
}
