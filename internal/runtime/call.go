package runtime

import (
	"github.com/wisplang/wisp/internal/heap"
	"github.com/wisplang/wisp/internal/object"
	"github.com/wisplang/wisp/internal/value"
	"github.com/wisplang/wisp/internal/wisperr"
)

// callValue implements spec §4.H's call protocol for a CALL opcode or a
// recursive dispatch from within it (Class's init, BoundMethod's inner
// method): callee occupies stack[len(stack)-1-arity], the slot that
// becomes the new frame's slot 0.
func (vm *VM) callValue(callee value.Value, arity int) error {
	idx := len(vm.fiber.Stack) - 1 - arity
	if idx < 0 {
		return vm.fail(wisperr.KindStackEmpty, "not enough values on stack for call")
	}
	if !callee.IsObject() {
		return vm.fail(wisperr.KindInvalidCallee, "value is not callable")
	}
	kind, ok := vm.heap.KindOf(callee)
	if !ok {
		return vm.fail(wisperr.KindInvalidCallee, "value is not callable")
	}

	switch kind {
	case heap.KindClosure:
		return vm.beginClosureCall(callee, arity)

	case heap.KindNativeFunction:
		obj, err := vm.lookup(callee)
		if err != nil {
			return err
		}
		nf := obj.(*object.NativeFunction)
		receiver := vm.fiber.Stack[idx]
		args := append([]value.Value(nil), vm.fiber.Stack[idx+1:]...)
		vm.fiber.Stack = vm.fiber.Stack[:idx]
		result, err := nf.Impl(receiver, args)
		if err != nil {
			return vm.fail(wisperr.KindUnexpectedValue, "%s: %s", nf.Name, err)
		}
		vm.fiber.Push(result)
		return nil

	case heap.KindClass:
		obj, err := vm.lookup(callee)
		if err != nil {
			return err
		}
		cls := obj.(*object.Class)
		instVal, err := vm.alloc(heap.KindInstance, object.NewInstance(callee))
		if err != nil {
			return err
		}
		vm.fiber.Stack[idx] = instVal
		if initVal, ok := cls.Methods.Get(vm.sym("init")); ok {
			return vm.callValue(initVal, arity)
		}
		if arity > 0 {
			return vm.fail(wisperr.KindIncorrectArity, "%s takes no arguments", cls.Name)
		}
		return nil

	case heap.KindBoundMethod:
		obj, err := vm.lookup(callee)
		if err != nil {
			return err
		}
		bm := obj.(*object.BoundMethod)
		vm.fiber.Stack[idx] = bm.Receiver
		return vm.callValue(bm.Method, arity)

	default:
		return vm.fail(wisperr.KindInvalidCallee, "value is not callable")
	}
}

// beginClosureCall enforces exact arity and pushes a new frame.
func (vm *VM) beginClosureCall(closureVal value.Value, arity int) error {
	obj, err := vm.lookup(closureVal)
	if err != nil {
		return err
	}
	cl, ok := obj.(*object.Closure)
	if !ok {
		return vm.fail(wisperr.KindInvalidCallee, "value is not callable")
	}
	if arity != cl.Function.Arity {
		return vm.fail(wisperr.KindIncorrectArity, "%s: expected %d arguments but got %d", cl.Function.Name, cl.Function.Arity, arity)
	}
	vm.fiber.BeginFrame(closureVal, arity)
	return nil
}

// invokeOp implements spec §4.H's INVOKE: the same property lookup as
// GET_PROPERTY, but a Closure result is called directly (receiver stays
// in the callee slot it already occupies, one frame push, no BoundMethod
// allocation); any other callable result still goes through the normal
// materialize-then-call path.
func (vm *VM) invokeOp(name string, arity int) error {
	idx := len(vm.fiber.Stack) - 1 - arity
	if idx < 0 {
		return vm.fail(wisperr.KindStackEmpty, "not enough values on stack for invoke")
	}
	receiver := vm.fiber.Stack[idx]
	propVal, isField, err := vm.lookupProperty(receiver, name)
	if err != nil {
		vm.fiber.Err = err
		return err
	}
	if !isField {
		if kind, ok := vm.heap.KindOf(propVal); ok && kind == heap.KindClosure {
			return vm.beginClosureCall(propVal, arity)
		}
	}
	var toCall value.Value
	if isField {
		toCall = propVal
	} else {
		bmVal, err := vm.alloc(heap.KindBoundMethod, &object.BoundMethod{Receiver: receiver, Method: propVal})
		if err != nil {
			return err
		}
		toCall = bmVal
	}
	vm.fiber.Stack[idx] = toCall
	return vm.callValue(toCall, arity)
}
