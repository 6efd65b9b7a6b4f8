package runtime

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wisplang/wisp/internal/bytecode"
	"github.com/wisplang/wisp/internal/heap"
	"github.com/wisplang/wisp/internal/object"
	"github.com/wisplang/wisp/internal/value"
	"github.com/wisplang/wisp/internal/wisperr"
)

// numericBinary implements SUBTRACT/MULTIPLY/DIVIDE: both operands must
// be numbers (spec §4.C, §4.H).
func (vm *VM) numericBinary(op bytecode.Op) error {
	b, err1 := vm.fiber.Pop()
	a, err2 := vm.fiber.Pop()
	if err1 != nil || err2 != nil {
		return vm.fail(wisperr.KindStackEmpty, "stack underflow in %s", op)
	}
	if !a.IsNumber() || !b.IsNumber() {
		return vm.fail(wisperr.KindUnexpectedValue, "operands to %s must be numbers", op)
	}
	x, y := a.AsNumber(), b.AsNumber()
	var r float64
	switch op {
	case bytecode.OpSubtract:
		r = x - y
	case bytecode.OpMultiply:
		r = x * y
	case bytecode.OpDivide:
		r = x / y
	}
	vm.fiber.Push(value.Number(r))
	return nil
}

// numericCompare implements GREATER/LESS.
func (vm *VM) numericCompare(op bytecode.Op) error {
	b, err1 := vm.fiber.Pop()
	a, err2 := vm.fiber.Pop()
	if err1 != nil || err2 != nil {
		return vm.fail(wisperr.KindStackEmpty, "stack underflow in %s", op)
	}
	if !a.IsNumber() || !b.IsNumber() {
		return vm.fail(wisperr.KindUnexpectedValue, "operands to %s must be numbers", op)
	}
	x, y := a.AsNumber(), b.AsNumber()
	var r bool
	if op == bytecode.OpGreater {
		r = x > y
	} else {
		r = x < y
	}
	vm.fiber.Push(value.Bool(r))
	return nil
}

// addOp implements ADD's dual numeric-add/string-concatenate behavior
// (spec §4.C "ADD on two strings concatenates, allocating a new String").
func (vm *VM) addOp() error {
	b, err1 := vm.fiber.Pop()
	a, err2 := vm.fiber.Pop()
	if err1 != nil || err2 != nil {
		return vm.fail(wisperr.KindStackEmpty, "stack underflow in ADD")
	}
	if a.IsNumber() && b.IsNumber() {
		vm.fiber.Push(value.Number(a.AsNumber() + b.AsNumber()))
		return nil
	}
	oa, okA := vm.heap.Lookup(a)
	ob, okB := vm.heap.Lookup(b)
	if okA && okB {
		sa, isStrA := oa.(*object.String)
		sb, isStrB := ob.(*object.String)
		if isStrA && isStrB {
			v, err := vm.alloc(heap.KindString, &object.String{Text: sa.Text + sb.Text})
			if err != nil {
				return err
			}
			vm.fiber.Push(v)
			return nil
		}
	}
	return vm.fail(wisperr.KindUnexpectedValue, "operands to ADD must be two numbers or two strings")
}

// valuesEqual implements spec §4.C's EQUAL: numbers compare by value
// (so NaN != NaN falls out of Go's float equality for free), nil and
// bool singletons compare by identity, and objects defer to
// objectsEqual.
func (vm *VM) valuesEqual(a, b value.Value) bool {
	if !value.SameBroadType(a, b) {
		return false
	}
	switch value.Categorize(a) {
	case value.CategoryNumber:
		return a.AsNumber() == b.AsNumber()
	case value.CategoryNil:
		return true
	case value.CategoryBool:
		return a == b
	default:
		return vm.objectsEqual(a, b)
	}
}

// objectsEqual implements the object/object arm: strings compare by
// byte content, every other kind by pointer (address) identity (spec §9
// Design Notes).
func (vm *VM) objectsEqual(a, b value.Value) bool {
	if !vm.heap.SameObjectHeader(a, b) {
		return false
	}
	oa, _ := vm.heap.Lookup(a)
	if sa, ok := oa.(*object.String); ok {
		ob, _ := vm.heap.Lookup(b)
		sb := ob.(*object.String)
		return sa.Text == sb.Text
	}
	return a.AsAddr() == b.AsAddr()
}

// stringify implements PRINT's formatting (spec §4.H, §8): nil/true/
// false print literally, numbers print in shortest round-trip form with
// no trailing ".0" noise for whole numbers, strings print their raw
// text, and every other kind prints a short descriptive tag.
func (vm *VM) stringify(v value.Value) string {
	switch value.Categorize(v) {
	case value.CategoryNil:
		return "nil"
	case value.CategoryBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case value.CategoryNumber:
		return formatNumber(v.AsNumber())
	default:
		obj, ok := vm.heap.Lookup(v)
		if !ok {
			return "<invalid>"
		}
		switch o := obj.(type) {
		case *object.String:
			return o.Text
		case *object.Closure:
			return fmt.Sprintf("<fn %s>", o.Function.Name)
		case *object.NativeFunction:
			return fmt.Sprintf("<native fn %s>", o.Name)
		case *object.Class:
			return o.Name
		case *object.Instance:
			classObj, _ := vm.heap.Lookup(o.Class)
			return fmt.Sprintf("<%s instance>", classObj.(*object.Class).Name)
		case *object.BoundMethod:
			return vm.stringify(o.Method)
		case *object.Import:
			return fmt.Sprintf("<import %q>", o.Path)
		case *object.Upvalue:
			return "<upvalue>"
		case *object.List:
			parts := make([]string, len(o.Elements))
			for i, e := range o.Elements {
				parts[i] = vm.stringify(e)
			}
			return "[" + strings.Join(parts, ", ") + "]"
		default:
			return "<object>"
		}
	}
}

// formatNumber prints a whole number below 1e21 in magnitude as plain
// decimal digits with no fraction or exponent (7.0 -> "7", 49995000 ->
// "49995000"), and every other number in strconv's shortest round-trip
// 'g' form (7.5 -> "7.5", 1e21 -> "1e+21").
func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
