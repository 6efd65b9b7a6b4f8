package runtime

import (
	"github.com/wisplang/wisp/internal/bytecode"
	"github.com/wisplang/wisp/internal/fiber"
	"github.com/wisplang/wisp/internal/heap"
	"github.com/wisplang/wisp/internal/object"
	"github.com/wisplang/wisp/internal/value"
	"github.com/wisplang/wisp/internal/wisperr"
)

// fail records a RuntimeError on the current fiber and returns it,
// matching spec §7: "runtime errors are stored in the current fiber's
// error slot and the dispatch loop returns RuntimeError."
func (vm *VM) fail(kind wisperr.Kind, format string, args ...any) error {
	err := wisperr.NewRuntimeError(kind, format, args...)
	vm.fiber.Err = err
	return err
}

// frameChunk resolves the chunk, owning Import and running Closure for
// the current frame.
func (vm *VM) frameChunk(fr *fiber.Frame) (*bytecode.Chunk, *object.Import, *object.Closure, error) {
	obj, err := vm.lookup(fr.Closure)
	if err != nil {
		return nil, nil, nil, err
	}
	cl, ok := obj.(*object.Closure)
	if !ok {
		return nil, nil, nil, wisperr.NewRuntimeError(wisperr.KindFrameEmpty, "frame closure is not a Closure")
	}
	impObj, err := vm.lookup(cl.Function.Import)
	if err != nil {
		return nil, nil, nil, err
	}
	imp, ok := impObj.(*object.Import)
	if !ok {
		return nil, nil, nil, wisperr.NewRuntimeError(wisperr.KindFrameEmpty, "closure's Import reference is invalid")
	}
	return &imp.Module.Chunks[cl.Function.ChunkIndex], imp, cl, nil
}

func readByteOperand(chunk *bytecode.Chunk, fr *fiber.Frame) byte {
	b := chunk.ReadByte(fr.IP)
	fr.IP++
	return b
}

func readU16Operand(chunk *bytecode.Chunk, fr *fiber.Frame) uint16 {
	v := chunk.ReadU16(fr.IP)
	fr.IP += 2
	return v
}

func readU32Operand(chunk *bytecode.Chunk, fr *fiber.Frame) uint32 {
	v := chunk.ReadU32(fr.IP)
	fr.IP += 4
	return v
}

func readI16Operand(chunk *bytecode.Chunk, fr *fiber.Frame) int16 {
	v := chunk.ReadI16(fr.IP)
	fr.IP += 2
	return v
}

// run is the dispatch loop of spec §4.H: single-threaded, cooperative,
// reading opcodes from the current frame's ip until the program's
// top-level Closure returns with no parent fiber left to resume.
func (vm *VM) run() error {
	for {
		if len(vm.fiber.Frames) == 0 {
			if vm.fiber.Parent == nil {
				return nil
			}
			// The child fiber's top-level RETURN ran with no frames left:
			// switch back to the parent (spec §5's second suspension point).
			vm.fiber = vm.fiber.Parent
			continue
		}

		fr := vm.fiber.CurrentFrame()
		chunk, imp, closure, err := vm.frameChunk(fr)
		if err != nil {
			vm.fiber.Err = err
			return err
		}

		op := bytecode.Op(readByteOperand(chunk, fr))
		switch op {

		case bytecode.OpConstant:
			operand := readU32Operand(chunk, fr)
			isString, idx := bytecode.DecodeConstant(operand)
			if isString {
				if int(idx) >= len(imp.Strings) {
					return vm.fail(wisperr.KindStringConstantExpected, "string constant %d out of range", idx)
				}
				vm.fiber.Push(imp.Strings[idx])
			} else {
				if int(idx) >= len(imp.Module.Numbers) {
					return vm.fail(wisperr.KindUnexpectedValue, "number constant %d out of range", idx)
				}
				vm.fiber.Push(value.Number(imp.Module.Numbers[idx]))
			}

		case bytecode.OpTrue:
			vm.fiber.Push(value.True)
		case bytecode.OpFalse:
			vm.fiber.Push(value.False)
		case bytecode.OpNil:
			vm.fiber.Push(value.Nil)

		case bytecode.OpPop:
			if _, err := vm.fiber.Pop(); err != nil {
				return vm.fail(wisperr.KindStackEmpty, "%s", err)
			}

		case bytecode.OpNegate:
			v, err := vm.fiber.Pop()
			if err != nil {
				return vm.fail(wisperr.KindStackEmpty, "%s", err)
			}
			if !v.IsNumber() {
				return vm.fail(wisperr.KindUnexpectedValue, "operand must be a number")
			}
			vm.fiber.Push(value.Number(-v.AsNumber()))

		case bytecode.OpAdd:
			if err := vm.addOp(); err != nil {
				return err
			}
		case bytecode.OpSubtract:
			if err := vm.numericBinary(op); err != nil {
				return err
			}
		case bytecode.OpMultiply:
			if err := vm.numericBinary(op); err != nil {
				return err
			}
		case bytecode.OpDivide:
			if err := vm.numericBinary(op); err != nil {
				return err
			}

		case bytecode.OpNot:
			v, err := vm.fiber.Pop()
			if err != nil {
				return vm.fail(wisperr.KindStackEmpty, "%s", err)
			}
			vm.fiber.Push(value.Bool(v.IsFalsey()))

		case bytecode.OpEqual:
			b, err1 := vm.fiber.Pop()
			a, err2 := vm.fiber.Pop()
			if err1 != nil || err2 != nil {
				return vm.fail(wisperr.KindStackEmpty, "stack underflow in EQUAL")
			}
			vm.fiber.Push(value.Bool(vm.valuesEqual(a, b)))

		case bytecode.OpGreater:
			if err := vm.numericCompare(op); err != nil {
				return err
			}
		case bytecode.OpLess:
			if err := vm.numericCompare(op); err != nil {
				return err
			}

		case bytecode.OpPrint:
			v, err := vm.fiber.Pop()
			if err != nil {
				return vm.fail(wisperr.KindStackEmpty, "%s", err)
			}
			vm.printFn(vm.stringify(v))

		case bytecode.OpDefineGlobal:
			identIdx := readU32Operand(chunk, fr)
			v, err := vm.fiber.Pop()
			if err != nil {
				return vm.fail(wisperr.KindStackEmpty, "%s", err)
			}
			imp.Globals.Set(globalSymbol(identIdx), v)

		case bytecode.OpGetGlobal:
			identIdx := readU32Operand(chunk, fr)
			v, ok := imp.Globals.Get(globalSymbol(identIdx))
			if !ok {
				return vm.fail(wisperr.KindGlobalNotDefined, "undefined global %q", identName(imp, identIdx))
			}
			vm.fiber.Push(v)

		case bytecode.OpSetGlobal:
			identIdx := readU32Operand(chunk, fr)
			sym := globalSymbol(identIdx)
			if _, ok := imp.Globals.Get(sym); !ok {
				return vm.fail(wisperr.KindGlobalNotDefined, "undefined global %q", identName(imp, identIdx))
			}
			v, err := vm.fiber.Peek(0)
			if err != nil {
				return vm.fail(wisperr.KindStackEmpty, "%s", err)
			}
			imp.Globals.Set(sym, v)

		case bytecode.OpGetLocal:
			slot := int(readU16Operand(chunk, fr))
			vm.fiber.Push(vm.fiber.Stack[fr.BaseCounter+slot])

		case bytecode.OpSetLocal:
			slot := int(readU16Operand(chunk, fr))
			v, err := vm.fiber.Peek(0)
			if err != nil {
				return vm.fail(wisperr.KindStackEmpty, "%s", err)
			}
			vm.fiber.Stack[fr.BaseCounter+slot] = v

		case bytecode.OpGetUpvalue:
			idx := int(readU16Operand(chunk, fr))
			v, err := vm.readUpvalue(closure, idx)
			if err != nil {
				return err
			}
			vm.fiber.Push(v)

		case bytecode.OpSetUpvalue:
			idx := int(readU16Operand(chunk, fr))
			v, err := vm.fiber.Peek(0)
			if err != nil {
				return vm.fail(wisperr.KindStackEmpty, "%s", err)
			}
			if err := vm.writeUpvalue(closure, idx, v); err != nil {
				return err
			}

		case bytecode.OpGetProperty:
			identIdx := readU32Operand(chunk, fr)
			recv, err := vm.fiber.Pop()
			if err != nil {
				return vm.fail(wisperr.KindStackEmpty, "%s", err)
			}
			v, err := vm.getProperty(recv, identName(imp, identIdx))
			if err != nil {
				vm.fiber.Err = err
				return err
			}
			vm.fiber.Push(v)

		case bytecode.OpSetProperty:
			identIdx := readU32Operand(chunk, fr)
			val, err1 := vm.fiber.Pop()
			objVal, err2 := vm.fiber.Pop()
			if err1 != nil || err2 != nil {
				return vm.fail(wisperr.KindStackEmpty, "stack underflow in SET_PROPERTY")
			}
			obj, err := vm.lookup(objVal)
			if err != nil {
				vm.fiber.Err = err
				return err
			}
			inst, ok := obj.(*object.Instance)
			if !ok {
				return vm.fail(wisperr.KindUnexpectedValue, "only instances have settable properties")
			}
			inst.Fields.Set(vm.sym(identName(imp, identIdx)), val)
			vm.fiber.Push(val)

		case bytecode.OpJump:
			delta := readI16Operand(chunk, fr)
			fr.IP += int(delta)

		case bytecode.OpJumpIfFalse:
			delta := readI16Operand(chunk, fr)
			v, err := vm.fiber.Peek(0)
			if err != nil {
				return vm.fail(wisperr.KindStackEmpty, "%s", err)
			}
			if v.IsFalsey() {
				fr.IP += int(delta)
			}

		case bytecode.OpCall:
			arity := int(readByteOperand(chunk, fr))
			idx := len(vm.fiber.Stack) - 1 - arity
			if idx < 0 {
				return vm.fail(wisperr.KindStackEmpty, "not enough values on stack for call")
			}
			callee := vm.fiber.Stack[idx]
			if err := vm.callValue(callee, arity); err != nil {
				return err
			}

		case bytecode.OpInvoke:
			arity := int(readByteOperand(chunk, fr))
			identIdx := readU32Operand(chunk, fr)
			if err := vm.invokeOp(identName(imp, identIdx), arity); err != nil {
				return err
			}

		case bytecode.OpCloseUpvalue:
			n := len(vm.fiber.Stack)
			if n == 0 {
				return vm.fail(wisperr.KindStackEmpty, "CLOSE_UPVALUE on empty stack")
			}
			vm.fiber.CloseUpvalues(vm.heap, n-1)
			vm.fiber.Stack = vm.fiber.Stack[:n-1]

		case bytecode.OpClass:
			classIdx := readByteOperand(chunk, fr)
			if int(classIdx) >= len(imp.Module.Classes) {
				return vm.fail(wisperr.KindUnexpectedValue, "class index %d out of range", classIdx)
			}
			name := imp.Module.Classes[classIdx].Name
			v, err := vm.alloc(heap.KindClass, object.NewClass(name))
			if err != nil {
				return err
			}
			vm.fiber.Push(v)

		case bytecode.OpClosure:
			closureIdx := readU32Operand(chunk, fr)
			v, err := vm.makeClosure(fr, closure, imp, closureIdx)
			if err != nil {
				return err
			}
			vm.fiber.Push(v)

		case bytecode.OpMethod:
			identIdx := readU32Operand(chunk, fr)
			methodVal, err := vm.fiber.Pop()
			if err != nil {
				return vm.fail(wisperr.KindStackEmpty, "%s", err)
			}
			classVal, err := vm.fiber.Peek(0)
			if err != nil {
				return vm.fail(wisperr.KindStackEmpty, "%s", err)
			}
			classObj, err := vm.lookup(classVal)
			if err != nil {
				vm.fiber.Err = err
				return err
			}
			classObj.(*object.Class).Methods.Set(vm.sym(identName(imp, identIdx)), methodVal)

		case bytecode.OpImport:
			pathIdx := readU32Operand(chunk, fr)
			if err := vm.importOp(imp, pathIdx); err != nil {
				return err
			}

		case bytecode.OpImportGlobal:
			identIdx := readU32Operand(chunk, fr)
			if err := vm.importGlobalOp(imp, identIdx); err != nil {
				return err
			}

		case bytecode.OpReturn:
			result, err := vm.fiber.Pop()
			if err != nil {
				return vm.fail(wisperr.KindStackEmpty, "%s", err)
			}
			vm.fiber.EndFrame(vm.heap)
			if len(vm.fiber.Frames) > 0 {
				vm.fiber.Push(result)
			}
			// If this was the fiber's last frame, the top-of-loop check
			// handles the context switch (or program end) on the next
			// iteration.

		default:
			return vm.fail(wisperr.KindUnexpectedValue, "unknown opcode %d", op)
		}
	}
}

func identName(imp *object.Import, identIdx uint32) string {
	if int(identIdx) >= len(imp.Module.Identifiers) {
		return "<invalid>"
	}
	return imp.Module.Identifiers[identIdx]
}

// makeClosure materializes a CLOSURE opcode: each UpvalueRecipe either
// captures a local slot of the currently executing frame (finding or
// creating an Open cell) or aliases an upvalue the current closure
// already holds (spec §3 "Closures are created by CLOSURE opcodes").
func (vm *VM) makeClosure(fr *fiber.Frame, enclosing *object.Closure, imp *object.Import, closureIdx uint32) (value.Value, error) {
	if int(closureIdx) >= len(imp.Module.Closures) {
		return 0, vm.fail(wisperr.KindUnexpectedValue, "closure index %d out of range", closureIdx)
	}
	proto := imp.Module.Closures[closureIdx]
	ups := make([]value.Value, len(proto.Upvalues))
	for i, recipe := range proto.Upvalues {
		switch recipe.Source {
		case bytecode.FromLocal:
			absIdx := fr.BaseCounter + int(recipe.Index)
			if existing, ok := vm.fiber.FindOpenUpvalue(vm.heap, absIdx); ok {
				ups[i] = existing
				continue
			}
			cellVal, err := vm.alloc(heap.KindUpvalue, &object.Upvalue{Open: true, StackIndex: absIdx})
			if err != nil {
				return 0, err
			}
			vm.fiber.PushUpvalue(cellVal)
			ups[i] = cellVal
		case bytecode.FromUpvalue:
			if int(recipe.Index) >= len(enclosing.Upvalues) {
				return 0, vm.fail(wisperr.KindUnexpectedValue, "upvalue index %d out of range", recipe.Index)
			}
			ups[i] = enclosing.Upvalues[recipe.Index]
		}
	}
	return vm.alloc(heap.KindClosure, &object.Closure{
		Function: object.Function{
			Name:       proto.Function.Name,
			ChunkIndex: proto.Function.ChunkIndex,
			Arity:      proto.Function.Arity,
			Import:     enclosing.Function.Import,
		},
		Upvalues: ups,
	})
}

func (vm *VM) readUpvalue(closure *object.Closure, idx int) (value.Value, error) {
	if idx >= len(closure.Upvalues) {
		return 0, vm.fail(wisperr.KindUnexpectedValue, "upvalue index %d out of range", idx)
	}
	obj, err := vm.lookup(closure.Upvalues[idx])
	if err != nil {
		return 0, err
	}
	uv := obj.(*object.Upvalue)
	if uv.Open {
		return vm.fiber.Stack[uv.StackIndex], nil
	}
	return uv.Closed, nil
}

func (vm *VM) writeUpvalue(closure *object.Closure, idx int, v value.Value) error {
	if idx >= len(closure.Upvalues) {
		return vm.fail(wisperr.KindUnexpectedValue, "upvalue index %d out of range", idx)
	}
	obj, err := vm.lookup(closure.Upvalues[idx])
	if err != nil {
		return err
	}
	uv := obj.(*object.Upvalue)
	if uv.Open {
		vm.fiber.Stack[uv.StackIndex] = v
	} else {
		uv.Closed = v
	}
	return nil
}
