package machine

import (
	"fmt"

	"github.com/mna/ember/lang/chunk"
	"github.com/mna/ember/lang/value"
)

// run is the fetch-decode-execute loop: it always executes relative to the
// topmost CallFrame, reading bytecode from that frame closure's function's
// chunk (spec.md §4.2).
func (vm *VM) run() (value.Value, error) {
	frame := &vm.frames[vm.frameCount-1]
	cl := vm.heap.Closure(frame.closure)
	fn := vm.heap.Function(cl.Function)
	code := fn.Chunk.Code

	readByte := func() byte {
		b := code[frame.ip]
		frame.ip++
		return b
	}
	readShort := func() int {
		hi := code[frame.ip]
		lo := code[frame.ip+1]
		frame.ip += 2
		return int(hi)<<8 | int(lo)
	}
	readConstant := func() value.Value {
		return fn.Chunk.Constants[readByte()]
	}

	for {
		vm.steps++
		if vm.MaxSteps > 0 && vm.steps > vm.MaxSteps {
			return value.Nil, vm.runtimeError("execution step budget exceeded")
		}
		if vm.steps%vm.gcCheckInterval == 0 {
			vm.collectSafepoint()
		}

		op := chunk.OpCode(readByte())
		switch op {
		case chunk.OpConstant:
			if err := vm.push(readConstant()); err != nil {
				return value.Nil, err
			}

		case chunk.OpNil:
			if err := vm.push(value.Nil); err != nil {
				return value.Nil, err
			}
		case chunk.OpTrue:
			if err := vm.push(value.Bool(true)); err != nil {
				return value.Nil, err
			}
		case chunk.OpFalse:
			if err := vm.push(value.Bool(false)); err != nil {
				return value.Nil, err
			}

		case chunk.OpPop:
			vm.pop()

		case chunk.OpGetLocal:
			slot := int(readByte())
			if err := vm.push(vm.stack[frame.slotOffset+slot]); err != nil {
				return value.Nil, err
			}
		case chunk.OpSetLocal:
			slot := int(readByte())
			vm.stack[frame.slotOffset+slot] = vm.peek(0)

		case chunk.OpGetGlobal:
			nameRef := readConstant().AsObj()
			v, ok := vm.globals.Get(nameRef.Handle)
			if !ok {
				return value.Nil, vm.runtimeError("Undefined variable '%s'.", vm.heap.String(nameRef).Chars)
			}
			if err := vm.push(v); err != nil {
				return value.Nil, err
			}
		case chunk.OpSetGlobal:
			nameRef := readConstant().AsObj()
			if _, ok := vm.globals.Get(nameRef.Handle); !ok {
				return value.Nil, vm.runtimeError("Undefined variable '%s'.", vm.heap.String(nameRef).Chars)
			}
			vm.globals.Put(nameRef.Handle, vm.peek(0))
		case chunk.OpDefineGlobal:
			nameRef := readConstant().AsObj()
			vm.globals.Put(nameRef.Handle, vm.pop())

		case chunk.OpGetUpvalue:
			slot := int(readByte())
			if err := vm.push(cl.Upvalues[slot].Get()); err != nil {
				return value.Nil, err
			}
		case chunk.OpSetUpvalue:
			slot := int(readByte())
			cl.Upvalues[slot].Set(vm.peek(0))

		case chunk.OpGetProperty:
			nameRef := readConstant().AsObj()
			receiver := vm.peek(0)
			if !receiver.IsObjKind(value.ObjInstance) {
				return value.Nil, vm.runtimeError("Only instances have properties.")
			}
			inst := vm.heap.Instance(receiver.AsObj())
			if fv, ok := inst.Fields.Get(nameRef.Handle); ok {
				vm.pop()
				if err := vm.push(fv); err != nil {
					return value.Nil, err
				}
				break
			}
			bm, ok := vm.bindMethod(inst.Class, nameRef.Handle, receiver)
			if !ok {
				return value.Nil, vm.runtimeError("Undefined property '%s'.", vm.heap.String(nameRef).Chars)
			}
			vm.pop()
			if err := vm.push(bm); err != nil {
				return value.Nil, err
			}

		case chunk.OpSetProperty:
			nameRef := readConstant().AsObj()
			receiver := vm.peek(1)
			if !receiver.IsObjKind(value.ObjInstance) {
				return value.Nil, vm.runtimeError("Only instances have fields.")
			}
			inst := vm.heap.Instance(receiver.AsObj())
			v := vm.peek(0)
			inst.Fields.Put(nameRef.Handle, v)
			vm.pop()
			vm.pop()
			if err := vm.push(v); err != nil {
				return value.Nil, err
			}

		case chunk.OpEqual:
			b, a := vm.pop(), vm.pop()
			if err := vm.push(value.Bool(value.Equal(a, b))); err != nil {
				return value.Nil, err
			}

		case chunk.OpGreater, chunk.OpLess:
			b, a := vm.pop(), vm.pop()
			if !a.IsNumber() || !b.IsNumber() {
				return value.Nil, vm.runtimeError("Operands must be numbers.")
			}
			if op == chunk.OpGreater {
				if err := vm.push(value.Bool(a.AsNumber() > b.AsNumber())); err != nil {
					return value.Nil, err
				}
			} else {
				if err := vm.push(value.Bool(a.AsNumber() < b.AsNumber())); err != nil {
					return value.Nil, err
				}
			}

		case chunk.OpAdd:
			b, a := vm.pop(), vm.pop()
			switch {
			case a.IsNumber() && b.IsNumber():
				if err := vm.push(value.Number(a.AsNumber() + b.AsNumber())); err != nil {
					return value.Nil, err
				}
			case a.IsObjKind(value.ObjString) && b.IsObjKind(value.ObjString):
				concatenated := vm.heap.String(a.AsObj()).Chars + vm.heap.String(b.AsObj()).Chars
				ref := vm.heap.InternString(concatenated)
				if err := vm.push(value.Obj(ref)); err != nil {
					return value.Nil, err
				}
				vm.collectSafepoint() // result must be pushed before a GC can run (spec.md §5)
			default:
				return value.Nil, vm.runtimeError("Operands must be two numbers or two strings.")
			}

		case chunk.OpSubtract, chunk.OpMultiply, chunk.OpDivide:
			b, a := vm.pop(), vm.pop()
			if !a.IsNumber() || !b.IsNumber() {
				return value.Nil, vm.runtimeError("Operands must be numbers.")
			}
			var r float64
			switch op {
			case chunk.OpSubtract:
				r = a.AsNumber() - b.AsNumber()
			case chunk.OpMultiply:
				r = a.AsNumber() * b.AsNumber()
			case chunk.OpDivide:
				r = a.AsNumber() / b.AsNumber()
			}
			if err := vm.push(value.Number(r)); err != nil {
				return value.Nil, err
			}

		case chunk.OpNot:
			if err := vm.push(value.Bool(!value.Truthy(vm.pop()))); err != nil {
				return value.Nil, err
			}

		case chunk.OpNegate:
			v := vm.pop()
			if !v.IsNumber() {
				return value.Nil, vm.runtimeError("Operand must be a number.")
			}
			if err := vm.push(value.Number(-v.AsNumber())); err != nil {
				return value.Nil, err
			}

		case chunk.OpPrint:
			fmt.Fprintln(vm.stdout, vm.heap.Stringify(vm.pop()))

		case chunk.OpJump:
			offset := readShort()
			frame.ip += offset

		case chunk.OpJumpIfFalse:
			offset := readShort()
			if !value.Truthy(vm.peek(0)) {
				frame.ip += offset
			}

		case chunk.OpLoop:
			offset := readShort()
			frame.ip -= offset

		case chunk.OpCall:
			argCount := int(readByte())
			if err := vm.callValue(vm.peek(argCount), argCount); err != nil {
				return value.Nil, err
			}
			frame = &vm.frames[vm.frameCount-1]
			cl = vm.heap.Closure(frame.closure)
			fn = vm.heap.Function(cl.Function)
			code = fn.Chunk.Code

		case chunk.OpInvoke:
			nameRef := readConstant().AsObj()
			argCount := int(readByte())
			if err := vm.invoke(nameRef.Handle, argCount); err != nil {
				return value.Nil, err
			}
			frame = &vm.frames[vm.frameCount-1]
			cl = vm.heap.Closure(frame.closure)
			fn = vm.heap.Function(cl.Function)
			code = fn.Chunk.Code

		case chunk.OpClosure:
			fnVal := readConstant()
			newFn := vm.heap.Function(fnVal.AsObj())
			closureRef := vm.heap.NewClosure(fnVal.AsObj(), newFn.UpvalueCount)
			newCl := vm.heap.Closure(closureRef)
			for i := 0; i < newFn.UpvalueCount; i++ {
				isLocal := readByte()
				index := int(readByte())
				if isLocal == 1 {
					newCl.Upvalues[i] = vm.captureUpvalue(frame.slotOffset + index)
				} else {
					newCl.Upvalues[i] = cl.Upvalues[index]
				}
			}
			if err := vm.push(value.Obj(closureRef)); err != nil {
				return value.Nil, err
			}

		case chunk.OpCloseValue:
			vm.closeUpvalues(vm.sp - 1)
			vm.pop()

		case chunk.OpClass:
			nameRef := readConstant().AsObj()
			classRef := vm.heap.NewClass(vm.heap.String(nameRef).Chars)
			if err := vm.push(value.Obj(classRef)); err != nil {
				return value.Nil, err
			}

		case chunk.OpMethod:
			nameRef := readConstant().AsObj()
			methodVal := vm.pop()
			classVal := vm.peek(0)
			cls := vm.heap.Class(classVal.AsObj())
			cls.Methods.Put(nameRef.Handle, methodVal.AsObj())

		case chunk.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.slotOffset)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return result, nil
			}
			vm.sp = frame.slotOffset
			if err := vm.push(result); err != nil {
				return value.Nil, err
			}

			frame = &vm.frames[vm.frameCount-1]
			cl = vm.heap.Closure(frame.closure)
			fn = vm.heap.Function(cl.Function)
			code = fn.Chunk.Code

		default:
			return value.Nil, vm.runtimeError("unknown opcode %d", op)
		}
	}
}
