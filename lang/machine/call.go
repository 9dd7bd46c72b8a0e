package machine

import (
	"github.com/mna/ember/lang/heap"
	"github.com/mna/ember/lang/value"
)

// callValue dispatches a call instruction's callee by tag, per spec.md
// §4.2 "call_value". The four callable kinds form a closed set known at VM
// build time, so this is a plain switch rather than an interface method —
// the tagged-union model spec.md §9 calls for.
func (vm *VM) callValue(callee value.Value, argCount int) error {
	if !callee.IsObj() {
		return vm.runtimeError("Can only call functions and classes.")
	}
	ref := callee.AsObj()
	switch ref.Kind {
	case value.ObjClosure:
		return vm.call(ref, argCount)

	case value.ObjNative:
		return vm.callNative(ref, argCount)

	case value.ObjClass:
		return vm.instantiate(ref, argCount)

	case value.ObjBoundMethod:
		bm := vm.heap.BoundMethod(ref)
		vm.stack[vm.sp-argCount-1] = bm.Receiver
		return vm.call(bm.Method, argCount)

	default:
		return vm.runtimeError("Can only call functions and classes.")
	}
}

// call pushes a new CallFrame for the Closure at ref, verifying arity
// first.
func (vm *VM) call(ref value.ObjectRef, argCount int) error {
	cl := vm.heap.Closure(ref)
	fn := vm.heap.Function(cl.Function)
	if argCount != fn.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", fn.Arity, argCount)
	}
	if vm.frameCount == len(vm.frames) {
		return vm.runtimeError("Stack overflow.")
	}
	vm.frames[vm.frameCount] = CallFrame{
		closure:    ref,
		ip:         0,
		slotOffset: vm.sp - argCount - 1,
	}
	vm.frameCount++
	return nil
}

// callNative pops argCount arguments, invokes the Go function, and pushes
// its result. Natives never push a CallFrame and cannot capture upvalues
// (spec.md §4.2).
func (vm *VM) callNative(ref value.ObjectRef, argCount int) error {
	n := vm.heap.Native(ref)
	if n.Arity >= 0 && argCount != n.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", n.Arity, argCount)
	}
	args := append([]value.Value(nil), vm.stack[vm.sp-argCount:vm.sp]...)
	result, err := n.Fn(vm.heap, args)
	if err != nil {
		return vm.runtimeError("%s", err.Error())
	}
	vm.sp -= argCount + 1
	return vm.push(result)
}

// instantiate allocates an Instance of the Class at ref, replacing the
// callee slot with it, then runs "init" if the class defines one (spec.md
// §4.2).
func (vm *VM) instantiate(ref value.ObjectRef, argCount int) error {
	cls := vm.heap.Class(ref)
	instRef := vm.heap.NewInstance(ref)
	vm.stack[vm.sp-argCount-1] = value.Obj(instRef)

	if initRef, ok := cls.Methods.Get(vm.initHash); ok {
		return vm.call(initRef, argCount)
	}
	if argCount != 0 {
		return vm.runtimeError("Expected 0 arguments but got %d.", argCount)
	}
	return nil
}

// invoke is the OpInvoke fast path for "a.b(...)": it looks up the field or
// method directly rather than materializing a BoundMethod object first
// (spec.md §4.2 "shortcut for GetProperty + Call").
func (vm *VM) invoke(nameHash uint32, argCount int) error {
	receiver := vm.peek(argCount)
	if !receiver.IsObjKind(value.ObjInstance) {
		return vm.runtimeError("Only instances have methods.")
	}
	inst := vm.heap.Instance(receiver.AsObj())
	if v, ok := inst.Fields.Get(nameHash); ok {
		vm.stack[vm.sp-argCount-1] = v
		return vm.callValue(v, argCount)
	}
	return vm.invokeFromClass(inst.Class, nameHash, argCount)
}

func (vm *VM) invokeFromClass(classRef value.ObjectRef, nameHash uint32, argCount int) error {
	cls := vm.heap.Class(classRef)
	methodRef, ok := cls.Methods.Get(nameHash)
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", vm.heap.String(value.ObjectRef{Kind: value.ObjString, Handle: nameHash}).Chars)
	}
	return vm.call(methodRef, argCount)
}

// bindMethod produces a BoundMethod value for a plain (non-call) property
// access that resolves to a method.
func (vm *VM) bindMethod(classRef value.ObjectRef, nameHash uint32, receiver value.Value) (value.Value, bool) {
	cls := vm.heap.Class(classRef)
	methodRef, ok := cls.Methods.Get(nameHash)
	if !ok {
		return value.Nil, false
	}
	bmRef := vm.heap.NewBoundMethod(receiver, methodRef)
	return value.Obj(bmRef), true
}

// captureUpvalue returns the Open upvalue cell for the stack slot at
// location, reusing an existing cell if the open-upvalue list (sorted by
// descending stack index) already has one, or splicing in a new cell in
// sorted order otherwise (spec.md §4.2).
func (vm *VM) captureUpvalue(slot int) *heap.Upvalue {
	var prev *heap.Upvalue
	cur := vm.openUpvalues
	for cur != nil && cur.Slot > slot {
		prev = cur
		cur = cur.Next
	}
	if cur != nil && cur.Slot == slot {
		return cur
	}

	created := &heap.Upvalue{Location: &vm.stack[slot], Slot: slot, Next: cur}
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues transitions every Open cell whose stack index is >=
// boundary to Closed, unlinking it from the open list (spec.md §4.2).
func (vm *VM) closeUpvalues(boundary int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Slot >= boundary {
		uv := vm.openUpvalues
		uv.Close()
		vm.openUpvalues = uv.Next
	}
}
