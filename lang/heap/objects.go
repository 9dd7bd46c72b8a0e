package heap

import (
	"github.com/dolthub/swiss"

	"github.com/mna/ember/lang/chunk"
	"github.com/mna/ember/lang/value"
)

// StringObj is an interned, immutable UTF-8 string. The heap stores exactly
// one StringObj per unique content hash.
type StringObj struct {
	Chars string
	Hash  uint32
}

// FunctionObj is a compiled function: name, arity, declared upvalue count,
// and the Chunk of bytecode compiled for its body. It is created once at
// compile time and never mutated afterward.
type FunctionObj struct {
	Name         string
	Arity        int
	UpvalueCount int
	Chunk        *chunk.Chunk
	live         bool
}

// NativeFn is a built-in function implemented in Go. Arity < 0 means
// variadic (the function itself validates argument count).
type NativeFn struct {
	Name  string
	Arity int
	Fn    func(h *Heap, args []value.Value) (value.Value, error)
	live  bool
}

// Upvalue is a two-state cell, per spec.md §3: Open holds a pointer into the
// live value stack; Closed owns a copied Value. Upvalues are addressed
// directly by Go pointer from the Closures and VM open-upvalue list that
// reference them, rather than through a heap handle, since they are never
// observable as a Language-level Value in their own right.
type Upvalue struct {
	Location *value.Value // non-nil while Open; points into the VM's value stack
	Closed   value.Value  // valid only once Location is nil
	Next     *Upvalue     // next-lower entry in the VM's open-upvalue list
	Slot     int          // stack index Location refers to; VM bookkeeping only, unused once Closed
}

// IsOpen reports whether the cell still references a live stack slot.
func (u *Upvalue) IsOpen() bool { return u.Location != nil }

// Get returns the cell's current value, open or closed.
func (u *Upvalue) Get() value.Value {
	if u.Location != nil {
		return *u.Location
	}
	return u.Closed
}

// Set writes through to the open slot, or to the closed copy.
func (u *Upvalue) Set(v value.Value) {
	if u.Location != nil {
		*u.Location = v
		return
	}
	u.Closed = v
}

// Close transitions the cell from Open to Closed, copying out the
// referenced stack value.
func (u *Upvalue) Close() {
	v := *u.Location
	u.Location = nil
	u.Closed = v
}

// ClosureObj is a Function handle plus its captured upvalue cells. Closures
// are the only callable runtime representation of user-defined code.
type ClosureObj struct {
	Function value.ObjectRef // FunctionObj handle
	Upvalues []*Upvalue
	live     bool
}

// ClassObj is a name and a mapping from method-name hash to Closure handle.
type ClassObj struct {
	Name    string
	Methods *swiss.Map[uint32, value.ObjectRef]
	live    bool
}

// InstanceObj is a Class handle and a mapping from field-name hash to Value.
// Fields are created on first assignment.
type InstanceObj struct {
	Class  value.ObjectRef
	Fields *swiss.Map[uint32, value.Value]
	live   bool
}

// BoundMethodObj is a receiver Value plus a Closure handle, produced by
// property access when the name resolves to a method rather than a field.
type BoundMethodObj struct {
	Receiver value.Value
	Method   value.ObjectRef // ClosureObj handle
	live     bool
}
