package machine

import "github.com/mna/ember/lang/value"

// CallFrame is one activation record: the Closure executing, a resumable
// instruction pointer into that closure's function's chunk, and the value-
// stack index at which this call's locals begin (spec.md §3). Slot 0 of
// that region is the callee for a plain function frame, or the receiver for
// a method/initializer frame.
type CallFrame struct {
	closure    value.ObjectRef
	ip         int
	slotOffset int
}
