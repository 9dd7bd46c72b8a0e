// Package machine implements the stack-based virtual machine described in
// spec.md §4.2: a fetch-decode-execute loop over lang/chunk bytecode,
// dispatching calls across closures, bound methods, classes, and native
// functions, and driving the heap's garbage collector at periodic safe
// points.
package machine

import (
	"io"
	"os"

	"github.com/dolthub/swiss"

	"github.com/mna/ember/lang/heap"
	"github.com/mna/ember/lang/value"
)

// StackMax is the fixed value-stack capacity (spec.md §5: "value stack of
// 256 slots").
const StackMax = 256

// FramesMax is the fixed call-frame stack capacity (spec.md §5: "call stack
// of 256 frames").
const FramesMax = 256

// gcCheckInterval is the number of executed instructions between GC safe
// points (spec.md §4.3: "after each N bytecode instructions (e.g. every
// 5000)").
const gcCheckInterval = 5000

// VM holds all state for one execution session. A REPL owns a single VM for
// its lifetime so that globals and classes persist across each line
// (spec.md §9, "the REPL owns one VM for the session").
type VM struct {
	// Stdout receives the output of Print opcodes. Stderr is stored alongside
	// it but the VM itself writes nothing there: runtime errors are returned
	// from Run for the caller to report. If nil, os.Stdout and os.Stderr are
	// used respectively.
	Stdout io.Writer
	Stderr io.Writer

	// MaxSteps caps the number of executed instructions before the run is
	// aborted with a RuntimeError, a deliberately coarse execution budget. A
	// value <= 0 means no limit.
	MaxSteps uint64

	heap    *heap.Heap
	globals *swiss.Map[uint32, value.Value]

	stack []value.Value
	sp    int

	frames     []CallFrame
	frameCount int

	openUpvalues *heap.Upvalue

	initHash uint32

	steps           uint64
	gcCheckInterval uint64

	stdout io.Writer
	stderr io.Writer
}

// New creates a VM bound to h, ready to run compiled code, with the default
// stack/frame capacities and GC check interval from spec.md §5/§4.3. It
// interns "init" once up front since both method-initializer dispatch and
// the GC root set need its stable hash (spec.md §4.2/§4.3).
func New(h *heap.Heap) *VM {
	return NewWithCapacity(h, StackMax, FramesMax, gcCheckInterval)
}

// NewWithCapacity creates a VM with caller-supplied stack/frame capacities
// and GC safe-point interval, used by internal/config to make them tunable
// via EMBER_VALUE_STACK_CAPACITY, EMBER_CALL_FRAME_CAPACITY, and
// EMBER_GC_CHECK_INTERVAL.
func NewWithCapacity(h *heap.Heap, stackCap, framesCap int, gcInterval uint64) *VM {
	vm := &VM{
		heap:            h,
		globals:         swiss.NewMap[uint32, value.Value](16),
		stack:           make([]value.Value, stackCap),
		frames:          make([]CallFrame, framesCap),
		gcCheckInterval: gcInterval,
	}
	vm.initHash = h.InternString("init").Handle
	return vm
}

func (vm *VM) init() {
	if vm.Stdout != nil {
		vm.stdout = vm.Stdout
	} else {
		vm.stdout = os.Stdout
	}
	if vm.Stderr != nil {
		vm.stderr = vm.Stderr
	} else {
		vm.stderr = os.Stderr
	}
}

// Heap returns the VM's backing heap, so natives and the CLI driver can
// allocate and inspect values without the VM mediating every call.
func (vm *VM) Heap() *heap.Heap { return vm.heap }

// DefineGlobal binds name to v directly, bypassing DefineGlobal bytecode.
// Used once at startup to inject native functions (spec.md §6).
func (vm *VM) DefineGlobal(name string, v value.Value) {
	ref := vm.heap.InternString(name)
	vm.globals.Put(ref.Handle, v)
}

// Global looks up a global by name, for the disassembler/REPL/tests.
func (vm *VM) Global(name string) (value.Value, bool) {
	ref := vm.heap.InternString(name)
	return vm.globals.Get(ref.Handle)
}

// Run wraps fnRef — a bare, compile-time Function handle — in a zero-
// upvalue Closure and executes it to completion (spec.md §3: "bare
// Functions are compile-time artifacts wrapped in a Closure at first
// use"). On error, Run itself resets the VM's transient state (value
// stack, frames, open upvalues) per spec.md §7, leaving globals and
// classes intact, so the caller can run again without resetting anything.
// The MaxSteps budget counts from zero on every call.
func (vm *VM) Run(fnRef value.ObjectRef) (value.Value, error) {
	vm.init()
	vm.steps = 0

	closureRef := vm.heap.NewClosure(fnRef, 0)
	if err := vm.push(value.Obj(closureRef)); err != nil {
		vm.resetStacks()
		return value.Nil, err
	}
	if err := vm.callValue(value.Obj(closureRef), 0); err != nil {
		vm.resetStacks()
		return value.Nil, err
	}

	result, err := vm.run()
	if err != nil {
		vm.resetStacks()
		return value.Nil, err
	}
	return result, nil
}

func (vm *VM) resetStacks() {
	vm.sp = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

// --- value stack ---

// push appends v to the value stack, returning an error instead of growing
// or indexing out of bounds if the stack is already full (spec.md §7: stack
// overflow is a runtime error, not a panic).
func (vm *VM) push(v value.Value) error {
	if vm.sp >= len(vm.stack) {
		return vm.runtimeError("Stack overflow.")
	}
	vm.stack[vm.sp] = v
	vm.sp++
	return nil
}

func (vm *VM) pop() value.Value {
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.sp-1-distance]
}

// --- GC roots ---

// GCRoots implements heap.RootProvider: every live value-stack entry, every
// active call frame's closure, and every global binding's value (spec.md
// §4.3).
func (vm *VM) GCRoots() []value.Value {
	roots := make([]value.Value, 0, vm.sp+vm.frameCount)
	for i := 0; i < vm.sp; i++ {
		roots = append(roots, vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		roots = append(roots, value.Obj(vm.frames[i].closure))
	}
	vm.globals.Iter(func(_ uint32, v value.Value) bool {
		roots = append(roots, v)
		return false
	})
	return roots
}

// GCRootHashes implements heap.RootProvider: every global's name hash (so a
// global bound to, say, a number doesn't leak its own name string) plus the
// "init" hash the VM caches regardless of whether any class defines an
// initializer yet (spec.md §4.3).
func (vm *VM) GCRootHashes() []uint32 {
	hashes := make([]uint32, 0, 1)
	hashes = append(hashes, vm.initHash)
	vm.globals.Iter(func(k uint32, _ value.Value) bool {
		hashes = append(hashes, k)
		return false
	})
	return hashes
}

// collectSafepoint is called at every GC safe point (spec.md §5): a
// periodic instruction-count check, plus immediately after any allocation
// that must not be swept before it is pushed (string concatenation).
func (vm *VM) collectSafepoint() {
	if vm.heap.NeedsCollection() {
		vm.heap.Collect(vm)
	}
}
