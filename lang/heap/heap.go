// Package heap implements the managed heap and garbage collector described
// in spec.md §4.3: it owns every long-lived runtime object (strings,
// functions, closures, classes, instances, bound methods, natives), hands
// out stable handles via value.ObjectRef, tracks allocation pressure, and
// reclaims unreachable objects with a precise mark-and-sweep collector.
package heap

import (
	"hash/fnv"

	"github.com/dolthub/swiss"

	"github.com/mna/ember/lang/chunk"
	"github.com/mna/ember/lang/value"
)

// initialNextGC is the starting collection threshold, in estimated bytes
// allocated (1 MiB, per spec.md §4.3).
const initialNextGC = 1 << 20

// defaultGrowthFactor is the multiplier applied to bytesAllocated to compute
// the next collection threshold after a sweep, matching spec.md §4.3's
// "double the live-byte count" default. Tunable via EMBER_GC_GROWTH_FACTOR.
const defaultGrowthFactor = 2.0

// Heap owns every heap-resident object kind. Handles into its positional
// containers (functions, natives, closures, classes, instances, bound
// methods) stay stable across collection: freed slots are tombstoned and
// reused rather than the container being compacted, per the "preferred"
// strategy in spec.md §4.3.
type Heap struct {
	strings *swiss.Map[uint32, *StringObj]

	functions     []*FunctionObj
	freeFunctions []uint32

	natives     []*NativeFn
	freeNatives []uint32

	closures     []*ClosureObj
	freeClosures []uint32

	classes     []*ClassObj
	freeClasses []uint32

	instances     []*InstanceObj
	freeInstances []uint32

	boundMethods     []*BoundMethodObj
	freeBoundMethods []uint32

	bytesAllocated uint64
	nextGC         uint64
	growthFactor   float64
}

// New creates an empty Heap with the default 1 MiB initial GC threshold and
// growth factor of 2.
func New() *Heap {
	return NewWithThreshold(initialNextGC)
}

// NewWithThreshold creates an empty Heap with a caller-supplied initial GC
// threshold, used by internal/config to make the threshold tunable via
// EMBER_GC_INITIAL_THRESHOLD.
func NewWithThreshold(threshold uint64) *Heap {
	return &Heap{
		strings:      swiss.NewMap[uint32, *StringObj](64),
		nextGC:       threshold,
		growthFactor: defaultGrowthFactor,
	}
}

// SetGrowthFactor overrides the multiplier applied to live bytes to compute
// the next GC threshold, used by internal/config to make it tunable via
// EMBER_GC_GROWTH_FACTOR.
func (h *Heap) SetGrowthFactor(factor float64) {
	h.growthFactor = factor
}

// Stats summarizes the heap's allocation pressure and population, exposed
// to the "gcstats" debug CLI command and to tests.
type Stats struct {
	BytesAllocated  uint64
	NextGC          uint64
	LiveStrings     int
	LiveFunctions   int
	LiveClosures    int
	LiveClasses     int
	LiveInstances   int
	LiveBoundMethods int
	LiveNatives     int
}

func (h *Heap) Stats() Stats {
	return Stats{
		BytesAllocated:   h.bytesAllocated,
		NextGC:           h.nextGC,
		LiveStrings:      h.strings.Count(),
		LiveFunctions:    countLive(h.functions, func(f *FunctionObj) bool { return f.live }),
		LiveClosures:     countLive(h.closures, func(c *ClosureObj) bool { return c.live }),
		LiveClasses:      countLive(h.classes, func(c *ClassObj) bool { return c.live }),
		LiveInstances:    countLive(h.instances, func(i *InstanceObj) bool { return i.live }),
		LiveBoundMethods: countLive(h.boundMethods, func(b *BoundMethodObj) bool { return b.live }),
		LiveNatives:      countLive(h.natives, func(n *NativeFn) bool { return n.live }),
	}
}

func countLive[T any](s []T, isLive func(T) bool) int {
	n := 0
	for _, v := range s {
		if isLive(v) {
			n++
		}
	}
	return n
}

// BytesAllocated returns the running allocation counter.
func (h *Heap) BytesAllocated() uint64 { return h.bytesAllocated }

// NextGC returns the current collection threshold.
func (h *Heap) NextGC() uint64 { return h.nextGC }

// NeedsCollection reports whether bytesAllocated has crossed nextGC; the VM
// calls this at safe points (spec.md §4.3/§5).
func (h *Heap) NeedsCollection() bool { return h.bytesAllocated > h.nextGC }

func hashString(s string) uint32 {
	f := fnv.New32a()
	_, _ = f.Write([]byte(s))
	return f.Sum32()
}

// InternString returns the handle for s, allocating and interning a new
// StringObj only if no string with this content hash exists yet.
func (h *Heap) InternString(s string) value.ObjectRef {
	hash := hashString(s)
	if _, ok := h.strings.Get(hash); ok {
		return value.ObjectRef{Kind: value.ObjString, Handle: hash}
	}
	h.strings.Put(hash, &StringObj{Chars: s, Hash: hash})
	h.bytesAllocated += uint64(len(s)) + 24
	return value.ObjectRef{Kind: value.ObjString, Handle: hash}
}

// String resolves a string handle to its backing StringObj. It panics if
// ref does not reference a live string, which indicates a VM or GC
// correctness bug, never a user-reachable condition.
func (h *Heap) String(ref value.ObjectRef) *StringObj {
	s, ok := h.strings.Get(ref.Handle)
	if !ok {
		panic("heap: dangling string handle")
	}
	return s
}

// NewFunction allocates a FunctionObj and returns its handle.
func (h *Heap) NewFunction(name string, arity, upvalueCount int, c *chunk.Chunk) value.ObjectRef {
	fn := &FunctionObj{Name: name, Arity: arity, UpvalueCount: upvalueCount, Chunk: c, live: true}
	idx := h.alloc(&h.functions, &h.freeFunctions, fn)
	h.bytesAllocated += 96
	return value.ObjectRef{Kind: value.ObjFunction, Handle: idx}
}

func (h *Heap) Function(ref value.ObjectRef) *FunctionObj {
	return h.functions[ref.Handle]
}

// NewNative allocates a NativeFn and returns its handle.
func (h *Heap) NewNative(name string, arity int, fn func(h *Heap, args []value.Value) (value.Value, error)) value.ObjectRef {
	n := &NativeFn{Name: name, Arity: arity, Fn: fn, live: true}
	idx := h.alloc(&h.natives, &h.freeNatives, n)
	return value.ObjectRef{Kind: value.ObjNative, Handle: idx}
}

func (h *Heap) Native(ref value.ObjectRef) *NativeFn {
	return h.natives[ref.Handle]
}

// NewClosure allocates a ClosureObj wrapping fn with upvalueCount empty
// upvalue cells, and returns its handle.
func (h *Heap) NewClosure(fn value.ObjectRef, upvalueCount int) value.ObjectRef {
	cl := &ClosureObj{Function: fn, Upvalues: make([]*Upvalue, upvalueCount), live: true}
	idx := h.alloc(&h.closures, &h.freeClosures, cl)
	h.bytesAllocated += uint64(40 + upvalueCount*8)
	return value.ObjectRef{Kind: value.ObjClosure, Handle: idx}
}

func (h *Heap) Closure(ref value.ObjectRef) *ClosureObj {
	return h.closures[ref.Handle]
}

// NewClass allocates a ClassObj and returns its handle.
func (h *Heap) NewClass(name string) value.ObjectRef {
	cl := &ClassObj{Name: name, Methods: swiss.NewMap[uint32, value.ObjectRef](4), live: true}
	idx := h.alloc(&h.classes, &h.freeClasses, cl)
	h.bytesAllocated += 64
	return value.ObjectRef{Kind: value.ObjClass, Handle: idx}
}

func (h *Heap) Class(ref value.ObjectRef) *ClassObj {
	return h.classes[ref.Handle]
}

// NewInstance allocates an InstanceObj of the given class and returns its
// handle. Fields are created lazily on first assignment.
func (h *Heap) NewInstance(class value.ObjectRef) value.ObjectRef {
	in := &InstanceObj{Class: class, Fields: swiss.NewMap[uint32, value.Value](4), live: true}
	idx := h.alloc(&h.instances, &h.freeInstances, in)
	h.bytesAllocated += 64
	return value.ObjectRef{Kind: value.ObjInstance, Handle: idx}
}

func (h *Heap) Instance(ref value.ObjectRef) *InstanceObj {
	return h.instances[ref.Handle]
}

// NewBoundMethod allocates a BoundMethodObj and returns its handle.
func (h *Heap) NewBoundMethod(receiver value.Value, method value.ObjectRef) value.ObjectRef {
	bm := &BoundMethodObj{Receiver: receiver, Method: method, live: true}
	idx := h.alloc(&h.boundMethods, &h.freeBoundMethods, bm)
	h.bytesAllocated += 32
	return value.ObjectRef{Kind: value.ObjBoundMethod, Handle: idx}
}

func (h *Heap) BoundMethod(ref value.ObjectRef) *BoundMethodObj {
	return h.boundMethods[ref.Handle]
}

// alloc places v in the first free slot of *slice (per *free, if any),
// otherwise appends, and returns the resulting handle index. This keeps
// handles stable across collection: a slot vacated by sweep is reused, it
// is never renumbered.
func alloc[T any](slice *[]T, free *[]uint32, v T) uint32 {
	if n := len(*free); n > 0 {
		idx := (*free)[n-1]
		*free = (*free)[:n-1]
		(*slice)[idx] = v
		return idx
	}
	*slice = append(*slice, v)
	return uint32(len(*slice) - 1)
}
