package heap

import "github.com/mna/ember/lang/value"

// RootProvider is implemented by the VM to supply the GC's root set: every
// Value directly reachable without going through the heap itself (live
// value-stack entries, call-frame closures, global bindings) plus any
// string hashes that must stay interned even though they are not
// referenced by a Value (spec.md §4.3 names the interned "init" hash
// explicitly).
type RootProvider interface {
	GCRoots() []value.Value
	GCRootHashes() []uint32
}

type objKey struct {
	kind value.ObjKind
	idx  uint32
}

// Collect runs one precise mark-and-sweep cycle, per spec.md §4.3: mark
// roots, trace their transitive closure, then delete every heap-resident
// object not in the marked set. It always runs when called; callers should
// gate on NeedsCollection() themselves (the VM does so at safe points).
func (h *Heap) Collect(rp RootProvider) {
	marked := make(map[objKey]bool)
	var worklist []value.ObjectRef

	enqueueValue := func(v value.Value) {
		if v.IsObj() {
			worklist = append(worklist, v.AsObj())
		}
	}

	for _, v := range rp.GCRoots() {
		enqueueValue(v)
	}
	for _, hash := range rp.GCRootHashes() {
		worklist = append(worklist, value.ObjectRef{Kind: value.ObjString, Handle: hash})
	}

	for len(worklist) > 0 {
		ref := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		key := objKey{ref.Kind, ref.Handle}
		if marked[key] {
			continue
		}
		marked[key] = true

		switch ref.Kind {
		case value.ObjString:
			// no children

		case value.ObjFunction:
			fn := h.functions[ref.Handle]
			for _, c := range fn.Chunk.Constants {
				enqueueValue(c)
			}

		case value.ObjNative:
			// no heap children

		case value.ObjClosure:
			cl := h.closures[ref.Handle]
			worklist = append(worklist, cl.Function)
			for _, uv := range cl.Upvalues {
				if uv != nil && !uv.IsOpen() {
					enqueueValue(uv.Closed)
				}
			}

		case value.ObjClass:
			cls := h.classes[ref.Handle]
			cls.Methods.Iter(func(nameHash uint32, method value.ObjectRef) (stop bool) {
				worklist = append(worklist, value.ObjectRef{Kind: value.ObjString, Handle: nameHash})
				worklist = append(worklist, method)
				return false
			})

		case value.ObjInstance:
			inst := h.instances[ref.Handle]
			worklist = append(worklist, inst.Class)
			inst.Fields.Iter(func(nameHash uint32, v value.Value) (stop bool) {
				worklist = append(worklist, value.ObjectRef{Kind: value.ObjString, Handle: nameHash})
				enqueueValue(v)
				return false
			})

		case value.ObjBoundMethod:
			bm := h.boundMethods[ref.Handle]
			worklist = append(worklist, bm.Method)
			enqueueValue(bm.Receiver)
		}
	}

	h.sweep(marked)

	if next := uint64(float64(h.bytesAllocated) * h.growthFactor); next > initialNextGC {
		h.nextGC = next
	} else {
		h.nextGC = initialNextGC
	}
}

func (h *Heap) sweep(marked map[objKey]bool) {
	var deadHashes []uint32
	h.strings.Iter(func(hash uint32, s *StringObj) (stop bool) {
		if !marked[objKey{value.ObjString, hash}] {
			deadHashes = append(deadHashes, hash)
		}
		return false
	})
	for _, hash := range deadHashes {
		if s, ok := h.strings.Get(hash); ok {
			h.bytesAllocated -= uint64(len(s.Chars)) + 24
		}
		h.strings.Delete(hash)
	}

	sweepSlice(h.functions, &h.freeFunctions, marked, value.ObjFunction,
		func(f *FunctionObj) bool { return f.live },
		func(f *FunctionObj) { f.live = false },
		func(*FunctionObj) uint64 { return 96 },
		&h.bytesAllocated)

	sweepSlice(h.natives, &h.freeNatives, marked, value.ObjNative,
		func(n *NativeFn) bool { return n.live },
		func(n *NativeFn) { n.live = false },
		func(*NativeFn) uint64 { return 0 },
		&h.bytesAllocated)

	sweepSlice(h.closures, &h.freeClosures, marked, value.ObjClosure,
		func(c *ClosureObj) bool { return c.live },
		func(c *ClosureObj) { c.live = false },
		func(c *ClosureObj) uint64 { return uint64(40 + len(c.Upvalues)*8) },
		&h.bytesAllocated)

	sweepSlice(h.classes, &h.freeClasses, marked, value.ObjClass,
		func(c *ClassObj) bool { return c.live },
		func(c *ClassObj) { c.live = false },
		func(*ClassObj) uint64 { return 64 },
		&h.bytesAllocated)

	sweepSlice(h.instances, &h.freeInstances, marked, value.ObjInstance,
		func(i *InstanceObj) bool { return i.live },
		func(i *InstanceObj) { i.live = false },
		func(*InstanceObj) uint64 { return 64 },
		&h.bytesAllocated)

	sweepSlice(h.boundMethods, &h.freeBoundMethods, marked, value.ObjBoundMethod,
		func(b *BoundMethodObj) bool { return b.live },
		func(b *BoundMethodObj) { b.live = false },
		func(*BoundMethodObj) uint64 { return 32 },
		&h.bytesAllocated)
}

// sweepSlice deletes every still-live entry of slice not present in marked,
// tombstoning it (via markDead) and pushing its index onto free for reuse,
// per the handle-stability strategy in spec.md §4.3.
func sweepSlice[T any](slice []T, free *[]uint32, marked map[objKey]bool, kind value.ObjKind,
	isLive func(T) bool, markDead func(T), size func(T) uint64, bytesAllocated *uint64) {
	for i, v := range slice {
		if !isLive(v) {
			continue
		}
		if marked[objKey{kind, uint32(i)}] {
			continue
		}
		*bytesAllocated -= size(v)
		markDead(v)
		*free = append(*free, uint32(i))
	}
}
