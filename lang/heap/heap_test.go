package heap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/ember/lang/chunk"
	"github.com/mna/ember/lang/heap"
	"github.com/mna/ember/lang/value"
)

type fakeRoots struct {
	roots  []value.Value
	hashes []uint32
}

func (f fakeRoots) GCRoots() []value.Value { return f.roots }
func (f fakeRoots) GCRootHashes() []uint32 { return f.hashes }

func TestInternStringDedup(t *testing.T) {
	h := heap.New()
	a := h.InternString("hello")
	b := h.InternString("hello")
	require.Equal(t, a, b)
	c := h.InternString("world")
	require.NotEqual(t, a, c)
}

func TestCollectSweepsUnreachable(t *testing.T) {
	h := heap.New()
	kept := h.NewClass("Kept")
	h.Collect(fakeRoots{roots: []value.Value{value.Obj(kept)}})
	require.Equal(t, 1, h.Stats().LiveClasses)

	h.NewClass("Garbage")
	require.Equal(t, 2, h.Stats().LiveClasses)

	h.Collect(fakeRoots{roots: []value.Value{value.Obj(kept)}})
	require.Equal(t, 1, h.Stats().LiveClasses, "unreachable class must be swept")
}

func TestCollectRetainsTransitiveClosure(t *testing.T) {
	h := heap.New()
	fnRef := h.NewFunction("f", 0, 0, &chunk.Chunk{})
	clRef := h.NewClosure(fnRef, 0)

	h.Collect(fakeRoots{roots: []value.Value{value.Obj(clRef)}})

	require.Equal(t, 1, h.Stats().LiveClosures)
	require.Equal(t, 1, h.Stats().LiveFunctions, "function reachable only via closure must survive")
}

func TestCollectRetainsRootHashes(t *testing.T) {
	h := heap.New()
	ref := h.InternString("init")
	initHash := ref.Handle

	h.Collect(fakeRoots{hashes: []uint32{initHash}})
	require.Equal(t, 1, h.Stats().LiveStrings)
}

func TestCollectHandlesStableAfterSweep(t *testing.T) {
	h := heap.New()
	a := h.NewClass("A")
	h.NewClass("B") // garbage, collected below
	h.Collect(fakeRoots{roots: []value.Value{value.Obj(a)}})

	c := h.NewClass("C")
	require.Equal(t, "C", h.Class(c).Name)
	require.Equal(t, "A", h.Class(a).Name, "surviving handle must still resolve correctly")
}

func TestInstanceFieldsTracedByGC(t *testing.T) {
	h := heap.New()
	cls := h.NewClass("Point")
	inst := h.NewInstance(cls)
	strRef := h.InternString("hello")
	nameRef := h.InternString("label")
	h.Instance(inst).Fields.Put(nameRef.Handle, value.Obj(strRef))

	h.Collect(fakeRoots{roots: []value.Value{value.Obj(inst)}})

	require.Equal(t, 1, h.Stats().LiveInstances)
	require.Equal(t, 1, h.Stats().LiveClasses, "instance's class must be retained transitively")
	require.Equal(t, 2, h.Stats().LiveStrings, "field name hash and field value string must both be retained transitively")
}
