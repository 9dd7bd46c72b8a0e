package machine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/ember/lang/heap"
	"github.com/mna/ember/lang/value"
)

// requireDescending asserts the open-upvalue list is sorted strictly by
// descending Slot, with no duplicate Slot values, directly checking the
// invariant captureUpvalue's insertion logic is supposed to maintain.
func requireDescending(t *testing.T, vm *VM) {
	t.Helper()
	prev := -1
	for cur := vm.openUpvalues; cur != nil; cur = cur.Next {
		if prev != -1 {
			require.Less(t, cur.Slot, prev, "open-upvalue list must be strictly descending by Slot")
		}
		prev = cur.Slot
	}
}

// TestCaptureUpvalueMaintainsDescendingOrder captures the same set of slots
// in several different insertion orders and checks that, regardless of
// order, the resulting open list always ends up sorted descending by Slot
// and contains exactly one cell per distinct slot.
func TestCaptureUpvalueMaintainsDescendingOrder(t *testing.T) {
	orders := [][]int{
		{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
		{9, 8, 7, 6, 5, 4, 3, 2, 1, 0},
		{5, 1, 3, 9, 0, 7, 2, 8, 4, 6},
		{3, 3, 3, 1, 1, 5, 5, 5, 0},
	}

	for _, order := range orders {
		vm := NewWithCapacity(heap.New(), 16, 4, 5000)

		seen := make(map[int]*heap.Upvalue)
		for _, slot := range order {
			uv := vm.captureUpvalue(slot)
			if existing, ok := seen[slot]; ok {
				require.Same(t, existing, uv, "recapturing slot %d must reuse the existing cell", slot)
			}
			seen[slot] = uv
			requireDescending(t, vm)
		}

		count := 0
		for cur := vm.openUpvalues; cur != nil; cur = cur.Next {
			count++
		}
		require.Equal(t, len(seen), count, "one open cell per distinct captured slot")
	}
}

// TestCloseUpvaluesClearsEverythingAtOrAboveBoundary captures a spread of
// slots, closes at a boundary, and checks that every cell whose Slot was >=
// boundary is now Closed and unlinked from the open list, while every cell
// below boundary is untouched.
func TestCloseUpvaluesClearsEverythingAtOrAboveBoundary(t *testing.T) {
	vm := NewWithCapacity(heap.New(), 16, 4, 5000)
	for i := range vm.stack {
		vm.stack[i] = value.Number(float64(i))
	}

	var cells []*heap.Upvalue
	for _, slot := range []int{0, 2, 4, 6, 8, 10} {
		cells = append(cells, vm.captureUpvalue(slot))
	}

	const boundary = 5
	vm.closeUpvalues(boundary)

	requireDescending(t, vm)
	for cur := vm.openUpvalues; cur != nil; cur = cur.Next {
		require.Less(t, cur.Slot, boundary, "no open upvalue may remain at or above the close boundary")
	}

	for _, uv := range cells {
		if uv.Slot >= boundary {
			require.False(t, uv.IsOpen(), "slot %d must be closed", uv.Slot)
			require.Equal(t, value.Number(float64(uv.Slot)), uv.Get(), "closed cell must retain its last live value")
		} else {
			require.True(t, uv.IsOpen(), "slot %d below the boundary must remain open", uv.Slot)
		}
	}
}
