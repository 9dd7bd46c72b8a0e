package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/ember/lang/chunk"
	"github.com/mna/ember/lang/compiler"
	"github.com/mna/ember/lang/heap"
	"github.com/mna/ember/lang/value"
)

func compile(t *testing.T, src string) (*heap.Heap, *chunk.Chunk) {
	t.Helper()
	h := heap.New()
	fnRef, err := compiler.Compile(h, "<test>", []byte(src))
	require.NoError(t, err)
	return h, h.Function(fnRef).Chunk
}

// TestJumpsStayInRange checks invariant 1 from spec.md §8: every Jump,
// JumpIfFalse, and Loop resolves to an in-range offset within its own
// chunk.
func TestJumpsStayInRange(t *testing.T) {
	_, c := compile(t, `
		var sum = 0;
		for (var i = 0; i < 100; i = i + 1) {
			if (i < 50) { sum = sum + 1; } else { sum = sum - 1; }
		}
	`)

	for offset := 0; offset < len(c.Code); {
		op := chunk.OpCode(c.Code[offset])
		switch op {
		case chunk.OpJump, chunk.OpJumpIfFalse:
			jump := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
			target := offset + 3 + jump
			require.GreaterOrEqual(t, target, 0)
			require.LessOrEqual(t, target, len(c.Code))
			offset += 3
		case chunk.OpLoop:
			jump := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
			target := offset + 3 - jump
			require.GreaterOrEqual(t, target, 0)
			require.LessOrEqual(t, target, len(c.Code))
			offset += 3
		case chunk.OpConstant, chunk.OpGetLocal, chunk.OpSetLocal, chunk.OpGetGlobal,
			chunk.OpSetGlobal, chunk.OpDefineGlobal, chunk.OpGetUpvalue, chunk.OpSetUpvalue,
			chunk.OpGetProperty, chunk.OpSetProperty, chunk.OpCall, chunk.OpClass, chunk.OpMethod:
			offset += 2
		case chunk.OpInvoke:
			offset += 3
		case chunk.OpClosure:
			offset += 2 // constant pool index; no upvalue pairs to skip (see below)
			if int(c.Code[offset-1]) < len(c.Constants) {
				v := c.Constants[c.Code[offset-1]]
				if v.IsObjKind(value.ObjFunction) {
					// this test does not keep the heap, and its program
					// compiles no closures with upvalues, so no pairs
					// follow.
				}
			}
		default:
			offset++
		}
	}
}

// TestClosureUpvalueCountMatchesFunction checks invariant 2: the number of
// (is_local, index) pairs following Closure equals the Function's declared
// upvalue_count.
func TestClosureUpvalueCountMatchesFunction(t *testing.T) {
	h, c := compile(t, `
		fun outer() {
			var x = "outside";
			var y = "also";
			fun inner() { return x + y; }
			return inner;
		}
	`)

	// inner's Closure instruction is emitted into outer's chunk, not the
	// top-level one, so walk outer's chunk.
	for _, k := range c.Constants {
		if k.IsObjKind(value.ObjFunction) && h.Function(k.AsObj()).Name == "outer" {
			c = h.Function(k.AsObj()).Chunk
		}
	}

	found := false
	for offset := 0; offset < len(c.Code); {
		op := chunk.OpCode(c.Code[offset])
		if op == chunk.OpClosure {
			constIdx := c.Code[offset+1]
			fnVal := c.Constants[constIdx]
			if fnVal.IsObjKind(value.ObjFunction) {
				fn := h.Function(fnVal.AsObj())
				if fn.Name == "inner" {
					found = true
					require.Equal(t, 2, fn.UpvalueCount)
				}
				offset += 2 + 2*fn.UpvalueCount
				continue
			}
		}
		offset++
	}
	require.True(t, found, "expected to find the compiled 'inner' closure")
}

// TestConstantPoolDedup checks invariant 7: adding the same Value twice
// yields the same constant-pool index.
func TestConstantPoolDedup(t *testing.T) {
	_, c := compile(t, `print "same" + "same"; var x = "same";`)

	var idx byte
	seen := false
	for offset := 0; offset < len(c.Code); {
		op := chunk.OpCode(c.Code[offset])
		if op == chunk.OpConstant {
			constIdx := c.Code[offset+1]
			v := c.Constants[constIdx]
			if v.IsObjKind(value.ObjString) {
				if !seen {
					idx = constIdx
					seen = true
				} else {
					require.Equal(t, idx, constIdx, "repeated string literal must dedup to the same constant index")
				}
			}
			offset += 2
			continue
		}
		offset++
	}
	require.True(t, seen)
}

func TestThisOutsideClassIsCompileError(t *testing.T) {
	h := heap.New()
	_, err := compiler.Compile(h, "<test>", []byte(`print this;`))
	require.Error(t, err)
}

func TestReturnFromTopLevelIsCompileError(t *testing.T) {
	h := heap.New()
	_, err := compiler.Compile(h, "<test>", []byte(`return 1;`))
	require.Error(t, err)
}

func TestReturnValueFromInitializerIsCompileError(t *testing.T) {
	h := heap.New()
	_, err := compiler.Compile(h, "<test>", []byte(`
		class Foo { init() { return 1; } }
	`))
	require.Error(t, err)
}

func TestInvalidAssignmentTargetIsCompileError(t *testing.T) {
	h := heap.New()
	_, err := compiler.Compile(h, "<test>", []byte(`1 + 2 = 3;`))
	require.Error(t, err)
}

func TestMethodCallCompilesToInvoke(t *testing.T) {
	_, c := compile(t, `
		class Foo { hi(p) { return "Hi " + p; } }
		var f = Foo();
		var result = f.hi("Wayne");
	`)

	var sawInvoke bool
	for _, b := range c.Code {
		if chunk.OpCode(b) == chunk.OpInvoke {
			sawInvoke = true
		}
	}
	require.True(t, sawInvoke, "a.b(...) call syntax must compile to OpInvoke")
}
