package compiler

import (
	"fmt"
	"strings"

	"github.com/mna/ember/lang/chunk"
	"github.com/mna/ember/lang/heap"
	"github.com/mna/ember/lang/value"
)

// Disassemble renders every instruction in c as human-readable text, one
// line per instruction, prefixed by a "== name ==" header. It is a debug
// aid only (spec.md §6 lists the disassembler among the thin external
// collaborators) and has no effect on compilation or execution. h resolves
// Function constants so OpClosure's variable-length upvalue operand can be
// skipped correctly.
func Disassemble(h *heap.Heap, c *chunk.Chunk, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		offset = disassembleInstruction(&b, h, c, offset)
	}
	return b.String()
}

func disassembleInstruction(b *strings.Builder, h *heap.Heap, c *chunk.Chunk, offset int) int {
	fmt.Fprintf(b, "%04d ", offset)
	if offset > 0 && c.Lines[offset] == c.Lines[offset-1] {
		fmt.Fprint(b, "   | ")
	} else {
		fmt.Fprintf(b, "%4d ", c.Lines[offset])
	}

	op := chunk.OpCode(c.Code[offset])
	switch op {
	case chunk.OpConstant:
		return constantInstruction(b, h, c, op, offset)
	case chunk.OpGetLocal, chunk.OpSetLocal, chunk.OpGetUpvalue, chunk.OpSetUpvalue, chunk.OpCall:
		return byteInstruction(b, op, c, offset)
	case chunk.OpGetGlobal, chunk.OpSetGlobal, chunk.OpDefineGlobal,
		chunk.OpGetProperty, chunk.OpSetProperty, chunk.OpClass, chunk.OpMethod:
		return constantInstruction(b, h, c, op, offset)
	case chunk.OpJump, chunk.OpJumpIfFalse:
		return jumpInstruction(b, op, 1, c, offset)
	case chunk.OpLoop:
		return jumpInstruction(b, op, -1, c, offset)
	case chunk.OpInvoke:
		return invokeInstruction(b, h, c, offset)
	case chunk.OpClosure:
		return closureInstruction(b, h, c, offset)
	default:
		fmt.Fprintf(b, "%s\n", op)
		return offset + 1
	}
}

func simpleOperand(h *heap.Heap, c *chunk.Chunk, constIdx byte) string {
	if int(constIdx) >= len(c.Constants) {
		return "<bad const>"
	}
	v := c.Constants[constIdx]
	switch {
	case v.IsNumber():
		return value.FormatNumber(v.AsNumber())
	case v.IsObjKind(value.ObjString):
		return h.String(v.AsObj()).Chars
	case v.IsObjKind(value.ObjFunction):
		return "<fn " + h.Function(v.AsObj()).Name + ">"
	default:
		return "<const>"
	}
}

func constantInstruction(b *strings.Builder, h *heap.Heap, c *chunk.Chunk, op chunk.OpCode, offset int) int {
	constIdx := c.Code[offset+1]
	fmt.Fprintf(b, "%-16s %4d '%s'\n", op, constIdx, simpleOperand(h, c, constIdx))
	return offset + 2
}

func byteInstruction(b *strings.Builder, op chunk.OpCode, c *chunk.Chunk, offset int) int {
	slot := c.Code[offset+1]
	fmt.Fprintf(b, "%-16s %4d\n", op, slot)
	return offset + 2
}

func jumpInstruction(b *strings.Builder, op chunk.OpCode, sign int, c *chunk.Chunk, offset int) int {
	jump := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
	target := offset + 3 + sign*jump
	fmt.Fprintf(b, "%-16s %4d -> %d\n", op, offset, target)
	return offset + 3
}

func invokeInstruction(b *strings.Builder, h *heap.Heap, c *chunk.Chunk, offset int) int {
	constIdx := c.Code[offset+1]
	argCount := c.Code[offset+2]
	fmt.Fprintf(b, "%-16s (%d args) %4d '%s'\n", chunk.OpInvoke, argCount, constIdx, simpleOperand(h, c, constIdx))
	return offset + 3
}

func closureInstruction(b *strings.Builder, h *heap.Heap, c *chunk.Chunk, offset int) int {
	offset++
	constIdx := c.Code[offset]
	offset++
	fmt.Fprintf(b, "%-16s %4d '%s'\n", chunk.OpClosure, constIdx, simpleOperand(h, c, constIdx))

	if int(constIdx) < len(c.Constants) && c.Constants[constIdx].IsObjKind(value.ObjFunction) {
		fn := h.Function(c.Constants[constIdx].AsObj())
		for i := 0; i < fn.UpvalueCount; i++ {
			isLocal := c.Code[offset]
			index := c.Code[offset+1]
			kind := "upvalue"
			if isLocal == 1 {
				kind = "local"
			}
			fmt.Fprintf(b, "%04d      |                     %s %d\n", offset, kind, index)
			offset += 2
		}
	}
	return offset
}
