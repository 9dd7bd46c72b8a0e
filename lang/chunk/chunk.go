// Package chunk defines the compiled bytecode container shared by the
// compiler (which writes it) and the machine and disassembler (which read
// it). It has no dependency on either, which is what lets the compiler
// intern constants through the heap without an import cycle: Chunk depends
// only on lang/value, just above it in the dependency order of spec.md §2
// ("Value/Object → Chunk → Heap → ... → Compiler → VM").
package chunk

import (
	"golang.org/x/exp/slices"

	"github.com/mna/ember/lang/value"
)

// MaxConstants is the largest number of distinct constants a single Chunk
// may hold: indices are encoded in one byte (spec.md §3 invariant).
const MaxConstants = 256

// Chunk is a compiled unit: an ordered byte stream of opcodes and operands,
// a deduplicated constant pool, and a parallel line-number table (one entry
// per emitted byte) for diagnostics. A Chunk is mutable while its owning
// Function is being compiled and immutable afterwards.
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []value.Value
}

// Write appends a single opcode or raw operand byte, recording line for
// diagnostics.
func (c *Chunk) Write(b byte, line int) int {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
	return len(c.Code) - 1
}

// AddConstant interns v into the constant pool, returning its index.
// Identical values (by value.Equal) are deduplicated so that, e.g., the same
// string literal appearing twice in a function compiles to one constant
// pool entry. It panics if the pool would exceed MaxConstants; callers must
// check Len() against MaxConstants first to turn this into a proper compile
// error instead.
func (c *Chunk) AddConstant(v value.Value) int {
	if i := slices.IndexFunc(c.Constants, func(existing value.Value) bool {
		return value.Equal(existing, v)
	}); i >= 0 {
		return i
	}
	if len(c.Constants) >= MaxConstants {
		panic("chunk: constant pool exceeded 256 entries")
	}
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// Len returns the number of distinct constants currently in the pool.
func (c *Chunk) Len() int { return len(c.Constants) }
