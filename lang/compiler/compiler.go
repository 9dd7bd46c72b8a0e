// Package compiler implements the single-pass Pratt compiler described in
// spec.md §4.1: it consumes a token stream from lang/scanner and emits
// bytecode directly into lang/chunk.Chunk values owned by lang/heap
// Function objects, with no intervening AST. Variable resolution, upvalue
// capture, and class/method compilation state are tracked by a stack of
// Compiler records threaded through a single parser.
package compiler

import (
	"fmt"
	"go/token"

	"golang.org/x/exp/slices"

	"github.com/mna/ember/lang/chunk"
	"github.com/mna/ember/lang/heap"
	"github.com/mna/ember/lang/scanner"
	langtoken "github.com/mna/ember/lang/token"
	"github.com/mna/ember/lang/value"
)

// FunctionType distinguishes the four kinds of code a Compiler record can be
// compiling, per spec.md §4.1. It governs the implicit return emitted by
// endCompiler, the reserved slot-0 local, and whether "this"/"return value"
// are legal.
type FunctionType int

const (
	TypeMain FunctionType = iota
	TypeFunction
	TypeMethod
	TypeInitializer
)

// maxLocals bounds the number of locals (and thus the byte-sized slot
// operand of GetLocal/SetLocal) a single function body may declare.
const maxLocals = 256

// maxUpvalues mirrors maxLocals for the byte-sized upvalue index operand
// (spec.md §4.1: "Cap upvalues at 256 per function").
const maxUpvalues = 256

// local is a single resolvable name in a Compiler's lexical scope. depth -1
// means "declared but not yet initialized", which blocks a variable from
// referring to itself in its own initializer expression.
type local struct {
	name       string
	depth      int
	isCaptured bool
}

// upvalueDesc records how a Compiler's Nth upvalue is sourced: either a
// local slot in the immediately enclosing function, or an upvalue already
// captured by that enclosing function.
type upvalueDesc struct {
	index   uint8
	isLocal bool
}

// Compiler is one stack frame of compile-time state, one per nested
// function/method body currently being compiled. Only the parser's current
// Compiler (cc) is ever written to; enclosing lets name resolution walk
// outward.
type Compiler struct {
	enclosing *Compiler

	fnType FunctionType
	name   string
	arity  int
	chunk  *chunk.Chunk

	locals     []local
	upvalues   []upvalueDesc
	scopeDepth int
}

func newCompiler(enclosing *Compiler, fnType FunctionType, name string) *Compiler {
	c := &Compiler{
		enclosing: enclosing,
		fnType:    fnType,
		name:      name,
		chunk:     &chunk.Chunk{},
	}
	// Slot 0 is reserved: the callee for a plain function frame, the
	// receiver for a method or initializer frame (spec.md §3).
	slotName := ""
	if fnType == TypeMethod || fnType == TypeInitializer {
		slotName = "this"
	}
	c.locals = append(c.locals, local{name: slotName, depth: 0})
	return c
}

// classCompiler tracks nested class-body compilation; it has its own stack
// independent of the function-Compiler stack since a method body pushes a
// Compiler but class bodies can (in principle) nest method compilation
// without nesting class declarations in the source grammar.
type classCompiler struct {
	enclosing *classCompiler
}

// parser drives the single pass: it owns the token cursor and the current
// tip of both the Compiler stack and the classCompiler stack.
type parser struct {
	sc       *scanner.Scanner
	heap     *heap.Heap
	filename string

	previous scanner.Token
	current  scanner.Token

	hadError  bool
	panicMode bool
	errs      scanner.ErrorList

	cc    *Compiler
	class *classCompiler
}

// Compile compiles the entirety of src as the top-level "main" body,
// returning the handle of the resulting Function. The caller hands it to
// machine.VM.Run, which wraps it in a zero-upvalue Closure: bare Functions
// are compile-time artifacts only (spec.md §3).
func Compile(h *heap.Heap, filename string, src []byte) (value.ObjectRef, error) {
	p := &parser{
		sc:       scanner.New(filename, src),
		heap:     h,
		filename: filename,
		cc:       newCompiler(nil, TypeMain, "main"),
	}

	p.advance()
	for !p.match(langtoken.EOF) {
		p.declaration()
	}

	fnRef, _ := p.endCompiler()
	if p.hadError {
		return value.ObjectRef{}, p.errs.Err()
	}
	return fnRef, nil
}

// --- token plumbing ---

func (p *parser) advance() {
	p.previous = p.current
	for {
		p.current = p.sc.Scan()
		if p.current.Kind != langtoken.ILLEGAL {
			break
		}
		p.errorAtCurrent(p.current.Lexeme)
	}
}

func (p *parser) check(k langtoken.Token) bool { return p.current.Kind == k }

func (p *parser) match(k langtoken.Token) bool {
	if !p.check(k) {
		return false
	}
	p.advance()
	return true
}

func (p *parser) consume(k langtoken.Token, msg string) {
	if p.current.Kind == k {
		p.advance()
		return
	}
	p.errorAtCurrent(msg)
}

func (p *parser) errorAtCurrent(msg string) { p.errorAt(p.current, msg) }
func (p *parser) error(msg string)          { p.errorAt(p.previous, msg) }

func (p *parser) errorAt(tok scanner.Token, msg string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.hadError = true
	pos := token.Position{Filename: p.filename, Line: tok.Line, Column: tok.Col}
	where := ""
	switch tok.Kind {
	case langtoken.EOF:
		where = " at end"
	case langtoken.ILLEGAL:
	default:
		where = fmt.Sprintf(" at '%s'", tok.Lexeme)
	}
	p.errs.Add(pos, fmt.Sprintf("Error%s: %s", where, msg))
}

// synchronize discards tokens until it reaches a plausible statement
// boundary, so that one syntax error does not cascade into spurious
// follow-on errors (spec.md §4.1).
func (p *parser) synchronize() {
	p.panicMode = false
	for p.current.Kind != langtoken.EOF {
		if p.previous.Kind == langtoken.SEMI {
			return
		}
		switch p.current.Kind {
		case langtoken.CLASS, langtoken.FUN, langtoken.VAR, langtoken.FOR,
			langtoken.IF, langtoken.WHILE, langtoken.PRINT, langtoken.RETURN:
			return
		}
		p.advance()
	}
}

// --- bytecode emission ---

func (p *parser) currentChunk() *chunk.Chunk { return p.cc.chunk }

func (p *parser) emitByte(b byte) {
	p.currentChunk().Write(b, p.previous.Line)
}

func (p *parser) emitOp(op chunk.OpCode) { p.emitByte(byte(op)) }

func (p *parser) emitBytes(op chunk.OpCode, operand byte) {
	p.emitByte(byte(op))
	p.emitByte(operand)
}

func (p *parser) emitReturn() {
	if p.cc.fnType == TypeInitializer {
		p.emitBytes(chunk.OpGetLocal, 0)
	} else {
		p.emitOp(chunk.OpNil)
	}
	p.emitOp(chunk.OpReturn)
}

// makeConstant interns v in the current chunk's constant pool, emitting a
// compile error instead of the panic Chunk.AddConstant would otherwise
// raise once the 256-entry cap (spec.md §3 invariant) is exceeded by a
// genuinely new value.
func (p *parser) makeConstant(v value.Value) byte {
	if i := slices.IndexFunc(p.currentChunk().Constants, func(existing value.Value) bool {
		return value.Equal(existing, v)
	}); i >= 0 {
		return byte(i)
	}
	if p.currentChunk().Len() >= chunk.MaxConstants {
		p.error("Too many constants in one chunk.")
		return 0
	}
	return byte(p.currentChunk().AddConstant(v))
}

func (p *parser) emitConstant(v value.Value) {
	p.emitBytes(chunk.OpConstant, p.makeConstant(v))
}

func (p *parser) identifierConstant(name string) byte {
	return p.makeConstant(value.Obj(p.heap.InternString(name)))
}

func (p *parser) emitJump(op chunk.OpCode) int {
	p.emitOp(op)
	p.emitByte(0xff)
	p.emitByte(0xff)
	return len(p.currentChunk().Code) - 2
}

func (p *parser) patchJump(offset int) {
	jump := len(p.currentChunk().Code) - offset - 2
	if jump > 0xffff {
		p.error("Too much code to jump over.")
		return
	}
	p.currentChunk().Code[offset] = byte(jump >> 8)
	p.currentChunk().Code[offset+1] = byte(jump & 0xff)
}

func (p *parser) emitLoop(loopStart int) {
	p.emitOp(chunk.OpLoop)
	offset := len(p.currentChunk().Code) - loopStart + 2
	if offset > 0xffff {
		p.error("Loop body too large.")
		return
	}
	p.emitByte(byte(offset >> 8))
	p.emitByte(byte(offset & 0xff))
}

// endCompiler closes out the current Compiler, baking its chunk into a heap
// Function, and restores the enclosing Compiler as current. It returns the
// new Function's handle and the upvalue descriptors the caller must encode
// as Closure operands in the enclosing chunk.
func (p *parser) endCompiler() (value.ObjectRef, []upvalueDesc) {
	p.emitReturn()
	c := p.cc
	fnRef := p.heap.NewFunction(c.name, c.arity, len(c.upvalues), c.chunk)
	p.cc = c.enclosing
	return fnRef, c.upvalues
}

// --- scopes ---

func (p *parser) beginScope() { p.cc.scopeDepth++ }

// endScope pops every local declared in the scope just closed, emitting
// CloseValue for captured locals (so any live Closure keeps a Closed cell)
// and Pop otherwise (spec.md §4.1).
func (p *parser) endScope() {
	p.cc.scopeDepth--
	locs := p.cc.locals
	for len(locs) > 0 && locs[len(locs)-1].depth > p.cc.scopeDepth {
		if locs[len(locs)-1].isCaptured {
			p.emitOp(chunk.OpCloseValue)
		} else {
			p.emitOp(chunk.OpPop)
		}
		locs = locs[:len(locs)-1]
	}
	p.cc.locals = locs
}

// --- variable declaration and resolution ---

func (p *parser) addLocal(name string) {
	if len(p.cc.locals) >= maxLocals {
		p.error("Too many local variables in function.")
		return
	}
	p.cc.locals = append(p.cc.locals, local{name: name, depth: -1})
}

// declareVariable registers the just-consumed identifier as a local in the
// current scope (globals are never "declared" this way; they're resolved
// dynamically by name at runtime). It rejects redeclaring a name already
// bound in the same scope.
func (p *parser) declareVariable(name string) {
	if p.cc.scopeDepth == 0 {
		return
	}
	for i := len(p.cc.locals) - 1; i >= 0; i-- {
		l := p.cc.locals[i]
		if l.depth != -1 && l.depth < p.cc.scopeDepth {
			break
		}
		if l.name == name {
			p.error("Already a variable with this name in this scope.")
		}
	}
	p.addLocal(name)
}

// parseVariable consumes an identifier token, declares it if it is a local,
// and otherwise returns the constant-pool index for its name (used by
// DefineGlobal).
func (p *parser) parseVariable(errMsg string) byte {
	p.consume(langtoken.IDENT, errMsg)
	name := p.previous.Lexeme
	p.declareVariable(name)
	if p.cc.scopeDepth > 0 {
		return 0
	}
	return p.identifierConstant(name)
}

func (p *parser) markInitialized() {
	if p.cc.scopeDepth == 0 {
		return
	}
	p.cc.locals[len(p.cc.locals)-1].depth = p.cc.scopeDepth
}

func (p *parser) defineVariable(global byte) {
	if p.cc.scopeDepth > 0 {
		p.markInitialized()
		return
	}
	p.emitBytes(chunk.OpDefineGlobal, global)
}

func resolveLocal(p *parser, c *Compiler, name string) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			if c.locals[i].depth == -1 {
				p.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

func addUpvalue(p *parser, c *Compiler, index uint8, isLocal bool) int {
	for i, uv := range c.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(c.upvalues) >= maxUpvalues {
		p.error("Too many closure variables in function.")
		return 0
	}
	c.upvalues = append(c.upvalues, upvalueDesc{index: index, isLocal: isLocal})
	return len(c.upvalues) - 1
}

func resolveUpvalue(p *parser, c *Compiler, name string) int {
	if c.enclosing == nil {
		return -1
	}
	if local := resolveLocal(p, c.enclosing, name); local != -1 {
		c.enclosing.locals[local].isCaptured = true
		return addUpvalue(p, c, uint8(local), true)
	}
	if up := resolveUpvalue(p, c.enclosing, name); up != -1 {
		return addUpvalue(p, c, uint8(up), false)
	}
	return -1
}

// namedVariable emits the get/set (or compound-assign) sequence for a bare
// name reference, resolving it as local, then upvalue, then global in that
// order (spec.md §4.1).
func (p *parser) namedVariable(name string, canAssign bool) {
	var getOp, setOp chunk.OpCode
	var arg int
	if local := resolveLocal(p, p.cc, name); local != -1 {
		getOp, setOp, arg = chunk.OpGetLocal, chunk.OpSetLocal, local
	} else if up := resolveUpvalue(p, p.cc, name); up != -1 {
		getOp, setOp, arg = chunk.OpGetUpvalue, chunk.OpSetUpvalue, up
	} else {
		getOp, setOp, arg = chunk.OpGetGlobal, chunk.OpSetGlobal, int(p.identifierConstant(name))
	}

	switch {
	case canAssign && p.match(langtoken.EQ):
		p.expression()
		p.emitBytes(setOp, byte(arg))
	case canAssign && p.match(langtoken.PLUS_EQ):
		p.emitBytes(getOp, byte(arg))
		p.expression()
		p.emitOp(chunk.OpAdd)
		p.emitBytes(setOp, byte(arg))
	case canAssign && p.match(langtoken.MINUS_EQ):
		p.emitBytes(getOp, byte(arg))
		p.expression()
		p.emitOp(chunk.OpSubtract)
		p.emitBytes(setOp, byte(arg))
	default:
		p.emitBytes(getOp, byte(arg))
	}
}
