package compiler

import (
	"github.com/mna/ember/lang/chunk"
	langtoken "github.com/mna/ember/lang/token"
	"github.com/mna/ember/lang/value"
)

func (p *parser) declaration() {
	switch {
	case p.match(langtoken.CLASS):
		p.classDeclaration()
	case p.match(langtoken.FUN):
		p.funDeclaration()
	case p.match(langtoken.VAR):
		p.varDeclaration()
	default:
		p.statement()
	}
	if p.panicMode {
		p.synchronize()
	}
}

func (p *parser) varDeclaration() {
	global := p.parseVariable("Expect variable name.")

	if p.match(langtoken.EQ) {
		p.expression()
	} else {
		p.emitOp(chunk.OpNil)
	}
	p.consume(langtoken.SEMI, "Expect ';' after variable declaration.")
	p.defineVariable(global)
}

func (p *parser) funDeclaration() {
	global := p.parseVariable("Expect function name.")
	p.markInitialized()
	p.function(TypeFunction, p.previous.Lexeme)
	p.defineVariable(global)
}

// function compiles one parameter list and body as a nested Compiler,
// emitting the Closure instruction (and its upvalue operand pairs) into the
// *enclosing* chunk once the body is done (spec.md §4.1).
func (p *parser) function(fnType FunctionType, name string) {
	enclosing := p.cc
	p.cc = newCompiler(enclosing, fnType, name)
	p.beginScope()

	p.consume(langtoken.LPAREN, "Expect '(' after function name.")
	if !p.check(langtoken.RPAREN) {
		for {
			p.cc.arity++
			if p.cc.arity > 255 {
				p.errorAtCurrent("Can't have more than 255 parameters.")
			}
			constant := p.parseVariable("Expect parameter name.")
			p.defineVariable(constant)
			if !p.match(langtoken.COMMA) {
				break
			}
		}
	}
	p.consume(langtoken.RPAREN, "Expect ')' after parameters.")
	p.consume(langtoken.LBRACE, "Expect '{' before function body.")
	p.block()

	fnRef, upvalues := p.endCompiler()

	constant := p.makeConstant(value.Obj(fnRef))
	p.emitBytes(chunk.OpClosure, constant)
	for _, uv := range upvalues {
		p.emitByte(boolByte(uv.isLocal))
		p.emitByte(uv.index)
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func (p *parser) method() {
	p.consume(langtoken.IDENT, "Expect method name.")
	name := p.previous.Lexeme
	constant := p.identifierConstant(name)

	fnType := TypeMethod
	if name == "init" {
		fnType = TypeInitializer
	}
	p.function(fnType, name)
	p.emitBytes(chunk.OpMethod, constant)
}

func (p *parser) classDeclaration() {
	p.consume(langtoken.IDENT, "Expect class name.")
	className := p.previous.Lexeme
	nameConstant := p.identifierConstant(className)
	p.declareVariable(className)

	p.emitBytes(chunk.OpClass, nameConstant)
	p.defineVariable(nameConstant)

	p.class = &classCompiler{enclosing: p.class}

	p.namedVariable(className, false)
	p.consume(langtoken.LBRACE, "Expect '{' before class body.")
	for !p.check(langtoken.RBRACE) && !p.check(langtoken.EOF) {
		p.method()
	}
	p.consume(langtoken.RBRACE, "Expect '}' after class body.")
	p.emitOp(chunk.OpPop)

	p.class = p.class.enclosing
}

func (p *parser) statement() {
	switch {
	case p.match(langtoken.PRINT):
		p.printStatement()
	case p.match(langtoken.IF):
		p.ifStatement()
	case p.match(langtoken.WHILE):
		p.whileStatement()
	case p.match(langtoken.FOR):
		p.forStatement()
	case p.match(langtoken.RETURN):
		p.returnStatement()
	case p.match(langtoken.LBRACE):
		p.beginScope()
		p.block()
		p.endScope()
	default:
		p.expressionStatement()
	}
}

func (p *parser) block() {
	for !p.check(langtoken.RBRACE) && !p.check(langtoken.EOF) {
		p.declaration()
	}
	p.consume(langtoken.RBRACE, "Expect '}' after block.")
}

func (p *parser) printStatement() {
	p.expression()
	p.consume(langtoken.SEMI, "Expect ';' after value.")
	p.emitOp(chunk.OpPrint)
}

func (p *parser) expressionStatement() {
	p.expression()
	p.consume(langtoken.SEMI, "Expect ';' after expression.")
	p.emitOp(chunk.OpPop)
}

func (p *parser) ifStatement() {
	p.consume(langtoken.LPAREN, "Expect '(' after 'if'.")
	p.expression()
	p.consume(langtoken.RPAREN, "Expect ')' after condition.")

	thenJump := p.emitJump(chunk.OpJumpIfFalse)
	p.emitOp(chunk.OpPop)
	p.statement()

	elseJump := p.emitJump(chunk.OpJump)
	p.patchJump(thenJump)
	p.emitOp(chunk.OpPop)

	if p.match(langtoken.ELSE) {
		p.statement()
	}
	p.patchJump(elseJump)
}

func (p *parser) whileStatement() {
	loopStart := len(p.currentChunk().Code)
	p.consume(langtoken.LPAREN, "Expect '(' after 'while'.")
	p.expression()
	p.consume(langtoken.RPAREN, "Expect ')' after condition.")

	exitJump := p.emitJump(chunk.OpJumpIfFalse)
	p.emitOp(chunk.OpPop)
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emitOp(chunk.OpPop)
}

// forStatement desugars entirely into primitive jumps and a trailing
// increment, per spec.md §4.1: there is no for-specific opcode, only the
// same JumpIfFalse/Jump/Loop instructions a while loop uses.
func (p *parser) forStatement() {
	p.beginScope()
	p.consume(langtoken.LPAREN, "Expect '(' after 'for'.")

	switch {
	case p.match(langtoken.SEMI):
		// no initializer
	case p.match(langtoken.VAR):
		p.varDeclaration()
	default:
		p.expressionStatement()
	}

	loopStart := len(p.currentChunk().Code)
	exitJump := -1
	if !p.match(langtoken.SEMI) {
		p.expression()
		p.consume(langtoken.SEMI, "Expect ';' after loop condition.")
		exitJump = p.emitJump(chunk.OpJumpIfFalse)
		p.emitOp(chunk.OpPop)
	}

	if !p.match(langtoken.RPAREN) {
		bodyJump := p.emitJump(chunk.OpJump)
		incrementStart := len(p.currentChunk().Code)
		p.expression()
		p.emitOp(chunk.OpPop)
		p.consume(langtoken.RPAREN, "Expect ')' after for clauses.")

		p.emitLoop(loopStart)
		loopStart = incrementStart
		p.patchJump(bodyJump)
	}

	p.statement()
	p.emitLoop(loopStart)

	if exitJump != -1 {
		p.patchJump(exitJump)
		p.emitOp(chunk.OpPop)
	}

	p.endScope()
}

func (p *parser) returnStatement() {
	if p.cc.fnType == TypeMain {
		p.error("Can't return from top-level code.")
	}
	if p.match(langtoken.SEMI) {
		p.emitReturn()
		return
	}
	if p.cc.fnType == TypeInitializer {
		p.error("Can't return a value from an initializer.")
	}
	p.expression()
	p.consume(langtoken.SEMI, "Expect ';' after return value.")
	p.emitOp(chunk.OpReturn)
}
