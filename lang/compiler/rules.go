package compiler

import (
	"strconv"

	"github.com/mna/ember/lang/chunk"
	langtoken "github.com/mna/ember/lang/token"
	"github.com/mna/ember/lang/value"
)

// precedence levels, ascending binding power (spec.md §4.1).
type precedence int

const (
	precNone       precedence = iota
	precAssignment            // =
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >=
	precTerm                  // + -
	precFactor                // * /
	precUnary                 // ! -
	precCall                  // . ()
)

type parseFn func(p *parser, canAssign bool)

type rule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

var rules map[langtoken.Token]rule

func init() {
	rules = map[langtoken.Token]rule{
		langtoken.LPAREN:   {prefix: (*parser).grouping, infix: (*parser).call, precedence: precCall},
		langtoken.DOT:      {infix: (*parser).dot, precedence: precCall},
		langtoken.MINUS:    {prefix: (*parser).unary, infix: (*parser).binary, precedence: precTerm},
		langtoken.PLUS:     {infix: (*parser).binary, precedence: precTerm},
		langtoken.SLASH:    {infix: (*parser).binary, precedence: precFactor},
		langtoken.STAR:     {infix: (*parser).binary, precedence: precFactor},
		langtoken.BANG:     {prefix: (*parser).unary},
		langtoken.BANG_EQ:  {infix: (*parser).binary, precedence: precEquality},
		langtoken.EQ_EQ:    {infix: (*parser).binary, precedence: precEquality},
		langtoken.GT:       {infix: (*parser).binary, precedence: precComparison},
		langtoken.GT_EQ:    {infix: (*parser).binary, precedence: precComparison},
		langtoken.LT:       {infix: (*parser).binary, precedence: precComparison},
		langtoken.LT_EQ:    {infix: (*parser).binary, precedence: precComparison},
		langtoken.IDENT:    {prefix: (*parser).variable},
		langtoken.STRING:   {prefix: (*parser).string},
		langtoken.NUMBER:   {prefix: (*parser).number},
		langtoken.AND:      {infix: (*parser).and, precedence: precAnd},
		langtoken.OR:       {infix: (*parser).or, precedence: precOr},
		langtoken.FALSE:    {prefix: (*parser).literal},
		langtoken.TRUE:     {prefix: (*parser).literal},
		langtoken.NIL:      {prefix: (*parser).literal},
		langtoken.THIS:     {prefix: (*parser).this},
	}
}

func getRule(k langtoken.Token) rule { return rules[k] }

// parsePrecedence is the heart of the Pratt parser: consume one token,
// dispatch its prefix rule, then keep consuming and dispatching infix rules
// as long as the next token binds at least as tightly as prec.
func (p *parser) parsePrecedence(prec precedence) {
	p.advance()
	prefix := getRule(p.previous.Kind).prefix
	if prefix == nil {
		p.error("Expect expression.")
		return
	}
	canAssign := prec <= precAssignment
	prefix(p, canAssign)

	for prec <= getRule(p.current.Kind).precedence {
		p.advance()
		infix := getRule(p.previous.Kind).infix
		infix(p, canAssign)
	}

	if canAssign && p.match(langtoken.EQ) {
		p.error("Invalid assignment target.")
	}
}

func (p *parser) expression() { p.parsePrecedence(precAssignment) }

// --- prefix/infix expression rules ---

func (p *parser) number(_ bool) {
	n, err := strconv.ParseFloat(p.previous.Lexeme, 64)
	if err != nil {
		p.error("Invalid number literal.")
		return
	}
	p.emitConstant(value.Number(n))
}

func (p *parser) string(_ bool) {
	ref := p.heap.InternString(p.previous.Lexeme)
	p.emitConstant(value.Obj(ref))
}

func (p *parser) literal(_ bool) {
	switch p.previous.Kind {
	case langtoken.FALSE:
		p.emitOp(chunk.OpFalse)
	case langtoken.TRUE:
		p.emitOp(chunk.OpTrue)
	case langtoken.NIL:
		p.emitOp(chunk.OpNil)
	}
}

func (p *parser) grouping(_ bool) {
	p.expression()
	p.consume(langtoken.RPAREN, "Expect ')' after expression.")
}

func (p *parser) unary(_ bool) {
	opType := p.previous.Kind
	p.parsePrecedence(precUnary)
	switch opType {
	case langtoken.BANG:
		p.emitOp(chunk.OpNot)
	case langtoken.MINUS:
		p.emitOp(chunk.OpNegate)
	}
}

func (p *parser) binary(_ bool) {
	opType := p.previous.Kind
	r := getRule(opType)
	p.parsePrecedence(r.precedence + 1)

	switch opType {
	case langtoken.BANG_EQ:
		p.emitOp(chunk.OpEqual)
		p.emitOp(chunk.OpNot)
	case langtoken.EQ_EQ:
		p.emitOp(chunk.OpEqual)
	case langtoken.GT:
		p.emitOp(chunk.OpGreater)
	case langtoken.GT_EQ:
		p.emitOp(chunk.OpLess)
		p.emitOp(chunk.OpNot)
	case langtoken.LT:
		p.emitOp(chunk.OpLess)
	case langtoken.LT_EQ:
		p.emitOp(chunk.OpGreater)
		p.emitOp(chunk.OpNot)
	case langtoken.PLUS:
		p.emitOp(chunk.OpAdd)
	case langtoken.MINUS:
		p.emitOp(chunk.OpSubtract)
	case langtoken.STAR:
		p.emitOp(chunk.OpMultiply)
	case langtoken.SLASH:
		p.emitOp(chunk.OpDivide)
	}
}

func (p *parser) and(_ bool) {
	endJump := p.emitJump(chunk.OpJumpIfFalse)
	p.emitOp(chunk.OpPop)
	p.parsePrecedence(precAnd)
	p.patchJump(endJump)
}

func (p *parser) or(_ bool) {
	elseJump := p.emitJump(chunk.OpJumpIfFalse)
	endJump := p.emitJump(chunk.OpJump)
	p.patchJump(elseJump)
	p.emitOp(chunk.OpPop)
	p.parsePrecedence(precOr)
	p.patchJump(endJump)
}

func (p *parser) variable(canAssign bool) {
	p.namedVariable(p.previous.Lexeme, canAssign)
}

func (p *parser) this(_ bool) {
	if p.class == nil {
		p.error("Can't use 'this' outside of a class.")
		return
	}
	p.namedVariable("this", false)
}

func (p *parser) argumentList() byte {
	var argCount int
	if !p.check(langtoken.RPAREN) {
		for {
			p.expression()
			if argCount == 255 {
				p.error("Can't have more than 255 arguments.")
			}
			argCount++
			if !p.match(langtoken.COMMA) {
				break
			}
		}
	}
	p.consume(langtoken.RPAREN, "Expect ')' after arguments.")
	return byte(argCount)
}

func (p *parser) call(_ bool) {
	argCount := p.argumentList()
	p.emitBytes(chunk.OpCall, argCount)
}

func (p *parser) dot(canAssign bool) {
	p.consume(langtoken.IDENT, "Expect property name after '.'.")
	name := p.identifierConstant(p.previous.Lexeme)

	switch {
	case canAssign && p.match(langtoken.EQ):
		p.expression()
		p.emitBytes(chunk.OpSetProperty, name)
	case p.match(langtoken.LPAREN):
		argCount := p.argumentList()
		p.emitBytes(chunk.OpInvoke, name)
		p.emitByte(argCount)
	default:
		p.emitBytes(chunk.OpGetProperty, name)
	}
}
