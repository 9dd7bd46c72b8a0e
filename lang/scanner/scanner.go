// Package scanner tokenizes Language source text for the compiler. It is
// the thin external collaborator described by the specification: a
// hand-rolled lexer producing a stream of (token.Token, lexeme, line)
// triples, with no dependency on the compiler or machine packages.
package scanner

import (
	"fmt"
	"go/scanner"
	"go/token"
	"unicode/utf8"

	langtoken "github.com/mna/ember/lang/token"
)

// Reuse the standard library's error list shape: a positioned, accumulating
// list of diagnostics. Error and ErrorList behave identically to their
// go/scanner counterparts: ErrorList.Err() returns nil if the list is empty
// and the result is Unwrap()-able into individual errors.
type (
	Error     = scanner.Error
	ErrorList = scanner.ErrorList
)

// PrintError prints each error in err (if it is an ErrorList) or err itself
// to w, one per line.
func PrintError(w interface {
	Write([]byte) (int, error)
}, err error) {
	scanner.PrintError(w, err)
}

// Token pairs a scanned token kind with its lexeme, line and column.
type Token struct {
	Kind   langtoken.Token
	Lexeme string  // raw source text; for STRING, excludes the surrounding quotes
	Number float64 // valid only when Kind == token.NUMBER
	Line   int
	Col    int
}

// Scanner tokenizes a single source file held entirely in memory. The
// Language has no notion of multi-file compilation units (see spec.md
// §6), so unlike the richer FileSet-based scanners in the wider ecosystem,
// one Scanner handles exactly one chunk of source text.
type Scanner struct {
	filename string
	src      []byte
	errs     ErrorList

	start   int // start offset of the lexeme being scanned
	current int // offset of the next unread byte
	line    int
	col     int
}

// New creates a Scanner over src, attributing errors to filename (used only
// in diagnostics; pass "" for REPL input).
func New(filename string, src []byte) *Scanner {
	return &Scanner{filename: filename, src: src, line: 1, col: 1}
}

// Errors returns the accumulated scan errors, or nil if none were seen so
// far. It does not stop Scan from producing tokens; an unexpected character
// or an unterminated string is reported inline as an ILLEGAL token plus an
// entry here, mirroring the compiler's own panic-mode recovery. An
// unterminated block comment is recorded here only: Scan then returns EOF.
func (s *Scanner) Errors() error { return s.errs.Err() }

func (s *Scanner) pos() token.Position {
	return token.Position{Filename: s.filename, Line: s.line, Column: s.col}
}

func (s *Scanner) error(msg string) {
	s.errs.Add(s.pos(), msg)
}

func (s *Scanner) atEnd() bool { return s.current >= len(s.src) }

func (s *Scanner) advance() byte {
	b := s.src[s.current]
	s.current++
	s.col++
	return b
}

func (s *Scanner) peek() byte {
	if s.atEnd() {
		return 0
	}
	return s.src[s.current]
}

func (s *Scanner) peekNext() byte {
	if s.current+1 >= len(s.src) {
		return 0
	}
	return s.src[s.current+1]
}

func (s *Scanner) match(want byte) bool {
	if s.atEnd() || s.src[s.current] != want {
		return false
	}
	s.current++
	s.col++
	return true
}

func (s *Scanner) newline() {
	s.line++
	s.col = 1
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isAlpha(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b >= utf8.RuneSelf
}

func isAlphaNumeric(b byte) bool { return isAlpha(b) || isDigit(b) }

// Scan returns the next token in the stream. Once it returns a token of kind
// token.EOF, every subsequent call returns the same EOF token.
func (s *Scanner) Scan() Token {
	s.skipWhitespaceAndComments()

	s.start = s.current
	startLine, startCol := s.line, s.col
	mk := func(k langtoken.Token) Token {
		return Token{Kind: k, Lexeme: string(s.src[s.start:s.current]), Line: startLine, Col: startCol}
	}

	if s.atEnd() {
		return mk(langtoken.EOF)
	}

	b := s.advance()
	switch {
	case isDigit(b):
		return s.number(startLine, startCol)
	case isAlpha(b):
		return s.identifier(startLine, startCol)
	}

	switch b {
	case '(':
		return mk(langtoken.LPAREN)
	case ')':
		return mk(langtoken.RPAREN)
	case '{':
		return mk(langtoken.LBRACE)
	case '}':
		return mk(langtoken.RBRACE)
	case ',':
		return mk(langtoken.COMMA)
	case '.':
		return mk(langtoken.DOT)
	case ';':
		return mk(langtoken.SEMI)
	case '*':
		return mk(langtoken.STAR)
	case '/':
		return mk(langtoken.SLASH)
	case '-':
		if s.match('=') {
			return mk(langtoken.MINUS_EQ)
		}
		return mk(langtoken.MINUS)
	case '+':
		if s.match('=') {
			return mk(langtoken.PLUS_EQ)
		}
		return mk(langtoken.PLUS)
	case '!':
		if s.match('=') {
			return mk(langtoken.BANG_EQ)
		}
		return mk(langtoken.BANG)
	case '=':
		if s.match('=') {
			return mk(langtoken.EQ_EQ)
		}
		return mk(langtoken.EQ)
	case '<':
		if s.match('=') {
			return mk(langtoken.LT_EQ)
		}
		return mk(langtoken.LT)
	case '>':
		if s.match('=') {
			return mk(langtoken.GT_EQ)
		}
		return mk(langtoken.GT)
	case '"':
		return s.string(startLine, startCol)
	}

	s.error(fmt.Sprintf("unexpected character %q", b))
	return mk(langtoken.ILLEGAL)
}

// skipWhitespaceAndComments advances past spaces, tabs, newlines, line
// comments ("// ...") and block comments ("/* ... */"). Block comments do
// not nest.
func (s *Scanner) skipWhitespaceAndComments() {
	for {
		if s.atEnd() {
			return
		}
		switch c := s.peek(); c {
		case ' ', '\r', '\t':
			s.advance()
		case '\n':
			s.advance()
			s.newline()
		case '/':
			if s.peekNext() == '/' {
				for !s.atEnd() && s.peek() != '\n' {
					s.advance()
				}
			} else if s.peekNext() == '*' {
				s.advance()
				s.advance()
				s.blockComment()
			} else {
				return
			}
		default:
			return
		}
	}
}

func (s *Scanner) blockComment() {
	for !s.atEnd() {
		if s.peek() == '*' && s.peekNext() == '/' {
			s.advance()
			s.advance()
			return
		}
		if s.peek() == '\n' {
			s.advance()
			s.newline()
			continue
		}
		s.advance()
	}
	s.error("unterminated block comment")
}

func (s *Scanner) identifier(startLine, startCol int) Token {
	for isAlphaNumeric(s.peek()) {
		s.advance()
	}
	lexeme := string(s.src[s.start:s.current])
	kind, ok := langtoken.Keywords[lexeme]
	if !ok {
		kind = langtoken.IDENT
	}
	return Token{Kind: kind, Lexeme: lexeme, Line: startLine, Col: startCol}
}
