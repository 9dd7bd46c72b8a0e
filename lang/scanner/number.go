package scanner

import (
	"strconv"

	langtoken "github.com/mna/ember/lang/token"
)

// number scans an integer or floating-point literal starting after the
// first digit has already been consumed by Scan.
func (s *Scanner) number(startLine, startCol int) Token {
	for isDigit(s.peek()) {
		s.advance()
	}

	if s.peek() == '.' && isDigit(s.peekNext()) {
		s.advance() // consume the '.'
		for isDigit(s.peek()) {
			s.advance()
		}
	}

	lexeme := string(s.src[s.start:s.current])
	n, err := strconv.ParseFloat(lexeme, 64)
	if err != nil {
		s.error("invalid number literal " + lexeme)
	}
	return Token{Kind: langtoken.NUMBER, Lexeme: lexeme, Number: n, Line: startLine, Col: startCol}
}
