package scanner_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/ember/lang/scanner"
	"github.com/mna/ember/lang/token"
)

func scanAll(t *testing.T, src string) []scanner.Token {
	t.Helper()
	s := scanner.New("test", []byte(src))
	var toks []scanner.Token
	for {
		tok := s.Scan()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return toks
}

func kinds(toks []scanner.Token) []token.Token {
	out := make([]token.Token, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}

func TestScanPunctuationAndOperators(t *testing.T) {
	toks := scanAll(t, `(){};,.-+*/!!====<=<>=>+=-=`)
	require.Equal(t, []token.Token{
		token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE, token.SEMI,
		token.COMMA, token.DOT, token.MINUS, token.PLUS, token.STAR, token.SLASH,
		token.BANG, token.BANG_EQ, token.EQ_EQ, token.EQ, token.LT_EQ, token.LT,
		token.GT_EQ, token.GT, token.PLUS_EQ, token.MINUS_EQ, token.EOF,
	}, kinds(toks))
}

func TestScanKeywordsAndIdents(t *testing.T) {
	toks := scanAll(t, `var fun class if else while for print return this true false nil and or foo super extend`)
	got := kinds(toks)
	want := []token.Token{
		token.VAR, token.FUN, token.CLASS, token.IF, token.ELSE, token.WHILE,
		token.FOR, token.PRINT, token.RETURN, token.THIS, token.TRUE,
		token.FALSE, token.NIL, token.AND, token.OR, token.IDENT,
		token.IDENT, token.IDENT, token.EOF,
	}
	require.Equal(t, want, got)
}

func TestScanNumbers(t *testing.T) {
	toks := scanAll(t, `10 3.14 0`)
	require.Equal(t, token.NUMBER, toks[0].Kind)
	require.Equal(t, 10.0, toks[0].Number)
	require.Equal(t, 3.14, toks[1].Number)
	require.Equal(t, 0.0, toks[2].Number)
}

func TestScanString(t *testing.T) {
	toks := scanAll(t, "\"hello\\nworld\"")
	require.Equal(t, token.STRING, toks[0].Kind)
	require.Equal(t, `hello\nworld`, toks[0].Lexeme)
}

func TestScanMultilineString(t *testing.T) {
	toks := scanAll(t, "\"line one\nline two\"")
	require.Equal(t, token.STRING, toks[0].Kind)
	require.Equal(t, "line one\nline two", toks[0].Lexeme)
	// the token following the string should be reported on the second line
	require.Equal(t, token.EOF, toks[1].Kind)
	require.Equal(t, 2, toks[1].Line)
}

func TestScanUnterminatedString(t *testing.T) {
	s := scanner.New("test", []byte(`"oops`))
	tok := s.Scan()
	require.Equal(t, token.ILLEGAL, tok.Kind)
	require.Error(t, s.Errors())
}

func TestScanComments(t *testing.T) {
	toks := scanAll(t, "// a line comment\nvar /* block\ncomment */ x = 1;")
	got := kinds(toks)
	require.Equal(t, []token.Token{token.VAR, token.IDENT, token.EQ, token.NUMBER, token.SEMI, token.EOF}, got)
}

func TestScanIllegalCharacter(t *testing.T) {
	s := scanner.New("test", []byte(`@`))
	tok := s.Scan()
	require.Equal(t, token.ILLEGAL, tok.Kind)
	require.Error(t, s.Errors())
}
