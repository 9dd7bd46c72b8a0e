package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/mna/ember/lang/scanner"
	langtoken "github.com/mna/ember/lang/token"
)

// Tokenize runs only the scanner phase of each file argument and prints the
// resulting token stream, one token per line, for debugging the lexer in
// isolation (spec.md §1 names a disassembler/tokenizer as ambient debug
// tooling, not part of the language's external interface).
func (c *Cmd) Tokenize(ctx context.Context, stdio mainer.Stdio, args []string) error {
	var firstErr error
	for _, path := range args {
		if err := tokenizeFile(stdio, path); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func tokenizeFile(stdio mainer.Stdio, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return printError(stdio, err)
	}

	sc := scanner.New(path, src)
	for {
		tok := sc.Scan()
		fmt.Fprintf(stdio.Stdout, "%s:%d:%d: %s", path, tok.Line, tok.Col, tok.Kind)
		if tok.Lexeme != "" {
			fmt.Fprintf(stdio.Stdout, " %q", tok.Lexeme)
		}
		fmt.Fprintln(stdio.Stdout)
		if tok.Kind == langtoken.EOF || tok.Kind == langtoken.ILLEGAL {
			break
		}
	}
	if err := sc.Errors(); err != nil {
		scanner.PrintError(stdio.Stderr, err)
		return err
	}
	return nil
}
