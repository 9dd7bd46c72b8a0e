package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/mna/ember/internal/config"
	"github.com/mna/ember/lang/compiler"
)

// Disasm compiles each file argument and prints its disassembled bytecode
// instead of running it, the compiler-debugging counterpart to the
// teacher's `parse`/`resolve` AST-printing commands.
func (c *Cmd) Disasm(ctx context.Context, stdio mainer.Stdio, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return printError(stdio, err)
	}

	var firstErr error
	for _, path := range args {
		if err := disasmFile(stdio, cfg, path); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func disasmFile(stdio mainer.Stdio, cfg config.Config, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return printError(stdio, err)
	}

	h := cfg.NewHeap()
	fnRef, err := compiler.Compile(h, path, src)
	if err != nil {
		return printError(stdio, err)
	}

	fn := h.Function(fnRef)
	fmt.Fprint(stdio.Stdout, compiler.Disassemble(h, fn.Chunk, path))
	return nil
}
