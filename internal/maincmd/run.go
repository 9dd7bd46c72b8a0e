package maincmd

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/mna/ember/internal/config"
	"github.com/mna/ember/lang/compiler"
	"github.com/mna/ember/lang/machine"
	"github.com/mna/ember/lang/natives"
)

// exit codes for the run command, beyond mainer's generic Success/Failure:
// distinguishing a compile error from a runtime error lets scripts and CI
// tell the two failure modes apart without scraping stderr.
const (
	exitCompileError = 50
	exitRuntimeError = 70
)

// Run is the default command: with one or more file arguments it executes
// each as a batch script in its own VM; with none it starts an interactive
// REPL that shares a single VM (and therefore globals and classes) across
// every line, per the Language's REPL semantics.
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return printError(stdio, fmt.Errorf("loading configuration: %w", err))
	}

	if len(args) == 0 {
		return c.repl(ctx, stdio, cfg)
	}

	var firstErr error
	for _, path := range args {
		if err := c.runFile(stdio, cfg, path); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Cmd) runFile(stdio mainer.Stdio, cfg config.Config, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return printError(stdio, err)
	}

	h := cfg.NewHeap()
	fnRef, err := compiler.Compile(h, path, src)
	if err != nil {
		printError(stdio, err)
		return newExitError(exitCompileError)
	}

	vm := cfg.NewVM(h)
	vm.Stdout = stdio.Stdout
	vm.Stderr = stdio.Stderr
	natives.Register(vm)

	if _, err := vm.Run(fnRef); err != nil {
		printError(stdio, err)
		return newExitError(exitRuntimeError)
	}
	return nil
}

// repl reads one line at a time from stdio.Stdin, compiling and running
// each line against a VM that persists for the whole session: globals and
// classes declared on one line remain visible on the next, and a runtime
// error on one line does not take down the session (spec.md §9 resolution:
// globals survive a runtime error across separate Run calls).
func (c *Cmd) repl(ctx context.Context, stdio mainer.Stdio, cfg config.Config) error {
	h := cfg.NewHeap()
	vm := cfg.NewVM(h)
	vm.Stdout = stdio.Stdout
	vm.Stderr = stdio.Stderr
	natives.Register(vm)

	scanner := bufio.NewScanner(stdio.Stdin)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		fmt.Fprint(stdio.Stdout, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if line == "exit" {
			return nil
		}

		fnRef, err := compiler.Compile(h, "<repl>", []byte(line))
		if err != nil {
			printError(stdio, err)
			continue
		}
		if _, err := vm.Run(fnRef); err != nil {
			printError(stdio, err)
		}
	}
}

// exitError carries a specific process exit code through the
// mainer.Cmd.Main dispatch, which otherwise only distinguishes
// Success/Failure/InvalidArgs.
type exitError struct {
	code int
}

func newExitError(code int) error { return &exitError{code: code} }

func (e *exitError) Error() string { return fmt.Sprintf("exit code %d", e.code) }
