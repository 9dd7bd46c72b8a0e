package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/mna/ember/internal/config"
	"github.com/mna/ember/lang/compiler"
	"github.com/mna/ember/lang/natives"
)

// Gcstats runs each file argument to completion and prints the heap's final
// allocation/population statistics, useful for eyeballing collector
// behavior on a given script without instrumenting it by hand.
func (c *Cmd) Gcstats(ctx context.Context, stdio mainer.Stdio, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return printError(stdio, err)
	}

	var firstErr error
	for _, path := range args {
		if err := gcstatsFile(stdio, cfg, path); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func gcstatsFile(stdio mainer.Stdio, cfg config.Config, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return printError(stdio, err)
	}

	h := cfg.NewHeap()
	fnRef, err := compiler.Compile(h, path, src)
	if err != nil {
		return printError(stdio, err)
	}

	vm := cfg.NewVM(h)
	vm.Stdout = stdio.Stdout
	vm.Stderr = stdio.Stderr
	natives.Register(vm)

	if _, err := vm.Run(fnRef); err != nil {
		printError(stdio, err)
	}

	stats := h.Stats()
	fmt.Fprintf(stdio.Stdout, "bytes_allocated: %d\n", stats.BytesAllocated)
	fmt.Fprintf(stdio.Stdout, "next_gc: %d\n", stats.NextGC)
	fmt.Fprintf(stdio.Stdout, "live_strings: %d\n", stats.LiveStrings)
	fmt.Fprintf(stdio.Stdout, "live_functions: %d\n", stats.LiveFunctions)
	fmt.Fprintf(stdio.Stdout, "live_closures: %d\n", stats.LiveClosures)
	fmt.Fprintf(stdio.Stdout, "live_classes: %d\n", stats.LiveClasses)
	fmt.Fprintf(stdio.Stdout, "live_instances: %d\n", stats.LiveInstances)
	fmt.Fprintf(stdio.Stdout, "live_bound_methods: %d\n", stats.LiveBoundMethods)
	fmt.Fprintf(stdio.Stdout, "live_natives: %d\n", stats.LiveNatives)
	return nil
}
