// Package config holds the runtime tunables read from the environment at
// startup: GC thresholds, stack capacities, and the instruction count
// between GC safe points. None of these affect the Language's observable
// semantics (spec.md never makes them part of the language), only the
// ambient resource envelope the heap and VM operate under, so reading them
// once at process startup (rather than threading a config object through
// every call) matches how the teacher handles this class of setting.
package config

import (
	"github.com/caarlos0/env/v6"

	"github.com/mna/ember/lang/heap"
	"github.com/mna/ember/lang/machine"
)

// Config is populated from EMBER_*-prefixed environment variables. Every
// field has a default matching the values named directly in spec.md, so an
// unconfigured process behaves exactly as specified.
type Config struct {
	// GCInitialThreshold is the heap's starting bytes_allocated threshold
	// before the first collection is considered (spec.md §4.3: "initially 1
	// MiB").
	GCInitialThreshold uint64 `env:"GC_INITIAL_THRESHOLD" envDefault:"1048576"`

	// GCCheckInterval is the number of executed instructions between GC
	// safe-point checks (spec.md §4.3: "every 5000").
	GCCheckInterval uint64 `env:"GC_CHECK_INTERVAL" envDefault:"5000"`

	// MaxSteps bounds total executed instructions per Run call; 0 disables
	// the limit. This is an ambient safety valve, not part of the language.
	MaxSteps uint64 `env:"MAX_STEPS" envDefault:"0"`

	// GCGrowthFactor multiplies live bytes to compute the next collection
	// threshold (spec.md §4.3 default: double).
	GCGrowthFactor float64 `env:"GC_GROWTH_FACTOR" envDefault:"2.0"`

	// ValueStackCapacity is the number of value slots in the VM's stack
	// (spec.md §5: "value stack of 256 slots").
	ValueStackCapacity int `env:"VALUE_STACK_CAPACITY" envDefault:"256"`

	// CallFrameCapacity is the number of nested CallFrames the VM allows
	// (spec.md §5: "call stack of 256 frames").
	CallFrameCapacity int `env:"CALL_FRAME_CAPACITY" envDefault:"256"`
}

// Load reads a Config from the process environment, prefixing every
// variable with EMBER_ (e.g. EMBER_GC_INITIAL_THRESHOLD).
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg, env.Options{Prefix: "EMBER_"}); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NewHeap builds a Heap sized according to cfg.
func (cfg Config) NewHeap() *heap.Heap {
	h := heap.NewWithThreshold(cfg.GCInitialThreshold)
	h.SetGrowthFactor(cfg.GCGrowthFactor)
	return h
}

// NewVM builds a VM over h sized according to cfg.
func (cfg Config) NewVM(h *heap.Heap) *machine.VM {
	vm := machine.NewWithCapacity(h, cfg.ValueStackCapacity, cfg.CallFrameCapacity, cfg.GCCheckInterval)
	vm.MaxSteps = cfg.MaxSteps
	return vm
}
