// Package loader ties the execution pipeline together: it accepts a
// front-end's list of ir.Function values, validates their well-formedness,
// drives the specializer over each, and exposes a single Execute entry
// point that runs the actor runtime end to end.
package loader

import (
	"fmt"

	"github.com/kabudu/groklang/internal/actor"
	"github.com/kabudu/groklang/internal/hotpath"
	"github.com/kabudu/groklang/internal/ir"
	"github.com/kabudu/groklang/internal/specializer"
	"github.com/kabudu/groklang/internal/value"
	"github.com/kabudu/groklang/internal/vm"
)

// Options configures a Loader. The zero value is usable.
type Options struct {
	// HotThreshold overrides hotpath.DefaultThreshold.
	HotThreshold uint64
	// GCThreshold overrides the interpreter's default GC pacing.
	GCThreshold int
	// Trace enables the interpreter's opcode trace log.
	Trace bool
}

// Loader owns a program's FunctionTable, heap, globals, and actor
// runtime, built once from a front-end's IR.
type Loader struct {
	runtime *actor.Runtime
}

// New validates fns (labels resolve, no duplicate block labels, no
// duplicate function names — the well-formedness the front-end is
// contractually responsible for, checked here defensively since a
// malformed program should fail fast at load time rather than panic
// deep in the interpreter), specializes each function, and returns a
// ready-to-run Loader.
func New(fns []*ir.Function, opts Options) (*Loader, error) {
	if err := validate(fns); err != nil {
		return nil, err
	}

	sp := specializer.New()
	specialized := make([]*specializer.Function, len(fns))
	for i, fn := range fns {
		specialized[i] = sp.Specialize(fn)
	}

	threshold := opts.HotThreshold
	if threshold == 0 {
		threshold = hotpath.DefaultThreshold
	}
	table := vm.NewFunctionTable(specialized, threshold)
	heap := value.NewHeap()
	globals := vm.NewGlobals()
	vmOpts := vm.Options{GCThreshold: opts.GCThreshold, Trace: opts.Trace}

	return &Loader{runtime: actor.New(table, heap, globals, vmOpts)}, nil
}

// Execute seeds the top-level actor at entry with args and runs the
// program to completion, including every actor it transitively spawns.
func (l *Loader) Execute(entry string, args []value.Value) (value.Value, error) {
	return l.runtime.Run(entry, args)
}

// validate checks the structural well-formedness an IR program must
// have before specialization: unique function names, unique block
// labels within each function, and every Jmp/JmpIfFalse target
// resolving to a block in the same function.
func validate(fns []*ir.Function) error {
	seen := make(map[string]bool, len(fns))
	for _, fn := range fns {
		if seen[fn.Name] {
			return fmt.Errorf("loader: duplicate function name %q", fn.Name)
		}
		seen[fn.Name] = true

		labels := make(map[string]bool, len(fn.Blocks))
		for _, b := range fn.Blocks {
			if labels[b.Label] {
				return fmt.Errorf("loader: function %q has duplicate block label %q", fn.Name, b.Label)
			}
			labels[b.Label] = true
		}

		for _, b := range fn.Blocks {
			for _, instr := range b.Instructions {
				switch instr.Op {
				case ir.OpJmp, ir.OpJmpIfFalse:
					if !labels[instr.StrVal] {
						return fmt.Errorf("loader: function %q block %q references unknown label %q", fn.Name, b.Label, instr.StrVal)
					}
				}
			}
		}
	}
	return nil
}
