package vm

import (
	"sync"

	"github.com/kabudu/groklang/internal/codegen"
	"github.com/kabudu/groklang/internal/hotpath"
	"github.com/kabudu/groklang/internal/specializer"
)

// FunctionTable is the read-only-after-load mapping from function name to
// its specialized form, shared by reference across every actor running
// against the same program. The only mutation after load is the lazy
// addition of a native entry once a function goes hot, guarded by mu.
type FunctionTable struct {
	mu      sync.RWMutex
	fns     map[string]*specializer.Function
	natives map[string]codegen.NativeFunc
	compile map[string]*sync.Once

	Tracker *hotpath.Tracker
	Cache   *hotpath.InlineCache
	Codegen *codegen.Compiler
}

// NewFunctionTable builds a table from already-specialized functions.
func NewFunctionTable(fns []*specializer.Function, hotThreshold uint64) *FunctionTable {
	m := make(map[string]*specializer.Function, len(fns))
	once := make(map[string]*sync.Once, len(fns))
	for _, f := range fns {
		m[f.Name] = f
		once[f.Name] = &sync.Once{}
	}
	return &FunctionTable{
		fns:     m,
		natives: make(map[string]codegen.NativeFunc),
		compile: once,
		Tracker: hotpath.NewTracker(hotThreshold),
		Cache:   hotpath.NewInlineCache(),
		Codegen: codegen.New(),
	}
}

// Lookup returns the specialized function named name, if it exists.
func (t *FunctionTable) Lookup(name string) (*specializer.Function, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn, ok := t.fns[name]
	return fn, ok
}

// Native returns a previously compiled native entry for name, if any.
func (t *FunctionTable) Native(name string) (codegen.NativeFunc, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.natives[name]
	return n, ok
}

// CompileIfHot marks name's function hot and triggers native codegen for
// it at most once, regardless
// of how many concurrently executing actors call a now-hot function at
// the same time. CodegenUnsupported is swallowed here: the function
// simply never gets a native entry and the VM keeps interpreting it, per
// the codegen's recovery contract.
func (t *FunctionTable) CompileIfHot(name string) {
	t.mu.RLock()
	once, ok := t.compile[name]
	fn := t.fns[name]
	t.mu.RUnlock()
	if !ok {
		return
	}
	once.Do(func() {
		fn.MarkHot()
		native, err := t.Codegen.Compile(fn)
		if err != nil {
			return
		}
		t.mu.Lock()
		t.natives[name] = native
		t.mu.Unlock()
	})
}

// Names returns every function name in the table. Test helper.
func (t *FunctionTable) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.fns))
	for n := range t.fns {
		names = append(names, n)
	}
	return names
}
