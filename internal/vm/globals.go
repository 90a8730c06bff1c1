package vm

import (
	"sync"

	"github.com/kabudu/groklang/internal/value"
)

// Globals holds top-level bindings shared across every actor executing
// the same program. It is deliberately tiny: the front-end (out of
// scope here) is responsible for populating it before Execute runs, if
// the source program has any top-level state at all.
type Globals struct {
	mu   sync.Mutex
	vals map[string]value.Value
}

// NewGlobals returns an empty Globals.
func NewGlobals() *Globals {
	return &Globals{vals: make(map[string]value.Value)}
}

// Get returns the value bound to name, if any.
func (g *Globals) Get(name string) (value.Value, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.vals[name]
	return v, ok
}

// Set binds name to v.
func (g *Globals) Set(name string, v value.Value) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.vals[name] = v
}

// Snapshot returns every bound value, for use as GC roots.
func (g *Globals) Snapshot() []value.Value {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]value.Value, 0, len(g.vals))
	for _, v := range g.vals {
		out = append(out, v)
	}
	return out
}
