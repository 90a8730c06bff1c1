package vm

import "github.com/kabudu/groklang/internal/value"

// Frame is a runtime record for one active call: which function it is
// executing, where within that function's blocks/instructions, and its
// local variables.
//
// Slots mirrors yaegi's frame.data slice (indexed storage, adapted here
// to the specializer's assigned slots): every variable the specializer
// could assign a slot to, whether reached via LoadLocalFast/
// StoreLocalFast or via a Generic(LoadVar) resolved through the
// function's VarSlots map and the hot-path variable-slot cache. A
// Generic(LoadVar) that names neither a known slot nor a global is
// reported as UnknownVariable rather than crashing on an out-of-range
// index.
type Frame struct {
	FuncName string
	BlockIdx int
	InstrIdx int
	Slots    []value.Value
}

// NewFrame returns a frame for funcName with nSlots pre-sized local
// slots, starting at the function's entry block.
func NewFrame(funcName string, nSlots int) *Frame {
	return &Frame{
		FuncName: funcName,
		Slots:    make([]value.Value, nSlots),
	}
}

// EnsureSlot grows the slot array so index i is addressable, for a slot
// index beyond the size the frame was created with.
func (f *Frame) EnsureSlot(i int) {
	if i < len(f.Slots) {
		return
	}
	grown := make([]value.Value, i+1)
	copy(grown, f.Slots)
	f.Slots = grown
}
