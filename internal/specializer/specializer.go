// Package specializer rewrites a generic ir.Function into a
// SpecializedFunction in a single linear pass: integer arithmetic and
// comparisons lose their runtime type dispatch, local variable access
// moves from a string-keyed lookup to a slot index, small integer
// literals get a dedicated opcode, and a Call immediately followed by a
// Ret in the same block becomes a TailCall.
package specializer

import (
	"sync/atomic"

	"github.com/kabudu/groklang/internal/ir"
)

// Op enumerates the specialized opcode set — a superset of ir.Op that
// removes runtime dispatch on the opcodes the specializer can prove are
// integer operations or direct local-slot accesses.
type Op int

const (
	OpIntAdd Op = iota
	OpIntSub
	OpIntMul
	OpIntDiv
	OpIntLt
	OpIntGt
	OpIntLe
	OpIntGe
	OpIntEq
	OpIntNe
	OpLoadLocalFast
	OpStoreLocalFast
	OpPushSmallInt
	OpTailCall
	OpGeneric
)

// smallIntMin and smallIntMax bound the range PushInt gets specialized
// into PushSmallInt, per the specializer's rewrite table.
const (
	smallIntMin = -128
	smallIntMax = 127
)

// Instruction is one specialized opcode. Generic carries the original
// ir.Instruction when Op == OpGeneric (the catch-all fallback that
// preserves original semantics for anything not otherwise rewritten).
type Instruction struct {
	Op      Op
	Slot    int    // LoadLocalFast/StoreLocalFast
	IntVal  int64  // PushSmallInt
	StrVal  string // TailCall callee name
	Argc    int    // TailCall argument count
	Generic ir.Instruction
}

// Block mirrors ir.Block with specialized instructions.
type Block struct {
	Label        string
	Instructions []Instruction
}

// Function is the specializer's output: an ir.Function rewritten to the
// specialized opcode set, plus the slot assignment for its parameters and
// the hot-path bookkeeping fields from the data model (mirrored here so
// they travel with the function; internal/hotpath.Tracker is the
// authoritative source of the threshold-crossing decision).
type Function struct {
	Name       string
	Params     []string
	ParamSlots map[string]int
	// VarSlots is the complete variable-name -> slot assignment this
	// function's StoreVar instructions were given, independent of where
	// in the single linear pass each assignment happened. A LoadVar that
	// fell back to Generic (because it appeared, in block order, before
	// the StoreVar that proved its slot — typically a loop back-edge)
	// still has a real slot recorded here, and the interpreter's
	// hot-path cache resolves it from this map on first encounter.
	VarSlots map[string]int
	Blocks   []Block

	isHot     int32 // atomic bool
	callCount uint64
}

// IsHot reports whether this function has been marked hot.
func (f *Function) IsHot() bool { return atomic.LoadInt32(&f.isHot) != 0 }

// MarkHot marks this function as hot.
func (f *Function) MarkHot() { atomic.StoreInt32(&f.isHot, 1) }

// CallCount returns the function's own call counter. Only IncCallCount
// advances it; the interpreter counts calls in hotpath.Tracker and does
// not call IncCallCount, so this counter stays at 0 during execution.
func (f *Function) CallCount() uint64 { return atomic.LoadUint64(&f.callCount) }

// IncCallCount increments the mirrored call counter and returns the new
// value.
func (f *Function) IncCallCount() uint64 { return atomic.AddUint64(&f.callCount, 1) }

// MaxSlot returns the highest local slot index this function addresses
// (via a parameter or a LoadLocalFast/StoreLocalFast), or -1 if it
// addresses none. Callers size a Frame's slot array from this plus one.
func (f *Function) MaxSlot() int {
	max := len(f.Params) - 1
	for _, b := range f.Blocks {
		for _, in := range b.Instructions {
			if in.Op == OpLoadLocalFast || in.Op == OpStoreLocalFast {
				if in.Slot > max {
					max = in.Slot
				}
			}
		}
	}
	return max
}

// BlockIndex returns the index of the block labeled label, if any.
func (f *Function) BlockIndex(label string) (int, bool) {
	for i, b := range f.Blocks {
		if b.Label == label {
			return i, true
		}
	}
	return -1, false
}

// Specializer rewrites ir.Function values into Function values. It is
// stateless across calls: slot numbering is local to each Specialize
// call, so compiling the same IR twice yields equal results (the
// idempotence property of the testable properties).
type Specializer struct{}

// New returns a ready-to-use Specializer.
func New() *Specializer { return &Specializer{} }

// Specialize rewrites fn in linear time.
func (s *Specializer) Specialize(fn *ir.Function) *Function {
	slotOf := make(map[string]int, len(fn.Params))
	paramSlots := make(map[string]int, len(fn.Params))
	for i, p := range fn.Params {
		slotOf[p] = i
		paramSlots[p] = i
	}
	nextSlot := len(fn.Params)

	out := &Function{
		Name:       fn.Name,
		Params:     append([]string(nil), fn.Params...),
		ParamSlots: paramSlots,
		Blocks:     make([]Block, len(fn.Blocks)),
	}

	for bi, block := range fn.Blocks {
		instrs := make([]Instruction, 0, len(block.Instructions))
		for ii, in := range block.Instructions {
			switch in.Op {
			case ir.OpAdd:
				instrs = append(instrs, Instruction{Op: OpIntAdd})
			case ir.OpSub:
				instrs = append(instrs, Instruction{Op: OpIntSub})
			case ir.OpMul:
				instrs = append(instrs, Instruction{Op: OpIntMul})
			case ir.OpDiv:
				instrs = append(instrs, Instruction{Op: OpIntDiv})
			case ir.OpEq:
				instrs = append(instrs, Instruction{Op: OpIntEq})
			case ir.OpNe:
				instrs = append(instrs, Instruction{Op: OpIntNe})
			case ir.OpLt:
				instrs = append(instrs, Instruction{Op: OpIntLt})
			case ir.OpGt:
				instrs = append(instrs, Instruction{Op: OpIntGt})
			case ir.OpLe:
				instrs = append(instrs, Instruction{Op: OpIntLe})
			case ir.OpGe:
				instrs = append(instrs, Instruction{Op: OpIntGe})

			case ir.OpLoadVar:
				if slot, ok := slotOf[in.StrVal]; ok {
					instrs = append(instrs, Instruction{Op: OpLoadLocalFast, Slot: slot})
				} else {
					instrs = append(instrs, Instruction{Op: OpGeneric, Generic: in})
				}

			case ir.OpStoreVar:
				slot, ok := slotOf[in.StrVal]
				if !ok {
					slot = nextSlot
					nextSlot++
					slotOf[in.StrVal] = slot
				}
				instrs = append(instrs, Instruction{Op: OpStoreLocalFast, Slot: slot})

			case ir.OpPushInt:
				if in.IntVal >= smallIntMin && in.IntVal <= smallIntMax {
					instrs = append(instrs, Instruction{Op: OpPushSmallInt, IntVal: in.IntVal})
				} else {
					instrs = append(instrs, Instruction{Op: OpGeneric, Generic: in})
				}

			case ir.OpCall:
				if ii+1 < len(block.Instructions) && block.Instructions[ii+1].Op == ir.OpRet {
					instrs = append(instrs, Instruction{Op: OpTailCall, StrVal: in.StrVal, Argc: in.Argc})
				} else {
					instrs = append(instrs, Instruction{Op: OpGeneric, Generic: in})
				}

			default:
				instrs = append(instrs, Instruction{Op: OpGeneric, Generic: in})
			}
		}
		out.Blocks[bi] = Block{Label: block.Label, Instructions: instrs}
	}

	out.VarSlots = slotOf
	return out
}
