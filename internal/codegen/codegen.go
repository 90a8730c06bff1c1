// Package codegen lowers a hot SpecializedFunction to a host-native
// callable honoring the interpreter's calling convention: one machine
// integer per argument, one returned, booleans represented as 0/1.
//
// The teacher's own execution model already contains the right idiom for
// this: yaegi never emits machine code either — a node is "compiled" once
// into a Go closure (node.exec) that the interpreter then calls directly,
// skipping the opcode-dispatch switch on every subsequent visit. This
// package reproduces that scheme for the specializer's integer opcode
// subset: Compile builds one closure per basic block (a blockThunk),
// wiring cross-block jump targets only after every thunk exists so loop
// back-edges resolve correctly, exactly as the native-codegen design note
// requires ("seal blocks only after all predecessor edges are inserted").
package codegen

import (
	"github.com/kabudu/groklang/internal/ir"
	"github.com/kabudu/groklang/internal/specializer"
	"github.com/kabudu/groklang/internal/vmerr"
)

// regPoolSize bounds the number of local slots a compiled function may
// address, matching the fixed small-function register pool ("e.g. 128").
const regPoolSize = 128

// NativeFunc is a function compiled ahead of time for a specialized
// function: one int64 argument per parameter, one int64 result.
type NativeFunc func(args []int64) (int64, error)

// blockThunk is one compiled basic block. run executes the block's
// instructions against regs and returns either a final value (done=true)
// or the next thunk to execute (done=false).
type blockThunk struct {
	label string
	run   func(regs []int64) (value int64, done bool, next *blockThunk, err error)
}

// Compiler lowers SpecializedFunction values to NativeFunc values.
type Compiler struct{}

// New returns a ready-to-use Compiler.
func New() *Compiler { return &Compiler{} }

// supported reports whether instr is in the compilable opcode subset:
// integer arithmetic/compare specializations, PushSmallInt, a Generic
// wrapping PushInt/Jmp/JmpIfFalse/Ret, and LoadLocalFast/StoreLocalFast.
// Anything else (TailCall, Spawn/Send/Receive, struct/string opcodes,
// Generic wrapping anything but the four above) is Unsupported.
func supported(instr specializer.Instruction) bool {
	switch instr.Op {
	case specializer.OpIntAdd, specializer.OpIntSub, specializer.OpIntMul, specializer.OpIntDiv,
		specializer.OpIntLt, specializer.OpIntGt, specializer.OpIntLe, specializer.OpIntGe,
		specializer.OpIntEq, specializer.OpIntNe,
		specializer.OpPushSmallInt, specializer.OpLoadLocalFast, specializer.OpStoreLocalFast:
		return true
	case specializer.OpGeneric:
		switch instr.Generic.Op {
		case ir.OpPushInt, ir.OpJmp, ir.OpJmpIfFalse, ir.OpRet:
			return true
		}
		return false
	default:
		return false
	}
}

// Compile lowers fn to a NativeFunc, or returns a *vmerr.Error of kind
// CodegenUnsupported if fn uses any opcode outside the compilable subset.
// The caller (the interpreter) recovers from this by continuing to
// interpret fn.
func (c *Compiler) Compile(fn *specializer.Function) (NativeFunc, error) {
	for _, b := range fn.Blocks {
		for _, instr := range b.Instructions {
			if !supported(instr) {
				return nil, vmerr.New(vmerr.CodegenUnsupported, "opcode %v in block %q of %s is not compilable", instr.Op, b.Label, fn.Name)
			}
		}
	}

	maxSlot := len(fn.Params) - 1
	for _, b := range fn.Blocks {
		for _, instr := range b.Instructions {
			if instr.Op == specializer.OpLoadLocalFast || instr.Op == specializer.OpStoreLocalFast {
				if instr.Slot > maxSlot {
					maxSlot = instr.Slot
				}
			}
		}
	}
	if maxSlot >= regPoolSize {
		return nil, vmerr.New(vmerr.CodegenUnsupported, "function %s needs %d slots, exceeds register pool of %d", fn.Name, maxSlot+1, regPoolSize)
	}

	thunks := make([]*blockThunk, len(fn.Blocks))
	labelIdx := make(map[string]int, len(fn.Blocks))
	for i, b := range fn.Blocks {
		thunks[i] = &blockThunk{label: b.Label}
		labelIdx[b.Label] = i
	}

	// Build every thunk's closure before any of them execute, so a Jmp
	// to a label whose thunk appears later in the slice (a loop
	// back-edge) still resolves to a valid pointer.
	for i, b := range fn.Blocks {
		var fallthroughThunk *blockThunk
		if i+1 < len(thunks) {
			fallthroughThunk = thunks[i+1]
		}
		thunks[i].run = buildBlockRunner(b.Instructions, thunks, labelIdx, fallthroughThunk)
	}

	entry := thunks[0]
	return func(args []int64) (int64, error) {
		regs := make([]int64, regPoolSize)
		copy(regs, args)
		cur := entry
		for {
			val, done, next, err := cur.run(regs)
			if err != nil {
				return 0, err
			}
			if done {
				return val, nil
			}
			if next == nil {
				return 0, vmerr.New(vmerr.BadJump, "fell through past the last block")
			}
			cur = next
		}
	}, nil
}

func buildBlockRunner(instrs []specializer.Instruction, thunks []*blockThunk, labelIdx map[string]int, fallthroughThunk *blockThunk) func(regs []int64) (int64, bool, *blockThunk, error) {
	return func(regs []int64) (int64, bool, *blockThunk, error) {
		var stack []int64
		pop := func() (int64, error) {
			if len(stack) == 0 {
				return 0, vmerr.New(vmerr.StackUnderflow, "codegen: operand stack underflow")
			}
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			return v, nil
		}

		for _, instr := range instrs {
			switch instr.Op {
			case specializer.OpPushSmallInt:
				stack = append(stack, instr.IntVal)
			case specializer.OpLoadLocalFast:
				stack = append(stack, regs[instr.Slot])
			case specializer.OpStoreLocalFast:
				v, err := pop()
				if err != nil {
					return 0, false, nil, err
				}
				regs[instr.Slot] = v
			case specializer.OpIntAdd, specializer.OpIntSub, specializer.OpIntMul, specializer.OpIntDiv,
				specializer.OpIntLt, specializer.OpIntGt, specializer.OpIntLe, specializer.OpIntGe,
				specializer.OpIntEq, specializer.OpIntNe:
				b, err := pop()
				if err != nil {
					return 0, false, nil, err
				}
				a, err := pop()
				if err != nil {
					return 0, false, nil, err
				}
				switch instr.Op {
				case specializer.OpIntAdd:
					stack = append(stack, a+b)
				case specializer.OpIntSub:
					stack = append(stack, a-b)
				case specializer.OpIntMul:
					stack = append(stack, a*b)
				case specializer.OpIntDiv:
					if b == 0 {
						return 0, false, nil, vmerr.New(vmerr.DivisionByZero, "division by zero")
					}
					stack = append(stack, a/b)
				case specializer.OpIntLt:
					stack = append(stack, boolInt(a < b))
				case specializer.OpIntGt:
					stack = append(stack, boolInt(a > b))
				case specializer.OpIntLe:
					stack = append(stack, boolInt(a <= b))
				case specializer.OpIntGe:
					stack = append(stack, boolInt(a >= b))
				case specializer.OpIntEq:
					stack = append(stack, boolInt(a == b))
				case specializer.OpIntNe:
					stack = append(stack, boolInt(a != b))
				}
			case specializer.OpGeneric:
				switch instr.Generic.Op {
				case ir.OpPushInt:
					stack = append(stack, instr.Generic.IntVal)
				case ir.OpJmp:
					idx, ok := labelIdx[instr.Generic.StrVal]
					if !ok {
						return 0, false, nil, vmerr.New(vmerr.BadJump, "unknown label %q", instr.Generic.StrVal)
					}
					return 0, false, thunks[idx], nil
				case ir.OpJmpIfFalse:
					cond, err := pop()
					if err != nil {
						return 0, false, nil, err
					}
					if cond == 0 {
						idx, ok := labelIdx[instr.Generic.StrVal]
						if !ok {
							return 0, false, nil, vmerr.New(vmerr.BadJump, "unknown label %q", instr.Generic.StrVal)
						}
						return 0, false, thunks[idx], nil
					}
					// fall through to the next block in source order
					return 0, false, fallthroughThunk, nil
				case ir.OpRet:
					v, err := pop()
					if err != nil {
						v = 0 // Ret with an empty stack returns Unit, represented as 0
					}
					return v, true, nil, nil
				}
			}
		}
		// Implicit fallthrough: the block ended without a terminator. If
		// there is no next block either, treat it like a bare Ret of
		// Unit (0) so the trampoline never chases a nil thunk.
		if fallthroughThunk == nil {
			return 0, true, nil, nil
		}
		return 0, false, fallthroughThunk, nil
	}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
