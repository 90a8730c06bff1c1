// Package vm implements the stack-based interpreter: frame and call-stack
// management, GC pacing, hot-path recording, and dispatch of both the
// specializer's opcode set and its Generic fallback. It is the runtime
// core that a Loader wires up once per loaded program, and that an actor
// host embeds once per running actor.
package vm

import (
	"fmt"
	"log"

	"github.com/kabudu/groklang/internal/hotpath"
	"github.com/kabudu/groklang/internal/ir"
	"github.com/kabudu/groklang/internal/specializer"
	"github.com/kabudu/groklang/internal/value"
	"github.com/kabudu/groklang/internal/vmerr"
)

// defaultGCThreshold is the instruction count between GC cycles absent an
// explicit Options.GCThreshold, per the "implementation-chosen, e.g. 1000"
// guidance.
const defaultGCThreshold = 1000

// ActorHost is the actor runtime's half of the Spawn/Send/Receive
// opcodes. internal/vm depends only on this interface, never on
// internal/actor directly, so the two packages don't import each other:
// the actor runtime embeds an *Interp per actor and satisfies ActorHost
// for it.
type ActorHost interface {
	Spawn(entry string, args []value.Value) (value.ActorID, error)
	Send(target value.ActorID, msg value.Value) error
	Receive() (value.Value, error)
}

// Options configures an Interp. The zero value is usable: GC pacing
// falls back to defaultGCThreshold and tracing is off.
type Options struct {
	// GCThreshold is the number of instructions dispatched between GC
	// cycles. Zero selects defaultGCThreshold.
	GCThreshold int

	// Trace, when set, logs every dispatched opcode via log.Printf. Off
	// by default — mirrors the interpreters in the pack that gate their
	// execution trace behind an explicit debug switch rather than
	// printing unconditionally.
	Trace bool
}

// Interp runs specialized bytecode against a shared FunctionTable and
// Heap. One Interp exists per actor (or per top-level Execute call for a
// program with no actors at all); the table and heap it's built with are
// shared by reference across every Interp in the same program.
type Interp struct {
	table   *FunctionTable
	heap    *value.Heap
	globals *Globals
	host    ActorHost
	opt     Options

	// stack is the single process-wide operand stack shared by every
	// frame of this Interp (see SPEC_FULL.md's resolution of the
	// operand-stack-per-frame-vs-shared open question: one stack per
	// executing context, matching the original's VM::stack field).
	stack []value.Value

	frames    []*Frame
	gcCounter int
}

// New returns an Interp ready to run against table and heap. host may be
// nil for a program known not to use Spawn/Send/Receive (exercised by
// this package's own tests); the loader always supplies a real host.
func New(table *FunctionTable, heap *value.Heap, globals *Globals, host ActorHost, opt Options) *Interp {
	if opt.GCThreshold <= 0 {
		opt.GCThreshold = defaultGCThreshold
	}
	return &Interp{table: table, heap: heap, globals: globals, host: host, opt: opt}
}

// Execute runs the function named entry to completion with args bound to
// its parameters, and returns its result.
func (i *Interp) Execute(entry string, args []value.Value) (value.Value, error) {
	fn, ok := i.table.Lookup(entry)
	if !ok {
		return value.Unit(), vmerr.New(vmerr.UnknownFunction, "unknown function %q", entry)
	}
	if len(args) != len(fn.Params) {
		return value.Unit(), vmerr.New(vmerr.CallArityMismatch, "%s expects %d args, got %d", entry, len(fn.Params), len(args))
	}

	if i.table.Tracker.RecordCall(entry) {
		i.table.CompileIfHot(entry)
	}
	if native, ok := i.table.Native(entry); ok {
		return i.callNative(native, args)
	}

	frame := NewFrame(entry, fn.MaxSlot()+1)
	copy(frame.Slots, args)
	i.frames = append(i.frames, frame)
	return i.run()
}

// callNative adapts the native calling convention (int64 in, int64 out)
// to Value in, Value out, reporting TypeMismatch for any non-Int/Bool
// argument.
func (i *Interp) callNative(native func([]int64) (int64, error), args []value.Value) (value.Value, error) {
	ints := make([]int64, len(args))
	for idx, a := range args {
		v, err := toInt64(a)
		if err != nil {
			return value.Unit(), err
		}
		ints[idx] = v
	}
	res, err := native(ints)
	if err != nil {
		return value.Unit(), err
	}
	return value.Int(res), nil
}

func toInt64(v value.Value) (int64, error) {
	if n, ok := v.Int(); ok {
		return n, nil
	}
	if b, ok := v.Bool(); ok {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	return 0, vmerr.New(vmerr.TypeMismatch, "expected Int or Bool, got %s", v.Kind())
}

func (i *Interp) push(v value.Value) { i.stack = append(i.stack, v) }

func (i *Interp) pop() (value.Value, error) {
	if len(i.stack) == 0 {
		return value.Value{}, vmerr.New(vmerr.StackUnderflow, "operand stack underflow")
	}
	v := i.stack[len(i.stack)-1]
	i.stack = i.stack[:len(i.stack)-1]
	return v, nil
}

// popArgs pops n values and returns them in push order (args[0] is the
// first value the caller pushed).
func (i *Interp) popArgs(n int) ([]value.Value, error) {
	args := make([]value.Value, n)
	for k := n - 1; k >= 0; k-- {
		v, err := i.pop()
		if err != nil {
			return nil, err
		}
		args[k] = v
	}
	return args, nil
}

// roots collects every GC root: the shared operand stack, every live
// frame's slots, and globals.
func (i *Interp) roots() []value.Value {
	out := append([]value.Value(nil), i.stack...)
	for _, f := range i.frames {
		out = append(out, f.Slots...)
	}
	out = append(out, i.globals.Snapshot()...)
	return out
}

func (i *Interp) trace(format string, args ...interface{}) {
	if i.opt.Trace {
		log.Printf(format, args...)
	}
}

// run drives the dispatch loop until the initial frame returns.
func (i *Interp) run() (value.Value, error) {
	for {
		if len(i.frames) == 0 {
			return value.Unit(), nil
		}
		frame := i.frames[len(i.frames)-1]
		fn, ok := i.table.Lookup(frame.FuncName)
		if !ok {
			return value.Unit(), vmerr.New(vmerr.UnknownFunction, "unknown function %q", frame.FuncName)
		}
		if frame.BlockIdx >= len(fn.Blocks) {
			return value.Unit(), vmerr.New(vmerr.BadJump, "block index %d out of range in %s", frame.BlockIdx, fn.Name)
		}
		block := fn.Blocks[frame.BlockIdx]
		if frame.InstrIdx >= len(block.Instructions) {
			// Implicit fallthrough to the next block in source order.
			frame.BlockIdx++
			frame.InstrIdx = 0
			continue
		}

		instr := block.Instructions[frame.InstrIdx]

		i.gcCounter++
		if i.gcCounter >= i.opt.GCThreshold {
			i.heap.GC(i.roots())
			i.gcCounter = 0
		}

		i.trace("%s %s[%d]: %v", frame.FuncName, block.Label, frame.InstrIdx, instr.Op)

		val, err := i.dispatch(frame, fn, instr)
		if err != nil {
			return value.Unit(), err
		}
		if val != nil {
			return *val, nil
		}
	}
}

// dispatch executes a single specialized instruction against frame. A
// non-nil *value.Value signals that run should return immediately
// (the program's final result, from the entry frame's Ret).
func (i *Interp) dispatch(frame *Frame, fn *specializer.Function, instr specializer.Instruction) (*value.Value, error) {
	switch instr.Op {
	case specializer.OpIntAdd, specializer.OpIntSub, specializer.OpIntMul, specializer.OpIntDiv,
		specializer.OpIntLt, specializer.OpIntGt, specializer.OpIntLe, specializer.OpIntGe,
		specializer.OpIntEq, specializer.OpIntNe:
		return nil, i.dispatchIntOp(frame, instr)

	case specializer.OpPushSmallInt:
		i.push(value.Int(instr.IntVal))
		frame.InstrIdx++
		return nil, nil

	case specializer.OpLoadLocalFast:
		if instr.Slot < 0 || instr.Slot >= len(frame.Slots) {
			return nil, vmerr.New(vmerr.UnknownVariable, "slot %d out of range in %s", instr.Slot, frame.FuncName)
		}
		i.push(frame.Slots[instr.Slot])
		frame.InstrIdx++
		return nil, nil

	case specializer.OpStoreLocalFast:
		v, err := i.pop()
		if err != nil {
			return nil, err
		}
		frame.EnsureSlot(instr.Slot)
		frame.Slots[instr.Slot] = v
		frame.InstrIdx++
		return nil, nil

	case specializer.OpTailCall:
		return i.dispatchTailCall(frame, fn, instr)

	case specializer.OpGeneric:
		return i.dispatchGeneric(frame, fn, instr.Generic)

	default:
		return nil, vmerr.New(vmerr.TypeMismatch, "unknown specialized opcode %v", instr.Op)
	}
}

func (i *Interp) dispatchIntOp(frame *Frame, instr specializer.Instruction) error {
	b, err := i.pop()
	if err != nil {
		return err
	}
	a, err := i.pop()
	if err != nil {
		return err
	}
	ai, ok := a.Int()
	if !ok {
		return vmerr.New(vmerr.TypeMismatch, "expected Int operand, got %s", a.Kind())
	}
	bi, ok := b.Int()
	if !ok {
		return vmerr.New(vmerr.TypeMismatch, "expected Int operand, got %s", b.Kind())
	}

	switch instr.Op {
	case specializer.OpIntAdd:
		i.push(value.Int(ai + bi))
	case specializer.OpIntSub:
		i.push(value.Int(ai - bi))
	case specializer.OpIntMul:
		i.push(value.Int(ai * bi))
	case specializer.OpIntDiv:
		if bi == 0 {
			return vmerr.New(vmerr.DivisionByZero, "division by zero")
		}
		i.push(value.Int(ai / bi))
	case specializer.OpIntLt:
		i.push(value.Bool(ai < bi))
	case specializer.OpIntGt:
		i.push(value.Bool(ai > bi))
	case specializer.OpIntLe:
		i.push(value.Bool(ai <= bi))
	case specializer.OpIntGe:
		i.push(value.Bool(ai >= bi))
	case specializer.OpIntEq:
		i.push(value.Bool(ai == bi))
	case specializer.OpIntNe:
		i.push(value.Bool(ai != bi))
	}
	frame.InstrIdx++
	return nil
}

// dispatchTailCall installs the callee's arguments into the *current*
// frame and resets its cursor to the callee's entry block, instead of
// growing the call stack. A self-tail-call reuses fn directly rather
// than consulting the function table again.
func (i *Interp) dispatchTailCall(frame *Frame, fn *specializer.Function, instr specializer.Instruction) (*value.Value, error) {
	args, err := i.popArgs(instr.Argc)
	if err != nil {
		return nil, err
	}

	site := hotpath.CallSite{Func: frame.FuncName, Block: fn.Blocks[frame.BlockIdx].Label, Instr: frame.InstrIdx}
	calleeName := instr.StrVal
	if cached, ok := i.table.Cache.ResolveCallee(site); ok {
		calleeName = cached
	} else {
		i.table.Cache.CacheCallee(site, calleeName)
	}

	if i.table.Tracker.RecordCall(calleeName) {
		i.table.CompileIfHot(calleeName)
	}

	if native, ok := i.table.Native(calleeName); ok {
		result, err := i.callNative(native, args)
		if err != nil {
			return nil, err
		}
		return i.popFrameAndReturn(result)
	}

	callee := fn
	if calleeName != fn.Name {
		var ok bool
		callee, ok = i.table.Lookup(calleeName)
		if !ok {
			return nil, vmerr.New(vmerr.UnknownFunction, "unknown function %q", calleeName)
		}
	}
	if len(args) != len(callee.Params) {
		return nil, vmerr.New(vmerr.CallArityMismatch, "%s expects %d args, got %d", callee.Name, len(callee.Params), len(args))
	}

	frame.FuncName = callee.Name
	frame.Slots = make([]value.Value, callee.MaxSlot()+1)
	copy(frame.Slots, args)
	frame.BlockIdx = 0
	frame.InstrIdx = 0
	return nil, nil
}

// popFrameAndReturn discards the current frame and delivers result to
// the caller, exactly as a Ret would, for the codegen-accelerated tail
// call path (the native call already performed the callee's work, so
// there is no frame to install).
func (i *Interp) popFrameAndReturn(result value.Value) (*value.Value, error) {
	i.frames = i.frames[:len(i.frames)-1]
	if len(i.frames) == 0 {
		return &result, nil
	}
	i.push(result)
	return nil, nil
}

func (i *Interp) dispatchGeneric(frame *Frame, fn *specializer.Function, g ir.Instruction) (*value.Value, error) {
	switch g.Op {
	case ir.OpPushInt:
		i.push(value.Int(g.IntVal))
		frame.InstrIdx++
		return nil, nil

	case ir.OpPushFloat:
		i.push(value.Float(g.FloatVal))
		frame.InstrIdx++
		return nil, nil

	case ir.OpPushBool:
		i.push(value.Bool(g.BoolVal))
		frame.InstrIdx++
		return nil, nil

	case ir.OpPushStr:
		idx := i.heap.Alloc(value.NewString(g.StrVal))
		i.push(value.Object(idx))
		frame.InstrIdx++
		return nil, nil

	case ir.OpPushStruct:
		vals, err := i.popArgs(len(g.Fields))
		if err != nil {
			return nil, err
		}
		idx := i.heap.Alloc(value.NewStruct(g.StrVal, g.Fields, vals))
		i.push(value.Object(idx))
		frame.InstrIdx++
		return nil, nil

	case ir.OpLoadVar:
		// A Generic(LoadVar) means this load appeared, in the
		// specializer's single linear pass, before the StoreVar that
		// proved its slot (typically a loop back-edge reading a
		// variable whose store lives in a later block). The slot still
		// exists — fn.VarSlots records the final assignment regardless
		// of instruction order — so resolve it once per function and
		// cache it, same as a LoadLocalFast would have been emitted
		// directly if the specializer had seen the store first.
		if slot, ok := i.table.Cache.VarSlot(frame.FuncName, g.StrVal); ok {
			frame.EnsureSlot(slot)
			i.push(frame.Slots[slot])
			frame.InstrIdx++
			return nil, nil
		}
		if slot, ok := fn.VarSlots[g.StrVal]; ok {
			i.table.Cache.CacheVarSlot(frame.FuncName, g.StrVal, slot)
			frame.EnsureSlot(slot)
			i.push(frame.Slots[slot])
			frame.InstrIdx++
			return nil, nil
		}
		if v, ok := i.globals.Get(g.StrVal); ok {
			i.push(v)
			frame.InstrIdx++
			return nil, nil
		}
		return nil, vmerr.New(vmerr.UnknownVariable, "unknown variable %q in %s", g.StrVal, frame.FuncName)

	case ir.OpLoadField:
		return nil, i.dispatchLoadField(frame, g.StrVal)

	case ir.OpJmp:
		idx, ok := fnBlockIndex(i, frame, g.StrVal)
		if !ok {
			return nil, vmerr.New(vmerr.BadJump, "unknown label %q", g.StrVal)
		}
		frame.BlockIdx = idx
		frame.InstrIdx = 0
		return nil, nil

	case ir.OpJmpIfFalse:
		cond, err := i.pop()
		if err != nil {
			return nil, err
		}
		b, ok := cond.Bool()
		if !ok {
			return nil, vmerr.New(vmerr.TypeMismatch, "JmpIfFalse expects Bool, got %s", cond.Kind())
		}
		if !b {
			idx, ok := fnBlockIndex(i, frame, g.StrVal)
			if !ok {
				return nil, vmerr.New(vmerr.BadJump, "unknown label %q", g.StrVal)
			}
			frame.BlockIdx = idx
			frame.InstrIdx = 0
			return nil, nil
		}
		frame.InstrIdx++
		return nil, nil

	case ir.OpRet:
		v, err := i.pop()
		if err != nil {
			v = value.Unit()
		}
		return i.popFrameAndReturn(v)

	case ir.OpCall:
		return i.dispatchCall(frame, fn, g)

	case ir.OpSpawn:
		return nil, i.dispatchSpawn(frame, g)

	case ir.OpSend:
		msg, err := i.pop()
		if err != nil {
			return nil, err
		}
		target, err := i.pop()
		if err != nil {
			return nil, err
		}
		actorID, ok := target.ActorID()
		if !ok {
			return nil, vmerr.New(vmerr.TypeMismatch, "Send target must be an Actor, got %s", target.Kind())
		}
		if i.host == nil {
			return nil, fmt.Errorf("vm: Send requires an actor host")
		}
		// A closed mailbox (target already terminal) silently drops the
		// message, per the actor runtime's Send contract.
		_ = i.host.Send(actorID, msg)
		frame.InstrIdx++
		return nil, nil

	case ir.OpReceive:
		if i.host == nil {
			return nil, fmt.Errorf("vm: Receive requires an actor host")
		}
		v, err := i.host.Receive()
		if err != nil {
			return nil, err
		}
		i.push(v)
		frame.InstrIdx++
		return nil, nil

	default:
		return nil, vmerr.New(vmerr.TypeMismatch, "unsupported generic opcode %v", g.Op)
	}
}

func (i *Interp) dispatchLoadField(frame *Frame, field string) error {
	top, err := i.pop()
	if err != nil {
		return err
	}
	idx, ok := top.HeapIndex()
	if !ok {
		return vmerr.New(vmerr.TypeMismatch, "LoadField expects an Object, got %s", top.Kind())
	}
	obj, ok := i.heap.Get(idx)
	if !ok || obj.Kind != value.ObjectStruct {
		return vmerr.New(vmerr.TypeMismatch, "LoadField target is not a struct")
	}

	if off, ok := i.table.Cache.FieldOffset(obj.StructName, field); ok {
		if name, ok := obj.FieldNameAt(off); ok && name == field {
			if v, ok := obj.FieldAt(off); ok {
				i.push(v)
				frame.InstrIdx++
				return nil
			}
		}
		// The cached offset doesn't describe this instance's own field
		// order (a differently-ordered literal of the same struct name)
		// — fall through to this object's own lookup rather than trust
		// an offset that belongs to a different layout.
	}

	off, ok := obj.FieldOffset(field)
	if !ok {
		return vmerr.New(vmerr.UnknownField, "struct %s has no field %q", obj.StructName, field)
	}
	i.table.Cache.CacheFieldOffset(obj.StructName, field, off)
	v, _ := obj.FieldAt(off)
	i.push(v)
	frame.InstrIdx++
	return nil
}

func (i *Interp) dispatchCall(frame *Frame, fn *specializer.Function, g ir.Instruction) (*value.Value, error) {
	args, err := i.popArgs(g.Argc)
	if err != nil {
		return nil, err
	}

	site := hotpath.CallSite{Func: frame.FuncName, Block: fn.Blocks[frame.BlockIdx].Label, Instr: frame.InstrIdx}
	calleeName := g.StrVal
	if cached, ok := i.table.Cache.ResolveCallee(site); ok {
		calleeName = cached
	} else {
		i.table.Cache.CacheCallee(site, calleeName)
	}

	if i.table.Tracker.RecordCall(calleeName) {
		i.table.CompileIfHot(calleeName)
	}

	if native, ok := i.table.Native(calleeName); ok {
		result, err := i.callNative(native, args)
		if err != nil {
			return nil, err
		}
		i.push(result)
		frame.InstrIdx++
		return nil, nil
	}

	callee, ok := i.table.Lookup(calleeName)
	if !ok {
		return nil, vmerr.New(vmerr.UnknownFunction, "unknown function %q", calleeName)
	}
	if len(args) != len(callee.Params) {
		return nil, vmerr.New(vmerr.CallArityMismatch, "%s expects %d args, got %d", callee.Name, len(callee.Params), len(args))
	}

	// The current frame survives on the call stack; a new frame for the
	// callee is pushed on top of it (Frame snapshotting via push/pop on
	// i.frames, not an explicit locals-snapshot struct).
	frame.InstrIdx++
	callFrame := NewFrame(callee.Name, callee.MaxSlot()+1)
	copy(callFrame.Slots, args)
	i.frames = append(i.frames, callFrame)
	return nil, nil
}

func (i *Interp) dispatchSpawn(frame *Frame, g ir.Instruction) error {
	args, err := i.popArgs(g.Argc)
	if err != nil {
		return err
	}
	if i.host == nil {
		return fmt.Errorf("vm: Spawn requires an actor host")
	}
	id, err := i.host.Spawn(g.StrVal, args)
	if err != nil {
		return err
	}
	i.push(value.Actor(id))
	frame.InstrIdx++
	return nil
}

// fnBlockIndex resolves label against the function frame is currently
// executing.
func fnBlockIndex(i *Interp, frame *Frame, label string) (int, bool) {
	fn, ok := i.table.Lookup(frame.FuncName)
	if !ok {
		return -1, false
	}
	return fn.BlockIndex(label)
}
