package specializer

import (
	"testing"

	"github.com/kabudu/groklang/internal/ir"
)

func addFunc() *ir.Function {
	return &ir.Function{
		Name:   "add",
		Params: []string{"a", "b"},
		Blocks: []ir.Block{
			{Label: "entry", Instructions: []ir.Instruction{
				ir.LoadVar("a"),
				ir.LoadVar("b"),
				ir.Add(),
				ir.Ret(),
			}},
		},
	}
}

func TestSpecializeParamLoadsBecomeFastLoads(t *testing.T) {
	out := New().Specialize(addFunc())
	entry := out.Blocks[0].Instructions

	if entry[0].Op != OpLoadLocalFast || entry[0].Slot != 0 {
		t.Fatalf("expected LoadLocalFast(0) for 'a', got %+v", entry[0])
	}
	if entry[1].Op != OpLoadLocalFast || entry[1].Slot != 1 {
		t.Fatalf("expected LoadLocalFast(1) for 'b', got %+v", entry[1])
	}
	if entry[2].Op != OpIntAdd {
		t.Fatalf("expected IntAdd, got %+v", entry[2])
	}
	if entry[3].Op != OpGeneric || entry[3].Generic.Op != ir.OpRet {
		t.Fatalf("expected Generic(Ret), got %+v", entry[3])
	}
}

func TestSpecializeStoreVarAssignsMonotonicSlots(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []ir.Block{
			{Label: "entry", Instructions: []ir.Instruction{
				ir.PushInt(1),
				ir.StoreVar("x"),
				ir.PushInt(2),
				ir.StoreVar("y"),
				ir.LoadVar("x"),
				ir.Ret(),
			}},
		},
	}
	out := New().Specialize(fn)
	instrs := out.Blocks[0].Instructions

	if instrs[1].Op != OpStoreLocalFast || instrs[1].Slot != 0 {
		t.Fatalf("expected x at slot 0, got %+v", instrs[1])
	}
	if instrs[3].Op != OpStoreLocalFast || instrs[3].Slot != 1 {
		t.Fatalf("expected y at slot 1, got %+v", instrs[3])
	}
	if instrs[4].Op != OpLoadLocalFast || instrs[4].Slot != 0 {
		t.Fatalf("expected load of x to reuse slot 0, got %+v", instrs[4])
	}
}

func TestSpecializeLoadVarBeforeStoreStaysGeneric(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []ir.Block{
			{Label: "entry", Instructions: []ir.Instruction{
				ir.LoadVar("never_stored"),
				ir.Ret(),
			}},
		},
	}
	out := New().Specialize(fn)
	if out.Blocks[0].Instructions[0].Op != OpGeneric {
		t.Fatalf("expected Generic fallback for unknown variable, got %+v", out.Blocks[0].Instructions[0])
	}
}

func TestSpecializeSmallIntVsGenericPushInt(t *testing.T) {
	fn := &ir.Function{
		Blocks: []ir.Block{
			{Label: "entry", Instructions: []ir.Instruction{
				ir.PushInt(127),
				ir.PushInt(128),
				ir.PushInt(-128),
				ir.PushInt(-129),
				ir.Ret(),
			}},
		},
	}
	out := New().Specialize(fn)
	instrs := out.Blocks[0].Instructions

	if instrs[0].Op != OpPushSmallInt || instrs[0].IntVal != 127 {
		t.Fatalf("127 should specialize, got %+v", instrs[0])
	}
	if instrs[1].Op != OpGeneric {
		t.Fatalf("128 should stay generic, got %+v", instrs[1])
	}
	if instrs[2].Op != OpPushSmallInt || instrs[2].IntVal != -128 {
		t.Fatalf("-128 should specialize, got %+v", instrs[2])
	}
	if instrs[3].Op != OpGeneric {
		t.Fatalf("-129 should stay generic, got %+v", instrs[3])
	}
}

func TestSpecializeTailCallDetectionIsIntraBlockOnly(t *testing.T) {
	tail := &ir.Function{
		Blocks: []ir.Block{
			{Label: "entry", Instructions: []ir.Instruction{
				ir.LoadVar("n"),
				ir.Call("fact", 1),
				ir.Ret(),
			}},
		},
		Params: []string{"n"},
	}
	out := New().Specialize(tail)
	if out.Blocks[0].Instructions[1].Op != OpTailCall {
		t.Fatalf("expected Call immediately followed by Ret to become TailCall, got %+v", out.Blocks[0].Instructions[1])
	}

	notTail := &ir.Function{
		Blocks: []ir.Block{
			{Label: "entry", Instructions: []ir.Instruction{
				ir.Call("fact", 0),
				ir.Jmp("other"),
			}},
			{Label: "other", Instructions: []ir.Instruction{
				ir.Ret(),
			}},
		},
	}
	out2 := New().Specialize(notTail)
	if out2.Blocks[0].Instructions[0].Op != OpGeneric {
		t.Fatalf("call split across blocks from its Ret must not become TailCall, got %+v", out2.Blocks[0].Instructions[0])
	}
}

func TestSpecializeIsIdempotent(t *testing.T) {
	fn := addFunc()
	a := New().Specialize(fn)
	b := New().Specialize(fn)

	if len(a.Blocks) != len(b.Blocks) {
		t.Fatalf("block count differs between runs")
	}
	for bi := range a.Blocks {
		if len(a.Blocks[bi].Instructions) != len(b.Blocks[bi].Instructions) {
			t.Fatalf("instruction count differs in block %d", bi)
		}
		for ii := range a.Blocks[bi].Instructions {
			ai, bi2 := a.Blocks[bi].Instructions[ii], b.Blocks[bi].Instructions[ii]
			if ai.Op != bi2.Op || ai.Slot != bi2.Slot || ai.IntVal != bi2.IntVal {
				t.Fatalf("instruction %d in block %d differs: %+v vs %+v", ii, bi, ai, bi2)
			}
		}
	}
}
