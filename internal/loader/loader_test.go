package loader

import (
	"testing"

	"github.com/kabudu/groklang/internal/ir"
	"github.com/kabudu/groklang/internal/value"
)

func TestLoaderExecuteAdd(t *testing.T) {
	add := &ir.Function{
		Name:   "add",
		Params: []string{"a", "b"},
		Blocks: []ir.Block{
			{Label: "entry", Instructions: []ir.Instruction{
				ir.LoadVar("a"), ir.LoadVar("b"), ir.Add(), ir.Ret(),
			}},
		},
	}
	l, err := New([]*ir.Function{add}, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := l.Execute("add", []value.Value{value.Int(40), value.Int(2)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n, _ := got.Int(); n != 42 {
		t.Fatalf("expected 42, got %v", got)
	}
}

func TestLoaderRejectsDuplicateFunctionName(t *testing.T) {
	fn := &ir.Function{Name: "f", Blocks: []ir.Block{{Label: "entry", Instructions: []ir.Instruction{ir.Ret()}}}}
	_, err := New([]*ir.Function{fn, fn}, Options{})
	if err == nil {
		t.Fatal("expected an error for duplicate function names")
	}
}

func TestLoaderRejectsDuplicateBlockLabel(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []ir.Block{
			{Label: "entry", Instructions: []ir.Instruction{ir.Ret()}},
			{Label: "entry", Instructions: []ir.Instruction{ir.Ret()}},
		},
	}
	_, err := New([]*ir.Function{fn}, Options{})
	if err == nil {
		t.Fatal("expected an error for duplicate block labels")
	}
}

func TestLoaderRejectsUnknownJumpTarget(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []ir.Block{
			{Label: "entry", Instructions: []ir.Instruction{ir.Jmp("nowhere")}},
		},
	}
	_, err := New([]*ir.Function{fn}, Options{})
	if err == nil {
		t.Fatal("expected an error for an unresolved jump target")
	}
}

func TestLoaderRecursiveFactorial(t *testing.T) {
	fact := &ir.Function{
		Name:   "fact",
		Params: []string{"n"},
		Blocks: []ir.Block{
			{Label: "entry", Instructions: []ir.Instruction{
				ir.LoadVar("n"), ir.PushInt(1), ir.Eq(), ir.JmpIfFalse("recurse"),
				ir.PushInt(1), ir.Ret(),
			}},
			{Label: "recurse", Instructions: []ir.Instruction{
				ir.LoadVar("n"),
				ir.LoadVar("n"), ir.PushInt(1), ir.Sub(), ir.Call("fact", 1),
				ir.Mul(), ir.Ret(),
			}},
		},
	}
	main := &ir.Function{
		Name: "main",
		Blocks: []ir.Block{
			{Label: "entry", Instructions: []ir.Instruction{
				ir.PushInt(5), ir.Call("fact", 1), ir.Ret(),
			}},
		},
	}
	l, err := New([]*ir.Function{fact, main}, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := l.Execute("main", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n, _ := got.Int(); n != 120 {
		t.Fatalf("expected 120, got %v", got)
	}
}
