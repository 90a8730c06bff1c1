package ir

import "testing"

func TestBlockIndex(t *testing.T) {
	f := &Function{
		Name: "fact",
		Blocks: []Block{
			{Label: "entry"},
			{Label: "then_0"},
			{Label: "else_0"},
		},
	}

	if idx, ok := f.BlockIndex("else_0"); !ok || idx != 2 {
		t.Fatalf("expected else_0 at index 2, got %d,%v", idx, ok)
	}
	if _, ok := f.BlockIndex("missing"); ok {
		t.Fatal("expected missing label to fail to resolve")
	}
}

func TestOpString(t *testing.T) {
	if OpAdd.String() != "Add" {
		t.Fatalf("got %q", OpAdd.String())
	}
	if Op(999).String() != "Unknown" {
		t.Fatalf("got %q", Op(999).String())
	}
}
