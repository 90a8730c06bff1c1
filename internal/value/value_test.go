package value

import "testing"

func TestValueConstructorsAndAccessors(t *testing.T) {
	if v := Int(42); v.Kind() != KindInt {
		t.Fatalf("Int: got kind %v", v.Kind())
	} else if i, ok := v.Int(); !ok || i != 42 {
		t.Fatalf("Int: got %d,%v", i, ok)
	}

	if v := Bool(true); v.Kind() != KindBool {
		t.Fatalf("Bool: got kind %v", v.Kind())
	} else if b, ok := v.Bool(); !ok || !b {
		t.Fatalf("Bool: got %v,%v", b, ok)
	}

	if v := Unit(); v.Kind() != KindUnit {
		t.Fatalf("Unit: got kind %v", v.Kind())
	}

	if v := Object(7); v.Kind() != KindObject {
		t.Fatalf("Object: got kind %v", v.Kind())
	} else if idx, ok := v.HeapIndex(); !ok || idx != 7 {
		t.Fatalf("Object: got %d,%v", idx, ok)
	}

	if v := Actor(3); v.Kind() != KindActor {
		t.Fatalf("Actor: got kind %v", v.Kind())
	} else if id, ok := v.ActorID(); !ok || id != 3 {
		t.Fatalf("Actor: got %d,%v", id, ok)
	}
}

func TestValueWrongAccessorFails(t *testing.T) {
	v := Int(1)
	if _, ok := v.Bool(); ok {
		t.Fatal("expected Bool() to fail on an Int value")
	}
	if _, ok := v.Float(); ok {
		t.Fatal("expected Float() to fail on an Int value")
	}
}

func TestValueEqual(t *testing.T) {
	if !Int(5).Equal(Int(5)) {
		t.Fatal("5 == 5 should hold")
	}
	if Int(5).Equal(Int(6)) {
		t.Fatal("5 == 6 should not hold")
	}
	if Int(1).Equal(Bool(true)) {
		t.Fatal("cross-kind values should never be equal")
	}
	if !Float(1.5).Equal(Float(1.5)) {
		t.Fatal("1.5 == 1.5 should hold")
	}
}
