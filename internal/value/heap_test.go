package value

import "testing"

func TestHeapAllocGetFreeListReuse(t *testing.T) {
	h := NewHeap()
	a := h.Alloc(NewString("hello"))
	b := h.Alloc(NewString("world"))
	if a == b {
		t.Fatal("distinct allocations must get distinct indices")
	}

	h.GC(nil) // nothing reachable: both slots should be freed
	if h.Live() != 0 {
		t.Fatalf("expected 0 live objects after unrooted GC, got %d", h.Live())
	}

	c := h.Alloc(NewString("reused"))
	if c != a && c != b {
		t.Fatalf("expected free-list reuse, got fresh index %d", c)
	}
}

func TestHeapGCKeepsReachableFreesUnreachable(t *testing.T) {
	h := NewHeap()
	kept := h.Alloc(NewString("kept"))
	dropped := h.Alloc(NewString("dropped"))

	h.GC([]Value{Object(kept)})

	if _, ok := h.Get(kept); !ok {
		t.Fatal("rooted object must survive GC")
	}
	if _, ok := h.Get(dropped); ok {
		t.Fatal("unrooted object must be freed by GC")
	}
}

func TestHeapGCTraversesStructFieldsAndCycles(t *testing.T) {
	h := NewHeap()
	// Build a two-node cycle: a.next = b, b.next = a.
	aIdx := h.Alloc(&Object{Kind: ObjectStruct, StructName: "Node", Fields: map[string]Value{}})
	bIdx := h.Alloc(&Object{Kind: ObjectStruct, StructName: "Node", Fields: map[string]Value{}})

	aObj, _ := h.Get(aIdx)
	bObj, _ := h.Get(bIdx)
	aObj.Fields["next"] = Object(bIdx)
	bObj.Fields["next"] = Object(aIdx)

	str := h.Alloc(NewString("leaf"))
	aObj.Fields["label"] = Object(str)

	h.GC([]Value{Object(aIdx)})

	if h.Live() != 3 {
		t.Fatalf("expected cycle + leaf (3 objects) to survive, got %d live", h.Live())
	}
}

func TestObjectFieldOffsetCache(t *testing.T) {
	o := NewStruct("Point", []string{"x", "y"}, []Value{Int(1), Int(2)})
	offX, ok := o.FieldOffset("x")
	if !ok {
		t.Fatal("expected field x to resolve")
	}
	offX2, _ := o.FieldOffset("x")
	if offX != offX2 {
		t.Fatal("resolving the same field twice must return the same offset")
	}
	v, ok := o.FieldAt(offX)
	if !ok || v != Int(1) {
		t.Fatalf("expected FieldAt to return x's value, got %v,%v", v, ok)
	}
	if _, ok := o.FieldOffset("missing"); ok {
		t.Fatal("expected missing field to fail to resolve")
	}
}

func TestObjectFieldOffsetStableAcrossInstances(t *testing.T) {
	// Two Points built with the same declared field order must agree on
	// offsets even though this instance is never queried for "x" at all —
	// the offset comes from construction order, not query order.
	a := NewStruct("Point", []string{"x", "y"}, []Value{Int(1), Int(2)})
	b := NewStruct("Point", []string{"x", "y"}, []Value{Int(10), Int(20)})

	offAX, _ := a.FieldOffset("x")
	offBX, _ := b.FieldOffset("x")
	if offAX != offBX {
		t.Fatalf("expected matching instances of Point to share field offsets, got %d and %d", offAX, offBX)
	}

	name, ok := b.FieldNameAt(offAX)
	if !ok || name != "x" {
		t.Fatalf("expected offset %d to name x on b, got %q,%v", offAX, name, ok)
	}
	if v, ok := b.FieldAt(offAX); !ok || v != Int(10) {
		t.Fatalf("expected FieldAt(%d) on b to return 10, got %v,%v", offAX, v, ok)
	}
}
