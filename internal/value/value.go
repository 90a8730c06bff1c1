// Package value implements the tagged runtime value representation and
// the mark-sweep heap that backs boxed objects (strings and structs).
package value

import "fmt"

// Kind tags the variant held by a Value.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindBool
	KindUnit
	KindObject
	KindActor
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindBool:
		return "Bool"
	case KindUnit:
		return "Unit"
	case KindObject:
		return "Object"
	case KindActor:
		return "Actor"
	default:
		return "Unknown"
	}
}

// HeapIndex addresses a slot in a Heap. Indices are stable for the
// lifetime of the object they name; the heap never compacts.
type HeapIndex int

// ActorID uniquely identifies an entry in the actor registry.
type ActorID uint64

// Value is a small, by-value-copyable tagged union. Only Object and Actor
// variants carry identity; everything else is a plain value.
type Value struct {
	kind  Kind
	i     int64
	f     float64
}

// Int constructs an Int value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float constructs a Float value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Bool constructs a Bool value.
func Bool(v bool) Value {
	var i int64
	if v {
		i = 1
	}
	return Value{kind: KindBool, i: i}
}

// Unit constructs the Unit value.
func Unit() Value { return Value{kind: KindUnit} }

// Object constructs a Value referring to a heap entry.
func Object(idx HeapIndex) Value { return Value{kind: KindObject, i: int64(idx)} }

// Actor constructs a Value referring to an actor registry entry.
func Actor(id ActorID) Value { return Value{kind: KindActor, i: int64(id)} }

// Kind reports the variant held.
func (v Value) Kind() Kind { return v.kind }

// Int returns the Int payload, and whether v actually holds one.
func (v Value) Int() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// Float returns the Float payload, and whether v actually holds one.
func (v Value) Float() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.f, true
}

// Bool returns the Bool payload, and whether v actually holds one.
func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.i != 0, true
}

// HeapIndex returns the Object payload, and whether v actually holds one.
func (v Value) HeapIndex() (HeapIndex, bool) {
	if v.kind != KindObject {
		return 0, false
	}
	return HeapIndex(v.i), true
}

// ActorID returns the Actor payload, and whether v actually holds one.
func (v Value) ActorID() (ActorID, bool) {
	if v.kind != KindActor {
		return 0, false
	}
	return ActorID(v.i), true
}

// Equal implements the equality used by Eq/Ne: same kind and same
// payload. Cross-kind comparisons (e.g. Int vs Bool) are never equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindFloat:
		return v.f == o.f
	default:
		return v.i == o.i
	}
}

// String renders v for debugging and for values embedded in struct
// fields reachable from a program's result.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindBool:
		return fmt.Sprintf("%t", v.i != 0)
	case KindUnit:
		return "()"
	case KindObject:
		return fmt.Sprintf("Object(%d)", v.i)
	case KindActor:
		return fmt.Sprintf("Actor(%d)", v.i)
	default:
		return "<invalid>"
	}
}
