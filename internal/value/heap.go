package value

import "sync"

// ObjectKind tags the variant of a boxed HeapObject.
type ObjectKind int

const (
	ObjectString ObjectKind = iota
	ObjectStruct
)

// Object is a boxed heap entry: either a string or a struct with named
// fields. Fields may themselves be Object values, so structs can form
// cycles through heap indices; mark-sweep tolerates this naturally since
// it walks a graph of indices rather than a graph of pointers.
type Object struct {
	Kind       ObjectKind
	Str        string
	StructName string
	Fields     map[string]Value

	// fastOrder/fastFields mirror Fields in the struct's declaration
	// order, fixed at construction time (there is no field-store opcode,
	// so a struct's field order never changes after NewStruct). This is
	// what lets a (type, field) -> offset inline cache entry mean the
	// same offset for every instance of that type: the offset depends
	// only on the type's declared field order, never on which field a
	// particular instance happened to be queried for first.
	fastOrder  []string
	fastFields []Value
}

// NewString builds a String heap object.
func NewString(s string) *Object {
	return &Object{Kind: ObjectString, Str: s}
}

// NewStruct builds a Struct heap object from ordered field names and
// already-popped values (both in field-declaration order). fastOrder is
// seeded directly from fieldNames so every instance of the same struct
// type built from the same declaration gets the same offset assignment.
func NewStruct(name string, fieldNames []string, fieldValues []Value) *Object {
	fields := make(map[string]Value, len(fieldNames))
	for i, n := range fieldNames {
		fields[n] = fieldValues[i]
	}
	return &Object{
		StructName: name,
		Kind:       ObjectStruct,
		Fields:     fields,
		fastOrder:  append([]string(nil), fieldNames...),
		fastFields: append([]Value(nil), fieldValues...),
	}
}

// FieldOffset returns the stable slice index of name within o's
// declaration-order field mirror. It is the concrete backing for the
// hot-path tracker's (type, field) -> offset cache.
func (o *Object) FieldOffset(name string) (int, bool) {
	if o.Kind != ObjectStruct {
		return 0, false
	}
	for i, n := range o.fastOrder {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// FieldAt returns the value at a previously resolved offset.
func (o *Object) FieldAt(offset int) (Value, bool) {
	if offset < 0 || offset >= len(o.fastFields) {
		return Value{}, false
	}
	return o.fastFields[offset], true
}

// FieldNameAt returns the field name declared at offset in o's own
// field order, if any. A caller holding an offset resolved against a
// different instance of the same struct type must check this before
// trusting the offset, in case that instance was built from a
// differently-ordered field list.
func (o *Object) FieldNameAt(offset int) (string, bool) {
	if offset < 0 || offset >= len(o.fastOrder) {
		return "", false
	}
	return o.fastOrder[offset], true
}

// Heap is a sparse, non-compacting store of boxed objects with a
// mark-sweep collector. It is shared across every actor running against
// the same program, guarded by mu per the shared-heap concurrency model.
type Heap struct {
	mu       sync.Mutex
	slots    []*Object
	marked   []bool
	freeList []HeapIndex
}

// NewHeap returns an empty heap.
func NewHeap() *Heap {
	return &Heap{}
}

// Alloc stores obj, reusing a free-list slot when one is available, and
// returns its stable index.
func (h *Heap) Alloc(obj *Object) HeapIndex {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := len(h.freeList); n > 0 {
		idx := h.freeList[n-1]
		h.freeList = h.freeList[:n-1]
		h.slots[idx] = obj
		h.marked[idx] = false
		return idx
	}
	idx := HeapIndex(len(h.slots))
	h.slots = append(h.slots, obj)
	h.marked = append(h.marked, false)
	return idx
}

// Get returns the object at idx, or ok=false if the slot is free or out
// of range.
func (h *Heap) Get(idx HeapIndex) (*Object, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if idx < 0 || int(idx) >= len(h.slots) || h.slots[idx] == nil {
		return nil, false
	}
	return h.slots[idx], true
}

// GC runs one mark-sweep cycle: mark reachability from roots (recursing
// into struct fields), then sweep unmarked occupied slots onto the free
// list. The mutator must be quiesced for the duration of the call — the
// interpreter only calls GC between instructions, never mid-dispatch.
func (h *Heap) GC(roots []Value) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.marked {
		h.marked[i] = false
	}
	for _, v := range roots {
		h.mark(v)
	}
	for i, obj := range h.slots {
		if obj != nil && !h.marked[i] {
			h.slots[i] = nil
			h.freeList = append(h.freeList, HeapIndex(i))
		}
	}
}

// mark must be called with h.mu held.
func (h *Heap) mark(v Value) {
	idx, ok := v.HeapIndex()
	if !ok {
		return
	}
	if int(idx) < 0 || int(idx) >= len(h.slots) {
		return
	}
	if h.marked[idx] {
		return
	}
	h.marked[idx] = true
	obj := h.slots[idx]
	if obj == nil || obj.Kind != ObjectStruct {
		return
	}
	for _, fv := range obj.Fields {
		h.mark(fv)
	}
}

// Live reports the number of currently occupied (non-freed) slots. Test
// and diagnostic helper only.
func (h *Heap) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, obj := range h.slots {
		if obj != nil {
			n++
		}
	}
	return n
}
