package hotpath

import "sync"

// CallSite identifies a single Call/TailCall instruction's position,
// used as the inline cache key for call-site -> resolved callee.
type CallSite struct {
	Func  string
	Block string
	Instr int
}

// fieldKey identifies a (struct type, field name) pair.
type fieldKey struct {
	Type  string
	Field string
}

// InlineCache holds the three independent, monomorphic caches described
// by the hot-path design: entries are written once and never invalidated,
// since the language has no runtime monkey-patching that could make a
// cached resolution stale.
type InlineCache struct {
	mu           sync.RWMutex
	callees      map[CallSite]string
	fieldOffsets map[fieldKey]int
	varSlots     map[string]int // keyed by "funcName\x00varName"
}

// NewInlineCache returns an empty InlineCache.
func NewInlineCache() *InlineCache {
	return &InlineCache{
		callees:      make(map[CallSite]string),
		fieldOffsets: make(map[fieldKey]int),
		varSlots:     make(map[string]int),
	}
}

// ResolveCallee returns the cached callee for site, if one has already
// been resolved.
func (c *InlineCache) ResolveCallee(site CallSite) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.callees[site]
	return name, ok
}

// CacheCallee records site's resolved callee. The first resolution wins;
// later calls are no-ops, matching the monomorphic-cache contract.
func (c *InlineCache) CacheCallee(site CallSite, callee string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.callees[site]; ok {
		return
	}
	c.callees[site] = callee
}

// FieldOffset returns the cached offset for (typeName, field), if any.
func (c *InlineCache) FieldOffset(typeName, field string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	off, ok := c.fieldOffsets[fieldKey{typeName, field}]
	return off, ok
}

// CacheFieldOffset records the offset for (typeName, field).
func (c *InlineCache) CacheFieldOffset(typeName, field string, offset int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := fieldKey{typeName, field}
	if _, ok := c.fieldOffsets[key]; ok {
		return
	}
	c.fieldOffsets[key] = offset
}

// VarSlot returns the cached slot for a variable name within a function,
// used by the interpreter's Generic(LoadVar) fallback path.
func (c *InlineCache) VarSlot(funcName, varName string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	slot, ok := c.varSlots[funcName+"\x00"+varName]
	return slot, ok
}

// CacheVarSlot records the slot for a variable name within a function.
func (c *InlineCache) CacheVarSlot(funcName, varName string, slot int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := funcName + "\x00" + varName
	if _, ok := c.varSlots[key]; ok {
		return
	}
	c.varSlots[key] = slot
}
