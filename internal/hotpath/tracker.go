// Package hotpath implements the call-count tracker that decides when a
// function crosses the promotion threshold, and the three inline caches
// (call site, struct field offset, variable slot) consulted by the
// interpreter. The specializer neither reads nor fills these caches.
package hotpath

import "sync"

// DefaultThreshold is the call count at which a function is promoted to
// hot, matching the "100 by default" guidance.
const DefaultThreshold = 100

// Tracker counts calls per function name and remembers which names have
// crossed the promotion threshold.
type Tracker struct {
	mu        sync.Mutex
	threshold uint64
	counts    map[string]uint64
	hot       map[string]bool
}

// NewTracker returns a Tracker promoting functions once their call count
// reaches threshold. A threshold of 0 uses DefaultThreshold.
func NewTracker(threshold uint64) *Tracker {
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	return &Tracker{
		threshold: threshold,
		counts:    make(map[string]uint64),
		hot:       make(map[string]bool),
	}
}

// RecordCall increments name's call count and reports true exactly the
// first time that count reaches the threshold.
func (t *Tracker) RecordCall(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[name]++
	if t.counts[name] == t.threshold && !t.hot[name] {
		t.hot[name] = true
		return true
	}
	return false
}

// IsHot reports whether name has previously crossed the threshold.
func (t *Tracker) IsHot(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hot[name]
}

// CallCount returns name's current call count (0 if never called).
func (t *Tracker) CallCount(name string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[name]
}
