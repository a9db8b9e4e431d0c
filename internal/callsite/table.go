// Package callsite implements the call-site hash table: the primary
// aggregation structure that maps a sampled allocation's stack trace to
// cumulative and live byte/allocation statistics.
package callsite

import "sync"

// NBuckets is the number of buckets in the table, chosen to match
// TCMalloc's own allocation-site table size.
const NBuckets = 179999

// MaxFrames bounds the number of stack frames retained per site; deeper
// traces are truncated and any other trace sharing the same truncated
// prefix is aggregated into the same Site.
const MaxFrames = 100

// MethodID is an opaque, host-runtime-assigned identifier for a single
// method. It carries no meaning within this package beyond identity and
// hashability.
type MethodID uintptr

// Site is one distinct call-stack observed at sampled-allocation time.
// All fields are mutated only while the owning Table's mutex is held.
type Site struct {
	Hash    uint64
	Stack   []MethodID
	Active  bool
	next    *Site

	NumAllocs int64
	NumBytes  int64
}

// Hash computes the spec's call-site hash over a stack of method
// identifiers: an adaptation of the hash used by Google's allocator
// samplers (e.g. TCMalloc), folding each frame's identifier into a
// running 64-bit state and finalizing with a couple of avalanche steps.
func Hash(stack []MethodID) uint64 {
	var h uint64
	for _, m := range stack {
		h += uint64(m)
		h += h << 10
		h ^= h >> 6
	}
	h += h << 3
	h ^= h >> 11
	return h
}

// Table is the fixed-size, open-chained call-site hash table. All
// operations — lookup, insert, counter mutation, clear and serialization
// — execute under Table's own mutex, the single "table mutex" described
// by the spec's concurrency model. Agent-level state sharing the same
// mutex discipline (vm_started, class_count) may also lock a Table
// directly via Lock/Unlock.
type Table struct {
	mu      sync.Locker
	buckets [NBuckets]*Site
}

// New returns an empty Table guarded by a plain sync.Mutex.
func New() *Table {
	return &Table{mu: &sync.Mutex{}}
}

// NewWithLocker returns an empty Table guarded by l instead of an
// internal mutex — used by the agent to back the table's critical
// section with a host-runtime raw monitor via a ScopedMutex, per
// spec.md §4.1/§4.3.
func NewWithLocker(l sync.Locker) *Table {
	return &Table{mu: l}
}

// Lock acquires the table mutex. Exposed so that callers needing to
// protect state that shares this mutex's discipline (e.g. the
// instrumentation orchestrator's class counter) can do so without a
// second lock.
func (t *Table) Lock() { t.mu.Lock() }

// Unlock releases the table mutex.
func (t *Table) Unlock() { t.mu.Unlock() }

// FindOrInsert returns the Site for stack, creating one if none exists
// yet. Must be called with the table mutex held.
func (t *Table) FindOrInsert(stack []MethodID) *Site {
	if len(stack) > MaxFrames {
		stack = stack[:MaxFrames]
	}
	h := Hash(stack)
	bucket := h % NBuckets

	for s := t.buckets[bucket]; s != nil; s = s.next {
		if s.Hash == h && sameStack(s.Stack, stack) {
			return s
		}
	}

	cp := make([]MethodID, len(stack))
	copy(cp, stack)
	s := &Site{Hash: h, Stack: cp, Active: true, next: t.buckets[bucket]}
	t.buckets[bucket] = s
	return s
}

func sameStack(a, b []MethodID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Clear deactivates every live site (destroying those already at zero
// live bytes) and replaces the bucket array with a fresh, empty one.
// Sites kept alive by outstanding allocations remain reachable only
// through those allocations' back-pointers, not through the table —
// see Free for the other half of that lifecycle.
func (t *Table) Clear() {
	for i := range t.buckets {
		s := t.buckets[i]
		for s != nil {
			next := s.next
			if s.NumBytes == 0 {
				// Destroyed immediately: nothing references it anymore.
			} else {
				s.Active = false
			}
			s = next
		}
		t.buckets[i] = nil
	}
}

// Record increments num_allocs and adds size to num_bytes for site s.
// Must be called with the table mutex held.
func (t *Table) Record(s *Site, size int64) {
	s.NumAllocs++
	s.NumBytes += size
}

// Free subtracts size from s.NumBytes, as observed by the free hook for
// a previously-tagged allocation. If s is no longer active and has no
// remaining live bytes, it is orphaned — nothing in the table points to
// it any longer (it may already have been unlinked by Clear), so there
// is nothing further to unlink here. Must be called with the table
// mutex held.
func (t *Table) Free(s *Site, size int64) {
	s.NumBytes -= size
}

// Orphaned reports whether s has been marked inactive by Clear and has
// no remaining live bytes — the condition under which its last
// reference (an outstanding Allocation) may be dropped.
func Orphaned(s *Site) bool {
	return !s.Active && s.NumBytes == 0
}

// Each invokes fn for every site currently in the table, in unspecified
// order. Must be called with the table mutex held.
func (t *Table) Each(fn func(*Site)) {
	for _, head := range t.buckets {
		for s := head; s != nil; s = s.next {
			fn(s)
		}
	}
}
