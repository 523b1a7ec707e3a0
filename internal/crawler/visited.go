package crawler

import "sync"

// VisitedSet records the addresses an engine has fetched successfully.
// It only grows. Addresses are compared as exact strings.
//
// The set is safe for concurrent use so that a future parallel fetcher
// still fetches each address at most once.
type VisitedSet struct {
	mu    sync.RWMutex
	seen  map[string]struct{}
	order []string
}

// NewVisitedSet returns an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{seen: make(map[string]struct{})}
}

// Contains reports whether address has been added.
func (v *VisitedSet) Contains(address string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.seen[address]
	return ok
}

// Add inserts address and reports whether it was not yet present.
func (v *VisitedSet) Add(address string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.seen[address]; ok {
		return false
	}
	v.seen[address] = struct{}{}
	v.order = append(v.order, address)
	return true
}

// Len returns the number of addresses in the set.
func (v *VisitedSet) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.order)
}

// Addresses returns the addresses in the order they were added.
func (v *VisitedSet) Addresses() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]string, len(v.order))
	copy(out, v.order)
	return out
}
