package duplicates

// PairRegistry tracks which pairs have been claimed during a run. The first
// heuristic to claim a pair owns it; later heuristics skip it.
type PairRegistry struct {
	seen map[PairKey]struct{}
}

// NewPairRegistry creates an empty registry.
func NewPairRegistry() *PairRegistry {
	return &PairRegistry{seen: make(map[PairKey]struct{})}
}

// Claim records the pair and reports whether it was newly claimed. Order of
// a and b does not matter. A record is never paired with itself.
func (r *PairRegistry) Claim(entityType EntityType, a, b string) bool {
	if a == b {
		return false
	}
	id1, id2 := CanonicalOrder(a, b)
	key := PairKey{EntityType: entityType, ID1: id1, ID2: id2}
	if _, ok := r.seen[key]; ok {
		return false
	}
	r.seen[key] = struct{}{}
	return true
}

// Claimed reports whether the pair has already been claimed.
func (r *PairRegistry) Claimed(entityType EntityType, a, b string) bool {
	id1, id2 := CanonicalOrder(a, b)
	_, ok := r.seen[PairKey{EntityType: entityType, ID1: id1, ID2: id2}]
	return ok
}

// Len returns the number of claimed pairs.
func (r *PairRegistry) Len() int {
	return len(r.seen)
}
