package duplicates

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store. It backs dry runs against fixture
// files and tests; failures can be injected per call.
type MemoryStore struct {
	mu            sync.Mutex
	activities    []ActivityRecord
	organizations []OrganizationRecord
	pairs         map[PairKey]Pair
	upsertCalls   int

	// ListActivitiesErr and ListOrganizationsErr fail the matching load.
	ListActivitiesErr    error
	ListOrganizationsErr error

	// UpsertErrs fails the upsert call with the given zero-based index.
	UpsertErrs map[int]error

	// DeleteErr fails DeleteDuplicates.
	DeleteErr error
}

// NewMemoryStore creates a store holding the given records.
func NewMemoryStore(activities []ActivityRecord, organizations []OrganizationRecord) *MemoryStore {
	return &MemoryStore{
		activities:    activities,
		organizations: organizations,
		pairs:         make(map[PairKey]Pair),
	}
}

// ListActivities returns a copy of the stored activities.
func (s *MemoryStore) ListActivities(ctx context.Context) ([]ActivityRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListActivitiesErr != nil {
		return nil, s.ListActivitiesErr
	}
	out := make([]ActivityRecord, len(s.activities))
	copy(out, s.activities)
	return out, nil
}

// ListOrganizations returns a copy of the stored organizations.
func (s *MemoryStore) ListOrganizations(ctx context.Context) ([]OrganizationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListOrganizationsErr != nil {
		return nil, s.ListOrganizationsErr
	}
	out := make([]OrganizationRecord, len(s.organizations))
	copy(out, s.organizations)
	return out, nil
}

// UpsertDuplicates validates and stores a batch. A failed batch stores
// nothing.
func (s *MemoryStore) UpsertDuplicates(ctx context.Context, pairs []Pair) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	call := s.upsertCalls
	s.upsertCalls++
	if err := s.UpsertErrs[call]; err != nil {
		return err
	}
	for _, p := range pairs {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	for _, p := range pairs {
		s.pairs[p.Key()] = p
	}
	return nil
}

// DeleteDuplicates removes stored pairs, optionally scoped to one type.
func (s *MemoryStore) DeleteDuplicates(ctx context.Context, entityType *EntityType) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return 0, s.DeleteErr
	}
	var n int64
	for k := range s.pairs {
		if entityType == nil || k.EntityType == *entityType {
			delete(s.pairs, k)
			n++
		}
	}
	return n, nil
}

// ListDuplicates returns stored pairs matching filter, ordered by entity
// type then ids.
func (s *MemoryStore) ListDuplicates(ctx context.Context, filter PairFilter) ([]Pair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Pair
	for _, p := range s.pairs {
		if filter.EntityType != nil && p.EntityType != *filter.EntityType {
			continue
		}
		if filter.DetectionType != nil && p.DetectionType != *filter.DetectionType {
			continue
		}
		if filter.SuggestedLinks != nil && p.IsSuggestedLink != *filter.SuggestedLinks {
			continue
		}
		out = append(out, p)
	}
	sortPairs(out)

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Pairs returns every stored pair in key order.
func (s *MemoryStore) Pairs() []Pair {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Pair, 0, len(s.pairs))
	for _, p := range s.pairs {
		out = append(out, p)
	}
	sortPairs(out)
	return out
}

// UpsertCalls returns how many times UpsertDuplicates was called.
func (s *MemoryStore) UpsertCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertCalls
}

func sortPairs(pairs []Pair) {
	sort.Slice(pairs, func(i, j int) bool {
		a, b := pairs[i], pairs[j]
		if a.EntityType != b.EntityType {
			return a.EntityType < b.EntityType
		}
		if a.ID1 != b.ID1 {
			return a.ID1 < b.ID1
		}
		return a.ID2 < b.ID2
	})
}
