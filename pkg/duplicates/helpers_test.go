package duplicates

import (
	"testing"
	"time"
)

func date(t *testing.T, s string) *time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("bad date %q: %v", s, err)
	}
	return &d
}

func activity(id, title, org string) ActivityRecord {
	return ActivityRecord{ID: id, Title: title, OwningOrganizationID: org}
}

func pairsByKey(pairs []Pair) map[PairKey]Pair {
	m := make(map[PairKey]Pair, len(pairs))
	for _, p := range pairs {
		m[p.Key()] = p
	}
	return m
}

// stripTimes zeroes DetectedAt so reruns can be compared field by field.
func stripTimes(pairs []Pair) []Pair {
	out := make([]Pair, len(pairs))
	for i, p := range pairs {
		p.DetectedAt = time.Time{}
		out[i] = p
	}
	return out
}
