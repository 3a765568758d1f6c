package duplicates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveDates(t *testing.T) {
	a := ActivityRecord{
		PlannedStart: date(t, "2024-01-01"),
		PlannedEnd:   date(t, "2024-12-31"),
		ActualStart:  date(t, "2024-02-15"),
	}

	r := EffectiveDates(a)
	assert.Equal(t, date(t, "2024-02-15"), r.Start, "actual start wins")
	assert.Equal(t, date(t, "2024-12-31"), r.End, "planned end fills the gap")

	assert.True(t, EffectiveDates(ActivityRecord{}).IsEmpty())
}

func TestDatesOverlap(t *testing.T) {
	policy := OverlapPolicy{Tolerance: DefaultDateTolerance, AssumeOverlapWhenMissing: true}
	rng := func(start, end string) DateRange {
		var r DateRange
		if start != "" {
			r.Start = date(t, start)
		}
		if end != "" {
			r.End = date(t, end)
		}
		return r
	}

	tests := []struct {
		name string
		a, b DateRange
		want bool
		how  Overlap
	}{
		{"both missing", DateRange{}, DateRange{}, true, OverlapAssumed},
		{"one missing", rng("2024-01-01", "2024-06-01"), DateRange{}, true, OverlapAssumed},
		{"full ranges intersect", rng("2024-01-01", "2024-06-01"), rng("2024-02-01", "2024-07-01"), true, OverlapRanges},
		{"full ranges touch", rng("2024-01-01", "2024-06-01"), rng("2024-06-01", "2024-07-01"), true, OverlapRanges},
		{"full ranges disjoint", rng("2024-01-01", "2024-02-01"), rng("2024-02-10", "2024-03-01"), false, OverlapNone},
		{"start inside widened range", rng("2024-01-01", "2024-06-01"), rng("2024-08-01", ""), true, OverlapStartInRange},
		{"start before widened range", rng("2024-06-01", "2024-12-01"), rng("2024-01-01", ""), false, OverlapNone},
		{"end inside full range", rng("2020-01-01", "2025-01-01"), rng("", "2024-06-01"), true, OverlapEndInRange},
		{"end inside widened range", rng("2024-01-01", "2024-06-01"), rng("", "2023-11-15"), true, OverlapEndInRange},
		{"end before widened range", rng("2024-06-01", "2024-12-01"), rng("", "2024-01-01"), false, OverlapNone},
		{"open starts close", rng("2024-01-01", ""), rng("2024-03-01", ""), true, OverlapStartsWithin},
		{"open starts far", rng("2024-01-01", ""), rng("2024-06-01", ""), false, OverlapNone},
		{"end only vs start only close", rng("", "2024-03-01"), rng("2024-04-01", ""), true, OverlapAnchorsWithin},
		{"end only vs end only far", rng("", "2023-01-01"), rng("", "2024-01-01"), false, OverlapNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, how := DatesOverlap(tt.a, tt.b, policy)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.how, how)

			// Overlap is symmetric.
			got, _ = DatesOverlap(tt.b, tt.a, policy)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDatesOverlap_MissingDatesPolicy(t *testing.T) {
	strict := OverlapPolicy{Tolerance: 90 * 24 * time.Hour, AssumeOverlapWhenMissing: false}
	got, how := DatesOverlap(DateRange{}, DateRange{Start: date(t, "2024-01-01")}, strict)
	assert.False(t, got)
	assert.Equal(t, OverlapNone, how)
}

func TestDatesOverlap_ZeroTolerance(t *testing.T) {
	policy := OverlapPolicy{}
	a := DateRange{Start: date(t, "2024-01-01")}
	b := DateRange{Start: date(t, "2024-01-01")}
	got, _ := DatesOverlap(a, b, policy)
	assert.True(t, got)

	b.Start = date(t, "2024-01-02")
	got, _ = DatesOverlap(a, b, policy)
	assert.False(t, got)
}
