package duplicates

import "time"

// DateRange is an activity's effective start and end dates.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// EffectiveDates prefers actual dates and falls back to planned dates,
// field by field.
func EffectiveDates(a ActivityRecord) DateRange {
	r := DateRange{Start: a.ActualStart, End: a.ActualEnd}
	if r.Start == nil {
		r.Start = a.PlannedStart
	}
	if r.End == nil {
		r.End = a.PlannedEnd
	}
	return r
}

// IsEmpty reports whether the range carries no dates at all.
func (r DateRange) IsEmpty() bool {
	return r.Start == nil && r.End == nil
}

func (r DateRange) isFull() bool {
	return r.Start != nil && r.End != nil
}

// anchor returns the single date used when only partial ranges exist.
func (r DateRange) anchor() time.Time {
	if r.Start != nil {
		return *r.Start
	}
	return *r.End
}

// OverlapPolicy configures DatesOverlap.
type OverlapPolicy struct {
	// Tolerance widens comparisons between partial ranges.
	Tolerance time.Duration

	// AssumeOverlapWhenMissing decides the outcome when either side has no
	// dates. True favors recall for cross-organization linking.
	AssumeOverlapWhenMissing bool
}

// Overlap describes how DatesOverlap reached its answer.
type Overlap string

const (
	OverlapAssumed       Overlap = "assumed_missing_dates"
	OverlapRanges        Overlap = "ranges_intersect"
	OverlapStartsWithin  Overlap = "starts_within_tolerance"
	OverlapStartInRange  Overlap = "start_within_range"
	OverlapEndInRange    Overlap = "end_within_range"
	OverlapAnchorsWithin Overlap = "dates_within_tolerance"
	OverlapNone          Overlap = ""
)

// DatesOverlap reports whether two activities' effective date ranges
// overlap under the policy, and which rule decided it.
func DatesOverlap(a, b DateRange, policy OverlapPolicy) (bool, Overlap) {
	if a.IsEmpty() || b.IsEmpty() {
		if policy.AssumeOverlapWhenMissing {
			return true, OverlapAssumed
		}
		return false, OverlapNone
	}

	if a.isFull() && b.isFull() {
		if !a.Start.After(*b.End) && !b.Start.After(*a.End) {
			return true, OverlapRanges
		}
		return false, OverlapNone
	}

	switch {
	case a.isFull():
		return pointWithinRange(b, a, policy.Tolerance)
	case b.isFull():
		return pointWithinRange(a, b, policy.Tolerance)
	}

	if a.Start != nil && b.Start != nil {
		if within(*a.Start, *b.Start, policy.Tolerance) {
			return true, OverlapStartsWithin
		}
		return false, OverlapNone
	}

	if within(a.anchor(), b.anchor(), policy.Tolerance) {
		return true, OverlapAnchorsWithin
	}
	return false, OverlapNone
}

// pointWithinRange checks a partial range's single date against a full
// range widened by tolerance on both sides.
func pointWithinRange(partial, full DateRange, tolerance time.Duration) (bool, Overlap) {
	how := OverlapStartInRange
	if partial.Start == nil {
		how = OverlapEndInRange
	}
	point := partial.anchor()
	lo := full.Start.Add(-tolerance)
	hi := full.End.Add(tolerance)
	if !point.Before(lo) && !point.After(hi) {
		return true, how
	}
	return false, OverlapNone
}

func within(a, b time.Time, tolerance time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}
