package duplicates

import (
	"context"
	"sort"
	"time"

	"github.com/otherjamesbrown/dupdetect/pkg/observability"
)

// DetectionResult is the output of one entity type's detection pass.
type DetectionResult struct {
	EntityType  EntityType
	Records     int
	Pairs       []Pair
	ByDetection map[DetectionType]int
}

// Count returns the number of pairs emitted by detection.
func (r DetectionResult) Count(detection DetectionType) int {
	return r.ByDetection[detection]
}

// Detector runs the ordered heuristics over loaded records.
type Detector struct {
	activityMatchers     []ActivityMatcher
	organizationMatchers []OrganizationMatcher
	tracer               *observability.Tracer
	now                  func() time.Time
}

// NewDetector builds a detector for cfg.
func NewDetector(cfg Config) *Detector {
	return &Detector{
		activityMatchers:     ActivityMatchers(cfg),
		organizationMatchers: OrganizationMatchers(cfg),
		tracer:               observability.NewTracer(),
		now:                  func() time.Time { return time.Now().UTC() },
	}
}

// DetectActivities runs the activity heuristics. Records are processed in
// id order so output does not depend on load order.
func (d *Detector) DetectActivities(ctx context.Context, records []ActivityRecord) DetectionResult {
	sorted := make([]ActivityRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	result := newDetectionResult(EntityTypeActivity, len(records))
	reg := NewPairRegistry()
	for _, m := range d.activityMatchers {
		_, span := d.tracer.StartHeuristicSpan(ctx, string(EntityTypeActivity), string(m.Detection()))
		pairs := m.Match(sorted, reg)
		d.collect(&result, m.Detection(), pairs)
		observability.EndSpan(span, nil, "")
	}
	return result
}

// DetectOrganizations runs the organization heuristics.
func (d *Detector) DetectOrganizations(ctx context.Context, records []OrganizationRecord) DetectionResult {
	sorted := make([]OrganizationRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	result := newDetectionResult(EntityTypeOrganization, len(records))
	reg := NewPairRegistry()
	for _, m := range d.organizationMatchers {
		_, span := d.tracer.StartHeuristicSpan(ctx, string(EntityTypeOrganization), string(m.Detection()))
		pairs := m.Match(sorted, reg)
		d.collect(&result, m.Detection(), pairs)
		observability.EndSpan(span, nil, "")
	}
	return result
}

func newDetectionResult(entityType EntityType, records int) DetectionResult {
	return DetectionResult{
		EntityType:  entityType,
		Records:     records,
		ByDetection: make(map[DetectionType]int),
	}
}

func (d *Detector) collect(result *DetectionResult, detection DetectionType, pairs []Pair) {
	detectedAt := d.now()
	for i := range pairs {
		pairs[i].DetectedAt = detectedAt
	}
	result.Pairs = append(result.Pairs, pairs...)
	result.ByDetection[detection] += len(pairs)
}
