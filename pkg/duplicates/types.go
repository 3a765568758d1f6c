// Package duplicates detects candidate duplicate and related-record pairs
// across aid activities and organizations.
//
// Detection runs a fixed, ordered list of heuristics per entity type. Exact
// key matches come first and produce high-confidence merge candidates; fuzzy
// title and name matches follow. A pair claimed by an earlier heuristic is
// never re-emitted by a later one.
package duplicates

import (
	"fmt"
	"time"

	pferrors "github.com/otherjamesbrown/dupdetect/pkg/errors"
)

// EntityType identifies which collection a pair belongs to.
type EntityType string

const (
	EntityTypeActivity     EntityType = "activity"
	EntityTypeOrganization EntityType = "organization"
)

// AllEntityTypes lists entity types in processing order.
var AllEntityTypes = []EntityType{EntityTypeActivity, EntityTypeOrganization}

// IsValid reports whether t is a known entity type.
func (t EntityType) IsValid() bool {
	return t == EntityTypeActivity || t == EntityTypeOrganization
}

// ParseEntityType parses a user-supplied entity type.
func ParseEntityType(s string) (EntityType, error) {
	switch s {
	case "activity", "activities":
		return EntityTypeActivity, nil
	case "organization", "organizations", "org", "orgs":
		return EntityTypeOrganization, nil
	}
	return "", fmt.Errorf("%w: unknown entity type %q (use activity or organization)", pferrors.ErrValidation, s)
}

// DetectionType names the heuristic that produced a pair.
type DetectionType string

const (
	DetectionExactIdentifier     DetectionType = "exact_identifier"
	DetectionExactCrossReference DetectionType = "exact_cross_reference"
	DetectionExactName           DetectionType = "exact_name"
	DetectionExactAcronym        DetectionType = "exact_acronym"
	DetectionCrossOrgSimilarity  DetectionType = "cross_org_similarity"
	DetectionSameOrgSimilarity   DetectionType = "same_org_similarity"
	DetectionSimilarName         DetectionType = "similar_name"
)

// IsExact reports whether the detection type comes from an exact-equality rule.
func (d DetectionType) IsExact() bool {
	switch d {
	case DetectionExactIdentifier, DetectionExactCrossReference, DetectionExactName, DetectionExactAcronym:
		return true
	}
	return false
}

// IsValid reports whether d is a known detection type.
func (d DetectionType) IsValid() bool {
	switch d {
	case DetectionExactIdentifier, DetectionExactCrossReference, DetectionExactName, DetectionExactAcronym,
		DetectionCrossOrgSimilarity, DetectionSameOrgSimilarity, DetectionSimilarName:
		return true
	}
	return false
}

// Confidence is the categorical strength of a detection.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// OtherIdentifier is a typed sub-identifier attached to an activity.
type OtherIdentifier struct {
	Type string `json:"type" yaml:"type"`
	Ref  string `json:"ref" yaml:"ref"`
}

// ActivityRecord is the subset of an activity the detector reads.
type ActivityRecord struct {
	ID                   string            `json:"id" yaml:"id"`
	Title                string            `json:"title,omitempty" yaml:"title,omitempty"`
	IATIIdentifier       string            `json:"iati_identifier,omitempty" yaml:"iati_identifier,omitempty"`
	OtherIdentifiers     []OtherIdentifier `json:"other_identifiers,omitempty" yaml:"other_identifiers,omitempty"`
	OwningOrganizationID string            `json:"owning_organization_id,omitempty" yaml:"owning_organization_id,omitempty"`
	PlannedStart         *time.Time        `json:"planned_start_date,omitempty" yaml:"planned_start_date,omitempty"`
	PlannedEnd           *time.Time        `json:"planned_end_date,omitempty" yaml:"planned_end_date,omitempty"`
	ActualStart          *time.Time        `json:"actual_start_date,omitempty" yaml:"actual_start_date,omitempty"`
	ActualEnd            *time.Time        `json:"actual_end_date,omitempty" yaml:"actual_end_date,omitempty"`
	CreatedAt            time.Time         `json:"created_at" yaml:"created_at"`
}

// OrganizationRecord is the subset of an organization the detector reads.
type OrganizationRecord struct {
	ID                    string    `json:"id" yaml:"id"`
	Name                  string    `json:"name,omitempty" yaml:"name,omitempty"`
	Acronym               string    `json:"acronym,omitempty" yaml:"acronym,omitempty"`
	ExternalOrgIdentifier string    `json:"external_org_identifier,omitempty" yaml:"external_org_identifier,omitempty"`
	CreatedAt             time.Time `json:"created_at" yaml:"created_at"`
}

// Pair is a detected candidate duplicate. ID1 < ID2 always holds for pairs
// built with NewPair.
type Pair struct {
	EntityType      EntityType    `json:"entity_type" yaml:"entity_type"`
	ID1             string        `json:"id_1" yaml:"id_1"`
	ID2             string        `json:"id_2" yaml:"id_2"`
	DetectionType   DetectionType `json:"detection_type" yaml:"detection_type"`
	Confidence      Confidence    `json:"confidence" yaml:"confidence"`
	SimilarityScore *float64      `json:"similarity_score" yaml:"similarity_score"`
	MatchDetails    MatchDetails  `json:"-" yaml:"-"`
	IsSuggestedLink bool          `json:"is_suggested_link" yaml:"is_suggested_link"`
	DetectedAt      time.Time     `json:"detected_at,omitempty" yaml:"detected_at,omitempty"`
}

// PairKey is the natural key of a pair.
type PairKey struct {
	EntityType EntityType
	ID1        string
	ID2        string
}

// CanonicalOrder returns a and b with the smaller id first.
func CanonicalOrder(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// NewPair builds a pair in canonical order. Suggested-link status follows
// from the detection type.
func NewPair(entityType EntityType, idA, idB string, detection DetectionType, confidence Confidence, score float64, details MatchDetails) Pair {
	id1, id2 := CanonicalOrder(idA, idB)
	s := score
	return Pair{
		EntityType:      entityType,
		ID1:             id1,
		ID2:             id2,
		DetectionType:   detection,
		Confidence:      confidence,
		SimilarityScore: &s,
		MatchDetails:    details,
		IsSuggestedLink: detection == DetectionCrossOrgSimilarity,
	}
}

// Key returns the natural key of the pair.
func (p Pair) Key() PairKey {
	return PairKey{EntityType: p.EntityType, ID1: p.ID1, ID2: p.ID2}
}

// Validate checks the stored-row invariants.
func (p Pair) Validate() error {
	if !p.EntityType.IsValid() {
		return fmt.Errorf("%w: invalid entity type %q", pferrors.ErrValidation, p.EntityType)
	}
	if p.ID1 == "" || p.ID2 == "" {
		return fmt.Errorf("%w: pair ids must be set", pferrors.ErrValidation)
	}
	if !(p.ID1 < p.ID2) {
		return fmt.Errorf("%w: pair ids not in canonical order (%s, %s)", pferrors.ErrValidation, p.ID1, p.ID2)
	}
	if !p.DetectionType.IsValid() {
		return fmt.Errorf("%w: invalid detection type %q", pferrors.ErrValidation, p.DetectionType)
	}
	if p.SimilarityScore != nil && (*p.SimilarityScore < 0 || *p.SimilarityScore > 1) {
		return fmt.Errorf("%w: similarity score %f outside [0,1]", pferrors.ErrValidation, *p.SimilarityScore)
	}
	if p.Confidence == ConfidenceHigh {
		if !p.DetectionType.IsExact() {
			return fmt.Errorf("%w: high confidence requires an exact detection, got %s", pferrors.ErrValidation, p.DetectionType)
		}
		if p.SimilarityScore != nil && *p.SimilarityScore != 1.0 {
			return fmt.Errorf("%w: exact match must score 1.0", pferrors.ErrValidation)
		}
	}
	if p.IsSuggestedLink != (p.DetectionType == DetectionCrossOrgSimilarity) {
		return fmt.Errorf("%w: suggested link flag inconsistent with %s", pferrors.ErrValidation, p.DetectionType)
	}
	return nil
}

// PairFilter specifies criteria for listing stored pairs.
type PairFilter struct {
	EntityType     *EntityType    `json:"entity_type,omitempty"`
	DetectionType  *DetectionType `json:"detection_type,omitempty"`
	SuggestedLinks *bool          `json:"suggested_links,omitempty"`
	Limit          int            `json:"limit,omitempty"`
	Offset         int            `json:"offset,omitempty"`
}
