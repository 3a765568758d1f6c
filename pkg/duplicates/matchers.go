package duplicates

import "sort"

// ActivityMatcher is one activity detection heuristic.
type ActivityMatcher interface {
	Detection() DetectionType
	Match(records []ActivityRecord, reg *PairRegistry) []Pair
}

// OrganizationMatcher is one organization detection heuristic.
type OrganizationMatcher interface {
	Detection() DetectionType
	Match(records []OrganizationRecord, reg *PairRegistry) []Pair
}

// keyedRecord is a record id with one normalized grouping key.
type keyedRecord struct {
	id  string
	key string
}

// exactPairs groups records by key and pairs every two members of each
// group, in sorted key order. Empty keys never group.
func exactPairs(entityType EntityType, detection DetectionType, field string, keyed []keyedRecord, reg *PairRegistry) []Pair {
	groups := make(map[string][]string)
	for _, kr := range keyed {
		if kr.key == "" {
			continue
		}
		groups[kr.key] = append(groups[kr.key], kr.id)
	}

	keys := make([]string, 0, len(groups))
	for k, ids := range groups {
		if len(ids) > 1 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var pairs []Pair
	for _, k := range keys {
		ids := groups[k]
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				if !reg.Claim(entityType, ids[i], ids[j]) {
					continue
				}
				pairs = append(pairs, NewPair(entityType, ids[i], ids[j], detection, ConfidenceHigh, 1.0,
					FieldValueMatch{Field: field, Value: k}))
			}
		}
	}
	return pairs
}

// activityIdentifierMatcher pairs activities sharing an IATI identifier.
type activityIdentifierMatcher struct{}

func (activityIdentifierMatcher) Detection() DetectionType { return DetectionExactIdentifier }

func (activityIdentifierMatcher) Match(records []ActivityRecord, reg *PairRegistry) []Pair {
	keyed := make([]keyedRecord, 0, len(records))
	for _, r := range records {
		keyed = append(keyed, keyedRecord{id: r.ID, key: Normalize(r.IATIIdentifier)})
	}
	return exactPairs(EntityTypeActivity, DetectionExactIdentifier, "iati_identifier", keyed, reg)
}

// activityCrossReferenceMatcher pairs activities sharing a sub-identifier of
// one designated type.
type activityCrossReferenceMatcher struct {
	identifierType string
}

func (activityCrossReferenceMatcher) Detection() DetectionType { return DetectionExactCrossReference }

func (m activityCrossReferenceMatcher) Match(records []ActivityRecord, reg *PairRegistry) []Pair {
	wantType := Normalize(m.identifierType)
	var keyed []keyedRecord
	for _, r := range records {
		seen := make(map[string]bool)
		for _, oi := range r.OtherIdentifiers {
			if Normalize(oi.Type) != wantType {
				continue
			}
			ref := Normalize(oi.Ref)
			if ref == "" || seen[ref] {
				continue
			}
			seen[ref] = true
			keyed = append(keyed, keyedRecord{id: r.ID, key: ref})
		}
	}
	return exactPairs(EntityTypeActivity, DetectionExactCrossReference, "other_identifier:"+m.identifierType, keyed, reg)
}

// crossOrgMatcher links near-identical activities reported by different
// organizations over overlapping periods.
type crossOrgMatcher struct {
	threshold      float64
	policy         OverlapPolicy
	includeUnowned bool
}

func (crossOrgMatcher) Detection() DetectionType { return DetectionCrossOrgSimilarity }

// Match compares every unordered pair, O(n²) similarity calls.
func (m crossOrgMatcher) Match(records []ActivityRecord, reg *PairRegistry) []Pair {
	type candidate struct {
		rec   ActivityRecord
		title string
		dates DateRange
	}
	var cands []candidate
	for _, r := range records {
		title := Normalize(r.Title)
		if title == "" || (r.OwningOrganizationID == "" && !m.includeUnowned) {
			continue
		}
		cands = append(cands, candidate{rec: r, title: title, dates: EffectiveDates(r)})
	}

	var pairs []Pair
	for i := 0; i < len(cands); i++ {
		a := cands[i]
		for j := i + 1; j < len(cands); j++ {
			b := cands[j]
			// An unknown owner never matches another owner.
			if a.rec.OwningOrganizationID != "" && a.rec.OwningOrganizationID == b.rec.OwningOrganizationID {
				continue
			}
			if reg.Claimed(EntityTypeActivity, a.rec.ID, b.rec.ID) {
				continue
			}
			score, ok := SimilarityAtLeast(a.title, b.title, m.threshold)
			if !ok {
				continue
			}
			overlaps, how := DatesOverlap(a.dates, b.dates, m.policy)
			if !overlaps {
				continue
			}
			if !reg.Claim(EntityTypeActivity, a.rec.ID, b.rec.ID) {
				continue
			}
			pairs = append(pairs, NewPair(EntityTypeActivity, a.rec.ID, b.rec.ID, DetectionCrossOrgSimilarity, ConfidenceMedium, score,
				orderedPairMatch("title", a.rec.Title, b.rec.Title, map[string]string{
					ExtraOrganizationID1: a.rec.OwningOrganizationID,
					ExtraOrganizationID2: b.rec.OwningOrganizationID,
					ExtraDateOverlap:     string(how),
				}, a.rec.ID > b.rec.ID)))
		}
	}
	return pairs
}

// sameOrgMatcher flags near-duplicate activities within one organization.
type sameOrgMatcher struct {
	threshold float64
}

func (sameOrgMatcher) Detection() DetectionType { return DetectionSameOrgSimilarity }

func (m sameOrgMatcher) Match(records []ActivityRecord, reg *PairRegistry) []Pair {
	groups := make(map[string][]ActivityRecord)
	var orgs []string
	for _, r := range records {
		if r.OwningOrganizationID == "" || Normalize(r.Title) == "" {
			continue
		}
		if _, ok := groups[r.OwningOrganizationID]; !ok {
			orgs = append(orgs, r.OwningOrganizationID)
		}
		groups[r.OwningOrganizationID] = append(groups[r.OwningOrganizationID], r)
	}
	sort.Strings(orgs)

	var pairs []Pair
	for _, org := range orgs {
		members := groups[org]
		titles := make([]string, len(members))
		for i, r := range members {
			titles[i] = Normalize(r.Title)
		}
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				a, b := members[i], members[j]
				score, ok := nearDuplicate(titles[i], titles[j], m.threshold)
				if !ok || !reg.Claim(EntityTypeActivity, a.ID, b.ID) {
					continue
				}
				pairs = append(pairs, NewPair(EntityTypeActivity, a.ID, b.ID, DetectionSameOrgSimilarity, ConfidenceLow, score,
					orderedPairMatch("title", a.Title, b.Title, map[string]string{
						ExtraOrganizationID1: org,
					}, a.ID > b.ID)))
			}
		}
	}
	return pairs
}

// nearDuplicate reports scores in [threshold, 1.0). Identical normalized
// strings belong to the exact rules.
func nearDuplicate(a, b string, threshold float64) (float64, bool) {
	if a == b {
		return 1.0, false
	}
	score, ok := SimilarityAtLeast(a, b, threshold)
	if !ok || score >= 1.0 {
		return score, false
	}
	return score, true
}

// orderedPairMatch builds FieldPairMatch with Value1 belonging to the pair's
// ID1. swapped is true when valueA's record has the larger id.
func orderedPairMatch(field, valueA, valueB string, extra map[string]string, swapped bool) FieldPairMatch {
	if swapped {
		valueA, valueB = valueB, valueA
		if o1, ok := extra[ExtraOrganizationID1]; ok {
			if o2, ok := extra[ExtraOrganizationID2]; ok {
				extra[ExtraOrganizationID1], extra[ExtraOrganizationID2] = o2, o1
			}
		}
	}
	return FieldPairMatch{Field: field, Value1: valueA, Value2: valueB, Extra: extra}
}

// organizationExactMatcher pairs organizations sharing one normalized field.
type organizationExactMatcher struct {
	detection DetectionType
	field     string
	key       func(OrganizationRecord) string
}

func (m organizationExactMatcher) Detection() DetectionType { return m.detection }

func (m organizationExactMatcher) Match(records []OrganizationRecord, reg *PairRegistry) []Pair {
	keyed := make([]keyedRecord, 0, len(records))
	for _, r := range records {
		keyed = append(keyed, keyedRecord{id: r.ID, key: Normalize(m.key(r))})
	}
	return exactPairs(EntityTypeOrganization, m.detection, m.field, keyed, reg)
}

// similarNameMatcher compares all organization names globally.
type similarNameMatcher struct {
	threshold float64
}

func (similarNameMatcher) Detection() DetectionType { return DetectionSimilarName }

// Match compares every unordered pair, O(n²) similarity calls.
func (m similarNameMatcher) Match(records []OrganizationRecord, reg *PairRegistry) []Pair {
	type candidate struct {
		rec  OrganizationRecord
		name string
	}
	var cands []candidate
	for _, r := range records {
		if n := Normalize(r.Name); n != "" {
			cands = append(cands, candidate{rec: r, name: n})
		}
	}

	var pairs []Pair
	for i := 0; i < len(cands); i++ {
		for j := i + 1; j < len(cands); j++ {
			a, b := cands[i], cands[j]
			score, ok := nearDuplicate(a.name, b.name, m.threshold)
			if !ok || !reg.Claim(EntityTypeOrganization, a.rec.ID, b.rec.ID) {
				continue
			}
			pairs = append(pairs, NewPair(EntityTypeOrganization, a.rec.ID, b.rec.ID, DetectionSimilarName, ConfidenceLow, score,
				orderedPairMatch("name", a.rec.Name, b.rec.Name, nil, a.rec.ID > b.rec.ID)))
		}
	}
	return pairs
}

// ActivityMatchers returns the activity heuristics in priority order.
func ActivityMatchers(cfg Config) []ActivityMatcher {
	return []ActivityMatcher{
		activityIdentifierMatcher{},
		activityCrossReferenceMatcher{identifierType: cfg.CrossReferenceType},
		crossOrgMatcher{threshold: cfg.CrossOrgThreshold, policy: cfg.OverlapPolicy(), includeUnowned: cfg.CrossOrgIncludeUnowned},
		sameOrgMatcher{threshold: cfg.SameGroupThreshold},
	}
}

// OrganizationMatchers returns the organization heuristics in priority order.
func OrganizationMatchers(cfg Config) []OrganizationMatcher {
	return []OrganizationMatcher{
		organizationExactMatcher{
			detection: DetectionExactIdentifier,
			field:     "external_org_identifier",
			key:       func(o OrganizationRecord) string { return o.ExternalOrgIdentifier },
		},
		organizationExactMatcher{
			detection: DetectionExactName,
			field:     "name",
			key:       func(o OrganizationRecord) string { return o.Name },
		},
		organizationExactMatcher{
			detection: DetectionExactAcronym,
			field:     "acronym",
			key:       func(o OrganizationRecord) string { return o.Acronym },
		},
		similarNameMatcher{threshold: cfg.SameGroupThreshold},
	}
}
