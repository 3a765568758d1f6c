package duplicates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pferrors "github.com/otherjamesbrown/dupdetect/pkg/errors"
)

func TestParseEntityType(t *testing.T) {
	for in, want := range map[string]EntityType{
		"activity":      EntityTypeActivity,
		"activities":    EntityTypeActivity,
		"organization":  EntityTypeOrganization,
		"orgs":          EntityTypeOrganization,
		"organizations": EntityTypeOrganization,
	} {
		got, err := ParseEntityType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseEntityType("project")
	assert.True(t, pferrors.IsValidation(err))
}

func TestNewPair_CanonicalOrder(t *testing.T) {
	p := NewPair(EntityTypeActivity, "z-2", "a-1", DetectionSameOrgSimilarity, ConfidenceLow, 0.9, nil)
	assert.Equal(t, "a-1", p.ID1)
	assert.Equal(t, "z-2", p.ID2)
	assert.False(t, p.IsSuggestedLink)

	q := NewPair(EntityTypeActivity, "a-1", "z-2", DetectionSameOrgSimilarity, ConfidenceLow, 0.9, nil)
	assert.Equal(t, p.Key(), q.Key())
}

func TestNewPair_SuggestedLink(t *testing.T) {
	for _, dt := range []DetectionType{
		DetectionExactIdentifier, DetectionExactCrossReference, DetectionExactName, DetectionExactAcronym,
		DetectionCrossOrgSimilarity, DetectionSameOrgSimilarity, DetectionSimilarName,
	} {
		p := NewPair(EntityTypeActivity, "a", "b", dt, ConfidenceLow, 0.9, nil)
		assert.Equal(t, dt == DetectionCrossOrgSimilarity, p.IsSuggestedLink, string(dt))
	}
}

func TestPair_Validate(t *testing.T) {
	valid := NewPair(EntityTypeOrganization, "a", "b", DetectionExactName, ConfidenceHigh, 1.0, nil)
	require.NoError(t, valid.Validate())

	score := func(v float64) *float64 { return &v }

	tests := []struct {
		name   string
		mutate func(p *Pair)
	}{
		{"bad entity type", func(p *Pair) { p.EntityType = "project" }},
		{"missing id", func(p *Pair) { p.ID1 = "" }},
		{"not canonical", func(p *Pair) { p.ID1, p.ID2 = p.ID2, p.ID1 }},
		{"same id", func(p *Pair) { p.ID2 = p.ID1 }},
		{"bad detection", func(p *Pair) { p.DetectionType = "guess" }},
		{"score out of range", func(p *Pair) { p.SimilarityScore = score(1.2) }},
		{"high not exact", func(p *Pair) { p.DetectionType = DetectionSimilarName }},
		{"exact below one", func(p *Pair) { p.SimilarityScore = score(0.99) }},
		{"link flag mismatch", func(p *Pair) { p.IsSuggestedLink = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, pferrors.IsValidation(err))
		})
	}

	legacy := valid
	legacy.SimilarityScore = nil
	assert.NoError(t, legacy.Validate(), "legacy rows may lack a score")
}

func TestDetectionType_IsExact(t *testing.T) {
	assert.True(t, DetectionExactAcronym.IsExact())
	assert.False(t, DetectionCrossOrgSimilarity.IsExact())
	assert.False(t, DetectionType("nope").IsValid())
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero cross-org threshold", func(c *Config) { c.CrossOrgThreshold = 0 }},
		{"same-group threshold of one", func(c *Config) { c.SameGroupThreshold = 1 }},
		{"negative tolerance", func(c *Config) { c.DateTolerance = -1 }},
		{"no cross-reference type", func(c *Config) { c.CrossReferenceType = "" }},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(&c)
			assert.True(t, pferrors.IsValidation(c.Validate()))
		})
	}
}
