package duplicates

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_ListDuplicates_Filter(t *testing.T) {
	store := NewMemoryStore(nil, nil)
	ctx := context.Background()
	require.NoError(t, store.UpsertDuplicates(ctx, []Pair{
		NewPair(EntityTypeActivity, "a1", "a2", DetectionExactIdentifier, ConfidenceHigh, 1.0, nil),
		NewPair(EntityTypeActivity, "a3", "a4", DetectionCrossOrgSimilarity, ConfidenceMedium, 0.93, nil),
		NewPair(EntityTypeOrganization, "o1", "o2", DetectionSimilarName, ConfidenceLow, 0.9, nil),
	}))

	all, err := store.ListDuplicates(ctx, PairFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a1", all[0].ID1)

	yes := true
	links, err := store.ListDuplicates(ctx, PairFilter{SuggestedLinks: &yes})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "a3", links[0].ID1)

	org := EntityTypeOrganization
	orgs, err := store.ListDuplicates(ctx, PairFilter{EntityType: &org})
	require.NoError(t, err)
	require.Len(t, orgs, 1)

	dt := DetectionExactIdentifier
	exact, err := store.ListDuplicates(ctx, PairFilter{DetectionType: &dt})
	require.NoError(t, err)
	require.Len(t, exact, 1)

	page, err := store.ListDuplicates(ctx, PairFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a3", page[0].ID1)

	past, err := store.ListDuplicates(ctx, PairFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestMemoryStore_UpsertRejectsInvalidBatch(t *testing.T) {
	store := NewMemoryStore(nil, nil)
	bad := NewPair(EntityTypeActivity, "a1", "a2", DetectionExactIdentifier, ConfidenceHigh, 1.0, nil)
	bad.ID1, bad.ID2 = bad.ID2, bad.ID1

	err := store.UpsertDuplicates(context.Background(), []Pair{
		NewPair(EntityTypeActivity, "a3", "a4", DetectionExactIdentifier, ConfidenceHigh, 1.0, nil),
		bad,
	})
	require.Error(t, err)
	assert.Empty(t, store.Pairs(), "a failed batch stores nothing")
}

func TestLoadFixture(t *testing.T) {
	fixture := `
activities:
  - id: a1
    title: Rural Health Outreach Programme
    owning_organization_id: org-p
    planned_start_date: 2024-01-01
    planned_end_date: 2024-06-01
    other_identifiers:
      - type: A2
        ref: GB-1
  - id: a2
    title: Rural Health Outreach Program
    owning_organization_id: org-q
organizations:
  - id: o1
    name: World Food Programme
    acronym: WFP
`
	store, err := LoadFixture(strings.NewReader(fixture))
	require.NoError(t, err)

	acts, err := store.ListActivities(context.Background())
	require.NoError(t, err)
	require.Len(t, acts, 2)
	assert.Equal(t, "org-p", acts[0].OwningOrganizationID)
	require.NotNil(t, acts[0].PlannedStart)
	assert.Equal(t, 2024, acts[0].PlannedStart.Year())
	assert.Equal(t, []OtherIdentifier{{Type: "A2", Ref: "GB-1"}}, acts[0].OtherIdentifiers)
	assert.Nil(t, acts[1].PlannedStart)

	orgs, err := store.ListOrganizations(context.Background())
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, "WFP", orgs[0].Acronym)
}

func TestLoadFixture_JSON(t *testing.T) {
	store, err := LoadFixture(strings.NewReader(`{"organizations":[{"id":"o1","name":"UNICEF"},{"id":"o2","name":"unicef"}]}`))
	require.NoError(t, err)
	orgs, err := store.ListOrganizations(context.Background())
	require.NoError(t, err)
	assert.Len(t, orgs, 2)
}

func TestLoadFixture_UnknownField(t *testing.T) {
	_, err := LoadFixture(strings.NewReader("projects: []\n"))
	assert.Error(t, err)
}

func TestLoadFixture_Empty(t *testing.T) {
	store, err := LoadFixture(strings.NewReader(""))
	require.NoError(t, err)
	acts, err := store.ListActivities(context.Background())
	require.NoError(t, err)
	assert.Empty(t, acts)
}
