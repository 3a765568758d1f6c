package duplicates

import "context"

// Provider is the storage the detector reads records from and writes pairs
// to. It is injected; the engine holds no global client.
type Provider interface {
	// ListActivities returns every activity.
	ListActivities(ctx context.Context) ([]ActivityRecord, error)

	// ListOrganizations returns every organization.
	ListOrganizations(ctx context.Context) ([]OrganizationRecord, error)

	// UpsertDuplicates writes one batch of pairs, inserting new rows and
	// updating existing rows by (entity_type, id_1, id_2).
	UpsertDuplicates(ctx context.Context, pairs []Pair) error

	// DeleteDuplicates removes stored pairs, all of them when entityType is
	// nil. It returns the number of rows removed.
	DeleteDuplicates(ctx context.Context, entityType *EntityType) (int64, error)
}

// PairReader lists stored pairs for review tooling.
type PairReader interface {
	ListDuplicates(ctx context.Context, filter PairFilter) ([]Pair, error)
}

// Store is a Provider that can also list stored pairs.
type Store interface {
	Provider
	PairReader
}
