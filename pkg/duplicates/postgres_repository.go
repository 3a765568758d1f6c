package duplicates

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Store on PostgreSQL. It reads the platform's
// activities and organizations tables and owns detected_duplicates.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListActivities loads every activity.
func (r *PostgresRepository) ListActivities(ctx context.Context) ([]ActivityRecord, error) {
	query := `
		SELECT id::text, COALESCE(title, ''), COALESCE(iati_identifier, ''),
			COALESCE(other_identifiers, '[]'::jsonb), COALESCE(reporting_org_id::text, ''),
			planned_start_date, planned_end_date, actual_start_date, actual_end_date,
			created_at
		FROM activities
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing activities: %w", err)
	}
	defer rows.Close()

	var activities []ActivityRecord
	for rows.Next() {
		var a ActivityRecord
		var otherIDs []byte
		if err := rows.Scan(
			&a.ID, &a.Title, &a.IATIIdentifier,
			&otherIDs, &a.OwningOrganizationID,
			&a.PlannedStart, &a.PlannedEnd, &a.ActualStart, &a.ActualEnd,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		if len(otherIDs) > 0 {
			if err := json.Unmarshal(otherIDs, &a.OtherIdentifiers); err != nil {
				return nil, fmt.Errorf("decoding other_identifiers for activity %s: %w", a.ID, err)
			}
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activities: %w", err)
	}

	return activities, nil
}

// ListOrganizations loads every organization.
func (r *PostgresRepository) ListOrganizations(ctx context.Context) ([]OrganizationRecord, error) {
	query := `
		SELECT id::text, COALESCE(name, ''), COALESCE(acronym, ''),
			COALESCE(iati_org_id, ''), created_at
		FROM organizations
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}
	defer rows.Close()

	var orgs []OrganizationRecord
	for rows.Next() {
		var o OrganizationRecord
		if err := rows.Scan(&o.ID, &o.Name, &o.Acronym, &o.ExternalOrgIdentifier, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning organization: %w", err)
		}
		orgs = append(orgs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating organizations: %w", err)
	}

	return orgs, nil
}

const upsertDuplicateQuery = `
	INSERT INTO detected_duplicates (
		entity_type, id_1, id_2, detection_type, confidence,
		similarity_score, match_details, is_suggested_link, detected_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (entity_type, id_1, id_2) DO UPDATE SET
		detection_type = EXCLUDED.detection_type,
		confidence = EXCLUDED.confidence,
		similarity_score = EXCLUDED.similarity_score,
		match_details = EXCLUDED.match_details,
		is_suggested_link = EXCLUDED.is_suggested_link,
		detected_at = EXCLUDED.detected_at,
		updated_at = NOW()
`

// UpsertDuplicates writes one batch in a single transaction, so a failed
// batch leaves no partial rows.
func (r *PostgresRepository) UpsertDuplicates(ctx context.Context, pairs []Pair) error {
	if len(pairs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range pairs {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("pair %s/%s: %w", p.ID1, p.ID2, err)
		}
		details, err := MarshalMatchDetails(p.MatchDetails)
		if err != nil {
			return fmt.Errorf("encoding match details for %s/%s: %w", p.ID1, p.ID2, err)
		}
		detectedAt := p.DetectedAt
		if detectedAt.IsZero() {
			detectedAt = time.Now().UTC()
		}
		batch.Queue(upsertDuplicateQuery,
			string(p.EntityType), p.ID1, p.ID2, string(p.DetectionType), string(p.Confidence),
			p.SimilarityScore, details, p.IsSuggestedLink, detectedAt,
		)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	results := tx.SendBatch(ctx, batch)
	for i := range pairs {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("upserting pair %s/%s: %w", pairs[i].ID1, pairs[i].ID2, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// DeleteDuplicates removes stored pairs, all of them when entityType is nil.
func (r *PostgresRepository) DeleteDuplicates(ctx context.Context, entityType *EntityType) (int64, error) {
	query := `DELETE FROM detected_duplicates`
	var args []interface{}
	if entityType != nil {
		query += ` WHERE entity_type = $1`
		args = append(args, string(*entityType))
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting duplicates: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListDuplicates lists stored pairs based on filter criteria.
func (r *PostgresRepository) ListDuplicates(ctx context.Context, filter PairFilter) ([]Pair, error) {
	query := `
		SELECT entity_type, id_1, id_2, detection_type, confidence,
			similarity_score, match_details, is_suggested_link, detected_at
		FROM detected_duplicates
		WHERE 1=1
	`
	var args []interface{}
	argNum := 1

	if filter.EntityType != nil {
		query += fmt.Sprintf(" AND entity_type = $%d", argNum)
		args = append(args, string(*filter.EntityType))
		argNum++
	}

	if filter.DetectionType != nil {
		query += fmt.Sprintf(" AND detection_type = $%d", argNum)
		args = append(args, string(*filter.DetectionType))
		argNum++
	}

	if filter.SuggestedLinks != nil {
		query += fmt.Sprintf(" AND is_suggested_link = $%d", argNum)
		args = append(args, *filter.SuggestedLinks)
		argNum++
	}

	query += " ORDER BY entity_type, id_1, id_2"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing duplicates: %w", err)
	}
	defer rows.Close()

	var pairs []Pair
	for rows.Next() {
		p, err := scanPair(rows)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating duplicates: %w", err)
	}

	return pairs, nil
}

func scanPair(row pgx.Row) (*Pair, error) {
	var p Pair
	var entityType, detectionType, confidence string
	var details []byte

	if err := row.Scan(
		&entityType, &p.ID1, &p.ID2, &detectionType, &confidence,
		&p.SimilarityScore, &details, &p.IsSuggestedLink, &p.DetectedAt,
	); err != nil {
		return nil, fmt.Errorf("scanning duplicate: %w", err)
	}

	p.EntityType = EntityType(entityType)
	p.DetectionType = DetectionType(detectionType)
	p.Confidence = Confidence(confidence)

	md, err := UnmarshalMatchDetails(details)
	if err != nil {
		return nil, fmt.Errorf("decoding match details for %s/%s: %w", p.ID1, p.ID2, err)
	}
	p.MatchDetails = md

	return &p, nil
}
