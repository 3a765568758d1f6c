package duplicates

import (
	"context"
	"fmt"

	pferrors "github.com/otherjamesbrown/dupdetect/pkg/errors"
	"github.com/otherjamesbrown/dupdetect/pkg/logging"
	"github.com/otherjamesbrown/dupdetect/pkg/observability"
)

// PersistResult counts the outcome of writing one entity type's pairs.
type PersistResult struct {
	EntityType    EntityType `json:"entity_type" yaml:"entity_type"`
	Batches       int        `json:"batches" yaml:"batches"`
	Persisted     int        `json:"persisted" yaml:"persisted"`
	FailedBatches int        `json:"failed_batches" yaml:"failed_batches"`
	FailedPairs   int        `json:"failed_pairs" yaml:"failed_pairs"`

	// Errors holds one DetectionError per failed batch.
	Errors []error `json:"-" yaml:"-"`
}

// Persister writes pairs to a Provider in batches. A failed batch is logged
// and counted; later batches are still attempted.
type Persister struct {
	provider  Provider
	batchSize int
	logger    logging.Logger
	metrics   *observability.DetectionMetrics
	tracer    *observability.Tracer
}

// PersisterOption configures a Persister.
type PersisterOption func(*Persister)

// WithPersistMetrics records batch outcomes on m.
func WithPersistMetrics(m *observability.DetectionMetrics) PersisterOption {
	return func(p *Persister) { p.metrics = m }
}

// NewPersister creates a persister. A non-positive batchSize uses
// DefaultBatchSize.
func NewPersister(provider Provider, batchSize int, logger logging.Logger, opts ...PersisterOption) *Persister {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	p := &Persister{
		provider:  provider,
		batchSize: batchSize,
		logger:    logger,
		tracer:    observability.NewTracer(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Upsert writes pairs of one entity type, one provider call per batch.
func (p *Persister) Upsert(ctx context.Context, entityType EntityType, pairs []Pair) PersistResult {
	result := PersistResult{EntityType: entityType}
	log := p.logger.With(logging.F("entity_type", string(entityType)))

	for start, index := 0, 0; start < len(pairs); start, index = start+p.batchSize, index+1 {
		end := min(start+p.batchSize, len(pairs))
		batch := pairs[start:end]
		result.Batches++

		if err := ctx.Err(); err != nil {
			derr := pferrors.NewUpsertBatchError(string(entityType), index, err)
			result.Errors = append(result.Errors, derr)
			result.FailedBatches++
			result.FailedPairs += len(batch)
			p.countBatch(entityType, "skipped")
			continue
		}

		bctx, span := p.tracer.StartBatchSpan(ctx, string(entityType), index, len(batch))
		err := p.provider.UpsertDuplicates(bctx, batch)
		if err != nil {
			derr := pferrors.NewUpsertBatchError(string(entityType), index, err)
			observability.EndSpan(span, derr, string(derr.Code))
			log.Error("Upsert batch failed",
				logging.F("batch", index),
				logging.F("batch_size", len(batch)),
				logging.Err(err))
			result.Errors = append(result.Errors, derr)
			result.FailedBatches++
			result.FailedPairs += len(batch)
			p.countBatch(entityType, "failed")
			continue
		}
		observability.EndSpan(span, nil, "")

		result.Persisted += len(batch)
		p.countBatch(entityType, "succeeded")
		if p.metrics != nil {
			p.metrics.PairsPersisted.WithLabelValues(string(entityType)).Add(float64(len(batch)))
		}
		log.Debug("Upserted batch", logging.F("batch", index), logging.F("batch_size", len(batch)))
	}

	return result
}

func (p *Persister) countBatch(entityType EntityType, status string) {
	if p.metrics != nil {
		p.metrics.BatchesTotal.WithLabelValues(string(entityType), status).Inc()
	}
}

// Clear deletes stored pairs, scoped to entityType when it is not nil.
func (p *Persister) Clear(ctx context.Context, entityType *EntityType) (int64, error) {
	scope := "all"
	if entityType != nil {
		scope = string(*entityType)
	}

	n, err := p.provider.DeleteDuplicates(ctx, entityType)
	if err != nil {
		name := ""
		if entityType != nil {
			name = string(*entityType)
		}
		return 0, pferrors.NewClearError(name, fmt.Errorf("deleting %s pairs: %w", scope, err))
	}

	if p.metrics != nil {
		p.metrics.PairsCleared.WithLabelValues(scope).Add(float64(n))
	}
	p.logger.Info("Cleared stored pairs", logging.F("scope", scope), logging.F("deleted", n))
	return n, nil
}
