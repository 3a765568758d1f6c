package duplicates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	pferrors "github.com/otherjamesbrown/dupdetect/pkg/errors"
	"github.com/otherjamesbrown/dupdetect/pkg/logging"
	"github.com/otherjamesbrown/dupdetect/pkg/observability"
	"github.com/otherjamesbrown/dupdetect/pkg/runlock"
)

// Run status values reported in Summary.Status.
const (
	RunStatusSucceeded = observability.RunStatusSucceeded
	RunStatusPartial   = observability.RunStatusPartial
	RunStatusFailed    = observability.RunStatusFailed
	RunStatusDryRun    = observability.RunStatusDryRun
)

// RunOptions selects what a run does.
type RunOptions struct {
	// EntityTypes to process, in order. Empty means all.
	EntityTypes []EntityType

	// Clear deletes stored pairs before detection. When exactly one entity
	// type is selected only its pairs are deleted.
	Clear bool

	// DryRun detects and reports without touching storage or the run lock.
	DryRun bool

	// IncludePairs copies detected pairs into the summary.
	IncludePairs bool
}

// EntitySummary reports one entity type's pass.
type EntitySummary struct {
	EntityType     EntityType            `json:"entity_type" yaml:"entity_type"`
	Records        int                   `json:"records" yaml:"records"`
	PairsDetected  int                   `json:"pairs_detected" yaml:"pairs_detected"`
	ByDetection    map[DetectionType]int `json:"by_detection" yaml:"by_detection"`
	SuggestedLinks int                   `json:"suggested_links" yaml:"suggested_links"`
	Persist        *PersistResult        `json:"persist,omitempty" yaml:"persist,omitempty"`
	Error          string                `json:"error,omitempty" yaml:"error,omitempty"`
	Pairs          []Pair                `json:"pairs,omitempty" yaml:"-"`
}

// Summary reports a whole run.
type Summary struct {
	RunID       string          `json:"run_id" yaml:"run_id"`
	Status      string          `json:"status" yaml:"status"`
	DryRun      bool            `json:"dry_run" yaml:"dry_run"`
	Cleared     *int64          `json:"cleared,omitempty" yaml:"cleared,omitempty"`
	StartedAt   time.Time       `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time       `json:"finished_at" yaml:"finished_at"`
	Entities    []EntitySummary `json:"entities" yaml:"entities"`
	ErrorCounts map[string]int  `json:"error_counts,omitempty" yaml:"error_counts,omitempty"`
}

// Duration returns the run's wall time.
func (s *Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// TotalPairs returns the number of pairs detected across entity types.
func (s *Summary) TotalPairs() int {
	n := 0
	for _, e := range s.Entities {
		n += e.PairsDetected
	}
	return n
}

// FailedBatches returns the number of failed upsert batches.
func (s *Summary) FailedBatches() int {
	n := 0
	for _, e := range s.Entities {
		if e.Persist != nil {
			n += e.Persist.FailedBatches
		}
	}
	return n
}

// RunRecorder keeps a ledger of finished runs.
type RunRecorder interface {
	RecordRun(ctx context.Context, summary *Summary) error
}

// Coordinator runs detection end to end: clear, load, detect, persist, report.
type Coordinator struct {
	provider  Provider
	detector  *Detector
	persister *Persister
	logger    logging.Logger
	metrics   *observability.DetectionMetrics
	tracer    *observability.Tracer
	locker    runlock.Locker
	recorder  RunRecorder
	events    observability.EventPublisher
	newRunID  func() string
	now       func() time.Time
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = l }
}

// WithMetrics records run metrics on m.
func WithMetrics(m *observability.DetectionMetrics) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

// WithLocker guards non-dry runs with l.
func WithLocker(l runlock.Locker) CoordinatorOption {
	return func(c *Coordinator) { c.locker = l }
}

// WithRunRecorder records finished non-dry runs.
func WithRunRecorder(r RunRecorder) CoordinatorOption {
	return func(c *Coordinator) { c.recorder = r }
}

// WithEventPublisher publishes a completion event after non-dry runs.
func WithEventPublisher(p observability.EventPublisher) CoordinatorOption {
	return func(c *Coordinator) { c.events = p }
}

// WithRunIDFunc overrides run id generation.
func WithRunIDFunc(f func() string) CoordinatorOption {
	return func(c *Coordinator) { c.newRunID = f }
}

// NewCoordinator creates a coordinator. cfg must already be validated.
func NewCoordinator(provider Provider, cfg Config, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		provider: provider,
		detector: NewDetector(cfg),
		logger:   logging.NewNopLogger(),
		tracer:   observability.NewTracer(),
		locker:   runlock.NopLocker{},
		events:   observability.NoOpEventPublisher{},
		newRunID: func() string { return uuid.New().String() },
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}

	var popts []PersisterOption
	if c.metrics != nil {
		popts = append(popts, WithPersistMetrics(c.metrics))
	}
	c.persister = NewPersister(provider, cfg.BatchSize, c.logger, popts...)
	return c
}

// Run executes one detection run. The returned error is non-nil when the
// run should exit non-zero: a held lock, a failed clear, or any failed
// load. The other entity type is still processed after a failed load.
// Failed upsert batches are reported in the summary only.
func (c *Coordinator) Run(ctx context.Context, opts RunOptions) (*Summary, error) {
	entityTypes := opts.EntityTypes
	if len(entityTypes) == 0 {
		entityTypes = AllEntityTypes
	}

	summary := &Summary{
		RunID:       c.newRunID(),
		DryRun:      opts.DryRun,
		StartedAt:   c.now(),
		ErrorCounts: make(map[string]int),
	}
	ctx = logging.ContextWithRunID(ctx, summary.RunID)
	log := c.logger.WithContext(ctx)

	ctx, span := c.tracer.StartRunSpan(ctx, summary.RunID, opts.DryRun)

	if !opts.DryRun {
		lease, err := c.locker.Acquire(ctx)
		if err != nil {
			var derr *pferrors.DetectionError
			if errors.Is(err, runlock.ErrLockHeld) {
				derr = pferrors.NewLockHeldError(c.locker.Key())
			} else {
				derr = pferrors.NewConfigurationError("acquire run lock", err)
			}
			observability.EndSpan(span, derr, string(derr.Code))
			return nil, derr
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("Failed to release run lock", logging.Err(err))
			}
		}()
	}

	log.Info("Detection run started",
		logging.F("entity_types", entityTypeNames(entityTypes)),
		logging.F("dry_run", opts.DryRun),
		logging.F("clear", opts.Clear))

	var fatal []error

	if opts.Clear {
		if opts.DryRun {
			log.Info("Dry run: skipping clear")
		} else if n, err := c.clear(ctx, entityTypes); err != nil {
			fatal = append(fatal, err)
			c.countError(summary, err)
			log.Error("Clear failed, aborting run", logging.Err(err))
			return c.finish(ctx, span, summary, fatal)
		} else {
			summary.Cleared = &n
		}
	}

	for _, et := range entityTypes {
		es, err := c.runEntity(ctx, et, opts)
		summary.Entities = append(summary.Entities, es)
		if err != nil {
			fatal = append(fatal, err)
			c.countError(summary, err)
		}
		if es.Persist != nil {
			for _, berr := range es.Persist.Errors {
				c.countError(summary, berr)
			}
		}
	}

	return c.finish(ctx, span, summary, fatal)
}

func (c *Coordinator) clear(ctx context.Context, entityTypes []EntityType) (int64, error) {
	var scope *EntityType
	if len(entityTypes) == 1 {
		et := entityTypes[0]
		scope = &et
	}
	ctx, span := c.tracer.StartEntitySpan(ctx, observability.SpanClear, scopeName(scope))
	n, err := c.persister.Clear(ctx, scope)
	observability.EndSpan(span, err, errorCode(err))
	return n, err
}

func (c *Coordinator) runEntity(ctx context.Context, et EntityType, opts RunOptions) (EntitySummary, error) {
	log := c.logger.WithContext(ctx).With(logging.F("entity_type", string(et)))
	es := EntitySummary{EntityType: et, ByDetection: make(map[DetectionType]int)}

	start := time.Now()
	lctx, span := c.tracer.StartEntitySpan(ctx, observability.SpanLoad, string(et))
	var result DetectionResult
	var loadErr error
	switch et {
	case EntityTypeActivity:
		var records []ActivityRecord
		records, loadErr = c.provider.ListActivities(lctx)
		if loadErr == nil {
			observability.EndSpan(span, nil, "")
			c.observePhase(et, "load", start)
			start = time.Now()
			dctx, dspan := c.tracer.StartEntitySpan(ctx, observability.SpanDetect, string(et))
			result = c.detector.DetectActivities(dctx, records)
			observability.EndSpan(dspan, nil, "")
		}
	case EntityTypeOrganization:
		var records []OrganizationRecord
		records, loadErr = c.provider.ListOrganizations(lctx)
		if loadErr == nil {
			observability.EndSpan(span, nil, "")
			c.observePhase(et, "load", start)
			start = time.Now()
			dctx, dspan := c.tracer.StartEntitySpan(ctx, observability.SpanDetect, string(et))
			result = c.detector.DetectOrganizations(dctx, records)
			observability.EndSpan(dspan, nil, "")
		}
	default:
		loadErr = fmt.Errorf("%w: unknown entity type %q", pferrors.ErrValidation, et)
	}

	if loadErr != nil {
		derr := pferrors.NewFetchError(string(et), loadErr)
		observability.EndSpan(span, derr, string(derr.Code))
		if c.metrics != nil {
			c.metrics.FetchErrors.WithLabelValues(string(et)).Inc()
		}
		log.Error("Failed to load records", logging.Err(loadErr))
		es.Error = derr.Error()
		return es, derr
	}
	c.observePhase(et, "detect", start)

	es.Records = result.Records
	es.PairsDetected = len(result.Pairs)
	for dt, n := range result.ByDetection {
		es.ByDetection[dt] = n
	}
	for _, p := range result.Pairs {
		if p.IsSuggestedLink {
			es.SuggestedLinks++
		}
	}
	if opts.IncludePairs {
		es.Pairs = result.Pairs
	}
	c.observeDetection(result)

	log.Info("Detection complete",
		logging.F("records", result.Records),
		logging.F("pairs", len(result.Pairs)),
		logging.F("suggested_links", es.SuggestedLinks))

	if opts.DryRun {
		return es, nil
	}

	start = time.Now()
	pctx, pspan := c.tracer.StartEntitySpan(ctx, observability.SpanPersist, string(et))
	pr := c.persister.Upsert(pctx, et, result.Pairs)
	var perr error
	if len(pr.Errors) > 0 {
		perr = pr.Errors[0]
	}
	observability.EndSpan(pspan, perr, errorCode(perr))
	c.observePhase(et, "persist", start)
	es.Persist = &pr

	if pr.FailedBatches > 0 {
		log.Warn("Some batches failed to persist",
			logging.F("failed_batches", pr.FailedBatches),
			logging.F("failed_pairs", pr.FailedPairs),
			logging.F("persisted", pr.Persisted))
	}

	return es, nil
}

func (c *Coordinator) finish(ctx context.Context, span trace.Span, summary *Summary, fatal []error) (*Summary, error) {
	summary.FinishedAt = c.now()
	switch {
	case len(fatal) > 0:
		summary.Status = RunStatusFailed
	case summary.DryRun:
		summary.Status = RunStatusDryRun
	case summary.FailedBatches() > 0:
		summary.Status = RunStatusPartial
	default:
		summary.Status = RunStatusSucceeded
	}
	if len(summary.ErrorCounts) == 0 {
		summary.ErrorCounts = nil
	}

	log := c.logger.WithContext(ctx)
	c.observeRun(summary)

	if !summary.DryRun {
		// Ledger and event failures never change the run's outcome.
		bg := context.WithoutCancel(ctx)
		if c.recorder != nil {
			if err := c.recorder.RecordRun(bg, summary); err != nil {
				log.Warn("Failed to record run", logging.Err(err))
			}
		}
		if err := c.events.Publish(bg, observability.ChannelRunCompleted, c.runEvent(ctx, summary)); err != nil {
			log.Warn("Failed to publish run event", logging.Err(err))
		}
	}

	err := errors.Join(fatal...)
	observability.EndSpan(span, err, errorCode(err))

	log.Info("Detection run finished",
		logging.F("status", summary.Status),
		logging.F("pairs", summary.TotalPairs()),
		logging.F("failed_batches", summary.FailedBatches()),
		logging.F("duration", summary.Duration()))

	return summary, err
}

func (c *Coordinator) runEvent(ctx context.Context, s *Summary) *observability.RunCompletedEvent {
	var types []string
	pairs := make(map[string]int)
	for _, e := range s.Entities {
		types = append(types, string(e.EntityType))
		pairs[string(e.EntityType)] = e.PairsDetected
	}
	ev := observability.NewRunCompletedEvent(s.RunID, s.Status, types, pairs, s.FailedBatches(), s.Duration().Milliseconds())
	ev.TraceID = observability.GetTraceID(ctx)
	return ev
}

func (c *Coordinator) countError(s *Summary, err error) {
	if code, ok := pferrors.CodeOf(err); ok {
		s.ErrorCounts[string(code)]++
	}
}

func (c *Coordinator) observePhase(et EntityType, phase string, start time.Time) {
	if c.metrics != nil {
		c.metrics.PhaseSeconds.WithLabelValues(string(et), phase).Observe(time.Since(start).Seconds())
	}
}

func (c *Coordinator) observeDetection(result DetectionResult) {
	if c.metrics == nil {
		return
	}
	et := string(result.EntityType)
	c.metrics.RecordsScanned.WithLabelValues(et).Set(float64(result.Records))
	for _, p := range result.Pairs {
		c.metrics.PairsDetected.WithLabelValues(et, string(p.DetectionType), string(p.Confidence)).Inc()
		if !p.DetectionType.IsExact() && p.SimilarityScore != nil {
			c.metrics.SimilarityScore.WithLabelValues(et, string(p.DetectionType)).Observe(*p.SimilarityScore)
		}
	}
}

func (c *Coordinator) observeRun(s *Summary) {
	if c.metrics == nil {
		return
	}
	c.metrics.RunsTotal.WithLabelValues(s.Status).Inc()
	c.metrics.RunSeconds.Observe(s.Duration().Seconds())
	c.metrics.LastRunTimestamp.Set(float64(s.FinishedAt.Unix()))
	if s.Status == RunStatusFailed {
		c.metrics.LastRunSuccess.Set(0)
	} else {
		c.metrics.LastRunSuccess.Set(1)
	}
}

func errorCode(err error) string {
	if code, ok := pferrors.CodeOf(err); ok {
		return string(code)
	}
	return ""
}

func scopeName(et *EntityType) string {
	if et == nil {
		return ""
	}
	return string(*et)
}

func entityTypeNames(types []EntityType) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return names
}
