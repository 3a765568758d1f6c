// Package observability provides metrics, tracing, and run events for
// duplicate detection.
package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis channels for run events
const (
	ChannelRunCompleted = "events.dupdetect.run_completed"
)

// Run status values
const (
	RunStatusSucceeded = "succeeded"
	RunStatusPartial   = "partial"
	RunStatusFailed    = "failed"
	RunStatusDryRun    = "dry_run"
)

// RunCompletedEvent is published after a non-dry run finishes.
type RunCompletedEvent struct {
	EventID       string         `json:"event_id"`
	RunID         string         `json:"run_id"`
	TraceID       string         `json:"trace_id,omitempty"`
	Status        string         `json:"status"`
	EntityTypes   []string       `json:"entity_types"`
	PairsDetected map[string]int `json:"pairs_detected"`
	FailedBatches int            `json:"failed_batches"`
	DurationMs    int64          `json:"duration_ms"`
	Timestamp     time.Time      `json:"timestamp"`
}

// NewRunCompletedEvent creates a run event with a generated ID.
func NewRunCompletedEvent(runID, status string, entityTypes []string, pairs map[string]int, failedBatches int, durationMs int64) *RunCompletedEvent {
	return &RunCompletedEvent{
		EventID:       uuid.New().String(),
		RunID:         runID,
		Status:        status,
		EntityTypes:   entityTypes,
		PairsDetected: pairs,
		FailedBatches: failedBatches,
		DurationMs:    durationMs,
		Timestamp:     time.Now().UTC(),
	}
}

// EventPublisher publishes run events.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, event interface{}) error
}

// RedisEventPublisher publishes events to Redis pub/sub.
type RedisEventPublisher struct {
	client redis.UniversalClient
}

// NewRedisEventPublisher creates a publisher on client.
func NewRedisEventPublisher(client redis.UniversalClient) *RedisEventPublisher {
	return &RedisEventPublisher{client: client}
}

// Publish serializes event and publishes it to channel.
func (p *RedisEventPublisher) Publish(ctx context.Context, channel string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// NoOpEventPublisher discards all events.
type NoOpEventPublisher struct{}

// Publish does nothing.
func (NoOpEventPublisher) Publish(ctx context.Context, channel string, event interface{}) error {
	return nil
}
