package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"direct match", ErrValidation, true},
		{"wrapped", fmt.Errorf("input: %w", ErrValidation), true},
		{"wrapped twice", fmt.Errorf("config: %w", fmt.Errorf("threshold: %w", ErrValidation)), true},
		{"different error", ErrNotFound, false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidation(tt.err); got != tt.want {
				t.Errorf("IsValidation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("get pair: %w", ErrNotFound)))
	assert.False(t, IsNotFound(ErrValidation))
	assert.False(t, IsNotFound(nil))
}

func TestDetectionError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *DetectionError
		want string
	}{
		{
			name: "fetch error names the entity type",
			err:  NewFetchError("activity", errors.New("relation \"activities\" does not exist")),
			want: `fetch_failed: load [entity_type=activity]: relation "activities" does not exist`,
		},
		{
			name: "batch error names the batch",
			err:  NewUpsertBatchError("organization", 3, errors.New("connection reset")),
			want: "upsert_batch_failed: upsert [entity_type=organization] [batch=3]: connection reset",
		},
		{
			name: "configuration error",
			err:  NewConfigurationError("connect database", errors.New("password authentication failed")),
			want: "configuration: connect database: password authentication failed",
		},
		{
			name: "lock held",
			err:  NewLockHeldError("dupdetect:lock:run"),
			want: "lock_held: acquire lock: lock dupdetect:lock:run is held by another run",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestDetectionError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("scan: %w", ErrValidation)
	err := fmt.Errorf("run: %w", NewFetchError("activity", cause))

	assert.True(t, errors.Is(err, ErrValidation))
	code, ok := CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, ErrFetchFailed, code)
}

func TestDetectionError_ContextCodes(t *testing.T) {
	err := NewFetchError("activity", fmt.Errorf("query: %w", context.Canceled))
	assert.Equal(t, ErrContextCancelled, err.Code)

	err = NewUpsertBatchError("activity", 0, fmt.Errorf("exec: %w", context.DeadlineExceeded))
	assert.Equal(t, ErrTimeout, err.Code)
	assert.Equal(t, 0, err.BatchIndex)
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), true},
		{"configuration", NewConfigurationError("load config", errors.New("bad yaml")), true},
		{"fetch", NewFetchError("organization", errors.New("timeout")), true},
		{"upsert batch", NewUpsertBatchError("organization", 1, errors.New("deadlock")), false},
		{"wrapped upsert batch", fmt.Errorf("persist: %w", NewUpsertBatchError("activity", 0, errors.New("x"))), false},
		{"lock held", NewLockHeldError("k"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestErrorCodeRegistry_Completeness(t *testing.T) {
	allCodes := []ErrorCode{
		ErrConfiguration,
		ErrFetchFailed,
		ErrUpsertBatchFailed,
		ErrClearFailed,
		ErrLockHeld,
		ErrContextCancelled,
		ErrTimeout,
	}

	for _, code := range allCodes {
		t.Run(string(code), func(t *testing.T) {
			info, ok := ErrorCodeRegistry[code]
			assert.True(t, ok, "ErrorCode %s should be in registry", code)
			assert.Equal(t, code, info.Code)
			assert.NotEmpty(t, info.Description)
			assert.NotEmpty(t, info.SuggestedAction)
		})
	}
}

func TestRegistryLookups_UnknownCode(t *testing.T) {
	assert.True(t, IsFatalCode("mystery"))
	assert.Equal(t, "Unknown error", GetDescription("mystery"))
	assert.NotEmpty(t, GetSuggestedAction("mystery"))
}
