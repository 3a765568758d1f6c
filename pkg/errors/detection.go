package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a classified detection error.
type ErrorCode string

const (
	ErrConfiguration     ErrorCode = "configuration"
	ErrFetchFailed       ErrorCode = "fetch_failed"
	ErrUpsertBatchFailed ErrorCode = "upsert_batch_failed"
	ErrClearFailed       ErrorCode = "clear_failed"
	ErrLockHeld          ErrorCode = "lock_held"
	ErrContextCancelled  ErrorCode = "context_cancelled"
	ErrTimeout           ErrorCode = "timeout"
)

// DetectionError is a structured error for detection run failures.
type DetectionError struct {
	Code       ErrorCode
	Operation  string
	EntityType string
	// BatchIndex is zero-based; -1 when the error is not tied to a batch.
	BatchIndex int
	Message    string
	Cause      error
}

func (e *DetectionError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	if e.Operation != "" {
		b.WriteString(e.Operation)
	}
	if e.EntityType != "" {
		fmt.Fprintf(&b, " [entity_type=%s]", e.EntityType)
	}
	if e.BatchIndex >= 0 {
		fmt.Fprintf(&b, " [batch=%d]", e.BatchIndex)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *DetectionError) Unwrap() error {
	return e.Cause
}

func newError(code ErrorCode, op, entityType string, batch int, cause error) *DetectionError {
	de := &DetectionError{
		Code:       code,
		Operation:  op,
		EntityType: entityType,
		BatchIndex: batch,
		Cause:      cause,
	}
	if cause != nil {
		de.Message = cause.Error()
		// Cancellation wins over the caller's code.
		switch {
		case errors.Is(cause, context.Canceled):
			de.Code = ErrContextCancelled
		case errors.Is(cause, context.DeadlineExceeded):
			de.Code = ErrTimeout
		}
	}
	return de
}

// NewConfigurationError wraps a failure to configure or construct dependencies.
func NewConfigurationError(op string, cause error) *DetectionError {
	return newError(ErrConfiguration, op, "", -1, cause)
}

// NewFetchError wraps a failure to load one entity collection.
func NewFetchError(entityType string, cause error) *DetectionError {
	return newError(ErrFetchFailed, "load", entityType, -1, cause)
}

// NewUpsertBatchError wraps a failure to persist one batch.
func NewUpsertBatchError(entityType string, batchIndex int, cause error) *DetectionError {
	return newError(ErrUpsertBatchFailed, "upsert", entityType, batchIndex, cause)
}

// NewClearError wraps a failure to delete stored pairs.
func NewClearError(entityType string, cause error) *DetectionError {
	return newError(ErrClearFailed, "clear", entityType, -1, cause)
}

// NewLockHeldError reports that another run holds the run lock.
func NewLockHeldError(key string) *DetectionError {
	de := newError(ErrLockHeld, "acquire lock", "", -1, nil)
	de.Message = fmt.Sprintf("lock %s is held by another run", key)
	return de
}

// CodeOf returns the code of the first DetectionError in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var de *DetectionError
	if errors.As(err, &de) {
		return de.Code, true
	}
	return "", false
}

// IsFatal reports whether err should abort with a non-zero exit. Errors
// that are not DetectionErrors are fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	code, ok := CodeOf(err)
	if !ok {
		return true
	}
	return IsFatalCode(code)
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
