// Package errors provides domain error types for dupdetect.
//
// Sentinel errors cover common domain conditions and are checked with
// errors.Is. DetectionError carries a classified code plus the operation,
// entity type and batch that failed, so a message is diagnosable without
// reading the source.
//
// Usage:
//
//	import pferrors "github.com/otherjamesbrown/dupdetect/pkg/errors"
//
//	return pferrors.NewFetchError("activity", err)
//
//	if pferrors.IsFatal(err) {
//	    os.Exit(1)
//	}
package errors

import "errors"

// Domain errors - common sentinel errors for domain conditions.
var (
	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates invalid input or validation failure.
	ErrValidation = errors.New("validation error")
)

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
