package duplicates

import (
	"fmt"
	"time"

	pferrors "github.com/otherjamesbrown/dupdetect/pkg/errors"
)

// Default detection settings.
const (
	DefaultCrossOrgThreshold  = 0.90
	DefaultSameGroupThreshold = 0.85
	DefaultDateTolerance      = 90 * 24 * time.Hour
	DefaultCrossReferenceType = "A2"
	DefaultBatchSize          = 100
)

// Config holds detection thresholds and policies.
type Config struct {
	// CrossOrgThreshold is the minimum title similarity (inclusive) for
	// cross-organization suggested links.
	CrossOrgThreshold float64 `json:"cross_org_threshold" yaml:"cross_org_threshold"`

	// SameGroupThreshold is the minimum similarity (inclusive) for
	// same-organization activities and similar organization names.
	// Scores of 1.0 are left to the exact rules.
	SameGroupThreshold float64 `json:"same_group_threshold" yaml:"same_group_threshold"`

	// DateTolerance widens partial date range comparisons.
	DateTolerance time.Duration `json:"date_tolerance" yaml:"date_tolerance"`

	// AssumeOverlapWhenMissing treats activities without any dates as
	// overlapping.
	AssumeOverlapWhenMissing bool `json:"assume_overlap_when_missing" yaml:"assume_overlap_when_missing"`

	// CrossOrgIncludeUnowned lets activities without an owning organization
	// take part in cross-organization linking, as if each had its own
	// unknown owner. Same-organization grouping still skips them.
	CrossOrgIncludeUnowned bool `json:"cross_org_include_unowned" yaml:"cross_org_include_unowned"`

	// CrossReferenceType is the other-identifier type compared by the
	// exact cross-reference rule.
	CrossReferenceType string `json:"cross_reference_type" yaml:"cross_reference_type"`

	// BatchSize is the number of pairs written per storage call.
	BatchSize int `json:"batch_size" yaml:"batch_size"`
}

// DefaultConfig returns the default detection configuration.
func DefaultConfig() Config {
	return Config{
		CrossOrgThreshold:        DefaultCrossOrgThreshold,
		SameGroupThreshold:       DefaultSameGroupThreshold,
		DateTolerance:            DefaultDateTolerance,
		AssumeOverlapWhenMissing: true,
		CrossReferenceType:       DefaultCrossReferenceType,
		BatchSize:                DefaultBatchSize,
	}
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if c.CrossOrgThreshold <= 0 || c.CrossOrgThreshold > 1 {
		return fmt.Errorf("%w: cross_org_threshold must be in (0,1], got %v", pferrors.ErrValidation, c.CrossOrgThreshold)
	}
	if c.SameGroupThreshold <= 0 || c.SameGroupThreshold >= 1 {
		return fmt.Errorf("%w: same_group_threshold must be in (0,1), got %v", pferrors.ErrValidation, c.SameGroupThreshold)
	}
	if c.DateTolerance < 0 {
		return fmt.Errorf("%w: date_tolerance must not be negative", pferrors.ErrValidation)
	}
	if c.CrossReferenceType == "" {
		return fmt.Errorf("%w: cross_reference_type is required", pferrors.ErrValidation)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive, got %d", pferrors.ErrValidation, c.BatchSize)
	}
	return nil
}

// OverlapPolicy returns the date overlap policy for this configuration.
func (c Config) OverlapPolicy() OverlapPolicy {
	return OverlapPolicy{
		Tolerance:                c.DateTolerance,
		AssumeOverlapWhenMissing: c.AssumeOverlapWhenMissing,
	}
}
