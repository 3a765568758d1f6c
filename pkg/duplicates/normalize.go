package duplicates

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize canonicalizes a free-text field for comparison.
// - "  World   Food Programme " → "world food programme"
// - "" → ""
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	// cases.Caser is stateful, so build one per call.
	lowered := cases.Lower(language.Und).String(s)
	return strings.Join(strings.Fields(lowered), " ")
}

// NormalizePtr normalizes an optional field, treating nil as empty.
func NormalizePtr(s *string) string {
	if s == nil {
		return ""
	}
	return Normalize(*s)
}
