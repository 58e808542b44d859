package errors

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// ValidateCanvas checks that both canvas dimensions are positive and finite.
// A zero or negative dimension is one of the two conditions the layout
// engine reports as a hard failure.
func ValidateCanvas(width, height float64) error {
	if math.IsNaN(width) || math.IsInf(width, 0) || width <= 0 {
		return New(ErrCodeInvalidCanvas, "canvas width must be positive, got %g", width)
	}
	if math.IsNaN(height) || math.IsInf(height, 0) || height <= 0 {
		return New(ErrCodeInvalidCanvas, "canvas height must be positive, got %g", height)
	}
	return nil
}

// ValidateRange checks that min <= max. An infinite bound means "unbounded
// on that side", so min may be -Inf and max +Inf but not the reverse. NaN
// is rejected.
func ValidateRange(name string, lo, hi float64) error {
	if math.IsNaN(lo) || math.IsNaN(hi) {
		return New(ErrCodeInvalidRange, "%s range contains NaN", name)
	}
	if math.IsInf(lo, 1) || math.IsInf(hi, -1) {
		return New(ErrCodeInvalidRange, "%s range is empty: min %g, max %g", name, lo, hi)
	}
	if lo > hi {
		return New(ErrCodeInvalidRange, "%s range is inverted: min %g > max %g", name, lo, hi)
	}
	return nil
}

// ValidateQuantile checks that q lies in the closed interval [0, 1].
func ValidateQuantile(name string, q float64) error {
	if !(q >= 0 && q <= 1) {
		return New(ErrCodeInvalidConfig, "%s quantile must be within [0, 1], got %g", name, q)
	}
	return nil
}

// snapshotNameRegex matches names accepted by snapshot stores.
var snapshotNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateSnapshotName validates a snapshot name for safety.
// Names double as file names in the file store and document ids in the
// Mongo store, so the rules are conservative:
//   - No empty names
//   - Maximum length of 128 characters
//   - No control characters or path separators
//   - No path traversal sequences (..)
func ValidateSnapshotName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidName, "snapshot name cannot be empty")
	}
	if len(name) > 128 {
		return New(ErrCodeInvalidName, "snapshot name too long (max 128 characters)")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidName, "snapshot name contains invalid control characters")
		}
	}
	if strings.Contains(name, "..") {
		return New(ErrCodeInvalidName, "snapshot name cannot contain path traversal sequences (..)")
	}
	if !snapshotNameRegex.MatchString(name) {
		return New(ErrCodeInvalidName, "invalid snapshot name: %q", name)
	}
	return nil
}
