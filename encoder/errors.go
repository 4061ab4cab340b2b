package encoder

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownCategory is returned by Transform for a value never seen by Fit.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrEmptyFeature is returned by Fit when a feature has no values.
	ErrEmptyFeature = errors.New("no values to encode")
	// ErrArtifactMissing is returned by Load when an encoder file is absent or unreadable.
	ErrArtifactMissing = errors.New("encoder artifact missing")
	ErrInvalidEncoder  = errors.New("invalid encoder")
)

// UnknownCategoryError identifies the feature and the rejected value. Value
// is the value after corpus.NormalizeCategory, so surrounding whitespace sent
// by the caller does not appear in it.
type UnknownCategoryError struct {
	Feature string
	Value   string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category: %s %q was not seen during training", e.Feature, e.Value)
}

func (e *UnknownCategoryError) Is(target error) bool {
	return target == ErrUnknownCategory
}
