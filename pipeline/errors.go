package pipeline

import "errors"

var (
	// ErrEmptyCorpus means no usable rows remained after filtering, or too few
	// to leave a training partition.
	ErrEmptyCorpus = errors.New("empty corpus")
	// ErrModelsUnavailable means prediction was asked of a context with no
	// loaded bundle.
	ErrModelsUnavailable = errors.New("models unavailable")
)
