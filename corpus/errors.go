package corpus

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRecord marks a record with a missing or non-numeric field.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrCorpusUnavailable is returned when the corpus cannot be read at all.
	ErrCorpusUnavailable = errors.New("corpus unavailable")
	ErrMissingColumn     = errors.New("missing required column")
	ErrGameNotFound      = errors.New("game not found")
)

// MalformedRecordError names the offending field and raw value.
type MalformedRecordError struct {
	Field  string
	Value  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("malformed record: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed record: %s %q %s", e.Field, e.Value, e.Reason)
}

func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}
