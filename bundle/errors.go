package bundle

import (
	"errors"

	"vgsales/encoder"
)

var (
	// ErrArtifactMissing means no complete, readable bundle is published.
	ErrArtifactMissing = errors.New("artifact bundle missing")
	// ErrPublishInProgress means another training run holds the publish lock.
	ErrPublishInProgress = errors.New("bundle publish already in progress")
	ErrIncompleteBundle  = errors.New("bundle is incomplete")
)

// isArtifactMissing folds the encoder package's sentinel into this one.
func isArtifactMissing(err error) bool {
	return errors.Is(err, ErrArtifactMissing) || errors.Is(err, encoder.ErrArtifactMissing)
}
