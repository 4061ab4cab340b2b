// Package bundle persists encoders and models as one versioned artifact.
//
// Layout under the artifact root:
//
//	current -> bundles/<version>
//	bundles/<version>/manifest.json
//	bundles/<version>/linear_regression_model.json
//	bundles/<version>/random_forest_model.json
//	bundles/<version>/le_platform.json
//	bundles/<version>/le_genre.json
//	bundles/<version>/le_publisher.json
//
// A bundle directory only becomes reachable through current after every file
// in it has been written and synced.
package bundle

import (
	"time"

	"github.com/google/uuid"

	"vgsales/encoder"
	"vgsales/ml"
)

const (
	LinearModelFile = "linear_regression_model.json"
	ForestModelFile = "random_forest_model.json"
	ManifestFile    = "manifest.json"
	CurrentLink     = "current"
	BundlesDir      = "bundles"

	FormatVersion = 1

	lockFile      = ".publish.lock"
	stagingPrefix = "staging-"
)

// Manifest describes one training run's output.
type Manifest struct {
	Format      int               `json:"format"`
	Version     string            `json:"version"`
	CreatedAt   time.Time         `json:"created_at"`
	Features    []string          `json:"features"`
	Seed        int64             `json:"seed"`
	TestRatio   float64           `json:"test_ratio"`
	Estimators  int               `json:"estimators"`
	TrainRows   int               `json:"train_rows"`
	HeldOutRows int               `json:"held_out_rows"`
	Checksums   map[string]string `json:"checksums"`
}

// Bundle is the matched set of encoders and models from one training run.
type Bundle struct {
	Encoders *encoder.Set
	Models   ml.Pair
	Manifest Manifest
}

// New assembles a bundle and stamps it with a fresh version.
func New(encoders *encoder.Set, models ml.Pair, manifest Manifest) *Bundle {
	if manifest.Version == "" {
		manifest.Version = NewVersion(time.Now())
	}
	if manifest.CreatedAt.IsZero() {
		manifest.CreatedAt = time.Now().UTC()
	}
	manifest.Format = FormatVersion
	manifest.Features = append([]string(nil), encoder.FeatureNames[:]...)
	return &Bundle{Encoders: encoders, Models: models, Manifest: manifest}
}

// NewVersion returns a sortable, unique version id.
func NewVersion(now time.Time) string {
	return now.UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8]
}

// ArtifactFiles lists the five model and encoder files of a bundle.
func ArtifactFiles() []string {
	return append([]string{LinearModelFile, ForestModelFile}, encoder.Files()...)
}

func (b *Bundle) Version() string { return b.Manifest.Version }
