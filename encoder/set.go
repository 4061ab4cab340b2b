// Package encoder turns categorical sales features into the fixed numeric
// vector consumed by the regressors.
package encoder

import (
	"fmt"
	"path/filepath"

	"vgsales/corpus"
)

// Feature names in vector order.
const (
	FeaturePlatform  = corpus.ColumnPlatform
	FeatureGenre     = corpus.ColumnGenre
	FeaturePublisher = corpus.ColumnPublisher
	FeatureYear      = corpus.ColumnYear
)

// Artifact file names, one per categorical feature.
const (
	PlatformFile  = "le_platform.json"
	GenreFile     = "le_genre.json"
	PublisherFile = "le_publisher.json"
)

// VectorWidth is the number of model inputs.
const VectorWidth = 4

// FeatureNames lists the vector components in order.
var FeatureNames = [VectorWidth]string{FeaturePlatform, FeatureGenre, FeaturePublisher, FeatureYear}

// Vector is (platform code, genre code, publisher code, year).
type Vector [VectorWidth]float64

func (v Vector) Slice() []float64 {
	out := make([]float64, VectorWidth)
	copy(out, v[:])
	return out
}

// Set is the three fitted encoders of one training run. It is never mutated
// after Fit or Load.
type Set struct {
	Platform  *LabelEncoder
	Genre     *LabelEncoder
	Publisher *LabelEncoder
}

// Fit builds one encoder per categorical feature from records.
func Fit(records []corpus.Record) (*Set, error) {
	platforms := make([]string, len(records))
	genres := make([]string, len(records))
	publishers := make([]string, len(records))
	for i, rec := range records {
		platforms[i] = rec.Platform
		genres[i] = rec.Genre
		publishers[i] = rec.Publisher
	}

	platform, err := FitLabelEncoder(FeaturePlatform, platforms)
	if err != nil {
		return nil, err
	}
	genre, err := FitLabelEncoder(FeatureGenre, genres)
	if err != nil {
		return nil, err
	}
	publisher, err := FitLabelEncoder(FeaturePublisher, publishers)
	if err != nil {
		return nil, err
	}
	return &Set{Platform: platform, Genre: genre, Publisher: publisher}, nil
}

// Transform encodes one record. A value unseen at fit time fails with
// *UnknownCategoryError and leaves the set untouched.
func (s *Set) Transform(rec corpus.Record) (Vector, error) {
	if err := rec.Validate(); err != nil {
		return Vector{}, err
	}
	platform, err := s.Platform.Code(rec.Platform)
	if err != nil {
		return Vector{}, err
	}
	genre, err := s.Genre.Code(rec.Genre)
	if err != nil {
		return Vector{}, err
	}
	publisher, err := s.Publisher.Code(rec.Publisher)
	if err != nil {
		return Vector{}, err
	}
	return Vector{float64(platform), float64(genre), float64(publisher), float64(rec.Year)}, nil
}

// TransformAll encodes every record, failing on the first bad one.
func (s *Set) TransformAll(records []corpus.Record) ([][]float64, error) {
	matrix := make([][]float64, len(records))
	for i, rec := range records {
		vec, err := s.Transform(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		matrix[i] = vec.Slice()
	}
	return matrix, nil
}

func (s *Set) encoders() map[string]*LabelEncoder {
	return map[string]*LabelEncoder{
		PlatformFile:  s.Platform,
		GenreFile:     s.Genre,
		PublisherFile: s.Publisher,
	}
}

// Save writes the three encoder files into dir.
func (s *Set) Save(dir string) error {
	for name, enc := range s.encoders() {
		if enc == nil {
			return fmt.Errorf("%w: %s not fitted", ErrInvalidEncoder, name)
		}
		if err := enc.Save(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the three encoder files from dir. All three must be present.
func Load(dir string) (*Set, error) {
	platform, err := LoadLabelEncoder(filepath.Join(dir, PlatformFile))
	if err != nil {
		return nil, err
	}
	genre, err := LoadLabelEncoder(filepath.Join(dir, GenreFile))
	if err != nil {
		return nil, err
	}
	publisher, err := LoadLabelEncoder(filepath.Join(dir, PublisherFile))
	if err != nil {
		return nil, err
	}
	set := &Set{Platform: platform, Genre: genre, Publisher: publisher}
	for want, enc := range map[string]*LabelEncoder{
		FeaturePlatform:  platform,
		FeatureGenre:     genre,
		FeaturePublisher: publisher,
	} {
		if enc.Feature() != want {
			return nil, fmt.Errorf("%w: expected %s encoder, found %s", ErrInvalidEncoder, want, enc.Feature())
		}
	}
	return set, nil
}

// Files lists the artifact names written by Save.
func Files() []string {
	return []string{PlatformFile, GenreFile, PublisherFile}
}
