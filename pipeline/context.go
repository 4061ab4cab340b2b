package pipeline

import (
	"fmt"
	"math"

	"vgsales/bundle"
	"vgsales/corpus"
	"vgsales/encoder"
	"vgsales/ml"
)

// Prediction echoes the input attributes next to both model estimates.
type Prediction struct {
	Name           string  `json:"name,omitempty"`
	Platform       string  `json:"platform"`
	Genre          string  `json:"genre"`
	Publisher      string  `json:"publisher"`
	Year           int     `json:"year"`
	ActualSales    float64 `json:"actual_sales"`
	LinearEstimate float64 `json:"linear_regression"`
	ForestEstimate float64 `json:"random_forest"`
	Version        string  `json:"version,omitempty"`
}

// Context serves predictions from one loaded bundle. It is immutable and safe
// for concurrent use.
type Context struct {
	bundle *bundle.Bundle
}

func NewContext(b *bundle.Bundle) *Context {
	return &Context{bundle: b}
}

// Open loads the current bundle published under dir.
func Open(dir string) (*Context, error) {
	b, err := bundle.Load(dir)
	if err != nil {
		return nil, err
	}
	return NewContext(b), nil
}

func (c *Context) Version() string {
	if c == nil || c.bundle == nil {
		return ""
	}
	return c.bundle.Version()
}

func (c *Context) Bundle() *bundle.Bundle {
	if c == nil {
		return nil
	}
	return c.bundle
}

// Predict encodes rec with the bundle's encoders and runs both models.
func (c *Context) Predict(rec corpus.Record) (*Prediction, error) {
	if c == nil || c.bundle == nil || c.bundle.Encoders == nil {
		return nil, ErrModelsUnavailable
	}
	p, err := Predict(rec, c.bundle.Encoders, c.bundle.Models)
	if err != nil {
		return nil, err
	}
	p.Version = c.bundle.Version()
	return p, nil
}

// Predict is the stateless form of (*Context).Predict.
func Predict(rec corpus.Record, set *encoder.Set, models ml.Pair) (*Prediction, error) {
	if set == nil || models.Linear == nil || models.Forest == nil {
		return nil, ErrModelsUnavailable
	}
	vec, err := set.Transform(rec)
	if err != nil {
		return nil, err
	}
	linear, forest, err := models.Estimates(vec.Slice())
	if err != nil {
		return nil, fmt.Errorf("estimate: %w", err)
	}
	return &Prediction{
		Name:           rec.Name,
		Platform:       corpus.NormalizeCategory(rec.Platform),
		Genre:          corpus.NormalizeCategory(rec.Genre),
		Publisher:      corpus.NormalizeCategory(rec.Publisher),
		Year:           rec.Year,
		ActualSales:    round2(rec.GlobalSales),
		LinearEstimate: round2(linear),
		ForestEstimate: round2(forest),
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
