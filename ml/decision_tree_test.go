package ml

import (
	"math"
	"path/filepath"
	"testing"
)

func TestRegressionTreeTrainPredict(t *testing.T) {
	features := [][]float64{
		{0.1, 0.2},
		{0.2, 0.1},
		{0.9, 0.8},
		{0.8, 0.9},
	}
	targets := []float64{1, 1, 5, 5}

	model := NewRegressionTree(TreeParams{MaxDepth: 2})
	if err := model.Train(features, targets); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	value, err := model.Predict([]float64{0.15, 0.15})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != 1 {
		t.Fatalf("expected 1, got %f", value)
	}
	value, err = model.Predict([]float64{0.85, 0.85})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != 5 {
		t.Fatalf("expected 5, got %f", value)
	}
}

func TestRegressionTreeFitsTrainingDataExactly(t *testing.T) {
	features := [][]float64{{1}, {2}, {3}, {4}, {5}, {6}}
	targets := []float64{3, 1, 4, 1, 5, 9}

	model := NewRegressionTree(TreeParams{})
	if err := model.Train(features, targets); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, row := range features {
		value, err := model.Predict(row)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if value != targets[i] {
			t.Fatalf("row %d: expected %f, got %f", i, targets[i], value)
		}
	}
	// nested subtrees must use absolute child indices
	if model.Depth() < 2 {
		t.Fatalf("expected a multi-level tree, got depth %d", model.Depth())
	}
}

func TestRegressionTreeMaxDepth(t *testing.T) {
	features := [][]float64{{1}, {2}, {3}, {4}}
	targets := []float64{1, 2, 3, 4}

	model := NewRegressionTree(TreeParams{MaxDepth: 1})
	if err := model.Train(features, targets); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if depth := model.Depth(); depth != 1 {
		t.Fatalf("expected depth 1, got %d", depth)
	}
	value, _ := model.Predict([]float64{1})
	if math.Abs(value-1.5) > 1e-9 {
		t.Fatalf("expected leaf mean 1.5, got %f", value)
	}
}

func TestRegressionTreeErrors(t *testing.T) {
	model := NewRegressionTree(TreeParams{})
	if _, err := model.Predict([]float64{1}); err != ErrNotTrained {
		t.Fatalf("expected ErrNotTrained, got %v", err)
	}
	if err := model.Train(nil, nil); err != ErrEmptyTraining {
		t.Fatalf("expected ErrEmptyTraining, got %v", err)
	}
	if err := model.Train([][]float64{{1}}, []float64{1, 2}); err != ErrSizeMismatch {
		t.Fatalf("expected ErrSizeMismatch, got %v", err)
	}
	if err := model.Train([][]float64{{1}, {2}}, []float64{1, 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := model.Predict([]float64{1, 2}); err != ErrFeatureMismatch {
		t.Fatalf("expected ErrFeatureMismatch, got %v", err)
	}
}

func TestRegressionTreeSaveLoad(t *testing.T) {
	features := [][]float64{{1, 0}, {2, 1}, {3, 0}, {4, 1}}
	targets := []float64{10, 20, 30, 40}
	model := NewRegressionTree(TreeParams{})
	if err := model.Train(features, targets); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "tree.json")
	if err := model.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded := &RegressionTree{}
	if err := loaded.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, row := range features {
		want, _ := model.Predict(row)
		got, err := loaded.Predict(row)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Fatalf("expected %f, got %f", want, got)
		}
	}
}
