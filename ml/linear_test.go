package ml

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func TestLinearRegressionRecoversPlane(t *testing.T) {
	// y = 2 + 3a - b + 0.5c
	var features [][]float64
	var targets []float64
	for a := 0.0; a < 4; a++ {
		for b := 0.0; b < 3; b++ {
			for c := 0.0; c < 3; c++ {
				features = append(features, []float64{a, b, c})
				targets = append(targets, 2+3*a-b+0.5*c)
			}
		}
	}

	model := NewLinearRegression()
	if err := model.Train(features, targets); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{3, -1, 0.5}
	for i, coef := range model.Coefficients {
		if math.Abs(coef-want[i]) > 1e-9 {
			t.Fatalf("coefficient %d: expected %f, got %f", i, want[i], coef)
		}
	}
	if math.Abs(model.Intercept-2) > 1e-9 {
		t.Fatalf("expected intercept 2, got %f", model.Intercept)
	}
	got, err := model.Predict([]float64{10, 1, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-32) > 1e-9 {
		t.Fatalf("expected 32, got %f", got)
	}
}

func TestLinearRegressionConstantColumn(t *testing.T) {
	features := [][]float64{{1, 7}, {2, 7}, {3, 7}, {4, 7}}
	targets := []float64{2, 4, 6, 8}

	model := NewLinearRegression()
	if err := model.Train(features, targets); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.Rank != 1 {
		t.Fatalf("expected rank 1, got %d", model.Rank)
	}
	if math.Abs(model.Coefficients[1]) > 1e-9 {
		t.Fatalf("expected zero weight on constant column, got %f", model.Coefficients[1])
	}
	got, _ := model.Predict([]float64{5, 7})
	if math.Abs(got-10) > 1e-9 {
		t.Fatalf("expected 10, got %f", got)
	}
}

func TestLinearRegressionSingleRow(t *testing.T) {
	model := NewLinearRegression()
	if err := model.Train([][]float64{{1, 2}}, []float64{3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := model.Predict([]float64{9, 9})
	if got != 3 {
		t.Fatalf("expected mean prediction 3, got %f", got)
	}
}

func TestLinearRegressionSaveLoad(t *testing.T) {
	model := NewLinearRegression()
	if err := model.Save(filepath.Join(t.TempDir(), "x.json")); !errors.Is(err, ErrNotTrained) {
		t.Fatalf("expected ErrNotTrained, got %v", err)
	}
	if err := model.Train([][]float64{{1}, {2}, {3}}, []float64{1, 3, 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "linear.json")
	if err := model.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadModel(TypeLinearRegression, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want, _ := model.Predict([]float64{7})
	got, err := loaded.Predict([]float64{7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("expected %f, got %f", want, got)
	}
	if _, err := loaded.Predict([]float64{7, 8}); !errors.Is(err, ErrFeatureMismatch) {
		t.Fatalf("expected ErrFeatureMismatch, got %v", err)
	}
}

func TestLoadModelUnsupported(t *testing.T) {
	if _, err := LoadModel("svm", "nowhere"); err == nil {
		t.Fatal("expected error for unsupported model type")
	}
}
