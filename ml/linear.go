package ml

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// LinearRegression is ordinary least squares with an intercept.
//
// The system is solved on centered data through a thin SVD, so rank deficient
// inputs (a constant column, fewer rows than features) yield the minimum norm
// solution instead of an error.
type LinearRegression struct {
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	Rank         int       `json:"rank"`
}

func NewLinearRegression() *LinearRegression {
	return &LinearRegression{}
}

func (lr *LinearRegression) Name() string { return TypeLinearRegression }

func (lr *LinearRegression) Train(features [][]float64, targets []float64) error {
	width, err := validateTraining(features, targets)
	if err != nil {
		return err
	}
	rows := len(features)

	means := make([]float64, width)
	column := make([]float64, rows)
	for j := 0; j < width; j++ {
		for i, row := range features {
			column[i] = row[j]
		}
		means[j] = stat.Mean(column, nil)
	}
	targetMean := stat.Mean(targets, nil)

	x := mat.NewDense(rows, width, nil)
	y := mat.NewVecDense(rows, nil)
	for i, row := range features {
		for j, v := range row {
			x.Set(i, j, v-means[j])
		}
		y.SetVec(i, targets[i]-targetMean)
	}

	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return errors.New("linear regression: svd factorization failed")
	}
	rcond := math.Nextafter(1, 2) - 1
	rcond *= float64(max(rows, width))
	rank := svd.Rank(rcond)

	coef := make([]float64, width)
	if rank > 0 {
		var beta mat.VecDense
		svd.SolveVecTo(&beta, y, rank)
		for j := range coef {
			coef[j] = beta.AtVec(j)
		}
	}

	lr.Coefficients = coef
	lr.Intercept = targetMean - floats.Dot(means, coef)
	lr.Rank = rank
	return nil
}

func (lr *LinearRegression) Predict(features []float64) (float64, error) {
	if len(lr.Coefficients) == 0 {
		return 0, ErrNotTrained
	}
	if len(features) != len(lr.Coefficients) {
		return 0, fmt.Errorf("%w: want %d, got %d", ErrFeatureMismatch, len(lr.Coefficients), len(features))
	}
	return lr.Intercept + floats.Dot(lr.Coefficients, features), nil
}

func (lr *LinearRegression) Save(path string) error {
	if len(lr.Coefficients) == 0 {
		return ErrNotTrained
	}
	payload, err := json.Marshal(lr)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func (lr *LinearRegression) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var loaded LinearRegression
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return err
	}
	if len(loaded.Coefficients) == 0 {
		return fmt.Errorf("linear regression %s: %w", path, ErrNotTrained)
	}
	*lr = loaded
	return nil
}
