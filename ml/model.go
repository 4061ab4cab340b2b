package ml

import "errors"

var (
	ErrNotTrained      = errors.New("model not trained")
	ErrEmptyTraining   = errors.New("features or targets empty")
	ErrSizeMismatch    = errors.New("features and targets size mismatch")
	ErrFeatureMismatch = errors.New("feature vector width mismatch")
	ErrTooFewRows      = errors.New("not enough rows for a training partition")
)

// Regressor is a fitted model mapping a numeric feature vector to a scalar.
type Regressor interface {
	Train(features [][]float64, targets []float64) error
	Predict(features []float64) (float64, error)
	Save(path string) error
	Load(path string) error
	Name() string
}

// Pair holds the two regressors fitted by one training run. They share the
// same feature schema and target and are never averaged.
type Pair struct {
	Linear *LinearRegression
	Forest *RandomForest
}

// Estimates evaluates both models on the same vector.
func (p Pair) Estimates(features []float64) (linear, forest float64, err error) {
	if p.Linear == nil || p.Forest == nil {
		return 0, 0, ErrNotTrained
	}
	linear, err = p.Linear.Predict(features)
	if err != nil {
		return 0, 0, err
	}
	forest, err = p.Forest.Predict(features)
	if err != nil {
		return 0, 0, err
	}
	return linear, forest, nil
}

func validateTraining(features [][]float64, targets []float64) (int, error) {
	if len(features) == 0 || len(targets) == 0 {
		return 0, ErrEmptyTraining
	}
	if len(features) != len(targets) {
		return 0, ErrSizeMismatch
	}
	width := len(features[0])
	if width == 0 {
		return 0, ErrFeatureMismatch
	}
	for _, row := range features {
		if len(row) != width {
			return 0, ErrFeatureMismatch
		}
	}
	return width, nil
}
