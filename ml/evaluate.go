package ml

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Evaluation summarizes a regressor on held-out rows.
type Evaluation struct {
	R2      float64 `json:"r2"`
	RMSE    float64 `json:"rmse"`
	MAE     float64 `json:"mae"`
	Samples int     `json:"samples"`
}

// EvaluateModel scores model on testX/testY. Rows the model cannot predict
// are skipped. R2 is NaN when fewer than two rows were scored.
func EvaluateModel(model Regressor, testX [][]float64, testY []float64) Evaluation {
	if len(testX) == 0 {
		return Evaluation{R2: math.NaN(), RMSE: math.NaN(), MAE: math.NaN()}
	}

	predicted := make([]float64, 0, len(testX))
	actual := make([]float64, 0, len(testX))
	for i, feature := range testX {
		value, err := model.Predict(feature)
		if err != nil {
			continue
		}
		predicted = append(predicted, value)
		actual = append(actual, testY[i])
	}
	if len(predicted) == 0 {
		return Evaluation{R2: math.NaN(), RMSE: math.NaN(), MAE: math.NaN()}
	}

	var squared, absolute float64
	for i := range predicted {
		diff := predicted[i] - actual[i]
		squared += diff * diff
		absolute += math.Abs(diff)
	}
	n := float64(len(predicted))
	eval := Evaluation{
		RMSE:    math.Sqrt(squared / n),
		MAE:     absolute / n,
		Samples: len(predicted),
		R2:      math.NaN(),
	}
	if len(predicted) > 1 {
		eval.R2 = stat.RSquaredFrom(predicted, actual, nil)
	}
	return eval
}
