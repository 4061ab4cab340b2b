package ml

import (
	"fmt"
)

const (
	TypeLinearRegression = "linear_regression"
	TypeRandomForest     = "random_forest"
)

func LoadModel(modelType, path string) (Regressor, error) {
	var model Regressor
	switch modelType {
	case TypeLinearRegression:
		model = &LinearRegression{}
	case TypeRandomForest:
		model = &RandomForest{}
	default:
		return nil, fmt.Errorf("unsupported model type %q", modelType)
	}
	if err := model.Load(path); err != nil {
		return nil, err
	}
	return model, nil
}
