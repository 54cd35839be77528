package estimator

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Score is the accuracy of predictions against observed values
type Score struct {
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	R2   float64 `json:"r2"`
}

// Metrics is the training report stored with a model
type Metrics struct {
	TrainRMSE   float64 `json:"train_rmse"`
	TestRMSE    float64 `json:"test_rmse"`
	TrainMAE    float64 `json:"train_mae"`
	TestMAE     float64 `json:"test_mae"`
	TrainR2     float64 `json:"train_r2"`
	TestR2      float64 `json:"test_r2"`
	TrainSize   int     `json:"train_size"`
	TestSize    int     `json:"test_size"`
	NumFeatures int     `json:"num_features"`
}

// NewMetrics combines the train and test scores
func NewMetrics(train, test Score, trainSize, testSize, numFeatures int) Metrics {
	return Metrics{
		TrainRMSE:   train.RMSE,
		TestRMSE:    test.RMSE,
		TrainMAE:    train.MAE,
		TestMAE:     test.MAE,
		TrainR2:     train.R2,
		TestR2:      test.R2,
		TrainSize:   trainSize,
		TestSize:    testSize,
		NumFeatures: numFeatures,
	}
}

// Evaluate scores predicted against actual. Both slices must have the same
// length; an empty input scores zero.
func Evaluate(actual, predicted []float64) Score {
	n := len(actual)
	if n == 0 || n != len(predicted) {
		return Score{}
	}

	l2 := floats.Distance(actual, predicted, 2)
	ssRes := l2 * l2
	m := stat.Mean(actual, nil)
	var ssTot float64
	for _, v := range actual {
		ssTot += (v - m) * (v - m)
	}

	score := Score{
		RMSE: math.Sqrt(ssRes / float64(n)),
		MAE:  floats.Distance(actual, predicted, 1) / float64(n),
	}
	switch {
	case ssTot == 0 && ssRes == 0:
		score.R2 = 1
	case ssTot == 0:
		score.R2 = 0
	default:
		score.R2 = 1 - ssRes/ssTot
	}
	return score
}

// PredictAll runs est over every row of x
func PredictAll(est Estimator, x [][]float64) ([]float64, error) {
	out := make([]float64, len(x))
	for i, row := range x {
		v, err := est.Predict(row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

func mse(actual, predicted []float64) float64 {
	d := floats.Distance(actual, predicted, 2)
	return d * d / float64(len(actual))
}
