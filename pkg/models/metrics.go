package models

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Metrics holds the held-out evaluation scores of a fitted estimator.
type Metrics struct {
	MAE  float64 `json:"mae"`
	MSE  float64 `json:"mse"`
	RMSE float64 `json:"rmse"`
	MAPE float64 `json:"mape"`
	R2   float64 `json:"r2"`
}

// Evaluate scores predictions against the true targets. MAPE skips rows
// whose true value is zero and is NaN when every row is skipped. R2 is NaN
// when the targets are constant.
func Evaluate(yTrue, yPred []float64) (Metrics, error) {
	if len(yTrue) == 0 {
		return Metrics{}, errors.New("evaluate: empty target")
	}
	if len(yTrue) != len(yPred) {
		return Metrics{}, errors.New("evaluate: length mismatch")
	}

	var m Metrics
	var absSum, sqSum, pctSum float64
	pctCount := 0
	for i, yt := range yTrue {
		d := yt - yPred[i]
		absSum += math.Abs(d)
		sqSum += d * d
		if yt != 0 {
			pctSum += math.Abs(d / yt)
			pctCount++
		}
	}

	n := float64(len(yTrue))
	m.MAE = absSum / n
	m.MSE = sqSum / n
	m.RMSE = math.Sqrt(m.MSE)
	if pctCount > 0 {
		m.MAPE = 100 * pctSum / float64(pctCount)
	} else {
		m.MAPE = math.NaN()
	}

	mean := stat.Mean(yTrue, nil)
	var totSS float64
	for _, yt := range yTrue {
		d := yt - mean
		totSS += d * d
	}
	if totSS == 0 {
		m.R2 = math.NaN()
	} else {
		m.R2 = 1 - sqSum/totSS
	}
	return m, nil
}
