package models

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Diagnostics summarizes the held-out residuals of a fitted estimator:
// systematic bias, leftover serial structure and a coarse accuracy grade.
type Diagnostics struct {
	// Bias is the mean residual. Positive means the estimator underpredicts.
	Bias float64 `json:"bias"`

	// ResidualAutocorr is the lag-1 autocorrelation of the residuals. Values
	// near zero mean the model captured the serial structure of the demand.
	ResidualAutocorr float64 `json:"residual_autocorr"`

	// Grade buckets the MAPE: excellent below 10%, good below 20%, fair
	// below 50%, poor otherwise, ungraded when MAPE is undefined.
	Grade string `json:"grade"`
}

// Diagnose computes residual diagnostics for predictions already scored by
// Evaluate.
func Diagnose(yTrue, yPred []float64, m Metrics) (Diagnostics, error) {
	if len(yTrue) == 0 {
		return Diagnostics{}, errors.New("diagnose: empty target")
	}
	if len(yTrue) != len(yPred) {
		return Diagnostics{}, errors.New("diagnose: length mismatch")
	}

	resid := make([]float64, len(yTrue))
	for i := range yTrue {
		resid[i] = yTrue[i] - yPred[i]
	}

	return Diagnostics{
		Bias:             stat.Mean(resid, nil),
		ResidualAutocorr: autocorrLag1(resid),
		Grade:            gradeMAPE(m.MAPE),
	}, nil
}

// autocorrLag1 is the lag-1 autocorrelation, zero when undefined.
func autocorrLag1(resid []float64) float64 {
	if len(resid) < 2 {
		return 0
	}
	mean := stat.Mean(resid, nil)
	var num, den float64
	for i, v := range resid {
		d := v - mean
		den += d * d
		if i > 0 {
			num += d * (resid[i-1] - mean)
		}
	}
	if den == 0 {
		return 0
	}
	return num / den
}

func gradeMAPE(mape float64) string {
	switch {
	case math.IsNaN(mape):
		return "ungraded"
	case mape < 10:
		return "excellent"
	case mape < 20:
		return "good"
	case mape < 50:
		return "fair"
	default:
		return "poor"
	}
}
