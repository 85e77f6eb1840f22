// Package models implements the regression estimators used for demand
// forecasting behind a small capability interface: fit a feature matrix
// against a target vector, then predict from feature vectors with the same
// column order.
//
// Three families are supported: a bagged-tree ensemble, a boosted-tree
// ensemble and a plain linear regressor. Selection is by Kind tag, never by
// runtime type inspection.
package models

import (
	"errors"
	"fmt"
)

// Kind identifies an estimator family.
type Kind string

const (
	KindRandomForest     Kind = "random_forest"
	KindGradientBoosting Kind = "gradient_boosting"
	KindLinearRegression Kind = "linear_regression"
)

// Kinds lists every supported estimator family.
func Kinds() []Kind {
	return []Kind{KindRandomForest, KindGradientBoosting, KindLinearRegression}
}

// ParseKind validates an estimator name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindRandomForest, KindGradientBoosting, KindLinearRegression:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown estimator %q", s)
	}
}

// ErrNotFitted is returned by Predict before a successful Fit.
var ErrNotFitted = errors.New("estimator not fitted")

// Estimator is a fittable regression function from a fixed-order numeric
// feature vector to a scalar prediction. A fitted estimator belongs to the
// training session that produced it and is not shared across sessions.
type Estimator interface {
	// Name returns the family identifier.
	Name() string

	// Fit trains on a feature matrix X (rows of equal length) and target y.
	Fit(X [][]float64, y []float64) error

	// Predict returns one prediction per row of X. The column order must
	// match the order used at fit time.
	Predict(X [][]float64) ([]float64, error)
}

// New creates a fresh, unfitted estimator of the given kind with the
// default hyperparameters.
func New(kind Kind) (Estimator, error) {
	switch kind {
	case KindRandomForest:
		return NewRandomForest(), nil
	case KindGradientBoosting:
		return NewGradientBoosting(), nil
	case KindLinearRegression:
		return NewLinearRegression(), nil
	default:
		return nil, fmt.Errorf("unknown estimator kind %q", kind)
	}
}

// validateFit checks the shape of training inputs.
func validateFit(X [][]float64, y []float64) (nFeatures int, err error) {
	if len(X) == 0 {
		return 0, errors.New("empty feature matrix")
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("feature matrix has %d rows, target has %d", len(X), len(y))
	}
	nFeatures = len(X[0])
	if nFeatures == 0 {
		return 0, errors.New("feature matrix has no columns")
	}
	for i, row := range X {
		if len(row) != nFeatures {
			return 0, fmt.Errorf("row %d has %d features, expected %d", i, len(row), nFeatures)
		}
	}
	return nFeatures, nil
}

// validatePredict checks prediction input shape against the fitted width.
func validatePredict(X [][]float64, nFeatures int) error {
	if nFeatures == 0 {
		return ErrNotFitted
	}
	for i, row := range X {
		if len(row) != nFeatures {
			return fmt.Errorf("row %d has %d features, estimator was fitted with %d", i, len(row), nFeatures)
		}
	}
	return nil
}
