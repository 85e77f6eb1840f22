package models

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// LinearRegression fits an ordinary least-squares model with an intercept.
// The normal equations are solved with a tiny ridge term so collinear
// feature columns (common after one-hot-like encodings) cannot make the
// system singular.
type LinearRegression struct {
	coef      []float64
	intercept float64
	nFeatures int
}

// NewLinearRegression creates an unfitted linear regressor.
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{}
}

// Name returns the family identifier.
func (l *LinearRegression) Name() string {
	return string(KindLinearRegression)
}

const ridgeEpsilon = 1e-8

// Fit solves min ||Xw - y||² over the training rows.
func (l *LinearRegression) Fit(X [][]float64, y []float64) error {
	nFeatures, err := validateFit(X, y)
	if err != nil {
		return fmt.Errorf("linear regression: %w", err)
	}

	n := len(X)
	p := nFeatures + 1 // intercept column

	a := mat.NewDense(n, p, nil)
	for i, row := range X {
		a.Set(i, 0, 1)
		for j, v := range row {
			a.Set(i, j+1, v)
		}
	}
	b := mat.NewVecDense(n, append([]float64(nil), y...))

	// A'A + eps*I, A'y
	var ata mat.SymDense
	ata.SymOuterK(1, a.T())
	for i := 0; i < p; i++ {
		ata.SetSym(i, i, ata.At(i, i)+ridgeEpsilon)
	}
	var atb mat.VecDense
	atb.MulVec(a.T(), b)

	var chol mat.Cholesky
	if ok := chol.Factorize(&ata); !ok {
		return fmt.Errorf("linear regression: normal equations not positive definite")
	}
	var w mat.VecDense
	if err := chol.SolveVecTo(&w, &atb); err != nil {
		return fmt.Errorf("linear regression: solve: %w", err)
	}

	l.intercept = w.AtVec(0)
	l.coef = make([]float64, nFeatures)
	for j := 0; j < nFeatures; j++ {
		l.coef[j] = w.AtVec(j + 1)
	}
	l.nFeatures = nFeatures
	return nil
}

// Predict applies the fitted coefficients.
func (l *LinearRegression) Predict(X [][]float64) ([]float64, error) {
	if err := validatePredict(X, l.nFeatures); err != nil {
		return nil, fmt.Errorf("linear regression: %w", err)
	}
	out := make([]float64, len(X))
	for i, row := range X {
		v := l.intercept
		for j, x := range row {
			v += l.coef[j] * x
		}
		out[i] = v
	}
	return out, nil
}
