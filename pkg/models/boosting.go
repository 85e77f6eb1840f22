package models

import (
	"fmt"
	"math/rand"
)

// GradientBoosting is a boosted ensemble of shallow regression trees fitted
// to squared-error residuals. The initial prediction is the target mean and
// each stage adds a learning-rate-scaled correction.
type GradientBoosting struct {
	NEstimators  int
	LearningRate float64
	MaxDepth     int
	Seed         int64

	init      float64
	trees     []*regressionTree
	nFeatures int
}

// NewGradientBoosting creates a boosted ensemble with the default
// hyperparameters.
func NewGradientBoosting() *GradientBoosting {
	return &GradientBoosting{
		NEstimators:  100,
		LearningRate: 0.1,
		MaxDepth:     5,
		Seed:         42,
	}
}

// Name returns the family identifier.
func (g *GradientBoosting) Name() string {
	return string(KindGradientBoosting)
}

// Fit trains the stages sequentially on the residuals of the running
// prediction.
func (g *GradientBoosting) Fit(X [][]float64, y []float64) error {
	nFeatures, err := validateFit(X, y)
	if err != nil {
		return fmt.Errorf("gradient boosting: %w", err)
	}

	n := len(X)
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	var sum float64
	for _, v := range y {
		sum += v
	}
	g.init = sum / float64(n)

	current := make([]float64, n)
	for i := range current {
		current[i] = g.init
	}
	residual := make([]float64, n)

	rng := rand.New(rand.NewSource(g.Seed))
	g.trees = make([]*regressionTree, g.NEstimators)
	for s := range g.trees {
		for i := range residual {
			residual[i] = y[i] - current[i]
		}
		tree := &regressionTree{
			maxDepth:        g.MaxDepth,
			minSamplesSplit: 2,
			minSamplesLeaf:  1,
		}
		tree.fit(X, residual, all, rng)
		g.trees[s] = tree

		for i, row := range X {
			current[i] += g.LearningRate * tree.predict(row)
		}
	}
	g.nFeatures = nFeatures
	return nil
}

// Predict sums the initial prediction and the scaled stage corrections.
func (g *GradientBoosting) Predict(X [][]float64) ([]float64, error) {
	if err := validatePredict(X, g.nFeatures); err != nil {
		return nil, fmt.Errorf("gradient boosting: %w", err)
	}
	out := make([]float64, len(X))
	for i, row := range X {
		v := g.init
		for _, tree := range g.trees {
			v += g.LearningRate * tree.predict(row)
		}
		out[i] = v
	}
	return out, nil
}
