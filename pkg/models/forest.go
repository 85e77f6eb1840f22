package models

import (
	"fmt"
	"math/rand"
)

// RandomForest is a bagged ensemble of regression trees. Each tree is
// trained on a bootstrap sample and considers a random subset of features
// at every split; predictions average the trees.
type RandomForest struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	Seed            int64

	trees     []*regressionTree
	nFeatures int
}

// NewRandomForest creates a forest with the default hyperparameters.
func NewRandomForest() *RandomForest {
	return &RandomForest{
		NEstimators:     100,
		MaxDepth:        15,
		MinSamplesSplit: 5,
		MinSamplesLeaf:  2,
		Seed:            42,
	}
}

// Name returns the family identifier.
func (f *RandomForest) Name() string {
	return string(KindRandomForest)
}

// Fit trains the ensemble. Training is deterministic for a fixed Seed.
func (f *RandomForest) Fit(X [][]float64, y []float64) error {
	nFeatures, err := validateFit(X, y)
	if err != nil {
		return fmt.Errorf("random forest: %w", err)
	}

	rng := rand.New(rand.NewSource(f.Seed))
	mtry := nFeatures / 3
	if mtry < 1 {
		mtry = 1
	}

	f.trees = make([]*regressionTree, f.NEstimators)
	n := len(X)
	for i := range f.trees {
		sample := make([]int, n)
		for j := range sample {
			sample[j] = rng.Intn(n)
		}
		tree := &regressionTree{
			maxDepth:        f.MaxDepth,
			minSamplesSplit: f.MinSamplesSplit,
			minSamplesLeaf:  f.MinSamplesLeaf,
			maxFeatures:     mtry,
		}
		tree.fit(X, y, sample, rng)
		f.trees[i] = tree
	}
	f.nFeatures = nFeatures
	return nil
}

// Predict averages the per-tree predictions.
func (f *RandomForest) Predict(X [][]float64) ([]float64, error) {
	if err := validatePredict(X, f.nFeatures); err != nil {
		return nil, fmt.Errorf("random forest: %w", err)
	}
	out := make([]float64, len(X))
	for i, row := range X {
		var sum float64
		for _, tree := range f.trees {
			sum += tree.predict(row)
		}
		out[i] = sum / float64(len(f.trees))
	}
	return out, nil
}
