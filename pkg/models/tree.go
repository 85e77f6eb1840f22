package models

import (
	"math"
	"math/rand"
	"sort"
)

// regressionTree is a CART-style regression tree fitted by recursive
// variance-minimizing splits. It is the shared building block for the
// bagged and boosted ensembles and is not exposed on its own.
type regressionTree struct {
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int

	// maxFeatures limits how many candidate features each split considers
	// (0 means all); used for the random-forest decorrelation.
	maxFeatures int

	root *treeNode
}

type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	value     float64
	leaf      bool
}

// fit grows the tree on the rows of X indexed by idx.
func (t *regressionTree) fit(X [][]float64, y []float64, idx []int, rng *rand.Rand) {
	t.root = t.grow(X, y, idx, 0, rng)
}

func (t *regressionTree) grow(X [][]float64, y []float64, idx []int, depth int, rng *rand.Rand) *treeNode {
	if len(idx) == 0 {
		return &treeNode{leaf: true}
	}

	value := meanAt(y, idx)
	if depth >= t.maxDepth || len(idx) < t.minSamplesSplit || pureAt(y, idx) {
		return &treeNode{leaf: true, value: value}
	}

	feature, threshold, ok := t.bestSplit(X, y, idx, rng)
	if !ok {
		return &treeNode{leaf: true, value: value}
	}

	var left, right []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < t.minSamplesLeaf || len(right) < t.minSamplesLeaf {
		return &treeNode{leaf: true, value: value}
	}

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      t.grow(X, y, left, depth+1, rng),
		right:     t.grow(X, y, right, depth+1, rng),
	}
}

// bestSplit scans candidate features for the split minimizing the weighted
// sum of child squared errors.
func (t *regressionTree) bestSplit(X [][]float64, y []float64, idx []int, rng *rand.Rand) (feature int, threshold float64, ok bool) {
	nFeatures := len(X[idx[0]])

	candidates := make([]int, nFeatures)
	for j := range candidates {
		candidates[j] = j
	}
	if t.maxFeatures > 0 && t.maxFeatures < nFeatures && rng != nil {
		rng.Shuffle(nFeatures, func(a, b int) {
			candidates[a], candidates[b] = candidates[b], candidates[a]
		})
		candidates = candidates[:t.maxFeatures]
	}

	bestScore := math.Inf(1)
	sorted := make([]int, len(idx))

	for _, j := range candidates {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool {
			return X[sorted[a]][j] < X[sorted[b]][j]
		})

		// prefix sums let each split position be scored in O(1)
		var sumL, sqL float64
		sumR, sqR := sumSqAt(y, sorted)

		for k := 0; k < len(sorted)-1; k++ {
			yi := y[sorted[k]]
			sumL += yi
			sqL += yi * yi
			sumR -= yi
			sqR -= yi * yi

			xi, xNext := X[sorted[k]][j], X[sorted[k+1]][j]
			if xi == xNext {
				continue
			}

			nL := float64(k + 1)
			nR := float64(len(sorted) - k - 1)
			if k+1 < t.minSamplesLeaf || len(sorted)-k-1 < t.minSamplesLeaf {
				continue
			}

			score := (sqL - sumL*sumL/nL) + (sqR - sumR*sumR/nR)
			if score < bestScore {
				bestScore = score
				feature = j
				threshold = (xi + xNext) / 2
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

// predict walks one row down to its leaf.
func (t *regressionTree) predict(row []float64) float64 {
	node := t.root
	for node != nil && !node.leaf {
		if row[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	if node == nil {
		return 0
	}
	return node.value
}

func meanAt(y []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var sum float64
	for _, i := range idx {
		sum += y[i]
	}
	return sum / float64(len(idx))
}

func pureAt(y []float64, idx []int) bool {
	first := y[idx[0]]
	for _, i := range idx[1:] {
		if y[i] != first {
			return false
		}
	}
	return true
}

func sumSqAt(y []float64, idx []int) (sum, sq float64) {
	for _, i := range idx {
		sum += y[i]
		sq += y[i] * y[i]
	}
	return sum, sq
}
