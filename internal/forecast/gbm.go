package forecast

import (
	"fmt"
	"math"
	"sort"
)

// Gradient-boosted regression trees with squared-error loss. Each round
// fits a shallow regression tree to the residuals and adds it scaled by the
// learning rate.
type GBM struct {
	Base         float64
	LearningRate float64
	Trees        []*treeNode
}

type treeNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
}

// Training hyperparameters of the price model.
const (
	defaultRounds       = 100
	defaultLearningRate = 0.1
	defaultMaxDepth     = 6
	minLeafSamples      = 2
)

// TrainGBM fits a boosted ensemble to the rows. X is row-major with a fixed
// feature width; y holds the targets.
func TrainGBM(X [][]float64, y []float64, rounds int, lr float64, maxDepth int) (*GBM, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, fmt.Errorf("gbm: bad training shape: %d rows, %d targets", len(X), len(y))
	}

	base := mean(y)
	model := &GBM{Base: base, LearningRate: lr}

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = base
	}

	residual := make([]float64, len(y))
	for round := 0; round < rounds; round++ {
		for i := range y {
			residual[i] = y[i] - pred[i]
		}

		idx := make([]int, len(y))
		for i := range idx {
			idx[i] = i
		}
		tree := buildTree(X, residual, idx, maxDepth)
		model.Trees = append(model.Trees, tree)

		for i := range pred {
			pred[i] += lr * predictTree(tree, X[i])
		}
	}
	return model, nil
}

// Predict evaluates the ensemble for one feature vector.
func (m *GBM) Predict(x []float64) float64 {
	v := m.Base
	for _, t := range m.Trees {
		v += m.LearningRate * predictTree(t, x)
	}
	return v
}

func predictTree(n *treeNode, x []float64) float64 {
	for !n.leaf {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// buildTree grows a regression tree on the index subset by greedy
// variance-reduction splits.
func buildTree(X [][]float64, target []float64, idx []int, depth int) *treeNode {
	if depth == 0 || len(idx) < 2*minLeafSamples {
		return &treeNode{leaf: true, value: meanAt(target, idx)}
	}

	bestFeature, bestThreshold, bestScore := -1, 0.0, math.Inf(1)
	numFeats := len(X[idx[0]])

	for f := 0; f < numFeats; f++ {
		// Candidate thresholds are midpoints between adjacent distinct
		// values.
		vals := make([]float64, 0, len(idx))
		for _, i := range idx {
			vals = append(vals, X[i][f])
		}
		sort.Float64s(vals)

		for k := 1; k < len(vals); k++ {
			if vals[k] == vals[k-1] {
				continue
			}
			threshold := (vals[k] + vals[k-1]) / 2
			score := splitScore(X, target, idx, f, threshold)
			if score < bestScore {
				bestFeature, bestThreshold, bestScore = f, threshold, score
			}
		}
	}

	if bestFeature < 0 {
		return &treeNode{leaf: true, value: meanAt(target, idx)}
	}

	var left, right []int
	for _, i := range idx {
		if X[i][bestFeature] <= bestThreshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < minLeafSamples || len(right) < minLeafSamples {
		return &treeNode{leaf: true, value: meanAt(target, idx)}
	}

	return &treeNode{
		feature:   bestFeature,
		threshold: bestThreshold,
		left:      buildTree(X, target, left, depth-1),
		right:     buildTree(X, target, right, depth-1),
	}
}

// splitScore is the weighted sum of squared errors after the split.
func splitScore(X [][]float64, target []float64, idx []int, feature int, threshold float64) float64 {
	var lSum, lSq, rSum, rSq float64
	var lN, rN int
	for _, i := range idx {
		v := target[i]
		if X[i][feature] <= threshold {
			lSum += v
			lSq += v * v
			lN++
		} else {
			rSum += v
			rSq += v * v
			rN++
		}
	}
	if lN < minLeafSamples || rN < minLeafSamples {
		return math.Inf(1)
	}
	// SSE = sum(v^2) - n*mean^2 on each side.
	return (lSq - lSum*lSum/float64(lN)) + (rSq - rSum*rSum/float64(rN))
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

func meanAt(v []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	s := 0.0
	for _, i := range idx {
		s += v[i]
	}
	return s / float64(len(idx))
}

// rmse and mae evaluate a model over a labelled set.
func evaluate(m *GBM, X [][]float64, y []float64) (rmse, mae float64) {
	if len(y) == 0 {
		return 0, 0
	}
	var sq, abs float64
	for i := range y {
		d := m.Predict(X[i]) - y[i]
		sq += d * d
		if d < 0 {
			d = -d
		}
		abs += d
	}
	n := float64(len(y))
	return math.Sqrt(sq / n), abs / n
}
