package ranking

import (
	"math/rand"
	"sort"
)

// treeNode is one node of a flattened regression tree. Leaves have Feature == -1.
type treeNode struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

type regressionTree struct {
	Nodes []treeNode `json:"nodes"`
}

func (t regressionTree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type forestParams struct {
	trees          int
	maxDepth       int // 0 means unlimited
	minSamplesLeaf int
	seed           int64
}

// fitForest grows a bagged ensemble of CART regression trees. Each tree sees a
// bootstrap sample of the rows and considers every feature at every split.
func fitForest(x [][]float64, y []float64, p forestParams) []regressionTree {
	rng := rand.New(rand.NewSource(p.seed))
	n := len(y)

	trees := make([]regressionTree, p.trees)
	for t := range trees {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}

		b := &treeBuilder{x: x, y: y, maxDepth: p.maxDepth, minLeaf: p.minSamplesLeaf}
		b.grow(sample, 0)
		trees[t] = regressionTree{Nodes: b.nodes}
	}
	return trees
}

func predictForest(trees []regressionTree, x []float64) float64 {
	var sum float64
	for _, t := range trees {
		sum += t.predict(x)
	}
	return sum / float64(len(trees))
}

type treeBuilder struct {
	x        [][]float64
	y        []float64
	maxDepth int
	minLeaf  int
	nodes    []treeNode
}

// grow appends the subtree for rows and returns the index of its root.
func (b *treeBuilder) grow(rows []int, depth int) int {
	self := len(b.nodes)
	mean := b.mean(rows)
	b.nodes = append(b.nodes, treeNode{Feature: -1, Value: mean})

	if len(rows) < 2*b.minLeaf || (b.maxDepth > 0 && depth >= b.maxDepth) {
		return self
	}

	feature, threshold, ok := b.bestSplit(rows)
	if !ok {
		return self
	}

	var left, right []int
	for _, r := range rows {
		if b.x[r][feature] <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return self
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[self] = treeNode{Feature: feature, Threshold: threshold, Left: l, Right: r, Value: mean}
	return self
}

// bestSplit finds the feature/threshold pair minimising the summed squared error of
// the two children. ok is false when no split improves on the parent.
func (b *treeBuilder) bestSplit(rows []int) (feature int, threshold float64, ok bool) {
	n := len(rows)
	var sum, sumSq float64
	for _, r := range rows {
		sum += b.y[r]
		sumSq += b.y[r] * b.y[r]
	}
	bestErr := sumSq - sum*sum/float64(n)
	if bestErr <= 1e-12 {
		return 0, 0, false
	}

	sorted := make([]int, n)
	for f := range b.x[rows[0]] {
		copy(sorted, rows)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.x[sorted[i]][f] < b.x[sorted[j]][f]
		})

		var leftSum, leftSq float64
		for k := 1; k < n; k++ {
			prev := sorted[k-1]
			leftSum += b.y[prev]
			leftSq += b.y[prev] * b.y[prev]

			lo, hi := b.x[prev][f], b.x[sorted[k]][f]
			if lo == hi || k < b.minLeaf || n-k < b.minLeaf {
				continue
			}

			nl, nr := float64(k), float64(n-k)
			rightSum, rightSq := sum-leftSum, sumSq-leftSq
			err := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			if err < bestErr-1e-12 {
				t := lo + (hi-lo)/2
				if t >= hi {
					t = lo
				}
				bestErr, feature, threshold, ok = err, f, t, true
			}
		}
	}
	return feature, threshold, ok
}

func (b *treeBuilder) mean(rows []int) float64 {
	if len(rows) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rows {
		sum += b.y[r]
	}
	return sum / float64(len(rows))
}
