package ml

import (
	"math"
	"math/rand"
	"sort"
)

// Node is one node of a regression tree. Leaves have Feature == -1.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v,omitempty"`
}

// Tree is a flat regression tree; Nodes[0] is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) Predict(x []float64) float64 {
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

type treeParams struct {
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
}

// treeBuilder grows one tree on residuals with Newton leaf values.
type treeBuilder struct {
	X          [][]float64
	residual   []float64
	hessian    []float64
	params     treeParams
	rng        *rand.Rand
	tree       *Tree
	importance []float64
}

func (b *treeBuilder) build(idx []int) *Tree {
	b.tree = &Tree{}
	b.importance = make([]float64, len(b.X[0]))
	b.grow(idx, 0)
	return b.tree
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	id := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{Feature: -1})

	if depth >= b.params.maxDepth || len(idx) < b.params.minSamplesSplit || len(idx) < 2*b.params.minSamplesLeaf {
		b.tree.Nodes[id].Value = b.leafValue(idx)
		return id
	}

	feature, threshold, gain, ok := b.bestSplit(idx)
	if !ok {
		b.tree.Nodes[id].Value = b.leafValue(idx)
		return id
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.importance[feature] += gain

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.tree.Nodes[id] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return id
}

// bestSplit minimizes the summed squared error of the residuals over a
// random subset of features.
func (b *treeBuilder) bestSplit(idx []int) (feature int, threshold, gain float64, ok bool) {
	n := len(idx)
	var total, totalSq float64
	for _, i := range idx {
		total += b.residual[i]
		totalSq += b.residual[i] * b.residual[i]
	}
	parentSSE := totalSq - total*total/float64(n)

	candidates := b.rng.Perm(len(b.X[0]))[:b.params.maxFeatures]
	sorted := make([]int, n)
	bestGain := 1e-12

	for _, f := range candidates {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool { return b.X[sorted[a]][f] < b.X[sorted[c]][f] })

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			r := b.residual[sorted[k]]
			leftSum += r
			leftSq += r * r
			nl := k + 1
			nr := n - nl
			if nl < b.params.minSamplesLeaf || nr < b.params.minSamplesLeaf {
				continue
			}
			lo, hi := b.X[sorted[k]][f], b.X[sorted[k+1]][f]
			if lo == hi {
				continue
			}
			rightSum := total - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			if g := parentSSE - sse; g > bestGain {
				bestGain = g
				feature = f
				threshold = lo + (hi-lo)/2
				if threshold == hi {
					threshold = lo
				}
				ok = true
			}
		}
	}
	return feature, threshold, bestGain, ok
}

// leafValue is one Newton step for the binomial deviance.
func (b *treeBuilder) leafValue(idx []int) float64 {
	var num, den float64
	for _, i := range idx {
		num += b.residual[i]
		den += b.hessian[i]
	}
	if math.Abs(den) < 1e-150 {
		return 0
	}
	return num / den
}
