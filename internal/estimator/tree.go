package estimator

import (
	"math/rand"
	"sort"
)

// node is one node of a regression tree stored in a flat slice. Leaves have
// Feature == -1.
type node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v,omitempty"`
}

type tree struct {
	Nodes []node `json:"nodes"`
}

func (t *tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// treeBuilder grows one tree on squared-error gradients. With a squared loss
// every hessian is 1, so H of a node is its sample count.
type treeBuilder struct {
	x        [][]float64
	grad     []float64
	params   Params
	features []int
	nodes    []node
}

func newTreeBuilder(x [][]float64, grad []float64, params Params, rng *rand.Rand) *treeBuilder {
	width := len(x[0])
	cols := rng.Perm(width)
	keep := max(1, int(float64(width)*params.ColSample+0.5))
	cols = cols[:min(keep, width)]
	sort.Ints(cols)
	return &treeBuilder{x: x, grad: grad, params: params, features: cols}
}

func (b *treeBuilder) build(samples []int) tree {
	b.nodes = b.nodes[:0]
	b.grow(samples, 0)
	return tree{Nodes: append([]node(nil), b.nodes...)}
}

func (b *treeBuilder) leafWeight(g, h float64) float64 {
	return -g / (h + b.params.Lambda)
}

func (b *treeBuilder) score(g, h float64) float64 {
	return g * g / (h + b.params.Lambda)
}

func (b *treeBuilder) grow(samples []int, depth int) int {
	idx := len(b.nodes)
	b.nodes = append(b.nodes, node{Feature: -1})

	var g float64
	for _, s := range samples {
		g += b.grad[s]
	}
	h := float64(len(samples))
	b.nodes[idx].Value = b.leafWeight(g, h)

	if depth >= b.params.MaxDepth || h < 2*b.params.MinChildWeight {
		return idx
	}

	feature, threshold, gain := b.bestSplit(samples, g, h)
	if feature < 0 || gain <= b.params.Gamma {
		return idx
	}

	left := make([]int, 0, len(samples))
	right := make([]int, 0, len(samples))
	for _, s := range samples {
		if b.x[s][feature] < threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[idx] = node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return idx
}

func (b *treeBuilder) bestSplit(samples []int, g, h float64) (bestFeature int, bestThreshold, bestGain float64) {
	bestFeature = -1
	parent := b.score(g, h)
	sorted := append([]int(nil), samples...)

	for _, f := range b.features {
		sort.Slice(sorted, func(i, j int) bool {
			return b.x[sorted[i]][f] < b.x[sorted[j]][f]
		})

		var gl, hl float64
		for i := 0; i < len(sorted)-1; i++ {
			gl += b.grad[sorted[i]]
			hl++
			cur, next := b.x[sorted[i]][f], b.x[sorted[i+1]][f]
			if cur == next {
				continue
			}
			hr := h - hl
			if hl < b.params.MinChildWeight || hr < b.params.MinChildWeight {
				continue
			}
			gain := 0.5 * (b.score(gl, hl) + b.score(g-gl, hr) - parent)
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (cur + next) / 2
			}
		}
	}
	return bestFeature, bestThreshold, bestGain
}
