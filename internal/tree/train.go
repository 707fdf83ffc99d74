package tree

import (
	"fmt"
	"sort"
)

// Params are the regularization knobs for training. Unconstrained trees
// memorize the labeling rules exactly and generalize poorly to features
// the rules never read, so depth and leaf-size bounds are mandatory.
type Params struct {
	MaxDepth        int  // maximum leaf depth, default 7
	MinSamplesSplit int  // fewest samples a node may have and still split, default 10
	MinSamplesLeaf  int  // fewest samples either side of a split, default 5
	Balanced        bool // weight samples inversely to class frequency
}

func (p Params) withDefaults() Params {
	if p.MaxDepth <= 0 {
		p.MaxDepth = 7
	}
	if p.MinSamplesSplit <= 0 {
		p.MinSamplesSplit = 10
	}
	if p.MinSamplesLeaf <= 0 {
		p.MinSamplesLeaf = 5
	}
	return p
}

// Train fits a classifier on preprocessed features and string labels.
// One-shot batch operation; the returned classifier is immutable.
func Train(X [][]float64, y []string, params Params) (*Classifier, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, fmt.Errorf("tree: bad training set: %d rows, %d labels", len(X), len(y))
	}
	params = params.withDefaults()
	featureSize := len(X[0])
	for i, row := range X {
		if len(row) != featureSize {
			return nil, fmt.Errorf("tree: row %d has %d features, want %d", i, len(row), featureSize)
		}
	}

	classes, classIndex := uniqueClasses(y)

	// Per-sample weights. Balanced weighting counters the STAY OUT
	// majority the oracle produces: w_c = n / (k * n_c).
	weights := make([]float64, len(y))
	counts := make([]float64, len(classes))
	for _, label := range y {
		counts[classIndex[label]]++
	}
	for i, label := range y {
		if params.Balanced {
			weights[i] = float64(len(y)) / (float64(len(classes)) * counts[classIndex[label]])
		} else {
			weights[i] = 1
		}
	}

	b := &builder{
		X:           X,
		yIdx:        labelIndices(y, classIndex),
		weights:     weights,
		params:      params,
		numClasses:  len(classes),
		featureSize: featureSize,
		importances: make([]float64, featureSize),
	}
	for i := range X {
		b.totalWeight += weights[i]
	}

	all := make([]int, len(X))
	for i := range all {
		all[i] = i
	}
	child, isLeaf := b.build(all, 0)

	c := &Classifier{
		Nodes:       b.nodes,
		Leaves:      b.leaves,
		Classes:     classes,
		FeatureSize: featureSize,
		Depth:       b.depth,
		Importances: normalize(b.importances),
	}
	if isLeaf {
		// Degenerate tree: every sample landed in one leaf. Keep the flat
		// representation valid with a sentinel root routing both ways to it.
		c.Nodes = []Node{{
			FeatureIndex: 0,
			Threshold:    0,
			LeftChild:    child,
			LeftIsLeaf:   true,
			RightChild:   child,
			RightIsLeaf:  true,
		}}
		c.Depth = 1
	}
	return c, nil
}

type builder struct {
	X           [][]float64
	yIdx        []int
	weights     []float64
	params      Params
	numClasses  int
	featureSize int
	totalWeight float64

	nodes       []Node
	leaves      [][]float64
	importances []float64
	depth       int
}

// build grows the subtree over the given sample indices and returns the
// index of the created node or leaf.
func (b *builder) build(indices []int, depth int) (child int, isLeaf bool) {
	counts, weight := b.classWeights(indices)
	parentGini := gini(counts, weight)

	if depth >= b.params.MaxDepth || len(indices) < b.params.MinSamplesSplit || parentGini == 0 {
		return b.makeLeaf(counts, weight, depth), true
	}

	split, ok := b.bestSplit(indices, counts, weight, parentGini)
	if !ok {
		return b.makeLeaf(counts, weight, depth), true
	}

	b.importances[split.feature] += weight / b.totalWeight * split.decrease

	// Reserve the node slot before recursing so children index correctly.
	nodeIdx := len(b.nodes)
	b.nodes = append(b.nodes, Node{FeatureIndex: split.feature, Threshold: split.threshold})

	left, right := b.partition(indices, split)
	leftChild, leftLeaf := b.build(left, depth+1)
	rightChild, rightLeaf := b.build(right, depth+1)

	b.nodes[nodeIdx].LeftChild = leftChild
	b.nodes[nodeIdx].LeftIsLeaf = leftLeaf
	b.nodes[nodeIdx].RightChild = rightChild
	b.nodes[nodeIdx].RightIsLeaf = rightLeaf
	return nodeIdx, false
}

type split struct {
	feature   int
	threshold float64
	decrease  float64
}

// bestSplit scans every feature for the threshold with the largest
// weighted gini decrease, honoring MinSamplesLeaf on both sides.
func (b *builder) bestSplit(indices []int, parentCounts []float64, parentWeight, parentGini float64) (split, bool) {
	var best split
	found := false

	order := make([]int, len(indices))
	for f := 0; f < b.featureSize; f++ {
		copy(order, indices)
		sort.Slice(order, func(i, j int) bool { return b.X[order[i]][f] < b.X[order[j]][f] })

		leftCounts := make([]float64, b.numClasses)
		var leftWeight float64

		for i := 0; i < len(order)-1; i++ {
			idx := order[i]
			leftCounts[b.yIdx[idx]] += b.weights[idx]
			leftWeight += b.weights[idx]

			cur, next := b.X[idx][f], b.X[order[i+1]][f]
			if cur == next {
				continue
			}
			if i+1 < b.params.MinSamplesLeaf || len(order)-i-1 < b.params.MinSamplesLeaf {
				continue
			}

			rightWeight := parentWeight - leftWeight
			var leftGini, rightGini float64
			leftGini = gini(leftCounts, leftWeight)
			rightCounts := make([]float64, b.numClasses)
			for c := range rightCounts {
				rightCounts[c] = parentCounts[c] - leftCounts[c]
			}
			rightGini = gini(rightCounts, rightWeight)

			decrease := parentGini - (leftWeight/parentWeight)*leftGini - (rightWeight/parentWeight)*rightGini
			if decrease > 1e-12 && (!found || decrease > best.decrease) {
				best = split{feature: f, threshold: (cur + next) / 2, decrease: decrease}
				found = true
			}
		}
	}
	return best, found
}

func (b *builder) partition(indices []int, s split) (left, right []int) {
	for _, idx := range indices {
		if b.X[idx][s.feature] < s.threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	return left, right
}

func (b *builder) makeLeaf(counts []float64, weight float64, depth int) int {
	posterior := make([]float64, b.numClasses)
	for i, c := range counts {
		if weight > 0 {
			posterior[i] = c / weight
		}
	}
	if depth > b.depth {
		b.depth = depth
	}
	b.leaves = append(b.leaves, posterior)
	return len(b.leaves) - 1
}

func (b *builder) classWeights(indices []int) ([]float64, float64) {
	counts := make([]float64, b.numClasses)
	var total float64
	for _, idx := range indices {
		counts[b.yIdx[idx]] += b.weights[idx]
		total += b.weights[idx]
	}
	return counts, total
}

func gini(counts []float64, total float64) float64 {
	if total == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := c / total
		g -= p * p
	}
	return g
}

func uniqueClasses(y []string) ([]string, map[string]int) {
	seen := make(map[string]struct{})
	for _, label := range y {
		seen[label] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for label := range seen {
		classes = append(classes, label)
	}
	sort.Strings(classes)
	index := make(map[string]int, len(classes))
	for i, label := range classes {
		index[label] = i
	}
	return classes, index
}

func labelIndices(y []string, index map[string]int) []int {
	out := make([]int, len(y))
	for i, label := range y {
		out[i] = index[label]
	}
	return out
}

func normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	if sum == 0 {
		return v
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / sum
	}
	return out
}
