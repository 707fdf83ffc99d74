// Package tree implements a shallow CART classifier over preprocessed
// feature vectors. The tree is stored as a flat node array with per-leaf
// class posteriors, which keeps traversal allocation-free and makes the
// fitted model a plain JSON artifact.
package tree

import (
	"fmt"
)

// A Node represents a splitting decision of the form
// "x[FeatureIndex] < Threshold ?".
type Node struct {
	FeatureIndex int     `json:"feature_index"`
	Threshold    float64 `json:"threshold"`
	// LeftChild is a node index, or a leaf index when LeftIsLeaf is set.
	LeftChild   int  `json:"left_child"`
	LeftIsLeaf  bool `json:"left_is_leaf"`
	RightChild  int  `json:"right_child"`
	RightIsLeaf bool `json:"right_is_leaf"`
}

// Classifier is a fitted decision tree. Immutable after training; safe
// for concurrent readers.
type Classifier struct {
	// Nodes is a flat list of all internal nodes; Nodes[0] is the root.
	Nodes []Node `json:"nodes"`
	// Leaves holds the class posterior distribution for each leaf, in
	// Classes order.
	Leaves [][]float64 `json:"leaves"`
	// Classes maps posterior indices to label strings, sorted.
	Classes []string `json:"classes"`
	// FeatureSize is the length of feature vectors this tree accepts.
	FeatureSize int `json:"feature_size"`
	// Depth is the maximum depth of any leaf.
	Depth int `json:"depth"`
	// Importances is the normalized impurity decrease attributed to each
	// feature during training.
	Importances []float64 `json:"importances"`
}

// leaf drops a feature vector down the tree and returns the index of the
// leaf it ends up in.
func (c *Classifier) leaf(x []float64) (int, error) {
	if len(x) != c.FeatureSize {
		return 0, fmt.Errorf("tree: feature vector length %d, want %d", len(x), c.FeatureSize)
	}
	if len(c.Nodes) == 0 {
		return 0, fmt.Errorf("tree: classifier not trained")
	}
	cur := c.Nodes[0]
	// Bounded by node count so a corrupt artifact cannot loop forever.
	for i := 0; i <= len(c.Nodes); i++ {
		if x[cur.FeatureIndex] < cur.Threshold {
			if cur.LeftIsLeaf {
				return cur.LeftChild, nil
			}
			cur = c.Nodes[cur.LeftChild]
		} else {
			if cur.RightIsLeaf {
				return cur.RightChild, nil
			}
			cur = c.Nodes[cur.RightChild]
		}
	}
	return 0, fmt.Errorf("tree: traversal did not terminate")
}

// Predict returns the majority-class label for x.
func (c *Classifier) Predict(x []float64) (string, error) {
	label, _, err := c.PredictProba(x)
	return label, err
}

// PredictProba returns the predicted label together with the maximum
// class posterior at the matching leaf.
func (c *Classifier) PredictProba(x []float64) (string, float64, error) {
	li, err := c.leaf(x)
	if err != nil {
		return "", 0, err
	}
	posterior := c.Leaves[li]
	best := 0
	for i := 1; i < len(posterior); i++ {
		if posterior[i] > posterior[best] {
			best = i
		}
	}
	return c.Classes[best], posterior[best], nil
}

// Posterior returns the full class distribution at the leaf x lands in,
// aligned with Classes.
func (c *Classifier) Posterior(x []float64) ([]float64, error) {
	li, err := c.leaf(x)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(c.Leaves[li]))
	copy(out, c.Leaves[li])
	return out, nil
}
