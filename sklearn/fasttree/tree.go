package fasttree

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/sentiment/core/parallel"
	"github.com/YuminosukeSato/sentiment/pkg/errors"
)

// predictParallelThreshold 以下の行数では逐次で推論する
const predictParallelThreshold = 256

// Node represents a single node in a regression tree.
// Leaves have LeftChild == RightChild == -1.
type Node struct {
	NodeID     int `json:"node_id"`
	ParentID   int `json:"parent_id"`
	LeftChild  int `json:"left_child"`
	RightChild int `json:"right_child"`

	// Split information (internal nodes)
	SplitFeature int     `json:"split_feature"`
	Threshold    float64 `json:"threshold"`
	Gain         float64 `json:"gain"`

	// Leaf information
	LeafValue float64 `json:"leaf_value"`
	Count     int     `json:"count"`
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.LeftChild == -1 && n.RightChild == -1
}

// Tree is one boosted tree. Node 0 is the root.
type Tree struct {
	TreeIndex     int     `json:"tree_index"`
	NumLeaves     int     `json:"num_leaves"`
	ShrinkageRate float64 `json:"shrinkage_rate"`
	Nodes         []Node  `json:"nodes"`
}

// Predict returns the shrunk leaf value reached by features.
// Values <= Threshold go left.
func (t *Tree) Predict(features []float64) float64 {
	nodeID := 0
	for nodeID >= 0 && nodeID < len(t.Nodes) {
		node := &t.Nodes[nodeID]
		if node.IsLeaf() {
			return node.LeafValue * t.ShrinkageRate
		}
		if features[node.SplitFeature] <= node.Threshold {
			nodeID = node.LeftChild
		} else {
			nodeID = node.RightChild
		}
	}
	return 0
}

// validate checks that child links stay inside the node slice and every
// split feature exists.
func (t *Tree) validate(numFeatures int) error {
	if len(t.Nodes) == 0 {
		return errors.NewValueError("Tree.validate", "tree has no nodes")
	}
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			continue
		}
		if n.LeftChild <= i || n.RightChild <= i || n.LeftChild >= len(t.Nodes) || n.RightChild >= len(t.Nodes) {
			return errors.NewValueError("Tree.validate", "invalid child index")
		}
		if n.SplitFeature < 0 || n.SplitFeature >= numFeatures {
			return errors.NewDimensionError("Tree.validate", numFeatures, n.SplitFeature+1, 1)
		}
	}
	return nil
}

// Ensemble is a trained sequence of trees plus the initial score.
type Ensemble struct {
	Objective     string         `json:"objective"`
	NumFeatures   int            `json:"num_features"`
	InitScore     float64        `json:"init_score"`
	BestIteration int            `json:"best_iteration"`
	Params        TrainingParams `json:"params"`
	Trees         []Tree         `json:"trees"`
}

// RawScore returns the margin for one sample.
func (e *Ensemble) RawScore(features []float64) float64 {
	score := e.InitScore
	for i := range e.Trees {
		score += e.Trees[i].Predict(features)
	}
	return score
}

// RawScores computes the margin of every row of X.
func (e *Ensemble) RawScores(X mat.Matrix) ([]float64, error) {
	rows, cols := X.Dims()
	if cols != e.NumFeatures {
		return nil, errors.NewDimensionError("FastTreeBinaryClassifier.DecisionFunction", e.NumFeatures, cols, 1)
	}
	scores := make([]float64, rows)
	parallel.ParallelizeWithThreshold(rows, predictParallelThreshold, func(start, end int) {
		buf := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(buf, i, X)
			scores[i] = e.RawScore(buf)
		}
	})
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, errors.NewNumericalInstabilityError("RawScores", []float64{s}, i)
		}
	}
	return scores, nil
}

// FeatureImportance returns per-feature split counts ("split") or summed
// gains ("gain"), normalized to sum to 1.
func (e *Ensemble) FeatureImportance(importanceType string) ([]float64, error) {
	if importanceType != "split" && importanceType != "gain" {
		return nil, errors.NewValidationError("importance_type", "must be split or gain", importanceType)
	}
	importance := make([]float64, e.NumFeatures)
	for _, tree := range e.Trees {
		for _, node := range tree.Nodes {
			if node.IsLeaf() {
				continue
			}
			if importanceType == "split" {
				importance[node.SplitFeature]++
			} else {
				importance[node.SplitFeature] += node.Gain
			}
		}
	}

	total := 0.0
	for _, v := range importance {
		total += v
	}
	if total > 0 {
		for i := range importance {
			importance[i] /= total
		}
	}
	return importance, nil
}

func (e *Ensemble) validate() error {
	if e.NumFeatures <= 0 {
		return errors.NewValueError("Ensemble.validate", "num_features must be positive")
	}
	if math.IsNaN(e.InitScore) || math.IsInf(e.InitScore, 0) {
		return errors.NewNumericalInstabilityError("Ensemble.validate", []float64{e.InitScore}, 0)
	}
	for i := range e.Trees {
		if err := e.Trees[i].validate(e.NumFeatures); err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
	}
	return nil
}
