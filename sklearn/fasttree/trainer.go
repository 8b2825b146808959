package fasttree

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/sentiment/core/parallel"
	"github.com/YuminosukeSato/sentiment/pkg/errors"
	"github.com/YuminosukeSato/sentiment/pkg/log"
)

// gradientParallelThreshold 以下の行数では勾配を逐次計算する
const gradientParallelThreshold = 1024

// splitEpsilon 以下のゲインは丸め誤差とみなして分割しない
const splitEpsilon = 1e-10

// SplitInfo contains information about a potential split
type SplitInfo struct {
	Feature    int
	Bin        int
	Threshold  float64
	Gain       float64
	LeftCount  int
	RightCount int
	LeftGrad   float64
	RightGrad  float64
	LeftHess   float64
	RightHess  float64
}

func (s SplitInfo) valid() bool {
	return s.Feature >= 0 && !math.IsInf(s.Gain, -1)
}

// leafCandidate is a leaf of the tree under construction.
type leafCandidate struct {
	nodeID  int
	indices []int
	sumGrad float64
	sumHess float64
	best    SplitInfo
}

// Trainer implements leaf-wise gradient boosting for binary log-loss.
type Trainer struct {
	params    TrainingParams
	objective ObjectiveFunction
	callbacks *CallbackList
	logger    log.Logger

	data      *binnedData
	targets   []float64
	scores    []float64
	gradients []float64
	hessians  []float64

	initScore float64
	trees     []Tree
	iteration int
}

// NewTrainer creates a trainer for already validated params.
func NewTrainer(params TrainingParams, callbacks ...Callback) *Trainer {
	t := &Trainer{
		params:    params,
		objective: BinaryLogLoss{},
		logger:    log.GetLoggerWithName("fasttree.trainer"),
	}
	if len(callbacks) > 0 {
		t.callbacks = NewCallbackList(callbacks...)
	}
	return t
}

// Fit trains the ensemble on X (n×d) and 0/1 targets.
func (t *Trainer) Fit(ctx context.Context, X mat.Matrix, targets []float64) (*Ensemble, error) {
	start := time.Now()
	rows, cols := X.Dims()

	t.targets = targets
	t.data = newBinnedData(X, t.params.MaxBin)
	t.scores = make([]float64, rows)
	t.gradients = make([]float64, rows)
	t.hessians = make([]float64, rows)
	t.trees = nil

	t.initScore = t.objective.GetInitScore(targets)
	for i := range t.scores {
		t.scores[i] = t.initScore
	}

	for iter := 0; iter < t.params.NumTrees; iter++ {
		t.iteration = iter
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "training cancelled at iteration %d", iter)
		}

		if t.callbacks != nil {
			if err := t.callbacks.BeforeIteration(iter, t.ensemble(cols)); err != nil {
				return nil, errors.Wrapf(err, "callback error at iteration %d", iter)
			}
			if t.callbacks.ShouldStop() {
				t.logger.Info("Training stopped by callback", log.IterationKey, iter)
				break
			}
		}

		t.calculateGradients()

		tree, leaves := t.buildTree(cols)
		t.trees = append(t.trees, tree)
		t.updateScores(tree, leaves)

		loss := t.calculateLoss()
		if err := errors.CheckScalar("fasttree.training_loss", loss, iter); err != nil {
			return nil, err
		}

		if t.callbacks != nil {
			evalResults := map[string]float64{"training_loss": loss}
			if err := t.callbacks.AfterIteration(iter, t.ensemble(cols), evalResults); err != nil {
				return nil, errors.Wrapf(err, "callback error at iteration %d", iter)
			}
			if t.callbacks.ShouldStop() {
				t.logger.Info("Training stopped by callback", log.IterationKey, iter)
				break
			}
		}

		if t.params.Verbosity > 0 {
			t.logger.Debug("Training progress",
				log.IterationKey, iter,
				log.LeavesKey, tree.NumLeaves,
				log.LossKey, loss)
		}
	}

	ens := t.ensemble(cols)
	if t.callbacks != nil && t.callbacks.bestIteration >= 0 {
		ens.BestIteration = t.callbacks.bestIteration
	}

	t.logger.Info("Training completed",
		log.ModelNameKey, "FastTreeBinaryClassifier",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.TreesKey, len(t.trees),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return ens, nil
}

func (t *Trainer) ensemble(numFeatures int) *Ensemble {
	trees := make([]Tree, len(t.trees))
	copy(trees, t.trees)
	return &Ensemble{
		Objective:     t.objective.Name(),
		NumFeatures:   numFeatures,
		InitScore:     t.initScore,
		BestIteration: len(trees) - 1,
		Params:        t.params,
		Trees:         trees,
	}
}

// calculateGradients computes gradients and hessians for all samples
func (t *Trainer) calculateGradients() {
	parallel.ParallelizeWithThreshold(len(t.scores), gradientParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			t.gradients[i] = t.objective.CalculateGradient(t.scores[i], t.targets[i])
			t.hessians[i] = t.objective.CalculateHessian(t.scores[i], t.targets[i])
		}
	})
}

// sampleFeatures returns the feature indices available to the current tree,
// in ascending order.
func (t *Trainer) sampleFeatures(cols int) []int {
	features := make([]int, cols)
	for j := range features {
		features[j] = j
	}
	if t.params.FeatureFraction >= 1 {
		return features
	}
	k := int(math.Round(t.params.FeatureFraction * float64(cols)))
	if k < 1 {
		k = 1
	}
	rng := rand.New(rand.NewSource(t.params.Seed + int64(t.iteration)))
	rng.Shuffle(len(features), func(a, b int) { features[a], features[b] = features[b], features[a] })
	features = features[:k]
	sort.Ints(features)
	return features
}

// buildTree grows one tree best-first: the leaf whose best split has the
// highest gain is split next, until NumLeaves is reached or no leaf can be
// split. It returns the tree and its final leaves.
func (t *Trainer) buildTree(cols int) (Tree, []*leafCandidate) {
	tree := Tree{
		TreeIndex:     t.iteration,
		ShrinkageRate: t.params.LearningRate,
	}
	features := t.sampleFeatures(cols)

	root := &leafCandidate{nodeID: 0, indices: make([]int, len(t.targets))}
	for i := range root.indices {
		root.indices[i] = i
		root.sumGrad += t.gradients[i]
		root.sumHess += t.hessians[i]
	}
	tree.Nodes = append(tree.Nodes, t.newLeafNode(0, -1, root))
	root.best = t.findBestSplit(root, features)

	leaves := []*leafCandidate{root}
	for len(leaves) < t.params.NumLeaves {
		pick := -1
		for i, leaf := range leaves {
			if !leaf.best.valid() || leaf.best.Gain <= t.params.MinGainToSplit || leaf.best.Gain <= splitEpsilon {
				continue
			}
			if pick < 0 || leaf.best.Gain > leaves[pick].best.Gain {
				pick = i
			}
		}
		if pick < 0 {
			break
		}

		leaf := leaves[pick]
		split := leaf.best
		leftIdx, rightIdx := t.partition(leaf.indices, split)

		left := &leafCandidate{indices: leftIdx, sumGrad: split.LeftGrad, sumHess: split.LeftHess}
		right := &leafCandidate{indices: rightIdx, sumGrad: split.RightGrad, sumHess: split.RightHess}
		left.nodeID = len(tree.Nodes)
		tree.Nodes = append(tree.Nodes, t.newLeafNode(left.nodeID, leaf.nodeID, left))
		right.nodeID = len(tree.Nodes)
		tree.Nodes = append(tree.Nodes, t.newLeafNode(right.nodeID, leaf.nodeID, right))

		parent := &tree.Nodes[leaf.nodeID]
		parent.LeftChild = left.nodeID
		parent.RightChild = right.nodeID
		parent.SplitFeature = split.Feature
		parent.Threshold = split.Threshold
		parent.Gain = split.Gain
		parent.LeafValue = 0

		left.best = t.findBestSplit(left, features)
		right.best = t.findBestSplit(right, features)

		leaves = append(leaves[:pick], append([]*leafCandidate{left, right}, leaves[pick+1:]...)...)
	}

	tree.NumLeaves = len(leaves)
	return tree, leaves
}

func (t *Trainer) newLeafNode(id, parent int, leaf *leafCandidate) Node {
	return Node{
		NodeID:     id,
		ParentID:   parent,
		LeftChild:  -1,
		RightChild: -1,
		LeafValue:  t.calculateLeafValue(leaf.sumGrad, leaf.sumHess),
		Count:      len(leaf.indices),
	}
}

// findBestSplit searches the given features in parallel and keeps the
// highest gain, preferring the lowest feature index on ties.
func (t *Trainer) findBestSplit(leaf *leafCandidate, features []int) SplitInfo {
	best := SplitInfo{Feature: -1, Gain: math.Inf(-1)}
	if len(leaf.indices) < 2*t.params.MinDocumentsInLeafs {
		return best
	}

	results := make([]SplitInfo, len(features))
	parallel.ParallelizeWithThreshold(len(features), 64, func(start, end int) {
		for k := start; k < end; k++ {
			results[k] = t.findBestSplitForFeature(leaf, features[k])
		}
	})

	for _, s := range results {
		if s.Gain > best.Gain {
			best = s
		}
	}
	return best
}

func (t *Trainer) findBestSplitForFeature(leaf *leafCandidate, feature int) SplitInfo {
	bestSplit := SplitInfo{Feature: feature, Gain: math.Inf(-1)}

	fb := &t.data.features[feature]
	nb := fb.numBins()
	if nb < 2 {
		return bestSplit
	}

	grad := make([]float64, nb)
	hess := make([]float64, nb)
	count := make([]int, nb)
	for _, idx := range leaf.indices {
		b := t.data.binAt(feature, idx)
		grad[b] += t.gradients[idx]
		hess[b] += t.hessians[idx]
		count[b]++
	}

	leftGrad, leftHess, leftCount := 0.0, 0.0, 0
	for k := 0; k < nb-1; k++ {
		leftGrad += grad[k]
		leftHess += hess[k]
		leftCount += count[k]

		if count[k] == 0 && k > 0 {
			continue
		}
		rightCount := len(leaf.indices) - leftCount
		if leftCount < t.params.MinDocumentsInLeafs {
			continue
		}
		if rightCount < t.params.MinDocumentsInLeafs {
			break
		}

		rightGrad := leaf.sumGrad - leftGrad
		rightHess := leaf.sumHess - leftHess
		gain := t.calculateSplitGain(leftGrad, leftHess, rightGrad, rightHess, leaf.sumGrad, leaf.sumHess)

		if gain > bestSplit.Gain {
			bestSplit.Bin = k
			bestSplit.Gain = gain
			bestSplit.Threshold = fb.thresholds[k]
			bestSplit.LeftCount = leftCount
			bestSplit.RightCount = rightCount
			bestSplit.LeftGrad = leftGrad
			bestSplit.RightGrad = rightGrad
			bestSplit.LeftHess = leftHess
			bestSplit.RightHess = rightHess
		}
	}
	return bestSplit
}

// calculateSplitGain returns the second-order loss reduction of a split.
func (t *Trainer) calculateSplitGain(leftGrad, leftHess, rightGrad, rightHess, totalGrad, totalHess float64) float64 {
	lambda := t.params.Lambda

	leftScore := errors.SafeDivide(leftGrad*leftGrad, leftHess+lambda)
	rightScore := errors.SafeDivide(rightGrad*rightGrad, rightHess+lambda)
	totalScore := errors.SafeDivide(totalGrad*totalGrad, totalHess+lambda)

	return 0.5 * (leftScore + rightScore - totalScore)
}

// calculateLeafValue returns -G/(H+lambda).
func (t *Trainer) calculateLeafValue(sumGrad, sumHess float64) float64 {
	denom := sumHess + t.params.Lambda
	if denom < minHessian {
		denom = minHessian
	}
	return -sumGrad / denom
}

func (t *Trainer) partition(indices []int, split SplitInfo) (left, right []int) {
	left = make([]int, 0, split.LeftCount)
	right = make([]int, 0, split.RightCount)
	for _, idx := range indices {
		if t.data.binAt(split.Feature, idx) <= split.Bin {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	return left, right
}

func (t *Trainer) updateScores(tree Tree, leaves []*leafCandidate) {
	for _, leaf := range leaves {
		delta := tree.Nodes[leaf.nodeID].LeafValue * tree.ShrinkageRate
		for _, idx := range leaf.indices {
			t.scores[idx] += delta
		}
	}
}

// calculateLoss returns the mean training loss.
func (t *Trainer) calculateLoss() float64 {
	if len(t.scores) == 0 {
		return 0
	}
	total := 0.0
	for i, s := range t.scores {
		total += t.objective.CalculateLoss(s, t.targets[i])
	}
	return total / float64(len(t.scores))
}
