package fasttree

import "github.com/YuminosukeSato/sentiment/pkg/errors"

// TrainingParams contains all training hyperparameters
type TrainingParams struct {
	// Boosting
	NumTrees     int     `json:"num_trees" yaml:"num_trees"`
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate"`

	// Tree shape
	NumLeaves           int `json:"num_leaves" yaml:"num_leaves"`
	MinDocumentsInLeafs int `json:"min_documents_in_leafs" yaml:"min_documents_in_leafs"`

	// Regularization
	Lambda         float64 `json:"lambda_l2" yaml:"lambda_l2"`
	MinGainToSplit float64 `json:"min_gain_to_split" yaml:"min_gain_to_split"`

	// Histogram
	MaxBin int `json:"max_bin" yaml:"max_bin"`

	// Sampling
	FeatureFraction float64 `json:"feature_fraction" yaml:"feature_fraction"`
	Seed            int64   `json:"seed" yaml:"seed"`

	// Threshold applied to the positive-class probability by Predict
	Threshold float64 `json:"threshold" yaml:"threshold"`

	// EarlyStoppingRounds stops training when training loss has not improved
	// for this many trees. 0 disables it.
	EarlyStoppingRounds int `json:"early_stopping_rounds" yaml:"early_stopping_rounds"`

	Verbosity int `json:"verbosity" yaml:"verbosity"`
}

// DefaultTrainingParams returns the FastTree defaults used by the program:
// 5 trees, 5 leaves, at least 2 documents per leaf.
func DefaultTrainingParams() TrainingParams {
	return TrainingParams{
		NumTrees:            5,
		LearningRate:        0.2,
		NumLeaves:           5,
		MinDocumentsInLeafs: 2,
		Lambda:              0,
		MinGainToSplit:      0,
		MaxBin:              255,
		FeatureFraction:     1.0,
		Seed:                0,
		Threshold:           0.5,
	}
}

// Validate はハイパーパラメータの範囲をチェックする
func (p TrainingParams) Validate() error {
	switch {
	case p.NumTrees <= 0:
		return errors.NewValidationError("num_trees", "must be positive", p.NumTrees)
	case p.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", p.LearningRate)
	case p.NumLeaves < 2:
		return errors.NewValidationError("num_leaves", "must be at least 2", p.NumLeaves)
	case p.MinDocumentsInLeafs < 1:
		return errors.NewValidationError("min_documents_in_leafs", "must be at least 1", p.MinDocumentsInLeafs)
	case p.Lambda < 0:
		return errors.NewValidationError("lambda_l2", "must be non-negative", p.Lambda)
	case p.MinGainToSplit < 0:
		return errors.NewValidationError("min_gain_to_split", "must be non-negative", p.MinGainToSplit)
	case p.MaxBin < 2:
		return errors.NewValidationError("max_bin", "must be at least 2", p.MaxBin)
	case p.FeatureFraction <= 0 || p.FeatureFraction > 1:
		return errors.NewValidationError("feature_fraction", "must be in (0, 1]", p.FeatureFraction)
	case p.Threshold <= 0 || p.Threshold >= 1:
		return errors.NewValidationError("threshold", "must be in (0, 1)", p.Threshold)
	case p.EarlyStoppingRounds < 0:
		return errors.NewValidationError("early_stopping_rounds", "must be non-negative", p.EarlyStoppingRounds)
	}
	return nil
}

// Option configures a FastTreeBinaryClassifier.
type Option func(*FastTreeBinaryClassifier)

// WithNumTrees sets the number of boosting iterations.
func WithNumTrees(n int) Option {
	return func(c *FastTreeBinaryClassifier) { c.Params.NumTrees = n }
}

// WithNumLeaves sets the maximum leaves per tree.
func WithNumLeaves(n int) Option {
	return func(c *FastTreeBinaryClassifier) { c.Params.NumLeaves = n }
}

// WithMinDocumentsInLeafs sets the minimum number of rows in every leaf.
func WithMinDocumentsInLeafs(n int) Option {
	return func(c *FastTreeBinaryClassifier) { c.Params.MinDocumentsInLeafs = n }
}

// WithLearningRate sets the shrinkage applied to each tree.
func WithLearningRate(lr float64) Option {
	return func(c *FastTreeBinaryClassifier) { c.Params.LearningRate = lr }
}

// WithLambda sets L2 regularization on leaf values.
func WithLambda(l float64) Option {
	return func(c *FastTreeBinaryClassifier) { c.Params.Lambda = l }
}

// WithFeatureFraction samples this fraction of features for each tree.
func WithFeatureFraction(f float64, seed int64) Option {
	return func(c *FastTreeBinaryClassifier) {
		c.Params.FeatureFraction = f
		c.Params.Seed = seed
	}
}

// WithMaxBin sets the number of histogram bins per feature.
func WithMaxBin(n int) Option {
	return func(c *FastTreeBinaryClassifier) { c.Params.MaxBin = n }
}

// WithEarlyStopping stops when training loss stalls for rounds trees.
func WithEarlyStopping(rounds int) Option {
	return func(c *FastTreeBinaryClassifier) { c.Params.EarlyStoppingRounds = rounds }
}

// WithCallbacks registers training callbacks.
func WithCallbacks(callbacks ...Callback) Option {
	return func(c *FastTreeBinaryClassifier) { c.callbacks = append(c.callbacks, callbacks...) }
}
