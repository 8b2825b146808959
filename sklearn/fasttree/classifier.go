package fasttree

import (
	"context"
	"encoding/json"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/sentiment/core/model"
	"github.com/YuminosukeSato/sentiment/pkg/errors"
	"github.com/YuminosukeSato/sentiment/pkg/log"
)

// FastTreeBinaryClassifier は勾配ブースティング決定木による二値分類器
//
// 二値ログ損失を最小化する回帰木をNumTrees本、葉ごとの最良優先で成長させる。
// 同じデータと同じパラメータからは常に同じ木が得られる。
type FastTreeBinaryClassifier struct {
	state     *model.StateManager
	Params    TrainingParams
	callbacks []Callback
	ensemble  *Ensemble
}

// NewFastTreeBinaryClassifier は新しい分類器を作成する
//
// 使用例:
//
//	clf := fasttree.NewFastTreeBinaryClassifier(
//	    fasttree.WithNumTrees(5),
//	    fasttree.WithNumLeaves(5),
//	    fasttree.WithMinDocumentsInLeafs(2),
//	)
//	err := clf.Fit(X, y)
//	proba, err := clf.PredictProba(X)
func NewFastTreeBinaryClassifier(opts ...Option) *FastTreeBinaryClassifier {
	c := &FastTreeBinaryClassifier{
		state:  model.NewStateManager(),
		Params: DefaultTrainingParams(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsFitted reports whether the classifier has a trained ensemble.
func (c *FastTreeBinaryClassifier) IsFitted() bool {
	return c.state.IsFitted()
}

// Fit trains the classifier. y is an n×1 matrix of 0/1 labels.
func (c *FastTreeBinaryClassifier) Fit(X, y mat.Matrix) error {
	return c.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cancellation checked between trees.
func (c *FastTreeBinaryClassifier) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "FastTreeBinaryClassifier.Fit")

	if err := c.Params.Validate(); err != nil {
		return err
	}

	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("FastTreeBinaryClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yRows != rows {
		return errors.NewDimensionError("FastTreeBinaryClassifier.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("FastTreeBinaryClassifier.Fit", 1, yCols, 1)
	}
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		if err := errors.CheckNumericalStability("FastTreeBinaryClassifier.Fit", mat.Row(row, i, X), 0); err != nil {
			return err
		}
	}

	targets := make([]float64, rows)
	positives := 0
	for i := range targets {
		v := y.At(i, 0)
		if v != 0 && v != 1 {
			return errors.NewValueError("FastTreeBinaryClassifier.Fit", "labels must be 0 or 1")
		}
		targets[i] = v
		if v == 1 {
			positives++
		}
	}
	if positives == 0 || positives == rows {
		return errors.NewValidationError("y", "training labels contain a single class", positives)
	}

	callbacks := append([]Callback(nil), c.callbacks...)
	if c.Params.EarlyStoppingRounds > 0 {
		callbacks = append(callbacks, EarlyStoppingCallback(c.Params.EarlyStoppingRounds, "training_loss", true))
	}

	ens, err := NewTrainer(c.Params, callbacks...).Fit(ctx, X, targets)
	if err != nil {
		return err
	}

	c.ensemble = ens
	c.state.SetDimensions(cols, rows)
	c.state.SetFitted()

	log.GetLoggerWithName("fasttree").Debug("Class balance",
		log.PositivesKey, positives,
		log.NegativesKey, rows-positives,
	)
	return nil
}

// DecisionFunction returns the raw ensemble margin as an n×1 matrix.
func (c *FastTreeBinaryClassifier) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	scores, err := c.Scores(X)
	if err != nil {
		return nil, err
	}
	return mat.NewDense(len(scores), 1, scores), nil
}

// Scores returns the raw margin of each row.
func (c *FastTreeBinaryClassifier) Scores(X mat.Matrix) ([]float64, error) {
	if err := c.state.RequireFitted("FastTreeBinaryClassifier", "DecisionFunction"); err != nil {
		return nil, err
	}
	return c.ensemble.RawScores(X)
}

// PredictProba returns an n×2 matrix: column 0 is P(negative), column 1 is
// P(positive) = sigmoid(score).
func (c *FastTreeBinaryClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	scores, err := c.Scores(X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(scores), 2, nil)
	for i, s := range scores {
		p := errors.Sigmoid(s)
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out, nil
}

// Predict returns 1 where P(positive) > Threshold and 0 otherwise, as n×1.
func (c *FastTreeBinaryClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	scores, err := c.Scores(X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(scores), 1, nil)
	for i, s := range scores {
		if errors.Sigmoid(s) > c.Params.Threshold {
			out.Set(i, 0, 1)
		}
	}
	return out, nil
}

// FeatureImportance returns normalized "split" or "gain" importance.
func (c *FastTreeBinaryClassifier) FeatureImportance(importanceType string) ([]float64, error) {
	if err := c.state.RequireFitted("FastTreeBinaryClassifier", "FeatureImportance"); err != nil {
		return nil, err
	}
	return c.ensemble.FeatureImportance(importanceType)
}

// Ensemble returns the trained trees, or nil before Fit.
func (c *FastTreeBinaryClassifier) Ensemble() *Ensemble {
	return c.ensemble
}

// NumFeatures returns the input width seen during Fit.
func (c *FastTreeBinaryClassifier) NumFeatures() int {
	n, _ := c.state.GetDimensions()
	return n
}

type classifierState struct {
	Params   TrainingParams   `json:"params"`
	State    model.ModelState `json:"state"`
	Ensemble *Ensemble        `json:"ensemble,omitempty"`
}

// MarshalJSON encodes the parameters and trained trees.
func (c *FastTreeBinaryClassifier) MarshalJSON() ([]byte, error) {
	return json.Marshal(classifierState{
		Params:   c.Params,
		State:    c.state.GetState(),
		Ensemble: c.ensemble,
	})
}

// UnmarshalJSON restores a classifier written by MarshalJSON.
func (c *FastTreeBinaryClassifier) UnmarshalJSON(data []byte) error {
	var s classifierState
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "failed to decode classifier")
	}
	if err := s.Params.Validate(); err != nil {
		return err
	}
	if s.State.Fitted {
		if s.Ensemble == nil {
			return errors.NewValueError("FastTreeBinaryClassifier.UnmarshalJSON", "fitted model has no trees")
		}
		if err := s.Ensemble.validate(); err != nil {
			return err
		}
		if s.Ensemble.NumFeatures != s.State.NFeatures {
			return errors.NewDimensionError("FastTreeBinaryClassifier.UnmarshalJSON", s.State.NFeatures, s.Ensemble.NumFeatures, 1)
		}
	}
	if c.state == nil {
		c.state = model.NewStateManager()
	}
	c.Params = s.Params
	c.ensemble = s.Ensemble
	c.state.SetState(s.State)
	return nil
}

var _ model.BinaryClassifier = (*FastTreeBinaryClassifier)(nil)
