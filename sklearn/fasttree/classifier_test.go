package fasttree

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/sentiment/pkg/errors"
)

// separableData returns rows where feature 0 decides the label and
// feature 1 is a constant.
func separableData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		v := float64(i) / float64(n)
		X.Set(i, 0, v)
		X.Set(i, 1, 1)
		if v >= 0.5 {
			y.Set(i, 0, 1)
		}
	}
	return X, y
}

// noisyData has two informative features and overlapping classes.
func noisyData() (*mat.Dense, *mat.Dense) {
	n := 60
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a := math.Sin(float64(i) * 1.7)
		b := math.Cos(float64(i) * 0.9)
		X.Set(i, 0, a)
		X.Set(i, 1, b)
		X.Set(i, 2, float64(i%5))
		if a+0.5*b+0.1*float64(i%3) > 0 {
			y.Set(i, 0, 1)
		}
	}
	return X, y
}

func TestFastTree_SingleSplitValues(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	clf := NewFastTreeBinaryClassifier(
		WithNumTrees(1),
		WithNumLeaves(2),
		WithMinDocumentsInLeafs(1),
		WithLearningRate(1),
	)
	require.NoError(t, clf.Fit(X, y))

	ens := clf.Ensemble()
	require.Len(t, ens.Trees, 1)
	assert.Equal(t, 0.0, ens.InitScore)

	root := ens.Trees[0].Nodes[0]
	assert.False(t, root.IsLeaf())
	assert.Equal(t, 0, root.SplitFeature)
	assert.Equal(t, 0.5, root.Threshold)
	assert.InDelta(t, 2.0, root.Gain, 1e-12)

	scores, err := clf.DecisionFunction(X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-2, -2, 2, 2}, mat.Col(nil, 0, scores), 1e-12)
}

func TestFastTree_MinDocumentsPreventsSplit(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	clf := NewFastTreeBinaryClassifier(WithNumTrees(2), WithMinDocumentsInLeafs(3))
	require.NoError(t, clf.Fit(X, y))

	for _, tree := range clf.Ensemble().Trees {
		assert.Equal(t, 1, tree.NumLeaves)
	}
	pred, err := clf.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0}, mat.Col(nil, 0, pred))
}

func TestFastTree_FitPredict(t *testing.T) {
	X, y := separableData(40)
	clf := NewFastTreeBinaryClassifier()
	require.NoError(t, clf.Fit(X, y))
	assert.True(t, clf.IsFitted())
	assert.Equal(t, 2, clf.NumFeatures())

	pred, err := clf.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, mat.Col(nil, 0, y), mat.Col(nil, 0, pred))

	proba, err := clf.PredictProba(X)
	require.NoError(t, err)
	r, c := proba.Dims()
	assert.Equal(t, 40, r)
	assert.Equal(t, 2, c)
	for i := 0; i < r; i++ {
		assert.InDelta(t, 1.0, proba.At(i, 0)+proba.At(i, 1), 1e-12)
		assert.Greater(t, proba.At(i, 1), 0.0)
		assert.Less(t, proba.At(i, 1), 1.0)
	}

	importance, err := clf.FeatureImportance("split")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, importance)

	_, err = clf.FeatureImportance("cover")
	assert.Error(t, err)
}

func TestFastTree_TreeShapeLimits(t *testing.T) {
	X, y := noisyData()
	clf := NewFastTreeBinaryClassifier(WithNumTrees(5), WithNumLeaves(5), WithMinDocumentsInLeafs(2))
	require.NoError(t, clf.Fit(X, y))

	ens := clf.Ensemble()
	require.Len(t, ens.Trees, 5)
	for _, tree := range ens.Trees {
		assert.LessOrEqual(t, tree.NumLeaves, 5)
		assert.Equal(t, 2*tree.NumLeaves-1, len(tree.Nodes))
		for _, node := range tree.Nodes {
			if node.IsLeaf() {
				assert.GreaterOrEqual(t, node.Count, 2)
			}
		}
	}
}

func TestFastTree_Deterministic(t *testing.T) {
	X, y := noisyData()

	fit := func() []float64 {
		clf := NewFastTreeBinaryClassifier(WithFeatureFraction(0.67, 42))
		require.NoError(t, clf.Fit(X, y))
		scores, err := clf.DecisionFunction(X)
		require.NoError(t, err)
		return mat.Col(nil, 0, scores)
	}
	assert.Equal(t, fit(), fit())
}

func TestFastTree_LossDecreases(t *testing.T) {
	X, y := noisyData()
	var history map[string][]float64
	clf := NewFastTreeBinaryClassifier(
		WithNumTrees(8),
		WithCallbacks(RecordEvaluation(&history), LogEvaluation(2)),
	)
	require.NoError(t, clf.Fit(X, y))

	losses := history["training_loss"]
	require.Len(t, losses, 8)
	for i := 1; i < len(losses); i++ {
		assert.LessOrEqual(t, losses[i], losses[i-1]+1e-12)
	}
}

func TestFastTree_CallbackStops(t *testing.T) {
	X, y := noisyData()
	stopAfterSecond := func(env *CallbackEnv) error {
		if len(env.EvalResults) > 0 && env.Iteration == 1 {
			env.StopTraining = true
		}
		return nil
	}
	clf := NewFastTreeBinaryClassifier(WithNumTrees(10), WithCallbacks(stopAfterSecond))
	require.NoError(t, clf.Fit(X, y))
	assert.Len(t, clf.Ensemble().Trees, 2)
}

func TestEarlyStoppingCallback(t *testing.T) {
	cb := EarlyStoppingCallback(2, "loss", true)
	env := &CallbackEnv{}
	for i, v := range []float64{0.5, 0.4, 0.45, 0.41} {
		env.Iteration = i
		env.EvalResults = map[string]float64{"loss": v}
		require.NoError(t, cb(env))
	}
	assert.True(t, env.StopTraining)
	assert.Equal(t, 1, env.BestIteration)
}

func TestFastTree_EarlyStopping(t *testing.T) {
	// 定数特徴量では分割できず、損失は初期値から変わらない
	X := mat.NewDense(4, 1, []float64{1, 1, 1, 1})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	tests := []struct {
		name      string
		rounds    int
		wantTrees int
	}{
		{name: "Disabled", rounds: 0, wantTrees: 10},
		{name: "Two rounds", rounds: 2, wantTrees: 3},
		{name: "Four rounds", rounds: 4, wantTrees: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clf := NewFastTreeBinaryClassifier(WithNumTrees(10), WithEarlyStopping(tt.rounds))
			require.NoError(t, clf.Fit(X, y))
			assert.Len(t, clf.Ensemble().Trees, tt.wantTrees)
			if tt.rounds > 0 {
				assert.Equal(t, 0, clf.Ensemble().BestIteration)
			}
		})
	}
}

func TestFastTree_Lambda(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	clf := NewFastTreeBinaryClassifier(
		WithNumTrees(1),
		WithNumLeaves(2),
		WithMinDocumentsInLeafs(1),
		WithLearningRate(1),
		WithLambda(1),
	)
	require.NoError(t, clf.Fit(X, y))

	// G=±1, H=0.5 per leaf: value = -G/(H+1), gain = 0.5*(2*(1/1.5) - 0)
	root := clf.Ensemble().Trees[0].Nodes[0]
	assert.InDelta(t, 2.0/3.0, root.Gain, 1e-12)

	scores, err := clf.DecisionFunction(X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-2.0 / 3, -2.0 / 3, 2.0 / 3, 2.0 / 3}, mat.Col(nil, 0, scores), 1e-12)
}

func TestFastTree_MaxBin(t *testing.T) {
	X, y := separableData(40)
	clf := NewFastTreeBinaryClassifier(WithMaxBin(2))
	require.NoError(t, clf.Fit(X, y))

	// 2 bins leave a single candidate threshold for feature 0
	for _, tree := range clf.Ensemble().Trees {
		assert.Equal(t, 2, tree.NumLeaves)
		assert.Equal(t, 0, tree.Nodes[0].SplitFeature)
		assert.InDelta(t, 0.4875, tree.Nodes[0].Threshold, 1e-12)
	}

	pred, err := clf.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, mat.Col(nil, 0, y), mat.Col(nil, 0, pred))

	bad := NewFastTreeBinaryClassifier(WithMaxBin(1))
	var ve *errors.ValidationError
	assert.True(t, errors.As(bad.Fit(X, y), &ve))
}

func TestFastTree_NonFiniteFeatures(t *testing.T) {
	X, y := separableData(10)
	X.Set(3, 0, math.NaN())

	err := NewFastTreeBinaryClassifier().Fit(X, y)
	var ni *errors.NumericalInstabilityError
	require.True(t, errors.As(err, &ni), "got %v", err)
	assert.Equal(t, "FastTreeBinaryClassifier.Fit", ni.Operation)

	X.Set(3, 0, math.Inf(1))
	assert.True(t, errors.As(NewFastTreeBinaryClassifier().Fit(X, y), &ni))
}

func TestFastTree_Errors(t *testing.T) {
	X, y := separableData(10)

	clf := NewFastTreeBinaryClassifier()
	_, err := clf.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	tests := []struct {
		name  string
		clf   *FastTreeBinaryClassifier
		X, y  mat.Matrix
		check func(t *testing.T, err error)
	}{
		{
			name: "label count mismatch",
			clf:  NewFastTreeBinaryClassifier(),
			X:    X,
			y:    mat.NewDense(3, 1, []float64{0, 1, 0}),
			check: func(t *testing.T, err error) {
				var de *errors.DimensionError
				assert.True(t, errors.As(err, &de))
			},
		},
		{
			name: "single class",
			clf:  NewFastTreeBinaryClassifier(),
			X:    X,
			y:    mat.NewDense(10, 1, nil),
			check: func(t *testing.T, err error) {
				var ve *errors.ValidationError
				assert.True(t, errors.As(err, &ve))
			},
		},
		{
			name: "non binary labels",
			clf:  NewFastTreeBinaryClassifier(),
			X:    X,
			y:    mat.NewDense(10, 1, []float64{0, 1, 2, 0, 1, 0, 1, 0, 1, 0}),
			check: func(t *testing.T, err error) {
				var ve *errors.ValueError
				assert.True(t, errors.As(err, &ve))
			},
		},
		{
			name: "invalid params",
			clf:  NewFastTreeBinaryClassifier(WithNumLeaves(1)),
			X:    X,
			y:    y,
			check: func(t *testing.T, err error) {
				var ve *errors.ValidationError
				assert.True(t, errors.As(err, &ve))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.clf.Fit(tt.X, tt.y)
			require.Error(t, err)
			tt.check(t, err)
		})
	}

	require.NoError(t, clf.Fit(X, y))
	_, err = clf.Predict(mat.NewDense(2, 3, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}

func TestFastTree_Cancelled(t *testing.T) {
	X, y := separableData(10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewFastTreeBinaryClassifier().FitContext(ctx, X, y)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFastTree_JSONRoundTrip(t *testing.T) {
	X, y := noisyData()
	clf := NewFastTreeBinaryClassifier()
	require.NoError(t, clf.Fit(X, y))

	data, err := json.Marshal(clf)
	require.NoError(t, err)

	restored := &FastTreeBinaryClassifier{}
	require.NoError(t, json.Unmarshal(data, restored))
	assert.Equal(t, clf.Params, restored.Params)

	want, err := clf.PredictProba(X)
	require.NoError(t, err)
	got, err := restored.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))

	var corrupt classifierState
	require.NoError(t, json.Unmarshal(data, &corrupt))
	corrupt.Ensemble.Trees[0].Nodes[0].SplitFeature = 99
	data, err = json.Marshal(corrupt)
	require.NoError(t, err)
	assert.Error(t, json.Unmarshal(data, &FastTreeBinaryClassifier{}))
}

func TestBinaryLogLoss(t *testing.T) {
	obj := BinaryLogLoss{}
	assert.Equal(t, "binary", obj.Name())
	assert.InDelta(t, 0.5, obj.CalculateGradient(0, 0), 1e-12)
	assert.InDelta(t, -0.5, obj.CalculateGradient(0, 1), 1e-12)
	assert.InDelta(t, 0.25, obj.CalculateHessian(0, 1), 1e-12)
	assert.InDelta(t, math.Log(2), obj.CalculateLoss(0, 1), 1e-12)
	assert.InDelta(t, math.Log(3), obj.GetInitScore([]float64{1, 1, 1, 0}), 1e-12)
	assert.Equal(t, 0.0, obj.GetInitScore(nil))
	assert.Greater(t, obj.CalculateHessian(50, 1), 0.0)
}
