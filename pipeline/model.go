package pipeline

import (
	"context"

	"github.com/YuminosukeSato/sentiment/dataset"
	"github.com/YuminosukeSato/sentiment/pkg/errors"
	"github.com/YuminosukeSato/sentiment/preprocessing"
	"github.com/YuminosukeSato/sentiment/sklearn/fasttree"
)

// Predictor is anything that labels sentiment rows. PredictionModel and the
// lexicon baseline both satisfy it.
type Predictor interface {
	Predict(ctx context.Context, rows []dataset.SentimentData) ([]dataset.SentimentPrediction, error)
}

// PredictionModel は学習済みの特徴量化器と分類器の組
type PredictionModel struct {
	featurizer *preprocessing.TextFeaturizer
	classifier *fasttree.FastTreeBinaryClassifier
	manifest   Manifest
}

// Manifest returns the metadata recorded at training time.
func (m *PredictionModel) Manifest() Manifest {
	return m.manifest
}

// Featurizer returns the fitted text featurizer.
func (m *PredictionModel) Featurizer() *preprocessing.TextFeaturizer {
	return m.featurizer
}

// Classifier returns the trained classifier.
func (m *PredictionModel) Classifier() *fasttree.FastTreeBinaryClassifier {
	return m.classifier
}

// Predict scores rows. Labels on the input are ignored.
func (m *PredictionModel) Predict(ctx context.Context, rows []dataset.SentimentData) ([]dataset.SentimentPrediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "prediction cancelled")
	}
	if len(rows) == 0 {
		return []dataset.SentimentPrediction{}, nil
	}

	X, err := m.featurizer.Transform(dataset.Texts(rows))
	if err != nil {
		return nil, err
	}
	scores, err := m.classifier.Scores(X)
	if err != nil {
		return nil, err
	}

	threshold := m.classifier.Params.Threshold
	out := make([]dataset.SentimentPrediction, len(rows))
	for i, s := range scores {
		p := errors.Sigmoid(s)
		out[i] = dataset.SentimentPrediction{
			Text:        rows[i].Text,
			Sentiment:   p > threshold,
			Score:       s,
			Probability: p,
		}
	}
	return out, nil
}

// PredictOne scores a single text.
func (m *PredictionModel) PredictOne(ctx context.Context, text string) (dataset.SentimentPrediction, error) {
	preds, err := m.Predict(ctx, dataset.Unlabeled(text))
	if err != nil {
		return dataset.SentimentPrediction{}, err
	}
	return preds[0], nil
}

var _ Predictor = (*PredictionModel)(nil)
