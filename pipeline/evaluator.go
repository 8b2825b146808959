package pipeline

import (
	"context"
	"time"

	"github.com/YuminosukeSato/sentiment/dataset"
	"github.com/YuminosukeSato/sentiment/metrics"
	"github.com/YuminosukeSato/sentiment/pkg/errors"
	"github.com/YuminosukeSato/sentiment/pkg/log"
)

// BinaryClassificationEvaluator scores a Predictor against labelled rows.
type BinaryClassificationEvaluator struct {
	// Threshold は陽性と判定する確率の下限（この値より大きいと陽性）
	Threshold float64
}

// NewBinaryClassificationEvaluator returns an evaluator with threshold 0.5.
func NewBinaryClassificationEvaluator() *BinaryClassificationEvaluator {
	return &BinaryClassificationEvaluator{Threshold: 0.5}
}

// Evaluate loads the test rows through loader and scores model on them.
func (e *BinaryClassificationEvaluator) Evaluate(ctx context.Context, model Predictor, loader *TextLoader) (metrics.BinaryClassificationMetrics, error) {
	if loader == nil {
		return metrics.BinaryClassificationMetrics{}, errors.NewValidationError("loader", "must not be nil", nil)
	}
	rows, _, err := loader.Load(ctx)
	if err != nil {
		return metrics.BinaryClassificationMetrics{}, err
	}
	return e.EvaluateRows(ctx, model, rows)
}

// EvaluateRows scores model on rows that are already in memory. Unlabelled
// rows are ignored.
func (e *BinaryClassificationEvaluator) EvaluateRows(ctx context.Context, model Predictor, rows []dataset.SentimentData) (metrics.BinaryClassificationMetrics, error) {
	if model == nil {
		return metrics.BinaryClassificationMetrics{}, errors.NewValidationError("model", "must not be nil", nil)
	}
	start := time.Now()

	rows = labelled(rows)
	if len(rows) == 0 {
		return metrics.BinaryClassificationMetrics{}, errors.NewModelError("BinaryClassificationEvaluator.Evaluate", "no labelled rows", errors.ErrEmptyData)
	}

	preds, err := model.Predict(ctx, rows)
	if err != nil {
		return metrics.BinaryClassificationMetrics{}, err
	}
	if len(preds) != len(rows) {
		return metrics.BinaryClassificationMetrics{}, errors.NewDimensionError("BinaryClassificationEvaluator.Evaluate", len(rows), len(preds), 0)
	}

	scores := make([]float64, len(preds))
	probs := make([]float64, len(preds))
	for i, p := range preds {
		scores[i] = p.Score
		probs[i] = p.Probability
	}

	result, err := metrics.EvaluateBinary(dataset.Labels(rows), scores, probs, e.Threshold)
	if err != nil {
		return metrics.BinaryClassificationMetrics{}, err
	}

	log.GetLoggerWithName("evaluator").Info("Model evaluated",
		log.OperationKey, log.OperationEvaluate,
		log.SamplesKey, len(rows),
		log.AccuracyKey, result.Accuracy,
		log.AUCKey, result.AUC,
		log.F1ScoreKey, result.F1Score,
		log.LossKey, result.LogLoss,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return result, nil
}
