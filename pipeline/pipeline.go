package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/sentiment/dataset"
	"github.com/YuminosukeSato/sentiment/pkg/errors"
	"github.com/YuminosukeSato/sentiment/pkg/log"
	"github.com/YuminosukeSato/sentiment/preprocessing"
	"github.com/YuminosukeSato/sentiment/sklearn/fasttree"
)

// LearningPipeline は学習ステージを順番に保持する
type LearningPipeline struct {
	stages []Stage
}

// New returns an empty pipeline.
func New() *LearningPipeline {
	return &LearningPipeline{}
}

// Add appends a stage and returns the pipeline for chaining.
func (p *LearningPipeline) Add(stage Stage) *LearningPipeline {
	p.stages = append(p.stages, stage)
	return p
}

// Stages returns the stages in order.
func (p *LearningPipeline) Stages() []Stage {
	return append([]Stage(nil), p.stages...)
}

// validate はステージ順序を検証する
// ローダーが先頭、特徴量化が学習器より前、学習器は末尾に1つだけ。
func (p *LearningPipeline) validate() (*TextLoader, *TextFeaturizer, *FastTreeBinaryClassifier, error) {
	if len(p.stages) == 0 {
		return nil, nil, nil, errors.NewValidationError("stages", "pipeline has no stages", 0)
	}

	var (
		loader     *TextLoader
		featurizer *TextFeaturizer
		trainer    *FastTreeBinaryClassifier
	)
	for i, stage := range p.stages {
		switch s := stage.(type) {
		case *TextLoader:
			if i != 0 {
				return nil, nil, nil, errors.NewValidationError("stages", "TextLoader must be the first stage", i)
			}
			loader = s
		case *TextFeaturizer:
			if featurizer != nil {
				return nil, nil, nil, errors.NewValidationError("stages", "only one TextFeaturizer is supported", i)
			}
			if trainer != nil {
				return nil, nil, nil, errors.NewValidationError("stages", "TextFeaturizer must come before the trainer", i)
			}
			if s.InputColumn != ColumnText {
				return nil, nil, nil, errors.NewValidationError("input_column", "unknown column", s.InputColumn)
			}
			if s.OutputColumn != ColumnFeatures {
				return nil, nil, nil, errors.NewValidationError("output_column", "trainer reads "+ColumnFeatures, s.OutputColumn)
			}
			featurizer = s
		case *FastTreeBinaryClassifier:
			if trainer != nil {
				return nil, nil, nil, errors.NewValidationError("stages", "exactly one trainer is required", i)
			}
			trainer = s
		case nil:
			return nil, nil, nil, errors.NewValidationError("stages", "nil stage", i)
		default:
			return nil, nil, nil, errors.NewValidationError("stages", "unsupported stage "+stage.StageName(), i)
		}
	}

	switch {
	case loader == nil:
		return nil, nil, nil, errors.NewValidationError("stages", "TextLoader must be the first stage", 0)
	case featurizer == nil:
		return nil, nil, nil, errors.NewValidationError("stages", "a TextFeaturizer is required", len(p.stages))
	case trainer == nil:
		return nil, nil, nil, errors.NewValidationError("stages", "exactly one trainer is required", len(p.stages))
	}
	return loader, featurizer, trainer, nil
}

// Train はデータを読み込み、特徴量化器と分類器を学習してPredictionModelを返す
func (p *LearningPipeline) Train(ctx context.Context) (*PredictionModel, error) {
	loaderStage, featurizerStage, trainerStage, err := p.validate()
	if err != nil {
		return nil, err
	}

	logger := log.GetLoggerWithName("pipeline")
	start := time.Now()

	rows, stats, err := loaderStage.Load(ctx)
	if err != nil {
		return nil, err
	}
	rows = labelled(rows)
	if len(rows) == 0 {
		return nil, errors.NewModelError("LearningPipeline.Train", "no labelled rows", errors.ErrEmptyData)
	}

	featurizer := preprocessing.NewTextFeaturizer(featurizerStage.Options...)
	X, err := featurizer.FitTransform(dataset.Texts(rows))
	if err != nil {
		return nil, errors.Wrap(err, "featurization failed")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "training cancelled")
	}

	y := mat.NewDense(len(rows), 1, dataset.Labels(rows))
	classifier := fasttree.NewFastTreeBinaryClassifier(trainerStage.Options...)
	if err := classifier.FitContext(ctx, X, y); err != nil {
		return nil, errors.Wrap(err, "classifier training failed")
	}

	m := &PredictionModel{
		featurizer: featurizer,
		classifier: classifier,
		manifest: Manifest{
			FormatVersion:   FormatVersion,
			RunID:           uuid.NewString(),
			CreatedAt:       time.Now().UTC().Format(time.RFC3339),
			Trainer:         trainerStage.StageName(),
			Hyperparameters: classifier.Params,
			NumFeatures:     featurizer.NumFeatures(),
			TrainingRows:    len(rows),
		},
	}

	logger.Info("Pipeline trained",
		log.RunIDKey, m.manifest.RunID,
		log.PathKey, stats.Path,
		log.SamplesKey, len(rows),
		log.PositivesKey, stats.Positives,
		log.NegativesKey, stats.Negatives,
		log.FeaturesKey, featurizer.NumFeatures(),
		log.TreesKey, len(classifier.Ensemble().Trees),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return m, nil
}

func labelled(rows []dataset.SentimentData) []dataset.SentimentData {
	out := rows[:0:0]
	for _, r := range rows {
		if r.HasLabel() {
			out = append(out, r)
		}
	}
	return out
}
