// Package pipeline assembles the loader, featurizer and classifier into a
// trainable LearningPipeline and the PredictionModel it produces.
//
// 使用例:
//
//	p := pipeline.New()
//	p.Add(pipeline.NewTextLoader("Data/data.tsv"))
//	p.Add(pipeline.NewTextFeaturizer(pipeline.ColumnFeatures, pipeline.ColumnText))
//	p.Add(pipeline.NewFastTreeBinaryClassifier(
//	    fasttree.WithNumTrees(5),
//	    fasttree.WithNumLeaves(5),
//	    fasttree.WithMinDocumentsInLeafs(2),
//	))
//	m, err := p.Train(ctx)
package pipeline

import (
	"context"

	"github.com/YuminosukeSato/sentiment/dataset"
	"github.com/YuminosukeSato/sentiment/preprocessing"
	"github.com/YuminosukeSato/sentiment/sklearn/fasttree"
)

// Column names flowing between stages.
const (
	ColumnLabel    = "Sentiment"
	ColumnText     = "SentimentText"
	ColumnFeatures = "Features"
)

// Stage is one step of a LearningPipeline.
type Stage interface {
	StageName() string
}

// TextLoader reads labelled rows from a TSV file.
type TextLoader struct {
	Path    string
	Options []dataset.LoaderOption
}

// NewTextLoader creates a loader stage for path.
func NewTextLoader(path string, opts ...dataset.LoaderOption) *TextLoader {
	return &TextLoader{Path: path, Options: opts}
}

// StageName implements Stage.
func (l *TextLoader) StageName() string { return "TextLoader" }

// Load reads the file.
func (l *TextLoader) Load(ctx context.Context) ([]dataset.SentimentData, dataset.LoadStats, error) {
	return dataset.LoadTSV(ctx, l.Path, l.Options...)
}

// TextFeaturizer turns the InputColumn text into the OutputColumn vector.
type TextFeaturizer struct {
	OutputColumn string
	InputColumn  string
	Options      []preprocessing.TextFeaturizerOption
}

// NewTextFeaturizer creates a featurizer stage.
func NewTextFeaturizer(output, input string, opts ...preprocessing.TextFeaturizerOption) *TextFeaturizer {
	return &TextFeaturizer{OutputColumn: output, InputColumn: input, Options: opts}
}

// StageName implements Stage.
func (f *TextFeaturizer) StageName() string { return "TextFeaturizer" }

// FastTreeBinaryClassifier trains the boosted tree classifier on the
// Features column.
type FastTreeBinaryClassifier struct {
	Options []fasttree.Option
}

// NewFastTreeBinaryClassifier creates a trainer stage.
func NewFastTreeBinaryClassifier(opts ...fasttree.Option) *FastTreeBinaryClassifier {
	return &FastTreeBinaryClassifier{Options: opts}
}

// StageName implements Stage.
func (c *FastTreeBinaryClassifier) StageName() string { return "FastTreeBinaryClassifier" }
