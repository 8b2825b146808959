// Package baseline provides a training-free lexicon scorer that can be
// evaluated next to the trained model.
package baseline

import (
	"context"
	"strings"

	"github.com/jonreiter/govader"

	"github.com/YuminosukeSato/sentiment/core/parallel"
	"github.com/YuminosukeSato/sentiment/dataset"
	"github.com/YuminosukeSato/sentiment/pkg/errors"
	"github.com/YuminosukeSato/sentiment/preprocessing"
)

const scoreParallelThreshold = 256

// VaderBaseline は VADER 辞書のcompoundスコアで感情を判定する
//
// Score は compound ∈ [-1, 1]、Probability は (compound+1)/2。
// Probability が Threshold より大きいとき陽性。
type VaderBaseline struct {
	analyzer    *govader.SentimentIntensityAnalyzer
	Threshold   float64
	StripMarkup bool
}

// NewVaderBaseline returns a baseline with threshold 0.5 and markup stripping on.
func NewVaderBaseline() *VaderBaseline {
	return &VaderBaseline{
		analyzer:    govader.NewSentimentIntensityAnalyzer(),
		Threshold:   0.5,
		StripMarkup: true,
	}
}

// Compound returns the VADER compound score of text.
func (b *VaderBaseline) Compound(text string) float64 {
	if b.StripMarkup {
		text = preprocessing.StripMarkup(text)
	}
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return b.analyzer.PolarityScores(text).Compound
}

// Predict scores every row. Labels are ignored.
func (b *VaderBaseline) Predict(ctx context.Context, rows []dataset.SentimentData) ([]dataset.SentimentPrediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "baseline prediction cancelled")
	}

	out := make([]dataset.SentimentPrediction, len(rows))
	err := parallel.ParallelizeErr(len(rows), scoreParallelThreshold, func(start, end int) error {
		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				return errors.Wrapf(err, "baseline prediction cancelled at row %d", i)
			}
			c := b.Compound(rows[i].Text)
			p := errors.ClipValue((c+1)/2, 0, 1)
			out[i] = dataset.SentimentPrediction{
				Text:        rows[i].Text,
				Sentiment:   p > b.Threshold,
				Score:       c,
				Probability: p,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
