package baseline

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/sentiment/dataset"
)

func TestVaderBaseline_Predict(t *testing.T) {
	b := NewVaderBaseline()
	rows := dataset.Unlabeled(
		"This is a wonderful, excellent and helpful article!",
		"This is terrible, awful and stupid garbage.",
		"",
	)

	preds, err := b.Predict(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, preds, 3)

	assert.True(t, preds[0].Sentiment)
	assert.Greater(t, preds[0].Score, 0.0)
	assert.False(t, preds[1].Sentiment)
	assert.Less(t, preds[1].Score, 0.0)

	// 空文字はcompound 0 → 確率0.5 → 陰性
	assert.Equal(t, 0.0, preds[2].Score)
	assert.Equal(t, 0.5, preds[2].Probability)
	assert.False(t, preds[2].Sentiment)

	for i, p := range preds {
		assert.Equal(t, rows[i].Text, p.Text)
		assert.InDelta(t, (p.Score+1)/2, p.Probability, 1e-12)
	}
}

func TestVaderBaseline_StripsMarkup(t *testing.T) {
	b := NewVaderBaseline()
	plain := b.Compound("great work")
	marked := b.Compound("**great** work <https://example.com>")
	assert.InDelta(t, plain, marked, 1e-12)
}

func TestVaderBaseline_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewVaderBaseline().Predict(ctx, dataset.Unlabeled("ok"))
	assert.ErrorIs(t, err, context.Canceled)
}

// cancelAfter reports context.Canceled once Err has been called n times.
type cancelAfter struct {
	context.Context
	calls atomic.Int64
	n     int64
}

func (c *cancelAfter) Err() error {
	if c.calls.Add(1) > c.n {
		return context.Canceled
	}
	return nil
}

func TestVaderBaseline_CancelledWhileScoring(t *testing.T) {
	texts := make([]string, 3*scoreParallelThreshold)
	for i := range texts {
		texts[i] = fmt.Sprintf("comment %d is great", i)
	}
	ctx := &cancelAfter{Context: context.Background(), n: 1}

	preds, err := NewVaderBaseline().Predict(ctx, dataset.Unlabeled(texts...))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, preds)
}

func TestVaderBaseline_ParallelMatchesSequential(t *testing.T) {
	texts := make([]string, 2*scoreParallelThreshold+1)
	for i := range texts {
		texts[i] = []string{"thanks, great fix", "this is terrible vandalism", "the page was moved"}[i%3]
	}
	b := NewVaderBaseline()
	preds, err := b.Predict(context.Background(), dataset.Unlabeled(texts...))
	require.NoError(t, err)
	require.Len(t, preds, len(texts))
	for i, p := range preds {
		require.Equal(t, b.Compound(texts[i]), p.Score, "row %d", i)
	}
}
