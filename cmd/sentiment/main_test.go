package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/sentiment/pkg/errors"
)

func setDataEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SENTIMENT_DATA_PATH", filepath.Join("..", "..", "Data", "data.tsv"))
	t.Setenv("SENTIMENT_TEST_PATH", filepath.Join("..", "..", "Data", "test.tsv"))
	t.Setenv("SENTIMENT_MODEL_PATH", filepath.Join(dir, "Model.zip"))
	t.Setenv("SENTIMENT_LOG_LEVEL", "error")
	return dir
}

func TestRun_Train(t *testing.T) {
	dir := setDataEnv(t)

	var stdout bytes.Buffer
	err := run(context.Background(), []string{"-env", filepath.Join(dir, "missing.env")}, &stdout, io.Discard)
	require.NoError(t, err)

	out := stdout.String()
	assert.True(t, strings.HasPrefix(out, "\nPredictionModel quality metrics evaluation\n-------------------------------------------\nAccuracy: "), out)
	assert.Contains(t, out, "\nAuc: ")
	assert.Contains(t, out, "\nF1Score: ")
	assert.Contains(t, out, "\nSentiment Predictions\n---------------------\n")
	for _, s := range sampleSentences {
		assert.Contains(t, out, "Sentiment: "+s+" | Prediction: ")
	}
	assert.True(t, strings.HasSuffix(out, "\n\n"))

	_, err = os.Stat(filepath.Join(dir, "Model.zip"))
	assert.NoError(t, err)
}

func TestRun_TrainWithExtras(t *testing.T) {
	dir := setDataEnv(t)
	rocPath := filepath.Join(dir, "roc.png")
	t.Setenv("SENTIMENT_REPORT_EXTENDED", "true")
	t.Setenv("SENTIMENT_BASELINE_VADER", "true")
	t.Setenv("SENTIMENT_ROC_PLOT", rocPath)

	var stdout bytes.Buffer
	err := run(context.Background(), []string{"train", "-env", ""}, &stdout, io.Discard)
	require.NoError(t, err)

	out := stdout.String()
	assert.Contains(t, out, "Confusion matrix\n")
	assert.Contains(t, out, "\nBaseline (vader) Accuracy: ")

	info, err := os.Stat(rocPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRun_Errors(t *testing.T) {
	dir := setDataEnv(t)

	t.Run("Unknown command", func(t *testing.T) {
		err := run(context.Background(), []string{"predict"}, io.Discard, io.Discard)
		require.Error(t, err)
		var verr *errors.ValidationError
		assert.True(t, errors.As(err, &verr))
	})

	t.Run("Unknown flag", func(t *testing.T) {
		err := run(context.Background(), []string{"-nope"}, io.Discard, io.Discard)
		assert.Error(t, err)
	})

	t.Run("Missing config file", func(t *testing.T) {
		err := run(context.Background(), []string{"-config", filepath.Join(dir, "none.yaml")}, io.Discard, io.Discard)
		assert.Error(t, err)
	})

	t.Run("Missing training data", func(t *testing.T) {
		t.Setenv("SENTIMENT_DATA_PATH", filepath.Join(dir, "none.tsv"))
		err := run(context.Background(), []string{"-env", ""}, io.Discard, io.Discard)
		assert.Error(t, err)
	})

	t.Run("Serve without model", func(t *testing.T) {
		err := run(context.Background(), []string{"serve", "-env", ""}, io.Discard, io.Discard)
		assert.Error(t, err)
	})
}
