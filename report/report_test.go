package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/sentiment/dataset"
	"github.com/YuminosukeSato/sentiment/metrics"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{in: 0.833333, want: "83.33%"},
		{in: 1, want: "100.00%"},
		{in: 0, want: "0.00%"},
		{in: 0.96, want: "96.00%"},
		{in: 0.84211, want: "84.21%"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Percent(tt.in))
		})
	}
}

func TestWriteMetrics(t *testing.T) {
	var buf bytes.Buffer
	err := WriteMetrics(&buf, metrics.BinaryClassificationMetrics{
		Accuracy: 0.833333,
		AUC:      0.96,
		F1Score:  0.842105,
	})
	require.NoError(t, err)

	want := "\n" +
		"PredictionModel quality metrics evaluation\n" +
		"-------------------------------------------\n" +
		"Accuracy: 83.33%\n" +
		"Auc: 96.00%\n" +
		"F1Score: 84.21%\n"
	assert.Equal(t, want, buf.String())
}

func TestWritePredictions(t *testing.T) {
	var buf bytes.Buffer
	err := WritePredictions(&buf, []dataset.SentimentPrediction{
		{Text: "Please refrain from adding nonsense to Wikipedia.", Sentiment: false},
		{Text: "He is the best, and the article should say that.", Sentiment: true},
	})
	require.NoError(t, err)

	want := "\n" +
		"Sentiment Predictions\n" +
		"---------------------\n" +
		"Sentiment: Please refrain from adding nonsense to Wikipedia. | Prediction: Negative\n" +
		"Sentiment: He is the best, and the article should say that. | Prediction: Positive\n" +
		"\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteExtendedMetrics(t *testing.T) {
	var buf bytes.Buffer
	err := WriteExtendedMetrics(&buf, metrics.BinaryClassificationMetrics{
		AUPRC:   0.5,
		LogLoss: 0.25,
		ConfusionMatrix: metrics.ConfusionMatrix{
			TruePositives: 5, FalseNegatives: 1, FalsePositives: 2, TrueNegatives: 4,
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Auprc: 50.00%\n")
	assert.Contains(t, out, "LogLoss: 0.2500\n")
	assert.Contains(t, out, "Confusion matrix\n")

	lines := strings.Split(out, "\n")
	var rows []string
	for _, l := range lines {
		if strings.HasPrefix(l, "Positive ") || strings.HasPrefix(l, "Negative ") {
			rows = append(rows, strings.Join(strings.Fields(l), " "))
		}
	}
	assert.Equal(t, []string{"Positive 5 1", "Negative 2 4"}, rows)
}

func TestWriteBaseline(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBaseline(&buf, "vader", metrics.BinaryClassificationMetrics{Accuracy: 0.5, AUC: 0.75, F1Score: 0.4}))
	assert.Equal(t, "\nBaseline (vader) Accuracy: 50.00% | Auc: 75.00% | F1Score: 40.00%\n", buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, os.ErrClosed }

func TestWriteErrors(t *testing.T) {
	assert.Error(t, WriteMetrics(failingWriter{}, metrics.BinaryClassificationMetrics{}))
	assert.Error(t, WritePredictions(failingWriter{}, nil))
}

func TestPlotROC(t *testing.T) {
	model, err := NewCurve("model", []float64{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0.5, 0.5, 1}, model.FPR)

	baseline, err := NewCurve("baseline", []float64{0, 0, 1, 1}, []float64{0.5, 0.1, 0.4, 0.9})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "plots", "roc.png")
	require.NoError(t, PlotROC(path, model, baseline))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestPlotROC_Errors(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, PlotROC(filepath.Join(dir, "none.png")))
	assert.Error(t, PlotROC(filepath.Join(dir, "bad.png"), Curve{Name: "x", FPR: []float64{0, 1}, TPR: []float64{0}}))

	_, err := NewCurve("x", nil, nil)
	assert.Error(t, err)
	_, err = NewCurve("x", []float64{0, 1}, []float64{0.5})
	assert.Error(t, err)
}
