// Package report writes evaluation results and predictions to the console
// and renders ROC curves.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/YuminosukeSato/sentiment/dataset"
	"github.com/YuminosukeSato/sentiment/metrics"
	"github.com/YuminosukeSato/sentiment/pkg/errors"
)

// Percent formats a fraction with two decimals and a percent sign,
// e.g. 0.8333 → "83.33%".
func Percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

// lineWriter は最初の書き込みエラーを保持する
type lineWriter struct {
	w   io.Writer
	err error
}

func (lw *lineWriter) println(a ...any) {
	if lw.err != nil {
		return
	}
	_, lw.err = fmt.Fprintln(lw.w, a...)
}

func (lw *lineWriter) printf(format string, a ...any) {
	if lw.err != nil {
		return
	}
	_, lw.err = fmt.Fprintf(lw.w, format+"\n", a...)
}

func (lw *lineWriter) result(what string) error {
	if lw.err != nil {
		return errors.Wrapf(lw.err, "failed to write %s", what)
	}
	return nil
}

// WriteMetrics prints the quality block: a blank line, the title, a rule and
// accuracy, AUC and F1 as percentages.
func WriteMetrics(w io.Writer, m metrics.BinaryClassificationMetrics) error {
	lw := &lineWriter{w: w}
	lw.println()
	lw.println("PredictionModel quality metrics evaluation")
	lw.println("-------------------------------------------")
	lw.printf("Accuracy: %s", Percent(m.Accuracy))
	lw.printf("Auc: %s", Percent(m.AUC))
	lw.printf("F1Score: %s", Percent(m.F1Score))
	return lw.result("metrics")
}

// WriteExtendedMetrics prints the remaining binary metrics and the
// confusion matrix.
func WriteExtendedMetrics(w io.Writer, m metrics.BinaryClassificationMetrics) error {
	cm := m.ConfusionMatrix
	lw := &lineWriter{w: w}
	lw.printf("Auprc: %s", Percent(m.AUPRC))
	lw.printf("PositivePrecision: %s", Percent(m.PositivePrecision))
	lw.printf("PositiveRecall: %s", Percent(m.PositiveRecall))
	lw.printf("NegativePrecision: %s", Percent(m.NegativePrecision))
	lw.printf("NegativeRecall: %s", Percent(m.NegativeRecall))
	lw.printf("LogLoss: %.4f", m.LogLoss)
	lw.printf("LogLossReduction: %.4f", m.LogLossReduction)
	lw.printf("Entropy: %.4f", m.Entropy)
	lw.println()
	lw.println("Confusion matrix")
	lw.printf("%-12s%10s%10s", "", "Positive", "Negative")
	lw.printf("%-12s%10d%10d", "Positive", cm.TruePositives, cm.FalseNegatives)
	lw.printf("%-12s%10d%10d", "Negative", cm.FalsePositives, cm.TrueNegatives)
	return lw.result("extended metrics")
}

// WriteBaseline prints one summary line for a comparison model.
func WriteBaseline(w io.Writer, name string, m metrics.BinaryClassificationMetrics) error {
	lw := &lineWriter{w: w}
	lw.println()
	lw.printf("Baseline (%s) Accuracy: %s | Auc: %s | F1Score: %s",
		name, Percent(m.Accuracy), Percent(m.AUC), Percent(m.F1Score))
	return lw.result("baseline")
}

// WritePredictions prints the predictions block followed by a blank line.
func WritePredictions(w io.Writer, preds []dataset.SentimentPrediction) error {
	lw := &lineWriter{w: w}
	lw.println()
	lw.println("Sentiment Predictions")
	lw.println(strings.Repeat("-", len("Sentiment Predictions")))
	for _, p := range preds {
		lw.printf("Sentiment: %s | Prediction: %s", p.Text, p.Label())
	}
	lw.println()
	return lw.result("predictions")
}
