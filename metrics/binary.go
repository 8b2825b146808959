package metrics

import (
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/sentiment/pkg/errors"
)

// ConfusionMatrix is the 2×2 table of a binary classifier, positive class 1.
type ConfusionMatrix struct {
	TruePositives  int `json:"true_positives" yaml:"true_positives"`
	FalsePositives int `json:"false_positives" yaml:"false_positives"`
	TrueNegatives  int `json:"true_negatives" yaml:"true_negatives"`
	FalseNegatives int `json:"false_negatives" yaml:"false_negatives"`
}

// NewConfusionMatrix counts predictions against 0/1 labels.
func NewConfusionMatrix(yTrue, yPred *mat.VecDense) (ConfusionMatrix, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return ConfusionMatrix{}, err
	}
	if _, err := checkBinaryLabels("ConfusionMatrix", yTrue); err != nil {
		return ConfusionMatrix{}, err
	}
	var cm ConfusionMatrix
	for i := 0; i < n; i++ {
		cm.add(yTrue.AtVec(i) == 1, yPred.AtVec(i) == 1)
	}
	return cm, nil
}

func (cm *ConfusionMatrix) add(actual, predicted bool) {
	switch {
	case actual && predicted:
		cm.TruePositives++
	case actual:
		cm.FalseNegatives++
	case predicted:
		cm.FalsePositives++
	default:
		cm.TrueNegatives++
	}
}

// Total returns the number of counted samples.
func (cm ConfusionMatrix) Total() int {
	return cm.TruePositives + cm.FalsePositives + cm.TrueNegatives + cm.FalseNegatives
}

// Accuracy returns (TP+TN)/total.
func (cm ConfusionMatrix) Accuracy() float64 {
	return ratio("Accuracy", cm.TruePositives+cm.TrueNegatives, cm.Total())
}

// Precision returns TP/(TP+FP).
func (cm ConfusionMatrix) Precision() float64 {
	return ratio("Precision", cm.TruePositives, cm.TruePositives+cm.FalsePositives)
}

// Recall returns TP/(TP+FN).
func (cm ConfusionMatrix) Recall() float64 {
	return ratio("Recall", cm.TruePositives, cm.TruePositives+cm.FalseNegatives)
}

// NegativePrecision returns TN/(TN+FN).
func (cm ConfusionMatrix) NegativePrecision() float64 {
	return ratio("NegativePrecision", cm.TrueNegatives, cm.TrueNegatives+cm.FalseNegatives)
}

// NegativeRecall returns TN/(TN+FP).
func (cm ConfusionMatrix) NegativeRecall() float64 {
	return ratio("NegativeRecall", cm.TrueNegatives, cm.TrueNegatives+cm.FalsePositives)
}

// F1 returns the harmonic mean of precision and recall, 0 when both are 0.
func (cm ConfusionMatrix) F1() float64 {
	denom := 2*cm.TruePositives + cm.FalsePositives + cm.FalseNegatives
	return ratio("F1Score", 2*cm.TruePositives, denom)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (cm ConfusionMatrix) MarshalZerologObject(e *zerolog.Event) {
	e.Int("tp", cm.TruePositives).
		Int("fp", cm.FalsePositives).
		Int("tn", cm.TrueNegatives).
		Int("fn", cm.FalseNegatives)
}

// ratio はゼロ除算のときUndefinedMetricWarningを出して0を返す
func ratio(metric string, num, denom int) float64 {
	if denom == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(metric, "zero division", 0))
		return 0
	}
	return float64(num) / float64(denom)
}

// Precision は陽性クラス（1）の適合率
func Precision(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return cm.Precision(), nil
}

// Recall は陽性クラス（1）の再現率
func Recall(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return cm.Recall(), nil
}

// F1Score は陽性クラス（1）のF1スコア
func F1Score(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return cm.F1(), nil
}

// BinaryClassificationMetrics は二値分類器の評価結果
type BinaryClassificationMetrics struct {
	Accuracy          float64         `json:"accuracy" yaml:"accuracy"`
	AUC               float64         `json:"auc" yaml:"auc"`
	AUPRC             float64         `json:"auprc" yaml:"auprc"`
	F1Score           float64         `json:"f1_score" yaml:"f1_score"`
	PositivePrecision float64         `json:"positive_precision" yaml:"positive_precision"`
	PositiveRecall    float64         `json:"positive_recall" yaml:"positive_recall"`
	NegativePrecision float64         `json:"negative_precision" yaml:"negative_precision"`
	NegativeRecall    float64         `json:"negative_recall" yaml:"negative_recall"`
	LogLoss           float64         `json:"log_loss" yaml:"log_loss"`
	LogLossReduction  float64         `json:"log_loss_reduction" yaml:"log_loss_reduction"`
	Entropy           float64         `json:"entropy" yaml:"entropy"`
	ConfusionMatrix   ConfusionMatrix `json:"confusion_matrix" yaml:"confusion_matrix"`
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (m BinaryClassificationMetrics) MarshalZerologObject(e *zerolog.Event) {
	e.Float64("accuracy", m.Accuracy).
		Float64("auc", m.AUC).
		Float64("auprc", m.AUPRC).
		Float64("f1", m.F1Score).
		Float64("log_loss", m.LogLoss).
		Object("confusion_matrix", m.ConfusionMatrix)
}

// EvaluateBinary computes every binary metric at once.
//
// labels are 0/1, scores are raw margins used for AUC and AUPRC,
// probabilities are P(positive) used for log-loss. A sample is predicted
// positive when its probability is greater than threshold.
// LogLossReduction is 1 - LogLoss/Entropy, where Entropy is the log-loss of
// always predicting the positive rate of labels.
func EvaluateBinary(labels, scores, probabilities []float64, threshold float64) (BinaryClassificationMetrics, error) {
	n := len(labels)
	if n == 0 {
		return BinaryClassificationMetrics{}, errors.NewModelError("EvaluateBinary", "empty data", errors.ErrEmptyData)
	}
	if len(scores) != n {
		return BinaryClassificationMetrics{}, errors.NewDimensionError("EvaluateBinary", n, len(scores), 0)
	}
	if len(probabilities) != n {
		return BinaryClassificationMetrics{}, errors.NewDimensionError("EvaluateBinary", n, len(probabilities), 0)
	}

	yTrue := mat.NewVecDense(n, append([]float64(nil), labels...))
	yScore := mat.NewVecDense(n, append([]float64(nil), scores...))
	yProb := mat.NewVecDense(n, append([]float64(nil), probabilities...))
	yPred := mat.NewVecDense(n, nil)
	for i, p := range probabilities {
		if p > threshold {
			yPred.SetVec(i, 1)
		}
	}

	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return BinaryClassificationMetrics{}, err
	}
	auc, err := AUC(yTrue, yScore)
	if err != nil {
		return BinaryClassificationMetrics{}, err
	}
	auprc, err := AveragePrecision(yTrue, yScore)
	if err != nil {
		return BinaryClassificationMetrics{}, err
	}
	logLoss, err := BinaryLogLoss(yTrue, yProb)
	if err != nil {
		return BinaryClassificationMetrics{}, err
	}

	prior := float64(cm.TruePositives+cm.FalseNegatives) / float64(n)
	entropy := binaryEntropy(prior)
	reduction := 0.0
	if entropy > 0 {
		reduction = 1 - logLoss/entropy
	}

	return BinaryClassificationMetrics{
		Accuracy:          cm.Accuracy(),
		AUC:               auc,
		AUPRC:             auprc,
		F1Score:           cm.F1(),
		PositivePrecision: cm.Precision(),
		PositiveRecall:    cm.Recall(),
		NegativePrecision: cm.NegativePrecision(),
		NegativeRecall:    cm.NegativeRecall(),
		LogLoss:           logLoss,
		LogLossReduction:  reduction,
		Entropy:           entropy,
		ConfusionMatrix:   cm,
	}, nil
}

func binaryEntropy(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 0
	}
	return -(p*math.Log(p) + (1-p)*math.Log(1-p))
}
