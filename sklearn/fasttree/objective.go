package fasttree

import (
	"math"

	"github.com/YuminosukeSato/sentiment/pkg/errors"
)

// ObjectiveFunction defines the interface for boosting objectives
type ObjectiveFunction interface {
	// CalculateGradient calculates the gradient for a single sample
	CalculateGradient(score, target float64) float64

	// CalculateHessian calculates the hessian for a single sample
	CalculateHessian(score, target float64) float64

	// CalculateLoss calculates the loss for a single sample
	CalculateLoss(score, target float64) float64

	// GetInitScore returns the initial raw score
	GetInitScore(targets []float64) float64

	// Name returns the name of the objective
	Name() string
}

// minHessian keeps leaf values finite when every probability saturates
const minHessian = 1e-16

// BinaryLogLoss is the logistic loss on raw scores, targets in {0, 1}.
type BinaryLogLoss struct{}

// CalculateGradient returns sigmoid(score) - target.
func (BinaryLogLoss) CalculateGradient(score, target float64) float64 {
	return errors.Sigmoid(score) - target
}

// CalculateHessian returns p(1-p).
func (BinaryLogLoss) CalculateHessian(score, target float64) float64 {
	p := errors.Sigmoid(score)
	return math.Max(p*(1-p), minHessian)
}

// CalculateLoss returns -[y log p + (1-y) log(1-p)].
func (BinaryLogLoss) CalculateLoss(score, target float64) float64 {
	p := errors.Sigmoid(score)
	return -(target*errors.StabilizeLog(p) + (1-target)*errors.StabilizeLog(1-p))
}

// GetInitScore returns the log-odds of the positive rate, clipped so a
// nearly pure label set does not produce an infinite score.
func (BinaryLogLoss) GetInitScore(targets []float64) float64 {
	if len(targets) == 0 {
		return 0
	}
	pos := 0.0
	for _, y := range targets {
		pos += y
	}
	p := errors.ClipValue(pos/float64(len(targets)), 1e-6, 1-1e-6)
	return math.Log(p / (1 - p))
}

// Name returns "binary".
func (BinaryLogLoss) Name() string { return "binary" }
