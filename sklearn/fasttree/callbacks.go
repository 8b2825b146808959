package fasttree

import (
	"math"
	"sort"
	"time"

	"github.com/YuminosukeSato/sentiment/pkg/log"
)

// CallbackEnv contains the environment for callbacks
type CallbackEnv struct {
	Model       *Ensemble
	Iteration   int
	BeginTime   time.Time
	EndTime     time.Time
	EvalResults map[string]float64

	// BestIteration may be set by a callback that tracks the best tree count.
	BestIteration int
	StopTraining  bool
}

// Callback is a function that can be called during training
type Callback func(env *CallbackEnv) error

// LogEvaluation logs evaluation results every period iterations.
func LogEvaluation(period int) Callback {
	if period < 1 {
		period = 1
	}
	logger := log.GetLoggerWithName("fasttree.callbacks")
	return func(env *CallbackEnv) error {
		if len(env.EvalResults) == 0 || env.Iteration%period != 0 {
			return nil
		}
		fields := []any{log.IterationKey, env.Iteration}
		names := make([]string, 0, len(env.EvalResults))
		for name := range env.EvalResults {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fields = append(fields, name, env.EvalResults[name])
		}
		logger.Info("Evaluation", fields...)
		return nil
	}
}

// RecordEvaluation records evaluation history
func RecordEvaluation(history *map[string][]float64) Callback {
	return func(env *CallbackEnv) error {
		if len(env.EvalResults) == 0 {
			return nil
		}
		if *history == nil {
			*history = make(map[string][]float64)
		}
		for name, value := range env.EvalResults {
			(*history)[name] = append((*history)[name], value)
		}
		return nil
	}
}

// EarlyStoppingCallback stops training when metric has not improved for
// rounds consecutive iterations.
func EarlyStoppingCallback(rounds int, metric string, minimize bool) Callback {
	bestScore := math.Inf(1)
	if !minimize {
		bestScore = math.Inf(-1)
	}
	bestIteration := 0
	roundsNoImprove := 0
	logger := log.GetLoggerWithName("fasttree.callbacks")

	return func(env *CallbackEnv) error {
		value, exists := env.EvalResults[metric]
		if !exists {
			return nil
		}

		improved := value > bestScore
		if minimize {
			improved = value < bestScore
		}

		if improved {
			bestScore = value
			bestIteration = env.Iteration
			roundsNoImprove = 0
		} else {
			roundsNoImprove++
		}
		env.BestIteration = bestIteration

		if roundsNoImprove >= rounds {
			logger.Info("Early stopping",
				log.IterationKey, env.Iteration,
				"best_iteration", bestIteration,
				metric, bestScore)
			env.StopTraining = true
		}
		return nil
	}
}

// CallbackList manages multiple callbacks
type CallbackList struct {
	callbacks     []Callback
	env           *CallbackEnv
	bestIteration int
}

// NewCallbackList creates a new callback list
func NewCallbackList(callbacks ...Callback) *CallbackList {
	return &CallbackList{
		callbacks:     callbacks,
		env:           &CallbackEnv{BestIteration: -1},
		bestIteration: -1,
	}
}

// BeforeIteration calls callbacks before each iteration. EvalResults is empty.
func (cl *CallbackList) BeforeIteration(iteration int, model *Ensemble) error {
	cl.env.Iteration = iteration
	cl.env.Model = model
	cl.env.BeginTime = time.Now()
	cl.env.EvalResults = map[string]float64{}
	return cl.run()
}

// AfterIteration calls callbacks after each iteration
func (cl *CallbackList) AfterIteration(iteration int, model *Ensemble, evalResults map[string]float64) error {
	cl.env.Iteration = iteration
	cl.env.Model = model
	cl.env.EndTime = time.Now()
	cl.env.EvalResults = evalResults
	return cl.run()
}

func (cl *CallbackList) run() error {
	for _, cb := range cl.callbacks {
		if err := cb(cl.env); err != nil {
			return err
		}
		if cl.env.StopTraining {
			break
		}
	}
	cl.bestIteration = cl.env.BestIteration
	return nil
}

// ShouldStop returns whether training should stop
func (cl *CallbackList) ShouldStop() bool {
	return cl.env.StopTraining
}
