// Package log defines standard attribute keys for pipeline operations.
//
// Using these keys keeps records from the loader, featurizer, trainer and
// evaluator consistent, so a single query can follow one training run.
// Keys follow a hierarchical naming convention ("model.name", "data.samples").
package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of estimator or transformer.
	// Examples: "TextFeaturizer", "FastTreeBinaryClassifier"
	ModelNameKey = "model.name"

	// RunIDKey identifies one training run; it is also stored in the model archive.
	RunIDKey = "run.id"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "evaluate", "save", "load"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of model lifecycle.
	PhaseKey = "ml.phase"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) produced.
	FeaturesKey = "data.features"

	// SkippedKey indicates the number of rows dropped while loading.
	SkippedKey = "data.skipped"

	// PositivesKey and NegativesKey record the class balance.
	PositivesKey = "data.positives"
	NegativesKey = "data.negatives"

	// PathKey records the file a component read or wrote.
	PathKey = "data.path"

	// VocabularyKey records the learned vocabulary size of the featurizer.
	VocabularyKey = "data.vocabulary"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	AccuracyKey = "metrics.accuracy"
	AUCKey      = "metrics.auc"
	F1ScoreKey  = "metrics.f1"
	LossKey     = "metrics.loss"

	// IterationKey records the current boosting iteration.
	IterationKey = "training.iteration"

	// TreesKey and LeavesKey describe the trained ensemble.
	TreesKey  = "model.trees"
	LeavesKey = "model.leaves"
)

// Prediction and Output Context
const (
	// PredsKey indicates the number of predictions made.
	PredsKey = "preds.count"

	// ThresholdKey records the decision threshold used for classification.
	ThresholdKey = "preds.threshold"
)

// Error and Warning Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// SuggestionKey provides a hint for resolving the issue.
	SuggestionKey = "error.suggestion"
)

// Hyperparameters and Configuration
const (
	LearningRateKey = "hyperparams.learning_rate"
	RandomSeedKey   = "config.random_seed"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationEvaluate     = "evaluate"
	OperationSave         = "save"
	OperationLoad         = "load"

	PhaseTraining      = "training"
	PhaseTesting       = "testing"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorInvalidInput      = "INVALID_INPUT"
)
