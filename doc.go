// Package sentiment trains and serves a binary sentiment classifier for short
// texts such as Wikipedia edit comments.
//
// A tab-separated file of labelled rows (Sentiment, SentimentText) is turned
// into bag-of-ngram feature vectors and fed to a gradient boosted tree
// ensemble. The trained model is written to a zip archive, reloaded, and
// scored on a held-out file.
//
// # Quick Start
//
//	m, err := pipeline.New().
//	    Add(pipeline.NewTextLoader("Data/data.tsv")).
//	    Add(pipeline.NewTextFeaturizer(pipeline.ColumnFeatures, pipeline.ColumnText)).
//	    Add(pipeline.NewFastTreeBinaryClassifier()).
//	    Train(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	pred, err := m.PredictOne(ctx, "He is the best, and the article should say that.")
//
// The sentiment command runs the whole train → save → reload → evaluate →
// predict flow and prints the metrics to stdout:
//
//	go run ./cmd/sentiment
//	go run ./cmd/sentiment serve -addr :8080
//
// # Packages
//
//   - dataset: TSV loading and row types
//   - preprocessing: text normalization and the n-gram featurizer
//   - sklearn/fasttree: gradient boosted regression trees for binary labels
//   - pipeline: stage composition, training, model archives and evaluation
//   - metrics: accuracy, AUC, F1 and the rest of the binary metrics
//   - baseline: a lexicon (VADER) baseline
//   - report: console formatting and ROC plots
//   - server: HTTP prediction endpoint
//   - config: YAML, .env and SENTIMENT_* settings
//   - core/model, core/parallel, pkg/errors, pkg/log: shared infrastructure
package sentiment
