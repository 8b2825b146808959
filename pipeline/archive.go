package pipeline

import (
	"context"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/YuminosukeSato/sentiment/core/model"
	"github.com/YuminosukeSato/sentiment/pkg/errors"
	"github.com/YuminosukeSato/sentiment/pkg/log"
	"github.com/YuminosukeSato/sentiment/preprocessing"
	"github.com/YuminosukeSato/sentiment/sklearn/fasttree"
)

// FormatVersion is the archive layout version written by Save.
const FormatVersion = 1

const (
	manifestEntry   = "manifest.yaml"
	featurizerEntry = "featurizer.json"
	modelEntry      = "model.json"
)

// Manifest はアーカイブに同梱されるメタデータ
type Manifest struct {
	FormatVersion   int                     `yaml:"format_version" json:"format_version"`
	RunID           string                  `yaml:"run_id" json:"run_id"`
	CreatedAt       string                  `yaml:"created_at" json:"created_at"`
	Trainer         string                  `yaml:"trainer" json:"trainer"`
	Hyperparameters fasttree.TrainingParams `yaml:"hyperparameters" json:"hyperparameters"`
	NumFeatures     int                     `yaml:"num_features" json:"num_features"`
	TrainingRows    int                     `yaml:"training_rows" json:"training_rows"`
}

// entries はアーカイブに書き込むエントリを組み立てる
func (m *PredictionModel) entries() ([]model.ArchiveEntry, error) {
	manifest, err := yaml.Marshal(m.manifest)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode manifest")
	}
	featurizer, err := model.JSONEntry(featurizerEntry, m.featurizer)
	if err != nil {
		return nil, err
	}
	classifier, err := model.JSONEntry(modelEntry, m.classifier)
	if err != nil {
		return nil, err
	}
	return []model.ArchiveEntry{
		{Name: manifestEntry, Data: manifest},
		featurizer,
		classifier,
	}, nil
}

// Save writes the model archive to path and blocks until it is on disk.
func (m *PredictionModel) Save(ctx context.Context, path string) error {
	start := time.Now()
	entries, err := m.entries()
	if err != nil {
		return err
	}
	if err := model.WriteArchive(ctx, path, entries); err != nil {
		return err
	}

	log.GetLoggerWithName("pipeline").Info("Model saved",
		log.OperationKey, log.OperationSave,
		log.PathKey, path,
		log.RunIDKey, m.manifest.RunID,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// WriteAsync saves the archive in the background. The channel receives the
// result of the write and is then closed.
//
// 使用例:
//
//	if err := <-m.WriteAsync(ctx, "Data/Model.zip"); err != nil {
//	    return err
//	}
func (m *PredictionModel) WriteAsync(ctx context.Context, path string) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		var err error
		defer func() { done <- err }()
		defer errors.Recover(&err, "PredictionModel.WriteAsync")
		err = m.Save(ctx, path)
	}()
	return done
}

// ReadModel loads an archive written by Save.
func ReadModel(ctx context.Context, path string) (*PredictionModel, error) {
	entries, err := model.ReadArchive(ctx, path)
	if err != nil {
		return nil, err
	}
	m, err := decodeModel(entries)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load model %s", path)
	}

	log.GetLoggerWithName("pipeline").Info("Model loaded",
		log.OperationKey, log.OperationLoad,
		log.PathKey, path,
		log.RunIDKey, m.manifest.RunID,
		log.FeaturesKey, m.manifest.NumFeatures,
	)
	return m, nil
}

// ReadModelFrom loads an archive held in memory.
func ReadModelFrom(ctx context.Context, data []byte) (*PredictionModel, error) {
	entries, err := model.ReadArchiveFrom(ctx, data)
	if err != nil {
		return nil, err
	}
	return decodeModel(entries)
}

func decodeModel(entries map[string][]byte) (*PredictionModel, error) {
	raw, ok := entries[manifestEntry]
	if !ok {
		return nil, errors.NewValueError("ReadModel", "archive is missing "+manifestEntry)
	}
	var manifest Manifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return nil, errors.Wrap(err, "failed to decode manifest")
	}
	if manifest.FormatVersion != FormatVersion {
		return nil, errors.NewValidationError("format_version", "unsupported archive format", manifest.FormatVersion)
	}

	featurizer := preprocessing.NewTextFeaturizer()
	if err := model.DecodeJSONEntry(entries, featurizerEntry, featurizer); err != nil {
		return nil, err
	}
	classifier := fasttree.NewFastTreeBinaryClassifier()
	if err := model.DecodeJSONEntry(entries, modelEntry, classifier); err != nil {
		return nil, err
	}

	if !featurizer.IsFitted() || !classifier.IsFitted() {
		return nil, errors.NewValueError("ReadModel", "archive holds an untrained model")
	}
	if featurizer.NumFeatures() != classifier.NumFeatures() {
		return nil, errors.NewDimensionError("ReadModel", featurizer.NumFeatures(), classifier.NumFeatures(), 1)
	}

	return &PredictionModel{
		featurizer: featurizer,
		classifier: classifier,
		manifest:   manifest,
	}, nil
}
