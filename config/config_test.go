package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/sentiment/pkg/errors"
	"github.com/YuminosukeSato/sentiment/preprocessing"
	"github.com/YuminosukeSato/sentiment/sklearn/fasttree"
)

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default("/work")

	assert.Equal(t, filepath.Join("/work", "Data", "data.tsv"), cfg.Data.TrainPath)
	assert.Equal(t, filepath.Join("/work", "Data", "test.tsv"), cfg.Data.TestPath)
	assert.Equal(t, filepath.Join("/work", "Data", "Model.zip"), cfg.Data.ModelPath)
	assert.Equal(t, 5, cfg.Training.NumTrees)
	assert.Equal(t, 5, cfg.Training.NumLeaves)
	assert.Equal(t, 2, cfg.Training.MinDocumentsInLeafs)
	require.NoError(t, cfg.Validate())
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sentiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  train_path: /tmp/train.tsv
training:
  num_trees: 20
  learning_rate: 0.1
  lambda_l2: 1.5
  max_bin: 64
  early_stopping_rounds: 3
featurizer:
  mode: hashing
  hash_bits: 10
report:
  extended: true
server:
  shutdown_timeout: 3s
`), 0o644))

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/train.tsv", cfg.Data.TrainPath)
	assert.NotEmpty(t, cfg.Data.TestPath)
	assert.Equal(t, 20, cfg.Training.NumTrees)
	assert.Equal(t, 5, cfg.Training.NumLeaves)
	assert.Equal(t, 0.1, cfg.Training.LearningRate)
	assert.Equal(t, 1.5, cfg.Training.LambdaL2)
	assert.Equal(t, 64, cfg.Training.MaxBin)
	assert.Equal(t, 3, cfg.Training.EarlyStoppingRounds)
	assert.Equal(t, "hashing", cfg.Featurizer.Mode)
	assert.True(t, cfg.Report.Extended)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"), "")
	assert.Error(t, err)

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("trainning:\n  num_trees: 3\n"), 0o644))
	_, err = Load(unknown, "")
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("training:\n  num_leaves: 1\n"), 0o644))
	_, err = Load(invalid, "")
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve), "got %v", err)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SENTIMENT_NUM_LEAVES=7\n"), 0o644))
	t.Setenv("SENTIMENT_NUM_LEAVES", "")
	require.NoError(t, os.Unsetenv("SENTIMENT_NUM_LEAVES"))

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Training.NumLeaves)

	// 存在しない .env は無視される
	require.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env")))
}

func TestApplyEnv(t *testing.T) {
	cfg := Default("/work")
	err := cfg.ApplyEnv(mapLookup(map[string]string{
		"SENTIMENT_DATA_PATH":        "/d/train.tsv",
		"SENTIMENT_MODEL_PATH":       "/d/m.zip",
		"SENTIMENT_LOG_LEVEL":        "debug",
		"SENTIMENT_NUM_TREES":        "12",
		"SENTIMENT_MIN_DOCS_IN_LEAF": "4",
		"SENTIMENT_LEARNING_RATE":    "0.05",
		"SENTIMENT_SEED":             "42",
		"SENTIMENT_LAMBDA_L2":        "0.5",
		"SENTIMENT_MAX_BIN":          "32",
		"SENTIMENT_EARLY_STOPPING":   "2",
		"SENTIMENT_BASELINE_VADER":   "true",
		"SENTIMENT_SHUTDOWN_TIMEOUT": "1m",
		"SENTIMENT_TEST_PATH":        "   ",
		"OTHER_NUM_TREES":            "99",
	}))
	require.NoError(t, err)

	assert.Equal(t, "/d/train.tsv", cfg.Data.TrainPath)
	assert.Equal(t, filepath.Join("/work", "Data", "test.tsv"), cfg.Data.TestPath)
	assert.Equal(t, "/d/m.zip", cfg.Data.ModelPath)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 12, cfg.Training.NumTrees)
	assert.Equal(t, 4, cfg.Training.MinDocumentsInLeafs)
	assert.Equal(t, 0.05, cfg.Training.LearningRate)
	assert.Equal(t, int64(42), cfg.Training.Seed)
	assert.Equal(t, 0.5, cfg.Training.LambdaL2)
	assert.Equal(t, 32, cfg.Training.MaxBin)
	assert.Equal(t, 2, cfg.Training.EarlyStoppingRounds)
	assert.True(t, cfg.Baseline.Vader)
	assert.Equal(t, time.Minute, cfg.Server.ShutdownTimeout)
}

func TestApplyEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "Integer", env: map[string]string{"SENTIMENT_NUM_TREES": "five"}},
		{name: "Float", env: map[string]string{"SENTIMENT_LEARNING_RATE": "fast"}},
		{name: "Lambda", env: map[string]string{"SENTIMENT_LAMBDA_L2": "strong"}},
		{name: "Seed", env: map[string]string{"SENTIMENT_SEED": "1.5"}},
		{name: "Bool", env: map[string]string{"SENTIMENT_REPORT_EXTENDED": "maybe"}},
		{name: "Duration", env: map[string]string{"SENTIMENT_SHUTDOWN_TIMEOUT": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("/work")
			err := cfg.ApplyEnv(mapLookup(tt.env))
			var ve *errors.ValidationError
			assert.True(t, errors.As(err, &ve), "got %v", err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "Empty train path", mutate: func(c *Config) { c.Data.TrainPath = "" }},
		{name: "Empty model path", mutate: func(c *Config) { c.Data.ModelPath = "" }},
		{name: "Zero trees", mutate: func(c *Config) { c.Training.NumTrees = 0 }},
		{name: "One leaf", mutate: func(c *Config) { c.Training.NumLeaves = 1 }},
		{name: "Zero min docs", mutate: func(c *Config) { c.Training.MinDocumentsInLeafs = 0 }},
		{name: "Negative learning rate", mutate: func(c *Config) { c.Training.LearningRate = -1 }},
		{name: "Negative lambda", mutate: func(c *Config) { c.Training.LambdaL2 = -0.1 }},
		{name: "One bin", mutate: func(c *Config) { c.Training.MaxBin = 1 }},
		{name: "Negative early stopping", mutate: func(c *Config) { c.Training.EarlyStoppingRounds = -1 }},
		{name: "Bad log level", mutate: func(c *Config) { c.Log.Level = "loud" }},
		{name: "Bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }},
		{name: "Bad featurizer mode", mutate: func(c *Config) { c.Featurizer.Mode = "bag" }},
		{name: "Hash bits out of range", mutate: func(c *Config) {
			c.Featurizer.Mode = "hashing"
			c.Featurizer.HashBits = 40
		}},
		{name: "Hash bits above dense limit", mutate: func(c *Config) {
			c.Featurizer.Mode = "hashing"
			c.Featurizer.HashBits = preprocessing.MaxHashBits + 1
		}},
		{name: "No n-grams", mutate: func(c *Config) {
			c.Featurizer.WordNgramLength = 0
			c.Featurizer.CharNgramLength = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("/work")
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestOptions(t *testing.T) {
	cfg := Default("/work")
	cfg.Training.NumTrees = 9
	cfg.Training.Seed = 3
	cfg.Training.LambdaL2 = 2
	cfg.Training.MaxBin = 16
	cfg.Training.EarlyStoppingRounds = 4
	cfg.Featurizer.Mode = "Hashing"
	cfg.Featurizer.HashBits = 8

	clf := fasttree.NewFastTreeBinaryClassifier(cfg.FastTreeOptions()...)
	assert.Equal(t, 9, clf.Params.NumTrees)
	assert.Equal(t, 5, clf.Params.NumLeaves)
	assert.Equal(t, 2, clf.Params.MinDocumentsInLeafs)
	assert.Equal(t, int64(3), clf.Params.Seed)
	assert.Equal(t, 2.0, clf.Params.Lambda)
	assert.Equal(t, 16, clf.Params.MaxBin)
	assert.Equal(t, 4, clf.Params.EarlyStoppingRounds)

	f := preprocessing.NewTextFeaturizer(cfg.FeaturizerOptions()...)
	assert.Equal(t, preprocessing.HashingMode, f.Options.Mode)
	assert.Equal(t, 8, f.Options.HashBits)
}
