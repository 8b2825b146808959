// Package config loads program settings from defaults, an optional YAML file,
// an optional .env file and SENTIMENT_* environment variables, in that order.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v2"

	"github.com/YuminosukeSato/sentiment/pkg/errors"
	"github.com/YuminosukeSato/sentiment/pkg/log"
	"github.com/YuminosukeSato/sentiment/preprocessing"
	"github.com/YuminosukeSato/sentiment/sklearn/fasttree"
)

// EnvPrefix は環境変数の接頭辞
const EnvPrefix = "SENTIMENT_"

// DataConfig はデータファイルとモデルアーカイブの場所
type DataConfig struct {
	TrainPath string `yaml:"train_path"`
	TestPath  string `yaml:"test_path"`
	ModelPath string `yaml:"model_path"`
}

// TrainingConfig はFastTreeのハイパーパラメータ
type TrainingConfig struct {
	NumTrees            int     `yaml:"num_trees"`
	NumLeaves           int     `yaml:"num_leaves"`
	MinDocumentsInLeafs int     `yaml:"min_documents_in_leafs"`
	LearningRate        float64 `yaml:"learning_rate"`
	LambdaL2            float64 `yaml:"lambda_l2"`
	MaxBin              int     `yaml:"max_bin"`
	EarlyStoppingRounds int     `yaml:"early_stopping_rounds"`
	Seed                int64   `yaml:"seed"`
}

// FeaturizerConfig はテキスト特徴量化の設定
type FeaturizerConfig struct {
	WordNgramLength int    `yaml:"word_ngram_length"`
	CharNgramLength int    `yaml:"char_ngram_length"`
	Mode            string `yaml:"mode"`
	HashBits        int    `yaml:"hash_bits"`
	MinTermFreq     int    `yaml:"min_term_frequency"`
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ReportConfig はコンソール出力の追加項目
type ReportConfig struct {
	Extended bool   `yaml:"extended"`
	ROCPlot  string `yaml:"roc_plot"`
}

// BaselineConfig は辞書ベースラインの設定
type BaselineConfig struct {
	Vader bool `yaml:"vader"`
}

// ServerConfig は serve サブコマンドの設定
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Config is the full program configuration.
type Config struct {
	Data       DataConfig       `yaml:"data"`
	Training   TrainingConfig   `yaml:"training"`
	Featurizer FeaturizerConfig `yaml:"featurizer"`
	Log        LogConfig        `yaml:"log"`
	Report     ReportConfig     `yaml:"report"`
	Baseline   BaselineConfig   `yaml:"baseline"`
	Server     ServerConfig     `yaml:"server"`
}

// Default returns the stock training settings with data files
// under baseDir/Data.
func Default(baseDir string) Config {
	dataDir := filepath.Join(baseDir, "Data")
	return Config{
		Data: DataConfig{
			TrainPath: filepath.Join(dataDir, "data.tsv"),
			TestPath:  filepath.Join(dataDir, "test.tsv"),
			ModelPath: filepath.Join(dataDir, "Model.zip"),
		},
		Training: TrainingConfig{
			NumTrees:            5,
			NumLeaves:           5,
			MinDocumentsInLeafs: 2,
			LearningRate:        0.2,
			MaxBin:              255,
		},
		Featurizer: FeaturizerConfig{
			WordNgramLength: 1,
			CharNgramLength: 3,
			Mode:            string(preprocessing.DictionaryMode),
			HashBits:        12,
			MinTermFreq:     1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: log.FormatText,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Load builds the configuration.
//
// 優先順位: デフォルト < YAMLファイル < .env < 環境変数。
// path と envFile は空文字なら読まない。存在しない .env は無視する。
func Load(path, envFile string) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to resolve working directory")
	}
	cfg := Default(cwd)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "failed to read config %s", path)
		}
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "failed to parse config %s", path)
		}
	}

	if err := LoadEnvFile(envFile); err != nil {
		return Config{}, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs into the process environment without
// overriding variables that are already set.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "failed to load env file %s", path)
	}
	return nil
}

// ApplyEnv overrides fields from SENTIMENT_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	strs := map[string]*string{
		"DATA_PATH":       &c.Data.TrainPath,
		"TEST_PATH":       &c.Data.TestPath,
		"MODEL_PATH":      &c.Data.ModelPath,
		"LOG_LEVEL":       &c.Log.Level,
		"LOG_FORMAT":      &c.Log.Format,
		"FEATURIZER_MODE": &c.Featurizer.Mode,
		"ROC_PLOT":        &c.Report.ROCPlot,
		"SERVER_ADDR":     &c.Server.Addr,
	}
	for key, dst := range strs {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"NUM_TREES":         &c.Training.NumTrees,
		"NUM_LEAVES":        &c.Training.NumLeaves,
		"MIN_DOCS_IN_LEAF":  &c.Training.MinDocumentsInLeafs,
		"MAX_BIN":           &c.Training.MaxBin,
		"EARLY_STOPPING":    &c.Training.EarlyStoppingRounds,
		"WORD_NGRAM_LENGTH": &c.Featurizer.WordNgramLength,
		"CHAR_NGRAM_LENGTH": &c.Featurizer.CharNgramLength,
		"HASH_BITS":         &c.Featurizer.HashBits,
	}
	for key, dst := range ints {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return errors.NewValidationError(EnvPrefix+key, "must be an integer", v)
			}
			*dst = n
		}
	}

	floats := map[string]*float64{
		"LEARNING_RATE": &c.Training.LearningRate,
		"LAMBDA_L2":     &c.Training.LambdaL2,
	}
	for key, dst := range floats {
		if v, ok := get(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return errors.NewValidationError(EnvPrefix+key, "must be a number", v)
			}
			*dst = f
		}
	}
	if v, ok := get("SEED"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.NewValidationError(EnvPrefix+"SEED", "must be an integer", v)
		}
		c.Training.Seed = n
	}

	bools := map[string]*bool{
		"REPORT_EXTENDED": &c.Report.Extended,
		"BASELINE_VADER":  &c.Baseline.Vader,
	}
	for key, dst := range bools {
		if v, ok := get(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return errors.NewValidationError(EnvPrefix+key, "must be a boolean", v)
			}
			*dst = b
		}
	}

	if v, ok := get("SHUTDOWN_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.NewValidationError(EnvPrefix+"SHUTDOWN_TIMEOUT", "must be a duration", v)
		}
		c.Server.ShutdownTimeout = d
	}
	return nil
}

// Validate rejects settings the trainer or featurizer cannot use.
func (c Config) Validate() error {
	switch {
	case c.Data.TrainPath == "":
		return errors.NewValidationError("data.train_path", "must not be empty", c.Data.TrainPath)
	case c.Data.TestPath == "":
		return errors.NewValidationError("data.test_path", "must not be empty", c.Data.TestPath)
	case c.Data.ModelPath == "":
		return errors.NewValidationError("data.model_path", "must not be empty", c.Data.ModelPath)
	case c.Training.NumTrees <= 0:
		return errors.NewValidationError("training.num_trees", "must be positive", c.Training.NumTrees)
	case c.Training.NumLeaves < 2:
		return errors.NewValidationError("training.num_leaves", "must be at least 2", c.Training.NumLeaves)
	case c.Training.MinDocumentsInLeafs <= 0:
		return errors.NewValidationError("training.min_documents_in_leafs", "must be positive", c.Training.MinDocumentsInLeafs)
	case c.Training.LearningRate <= 0:
		return errors.NewValidationError("training.learning_rate", "must be positive", c.Training.LearningRate)
	case c.Training.LambdaL2 < 0:
		return errors.NewValidationError("training.lambda_l2", "must not be negative", c.Training.LambdaL2)
	case c.Training.MaxBin < 2:
		return errors.NewValidationError("training.max_bin", "must be at least 2", c.Training.MaxBin)
	case c.Training.EarlyStoppingRounds < 0:
		return errors.NewValidationError("training.early_stopping_rounds", "must not be negative", c.Training.EarlyStoppingRounds)
	case c.Server.ShutdownTimeout < 0:
		return errors.NewValidationError("server.shutdown_timeout", "must not be negative", c.Server.ShutdownTimeout)
	}
	if _, err := log.ToLogLevel(c.Log.Level); err != nil {
		return errors.NewValidationError("log.level", "must be debug, info, warn or error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case log.FormatJSON, log.FormatText:
	default:
		return errors.NewValidationError("log.format", "must be json or text", c.Log.Format)
	}
	return preprocessing.NewTextFeaturizer(c.FeaturizerOptions()...).Options.Validate()
}

// FastTreeOptions returns the classifier options for the training settings.
func (c Config) FastTreeOptions() []fasttree.Option {
	return []fasttree.Option{
		fasttree.WithNumTrees(c.Training.NumTrees),
		fasttree.WithNumLeaves(c.Training.NumLeaves),
		fasttree.WithMinDocumentsInLeafs(c.Training.MinDocumentsInLeafs),
		fasttree.WithLearningRate(c.Training.LearningRate),
		fasttree.WithLambda(c.Training.LambdaL2),
		fasttree.WithMaxBin(c.Training.MaxBin),
		fasttree.WithEarlyStopping(c.Training.EarlyStoppingRounds),
		fasttree.WithFeatureFraction(1.0, c.Training.Seed),
	}
}

// FeaturizerOptions returns the featurizer options for the featurizer settings.
func (c Config) FeaturizerOptions() []preprocessing.TextFeaturizerOption {
	return []preprocessing.TextFeaturizerOption{
		preprocessing.WithWordNgrams(c.Featurizer.WordNgramLength),
		preprocessing.WithCharNgrams(c.Featurizer.CharNgramLength),
		preprocessing.WithMinTermFrequency(c.Featurizer.MinTermFreq),
		func(o *preprocessing.TextFeaturizerOptions) {
			o.Mode = preprocessing.VocabularyMode(strings.ToLower(c.Featurizer.Mode))
			o.HashBits = c.Featurizer.HashBits
		},
	}
}
