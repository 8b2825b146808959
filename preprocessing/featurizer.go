package preprocessing

import (
	"cmp"
	"encoding/json"
	"hash/fnv"
	"slices"
	"strconv"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/sentiment/core/model"
	"github.com/YuminosukeSato/sentiment/core/parallel"
	"github.com/YuminosukeSato/sentiment/pkg/errors"
	"github.com/YuminosukeSato/sentiment/pkg/log"
)

// VocabularyMode は特徴量インデックスの決め方
type VocabularyMode string

const (
	// DictionaryMode はFitで語彙を学習する
	DictionaryMode VocabularyMode = "dictionary"
	// HashingMode はFNV-1aハッシュでバケットに割り当てる
	HashingMode VocabularyMode = "hashing"
)

// NormKind は行ベクトルの正規化方法
type NormKind string

const (
	NormL2   NormKind = "l2"
	NormNone NormKind = "none"
)

// transformParallelThreshold 以下の行数では逐次処理する
const transformParallelThreshold = 64

// MaxHashBits is the largest accepted HashBits.
const MaxHashBits = 18

// TextFeaturizerOptions holds the featurizer hyperparameters.
type TextFeaturizerOptions struct {
	StripMarkup      bool           `json:"strip_markup" yaml:"strip_markup"`
	RemoveDiacritics bool           `json:"remove_diacritics" yaml:"remove_diacritics"`
	Lowercase        bool           `json:"lowercase" yaml:"lowercase"`
	WordNgramLength  int            `json:"word_ngram_length" yaml:"word_ngram_length"`
	CharNgramLength  int            `json:"char_ngram_length" yaml:"char_ngram_length"`
	Mode             VocabularyMode `json:"mode" yaml:"mode"`
	MinTermFrequency int            `json:"min_term_frequency" yaml:"min_term_frequency"`
	MaxTerms         int            `json:"max_terms" yaml:"max_terms"`
	HashBits         int            `json:"hash_bits" yaml:"hash_bits"`
	Norm             NormKind       `json:"norm" yaml:"norm"`
}

// DefaultTextFeaturizerOptions returns unigram words plus character
// trigrams in dictionary mode with L2 normalization.
func DefaultTextFeaturizerOptions() TextFeaturizerOptions {
	return TextFeaturizerOptions{
		StripMarkup:      true,
		RemoveDiacritics: true,
		Lowercase:        true,
		WordNgramLength:  1,
		CharNgramLength:  3,
		Mode:             DictionaryMode,
		MinTermFrequency: 1,
		MaxTerms:         0,
		HashBits:         12,
		Norm:             NormL2,
	}
}

// Validate checks option ranges.
func (o TextFeaturizerOptions) Validate() error {
	switch {
	case o.WordNgramLength < 0:
		return errors.NewValidationError("word_ngram_length", "must be >= 0", o.WordNgramLength)
	case o.CharNgramLength < 0:
		return errors.NewValidationError("char_ngram_length", "must be >= 0", o.CharNgramLength)
	case o.WordNgramLength == 0 && o.CharNgramLength == 0:
		return errors.NewValidationError("word_ngram_length", "word and char n-grams cannot both be disabled", 0)
	case o.Mode != DictionaryMode && o.Mode != HashingMode:
		return errors.NewValidationError("mode", "must be dictionary or hashing", o.Mode)
	case o.MinTermFrequency < 1:
		return errors.NewValidationError("min_term_frequency", "must be >= 1", o.MinTermFrequency)
	case o.MaxTerms < 0:
		return errors.NewValidationError("max_terms", "must be >= 0", o.MaxTerms)
	case o.Mode == HashingMode && (o.HashBits < 1 || o.HashBits > MaxHashBits):
		return errors.NewValidationError("hash_bits", "must be in [1, "+strconv.Itoa(MaxHashBits)+"]", o.HashBits)
	case o.Norm != NormL2 && o.Norm != NormNone:
		return errors.NewValidationError("norm", "must be l2 or none", o.Norm)
	}
	return nil
}

// TextFeaturizerOption is a functional option for NewTextFeaturizer.
type TextFeaturizerOption func(*TextFeaturizerOptions)

// WithWordNgrams sets the maximum word n-gram length. 0 disables word grams.
func WithWordNgrams(n int) TextFeaturizerOption {
	return func(o *TextFeaturizerOptions) { o.WordNgramLength = n }
}

// WithCharNgrams sets the character n-gram length. 0 disables char grams.
func WithCharNgrams(n int) TextFeaturizerOption {
	return func(o *TextFeaturizerOptions) { o.CharNgramLength = n }
}

// WithHashing switches to hashing mode with 2^bits buckets. Only buckets
// seen during Fit become columns.
func WithHashing(bits int) TextFeaturizerOption {
	return func(o *TextFeaturizerOptions) {
		o.Mode = HashingMode
		o.HashBits = bits
	}
}

// WithMinTermFrequency drops dictionary terms seen fewer than n times.
func WithMinTermFrequency(n int) TextFeaturizerOption {
	return func(o *TextFeaturizerOptions) { o.MinTermFrequency = n }
}

// WithMaxTerms keeps at most n dictionary terms, most frequent first.
func WithMaxTerms(n int) TextFeaturizerOption {
	return func(o *TextFeaturizerOptions) { o.MaxTerms = n }
}

// WithNorm sets the row normalization.
func WithNorm(n NormKind) TextFeaturizerOption {
	return func(o *TextFeaturizerOptions) { o.Norm = n }
}

// WithMarkupStripping toggles blackfriday based markup removal.
func WithMarkupStripping(enabled bool) TextFeaturizerOption {
	return func(o *TextFeaturizerOptions) { o.StripMarkup = enabled }
}

// WithOptions replaces all options at once.
func WithOptions(opts TextFeaturizerOptions) TextFeaturizerOption {
	return func(o *TextFeaturizerOptions) { *o = opts }
}

// TextFeaturizer はテキスト列を固定長の数値ベクトルに変換する
//
// 正規化 → トークン化 → 単語n-gram・文字n-gram抽出 → 語彙（またはハッシュ）で
// インデックス化 → 出現回数 → L2正規化 の順に処理する。
type TextFeaturizer struct {
	state   *model.StateManager
	Options TextFeaturizerOptions

	// Terms は辞書モードの語彙（インデックス順）
	Terms []string
	index map[string]int

	// Buckets はハッシュモードでFit時に出現したバケット番号（昇順）
	Buckets     []int
	bucketIndex map[int]int
}

// NewTextFeaturizer は新しいTextFeaturizerを作成する
//
// 使用例:
//
//	f := preprocessing.NewTextFeaturizer(preprocessing.WithWordNgrams(2))
//	X, err := f.FitTransform(texts)
func NewTextFeaturizer(opts ...TextFeaturizerOption) *TextFeaturizer {
	o := DefaultTextFeaturizerOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &TextFeaturizer{
		state:   model.NewStateManager(),
		Options: o,
	}
}

// IsFitted reports whether Fit has completed.
func (f *TextFeaturizer) IsFitted() bool {
	return f.state.IsFitted()
}

// Extract returns the raw feature keys of one text, in order of appearance.
func (f *TextFeaturizer) Extract(text string) []string {
	tokens := Tokenize(f.Options.Normalize(text))
	grams := wordNgrams(tokens, f.Options.WordNgramLength)
	return append(grams, charNgrams(tokens, f.Options.CharNgramLength)...)
}

// Fit は語彙を学習する
func (f *TextFeaturizer) Fit(texts []string) (err error) {
	defer errors.Recover(&err, "TextFeaturizer.Fit")
	start := time.Now()

	if err := f.Options.Validate(); err != nil {
		return err
	}
	if len(texts) == 0 {
		return errors.NewModelError("TextFeaturizer.Fit", "empty data", errors.ErrEmptyData)
	}

	f.state.Reset()
	f.Terms, f.index = nil, nil
	f.Buckets, f.bucketIndex = nil, nil

	if f.Options.Mode == DictionaryMode {
		counts := make(map[string]int)
		for _, text := range texts {
			for _, key := range f.Extract(text) {
				counts[key]++
			}
		}
		f.Terms = selectKeys(counts, f.Options.MinTermFrequency, f.Options.MaxTerms)
		f.buildIndex()
	} else {
		counts := make(map[int]int)
		for _, text := range texts {
			for _, key := range f.Extract(text) {
				counts[f.bucket(key)]++
			}
		}
		f.Buckets = selectKeys(counts, f.Options.MinTermFrequency, f.Options.MaxTerms)
		f.buildIndex()
	}
	if f.NumFeatures() == 0 {
		return errors.NewModelError("TextFeaturizer.Fit", "empty vocabulary", errors.ErrEmptyData)
	}

	f.state.SetDimensions(f.NumFeatures(), len(texts))
	f.state.SetFitted()

	log.GetLoggerWithName("featurizer").Info("Featurizer fitted",
		log.ModelNameKey, "TextFeaturizer",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, len(texts),
		log.FeaturesKey, f.NumFeatures(),
		log.VocabularyKey, f.NumFeatures(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// selectKeys applies the frequency filter and the MaxTerms cap, then
// returns the surviving keys in ascending order. Ties on the cap keep the
// smaller key.
func selectKeys[K cmp.Ordered](counts map[K]int, minFreq, maxTerms int) []K {
	keys := make([]K, 0, len(counts))
	for k, c := range counts {
		if c >= minFreq {
			keys = append(keys, k)
		}
	}
	if maxTerms > 0 && len(keys) > maxTerms {
		slices.SortFunc(keys, func(a, b K) int {
			if c := cmp.Compare(counts[b], counts[a]); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})
		keys = keys[:maxTerms]
	}
	slices.Sort(keys)
	return keys
}

func (f *TextFeaturizer) buildIndex() {
	if f.Options.Mode == HashingMode {
		f.bucketIndex = make(map[int]int, len(f.Buckets))
		for i, b := range f.Buckets {
			f.bucketIndex[b] = i
		}
		return
	}
	f.index = make(map[string]int, len(f.Terms))
	for i, t := range f.Terms {
		f.index[t] = i
	}
}

// NumFeatures returns the output vector width. It is 0 before Fit.
func (f *TextFeaturizer) NumFeatures() int {
	if f.Options.Mode == HashingMode {
		return len(f.Buckets)
	}
	return len(f.Terms)
}

// FeatureNames returns the name of each output column. Hashing mode columns
// are named by bucket.
func (f *TextFeaturizer) FeatureNames() []string {
	if f.Options.Mode == DictionaryMode {
		return slices.Clone(f.Terms)
	}
	out := make([]string, len(f.Buckets))
	for i, b := range f.Buckets {
		out[i] = "hash:" + strconv.Itoa(b)
	}
	return out
}

// bucket は FNV-1a で key を 2^HashBits 個のバケットに割り当てる
func (f *TextFeaturizer) bucket(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() & (uint32(1)<<uint(f.Options.HashBits) - 1))
}

func (f *TextFeaturizer) column(key string) (int, bool) {
	if f.Options.Mode == HashingMode {
		i, ok := f.bucketIndex[f.bucket(key)]
		return i, ok
	}
	i, ok := f.index[key]
	return i, ok
}

// Transform はテキストを特徴量行列（n_samples × NumFeatures）に変換する
//
// 未知の語彙は無視される。空のテキストは全て0の行になる。
func (f *TextFeaturizer) Transform(texts []string) (*mat.Dense, error) {
	if err := f.state.RequireFitted("TextFeaturizer", "Transform"); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, errors.NewModelError("TextFeaturizer.Transform", "empty data", errors.ErrEmptyData)
	}

	cols := f.NumFeatures()
	data := make([]float64, len(texts)*cols)

	parallel.ParallelizeWithThreshold(len(texts), transformParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			row := data[i*cols : (i+1)*cols]
			for _, key := range f.Extract(texts[i]) {
				if j, ok := f.column(key); ok {
					row[j]++
				}
			}
			if f.Options.Norm == NormL2 {
				if n := floats.Norm(row, 2); n > 0 {
					floats.Scale(1/n, row)
				}
			}
		}
	})

	return mat.NewDense(len(texts), cols, data), nil
}

// FitTransform はFitとTransformを続けて実行する
func (f *TextFeaturizer) FitTransform(texts []string) (*mat.Dense, error) {
	if err := f.Fit(texts); err != nil {
		return nil, err
	}
	return f.Transform(texts)
}

type featurizerState struct {
	Options TextFeaturizerOptions `json:"options"`
	Terms   []string              `json:"terms,omitempty"`
	Buckets []int                 `json:"buckets,omitempty"`
	State   model.ModelState      `json:"state"`
}

// MarshalJSON encodes the options and the learned vocabulary.
func (f *TextFeaturizer) MarshalJSON() ([]byte, error) {
	return json.Marshal(featurizerState{
		Options: f.Options,
		Terms:   f.Terms,
		Buckets: f.Buckets,
		State:   f.state.GetState(),
	})
}

// UnmarshalJSON restores a featurizer written by MarshalJSON.
func (f *TextFeaturizer) UnmarshalJSON(data []byte) error {
	var s featurizerState
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "failed to decode featurizer")
	}
	if err := s.Options.Validate(); err != nil {
		return err
	}
	width := len(s.Terms)
	if s.Options.Mode == HashingMode {
		width = len(s.Buckets)
	}
	if s.State.Fitted && width != s.State.NFeatures {
		return errors.NewDimensionError("TextFeaturizer.UnmarshalJSON", s.State.NFeatures, width, 1)
	}
	if f.state == nil {
		f.state = model.NewStateManager()
	}
	f.Options = s.Options
	f.Terms = s.Terms
	f.Buckets = s.Buckets
	f.index, f.bucketIndex = nil, nil
	f.buildIndex()
	f.state.SetState(s.State)
	return nil
}

var _ model.TextTransformer = (*TextFeaturizer)(nil)
