package dataset

import (
	"bufio"
	"context"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/YuminosukeSato/sentiment/pkg/errors"
	"github.com/YuminosukeSato/sentiment/pkg/log"
)

// HeaderMode はヘッダー行の扱いを決める
type HeaderMode int

const (
	// HeaderAuto は先頭行のラベル列が数値でなければヘッダーとみなす
	HeaderAuto HeaderMode = iota
	// HeaderPresent は先頭行を常にヘッダーとして読み飛ばす
	HeaderPresent
	// HeaderAbsent は先頭行もデータとして扱う
	HeaderAbsent
)

// String returns the config name of the mode.
func (m HeaderMode) String() string {
	switch m {
	case HeaderPresent:
		return "present"
	case HeaderAbsent:
		return "absent"
	default:
		return "auto"
	}
}

// ParseHeaderMode converts "auto", "present" or "absent".
func ParseHeaderMode(s string) (HeaderMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return HeaderAuto, nil
	case "present", "true", "yes":
		return HeaderPresent, nil
	case "absent", "false", "no":
		return HeaderAbsent, nil
	}
	return HeaderAuto, errors.NewValidationError("header", "must be auto, present or absent", s)
}

// LoaderOptions configures LoadTSV and ReadTSV.
type LoaderOptions struct {
	Header      HeaderMode
	LabelColumn int
	TextColumn  int
	// RequireLabel drops rows whose label is missing or not numeric.
	RequireLabel bool
}

// LoaderOption is a functional option for the loader.
type LoaderOption func(*LoaderOptions)

// WithHeader sets the header handling mode.
func WithHeader(mode HeaderMode) LoaderOption {
	return func(o *LoaderOptions) { o.Header = mode }
}

// WithColumns sets the zero-based label and text columns.
func WithColumns(label, text int) LoaderOption {
	return func(o *LoaderOptions) {
		o.LabelColumn = label
		o.TextColumn = text
	}
}

// WithRequireLabel toggles dropping unlabeled rows.
func WithRequireLabel(require bool) LoaderOption {
	return func(o *LoaderOptions) { o.RequireLabel = require }
}

// DefaultLoaderOptions returns label in column 0, text in column 1,
// header auto-detection and labels required.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{
		Header:       HeaderAuto,
		LabelColumn:  0,
		TextColumn:   1,
		RequireLabel: true,
	}
}

// LoadStats summarizes one load.
type LoadStats struct {
	Path      string
	Rows      int
	Skipped   int
	Positives int
	Negatives int
	HadHeader bool
}

// LoadTSV reads a tab-separated file of (label, text) rows.
//
// 使用例:
//
//	rows, stats, err := dataset.LoadTSV(ctx, "Data/data.tsv")
func LoadTSV(ctx context.Context, path string, opts ...LoaderOption) ([]SentimentData, LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{Path: path}, errors.Wrapf(err, "failed to open dataset %s", path)
	}
	defer f.Close()

	return readTSV(ctx, f, path, opts...)
}

// ReadTSV reads tab-separated rows from r. name is used in errors and warnings.
func ReadTSV(ctx context.Context, r io.Reader, name string, opts ...LoaderOption) ([]SentimentData, LoadStats, error) {
	return readTSV(ctx, r, name, opts...)
}

func readTSV(ctx context.Context, r io.Reader, name string, opts ...LoaderOption) ([]SentimentData, LoadStats, error) {
	start := time.Now()
	o := DefaultLoaderOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.LabelColumn < 0 || o.TextColumn < 0 || o.LabelColumn == o.TextColumn {
		return nil, LoadStats{Path: name}, errors.NewValidationError("columns", "label and text columns must be distinct non-negative indices", [2]int{o.LabelColumn, o.TextColumn})
	}

	logger := log.GetLoggerWithName("dataset")
	stats := LoadStats{Path: name}
	var rows []SentimentData

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	firstRecord := true
	skipReasons := map[string]int{}
	for scanner.Scan() {
		lineNo++
		if lineNo%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, stats, errors.Wrap(err, "dataset load cancelled")
			}
		}

		line := strings.TrimRight(scanner.Text(), "\r")
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		rawLabel := field(fields, o.LabelColumn)
		text := field(fields, o.TextColumn)

		label, labelErr := parseLabel(rawLabel)

		if firstRecord {
			firstRecord = false
			isHeader := o.Header == HeaderPresent || (o.Header == HeaderAuto && labelErr != nil && rawLabel != "")
			if isHeader {
				stats.HadHeader = true
				continue
			}
		}

		if labelErr != nil {
			if o.RequireLabel {
				stats.Skipped++
				skipReasons["missing or non-numeric label"]++
				logger.Debug("Skipping row", "line", lineNo, "reason", labelErr.Error())
				continue
			}
		}

		if len(fields) <= o.TextColumn {
			stats.Skipped++
			skipReasons["missing text column"]++
			continue
		}

		rec := SentimentData{Label: label, Text: text}
		rows = append(rows, rec)
		stats.Rows++
		if rec.HasLabel() {
			if rec.Positive() {
				stats.Positives++
			} else {
				stats.Negatives++
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, errors.NewDataFormatError(name, lineNo+1, err.Error())
	}

	if stats.Skipped > 0 {
		errors.Warn(errors.NewSkippedRowsWarning(name, stats.Skipped, joinReasons(skipReasons)))
	}

	if len(rows) == 0 {
		return nil, stats, errors.Wrapf(errors.ErrEmptyData, "no usable rows in %s", name)
	}

	logger.Info("Dataset loaded",
		log.PathKey, name,
		log.SamplesKey, stats.Rows,
		log.SkippedKey, stats.Skipped,
		log.PositivesKey, stats.Positives,
		log.NegativesKey, stats.Negatives,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return rows, stats, nil
}

func field(fields []string, i int) string {
	if i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

// parseLabel accepts numbers and the booleans true/false.
func parseLabel(s string) (float64, error) {
	if s == "" {
		return math.NaN(), errors.New("empty label")
	}
	switch strings.ToLower(s) {
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN(), errors.Wrapf(err, "label %q is not numeric", s)
	}
	if math.IsNaN(v) {
		return math.NaN(), errors.Newf("label %q is NaN", s)
	}
	return v, nil
}

func joinReasons(reasons map[string]int) string {
	parts := make([]string, 0, len(reasons))
	for _, k := range []string{"missing or non-numeric label", "missing text column"} {
		if n := reasons[k]; n > 0 {
			parts = append(parts, k+" ("+strconv.Itoa(n)+")")
		}
	}
	return strings.Join(parts, ", ")
}
