// Package dataset loads labelled sentiment text from tab-separated files.
package dataset

import "math"

// SentimentData is one input record: a numeric label and the text it describes.
// Label is NaN when the row carries no label (prediction inputs).
type SentimentData struct {
	Label float64 `json:"label"`
	Text  string  `json:"text"`
}

// Positive reports whether the record belongs to the positive class.
func (d SentimentData) Positive() bool {
	return d.Label > 0
}

// HasLabel reports whether the record carries a usable label.
func (d SentimentData) HasLabel() bool {
	return !math.IsNaN(d.Label)
}

// SentimentPrediction is the output for one record.
type SentimentPrediction struct {
	Text        string  `json:"text"`
	Sentiment   bool    `json:"sentiment"`
	Score       float64 `json:"score"`
	Probability float64 `json:"probability"`
}

// Label returns "Positive" or "Negative".
func (p SentimentPrediction) Label() string {
	if p.Sentiment {
		return "Positive"
	}
	return "Negative"
}

// Texts extracts the text column.
func Texts(rows []SentimentData) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Text
	}
	return out
}

// Labels extracts the label column as 0/1 values.
func Labels(rows []SentimentData) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		if r.Positive() {
			out[i] = 1
		}
	}
	return out
}

// Unlabeled wraps plain texts as prediction inputs.
func Unlabeled(texts ...string) []SentimentData {
	out := make([]SentimentData, len(texts))
	for i, t := range texts {
		out[i] = SentimentData{Label: math.NaN(), Text: t}
	}
	return out
}
