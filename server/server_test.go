package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/sentiment/dataset"
	"github.com/YuminosukeSato/sentiment/pkg/errors"
)

// keywordModel は "good" を含むテキストを陽性とする
type keywordModel struct {
	fail  bool
	crash bool
}

func (m keywordModel) Predict(_ context.Context, rows []dataset.SentimentData) ([]dataset.SentimentPrediction, error) {
	if m.fail {
		return nil, errors.New("boom")
	}
	if m.crash {
		panic("index out of range")
	}
	out := make([]dataset.SentimentPrediction, len(rows))
	for i, r := range rows {
		p := 0.2
		if strings.Contains(r.Text, "good") {
			p = 0.9
		}
		out[i] = dataset.SentimentPrediction{Text: r.Text, Sentiment: p > 0.5, Score: p - 0.5, Probability: p}
	}
	return out, nil
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := New(keywordModel{}, WithRunID("run-1"))
	rec := doRequest(t, s.Handler(), http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "run-1", body["run_id"])
}

func TestPredict(t *testing.T) {
	s := New(keywordModel{})
	rec := doRequest(t, s.Handler(), http.MethodPost, "/v1/predict", `{"texts": ["a good edit", "vandalism"]}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp PredictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Predictions, 2)

	assert.Equal(t, "a good edit", resp.Predictions[0].Text)
	assert.Equal(t, "Positive", resp.Predictions[0].Label)
	assert.True(t, resp.Predictions[0].Sentiment)
	assert.Equal(t, 0.9, resp.Predictions[0].Probability)
	assert.Equal(t, "Negative", resp.Predictions[1].Label)
}

func TestPredict_BadRequests(t *testing.T) {
	s := New(keywordModel{})
	tests := []struct {
		name string
		body string
	}{
		{name: "Invalid JSON", body: `{"texts": [`},
		{name: "Missing texts", body: `{}`},
		{name: "Empty texts", body: `{"texts": []}`},
		{name: "Wrong type", body: `{"texts": "hello"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s.Handler(), http.MethodPost, "/v1/predict", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestPredict_ModelError(t *testing.T) {
	tests := []struct {
		name  string
		model keywordModel
	}{
		{name: "Error", model: keywordModel{fail: true}},
		{name: "Panic", model: keywordModel{crash: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.model)
			rec := doRequest(t, s.Handler(), http.MethodPost, "/v1/predict", `{"texts": ["x"]}`)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.JSONEq(t, `{"error": "prediction failed"}`, rec.Body.String())
		})
	}
}

func TestServe_GracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(keywordModel{}, WithShutdownTimeout(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
