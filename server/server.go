// Package server exposes a trained model over HTTP.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/sentiment/dataset"
	"github.com/YuminosukeSato/sentiment/pipeline"
	"github.com/YuminosukeSato/sentiment/pkg/errors"
	"github.com/YuminosukeSato/sentiment/pkg/log"
)

// PredictRequest is the body of POST /v1/predict. At most 1000 texts are
// accepted per request.
type PredictRequest struct {
	Texts []string `json:"texts" binding:"required,min=1,max=1000"`
}

// Prediction is one scored text.
type Prediction struct {
	Text        string  `json:"text"`
	Label       string  `json:"label"`
	Sentiment   bool    `json:"sentiment"`
	Score       float64 `json:"score"`
	Probability float64 `json:"probability"`
}

// PredictResponse is the body returned by POST /v1/predict.
type PredictResponse struct {
	Predictions []Prediction `json:"predictions"`
}

// Server はモデルをHTTPで公開する
type Server struct {
	model           pipeline.Predictor
	runID           string
	engine          *gin.Engine
	shutdownTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithRunID reports the archive run ID on /healthz.
func WithRunID(id string) Option {
	return func(s *Server) { s.runID = id }
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) { s.shutdownTimeout = d }
}

// New builds the router around model.
func New(model pipeline.Predictor, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		model:           model,
		engine:          gin.New(),
		shutdownTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine.Use(gin.Recovery(), requestLogger())
	s.engine.GET("/healthz", s.health)
	v1 := s.engine.Group("/v1")
	v1.POST("/predict", s.predict)
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", addr)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	logger := log.GetLoggerWithName("server")
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "server failed")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	logger.Info("Shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "graceful shutdown failed")
	}
	return <-errCh
}

func (s *Server) health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if s.runID != "" {
		body["run_id"] = s.runID
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) predict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	var preds []dataset.SentimentPrediction
	err := errors.SafeExecute("server.predict", func() (err error) {
		preds, err = s.model.Predict(c.Request.Context(), dataset.Unlabeled(req.Texts...))
		return err
	})
	if err != nil {
		log.GetLoggerWithName("server").Error("Prediction failed", err)
		respondError(c, "prediction failed", http.StatusInternalServerError)
		return
	}

	out := PredictResponse{Predictions: make([]Prediction, len(preds))}
	for i, p := range preds {
		out.Predictions[i] = Prediction{
			Text:        p.Text,
			Label:       p.Label(),
			Sentiment:   p.Sentiment,
			Score:       p.Score,
			Probability: p.Probability,
		}
	}
	c.JSON(http.StatusOK, out)
}

func respondError(c *gin.Context, msg string, code int) {
	c.JSON(code, gin.H{"error": msg})
}

// requestLogger logs method, path, status and latency.
func requestLogger() gin.HandlerFunc {
	logger := log.GetLoggerWithName("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("Request handled",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
}
