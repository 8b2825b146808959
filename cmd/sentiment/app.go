package main

import (
	"context"
	"flag"
	"io"
	"strings"

	"github.com/YuminosukeSato/sentiment/baseline"
	"github.com/YuminosukeSato/sentiment/config"
	"github.com/YuminosukeSato/sentiment/dataset"
	"github.com/YuminosukeSato/sentiment/metrics"
	"github.com/YuminosukeSato/sentiment/pipeline"
	"github.com/YuminosukeSato/sentiment/pkg/errors"
	"github.com/YuminosukeSato/sentiment/pkg/log"
	"github.com/YuminosukeSato/sentiment/report"
	"github.com/YuminosukeSato/sentiment/server"
)

// sampleSentences are scored after evaluation.
var sampleSentences = []string{
	"Please refrain from adding nonsense to Wikipedia.",
	"He is the best, and the article should say that.",
}

const (
	cmdTrain = "train"
	cmdServe = "serve"
)

// run はサブコマンドを解釈して実行する
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := cmdTrain
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}
	if cmd != cmdTrain && cmd != cmdServe {
		return errors.NewValidationError("command", "must be train or serve", cmd)
	}

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML configuration file")
	envFile := fs.String("env", ".env", "dotenv file loaded before SENTIMENT_* overrides")
	addr := fs.String("addr", "", "listen address for serve (overrides server.addr)")
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "invalid arguments")
	}

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if err := setupLogging(cfg, stderr); err != nil {
		return err
	}

	if cmd == cmdServe {
		return serve(ctx, cfg)
	}
	return train(ctx, cfg, stdout)
}

func setupLogging(cfg config.Config, w io.Writer) error {
	if err := log.SetupLogger(w, cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	log.Configure(w, log.ParseLevel(strings.ToLower(cfg.Log.Level)), strings.EqualFold(cfg.Log.Format, log.FormatText))
	return nil
}

// train は学習 → 保存 → 再読み込み → 評価 → 予測 の順に実行する
func train(ctx context.Context, cfg config.Config, stdout io.Writer) error {
	p := pipeline.New().
		Add(pipeline.NewTextLoader(cfg.Data.TrainPath)).
		Add(pipeline.NewTextFeaturizer(pipeline.ColumnFeatures, pipeline.ColumnText, cfg.FeaturizerOptions()...)).
		Add(pipeline.NewFastTreeBinaryClassifier(cfg.FastTreeOptions()...))

	trained, err := p.Train(ctx)
	if err != nil {
		return err
	}
	if err := <-trained.WriteAsync(ctx, cfg.Data.ModelPath); err != nil {
		return err
	}

	m, err := pipeline.ReadModel(ctx, cfg.Data.ModelPath)
	if err != nil {
		return err
	}

	evaluator := pipeline.NewBinaryClassificationEvaluator()
	testLoader := pipeline.NewTextLoader(cfg.Data.TestPath)
	result, err := evaluator.Evaluate(ctx, m, testLoader)
	if err != nil {
		return err
	}
	if err := report.WriteMetrics(stdout, result); err != nil {
		return err
	}
	if cfg.Report.Extended {
		if err := report.WriteExtendedMetrics(stdout, result); err != nil {
			return err
		}
	}

	var vader *baseline.VaderBaseline
	if cfg.Baseline.Vader {
		vader = baseline.NewVaderBaseline()
		var vaderResult metrics.BinaryClassificationMetrics
		vaderResult, err = evaluator.Evaluate(ctx, vader, testLoader)
		if err != nil {
			return err
		}
		if err := report.WriteBaseline(stdout, "vader", vaderResult); err != nil {
			return err
		}
	}

	if cfg.Report.ROCPlot != "" {
		if err := plotROC(ctx, cfg.Report.ROCPlot, testLoader, m, vader); err != nil {
			return err
		}
	}

	preds, err := m.Predict(ctx, dataset.Unlabeled(sampleSentences...))
	if err != nil {
		return err
	}
	return report.WritePredictions(stdout, preds)
}

func plotROC(ctx context.Context, path string, loader *pipeline.TextLoader, m *pipeline.PredictionModel, vader *baseline.VaderBaseline) error {
	rows, _, err := loader.Load(ctx)
	if err != nil {
		return err
	}
	labels := dataset.Labels(rows)

	named := []struct {
		name string
		p    pipeline.Predictor
	}{{name: "FastTree", p: m}}
	if vader != nil {
		named = append(named, struct {
			name string
			p    pipeline.Predictor
		}{name: "VADER", p: vader})
	}

	curves := make([]report.Curve, 0, len(named))
	for _, n := range named {
		preds, err := n.p.Predict(ctx, rows)
		if err != nil {
			return err
		}
		scores := make([]float64, len(preds))
		for i, p := range preds {
			scores[i] = p.Score
		}
		c, err := report.NewCurve(n.name, labels, scores)
		if err != nil {
			return err
		}
		curves = append(curves, c)
	}

	if err := report.PlotROC(path, curves...); err != nil {
		return err
	}
	log.GetLoggerWithName("report").Info("ROC curve written", log.PathKey, path)
	return nil
}

func serve(ctx context.Context, cfg config.Config) error {
	m, err := pipeline.ReadModel(ctx, cfg.Data.ModelPath)
	if err != nil {
		return err
	}
	s := server.New(m,
		server.WithRunID(m.Manifest().RunID),
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	)
	return s.Run(ctx, cfg.Server.Addr)
}
