// Command sentiment trains a binary sentiment classifier, saves and reloads
// it, evaluates it on a held-out set and prints predictions for two sample
// sentences. "sentiment serve" exposes a saved model over HTTP.
//
// Usage:
//
//	sentiment [train] [-config sentiment.yaml] [-env .env]
//	sentiment serve [-config sentiment.yaml] [-env .env] [-addr :8080]
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/YuminosukeSato/sentiment/pkg/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		slog.Error("sentiment failed", log.ErrAttr(err))
		os.Exit(1)
	}
}
