// Command auditlog drains the auth.events queue into an append-only log
// file, one line per event.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/iliyamo/storefront-session/internal/logger"
	"github.com/iliyamo/storefront-session/internal/queue"
)

func main() {
	_ = godotenv.Load()
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	lg := logger.New(env)

	url := queue.BrokerURL()
	if url == "" {
		lg.Fatal().Msg("RABBITMQ_URL or AMQP_URL is required")
	}
	path := os.Getenv("AUDIT_LOG_PATH")
	if path == "" {
		path = filepath.Join("logs", "auth.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		lg.Fatal().Err(err).Msg("create log directory")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		lg.Fatal().Err(err).Str("path", path).Msg("open audit log")
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lg.Info().Str("queue", queue.AuthQueueName).Str("path", path).Msg("audit consumer started")
	if err := queue.Consume(ctx, url, f, lg); err != nil && !errors.Is(err, context.Canceled) {
		lg.Error().Err(err).Msg("audit consumer stopped")
	}
}
