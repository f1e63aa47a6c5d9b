// The worker binary consumes pending import jobs from the database queue.
// Run it alongside the API server when IMPORT_MODE=queue.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nishant-gupta/smartkosh-sub000/internal/domain/statement/notify"
	"github.com/nishant-gupta/smartkosh-sub000/internal/domain/statement/parser"
	"github.com/nishant-gupta/smartkosh-sub000/internal/domain/statement/repository"
	"github.com/nishant-gupta/smartkosh-sub000/internal/domain/statement/service"
	"github.com/nishant-gupta/smartkosh-sub000/internal/jobs/dbqueue"
	"github.com/nishant-gupta/smartkosh-sub000/pkg/config"
	"github.com/nishant-gupta/smartkosh-sub000/pkg/db"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded", "error", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("starting smartkosh import worker")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	database, err := db.New(db.Config{
		DSN:             cfg.Database.DSN(),
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	repo := repository.NewPostgresStatementRepository(database.Pool, repository.DefaultBatchTxConfig)
	notifier := notify.New(repo, logger)
	processor := service.NewProcessor(repo, notifier, parser.New(), logger)

	worker := dbqueue.NewWorker(repo, processor.Handler(), dbqueue.Config{
		PollInterval: cfg.Import.PollInterval,
		JobTimeout:   cfg.Import.JobTimeout,
		MaxAttempts:  cfg.Import.MaxAttempts,
		RetryBackoff: cfg.Import.RetryBackoff,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("worker started", "poll_interval", cfg.Import.PollInterval, "max_attempts", cfg.Import.MaxAttempts)
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped gracefully")
}
