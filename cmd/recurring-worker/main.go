package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"tally/internal/config"
	"tally/internal/services"
	"tally/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting recurring-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	processor := services.NewRecurringProcessor(repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	run := func() {
		count, err := processor.ProcessDue(ctx, time.Now())
		if err != nil {
			logger.Error("Recurring processing failed", "error", err)
			return
		}
		logger.Info("Recurring processing complete", "transactions_created", count)
	}

	// Run once on startup so a worker that was down over a due date
	// catches up immediately.
	run()

	var scheduler *cron.Cron
	var ticker *time.Ticker

	if cfg.WorkerInterval > 0 {
		logger.Info("Recurring processor configured with fixed interval",
			"interval", cfg.WorkerInterval,
			"sqlite_db", cfg.SQLiteDBPath)

		ticker = time.NewTicker(cfg.WorkerInterval)
		defer ticker.Stop()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					run()
				}
			}
		}()
	} else {
		logger.Info("Recurring processor configured with cron schedule",
			"schedule", cfg.RecurringSchedule,
			"sqlite_db", cfg.SQLiteDBPath)

		scheduler = cron.New()
		if _, err := scheduler.AddFunc(cfg.RecurringSchedule, run); err != nil {
			logger.Error("Invalid cron schedule", "error", err, "schedule", cfg.RecurringSchedule)
			os.Exit(1)
		}
		scheduler.Start()
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())
	cancel()

	if scheduler != nil {
		stopCtx := scheduler.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(30 * time.Second):
			logger.Warn("Shutdown timeout reached waiting for running jobs")
		}
	}

	logger.Info("Recurring-worker shutdown complete")
}
