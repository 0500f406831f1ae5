package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintwin/internal/amqp"
	"fintwin/internal/config"
	applog "fintwin/internal/log"
	gsheet "fintwin/internal/sheets/google"
	"fintwin/internal/storage"
	"fintwin/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentWorker,
		JSON:      cfg.LogFormat == "json",
	})
	applog.SetDefault(logger)

	logger.Info("Starting fintwin-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.ArchiveBackend != "sqlite" {
		logger.Error("Snapshot archive disabled - nothing to sync", "backend", cfg.ArchiveBackend)
		os.Exit(1)
	}

	// Open the snapshot archive the web app writes to
	repo, err := storage.NewSQLiteRepository(cfg.SnapshotDBPath)
	if err != nil {
		logger.Error("Failed to open snapshot archive", "error", err, "path", cfg.SnapshotDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Initialize Google Sheets client for the ledger (optional)
	var sheetsClient *gsheet.Client
	if cfg.GoogleSpreadsheetID != "" {
		sheetsClient, err = gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		if rows, err := sheetsClient.CountRows(context.Background()); err != nil {
			logger.Warn("Could not read ledger row count", "error", err)
		} else {
			logger.Info("Google Sheets client initialized",
				"spreadsheet_id", cfg.GoogleSpreadsheetID,
				"ledger_rows", rows)
		}
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	// Initialize AMQP client for consuming sync messages
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var syncWorker *worker.SyncWorker
	if sheetsClient != nil {
		syncWorker = worker.NewSyncWorker(repo, sheetsClient, cfg.SyncBatchSize)

		// On startup, drain any snapshots whose queue message was missed
		logger.Info("Performing startup sync check...")
		if err := syncWorker.StartupSyncCheck(ctx); err != nil {
			logger.Error("Failed startup sync check", "error", err)
			// Don't exit - continue with normal operation
		}
	} else {
		logger.Info("Skipping ledger sync operations - no sheets client available")
	}

	// Start message consumption only if we have a sync worker
	if syncWorker != nil {
		go func() {
			handler := func(msg *amqp.SnapshotSyncMessage) error {
				return syncWorker.HandleSyncMessage(ctx, msg)
			}
			if err := amqpClient.ConsumeSnapshotSync(ctx, handler); err != nil {
				if err != context.Canceled {
					logger.Error("Message consumption failed", "error", err)
				}
				cancel()
			}
		}()

		// Periodic catch-up for any missed messages
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := syncWorker.ProcessPending(ctx); err != nil {
						logger.Error("Periodic sync failed", "error", err)
					}
				}
			}
		}()
	} else {
		logger.Info("Skipping AMQP message consumption - no sync worker available")
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down worker...")
	cancel()

	// Give in-flight syncs a moment to finish
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
